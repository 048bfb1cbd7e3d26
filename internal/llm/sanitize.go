package llm

import (
	"fmt"
	"strings"
)

// MaxPromptLength bounds prompt size before the request goes out. Abstracts
// and analysis prompts are already truncated upstream; this is the hard stop.
const MaxPromptLength = 200_000

// SanitizePrompt validates and normalizes a prompt before sending.
// Null bytes are rejected outright: they can truncate strings in downstream
// C code and never occur in legitimate clinical text.
func SanitizePrompt(prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	if strings.ContainsRune(prompt, 0) {
		return "", fmt.Errorf("prompt contains null bytes")
	}
	if len(prompt) > MaxPromptLength {
		return "", fmt.Errorf("prompt exceeds %d characters", MaxPromptLength)
	}
	return prompt, nil
}
