package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/henrybloomingdale/clinlit/internal/llm"
)

// SynthesisArticle is one previously analyzed article as the caller
// hands it back for the cross-article narrative.
type SynthesisArticle struct {
	Title    string `json:"title"`
	Authors  string `json:"authors,omitempty"`
	Date     string `json:"date,omitempty"`
	PMID     string `json:"pmid,omitempty"`
	Abstract string `json:"abstract,omitempty"`
	Analysis string `json:"analysis,omitempty"`
}

// SynthesisRequest is the generateSynthesis input.
type SynthesisRequest struct {
	Question string             `json:"question"`
	Articles []SynthesisArticle `json:"articles"`
}

// GenerateSynthesis asks the long-form model for a meta-analytic
// narrative across the supplied analyses. Unlike per-article analysis
// there is no degraded fallback: an exhausted LLM failure surfaces as
// success:false.
func (o *Orchestrator) GenerateSynthesis(ctx context.Context, req SynthesisRequest) (*SynthesisResponse, error) {
	question := strings.TrimSpace(req.Question)
	if len(question) < MinQuestionLength {
		return nil, &ValidationError{Msg: fmt.Sprintf("question must be at least %d characters", MinQuestionLength)}
	}
	if len(req.Articles) == 0 {
		return nil, &ValidationError{Msg: "at least one article is required"}
	}

	items := make([]synthesisInput, 0, len(req.Articles))
	for _, a := range req.Articles {
		items = append(items, synthesisInput{
			Title:    a.Title,
			Authors:  a.Authors,
			Date:     a.Date,
			PMID:     a.PMID,
			Abstract: a.Abstract,
			Analysis: a.Analysis,
		})
	}

	text, err := o.llm.Complete(ctx, synthesisPrompt(question, items), llm.Options{
		Model:       o.cfg.LongModel,
		Temperature: llm.Temp(0.3),
		MaxTokens:   8000,
		Timeout:     o.llm.LongTimeout,
	})
	if err != nil {
		return &SynthesisResponse{Success: false, Message: fmt.Sprintf("synthesis failed: %v", err)}, nil
	}
	return &SynthesisResponse{Success: true, Synthesis: text}, nil
}
