// Package strategy recovers structured PubMed search expressions and
// retrieval metrics from free-form LLM output.
package strategy

import (
	"regexp"
	"strings"
)

// minViableLength is the shortest extraction considered a real Boolean
// expression; shorter candidates fall through to the next stage.
const minViableLength = 30

// Strategy bundles the raw LLM response with its canonical expression and
// estimated retrieval metrics.
type Strategy struct {
	Raw       string  `json:"raw"`
	Canonical string  `json:"canonical"`
	Metrics   Metrics `json:"metrics"`
}

// Prefixes the upstream model habitually prepends before the expression.
var leadingPrefixes = []string{
	"La estrategia refinada sería:",
	"La estrategia refinada seria:",
	"Estrategia de búsqueda:",
	"Estrategia de busqueda:",
	"Análisis PICO:",
	"Analisis PICO:",
	"Estrategia:",
}

// Section labels that introduce the final expression in structured answers.
var sectionLabels = []string{
	"ESTRATEGIA PRINCIPAL",
	"ESTRATEGIA DE BÚSQUEDA COMPLETA",
	"ESTRATEGIA DE BUSQUEDA COMPLETA",
	"ESTRATEGIA CALIBRADA",
	"PUBMED SEARCH STRATEGY",
}

var (
	// parenGroup matches a parenthesized group with one nesting level.
	parenGroup = `\((?:[^()]|\([^()]*\))*\)`

	// booleanPatternRe matches a parenthesized Boolean group optionally
	// followed by operator-joined continuations.
	booleanPatternRe = regexp.MustCompile(parenGroup + `(?:\s*(?:AND|OR|NOT)\s*` + parenGroup + `)*`)

	// fieldTagRe recognizes the PubMed field qualifiers the line scan keys on.
	fieldTagRe = regexp.MustCompile(`\[(?:MeSH(?: Terms)?|Mesh|tiab|Majr|ti)\]`)

	// booleanOpRe finds lowercase operators surrounded by whitespace.
	booleanOpRe = regexp.MustCompile(`(\s)(and|or|not)(\s)`)
)

// Extract recovers a canonical PubMed expression from rawText. The second
// return is false when no stage produced a viable candidate; callers then
// fall back to the original question.
func Extract(rawText string) (string, bool) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return "", false
	}

	// Short inputs without search syntax are taken verbatim: the model
	// answered with the expression itself.
	if len(text) < minViableLength || !hasSearchSyntax(text) {
		return Repair(text), true
	}

	text = stripLeadingPrefixes(text)

	for _, stage := range []func(string) (string, bool){
		extractLabeledSection,
		extractLongestBoolean,
		extractTaggedLine,
	} {
		if candidate, ok := stage(text); ok {
			return Repair(candidate), true
		}
	}
	return "", false
}

// hasSearchSyntax reports whether the text carries any PubMed search marker.
func hasSearchSyntax(text string) bool {
	for _, marker := range []string{`"`, "[", "(", "AND", "OR"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func stripLeadingPrefixes(text string) string {
	for _, prefix := range leadingPrefixes {
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, prefix) {
			text = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
	}
	return text
}

// extractLabeledSection finds a section label and captures the Boolean
// pattern that follows it.
func extractLabeledSection(text string) (string, bool) {
	upper := strings.ToUpper(text)
	for _, label := range sectionLabels {
		idx := strings.Index(upper, label)
		if idx < 0 {
			continue
		}
		rest := text[idx+len(label):]
		if match := booleanPatternRe.FindString(rest); len(match) >= minViableLength {
			return strings.TrimSpace(match), true
		}
	}
	return "", false
}

// extractLongestBoolean picks the longest free-standing Boolean pattern
// anywhere in the text.
func extractLongestBoolean(text string) (string, bool) {
	var longest string
	for _, match := range booleanPatternRe.FindAllString(text, -1) {
		if len(match) > len(longest) {
			longest = match
		}
	}
	if len(longest) >= minViableLength {
		return strings.TrimSpace(longest), true
	}
	return "", false
}

// extractTaggedLine scans line by line for a field-tagged Boolean query.
func extractTaggedLine(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 50 {
			continue
		}
		if !fieldTagRe.MatchString(line) {
			continue
		}
		if !strings.Contains(line, "AND") && !strings.Contains(line, "OR") && !strings.Contains(line, "NOT") {
			continue
		}
		if !strings.Contains(line, "(") || !strings.Contains(line, ")") {
			continue
		}
		return line, true
	}
	return "", false
}

// Repair balances parentheses and quotes and uppercases Boolean operators.
// Repair is idempotent: Repair(Repair(x)) == Repair(x).
func Repair(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return expr
	}

	opens := strings.Count(expr, "(")
	closes := strings.Count(expr, ")")
	if opens > closes {
		expr += strings.Repeat(")", opens-closes)
	} else if closes > opens {
		expr = strings.Repeat("(", closes-opens) + expr
	}

	if strings.Count(expr, `"`)%2 == 1 {
		expr += `"`
	}

	for {
		fixed := booleanOpRe.ReplaceAllStringFunc(expr, func(m string) string {
			return strings.ToUpper(m)
		})
		if fixed == expr {
			break
		}
		expr = fixed
	}
	return expr
}
