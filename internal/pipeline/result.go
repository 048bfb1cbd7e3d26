package pipeline

import (
	"github.com/henrybloomingdale/clinlit/internal/article"
	"github.com/henrybloomingdale/clinlit/internal/strategy"
)

// ResultArticle is one bibliography entry in the final response. Analysis
// holds either the LLM fragment, the error card, or the not-selected note;
// its bytes are passed through untouched.
type ResultArticle struct {
	*article.Article

	PriorityScore int      `json:"priority_score"`
	Rationale     []string `json:"rationale,omitempty"`
	Analysis      string   `json:"analysis,omitempty"`
	Analyzed      bool     `json:"analyzed"`
	Error         bool     `json:"error,omitempty"`
	Retried       bool     `json:"retried,omitempty"`
	Invalid       bool     `json:"invalid,omitempty"`
}

// Stats summarizes the funnel of one request.
type Stats struct {
	Initial       int   `json:"initial"`
	AfterFilter   int   `json:"after_filter"`
	WithAbstracts int   `json:"with_abstracts"`
	Analyzed      int   `json:"analyzed"`
	Failed        int   `json:"failed"`
	Invalid       int   `json:"invalid"`
	ProcessingMs  int64 `json:"processing_ms"`
}

// Response is the full processQuery result.
type Response struct {
	Success           bool              `json:"success"`
	Message           string            `json:"message,omitempty"`
	Question          string            `json:"question"`
	CanonicalStrategy string            `json:"canonical_strategy,omitempty"`
	RawStrategy       string            `json:"raw_strategy,omitempty"`
	Metrics           *strategy.Metrics `json:"metrics,omitempty"`
	ProcessAlert      string            `json:"process_alert,omitempty"`
	Articles          []*ResultArticle  `json:"articles"`
	Stats             Stats             `json:"stats"`
	Trace             []TraceEntry      `json:"trace"`
}

// AnalyzedArticle is the analyzeArticle payload: the article plus the
// standalone analysis fragment.
type AnalyzedArticle struct {
	*article.Article

	SecondaryAnalysis string `json:"secondary_analysis"`
	Analyzed          bool   `json:"analyzed"`
	Error             bool   `json:"error,omitempty"`
	Invalid           bool   `json:"invalid,omitempty"`
}

// AnalysisResponse is the analyzeArticle result.
type AnalysisResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Article *AnalyzedArticle `json:"article,omitempty"`
}

// SynthesisResponse is the generateSynthesis result.
type SynthesisResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Synthesis string `json:"synthesis,omitempty"`
}
