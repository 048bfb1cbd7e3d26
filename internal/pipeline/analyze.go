package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/henrybloomingdale/clinlit/internal/article"
	"github.com/henrybloomingdale/clinlit/internal/llm"
)

// AnalyzeRequest is the analyzeArticle input. Either PMID or Article
// must be set; Article wins when both are present.
type AnalyzeRequest struct {
	PMID     string           `json:"pmid,omitempty"`
	Article  *article.Article `json:"article,omitempty"`
	Question string           `json:"question"`
}

// AnalyzeArticle produces a standalone critical analysis for one article,
// looked up by PMID when the caller did not supply it whole.
func (o *Orchestrator) AnalyzeArticle(ctx context.Context, req AnalyzeRequest) (*AnalysisResponse, error) {
	question := strings.TrimSpace(req.Question)
	if len(question) < MinQuestionLength {
		return nil, &ValidationError{Msg: fmt.Sprintf("question must be at least %d characters", MinQuestionLength)}
	}
	if req.Article == nil && strings.TrimSpace(req.PMID) == "" {
		return nil, &ValidationError{Msg: "either pmid or article is required"}
	}

	a := req.Article
	if a == nil {
		loaded, err := o.loadArticle(ctx, strings.TrimSpace(req.PMID))
		if err != nil {
			return &AnalysisResponse{Success: false, Message: err.Error()}, nil
		}
		if loaded == nil {
			return &AnalysisResponse{Success: false, Message: fmt.Sprintf("no PubMed record for PMID %s", req.PMID)}, nil
		}
		a = loaded
	}

	out := &AnalyzedArticle{Article: a}
	resp := &AnalysisResponse{Success: true, Article: out}

	if !a.Analyzable() {
		out.Invalid = true
		out.Error = true
		out.SecondaryAnalysis = errorCard(a.Title, "El artículo no tiene datos suficientes para un análisis detallado")
		return resp, nil
	}

	text, err := o.llm.Complete(ctx, analyzePrompt(question, a), llm.Options{
		Timeout:   o.llm.LongTimeout,
		MaxTokens: 4000,
	})
	if err != nil {
		text, err = o.llm.Complete(ctx, analyzeSimplePrompt(question, a), llm.Options{})
	}
	if err != nil {
		out.Error = true
		out.SecondaryAnalysis = errorCard(a.Title, err.Error())
		return resp, nil
	}

	out.Analyzed = true
	out.SecondaryAnalysis = text
	return resp, nil
}

// loadArticle assembles a full article for one PMID: summary metadata
// plus abstract and MeSH terms. A missing summary returns (nil, nil).
func (o *Orchestrator) loadArticle(ctx context.Context, pmid string) (*article.Article, error) {
	summary, err := o.pubmed.SummaryByPMID(ctx, pmid)
	if err != nil {
		return nil, fmt.Errorf("summary lookup: %w", err)
	}
	if summary == nil {
		return nil, nil
	}
	a := article.FromSummary(*summary)
	if enrichment, err := o.pubmed.FetchAbstract(ctx, pmid); err == nil && enrichment != nil {
		a.ApplyEnrichment(*enrichment)
	}
	return a, nil
}
