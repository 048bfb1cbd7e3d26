// Package pipeline orchestrates one clinical question end to end: LLM
// search strategy, PubMed retrieval, title distillation, abstract and
// bibliometric enrichment, deterministic ranking, and per-article
// critical analyses.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/henrybloomingdale/clinlit/internal/article"
	"github.com/henrybloomingdale/clinlit/internal/backoff"
	"github.com/henrybloomingdale/clinlit/internal/batch"
	"github.com/henrybloomingdale/clinlit/internal/eutils"
	"github.com/henrybloomingdale/clinlit/internal/icite"
	"github.com/henrybloomingdale/clinlit/internal/llm"
	"github.com/henrybloomingdale/clinlit/internal/score"
	"github.com/henrybloomingdale/clinlit/internal/strategy"
)

// Defaults for the query funnel.
const (
	DefaultMaxResults      = 30
	DefaultFilterThreshold = 10
	DefaultFilterLimit     = 20
	DefaultTopN            = 5

	MinQuestionLength = 5
)

// ValidationError rejects a malformed request before any stage runs.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Config wires the orchestrator's collaborators and tuning.
type Config struct {
	MaxResults      int
	FilterThreshold int
	FilterLimit     int
	TopN            int
	LongModel       string

	Batch batch.Config
	Clock backoff.Policy
	Log   logrus.FieldLogger
	Sink  batch.Sink

	// Now replaces the wall clock in tests.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.FilterThreshold <= 0 {
		c.FilterThreshold = DefaultFilterThreshold
	}
	if c.FilterLimit <= 0 {
		c.FilterLimit = DefaultFilterLimit
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.Batch == (batch.Config{}) {
		c.Batch = batch.AnalysisConfig()
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}
	if c.Sink == nil {
		c.Sink = batch.NopSink
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Orchestrator runs the staged pipeline. Safe for concurrent use; all
// per-request state lives in the call.
type Orchestrator struct {
	llm    *llm.Client
	pubmed *eutils.Client
	icite  *icite.Client
	cfg    Config
}

// New creates an orchestrator over the three upstream clients.
func New(llmClient *llm.Client, pubmedClient *eutils.Client, iciteClient *icite.Client, cfg Config) *Orchestrator {
	return &Orchestrator{
		llm:    llmClient,
		pubmed: pubmedClient,
		icite:  iciteClient,
		cfg:    cfg.withDefaults(),
	}
}

// QueryRequest is the processQuery input.
type QueryRequest struct {
	Question string `json:"question"`
	Strategy string `json:"strategy,omitempty"`
	UseAI    *bool  `json:"use_ai,omitempty"`
}

func (r QueryRequest) useAI() bool {
	return r.UseAI == nil || *r.UseAI
}

// ProcessQuery answers one clinical question with a ranked, analyzed
// bibliography. A ValidationError is returned for malformed input;
// upstream failures mid-pipeline are reported in the Response itself.
func (o *Orchestrator) ProcessQuery(ctx context.Context, req QueryRequest) (*Response, error) {
	question := strings.TrimSpace(req.Question)
	if len(question) < MinQuestionLength {
		return nil, &ValidationError{Msg: fmt.Sprintf("question must be at least %d characters", MinQuestionLength)}
	}

	tr := newTracer(o.cfg.Log, o.cfg.Now)
	resp := &Response{Question: question}
	finish := func() *Response {
		resp.Stats.ProcessingMs = tr.elapsedMs()
		tr.infof(StageDone, "pipeline finished in %d ms", resp.Stats.ProcessingMs)
		resp.Trace = tr.entries
		return resp
	}

	// S0: search strategy.
	canonical, raw, metrics := o.buildStrategy(ctx, tr, resp, req, question)
	resp.CanonicalStrategy = canonical
	resp.RawStrategy = raw
	resp.Metrics = &metrics

	// S1: PubMed search.
	searchRes, err := o.pubmed.Search(ctx, canonical, &eutils.SearchOptions{Limit: o.cfg.MaxResults})
	if err != nil {
		tr.errorf(StageSearch, "pubmed search failed: %v", err)
		resp.Success = false
		resp.Message = fmt.Sprintf("pubmed search failed: %v", err)
		return finish(), nil
	}
	tr.infof(StageSearch, "%d results for strategy", len(searchRes.IDs))
	if len(searchRes.IDs) == 0 {
		tr.infof(StageSearch, "0 results, nothing to analyze")
		resp.Success = true
		resp.Articles = []*ResultArticle{}
		return finish(), nil
	}

	articles, err := o.loadSummaries(ctx, searchRes.IDs)
	if err != nil {
		tr.errorf(StageSearch, "summary lookup failed: %v", err)
		resp.Success = false
		resp.Message = fmt.Sprintf("summary lookup failed: %v", err)
		return finish(), nil
	}
	resp.Stats.Initial = len(articles)

	// S2: LLM title filter, only past the threshold.
	articles = o.filterByTitles(ctx, tr, question, articles)
	resp.Stats.AfterFilter = len(articles)

	// S3: abstracts and MeSH.
	o.fetchAbstracts(ctx, tr, articles)
	for _, a := range articles {
		if a.Abstract != "" {
			resp.Stats.WithAbstracts++
		}
	}

	// S4: iCite bibliometrics, best effort.
	o.enrich(ctx, tr, resp, articles)

	// S5: deterministic ranking.
	ranked := score.Rank(articles, question)
	tr.infof(StageScore, "scored %d articles", len(ranked))

	// S6: detailed analyses for the top ranked.
	resp.Articles = o.analyzeTop(ctx, tr, question, ranked, &resp.Stats)

	resp.Success = true
	return finish(), nil
}

// buildStrategy resolves S0: caller-supplied strategy, disabled AI, or an
// LLM round trip with extraction and repair.
func (o *Orchestrator) buildStrategy(ctx context.Context, tr *tracer, resp *Response, req QueryRequest, question string) (canonical, raw string, metrics strategy.Metrics) {
	if s := strings.TrimSpace(req.Strategy); s != "" {
		tr.infof(StageStrategy, "using caller-supplied strategy")
		return strategy.Repair(s), s, strategy.ExtractMetrics(s)
	}
	if !req.useAI() {
		q := strategy.CleanQuestion(question)
		tr.infof(StageStrategy, "AI disabled, searching with cleaned question")
		return q, question, strategy.ExtractMetrics("")
	}

	text, err := o.llm.Complete(ctx, strategyPrompt(question), llm.Options{})
	if err != nil {
		tr.errorf(StageStrategy, "strategy generation failed: %v", err)
		resp.ProcessAlert = "strategy generation unavailable, searched with the original question"
		return question, question, strategy.ExtractMetrics("")
	}

	canonical, ok := strategy.Extract(text)
	if !ok {
		tr.infof(StageStrategy, "no strategy recovered from response, falling back to the question")
		resp.ProcessAlert = "no search strategy recovered, searched with the original question"
		canonical = question
	} else {
		tr.infof(StageStrategy, "strategy extracted (%d chars)", len(canonical))
	}
	return canonical, text, strategy.ExtractMetrics(text)
}

// loadSummaries builds articles in esearch relevance order.
func (o *Orchestrator) loadSummaries(ctx context.Context, pmids []string) ([]*article.Article, error) {
	summaries, err := o.pubmed.Summaries(ctx, pmids)
	if err != nil {
		return nil, err
	}
	out := make([]*article.Article, 0, len(pmids))
	for _, pmid := range pmids {
		s, ok := summaries[pmid]
		if !ok {
			continue
		}
		out = append(out, article.FromSummary(s))
	}
	return out, nil
}

// filterByTitles resolves S2. Below the threshold the list passes through
// untouched; above it the LLM picks a PMID subset, falling back to the
// head of the relevance-ordered list when the response parses to nothing.
func (o *Orchestrator) filterByTitles(ctx context.Context, tr *tracer, question string, articles []*article.Article) []*article.Article {
	if len(articles) <= o.cfg.FilterThreshold {
		tr.infof(StageTitleFilter, "%d articles, filter skipped", len(articles))
		return articles
	}

	limit := o.cfg.FilterLimit
	text, err := o.llm.Complete(ctx, filterPrompt(question, articles, limit), llm.Options{})
	if err != nil {
		tr.errorf(StageTitleFilter, "title filter failed, keeping all %d: %v", len(articles), err)
		return articles
	}

	selected := parsePMIDLines(text)
	if len(selected) == 0 {
		tr.infof(StageTitleFilter, "no PMIDs in filter response, keeping first %d", limit)
		if len(articles) > limit {
			return articles[:limit]
		}
		return articles
	}

	kept := make([]*article.Article, 0, limit)
	for _, a := range articles {
		if selected[a.PMID] {
			kept = append(kept, a)
			if len(kept) == limit {
				break
			}
		}
	}
	if len(kept) == 0 {
		tr.infof(StageTitleFilter, "filter response matched no known PMIDs, keeping first %d", limit)
		if len(articles) > limit {
			return articles[:limit]
		}
		return articles
	}
	tr.infof(StageTitleFilter, "filter kept %d of %d", len(kept), len(articles))
	return kept
}

// parsePMIDLines keeps only lines that are purely decimal digits.
func parsePMIDLines(text string) map[string]bool {
	out := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !isDigits(line) {
			continue
		}
		out[line] = true
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fetchAbstracts resolves S3. Per-article failures leave that article
// without an abstract; nothing is dropped.
func (o *Orchestrator) fetchAbstracts(ctx context.Context, tr *tracer, articles []*article.Article) {
	pmids := make([]string, 0, len(articles))
	for _, a := range articles {
		pmids = append(pmids, a.PMID)
	}
	enrichments, err := o.pubmed.FetchAbstracts(ctx, pmids)
	if err != nil {
		tr.errorf(StageAbstracts, "abstract fetch failed, continuing without abstracts: %v", err)
		return
	}
	got := 0
	for _, a := range articles {
		if e := enrichments[a.PMID]; e != nil {
			a.ApplyEnrichment(*e)
			if a.Abstract != "" {
				got++
			}
		}
	}
	tr.infof(StageAbstracts, "abstracts for %d of %d articles", got, len(articles))
}

// enrich resolves S4. iCite failure degrades scoring but never the request.
func (o *Orchestrator) enrich(ctx context.Context, tr *tracer, resp *Response, articles []*article.Article) {
	pmids := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.PMID != "" {
			pmids = append(pmids, a.PMID)
		}
	}
	if len(pmids) == 0 {
		return
	}
	metrics, err := o.icite.Fetch(ctx, pmids)
	if err != nil {
		tr.errorf(StageEnrich, "icite unavailable, scoring without bibliometrics: %v", err)
		if resp.ProcessAlert == "" {
			resp.ProcessAlert = "bibliometric enrichment unavailable, ranking precision is reduced"
		}
		return
	}
	n := 0
	for _, a := range articles {
		if m, ok := metrics[a.PMID]; ok {
			mCopy := m
			a.ICite = &mCopy
			n++
		}
	}
	tr.infof(StageEnrich, "icite metrics for %d of %d articles", n, len(articles))
}

// analyzeTop resolves S6: the first TopN analyzable articles in rank
// order get a detailed LLM analysis through the paced batch executor;
// invalid articles get the fixed error card; the rest get the
// not-selected note.
func (o *Orchestrator) analyzeTop(ctx context.Context, tr *tracer, question string, ranked []score.Scored, stats *Stats) []*ResultArticle {
	out := make([]*ResultArticle, len(ranked))
	var targets []*ResultArticle
	for i, s := range ranked {
		ra := &ResultArticle{
			Article:       s.Article,
			PriorityScore: s.Score,
			Rationale:     s.Rationale,
		}
		out[i] = ra
		switch {
		case !s.Article.Analyzable():
			ra.Invalid = true
			ra.Error = true
			ra.Analysis = errorCard(s.Article.Title, "El artículo no tiene datos suficientes para un análisis detallado")
			stats.Invalid++
		case len(targets) < o.cfg.TopN:
			targets = append(targets, ra)
		default:
			ra.Analysis = NotSelectedNote
		}
	}

	if len(targets) == 0 {
		tr.infof(StageAnalyze, "no analyzable articles")
		return out
	}

	tr.infof(StageAnalyze, "analyzing top %d articles", len(targets))
	ex := batch.New(o.cfg.Batch, o.cfg.Clock)
	results, err := batch.Run(ctx, ex, targets,
		func(ctx context.Context, ra *ResultArticle, _ int) (string, error) {
			return o.llm.Complete(ctx, analyzePrompt(question, ra.Article), llm.Options{
				Timeout:   o.llm.LongTimeout,
				MaxTokens: 4000,
			})
		}, o.cfg.Sink)
	if err != nil {
		tr.errorf(StageAnalyze, "analysis batch aborted: %v", err)
		for _, ra := range targets {
			ra.Error = true
			ra.Analysis = errorCard(ra.Article.Title, err.Error())
			stats.Failed++
		}
		return out
	}

	for i, res := range results {
		ra := targets[i]
		ra.Retried = res.Retried
		switch {
		case res.Skipped:
			ra.Error = true
			ra.Analysis = errorCard(ra.Article.Title, "análisis cancelado antes de comenzar")
			stats.Failed++
		case res.Err == nil:
			ra.Analyzed = true
			ra.Analysis = res.Value
			stats.Analyzed++
		case llm.IsRateLimit(res.Err):
			// One last attempt with the cheaper prompt before giving up.
			text, retryErr := o.llm.Complete(ctx, analyzeSimplePrompt(question, ra.Article), llm.Options{})
			if retryErr == nil {
				ra.Analyzed = true
				ra.Analysis = text
				stats.Analyzed++
				continue
			}
			tr.errorf(StageAnalyze, "analysis failed for %s: %v", ra.Article.PMID, res.Err)
			ra.Error = true
			ra.Analysis = errorCard(ra.Article.Title, res.Err.Error())
			stats.Failed++
		default:
			tr.errorf(StageAnalyze, "analysis failed for %s: %v", ra.Article.PMID, res.Err)
			ra.Error = true
			ra.Analysis = errorCard(ra.Article.Title, res.Err.Error())
			stats.Failed++
		}
	}
	return out
}

// IsCanceled distinguishes a caller cancel from a deadline expiry.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
