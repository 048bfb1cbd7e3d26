package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrybloomingdale/clinlit/internal/backoff"
	"github.com/henrybloomingdale/clinlit/internal/batch"
	"github.com/henrybloomingdale/clinlit/internal/eutils"
	"github.com/henrybloomingdale/clinlit/internal/icite"
	"github.com/henrybloomingdale/clinlit/internal/llm"
	"github.com/henrybloomingdale/clinlit/internal/ncbi"
)

const testQuestion = "Is metformin effective for preventing type 2 diabetes in prediabetic adults?"

// llmScript answers fake LLM calls by prompt kind. Handlers return the
// HTTP status and response text; a nil handler answers 200 with a stub.
type llmScript struct {
	mu       sync.Mutex
	strategy func(call int) (int, string)
	filter   func(call int) (int, string)
	analyze  func(call int, prompt string) (int, string)
	synth    func(call int) (int, string)

	strategyCalls int
	filterCalls   int
	analyzeCalls  int
	synthCalls    int
}

func (s *llmScript) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(body, &req)
		prompt := ""
		if len(req.Messages) > 0 {
			prompt = req.Messages[0].Content
		}

		s.mu.Lock()
		var status int
		var text string
		switch {
		case strings.Contains(prompt, "bibliotecario"):
			s.strategyCalls++
			status, text = dispatch(s.strategy, s.strategyCalls, prompt)
		case strings.Contains(prompt, "selecciona los"):
			s.filterCalls++
			status, text = dispatch(s.filter, s.filterCalls, prompt)
		case strings.Contains(prompt, "síntesis narrativa"):
			s.synthCalls++
			status, text = dispatch(s.synth, s.synthCalls, prompt)
		default:
			s.analyzeCalls++
			if s.analyze != nil {
				status, text = s.analyze(s.analyzeCalls, prompt)
			} else {
				status, text = 200, `<div class="card-analysis">análisis</div>`
			}
		}
		s.mu.Unlock()

		if status != 200 {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"error":{"type":"upstream"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": text}},
		})
	}
}

func dispatch(fn func(int) (int, string), call int, _ string) (int, string) {
	if fn != nil {
		return fn(call)
	}
	return 200, defaultStrategyText
}

const defaultStrategyText = `ESTRATEGIA PRINCIPAL:
("metformin"[MeSH Terms] OR "metformin"[tiab]) AND ("prediabetic state"[MeSH Terms] OR "prediabetes"[tiab])

Sensibilidad: 85%. Especificidad: 90%. Precisión: 72%. NNR: 1.4. Saturación: 95%.`

// pubmedFixture serves esearch, esummary, and efetch for a fixed corpus.
type pubmedFixture struct {
	ids       []string
	titles    map[string]string
	abstracts map[string]string
	mesh      map[string][]string
}

func newPubmedFixture(ids []string) *pubmedFixture {
	f := &pubmedFixture{
		ids:       ids,
		titles:    make(map[string]string),
		abstracts: make(map[string]string),
		mesh:      make(map[string][]string),
	}
	for i, id := range ids {
		f.titles[id] = fmt.Sprintf("Metformin and diabetes prevention, cohort %d", i)
		f.abstracts[id] = "Metformin reduced progression to type 2 diabetes in prediabetic adults in this prospective study."
		f.mesh[id] = []string{"Metformin", "Prediabetic State"}
	}
	return f
}

func (f *pubmedFixture) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"esearchresult": map[string]any{
				"count":  fmt.Sprintf("%d", len(f.ids)),
				"idlist": f.ids,
			},
		})
	})
	mux.HandleFunc("/esummary.fcgi", func(w http.ResponseWriter, r *http.Request) {
		result := map[string]any{}
		for _, id := range strings.Split(r.URL.Query().Get("id"), ",") {
			title, ok := f.titles[id]
			if !ok {
				continue
			}
			result[id] = map[string]any{
				"title":   title,
				"pubdate": "2024 Jan 15",
				"source":  "Diabetes Care",
				"authors": []map[string]string{{"name": "García R", "authtype": "Author"}},
				"articleids": []map[string]string{
					{"idtype": "pubmed", "value": id},
					{"idtype": "doi", "value": "10.1000/" + id},
				},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	})
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		abstract, ok := f.abstracts[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var mesh strings.Builder
		for _, term := range f.mesh[id] {
			fmt.Fprintf(&mesh, "<MeshHeading><DescriptorName>%s</DescriptorName></MeshHeading>", term)
		}
		fmt.Fprintf(w, `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>%s</PMID>
      <Article><Abstract><AbstractText>%s</AbstractText></Abstract></Article>
      <MeshHeadingList>%s</MeshHeadingList>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`, id, abstract, mesh.String())
	})
	return mux
}

// iciteFixture serves /api/pubs for a subset of PMIDs.
type iciteFixture struct {
	rcr  map[string]float64
	fail bool
}

func (f *iciteFixture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var data []map[string]any
		for _, id := range strings.Split(r.URL.Query().Get("pmids"), ",") {
			rcr, ok := f.rcr[id]
			if !ok {
				continue
			}
			data = append(data, map[string]any{
				"pmid":                    json.Number(id),
				"relative_citation_ratio": rcr,
				"nih_percentile":          80.0,
				"apt":                     0.7,
				"citations_per_year":      6.0,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}
}

// fakeClock records batch sleeps without waiting.
type fakeClock struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (f *fakeClock) policy() backoff.Policy {
	p := backoff.Default()
	p.SleepFunc = func(_ context.Context, d time.Duration) error {
		f.mu.Lock()
		f.slept = append(f.slept, d)
		f.mu.Unlock()
		return nil
	}
	p.RandFunc = func(time.Duration) time.Duration { return 0 }
	return p
}

type testEnv struct {
	orch   *Orchestrator
	script *llmScript
	clock  *fakeClock
	sink   *recordingSink
}

type recordingSink struct {
	mu     sync.Mutex
	events []batch.Progress
}

func (r *recordingSink) Emit(p batch.Progress) {
	r.mu.Lock()
	r.events = append(r.events, p)
	r.mu.Unlock()
}

func newTestEnv(t *testing.T, script *llmScript, pubmed *pubmedFixture, ic *iciteFixture) *testEnv {
	t.Helper()

	llmSrv := httptest.NewServer(script.handler())
	t.Cleanup(llmSrv.Close)
	pubmedSrv := httptest.NewServer(pubmed.handler())
	t.Cleanup(pubmedSrv.Close)
	iciteSrv := httptest.NewServer(ic.handler())
	t.Cleanup(iciteSrv.Close)

	clock := &fakeClock{}

	llmClient := llm.NewClient(
		llm.WithBaseURL(llmSrv.URL),
		llm.WithAPIKey("test-key"),
		llm.WithPolicy(clock.policy()),
	)
	pubmedClient := eutils.NewClient(
		ncbi.WithBaseURL(pubmedSrv.URL+"/"),
		ncbi.WithAPIKey("test-key"),
	)
	iciteClient := icite.NewClient(icite.WithBaseURL(iciteSrv.URL))

	log := logrus.New()
	log.SetOutput(io.Discard)
	sink := &recordingSink{}

	orch := New(llmClient, pubmedClient, iciteClient, Config{
		Batch: batch.Config{Concurrency: 1, RateLimitBackoff: 30 * time.Second},
		Clock: clock.policy(),
		Log:   log,
		Sink:  sink,
	})
	return &testEnv{orch: orch, script: script, clock: clock, sink: sink}
}

func TestProcessQueryHappyPath(t *testing.T) {
	ids := []string{"101", "102", "103", "104", "105", "106", "107"}
	pubmed := newPubmedFixture(ids)
	// A meta-analysis should rank first.
	pubmed.titles["104"] = "Metformin for diabetes prevention: a meta-analysis"
	ic := &iciteFixture{rcr: map[string]float64{"101": 2.5, "102": 1.8, "103": 0.9, "104": 2.1, "105": 1.1}}
	env := newTestEnv(t, &llmScript{}, pubmed, ic)

	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, Stats{Initial: 7, AfterFilter: 7, WithAbstracts: 7, Analyzed: 5, Failed: 0, Invalid: 0, ProcessingMs: resp.Stats.ProcessingMs}, resp.Stats)
	require.Len(t, resp.Articles, 7)

	// Strategy extracted from the scripted response, not the raw question.
	assert.Contains(t, resp.CanonicalStrategy, `"metformin"[MeSH Terms]`)
	assert.Contains(t, resp.RawStrategy, "ESTRATEGIA PRINCIPAL")
	require.NotNil(t, resp.Metrics)
	assert.Equal(t, 85, resp.Metrics.Sensitivity)

	// Seven results, so no title-filter call.
	assert.Equal(t, 0, env.script.filterCalls)
	assert.Equal(t, 5, env.script.analyzeCalls)

	// Ranked descending, best article first.
	assert.Equal(t, "104", resp.Articles[0].PMID)
	for i := 1; i < len(resp.Articles); i++ {
		assert.GreaterOrEqual(t, resp.Articles[i-1].PriorityScore, resp.Articles[i].PriorityScore)
	}
	for i, ra := range resp.Articles {
		assert.GreaterOrEqual(t, ra.PriorityScore, 0)
		assert.LessOrEqual(t, ra.PriorityScore, 100)
		if i < 5 {
			assert.True(t, ra.Analyzed, "article %d should be analyzed", i)
			assert.Contains(t, ra.Analysis, "card-analysis")
		} else {
			assert.False(t, ra.Analyzed)
			assert.Equal(t, NotSelectedNote, ra.Analysis)
		}
	}

	// Progress: five completions plus the terminal event.
	require.Len(t, env.sink.events, 6)
	last := env.sink.events[5]
	assert.Equal(t, batch.Progress{Processing: false, Total: 5, Current: 5}, last)

	// Trace is monotonically timestamped.
	require.NotEmpty(t, resp.Trace)
	for i := 1; i < len(resp.Trace); i++ {
		assert.False(t, resp.Trace[i].Timestamp.Before(resp.Trace[i-1].Timestamp))
	}
}

func TestProcessQueryTitleFilter(t *testing.T) {
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 200+i)
	}
	pubmed := newPubmedFixture(ids)

	// 18 decimal lines, 15 of which match real PMIDs.
	var lines []string
	for i := 0; i < 15; i++ {
		lines = append(lines, fmt.Sprintf("%d", 200+i))
	}
	lines = append(lines, "999001", "999002", "999003")
	filterText := strings.Join(lines, "\n")

	script := &llmScript{
		filter: func(int) (int, string) { return 200, filterText },
	}
	env := newTestEnv(t, script, pubmed, &iciteFixture{})

	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, 1, env.script.filterCalls)
	assert.Equal(t, 25, resp.Stats.Initial)
	assert.Equal(t, 15, resp.Stats.AfterFilter)
	require.Len(t, resp.Articles, 15)
	analyzed := 0
	for _, ra := range resp.Articles {
		if ra.Analyzed {
			analyzed++
		}
	}
	assert.Equal(t, 5, analyzed)
}

func TestProcessQueryFilterSkippedAtThreshold(t *testing.T) {
	// The filter fires only above the threshold; exactly 10 results
	// go straight to the abstract stage.
	ids := make([]string, DefaultFilterThreshold)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 500+i)
	}
	pubmed := newPubmedFixture(ids)
	env := newTestEnv(t, &llmScript{}, pubmed, &iciteFixture{})

	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, 0, env.script.filterCalls)
	assert.Equal(t, DefaultFilterThreshold, resp.Stats.Initial)
	assert.Equal(t, DefaultFilterThreshold, resp.Stats.AfterFilter)
	require.Len(t, resp.Articles, DefaultFilterThreshold)
}

func TestProcessQueryFilterGarbageFallsBackToHead(t *testing.T) {
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 300+i)
	}
	pubmed := newPubmedFixture(ids)
	script := &llmScript{
		filter: func(int) (int, string) { return 200, "ninguno de estos artículos tiene PMID" },
	}
	env := newTestEnv(t, script, pubmed, &iciteFixture{})

	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	// No decimal lines: keep the first filterLimit (20 > 12, so all 12).
	assert.Equal(t, 12, resp.Stats.AfterFilter)
}

func TestProcessQueryEmptySearch(t *testing.T) {
	env := newTestEnv(t, &llmScript{}, newPubmedFixture(nil), &iciteFixture{})

	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Articles)
	found := false
	for _, e := range resp.Trace {
		if e.Stage == StageSearch && strings.Contains(e.Message, "0 results") {
			found = true
		}
	}
	assert.True(t, found, "trace should record the empty result")
	assert.Equal(t, 0, env.script.analyzeCalls)
}

func TestProcessQueryStrategyFallback(t *testing.T) {
	pubmed := newPubmedFixture([]string{"401", "402", "403"})
	script := &llmScript{
		strategy: func(int) (int, string) { return 500, "" },
	}
	env := newTestEnv(t, script, pubmed, &iciteFixture{})

	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, testQuestion, resp.CanonicalStrategy)
	assert.Equal(t, testQuestion, resp.RawStrategy)
	assert.NotEmpty(t, resp.ProcessAlert)
	assert.Equal(t, 3, resp.Stats.Analyzed)
}

func TestProcessQueryCallerSuppliedStrategy(t *testing.T) {
	pubmed := newPubmedFixture([]string{"411"})
	env := newTestEnv(t, &llmScript{}, pubmed, &iciteFixture{})

	supplied := `("metformin"[tiab] and "prediabetes"[tiab]`
	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{
		Question: testQuestion,
		Strategy: supplied,
	})
	require.NoError(t, err)

	require.True(t, resp.Success)
	// Repaired: operator uppercased, parenthesis closed.
	assert.Equal(t, `("metformin"[tiab] AND "prediabetes"[tiab])`, resp.CanonicalStrategy)
	assert.Equal(t, supplied, resp.RawStrategy)
	assert.Equal(t, 0, env.script.strategyCalls)
}

func TestProcessQueryRateLimitDuringAnalysis(t *testing.T) {
	pubmed := newPubmedFixture([]string{"501", "502", "503", "504", "505"})
	// The client itself retries a 429 three times, so the third item must
	// see four straight 429s before the executor-level retry fires.
	script := &llmScript{
		analyze: func(call int, _ string) (int, string) {
			if call >= 3 && call <= 6 {
				return 429, ""
			}
			return 200, fmt.Sprintf(`<div class="card-analysis">análisis %d</div>`, call)
		},
	}
	env := newTestEnv(t, script, pubmed, &iciteFixture{})

	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, 5, resp.Stats.Analyzed)
	assert.Equal(t, 0, resp.Stats.Failed)

	retried := 0
	for _, ra := range resp.Articles {
		if ra.Retried {
			retried++
			assert.True(t, ra.Analyzed)
		}
	}
	assert.Equal(t, 1, retried)

	// The executor slept for the extended rate-limit backoff.
	env.clock.mu.Lock()
	defer env.clock.mu.Unlock()
	longest := time.Duration(0)
	for _, d := range env.clock.slept {
		if d > longest {
			longest = d
		}
	}
	assert.GreaterOrEqual(t, longest, 30*time.Second)
}

func TestProcessQueryInvalidArticle(t *testing.T) {
	ids := []string{"601", "602", "603", "604", "605", "606"}
	pubmed := newPubmedFixture(ids)
	pubmed.abstracts["603"] = "Short abstract."
	env := newTestEnv(t, &llmScript{}, pubmed, &iciteFixture{})

	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	require.True(t, resp.Success)
	assert.Equal(t, 1, resp.Stats.Invalid)
	assert.Equal(t, 5, resp.Stats.Analyzed)
	assert.Equal(t, 5, env.script.analyzeCalls)

	var invalid *ResultArticle
	for _, ra := range resp.Articles {
		if ra.PMID == "603" {
			invalid = ra
		}
	}
	require.NotNil(t, invalid)
	assert.True(t, invalid.Invalid)
	assert.False(t, invalid.Analyzed)
	assert.Contains(t, invalid.Analysis, "ERROR DE ANÁLISIS")
	assert.GreaterOrEqual(t, invalid.PriorityScore, 0)
}

func TestProcessQueryAllRateLimited(t *testing.T) {
	pubmed := newPubmedFixture([]string{"701", "702"})
	always429 := func(int) (int, string) { return 429, "" }
	script := &llmScript{
		strategy: always429,
		filter:   always429,
		analyze:  func(int, string) (int, string) { return 429, "" },
	}
	env := newTestEnv(t, script, pubmed, &iciteFixture{})

	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ProcessAlert)
	require.Len(t, resp.Articles, 2)
	for _, ra := range resp.Articles {
		assert.True(t, ra.Error)
		assert.False(t, ra.Analyzed)
		assert.Contains(t, ra.Analysis, "rate limit")
		assert.Contains(t, ra.Analysis, "tipo: Error")
	}
}

func TestProcessQuerySearchFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	pubmedSrv := httptest.NewServer(mux)
	defer pubmedSrv.Close()
	llmSrv := httptest.NewServer((&llmScript{}).handler())
	defer llmSrv.Close()

	clock := &fakeClock{}
	orch := New(
		llm.NewClient(llm.WithBaseURL(llmSrv.URL), llm.WithPolicy(clock.policy())),
		eutils.NewClient(ncbi.WithBaseURL(pubmedSrv.URL+"/")),
		icite.NewClient(),
		Config{Batch: batch.Config{Concurrency: 1}, Clock: clock.policy(), Log: discardLog()},
	)

	resp, err := orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "search failed")
	assert.NotEmpty(t, resp.Trace)
}

func TestProcessQueryValidation(t *testing.T) {
	env := newTestEnv(t, &llmScript{}, newPubmedFixture(nil), &iciteFixture{})

	_, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: "abc"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestProcessQueryICiteDownIsNonFatal(t *testing.T) {
	pubmed := newPubmedFixture([]string{"801", "802"})
	env := newTestEnv(t, &llmScript{}, pubmed, &iciteFixture{fail: true})

	resp, err := env.orch.ProcessQuery(context.Background(), QueryRequest{Question: testQuestion})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Contains(t, resp.ProcessAlert, "bibliometric")
	for _, ra := range resp.Articles {
		assert.Nil(t, ra.ICite)
	}
}

func TestAnalyzeArticleByPMID(t *testing.T) {
	pubmed := newPubmedFixture([]string{"901"})
	env := newTestEnv(t, &llmScript{}, pubmed, &iciteFixture{})

	resp, err := env.orch.AnalyzeArticle(context.Background(), AnalyzeRequest{
		PMID:     "901",
		Question: testQuestion,
	})
	require.NoError(t, err)

	require.True(t, resp.Success)
	require.NotNil(t, resp.Article)
	assert.True(t, resp.Article.Analyzed)
	assert.Contains(t, resp.Article.SecondaryAnalysis, "card-analysis")
	assert.Equal(t, "901", resp.Article.PMID)
	assert.NotEmpty(t, resp.Article.Abstract)
}

func TestAnalyzeArticleUnknownPMID(t *testing.T) {
	env := newTestEnv(t, &llmScript{}, newPubmedFixture(nil), &iciteFixture{})

	resp, err := env.orch.AnalyzeArticle(context.Background(), AnalyzeRequest{
		PMID:     "999",
		Question: testQuestion,
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "999")
}

func TestAnalyzeArticleValidation(t *testing.T) {
	env := newTestEnv(t, &llmScript{}, newPubmedFixture(nil), &iciteFixture{})

	_, err := env.orch.AnalyzeArticle(context.Background(), AnalyzeRequest{Question: testQuestion})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = env.orch.AnalyzeArticle(context.Background(), AnalyzeRequest{PMID: "1", Question: "ab"})
	require.ErrorAs(t, err, &verr)
}

func TestGenerateSynthesis(t *testing.T) {
	script := &llmScript{
		synth: func(int) (int, string) { return 200, "<div>síntesis de la evidencia</div>" },
	}
	env := newTestEnv(t, script, newPubmedFixture(nil), &iciteFixture{})

	resp, err := env.orch.GenerateSynthesis(context.Background(), SynthesisRequest{
		Question: testQuestion,
		Articles: []SynthesisArticle{
			{Title: "A", PMID: "1", Abstract: strings.Repeat("x", 400), Analysis: strings.Repeat("y", 600)},
			{Title: "B", PMID: "2"},
		},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Contains(t, resp.Synthesis, "síntesis")
	assert.Equal(t, 1, env.script.synthCalls)
}

func TestGenerateSynthesisFailureSurfaces(t *testing.T) {
	script := &llmScript{
		synth: func(int) (int, string) { return 500, "" },
	}
	env := newTestEnv(t, script, newPubmedFixture(nil), &iciteFixture{})

	resp, err := env.orch.GenerateSynthesis(context.Background(), SynthesisRequest{
		Question: testQuestion,
		Articles: []SynthesisArticle{{Title: "A"}},
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestGenerateSynthesisValidation(t *testing.T) {
	env := newTestEnv(t, &llmScript{}, newPubmedFixture(nil), &iciteFixture{})

	_, err := env.orch.GenerateSynthesis(context.Background(), SynthesisRequest{Question: testQuestion})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func discardLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
