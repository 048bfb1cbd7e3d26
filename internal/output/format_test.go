package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/henrybloomingdale/clinlit/internal/article"
	"github.com/henrybloomingdale/clinlit/internal/mesh"
	"github.com/henrybloomingdale/clinlit/internal/pipeline"
)

func sampleResponse() *pipeline.Response {
	return &pipeline.Response{
		Success:           true,
		Question:          "Does aspirin prevent stroke?",
		CanonicalStrategy: `("aspirin"[tiab]) AND ("stroke"[tiab])`,
		Articles: []*pipeline.ResultArticle{
			{
				Article: &article.Article{
					PMID:    "111",
					Title:   "Aspirin for stroke prevention: a meta-analysis",
					Year:    2024,
					Journal: "Stroke",
					Authors: []article.Author{{Name: "Li W"}},
				},
				PriorityScore: 78,
				Analyzed:      true,
				Analysis:      `<div class="card-analysis">ok</div>`,
			},
			{
				Article: &article.Article{
					PMID:  "222",
					Title: "Observational data on aspirin",
					Year:  2018,
				},
				PriorityScore: 31,
				Analysis:      pipeline.NotSelectedNote,
			},
		},
		Stats: pipeline.Stats{Initial: 2, AfterFilter: 2, WithAbstracts: 2, Analyzed: 1},
	}
}

func TestFormatResponsePlain(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatResponse(&buf, sampleResponse(), Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Does aspirin prevent stroke?",
		`("aspirin"[tiab]) AND ("stroke"[tiab])`,
		"[ 78] Aspirin for stroke prevention: a meta-analysis",
		"PMID 111 · 2024 · Stroke",
		"analyzed",
		"1 analyzed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatResponsePlainFailure(t *testing.T) {
	var buf bytes.Buffer
	resp := &pipeline.Response{Success: false, Message: "pubmed search failed"}
	if err := FormatResponse(&buf, resp, Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "pubmed search failed") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormatResponseNoArticles(t *testing.T) {
	var buf bytes.Buffer
	resp := &pipeline.Response{Success: true, Question: "q", Message: "0 results"}
	if err := FormatResponse(&buf, resp, Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No articles found.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormatResponseJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatResponse(&buf, sampleResponse(), Config{JSON: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded pipeline.Response
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\nOutput: %s", err, buf.String())
	}
	if len(decoded.Articles) != 2 || decoded.Articles[0].PriorityScore != 78 {
		t.Errorf("decoded articles = %+v", decoded.Articles)
	}
	// Analysis HTML must survive encoding unescaped. The inner quotes
	// carry JSON's mandatory \" escaping; the point is that < and > are
	// not encoded as < / >.
	if !strings.Contains(buf.String(), "<div class=\\\"card-analysis\\\">") {
		t.Error("analysis HTML was escaped in JSON output")
	}
}

func TestFormatResponseHuman(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatResponse(&buf, sampleResponse(), Config{Human: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Score", "111", "222"} {
		if !strings.Contains(out, want) {
			t.Errorf("human output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatMeSHPlain(t *testing.T) {
	record := &mesh.Record{
		UI:          "D008687",
		Name:        "Metformin",
		ScopeNote:   "A biguanide hypoglycemic agent.",
		TreeNumbers: []string{"D02.078.370.141.450"},
		EntryTerms:  []string{"Glucophage"},
	}
	var buf bytes.Buffer
	if err := FormatMeSH(&buf, record, Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Metformin",
		"D008687",
		"D02.078.370.141.450",
		"Glucophage",
		`"Metformin"[MeSH Terms]`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate unchanged = %q", got)
	}
	if got := truncate("a long title that overflows", 10); got != "a long ti…" {
		t.Errorf("truncate = %q", got)
	}
}

func TestWordWrap(t *testing.T) {
	if got := wordWrap("one two three four", 9); got != "one two\nthree\nfour" {
		t.Errorf("wordWrap = %q", got)
	}
	if got := wordWrap("", 10); got != "" {
		t.Errorf("wordWrap empty = %q", got)
	}
}
