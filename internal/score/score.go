// Package score ranks articles against a clinical question with a
// deterministic weighted rubric over study design, bibliometrics,
// recency, and keyword overlap.
package score

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/henrybloomingdale/clinlit/internal/article"
	"github.com/henrybloomingdale/clinlit/internal/strategy"
)

// Scored pairs an article with its relevance score and the per-dimension
// rationale behind it.
type Scored struct {
	Article   *article.Article `json:"article"`
	Score     int              `json:"score"`
	Rationale []string         `json:"rationale"`
}

// Study-type weights, matched first to last against the title.
var studyTypes = []struct {
	label  string
	points int
}{
	{"meta-analysis", 15},
	{"meta analysis", 15},
	{"systematic review", 12},
	{"randomized controlled trial", 10},
	{"randomised controlled trial", 10},
	{"narrative review", 7},
	{"cohort", 5},
	{"case-control", 5},
	{"case control", 5},
}

var qualityMesh = []string{"double-blind", "placebo-controlled", "multicenter"}

var prestigiousJournals = []string{
	"N Engl J Med", "New England Journal", "NEJM",
	"Lancet", "JAMA", "BMJ", "Annals", "Nature", "Science",
	"Cell", "Circulation", "Ophthalmology", "Journal of", "Archives of",
}

// Score computes the deterministic relevance of one article for the
// question. It is a pure function of its inputs and the current year.
func Score(a *article.Article, question string) (int, []string) {
	return scoreAt(a, question, time.Now().Year())
}

func scoreAt(a *article.Article, question string, nowYear int) (int, []string) {
	total := 0
	var rationale []string
	add := func(points int, reason string) {
		if points <= 0 {
			return
		}
		total += points
		rationale = append(rationale, fmt.Sprintf("%s: +%d", reason, points))
	}

	titleLower := strings.ToLower(a.Title)
	for _, st := range studyTypes {
		if strings.Contains(titleLower, st.label) {
			add(st.points, "study type ("+st.label+")")
			break
		}
	}

	meshPoints := 0
	for _, term := range a.MeshTerms {
		lower := strings.ToLower(term)
		for _, q := range qualityMesh {
			if strings.Contains(lower, q) {
				meshPoints += 2
			}
		}
	}
	add(min(meshPoints, 5), "methodological MeSH terms")

	if a.ICite != nil {
		if a.ICite.RCR != nil {
			add(tierRCR(*a.ICite.RCR), fmt.Sprintf("relative citation ratio %.2f", *a.ICite.RCR))
		}
		if a.ICite.NIHPercentile != nil {
			add(tierPercentile(*a.ICite.NIHPercentile), fmt.Sprintf("NIH percentile %.0f", *a.ICite.NIHPercentile))
		}
		if a.ICite.CitationsPerYear != nil {
			add(tierCitationsPerYear(*a.ICite.CitationsPerYear), fmt.Sprintf("citations per year %.1f", *a.ICite.CitationsPerYear))
		}
		if a.ICite.APTScore != nil {
			add(tierAPT(*a.ICite.APTScore), fmt.Sprintf("translational potential %.2f", *a.ICite.APTScore))
		}
	}

	if a.Year > 0 {
		age := nowYear - a.Year
		switch {
		case age <= 2:
			add(10, fmt.Sprintf("published within 2 years (%d)", a.Year))
		case age <= 5:
			add(7, fmt.Sprintf("published within 5 years (%d)", a.Year))
		case age <= 10:
			add(3, fmt.Sprintf("published within 10 years (%d)", a.Year))
		}
	}

	keywords := strategy.Keywords(question)
	titleHits, abstractHits := 0, 0
	abstractLower := strings.ToLower(a.Abstract)
	for _, kw := range keywords {
		if strings.Contains(titleLower, kw) {
			titleHits++
		}
		if strings.Contains(abstractLower, kw) {
			abstractHits++
		}
	}
	add(min(titleHits*3, 12), fmt.Sprintf("question keywords in title (%d)", titleHits))
	add(min(abstractHits, 8), fmt.Sprintf("question keywords in abstract (%d)", abstractHits))

	journalLower := strings.ToLower(a.Journal)
	for _, j := range prestigiousJournals {
		if journalLower != "" && strings.Contains(journalLower, strings.ToLower(j)) {
			add(5, "high-impact journal")
			break
		}
	}

	return min(total, 100), rationale
}

func tierRCR(rcr float64) int {
	switch {
	case rcr > 2.0:
		return 15
	case rcr >= 1.5:
		return 12
	case rcr >= 1.0:
		return 8
	case rcr >= 0.5:
		return 4
	default:
		return 1
	}
}

func tierPercentile(p float64) int {
	switch {
	case p > 90:
		return 10
	case p >= 75:
		return 7
	case p >= 50:
		return 4
	default:
		return 1
	}
}

func tierCitationsPerYear(c float64) int {
	switch {
	case c >= 10:
		return 5
	case c >= 5:
		return 3
	case c >= 1:
		return 1
	default:
		return 0
	}
}

func tierAPT(apt float64) int {
	switch {
	case apt > 0.8:
		return 15
	case apt >= 0.6:
		return 10
	case apt >= 0.4:
		return 5
	default:
		return 1
	}
}

// Rank scores every article and returns them best first. Ties break on
// the most recent year, then ascending PMID.
func Rank(articles []*article.Article, question string) []Scored {
	return rankAt(articles, question, time.Now().Year())
}

func rankAt(articles []*article.Article, question string, nowYear int) []Scored {
	out := make([]Scored, 0, len(articles))
	for _, a := range articles {
		s, why := scoreAt(a, question, nowYear)
		out = append(out, Scored{Article: a, Score: s, Rationale: why})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Article.Year != out[j].Article.Year {
			return out[i].Article.Year > out[j].Article.Year
		}
		return out[i].Article.PMID < out[j].Article.PMID
	})
	return out
}
