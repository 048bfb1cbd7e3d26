// Package article defines the canonical bibliographic record assembled
// from esummary, efetch, and iCite payloads.
package article

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/henrybloomingdale/clinlit/internal/eutils"
	"github.com/henrybloomingdale/clinlit/internal/icite"
)

// PlaceholderTitle replaces blank or generic upstream titles.
const PlaceholderTitle = "Título no disponible"

// MinAbstractLength is the shortest abstract considered substantive
// enough for detailed analysis.
const MinAbstractLength = 50

// Generic titles treated the same as a missing title.
var titleDenylist = map[string]bool{
	"untitled":             true,
	"no title":             true,
	"no title available":   true,
	"[not available]":      true,
	"not available":        true,
	"n/a":                  true,
	"sin título":           true,
	"sin titulo":           true,
	"título no disponible": true,
}

// Author is one credited author.
type Author struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Article is the normalized record the pipeline scores and analyzes.
type Article struct {
	PMID            string         `json:"pmid"`
	DOI             string         `json:"doi,omitempty"`
	Title           string         `json:"title"`
	Authors         []Author       `json:"authors"`
	PublicationDate string         `json:"publication_date,omitempty"`
	Year            int            `json:"year,omitempty"`
	Journal         string         `json:"journal,omitempty"`
	Abstract        string         `json:"abstract,omitempty"`
	MeshTerms       []string       `json:"mesh_terms,omitempty"`
	ICite           *icite.Metrics `json:"icite,omitempty"`
}

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	yearRe       = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// FromSummary builds an Article from an esummary record. The title is
// always non-empty afterward and authors is always a sequence.
func FromSummary(s eutils.Summary) *Article {
	a := &Article{
		PMID:            s.PMID,
		DOI:             s.DOI(),
		Title:           SanitizeTitle(s.Title),
		PublicationDate: s.PubDate,
		Year:            yearFrom(s.PubDate),
		Journal:         journalFrom(s),
		Authors:         make([]Author, 0, len(s.Authors.List)),
	}
	for _, ra := range s.Authors.List {
		a.Authors = append(a.Authors, Author{Name: ra.Name, Role: ra.Role})
	}
	return a
}

// ApplyEnrichment merges the efetch payload into the article.
func (a *Article) ApplyEnrichment(e eutils.Enrichment) {
	a.Abstract = strings.TrimSpace(e.Abstract)
	a.MeshTerms = dedupe(e.MeshTerms)
}

// Analyzable reports whether the article carries enough substance for a
// detailed analysis: a real title, a substantive abstract, and at least
// one identifier.
func (a *Article) Analyzable() bool {
	if a.Title == PlaceholderTitle {
		return false
	}
	if len(a.Abstract) < MinAbstractLength {
		return false
	}
	return a.PMID != "" || a.DOI != ""
}

// AuthorLine formats the author list for display, truncated with "et al."
// past the third name.
func (a *Article) AuthorLine() string {
	names := make([]string, 0, len(a.Authors))
	for _, au := range a.Authors {
		if au.Name != "" {
			names = append(names, au.Name)
		}
	}
	switch {
	case len(names) == 0:
		return ""
	case len(names) <= 3:
		return strings.Join(names, ", ")
	default:
		return strings.Join(names[:3], ", ") + ", et al."
	}
}

// SanitizeTitle strips HTML tags, decodes entities, and collapses
// whitespace. Blank and generic titles become PlaceholderTitle.
func SanitizeTitle(raw string) string {
	t := htmlTagRe.ReplaceAllString(raw, "")
	t = html.UnescapeString(t)
	t = strings.TrimSpace(whitespaceRe.ReplaceAllString(t, " "))
	t = strings.TrimSuffix(t, ".")
	if t == "" || titleDenylist[strings.ToLower(t)] {
		return PlaceholderTitle
	}
	return t
}

// yearFrom pulls a four-digit year out of a pubdate like "2023 Mar 14".
func yearFrom(pubdate string) int {
	m := yearRe.FindString(pubdate)
	if m == "" {
		return 0
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return y
}

func journalFrom(s eutils.Summary) string {
	if s.FullJournal != "" {
		return s.FullJournal
	}
	return s.Source
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}
