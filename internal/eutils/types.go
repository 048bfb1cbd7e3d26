// Package eutils provides the PubMed client used by the query pipeline:
// esearch for PMID discovery, esummary for titles and identifiers, and
// efetch for abstracts and MeSH descriptors.
package eutils

import (
	"encoding/json"
	"fmt"
)

// SearchResult represents the result of an ESearch query.
type SearchResult struct {
	Count            int      `json:"count"`
	IDs              []string `json:"ids"`
	QueryTranslation string   `json:"query_translation,omitempty"`
}

// Summary holds the esummary metadata for one PMID.
type Summary struct {
	PMID        string      `json:"pmid"`
	Title       string      `json:"title"`
	PubDate     string      `json:"pubdate,omitempty"`
	Source      string      `json:"source,omitempty"`
	FullJournal string      `json:"fulljournalname,omitempty"`
	Authors     AuthorsRaw  `json:"authors"`
	ArticleIDs  []ArticleID `json:"articleids,omitempty"`
}

// ArticleID is one entry of the esummary articleids list.
type ArticleID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}

// DOI returns the DOI from the articleids list, or "".
func (s Summary) DOI() string {
	for _, id := range s.ArticleIDs {
		if id.IDType == "doi" {
			return id.Value
		}
	}
	return ""
}

// RawAuthor is a single author as esummary reports it.
type RawAuthor struct {
	Name string `json:"name"`
	Role string `json:"authtype,omitempty"`
}

// AuthorsRaw absorbs the three shapes the upstream uses for the authors
// field: a plain string, a single object, or a list of objects or strings.
// Decoding never fails on shape; unrecognized forms decode to empty.
type AuthorsRaw struct {
	List []RawAuthor
}

// UnmarshalJSON implements the tolerant decode.
func (a *AuthorsRaw) UnmarshalJSON(data []byte) error {
	a.List = nil
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	// List form: objects or bare strings, possibly mixed.
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		for _, item := range items {
			if au, ok := decodeOneAuthor(item); ok {
				a.List = append(a.List, au)
			}
		}
		return nil
	}

	if au, ok := decodeOneAuthor(data); ok {
		a.List = []RawAuthor{au}
	}
	return nil
}

// MarshalJSON round-trips as a plain list.
func (a AuthorsRaw) MarshalJSON() ([]byte, error) {
	if a.List == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.List)
}

func decodeOneAuthor(data json.RawMessage) (RawAuthor, bool) {
	var obj RawAuthor
	if err := json.Unmarshal(data, &obj); err == nil && obj.Name != "" {
		return obj, true
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		return RawAuthor{Name: s}, true
	}
	return RawAuthor{}, false
}

// Enrichment carries the efetch payload for one PMID.
type Enrichment struct {
	PMID      string   `json:"pmid"`
	Abstract  string   `json:"abstract"`
	MeshTerms []string `json:"mesh_terms,omitempty"`
}

// SearchOptions configures a search query.
type SearchOptions struct {
	Limit int    `json:"limit,omitempty"`
	Sort  string `json:"sort,omitempty"`
}

// SearchError wraps a failed esearch call. The orchestrator treats it as
// fatal for the whole request.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("pubmed search for %q failed: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }
