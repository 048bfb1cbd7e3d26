// Package mesh looks up MeSH descriptors, used to help clinicians refine
// a search strategy with controlled vocabulary.
package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/henrybloomingdale/clinlit/internal/ncbi"
)

// Record is one MeSH descriptor.
type Record struct {
	UI          string   `json:"ui"`
	Name        string   `json:"name"`
	ScopeNote   string   `json:"scope_note,omitempty"`
	TreeNumbers []string `json:"tree_numbers,omitempty"`
	EntryTerms  []string `json:"entry_terms,omitempty"`
	Annotation  string   `json:"annotation,omitempty"`
}

// Clause renders the descriptor as a PubMed search clause: the preferred
// term plus up to three entry terms, OR-joined.
func (r Record) Clause() string {
	terms := []string{fmt.Sprintf("%q[MeSH Terms]", r.Name)}
	for i, entry := range r.EntryTerms {
		if i == 3 {
			break
		}
		terms = append(terms, fmt.Sprintf("%q[tiab]", entry))
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

// Client looks up descriptors in the NCBI mesh database. It shares the
// base client's rate limiting with the PubMed client.
type Client struct {
	*ncbi.BaseClient
}

func NewClient(base *ncbi.BaseClient) *Client {
	return &Client{BaseClient: base}
}

type searchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// Lookup resolves a term to its MeSH descriptor record.
func (c *Client) Lookup(ctx context.Context, term string) (*Record, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("MeSH term cannot be empty")
	}

	params := url.Values{}
	params.Set("db", "mesh")
	params.Set("term", term)
	params.Set("retmode", "json")

	body, err := c.DoGet(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("MeSH search failed: %w", err)
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing MeSH search response: %w", err)
	}
	if len(resp.Result.IDList) == 0 {
		return nil, fmt.Errorf("MeSH term %q not found", term)
	}

	return c.fetch(ctx, resp.Result.IDList[0])
}

func (c *Client) fetch(ctx context.Context, uid string) (*Record, error) {
	params := url.Values{}
	params.Set("db", "mesh")
	params.Set("id", uid)
	params.Set("rettype", "full")
	params.Set("retmode", "text")

	body, err := c.DoGet(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("MeSH fetch failed: %w", err)
	}
	record := parseRecord(string(body))
	return &record, nil
}

// parseRecord decodes the NCBI MeSH flat-file format ("KEY = value"
// lines, one record per *NEWRECORD block).
func parseRecord(text string) Record {
	var record Record
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "*NEWRECORD" {
			continue
		}
		key, value, found := strings.Cut(line, " = ")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "MH":
			record.Name = value
		case "UI":
			record.UI = value
		case "MS":
			record.ScopeNote = value
		case "MN":
			record.TreeNumbers = append(record.TreeNumbers, value)
		case "AN":
			record.Annotation = value
		case "ENTRY", "PRINT ENTRY":
			// Entry terms carry qualifiers after a pipe: "FXS|T047|...".
			entry, _, _ := strings.Cut(value, "|")
			record.EntryTerms = append(record.EntryTerms, strings.TrimSpace(entry))
		}
	}
	return record
}
