package eutils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// esearchResponse represents the raw JSON response from ESearch.
type esearchResponse struct {
	Result esearchResult `json:"esearchresult"`
}

type esearchResult struct {
	Count            string   `json:"count"`
	IDList           []string `json:"idlist"`
	QueryTranslation string   `json:"querytranslation"`
}

// Search performs an ESearch query against PubMed sorted by relevance.
// A zero-hit query returns an empty ID list, not an error.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (*SearchResult, error) {
	if query == "" {
		return nil, &SearchError{Query: query, Err: fmt.Errorf("search query cannot be empty")}
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmode", "json")
	params.Set("sort", "relevance")

	limit := DefaultMaxResults
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.Sort != "" {
			params.Set("sort", opts.Sort)
		}
	}
	params.Set("retmax", strconv.Itoa(limit))

	body, err := c.DoGet(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, &SearchError{Query: query, Err: err}
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &SearchError{Query: query, Err: fmt.Errorf("parsing search response: %w", err)}
	}

	count, _ := strconv.Atoi(resp.Result.Count)

	return &SearchResult{
		Count:            count,
		IDs:              resp.Result.IDList,
		QueryTranslation: resp.Result.QueryTranslation,
	}, nil
}
