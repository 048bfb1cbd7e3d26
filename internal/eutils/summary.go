package eutils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// esummaryEnvelope is the raw ESummary JSON: a "result" object keyed by PMID
// plus a "uids" list.
type esummaryEnvelope struct {
	Result map[string]json.RawMessage `json:"result"`
}

// Summaries performs a single batched ESummary call. PMIDs missing from the
// upstream result are absent from the returned map; that is not an error.
func (c *Client) Summaries(ctx context.Context, pmids []string) (map[string]Summary, error) {
	if len(pmids) == 0 {
		return map[string]Summary{}, nil
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "json")

	body, err := c.DoGet(ctx, "esummary.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("summary request failed: %w", err)
	}

	var envelope esummaryEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parsing summary response: %w", err)
	}

	out := make(map[string]Summary, len(pmids))
	for _, pmid := range pmids {
		raw, ok := envelope.Result[pmid]
		if !ok {
			continue
		}
		var s Summary
		if err := json.Unmarshal(raw, &s); err != nil {
			// One malformed record does not poison the batch.
			continue
		}
		s.PMID = pmid
		out[pmid] = s
	}
	return out, nil
}

// SummaryByPMID is the single-article convenience lookup. It returns nil
// (not an error) when the upstream has no entry for the PMID.
func (c *Client) SummaryByPMID(ctx context.Context, pmid string) (*Summary, error) {
	summaries, err := c.Summaries(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	s, ok := summaries[pmid]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
