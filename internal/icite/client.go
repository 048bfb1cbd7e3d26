// Package icite provides a client for the NIH iCite bibliometrics API.
package icite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the NIH iCite API base URL.
	DefaultBaseURL = "https://icite.od.nih.gov"

	// requestsPerSecond paces calls to the public endpoint.
	requestsPerSecond = 5

	// maxResponseBytes guards against unbounded reads (10 MB).
	maxResponseBytes int64 = 10 * 1024 * 1024
)

// Metrics holds the bibliometric fields the scorer consumes. All fields are
// optional; absent upstream values stay nil.
type Metrics struct {
	RCR               *float64 `json:"rcr,omitempty"`
	NIHPercentile     *float64 `json:"nih_percentile,omitempty"`
	APTScore          *float64 `json:"apt_score,omitempty"`
	CitationCount     *float64 `json:"citation_count,omitempty"`
	CitationsPerYear  *float64 `json:"citations_per_year,omitempty"`
	ClinicalCitations *float64 `json:"clinical_citations,omitempty"`
}

// Client is an HTTP client for the iCite pubs endpoint.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the base URL for requests. Empty values are ignored.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.BaseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// NewClient creates a new iCite client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pubsResponse is the raw iCite payload.
type pubsResponse struct {
	Data []pubRecord `json:"data"`
}

// pubRecord is one article record. PMID arrives as a JSON number.
type pubRecord struct {
	PMID              json.Number `json:"pmid"`
	RCR               *float64    `json:"relative_citation_ratio"`
	NIHPercentile     *float64    `json:"nih_percentile"`
	APT               *float64    `json:"apt"`
	CitationCount     *float64    `json:"citation_count"`
	CitationsPerYear  *float64    `json:"citations_per_year"`
	ClinicalCitations *float64    `json:"citations_clin"`
}

// Fetch retrieves bibliometrics for the given PMIDs in one call. PMIDs the
// upstream does not know are absent from the map.
func (c *Client) Fetch(ctx context.Context, pmids []string) (map[string]Metrics, error) {
	if len(pmids) == 0 {
		return nil, fmt.Errorf("at least one PMID is required")
	}

	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.JoinPath(c.BaseURL, "api", "pubs")
	if err != nil {
		return nil, fmt.Errorf("building URL: %w", err)
	}
	params := url.Values{}
	params.Set("pmids", strings.Join(pmids, ","))
	fullURL := u + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("iCite returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var payload pubsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing iCite response: %w", err)
	}

	out := make(map[string]Metrics, len(payload.Data))
	for _, rec := range payload.Data {
		pmid := rec.PMID.String()
		if pmid == "" {
			continue
		}
		out[pmid] = Metrics{
			RCR:               rec.RCR,
			NIHPercentile:     rec.NIHPercentile,
			APTScore:          rec.APT,
			CitationCount:     rec.CitationCount,
			CitationsPerYear:  rec.CitationsPerYear,
			ClinicalCitations: rec.ClinicalCitations,
		}
	}
	return out, nil
}
