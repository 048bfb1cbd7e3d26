package eutils

import (
	"github.com/henrybloomingdale/clinlit/internal/ncbi"
)

const (
	// DefaultBaseURL is the NCBI E-utilities base URL.
	DefaultBaseURL = ncbi.DefaultBaseURL
	// DefaultMaxResults bounds an esearch when the caller gives no limit.
	DefaultMaxResults = 30

	// Abstract enrichment batching.
	abstractBatchSize = 10
)

// Client is an HTTP client for NCBI E-utilities.
// It embeds ncbi.BaseClient for shared rate limiting, common parameters,
// and response size guards.
type Client struct {
	*ncbi.BaseClient
}

// Option configures a Client (alias for ncbi.Option).
type Option = ncbi.Option

// Re-export ncbi options so callers configure the client in one place.
var (
	WithBaseURL    = ncbi.WithBaseURL
	WithAPIKey     = ncbi.WithAPIKey
	WithTool       = ncbi.WithTool
	WithEmail      = ncbi.WithEmail
	WithHTTPClient = ncbi.WithHTTPClient
)

// NewClient creates a new E-utilities client with the given options.
func NewClient(opts ...Option) *Client {
	return &Client{BaseClient: ncbi.NewBaseClient(opts...)}
}

// NewClientWithBase creates a new E-utilities client using an existing base
// client. Use this to share rate limiters across eutils and mesh clients.
func NewClientWithBase(base *ncbi.BaseClient) *Client {
	return &Client{BaseClient: base}
}
