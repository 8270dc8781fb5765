// Package providers holds the per-source visibility adapters. Every adapter
// turns its own failures (timeout, auth, transport, malformed body) into a
// hidden+error ProviderResult instead of returning an error.
package providers

import (
	"context"

	"github.com/blogspy/backend/internal/models"
)

// Adapter queries one signal source for brand visibility.
type Adapter interface {
	ID() models.ProviderID
	Fetch(ctx context.Context, query string, brand models.Brand) models.ProviderResult
}

// Error messages carried in ProviderResult.Error.
const (
	ErrMsgTimeout     = "timeout"
	ErrMsgNoAPIKey    = "missing api key"
	ErrMsgMalformed   = "malformed response"
	ErrMsgRateLimited = "rate limited"
	ErrMsgUnreachable = "provider unreachable"
)
