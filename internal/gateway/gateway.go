// Package gateway defines the capability every upstream SMS provider
// integration implements, plus the error taxonomy adapters use to classify
// provider failures for the orchestrator.
package gateway

import (
	"context"
	"fmt"

	"github.com/lusosms/dispatch-engine/internal/models"
)

// SendRequest is the provider-agnostic payload an adapter translates into
// its provider's wire protocol. The orchestrator builds exactly one of
// these per dispatch and reuses it for the fallback attempt.
type SendRequest struct {
	// To is the destination number after separator stripping.
	To string
	// Country is the detected destination market, forwarded to providers
	// whose protocol wants it.
	Country models.CountryCode
	// SenderID is the effective, approved sender identity.
	SenderID string
	// Text is the message body.
	Text string
	// Unicode indicates the body contains non-ASCII characters.
	Unicode bool
	// Reference optionally carries the campaign id for provider-side
	// correlation.
	Reference string
}

// Gateway is the capability implemented by each provider adapter. Send
// performs exactly one network call pattern per invocation; retrying across
// providers is the orchestrator's job, never the adapter's. The returned
// SendResult is always non-nil so failed attempts remain auditable; the
// error, when non-nil, carries the classification sentinels from this
// package.
type Gateway interface {
	ID() models.GatewayID
	Send(ctx context.Context, req *SendRequest) (*models.SendResult, error)
}

// Registry maps gateway identifiers onto their adapters. It is assembled
// once at startup, keyed by the typed GatewayID.
type Registry map[models.GatewayID]Gateway

// Get returns the adapter registered for the supplied identifier.
func (r Registry) Get(id models.GatewayID) (Gateway, error) {
	gw, ok := r[id]
	if !ok {
		return nil, fmt.Errorf("gateway: no adapter registered for %q", id)
	}
	return gw, nil
}
