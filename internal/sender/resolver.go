// Package sender resolves the sender identity a user is actually allowed
// to send with. Approval policy lives in the platform backend; the engine
// only consumes the resolved value.
package sender

import (
	"context"
	"strings"
)

// Resolver is the collaborator capability the orchestrator calls to turn a
// requested sender id into the approved one. An empty result means the
// platform default should be used.
type Resolver interface {
	ResolveEffectiveSenderID(ctx context.Context, userID, requested string) (string, error)
}

// StaticResolver resolves sender ids against an in-memory approval table.
// It backs development setups and tests; production wires the platform
// backend's resolver instead.
type StaticResolver struct {
	approved map[string]map[string]struct{}
}

// NewStaticResolver builds a resolver from a user id to approved sender id
// mapping.
func NewStaticResolver(approved map[string][]string) *StaticResolver {
	table := make(map[string]map[string]struct{}, len(approved))
	for userID, ids := range approved {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id != "" {
				set[id] = struct{}{}
			}
		}
		table[userID] = set
	}
	return &StaticResolver{approved: table}
}

// ResolveEffectiveSenderID returns the requested sender id when the user
// has it approved, otherwise an empty string so the caller falls back to
// the platform default.
func (r *StaticResolver) ResolveEffectiveSenderID(_ context.Context, userID, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return "", nil
	}
	if set, ok := r.approved[userID]; ok {
		if _, ok := set[requested]; ok {
			return requested, nil
		}
	}
	return "", nil
}
