// Package override exposes the administrative gateway override. The value
// is read once per dispatch so an operator can steer traffic to a specific
// provider without redeploying.
package override

import (
	"context"

	"github.com/lusosms/dispatch-engine/internal/models"
)

// Source yields the current administrative override.
type Source interface {
	Current(ctx context.Context) (models.GatewayOverride, error)
}

// Static always returns the same override value. It serves deployments
// without a Redis admin store.
type Static models.GatewayOverride

// Current implements Source. The zero value reads as no override.
func (s Static) Current(context.Context) (models.GatewayOverride, error) {
	if s == "" {
		return models.OverrideNone, nil
	}
	return models.GatewayOverride(s), nil
}
