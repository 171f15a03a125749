package models

import (
	"fmt"
	"strings"
)

// GatewayID identifies an upstream SMS provider integration.
type GatewayID string

const (
	// GatewayBulkSMS is the international provider reached over a single
	// HTTP POST with basic authentication.
	GatewayBulkSMS GatewayID = "bulksms"
	// GatewayMimo is the lusophone-market provider that exposes two
	// incompatible protocol versions behind one logical service.
	GatewayMimo GatewayID = "mimo"
)

// String implements fmt.Stringer.
func (g GatewayID) String() string { return string(g) }

// GatewayOverride is a process-wide administrative routing override. It is
// read once per dispatch and forces the chosen gateway to become primary
// regardless of the destination country.
type GatewayOverride string

const (
	OverrideNone         GatewayOverride = "none"
	OverrideForceBulkSMS GatewayOverride = "force_bulksms"
	OverrideForceMimo    GatewayOverride = "force_mimo"
)

// ParseOverride converts a stored override value into a GatewayOverride.
// Empty values map to OverrideNone so an unset admin key behaves like no
// override at all.
func ParseOverride(value string) (GatewayOverride, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(OverrideNone):
		return OverrideNone, nil
	case string(OverrideForceBulkSMS):
		return OverrideForceBulkSMS, nil
	case string(OverrideForceMimo):
		return OverrideForceMimo, nil
	default:
		return OverrideNone, fmt.Errorf("unknown gateway override %q", value)
	}
}
