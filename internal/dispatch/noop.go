package dispatch

import "context"

// NopLedger satisfies CreditLedger for deployments where billing is
// handled entirely by the platform backend consuming audit events.
type NopLedger struct{}

// Debit implements CreditLedger.
func (NopLedger) Debit(context.Context, string, string, int) error { return nil }
