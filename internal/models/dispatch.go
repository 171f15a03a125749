package models

import "time"

// SendResult is the normalized outcome of one provider attempt. It is
// produced once per attempt and never mutated afterwards. Provider failures
// are routine outcomes, so they live here as data instead of being raised
// as errors.
type SendResult struct {
	Success bool `json:"success"`
	// MessageID is the provider-assigned identifier, set on success only.
	MessageID string `json:"messageId,omitempty"`
	// Error carries the provider or transport failure description.
	Error string `json:"error,omitempty"`
	// Cost in credits. Populated only on the attempt that becomes the
	// final result, and only when that attempt succeeded.
	Cost int `json:"cost,omitempty"`
	// Gateway identifies which provider produced this result.
	Gateway GatewayID `json:"gateway"`
}

// DispatchAttempt records one provider invocation. A dispatch appends at
// most two of these: the primary attempt and, when it failed, the fallback.
type DispatchAttempt struct {
	Gateway   GatewayID  `json:"gateway"`
	Result    SendResult `json:"result"`
	Timestamp time.Time  `json:"timestamp"`
}

// DispatchResult is the finalized, auditable outcome of one dispatch call.
// Invariants: exactly one FinalResult, 1 or 2 attempts, FallbackUsed is
// true exactly when two attempts were made, and FinalResult equals the last
// attempt's result.
type DispatchResult struct {
	DispatchID        string            `json:"dispatchId"`
	UserID            string            `json:"userId"`
	FinalResult       SendResult        `json:"finalResult"`
	Attempts          []DispatchAttempt `json:"attempts"`
	FallbackUsed      bool              `json:"fallbackUsed"`
	EffectiveSenderID string            `json:"effectiveSenderId"`
	Country           CountryCode       `json:"country"`
	OverrideUsed      GatewayOverride   `json:"overrideUsed,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}
