// Package dispatch sequences a single outbound message through provider
// selection, the primary send, the optional fallback send, cost computation
// and the audit side effects.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lusosms/dispatch-engine/internal/cost"
	"github.com/lusosms/dispatch-engine/internal/country"
	"github.com/lusosms/dispatch-engine/internal/gateway"
	"github.com/lusosms/dispatch-engine/internal/models"
	"github.com/lusosms/dispatch-engine/internal/override"
	"github.com/lusosms/dispatch-engine/internal/routing"
	"github.com/lusosms/dispatch-engine/internal/sender"
)

// ValidationError reports a malformed dispatch request. It is the only
// error the orchestrator returns; every provider-level failure is captured
// inside the DispatchResult instead.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid dispatch request: %s %s", e.Field, e.Reason)
}

// AttemptLogger persists a finalized dispatch result. Implementations are
// best-effort: their failures are logged and never surface to the caller.
type AttemptLogger interface {
	Record(ctx context.Context, result *models.DispatchResult) error
}

// CreditLedger debits credits from a user's balance after a successful
// dispatch. Per-user serialization and idempotency live behind this
// interface, not in the orchestrator.
type CreditLedger interface {
	Debit(ctx context.Context, userID, dispatchID string, credits int) error
}

// Config contains the orchestrator's tunables.
type Config struct {
	// DefaultSenderID is used when sender id resolution yields nothing.
	DefaultSenderID string
}

// Dependencies collects the runtime collaborators required by the
// orchestrator.
type Dependencies struct {
	Gateways      gateway.Registry
	Resolver      sender.Resolver
	Override      override.Source
	AttemptLogger AttemptLogger
	Ledger        CreditLedger
	Logger        zerolog.Logger
	Now           func() time.Time
}

// state enumerates the dispatch state machine. The shape of the machine,
// not convention, is what caps a dispatch at two attempts.
type state int

const (
	stateAttemptPrimary state = iota
	stateAttemptFallback
	stateDone
)

// Orchestrator runs the dispatch state machine for one message at a time.
// Instances are safe for concurrent use; every call operates on its own
// DispatchResult.
type Orchestrator struct {
	cfg           Config
	gateways      gateway.Registry
	resolver      sender.Resolver
	override      override.Source
	attemptLogger AttemptLogger
	ledger        CreditLedger
	logger        zerolog.Logger
	now           func() time.Time
}

// New constructs an Orchestrator, validating that both provider adapters
// are registered so gateway lookups cannot fail mid-dispatch.
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	if cfg.DefaultSenderID == "" {
		return nil, errors.New("dispatch: default sender id must be provided")
	}
	for _, id := range []models.GatewayID{models.GatewayBulkSMS, models.GatewayMimo} {
		if _, err := deps.Gateways.Get(id); err != nil {
			return nil, fmt.Errorf("dispatch: %w", err)
		}
	}
	if deps.Resolver == nil {
		return nil, errors.New("dispatch: sender resolver dependency is required")
	}
	if deps.Override == nil {
		return nil, errors.New("dispatch: override source dependency is required")
	}
	if deps.AttemptLogger == nil {
		return nil, errors.New("dispatch: attempt logger dependency is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("dispatch: credit ledger dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "dispatch_orchestrator").Logger()

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	return &Orchestrator{
		cfg:           cfg,
		gateways:      deps.Gateways,
		resolver:      deps.Resolver,
		override:      deps.Override,
		attemptLogger: deps.AttemptLogger,
		ledger:        deps.Ledger,
		logger:        logger,
		now:           nowFunc,
	}, nil
}

// Dispatch routes one message. It returns an error only for malformed
// input; provider failures, including both attempts failing, come back as
// a normal DispatchResult with FinalResult.Success=false.
func (o *Orchestrator) Dispatch(ctx context.Context, userID string, msg *models.OutboundMessage) (*models.DispatchResult, error) {
	if err := validate(userID, msg); err != nil {
		return nil, err
	}

	result := &models.DispatchResult{
		DispatchID: uuid.NewString(),
		UserID:     userID,
		CreatedAt:  o.now().UTC(),
	}

	log := o.logger.With().Str("dispatch_id", result.DispatchID).Str("user_id", userID).Logger()

	result.EffectiveSenderID = o.resolveSenderID(ctx, log, userID, msg.From)

	result.Country = country.Detect(msg.To)
	if result.Country == models.CountryUnknown {
		log.Warn().Str("to", msg.To).Msg("destination country not recognized, routing via default gateway")
	}

	ov := o.currentOverride(ctx, log)
	if ov != models.OverrideNone {
		result.OverrideUsed = ov
	}

	primaryID, fallbackID := routing.Select(result.Country, ov)
	log.Debug().
		Str("country", result.Country.String()).
		Str("primary", primaryID.String()).
		Str("fallback", fallbackID.String()).
		Msg("gateways selected")

	req := &gateway.SendRequest{
		To:        msg.To,
		Country:   result.Country,
		SenderID:  result.EffectiveSenderID,
		Text:      msg.Text,
		Unicode:   cost.IsUnicode(msg.Text),
		Reference: msg.CampaignID,
	}

	for st := stateAttemptPrimary; st != stateDone; {
		switch st {
		case stateAttemptPrimary:
			attempt := o.attempt(ctx, log, o.gateways[primaryID], req)
			result.Attempts = append(result.Attempts, attempt)
			switch {
			case attempt.Result.Success:
				st = stateDone
			case ctx.Err() != nil:
				// Caller gave up; do not start the fallback send.
				log.Warn().Msg("dispatch cancelled after primary attempt, skipping fallback")
				st = stateDone
			default:
				st = stateAttemptFallback
			}
		case stateAttemptFallback:
			attempt := o.attempt(ctx, log, o.gateways[fallbackID], req)
			result.Attempts = append(result.Attempts, attempt)
			st = stateDone
		}
	}

	o.finalize(result, msg.Text)
	o.sideEffects(ctx, log, result)

	return result, nil
}

func validate(userID string, msg *models.OutboundMessage) error {
	if userID == "" {
		return &ValidationError{Field: "userId", Reason: "is required"}
	}
	if msg == nil {
		return &ValidationError{Field: "message", Reason: "is required"}
	}
	if msg.To == "" {
		return &ValidationError{Field: "message.to", Reason: "is required"}
	}
	if msg.Text == "" {
		return &ValidationError{Field: "message.text", Reason: "is required"}
	}
	return nil
}

func (o *Orchestrator) resolveSenderID(ctx context.Context, log zerolog.Logger, userID, requested string) string {
	resolved, err := o.resolver.ResolveEffectiveSenderID(ctx, userID, requested)
	if err != nil {
		log.Warn().Err(err).Msg("sender id resolution failed, using platform default")
		return o.cfg.DefaultSenderID
	}
	if resolved == "" {
		return o.cfg.DefaultSenderID
	}
	return resolved
}

func (o *Orchestrator) currentOverride(ctx context.Context, log zerolog.Logger) models.GatewayOverride {
	ov, err := o.override.Current(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("override lookup failed, proceeding without override")
		return models.OverrideNone
	}
	return ov
}

// attempt invokes one gateway exactly once and records its outcome. The
// returned attempt always carries a usable SendResult, failed or not.
func (o *Orchestrator) attempt(ctx context.Context, log zerolog.Logger, gw gateway.Gateway, req *gateway.SendRequest) models.DispatchAttempt {
	start := o.now().UTC()
	res, err := gw.Send(ctx, req)
	duration := o.now().Sub(start)

	if res == nil {
		res = &models.SendResult{Gateway: gw.ID()}
	}
	if err != nil && res.Error == "" {
		res.Error = err.Error()
	}

	event := log.With().
		Str("gateway", gw.ID().String()).
		Dur("duration", duration).
		Logger()
	if err != nil {
		event.Warn().Str("error_class", errorClass(err)).Err(err).Msg("gateway attempt failed")
	} else {
		event.Info().Str("provider_id", res.MessageID).Msg("gateway attempt succeeded")
	}

	return models.DispatchAttempt{Gateway: gw.ID(), Result: *res, Timestamp: start}
}

// finalize pins the invariants: the final result is the last attempt's
// result, fallbackUsed mirrors the attempt count, and cost is computed only
// for a successful final attempt.
func (o *Orchestrator) finalize(result *models.DispatchResult, text string) {
	last := len(result.Attempts) - 1
	if result.Attempts[last].Result.Success {
		result.Attempts[last].Result.Cost = cost.Segments(text)
	}
	result.FinalResult = result.Attempts[last].Result
	result.FallbackUsed = len(result.Attempts) == 2
}

// sideEffects hands the finalized result to the audit logger and, on
// success, debits the credit ledger. Both are best-effort: a failure here
// is reported as a warning and never alters the outcome already decided.
func (o *Orchestrator) sideEffects(ctx context.Context, log zerolog.Logger, result *models.DispatchResult) {
	if err := o.attemptLogger.Record(ctx, result); err != nil {
		log.Warn().Err(err).Msg("attempt logging failed")
	}
	if !result.FinalResult.Success {
		return
	}
	if err := o.ledger.Debit(ctx, result.UserID, result.DispatchID, result.FinalResult.Cost); err != nil {
		log.Warn().Int("credits", result.FinalResult.Cost).Err(err).Msg("credit debit failed")
	}
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, gateway.ErrPhoneFormat):
		return "phone_format"
	case errors.Is(err, gateway.ErrAuth):
		return "auth"
	case errors.Is(err, gateway.ErrRejected):
		return "rejected"
	case errors.Is(err, gateway.ErrNetwork):
		return "network"
	default:
		return "unknown"
	}
}
