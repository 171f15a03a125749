package audit

import (
	"context"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/lusosms/dispatch-engine/internal/models"
)

// LogRecorder writes finalized dispatch results to the structured log. It
// is the default audit sink when neither Kafka nor Postgres is configured.
type LogRecorder struct {
	logger zerolog.Logger
}

// NewLogRecorder constructs a LogRecorder.
func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &LogRecorder{logger: logger}
}

// Record implements dispatch.AttemptLogger.
func (r *LogRecorder) Record(_ context.Context, result *models.DispatchResult) error {
	r.logger.Info().
		Str("dispatch_id", result.DispatchID).
		Str("user_id", result.UserID).
		Str("country", result.Country.String()).
		Str("gateway", result.FinalResult.Gateway.String()).
		Str("sender_id", result.EffectiveSenderID).
		Bool("success", result.FinalResult.Success).
		Bool("fallback_used", result.FallbackUsed).
		Int("attempts", len(result.Attempts)).
		Int("cost", result.FinalResult.Cost).
		Msg("dispatch finalized")
	return nil
}

// Multi fans a dispatch result out to several recorders, returning the
// first error after every recorder has been given the result.
type Multi []Recorder

// Recorder mirrors dispatch.AttemptLogger without importing it, keeping
// the dependency direction pointing at this package.
type Recorder interface {
	Record(ctx context.Context, result *models.DispatchResult) error
}

// Record implements dispatch.AttemptLogger.
func (m Multi) Record(ctx context.Context, result *models.DispatchResult) error {
	var first error
	for _, recorder := range m {
		if err := recorder.Record(ctx, result); err != nil && first == nil {
			first = err
		}
	}
	return first
}
