package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lusosms/dispatch-engine/internal/models"
)

// AttemptRepository stores one row per provider attempt in the
// dispatch_attempts table:
//
//	dispatch_id  text, attempt_no int, gateway text, success bool,
//	provider_message_id text, error text, cost int, fallback_used bool,
//	country text, sender_id text, user_id text, attempted_at timestamptz
type AttemptRepository struct {
	DB *sql.DB
}

// NewAttemptRepository constructs an AttemptRepository.
func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

const insertAttempt = `
	INSERT INTO dispatch_attempts
	(dispatch_id, attempt_no, gateway, success, provider_message_id, error, cost, fallback_used, country, sender_id, user_id, attempted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// Record implements dispatch.AttemptLogger, inserting every attempt of the
// finalized result.
func (r *AttemptRepository) Record(ctx context.Context, result *models.DispatchResult) error {
	for i, attempt := range result.Attempts {
		_, err := r.DB.ExecContext(ctx, insertAttempt,
			result.DispatchID,
			i+1,
			attempt.Gateway.String(),
			attempt.Result.Success,
			nullable(attempt.Result.MessageID),
			nullable(attempt.Result.Error),
			attempt.Result.Cost,
			result.FallbackUsed,
			result.Country.String(),
			result.EffectiveSenderID,
			result.UserID,
			attempt.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("repository: insert attempt %d for dispatch %s: %w", i+1, result.DispatchID, err)
		}
	}
	return nil
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
