package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientCredits is returned when a debit would take a balance
// below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// CreditRepository debits user balances and appends to the credit ledger.
// The guarded UPDATE serializes concurrent debits per user; idempotency
// across client retries of the same logical message is the platform's
// responsibility upstream of the dispatch boundary.
type CreditRepository struct {
	DB *sql.DB
}

// NewCreditRepository constructs a CreditRepository.
func NewCreditRepository(db *sql.DB) *CreditRepository {
	return &CreditRepository{DB: db}
}

// Debit implements dispatch.CreditLedger. It subtracts credits from the
// user's balance and records the movement in the same transaction.
func (r *CreditRepository) Debit(ctx context.Context, userID, dispatchID string, credits int) error {
	if credits <= 0 {
		return nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin debit tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE user_credits
		SET balance = balance - $1, updated_at = $2
		WHERE user_id = $3 AND balance >= $1
	`, credits, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("repository: debit balance for %s: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: debit rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("repository: user %s: %w", userID, ErrInsufficientCredits)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credit_ledger (user_id, dispatch_id, delta, created_at)
		VALUES ($1, $2, $3, $4)
	`, userID, dispatchID, -credits, time.Now())
	if err != nil {
		return fmt.Errorf("repository: insert ledger entry for %s: %w", dispatchID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: commit debit tx: %w", err)
	}
	return nil
}
