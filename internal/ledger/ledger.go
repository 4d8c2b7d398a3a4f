// Package ledger owns every mutation of a user's credit balance. Balances
// move only through Debit and Refund, each of which appends an immutable
// transaction log row used for reconciliation.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"luxgen/internal/domain"
	"luxgen/internal/infra"
	"luxgen/internal/sqlinline"
)

// Ledger performs atomic credit debits and refunds against the external store.
type Ledger struct {
	sql    infra.SQLExecutor
	logger infra.Logger
}

// New constructs a Ledger over the given SQL executor.
func New(sql infra.SQLExecutor, logger infra.Logger) *Ledger {
	return &Ledger{sql: sql, logger: logger}
}

// Meta is attached to every transaction log entry.
type Meta struct {
	JobID    string `json:"job_id,omitempty"`
	Provider string `json:"provider,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Balance returns the user's current credit balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	if err := l.sql.QueryRow(ctx, sqlinline.QSelectCredits, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("ledger: read balance: %w", err)
	}
	return balance, nil
}

// Debit removes amount credits from the user's balance. The primary path is
// a single conditional decrement so concurrent submissions cannot overspend.
// A SQL error on that path degrades to a read-then-write fallback, logged as
// a warning because the fallback races. Returns the new balance.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int, meta Meta) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("ledger: debit amount must be positive, got %d", amount)
	}

	var balance int
	err := l.sql.QueryRow(ctx, sqlinline.QDebitCredits, userID, amount).Scan(&balance)
	switch {
	case err == nil:
		// fall through to the log append
	case errors.Is(err, pgx.ErrNoRows):
		// No row matched: either the user is unknown or the balance is
		// short. Disambiguate with a plain read.
		current, balErr := l.Balance(ctx, userID)
		if balErr != nil {
			return 0, balErr
		}
		if current < amount {
			return current, domain.ErrInsufficientFunds
		}
		return current, fmt.Errorf("ledger: debit raced for user %s", userID)
	default:
		l.logger.Warn().Err(err).Str("user_id", userID).
			Msg("ledger: atomic debit unavailable, using read-then-write fallback")
		balance, err = l.readThenWrite(ctx, userID, -amount)
		if err != nil {
			return 0, err
		}
	}

	l.appendLog(ctx, userID, -amount, domain.ReasonDebitGeneration, meta)
	return balance, nil
}

// Refund returns amount credits to the user. The caller is responsible for
// invoking this at most once per job; the terminal-state short-circuit in
// the poller is the guard. If the atomic increment errors, a manual
// read-then-write is the last resort; if that also fails the money is lost
// until out-of-band reconciliation, which is why the failure is a paging
// alert rather than an ordinary error log.
func (l *Ledger) Refund(ctx context.Context, userID string, amount int, meta Meta) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("ledger: refund amount must be positive, got %d", amount)
	}

	var balance int
	err := l.sql.QueryRow(ctx, sqlinline.QRefundCredits, userID, amount).Scan(&balance)
	if err == nil {
		l.appendLog(ctx, userID, amount, domain.ReasonRefundFailed, meta)
		return balance, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}

	l.logger.Warn().Err(err).Str("user_id", userID).
		Msg("ledger: atomic refund failed, attempting manual fallback")

	balance, fbErr := l.readThenWrite(ctx, userID, amount)
	if fbErr != nil {
		infra.Critical(l.logger, "credit_refund_lost").
			Err(fbErr).
			Str("user_id", userID).
			Int("amount", amount).
			Str("job_id", meta.JobID).
			Msg("ledger: refund lost, manual reconciliation required")
		return 0, fmt.Errorf("ledger: refund failed: %w", fbErr)
	}

	l.appendLog(ctx, userID, amount, domain.ReasonRefundManualFallback, meta)
	return balance, nil
}

// readThenWrite applies a signed delta without an atomic guard. Known weak
// point: another writer between the read and the write is not detected.
func (l *Ledger) readThenWrite(ctx context.Context, userID string, delta int) (int, error) {
	current, err := l.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	next := current + delta
	if next < 0 {
		return current, domain.ErrInsufficientFunds
	}
	var balance int
	if err := l.sql.QueryRow(ctx, sqlinline.QSetCredits, userID, next).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("ledger: fallback write: %w", err)
	}
	return balance, nil
}

// appendLog records the mutation in the append-only transaction log. A
// failed append never rolls back the balance change; the log is advisory
// for reconciliation and the miss is logged instead.
func (l *Ledger) appendLog(ctx context.Context, userID string, amount int, reason domain.TransactionReason, meta Meta) {
	metaJSON, _ := json.Marshal(meta)
	if _, err := l.sql.Exec(ctx, sqlinline.QInsertTransaction, userID, amount, string(reason), metaJSON); err != nil {
		l.logger.Error().Err(err).
			Str("user_id", userID).
			Int("amount", amount).
			Str("reason", string(reason)).
			Msg("ledger: failed to append transaction log entry")
	}
}
