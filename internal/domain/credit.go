package domain

import (
	"encoding/json"
	"time"
)

// TransactionReason enumerates why a balance mutation happened.
type TransactionReason string

const (
	ReasonDebitGeneration      TransactionReason = "DEBIT_GENERATION"
	ReasonRefundFailed         TransactionReason = "REFUND_FAILED"
	ReasonRefundManualFallback TransactionReason = "REFUND_MANUAL_FALLBACK"
)

// TransactionLogEntry is an append-only record of a single credit balance
// mutation. Entries are never updated or deleted; the log is the source of
// truth for reconciliation.
type TransactionLogEntry struct {
	ID        string
	UserID    string
	Amount    int // signed: negative for debits, positive for refunds
	Reason    TransactionReason
	Metadata  json.RawMessage
	CreatedAt time.Time
}
