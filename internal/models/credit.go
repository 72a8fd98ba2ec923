package models

import "time"

// Credit is the per-user balance record. The balance always equals the
// signed sum of the account's credit transactions.
type Credit struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"` // smallest credit unit
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction types.
const (
	TransactionEarn   = "earn"
	TransactionSpend  = "spend"
	TransactionRefund = "refund"
)

// CreditTransaction is one immutable entry in the append-only ledger.
// Positive amounts are credits, negative amounts are debits.
type CreditTransaction struct {
	ID        int64     `json:"id" db:"id"`
	CreditID  string    `json:"credit_id" db:"credit_id"`
	Amount    int64     `json:"amount" db:"amount"`
	Type      string    `json:"type" db:"type"`
	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
