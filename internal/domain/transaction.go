package domain

import (
	"cloud.google.com/go/civil"
)

// TransactionType is the direction of money movement reported by the statement.
type TransactionType string

const (
	// Credit is money coming into the account.
	Credit TransactionType = "credit"
	// Debit is money going out of the account.
	Debit TransactionType = "debit"
)

// Known reports whether t is one of the two recognized directions.
// Anything else is kept on the transaction but excluded from aggregation.
func (t TransactionType) Known() bool {
	return t == Credit || t == Debit
}

// Transaction represents one normalized transaction extracted from a statement.
// It is built once per ingestion run from the model output and persisted against
// exactly one applicant.
type Transaction struct {
	Date            civil.Date      `json:"date"`             // parsed from "date" (YYYY-MM-DD)
	Description     string          `json:"description"`      // from "description"
	TransactionType TransactionType `json:"transaction_type"` // credit | debit | anything else (unknown)
	Amount          float64         `json:"amount"`           // magnitude, always >= 0
	Balance         float64         `json:"balance"`          // account balance after the transaction
	Currency        string          `json:"currency"`         // e.g. "USD", "INR"
}
