package model

import "time"

// Operation names a billable or administrative action recorded in the
// credit ledger.
type Operation string

const (
	OpDraftCreation         Operation = "draft_creation"
	OpOutlineExtraction     Operation = "outline_extraction"
	OpKeywordResearch       Operation = "keyword_research"
	OpDescriptionGeneration Operation = "description_generation"
	OpKeywordsToInclude     Operation = "keywords_to_include"
	OpAdminCreditAddition   Operation = "admin_credit_addition"
	OpAdminCreditDeduction  Operation = "admin_credit_deduction"
	OpInitialGrant          Operation = "initial_grant"
)

// TransactionStatus marks whether the operation linked to a transaction
// ultimately completed.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// CreditAccount is the balance record gating billable operations.
// Balance never goes below zero; TotalDebited never decreases.
type CreditAccount struct {
	AccountID    string    `json:"account_id"`
	Balance      int64     `json:"balance"`
	TotalDebited int64     `json:"total_debited"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreditTransaction is one immutable entry in the append-only ledger log.
// Amount is signed: positive for debits, negative for credits. Replaying
// all transactions for an account in timestamp order from its initial
// grant reconstructs the balance. Corrections are new transactions, never
// edits.
type CreditTransaction struct {
	ID               string            `json:"id"`
	AccountID        string            `json:"account_id"`
	Operation        Operation         `json:"operation"`
	Amount           int64             `json:"amount"`
	LinkedResourceID string            `json:"linked_resource_id,omitempty"`
	Status           TransactionStatus `json:"status"`
	Note             string            `json:"note,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Reservation is the advisory result of a pre-flight balance check. It
// mutates nothing; the authoritative check happens again at debit time.
type Reservation struct {
	Approved  bool  `json:"approved"`
	Available int64 `json:"available"`
	Required  int64 `json:"required"`
}
