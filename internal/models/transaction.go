package models

import (
	"time"
)

// BucketAmounts holds the six derived balance buckets computed from a
// transaction's debit/credit amounts and its particulars text. The buckets
// are independent of each other; a single memo can populate several at once.
type BucketAmounts struct {
	CashInBank      float64 `json:"cash_in_bank" db:"cash_in_bank"`
	LoanReceivables float64 `json:"loan_receivables" db:"loan_receivables"`
	SavingsDeposits float64 `json:"savings_deposits" db:"savings_deposits"`
	InterestIncome  float64 `json:"interest_income" db:"interest_income"`
	ServiceCharge   float64 `json:"service_charge" db:"service_charge"`
	Sundries        float64 `json:"sundries" db:"sundries"`
}

// Transaction represents one ledger row. Its id is globally unique across
// all partitions; its branch id is immutable once set and always matches
// the partition the row physically lives in.
type Transaction struct {
	ID              string        `json:"id" db:"id"`
	BranchID        int           `json:"branch_id" db:"branch_id"`
	TransactionDate time.Time     `json:"transaction_date" db:"transaction_date"`
	Payee           string        `json:"payee" db:"payee"`
	Particulars     string        `json:"particulars" db:"particulars"`
	Reference       string        `json:"reference,omitempty" db:"reference"`
	CrossReference  string        `json:"cross_reference,omitempty" db:"cross_reference"`
	Debit           float64       `json:"debit" db:"debit"`
	Credit          float64       `json:"credit" db:"credit"`
	Buckets         BucketAmounts `json:"buckets"`
	CreatedBy       string        `json:"created_by" db:"created_by"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}
