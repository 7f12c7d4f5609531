package models

import (
	"encoding/json"
	"time"
)

// Change request statuses. A request is created pending and transitions
// exactly once to approved or rejected; both are terminal.
const (
	ChangeRequestPending  = "pending"
	ChangeRequestApproved = "approved"
	ChangeRequestRejected = "rejected"
)

// RequestTypeModification is the only request type that mutates the ledger
// on approval.
const RequestTypeModification = "modification"

// ChangeRequest is a proposed modification to an existing transaction.
// Requests are append-only: they are never deleted, and after a reviewer
// decision only the status/decision columns have changed.
type ChangeRequest struct {
	ID               string          `json:"id" db:"id"`
	TransactionID    string          `json:"transaction_id" db:"transaction_id"`
	TargetTable      string          `json:"target_table" db:"target_table"`
	RequestedBy      string          `json:"requested_by" db:"requested_by"`
	AssignedTo       *string         `json:"assigned_to" db:"assigned_to"`
	BranchID         int             `json:"branch_id" db:"branch_id"`
	RequestType      string          `json:"request_type" db:"request_type"`
	OriginalData     json.RawMessage `json:"original_data" db:"original_data"`
	RequestedChanges json.RawMessage `json:"requested_changes" db:"requested_changes"`
	Reason           string          `json:"reason" db:"reason"`
	Status           string          `json:"status" db:"status"`
	ReviewerNotes    *string         `json:"reviewer_notes" db:"reviewer_notes"`
	ProcessedBy      *string         `json:"processed_by" db:"processed_by"`
	ProcessedAt      *time.Time      `json:"processed_at" db:"processed_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}
