package models

import "time"

// Account kinds distinguish seeded test accounts from real staff accounts.
// Reviewer auto-assignment prefers production accounts.
const (
	AccountKindProduction = "production"
	AccountKindTest       = "test"
)

// RoleFinanceOfficer marks accounts allowed to review change requests.
const RoleFinanceOfficer = "finance_officer"

type User struct {
	ID          string    `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	Email       string    `json:"email" db:"email"`
	Role        string    `json:"role" db:"role"`
	BranchID    int       `json:"branch_id" db:"branch_id"`
	AccountKind string    `json:"account_kind" db:"account_kind"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
