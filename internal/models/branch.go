package models

// Branch is static reference data describing one cooperative branch.
// Branches are configured once at deployment and never mutated at runtime;
// the branch ID determines which ledger partition holds its transactions.
type Branch struct {
	ID       int    `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Location string `json:"location" db:"location"`
	IsMain   bool   `json:"is_main" db:"is_main"`
}
