package models

// NotificationEvent is produced on change-request state transitions and
// handed to the notification sink. This service only produces events;
// delivery, storage and real-time push are external concerns.
type NotificationEvent struct {
	UserID        string `json:"user_id"`
	BranchID      int    `json:"branch_id"`
	Title         string `json:"title"`
	Body          string `json:"body"`
	Category      string `json:"category"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
	Highlighted   bool   `json:"highlighted"`
	Priority      string `json:"priority"`
}
