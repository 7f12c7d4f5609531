package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asturias-jnll/Capstone2-sub000/internal/models"
)

const changeRequestColumns = `id, transaction_id, target_table, requested_by, assigned_to, branch_id, request_type, original_data, requested_changes, reason, status, reviewer_notes, processed_by, processed_at, created_at, updated_at`

// ChangeRequestService runs the correction workflow: a requester proposes a
// change to a recorded transaction, a reviewer at the same branch approves
// or rejects it, and the ledger is mutated only on approval.
type ChangeRequestService struct {
	db        *sql.DB
	directory *LedgerDirectory
	notifier  Notifier
	log       *logrus.Logger
}

func NewChangeRequestService(db *sql.DB, directory *LedgerDirectory, notifier Notifier, log *logrus.Logger) *ChangeRequestService {
	return &ChangeRequestService{db: db, directory: directory, notifier: notifier, log: log}
}

// ChangeRequestInput is the requester-supplied dispute payload. The
// original-data snapshot is captured for the audit trail; it is never
// replayed into the ledger.
type ChangeRequestInput struct {
	TransactionID    string          `json:"transaction_id"`
	TargetTable      string          `json:"target_table"`
	RequestType      string          `json:"request_type"`
	OriginalData     json.RawMessage `json:"original_data"`
	RequestedChanges json.RawMessage `json:"requested_changes"`
	Reason           string          `json:"reason"`
}

func (s *ChangeRequestService) validateInput(branchID int, in ChangeRequestInput) error {
	partition, err := PartitionFor(branchID)
	if err != nil {
		return err
	}

	var errs []string
	if strings.TrimSpace(in.TransactionID) == "" {
		errs = append(errs, "transaction_id is required")
	}
	if strings.TrimSpace(in.TargetTable) == "" {
		errs = append(errs, "target_table is required")
	} else if in.TargetTable != partition {
		// Requester and reviewer are scoped to one branch; the target must
		// live in that branch's partition.
		errs = append(errs, fmt.Sprintf("target_table %q does not belong to branch %d", in.TargetTable, branchID))
	}
	if len(in.OriginalData) == 0 {
		errs = append(errs, "original_data snapshot is required")
	}
	if len(in.RequestedChanges) == 0 {
		errs = append(errs, "requested_changes is required")
	} else {
		var probe map[string]any
		if err := json.Unmarshal(in.RequestedChanges, &probe); err != nil {
			errs = append(errs, "requested_changes must be a JSON object")
		} else if len(probe) == 0 {
			errs = append(errs, "requested_changes must not be empty")
		}
	}
	if strings.TrimSpace(in.Reason) == "" {
		errs = append(errs, "reason is required")
	}

	if len(errs) > 0 {
		return &InvalidChangeRequestDataError{Errors: errs}
	}
	return nil
}

// Create validates the dispute, auto-assigns a reviewer and inserts the
// request with status pending. The assignment lookup and the insert share
// one transactional scope. The assignee, when found, is notified after
// commit.
func (s *ChangeRequestService) Create(ctx context.Context, requesterID string, branchID int, in ChangeRequestInput) (*models.ChangeRequest, error) {
	if err := s.validateInput(branchID, in); err != nil {
		return nil, err
	}

	requestType := in.RequestType
	if requestType == "" {
		requestType = models.RequestTypeModification
	}

	request := &models.ChangeRequest{
		ID:               uuid.NewString(),
		TransactionID:    in.TransactionID,
		TargetTable:      in.TargetTable,
		RequestedBy:      requesterID,
		BranchID:         branchID,
		RequestType:      requestType,
		OriginalData:     in.OriginalData,
		RequestedChanges: in.RequestedChanges,
		Reason:           in.Reason,
		Status:           models.ChangeRequestPending,
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, infraErr("begin change request insert", err)
	}
	defer dbTx.Rollback()

	// Active reviewers of the branch, production accounts before test
	// accounts, oldest account breaking ties. No reviewer leaves the
	// request unassigned but still created.
	var assignee string
	err = dbTx.QueryRowContext(ctx, `
		SELECT id FROM users
		WHERE branch_id = $1 AND role = $2 AND is_active
		ORDER BY (account_kind = $3) DESC, created_at ASC
		LIMIT 1`,
		branchID, models.RoleFinanceOfficer, models.AccountKindProduction,
	).Scan(&assignee)
	switch {
	case err == nil:
		request.AssignedTo = &assignee
	case errors.Is(err, sql.ErrNoRows):
		// unassigned
	default:
		return nil, infraErr("assign reviewer", err)
	}

	err = dbTx.QueryRowContext(ctx, `
		INSERT INTO change_requests
		(id, transaction_id, target_table, requested_by, assigned_to, branch_id,
		 request_type, original_data, requested_changes, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at`,
		request.ID, request.TransactionID, request.TargetTable, request.RequestedBy,
		request.AssignedTo, request.BranchID, request.RequestType,
		[]byte(request.OriginalData), []byte(request.RequestedChanges),
		request.Reason, request.Status,
	).Scan(&request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return nil, infraErr("insert change request", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, infraErr("commit change request insert", err)
	}

	s.log.WithFields(logrus.Fields{
		"change_request_id": request.ID,
		"transaction_id":    request.TransactionID,
		"branch_id":         branchID,
		"actor":             requesterID,
		"action":            "change_request.create",
	}).Info("change request created")

	if request.AssignedTo != nil {
		s.deliver(ctx, models.NotificationEvent{
			UserID:        *request.AssignedTo,
			BranchID:      branchID,
			Title:         fmt.Sprintf("New Change Request %s", RequestNumber(request.ID)),
			Body:          fmt.Sprintf("A change request for transaction %s is awaiting your review. Reason: %s", request.TransactionID, request.Reason),
			Category:      "change_request",
			ReferenceType: "change_request",
			ReferenceID:   request.ID,
			Highlighted:   true,
			Priority:      "normal",
		})
	}

	return request, nil
}

// Decide transitions a pending request to approved or rejected. On approval
// of a modification request the requested-changes patch is applied to the
// target transaction in the same transactional scope as the status update:
// if the patch cannot be applied, the status change does not commit. The
// requester is notified after commit in both outcomes.
func (s *ChangeRequestService) Decide(ctx context.Context, requestID, decision, reviewerID, notes string) (*models.ChangeRequest, error) {
	if decision != models.ChangeRequestApproved && decision != models.ChangeRequestRejected {
		return nil, &InvalidChangeRequestDataError{
			Errors: []string{fmt.Sprintf("decision must be %q or %q", models.ChangeRequestApproved, models.ChangeRequestRejected)},
		}
	}

	request, err := s.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ChangeRequestPending {
		return nil, ErrAlreadyProcessed
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, infraErr("begin decision", err)
	}
	defer dbTx.Rollback()

	if decision == models.ChangeRequestApproved && request.RequestType == models.RequestTypeModification {
		fields, err := s.patchFields(request.RequestedChanges)
		if err != nil {
			return nil, err
		}

		partition, err := s.directory.ResolvePartition(ctx, request.TransactionID)
		if err != nil {
			return nil, err
		}

		affected, err := updateTransactionTx(ctx, dbTx, partition, request.TransactionID, fields)
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, ErrTransactionUpdateFailed
		}
	}

	// status = 'pending' guard: if a concurrent decision committed first,
	// zero rows come back and the ledger patch above rolls back with us.
	now := time.Now()
	result, err := dbTx.ExecContext(ctx, `
		UPDATE change_requests
		SET status = $1, reviewer_notes = $2, processed_by = $3, processed_at = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6`,
		decision, notes, reviewerID, now, requestID, models.ChangeRequestPending)
	if err != nil {
		return nil, infraErr("update change request status", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, infraErr("update change request status", err)
	}
	if affected == 0 {
		return nil, ErrAlreadyProcessed
	}

	if err := dbTx.Commit(); err != nil {
		return nil, infraErr("commit decision", err)
	}

	request.Status = decision
	request.ReviewerNotes = &notes
	request.ProcessedBy = &reviewerID
	request.ProcessedAt = &now

	s.log.WithFields(logrus.Fields{
		"change_request_id": requestID,
		"transaction_id":    request.TransactionID,
		"branch_id":         request.BranchID,
		"actor":             reviewerID,
		"action":            "change_request." + decision,
	}).Info("change request decided")

	s.deliver(ctx, s.decisionEvent(request, decision, notes))

	return request, nil
}

// patchFields parses the requested-changes JSON, silently drops branch_id
// (branch reassignment is never permitted through this path) and rejects
// any column outside the mutable whitelist.
func (s *ChangeRequestService) patchFields(raw json.RawMessage) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &InvalidChangeRequestDataError{Errors: []string{"requested_changes must be a JSON object"}}
	}

	delete(fields, "branch_id")
	if len(fields) == 0 {
		return nil, ErrNoValidChanges
	}

	var unknown []string
	for column := range fields {
		if _, ok := mutableTransactionColumns[column]; !ok {
			unknown = append(unknown, column)
		}
	}
	if len(unknown) > 0 {
		return nil, &InvalidChangeRequestDataError{
			Errors: []string{"requested_changes contains non-updatable fields: " + strings.Join(unknown, ", ")},
		}
	}
	return fields, nil
}

func (s *ChangeRequestService) decisionEvent(request *models.ChangeRequest, decision, notes string) models.NotificationEvent {
	number := RequestNumber(request.ID)

	var title, body string
	if decision == models.ChangeRequestApproved {
		title = fmt.Sprintf("Change Request %s Approved", number)
		body = fmt.Sprintf("Your change request %s has been approved and the requested changes have been implemented.", number)
		if notes != "" {
			body += " Reviewer notes: " + notes
		}
	} else {
		title = fmt.Sprintf("Change Request %s Rejected", number)
		body = fmt.Sprintf("Your change request %s has been rejected. Please contact your reviewer for more information.", number)
		if notes != "" {
			body += " Reason: " + notes
		}
	}

	return models.NotificationEvent{
		UserID:        request.RequestedBy,
		BranchID:      request.BranchID,
		Title:         title,
		Body:          body,
		Category:      "change_request",
		ReferenceType: "change_request",
		ReferenceID:   request.ID,
		Highlighted:   decision == models.ChangeRequestApproved,
		Priority:      "normal",
	}
}

func (s *ChangeRequestService) deliver(ctx context.Context, event models.NotificationEvent) {
	if err := s.notifier.Deliver(ctx, event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":      event.UserID,
			"reference_id": event.ReferenceID,
		}).Warn("notification delivery failed")
	}
}

// GetByID loads one change request.
func (s *ChangeRequestService) GetByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM change_requests WHERE id = $1`, changeRequestColumns)
	request, err := scanChangeRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChangeRequestNotFound
		}
		return nil, infraErr("read change request", err)
	}
	return request, nil
}

// List returns one branch's change requests, newest first, optionally
// filtered by status. Branch id is mandatory like every branch-scoped read.
func (s *ChangeRequestService) List(ctx context.Context, branchID *int, status string) ([]models.ChangeRequest, error) {
	if branchID == nil {
		return nil, ErrBranchIDRequired
	}
	if _, err := PartitionFor(*branchID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM change_requests WHERE branch_id = $1`, changeRequestColumns)
	args := []any{*branchID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, infraErr("list change requests", err)
	}
	defer rows.Close()

	requests := []models.ChangeRequest{}
	for rows.Next() {
		request, err := scanChangeRequest(rows)
		if err != nil {
			return nil, infraErr("list change requests", err)
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("list change requests", err)
	}
	return requests, nil
}

func scanChangeRequest(row rowScanner) (*models.ChangeRequest, error) {
	var (
		request       models.ChangeRequest
		assignedTo    sql.NullString
		reviewerNotes sql.NullString
		processedBy   sql.NullString
		processedAt   sql.NullTime
		originalData  []byte
		requested     []byte
	)
	err := row.Scan(
		&request.ID, &request.TransactionID, &request.TargetTable, &request.RequestedBy,
		&assignedTo, &request.BranchID, &request.RequestType, &originalData, &requested,
		&request.Reason, &request.Status, &reviewerNotes, &processedBy, &processedAt,
		&request.CreatedAt, &request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	request.OriginalData = json.RawMessage(originalData)
	request.RequestedChanges = json.RawMessage(requested)
	if assignedTo.Valid {
		request.AssignedTo = &assignedTo.String
	}
	if reviewerNotes.Valid {
		request.ReviewerNotes = &reviewerNotes.String
	}
	if processedBy.Valid {
		request.ProcessedBy = &processedBy.String
	}
	if processedAt.Valid {
		request.ProcessedAt = &processedAt.Time
	}
	return &request, nil
}
