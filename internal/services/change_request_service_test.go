package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asturias-jnll/Capstone2-sub000/internal/models"
)

var changeRequestTestColumns = []string{
	"id", "transaction_id", "target_table", "requested_by", "assigned_to",
	"branch_id", "request_type", "original_data", "requested_changes",
	"reason", "status", "reviewer_notes", "processed_by", "processed_at",
	"created_at", "updated_at",
}

// recordingNotifier captures events instead of pushing them to Redis.
type recordingNotifier struct {
	events []models.NotificationEvent
}

func (n *recordingNotifier) Deliver(_ context.Context, event models.NotificationEvent) error {
	n.events = append(n.events, event)
	return nil
}

func newChangeRequestService(t *testing.T) (*ChangeRequestService, sqlmock.Sqlmock, *recordingNotifier, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	directory := NewLedgerDirectory(db, testLogger(), StrategySequential)
	service := NewChangeRequestService(db, directory, notifier, testLogger())
	return service, mock, notifier, func() { db.Close() }
}

func validChangeRequestInput() ChangeRequestInput {
	return ChangeRequestInput{
		TransactionID:    "tx-5",
		TargetTable:      "sanjose_transactions",
		OriginalData:     json.RawMessage(`{"payee":"Jane Do"}`),
		RequestedChanges: json.RawMessage(`{"payee":"Jane Doe"}`),
		Reason:           "typo in payee",
	}
}

func pendingRequestRow(id string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(changeRequestTestColumns).
		AddRow(id, "tx-5", "sanjose_transactions", "requester-1", "reviewer-1", 3,
			models.RequestTypeModification,
			[]byte(`{"payee":"Jane Do"}`),
			[]byte(`{"payee":"Jane Doe","branch_id":4}`),
			"typo in payee", models.ChangeRequestPending,
			nil, nil, nil, now, now)
}

func TestChangeRequestService_Create(t *testing.T) {
	service, mock, notifier, closeDB := newChangeRequestService(t)
	defer closeDB()

	t.Run("assigns a reviewer and notifies them after commit", func(t *testing.T) {
		in := validChangeRequestInput()
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM users").
			WithArgs(3, models.RoleFinanceOfficer, models.AccountKindProduction).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("reviewer-1"))
		mock.ExpectQuery("INSERT INTO change_requests").
			WithArgs(sqlmock.AnyArg(), "tx-5", "sanjose_transactions", "requester-1",
				"reviewer-1", 3, models.RequestTypeModification,
				[]byte(in.OriginalData), []byte(in.RequestedChanges),
				"typo in payee", models.ChangeRequestPending).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectCommit()

		request, err := service.Create(context.Background(), "requester-1", 3, in)
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestPending, request.Status)
		require.NotNil(t, request.AssignedTo)
		assert.Equal(t, "reviewer-1", *request.AssignedTo)

		require.Len(t, notifier.events, 1)
		assert.Equal(t, "reviewer-1", notifier.events[0].UserID)
		assert.Contains(t, notifier.events[0].Title, RequestNumber(request.ID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no eligible reviewer leaves the request unassigned", func(t *testing.T) {
		notifier.events = nil
		in := validChangeRequestInput()
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM users").
			WithArgs(3, models.RoleFinanceOfficer, models.AccountKindProduction).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("INSERT INTO change_requests").
			WithArgs(sqlmock.AnyArg(), "tx-5", "sanjose_transactions", "requester-1",
				nil, 3, models.RequestTypeModification,
				[]byte(in.OriginalData), []byte(in.RequestedChanges),
				"typo in payee", models.ChangeRequestPending).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectCommit()

		request, err := service.Create(context.Background(), "requester-1", 3, in)
		require.NoError(t, err)
		assert.Nil(t, request.AssignedTo)
		assert.Empty(t, notifier.events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("target table must belong to the branch", func(t *testing.T) {
		in := validChangeRequestInput()
		in.TargetTable = "lipa_transactions"

		_, err := service.Create(context.Background(), "requester-1", 3, in)

		var invalid *InvalidChangeRequestDataError
		require.ErrorAs(t, err, &invalid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requested changes must be a non-empty object", func(t *testing.T) {
		in := validChangeRequestInput()
		in.RequestedChanges = json.RawMessage(`{}`)

		_, err := service.Create(context.Background(), "requester-1", 3, in)

		var invalid *InvalidChangeRequestDataError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, invalid.Errors, "requested_changes must not be empty")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown branch", func(t *testing.T) {
		_, err := service.Create(context.Background(), "requester-1", 99, validChangeRequestInput())

		var unknown UnknownBranchError
		assert.ErrorAs(t, err, &unknown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestChangeRequestService_Decide_Approve(t *testing.T) {
	service, mock, notifier, closeDB := newChangeRequestService(t)
	defer closeDB()

	t.Run("applies the patch and flips status in one scope", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM change_requests WHERE id").
			WithArgs("cr-1").
			WillReturnRows(pendingRequestRow("cr-1"))
		mock.ExpectBegin()
		// branch_id is stripped from the patch, so resolution and update
		// target the partition the transaction already lives in.
		mock.ExpectQuery("FROM ibaan_transactions WHERE id").WithArgs("tx-5").WillReturnRows(emptyRows())
		mock.ExpectQuery("FROM bauan_transactions WHERE id").WithArgs("tx-5").WillReturnRows(emptyRows())
		mock.ExpectQuery("FROM sanjose_transactions WHERE id").WithArgs("tx-5").WillReturnRows(oneRow("tx-5", 3))
		mock.ExpectExec("UPDATE sanjose_transactions SET payee").
			WithArgs("Jane Doe", "tx-5").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE change_requests SET status").
			WithArgs(models.ChangeRequestApproved, "verified against receipt", "reviewer-1",
				sqlmock.AnyArg(), "cr-1", models.ChangeRequestPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		request, err := service.Decide(context.Background(), "cr-1", models.ChangeRequestApproved, "reviewer-1", "verified against receipt")
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestApproved, request.Status)
		require.NotNil(t, request.ProcessedBy)
		assert.Equal(t, "reviewer-1", *request.ProcessedBy)

		require.Len(t, notifier.events, 1)
		assert.Equal(t, "requester-1", notifier.events[0].UserID)
		assert.Contains(t, notifier.events[0].Title, "Approved")
		assert.Contains(t, notifier.events[0].Body, "Reviewer notes: verified against receipt")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed ledger patch blocks the status change", func(t *testing.T) {
		notifier.events = nil

		mock.ExpectQuery("SELECT (.+) FROM change_requests WHERE id").
			WithArgs("cr-1").
			WillReturnRows(pendingRequestRow("cr-1"))
		mock.ExpectBegin()
		mock.ExpectQuery("FROM ibaan_transactions WHERE id").WithArgs("tx-5").WillReturnRows(emptyRows())
		mock.ExpectQuery("FROM bauan_transactions WHERE id").WithArgs("tx-5").WillReturnRows(emptyRows())
		mock.ExpectQuery("FROM sanjose_transactions WHERE id").WithArgs("tx-5").WillReturnRows(oneRow("tx-5", 3))
		mock.ExpectExec("UPDATE sanjose_transactions SET payee").
			WithArgs("Jane Doe", "tx-5").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := service.Decide(context.Background(), "cr-1", models.ChangeRequestApproved, "reviewer-1", "")
		assert.ErrorIs(t, err, ErrTransactionUpdateFailed)
		assert.Empty(t, notifier.events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent decision rolls the ledger patch back", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM change_requests WHERE id").
			WithArgs("cr-1").
			WillReturnRows(pendingRequestRow("cr-1"))
		mock.ExpectBegin()
		mock.ExpectQuery("FROM ibaan_transactions WHERE id").WithArgs("tx-5").WillReturnRows(emptyRows())
		mock.ExpectQuery("FROM bauan_transactions WHERE id").WithArgs("tx-5").WillReturnRows(emptyRows())
		mock.ExpectQuery("FROM sanjose_transactions WHERE id").WithArgs("tx-5").WillReturnRows(oneRow("tx-5", 3))
		mock.ExpectExec("UPDATE sanjose_transactions SET payee").
			WithArgs("Jane Doe", "tx-5").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE change_requests SET status").
			WithArgs(models.ChangeRequestApproved, "", "reviewer-2",
				sqlmock.AnyArg(), "cr-1", models.ChangeRequestPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := service.Decide(context.Background(), "cr-1", models.ChangeRequestApproved, "reviewer-2", "")
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestChangeRequestService_Decide_Reject(t *testing.T) {
	service, mock, notifier, closeDB := newChangeRequestService(t)
	defer closeDB()

	t.Run("rejection never touches the ledger", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM change_requests WHERE id").
			WithArgs("cr-2").
			WillReturnRows(pendingRequestRow("cr-2"))
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE change_requests SET status").
			WithArgs(models.ChangeRequestRejected, "amount does not match receipt", "reviewer-1",
				sqlmock.AnyArg(), "cr-2", models.ChangeRequestPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		request, err := service.Decide(context.Background(), "cr-2", models.ChangeRequestRejected, "reviewer-1", "amount does not match receipt")
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestRejected, request.Status)

		require.Len(t, notifier.events, 1)
		assert.Contains(t, notifier.events[0].Title, "Rejected")
		assert.Contains(t, notifier.events[0].Body, "Reason: amount does not match receipt")
		assert.False(t, notifier.events[0].Highlighted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestChangeRequestService_Decide_Guards(t *testing.T) {
	service, mock, _, closeDB := newChangeRequestService(t)
	defer closeDB()

	t.Run("already processed request is terminal", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM change_requests WHERE id").
			WithArgs("cr-3").
			WillReturnRows(sqlmock.NewRows(changeRequestTestColumns).
				AddRow("cr-3", "tx-5", "sanjose_transactions", "requester-1", "reviewer-1", 3,
					models.RequestTypeModification,
					[]byte(`{}`), []byte(`{"payee":"Jane Doe"}`),
					"typo", models.ChangeRequestApproved,
					"done", "reviewer-1", now, now, now))

		_, err := service.Decide(context.Background(), "cr-3", models.ChangeRequestRejected, "reviewer-1", "")
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown request", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM change_requests WHERE id").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(changeRequestTestColumns))

		_, err := service.Decide(context.Background(), "missing", models.ChangeRequestApproved, "reviewer-1", "")
		assert.ErrorIs(t, err, ErrChangeRequestNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decision must be approved or rejected", func(t *testing.T) {
		_, err := service.Decide(context.Background(), "cr-1", "maybe", "reviewer-1", "")

		var invalid *InvalidChangeRequestDataError
		assert.ErrorAs(t, err, &invalid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestChangeRequestService_List(t *testing.T) {
	service, mock, _, closeDB := newChangeRequestService(t)
	defer closeDB()

	t.Run("branch id is mandatory", func(t *testing.T) {
		_, err := service.List(context.Background(), nil, "")
		assert.ErrorIs(t, err, ErrBranchIDRequired)
	})

	t.Run("filters by status", func(t *testing.T) {
		branchID := 3
		mock.ExpectQuery("SELECT (.+) FROM change_requests WHERE branch_id").
			WithArgs(3, models.ChangeRequestPending).
			WillReturnRows(pendingRequestRow("cr-1"))

		requests, err := service.List(context.Background(), &branchID, models.ChangeRequestPending)
		require.NoError(t, err)
		require.Len(t, requests, 1)
		assert.Equal(t, models.ChangeRequestPending, requests[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
