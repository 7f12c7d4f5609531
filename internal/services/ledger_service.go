package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asturias-jnll/Capstone2-sub000/internal/models"
)

// transactionColumns is the canonical select list shared by the store and
// the directory so every read scans the same shape.
const transactionColumns = `id, branch_id, transaction_date, payee, particulars, reference, cross_reference, debit, credit, cash_in_bank, loan_receivables, savings_deposits, interest_income, service_charge, sundries, created_by, created_at, updated_at`

// mutableTransactionColumns is the whitelist of columns a partial update may
// touch. branch_id is deliberately absent: a transaction never changes
// branch, so it never changes partition.
var mutableTransactionColumns = map[string]struct{}{
	"transaction_date": {},
	"payee":            {},
	"particulars":      {},
	"reference":        {},
	"cross_reference":  {},
	"debit":            {},
	"credit":           {},
	"cash_in_bank":     {},
	"loan_receivables": {},
	"savings_deposits": {},
	"interest_income":  {},
	"service_charge":   {},
	"sundries":         {},
}

// LedgerService performs single-partition transaction CRUD. Every operation
// is scoped to the partition resolved from the branch id (writes) or to an
// already-resolved partition name (reads/updates); cross-partition lookup
// belongs to LedgerDirectory.
type LedgerService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewLedgerService(db *sql.DB, log *logrus.Logger) *LedgerService {
	return &LedgerService{db: db, log: log}
}

// TransactionInput is the caller-supplied payload for a ledger write.
// Buckets are optional: when nil the categorizer derives them from the
// debit/credit amounts and the particulars text.
type TransactionInput struct {
	TransactionDate time.Time             `json:"transaction_date"`
	Payee           string                `json:"payee"`
	Particulars     string                `json:"particulars"`
	Reference       string                `json:"reference"`
	CrossReference  string                `json:"cross_reference"`
	Debit           float64               `json:"debit"`
	Credit          float64               `json:"credit"`
	Buckets         *models.BucketAmounts `json:"buckets,omitempty"`
}

// Validate checks a ledger write synchronously and without side effects.
// It accumulates every failure so the caller can fix them in one pass.
func (s *LedgerService) Validate(in TransactionInput) error {
	var errs []string

	if in.TransactionDate.IsZero() {
		errs = append(errs, "transaction_date is required")
	}
	if strings.TrimSpace(in.Payee) == "" {
		errs = append(errs, "payee must not be blank")
	}
	if strings.TrimSpace(in.Particulars) == "" {
		errs = append(errs, "particulars must not be blank")
	}
	if in.Debit < 0 {
		errs = append(errs, "debit must not be negative")
	}
	if in.Credit < 0 {
		errs = append(errs, "credit must not be negative")
	}
	if in.Debit >= 0 && in.Credit >= 0 && in.Debit+in.Credit == 0 {
		errs = append(errs, "at least one of debit or credit must be greater than zero")
	}

	if len(errs) > 0 {
		return &InvalidTransactionDataError{Errors: errs}
	}
	return nil
}

// Create validates the input, resolves the branch partition, derives the
// balance buckets when the caller did not supply them, and inserts exactly
// one row inside a transactional scope.
func (s *LedgerService) Create(ctx context.Context, branchID int, creatorID string, in TransactionInput) (*models.Transaction, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	partition, err := PartitionFor(branchID)
	if err != nil {
		return nil, err
	}

	buckets := Categorize(in.Debit, in.Credit, in.Particulars)
	if in.Buckets != nil {
		buckets = *in.Buckets
	}

	txn := &models.Transaction{
		ID:              uuid.NewString(),
		BranchID:        branchID,
		TransactionDate: in.TransactionDate,
		Payee:           in.Payee,
		Particulars:     in.Particulars,
		Reference:       in.Reference,
		CrossReference:  in.CrossReference,
		Debit:           in.Debit,
		Credit:          in.Credit,
		Buckets:         buckets,
		CreatedBy:       creatorID,
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, infraErr("begin ledger insert", err)
	}
	defer dbTx.Rollback()

	// partition comes from the closed router table, never from caller input.
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, branch_id, transaction_date, payee, particulars, reference, cross_reference,
		 debit, credit, cash_in_bank, loan_receivables, savings_deposits, interest_income,
		 service_charge, sundries, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		RETURNING created_at, updated_at`, partition)

	err = dbTx.QueryRowContext(ctx, query,
		txn.ID, txn.BranchID, txn.TransactionDate, txn.Payee, txn.Particulars,
		txn.Reference, txn.CrossReference, txn.Debit, txn.Credit,
		buckets.CashInBank, buckets.LoanReceivables, buckets.SavingsDeposits,
		buckets.InterestIncome, buckets.ServiceCharge, buckets.Sundries,
		txn.CreatedBy,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, infraErr("insert ledger transaction", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, infraErr("commit ledger insert", err)
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"branch_id":      branchID,
		"partition":      partition,
		"actor":          creatorID,
		"action":         "transaction.create",
	}).Info("ledger transaction created")

	return txn, nil
}

// GetByID reads one row from the given partition. The caller is responsible
// for having resolved the correct partition already.
func (s *LedgerService) GetByID(ctx context.Context, partition, id string) (*models.Transaction, error) {
	if !isKnownPartition(partition) {
		return nil, infraErr("read ledger transaction", fmt.Errorf("unknown partition %q", partition))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, transactionColumns, partition)
	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, infraErr("read ledger transaction", err)
	}
	return txn, nil
}

// Update applies a whitelist-validated partial update to a row in the given
// partition and returns the updated row for audit observers.
func (s *LedgerService) Update(ctx context.Context, partition, id, actorID string, fields map[string]any) (*models.Transaction, error) {
	if !isKnownPartition(partition) {
		return nil, infraErr("update ledger transaction", fmt.Errorf("unknown partition %q", partition))
	}
	if err := validatePatch(fields); err != nil {
		return nil, err
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, infraErr("begin ledger update", err)
	}
	defer dbTx.Rollback()

	affected, err := updateTransactionTx(ctx, dbTx, partition, id, fields)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrTransactionNotFound
	}

	if err := dbTx.Commit(); err != nil {
		return nil, infraErr("commit ledger update", err)
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": id,
		"partition":      partition,
		"actor":          actorID,
		"action":         "transaction.update",
	}).Info("ledger transaction updated")

	return s.GetByID(ctx, partition, id)
}

// Delete removes one row from the given partition. There is no soft delete.
func (s *LedgerService) Delete(ctx context.Context, partition, id, actorID string) error {
	if !isKnownPartition(partition) {
		return infraErr("delete ledger transaction", fmt.Errorf("unknown partition %q", partition))
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, partition)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return infraErr("delete ledger transaction", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return infraErr("delete ledger transaction", err)
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": id,
		"partition":      partition,
		"actor":          actorID,
		"action":         "transaction.delete",
	}).Info("ledger transaction deleted")

	return nil
}

// validatePatch rejects unknown columns instead of silently applying them.
func validatePatch(fields map[string]any) error {
	if len(fields) == 0 {
		return ErrNoValidChanges
	}

	var unknown []string
	for column := range fields {
		if _, ok := mutableTransactionColumns[column]; !ok {
			unknown = append(unknown, column)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &InvalidTransactionDataError{
			Errors: []string{"unknown or immutable columns: " + strings.Join(unknown, ", ")},
		}
	}
	return nil
}

// updateTransactionTx builds and runs the partial UPDATE inside the caller's
// transaction and reports the affected row count. Column names are taken
// from the whitelist only; values are always bound as parameters.
func updateTransactionTx(ctx context.Context, dbTx *sql.Tx, partition, id string, fields map[string]any) (int64, error) {
	columns := make([]string, 0, len(fields))
	for column := range fields {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	setClauses := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+1)
	argIndex := 1
	for _, column := range columns {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, fields[column])
		argIndex++
	}
	setClauses = append(setClauses, "updated_at = NOW()")

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`,
		partition, strings.Join(setClauses, ", "), argIndex)
	args = append(args, id)

	result, err := dbTx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, infraErr("update ledger transaction", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, infraErr("update ledger transaction", err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var txn models.Transaction
	err := row.Scan(
		&txn.ID, &txn.BranchID, &txn.TransactionDate, &txn.Payee, &txn.Particulars,
		&txn.Reference, &txn.CrossReference, &txn.Debit, &txn.Credit,
		&txn.Buckets.CashInBank, &txn.Buckets.LoanReceivables, &txn.Buckets.SavingsDeposits,
		&txn.Buckets.InterestIncome, &txn.Buckets.ServiceCharge, &txn.Buckets.Sundries,
		&txn.CreatedBy, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
