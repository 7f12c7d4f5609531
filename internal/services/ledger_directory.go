package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asturias-jnll/Capstone2-sub000/internal/models"
)

// ScatterStrategy selects how FindByID locates a row whose partition is not
// known in advance. Both strategies return identical results; they trade
// average latency against worst-case latency.
type ScatterStrategy int

const (
	// StrategySequential queries partitions one at a time in fixed branch
	// order and stops at the first hit. Cheap when hits cluster in early
	// partitions, serial round trips on a miss.
	StrategySequential ScatterStrategy = iota
	// StrategyUnion issues one UNION ALL query across every partition.
	// Bounded single round trip, but always pays for all partitions.
	StrategyUnion
)

// ParseScatterStrategy maps the config value to a strategy, defaulting to
// sequential for unrecognized input.
func ParseScatterStrategy(name string) ScatterStrategy {
	if strings.EqualFold(name, "union") {
		return StrategyUnion
	}
	return StrategySequential
}

// LedgerDirectory performs cross-partition operations: locating a
// transaction by id without a global index, and branch-scoped listing and
// statistics. At most one partition can hold a given id, so result
// correctness never depends on which partition answers first.
type LedgerDirectory struct {
	db         *sql.DB
	log        *logrus.Logger
	strategy   ScatterStrategy
	unionQuery string
}

func NewLedgerDirectory(db *sql.DB, log *logrus.Logger, strategy ScatterStrategy) *LedgerDirectory {
	return &LedgerDirectory{
		db:         db,
		log:        log,
		strategy:   strategy,
		unionQuery: buildUnionQuery(),
	}
}

// buildUnionQuery assembles the single-round-trip scatter query. Partition
// names come from the closed router table only.
func buildUnionQuery() string {
	selects := make([]string, 0, len(AllPartitions()))
	for _, partition := range AllPartitions() {
		selects = append(selects, fmt.Sprintf(
			"SELECT %s, '%s' AS source_partition FROM %s WHERE id = $1",
			transactionColumns, partition, partition))
	}
	return strings.Join(selects, "\nUNION ALL\n")
}

// FindByID locates a transaction across all partitions. It is idempotent
// and side-effect-free; a miss returns (nil, "", nil), not an error.
func (d *LedgerDirectory) FindByID(ctx context.Context, id string) (*models.Transaction, string, error) {
	if d.strategy == StrategyUnion {
		return d.findByIDUnion(ctx, id)
	}
	return d.findByIDSequential(ctx, id)
}

func (d *LedgerDirectory) findByIDSequential(ctx context.Context, id string) (*models.Transaction, string, error) {
	for _, partition := range AllPartitions() {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, transactionColumns, partition)
		txn, err := scanTransaction(d.db.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, "", infraErr("scatter lookup", err)
		}
		return txn, partition, nil
	}
	return nil, "", nil
}

func (d *LedgerDirectory) findByIDUnion(ctx context.Context, id string) (*models.Transaction, string, error) {
	var (
		txn       models.Transaction
		partition string
	)
	err := d.db.QueryRowContext(ctx, d.unionQuery, id).Scan(
		&txn.ID, &txn.BranchID, &txn.TransactionDate, &txn.Payee, &txn.Particulars,
		&txn.Reference, &txn.CrossReference, &txn.Debit, &txn.Credit,
		&txn.Buckets.CashInBank, &txn.Buckets.LoanReceivables, &txn.Buckets.SavingsDeposits,
		&txn.Buckets.InterestIncome, &txn.Buckets.ServiceCharge, &txn.Buckets.Sundries,
		&txn.CreatedBy, &txn.CreatedAt, &txn.UpdatedAt,
		&partition,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", infraErr("scatter lookup", err)
	}
	return &txn, partition, nil
}

// ResolvePartition finds the partition holding the given id, failing with
// ErrTransactionNotFound when no partition has it.
func (d *LedgerDirectory) ResolvePartition(ctx context.Context, id string) (string, error) {
	_, partition, err := d.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if partition == "" {
		return "", ErrTransactionNotFound
	}
	return partition, nil
}

// UpdateByID resolves the owning partition, then applies a whitelist-
// validated partial update transactionally within that one partition.
// A cross-partition transaction is never needed because a transaction
// never changes partitions.
func (d *LedgerDirectory) UpdateByID(ctx context.Context, id, actorID string, fields map[string]any) (*models.Transaction, error) {
	if err := validatePatch(fields); err != nil {
		return nil, err
	}

	partition, err := d.ResolvePartition(ctx, id)
	if err != nil {
		return nil, err
	}

	dbTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, infraErr("begin directory update", err)
	}
	defer dbTx.Rollback()

	affected, err := updateTransactionTx(ctx, dbTx, partition, id, fields)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrTransactionUpdateFailed
	}

	if err := dbTx.Commit(); err != nil {
		return nil, infraErr("commit directory update", err)
	}

	d.log.WithFields(logrus.Fields{
		"transaction_id": id,
		"partition":      partition,
		"actor":          actorID,
		"action":         "transaction.update",
	}).Info("transaction updated via directory")

	return d.fetchFromPartition(ctx, partition, id)
}

// DeleteByID resolves the owning partition and deletes the row there.
func (d *LedgerDirectory) DeleteByID(ctx context.Context, id, actorID string) error {
	partition, err := d.ResolvePartition(ctx, id)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, partition)
	result, err := d.db.ExecContext(ctx, query, id)
	if err != nil {
		return infraErr("directory delete", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return infraErr("directory delete", err)
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}

	d.log.WithFields(logrus.Fields{
		"transaction_id": id,
		"partition":      partition,
		"actor":          actorID,
		"action":         "transaction.delete",
	}).Info("transaction deleted via directory")

	return nil
}

func (d *LedgerDirectory) fetchFromPartition(ctx context.Context, partition, id string) (*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, transactionColumns, partition)
	txn, err := scanTransaction(d.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, infraErr("read updated transaction", err)
	}
	return txn, nil
}

// TransactionFilter narrows a branch-scoped listing. BranchID is mandatory:
// branch-scoped queries resolve to exactly one partition and never fan out.
type TransactionFilter struct {
	BranchID  *int
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
	Limit     int
}

// List returns transactions of one branch, newest first.
func (d *LedgerDirectory) List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	if filter.BranchID == nil {
		return nil, ErrBranchIDRequired
	}
	partition, err := PartitionFor(*filter.BranchID)
	if err != nil {
		return nil, err
	}

	var conditions []string
	var args []any
	argIndex := 1

	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("transaction_date >= $%d", argIndex))
		args = append(args, *filter.StartDate)
		argIndex++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("transaction_date <= $%d", argIndex))
		args = append(args, *filter.EndDate)
		argIndex++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(payee ILIKE $%d OR particulars ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, transactionColumns, partition)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY transaction_date DESC, created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, infraErr("list transactions", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, infraErr("list transactions", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("list transactions", err)
	}
	return transactions, nil
}

// LedgerStats aggregates one branch's ledger for dashboards.
type LedgerStats struct {
	BranchID    int                  `json:"branch_id"`
	Count       int64                `json:"count"`
	TotalDebit  float64              `json:"total_debit"`
	TotalCredit float64              `json:"total_credit"`
	Buckets     models.BucketAmounts `json:"buckets"`
}

// Stats computes aggregate statistics for one branch's partition.
func (d *LedgerDirectory) Stats(ctx context.Context, branchID *int) (*LedgerStats, error) {
	if branchID == nil {
		return nil, ErrBranchIDRequired
	}
	partition, err := PartitionFor(*branchID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*),
		       COALESCE(SUM(debit), 0), COALESCE(SUM(credit), 0),
		       COALESCE(SUM(cash_in_bank), 0), COALESCE(SUM(loan_receivables), 0),
		       COALESCE(SUM(savings_deposits), 0), COALESCE(SUM(interest_income), 0),
		       COALESCE(SUM(service_charge), 0), COALESCE(SUM(sundries), 0)
		FROM %s`, partition)

	stats := LedgerStats{BranchID: *branchID}
	err = d.db.QueryRowContext(ctx, query).Scan(
		&stats.Count, &stats.TotalDebit, &stats.TotalCredit,
		&stats.Buckets.CashInBank, &stats.Buckets.LoanReceivables,
		&stats.Buckets.SavingsDeposits, &stats.Buckets.InterestIncome,
		&stats.Buckets.ServiceCharge, &stats.Buckets.Sundries,
	)
	if err != nil {
		return nil, infraErr("ledger stats", err)
	}
	return &stats, nil
}
