package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for the ledger and change-request workflow. Handlers map
// these to HTTP statuses with StatusForError; callers distinguish them with
// errors.Is / errors.As.
var (
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrChangeRequestNotFound   = errors.New("change request not found")
	ErrAlreadyProcessed        = errors.New("change request already processed")
	ErrBranchIDRequired        = errors.New("branch id is required")
	ErrNoValidChanges          = errors.New("no valid changes to apply")
	ErrTransactionUpdateFailed = errors.New("transaction update affected no rows")
)

// UnknownBranchError is returned when a branch id is absent from the static
// branch-to-partition table.
type UnknownBranchError struct {
	BranchID int
}

func (e UnknownBranchError) Error() string {
	return fmt.Sprintf("unknown branch id %d", e.BranchID)
}

// InvalidTransactionDataError carries all validation failures for a single
// ledger write so the caller can fix them in one round trip.
type InvalidTransactionDataError struct {
	Errors []string
}

func (e *InvalidTransactionDataError) Error() string {
	return "invalid transaction data: " + strings.Join(e.Errors, "; ")
}

// InvalidChangeRequestDataError carries all validation failures for a
// change-request payload.
type InvalidChangeRequestDataError struct {
	Errors []string
}

func (e *InvalidChangeRequestDataError) Error() string {
	return "invalid change request data: " + strings.Join(e.Errors, "; ")
}

// InfrastructureError wraps storage failures (unavailable, timeout,
// connection exhaustion). Safe for the caller to retry with backoff; this
// service never retries internally.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

func infraErr(op string, err error) error {
	return &InfrastructureError{Op: op, Err: err}
}

// StatusForError maps the service error taxonomy to an HTTP status.
// Validation, not-found and already-processed errors are client-correctable;
// infrastructure errors surface as 500 and are retryable by the caller.
func StatusForError(err error) int {
	var (
		unknownBranch UnknownBranchError
		invalidTx     *InvalidTransactionDataError
		invalidCR     *InvalidChangeRequestDataError
	)

	switch {
	case errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ErrChangeRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, ErrBranchIDRequired),
		errors.Is(err, ErrNoValidChanges),
		errors.As(err, &unknownBranch),
		errors.As(err, &invalidTx),
		errors.As(err, &invalidCR):
		return http.StatusBadRequest
	case errors.Is(err, ErrTransactionUpdateFailed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
