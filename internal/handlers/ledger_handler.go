package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/asturias-jnll/Capstone2-sub000/internal/middleware"
	"github.com/asturias-jnll/Capstone2-sub000/internal/services"
)

// LedgerHandler exposes the branch-sharded ledger over HTTP. Branch-scoped
// operations require an explicit branch_id; cross-partition lookups go
// through the directory.
type LedgerHandler struct {
	ledger    *services.LedgerService
	directory *services.LedgerDirectory
	validator *services.ValidationHelper
}

func NewLedgerHandler(ledger *services.LedgerService, directory *services.LedgerDirectory) *LedgerHandler {
	return &LedgerHandler{
		ledger:    ledger,
		directory: directory,
		validator: services.NewValidationHelper(),
	}
}

// Create records a new transaction in the partition of the given branch.
func (h *LedgerHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req struct {
		BranchID    int                       `json:"branch_id" validate:"required,gt=0"`
		Transaction services.TransactionInput `json:"transaction"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	txn, err := h.ledger.Create(r.Context(), req.BranchID, userID, req.Transaction)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": txn,
	})
}

// List returns one branch's transactions with optional date/search filters.
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := services.TransactionFilter{
		Search: r.URL.Query().Get("search"),
	}

	if branchID, ok := parseBranchID(r); ok {
		filter.BranchID = &branchID
	}
	if t, ok := parseDate(r.URL.Query().Get("start_date")); ok {
		filter.StartDate = &t
	}
	if t, ok := parseDate(r.URL.Query().Get("end_date")); ok {
		filter.EndDate = &t
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = l
		}
	}

	transactions, err := h.directory.List(r.Context(), filter)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// Stats returns one branch's aggregate ledger statistics.
func (h *LedgerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var branchID *int
	if id, ok := parseBranchID(r); ok {
		branchID = &id
	}

	stats, err := h.directory.Stats(r.Context(), branchID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// Get locates a transaction by id across all partitions.
func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txID")

	txn, partition, err := h.directory.FindByID(r.Context(), txID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	if txn == nil {
		services.SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transaction": txn,
		"partition":   partition,
	})
}

// Update applies a whitelist-validated partial update wherever the row lives.
func (h *LedgerHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	txID := chi.URLParam(r, "txID")

	var fields map[string]any
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	txn, err := h.directory.UpdateByID(r.Context(), txID, userID, fields)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": txn,
	})
}

// Delete removes a transaction wherever the row lives.
func (h *LedgerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	txID := chi.URLParam(r, "txID")

	if err := h.directory.DeleteByID(r.Context(), txID, userID); err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func parseBranchID(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("branch_id")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
