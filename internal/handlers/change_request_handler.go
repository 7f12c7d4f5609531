package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asturias-jnll/Capstone2-sub000/internal/middleware"
	"github.com/asturias-jnll/Capstone2-sub000/internal/models"
	"github.com/asturias-jnll/Capstone2-sub000/internal/services"
)

// ChangeRequestHandler exposes the correction workflow: submit a dispute,
// list the reviewer inbox, approve or reject.
type ChangeRequestHandler struct {
	service   *services.ChangeRequestService
	validator *services.ValidationHelper
}

func NewChangeRequestHandler(service *services.ChangeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Create submits a dispute against a recorded transaction.
func (h *ChangeRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req struct {
		BranchID         int             `json:"branch_id" validate:"required,gt=0"`
		TransactionID    string          `json:"transaction_id" validate:"required"`
		TargetTable      string          `json:"target_table" validate:"required"`
		RequestType      string          `json:"request_type"`
		OriginalData     json.RawMessage `json:"original_data"`
		RequestedChanges json.RawMessage `json:"requested_changes"`
		Reason           string          `json:"reason" validate:"required"`
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

	request, err := h.service.Create(r.Context(), userID, req.BranchID, services.ChangeRequestInput{
		TransactionID:    req.TransactionID,
		TargetTable:      req.TargetTable,
		RequestType:      req.RequestType,
		OriginalData:     req.OriginalData,
		RequestedChanges: req.RequestedChanges,
		Reason:           req.Reason,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":        true,
		"change_request": request,
		"request_number": services.RequestNumber(request.ID),
	})
}

// List returns one branch's change requests, optionally filtered by status.
func (h *ChangeRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	var branchID *int
	if id, ok := parseBranchID(r); ok {
		branchID = &id
	}

	requests, err := h.service.List(r.Context(), branchID, r.URL.Query().Get("status"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"change_requests": requests,
		"count":           len(requests),
	})
}

// Approve applies the requested changes and closes the request.
func (h *ChangeRequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, models.ChangeRequestApproved)
}

// Reject closes the request without touching the ledger.
func (h *ChangeRequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, models.ChangeRequestRejected)
}

func (h *ChangeRequestHandler) decide(w http.ResponseWriter, r *http.Request, decision string) {
	reviewerID := middleware.UserID(r.Context())
	requestID := chi.URLParam(r, "requestID")

	var req struct {
		Notes string `json:"notes"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	request, err := h.service.Decide(r.Context(), requestID, decision, reviewerID, req.Notes)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":        true,
		"change_request": request,
	})
}
