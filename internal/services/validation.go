package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the JSON error body returned by the HTTP layer.
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
	Fields  []string          `json:"fields,omitempty"`  // Domain validation failures
}

// ValidationHelper provides shared struct validation for request payloads.
type ValidationHelper struct {
	validator *validator.Validate
}

func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendServiceError maps a service-layer error to its HTTP status and writes
// the JSON error body, surfacing accumulated domain validation failures.
func SendServiceError(w http.ResponseWriter, err error) {
	status := StatusForError(err)

	var (
		invalidTx *InvalidTransactionDataError
		invalidCR *InvalidChangeRequestDataError
		fields    []string
	)
	switch {
	case errors.As(err, &invalidTx):
		fields = invalidTx.Errors
	case errors.As(err, &invalidCR):
		fields = invalidCR.Errors
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Infrastructure details stay in the logs.
		message = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Fields: fields})
}
