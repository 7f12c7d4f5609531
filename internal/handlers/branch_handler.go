package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/asturias-jnll/Capstone2-sub000/internal/services"
)

// BranchHandler serves the static branch catalog.
type BranchHandler struct{}

func NewBranchHandler() *BranchHandler {
	return &BranchHandler{}
}

func (h *BranchHandler) List(w http.ResponseWriter, r *http.Request) {
	branches := services.AllBranches()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"branches": branches,
		"count":    len(branches),
	})
}
