package controller

import (
	"net/http"
	"strconv"

	settlementApp "github.com/cassiomorais/marketsettle/internal/application/settlement"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SettlementController handles saga-inspection HTTP requests.
type SettlementController struct {
	getUC *settlementApp.GetSettlementUseCase
}

// NewSettlementController creates a new SettlementController.
func NewSettlementController(getUC *settlementApp.GetSettlementUseCase) *SettlementController {
	return &SettlementController{getUC: getUC}
}

// Get handles GET /api/v1/settlements/{sagaId}
func (h *SettlementController) Get(w http.ResponseWriter, r *http.Request) {
	sagaID, err := uuid.Parse(chi.URLParam(r, "sagaId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid saga id", Code: "invalid_id"})
		return
	}

	s, err := h.getUC.Execute(r.Context(), sagaID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromSaleAttempt(s))
}

// List handles GET /api/v1/settlements
func (h *SettlementController) List(w http.ResponseWriter, r *http.Request) {
	filter := settlement.ListFilter{}
	if s := r.URL.Query().Get("phase"); s != "" {
		phase := settlement.Phase(s)
		filter.Phase = &phase
	}
	if s := r.URL.Query().Get("refunded"); s != "" {
		refunded := s == "true"
		filter.Refunded = &refunded
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	attempts, err := h.getUC.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*SettlementResponse, 0, len(attempts))
	for _, s := range attempts {
		resp = append(resp, FromSaleAttempt(s))
	}
	writeJSON(w, http.StatusOK, resp)
}
