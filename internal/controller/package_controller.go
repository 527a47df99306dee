package controller

import (
	"net/http"
	"time"

	vestingApp "github.com/cassiomorais/marketsettle/internal/application/vesting"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PackageController handles token-package HTTP requests.
type PackageController struct {
	purchaseUC  *vestingApp.PurchasePackageUseCase
	claimableUC *vestingApp.GetClaimableUseCase
	claimUC     *vestingApp.ClaimUseCase
}

// NewPackageController creates a new PackageController.
func NewPackageController(
	purchaseUC *vestingApp.PurchasePackageUseCase,
	claimableUC *vestingApp.GetClaimableUseCase,
	claimUC *vestingApp.ClaimUseCase,
) *PackageController {
	return &PackageController{purchaseUC: purchaseUC, claimableUC: claimableUC, claimUC: claimUC}
}

// Purchase handles POST /api/v1/packages/purchase
func (h *PackageController) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchasePackageRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	attached, err := parseAmount("attached_payment", req.AttachedPayment)
	if err != nil {
		writeError(w, err)
		return
	}

	grant, err := h.purchaseUC.Execute(r.Context(), vestingApp.PurchasePackageRequest{
		BuyerID:         req.BuyerID,
		Tier:            req.Tier,
		Quantity:        req.Quantity,
		AttachedPayment: attached,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromGrant(grant))
}

// Claimable handles GET /api/v1/packages/{id}/claimable. An optional RFC 3339
// "at" query asks for the vested position at a different instant.
func (h *PackageController) Claimable(w http.ResponseWriter, r *http.Request) {
	grantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid grant id", Code: "invalid_id"})
		return
	}

	var at time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "at must be an RFC 3339 timestamp", Code: "invalid_timestamp"})
			return
		}
	}

	resp, err := h.claimableUC.Execute(r.Context(), grantID, at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromClaimable(resp))
}

// Claim handles POST /api/v1/packages/{id}/claim
func (h *PackageController) Claim(w http.ResponseWriter, r *http.Request) {
	grantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid grant id", Code: "invalid_id"})
		return
	}

	var req ClaimRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	grant, err := h.claimUC.Execute(r.Context(), grantID, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromGrant(grant))
}
