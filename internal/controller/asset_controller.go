package controller

import (
	"net/http"
	"strconv"

	assetApp "github.com/cassiomorais/marketsettle/internal/application/asset"
	"github.com/cassiomorais/marketsettle/internal/domain/asset"
	"github.com/go-chi/chi/v5"
)

// AssetController handles factory HTTP requests.
type AssetController struct {
	mintUC *assetApp.MintAssetUseCase
	getUC  *assetApp.GetAssetUseCase
}

// NewAssetController creates a new AssetController.
func NewAssetController(mintUC *assetApp.MintAssetUseCase, getUC *assetApp.GetAssetUseCase) *AssetController {
	return &AssetController{mintUC: mintUC, getUC: getUC}
}

// Mint handles POST /api/v1/assets
func (h *AssetController) Mint(w http.ResponseWriter, r *http.Request) {
	var req MintAssetRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	deposit, err := parseAmount("attached_deposit", req.AttachedDeposit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.mintUC.Execute(r.Context(), assetApp.MintAssetRequest{
		OwnerID: req.OwnerID,
		X:       req.X,
		Y:       req.Y,
		Metadata: asset.Metadata{
			Title:       req.Title,
			Description: req.Description,
			Media:       req.Media,
		},
		AttachedDeposit: deposit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MintResponse{
		Asset:   FromAsset(resp.Asset),
		Surplus: resp.Surplus.String(),
	})
}

// Get handles GET /api/v1/assets/{id}
func (h *AssetController) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.getUC.Execute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAsset(a))
}

// List handles GET /api/v1/assets
func (h *AssetController) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	assets, err := h.getUC.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*AssetResponse, 0, len(assets))
	for _, a := range assets {
		resp = append(resp, FromAsset(a))
	}
	writeJSON(w, http.StatusOK, resp)
}
