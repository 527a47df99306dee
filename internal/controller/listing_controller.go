package controller

import (
	"net/http"
	"strconv"

	listingApp "github.com/cassiomorais/marketsettle/internal/application/listing"
	settlementApp "github.com/cassiomorais/marketsettle/internal/application/settlement"
	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/go-chi/chi/v5"
)

// ListingController handles listing-related HTTP requests.
type ListingController struct {
	createUC *listingApp.CreateListingUseCase
	getUC    *listingApp.GetListingUseCase
	offerUC  *settlementApp.SubmitOfferUseCase
}

// NewListingController creates a new ListingController.
func NewListingController(
	createUC *listingApp.CreateListingUseCase,
	getUC *listingApp.GetListingUseCase,
	offerUC *settlementApp.SubmitOfferUseCase,
) *ListingController {
	return &ListingController{createUC: createUC, getUC: getUC, offerUC: offerUC}
}

// Create handles POST /api/v1/listings
func (h *ListingController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		writeError(w, err)
		return
	}

	l, err := h.createUC.Execute(r.Context(), listingApp.CreateListingRequest{
		CollectionID:  req.CollectionID,
		AssetID:       req.AssetID,
		OwnerID:       req.OwnerID,
		Price:         price,
		ApprovalToken: req.ApprovalToken,
		Royalties:     req.Royalties,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromListing(l))
}

// Get handles GET /api/v1/listings/{collection}/{asset}
func (h *ListingController) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.getUC.Execute(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromListing(l))
}

// List handles GET /api/v1/listings
func (h *ListingController) List(w http.ResponseWriter, r *http.Request) {
	filter := listing.ListFilter{}
	if s := r.URL.Query().Get("collection_id"); s != "" {
		filter.CollectionID = &s
	}
	if s := r.URL.Query().Get("owner_id"); s != "" {
		filter.OwnerID = &s
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	listings, err := h.getUC.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*ListingResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, FromListing(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitOffer handles POST /api/v1/offers. An accepted offer returns 202 with
// the saga ID; the settlement itself completes asynchronously.
func (h *ListingController) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	var req SubmitOfferRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	bid, err := parseAmount("bid", req.Bid)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.offerUC.Execute(r.Context(), settlementApp.SubmitOfferRequest{
		CollectionID: req.CollectionID,
		AssetID:      req.AssetID,
		BuyerID:      req.BuyerID,
		Bid:          bid,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, OfferAcceptedResponse{
		SagaID: resp.SagaID.String(),
		Phase:  string(resp.Phase),
	})
}
