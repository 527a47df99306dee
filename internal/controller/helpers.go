package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/money"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrListingNotFound, http.StatusNotFound, "listing_not_found"},
	{domainErrors.ErrSagaNotFound, http.StatusNotFound, "settlement_not_found"},
	{domainErrors.ErrAssetNotFound, http.StatusNotFound, "asset_not_found"},
	{domainErrors.ErrListingAlreadyExists, http.StatusConflict, "listing_exists"},
	{domainErrors.ErrDuplicateAsset, http.StatusConflict, "asset_exists"},
	{domainErrors.ErrDuplicateIdempotencyKey, http.StatusConflict, "duplicate_request"},
	{domainErrors.ErrSelfTrade, http.StatusUnprocessableEntity, "self_trade"},
	{domainErrors.ErrBidTooLow, http.StatusUnprocessableEntity, "bid_too_low"},
	{domainErrors.ErrZeroAmount, http.StatusBadRequest, "zero_amount"},
	{domainErrors.ErrAmountOverflow, http.StatusBadRequest, "amount_overflow"},
	{domainErrors.ErrInvalidRoyaltySpec, http.StatusBadRequest, "invalid_royalties"},
	{domainErrors.ErrInvalidAssetID, http.StatusBadRequest, "invalid_asset_id"},
	{domainErrors.ErrDepositTooLow, http.StatusUnprocessableEntity, "deposit_too_low"},
	{domainErrors.ErrUnknownPackage, http.StatusNotFound, "unknown_package"},
	{domainErrors.ErrPriceMismatch, http.StatusUnprocessableEntity, "price_mismatch"},
	{domainErrors.ErrScheduleInactive, http.StatusUnprocessableEntity, "schedule_inactive"},
	{domainErrors.ErrLedgerUnavailable, http.StatusServiceUnavailable, "ledger_unavailable"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

// parseAmount converts a decimal-string field into a checked 128-bit amount.
func parseAmount(field, value string) (money.Amount, error) {
	amount, err := money.Parse(value)
	if err != nil {
		return money.Zero(), domainErrors.NewValidationError(field, "must be a decimal amount within 128 bits")
	}
	return amount, nil
}
