// Package asset implements the land-parcel registry fed by the minting
// factory. Creation is thin, deterministic logic: the only hazard is the
// uniqueness of the asset ID and of the parcel coordinates.
package asset

import (
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
)

// Metadata is the display metadata attached to a minted parcel.
type Metadata struct {
	Title       string
	Description string
	Media       string
	Extra       string
}

// Asset is one unique land parcel. The (X, Y) coordinate pair is the
// uniqueness key; the ID is issued sequentially by the factory.
type Asset struct {
	ID        string
	OwnerID   string
	X         string
	Y         string
	Metadata  Metadata
	CreatedAt time.Time
}

// IsValidID reports whether the id uses only the [0-9a-z] charset the
// downstream ledgers accept.
func IsValidID(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range []byte(id) {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}

// New builds a parcel from a mint request. sequence is the factory-issued
// ordinal used to derive the asset ID.
func New(ownerID, x, y string, meta Metadata, sequence uint64) (*Asset, error) {
	if ownerID == "" {
		return nil, domainErrors.NewValidationError("owner_id", "cannot be empty")
	}
	if x == "" || y == "" {
		return nil, domainErrors.NewValidationError("position", "both coordinates are required")
	}

	id := fmt.Sprintf("r%d", sequence)
	if !IsValidID(id) {
		return nil, domainErrors.ErrInvalidAssetID
	}

	if meta.Title == "" {
		meta.Title = fmt.Sprintf("Land #%s-%s", x, y)
	}
	meta.Extra = fmt.Sprintf(`{"x":%q,"y":%q}`, x, y)

	return &Asset{
		ID:        id,
		OwnerID:   ownerID,
		X:         x,
		Y:         y,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}, nil
}

// Position returns the coordinate uniqueness key.
func (a *Asset) Position() string {
	return a.X + "-" + a.Y
}
