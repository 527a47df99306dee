package listing

import "context"

// ListFilter holds optional filters for browsing listings.
type ListFilter struct {
	CollectionID *string
	OwnerID      *string
	Limit        int
	Offset       int
}

// Repository is the persistence contract for listings.
//
// RemoveIfExists is the single mutual-exclusion point of the settlement flow:
// it must be linearizable across concurrent callers on the same key, so that
// at most one caller ever obtains a given listing.
type Repository interface {
	Create(ctx context.Context, l *Listing) error

	// Get is read-only and never gates mutation.
	Get(ctx context.Context, collectionID, assetID string) (*Listing, error)

	// RemoveIfExists atomically reads and deletes the listing, returning
	// ErrListingNotFound when it is absent or already claimed.
	RemoveIfExists(ctx context.Context, collectionID, assetID string) (*Listing, error)

	List(ctx context.Context, f ListFilter) ([]*Listing, error)
}
