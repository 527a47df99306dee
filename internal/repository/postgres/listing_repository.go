package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListingRepository implements listing.Repository using PostgreSQL. The
// (collection_id, asset_id) primary key plus a single-row DELETE RETURNING
// give RemoveIfExists its linearizability.
type ListingRepository struct {
	pool *pgxpool.Pool
}

// NewListingRepository creates a new ListingRepository.
func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const listingColumns = `collection_id, asset_id, owner_id, price, approval_token, royalties, created_at`

// Create inserts a new listing.
func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	royalties, err := json.Marshal(l.Royalties)
	if err != nil {
		return fmt.Errorf("marshal royalties: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO listings (collection_id, asset_id, owner_id, price, approval_token, royalties, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		l.CollectionID, l.AssetID, l.OwnerID, l.Price, l.ApprovalToken, royalties, l.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrListingAlreadyExists
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// Get retrieves a listing without gating any mutation.
func (r *ListingRepository) Get(ctx context.Context, collectionID, assetID string) (*listing.Listing, error) {
	return r.scanListing(r.db(ctx).QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE collection_id = $1 AND asset_id = $2`,
		collectionID, assetID))
}

// RemoveIfExists atomically claims the listing. The DELETE either returns the
// single row or nothing; two concurrent callers can never both see it.
func (r *ListingRepository) RemoveIfExists(ctx context.Context, collectionID, assetID string) (*listing.Listing, error) {
	return r.scanListing(r.db(ctx).QueryRow(ctx,
		`DELETE FROM listings WHERE collection_id = $1 AND asset_id = $2
		 RETURNING `+listingColumns,
		collectionID, assetID))
}

// List lists listings with optional filters.
func (r *ListingRepository) List(ctx context.Context, f listing.ListFilter) ([]*listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.CollectionID != nil {
		query += fmt.Sprintf(" AND collection_id = $%d", argIdx)
		args = append(args, *f.CollectionID)
		argIdx++
	}
	if f.OwnerID != nil {
		query += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, *f.OwnerID)
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []*listing.Listing
	for rows.Next() {
		l, err := r.scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (r *ListingRepository) scanListing(row scanner) (*listing.Listing, error) {
	l := &listing.Listing{}
	var royalties []byte

	err := row.Scan(&l.CollectionID, &l.AssetID, &l.OwnerID, &l.Price, &l.ApprovalToken, &royalties, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrListingNotFound
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	if len(royalties) > 0 {
		if err := json.Unmarshal(royalties, &l.Royalties); err != nil {
			return nil, fmt.Errorf("unmarshal royalties: %w", err)
		}
	}
	return l, nil
}
