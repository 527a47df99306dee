package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/marketsettle/internal/domain/asset"
	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssetRepository implements asset.Repository using PostgreSQL.
type AssetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

func (r *AssetRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const assetColumns = `id, owner_id, x, y, title, description, media, extra, created_at`

// NextSequence issues the next mint ordinal from a dedicated sequence.
func (r *AssetRepository) NextSequence(ctx context.Context) (uint64, error) {
	var seq uint64
	if err := r.db(ctx).QueryRow(ctx, `SELECT nextval('asset_mint_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next asset sequence: %w", err)
	}
	return seq, nil
}

// Create inserts a parcel. Both the ID and the (x, y) pair are unique.
func (r *AssetRepository) Create(ctx context.Context, a *asset.Asset) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO assets (id, owner_id, x, y, title, description, media, extra, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.OwnerID, a.X, a.Y, a.Metadata.Title, a.Metadata.Description, a.Metadata.Media, a.Metadata.Extra, a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateAsset
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// Get retrieves a parcel by ID.
func (r *AssetRepository) Get(ctx context.Context, id string) (*asset.Asset, error) {
	return r.scanAsset(r.db(ctx).QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
}

// GetByPosition retrieves a parcel by its coordinate pair.
func (r *AssetRepository) GetByPosition(ctx context.Context, x, y string) (*asset.Asset, error) {
	return r.scanAsset(r.db(ctx).QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE x = $1 AND y = $2`, x, y))
}

// List lists parcels in mint order.
func (r *AssetRepository) List(ctx context.Context, limit, offset int) ([]*asset.Asset, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+assetColumns+` FROM assets ORDER BY created_at ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*asset.Asset
	for rows.Next() {
		a, err := r.scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// AddStorageDeposit credits the owner's storage balance.
func (r *AssetRepository) AddStorageDeposit(ctx context.Context, ownerID string, amount money.Amount) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO storage_deposits (owner_id, balance)
		 VALUES ($1, $2)
		 ON CONFLICT (owner_id) DO UPDATE SET balance = storage_deposits.balance + EXCLUDED.balance`,
		ownerID, amount,
	)
	if err != nil {
		return fmt.Errorf("add storage deposit: %w", err)
	}
	return nil
}

// StorageBalance returns the owner's storage balance, zero when absent.
func (r *AssetRepository) StorageBalance(ctx context.Context, ownerID string) (money.Amount, error) {
	var balance money.Amount
	err := r.db(ctx).QueryRow(ctx,
		`SELECT balance FROM storage_deposits WHERE owner_id = $1`, ownerID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return money.Zero(), nil
		}
		return money.Zero(), fmt.Errorf("get storage balance: %w", err)
	}
	return balance, nil
}

func (r *AssetRepository) scanAsset(row scanner) (*asset.Asset, error) {
	a := &asset.Asset{}
	err := row.Scan(&a.ID, &a.OwnerID, &a.X, &a.Y,
		&a.Metadata.Title, &a.Metadata.Description, &a.Metadata.Media, &a.Metadata.Extra, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrAssetNotFound
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	return a, nil
}
