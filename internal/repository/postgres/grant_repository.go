package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/vesting"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GrantRepository implements vesting.Repository using PostgreSQL. Durations
// are stored as nanosecond integers to keep the linear-vesting arithmetic
// exact across the round trip.
type GrantRepository struct {
	pool *pgxpool.Pool
}

// NewGrantRepository creates a new GrantRepository.
func NewGrantRepository(pool *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{pool: pool}
}

func (r *GrantRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const grantColumns = `id, buyer_id, tier, quantity, total_tokens, claimed_tokens,
	 vest_start, vest_duration_ns, vest_cliff_ns, active, created_at`

// Create inserts a grant.
func (r *GrantRepository) Create(ctx context.Context, g *vesting.Grant) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO vesting_grants (`+grantColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		g.ID, g.BuyerID, int16(g.Tier), g.Quantity, g.Schedule.Total, g.Schedule.Claimed,
		g.Schedule.Start, g.Schedule.Duration.Nanoseconds(), g.Schedule.Cliff.Nanoseconds(),
		g.Schedule.Active, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

// Get retrieves a grant by ID.
func (r *GrantRepository) Get(ctx context.Context, id uuid.UUID) (*vesting.Grant, error) {
	return r.scanGrant(r.db(ctx).QueryRow(ctx,
		`SELECT `+grantColumns+` FROM vesting_grants WHERE id = $1`, id))
}

// Update persists claim progress.
func (r *GrantRepository) Update(ctx context.Context, g *vesting.Grant) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE vesting_grants SET claimed_tokens = $1, active = $2 WHERE id = $3`,
		g.Schedule.Claimed, g.Schedule.Active, g.ID,
	)
	if err != nil {
		return fmt.Errorf("update grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrUnknownPackage
	}
	return nil
}

// ListByBuyer lists a buyer's grants, oldest first.
func (r *GrantRepository) ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]*vesting.Grant, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+grantColumns+` FROM vesting_grants
		 WHERE buyer_id = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		buyerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []*vesting.Grant
	for rows.Next() {
		g, err := r.scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *GrantRepository) scanGrant(row scanner) (*vesting.Grant, error) {
	g := &vesting.Grant{}
	var tier int16
	var durationNs, cliffNs int64

	err := row.Scan(&g.ID, &g.BuyerID, &tier, &g.Quantity, &g.Schedule.Total, &g.Schedule.Claimed,
		&g.Schedule.Start, &durationNs, &cliffNs, &g.Schedule.Active, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUnknownPackage
		}
		return nil, fmt.Errorf("scan grant: %w", err)
	}

	g.Tier = uint8(tier)
	g.Schedule.Duration = time.Duration(durationNs)
	g.Schedule.Cliff = time.Duration(cliffNs)
	return g, nil
}
