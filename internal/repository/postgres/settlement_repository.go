package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettlementRepository implements settlement.CompensationLog using
// PostgreSQL. Each saga is one row carrying the consumed listing snapshot, so
// a settlement can always be audited even after its listing is gone.
type SettlementRepository struct {
	pool *pgxpool.Pool
}

// NewSettlementRepository creates a new SettlementRepository.
func NewSettlementRepository(pool *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{pool: pool}
}

func (r *SettlementRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const settlementColumns = `saga_id, collection_id, asset_id, seller_id, price, approval_token, royalties,
	 listed_at, buyer_id, agreed_price, phase, payout,
	 payment_call_id, transfer_call_id, refund_call_id,
	 payment_collected, refunded, last_error, version, created_at, updated_at`

// Append persists a freshly initiated sale attempt.
func (r *SettlementRepository) Append(ctx context.Context, s *settlement.SaleAttempt) error {
	royalties, payout, err := marshalSpecs(s)
	if err != nil {
		return err
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO settlements (`+settlementColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		s.SagaID, s.Listing.CollectionID, s.Listing.AssetID, s.Listing.OwnerID,
		s.Listing.Price, s.Listing.ApprovalToken, royalties,
		s.Listing.CreatedAt, s.BuyerID, s.AgreedPrice, string(s.Phase), payout,
		s.PaymentCallID, s.TransferCallID, s.RefundCallID,
		s.PaymentCollected, s.Refunded, s.LastError, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

// Update persists a phase transition. The write is compare-and-swap on the
// record version: the callback consumer and the reconciler can both hold a
// copy of the same saga, and whichever writes second must not erase the
// earlier transition. A stale copy gets ErrStaleRecord and the caller
// re-reads.
func (r *SettlementRepository) Update(ctx context.Context, s *settlement.SaleAttempt) error {
	_, payout, err := marshalSpecs(s)
	if err != nil {
		return err
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE settlements SET
		  phase=$1, payout=$2,
		  payment_call_id=$3, transfer_call_id=$4, refund_call_id=$5,
		  payment_collected=$6, refunded=$7, last_error=$8, updated_at=$9,
		  version=version+1
		 WHERE saga_id=$10 AND version=$11`,
		string(s.Phase), payout,
		s.PaymentCallID, s.TransferCallID, s.RefundCallID,
		s.PaymentCollected, s.Refunded, s.LastError, s.UpdatedAt, s.SagaID, s.Version,
	)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM settlements WHERE saga_id = $1)`, s.SagaID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check settlement existence: %w", err)
		}
		if exists {
			return domainErrors.ErrStaleRecord
		}
		return domainErrors.ErrSagaNotFound
	}
	s.Version++
	return nil
}

// Get retrieves a saga by ID.
func (r *SettlementRepository) Get(ctx context.Context, sagaID uuid.UUID) (*settlement.SaleAttempt, error) {
	return r.scanAttempt(r.db(ctx).QueryRow(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE saga_id = $1`, sagaID))
}

// GetByCallID resolves the saga awaiting the given correlation token.
func (r *SettlementRepository) GetByCallID(ctx context.Context, callID uuid.UUID) (*settlement.SaleAttempt, error) {
	return r.scanAttempt(r.db(ctx).QueryRow(ctx,
		`SELECT `+settlementColumns+` FROM settlements
		 WHERE payment_call_id = $1 OR transfer_call_id = $1 OR refund_call_id = $1`, callID))
}

// ListPending returns non-terminal sagas whose last transition is older than
// the cutoff, oldest first.
func (r *SettlementRepository) ListPending(ctx context.Context, olderThan time.Time) ([]*settlement.SaleAttempt, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+settlementColumns+` FROM settlements
		 WHERE phase NOT IN ('settled', 'failed') AND updated_at <= $1
		 ORDER BY updated_at ASC`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list pending settlements: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// List lists sagas with optional filters.
func (r *SettlementRepository) List(ctx context.Context, f settlement.ListFilter) ([]*settlement.SaleAttempt, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.Phase != nil {
		query += fmt.Sprintf(" AND phase = $%d", argIdx)
		args = append(args, string(*f.Phase))
		argIdx++
	}
	if f.Refunded != nil {
		query += fmt.Sprintf(" AND refunded = $%d", argIdx)
		args = append(args, *f.Refunded)
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
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// Release removes a settled record. Failed records are retained for audit,
// so releasing anything but a settled saga is refused.
func (r *SettlementRepository) Release(ctx context.Context, sagaID uuid.UUID) error {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM settlements WHERE saga_id = $1 AND phase = 'settled'`, sagaID)
	if err != nil {
		return fmt.Errorf("release settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSagaNotFound
	}
	return nil
}

func (r *SettlementRepository) collect(rows pgx.Rows) ([]*settlement.SaleAttempt, error) {
	var attempts []*settlement.SaleAttempt
	for rows.Next() {
		s, err := r.scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, s)
	}
	return attempts, rows.Err()
}

func (r *SettlementRepository) scanAttempt(row scanner) (*settlement.SaleAttempt, error) {
	s := &settlement.SaleAttempt{}
	var phase string
	var royalties, payout []byte

	err := row.Scan(
		&s.SagaID, &s.Listing.CollectionID, &s.Listing.AssetID, &s.Listing.OwnerID,
		&s.Listing.Price, &s.Listing.ApprovalToken, &royalties,
		&s.Listing.CreatedAt, &s.BuyerID, &s.AgreedPrice, &phase, &payout,
		&s.PaymentCallID, &s.TransferCallID, &s.RefundCallID,
		&s.PaymentCollected, &s.Refunded, &s.LastError, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSagaNotFound
		}
		return nil, fmt.Errorf("scan settlement: %w", err)
	}

	s.Phase = settlement.Phase(phase)
	if len(royalties) > 0 {
		if err := json.Unmarshal(royalties, &s.Listing.Royalties); err != nil {
			return nil, fmt.Errorf("unmarshal royalties: %w", err)
		}
	}
	if len(payout) > 0 {
		if err := json.Unmarshal(payout, &s.Payout); err != nil {
			return nil, fmt.Errorf("unmarshal payout: %w", err)
		}
	}
	return s, nil
}

func marshalSpecs(s *settlement.SaleAttempt) (royalties, payout []byte, err error) {
	if royalties, err = json.Marshal(s.Listing.Royalties); err != nil {
		return nil, nil, fmt.Errorf("marshal royalties: %w", err)
	}
	if s.Payout != nil {
		if payout, err = json.Marshal(s.Payout); err != nil {
			return nil, nil, fmt.Errorf("marshal payout: %w", err)
		}
	}
	return royalties, payout, nil
}
