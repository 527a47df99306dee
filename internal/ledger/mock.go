package ledger

import (
	"context"
	"math/rand"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/google/uuid"
)

// Sink receives the terminal callback for an issued call.
type Sink func(Callback)

// MockGateway simulates both external ledgers in process. Callbacks are
// delivered asynchronously to the registered sink after a configurable
// latency, with configurable failure and drop rates, so a saga can be driven
// end to end without reachable ledgers.
type MockGateway struct {
	mu   sync.Mutex
	sink Sink

	latency             time.Duration
	paymentFailureRate  float64
	transferFailureRate float64
	refundFailureRate   float64
	dropRate            float64
	rng                 *rand.Rand
}

type MockOption func(*MockGateway)

func WithLatency(d time.Duration) MockOption {
	return func(g *MockGateway) { g.latency = d }
}

func WithPaymentFailureRate(rate float64) MockOption {
	return func(g *MockGateway) { g.paymentFailureRate = rate }
}

func WithTransferFailureRate(rate float64) MockOption {
	return func(g *MockGateway) { g.transferFailureRate = rate }
}

func WithRefundFailureRate(rate float64) MockOption {
	return func(g *MockGateway) { g.refundFailureRate = rate }
}

// WithDropRate makes the gateway silently lose that fraction of callbacks,
// exercising the timeout/reconciliation path.
func WithDropRate(rate float64) MockOption {
	return func(g *MockGateway) { g.dropRate = rate }
}

func WithSeed(seed int64) MockOption {
	return func(g *MockGateway) { g.rng = rand.New(rand.NewSource(seed)) }
}

func NewMockGateway(opts ...MockOption) *MockGateway {
	g := &MockGateway{
		latency: 50 * time.Millisecond,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Subscribe registers the callback sink. Must be called before issuing calls.
func (g *MockGateway) Subscribe(sink Sink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sink = sink
}

func (g *MockGateway) RequestPayment(ctx context.Context, sagaID uuid.UUID, payerID string, amount money.Amount) (uuid.UUID, error) {
	return g.issue(ctx, sagaID, settlement.CallPayment, amount, g.paymentFailureRate, "payment ledger rejected the transfer")
}

func (g *MockGateway) RequestAssetTransfer(ctx context.Context, sagaID uuid.UUID, asset AssetRef, buyerID string, payout settlement.PayoutMap, memo string) (uuid.UUID, error) {
	if len(payout) == 0 {
		return uuid.UUID{}, domainErrors.ErrInvalidRoyaltySpec
	}
	return g.issue(ctx, sagaID, settlement.CallAssetTransfer, money.Zero(), g.transferFailureRate, "asset ledger rejected the transfer")
}

func (g *MockGateway) RequestRefund(ctx context.Context, sagaID uuid.UUID, payeeID string, amount money.Amount) (uuid.UUID, error) {
	return g.issue(ctx, sagaID, settlement.CallRefund, amount, g.refundFailureRate, "payment ledger rejected the refund")
}

func (g *MockGateway) issue(ctx context.Context, sagaID uuid.UUID, kind settlement.CallKind, amount money.Amount, failureRate float64, failReason string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.UUID{}, err
	}

	g.mu.Lock()
	sink := g.sink
	dropped := g.rng.Float64() < g.dropRate
	failed := g.rng.Float64() < failureRate
	g.mu.Unlock()

	if sink == nil {
		return uuid.UUID{}, domainErrors.ErrLedgerUnavailable
	}

	callID := uuid.New()
	cb := Callback{SagaID: sagaID, CallID: callID, Kind: kind, OK: !failed, Amount: amount}
	if failed {
		cb.Amount = money.Zero()
		cb.Reason = failReason
	}

	go func() {
		if g.latency > 0 {
			time.Sleep(g.latency)
		}
		if dropped {
			return
		}
		sink(cb)
	}()

	return callID, nil
}
