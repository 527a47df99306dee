package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/cassiomorais/marketsettle/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/marketsettle/internal/infrastructure/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

const (
	paymentLedger = "payment"
	assetLedger   = "asset"
)

// BreakerSettings bounds publish attempts against a misbehaving transport.
type BreakerSettings struct {
	Threshold int
	Timeout   time.Duration
}

// StreamGateway implements Gateway by publishing call requests to the ledger
// request stream. A bridge process outside this service forwards them to the
// real ledgers and writes terminal callbacks to the callback stream.
type StreamGateway struct {
	producer *infraRedis.StreamProducer
	fundFlow FundFlow
	breakers map[string]*gobreaker.CircuitBreaker[string]
	metrics  *observability.Metrics
}

// NewStreamGateway builds the gateway. metrics may be nil.
func NewStreamGateway(producer *infraRedis.StreamProducer, fundFlow FundFlow, bs BreakerSettings, metrics *observability.Metrics) *StreamGateway {
	if bs.Threshold <= 0 {
		bs.Threshold = 10
	}
	if bs.Timeout <= 0 {
		bs.Timeout = 30 * time.Second
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker[string], 2)
	for _, name := range []string{paymentLedger, assetLedger} {
		breakers[name] = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        name,
			MaxRequests: 10,
			Interval:    60 * time.Second,
			Timeout:     bs.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= uint32(bs.Threshold) && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if metrics != nil {
					metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
				}
			},
		})
	}

	return &StreamGateway{
		producer: producer,
		fundFlow: fundFlow,
		breakers: breakers,
		metrics:  metrics,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (g *StreamGateway) RequestPayment(ctx context.Context, sagaID uuid.UUID, payerID string, amount money.Amount) (uuid.UUID, error) {
	callID := uuid.New()
	return callID, g.publish(ctx, paymentLedger, map[string]any{
		"kind":      string(settlement.CallPayment),
		"saga_id":   sagaID.String(),
		"call_id":   callID.String(),
		"payer_id":  payerID,
		"amount":    amount.String(),
		"fund_flow": string(g.fundFlow),
	})
}

func (g *StreamGateway) RequestAssetTransfer(ctx context.Context, sagaID uuid.UUID, asset AssetRef, buyerID string, payout settlement.PayoutMap, memo string) (uuid.UUID, error) {
	if len(payout) == 0 {
		return uuid.UUID{}, domainErrors.ErrInvalidRoyaltySpec
	}
	payoutJSON, err := json.Marshal(payout)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("marshal payout map: %w", err)
	}

	callID := uuid.New()
	return callID, g.publish(ctx, assetLedger, map[string]any{
		"kind":           string(settlement.CallAssetTransfer),
		"saga_id":        sagaID.String(),
		"call_id":        callID.String(),
		"collection_id":  asset.CollectionID,
		"asset_id":       asset.AssetID,
		"approval_token": asset.ApprovalToken,
		"receiver_id":    buyerID,
		"payout":         string(payoutJSON),
		"memo":           memo,
	})
}

func (g *StreamGateway) RequestRefund(ctx context.Context, sagaID uuid.UUID, payeeID string, amount money.Amount) (uuid.UUID, error) {
	callID := uuid.New()
	return callID, g.publish(ctx, paymentLedger, map[string]any{
		"kind":     string(settlement.CallRefund),
		"saga_id":  sagaID.String(),
		"call_id":  callID.String(),
		"payee_id": payeeID,
		"amount":   amount.String(),
	})
}

func (g *StreamGateway) publish(ctx context.Context, ledgerName string, values map[string]any) error {
	values["issued_at"] = time.Now().UnixMilli()

	breaker := g.breakers[ledgerName]
	_, err := breaker.Execute(func() (string, error) {
		return g.producer.Publish(ctx, infraRedis.LedgerRequestStream, values)
	})

	kind, _ := values["kind"].(string)
	if g.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		g.metrics.LedgerCallsTotal.WithLabelValues(kind, result).Inc()
	}

	if err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrLedgerUnavailable, err)
	}
	return nil
}

// ParseCallback decodes a callback stream message.
func ParseCallback(msg redis.XMessage) (Callback, error) {
	str := func(key string) string {
		v, _ := msg.Values[key].(string)
		return v
	}

	sagaID, err := uuid.Parse(str("saga_id"))
	if err != nil {
		return Callback{}, fmt.Errorf("callback %s: bad saga_id: %w", msg.ID, err)
	}
	callID, err := uuid.Parse(str("call_id"))
	if err != nil {
		return Callback{}, fmt.Errorf("callback %s: bad call_id: %w", msg.ID, err)
	}

	kind := settlement.CallKind(str("kind"))
	switch kind {
	case settlement.CallPayment, settlement.CallAssetTransfer, settlement.CallRefund:
	default:
		return Callback{}, fmt.Errorf("callback %s: unknown kind %q", msg.ID, str("kind"))
	}

	cb := Callback{
		SagaID: sagaID,
		CallID: callID,
		Kind:   kind,
		OK:     str("ok") == "true" || str("ok") == "1",
		Reason: str("reason"),
	}
	if raw := str("amount"); raw != "" {
		amount, err := money.Parse(raw)
		if err != nil {
			return Callback{}, fmt.Errorf("callback %s: bad amount: %w", msg.ID, err)
		}
		cb.Amount = amount
	}
	return cb, nil
}
