package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cassiomorais/marketsettle/internal/domain/asset"
	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/cassiomorais/marketsettle/internal/domain/vesting"
	"github.com/cassiomorais/marketsettle/internal/ledger"
	"github.com/google/uuid"
)

// --- Listing Repository Mock ---

// MockListingRepository is an in-memory implementation of listing.Repository.
type MockListingRepository struct {
	mu       sync.Mutex
	listings map[string]*listing.Listing

	CreateFunc         func(ctx context.Context, l *listing.Listing) error
	GetFunc            func(ctx context.Context, collectionID, assetID string) (*listing.Listing, error)
	RemoveIfExistsFunc func(ctx context.Context, collectionID, assetID string) (*listing.Listing, error)
}

func NewMockListingRepository() *MockListingRepository {
	return &MockListingRepository{listings: make(map[string]*listing.Listing)}
}

func listingKey(collectionID, assetID string) string {
	return collectionID + "/" + assetID
}

func (m *MockListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, l)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := listingKey(l.CollectionID, l.AssetID)
	if _, ok := m.listings[key]; ok {
		return domainErrors.ErrListingAlreadyExists
	}
	cp := *l
	m.listings[key] = &cp
	return nil
}

func (m *MockListingRepository) Get(ctx context.Context, collectionID, assetID string) (*listing.Listing, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, collectionID, assetID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[listingKey(collectionID, assetID)]
	if !ok {
		return nil, domainErrors.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MockListingRepository) RemoveIfExists(ctx context.Context, collectionID, assetID string) (*listing.Listing, error) {
	if m.RemoveIfExistsFunc != nil {
		return m.RemoveIfExistsFunc(ctx, collectionID, assetID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := listingKey(collectionID, assetID)
	l, ok := m.listings[key]
	if !ok {
		return nil, domainErrors.ErrListingNotFound
	}
	delete(m.listings, key)
	cp := *l
	return &cp, nil
}

func (m *MockListingRepository) List(ctx context.Context, f listing.ListFilter) ([]*listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*listing.Listing
	for _, l := range m.listings {
		if f.CollectionID != nil && l.CollectionID != *f.CollectionID {
			continue
		}
		if f.OwnerID != nil && l.OwnerID != *f.OwnerID {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

// Restore puts a listing back, mirroring a rolled-back remove.
func (m *MockListingRepository) Restore(l *listing.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.listings[listingKey(l.CollectionID, l.AssetID)] = &cp
}

// Has reports whether the listing is still present.
func (m *MockListingRepository) Has(collectionID, assetID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.listings[listingKey(collectionID, assetID)]
	return ok
}

// --- Compensation Log Mock ---

// MockCompensationLog is an in-memory implementation of
// settlement.CompensationLog.
type MockCompensationLog struct {
	mu      sync.Mutex
	records map[uuid.UUID]*settlement.SaleAttempt

	AppendFunc      func(ctx context.Context, s *settlement.SaleAttempt) error
	UpdateFunc      func(ctx context.Context, s *settlement.SaleAttempt) error
	GetFunc         func(ctx context.Context, sagaID uuid.UUID) (*settlement.SaleAttempt, error)
	ListPendingFunc func(ctx context.Context, olderThan time.Time) ([]*settlement.SaleAttempt, error)
}

func NewMockCompensationLog() *MockCompensationLog {
	return &MockCompensationLog{records: make(map[uuid.UUID]*settlement.SaleAttempt)}
}

func copyAttempt(s *settlement.SaleAttempt) *settlement.SaleAttempt {
	cp := *s
	if s.Payout != nil {
		cp.Payout = make(settlement.PayoutMap, len(s.Payout))
		for k, v := range s.Payout {
			cp.Payout[k] = v
		}
	}
	return &cp
}

func (m *MockCompensationLog) Append(ctx context.Context, s *settlement.SaleAttempt) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[s.SagaID] = copyAttempt(s)
	return nil
}

func (m *MockCompensationLog) Update(ctx context.Context, s *settlement.SaleAttempt) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[s.SagaID]
	if !ok {
		return domainErrors.ErrSagaNotFound
	}
	// Same compare-and-swap the Postgres repository performs: a copy loaded
	// before another writer's update must not overwrite that update.
	if stored.Version != s.Version {
		return domainErrors.ErrStaleRecord
	}
	s.Version++
	m.records[s.SagaID] = copyAttempt(s)
	return nil
}

func (m *MockCompensationLog) Get(ctx context.Context, sagaID uuid.UUID) (*settlement.SaleAttempt, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, sagaID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[sagaID]
	if !ok {
		return nil, domainErrors.ErrSagaNotFound
	}
	return copyAttempt(s), nil
}

func (m *MockCompensationLog) GetByCallID(ctx context.Context, callID uuid.UUID) (*settlement.SaleAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.records {
		for _, id := range []*uuid.UUID{s.PaymentCallID, s.TransferCallID, s.RefundCallID} {
			if id != nil && *id == callID {
				return copyAttempt(s), nil
			}
		}
	}
	return nil, domainErrors.ErrSagaNotFound
}

func (m *MockCompensationLog) ListPending(ctx context.Context, olderThan time.Time) ([]*settlement.SaleAttempt, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx, olderThan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*settlement.SaleAttempt
	for _, s := range m.records {
		if s.IsTerminal() || s.UpdatedAt.After(olderThan) {
			continue
		}
		out = append(out, copyAttempt(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (m *MockCompensationLog) List(ctx context.Context, f settlement.ListFilter) ([]*settlement.SaleAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*settlement.SaleAttempt
	for _, s := range m.records {
		if f.Phase != nil && s.Phase != *f.Phase {
			continue
		}
		if f.Refunded != nil && s.Refunded != *f.Refunded {
			continue
		}
		out = append(out, copyAttempt(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockCompensationLog) Release(ctx context.Context, sagaID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[sagaID]
	if !ok {
		return domainErrors.ErrSagaNotFound
	}
	if s.Phase != settlement.PhaseSettled {
		return domainErrors.NewDomainError("release_not_settled", "only settled records can be released", nil)
	}
	delete(m.records, sagaID)
	return nil
}

// Len returns the number of stored records.
func (m *MockCompensationLog) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// --- Transaction Manager Mock ---

// MockTransactionManager executes the function directly without transactions.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Recording Ledger Gateway ---

// GatewayCall records one issued external call.
type GatewayCall struct {
	Kind     settlement.CallKind
	SagaID   uuid.UUID
	CallID   uuid.UUID
	Party    string
	Amount   money.Amount
	Payout   settlement.PayoutMap
	AssetID  string
	Approval string
}

// RecordingGateway implements ledger.Gateway, recording every call and
// returning fresh call IDs. Individual calls can be forced to fail.
type RecordingGateway struct {
	mu    sync.Mutex
	calls []GatewayCall

	PaymentErr  error
	TransferErr error
	RefundErr   error
}

func NewRecordingGateway() *RecordingGateway {
	return &RecordingGateway{}
}

func (g *RecordingGateway) RequestPayment(ctx context.Context, sagaID uuid.UUID, payerID string, amount money.Amount) (uuid.UUID, error) {
	if g.PaymentErr != nil {
		return uuid.UUID{}, g.PaymentErr
	}
	callID := uuid.New()
	g.record(GatewayCall{Kind: settlement.CallPayment, SagaID: sagaID, CallID: callID, Party: payerID, Amount: amount})
	return callID, nil
}

func (g *RecordingGateway) RequestAssetTransfer(ctx context.Context, sagaID uuid.UUID, assetRef ledger.AssetRef, buyerID string, payout settlement.PayoutMap, memo string) (uuid.UUID, error) {
	if g.TransferErr != nil {
		return uuid.UUID{}, g.TransferErr
	}
	callID := uuid.New()
	g.record(GatewayCall{
		Kind: settlement.CallAssetTransfer, SagaID: sagaID, CallID: callID,
		Party: buyerID, Payout: payout, AssetID: assetRef.AssetID, Approval: assetRef.ApprovalToken,
	})
	return callID, nil
}

func (g *RecordingGateway) RequestRefund(ctx context.Context, sagaID uuid.UUID, payeeID string, amount money.Amount) (uuid.UUID, error) {
	if g.RefundErr != nil {
		return uuid.UUID{}, g.RefundErr
	}
	callID := uuid.New()
	g.record(GatewayCall{Kind: settlement.CallRefund, SagaID: sagaID, CallID: callID, Party: payeeID, Amount: amount})
	return callID, nil
}

func (g *RecordingGateway) record(c GatewayCall) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
}

// Calls returns a snapshot of all recorded calls in issue order.
func (g *RecordingGateway) Calls() []GatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GatewayCall, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallsOf returns the recorded calls of one kind.
func (g *RecordingGateway) CallsOf(kind settlement.CallKind) []GatewayCall {
	var out []GatewayCall
	for _, c := range g.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// --- Asset Repository Mock ---

// MockAssetRepository is an in-memory implementation of asset.Repository.
type MockAssetRepository struct {
	mu       sync.Mutex
	seq      uint64
	assets   map[string]*asset.Asset
	byPos    map[string]*asset.Asset
	deposits map[string]money.Amount
}

func NewMockAssetRepository() *MockAssetRepository {
	return &MockAssetRepository{
		assets:   make(map[string]*asset.Asset),
		byPos:    make(map[string]*asset.Asset),
		deposits: make(map[string]money.Amount),
	}
}

func (m *MockAssetRepository) NextSequence(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *MockAssetRepository) Create(ctx context.Context, a *asset.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[a.ID]; ok {
		return domainErrors.ErrDuplicateAsset
	}
	if _, ok := m.byPos[a.Position()]; ok {
		return domainErrors.ErrDuplicateAsset
	}
	cp := *a
	m.assets[a.ID] = &cp
	m.byPos[a.Position()] = &cp
	return nil
}

func (m *MockAssetRepository) Get(ctx context.Context, id string) (*asset.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, domainErrors.ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockAssetRepository) GetByPosition(ctx context.Context, x, y string) (*asset.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byPos[x+"-"+y]
	if !ok {
		return nil, domainErrors.ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockAssetRepository) List(ctx context.Context, limit, offset int) ([]*asset.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*asset.Asset
	for _, a := range m.assets {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockAssetRepository) AddStorageDeposit(ctx context.Context, ownerID string, amount money.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	total, err := m.deposits[ownerID].Add(amount)
	if err != nil {
		return err
	}
	m.deposits[ownerID] = total
	return nil
}

func (m *MockAssetRepository) StorageBalance(ctx context.Context, ownerID string) (money.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deposits[ownerID], nil
}

// --- Grant Repository Mock ---

// MockGrantRepository is an in-memory implementation of vesting.Repository.
type MockGrantRepository struct {
	mu     sync.Mutex
	grants map[uuid.UUID]*vesting.Grant
}

func NewMockGrantRepository() *MockGrantRepository {
	return &MockGrantRepository{grants: make(map[uuid.UUID]*vesting.Grant)}
}

func (m *MockGrantRepository) Create(ctx context.Context, g *vesting.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.grants[g.ID] = &cp
	return nil
}

func (m *MockGrantRepository) Get(ctx context.Context, id uuid.UUID) (*vesting.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[id]
	if !ok {
		return nil, domainErrors.ErrUnknownPackage
	}
	cp := *g
	return &cp, nil
}

func (m *MockGrantRepository) Update(ctx context.Context, g *vesting.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[g.ID]; !ok {
		return domainErrors.ErrUnknownPackage
	}
	cp := *g
	m.grants[g.ID] = &cp
	return nil
}

func (m *MockGrantRepository) ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]*vesting.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*vesting.Grant
	for _, g := range m.grants {
		if g.BuyerID != buyerID {
			continue
		}
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
