package asset_test

import (
	"context"
	"errors"
	"testing"

	assetApp "github.com/cassiomorais/marketsettle/internal/application/asset"
	"github.com/cassiomorais/marketsettle/internal/domain/asset"
	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/testutil"
	"github.com/rs/zerolog"
)

func newMintFixture() (*assetApp.MintAssetUseCase, *testutil.MockAssetRepository) {
	repo := testutil.NewMockAssetRepository()
	uc := assetApp.NewMintAssetUseCase(
		repo,
		testutil.NewMockTransactionManager(),
		money.FromUint64(100),
		money.FromUint64(50),
		zerolog.Nop(),
	)
	return uc, repo
}

func TestMintAsset_SequentialIDs(t *testing.T) {
	ctx := context.Background()
	uc, _ := newMintFixture()

	first, err := uc.Execute(ctx, assetApp.MintAssetRequest{
		OwnerID: "alice", X: "10", Y: "20", AttachedDeposit: money.FromUint64(150),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := uc.Execute(ctx, assetApp.MintAssetRequest{
		OwnerID: "bob", X: "11", Y: "20", AttachedDeposit: money.FromUint64(150),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Asset.ID != "r1" || second.Asset.ID != "r2" {
		t.Errorf("expected r1 and r2, got %s and %s", first.Asset.ID, second.Asset.ID)
	}
	if first.Asset.Metadata.Title != "Land #10-20" {
		t.Errorf("unexpected default title %q", first.Asset.Metadata.Title)
	}
}

func TestMintAsset_DuplicatePosition(t *testing.T) {
	ctx := context.Background()
	uc, _ := newMintFixture()

	if _, err := uc.Execute(ctx, assetApp.MintAssetRequest{
		OwnerID: "alice", X: "10", Y: "20", AttachedDeposit: money.FromUint64(150),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := uc.Execute(ctx, assetApp.MintAssetRequest{
		OwnerID: "bob", X: "10", Y: "20", AttachedDeposit: money.FromUint64(150),
	})
	if !errors.Is(err, domainErrors.ErrDuplicateAsset) {
		t.Fatalf("expected ErrDuplicateAsset, got %v", err)
	}
}

func TestMintAsset_DepositTooLow(t *testing.T) {
	ctx := context.Background()
	uc, repo := newMintFixture()

	_, err := uc.Execute(ctx, assetApp.MintAssetRequest{
		OwnerID: "alice", X: "10", Y: "20", AttachedDeposit: money.FromUint64(149),
	})
	if !errors.Is(err, domainErrors.ErrDepositTooLow) {
		t.Fatalf("expected ErrDepositTooLow, got %v", err)
	}
	if _, err := repo.GetByPosition(ctx, "10", "20"); !errors.Is(err, domainErrors.ErrAssetNotFound) {
		t.Error("expected nothing minted for a rejected deposit")
	}
}

func TestMintAsset_SurplusCreditedToStorage(t *testing.T) {
	ctx := context.Background()
	uc, repo := newMintFixture()

	resp, err := uc.Execute(ctx, assetApp.MintAssetRequest{
		OwnerID: "alice", X: "10", Y: "20", AttachedDeposit: money.FromUint64(200),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Surplus.Equal(money.FromUint64(50)) {
		t.Errorf("expected surplus 50, got %s", resp.Surplus)
	}

	balance, err := repo.StorageBalance(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Equal(money.FromUint64(50)) {
		t.Errorf("expected storage balance 50, got %s", balance)
	}
}

func TestGetAsset_InvalidID(t *testing.T) {
	ctx := context.Background()
	uc := assetApp.NewGetAssetUseCase(testutil.NewMockAssetRepository())

	_, err := uc.Execute(ctx, "R1")
	if !errors.Is(err, domainErrors.ErrInvalidAssetID) {
		t.Fatalf("expected ErrInvalidAssetID for uppercase id, got %v", err)
	}
}

func TestMintAsset_MetadataExtraCarriesPosition(t *testing.T) {
	ctx := context.Background()
	uc, _ := newMintFixture()

	resp, err := uc.Execute(ctx, assetApp.MintAssetRequest{
		OwnerID: "alice", X: "3", Y: "7",
		Metadata:        asset.Metadata{Title: "My Parcel"},
		AttachedDeposit: money.FromUint64(150),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Asset.Metadata.Title != "My Parcel" {
		t.Errorf("explicit title must be kept, got %q", resp.Asset.Metadata.Title)
	}
	if resp.Asset.Metadata.Extra != `{"x":"3","y":"7"}` {
		t.Errorf("unexpected extra payload %q", resp.Asset.Metadata.Extra)
	}
}
