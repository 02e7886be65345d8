package auction

import (
	"context"
	"testing"

	"github.com/nexuslabs/auctionengine/internal/gateway"
	"github.com/nexuslabs/auctionengine/internal/ledger"
)

func approxEqual(t *testing.T, got, want uint64, tolerancePct float64) {
	t.Helper()
	diff := float64(got) - float64(want)
	if diff < 0 {
		diff = -diff
	}
	if diff/float64(want) > tolerancePct/100 {
		t.Errorf("got %d, want %d (tolerance %.2f%%)", got, want, tolerancePct)
	}
}

func TestLinearDutchPriceCurve(t *testing.T) {
	sched := &ledger.DutchSchedule{
		StartPrice: 10 * oneE18, MinPrice: 1 * oneE18,
		StartTs: 0, Deadline: 100, Duration: 100,
	}
	cases := []struct {
		t    int64
		want uint64
	}{
		{0, 10 * oneE18},
		{25, 7_750_000_000_000_000_000},
		{50, 5_500_000_000_000_000_000},
		{75, 3_250_000_000_000_000_000},
	}
	for _, c := range cases {
		got := dutchPrice(sched, c.t, false)
		approxEqual(t, got, c.want, 0.1)
	}
}

func TestExpDutchPriceCurve(t *testing.T) {
	sched := &ledger.DutchSchedule{
		StartPrice: 10 * oneE18, MinPrice: 1 * oneE18,
		StartTs: 0, Deadline: 100, Duration: 100, DecayFactor: 20000,
	}
	cases := []struct {
		t    int64
		want uint64
	}{
		{0, 10 * oneE18},
		{10, 3_250_000_000_000_000_000},
		{20, 1_562_500_000_000_000_000},
		{30, 1_140_625_000_000_000_000},
	}
	for _, c := range cases {
		got := dutchPrice(sched, c.t, true)
		approxEqual(t, got, c.want, 1)
	}
}

func TestLinearDutchBidSettlesImmediately(t *testing.T) {
	rig := newRig(0, 100, "treasury")
	rig.gw.SeedItem("widgets", 1, "seller")
	rig.gw.Credit("usd", "buyer", 10*oneE18)
	ctx := context.Background()

	id, err := rig.d.Create(ctx, CreateRequest{
		Kind: ledger.LinearRDutch, AssetKind: gateway.Unique, Auctioneer: "seller",
		ItemAsset: "widgets", ItemIDOrAmount: 1, PayAsset: "usd",
		Params: Params{StartPrice: 10 * oneE18, MinPrice: oneE18, DutchDuration: 100},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rig.clock.Set(25)

	if err := rig.d.DutchBid(ctx, DutchBidRequest{AuctionID: id, Bidder: "buyer"}); err != nil {
		t.Fatalf("DutchBid: %v", err)
	}

	if rig.gw.Owner("widgets", 1) != "buyer" {
		t.Errorf("item owner = %q, want buyer", rig.gw.Owner("widgets", 1))
	}
	wantPrice := uint64(7_750_000_000_000_000_000)
	if bal := rig.gw.Balance("usd", "buyer"); bal != 10*oneE18-wantPrice {
		t.Errorf("buyer balance = %d, want %d", bal, 10*oneE18-wantPrice)
	}
	wantTreasury := wantPrice / 100 // fee_bps=100
	if bal := rig.gw.Balance("usd", "treasury"); bal != wantTreasury {
		t.Errorf("treasury balance = %d, want %d", bal, wantTreasury)
	}
	if bal := rig.gw.Balance("usd", "seller"); bal != wantPrice-wantTreasury {
		t.Errorf("seller balance = %d, want %d", bal, wantPrice-wantTreasury)
	}

	// A second bid must observe the already-settled state and fail clean.
	rig.gw.Credit("usd", "late", 10*oneE18)
	if err := rig.d.DutchBid(ctx, DutchBidRequest{AuctionID: id, Bidder: "late"}); err == nil {
		t.Fatal("expected second DutchBid on a settled auction to fail")
	}
	if rig.gw.Owner("widgets", 1) != "buyer" {
		t.Error("item must not move a second time")
	}
}

func TestDutchClaimIsDiagnosticOnly(t *testing.T) {
	rig := newRig(0, 100, "treasury")
	rig.gw.SeedItem("widgets", 1, "seller")
	rig.gw.Credit("usd", "buyer", 10*oneE18)
	ctx := context.Background()

	id, err := rig.d.Create(ctx, CreateRequest{
		Kind: ledger.ExpRDutch, AssetKind: gateway.Unique, Auctioneer: "seller",
		ItemAsset: "widgets", ItemIDOrAmount: 1, PayAsset: "usd",
		Params: Params{StartPrice: 10 * oneE18, MinPrice: oneE18, DutchDuration: 100, DecayFactor: 20000},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// No bid ever arrives: Claim must not settle anything, Cancel reclaims.
	if err := rig.d.Claim(ctx, ClaimRequest{AuctionID: id, Caller: "seller"}); err == nil {
		t.Fatal("expected Claim with no settled winner to fail")
	}
	rig.clock.Set(101)
	if err := rig.d.Cancel(ctx, CancelRequest{AuctionID: id, Caller: "seller"}); err != nil {
		t.Fatalf("Cancel after unsold deadline: %v", err)
	}
	if rig.gw.Owner("widgets", 1) != "seller" {
		t.Errorf("item should have returned to seller, owner = %q", rig.gw.Owner("widgets", 1))
	}

	// Once settled, Claim reports AlreadyClaimed rather than re-settling.
	id2, err := rig.d.Create(ctx, CreateRequest{
		Kind: ledger.ExpRDutch, AssetKind: gateway.Unique, Auctioneer: "seller",
		ItemAsset: "widgets", ItemIDOrAmount: 1, PayAsset: "usd",
		Params: Params{StartPrice: 10 * oneE18, MinPrice: oneE18, DutchDuration: 100, DecayFactor: 20000},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := rig.d.DutchBid(ctx, DutchBidRequest{AuctionID: id2, Bidder: "buyer"}); err != nil {
		t.Fatalf("DutchBid: %v", err)
	}
	if err := rig.d.Claim(ctx, ClaimRequest{AuctionID: id2, Caller: "buyer"}); err == nil {
		t.Fatal("expected Claim on an already-settled Dutch auction to fail")
	}
}
