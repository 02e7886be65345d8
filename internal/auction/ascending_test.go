package auction

import (
	"context"
	"testing"

	"github.com/nexuslabs/auctionengine/internal/gateway"
	"github.com/nexuslabs/auctionengine/internal/ledger"
)

const oneE18 = 1_000_000_000_000_000_000

func TestEnglishHappyPath(t *testing.T) {
	rig := newRig(0, 100, "treasury")
	rig.gw.SeedItem("widgets", 7, "seller")
	rig.gw.Credit("usd", "a", 2*oneE18)
	rig.gw.Credit("usd", "b", 2*oneE18)
	ctx := context.Background()

	id, err := rig.d.Create(ctx, CreateRequest{
		Kind:           ledger.English,
		AssetKind:      gateway.Unique,
		Auctioneer:     "seller",
		ItemAsset:      "widgets",
		ItemIDOrAmount: 7,
		PayAsset:       "usd",
		Params:         Params{StartingBid: oneE18, MinBidDelta: 1e17, Duration: 5, DeadlineExtension: 10},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := rig.d.Bid(ctx, BidRequest{AuctionID: id, Bidder: "a", Delta: oneE18}); err != nil {
		t.Fatalf("bid A: %v", err)
	}
	rec, _ := rig.d.lookup(id)
	if rec.English.Deadline != 15 {
		t.Errorf("deadline after bid A = %d, want 15", rec.English.Deadline)
	}

	if err := rig.d.Bid(ctx, BidRequest{AuctionID: id, Bidder: "b", Delta: 1_200_000_000_000_000_000 - 0}); err != nil {
		t.Fatalf("bid B: %v", err)
	}
	// B's full tally must be 1.2e18, accepted as a first bid for B.
	if bal := rig.gw.Balance("usd", "a"); bal != 2*oneE18 {
		t.Errorf("A should have been refunded 1.0e18, balance = %d", bal)
	}

	rec, _ = rig.d.lookup(id)
	if rec.Winner != "b" {
		t.Fatalf("winner = %q, want b", rec.Winner)
	}
	if rec.English.Deadline != 25 {
		t.Errorf("deadline after bid B = %d, want 25", rec.English.Deadline)
	}

	rig.clock.Set(25)
	if err := rig.d.Claim(ctx, ClaimRequest{AuctionID: id, Caller: "b"}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if rig.gw.Owner("widgets", 7) != "b" {
		t.Errorf("item owner = %q, want b", rig.gw.Owner("widgets", 7))
	}

	if err := rig.d.Withdraw(ctx, WithdrawRequest{AuctionID: id, Caller: "seller"}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if bal := rig.gw.Balance("usd", "seller"); bal != 1_188_000_000_000_000_000 {
		t.Errorf("auctioneer payout = %d, want 1.188e18", bal)
	}
	if bal := rig.gw.Balance("usd", "treasury"); bal != 12_000_000_000_000_000 {
		t.Errorf("treasury payout = %d, want 0.012e18", bal)
	}
}

func TestAllPayWinnerSwap(t *testing.T) {
	rig := newRig(0, 100, "treasury")
	rig.gw.SeedItem("widgets", 1, "seller")
	rig.gw.Credit("usd", "a", 2*oneE18)
	rig.gw.Credit("usd", "b", 2*oneE18)
	ctx := context.Background()

	id, err := rig.d.Create(ctx, CreateRequest{
		Kind:           ledger.AllPay,
		AssetKind:      gateway.Unique,
		Auctioneer:     "seller",
		ItemAsset:      "widgets",
		ItemIDOrAmount: 1,
		PayAsset:       "usd",
		Params:         Params{StartingBid: oneE18, MinBidDelta: 1e17, Duration: 100, DeadlineExtension: 10},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := rig.d.Bid(ctx, BidRequest{AuctionID: id, Bidder: "a", Delta: oneE18}); err != nil {
		t.Fatalf("bid A: %v", err)
	}
	if err := rig.d.Bid(ctx, BidRequest{AuctionID: id, Bidder: "b", Delta: 1_200_000_000_000_000_000}); err != nil {
		t.Fatalf("bid B: %v", err)
	}
	// A's cumulative 1.5e18 needs only to clear b's 1.2e18 + min_bid_delta (1.3e18).
	if err := rig.d.Bid(ctx, BidRequest{AuctionID: id, Bidder: "a", Delta: 5 * 1e17}); err != nil {
		t.Fatalf("bid A again: %v", err)
	}

	rec, err := rig.d.lookup(id)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Winner != "a" {
		t.Fatalf("winner = %q, want a", rec.Winner)
	}
	if rec.AvailableFunds != 2_700_000_000_000_000_000 {
		t.Errorf("available_funds = %d, want 2.7e18", rec.AvailableFunds)
	}
	// All-pay never refunds a displaced leader.
	if bal := rig.gw.Balance("usd", "b"); bal != 2*oneE18-1_200_000_000_000_000_000 {
		t.Errorf("b should not have been refunded, balance = %d", bal)
	}
}

func TestAscendingCancelRequiresNoBids(t *testing.T) {
	rig := newRig(0, 100, "treasury")
	rig.gw.SeedItem("widgets", 1, "seller")
	rig.gw.Credit("usd", "a", oneE18)
	ctx := context.Background()

	id, err := rig.d.Create(ctx, CreateRequest{
		Kind: ledger.English, AssetKind: gateway.Unique, Auctioneer: "seller",
		ItemAsset: "widgets", ItemIDOrAmount: 1, PayAsset: "usd",
		Params: Params{StartingBid: oneE18, MinBidDelta: 1e17, Duration: 100, DeadlineExtension: 10},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := rig.d.Bid(ctx, BidRequest{AuctionID: id, Bidder: "a", Delta: oneE18}); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if err := rig.d.Cancel(ctx, CancelRequest{AuctionID: id, Caller: "seller"}); err == nil {
		t.Fatal("expected Cancel to fail once a bid has been accepted")
	}
}
