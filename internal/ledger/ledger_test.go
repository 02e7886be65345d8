package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/nexuslabs/auctionengine/internal/events"
	"github.com/nexuslabs/auctionengine/internal/gateway"
)

var errBoom = errors.New("boom")

func newTestState() (*State, *gateway.MockGateway, *events.SliceSink) {
	gw := gateway.NewMockGateway()
	sink := events.NewSliceSink()
	rec := events.NewRecorder(sink, 1)
	return New(gw, rec), gw, sink
}

func TestCreateAndPeek(t *testing.T) {
	s, gw, _ := newTestState()
	gw.SeedItem("widgets", 1, "seller")

	id, err := s.Create(context.Background(), func(id uint64) (*Record, []gateway.Intent, []events.Event, error) {
		rec := &Record{
			Kind:           English,
			AssetKind:      gateway.Unique,
			Auctioneer:     "seller",
			ItemAsset:      "widgets",
			ItemIDOrAmount: 1,
			PayAsset:       "usd",
			Winner:         "seller",
			English:        &EnglishSchedule{StartingBid: 100, MinBidDelta: 10, Deadline: 1000, DeadlineExtension: 60},
		}
		intents := []gateway.Intent{{Op: gateway.OpTake, Kind: gateway.Unique, Asset: "widgets", Principal: "seller", IDOrAmount: 1}}
		return rec, intents, []events.Event{events.New(events.AuctionCreated, id, nil)}, nil
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	rec, ok := s.Peek(id)
	if !ok {
		t.Fatal("expected record to exist")
	}
	if rec.State != Open {
		t.Errorf("state = %v, want Open", rec.State)
	}
	if gw.Owner("widgets", 1) != "" {
		t.Errorf("item should have moved to escrow, owner = %q", gw.Owner("widgets", 1))
	}
}

func TestCreateRollsBackOnEscrowFailure(t *testing.T) {
	s, gw, _ := newTestState()
	gw.SeedItem("widgets", 1, "seller")
	gw.FailNext(1, errBoom)

	id, err := s.Create(context.Background(), func(id uint64) (*Record, []gateway.Intent, []events.Event, error) {
		rec := &Record{Kind: English, AssetKind: gateway.Unique, Auctioneer: "seller", ItemAsset: "widgets", ItemIDOrAmount: 1}
		intents := []gateway.Intent{{Op: gateway.OpTake, Kind: gateway.Unique, Asset: "widgets", Principal: "seller", IDOrAmount: 1}}
		return rec, intents, nil, nil
	})
	if err == nil {
		t.Fatal("expected EscrowFailed error")
	}
	if id != 0 {
		t.Errorf("expected id 0 on failure, got %d", id)
	}
	if _, ok := s.Peek(1); ok {
		t.Error("failed create must not leave a visible record")
	}
}

func TestApplyRollsBackOnEscrowFailure(t *testing.T) {
	s, gw, _ := newTestState()
	gw.SeedItem("widgets", 1, "seller")
	gw.Credit("usd", "bidder-a", 1000)

	id, err := s.Create(context.Background(), func(id uint64) (*Record, []gateway.Intent, []events.Event, error) {
		rec := &Record{
			Kind: English, AssetKind: gateway.Unique, Auctioneer: "seller",
			ItemAsset: "widgets", ItemIDOrAmount: 1, PayAsset: "usd", Winner: "seller",
			English: &EnglishSchedule{StartingBid: 100, MinBidDelta: 10, Deadline: 1000, DeadlineExtension: 60},
		}
		intents := []gateway.Intent{{Op: gateway.OpTake, Kind: gateway.Unique, Asset: "widgets", Principal: "seller", IDOrAmount: 1}}
		return rec, intents, nil, nil
	})
	if err != nil {
		t.Fatalf("setup Create failed: %v", err)
	}

	gw.FailNext(1, errBoom)

	err = s.Apply(context.Background(), id, func(rec *Record, bidders *Bidders) ([]gateway.Intent, []events.Event, error) {
		rec.English.HighestBid = 100
		rec.Winner = "bidder-a"
		bidders.Set("bidder-a", BidderState{Bid: 100})
		intents := []gateway.Intent{{Op: gateway.OpTake, Kind: gateway.Fungible, Asset: "usd", Principal: "bidder-a", IDOrAmount: 100}}
		return intents, nil, nil
	})
	if err == nil {
		t.Fatal("expected escrow failure to be reported")
	}

	rec, _ := s.Peek(id)
	if rec.Winner != "seller" {
		t.Errorf("winner should have rolled back to seller, got %q", rec.Winner)
	}
	if rec.English.HighestBid != 0 {
		t.Errorf("highest bid should have rolled back to 0, got %d", rec.English.HighestBid)
	}
	if bs := s.BidderState(id, "bidder-a"); bs.Bid != 0 {
		t.Errorf("bidder state should have rolled back, got bid=%d", bs.Bid)
	}
}
