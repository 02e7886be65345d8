// ascending.go implements the English and All-Pay engines (spec §4.2,
// §4.3). They share every rule except the refund-on-outbid step, so both
// are driven from the same core with an allPay flag rather than two
// parallel copies — the "tagged variant, no cross-kind inheritance"
// design note (spec §9) applied within a kind family too.
package auction

import (
	"context"
	"time"

	"github.com/nexuslabs/auctionengine/internal/events"
	"github.com/nexuslabs/auctionengine/internal/fixedpoint"
	"github.com/nexuslabs/auctionengine/internal/gateway"
	"github.com/nexuslabs/auctionengine/internal/ledger"
	"github.com/nexuslabs/auctionengine/pkg/logger"
)

// feeDenominator is the fixed fee-bps denominator (spec §6).
const feeDenominator = 10_000

func (d *Dispatcher) createAscending(ctx context.Context, req CreateRequest, allPay bool) (uint64, error) {
	if req.PayAsset == "" {
		return 0, ledger.Newf(ledger.AmountNonPositive, 0, "pay_asset must be set")
	}
	if req.Params.Duration <= 0 {
		return 0, ledger.Newf(ledger.AmountNonPositive, 0, "duration must be > 0")
	}
	if req.Params.DeadlineExtension < 0 {
		return 0, ledger.Newf(ledger.AmountNonPositive, 0, "deadline_extension must be >= 0")
	}

	kind := ledger.English
	if allPay {
		kind = ledger.AllPay
	}

	now := d.Clock.Now()
	deadline := now + req.Params.Duration
	feeBps := d.Params.FeeBps()

	id, err := d.Ledger.Create(ctx, func(id uint64) (*ledger.Record, []gateway.Intent, []events.Event, error) {
		rec := &ledger.Record{
			Kind:           kind,
			AssetKind:      req.AssetKind,
			Auctioneer:     req.Auctioneer,
			ItemAsset:      req.ItemAsset,
			ItemIDOrAmount: req.ItemIDOrAmount,
			PayAsset:       req.PayAsset,
			State:          ledger.Open,
			Winner:         req.Auctioneer,
			FeeBpsSnapshot: feeBps,
			CreatedAt:      now,
			English: &ledger.EnglishSchedule{
				StartingBid:       req.Params.StartingBid,
				MinBidDelta:       req.Params.MinBidDelta,
				Deadline:          deadline,
				DeadlineExtension: req.Params.DeadlineExtension,
				HighestBid:        0,
			},
		}
		intents := []gateway.Intent{
			{Op: gateway.OpTake, Kind: req.AssetKind, Asset: req.ItemAsset, Principal: gateway.Principal(req.Auctioneer), IDOrAmount: req.ItemIDOrAmount},
		}
		evt := events.New(events.AuctionCreated, id, map[string]any{
			"kind":       kind.String(),
			"auctioneer": string(req.Auctioneer),
			"deadline":   deadline,
		})
		return rec, intents, []events.Event{evt}, nil
	})
	if err != nil {
		return 0, err
	}

	if d.Metrics != nil {
		d.Metrics.RecordCreated(kind.String())
	}
	logger.Engine(kind.String()).Info().Uint64("auction_id", id).Msg("auction created")
	return id, nil
}

func (d *Dispatcher) ascendingBid(ctx context.Context, req BidRequest, allPay bool) error {
	if req.Delta == 0 {
		return ledger.Newf(ledger.AmountNonPositive, req.AuctionID, "delta must be > 0")
	}

	err := d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, bidders *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		if rec.English == nil {
			return nil, nil, ledger.Newf(ledger.Internal, rec.ID, "missing english schedule")
		}
		now := d.Clock.Now()
		if rec.State != ledger.Open || now >= rec.English.Deadline {
			return nil, nil, ledger.Newf(ledger.DeadlineReached, rec.ID, "auction is closed for bidding")
		}

		current := bidders.Get(req.Bidder)
		if current.Bid == 0 && d.Config != nil && d.Config.Limits != nil && bidders.Len() >= d.Config.Limits.MaxBiddersPerAuction {
			return nil, nil, ledger.Newf(ledger.LimitExceeded, rec.ID, "auction already has %d bidders", bidders.Len())
		}
		newTally := fixedpoint.SatAdd(current.Bid, req.Delta)

		if rec.English.HighestBid == 0 {
			if newTally < rec.English.StartingBid {
				return nil, nil, ledger.Newf(ledger.FirstBidBelowStart, rec.ID, "first bid %d below starting bid %d", newTally, rec.English.StartingBid)
			}
		} else {
			if newTally < rec.English.HighestBid+rec.English.MinBidDelta {
				return nil, nil, ledger.Newf(ledger.BidTooLow, rec.ID, "bid %d below required %d", newTally, rec.English.HighestBid+rec.English.MinBidDelta)
			}
		}

		intents := []gateway.Intent{
			{Op: gateway.OpTake, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(req.Bidder), IDOrAmount: req.Delta},
		}

		prevWinner := rec.Winner
		if !allPay && prevWinner != rec.Auctioneer && prevWinner != req.Bidder {
			prevTally := bidders.Get(prevWinner).Bid
			if prevTally > 0 {
				intents = append(intents, gateway.Intent{Op: gateway.OpRelease, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(prevWinner), IDOrAmount: prevTally})
				bidders.Set(prevWinner, ledger.BidderState{})
			}
		}

		bidders.Set(req.Bidder, ledger.BidderState{Bid: newTally})
		rec.English.HighestBid = newTally
		rec.Winner = req.Bidder
		// Deadline extension only ever grows the deadline (invariant 6).
		rec.English.Deadline += rec.English.DeadlineExtension

		if allPay {
			rec.AvailableFunds = fixedpoint.SatAdd(rec.AvailableFunds, req.Delta)
		} else {
			rec.AvailableFunds = newTally
		}

		evt := events.New(events.BidPlaced, rec.ID, map[string]any{
			"bidder":   string(req.Bidder),
			"amount":   newTally,
			"deadline": rec.English.Deadline,
		})
		return intents, []events.Event{evt}, nil
	})
	if err == nil && d.Metrics != nil {
		kind := ledger.English.String()
		if allPay {
			kind = ledger.AllPay.String()
		}
		d.Metrics.RecordBid(kind, req.Delta)
	}
	return err
}

func (d *Dispatcher) ascendingClaim(ctx context.Context, req ClaimRequest) error {
	err := d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, _ *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		if rec.IsClaimed {
			return nil, nil, ledger.Newf(ledger.AlreadyClaimed, rec.ID, "item already claimed")
		}
		if d.Clock.Now() < rec.English.Deadline {
			return nil, nil, ledger.Newf(ledger.DeadlineReached, rec.ID, "auction has not yet closed")
		}

		intents := []gateway.Intent{
			{Op: gateway.OpRelease, Kind: rec.AssetKind, Asset: rec.ItemAsset, Principal: gateway.Principal(rec.Winner), IDOrAmount: rec.ItemIDOrAmount},
		}
		rec.IsClaimed = true
		rec.State = ledger.Settled

		evt := events.New(events.Claimed, rec.ID, map[string]any{"winner": string(rec.Winner)})
		return intents, []events.Event{evt}, nil
	})
	if err == nil && d.Metrics != nil {
		if rec, ok := d.Ledger.Peek(req.AuctionID); ok {
			since := time.Duration(d.Clock.Now()-rec.CreatedAt) * time.Second
			d.Metrics.RecordSettlement(rec.Kind.String(), "claimed", since)
		}
	}
	return err
}

func (d *Dispatcher) ascendingWithdraw(ctx context.Context, req WithdrawRequest) error {
	return d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, _ *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		if d.Clock.Now() < rec.English.Deadline {
			return nil, nil, ledger.Newf(ledger.DeadlineReached, rec.ID, "auction has not yet closed")
		}

		gross := rec.AvailableFunds
		treasuryCut := fixedpoint.MulDiv(gross, uint64(rec.FeeBpsSnapshot), feeDenominator)
		auctioneerCut := gross - treasuryCut

		// Invariant 4: zero available_funds before any fungible send.
		rec.AvailableFunds = 0

		var intents []gateway.Intent
		if auctioneerCut > 0 {
			intents = append(intents, gateway.Intent{Op: gateway.OpRelease, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(rec.Auctioneer), IDOrAmount: auctioneerCut})
		}
		if treasuryCut > 0 {
			intents = append(intents, gateway.Intent{Op: gateway.OpRelease, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(d.Params.Treasury()), IDOrAmount: treasuryCut})
		}

		evt := events.New(events.Withdrawn, rec.ID, map[string]any{
			"auctioneer_amount": auctioneerCut,
			"treasury_amount":   treasuryCut,
		})
		return intents, []events.Event{evt}, nil
	})
}

func (d *Dispatcher) ascendingCancel(ctx context.Context, req CancelRequest) error {
	return d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, _ *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		if req.Caller != rec.Auctioneer {
			return nil, nil, ledger.Newf(ledger.NotAuctioneer, rec.ID, "only the auctioneer may cancel")
		}
		if d.Clock.Now() >= rec.English.Deadline {
			return nil, nil, ledger.Newf(ledger.DeadlineReached, rec.ID, "auction already closed")
		}
		if rec.Winner != rec.Auctioneer {
			return nil, nil, ledger.Newf(ledger.HasBids, rec.ID, "cannot cancel once a bid has been accepted")
		}

		intents := []gateway.Intent{
			{Op: gateway.OpRelease, Kind: rec.AssetKind, Asset: rec.ItemAsset, Principal: gateway.Principal(rec.Auctioneer), IDOrAmount: rec.ItemIDOrAmount},
		}
		rec.State = ledger.Cancelled

		evt := events.New(events.AuctionCancelled, rec.ID, map[string]any{"auctioneer": string(rec.Auctioneer)})
		return intents, []events.Event{evt}, nil
	})
}
