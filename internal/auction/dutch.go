// dutch.go implements the linear and exponential reverse-Dutch engines
// (spec §4.5, §4.6): a strictly non-increasing ask price, first acceptor
// wins, and settlement — including the auctioneer/treasury fee split —
// happens immediately inside Bid rather than through a separate
// Withdraw, since there is never more than one successful bid.
package auction

import (
	"context"
	"time"

	"github.com/nexuslabs/auctionengine/internal/events"
	"github.com/nexuslabs/auctionengine/internal/fixedpoint"
	"github.com/nexuslabs/auctionengine/internal/gateway"
	"github.com/nexuslabs/auctionengine/internal/ledger"
)

func (d *Dispatcher) createDutch(ctx context.Context, req CreateRequest, isExp bool) (uint64, error) {
	if req.PayAsset == "" {
		return 0, ledger.Newf(ledger.AmountNonPositive, 0, "pay_asset must be set")
	}
	if req.Params.DutchDuration <= 0 {
		return 0, ledger.Newf(ledger.AmountNonPositive, 0, "duration must be > 0")
	}
	if req.Params.StartPrice < req.Params.MinPrice {
		return 0, ledger.Newf(ledger.AmountNonPositive, 0, "start_price must be >= min_price")
	}

	kind := ledger.LinearRDutch
	if isExp {
		kind = ledger.ExpRDutch
	}

	now := d.Clock.Now()
	deadline := now + req.Params.DutchDuration
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
			Dutch: &ledger.DutchSchedule{
				StartPrice:  req.Params.StartPrice,
				MinPrice:    req.Params.MinPrice,
				StartTs:     now,
				Deadline:    deadline,
				Duration:    req.Params.DutchDuration,
				DecayFactor: req.Params.DecayFactor,
				SettlePrice: req.Params.MinPrice,
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
	if err == nil && d.Metrics != nil {
		d.Metrics.RecordCreated(kind.String())
	}
	return id, err
}

// dutchPrice evaluates price(t) for a schedule, per spec §4.5/§4.6.
func dutchPrice(sched *ledger.DutchSchedule, now int64, isExp bool) uint64 {
	if now >= sched.Deadline {
		return sched.MinPrice
	}
	elapsed := uint64(now - sched.StartTs)
	spread := sched.StartPrice - sched.MinPrice

	if !isExp {
		return sched.StartPrice - fixedpoint.MulDiv(spread, elapsed, uint64(sched.Duration))
	}

	xRaw := fixedpoint.XRawFromDecay(elapsed, sched.DecayFactor)
	decay := fixedpoint.Pow2Neg(xRaw)
	return sched.MinPrice + fixedpoint.MulDiv(spread, decay, fixedpoint.One)
}

func (d *Dispatcher) dutchBid(ctx context.Context, req DutchBidRequest, isExp bool) error {
	var settledPrice uint64
	var createdAt int64
	var kind ledger.Kind
	err := d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, _ *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		sched := rec.Dutch
		now := d.Clock.Now()
		if rec.State != ledger.Open || rec.IsClaimed {
			return nil, nil, ledger.Newf(ledger.DeadlineReached, rec.ID, "auction already settled")
		}
		if now >= sched.Deadline {
			return nil, nil, ledger.Newf(ledger.DeadlineReached, rec.ID, "auction has closed unsold")
		}

		price := dutchPrice(sched, now, isExp)
		treasuryCut := fixedpoint.MulDiv(price, uint64(rec.FeeBpsSnapshot), feeDenominator)
		auctioneerCut := price - treasuryCut

		intents := []gateway.Intent{
			{Op: gateway.OpTake, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(req.Bidder), IDOrAmount: price},
			{Op: gateway.OpRelease, Kind: rec.AssetKind, Asset: rec.ItemAsset, Principal: gateway.Principal(req.Bidder), IDOrAmount: rec.ItemIDOrAmount},
		}
		if auctioneerCut > 0 {
			intents = append(intents, gateway.Intent{Op: gateway.OpRelease, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(rec.Auctioneer), IDOrAmount: auctioneerCut})
		}
		if treasuryCut > 0 {
			intents = append(intents, gateway.Intent{Op: gateway.OpRelease, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(d.Params.Treasury()), IDOrAmount: treasuryCut})
		}

		rec.Winner = req.Bidder
		rec.AvailableFunds = 0 // settled inline; nothing left to withdraw
		rec.IsClaimed = true
		rec.State = ledger.Settled
		sched.SettlePrice = price

		settledPrice, createdAt, kind = price, rec.CreatedAt, rec.Kind

		evt := events.New(events.BidPlaced, rec.ID, map[string]any{
			"bidder": string(req.Bidder),
			"price":  price,
		})
		claimedEvt := events.New(events.Claimed, rec.ID, map[string]any{"winner": string(req.Bidder)})
		return intents, []events.Event{evt, claimedEvt}, nil
	})
	if err == nil && d.Metrics != nil {
		d.Metrics.RecordBid(kind.String(), settledPrice)
		since := time.Duration(d.Clock.Now()-createdAt) * time.Second
		d.Metrics.RecordSettlement(kind.String(), "claimed", since)
	}
	return err
}

// dutchClaim is reserved for the winner-settlement path (spec §9's open
// question), which for the Dutch engines already ran synchronously
// inside dutchBid. By the time Claim could be called there is either
// already a settled winner (AlreadyClaimed) or no bid ever arrived, in
// which case reclaiming the item is Cancel's job, not Claim's.
func (d *Dispatcher) dutchClaim(ctx context.Context, req ClaimRequest) error {
	rec, err := d.lookup(req.AuctionID)
	if err != nil {
		return err
	}
	if rec.IsClaimed {
		return ledger.Newf(ledger.AlreadyClaimed, rec.ID, "item already claimed")
	}
	return ledger.Newf(ledger.NotWinner, rec.ID, "no bid has settled this auction; use Cancel to reclaim")
}

// dutchCancel returns the item to the auctioneer. Per spec §4.5 this is
// ordinarily pre-deadline with no bids; the resolved open question in
// §9 extends the same no-bids precondition to the post-deadline reclaim
// path, since Dutch settlement is always synchronous and so there is
// never a "claim after deadline" case distinct from "no bid ever came".
func (d *Dispatcher) dutchCancel(ctx context.Context, req CancelRequest) error {
	return d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, _ *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		if req.Caller != rec.Auctioneer {
			return nil, nil, ledger.Newf(ledger.NotAuctioneer, rec.ID, "only the auctioneer may cancel")
		}
		if rec.Winner != rec.Auctioneer || rec.IsClaimed {
			return nil, nil, ledger.Newf(ledger.HasBids, rec.ID, "cannot reclaim once a bid has settled")
		}

		intents := []gateway.Intent{
			{Op: gateway.OpRelease, Kind: rec.AssetKind, Asset: rec.ItemAsset, Principal: gateway.Principal(rec.Auctioneer), IDOrAmount: rec.ItemIDOrAmount},
		}
		rec.State = ledger.Cancelled

		evt := events.New(events.AuctionCancelled, rec.ID, map[string]any{"auctioneer": string(rec.Auctioneer)})
		return intents, []events.Event{evt}, nil
	})
}
