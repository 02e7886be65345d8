// vickrey.go implements the sealed-bid second-price engine (spec §4.4):
// a commit phase, a reveal phase that tracks the running highest and
// second-highest revealed bids, and settlement in which the winner pays
// the second-highest price.
package auction

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/nexuslabs/auctionengine/internal/capabilities"
	"github.com/nexuslabs/auctionengine/internal/events"
	"github.com/nexuslabs/auctionengine/internal/fixedpoint"
	"github.com/nexuslabs/auctionengine/internal/gateway"
	"github.com/nexuslabs/auctionengine/internal/ledger"
	"golang.org/x/crypto/sha3"
)

// minRevealDuration is the Vickrey MIN_REVEAL_DURATION constant (spec §6).
const minRevealDuration = 86_401

// commitHash computes H(BE(amount,32) ‖ salt_32) with Keccak-256, the
// packed big-endian encoding mandated by spec §6 — not the alternative
// domain-tagged scheme the source code sometimes uses instead.
func commitHash(amount uint64, salt [32]byte) [32]byte {
	var buf [64]byte
	binary.BigEndian.PutUint64(buf[24:32], amount) // bytes 0-23 are the zero-padded high end of the 32-byte amount
	copy(buf[32:], salt[:])

	h := sha3.NewLegacyKeccak256()
	h.Write(buf[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (d *Dispatcher) createVickrey(ctx context.Context, req CreateRequest) (uint64, error) {
	if req.PayAsset == "" {
		return 0, ledger.Newf(ledger.AmountNonPositive, 0, "pay_asset must be set")
	}
	if req.Params.CommitDuration <= 0 {
		return 0, ledger.Newf(ledger.AmountNonPositive, 0, "commit_duration must be > 0")
	}
	if req.Params.RevealDuration < minRevealDuration {
		return 0, ledger.Newf(ledger.AmountNonPositive, 0, "reveal_duration must be at least %d seconds", minRevealDuration)
	}

	now := d.Clock.Now()
	commitEnd := now + req.Params.CommitDuration
	revealEnd := commitEnd + req.Params.RevealDuration
	feeBps := d.Params.FeeBps()

	id, err := d.Ledger.Create(ctx, func(id uint64) (*ledger.Record, []gateway.Intent, []events.Event, error) {
		rec := &ledger.Record{
			Kind:           ledger.Vickrey,
			AssetKind:      req.AssetKind,
			Auctioneer:     req.Auctioneer,
			ItemAsset:      req.ItemAsset,
			ItemIDOrAmount: req.ItemIDOrAmount,
			PayAsset:       req.PayAsset,
			State:          ledger.SealedReveal,
			Winner:         req.Auctioneer,
			FeeBpsSnapshot: feeBps,
			CreatedAt:      now,
			Vickrey: &ledger.VickreySchedule{
				MinBid:    req.Params.MinBid,
				CommitEnd: commitEnd,
				RevealEnd: revealEnd,
				CommitFee: req.Params.CommitFee,
				// Sentinel second price: a lone revealer wins and pays
				// min_bid (spec §9 "Vickrey edge case").
				WinningBid: req.Params.MinBid,
			},
		}
		intents := []gateway.Intent{
			{Op: gateway.OpTake, Kind: req.AssetKind, Asset: req.ItemAsset, Principal: gateway.Principal(req.Auctioneer), IDOrAmount: req.ItemIDOrAmount},
		}
		evt := events.New(events.AuctionCreated, id, map[string]any{
			"kind":       ledger.Vickrey.String(),
			"auctioneer": string(req.Auctioneer),
			"commit_end": commitEnd,
			"reveal_end": revealEnd,
		})
		return rec, intents, []events.Event{evt}, nil
	})
	if err == nil && d.Metrics != nil {
		d.Metrics.RecordCreated(ledger.Vickrey.String())
	}
	return id, err
}

func (d *Dispatcher) vickreyCommit(ctx context.Context, req CommitBidRequest) error {
	return d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, bidders *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		v := rec.Vickrey
		if req.Bidder == rec.Auctioneer {
			return nil, nil, ledger.Newf(ledger.NotAuctioneer, rec.ID, "auctioneer may not bid in its own auction")
		}
		now := d.Clock.Now()
		if now >= v.CommitEnd {
			return nil, nil, ledger.Newf(ledger.BeforePhase, rec.ID, "commit phase has closed")
		}
		if req.FeeAmount != v.CommitFee {
			return nil, nil, ledger.Newf(ledger.CommitFeeMismatch, rec.ID, "fee %d does not match required %d", req.FeeAmount, v.CommitFee)
		}
		existing := bidders.Get(req.Bidder)
		if existing.HasCommitment {
			return nil, nil, ledger.Newf(ledger.AlreadyCommitted, rec.ID, "bidder already committed")
		}
		if d.Config != nil && d.Config.Limits != nil && bidders.Len() >= d.Config.Limits.MaxBiddersPerAuction {
			return nil, nil, ledger.Newf(ledger.LimitExceeded, rec.ID, "auction already has %d bidders", bidders.Len())
		}

		intents := []gateway.Intent{
			{Op: gateway.OpTake, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(req.Bidder), IDOrAmount: req.FeeAmount},
		}
		bidders.Set(req.Bidder, ledger.BidderState{Commitment: req.Commitment, HasCommitment: true})
		v.AccumulatedCommitFee = fixedpoint.SatAdd(v.AccumulatedCommitFee, req.FeeAmount)

		return intents, nil, nil
	})
}

func (d *Dispatcher) vickreyReveal(ctx context.Context, req RevealBidRequest) error {
	err := d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, bidders *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		v := rec.Vickrey
		now := d.Clock.Now()
		if now < v.CommitEnd {
			return nil, nil, ledger.Newf(ledger.BeforePhase, rec.ID, "reveal phase has not started")
		}
		if now >= v.RevealEnd {
			return nil, nil, ledger.Newf(ledger.DeadlineReached, rec.ID, "reveal phase has closed")
		}

		bidder := bidders.Get(req.Bidder)
		if !bidder.HasCommitment {
			return nil, nil, ledger.Newf(ledger.NotCommitted, rec.ID, "no commitment on file")
		}
		if commitHash(req.Amount, req.Salt) != bidder.Commitment {
			return nil, nil, ledger.Newf(ledger.InvalidReveal, rec.ID, "reveal does not match commitment")
		}

		intents := []gateway.Intent{
			{Op: gateway.OpTake, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(req.Bidder), IDOrAmount: req.Amount},
		}

		prevWinner := rec.Winner
		prevHigh := bidders.Get(prevWinner).Bid

		switch {
		case req.Amount > prevHigh:
			if prevHigh > 0 && prevWinner != req.Bidder && prevWinner != rec.Auctioneer {
				intents = append(intents, gateway.Intent{Op: gateway.OpRelease, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(prevWinner), IDOrAmount: prevHigh})
			}
			v.WinningBid = prevHigh
			if v.WinningBid < v.MinBid {
				v.WinningBid = v.MinBid
			}
			rec.AvailableFunds = v.WinningBid
			rec.Winner = req.Bidder
		case prevHigh >= req.Amount && req.Amount > v.WinningBid:
			intents = append(intents, gateway.Intent{Op: gateway.OpRelease, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(req.Bidder), IDOrAmount: req.Amount})
			v.WinningBid = req.Amount
			rec.AvailableFunds = req.Amount
		default:
			intents = append(intents, gateway.Intent{Op: gateway.OpRelease, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(req.Bidder), IDOrAmount: req.Amount})
		}

		// Refund the commit fee unconditionally on a valid reveal.
		fee := v.CommitFee
		if fee > 0 {
			intents = append(intents, gateway.Intent{Op: gateway.OpRelease, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(req.Bidder), IDOrAmount: fee})
			v.AccumulatedCommitFee = fixedpoint.SatSub(v.AccumulatedCommitFee, fee)
		}

		bidders.Set(req.Bidder, ledger.BidderState{Bid: req.Amount, Commitment: bidder.Commitment, HasCommitment: true})

		evt := events.New(events.BidRevealed, rec.ID, map[string]any{
			"bidder": string(req.Bidder),
			"amount": req.Amount,
		})
		return intents, []events.Event{evt}, nil
	})
	if err == nil && d.Metrics != nil {
		d.Metrics.RecordBid(ledger.Vickrey.String(), req.Amount)
	}
	return err
}

func (d *Dispatcher) vickreyClaim(ctx context.Context, req ClaimRequest) error {
	err := d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, bidders *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		v := rec.Vickrey
		if rec.IsClaimed {
			return nil, nil, ledger.Newf(ledger.AlreadyClaimed, rec.ID, "item already claimed")
		}
		if d.Clock.Now() < v.RevealEnd {
			return nil, nil, ledger.Newf(ledger.DeadlineReached, rec.ID, "reveal phase has not closed")
		}

		intents := []gateway.Intent{
			{Op: gateway.OpRelease, Kind: rec.AssetKind, Asset: rec.ItemAsset, Principal: gateway.Principal(rec.Winner), IDOrAmount: rec.ItemIDOrAmount},
		}

		if rec.Winner != rec.Auctioneer {
			revealed := bidders.Get(rec.Winner).Bid
			overpaid := fixedpoint.SatSub(revealed, v.WinningBid)
			if overpaid > 0 {
				intents = append(intents, gateway.Intent{Op: gateway.OpRelease, Kind: gateway.Fungible, Asset: rec.PayAsset, Principal: gateway.Principal(rec.Winner), IDOrAmount: overpaid})
			}
		}

		rec.IsClaimed = true
		rec.State = ledger.Settled

		evt := events.New(events.Claimed, rec.ID, map[string]any{"winner": string(rec.Winner), "winning_bid": v.WinningBid})
		return intents, []events.Event{evt}, nil
	})
	if err == nil && d.Metrics != nil {
		if rec, ok := d.Ledger.Peek(req.AuctionID); ok {
			since := time.Duration(d.Clock.Now()-rec.CreatedAt) * time.Second
			d.Metrics.RecordSettlement(ledger.Vickrey.String(), "claimed", since)
		}
	}
	return err
}

func (d *Dispatcher) vickreyWithdraw(ctx context.Context, req WithdrawRequest) error {
	return d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, _ *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		v := rec.Vickrey
		if d.Clock.Now() < v.RevealEnd {
			return nil, nil, ledger.Newf(ledger.DeadlineReached, rec.ID, "reveal phase has not closed")
		}

		gross := rec.AvailableFunds
		treasuryCut := fixedpoint.MulDiv(gross, uint64(rec.FeeBpsSnapshot), feeDenominator)
		auctioneerCut := gross - treasuryCut
		rec.AvailableFunds = 0

		noShowFee := v.AccumulatedCommitFee
		v.AccumulatedCommitFee = 0
		auctioneerCut = fixedpoint.SatAdd(auctioneerCut, noShowFee)

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

func (d *Dispatcher) vickreyCancel(ctx context.Context, req CancelRequest) error {
	return d.Ledger.Apply(ctx, req.AuctionID, func(rec *ledger.Record, bidders *ledger.Bidders) ([]gateway.Intent, []events.Event, error) {
		if req.Caller != rec.Auctioneer {
			return nil, nil, ledger.Newf(ledger.NotAuctioneer, rec.ID, "only the auctioneer may cancel")
		}
		if rec.IsClaimed || rec.State != ledger.SealedReveal {
			return nil, nil, ledger.Newf(ledger.AlreadyClaimed, rec.ID, "auction already settled")
		}
		if d.Clock.Now() >= rec.Vickrey.RevealEnd {
			return nil, nil, ledger.Newf(ledger.DeadlineReached, rec.ID, "reveal phase has closed")
		}
		hasCommitments := false
		bidders.Each(func(_ capabilities.Principal, st ledger.BidderState) {
			if st.HasCommitment {
				hasCommitments = true
			}
		})
		if hasCommitments {
			return nil, nil, ledger.Newf(ledger.CommitmentsExist, rec.ID, "cannot cancel once a commitment exists")
		}

		intents := []gateway.Intent{
			{Op: gateway.OpRelease, Kind: rec.AssetKind, Asset: rec.ItemAsset, Principal: gateway.Principal(rec.Auctioneer), IDOrAmount: rec.ItemIDOrAmount},
		}
		rec.State = ledger.Cancelled

		evt := events.New(events.AuctionCancelled, rec.ID, map[string]any{"auctioneer": string(rec.Auctioneer)})
		return intents, []events.Event{evt}, nil
	})
}
