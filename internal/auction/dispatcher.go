package auction

import (
	"context"
	"sync"
	"time"

	"github.com/nexuslabs/auctionengine/internal/capabilities"
	"github.com/nexuslabs/auctionengine/internal/gateway"
	"github.com/nexuslabs/auctionengine/internal/ledger"
	"github.com/nexuslabs/auctionengine/internal/metrics"
)

// Dispatcher routes a typed request to the engine matching the
// auction's kind. It never mutates state itself — every transition goes
// through ledger.State.Apply/Create so the effect-list discipline is
// enforced uniformly across all five protocols (spec §4.1).
type Dispatcher struct {
	Ledger  *ledger.State
	Clock   capabilities.Clock
	Params  capabilities.Parameters
	Metrics *metrics.Metrics
	Config  *Config

	debug *debugRecorder

	idemMu sync.Mutex
	idem   map[string]uint64
}

// New builds a Dispatcher over the given ledger, clock, and parameter
// source. Metrics may be nil. cfg is optional — pass nothing for
// DefaultConfig().
func New(l *ledger.State, clock capabilities.Clock, params capabilities.Parameters, m *metrics.Metrics, cfg ...*Config) *Dispatcher {
	var c *Config
	if len(cfg) > 0 {
		c = cfg[0]
	}
	return &Dispatcher{
		Ledger:  l,
		Clock:   clock,
		Params:  params,
		Metrics: m,
		Config:  validateConfig(c),
		debug:   &debugRecorder{},
		idem:    make(map[string]uint64),
	}
}

// LastDebug returns the DebugInfo captured by the most recent Create
// call, or nil if Config.DebugMode is off or no Create has run yet.
func (d *Dispatcher) LastDebug() *DebugInfo {
	return d.debug.Last()
}

func (d *Dispatcher) recordDebug(op string, id uint64, start time.Time, err error) {
	if d.Config == nil || !d.Config.DebugMode {
		return
	}
	d.debug.record(&DebugInfo{
		RequestTime: start,
		Latency:     time.Since(start),
		Op:          op,
		AuctionID:   id,
		Err:         err,
	})
}

// Create dispatches to the engine matching req.Kind. A non-empty
// req.IdempotencyKey that has been seen before returns the original
// auction's ID without creating a second auction.
func (d *Dispatcher) Create(ctx context.Context, req CreateRequest) (uint64, error) {
	start := time.Now()
	if req.IdempotencyKey != "" {
		d.idemMu.Lock()
		if id, ok := d.idem[req.IdempotencyKey]; ok {
			d.idemMu.Unlock()
			d.recordDebug("Create", id, start, nil)
			return id, nil
		}
		d.idemMu.Unlock()
	}

	id, err := d.dispatchCreate(ctx, req)
	if err == nil && req.IdempotencyKey != "" {
		d.idemMu.Lock()
		d.idem[req.IdempotencyKey] = id
		d.idemMu.Unlock()
	}
	d.recordDebug("Create", id, start, err)
	return id, err
}

func (d *Dispatcher) dispatchCreate(ctx context.Context, req CreateRequest) (uint64, error) {
	switch req.Kind {
	case ledger.English:
		return d.createAscending(ctx, req, false)
	case ledger.AllPay:
		return d.createAscending(ctx, req, true)
	case ledger.Vickrey:
		return d.createVickrey(ctx, req)
	case ledger.LinearRDutch:
		return d.createDutch(ctx, req, false)
	case ledger.ExpRDutch:
		return d.createDutch(ctx, req, true)
	default:
		return 0, ledger.Newf(ledger.KindMismatch, 0, "unknown auction kind %v", req.Kind)
	}
}

// lookup fetches a record and checks it exists, returning UnknownAuction
// otherwise. It never mutates.
func (d *Dispatcher) lookup(id uint64) (*ledger.Record, error) {
	rec, ok := d.Ledger.Peek(id)
	if !ok {
		return nil, ledger.Newf(ledger.UnknownAuction, id, "no such auction")
	}
	return rec, nil
}

func kindMismatch(rec *ledger.Record, op string) error {
	return ledger.Newf(ledger.KindMismatch, rec.ID, "%s is not supported for %v auctions", op, rec.Kind)
}

// Bid dispatches an ascending-auction (English/AllPay) bid.
func (d *Dispatcher) Bid(ctx context.Context, req BidRequest) error {
	rec, err := d.lookup(req.AuctionID)
	if err != nil {
		return err
	}
	switch rec.Kind {
	case ledger.English:
		return d.ascendingBid(ctx, req, false)
	case ledger.AllPay:
		return d.ascendingBid(ctx, req, true)
	default:
		return kindMismatch(rec, "Bid")
	}
}

// DutchBid dispatches a reverse-Dutch accept-at-current-price bid.
func (d *Dispatcher) DutchBid(ctx context.Context, req DutchBidRequest) error {
	rec, err := d.lookup(req.AuctionID)
	if err != nil {
		return err
	}
	switch rec.Kind {
	case ledger.LinearRDutch:
		return d.dutchBid(ctx, req, false)
	case ledger.ExpRDutch:
		return d.dutchBid(ctx, req, true)
	default:
		return kindMismatch(rec, "Bid")
	}
}

// CommitBid dispatches a Vickrey sealed-bid commitment.
func (d *Dispatcher) CommitBid(ctx context.Context, req CommitBidRequest) error {
	rec, err := d.lookup(req.AuctionID)
	if err != nil {
		return err
	}
	if rec.Kind != ledger.Vickrey {
		return kindMismatch(rec, "CommitBid")
	}
	return d.vickreyCommit(ctx, req)
}

// RevealBid dispatches a Vickrey reveal.
func (d *Dispatcher) RevealBid(ctx context.Context, req RevealBidRequest) error {
	rec, err := d.lookup(req.AuctionID)
	if err != nil {
		return err
	}
	if rec.Kind != ledger.Vickrey {
		return kindMismatch(rec, "RevealBid")
	}
	return d.vickreyReveal(ctx, req)
}

// Claim dispatches a post-settlement item claim.
func (d *Dispatcher) Claim(ctx context.Context, req ClaimRequest) error {
	rec, err := d.lookup(req.AuctionID)
	if err != nil {
		return err
	}
	switch rec.Kind {
	case ledger.English, ledger.AllPay:
		return d.ascendingClaim(ctx, req)
	case ledger.Vickrey:
		return d.vickreyClaim(ctx, req)
	case ledger.LinearRDutch, ledger.ExpRDutch:
		return d.dutchClaim(ctx, req)
	default:
		return kindMismatch(rec, "Claim")
	}
}

// Withdraw dispatches a proceeds payout.
func (d *Dispatcher) Withdraw(ctx context.Context, req WithdrawRequest) error {
	rec, err := d.lookup(req.AuctionID)
	if err != nil {
		return err
	}
	switch rec.Kind {
	case ledger.English, ledger.AllPay:
		return d.ascendingWithdraw(ctx, req)
	case ledger.Vickrey:
		return d.vickreyWithdraw(ctx, req)
	default:
		return kindMismatch(rec, "Withdraw")
	}
}

// Cancel dispatches a pre-settlement cancellation.
func (d *Dispatcher) Cancel(ctx context.Context, req CancelRequest) error {
	rec, err := d.lookup(req.AuctionID)
	if err != nil {
		return err
	}
	switch rec.Kind {
	case ledger.English, ledger.AllPay:
		return d.ascendingCancel(ctx, req)
	case ledger.Vickrey:
		return d.vickreyCancel(ctx, req)
	case ledger.LinearRDutch, ledger.ExpRDutch:
		return d.dutchCancel(ctx, req)
	default:
		return kindMismatch(rec, "Cancel")
	}
}
