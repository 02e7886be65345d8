// Package ledger owns the auction table and per-bidder accounting maps
// and enforces the engine's central reentrancy defense: the effect-list
// pattern (spec §4.8). A transition computes its full state delta and
// its external-effect intents while holding an exclusive in-process
// lock; the lock is released before any AssetGateway call executes, so
// a re-entrant callback always observes the already-committed state. If
// any effect fails, the state mutation is rolled back and the whole
// operation reports EscrowFailed — partial transitions never happen.
//
// This is the portable equivalent of the teacher's container.Service
// hook pipeline (internal/container/service.go): there, a sequence of
// hooks runs under a lock-protected registry and results flow forward
// through the pipeline; here, a sequence of gateway intents runs after
// the lock-protected state change, and a failure anywhere in the
// sequence unwinds the change instead of continuing fail-open.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/nexuslabs/auctionengine/internal/capabilities"
	"github.com/nexuslabs/auctionengine/internal/events"
	"github.com/nexuslabs/auctionengine/internal/gateway"
	"github.com/nexuslabs/auctionengine/internal/metrics"
	"github.com/nexuslabs/auctionengine/pkg/logger"
)

// State owns every auction record and bidder-accounting entry in the
// process. One State instance is shared by the whole engine; operations
// against different auction ids may run concurrently from the caller's
// point of view, but State totally orders them internally with a single
// mutex, matching the "single-threaded cooperative per auction"
// scheduling model of spec §5 in its simplest (unsharded) form.
type State struct {
	mu sync.Mutex

	nextID   uint64
	auctions map[uint64]*Record
	bidders  map[uint64]map[capabilities.Principal]BidderState

	gw      gateway.AssetGateway
	events  *events.Recorder
	metrics *metrics.Metrics
}

// New creates an empty ledger State backed by the given AssetGateway and
// event recorder. m is optional — pass nil to run without gateway/rollback
// metrics, or supply one to observe the effect-list boundary from outside
// the engine layer.
func New(gw gateway.AssetGateway, recorder *events.Recorder, m ...*metrics.Metrics) *State {
	var met *metrics.Metrics
	if len(m) > 0 {
		met = m[0]
	}
	return &State{
		auctions: make(map[uint64]*Record),
		bidders:  make(map[uint64]map[capabilities.Principal]BidderState),
		gw:       gw,
		events:   recorder,
		metrics:  met,
	}
}

// Peek returns a read-only copy of an auction record, for callers that
// only need to inspect state (e.g. precondition checks before building a
// transaction). It takes the same lock as Apply, so the returned copy
// may be stale the instant it's returned under concurrent writers — it
// must never be used to decide whether a mutation is safe; only Apply's
// txn closure may do that.
func (s *State) Peek(id uint64) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.auctions[id]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// BidderState returns a copy of a bidder's accounting entry for a given
// auction, or the zero value if none exists.
func (s *State) BidderState(id uint64, p capabilities.Principal) BidderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bidders[id][p]
}

// Txn is the closure shape every engine transition supplies to Apply. It
// receives the live record and a Bidders accessor scoped to this
// auction, mutates them directly (still under State's lock — no
// suspension point has happened yet), and returns the gateway intents to
// execute and the events to emit once the mutation is durable. Returning
// a non-nil error aborts before any mutation is considered committed.
type Txn func(rec *Record, bidders *Bidders) ([]gateway.Intent, []events.Event, error)

// Apply runs txn against auction id under the ledger's lock, commits the
// resulting state by dropping the lock, then executes the returned
// intents in order. If every intent succeeds, the emitted events are
// recorded and Apply returns nil. If any intent fails, the auction
// record and bidder map are restored to their pre-txn snapshot and Apply
// returns an EscrowFailed error wrapping the gateway failure.
func (s *State) Apply(ctx context.Context, id uint64, txn Txn) error {
	s.mu.Lock()
	rec, ok := s.auctions[id]
	if !ok {
		s.mu.Unlock()
		return Newf(UnknownAuction, id, "no such auction")
	}

	recSnapshot := rec.clone()
	bidderSnapshot := cloneBidders(s.bidders[id])

	bidders := &Bidders{state: s, auctionID: id}
	intents, evts, err := txn(rec, bidders)
	if err != nil {
		// txn validates before mutating; nothing to unwind.
		s.mu.Unlock()
		return err
	}

	// Commit: the mutated rec is already stored under id (same pointer),
	// and bidders were mutated in place via s.bidders[id]. Drop the lock
	// before any external call — this is the reentrancy boundary.
	s.mu.Unlock()

	for _, intent := range intents {
		start := time.Now()
		execErr := intent.Execute(ctx, s.gw)
		if s.metrics != nil {
			s.metrics.RecordGatewayCall(intent.Op.String(), time.Since(start), execErr)
		}
		if execErr != nil {
			s.rollback(id, recSnapshot, bidderSnapshot)
			if s.metrics != nil {
				s.metrics.RecordRollback(rec.Kind.String())
			}
			logger.Engine(rec.Kind.String()).Error().
				Uint64("auction_id", id).
				Err(execErr).
				Msg("escrow effect failed, rolled back transition")
			return Newf(EscrowFailed, id, "%v", execErr)
		}
	}

	if s.events != nil && len(evts) > 0 {
		s.events.Emit(ctx, evts...)
	}
	return nil
}

func (s *State) rollback(id uint64, rec *Record, bidders map[capabilities.Principal]BidderState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[id] = rec
	s.bidders[id] = bidders
}

// Create allocates a new auction id and runs build under the ledger's
// lock to produce its initial Record. If build succeeds the record is
// stored and the lock dropped before executing the returned intents
// (typically the initial item escrow_take). A failed intent removes the
// just-created record, so a Create never leaves a half-escrowed auction
// visible to later calls.
func (s *State) Create(ctx context.Context, build func(id uint64) (*Record, []gateway.Intent, []events.Event, error)) (uint64, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID

	rec, intents, evts, err := build(id)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	rec.ID = id
	s.auctions[id] = rec
	s.bidders[id] = make(map[capabilities.Principal]BidderState)
	s.mu.Unlock()

	for _, intent := range intents {
		start := time.Now()
		execErr := intent.Execute(ctx, s.gw)
		if s.metrics != nil {
			s.metrics.RecordGatewayCall(intent.Op.String(), time.Since(start), execErr)
		}
		if execErr != nil {
			s.mu.Lock()
			delete(s.auctions, id)
			delete(s.bidders, id)
			s.mu.Unlock()
			if s.metrics != nil {
				s.metrics.RecordRollback(rec.Kind.String())
			}
			return 0, Newf(EscrowFailed, id, "%v", execErr)
		}
	}

	if s.events != nil && len(evts) > 0 {
		s.events.Emit(ctx, evts...)
	}
	return id, nil
}

func cloneBidders(m map[capabilities.Principal]BidderState) map[capabilities.Principal]BidderState {
	cp := make(map[capabilities.Principal]BidderState, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Bidders is a Txn-scoped accessor over one auction's bidder map.
// Methods assume the caller already holds State's lock (true for any
// call made from inside a Txn).
type Bidders struct {
	state     *State
	auctionID uint64
}

// Get returns the bidder's current accounting entry, or the zero value.
func (b *Bidders) Get(p capabilities.Principal) BidderState {
	return b.state.bidders[b.auctionID][p]
}

// Set stores a bidder's accounting entry.
func (b *Bidders) Set(p capabilities.Principal, st BidderState) {
	m := b.state.bidders[b.auctionID]
	if m == nil {
		m = make(map[capabilities.Principal]BidderState)
		b.state.bidders[b.auctionID] = m
	}
	m[p] = st
}

// Delete removes a bidder's accounting entry entirely.
func (b *Bidders) Delete(p capabilities.Principal) {
	delete(b.state.bidders[b.auctionID], p)
}

// Len reports how many bidders currently have an accounting entry.
func (b *Bidders) Len() int {
	return len(b.state.bidders[b.auctionID])
}

// Each iterates every (principal, state) pair. Order is unspecified.
func (b *Bidders) Each(fn func(capabilities.Principal, BidderState)) {
	for p, st := range b.state.bidders[b.auctionID] {
		fn(p, st)
	}
}
