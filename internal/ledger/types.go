package ledger

import (
	"github.com/nexuslabs/auctionengine/internal/capabilities"
	"github.com/nexuslabs/auctionengine/internal/gateway"
)

// Kind identifies which of the five auction protocols governs a record.
type Kind int

const (
	English Kind = iota
	AllPay
	Vickrey
	LinearRDutch
	ExpRDutch
)

func (k Kind) String() string {
	switch k {
	case English:
		return "english"
	case AllPay:
		return "all_pay"
	case Vickrey:
		return "vickrey"
	case LinearRDutch:
		return "linear_rdutch"
	case ExpRDutch:
		return "exp_rdutch"
	default:
		return "unknown"
	}
}

// State is the auction's lifecycle state (spec §3).
type State int

const (
	Open State = iota
	SealedReveal
	Settled
	Cancelled
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case SealedReveal:
		return "sealed_reveal"
	case Settled:
		return "settled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// EnglishSchedule holds the ascending/all-pay auction's schedule and bid
// state (spec §3).
type EnglishSchedule struct {
	StartingBid       uint64
	MinBidDelta       uint64
	Deadline          int64
	DeadlineExtension int64
	HighestBid        uint64
}

// VickreySchedule holds the sealed-bid auction's commit/reveal schedule
// and running second-price state (spec §3).
type VickreySchedule struct {
	MinBid               uint64
	CommitEnd            int64
	RevealEnd            int64
	CommitFee            uint64
	WinningBid           uint64
	AccumulatedCommitFee uint64
}

// DutchSchedule holds the reverse-Dutch auctions' decay schedule (spec
// §3). DecayFactor is only meaningful for ExpRDutch.
type DutchSchedule struct {
	StartPrice  uint64
	MinPrice    uint64
	StartTs     int64
	Deadline    int64
	Duration    int64
	DecayFactor uint64
	SettlePrice uint64
}

// Record is one auction session (spec §3).
type Record struct {
	ID         uint64
	Kind       Kind
	AssetKind  gateway.AssetKind
	Auctioneer capabilities.Principal

	ItemAsset      string
	ItemIDOrAmount uint64
	PayAsset       string

	English *EnglishSchedule
	Vickrey *VickreySchedule
	Dutch   *DutchSchedule

	State          State
	Winner         capabilities.Principal
	AvailableFunds uint64
	IsClaimed      bool
	FeeBpsSnapshot uint32
	CreatedAt      int64
}

// clone deep-copies a Record so it can be safely rolled back to.
func (r *Record) clone() *Record {
	cp := *r
	if r.English != nil {
		e := *r.English
		cp.English = &e
	}
	if r.Vickrey != nil {
		v := *r.Vickrey
		cp.Vickrey = &v
	}
	if r.Dutch != nil {
		d := *r.Dutch
		cp.Dutch = &d
	}
	return &cp
}

// BidderState is the sparse per-(auction, bidder) accounting entry (spec
// §3).
type BidderState struct {
	Bid           uint64
	Commitment    [32]byte
	HasCommitment bool
}
