// Package auction implements the five auction protocol state machines
// (English, All-Pay, Vickrey, Linear Reverse-Dutch, Exponential
// Reverse-Dutch) behind a single Dispatcher, following the teacher
// exchange's shape: a router that validates a request's existence and
// kind, then hands off to protocol-specific logic that in turn drives
// ledger.State through the effect-list pattern.
package auction

import (
	"github.com/nexuslabs/auctionengine/internal/capabilities"
	"github.com/nexuslabs/auctionengine/internal/gateway"
	"github.com/nexuslabs/auctionengine/internal/ledger"
)

// CreateRequest describes a new auction session (spec §6).
type CreateRequest struct {
	Kind           ledger.Kind
	AssetKind      gateway.AssetKind
	Auctioneer     capabilities.Principal
	ItemAsset      string
	ItemIDOrAmount uint64
	PayAsset       string
	Params         Params

	// IdempotencyKey, when non-empty, dedups retried Create calls the
	// same way the teacher exchange dedups seenBidIDs: a repeated key
	// returns the auction ID from the first call instead of creating a
	// second auction.
	IdempotencyKey string
}

// Params is the tagged union of per-kind schedule parameters supplied
// at Create. Only the fields relevant to Kind need to be set; engines
// validate their own subset and ignore the rest.
type Params struct {
	// English / AllPay
	StartingBid       uint64
	MinBidDelta       uint64
	Duration          int64 // seconds until the initial deadline
	DeadlineExtension int64

	// Vickrey
	MinBid         uint64
	CommitDuration int64
	RevealDuration int64
	CommitFee      uint64

	// Linear / Exponential reverse-Dutch
	StartPrice  uint64
	MinPrice    uint64
	DutchDuration int64
	DecayFactor uint64 // exponential only, DecayScale-relative (spec §6)
}

// BidRequest places an ascending-auction bid (English/AllPay): amount is
// the additional delta escrowed on top of the bidder's current tally
// (spec §4.2).
type BidRequest struct {
	AuctionID uint64
	Bidder    capabilities.Principal
	Delta     uint64
}

// DutchBidRequest accepts a reverse-Dutch ask at the current price; no
// amount is supplied by the caller (spec §6).
type DutchBidRequest struct {
	AuctionID uint64
	Bidder    capabilities.Principal
}

// CommitBidRequest submits a sealed Vickrey bid.
type CommitBidRequest struct {
	AuctionID  uint64
	Bidder     capabilities.Principal
	Commitment [32]byte
	FeeAmount  uint64
}

// RevealBidRequest discloses a previously committed Vickrey bid.
type RevealBidRequest struct {
	AuctionID uint64
	Bidder    capabilities.Principal
	Amount    uint64
	Salt      [32]byte
}

// ClaimRequest releases the auctioned item to the winner.
type ClaimRequest struct {
	AuctionID uint64
	Caller    capabilities.Principal
}

// WithdrawRequest pays out accumulated proceeds to the auctioneer and
// treasury.
type WithdrawRequest struct {
	AuctionID uint64
	Caller    capabilities.Principal
}

// CancelRequest reclaims the item before any bid has been accepted.
type CancelRequest struct {
	AuctionID uint64
	Caller    capabilities.Principal
}
