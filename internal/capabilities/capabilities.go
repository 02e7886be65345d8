// Package capabilities defines the small external collaborators the
// auction engine consumes read-only: a monotonic Clock, a principal-
// resolving Auth layer, and a Parameter Source for protocol fee and
// treasury configuration. None of them are part of the engine's core —
// they are the seams across which the engine talks to the rest of the
// system, the same role adapters.HTTPClient plays for bidder calls in
// the teacher exchange.
package capabilities

import (
	"context"
	"sync/atomic"
	"time"
)

// Principal is an opaque caller identity resolved by the Auth layer.
type Principal string

// Clock supplies monotonic timestamps in seconds. Implementations must
// never go backwards within a process lifetime.
type Clock interface {
	Now() int64
}

// SystemClock is a Clock backed by the wall clock.
type SystemClock struct{}

// Now returns the current Unix time in seconds.
func (SystemClock) Now() int64 {
	return time.Now().Unix()
}

// FakeClock is a manually-advanced Clock for deterministic tests.
type FakeClock struct {
	t int64
}

// NewFakeClock creates a FakeClock starting at t seconds.
func NewFakeClock(t int64) *FakeClock {
	return &FakeClock{t: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() int64 {
	return atomic.LoadInt64(&c.t)
}

// Advance moves the fake clock forward by d seconds.
func (c *FakeClock) Advance(d int64) {
	atomic.AddInt64(&c.t, d)
}

// Set pins the fake clock to an absolute time.
func (c *FakeClock) Set(t int64) {
	atomic.StoreInt64(&c.t, t)
}

// Auth resolves the caller principal for the current request context.
// Identity verification itself (signatures, sessions, tokens) happens
// entirely outside the engine; Auth only exposes the already-verified
// result.
type Auth interface {
	CallerPrincipal(ctx context.Context) (Principal, error)
}

// StaticAuth is an Auth implementation that trusts a principal embedded
// directly in the context — useful for tests and for callers that have
// already authenticated upstream of the engine boundary.
type StaticAuth struct{}

type principalKey struct{}

// WithPrincipal returns a context carrying the given principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// CallerPrincipal resolves the principal previously attached with
// WithPrincipal.
func (StaticAuth) CallerPrincipal(ctx context.Context) (Principal, error) {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p, nil
	}
	return "", ErrNoPrincipal
}

// Parameters is the read-only Parameter Source: global fee and treasury
// configuration. Engines snapshot FeeBps at Create time so later
// parameter changes never rewrite settlement history (spec §9).
type Parameters interface {
	FeeBps() uint32
	Treasury() Principal
}

// StaticParameters is a Parameters implementation backed by two fixed
// values, suitable for tests and for deployments where fee/treasury
// change only through a redeploy.
type StaticParameters struct {
	feeBps   uint32
	treasury Principal
}

// NewStaticParameters builds a StaticParameters capability.
func NewStaticParameters(feeBps uint32, treasury Principal) *StaticParameters {
	return &StaticParameters{feeBps: feeBps, treasury: treasury}
}

// FeeBps returns the configured protocol fee in basis points.
func (p *StaticParameters) FeeBps() uint32 {
	return atomic.LoadUint32(&p.feeBps)
}

// Treasury returns the configured treasury principal.
func (p *StaticParameters) Treasury() Principal {
	return p.treasury
}

// SetFeeBps updates the live fee; already-created auctions are
// unaffected because they snapshot FeeBps at Create.
func (p *StaticParameters) SetFeeBps(bps uint32) {
	atomic.StoreUint32(&p.feeBps, bps)
}
