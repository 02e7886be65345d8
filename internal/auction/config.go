package auction

import (
	"sync"
	"time"
)

// Limits bounds per-auction resource growth, mirroring the teacher
// exchange's CloneLimits: both exist to defend against unbounded
// fan-in from callers rather than to express a protocol rule.
type Limits struct {
	// MaxBiddersPerAuction caps how many distinct principals may hold a
	// live accounting entry (escrowed bid, commitment) on one auction.
	MaxBiddersPerAuction int
}

// DefaultLimits returns the engine's default resource bounds.
func DefaultLimits() *Limits {
	return &Limits{MaxBiddersPerAuction: 10_000}
}

func (l *Limits) clamp() *Limits {
	if l == nil {
		return DefaultLimits()
	}
	d := DefaultLimits()
	if l.MaxBiddersPerAuction <= 0 {
		l.MaxBiddersPerAuction = d.MaxBiddersPerAuction
	}
	return l
}

// Config holds Dispatcher-wide tuning that isn't part of any single
// auction's schedule. A nil Config is equivalent to DefaultConfig().
type Config struct {
	Limits *Limits
	// DebugMode, when set, makes Create populate a DebugInfo alongside
	// its normal return values (retrieved via Dispatcher.LastDebug). The
	// other dispatch methods do not record a DebugInfo.
	DebugMode bool
}

// DefaultConfig returns the engine's default tuning.
func DefaultConfig() *Config {
	return &Config{Limits: DefaultLimits(), DebugMode: false}
}

// validateConfig fills in defaults for a partially-populated Config,
// the same clamp-invalid-to-default pass exchange.validateConfig runs.
func validateConfig(cfg *Config) *Config {
	if cfg == nil {
		return DefaultConfig()
	}
	cfg.Limits = cfg.Limits.clamp()
	return cfg
}

// DebugInfo carries operator-facing timing detail for one dispatch call.
// The Dispatcher does not fill in Effects. It is never consulted by
// settlement logic — dropping it changes nothing about correctness.
type DebugInfo struct {
	RequestTime time.Time
	Latency     time.Duration
	Op          string
	AuctionID   uint64
	Effects     []string
	Err         error
}

// debugRecorder collects the most recent DebugInfo per dispatcher,
// guarded separately from the ledger lock since it's purely advisory.
type debugRecorder struct {
	mu   sync.Mutex
	last *DebugInfo
}

func (d *debugRecorder) record(info *DebugInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = info
}

func (d *debugRecorder) Last() *DebugInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
