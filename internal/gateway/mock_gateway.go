package gateway

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway is an in-memory AssetGateway for tests: it tracks balances
// and item ownership entirely in memory and can be told to fail the next
// N calls, to exercise the engine's rollback-on-EscrowFailed path.
type MockGateway struct {
	mu sync.Mutex

	balances map[string]map[Principal]uint64 // asset -> principal -> amount
	items    map[string]Principal             // itemKey(asset,id) -> owner

	failNext int
	failErr  error

	takeCalls    []Intent
	releaseCalls []Intent
}

// NewMockGateway builds an empty MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		balances: make(map[string]map[Principal]uint64),
		items:    make(map[string]Principal),
	}
}

// Credit seeds a principal's fungible balance for a test scenario.
func (m *MockGateway) Credit(asset string, p Principal, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureAsset(asset)
	m.balances[asset][p] += amount
}

// SeedItem places a unique item under an owner for a test scenario.
func (m *MockGateway) SeedItem(asset string, id uint64, owner Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[itemKey(asset, id)] = owner
}

// Balance reports a principal's current fungible balance.
func (m *MockGateway) Balance(asset string, p Principal) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[asset][p]
}

// Owner reports the current holder of a unique item.
func (m *MockGateway) Owner(asset string, id uint64) Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[itemKey(asset, id)]
}

// FailNext makes the next n gateway calls return err instead of
// executing, used to provoke EscrowFailed rollback in tests.
func (m *MockGateway) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.failErr = err
}

// TakeCalls returns the recorded EscrowTake calls, in order.
func (m *MockGateway) TakeCalls() []Intent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Intent(nil), m.takeCalls...)
}

// ReleaseCalls returns the recorded EscrowRelease calls, in order.
func (m *MockGateway) ReleaseCalls() []Intent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Intent(nil), m.releaseCalls...)
}

func (m *MockGateway) ensureAsset(asset string) {
	if _, ok := m.balances[asset]; !ok {
		m.balances[asset] = make(map[Principal]uint64)
	}
}

func itemKey(asset string, id uint64) string {
	return fmt.Sprintf("%s:%d", asset, id)
}

// EscrowTake implements AssetGateway.
func (m *MockGateway) EscrowTake(_ context.Context, kind AssetKind, asset string, from Principal, idOrAmount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.takeCalls = append(m.takeCalls, Intent{Op: OpTake, Kind: kind, Asset: asset, Principal: from, IDOrAmount: idOrAmount})

	if m.failNext > 0 {
		m.failNext--
		return m.failErr
	}

	switch kind {
	case Unique:
		key := itemKey(asset, idOrAmount)
		if m.items[key] != from {
			return errNotOwner
		}
		delete(m.items, key)
	case Fungible:
		m.ensureAsset(asset)
		if m.balances[asset][from] < idOrAmount {
			return errInsufficientBalance
		}
		m.balances[asset][from] -= idOrAmount
	}
	return nil
}

// EscrowRelease implements AssetGateway.
func (m *MockGateway) EscrowRelease(_ context.Context, kind AssetKind, asset string, to Principal, idOrAmount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseCalls = append(m.releaseCalls, Intent{Op: OpRelease, Kind: kind, Asset: asset, Principal: to, IDOrAmount: idOrAmount})

	if m.failNext > 0 {
		m.failNext--
		return m.failErr
	}

	switch kind {
	case Unique:
		m.items[itemKey(asset, idOrAmount)] = to
	case Fungible:
		m.ensureAsset(asset)
		m.balances[asset][to] += idOrAmount
	}
	return nil
}
