// Package persistence durably records the engine's append-only
// request/effect log and auction-table snapshots (spec §6), adapted
// from the ratelimit package's go-redis pipeline idiom in the apex
// mediation platform example: a Redis list per auction for the log, a
// Redis string per auction for the latest snapshot.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexuslabs/auctionengine/internal/ledger"
)

// LogEntry is one request/effect pair appended to an auction's log.
type LogEntry struct {
	At      int64  `json:"at"`
	Request string `json:"request"`
	Payload []byte `json:"payload"`
}

// Store is the Redis-backed persistence layer. It never participates in
// the ledger's transition logic — it only observes committed state after
// the fact, so a Store outage degrades durability, never correctness.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New builds a Store from a Redis connection URL (e.g.
// "redis://localhost:6379/0"). ttl bounds how long a finished auction's
// snapshot and log are retained; zero means no expiry.
func New(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("persistence: parse redis url: %w", err)
	}
	return &Store{rdb: redis.NewClient(opts), ttl: ttl}, nil
}

// NewFromClient wraps an already-constructed go-redis client, for callers
// that need custom pool/TLS settings.
func NewFromClient(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func logKey(id uint64) string      { return fmt.Sprintf("auctionengine:log:%d", id) }
func snapshotKey(id uint64) string { return fmt.Sprintf("auctionengine:snapshot:%d", id) }

// AppendLog records one request/effect pair to auction id's append-only
// log. Failures are non-fatal to the caller's transition — the engine
// has already committed in-process state and executed its effects by
// the time persistence is consulted.
func (s *Store) AppendLog(ctx context.Context, id uint64, request string, payload []byte) error {
	entry := LogEntry{At: time.Now().Unix(), Request: request, Payload: payload}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("persistence: marshal log entry: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, logKey(id), raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, logKey(id), s.ttl)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("persistence: append log for auction %d: %w", id, err)
	}
	return nil
}

// Log returns every appended entry for auction id, oldest first.
func (s *Store) Log(ctx context.Context, id uint64) ([]LogEntry, error) {
	raw, err := s.rdb.LRange(ctx, logKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("persistence: read log for auction %d: %w", id, err)
	}
	entries := make([]LogEntry, 0, len(raw))
	for _, r := range raw {
		var e LogEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("persistence: decode log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SaveSnapshot overwrites auction id's latest snapshot with rec's
// current state, indexed by id as spec §6 requires.
func (s *Store) SaveSnapshot(ctx context.Context, rec *ledger.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, snapshotKey(rec.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("persistence: save snapshot for auction %d: %w", rec.ID, err)
	}
	return nil
}

// LoadSnapshot returns the most recently saved record for id, or
// ok=false if none has been persisted.
func (s *Store) LoadSnapshot(ctx context.Context, id uint64) (rec *ledger.Record, ok bool, err error) {
	raw, err := s.rdb.Get(ctx, snapshotKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persistence: load snapshot for auction %d: %w", id, err)
	}
	var out ledger.Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("persistence: decode snapshot: %w", err)
	}
	return &out, true, nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}
