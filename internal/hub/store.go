package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbcommand/arbcommand/internal/model"
)

const lastGoodKey = "arb:opportunities:last_good"

// Store mirrors the last good opportunity list into Redis so restarts
// and sibling processes can serve it immediately.
type Store struct {
	rdb *redis.Client
}

// NewStore connects a store to the given Redis address.
func NewStore(addr string) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// SaveLastGood writes the list with the hub's retention TTL.
func (s *Store) SaveLastGood(ctx context.Context, opps []model.Opportunity, ttl time.Duration) error {
	payload, err := json.Marshal(opps)
	if err != nil {
		return fmt.Errorf("failed to marshal opportunities: %w", err)
	}
	if err := s.rdb.Set(ctx, lastGoodKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write last good list: %w", err)
	}
	return nil
}

// LoadLastGood reads the list back; a missing key yields nil, nil.
func (s *Store) LoadLastGood(ctx context.Context) ([]model.Opportunity, error) {
	payload, err := s.rdb.Get(ctx, lastGoodKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last good list: %w", err)
	}
	var opps []model.Opportunity
	if err := json.Unmarshal(payload, &opps); err != nil {
		return nil, fmt.Errorf("failed to decode last good list: %w", err)
	}
	return opps, nil
}

// Close releases the client.
func (s *Store) Close() error { return s.rdb.Close() }
