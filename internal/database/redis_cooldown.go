// Package database: Redis-backed cooldown state for the behavioral
// pattern detector. Keeping the active cooldown in Redis lets it survive
// restarts and be shared across replicas.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefix for active cooldowns
// Format: guardian:cooldown:{accountID}
const cooldownKeyPrefix = "guardian:cooldown"

// CooldownState records an active trading cooldown for an account
type CooldownState struct {
	AccountID string    `json:"account_id"`
	Reason    string    `json:"reason"`
	StartedAt time.Time `json:"started_at"`
	Until     time.Time `json:"until"`
}

// RedisCooldownStore persists active cooldowns with a TTL matching
// their expiry
type RedisCooldownStore struct {
	client *redis.Client
}

// NewRedisCooldownStore creates a new RedisCooldownStore
func NewRedisCooldownStore(client *redis.Client) *RedisCooldownStore {
	return &RedisCooldownStore{client: client}
}

func cooldownKey(accountID string) string {
	return fmt.Sprintf("%s:%s", cooldownKeyPrefix, accountID)
}

// StartCooldown records a cooldown for an account and reports whether
// anything was stored. A longer existing cooldown is never shortened,
// and sub-minute differences from remaining-time rounding do not count
// as an extension, so repeated polls of the same cooldown return false.
func (s *RedisCooldownStore) StartCooldown(ctx context.Context, accountID, reason string, until time.Time) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil // Redis disabled; cooldowns fall back to history-derived state
	}

	existing, err := s.GetCooldown(ctx, accountID)
	if err != nil {
		return false, err
	}
	if existing != nil && !until.After(existing.Until.Add(time.Minute)) {
		return false, nil
	}

	state := CooldownState{
		AccountID: accountID,
		Reason:    reason,
		StartedAt: time.Now(),
		Until:     until,
	}

	data, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cooldown state: %w", err)
	}

	ttl := time.Until(until)
	if ttl <= 0 {
		return false, nil
	}

	if err := s.client.Set(ctx, cooldownKey(accountID), data, ttl).Err(); err != nil {
		return false, fmt.Errorf("failed to store cooldown: %w", err)
	}
	return true, nil
}

// GetCooldown returns the active cooldown for an account, or nil
func (s *RedisCooldownStore) GetCooldown(ctx context.Context, accountID string) (*CooldownState, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}

	data, err := s.client.Get(ctx, cooldownKey(accountID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cooldown: %w", err)
	}

	var state CooldownState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cooldown state: %w", err)
	}

	if !state.Until.After(time.Now()) {
		return nil, nil
	}
	return &state, nil
}

// ClearCooldown removes an active cooldown (operator override)
func (s *RedisCooldownStore) ClearCooldown(ctx context.Context, accountID string) error {
	if s == nil || s.client == nil {
		return nil
	}

	if err := s.client.Del(ctx, cooldownKey(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cooldown: %w", err)
	}
	return nil
}
