package songbird

import (
	"context"
	"sync"
	"time"
)

// CooldownStore tracks per-key cooldowns. Keys are caller-defined
// (typically "guildID:userID"). Implementations must be safe for
// concurrent use.
type CooldownStore interface {
	// Attempt records an attempt for key if its cooldown has elapsed.
	// Returns true when the attempt is allowed; otherwise false and the
	// time remaining until the next allowed attempt.
	Attempt(key string, cooldown time.Duration) (bool, time.Duration)

	// Reset clears any recorded attempt for key.
	Reset(key string)
}

// memoryCooldownStore is the in-memory CooldownStore. Each entry
// holds its own expiry, and entries are swept periodically so idle
// keys don't accumulate for the life of the process. Cooldown
// durations are caller-supplied per attempt, so the sweeper only
// removes entries whose expiry has passed.
type memoryCooldownStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	clock   func() time.Time
}

func newMemoryCooldownStore() *memoryCooldownStore {
	return &memoryCooldownStore{
		entries: map[string]time.Time{},
		clock:   time.Now,
	}
}

func (s *memoryCooldownStore) Attempt(
	key string,
	cooldown time.Duration,
) (bool, time.Duration) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, seen := s.entries[key]
	if seen && now.Before(expiry) {
		return false, expiry.Sub(now)
	}
	s.entries[key] = now.Add(cooldown)
	return true, 0
}

func (s *memoryCooldownStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// sweep removes entries whose cooldown has expired.
func (s *memoryCooldownStore) sweep() {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, key)
		}
	}
}

// runSweeper sweeps the store on interval until the context is
// canceled.
func (s *memoryCooldownStore) runSweeper(
	ctx context.Context,
	interval time.Duration,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// cooldownKey builds the store key for a guild-scoped user cooldown.
func cooldownKey(guildID string, userID string) string {
	return guildID + ":" + userID
}
