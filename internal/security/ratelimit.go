package security

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterStore keeps one token-bucket limiter per key (hotel domain,
// client IP, etc). Entries idle past ttl are dropped lazily.
type LimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	r        rate.Limit
	b        int
	ttl      time.Duration
}

type keyedLimiter struct {
	lim     *rate.Limiter
	lastHit time.Time
}

func NewLimiterStore(r rate.Limit, burst int, ttl time.Duration) *LimiterStore {
	return &LimiterStore{
		limiters: make(map[string]*keyedLimiter),
		r:        r,
		b:        burst,
		ttl:      ttl,
	}
}

func (s *LimiterStore) get(key string) *rate.Limiter {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// lazy cleanup
	for k, v := range s.limiters {
		if now.Sub(v.lastHit) > s.ttl {
			delete(s.limiters, k)
		}
	}

	kl, ok := s.limiters[key]
	if !ok {
		kl = &keyedLimiter{
			lim:     rate.NewLimiter(s.r, s.b),
			lastHit: now,
		}
		s.limiters[key] = kl
	}

	kl.lastHit = now
	return kl.lim
}

func (s *LimiterStore) Allow(key string) bool {
	return s.get(key).Allow()
}

// Wait blocks until the key's limiter grants a token or ctx expires.
// Used for pacing outbound calls against the hotel APIs.
func (s *LimiterStore) Wait(ctx context.Context, key string) error {
	return s.get(key).Wait(ctx)
}
