// Package ratelimit throttles MCP tool calls with per-tool token buckets.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Policy is a token bucket shape: PerMinute tokens refill per minute, up to
// Burst tokens, and a new bucket starts full.
type Policy struct {
	PerMinute float64
	Burst     int
}

// Limiter is a token bucket keyed by caller-chosen strings.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	policy  Policy
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter returns a limiter enforcing p for every key.
func NewLimiter(p Policy) *Limiter {
	return &Limiter{
		policy:  p,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Reserve takes one token for key. When none is available it returns
// false and how long until the next token arrives.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.policy.Burst), last: now}
		l.buckets[key] = b
	}

	perSecond := l.policy.PerMinute / 60
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(l.policy.Burst), b.tokens+perSecond*elapsed)
		b.last = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if perSecond <= 0 {
		return false, -1
	}
	wait := time.Duration((1 - b.tokens) / perSecond * float64(time.Second))
	return false, wait
}

// Allow reports whether key may proceed, taking a token if so.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// DefaultPolicies are the per-tool limits of the MCP server. Lookups are
// cheap and run often; saving and simulating touch disk or burn CPU.
var DefaultPolicies = map[string]Policy{
	"grag_resolve":  {PerMinute: 120, Burst: 20},
	"grag_schedule": {PerMinute: 60, Burst: 10},
	"grag_presets":  {PerMinute: 30, Burst: 5},
	"grag_simulate": {PerMinute: 10, Burst: 2},
}

// NewToolLimiters builds limiters for policies.
func NewToolLimiters(policies map[string]Policy) ToolLimiters {
	out := make(ToolLimiters, len(policies))
	for tool, p := range policies {
		out[tool] = NewLimiter(p)
	}
	return out
}

// Check takes a token for tool. Tools without a limiter are unlimited.
func (tl ToolLimiters) Check(tool string) error {
	l, ok := tl[tool]
	if !ok {
		return nil
	}
	if ok, wait := l.Reserve(tool); !ok {
		if wait < 0 {
			return fmt.Errorf("rate limit exceeded for %s", tool)
		}
		return fmt.Errorf("rate limit exceeded for %s, retry in %s", tool, wait.Round(time.Second))
	}
	return nil
}
