package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/civic-reports/pkg/config"
)

// tokenBucket refills at rate tokens per millisecond up to capacity and
// takes one token per call. Returns {allowed, remaining tokens, retry after ms}.
const tokenBucket = `
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

tokens = math.min(capacity, tokens + math.max(0, now - ts) * rate)

local allowed = 0
local retry = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, tostring(tokens), retry}
`

// Rule is a sustained limit per window plus a burst allowance on top.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

// Limiter is a Redis token-bucket rate limiter shared by all replicas.
type Limiter struct {
	client redis.Scripter
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

// NewLimiter creates a limiter.
func NewLimiter(client redis.Scripter, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(tokenBucket),
		now:    time.Now,
	}
}

// WithNow overrides the clock.
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// SubmitRule is the rule for report submissions.
func (l *Limiter) SubmitRule() Rule {
	return Rule{
		Limit:  l.cfg.SubmitLimit,
		Burst:  max(l.cfg.SubmitBurst, 0),
		Window: l.cfg.Window(),
	}
}

// Allow takes one token for identity on endpoint. A disabled limiter or a
// non-positive limit always allows.
func (l *Limiter) Allow(ctx context.Context, endpoint, identity string, rule Rule) (Result, error) {
	if rule.Window <= 0 {
		rule.Window = l.cfg.Window()
	}
	result := Result{Allowed: true, Remaining: rule.Limit, Limit: rule.Limit, Window: rule.Window}
	if !l.cfg.Enabled || rule.Limit <= 0 {
		return result, nil
	}

	capacity := rule.Limit + rule.Burst
	ratePerMs := float64(rule.Limit) / float64(rule.Window.Milliseconds())
	key := fmt.Sprintf("%s:%s:%s", l.cfg.RedisPrefix, endpoint, identity)

	raw, err := l.script.Run(ctx, l.client, []string{key},
		capacity,
		formatFloat(ratePerMs),
		l.now().UnixMilli(),
		rule.Window.Milliseconds()*2,
	).Slice()
	if err != nil {
		return result, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 3 {
		return result, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}

	result.Allowed = toInt(raw[0]) == 1
	result.Remaining = int(math.Floor(toFloat(raw[1])))
	result.RetryAfter = time.Duration(toInt(raw[2])) * time.Millisecond
	return result, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}
