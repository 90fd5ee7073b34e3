package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/richxcame/civic-reports/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:       true,
		WindowSeconds: 60,
		SubmitLimit:   10,
		SubmitBurst:   5,
		RedisPrefix:   "rl",
	}
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Rules
// ---------------------------------------------------------------------------

func TestSubmitRule(t *testing.T) {
	client, _ := redismock.NewClientMock()
	limiter := NewLimiter(client, testConfig())

	assert.Equal(t, Rule{Limit: 10, Burst: 5, Window: time.Minute}, limiter.SubmitRule())
}

func TestSubmitRule_NegativeBurstClamped(t *testing.T) {
	client, _ := redismock.NewClientMock()
	cfg := testConfig()
	cfg.SubmitBurst = -3

	assert.Equal(t, 0, NewLimiter(client, cfg).SubmitRule().Burst)
}

// ---------------------------------------------------------------------------
// Allow
// ---------------------------------------------------------------------------

func TestAllow_Allowed(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewLimiter(client, testConfig()).WithNow(func() time.Time { return fixedNow })
	rule := Rule{Limit: 10, Burst: 5, Window: time.Minute}

	mock.ExpectEvalSha(limiter.script.Hash(), []string{"rl:submit:10.0.0.1"},
		15, formatFloat(10.0/60000.0), fixedNow.UnixMilli(), int64(120000),
	).SetVal([]interface{}{int64(1), "14.0000", int64(0)})

	result, err := limiter.Allow(context.Background(), "submit", "10.0.0.1", rule)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 14, result.Remaining)
	assert.Equal(t, 10, result.Limit)
	assert.Zero(t, result.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllow_Denied(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewLimiter(client, testConfig()).WithNow(func() time.Time { return fixedNow })
	rule := Rule{Limit: 10, Burst: 0, Window: time.Minute}

	mock.ExpectEvalSha(limiter.script.Hash(), []string{"rl:submit:10.0.0.1"},
		10, formatFloat(10.0/60000.0), fixedNow.UnixMilli(), int64(120000),
	).SetVal([]interface{}{int64(0), "0.4", int64(3600)})

	result, err := limiter.Allow(context.Background(), "submit", "10.0.0.1", rule)

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 3600*time.Millisecond, result.RetryAfter)
}

func TestAllow_RedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewLimiter(client, testConfig()).WithNow(func() time.Time { return fixedNow })
	rule := Rule{Limit: 10, Window: time.Minute}

	mock.ExpectEvalSha(limiter.script.Hash(), []string{"rl:submit:ip"},
		10, formatFloat(10.0/60000.0), fixedNow.UnixMilli(), int64(120000),
	).SetErr(errors.New("connection refused"))

	_, err := limiter.Allow(context.Background(), "submit", "ip", rule)
	assert.ErrorContains(t, err, "connection refused")
}

func TestAllow_Bypass(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		rule    Rule
	}{
		{"disabled limiter", false, Rule{Limit: 10, Window: time.Minute}},
		{"zero limit", true, Rule{Limit: 0, Window: time.Minute}},
		{"negative limit", true, Rule{Limit: -1, Window: time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			cfg := testConfig()
			cfg.Enabled = tt.enabled

			result, err := NewLimiter(client, cfg).Allow(context.Background(), "submit", "ip", tt.rule)

			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.Equal(t, tt.rule.Limit, result.Remaining)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAllow_ZeroWindowUsesConfig(t *testing.T) {
	client, _ := redismock.NewClientMock()
	cfg := testConfig()
	cfg.Enabled = false

	result, err := NewLimiter(client, cfg).Allow(context.Background(), "submit", "ip", Rule{Limit: 3})

	require.NoError(t, err)
	assert.Equal(t, time.Minute, result.Window)
}

func TestScriptHash_Deterministic(t *testing.T) {
	client, _ := redismock.NewClientMock()

	assert.Equal(t, NewLimiter(client, testConfig()).script.Hash(), NewLimiter(client, testConfig()).script.Hash())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0.0000000000", formatFloat(0))
	assert.Equal(t, "1.5000000000", formatFloat(1.5))
	assert.Equal(t, "0.0001666667", formatFloat(10.0/60000.0))
}

func TestToInt(t *testing.T) {
	tests := []struct {
		input  interface{}
		expect int
	}{
		{int64(42), 42},
		{99, 99},
		{"123", 123},
		{"abc", 0},
		{7.9, 7},
		{nil, 0},
		{true, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, toInt(tt.input))
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		input  interface{}
		expect float64
	}{
		{3.14, 3.14},
		{int64(10), 10},
		{20, 20},
		{"2.718", 2.718},
		{"xyz", 0},
		{nil, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expect, toFloat(tt.input), 0.0001)
	}
}

func TestConfigWindow(t *testing.T) {
	assert.Equal(t, 90*time.Second, config.RateLimitConfig{WindowSeconds: 90}.Window())
	assert.Equal(t, time.Minute, config.RateLimitConfig{}.Window())
	assert.Equal(t, time.Minute, config.RateLimitConfig{WindowSeconds: -1}.Window())
}
