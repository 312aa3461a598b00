package checker

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/quotahub/internal/pkg/xtime"
	"github.com/looplj/quotahub/internal/quota"
)

func TestCalculateUtilization(t *testing.T) {
	tests := []struct {
		name      string
		used      *float64
		limit     *float64
		remaining *float64
		want      float64
	}{
		{name: "limit based", used: lo.ToPtr(25.0), limit: lo.ToPtr(200.0), want: 12.5},
		{name: "limit wins over remaining", used: lo.ToPtr(10.0), limit: lo.ToPtr(100.0), remaining: lo.ToPtr(10.0), want: 10},
		{name: "remaining based", used: lo.ToPtr(30.0), remaining: lo.ToPtr(90.0), want: 25},
		{name: "remaining with zero used", used: lo.ToPtr(0.0), remaining: lo.ToPtr(90.0), want: 0},
		{name: "zero limit falls through", used: lo.ToPtr(5.0), limit: lo.ToPtr(0.0), remaining: lo.ToPtr(5.0), want: 50},
		{name: "over limit", used: lo.ToPtr(150.0), limit: lo.ToPtr(100.0), want: 150},
		{name: "nothing known", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateUtilization(tt.used, tt.limit, tt.remaining), 1e-9)
		})
	}
}

func TestCalculateUtilization_Properties(t *testing.T) {
	for _, limit := range []float64{0.5, 1, 7, 100, 12345.67} {
		for _, used := range []float64{0, 0.25, 3, 99, 20000} {
			assert.InDelta(t, used/limit*100, CalculateUtilization(&used, &limit, nil), 1e-9)
		}
	}

	for _, used := range []float64{0.1, 1, 42} {
		for _, remaining := range []float64{0, 1, 58} {
			assert.InDelta(t, used/(used+remaining)*100, CalculateUtilization(&used, nil, &remaining), 1e-9)
		}
	}
}

func TestDetermineStatus(t *testing.T) {
	tests := []struct {
		p    float64
		want quota.Status
	}{
		{-1, quota.StatusOK},
		{0, quota.StatusOK},
		{74.999, quota.StatusOK},
		{75, quota.StatusWarning},
		{89.99, quota.StatusWarning},
		{90, quota.StatusCritical},
		{99.999, quota.StatusCritical},
		{100, quota.StatusExhausted},
		{250, quota.StatusExhausted},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetermineStatus(tt.p), "p=%v", tt.p)
	}
}

func TestCalculateResetSeconds(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	defer xtime.Freeze(now)()

	assert.Nil(t, CalculateResetSeconds(nil))

	future := now.Add(90*time.Second + 900*time.Millisecond)
	got := CalculateResetSeconds(&future)
	require.NotNil(t, got)
	assert.Equal(t, int64(90), *got)

	for _, ago := range []time.Duration{time.Millisecond, time.Second, 48 * time.Hour} {
		past := now.Add(-ago)
		got := CalculateResetSeconds(&past)
		require.NotNil(t, got)
		assert.Equal(t, int64(0), *got)
	}

	ms := now.Add(time.Hour).UnixMilli()
	got = ResetSecondsFromMillis(&ms)
	require.NotNil(t, got)
	assert.Equal(t, int64(3600), *got)
}
