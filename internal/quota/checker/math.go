package checker

import (
	"time"

	"github.com/looplj/quotahub/internal/pkg/xtime"
	"github.com/looplj/quotahub/internal/quota"
)

const (
	WarningThreshold   = 75.0
	CriticalThreshold  = 90.0
	ExhaustedThreshold = 100.0
)

// CalculateUtilization prefers limit-based accounting and falls back to used/(used+remaining).
func CalculateUtilization(used, limit, remaining *float64) float64 {
	u := 0.0
	if used != nil {
		u = *used
	}

	if limit != nil && *limit > 0 {
		return u / *limit * 100
	}

	if remaining != nil && u > 0 {
		return u / (u + *remaining) * 100
	}

	return 0
}

func DetermineStatus(utilizationPercent float64) quota.Status {
	switch {
	case utilizationPercent >= ExhaustedThreshold:
		return quota.StatusExhausted
	case utilizationPercent >= CriticalThreshold:
		return quota.StatusCritical
	case utilizationPercent >= WarningThreshold:
		return quota.StatusWarning
	default:
		return quota.StatusOK
	}
}

// CalculateResetSeconds returns the whole seconds until resetsAt, clamped at zero.
func CalculateResetSeconds(resetsAt *time.Time) *int64 {
	if resetsAt == nil {
		return nil
	}

	secs := max(int64(resetsAt.Sub(xtime.Now())/time.Second), 0)

	return &secs
}

// ResetSecondsFromMillis is CalculateResetSeconds for epoch millisecond timestamps.
func ResetSecondsFromMillis(resetsAt *int64) *int64 {
	return CalculateResetSeconds(xtime.FromUnixMilli(resetsAt))
}
