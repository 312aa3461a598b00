// Package estimator projects window usage forward to its reset time.
package estimator

import (
	"math"
	"slices"
	"time"

	"github.com/looplj/quotahub/internal/pkg/xtime"
	"github.com/looplj/quotahub/internal/quota"
)

const (
	// MinTimeUntilReset is the horizon below which no projection is made.
	MinTimeUntilReset = time.Minute

	HourlyLookback  = time.Hour
	DefaultLookback = 6 * time.Hour

	// limitTolerance is the relative slack under which a projection counts as reaching the limit.
	limitTolerance = 1e-9
)

// Input is the current state of the window being projected. A set GroupID narrows the
// history to that pooled group.
type Input struct {
	CheckerID   string
	WindowType  quota.WindowType
	GroupID     *string
	CurrentUsed *float64
	Limit       *float64
	ResetsAt    *time.Time
}

// EstimateUsageAtReset fits the recent usage trend of the window and projects it to the reset time.
// It returns nil when there is not enough signal to project: no current usage or reset time,
// the reset is at most a minute away, fewer than two samples in the lookback, or a non-increasing trend.
func EstimateUsageAtReset(in Input, history []quota.Snapshot) *quota.Forecast {
	if in.CurrentUsed == nil || in.ResetsAt == nil {
		return nil
	}

	now := xtime.Now()
	nowMs := now.UnixMilli()

	untilReset := float64(in.ResetsAt.UnixMilli() - nowMs)
	if untilReset <= float64(MinTimeUntilReset.Milliseconds()) {
		return nil
	}

	samples := lookbackSamples(in.WindowType, in.GroupID, history, nowMs)
	if len(samples) < 2 {
		return nil
	}

	rate, ok := usageRate(samples)
	if !ok || rate <= 0 {
		return nil
	}

	projected := *in.CurrentUsed + rate*untilReset
	hasLimit := in.Limit != nil && *in.Limit > 0

	forecast := &quota.Forecast{
		ProjectedUsedAtReset:     projected,
		ProjectionBasedOnMinutes: int(math.Round(float64(nowMs-samples[len(samples)-1].CheckedAt) / float64(time.Minute.Milliseconds()))),
		RatePerHour:              rate * float64(time.Hour.Milliseconds()),
	}

	if hasLimit {
		forecast.ProjectedUtilizationPercent = projected / *in.Limit * 100
		forecast.WillExceed = reachesLimit(projected, *in.Limit)
	}

	if forecast.WillExceed {
		untilExceeded := max((*in.Limit-*in.CurrentUsed)/rate, 0)
		at := now.Add(time.Duration(untilExceeded * float64(time.Millisecond)))
		forecast.ExceedanceTimestamp = &at
	}

	return forecast
}

// reachesLimit treats a projection landing on the limit, up to float error, as exceeding it.
func reachesLimit(projected, limit float64) bool {
	return projected > limit || math.Abs(projected-limit) <= limitTolerance*limit
}

// lookbackSamples returns the usable samples of the window type inside its lookback, newest first.
func lookbackSamples(windowType quota.WindowType, groupID *string, history []quota.Snapshot, nowMs int64) []quota.Snapshot {
	var matching []quota.Snapshot

	for _, row := range history {
		if groupID != nil && (row.GroupID == nil || *row.GroupID != *groupID) {
			continue
		}

		if row.WindowType == windowType && row.CheckedAt <= nowMs && row.Used != nil {
			matching = append(matching, row)
		}
	}

	if len(matching) < 2 {
		return nil
	}

	slices.SortStableFunc(matching, func(a, b quota.Snapshot) int {
		switch {
		case a.CheckedAt > b.CheckedAt:
			return -1
		case a.CheckedAt < b.CheckedAt:
			return 1
		default:
			return 0
		}
	})

	lookback := DefaultLookback
	if windowType == quota.WindowTypeHourly {
		lookback = HourlyLookback
	}

	cutoff := nowMs - lookback.Milliseconds()

	end := len(matching)
	for i, row := range matching {
		if row.CheckedAt < cutoff {
			end = i
			break
		}
	}

	return matching[:end]
}

// usageRate returns the least-squares slope of used over time in units per millisecond.
// Timestamps are taken relative to the oldest sample to keep the sums small.
func usageRate(samples []quota.Snapshot) (float64, bool) {
	newest, oldest := samples[0], samples[len(samples)-1]
	origin := oldest.CheckedAt

	var sumX, sumY, sumXY, sumXX float64

	n := float64(len(samples))

	for _, s := range samples {
		x := float64(s.CheckedAt - origin)
		y := *s.Used
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom != 0 {
		return (n*sumXY - sumX*sumY) / denom, true
	}

	elapsed := float64(newest.CheckedAt - oldest.CheckedAt)
	if elapsed <= 0 {
		return 0, false
	}

	return (*newest.Used - *oldest.Used) / elapsed, true
}
