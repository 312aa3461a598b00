package xtime

import (
	"sync/atomic"
	"time"
)

func UTCNow() time.Time {
	return time.Now().UTC()
}

var nowFunc atomic.Pointer[func() time.Time]

func init() {
	f := UTCNow
	nowFunc.Store(&f)
}

// Now returns the current UTC time from the installed clock.
func Now() time.Time {
	return (*nowFunc.Load())()
}

// SetNowFunc installs f as the clock and returns a function restoring the previous one.
// This is primarily used by tests that need a frozen clock.
func SetNowFunc(f func() time.Time) (restore func()) {
	prev := nowFunc.Swap(&f)

	return func() {
		nowFunc.Store(prev)
	}
}

// Freeze pins Now to t until the returned restore function is called.
func Freeze(t time.Time) (restore func()) {
	return SetNowFunc(func() time.Time { return t })
}

func UnixMilli(t *time.Time) *int64 {
	if t == nil {
		return nil
	}

	ms := t.UnixMilli()

	return &ms
}

func FromUnixMilli(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}

	t := time.UnixMilli(*ms).UTC()

	return &t
}
