package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/looplj/quotahub/internal/pkg/xtime"
	"github.com/looplj/quotahub/internal/quota"
)

const (
	OptionOAuthAccountID = "oauth_account_id"
	OptionOAuthProvider  = "oauth_provider"
)

// Checker polls one provider account and normalizes its quota.
// CheckQuota must not panic or return nil: failures are reported through an error result.
type Checker interface {
	ID() string
	Config() quota.CheckerConfig
	CheckQuota(ctx context.Context) *quota.CheckResult
}

// Base carries the shared option access and window math for adapters.
type Base struct {
	cfg quota.CheckerConfig
}

func NewBase(cfg quota.CheckerConfig) Base {
	return Base{cfg: cfg}
}

func (b *Base) ID() string {
	return b.cfg.ID
}

func (b *Base) Config() quota.CheckerConfig {
	return b.cfg
}

func (b *Base) GetOption(key string, def any) any {
	v, ok := b.cfg.Options[key]
	if !ok || v == nil {
		return def
	}

	return v
}

func (b *Base) RequireOption(key string) (any, error) {
	v, ok := b.cfg.Options[key]
	if !ok || v == nil {
		return nil, &OptionError{CheckerID: b.cfg.ID, Key: key}
	}

	return v, nil
}

func (b *Base) OptionString(key, def string) string {
	s, err := cast.ToStringE(b.GetOption(key, def))
	if err != nil || s == "" {
		return def
	}

	return s
}

// RequireString is RequireOption for non-empty string values.
func (b *Base) RequireString(key string) (string, error) {
	v, err := b.RequireOption(key)
	if err != nil {
		return "", err
	}

	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return "", &OptionError{CheckerID: b.cfg.ID, Key: key}
	}

	return s, nil
}

func (b *Base) OptionFloat(key string, def float64) float64 {
	f, err := cast.ToFloat64E(b.GetOption(key, def))
	if err != nil {
		return def
	}

	return f
}

func (b *Base) OptionBool(key string, def bool) bool {
	v, err := cast.ToBoolE(b.GetOption(key, def))
	if err != nil {
		return def
	}

	return v
}

func (b *Base) OptionDuration(key string, def time.Duration) time.Duration {
	d, err := cast.ToDurationE(b.GetOption(key, def))
	if err != nil || d <= 0 {
		return def
	}

	return d
}

// CreateWindow is the only way adapters build windows, so utilization and status
// always derive from used, limit and remaining.
func (b *Base) CreateWindow(
	windowType quota.WindowType,
	limit, used, remaining *float64,
	unit quota.Unit,
	resetsAt *time.Time,
	description string,
) quota.Window {
	if used == nil && limit != nil && remaining != nil {
		derived := *limit - *remaining
		used = &derived
	}

	utilization := CalculateUtilization(used, limit, remaining)

	return quota.Window{
		WindowType:         windowType,
		Description:        description,
		Limit:              limit,
		Used:               used,
		Remaining:          remaining,
		UtilizationPercent: utilization,
		Unit:               unit,
		ResetsAt:           resetsAt,
		ResetInSeconds:     CalculateResetSeconds(resetsAt),
		Status:             DetermineStatus(utilization),
	}
}

func (b *Base) SuccessResult(windows []quota.Window) *quota.CheckResult {
	return b.result(true, "", quota.Windows(windows))
}

func (b *Base) SuccessGroupsResult(groups []quota.Group) *quota.CheckResult {
	return b.result(true, "", quota.Groups(groups))
}

func (b *Base) ErrorResult(err error) *quota.CheckResult {
	if err == nil {
		err = errors.New("unknown error")
	}

	return b.result(false, err.Error(), nil)
}

func (b *Base) ErrorResultf(format string, args ...any) *quota.CheckResult {
	return b.result(false, fmt.Sprintf(format, args...), nil)
}

func (b *Base) result(success bool, errMsg string, data quota.Payload) *quota.CheckResult {
	return &quota.CheckResult{
		Provider:       b.cfg.Provider,
		CheckerID:      b.cfg.ID,
		CheckedAt:      xtime.Now(),
		Success:        success,
		Error:          errMsg,
		Data:           data,
		OAuthAccountID: b.OptionString(OptionOAuthAccountID, ""),
		OAuthProvider:  b.OptionString(OptionOAuthProvider, ""),
	}
}
