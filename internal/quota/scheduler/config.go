package scheduler

import (
	"time"

	"github.com/looplj/quotahub/internal/quota"
)

type Config struct {
	// QueryTimeout bounds LatestQuota and QuotaHistory. Defaults to 15s.
	QueryTimeout time.Duration `conf:"query_timeout" yaml:"query_timeout" json:"query_timeout"`
	// SweepCron optionally re-runs every checker on a cron schedule on top of the per-checker intervals.
	SweepCron string `conf:"sweep_cron" yaml:"sweep_cron" json:"sweep_cron"`
	// Defaults are per checker type options used when a checker omits them.
	Defaults map[string]map[string]any `conf:"defaults" yaml:"defaults" json:"defaults"`
	Checkers []quota.CheckerConfig     `conf:"checkers" yaml:"checkers" json:"checkers"`
}
