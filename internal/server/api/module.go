package api

import (
	"go.uber.org/fx"

	"github.com/looplj/quotahub/internal/quota/scheduler"
)

var Module = fx.Module("api",
	fx.Provide(func(s *scheduler.Scheduler) QuotaService { return s }),
	fx.Provide(NewQuotaHandlers),
	fx.Provide(NewSystemHandlers),
)
