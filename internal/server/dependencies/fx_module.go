package dependencies

import (
	"context"

	"github.com/zhenzou/executors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/metrics"
	"github.com/looplj/quotahub/internal/oauth"
	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/quota/scheduler"
	"github.com/looplj/quotahub/internal/quota/store"
)

var Module = fx.Module("dependencies",
	fx.Provide(log.New),
	fx.Provide(httpclient.NewHttpClient),
	fx.Provide(NewStore),
	fx.Provide(func(s *store.Store) scheduler.SnapshotStore { return s }),
	fx.Provide(NewOAuthStore),
	fx.Provide(NewMetricsProvider),
	fx.Provide(func(p *metrics.Provider) metric.MeterProvider { return p }),
	fx.Provide(NewExecutors),
	fx.Invoke(func(lc fx.Lifecycle, executor executors.ScheduledExecutor) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return executor.Shutdown(ctx)
			},
		})
	}),
)

func NewStore(lc fx.Lifecycle, cfg store.Config) (*store.Store, error) {
	s, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(s.Close))

	return s, nil
}

func NewOAuthStore(lc fx.Lifecycle, cfg oauth.Config, hc *httpclient.HttpClient) (*oauth.Store, error) {
	s, err := oauth.NewStore(context.Background(), cfg, hc)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(s.Close))

	return s, nil
}

func NewMetricsProvider(lc fx.Lifecycle, cfg metrics.Config) (*metrics.Provider, error) {
	p, err := metrics.NewProvider(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(p.Shutdown))

	return p, nil
}
