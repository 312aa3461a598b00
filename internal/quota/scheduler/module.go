package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/oauth"
	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/quota/providers"
)

// Module provides the scheduler and ties it to the application lifecycle.
// Checkers are initialized in the background so slow providers do not hold up startup.
var Module = fx.Module("quota",
	fx.Provide(New),
	fx.Invoke(func(hc *httpclient.HttpClient, tokens *oauth.Store) {
		providers.Configure(hc, tokens)
	}),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler, cfg Config) {
		initialized := make(chan struct{})

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					defer close(initialized)

					if err := s.Initialize(context.Background(), cfg.Checkers); err != nil {
						log.Warn(context.Background(), "some quota checkers failed to initialize", log.Cause(err))
					}
				}()

				return nil
			},
			OnStop: func(ctx context.Context) error {
				select {
				case <-initialized:
				case <-ctx.Done():
				}

				s.Stop()

				return nil
			},
		})
	}),
)
