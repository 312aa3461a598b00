package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/quota/scheduler"
	"github.com/looplj/quotahub/internal/server/api"
	"github.com/looplj/quotahub/internal/server/dependencies"
	"github.com/looplj/quotahub/internal/server/middleware"
	"github.com/looplj/quotahub/internal/tracing"
)

func New(config Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())

	return &Server{
		Config: config,
		Engine: engine,
	}
}

type Server struct {
	*gin.Engine

	Config Config
	server *http.Server
}

func (srv *Server) Run() error {
	log.Info(context.Background(), "run server",
		log.String("name", srv.Config.Name),
		log.String("host", srv.Config.Host),
		log.Int("port", srv.Config.Port),
	)

	srv.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", srv.Config.Host, srv.Config.Port),
		Handler:      srv.Engine,
		ReadTimeout:  srv.Config.ReadTimeout,
		WriteTimeout: srv.Config.RequestTimeout,
	}

	err := srv.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.server == nil {
		return nil
	}

	return srv.server.Shutdown(ctx)
}

// Options are the fx options of the whole application except configuration.
func Options() fx.Option {
	return fx.Options(
		fx.Provide(New),
		dependencies.Module,
		scheduler.Module,
		api.Module,
		fx.Invoke(func(cfg log.Config) {
			log.SetGlobalConfig(cfg)
			tracing.SetupLogger(log.GetGlobalLogger())
			slog.SetDefault(log.GetGlobalLogger().AsSlog())
		}),
		fx.Invoke(SetupRoutes),
	)
}

func Run(opts ...fx.Option) {
	app := fx.New(append([]fx.Option{fx.NopLogger, Options()}, opts...)...)
	app.Run()
}
