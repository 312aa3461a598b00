package server

import (
	"github.com/gin-contrib/cors"
	"go.uber.org/fx"

	"github.com/looplj/quotahub/internal/server/api"
	"github.com/looplj/quotahub/internal/server/middleware"
)

type Handlers struct {
	fx.In

	Quota  *api.QuotaHandlers
	System *api.SystemHandlers
}

func SetupRoutes(server *Server, handlers Handlers) {
	server.Use(middleware.WithLoggingTracing(server.Config.Trace))
	server.Use(middleware.AccessLog())

	if server.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = server.Config.CORS.AllowedOrigins
		corsConfig.AllowCredentials = server.Config.CORS.AllowCredentials
		corsConfig.MaxAge = server.Config.CORS.MaxAge

		if len(server.Config.CORS.AllowedMethods) > 0 {
			corsConfig.AllowMethods = server.Config.CORS.AllowedMethods
		}

		if len(server.Config.CORS.AllowedHeaders) > 0 {
			corsConfig.AllowHeaders = server.Config.CORS.AllowedHeaders
		}

		corsConfig.ExposeHeaders = server.Config.CORS.ExposedHeaders

		corsHandler := cors.New(corsConfig)
		server.Use(corsHandler)
		server.OPTIONS("*any", corsHandler)
	}

	server.GET("/health", handlers.System.Health)

	quotaGroup := server.Group("/admin/quota",
		middleware.WithTimeout(server.Config.RequestTimeout),
		middleware.WithAdminToken(server.Config.AdminToken),
	)
	{
		quotaGroup.GET("/checkers", handlers.Quota.ListCheckers)
		quotaGroup.GET("/checkers/:id/latest", handlers.Quota.LatestQuota)
		quotaGroup.GET("/checkers/:id/history", handlers.Quota.QuotaHistory)
		quotaGroup.POST("/checkers/:id/check", handlers.Quota.CheckNow)
	}
}
