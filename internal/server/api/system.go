package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/quotahub/internal/build"
	"github.com/looplj/quotahub/internal/objects"
)

type SystemHandlersParams struct {
	fx.In

	Service QuotaService
}

type SystemHandlers struct {
	service QuotaService
}

func NewSystemHandlers(params SystemHandlersParams) *SystemHandlers {
	return &SystemHandlers{service: params.Service}
}

func (h *SystemHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, objects.HealthResponse{
		Status:   "ok",
		Version:  build.Version,
		Checkers: len(h.service.CheckerIDs()),
	})
}
