package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/quotahub/internal/contexts"
	"github.com/looplj/quotahub/internal/objects"
	"github.com/looplj/quotahub/internal/pkg/xtime"
	"github.com/looplj/quotahub/internal/quota"
	"github.com/looplj/quotahub/internal/quota/scheduler"
)

// QuotaService is the part of the scheduler the admin API reads from.
type QuotaService interface {
	CheckerIDs() []string
	RunCheckNow(ctx context.Context, checkerID string) *quota.CheckResult
	LatestQuota(ctx context.Context, checkerID string) ([]quota.LatestWindow, error)
	QuotaHistory(ctx context.Context, checkerID string, windowType quota.WindowType, since *time.Time) ([]quota.Snapshot, error)
}

var errCheckerNotFound = errors.New("quota checker not found")

type QuotaHandlersParams struct {
	fx.In

	Service QuotaService
}

type QuotaHandlers struct {
	service QuotaService
}

func NewQuotaHandlers(params QuotaHandlersParams) *QuotaHandlers {
	return &QuotaHandlers{service: params.Service}
}

func (h *QuotaHandlers) ListCheckers(c *gin.Context) {
	c.JSON(http.StatusOK, objects.CheckersResponse{Checkers: h.service.CheckerIDs()})
}

func (h *QuotaHandlers) LatestQuota(c *gin.Context) {
	checkerID := c.Param("id")
	ctx := contexts.WithCheckerID(c.Request.Context(), checkerID)

	windows, err := h.service.LatestQuota(ctx, checkerID)
	if err != nil {
		JSONError(c, statusForQueryError(err), err)
		return
	}

	c.JSON(http.StatusOK, objects.LatestQuotaResponse{CheckerID: checkerID, Windows: windows})
}

func (h *QuotaHandlers) QuotaHistory(c *gin.Context) {
	checkerID := c.Param("id")
	ctx := contexts.WithCheckerID(c.Request.Context(), checkerID)

	windowType := quota.WindowType(c.Query("window_type"))
	if windowType != "" && !windowType.IsValid() {
		JSONError(c, http.StatusBadRequest, fmt.Errorf("invalid window_type: %q", windowType))
		return
	}

	since, err := ParseSince(c.Query("since"), xtime.Now())
	if err != nil {
		JSONError(c, http.StatusBadRequest, err)
		return
	}

	snapshots, err := h.service.QuotaHistory(ctx, checkerID, windowType, since)
	if err != nil {
		JSONError(c, statusForQueryError(err), err)
		return
	}

	c.JSON(http.StatusOK, objects.QuotaHistoryResponse{
		CheckerID:  checkerID,
		WindowType: windowType,
		Since:      xtime.UnixMilli(since),
		Snapshots:  snapshots,
	})
}

func (h *QuotaHandlers) CheckNow(c *gin.Context) {
	checkerID := c.Param("id")
	ctx := contexts.WithCheckerID(c.Request.Context(), checkerID)

	result := h.service.RunCheckNow(ctx, checkerID)
	if result == nil {
		JSONError(c, http.StatusNotFound, fmt.Errorf("%w: %s", errCheckerNotFound, checkerID))
		return
	}

	c.JSON(http.StatusOK, result)
}

func statusForQueryError(err error) int {
	if errors.Is(err, scheduler.ErrQueryTimeout) {
		return http.StatusGatewayTimeout
	}

	return http.StatusInternalServerError
}

// ParseSince accepts RFC3339, epoch milliseconds, or a relative "<n>d" / "<n>h" lookback.
// An empty value means no lower bound.
func ParseSince(raw string, now time.Time) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return xtime.FromUnixMilli(&ms), nil
	}

	if len(raw) > 1 {
		n, err := strconv.Atoi(raw[:len(raw)-1])
		if err == nil && n >= 0 {
			var unit time.Duration

			switch raw[len(raw)-1] {
			case 'd':
				unit = 24 * time.Hour
			case 'h':
				unit = time.Hour
			}

			if unit > 0 {
				t := now.Add(-time.Duration(n) * unit)
				return &t, nil
			}
		}
	}

	return nil, fmt.Errorf("invalid since: %q (want RFC3339, epoch milliseconds, <n>d or <n>h)", raw)
}
