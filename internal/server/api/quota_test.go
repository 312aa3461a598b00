package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/quotahub/internal/objects"
	"github.com/looplj/quotahub/internal/pkg/xtime"
	"github.com/looplj/quotahub/internal/quota"
	"github.com/looplj/quotahub/internal/quota/scheduler"
)

type fakeService struct {
	ids        []string
	latest     []quota.LatestWindow
	history    []quota.Snapshot
	err        error
	gotWindow  quota.WindowType
	gotSince   *time.Time
	gotChecker string
}

func (f *fakeService) CheckerIDs() []string { return f.ids }

func (f *fakeService) RunCheckNow(_ context.Context, checkerID string) *quota.CheckResult {
	for _, id := range f.ids {
		if id == checkerID {
			return &quota.CheckResult{CheckerID: id, Provider: "codex", Success: true, Data: quota.Windows{}}
		}
	}

	return nil
}

func (f *fakeService) LatestQuota(_ context.Context, checkerID string) ([]quota.LatestWindow, error) {
	f.gotChecker = checkerID
	return f.latest, f.err
}

func (f *fakeService) QuotaHistory(_ context.Context, checkerID string, windowType quota.WindowType, since *time.Time) ([]quota.Snapshot, error) {
	f.gotChecker = checkerID
	f.gotWindow = windowType
	f.gotSince = since

	return f.history, f.err
}

func newEngine(svc QuotaService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewQuotaHandlers(QuotaHandlersParams{Service: svc})
	sys := NewSystemHandlers(SystemHandlersParams{Service: svc})

	engine := gin.New()
	engine.GET("/health", sys.Health)
	engine.GET("/checkers", h.ListCheckers)
	engine.GET("/checkers/:id/latest", h.LatestQuota)
	engine.GET("/checkers/:id/history", h.QuotaHistory)
	engine.POST("/checkers/:id/check", h.CheckNow)

	return engine
}

func do(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))

	return w
}

func TestQuotaHandlers_ListAndHealth(t *testing.T) {
	engine := newEngine(&fakeService{ids: []string{"a", "b"}})

	w := do(engine, http.MethodGet, "/checkers")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"checkers":["a","b"]}`, w.Body.String())

	w = do(engine, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var health objects.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Checkers)
}

func TestQuotaHandlers_LatestQuota(t *testing.T) {
	svc := &fakeService{latest: []quota.LatestWindow{{Snapshot: quota.Snapshot{CheckerID: "c1", WindowType: quota.WindowTypeFiveHour}}}}
	engine := newEngine(svc)

	w := do(engine, http.MethodGet, "/checkers/c1/latest")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", svc.gotChecker)

	var resp objects.LatestQuotaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Windows, 1)
	assert.Equal(t, quota.WindowTypeFiveHour, resp.Windows[0].WindowType)

	svc.err = scheduler.ErrQueryTimeout
	w = do(engine, http.MethodGet, "/checkers/c1/latest")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"Gateway Timeout"`)

	svc.err = errors.New("disk full")
	w = do(engine, http.MethodGet, "/checkers/c1/latest")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestQuotaHandlers_QuotaHistory(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	defer xtime.Freeze(now)()

	svc := &fakeService{history: []quota.Snapshot{{ID: 1}, {ID: 2}}}
	engine := newEngine(svc)

	w := do(engine, http.MethodGet, "/checkers/c1/history?window_type=weekly&since=7d")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, quota.WindowTypeWeekly, svc.gotWindow)
	require.NotNil(t, svc.gotSince)
	assert.Equal(t, now.AddDate(0, 0, -7), *svc.gotSince)

	var resp objects.QuotaHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Snapshots, 2)
	assert.Equal(t, now.AddDate(0, 0, -7).UnixMilli(), *resp.Since)

	w = do(engine, http.MethodGet, "/checkers/c1/history")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.gotSince)
	assert.Empty(t, svc.gotWindow)

	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodGet, "/checkers/c1/history?window_type=yearly").Code)
	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodGet, "/checkers/c1/history?since=yesterday").Code)
}

func TestQuotaHandlers_CheckNow(t *testing.T) {
	engine := newEngine(&fakeService{ids: []string{"c1"}})

	w := do(engine, http.MethodPost, "/checkers/c1/check")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"checkerId":"c1"`)

	w = do(engine, http.MethodPost, "/checkers/nope/check")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "quota checker not found: nope")
}

func timePtr(t time.Time) *time.Time { return &t }

func TestParseSince(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		raw     string
		want    *time.Time
		wantErr bool
	}{
		{raw: ""},
		{raw: "2025-03-01T00:00:00Z", want: timePtr(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))},
		{raw: "1741910400000", want: timePtr(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))},
		{raw: "24h", want: timePtr(now.Add(-24 * time.Hour))},
		{raw: "2d", want: timePtr(now.Add(-48 * time.Hour))},
		{raw: "3w", wantErr: true},
		{raw: "-1d", wantErr: true},
		{raw: "d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSince(tt.raw, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)

			if tt.want == nil {
				assert.Nil(t, got)
				return
			}

			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "want %s, got %s", tt.want, got)
		})
	}
}
