package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/metrics"
	"github.com/looplj/quotahub/internal/oauth"
	"github.com/looplj/quotahub/internal/objects"
	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/quota"
	"github.com/looplj/quotahub/internal/quota/scheduler"
	"github.com/looplj/quotahub/internal/quota/store"
)

func TestApp_ServesQuotaFromConfiguredCheckers(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"label":"ci","limit":10,"usage":8,"limit_remaining":2,"limit_reset":null}}`))
	}))
	defer upstream.Close()

	logCfg := log.DefaultConfig()
	logCfg.Level = "error"

	var (
		srv   *Server
		sched *scheduler.Scheduler
	)

	app := fxtest.New(t,
		Options(),
		fx.Supply(
			Config{Name: "quotahub-test", AdminToken: "token"},
			logCfg,
			store.Config{Dialect: "sqlite3", DSN: "file:" + uuid.NewString() + "?mode=memory&cache=shared"},
			metrics.Config{},
			httpclient.Config{Timeout: 5 * time.Second},
			oauth.Config{},
			scheduler.Config{
				Checkers: []quota.CheckerConfig{
					{
						ID:              "openrouter-ci",
						Provider:        "openrouter",
						Type:            "openrouter",
						Enabled:         true,
						IntervalMinutes: 60,
						Options:         map[string]any{"api_key": "sk-or", "base_url": upstream.URL},
					},
					{ID: "broken", Type: "does-not-exist", Enabled: true},
				},
			},
		),
		fx.Populate(&srv, &sched),
	)

	app.RequireStart()
	defer app.RequireStop()

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer token")

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		return w
	}

	var latest objects.LatestQuotaResponse

	require.Eventually(t, func() bool {
		w := get("/admin/quota/checkers/openrouter-ci/latest")
		if w.Code != http.StatusOK {
			return false
		}

		return json.Unmarshal(w.Body.Bytes(), &latest) == nil && len(latest.Windows) == 1
	}, 5*time.Second, 20*time.Millisecond)

	window := latest.Windows[0]
	assert.Equal(t, quota.WindowTypeSubscription, window.WindowType)
	assert.Equal(t, quota.StatusWarning, window.Status)
	assert.InDelta(t, 80, window.UtilizationPercent, 1e-9)

	w := get("/admin/quota/checkers")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"checkers":["openrouter-ci"]}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/admin/quota/checkers", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get("/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("QH-Request-Id"))

	assert.Equal(t, []string{"openrouter-ci"}, sched.CheckerIDs())
}
