package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/pkg/xtime"
	"github.com/looplj/quotahub/internal/quota"
)

const (
	TypeOpenRouter = "openrouter"

	openRouterBaseURL = "https://openrouter.ai"
	openRouterKeyPath = "/api/v1/key"
)

// OpenRouter reports the credit limit of an API key in dollars.
type OpenRouter struct {
	adapter
}

func NewOpenRouter(cfg quota.CheckerConfig, deps Deps) (*OpenRouter, error) {
	c := &OpenRouter{adapter: newAdapter(cfg, deps)}
	if _, err := c.RequireString(OptionAPIKey); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *OpenRouter) CheckQuota(ctx context.Context) *quota.CheckResult {
	key, err := c.RequireString(OptionAPIKey)
	if err != nil {
		return c.ErrorResult(err)
	}

	resp, err := c.deps.HTTPClient.Do(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    c.baseURL(openRouterBaseURL) + openRouterKeyPath,
		Auth:   &httpclient.AuthConfig{Type: httpclient.AuthTypeBearer, APIKey: key},
	})
	if err != nil {
		return c.upstreamError(ctx, key, err)
	}

	if !gjson.ValidBytes(resp.Body) {
		return c.ErrorResultf("openrouter key response is not valid JSON")
	}

	data := gjson.GetBytes(resp.Body, "data")
	if !data.Exists() {
		return c.ErrorResultf("openrouter key response has no data")
	}

	used := decimal.NewFromFloat(data.Get("usage").Float())

	var limit, remaining *float64

	if l := data.Get("limit"); l.Exists() && l.Type != gjson.Null {
		limitDec := decimal.NewFromFloat(l.Float())
		limit = ptr(limitDec.InexactFloat64())

		remainingDec := limitDec.Sub(used)
		if r := data.Get("limit_remaining"); r.Exists() && r.Type != gjson.Null {
			remainingDec = decimal.NewFromFloat(r.Float())
		}

		remaining = ptr(decimal.Max(remainingDec, decimal.Zero).Round(6).InexactFloat64())
	}

	windowType, resetsAt := openRouterReset(data.Get("limit_reset").String(), xtime.Now())

	description := "OpenRouter credit limit"
	if label := data.Get("label").String(); label != "" {
		description += " (" + label + ")"
	}

	result := c.SuccessResult([]quota.Window{
		c.CreateWindow(windowType, limit, ptr(used.Round(6).InexactFloat64()), remaining, quota.UnitDollars, resetsAt, description),
	})
	result.RawResponse = resp.Body

	return result
}

// openRouterReset maps the key's limit_reset period to a window type and the next UTC reset.
func openRouterReset(period string, now time.Time) (quota.WindowType, *time.Time) {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var next time.Time

	switch period {
	case "daily":
		next = midnight.AddDate(0, 0, 1)
		return quota.WindowTypeDaily, &next
	case "weekly":
		daysUntilMonday := (8 - int(now.Weekday())) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}

		next = midnight.AddDate(0, 0, daysUntilMonday)

		return quota.WindowTypeWeekly, &next
	case "monthly":
		next = time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		return quota.WindowTypeMonthly, &next
	default:
		return quota.WindowTypeSubscription, nil
	}
}
