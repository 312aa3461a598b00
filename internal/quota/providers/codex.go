package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/pkg/xtime"
	"github.com/looplj/quotahub/internal/quota"
)

const (
	TypeCodex = "codex"

	codexBaseURL   = "https://chatgpt.com"
	codexUsagePath = "/backend-api/wham/usage"
	codexUserAgent = "codex_cli_rs/0.76.0 (Debian 13.0.0; x86_64) WindowsTerminal"
	codexAuthClaim = "https://api.openai.com/auth"
)

var errNoChatGPTAccount = errors.New("access token carries no chatgpt_account_id claim")

type codexUsageResponse struct {
	PlanType            string          `json:"plan_type,omitempty"`
	RateLimit           *codexRateLimit `json:"rate_limit,omitempty"`
	CodeReviewRateLimit *codexRateLimit `json:"code_review_rate_limit,omitempty"`
}

type codexRateLimit struct {
	Allowed         *bool        `json:"allowed,omitempty"`
	LimitReached    *bool        `json:"limit_reached,omitempty"`
	PrimaryWindow   *codexWindow `json:"primary_window,omitempty"`
	SecondaryWindow *codexWindow `json:"secondary_window,omitempty"`
}

type codexWindow struct {
	UsedPercent        *float64 `json:"used_percent,omitempty"`
	ResetAt            *int64   `json:"reset_at,omitempty"`
	ResetAfterSeconds  *int64   `json:"reset_after_seconds,omitempty"`
	LimitWindowSeconds *int64   `json:"limit_window_seconds,omitempty"`
}

// Codex reads the ChatGPT usage endpoint backing the Codex CLI.
type Codex struct {
	adapter
}

func NewCodex(cfg quota.CheckerConfig, deps Deps) (*Codex, error) {
	c := &Codex{adapter: newAdapter(cfg, deps)}
	if err := c.requireCredentials(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Codex) CheckQuota(ctx context.Context) *quota.CheckResult {
	token, err := c.token(ctx)
	if err != nil {
		return c.ErrorResult(err)
	}

	accountID := c.OptionString("chatgpt_account_id", "")
	if accountID == "" {
		accountID = chatGPTAccountID(token)
	}

	if accountID == "" {
		return c.ErrorResult(errNoChatGPTAccount)
	}

	headers := http.Header{}
	headers.Set("User-Agent", c.OptionString(OptionUserAgent, codexUserAgent))
	headers.Set("Chatgpt-Account-Id", accountID)

	resp, err := c.deps.HTTPClient.Do(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL(codexBaseURL) + codexUsagePath,
		Headers: headers,
		Auth:    &httpclient.AuthConfig{Type: httpclient.AuthTypeBearer, APIKey: token},
	})
	if err != nil {
		return c.upstreamError(ctx, token, err)
	}

	var usage codexUsageResponse
	if err := json.Unmarshal(resp.Body, &usage); err != nil {
		return c.ErrorResultf("failed to parse codex usage response: %v", err)
	}

	if usage.RateLimit == nil {
		return c.ErrorResultf("codex usage response has no rate_limit")
	}

	var windows []quota.Window

	if w := usage.RateLimit.PrimaryWindow; w != nil {
		windows = append(windows, c.window(w, quota.WindowTypeFiveHour))
	}

	if w := usage.RateLimit.SecondaryWindow; w != nil {
		windows = append(windows, c.window(w, quota.WindowTypeWeekly))
	}

	result := c.SuccessResult(windows)
	result.RawResponse = resp.Body

	return result
}

func (c *Codex) window(w *codexWindow, fallback quota.WindowType) quota.Window {
	windowType := fallback
	if w.LimitWindowSeconds != nil {
		windowType = windowTypeForSeconds(*w.LimitWindowSeconds)
	}

	var used *float64
	if w.UsedPercent != nil {
		used = ptr(*w.UsedPercent)
	}

	var resetsAt *time.Time

	switch {
	case w.ResetAt != nil && *w.ResetAt > 0:
		t := time.Unix(*w.ResetAt, 0).UTC()
		resetsAt = &t
	case w.ResetAfterSeconds != nil:
		t := xtime.Now().Add(time.Duration(*w.ResetAfterSeconds) * time.Second)
		resetsAt = &t
	}

	var remaining *float64
	if used != nil {
		remaining = ptr(max(100-*used, 0))
	}

	description := "Codex usage window"
	if w.LimitWindowSeconds != nil {
		description = fmt.Sprintf("Codex %s window", time.Duration(*w.LimitWindowSeconds)*time.Second)
	}

	return c.CreateWindow(windowType, ptr(100.0), used, remaining, quota.UnitPercentage, resetsAt, description)
}

func windowTypeForSeconds(seconds int64) quota.WindowType {
	switch time.Duration(seconds) * time.Second {
	case time.Hour:
		return quota.WindowTypeHourly
	case 5 * time.Hour:
		return quota.WindowTypeFiveHour
	case 24 * time.Hour:
		return quota.WindowTypeDaily
	case 7 * 24 * time.Hour:
		return quota.WindowTypeWeekly
	case 30 * 24 * time.Hour:
		return quota.WindowTypeMonthly
	default:
		return quota.WindowTypeCustom
	}
}

// chatGPTAccountID reads the account id claim without verifying the token signature.
func chatGPTAccountID(token string) string {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return ""
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}

	auth, ok := claims[codexAuthClaim].(map[string]any)
	if !ok {
		return ""
	}

	accountID, _ := auth["chatgpt_account_id"].(string)

	return accountID
}
