package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/quota"
)

const (
	TypeClaudeCode = "claudecode"

	claudeCodeBaseURL      = "https://api.anthropic.com"
	claudeCodeProbeModel   = "claude-haiku-4-5"
	claudeCodeVersion      = "2023-06-01"
	claudeCodeBeta         = "oauth-2025-04-20"
	claudeCodeApp          = "cli"
	unifiedRateLimitPrefix = "Anthropic-Ratelimit-Unified-"
)

var errNoUnifiedHeaders = errors.New("response carries no unified rate limit headers")

// ClaudeCode sends a one-token probe message and reads the unified rate limit headers.
type ClaudeCode struct {
	adapter
}

func NewClaudeCode(cfg quota.CheckerConfig, deps Deps) (*ClaudeCode, error) {
	c := &ClaudeCode{adapter: newAdapter(cfg, deps)}
	if err := c.requireCredentials(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *ClaudeCode) CheckQuota(ctx context.Context) *quota.CheckResult {
	token, err := c.token(ctx)
	if err != nil {
		return c.ErrorResult(err)
	}

	body, err := json.Marshal(map[string]any{
		"model":      c.OptionString("model", claudeCodeProbeModel),
		"max_tokens": 1,
		"messages": []map[string]any{
			{"role": "user", "content": "quota"},
		},
	})
	if err != nil {
		return c.ErrorResult(err)
	}

	headers := http.Header{}
	headers.Set("Anthropic-Version", claudeCodeVersion)
	headers.Set("Anthropic-Beta", claudeCodeBeta)
	headers.Set("Anthropic-Dangerous-Direct-Browser-Access", "true")
	headers.Set("X-App", claudeCodeApp)

	if ua := c.OptionString(OptionUserAgent, ""); ua != "" {
		headers.Set("User-Agent", ua)
	}

	resp, err := c.deps.HTTPClient.Do(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     messagesURL(c.baseURL(claudeCodeBaseURL)),
		Headers: headers,
		Body:    body,
		Auth:    &httpclient.AuthConfig{Type: httpclient.AuthTypeBearer, APIKey: token},
	})
	if err != nil {
		log.Warn(ctx, "claude code quota probe failed", log.String("checker_id", c.ID()), log.Cause(err))
		return c.upstreamError(ctx, token, err)
	}

	windows, err := c.parseHeaders(ctx, resp.Headers)
	if err != nil {
		return c.ErrorResult(err)
	}

	result := c.SuccessResult(windows)
	result.RawResponse = unifiedHeadersJSON(resp.Headers)

	return result
}

func (c *ClaudeCode) parseHeaders(ctx context.Context, h http.Header) ([]quota.Window, error) {
	if h.Get(unifiedRateLimitPrefix+"Status") == "" && h.Get(unifiedRateLimitPrefix+"5h-Utilization") == "" {
		return nil, errNoUnifiedHeaders
	}

	var windows []quota.Window

	for _, w := range []struct {
		key         string
		windowType  quota.WindowType
		description string
	}{
		{key: "5h", windowType: quota.WindowTypeFiveHour, description: "5-hour rolling limit"},
		{key: "7d", windowType: quota.WindowTypeWeekly, description: "7-day limit"},
	} {
		raw := h.Get(unifiedRateLimitPrefix + w.key + "-Utilization")
		if raw == "" {
			continue
		}

		fraction, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			log.Warn(ctx, "invalid utilization header",
				log.String("checker_id", c.ID()), log.String("window_type", string(w.windowType)), log.String("value", raw))

			continue
		}

		used := fraction * 100
		windows = append(windows, c.CreateWindow(
			w.windowType,
			ptr(100.0),
			ptr(used),
			ptr(max(100-used, 0)),
			quota.UnitPercentage,
			parseUnixSeconds(h.Get(unifiedRateLimitPrefix+w.key+"-Reset")),
			w.description,
		))
	}

	if len(windows) == 0 {
		return nil, errNoUnifiedHeaders
	}

	return windows, nil
}

func messagesURL(baseURL string) string {
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL + "/messages"
	}

	return baseURL + "/v1/messages"
}

func parseUnixSeconds(s string) *time.Time {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return nil
	}

	t := time.Unix(v, 0).UTC()

	return &t
}

func unifiedHeadersJSON(h http.Header) json.RawMessage {
	raw := make(map[string]string)

	for key := range h {
		if strings.HasPrefix(key, unifiedRateLimitPrefix) {
			raw[strings.ToLower(key)] = h.Get(key)
		}
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}

	return b
}
