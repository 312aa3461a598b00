package providers

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/quota"
)

const (
	TypeAntigravity = "antigravity"

	antigravityBaseURL    = "https://cloudcode-pa.googleapis.com"
	antigravityModelsPath = "/v1internal:fetchAvailableModels"
	antigravityUserAgent  = "antigravity/1.11.5 windows/amd64"
)

// Antigravity lists the Cloud Code models and pools those sharing one quota bucket into groups.
type Antigravity struct {
	adapter
}

func NewAntigravity(cfg quota.CheckerConfig, deps Deps) (*Antigravity, error) {
	c := &Antigravity{adapter: newAdapter(cfg, deps)}
	if err := c.requireCredentials(); err != nil {
		return nil, err
	}

	windowType := quota.WindowType(c.OptionString("window_type", string(quota.WindowTypeFiveHour)))
	if !windowType.IsValid() {
		return nil, fmt.Errorf("quota checker %s: invalid window_type %q", cfg.ID, windowType)
	}

	return c, nil
}

type modelQuota struct {
	name      string
	remaining float64
	resetTime string
}

func (c *Antigravity) CheckQuota(ctx context.Context) *quota.CheckResult {
	token, err := c.token(ctx)
	if err != nil {
		return c.ErrorResult(err)
	}

	headers := http.Header{}
	headers.Set("User-Agent", c.OptionString(OptionUserAgent, antigravityUserAgent))
	headers.Set("X-Goog-Api-Client", "google-cloud-sdk vscode_cloudshelleditor/0.1")
	headers.Set("Client-Metadata", `{"ideType":"IDE_UNSPECIFIED","platform":"PLATFORM_UNSPECIFIED","pluginType":"GEMINI"}`)

	resp, err := c.deps.HTTPClient.Do(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL(antigravityBaseURL) + antigravityModelsPath,
		Headers: headers,
		Body:    []byte("{}"),
		Auth:    &httpclient.AuthConfig{Type: httpclient.AuthTypeBearer, APIKey: token},
	})
	if err != nil {
		return c.upstreamError(ctx, token, err)
	}

	if !gjson.ValidBytes(resp.Body) {
		return c.ErrorResultf("antigravity models response is not valid JSON")
	}

	var models []modelQuota

	gjson.GetBytes(resp.Body, "models").ForEach(func(name, model gjson.Result) bool {
		info := model.Get("quotaInfo")
		if !info.Exists() {
			return true
		}

		remaining := 1.0
		if r := info.Get("remainingFraction"); r.Exists() {
			remaining = r.Float()
		}

		models = append(models, modelQuota{
			name:      name.String(),
			remaining: remaining,
			resetTime: info.Get("resetTime").String(),
		})

		return true
	})

	if len(models) == 0 {
		return c.ErrorResultf("antigravity returned no models with quota information")
	}

	result := c.SuccessGroupsResult(c.groups(models))
	result.RawResponse = resp.Body

	return result
}

// groups pools models that report the same remaining fraction and reset time.
func (c *Antigravity) groups(models []modelQuota) []quota.Group {
	windowType := quota.WindowType(c.OptionString("window_type", string(quota.WindowTypeFiveHour)))

	buckets := lo.GroupBy(models, func(m modelQuota) string {
		return strconv.FormatFloat(m.remaining, 'f', -1, 64) + "|" + m.resetTime
	})

	groups := make([]quota.Group, 0, len(buckets))

	for _, members := range buckets {
		names := lo.Map(members, func(m modelQuota, _ int) string { return m.name })
		slices.Sort(names)

		var resetsAt *time.Time
		if t, err := time.Parse(time.RFC3339, members[0].resetTime); err == nil {
			t = t.UTC()
			resetsAt = &t
		}

		remaining := members[0].remaining * 100

		groups = append(groups, quota.Group{
			GroupID:    groupID(names),
			GroupLabel: groupLabel(names),
			Models:     names,
			Windows: []quota.Window{
				c.CreateWindow(windowType, ptr(100.0), nil, ptr(remaining), quota.UnitPercentage, resetsAt,
					fmt.Sprintf("Shared quota for %d model(s)", len(names))),
			},
		})
	}

	slices.SortFunc(groups, func(a, b quota.Group) int {
		return strings.Compare(a.GroupLabel, b.GroupLabel)
	})

	return groups
}

func groupID(sortedModels []string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(sortedModels, ",")))
}

func groupLabel(sortedModels []string) string {
	if len(sortedModels) <= 2 {
		return strings.Join(sortedModels, ", ")
	}

	return fmt.Sprintf("%s, %s +%d more", sortedModels[0], sortedModels[1], len(sortedModels)-2)
}
