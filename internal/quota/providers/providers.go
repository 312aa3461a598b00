// Package providers holds the built-in quota adapters. Each adapter registers itself
// with the default checker registry on import.
package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/quota"
	"github.com/looplj/quotahub/internal/quota/checker"
)

const (
	OptionAPIKey      = "api_key"
	OptionAccessToken = "access_token"
	OptionBaseURL     = "base_url"
	OptionUserAgent   = "user_agent"
)

var errNoTokenSource = errors.New("oauth credential store is not configured")

// TokenSource resolves OAuth access tokens by provider and account.
type TokenSource interface {
	AccessToken(ctx context.Context, provider, accountID string) (string, error)
}

// tokenInvalidator is implemented by token sources that can force a refresh of a rejected token.
type tokenInvalidator interface {
	Invalidate(ctx context.Context, provider, accountID, rejected string) error
}

// Deps are the collaborators shared by all adapters.
type Deps struct {
	HTTPClient *httpclient.HttpClient
	Tokens     TokenSource
}

var defaultDeps = &Deps{}

// Configure sets the collaborators used by adapters created from the default registry.
// It must run before any checker is created.
func Configure(hc *httpclient.HttpClient, tokens TokenSource) {
	defaultDeps.HTTPClient = hc
	defaultDeps.Tokens = tokens
}

// Register installs every built-in adapter into reg.
func Register(reg *checker.Registry, deps *Deps) {
	reg.Register(TypeClaudeCode, func(cfg quota.CheckerConfig) (checker.Checker, error) {
		return NewClaudeCode(cfg, *deps)
	})
	reg.Register(TypeCodex, func(cfg quota.CheckerConfig) (checker.Checker, error) {
		return NewCodex(cfg, *deps)
	})
	reg.Register(TypeOpenRouter, func(cfg quota.CheckerConfig) (checker.Checker, error) {
		return NewOpenRouter(cfg, *deps)
	})
	reg.Register(TypeAntigravity, func(cfg quota.CheckerConfig) (checker.Checker, error) {
		return NewAntigravity(cfg, *deps)
	})
}

func init() {
	Register(checker.Default(), defaultDeps)
}

// adapter is embedded by every built-in checker.
type adapter struct {
	checker.Base

	deps Deps
}

func newAdapter(cfg quota.CheckerConfig, deps Deps) adapter {
	if deps.HTTPClient == nil {
		deps.HTTPClient = httpclient.NewHttpClient(httpclient.Config{})
	}

	return adapter{Base: checker.NewBase(cfg), deps: deps}
}

// requireCredentials fails construction when no way to obtain a token is configured.
func (a *adapter) requireCredentials() error {
	if a.OptionString(OptionAPIKey, "") != "" || a.OptionString(OptionAccessToken, "") != "" {
		return nil
	}

	if a.OptionString(checker.OptionOAuthProvider, "") != "" {
		_, err := a.RequireString(checker.OptionOAuthAccountID)
		return err
	}

	_, err := a.RequireString(OptionAPIKey)

	return err
}

// token prefers a static key and falls back to the OAuth credential store.
func (a *adapter) token(ctx context.Context) (string, error) {
	if key := a.OptionString(OptionAPIKey, ""); key != "" {
		return key, nil
	}

	if token := a.OptionString(OptionAccessToken, ""); token != "" {
		return token, nil
	}

	provider, err := a.RequireString(checker.OptionOAuthProvider)
	if err != nil {
		return "", err
	}

	account, err := a.RequireString(checker.OptionOAuthAccountID)
	if err != nil {
		return "", err
	}

	if a.deps.Tokens == nil {
		return "", errNoTokenSource
	}

	return a.deps.Tokens.AccessToken(ctx, provider, account)
}

// upstreamError turns a failed upstream call into an error result. A rejected OAuth token
// is invalidated so the next poll refreshes it.
func (a *adapter) upstreamError(ctx context.Context, token string, err error) *quota.CheckResult {
	switch {
	case httpclient.IsUnauthorizedErr(err):
		a.invalidateToken(ctx, token)
		return a.ErrorResultf("upstream rejected credentials: %v", err)
	case httpclient.IsNotFoundErr(err):
		return a.ErrorResultf("quota endpoint not found, check %s: %v", OptionBaseURL, err)
	default:
		return a.ErrorResult(err)
	}
}

func (a *adapter) invalidateToken(ctx context.Context, token string) {
	if a.OptionString(OptionAPIKey, "") != "" || a.OptionString(OptionAccessToken, "") != "" {
		return
	}

	provider := a.OptionString(checker.OptionOAuthProvider, "")
	account := a.OptionString(checker.OptionOAuthAccountID, "")

	inv, ok := a.deps.Tokens.(tokenInvalidator)
	if !ok || provider == "" || account == "" {
		return
	}

	if err := inv.Invalidate(ctx, provider, account, token); err != nil {
		log.Warn(ctx, "failed to invalidate rejected oauth token",
			log.String("checker_id", a.ID()),
			log.String("oauth_provider", provider),
			log.Cause(err))
	}
}

func (a *adapter) baseURL(def string) string {
	return strings.TrimSuffix(a.OptionString(OptionBaseURL, def), "/")
}

func ptr[T any](v T) *T {
	return &v
}
