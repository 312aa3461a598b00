package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/pkg/xcontext"
	"github.com/looplj/quotahub/internal/pkg/xtime"
)

const refreshTimeout = 30 * time.Second

// TokenProvider keeps one account's credentials fresh.
type TokenProvider struct {
	httpClient  *httpclient.HttpClient
	tokenURL    string
	userAgent   string
	sf          singleflight.Group
	mu          sync.RWMutex
	creds       *Credentials
	onRefreshed func(ctx context.Context, refreshed *Credentials) error
}

type TokenProviderParams struct {
	Credentials *Credentials
	HTTPClient  *httpclient.HttpClient
	TokenURL    string
	UserAgent   string
	OnRefreshed func(ctx context.Context, refreshed *Credentials) error
}

func NewTokenProvider(params TokenProviderParams) *TokenProvider {
	return &TokenProvider{
		httpClient:  params.HTTPClient,
		tokenURL:    params.TokenURL,
		userAgent:   params.UserAgent,
		creds:       params.Credentials,
		onRefreshed: params.OnRefreshed,
	}
}

// Set replaces the cached credentials, e.g. after another replica refreshed them.
func (p *TokenProvider) Set(creds *Credentials) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.creds = creds
}

// Offer replaces the cached credentials only when the current ones are missing or expired,
// so a concurrent refresh is never rolled back by a stale read.
func (p *TokenProvider) Offer(creds *Credentials) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.creds == nil || p.creds.IsExpired(xtime.Now()) {
		p.creds = creds
	}
}

// Get returns valid credentials, refreshing them once for all concurrent callers when expired.
func (p *TokenProvider) Get(ctx context.Context) (*Credentials, error) {
	p.mu.RLock()
	creds := p.creds
	p.mu.RUnlock()

	if creds == nil {
		return nil, errors.New("credentials is nil")
	}

	if !creds.IsExpired(xtime.Now()) {
		return creds, nil
	}

	v, err, _ := p.sf.Do("refresh", func() (any, error) {
		p.mu.RLock()
		current := p.creds
		p.mu.RUnlock()

		if !current.IsExpired(xtime.Now()) {
			return current, nil
		}

		// Shared by every waiter, so one caller cancelling must not abort it.
		rctx, cancel := xcontext.DetachWithTimeout(ctx, refreshTimeout)
		defer cancel()

		fresh, err := p.refresh(rctx, current)
		if err != nil {
			return nil, err
		}

		p.Set(fresh)

		if p.onRefreshed != nil {
			if err := p.onRefreshed(rctx, fresh); err != nil {
				log.Warn(rctx, "failed to persist refreshed credentials", log.Cause(err))
			}
		}

		return fresh, nil
	})
	if err != nil {
		return nil, err
	}

	fresh, ok := v.(*Credentials)
	if !ok {
		return nil, fmt.Errorf("singleflight returned unexpected type %T", v)
	}

	return fresh, nil
}

func (p *TokenProvider) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	if creds.RefreshToken == "" {
		return nil, errors.New("access token expired and refresh_token is empty")
	}

	if p.tokenURL == "" {
		return nil, errors.New("token URL is empty")
	}

	if p.httpClient == nil {
		return nil, errors.New("http client is nil")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)

	if creds.ClientID != "" {
		form.Set("client_id", creds.ClientID)
	}

	header := http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}}
	if p.userAgent != "" {
		header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     p.tokenURL,
		Headers: header,
		Body:    []byte(form.Encode()),
	})
	if err != nil {
		var httpErr *httpclient.Error
		if errors.As(err, &httpErr) {
			var tokenErr TokenError
			if json.Unmarshal(httpErr.Body, &tokenErr) == nil && tokenErr.Error != "" {
				return nil, fmt.Errorf("token refresh failed: %s - %s", tokenErr.Error, tokenErr.ErrorDescription)
			}
		}

		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(resp.Body, &tokenResp); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, errors.New("token refresh response missing access_token")
	}

	updated := creds.apply(tokenResp)

	log.Debug(ctx, "oauth token refreshed", log.String("expires_at", updated.ExpiresAt.Format(time.RFC3339)))

	return updated, nil
}
