package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/pkg/xcache"
	"github.com/looplj/quotahub/internal/pkg/xtime"
)

var ErrCredentialsNotFound = errors.New("oauth credentials not found")

type ProviderConfig struct {
	TokenURL  string `conf:"token_url" yaml:"token_url" json:"token_url"`
	UserAgent string `conf:"user_agent" yaml:"user_agent" json:"user_agent"`
}

// AccountConfig seeds one account. Credentials is the credentials JSON document.
type AccountConfig struct {
	Provider    string `conf:"provider" yaml:"provider" json:"provider"`
	AccountID   string `conf:"account_id" yaml:"account_id" json:"account_id"`
	Credentials string `conf:"credentials" yaml:"credentials" json:"-"`
}

type Config struct {
	Cache     xcache.Config             `conf:"cache" yaml:"cache" json:"cache"`
	Providers map[string]ProviderConfig `conf:"providers" yaml:"providers" json:"providers"`
	Accounts  []AccountConfig           `conf:"accounts" yaml:"accounts" json:"accounts"`
}

// Store resolves bearer tokens for (provider, account) pairs. Credentials live in a
// gocache chain so refreshed tokens are shared between replicas in redis mode.
type Store struct {
	cache      xcache.Cache[string]
	closeCache func() error
	httpClient *httpclient.HttpClient
	providers  map[string]ProviderConfig

	mu         sync.Mutex
	refreshers map[string]*TokenProvider
}

func NewStore(ctx context.Context, cfg Config, hc *httpclient.HttpClient) (*Store, error) {
	cacheCfg := cfg.Cache
	// Credentials are configuration, not cache entries: keep them until replaced.
	if cacheCfg.Mode == "" || cacheCfg.Mode == xcache.ModeMemory {
		if cacheCfg.Memory.Expiration == 0 {
			cacheCfg.Memory.Expiration = -1
		}
	}

	if cacheCfg.Redis.Expiration == 0 {
		cacheCfg.Redis.Expiration = -1
	}

	cache, closeCache, err := xcache.NewFromConfig[string](ctx, cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("oauth credential cache: %w", err)
	}

	providers := make(map[string]ProviderConfig, len(cfg.Providers))
	for name, p := range cfg.Providers {
		providers[strings.ToLower(name)] = p
	}

	s := &Store{
		cache:      cache,
		closeCache: closeCache,
		httpClient: hc,
		providers:  providers,
		refreshers: make(map[string]*TokenProvider),
	}

	for _, acct := range cfg.Accounts {
		if err := s.seed(ctx, acct); err != nil {
			_ = closeCache()
			return nil, err
		}
	}

	return s, nil
}

// seed stores configured credentials unless the cache already holds newer ones.
func (s *Store) seed(ctx context.Context, acct AccountConfig) error {
	creds, err := ParseCredentialsJSON(acct.Credentials)
	if err != nil {
		return fmt.Errorf("oauth account %s/%s: %w", acct.Provider, acct.AccountID, err)
	}

	if _, err := s.Credentials(ctx, acct.Provider, acct.AccountID); err == nil {
		log.Debug(ctx, "oauth account already cached, keeping cached credentials",
			log.String("oauth_provider", acct.Provider),
			log.String("oauth_account_id", acct.AccountID))

		return nil
	}

	return s.Put(ctx, acct.Provider, acct.AccountID, creds)
}

func cacheKey(provider, accountID string) string {
	return "quotahub:oauth:" + strings.ToLower(provider) + ":" + accountID
}

func (s *Store) Put(ctx context.Context, provider, accountID string, creds *Credentials) error {
	raw, err := creds.ToJSON()
	if err != nil {
		return err
	}

	if err := s.cache.Set(ctx, cacheKey(provider, accountID), raw); err != nil {
		return fmt.Errorf("store oauth credentials for %s/%s: %w", provider, accountID, err)
	}

	return nil
}

func (s *Store) Credentials(ctx context.Context, provider, accountID string) (*Credentials, error) {
	raw, err := s.cache.Get(ctx, cacheKey(provider, accountID))
	if err != nil {
		if xcache.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrCredentialsNotFound, provider, accountID)
		}

		return nil, err
	}

	if raw == "" {
		return nil, fmt.Errorf("%w: %s/%s", ErrCredentialsNotFound, provider, accountID)
	}

	return ParseCredentialsJSON(raw)
}

// AccessToken returns a usable access token, refreshing and storing the credentials when expired.
func (s *Store) AccessToken(ctx context.Context, provider, accountID string) (string, error) {
	creds, err := s.Credentials(ctx, provider, accountID)
	if err != nil {
		return "", err
	}

	if !creds.IsExpired(xtime.Now()) {
		return creds.AccessToken, nil
	}

	refresher := s.refresher(provider, accountID)
	refresher.Offer(creds)

	fresh, err := refresher.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh oauth token for %s/%s: %w", provider, accountID, err)
	}

	return fresh.AccessToken, nil
}

// Invalidate expires the stored credentials of an account whose access token was rejected
// upstream, so the next AccessToken call refreshes them. It is a no-op when the stored token
// already differs from rejected or cannot be refreshed.
func (s *Store) Invalidate(ctx context.Context, provider, accountID, rejected string) error {
	creds, err := s.Credentials(ctx, provider, accountID)
	if err != nil {
		return err
	}

	if creds.AccessToken != rejected || creds.RefreshToken == "" {
		return nil
	}

	expired := *creds
	expired.ExpiresAt = xtime.Now().Add(-time.Second)

	s.refresher(provider, accountID).Set(&expired)

	log.Info(ctx, "oauth access token rejected upstream, forcing refresh",
		log.String("oauth_provider", provider),
		log.String("oauth_account_id", accountID))

	return s.Put(ctx, provider, accountID, &expired)
}

func (s *Store) refresher(provider, accountID string) *TokenProvider {
	key := cacheKey(provider, accountID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.refreshers[key]; ok {
		return p
	}

	pc := s.providers[strings.ToLower(provider)]
	p := NewTokenProvider(TokenProviderParams{
		HTTPClient: s.httpClient,
		TokenURL:   pc.TokenURL,
		UserAgent:  pc.UserAgent,
		OnRefreshed: func(ctx context.Context, refreshed *Credentials) error {
			return s.Put(ctx, provider, accountID, refreshed)
		},
	})
	s.refreshers[key] = p

	return p
}

func (s *Store) Close() error {
	return s.closeCache()
}
