package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/pkg/xcache"
	"github.com/looplj/quotahub/internal/pkg/xredis"
	"github.com/looplj/quotahub/internal/pkg/xtime"
)

func credsJSON(t *testing.T, c Credentials) string {
	t.Helper()

	raw, err := c.ToJSON()
	require.NoError(t, err)

	return raw
}

func newTokenServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.NoError(t, r.ParseForm())

		if r.PostForm.Get("refresh_token") != "rt-1" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(TokenError{Error: "invalid_grant", ErrorDescription: "refresh token revoked"})

			return
		}

		// Give concurrent callers time to pile up on the same refresh.
		time.Sleep(20 * time.Millisecond)

		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "at-2",
			RefreshToken: "rt-2",
			ExpiresIn:    3600,
			TokenType:    "Bearer",
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestStore_StaticToken(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, Config{
		Accounts: []AccountConfig{{
			Provider:    "Codex",
			AccountID:   "acct-1",
			Credentials: `{"access_token":"static-token"}`,
		}},
	}, nil)
	require.NoError(t, err)

	defer s.Close()

	token, err := s.AccessToken(ctx, "codex", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "static-token", token)

	_, err = s.AccessToken(ctx, "codex", "acct-unknown")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestStore_InvalidSeed(t *testing.T) {
	_, err := NewStore(context.Background(), Config{
		Accounts: []AccountConfig{{Provider: "codex", AccountID: "a", Credentials: `{}`}},
	}, nil)
	assert.ErrorContains(t, err, "codex/a")
}

func TestStore_RefreshesExpiredToken(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	defer xtime.Freeze(now)()

	var hits atomic.Int32
	srv := newTokenServer(t, &hits)

	s, err := NewStore(ctx, Config{
		Providers: map[string]ProviderConfig{"Codex": {TokenURL: srv.URL}},
		Accounts: []AccountConfig{{
			Provider:  "codex",
			AccountID: "acct-1",
			Credentials: credsJSON(t, Credentials{
				ClientID:     "client",
				AccessToken:  "at-1",
				RefreshToken: "rt-1",
				ExpiresAt:    now.Add(time.Minute),
			}),
		}},
	}, httpclient.NewHttpClientWithClient(srv.Client()))
	require.NoError(t, err)

	defer s.Close()

	var wg sync.WaitGroup

	tokens := make([]string, 8)
	for i := range tokens {
		wg.Go(func() {
			token, err := s.AccessToken(ctx, "codex", "acct-1")
			assert.NoError(t, err)

			tokens[i] = token
		})
	}

	wg.Wait()

	for _, token := range tokens {
		assert.Equal(t, "at-2", token)
	}

	assert.Equal(t, int32(1), hits.Load())

	stored, err := s.Credentials(ctx, "codex", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", stored.AccessToken)
	assert.Equal(t, "rt-2", stored.RefreshToken)
	assert.Equal(t, "client", stored.ClientID)
	assert.Equal(t, now.Add(time.Hour), stored.ExpiresAt)

	before := hits.Load()
	token, err := s.AccessToken(ctx, "codex", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", token)
	assert.Equal(t, before, hits.Load())
}

func TestStore_InvalidateForcesRefresh(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	defer xtime.Freeze(now)()

	var hits atomic.Int32
	srv := newTokenServer(t, &hits)

	s, err := NewStore(ctx, Config{
		Providers: map[string]ProviderConfig{"codex": {TokenURL: srv.URL}},
		Accounts: []AccountConfig{
			{Provider: "codex", AccountID: "acct-1", Credentials: credsJSON(t, Credentials{AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: now.Add(time.Hour)})},
			{Provider: "codex", AccountID: "static", Credentials: `{"access_token":"static-token"}`},
		},
	}, httpclient.NewHttpClientWithClient(srv.Client()))
	require.NoError(t, err)

	defer s.Close()

	token, err := s.AccessToken(ctx, "codex", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "at-1", token)

	// A token other than the stored one was rejected: keep the stored credentials.
	require.NoError(t, s.Invalidate(ctx, "codex", "acct-1", "at-0"))
	token, err = s.AccessToken(ctx, "codex", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "at-1", token)
	assert.Equal(t, int32(0), hits.Load())

	require.NoError(t, s.Invalidate(ctx, "codex", "acct-1", "at-1"))
	token, err = s.AccessToken(ctx, "codex", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", token)
	assert.Equal(t, int32(1), hits.Load())

	// Stale rejections after the refresh change nothing.
	require.NoError(t, s.Invalidate(ctx, "codex", "acct-1", "at-1"))
	token, err = s.AccessToken(ctx, "codex", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", token)
	assert.Equal(t, int32(1), hits.Load())

	// Without a refresh token there is nothing to force.
	require.NoError(t, s.Invalidate(ctx, "codex", "static", "static-token"))
	token, err = s.AccessToken(ctx, "codex", "static")
	require.NoError(t, err)
	assert.Equal(t, "static-token", token)

	assert.ErrorIs(t, s.Invalidate(ctx, "codex", "missing", "x"), ErrCredentialsNotFound)
}

func TestStore_RefreshFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	defer xtime.Freeze(now)()

	var hits atomic.Int32
	srv := newTokenServer(t, &hits)

	s, err := NewStore(ctx, Config{
		Providers: map[string]ProviderConfig{"codex": {TokenURL: srv.URL}},
		Accounts: []AccountConfig{
			{Provider: "codex", AccountID: "revoked", Credentials: credsJSON(t, Credentials{AccessToken: "at", RefreshToken: "bad", ExpiresAt: now.Add(-time.Hour)})},
			{Provider: "codex", AccountID: "no-refresh", Credentials: credsJSON(t, Credentials{AccessToken: "at", ExpiresAt: now.Add(-time.Hour)})},
		},
	}, httpclient.NewHttpClientWithClient(srv.Client()))
	require.NoError(t, err)

	defer s.Close()

	_, err = s.AccessToken(ctx, "codex", "revoked")
	assert.ErrorContains(t, err, "invalid_grant")

	_, err = s.AccessToken(ctx, "codex", "no-refresh")
	assert.ErrorContains(t, err, "refresh_token is empty")
}

func TestStore_RedisSharedBetweenReplicas(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := Config{
		Cache: xcache.Config{Mode: xcache.ModeRedis, Redis: xredis.Config{Addr: mr.Addr()}},
		Accounts: []AccountConfig{{
			Provider:    "antigravity",
			AccountID:   "me@example.com",
			Credentials: `{"access_token":"seed"}`,
		}},
	}

	first, err := NewStore(ctx, cfg, nil)
	require.NoError(t, err)

	defer first.Close()

	require.NoError(t, first.Put(ctx, "antigravity", "me@example.com", &Credentials{AccessToken: "rotated"}))

	raw, err := mr.Get(cacheKey("antigravity", "me@example.com"))
	require.NoError(t, err)
	assert.Contains(t, raw, `"access_token":"rotated"`)
	assert.Zero(t, mr.TTL(cacheKey("antigravity", "me@example.com")))

	// A second replica starting with the same seed keeps the rotated token.
	second, err := NewStore(ctx, cfg, nil)
	require.NoError(t, err)

	defer second.Close()

	token, err := second.AccessToken(ctx, "antigravity", "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "rotated", token)
}
