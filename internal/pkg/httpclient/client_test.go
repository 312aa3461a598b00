package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHttpClient_Do(t *testing.T) {
	var (
		mu       sync.Mutex
		captured *http.Request
	)

	last := func() *http.Request {
		mu.Lock()
		defer mu.Unlock()

		return captured
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		captured = r.Clone(context.Background())
		mu.Unlock()

		switch r.URL.Path {
		case "/ok":
			w.Header().Set("X-Ratelimit-Remaining", "42")
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/missing":
			http.Error(w, "no such key", http.StatusNotFound)
		default:
			http.Error(w, "denied", http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	hc := NewHttpClientWithClient(srv.Client())
	ctx := context.Background()

	resp, err := hc.Do(ctx, &Request{
		Method: http.MethodGet,
		URL:    srv.URL + "/ok?a=1",
		Query:  url.Values{"b": []string{"2"}},
		Auth:   &AuthConfig{Type: AuthTypeBearer, APIKey: "sk-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, "42", resp.Headers.Get("X-Ratelimit-Remaining"))
	assert.Equal(t, "Bearer sk-1", last().Header.Get("Authorization"))
	assert.Equal(t, "application/json", last().Header.Get("Accept"))
	assert.Contains(t, last().Header.Get("User-Agent"), "quotahub/")
	assert.Equal(t, "1", last().URL.Query().Get("a"))
	assert.Equal(t, "2", last().URL.Query().Get("b"))

	_, err = hc.Do(ctx, &Request{
		Method: http.MethodGet,
		URL:    srv.URL + "/missing",
		Auth:   &AuthConfig{Type: AuthTypeAPIKey, HeaderKey: "X-Api-Key", APIKey: "k"},
	})
	require.Error(t, err)
	assert.True(t, IsNotFoundErr(err))
	assert.Equal(t, "k", last().Header.Get("X-Api-Key"))

	var httpErr *Error
	require.ErrorAs(t, err, &httpErr)
	assert.Contains(t, string(httpErr.Body), "no such key")

	_, err = hc.Do(ctx, &Request{Method: http.MethodPost, URL: srv.URL + "/denied", Body: []byte(`{}`)})
	require.Error(t, err)
	assert.True(t, IsUnauthorizedErr(err))
	assert.Equal(t, "application/json", last().Header.Get("Content-Type"))
}

func TestHttpClient_InvalidAuth(t *testing.T) {
	hc := NewHttpClient(Config{})

	_, err := hc.Do(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    "http://127.0.0.1:1",
		Auth:   &AuthConfig{Type: "digest"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported auth type")
}

func TestGetProxyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://api.example.com", nil)

	u, err := getProxyFunc(&ProxyConfig{Type: ProxyTypeDisabled})(req)
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = getProxyFunc(&ProxyConfig{Type: ProxyTypeURL, URL: "http://proxy:3128", Username: "u", Password: "p"})(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy:3128", u.Host)
	assert.Equal(t, "u", u.User.Username())

	_, err = getProxyFunc(&ProxyConfig{Type: ProxyTypeURL})(req)
	assert.Error(t, err)
}
