package httpclient

import (
	"net/http"
	"net/url"
)

// Request is an outbound call made by a quota adapter.
type Request struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Query   url.Values  `json:"query,omitempty"`
	Headers http.Header `json:"-"`
	Body    []byte      `json:"body,omitempty"`

	Auth *AuthConfig `json:"-"`
}

type AuthConfig struct {
	// Type is "bearer" or "api_key".
	Type string `json:"type"`

	APIKey string `json:"-"`

	// HeaderKey is the header carrying the key when Type is "api_key".
	HeaderKey string `json:"header_key,omitempty"`
}

const (
	AuthTypeBearer = "bearer"
	AuthTypeAPIKey = "api_key"
)

type Response struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body,omitempty"`

	Request *Request `json:"-"`
}
