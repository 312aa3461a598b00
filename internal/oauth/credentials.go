package oauth

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/looplj/quotahub/internal/pkg/xtime"
)

// expirySkew treats tokens as expired slightly early so a poll never races the expiry.
const expirySkew = 3 * time.Minute

type Credentials struct {
	ClientID     string    `json:"client_id,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

type TokenResponse struct {
	IDToken      string `json:"id_token,omitempty"`
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
}

type TokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func ParseCredentialsJSON(raw string) (*Credentials, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("empty credentials")
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(trimmed), &creds); err != nil {
		return nil, err
	}

	if creds.AccessToken == "" {
		return nil, errors.New("access_token is empty")
	}

	return &creds, nil
}

// IsExpired reports whether the token must be refreshed before use.
// Credentials without an expiry and without a refresh token are treated as long-lived.
func (c *Credentials) IsExpired(now time.Time) bool {
	if c == nil {
		return true
	}

	if c.ExpiresAt.IsZero() {
		return c.RefreshToken != ""
	}

	return now.Add(expirySkew).After(c.ExpiresAt)
}

func (c *Credentials) ToJSON() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func (c *Credentials) apply(resp TokenResponse) *Credentials {
	updated := *c
	updated.AccessToken = resp.AccessToken

	if resp.TokenType != "" {
		updated.TokenType = resp.TokenType
	}

	if resp.IDToken != "" {
		updated.IDToken = resp.IDToken
	}

	if resp.RefreshToken != "" {
		updated.RefreshToken = resp.RefreshToken
	}

	if resp.Scope != "" {
		updated.Scopes = strings.Fields(resp.Scope)
	}

	if resp.ExpiresIn > 0 {
		updated.ExpiresAt = xtime.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	return &updated
}
