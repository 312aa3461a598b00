package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/looplj/quotahub/internal/log"
)

type ProxyType string

const (
	ProxyTypeDisabled    ProxyType = "disabled"
	ProxyTypeEnvironment ProxyType = "environment"
	ProxyTypeURL         ProxyType = "url"
)

type ProxyConfig struct {
	Type     ProxyType `conf:"type" yaml:"type" json:"type"`
	URL      string    `conf:"url" yaml:"url" json:"url"`
	Username string    `conf:"username" yaml:"username" json:"username"`
	Password string    `conf:"password" yaml:"password" json:"-"`
}

func getProxyFunc(config *ProxyConfig) func(*http.Request) (*url.URL, error) {
	if config == nil {
		return http.ProxyFromEnvironment
	}

	switch config.Type {
	case ProxyTypeDisabled:
		return func(*http.Request) (*url.URL, error) {
			return nil, nil
		}
	case ProxyTypeURL:
		if config.URL == "" {
			return func(*http.Request) (*url.URL, error) {
				return nil, errors.New("proxy URL is required when type is 'url'")
			}
		}

		proxyURL, err := url.Parse(config.URL)
		if err != nil {
			return func(*http.Request) (*url.URL, error) {
				return nil, fmt.Errorf("invalid proxy URL: %w", err)
			}
		}

		if config.Username != "" && config.Password != "" {
			proxyURL.User = url.UserPassword(config.Username, config.Password)
		}

		log.Debug(context.Background(), "use custom proxy", log.String("proxy_url", proxyURL.Redacted()))

		return http.ProxyURL(proxyURL)
	default:
		return http.ProxyFromEnvironment
	}
}
