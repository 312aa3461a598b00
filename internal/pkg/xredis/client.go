package xredis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/looplj/quotahub/internal/log"
)

// NewClient builds a client and checks it with a PING.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := newRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	log.Info(ctx, "redis connected", log.String("addr", opts.Addr), log.Int("db", opts.DB))

	return client, nil
}

func newRedisOptions(cfg Config) (*redis.Options, error) {
	var opts *redis.Options

	switch {
	case cfg.URL != "":
		parsed, err := optionsFromURL(cfg.URL, cfg.TLSInsecureSkipVerify)
		if err != nil {
			return nil, err
		}

		opts = parsed
	case strings.TrimSpace(cfg.Addr) != "":
		opts = &redis.Options{Addr: strings.TrimSpace(cfg.Addr)}
	default:
		return nil, errors.New("redis addr or url is required")
	}

	if cfg.Username != "" {
		opts.Username = cfg.Username
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.DB != nil {
		opts.DB = *cfg.DB
	}

	if cfg.TLS {
		if opts.TLSConfig == nil {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}

		opts.TLSConfig.InsecureSkipVerify = cfg.TLSInsecureSkipVerify // #nosec G402 -- explicit opt-in via config
	}

	if opts.TLSConfig == nil && cfg.TLSInsecureSkipVerify {
		return nil, errors.New("tls_insecure_skip_verify requires TLS to be enabled (tls=true or rediss://)")
	}

	return opts, nil
}

func optionsFromURL(raw string, insecure bool) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported redis scheme: %s (expected redis:// or rediss://)", u.Scheme)
	}

	if u.Host == "" {
		return nil, errors.New("redis url missing host")
	}

	opts := &redis.Options{Addr: u.Host}

	if u.User != nil {
		opts.Username = u.User.Username()
		opts.Password, _ = u.User.Password()
	}

	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db in url: %w", err)
		}

		opts.DB = n
	}

	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecure, // #nosec G402 -- explicit opt-in via config
		}
	}

	return opts, nil
}
