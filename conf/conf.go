// Package conf loads the application configuration from config.yml, a .env file and
// QUOTAHUB_ prefixed environment variables, in increasing order of precedence.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/metrics"
	"github.com/looplj/quotahub/internal/oauth"
	"github.com/looplj/quotahub/internal/pkg/httpclient"
	"github.com/looplj/quotahub/internal/quota/scheduler"
	"github.com/looplj/quotahub/internal/quota/store"
	"github.com/looplj/quotahub/internal/server"
)

const envPrefix = "QUOTAHUB"

type Config struct {
	fx.Out `yaml:"-" json:"-"`

	APIServer server.Config     `conf:"server" yaml:"server" json:"server"`
	Log       log.Config        `conf:"log" yaml:"log" json:"log"`
	DB        store.Config      `conf:"db" yaml:"db" json:"db"`
	Metrics   metrics.Config    `conf:"metrics" yaml:"metrics" json:"metrics"`
	HTTP      httpclient.Config `conf:"http" yaml:"http" json:"http"`
	OAuth     oauth.Config      `conf:"oauth" yaml:"oauth" json:"oauth"`
	Quota     scheduler.Config  `conf:"quota" yaml:"quota" json:"quota"`
}

// Load searches ".", "./conf" and "/etc/quotahub" for config.yml. A missing file is not an error.
func Load() (Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./conf")
	v.AddConfigPath("/etc/quotahub")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(v)
}

// LoadFile reads the configuration from an explicit file.
func LoadFile(path string) (Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	// Variables already set in the environment win over .env.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return v
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config

	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "conf"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	logDefaults := log.DefaultConfig()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.name", "quotahub")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.trace.request_header", "QH-Request-Id")
	v.SetDefault("server.cors.enabled", false)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", 12*time.Hour)

	v.SetDefault("log.name", logDefaults.Name)
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.encoding", logDefaults.Encoding)
	v.SetDefault("log.output", logDefaults.Output)
	v.SetDefault("log.file.path", logDefaults.File.Path)
	v.SetDefault("log.file.max_size", logDefaults.File.MaxSize)
	v.SetDefault("log.file.max_age", logDefaults.File.MaxAge)
	v.SetDefault("log.file.max_backups", logDefaults.File.MaxBackups)
	v.SetDefault("log.file.local_time", logDefaults.File.LocalTime)
	v.SetDefault("log.file.compress", logDefaults.File.Compress)

	v.SetDefault("db.dialect", "sqlite3")
	v.SetDefault("db.dsn", "file:quotahub.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	v.SetDefault("db.debug", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.exporter", "stdout")
	v.SetDefault("metrics.endpoint", "")
	v.SetDefault("metrics.insecure", false)
	v.SetDefault("metrics.interval", time.Minute)

	v.SetDefault("http.timeout", 30*time.Second)

	v.SetDefault("oauth.cache.mode", "memory")
	v.SetDefault("oauth.cache.redis.addr", "")
	v.SetDefault("oauth.cache.redis.url", "")
	v.SetDefault("oauth.cache.redis.password", "")

	v.SetDefault("quota.query_timeout", scheduler.DefaultQueryTimeout)
	v.SetDefault("quota.sweep_cron", "")
}
