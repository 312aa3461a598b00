package metrics

import "time"

type Config struct {
	Enabled  bool          `conf:"enabled" yaml:"enabled" json:"enabled"`
	Exporter string        `conf:"exporter" yaml:"exporter" json:"exporter"`
	Endpoint string        `conf:"endpoint" yaml:"endpoint" json:"endpoint"`
	Insecure bool          `conf:"insecure" yaml:"insecure" json:"insecure"`
	Interval time.Duration `conf:"interval" yaml:"interval" json:"interval"`
}
