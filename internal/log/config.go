package log

type Config struct {
	// Name is attached to every entry as the logger name.
	Name string `conf:"name" yaml:"name" json:"name"`

	// Level is one of debug, info, warn, error.
	Level string `conf:"level" yaml:"level" json:"level"`

	// Encoding is json or console.
	Encoding string `conf:"encoding" yaml:"encoding" json:"encoding"`

	// Output is stdio or file.
	Output string `conf:"output" yaml:"output" json:"output"`

	File FileConfig `conf:"file" yaml:"file" json:"file"`

	// IncludeStacktrace adds stack traces to error level entries.
	IncludeStacktrace bool `conf:"include_stacktrace" yaml:"include_stacktrace" json:"include_stacktrace"`
}

type FileConfig struct {
	Path       string `conf:"path" yaml:"path" json:"path"`
	MaxSize    int    `conf:"max_size" yaml:"max_size" json:"max_size"`
	MaxAge     int    `conf:"max_age" yaml:"max_age" json:"max_age"`
	MaxBackups int    `conf:"max_backups" yaml:"max_backups" json:"max_backups"`
	LocalTime  bool   `conf:"local_time" yaml:"local_time" json:"local_time"`
	Compress   bool   `conf:"compress" yaml:"compress" json:"compress"`
}

func DefaultConfig() Config {
	return Config{
		Name:     "quotahub",
		Level:    "info",
		Encoding: "json",
		Output:   "stdio",
		File: FileConfig{
			Path:       "logs/quotahub.log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
		},
	}
}
