package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/andreazorzetto/yh/highlight"
	"github.com/hokaccha/go-prettyjson"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"gopkg.in/yaml.v3"

	"github.com/looplj/quotahub/conf"
	"github.com/looplj/quotahub/internal/build"
	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/quota/checker"
	"github.com/looplj/quotahub/internal/quota/store"
	"github.com/looplj/quotahub/internal/server"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			handleConfigCommand()
			return
		case "version", "--version", "-v":
			showVersion()
			return
		case "build-info":
			fmt.Println(build.GetBuildInfo())
			return
		case "help", "--help", "-h":
			showHelp()
			return
		}
	}

	startServer()
}

type logger struct{}

func (l *logger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

func startServer() {
	server.Run(
		fx.WithLogger(func() fxevent.Logger {
			return &logger{}
		}),
		fx.Provide(conf.Load),
		fx.Invoke(func(lc fx.Lifecycle, srv *server.Server) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						if err := srv.Run(); err != nil {
							log.Error(context.Background(), "server run error", log.Cause(err))
							os.Exit(1)
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					if err := srv.Shutdown(ctx); err != nil {
						log.Error(context.Background(), "server shutdown error", log.Cause(err))
					}

					return nil
				},
			})
		}),
	)
}

func handleConfigCommand() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: quotahub config <preview|validate|get>")
		os.Exit(1)
	}

	switch os.Args[2] {
	case "preview":
		configPreview()
	case "validate":
		configValidate()
	case "get":
		configGet()
	default:
		fmt.Println("Usage: quotahub config <preview|validate|get>")
		os.Exit(1)
	}
}

func configPreview() {
	format := "yml"

	for i := 3; i < len(os.Args); i++ {
		if (os.Args[i] == "--format" || os.Args[i] == "-f") && i+1 < len(os.Args) {
			format = os.Args[i+1]
		}
	}

	config, err := conf.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var output string

	switch format {
	case "json":
		b, err := prettyjson.Marshal(config)
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}

		output = string(b)
	case "yml", "yaml":
		b, err := yaml.Marshal(config)
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}

		output, err = highlight.Highlight(bytes.NewBuffer(b))
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unsupported format: %s\n", format)
		os.Exit(1)
	}

	fmt.Println(output)
}

func configValidate() {
	config, err := conf.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	errs := validateConfig(config)
	if len(errs) == 0 {
		fmt.Println("Configuration is valid!")
		return
	}

	fmt.Println("Configuration validation failed:")

	for _, err := range errs {
		fmt.Printf("  - %s\n", err)
	}

	os.Exit(1)
}

func validateConfig(config conf.Config) []string {
	var errs []string

	if config.APIServer.Port <= 0 || config.APIServer.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if config.DB.DSN == "" {
		errs = append(errs, "db.dsn cannot be empty")
	}

	if !store.SupportedDialect(config.DB.Dialect) {
		errs = append(errs, fmt.Sprintf("db.dialect %q is not supported", config.DB.Dialect))
	}

	if config.APIServer.CORS.Enabled && len(config.APIServer.CORS.AllowedOrigins) == 0 {
		errs = append(errs, "server.cors.allowed_origins cannot be empty when CORS is enabled")
	}

	seen := make(map[string]bool, len(config.Quota.Checkers))

	for i, c := range config.Quota.Checkers {
		if c.ID == "" {
			errs = append(errs, fmt.Sprintf("quota.checkers[%d].id cannot be empty", i))
		} else if seen[c.ID] {
			errs = append(errs, fmt.Sprintf("quota.checkers[%d].id %q is duplicated", i, c.ID))
		}

		seen[c.ID] = true

		if !checker.IsRegistered(c.Type) {
			errs = append(errs, fmt.Sprintf("quota.checkers[%d].type %q is unknown (registered: %s)",
				i, c.Type, strings.Join(checker.RegisteredTypes(), ", ")))
		}
	}

	return errs
}

func configGet() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: quotahub config get <key>")
		fmt.Println("")
		fmt.Println("Available keys:")
		fmt.Println("  server.port          Server port number")
		fmt.Println("  server.name          Server name")
		fmt.Println("  db.dialect           Database dialect")
		fmt.Println("  db.dsn               Database DSN")
		fmt.Println("  quota.checkers       Configured checker ids")
		fmt.Println("  quota.query_timeout  Read query timeout")
		os.Exit(1)
	}

	key := os.Args[3]

	config, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var value any

	switch key {
	case "server.port":
		value = config.APIServer.Port
	case "server.name":
		value = config.APIServer.Name
	case "server.debug":
		value = config.APIServer.Debug
	case "db.dialect":
		value = config.DB.Dialect
	case "db.dsn":
		value = config.DB.DSN
	case "quota.checkers":
		ids := make([]string, 0, len(config.Quota.Checkers))
		for _, c := range config.Quota.Checkers {
			ids = append(ids, c.ID)
		}

		value = strings.Join(ids, "\n")
	case "quota.query_timeout":
		value = config.Quota.QueryTimeout
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}

	fmt.Println(value)
}

func showHelp() {
	fmt.Println("QuotaHub provider quota monitor")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  quotahub                    Start the server (default)")
	fmt.Println("  quotahub config preview     Preview configuration")
	fmt.Println("  quotahub config validate    Validate configuration")
	fmt.Println("  quotahub config get <key>   Get a specific config value")
	fmt.Println("  quotahub version            Show version")
	fmt.Println("  quotahub help               Show this help message")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -f, --format FORMAT       Output format for config preview (yml, json)")
}

func showVersion() {
	fmt.Println(build.Version)
}
