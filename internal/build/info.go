package build

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	_ "embed"
)

//go:embed VERSION
var rawVersion []byte

// Set through -ldflags by the release build.
var (
	Version   = ""
	Commit    = ""
	BuildTime = ""
	GoVersion = runtime.Version()
	Platform  = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	StartTime = time.Now()
)

//nolint:gochecknoinits // fall back to the embedded VERSION for local builds.
func init() {
	if Version == "" {
		Version = strings.TrimSpace(string(rawVersion))
	}
}

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Uptime    string `json:"uptime"`
}

func GetBuildInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		Platform:  Platform,
		Uptime:    time.Since(StartTime).Round(time.Second).String(),
	}
}

func (i Info) String() string {
	lines := []string{"quotahub " + i.Version}
	if i.Commit != "" {
		lines = append(lines, "commit:     "+i.Commit)
	}

	if i.BuildTime != "" {
		lines = append(lines, "built:      "+i.BuildTime)
	}

	lines = append(lines,
		"go:         "+i.GoVersion,
		"platform:   "+i.Platform,
		"uptime:     "+i.Uptime,
	)

	return strings.Join(lines, "\n") + "\n"
}
