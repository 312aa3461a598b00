package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, GoVersion, info.GoVersion)

	out := info.String()
	assert.Contains(t, out, "quotahub "+info.Version)
	assert.NotContains(t, out, "commit:")
}
