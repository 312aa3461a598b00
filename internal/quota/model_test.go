package quota

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckResult_JSONCarriesOnlyOneVariant(t *testing.T) {
	checkedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	grouped := CheckResult{
		Provider:  "antigravity",
		CheckerID: "ag",
		CheckedAt: checkedAt,
		Success:   true,
		Data: Groups{{
			GroupID:    "g1",
			GroupLabel: "gemini",
			Models:     []string{"gemini-2.5-pro", "gemini-2.5-flash"},
			Windows:    []Window{{WindowType: WindowTypeDaily, Unit: UnitPercentage, UtilizationPercent: 10, Status: StatusOK}},
		}},
	}

	b, err := json.Marshal(grouped)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Contains(t, raw, "groups")
	assert.NotContains(t, raw, "windows")
	assert.NotContains(t, raw, "error")

	var back CheckResult
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Nil(t, back.Windows())
	require.Len(t, back.Groups(), 1)
	assert.Equal(t, []string{"gemini-2.5-pro", "gemini-2.5-flash"}, back.Groups()[0].Models)
}

func TestCheckResult_FailureHasNoData(t *testing.T) {
	failed := CheckResult{Provider: "codex", CheckerID: "c1", Error: "status 401"}

	b, err := json.Marshal(failed)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "status 401", raw["error"])
	assert.NotContains(t, raw, "windows")
	assert.NotContains(t, raw, "groups")

	var back CheckResult
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Nil(t, back.Data)
}

func TestCheckResult_EmptyWindowsStayFlat(t *testing.T) {
	r := CheckResult{Success: true, Data: Windows{{WindowType: WindowTypeFiveHour, Limit: lo.ToPtr(100.0)}}}
	assert.Len(t, r.Windows(), 1)
	assert.Nil(t, r.Groups())
}

func TestCheckerConfig_Interval(t *testing.T) {
	assert.Equal(t, time.Minute, CheckerConfig{}.Interval())
	assert.Equal(t, time.Hour, CheckerConfig{IntervalMinutes: 60}.Interval())
}

func TestWindowType_IsValid(t *testing.T) {
	assert.True(t, WindowTypeFiveHour.IsValid())
	assert.False(t, WindowType("fortnightly").IsValid())
}
