package quota

import (
	"encoding/json"
	"time"
)

// Window is one measured capacity dimension at one point in time.
type Window struct {
	WindowType         WindowType `json:"windowType"`
	WindowLabel        string     `json:"windowLabel,omitempty"`
	Description        string     `json:"description,omitempty"`
	Limit              *float64   `json:"limit,omitempty"`
	Used               *float64   `json:"used,omitempty"`
	Remaining          *float64   `json:"remaining,omitempty"`
	UtilizationPercent float64    `json:"utilizationPercent"`
	Unit               Unit       `json:"unit"`
	ResetsAt           *time.Time `json:"resetsAt,omitempty"`
	ResetInSeconds     *int64     `json:"resetInSeconds,omitempty"`
	Status             Status     `json:"status,omitempty"`
}

// Group is a set of windows sharing one capacity pool across several models.
type Group struct {
	GroupID    string   `json:"groupId"`
	GroupLabel string   `json:"groupLabel"`
	Models     []string `json:"models"`
	Windows    []Window `json:"windows"`
}

// Payload is the data carried by a successful check: either Windows or Groups.
type Payload interface {
	isPayload()
}

type Windows []Window

func (Windows) isPayload() {}

type Groups []Group

func (Groups) isPayload() {}

// CheckResult is the outcome of one poll of one checker.
type CheckResult struct {
	Provider       string
	CheckerID      string
	CheckedAt      time.Time
	Success        bool
	Error          string
	Data           Payload
	RawResponse    json.RawMessage
	OAuthAccountID string
	OAuthProvider  string
}

// Windows returns the flat windows of the result, or nil when it carries groups or nothing.
func (r *CheckResult) Windows() []Window {
	if w, ok := r.Data.(Windows); ok {
		return w
	}

	return nil
}

// Groups returns the grouped windows of the result, or nil when it carries flat windows or nothing.
func (r *CheckResult) Groups() []Group {
	if g, ok := r.Data.(Groups); ok {
		return g
	}

	return nil
}

type checkResultJSON struct {
	Provider       string          `json:"provider"`
	CheckerID      string          `json:"checkerId"`
	CheckedAt      time.Time       `json:"checkedAt"`
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
	Windows        []Window        `json:"windows,omitempty"`
	Groups         []Group         `json:"groups,omitempty"`
	RawResponse    json.RawMessage `json:"rawResponse,omitempty"`
	OAuthAccountID string          `json:"oauthAccountId,omitempty"`
	OAuthProvider  string          `json:"oauthProvider,omitempty"`
}

func (r CheckResult) MarshalJSON() ([]byte, error) {
	out := checkResultJSON{
		Provider:       r.Provider,
		CheckerID:      r.CheckerID,
		CheckedAt:      r.CheckedAt,
		Success:        r.Success,
		Error:          r.Error,
		RawResponse:    r.RawResponse,
		OAuthAccountID: r.OAuthAccountID,
		OAuthProvider:  r.OAuthProvider,
	}

	switch data := r.Data.(type) {
	case Windows:
		out.Windows = data
	case Groups:
		out.Groups = data
	}

	return json.Marshal(out)
}

func (r *CheckResult) UnmarshalJSON(b []byte) error {
	var in checkResultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	*r = CheckResult{
		Provider:       in.Provider,
		CheckerID:      in.CheckerID,
		CheckedAt:      in.CheckedAt,
		Success:        in.Success,
		Error:          in.Error,
		RawResponse:    in.RawResponse,
		OAuthAccountID: in.OAuthAccountID,
		OAuthProvider:  in.OAuthProvider,
	}

	switch {
	case len(in.Groups) > 0:
		r.Data = Groups(in.Groups)
	case in.Windows != nil:
		r.Data = Windows(in.Windows)
	}

	return nil
}

// CheckerConfig is the static identity and behavior of one checker instance.
type CheckerConfig struct {
	ID              string         `conf:"id" yaml:"id" json:"id"`
	Provider        string         `conf:"provider" yaml:"provider" json:"provider"`
	Type            string         `conf:"type" yaml:"type" json:"type"`
	Enabled         bool           `conf:"enabled" yaml:"enabled" json:"enabled"`
	IntervalMinutes int            `conf:"interval_minutes" yaml:"interval_minutes" json:"intervalMinutes"`
	Options         map[string]any `conf:"options" yaml:"options" json:"options,omitempty"`
}

// Interval returns the poll cadence, never shorter than one minute.
func (c CheckerConfig) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return time.Minute
	}

	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Snapshot is the persisted, flattened form of one window from one successful poll.
// All timestamps are epoch milliseconds.
type Snapshot struct {
	ID                 int64      `json:"id"`
	Provider           string     `json:"provider"`
	CheckerID          string     `json:"checkerId"`
	GroupID            *string    `json:"groupId"`
	WindowType         WindowType `json:"windowType"`
	WindowLabel        string     `json:"windowLabel,omitempty"`
	Description        string     `json:"description,omitempty"`
	CheckedAt          int64      `json:"checkedAt"`
	Limit              *float64   `json:"limit"`
	Used               *float64   `json:"used"`
	Remaining          *float64   `json:"remaining"`
	UtilizationPercent float64    `json:"utilizationPercent"`
	Unit               Unit       `json:"unit"`
	ResetsAt           *int64     `json:"resetsAt"`
	Status             Status     `json:"status,omitempty"`
	Success            bool       `json:"success"`
	ErrorMessage       *string    `json:"errorMessage"`
	CreatedAt          int64      `json:"createdAt"`
}

// Forecast projects a window's usage at its reset time.
type Forecast struct {
	ProjectedUsedAtReset        float64    `json:"projectedUsedAtReset"`
	ProjectedUtilizationPercent float64    `json:"projectedUtilizationPercent"`
	WillExceed                  bool       `json:"willExceed"`
	ExceedanceTimestamp         *time.Time `json:"exceedanceTimestamp,omitempty"`
	ProjectionBasedOnMinutes    int        `json:"projectionBasedOnMinutes"`
	RatePerHour                 float64    `json:"ratePerHour"`
}

// LatestWindow is the newest snapshot of one window type, enriched for display.
type LatestWindow struct {
	Snapshot

	ResetInSeconds *int64    `json:"resetInSeconds"`
	Estimation     *Forecast `json:"estimation"`
}
