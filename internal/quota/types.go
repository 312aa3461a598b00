package quota

// WindowType is the capacity dimension a window measures.
type WindowType string

const (
	WindowTypeSubscription WindowType = "subscription"
	WindowTypeHourly       WindowType = "hourly"
	WindowTypeFiveHour     WindowType = "five_hour"
	WindowTypeDaily        WindowType = "daily"
	WindowTypeWeekly       WindowType = "weekly"
	WindowTypeMonthly      WindowType = "monthly"
	WindowTypeCustom       WindowType = "custom"
)

func (t WindowType) IsValid() bool {
	switch t {
	case WindowTypeSubscription, WindowTypeHourly, WindowTypeFiveHour, WindowTypeDaily,
		WindowTypeWeekly, WindowTypeMonthly, WindowTypeCustom:
		return true
	default:
		return false
	}
}

type Unit string

const (
	UnitDollars    Unit = "dollars"
	UnitRequests   Unit = "requests"
	UnitTokens     Unit = "tokens"
	UnitPercentage Unit = "percentage"
)

// Status is derived from the utilization percent of a window.
type Status string

const (
	StatusOK        Status = "ok"
	StatusWarning   Status = "warning"
	StatusCritical  Status = "critical"
	StatusExhausted Status = "exhausted"
)
