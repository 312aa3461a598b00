package objects

import (
	"github.com/looplj/quotahub/internal/quota"
)

type CheckersResponse struct {
	Checkers []string `json:"checkers"`
}

type LatestQuotaResponse struct {
	CheckerID string               `json:"checkerId"`
	Windows   []quota.LatestWindow `json:"windows"`
}

type QuotaHistoryResponse struct {
	CheckerID  string           `json:"checkerId"`
	WindowType quota.WindowType `json:"windowType,omitempty"`
	Since      *int64           `json:"since,omitempty"`
	Snapshots  []quota.Snapshot `json:"snapshots"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Checkers int    `json:"checkers"`
}
