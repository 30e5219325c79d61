package dto

import (
	"encoding/json"
	"time"
)

// IngestRunResponse 导入任务记录
type IngestRunResponse struct {
	RunID      string          `json:"run_id"`
	Trigger    string          `json:"trigger"`
	Status     string          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Report     json.RawMessage `json:"report,omitempty"`
}
