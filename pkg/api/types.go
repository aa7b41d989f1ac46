package api

import "time"

// ManualResetRequest is the body accepted by the manual trigger endpoint
type ManualResetRequest struct {
	ResetType string `json:"resetType"`
}

// ManualResetResponse reports the outcome of a manual trigger
type ManualResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ScheduledResetResponse reports the outcome of a scheduled reset run
type ScheduledResetResponse struct {
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	UsersReset int    `json:"usersReset"`
	Batches    int    `json:"batches"`
	Error      string `json:"error,omitempty"`
}

// HealthCheckResponse is the health monitor's published summary
type HealthCheckResponse struct {
	Status         string     `json:"status"` // "healthy" or "warning"
	CheckedAt      time.Time  `json:"checkedAt"`
	LastDailyReset *time.Time `json:"lastDailyReset,omitempty"`
	NextDaily      time.Time  `json:"nextDaily"`
	NextWeekly     time.Time  `json:"nextWeekly"`
	NextMonthly    time.Time  `json:"nextMonthly"`
}

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error string `json:"error"`
}
