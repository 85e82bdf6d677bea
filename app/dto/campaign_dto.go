// Package dto contains request and response structures for the admin API
package dto

// CampaignActionRequest identifies the campaign an admin action targets
type CampaignActionRequest struct {
	UUID string `json:"uuid" validate:"required,uuid4"`
}

// CampaignActionResponse reports the outcome of a lifecycle action
type CampaignActionResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

// ReinitializeQueueResponse reports a forced queue rebuild
type ReinitializeQueueResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Cancelled int64  `json:"cancelled_entries"`
	Queued    int    `json:"queued_entries"`
}

// SendingInfoResponse summarizes campaign sending progress
type SendingInfoResponse struct {
	UUID               string  `json:"uuid"`
	Status             string  `json:"status"`
	TotalLeads         int64   `json:"total_leads"`
	Planned            int64   `json:"planned"`
	Queued             int64   `json:"queued"`
	Sending            int64   `json:"sending"`
	Sent               int64   `json:"sent"`
	Failed             int64   `json:"failed"`
	SentToday          int64   `json:"sent_today"`
	LiveQueueEntries   int64   `json:"live_queue_entries"`
	SendingStartedAt   *string `json:"sending_started_at,omitempty"`
	SendingCompletedAt *string `json:"sending_completed_at,omitempty"`
	EstimatedEndDate   *string `json:"estimated_end_date,omitempty"`
}

// NextSendTimeResponse reports when the campaign will next transmit
type NextSendTimeResponse struct {
	UUID         string  `json:"uuid"`
	NextSendAt   *string `json:"next_send_at,omitempty"`
	WithinWindow bool    `json:"within_window"`
	Reason       string  `json:"reason,omitempty"`
}

// APIResponse is the generic API envelope
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    any         `json:"data,omitempty"`
	Error   ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries the machine-readable error code
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
