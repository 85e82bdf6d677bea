// Package services provides external service integrations: the delivery
// relay that performs the actual SMTP transmission and the public holiday
// calendar client.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/app/dispatch"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/config"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
)

// RelayDeliverer sends messages through the HTTP delivery relay, which owns
// the SMTP credentials and the transport protocol.
type RelayDeliverer struct {
	config *config.DeliveryConfig
	client *http.Client
}

// relayRequest is the payload sent to the delivery relay
type relayRequest struct {
	MessageID    string `json:"message_id"`
	To           string `json:"to"`
	ToName       string `json:"to_name,omitempty"`
	FromEmail    string `json:"from_email"`
	FromName     string `json:"from_name,omitempty"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	CampaignID   uint   `json:"campaign_id"`
	LeadID       uint   `json:"lead_id"`
	MailboxID    uint   `json:"mailbox_id"`
}

// relayResponse is the relay's answer
type relayResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewRelayDeliverer creates a delivery client for the configured relay
func NewRelayDeliverer(cfg *config.DeliveryConfig) dispatch.Deliverer {
	return &RelayDeliverer{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Deliver hands one resolved message to the relay. Any non-accepted response
// is reported as a delivery failure; the engine does not interpret transport
// errors further.
func (d *RelayDeliverer) Deliver(ctx context.Context, r dispatch.DeliveryRequest) error {
	payload := relayRequest{
		MessageID:    r.MessageID.String(),
		To:           r.To,
		ToName:       r.ToName,
		FromEmail:    r.FromEmail,
		FromName:     r.FromName,
		SMTPHost:     r.SMTPHost,
		SMTPPort:     r.SMTPPort,
		SMTPUsername: r.SMTPUsername,
		CampaignID:   r.CampaignID,
		LeadID:       r.LeadID,
		MailboxID:    r.MailboxID,
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.config.RelayURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach delivery relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery relay returned status %d", resp.StatusCode)
	}

	var result relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode relay response: %w", err)
	}
	if result.Status != "accepted" && result.Status != "sent" {
		return fmt.Errorf("delivery rejected for %s: %s", r.To, result.Error)
	}
	return nil
}

// MockDeliverer implements dispatch.Deliverer for testing
type MockDeliverer struct {
	mu        sync.Mutex
	delivered []MockDelivery

	// FailNext makes every Deliver call fail with the given error until unset
	FailNext error
}

// MockDelivery records one mock transmission
type MockDelivery struct {
	Request dispatch.DeliveryRequest
	SentAt  time.Time
}

// NewMockDeliverer creates a new mock delivery client
func NewMockDeliverer() *MockDeliverer {
	return &MockDeliverer{
		delivered: make([]MockDelivery, 0),
	}
}

func (m *MockDeliverer) Deliver(ctx context.Context, r dispatch.DeliveryRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext != nil {
		return m.FailNext
	}
	m.delivered = append(m.delivered, MockDelivery{Request: r, SentAt: utils.UTCNow()})
	return nil
}

// Delivered returns a copy of all mock transmissions
func (m *MockDeliverer) Delivered() []MockDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockDelivery, len(m.delivered))
	copy(out, m.delivered)
	return out
}

// Clear resets the recorded transmissions
func (m *MockDeliverer) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = m.delivered[:0]
}
