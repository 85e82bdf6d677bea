package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// QueueEntryStatus represents the status of a queue entry
type QueueEntryStatus string

const (
	QueueEntryStatusPending   QueueEntryStatus = "pending"
	QueueEntryStatusSending   QueueEntryStatus = "sending"
	QueueEntryStatusSent      QueueEntryStatus = "sent"
	QueueEntryStatusFailed    QueueEntryStatus = "failed"
	QueueEntryStatusCancelled QueueEntryStatus = "cancelled"
)

// String returns the string representation of the status
func (s QueueEntryStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s QueueEntryStatus) Valid() bool {
	switch s {
	case QueueEntryStatusPending, QueueEntryStatusSending,
		QueueEntryStatusSent, QueueEntryStatusFailed, QueueEntryStatusCancelled:
		return true
	default:
		return false
	}
}

// IsSettled checks if the entry reached a final state
func (s QueueEntryStatus) IsSettled() bool {
	return s == QueueEntryStatusSent || s == QueueEntryStatusFailed ||
		s == QueueEntryStatusCancelled
}

// Scan implements the sql.Scanner interface for QueueEntryStatus
func (s *QueueEntryStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = QueueEntryStatus(v)
	case []byte:
		*s = QueueEntryStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into QueueEntryStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for QueueEntryStatus
func (s QueueEntryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid QueueEntryStatus: %s", s)
	}
	return string(s), nil
}

// EmailQueueEntry represents one planned send in a campaign's dispatch queue.
// At most one pending or sending entry exists per campaign lead. MailboxID is
// set while a reservation holds the entry, so concurrent dispatchers of the
// same campaign never pick the same identity.
type EmailQueueEntry struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	CampaignID     uint             `gorm:"not null;index:idx_email_queue_campaign_id" json:"campaign_id"`
	CampaignLeadID uint             `gorm:"not null;index:idx_email_queue_campaign_lead_id" json:"campaign_lead_id"`
	Status         QueueEntryStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_email_queue_status" json:"status"`
	ScheduledAt    time.Time        `gorm:"not null;index:idx_email_queue_scheduled_at" json:"scheduled_at"`
	MailboxID      *uint            `gorm:"index:idx_email_queue_mailbox_id" json:"mailbox_id,omitempty"`
	SentAt         *time.Time       `json:"sent_at,omitempty"`
	Error          *string          `gorm:"type:text" json:"error,omitempty"`
	Attempts       int              `gorm:"not null;default:0" json:"attempts"`
	LastAttemptAt  *time.Time       `json:"last_attempt_at,omitempty"`
	CreatedAt      time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      *time.Time       `gorm:"index:idx_email_queue_updated_at" json:"updated_at,omitempty"`

	// Relations
	Campaign     *Campaign     `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
	CampaignLead *CampaignLead `gorm:"foreignKey:CampaignLeadID;references:ID" json:"campaign_lead,omitempty"`
	Mailbox      *Mailbox      `gorm:"foreignKey:MailboxID;references:ID" json:"mailbox,omitempty"`
}

// TableName returns the table name for the model
func (EmailQueueEntry) TableName() string {
	return "email_queue_entries"
}

// BeforeCreate is called before creating a new record
func (e *EmailQueueEntry) BeforeCreate(tx *gorm.DB) error {
	if e.Status == "" {
		e.Status = QueueEntryStatusPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (e *EmailQueueEntry) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	e.UpdatedAt = &now
	return nil
}

// EmailQueueEntryFilter represents filter criteria for queue entries
type EmailQueueEntryFilter struct {
	ID              *uint             `json:"id,omitempty"`
	CampaignID      *uint             `json:"campaign_id,omitempty"`
	CampaignLeadID  *uint             `json:"campaign_lead_id,omitempty"`
	Status          *QueueEntryStatus `json:"status,omitempty"`
	MailboxID       *uint             `json:"mailbox_id,omitempty"`
	ScheduledAfter  *time.Time        `json:"scheduled_after,omitempty"`
	ScheduledBefore *time.Time        `json:"scheduled_before,omitempty"`
	UpdatedBefore   *time.Time        `json:"updated_before,omitempty"`
}
