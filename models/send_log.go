package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SendLogStatus represents the outcome recorded in a send log row
type SendLogStatus string

const (
	SendLogStatusSent  SendLogStatus = "sent"
	SendLogStatusError SendLogStatus = "error"
)

// String returns the string representation of the status
func (s SendLogStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SendLogStatus) Valid() bool {
	switch s {
	case SendLogStatusSent, SendLogStatusError:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SendLogStatus
func (s *SendLogStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SendLogStatus(v)
	case []byte:
		*s = SendLogStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SendLogStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SendLogStatus
func (s SendLogStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SendLogStatus: %s", s)
	}
	return string(s), nil
}

// SendLog is the append-only record of delivery attempts. It is the source of
// truth for duplicate detection and the pacing anchor.
type SendLog struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	MessageID  uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_send_logs_message_id" json:"message_id"`
	CampaignID uint          `gorm:"not null;index:idx_send_logs_campaign_id" json:"campaign_id"`
	LeadID     uint          `gorm:"not null;index:idx_send_logs_lead_id" json:"lead_id"`
	MailboxID  uint          `gorm:"not null;index:idx_send_logs_mailbox_id" json:"mailbox_id"`
	Status     SendLogStatus `gorm:"type:varchar(10);not null;index:idx_send_logs_status" json:"status"`
	Error      *string       `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_send_logs_created_at" json:"created_at"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
	Lead     *Lead     `gorm:"foreignKey:LeadID;references:ID" json:"lead,omitempty"`
	Mailbox  *Mailbox  `gorm:"foreignKey:MailboxID;references:ID" json:"mailbox,omitempty"`
}

// TableName returns the table name for the model
func (SendLog) TableName() string {
	return "send_logs"
}

// BeforeCreate is called before creating a new record
func (l *SendLog) BeforeCreate(tx *gorm.DB) error {
	if l.MessageID == uuid.Nil {
		l.MessageID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// SendLogFilter represents filter criteria for send logs
type SendLogFilter struct {
	ID            *uint          `json:"id,omitempty"`
	MessageID     *uuid.UUID     `json:"message_id,omitempty"`
	CampaignID    *uint          `json:"campaign_id,omitempty"`
	LeadID        *uint          `json:"lead_id,omitempty"`
	MailboxID     *uint          `json:"mailbox_id,omitempty"`
	Status        *SendLogStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time     `json:"created_after,omitempty"`
	CreatedBefore *time.Time     `json:"created_before,omitempty"`
}
