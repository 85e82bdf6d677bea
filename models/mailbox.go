package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// RampStatus represents a mailbox's warm-up phase
type RampStatus string

const (
	RampStatusCold    RampStatus = "cold"
	RampStatusWarming RampStatus = "warming"
	RampStatusActive  RampStatus = "active"
)

// String returns the string representation of the status
func (s RampStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RampStatus) Valid() bool {
	switch s {
	case RampStatusCold, RampStatusWarming, RampStatusActive:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RampStatus
func (s *RampStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RampStatus(v)
	case []byte:
		*s = RampStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RampStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RampStatus
func (s RampStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RampStatus: %s", s)
	}
	return string(s), nil
}

// Mailbox represents a sending identity. SMTP credentials are opaque to the
// dispatch engine and consumed only by the delivery relay.
type Mailbox struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	SalespersonID uint    `gorm:"not null;index:idx_mailboxes_salesperson_id" json:"salesperson_id"`
	Email         string  `gorm:"type:varchar(255);not null;uniqueIndex:uk_mailboxes_email" json:"email"`
	DisplayName   *string `gorm:"type:varchar(255)" json:"display_name,omitempty"`
	SMTPHost      string  `gorm:"type:varchar(255);not null" json:"smtp_host"`
	SMTPPort      int     `gorm:"not null;default:587" json:"smtp_port"`
	SMTPUsername  string  `gorm:"type:varchar(255);not null" json:"smtp_username"`

	Priority int  `gorm:"not null;default:100" json:"priority"`
	IsActive bool `gorm:"not null;default:true;index:idx_mailboxes_is_active" json:"is_active"`

	DailyLimit       int        `gorm:"not null;default:50" json:"daily_limit"`
	CurrentDailySent int        `gorm:"not null;default:0" json:"current_daily_sent"`
	TotalSent        int        `gorm:"not null;default:0" json:"total_sent"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	LastResetDate    *time.Time `json:"last_reset_date,omitempty"`

	RampStatus     RampStatus `gorm:"type:varchar(10);not null;default:'cold'" json:"ramp_status"`
	RampDay        int        `gorm:"not null;default:0" json:"ramp_day"`
	RampDailyLimit int        `gorm:"not null;default:0" json:"ramp_daily_limit"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Salesperson *Salesperson `gorm:"foreignKey:SalespersonID;references:ID" json:"salesperson,omitempty"`
}

// TableName returns the table name for the model
func (Mailbox) TableName() string {
	return "mailboxes"
}

// BeforeCreate is called before creating a new record
func (m *Mailbox) BeforeCreate(tx *gorm.DB) error {
	if m.RampStatus == "" {
		m.RampStatus = RampStatusCold
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (m *Mailbox) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	m.UpdatedAt = &now
	return nil
}

// RampWeek returns the 1-based warm-up week, capped at 5
func (m *Mailbox) RampWeek() int {
	week := (m.RampDay + 6) / 7
	if week < 1 {
		week = 1
	}
	if week > 5 {
		week = 5
	}
	return week
}

// MailboxFilter represents filter criteria for mailboxes
type MailboxFilter struct {
	ID            *uint       `json:"id,omitempty"`
	SalespersonID *uint       `json:"salesperson_id,omitempty"`
	Email         *string     `json:"email,omitempty"`
	IsActive      *bool       `json:"is_active,omitempty"`
	RampStatus    *RampStatus `json:"ramp_status,omitempty"`
}
