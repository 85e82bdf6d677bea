package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CampaignStatus represents the status of a campaign
type CampaignStatus string

const (
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusScheduled, CampaignStatusActive, CampaignStatusPaused,
		CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Campaign represents an outreach campaign in the database
type Campaign struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	SalespersonID uint           `gorm:"not null;index:idx_campaigns_salesperson_id" json:"salesperson_id"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	Status        CampaignStatus `gorm:"type:varchar(20);not null;default:'scheduled';index:idx_campaigns_status" json:"status"`

	// Sending window: weekday codes (MON..SUN) plus a daily HH:MM range,
	// evaluated in the platform timezone. End is exclusive.
	AllowedWeekdays   pq.StringArray `gorm:"type:text[];not null" json:"allowed_weekdays"`
	WindowStartHour   int            `gorm:"not null;default:9" json:"window_start_hour"`
	WindowStartMinute int            `gorm:"not null;default:0" json:"window_start_minute"`
	WindowEndHour     int            `gorm:"not null;default:17" json:"window_end_hour"`
	WindowEndMinute   int            `gorm:"not null;default:0" json:"window_end_minute"`
	RespectHolidays   bool           `gorm:"not null;default:true" json:"respect_holidays"`
	TargetCountries   pq.StringArray `gorm:"type:text[]" json:"target_countries"`

	// Pacing and volume.
	DelayBetweenEmails int `gorm:"not null;default:300" json:"delay_between_emails"` // seconds
	MaxEmailsPerDay    int `gorm:"not null;default:50" json:"max_emails_per_day"`

	ScheduledAt           *time.Time `gorm:"index:idx_campaigns_scheduled_at" json:"scheduled_at,omitempty"`
	SendingStartedAt      *time.Time `json:"sending_started_at,omitempty"`
	SendingCompletedAt    *time.Time `json:"sending_completed_at,omitempty"`
	EstimatedEndDate      *time.Time `json:"estimated_end_date,omitempty"`
	RecoveryCooldownUntil *time.Time `json:"recovery_cooldown_until,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Salesperson *Salesperson `gorm:"foreignKey:SalespersonID;references:ID" json:"salesperson,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusScheduled
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// IsSending checks if the campaign is eligible for dispatch
func (c *Campaign) IsSending() bool {
	return c.Status == CampaignStatusActive
}

// IsTerminal checks if the campaign reached a final state
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusCancelled
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusActive ||
			newStatus == CampaignStatusCancelled
	case CampaignStatusActive:
		return newStatus == CampaignStatusPaused ||
			newStatus == CampaignStatusCompleted ||
			newStatus == CampaignStatusCancelled
	case CampaignStatusPaused:
		return newStatus == CampaignStatusActive ||
			newStatus == CampaignStatusCancelled
	default:
		return false
	}
}

// AllowsWeekday checks whether the given weekday code is in the allowed set
func (c *Campaign) AllowsWeekday(code string) bool {
	for _, d := range c.AllowedWeekdays {
		if d == code {
			return true
		}
	}
	return false
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID              *uint           `json:"id,omitempty"`
	UUID            *uuid.UUID      `json:"uuid,omitempty"`
	SalespersonID   *uint           `json:"salesperson_id,omitempty"`
	Status          *CampaignStatus `json:"status,omitempty"`
	Name            *string         `json:"name,omitempty"`
	ScheduledAfter  *time.Time      `json:"scheduled_after,omitempty"`
	ScheduledBefore *time.Time      `json:"scheduled_before,omitempty"`
	CreatedAfter    *time.Time      `json:"created_after,omitempty"`
	CreatedBefore   *time.Time      `json:"created_before,omitempty"`
}
