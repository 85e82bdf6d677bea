package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// CampaignLeadStatus represents the per-campaign status of a lead
type CampaignLeadStatus string

const (
	CampaignLeadStatusPlanned    CampaignLeadStatus = "planned"
	CampaignLeadStatusQueued     CampaignLeadStatus = "queued"
	CampaignLeadStatusSending    CampaignLeadStatus = "sending"
	CampaignLeadStatusSent       CampaignLeadStatus = "sent"
	CampaignLeadStatusFailed     CampaignLeadStatus = "failed"
	CampaignLeadStatusInterested CampaignLeadStatus = "interested"
	CampaignLeadStatusBlocked    CampaignLeadStatus = "blocked"
)

// String returns the string representation of the status
func (s CampaignLeadStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignLeadStatus) Valid() bool {
	switch s {
	case CampaignLeadStatusPlanned, CampaignLeadStatusQueued,
		CampaignLeadStatusSending, CampaignLeadStatusSent,
		CampaignLeadStatusFailed, CampaignLeadStatusInterested,
		CampaignLeadStatusBlocked:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignLeadStatus
func (s *CampaignLeadStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignLeadStatus(v)
	case []byte:
		*s = CampaignLeadStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignLeadStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignLeadStatus
func (s CampaignLeadStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignLeadStatus: %s", s)
	}
	return string(s), nil
}

// CampaignLead represents a lead's membership in a campaign
type CampaignLead struct {
	ID         uint               `gorm:"primaryKey" json:"id"`
	CampaignID uint               `gorm:"not null;index:idx_campaign_leads_campaign_id;uniqueIndex:uk_campaign_leads_pair" json:"campaign_id"`
	LeadID     uint               `gorm:"not null;index:idx_campaign_leads_lead_id;uniqueIndex:uk_campaign_leads_pair" json:"lead_id"`
	Status     CampaignLeadStatus `gorm:"type:varchar(20);not null;default:'planned';index:idx_campaign_leads_status" json:"status"`
	Priority   int                `gorm:"not null;default:0" json:"priority"`
	SentAt     *time.Time         `json:"sent_at,omitempty"`
	CreatedAt  time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  *time.Time         `json:"updated_at,omitempty"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
	Lead     *Lead     `gorm:"foreignKey:LeadID;references:ID" json:"lead,omitempty"`
}

// TableName returns the table name for the model
func (CampaignLead) TableName() string {
	return "campaign_leads"
}

// BeforeCreate is called before creating a new record
func (c *CampaignLead) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = CampaignLeadStatusPlanned
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *CampaignLead) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// CampaignLeadFilter represents filter criteria for campaign leads
type CampaignLeadFilter struct {
	ID         *uint               `json:"id,omitempty"`
	CampaignID *uint               `json:"campaign_id,omitempty"`
	LeadID     *uint               `json:"lead_id,omitempty"`
	Status     *CampaignLeadStatus `json:"status,omitempty"`
	SentAfter  *time.Time          `json:"sent_after,omitempty"`
	SentBefore *time.Time          `json:"sent_before,omitempty"`
}
