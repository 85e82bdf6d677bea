package models

import (
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// Lead represents a recipient
type Lead struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"type:varchar(255);not null;uniqueIndex:uk_leads_email" json:"email"`
	FirstName *string    `gorm:"type:varchar(100)" json:"first_name,omitempty"`
	LastName  *string    `gorm:"type:varchar(100)" json:"last_name,omitempty"`
	Company   *string    `gorm:"type:varchar(255)" json:"company,omitempty"`
	Language  *string    `gorm:"type:varchar(10)" json:"language,omitempty"`
	IsBlocked bool       `gorm:"not null;default:false;index:idx_leads_is_blocked" json:"is_blocked"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Lead) TableName() string {
	return "leads"
}

// BeforeCreate is called before creating a new record
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (l *Lead) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	l.UpdatedAt = &now
	return nil
}

// LeadFilter represents filter criteria for leads
type LeadFilter struct {
	ID        *uint   `json:"id,omitempty"`
	Email     *string `json:"email,omitempty"`
	Company   *string `json:"company,omitempty"`
	IsBlocked *bool   `json:"is_blocked,omitempty"`
}
