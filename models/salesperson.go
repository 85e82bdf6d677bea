package models

import (
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// Salesperson represents the owner of an identity pool
type Salesperson struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	FirstName     string     `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName      string     `gorm:"type:varchar(100);not null" json:"last_name"`
	Email         string     `gorm:"type:varchar(255);not null;uniqueIndex:uk_salespeople_email" json:"email"`
	IsActive      bool       `gorm:"not null;default:true" json:"is_active"`
	MainMailboxID *uint      `json:"main_mailbox_id,omitempty"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`

	// Relations
	Mailboxes []Mailbox `gorm:"foreignKey:SalespersonID" json:"mailboxes,omitempty"`
}

// TableName returns the table name for the model
func (Salesperson) TableName() string {
	return "salespeople"
}

// BeforeCreate is called before creating a new record
func (s *Salesperson) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (s *Salesperson) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	s.UpdatedAt = &now
	return nil
}

// SalespersonFilter represents filter criteria for salespeople
type SalespersonFilter struct {
	ID       *uint   `json:"id,omitempty"`
	Email    *string `json:"email,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}
