package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// RampTier holds the per-week warm-up limits. WarmupLimit caps warm-up
// traffic, CampaignLimit caps campaign traffic for identities in that week.
type RampTier struct {
	WarmupLimit   int `json:"warmup_limit"`
	CampaignLimit int `json:"campaign_limit"`
}

// RampTiers maps the 1-based warm-up week to its tier limits
type RampTiers map[int]RampTier

// DefaultRampTiers returns the limits used when no settings row exists
func DefaultRampTiers() RampTiers {
	tiers := make(RampTiers, 5)
	for week := 1; week <= 5; week++ {
		tiers[week] = RampTier{WarmupLimit: 15, CampaignLimit: 10}
	}
	return tiers
}

// Tier returns the tier for the given week, clamped to [1,5]
func (t RampTiers) Tier(week int) RampTier {
	if week < 1 {
		week = 1
	}
	if week > 5 {
		week = 5
	}
	if tier, ok := t[week]; ok {
		return tier
	}
	return RampTier{WarmupLimit: 15, CampaignLimit: 10}
}

// Value implements the driver.Valuer interface for RampTiers
func (t RampTiers) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for RampTiers
func (t *RampTiers) Scan(value any) error {
	if value == nil {
		*t = RampTiers{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RampTiers", value)
	}

	return json.Unmarshal(bytes, t)
}

// PlatformSettings holds platform-wide dispatch tuning
type PlatformSettings struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	RampTiers        RampTiers  `gorm:"type:jsonb;not null" json:"ramp_tiers"`
	ColdMailboxLimit int        `gorm:"not null;default:10" json:"cold_mailbox_limit"`
	CreatedAt        time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (PlatformSettings) TableName() string {
	return "platform_settings"
}

// BeforeCreate is called before creating a new record
func (p *PlatformSettings) BeforeCreate(tx *gorm.DB) error {
	if p.RampTiers == nil {
		p.RampTiers = DefaultRampTiers()
	}
	if p.ColdMailboxLimit == 0 {
		p.ColdMailboxLimit = 10
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (p *PlatformSettings) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	p.UpdatedAt = &now
	return nil
}

// PlatformSettingsFilter represents filter criteria for platform settings
type PlatformSettingsFilter struct {
	ID *uint `json:"id,omitempty"`
}
