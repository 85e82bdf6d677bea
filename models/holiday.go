package models

import (
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// Holiday caches one public holiday fetched from the calendar API
type Holiday struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Date        time.Time `gorm:"type:date;not null;uniqueIndex:uk_holidays_date_country" json:"date"`
	CountryCode string    `gorm:"type:varchar(2);not null;uniqueIndex:uk_holidays_date_country;index:idx_holidays_country_code" json:"country_code"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Year        int       `gorm:"not null;index:idx_holidays_year" json:"year"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (Holiday) TableName() string {
	return "holidays"
}

// BeforeCreate is called before creating a new record
func (h *Holiday) BeforeCreate(tx *gorm.DB) error {
	if h.Year == 0 {
		h.Year = h.Date.Year()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = utils.UTCNow()
	}
	return nil
}

// HolidayFilter represents filter criteria for holidays
type HolidayFilter struct {
	ID          *uint      `json:"id,omitempty"`
	CountryCode *string    `json:"country_code,omitempty"`
	Year        *int       `json:"year,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}
