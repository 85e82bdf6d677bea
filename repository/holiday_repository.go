package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"gorm.io/gorm"
)

// HolidayRepositoryImpl implements HolidayRepository
type HolidayRepositoryImpl struct {
	*BaseRepository[models.Holiday, models.HolidayFilter]
}

func NewHolidayRepository(db *gorm.DB) HolidayRepository {
	return &HolidayRepositoryImpl{BaseRepository: NewBaseRepository[models.Holiday, models.HolidayFilter](db)}
}

func (r *HolidayRepositoryImpl) ExistsOnDate(ctx context.Context, date time.Time, countryCode string) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Holiday{}).
		Where("date = ? AND country_code = ?", date.Format("2006-01-02"), countryCode).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *HolidayRepositoryImpl) HasYear(ctx context.Context, countryCode string, year int) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Holiday{}).
		Where("country_code = ? AND year = ?", countryCode, year).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReplaceYear swaps the cached calendar of one country-year in a single
// transaction so lookups never observe a half-written year.
func (r *HolidayRepositoryImpl) ReplaceYear(ctx context.Context, countryCode string, year int, holidays []*models.Holiday) error {
	return WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		db := r.getDB(txCtx)
		if err := db.Where("country_code = ? AND year = ?", countryCode, year).
			Delete(&models.Holiday{}).Error; err != nil {
			return fmt.Errorf("failed to clear holiday year: %w", err)
		}
		if len(holidays) == 0 {
			return nil
		}
		if err := db.CreateInBatches(holidays, 100).Error; err != nil {
			return fmt.Errorf("failed to insert holidays: %w", err)
		}
		return nil
	})
}

func (r *HolidayRepositoryImpl) applyFilter(db *gorm.DB, f models.HolidayFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CountryCode != nil {
		db = db.Where("country_code = ?", *f.CountryCode)
	}
	if f.Year != nil {
		db = db.Where("year = ?", *f.Year)
	}
	if f.Date != nil {
		db = db.Where("date = ?", f.Date.Format("2006-01-02"))
	}
	return db
}

func (r *HolidayRepositoryImpl) ByFilter(ctx context.Context, filter models.HolidayFilter, orderBy string, limit, offset int) ([]*models.Holiday, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Holiday{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Holiday
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *HolidayRepositoryImpl) Count(ctx context.Context, filter models.HolidayFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Holiday{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *HolidayRepositoryImpl) Exists(ctx context.Context, filter models.HolidayFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
