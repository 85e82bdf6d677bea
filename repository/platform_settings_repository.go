package repository

import (
	"context"
	"errors"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"gorm.io/gorm"
)

// PlatformSettingsRepositoryImpl implements PlatformSettingsRepository
type PlatformSettingsRepositoryImpl struct {
	*BaseRepository[models.PlatformSettings, models.PlatformSettingsFilter]
}

func NewPlatformSettingsRepository(db *gorm.DB) PlatformSettingsRepository {
	return &PlatformSettingsRepositoryImpl{BaseRepository: NewBaseRepository[models.PlatformSettings, models.PlatformSettingsFilter](db)}
}

// Get returns the settings row, or nil when none exists yet. Callers fall
// back to DefaultRampTiers in that case.
func (r *PlatformSettingsRepositoryImpl) Get(ctx context.Context) (*models.PlatformSettings, error) {
	db := r.getDB(ctx)
	var row models.PlatformSettings
	if err := db.Order("id ASC").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *PlatformSettingsRepositoryImpl) applyFilter(db *gorm.DB, f models.PlatformSettingsFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	return db
}

func (r *PlatformSettingsRepositoryImpl) ByFilter(ctx context.Context, filter models.PlatformSettingsFilter, orderBy string, limit, offset int) ([]*models.PlatformSettings, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PlatformSettings{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.PlatformSettings
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PlatformSettingsRepositoryImpl) Count(ctx context.Context, filter models.PlatformSettingsFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PlatformSettings{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PlatformSettingsRepositoryImpl) Exists(ctx context.Context, filter models.PlatformSettingsFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
