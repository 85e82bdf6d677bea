package repository

import (
	"context"
	"errors"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"gorm.io/gorm"
)

// SalespersonRepositoryImpl implements SalespersonRepository
type SalespersonRepositoryImpl struct {
	*BaseRepository[models.Salesperson, models.SalespersonFilter]
}

func NewSalespersonRepository(db *gorm.DB) SalespersonRepository {
	return &SalespersonRepositoryImpl{BaseRepository: NewBaseRepository[models.Salesperson, models.SalespersonFilter](db)}
}

func (r *SalespersonRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Salesperson, error) {
	db := r.getDB(ctx)
	var row models.Salesperson
	if err := db.Where("email = ?", email).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *SalespersonRepositoryImpl) applyFilter(db *gorm.DB, f models.SalespersonFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *SalespersonRepositoryImpl) ByFilter(ctx context.Context, filter models.SalespersonFilter, orderBy string, limit, offset int) ([]*models.Salesperson, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Salesperson{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Salesperson
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SalespersonRepositoryImpl) Count(ctx context.Context, filter models.SalespersonFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Salesperson{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SalespersonRepositoryImpl) Exists(ctx context.Context, filter models.SalespersonFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
