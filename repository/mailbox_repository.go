package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// MailboxRepositoryImpl implements MailboxRepository
type MailboxRepositoryImpl struct {
	*BaseRepository[models.Mailbox, models.MailboxFilter]
}

func NewMailboxRepository(db *gorm.DB) MailboxRepository {
	return &MailboxRepositoryImpl{BaseRepository: NewBaseRepository[models.Mailbox, models.MailboxFilter](db)}
}

// ListActiveByOwner returns the owner's active mailboxes in selection order:
// priority first, then least recently used.
func (r *MailboxRepositoryImpl) ListActiveByOwner(ctx context.Context, salespersonID uint) ([]*models.Mailbox, error) {
	db := r.getDB(ctx)
	var rows []*models.Mailbox
	err := db.Where("salesperson_id = ? AND is_active = true", salespersonID).
		Order("priority ASC, last_used_at ASC NULLS FIRST, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list mailboxes for salesperson %d: %w", salespersonID, err)
	}
	return rows, nil
}

// TryReserveSlot consumes one daily slot if the mailbox is still under the
// given cap. The guarded increment makes concurrent reservations race-safe:
// losers see zero rows affected.
func (r *MailboxRepositoryImpl) TryReserveSlot(ctx context.Context, mailboxID uint, dailyCap int) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Mailbox{}).
		Where("id = ? AND current_daily_sent < ?", mailboxID, dailyCap).
		Updates(map[string]any{
			"current_daily_sent": gorm.Expr("current_daily_sent + 1"),
			"updated_at":         utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to reserve slot on mailbox %d: %w", mailboxID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *MailboxRepositoryImpl) MarkUsed(ctx context.Context, mailboxID uint, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Mailbox{}).
		Where("id = ?", mailboxID).
		Updates(map[string]any{
			"last_used_at": at,
			"total_sent":   gorm.Expr("total_sent + 1"),
			"updated_at":   utils.UTCNow(),
		}).Error
}

// ResetDailyCountersBefore zeroes daily counters for mailboxes whose last
// reset happened before the current day start.
func (r *MailboxRepositoryImpl) ResetDailyCountersBefore(ctx context.Context, dayStart time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Mailbox{}).
		Where("last_reset_date IS NULL OR last_reset_date < ?", dayStart).
		Updates(map[string]any{
			"current_daily_sent": 0,
			"last_reset_date":    dayStart,
			"updated_at":         utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset daily counters: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// AdvanceRampDays increments the ramp day for warming mailboxes once per day
// and promotes those past week 5 to active.
func (r *MailboxRepositoryImpl) AdvanceRampDays(ctx context.Context, dayStart time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Mailbox{}).
		Where("ramp_status = ? AND (last_reset_date IS NULL OR last_reset_date < ?)",
			models.RampStatusWarming, dayStart).
		Updates(map[string]any{
			"ramp_day":   gorm.Expr("ramp_day + 1"),
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to advance ramp days: %w", res.Error)
	}

	err := db.Model(&models.Mailbox{}).
		Where("ramp_status = ? AND ramp_day > ?", models.RampStatusWarming, 35).
		Updates(map[string]any{
			"ramp_status": models.RampStatusActive,
			"updated_at":  utils.UTCNow(),
		}).Error
	if err != nil {
		return res.RowsAffected, fmt.Errorf("failed to promote warmed mailboxes: %w", err)
	}
	return res.RowsAffected, nil
}

func (r *MailboxRepositoryImpl) applyFilter(db *gorm.DB, f models.MailboxFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.SalespersonID != nil {
		db = db.Where("salesperson_id = ?", *f.SalespersonID)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	if f.RampStatus != nil {
		db = db.Where("ramp_status = ?", *f.RampStatus)
	}
	return db
}

func (r *MailboxRepositoryImpl) ByFilter(ctx context.Context, filter models.MailboxFilter, orderBy string, limit, offset int) ([]*models.Mailbox, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Mailbox{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Mailbox
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MailboxRepositoryImpl) Count(ctx context.Context, filter models.MailboxFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Mailbox{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MailboxRepositoryImpl) Exists(ctx context.Context, filter models.MailboxFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
