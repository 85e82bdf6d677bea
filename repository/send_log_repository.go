package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"gorm.io/gorm"
)

// SendLogRepositoryImpl implements SendLogRepository
type SendLogRepositoryImpl struct {
	*BaseRepository[models.SendLog, models.SendLogFilter]
}

func NewSendLogRepository(db *gorm.DB) SendLogRepository {
	return &SendLogRepositoryImpl{BaseRepository: NewBaseRepository[models.SendLog, models.SendLogFilter](db)}
}

// LastSentAt returns the timestamp of the campaign's most recent successful
// send, the anchor for pacing.
func (r *SendLogRepositoryImpl) LastSentAt(ctx context.Context, campaignID uint) (*time.Time, error) {
	db := r.getDB(ctx)
	var row models.SendLog
	err := db.Where("campaign_id = ? AND status = ?", campaignID, models.SendLogStatusSent).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row.CreatedAt, nil
}

func (r *SendLogRepositoryImpl) CountSentSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.SendLog{}).
		Where("campaign_id = ? AND status = ? AND created_at >= ?",
			campaignID, models.SendLogStatusSent, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// HasSent checks whether the lead already received a successful send from
// this campaign. This is the duplicate guard consulted before every transmit.
func (r *SendLogRepositoryImpl) HasSent(ctx context.Context, campaignID, leadID uint) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.SendLog{}).
		Where("campaign_id = ? AND lead_id = ? AND status = ?",
			campaignID, leadID, models.SendLogStatusSent).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SendLogRepositoryImpl) applyFilter(db *gorm.DB, f models.SendLogFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.MessageID != nil {
		db = db.Where("message_id = ?", *f.MessageID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.LeadID != nil {
		db = db.Where("lead_id = ?", *f.LeadID)
	}
	if f.MailboxID != nil {
		db = db.Where("mailbox_id = ?", *f.MailboxID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *SendLogRepositoryImpl) ByFilter(ctx context.Context, filter models.SendLogFilter, orderBy string, limit, offset int) ([]*models.SendLog, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SendLog{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.SendLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SendLogRepositoryImpl) Count(ctx context.Context, filter models.SendLogFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SendLog{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SendLogRepositoryImpl) Exists(ctx context.Context, filter models.SendLogFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
