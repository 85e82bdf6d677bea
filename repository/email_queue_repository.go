package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// EmailQueueRepositoryImpl implements EmailQueueRepository
type EmailQueueRepositoryImpl struct {
	*BaseRepository[models.EmailQueueEntry, models.EmailQueueEntryFilter]
}

func NewEmailQueueRepository(db *gorm.DB) EmailQueueRepository {
	return &EmailQueueRepositoryImpl{BaseRepository: NewBaseRepository[models.EmailQueueEntry, models.EmailQueueEntryFilter](db)}
}

// NextDue returns the oldest pending entry of the campaign whose scheduled
// time is in [notBefore, now]. Entries older than notBefore are left for the
// sweeper to re-plan.
func (r *EmailQueueRepositoryImpl) NextDue(ctx context.Context, campaignID uint, notBefore, now time.Time) (*models.EmailQueueEntry, error) {
	db := r.getDB(ctx)
	var row models.EmailQueueEntry
	err := db.Where("campaign_id = ? AND status = ? AND scheduled_at >= ? AND scheduled_at <= ?",
		campaignID, models.QueueEntryStatusPending, notBefore, now).
		Order("scheduled_at ASC, id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find next due entry: %w", err)
	}
	return &row, nil
}

// ClaimPending atomically moves a pending entry to sending. Returns false
// when another dispatcher claimed the entry first.
func (r *EmailQueueRepositoryImpl) ClaimPending(ctx context.Context, entryID uint) (bool, error) {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	res := db.Model(&models.EmailQueueEntry{}).
		Where("id = ? AND status = ?", entryID, models.QueueEntryStatusPending).
		Updates(map[string]any{
			"status":          models.QueueEntryStatusSending,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_attempt_at": now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim entry %d: %w", entryID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// AssignMailbox records which identity the in-flight entry reserved
func (r *EmailQueueRepositoryImpl) AssignMailbox(ctx context.Context, entryID, mailboxID uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.EmailQueueEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"mailbox_id": mailboxID,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *EmailQueueRepositoryImpl) MarkSent(ctx context.Context, entryID uint, sentAt time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.EmailQueueEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"status":     models.QueueEntryStatusSent,
			"sent_at":    sentAt,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *EmailQueueRepositoryImpl) MarkFailed(ctx context.Context, entryID uint, sendError string) error {
	db := r.getDB(ctx)
	return db.Model(&models.EmailQueueEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"status":     models.QueueEntryStatusFailed,
			"error":      sendError,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *EmailQueueRepositoryImpl) ReturnToPending(ctx context.Context, entryID uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.EmailQueueEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"status":     models.QueueEntryStatusPending,
			"mailbox_id": nil,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *EmailQueueRepositoryImpl) Cancel(ctx context.Context, entryID uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.EmailQueueEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"status":     models.QueueEntryStatusCancelled,
			"mailbox_id": nil,
			"updated_at": utils.UTCNow(),
		}).Error
}

// CancelLive cancels all pending and sending entries of a campaign
func (r *EmailQueueRepositoryImpl) CancelLive(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.EmailQueueEntry{}).
		Where("campaign_id = ? AND status IN ?", campaignID,
			[]models.QueueEntryStatus{models.QueueEntryStatusPending, models.QueueEntryStatusSending}).
		Updates(map[string]any{
			"status":     models.QueueEntryStatusCancelled,
			"mailbox_id": nil,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cancel live entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeferTo re-plans the entry for a later slot and releases its reservation
func (r *EmailQueueRepositoryImpl) DeferTo(ctx context.Context, entryID uint, scheduledAt time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.EmailQueueEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"status":       models.QueueEntryStatusPending,
			"scheduled_at": scheduledAt,
			"mailbox_id":   nil,
			"updated_at":   utils.UTCNow(),
		}).Error
}

func (r *EmailQueueRepositoryImpl) CountLive(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.EmailQueueEntry{}).
		Where("campaign_id = ? AND status IN ?", campaignID,
			[]models.QueueEntryStatus{models.QueueEntryStatusPending, models.QueueEntryStatusSending}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// LastScheduledAt returns the latest scheduled time among live entries of the
// campaign, used to chain newly planned sends after the existing tail.
func (r *EmailQueueRepositoryImpl) LastScheduledAt(ctx context.Context, campaignID uint) (*time.Time, error) {
	db := r.getDB(ctx)
	var row models.EmailQueueEntry
	err := db.Where("campaign_id = ? AND status IN ?", campaignID,
		[]models.QueueEntryStatus{models.QueueEntryStatusPending, models.QueueEntryStatusSending}).
		Order("scheduled_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row.ScheduledAt, nil
}

// ReservedMailboxIDs lists identities held by in-flight sends of the campaign
func (r *EmailQueueRepositoryImpl) ReservedMailboxIDs(ctx context.Context, campaignID uint) ([]uint, error) {
	db := r.getDB(ctx)
	var ids []uint
	err := db.Model(&models.EmailQueueEntry{}).
		Where("campaign_id = ? AND status = ? AND mailbox_id IS NOT NULL",
			campaignID, models.QueueEntryStatusSending).
		Pluck("mailbox_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *EmailQueueRepositoryImpl) HasStuckSending(ctx context.Context, campaignID uint, cutoff time.Time) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.EmailQueueEntry{}).
		Where("campaign_id = ? AND status = ? AND updated_at < ?",
			campaignID, models.QueueEntryStatusSending, cutoff).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReleaseStuckSending returns sending entries idle since before cutoff to
// pending so they can be claimed again.
func (r *EmailQueueRepositoryImpl) ReleaseStuckSending(ctx context.Context, cutoff time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.EmailQueueEntry{}).
		Where("status = ? AND updated_at < ?", models.QueueEntryStatusSending, cutoff).
		Updates(map[string]any{
			"status":     models.QueueEntryStatusPending,
			"mailbox_id": nil,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to release stuck entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteSettledBefore removes sent, failed and cancelled entries last touched
// before cutoff.
func (r *EmailQueueRepositoryImpl) DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("status IN ? AND updated_at < ?",
		[]models.QueueEntryStatus{models.QueueEntryStatusSent, models.QueueEntryStatusFailed, models.QueueEntryStatusCancelled},
		cutoff).
		Delete(&models.EmailQueueEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete settled entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *EmailQueueRepositoryImpl) applyFilter(db *gorm.DB, f models.EmailQueueEntryFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.CampaignLeadID != nil {
		db = db.Where("campaign_lead_id = ?", *f.CampaignLeadID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.MailboxID != nil {
		db = db.Where("mailbox_id = ?", *f.MailboxID)
	}
	if f.ScheduledAfter != nil {
		db = db.Where("scheduled_at >= ?", *f.ScheduledAfter)
	}
	if f.ScheduledBefore != nil {
		db = db.Where("scheduled_at < ?", *f.ScheduledBefore)
	}
	if f.UpdatedBefore != nil {
		db = db.Where("updated_at < ?", *f.UpdatedBefore)
	}
	return db
}

func (r *EmailQueueRepositoryImpl) ByFilter(ctx context.Context, filter models.EmailQueueEntryFilter, orderBy string, limit, offset int) ([]*models.EmailQueueEntry, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.EmailQueueEntry{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.EmailQueueEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EmailQueueRepositoryImpl) Count(ctx context.Context, filter models.EmailQueueEntryFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.EmailQueueEntry{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EmailQueueRepositoryImpl) Exists(ctx context.Context, filter models.EmailQueueEntryFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
