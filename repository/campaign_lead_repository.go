package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// CampaignLeadRepositoryImpl implements CampaignLeadRepository
type CampaignLeadRepositoryImpl struct {
	*BaseRepository[models.CampaignLead, models.CampaignLeadFilter]
}

func NewCampaignLeadRepository(db *gorm.DB) CampaignLeadRepository {
	return &CampaignLeadRepositoryImpl{BaseRepository: NewBaseRepository[models.CampaignLead, models.CampaignLeadFilter](db)}
}

// ListQueueCandidates returns queued leads of the campaign that have no live
// queue entry and whose lead is not blocked, in sending order.
func (r *CampaignLeadRepositoryImpl) ListQueueCandidates(ctx context.Context, campaignID uint, limit int) ([]*models.CampaignLead, error) {
	db := r.getDB(ctx)
	var rows []*models.CampaignLead
	query := db.Model(&models.CampaignLead{}).
		Joins("JOIN leads ON leads.id = campaign_leads.lead_id").
		Where("campaign_leads.campaign_id = ? AND campaign_leads.status = ? AND leads.is_blocked = false",
			campaignID, models.CampaignLeadStatusQueued).
		Where("NOT EXISTS (SELECT 1 FROM email_queue_entries eq WHERE eq.campaign_lead_id = campaign_leads.id AND eq.status IN ?)",
			[]models.QueueEntryStatus{models.QueueEntryStatusPending, models.QueueEntryStatusSending}).
		Order("campaign_leads.priority DESC, campaign_leads.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list queue candidates: %w", err)
	}
	return rows, nil
}

func (r *CampaignLeadRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint, status models.CampaignLeadStatus) (int64, error) {
	filter := models.CampaignLeadFilter{CampaignID: &campaignID, Status: &status}
	return r.Count(ctx, filter)
}

// CountRemaining counts leads that still await a send (planned or queued).
func (r *CampaignLeadRepositoryImpl) CountRemaining(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.CampaignLead{}).
		Where("campaign_id = ? AND status IN ?", campaignID,
			[]models.CampaignLeadStatus{models.CampaignLeadStatusPlanned, models.CampaignLeadStatusQueued}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignLeadRepositoryImpl) UpdateStatus(ctx context.Context, campaignLeadID uint, status models.CampaignLeadStatus) error {
	db := r.getDB(ctx)
	return db.Model(&models.CampaignLead{}).
		Where("id = ?", campaignLeadID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *CampaignLeadRepositoryImpl) MarkSent(ctx context.Context, campaignLeadID uint, sentAt time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.CampaignLead{}).
		Where("id = ?", campaignLeadID).
		Updates(map[string]any{
			"status":     models.CampaignLeadStatusSent,
			"sent_at":    sentAt,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *CampaignLeadRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignLeadFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.LeadID != nil {
		db = db.Where("lead_id = ?", *f.LeadID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.SentAfter != nil {
		db = db.Where("sent_at >= ?", *f.SentAfter)
	}
	if f.SentBefore != nil {
		db = db.Where("sent_at < ?", *f.SentBefore)
	}
	return db
}

func (r *CampaignLeadRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignLeadFilter, orderBy string, limit, offset int) ([]*models.CampaignLead, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignLead{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CampaignLead
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignLeadRepositoryImpl) Count(ctx context.Context, filter models.CampaignLeadFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignLead{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignLeadRepositoryImpl) Exists(ctx context.Context, filter models.CampaignLeadFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
