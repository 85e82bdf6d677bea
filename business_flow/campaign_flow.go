package businessflow

import (
	"context"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/app/dispatch"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/app/dto"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignFlow handles the campaign lifecycle and progress reporting
type CampaignFlow interface {
	StartCampaign(ctx context.Context, campaignUUID string) (*dto.CampaignActionResponse, error)
	PauseCampaign(ctx context.Context, campaignUUID string) (*dto.CampaignActionResponse, error)
	CancelCampaign(ctx context.Context, campaignUUID string) (*dto.CampaignActionResponse, error)
	ReinitializeQueue(ctx context.Context, campaignUUID string) (*dto.ReinitializeQueueResponse, error)
	SendingInfo(ctx context.Context, campaignUUID string) (*dto.SendingInfoResponse, error)
	NextSendTime(ctx context.Context, campaignUUID string) (*dto.NextSendTimeResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	clRepo       repository.CampaignLeadRepository
	queueRepo    repository.EmailQueueRepository
	logRepo      repository.SendLogRepository
	queue        *dispatch.DispatchQueue
	window       *dispatch.WindowValidator
	db           *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	clRepo repository.CampaignLeadRepository,
	queueRepo repository.EmailQueueRepository,
	logRepo repository.SendLogRepository,
	queue *dispatch.DispatchQueue,
	window *dispatch.WindowValidator,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		clRepo:       clRepo,
		queueRepo:    queueRepo,
		logRepo:      logRepo,
		queue:        queue,
		window:       window,
		db:           db,
	}
}

func (s *CampaignFlowImpl) getCampaign(ctx context.Context, campaignUUID string) (*models.Campaign, error) {
	if campaignUUID == "" {
		return nil, ErrCampaignUUIDRequired
	}
	id, err := uuid.Parse(campaignUUID)
	if err != nil {
		return nil, ErrCampaignUUIDRequired
	}
	campaign, err := s.campaignRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

// StartCampaign activates a scheduled or paused campaign immediately. On the
// first activation the dispatch queue is built in the same transaction.
func (s *CampaignFlowImpl) StartCampaign(ctx context.Context, campaignUUID string) (*dto.CampaignActionResponse, error) {
	campaign, err := s.getCampaign(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign.IsTerminal() {
		return nil, NewBusinessError("CAMPAIGN_TERMINAL", "Campaign already reached a terminal status", ErrCampaignAlreadyTerminal)
	}
	if !campaign.CanTransitionTo(models.CampaignStatusActive) {
		return nil, NewBusinessError("INVALID_TRANSITION", "Campaign cannot be started from its current status", ErrInvalidStatusTransition)
	}

	now := utils.UTCNow()
	firstStart := campaign.SendingStartedAt == nil

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		moved, err := s.campaignRepo.UpdateStatus(txCtx, campaign.ID, campaign.Status, models.CampaignStatusActive)
		if err != nil {
			return err
		}
		if !moved {
			return ErrInvalidStatusTransition
		}
		if firstStart {
			if err := s.campaignRepo.SetSendingStarted(txCtx, campaign.ID, now); err != nil {
				return err
			}
			if _, err := s.queue.Initialize(txCtx, campaign, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_START_FAILED", "Campaign start failed", err)
	}

	return &dto.CampaignActionResponse{
		Message:   "Campaign started successfully",
		UUID:      campaign.UUID.String(),
		Status:    string(models.CampaignStatusActive),
		UpdatedAt: now.Format(time.RFC3339),
	}, nil
}

// PauseCampaign suspends dispatching. Queue entries stay in place so a later
// start resumes from where the campaign stopped.
func (s *CampaignFlowImpl) PauseCampaign(ctx context.Context, campaignUUID string) (*dto.CampaignActionResponse, error) {
	campaign, err := s.getCampaign(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign.Status != models.CampaignStatusActive {
		return nil, NewBusinessError("CAMPAIGN_NOT_ACTIVE", "Only active campaigns can be paused", ErrCampaignNotActive)
	}

	moved, err := s.campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusActive, models.CampaignStatusPaused)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_PAUSE_FAILED", "Campaign pause failed", err)
	}
	if !moved {
		return nil, NewBusinessError("INVALID_TRANSITION", "Campaign status changed concurrently", ErrInvalidStatusTransition)
	}

	return &dto.CampaignActionResponse{
		Message:   "Campaign paused successfully",
		UUID:      campaign.UUID.String(),
		Status:    string(models.CampaignStatusPaused),
		UpdatedAt: utils.UTCNow().Format(time.RFC3339),
	}, nil
}

// CancelCampaign terminates the campaign and cancels all live queue entries
func (s *CampaignFlowImpl) CancelCampaign(ctx context.Context, campaignUUID string) (*dto.CampaignActionResponse, error) {
	campaign, err := s.getCampaign(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign.IsTerminal() {
		return nil, NewBusinessError("CAMPAIGN_TERMINAL", "Campaign already reached a terminal status", ErrCampaignAlreadyTerminal)
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		moved, err := s.campaignRepo.UpdateStatus(txCtx, campaign.ID, campaign.Status, models.CampaignStatusCancelled)
		if err != nil {
			return err
		}
		if !moved {
			return ErrInvalidStatusTransition
		}
		_, err = s.queueRepo.CancelLive(txCtx, campaign.ID)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CANCEL_FAILED", "Campaign cancellation failed", err)
	}

	return &dto.CampaignActionResponse{
		Message:   "Campaign cancelled successfully",
		UUID:      campaign.UUID.String(),
		Status:    string(models.CampaignStatusCancelled),
		UpdatedAt: utils.UTCNow().Format(time.RFC3339),
	}, nil
}

// ReinitializeQueue discards the campaign's live queue and plans a fresh one.
// Admin escape hatch for queues with a corrupted pacing chain.
func (s *CampaignFlowImpl) ReinitializeQueue(ctx context.Context, campaignUUID string) (*dto.ReinitializeQueueResponse, error) {
	campaign, err := s.getCampaign(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign.Status != models.CampaignStatusActive {
		return nil, NewBusinessError("CAMPAIGN_NOT_ACTIVE", "Only active campaigns can have their queue rebuilt", ErrCampaignNotActive)
	}

	now := utils.UTCNow()
	var cancelled int64
	var queued int

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		var err error
		cancelled, err = s.queueRepo.CancelLive(txCtx, campaign.ID)
		if err != nil {
			return err
		}
		queued, err = s.queue.Initialize(txCtx, campaign, now)
		if err != nil {
			return err
		}
		// A manual rebuild clears any recovery fence
		return s.campaignRepo.SetRecoveryCooldown(txCtx, campaign.ID, nil)
	})
	if err != nil {
		return nil, NewBusinessError("QUEUE_REINIT_FAILED", "Queue reinitialization failed", err)
	}

	return &dto.ReinitializeQueueResponse{
		Message:   "Queue reinitialized successfully",
		UUID:      campaign.UUID.String(),
		Cancelled: cancelled,
		Queued:    queued,
	}, nil
}

// SendingInfo reports per-status lead counts and today's throughput
func (s *CampaignFlowImpl) SendingInfo(ctx context.Context, campaignUUID string) (*dto.SendingInfoResponse, error) {
	campaign, err := s.getCampaign(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}

	resp := &dto.SendingInfoResponse{
		UUID:   campaign.UUID.String(),
		Status: string(campaign.Status),
	}

	counts := map[models.CampaignLeadStatus]*int64{
		models.CampaignLeadStatusPlanned: &resp.Planned,
		models.CampaignLeadStatusQueued:  &resp.Queued,
		models.CampaignLeadStatusSending: &resp.Sending,
		models.CampaignLeadStatusSent:    &resp.Sent,
		models.CampaignLeadStatusFailed:  &resp.Failed,
	}
	for status, target := range counts {
		n, err := s.clRepo.CountByStatus(ctx, campaign.ID, status)
		if err != nil {
			return nil, NewBusinessError("SENDING_INFO_FAILED", "Failed to count campaign leads", err)
		}
		*target = n
		resp.TotalLeads += n
	}

	dayStart := utils.StartOfDay(utils.UTCNow(), s.window.Location())
	sentToday, err := s.logRepo.CountSentSince(ctx, campaign.ID, dayStart)
	if err != nil {
		return nil, NewBusinessError("SENDING_INFO_FAILED", "Failed to count today's sends", err)
	}
	resp.SentToday = sentToday

	live, err := s.queueRepo.CountLive(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("SENDING_INFO_FAILED", "Failed to count live queue entries", err)
	}
	resp.LiveQueueEntries = live

	if campaign.SendingStartedAt != nil {
		resp.SendingStartedAt = utils.ToPtr(campaign.SendingStartedAt.Format(time.RFC3339))
	}
	if campaign.SendingCompletedAt != nil {
		resp.SendingCompletedAt = utils.ToPtr(campaign.SendingCompletedAt.Format(time.RFC3339))
	}
	if campaign.EstimatedEndDate != nil {
		resp.EstimatedEndDate = utils.ToPtr(campaign.EstimatedEndDate.Format("2006-01-02"))
	}
	return resp, nil
}

// NextSendTime reports the earliest pending queue entry, adjusted forward to
// the next open window when the scheduled instant falls outside it.
func (s *CampaignFlowImpl) NextSendTime(ctx context.Context, campaignUUID string) (*dto.NextSendTimeResponse, error) {
	campaign, err := s.getCampaign(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}

	resp := &dto.NextSendTimeResponse{UUID: campaign.UUID.String()}

	if campaign.Status != models.CampaignStatusActive {
		resp.Reason = "campaign is not active"
		return resp, nil
	}

	pending := models.QueueEntryStatusPending
	entries, err := s.queueRepo.ByFilter(ctx, models.EmailQueueEntryFilter{
		CampaignID: &campaign.ID,
		Status:     &pending,
	}, "scheduled_at ASC", 1, 0)
	if err != nil {
		return nil, NewBusinessError("NEXT_SEND_LOOKUP_FAILED", "Failed to read the dispatch queue", err)
	}
	if len(entries) == 0 {
		resp.Reason = "no pending queue entries"
		return resp, nil
	}

	next := entries[0].ScheduledAt
	ok, reason, err := s.window.IsSendableNow(ctx, campaign, next)
	if err != nil {
		return nil, NewBusinessError("NEXT_SEND_LOOKUP_FAILED", "Window validation failed", err)
	}
	if !ok {
		next, err = s.window.NextEligibleSlot(ctx, campaign, next)
		if err != nil {
			return nil, NewBusinessError("NEXT_SEND_LOOKUP_FAILED", "Window projection failed", err)
		}
		resp.Reason = reason
	}
	resp.WithinWindow = ok
	resp.NextSendAt = utils.ToPtr(next.UTC().Format(time.RFC3339))
	return resp, nil
}
