package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
)

// DispatchQueue maintains the short per-campaign look-ahead buffer of planned
// sends so dispatch never scans the full recipient list on a tick.
type DispatchQueue struct {
	queueRepo  repository.EmailQueueRepository
	leadRepo   repository.CampaignLeadRepository
	logRepo    repository.SendLogRepository
	pacing     *PacingCalculator
	window     *WindowValidator
	bufferSize int
}

func NewDispatchQueue(
	queueRepo repository.EmailQueueRepository,
	leadRepo repository.CampaignLeadRepository,
	logRepo repository.SendLogRepository,
	pacing *PacingCalculator,
	window *WindowValidator,
	bufferSize int,
) *DispatchQueue {
	if bufferSize <= 0 {
		bufferSize = 20
	}
	return &DispatchQueue{
		queueRepo:  queueRepo,
		leadRepo:   leadRepo,
		logRepo:    logRepo,
		pacing:     pacing,
		window:     window,
		bufferSize: bufferSize,
	}
}

// Initialize builds the buffer for a campaign that has no live entries. The
// schedule chain is seeded from the last successful send when one exists,
// otherwise from now, and never into the past. Returns the number of entries
// created.
func (q *DispatchQueue) Initialize(ctx context.Context, c *models.Campaign, now time.Time) (int, error) {
	live, err := q.queueRepo.CountLive(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	if live > 0 {
		return 0, nil
	}

	candidates, err := q.leadRepo.ListQueueCandidates(ctx, c.ID, q.bufferSize)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	seed := now
	lastSent, err := q.logRepo.LastSentAt(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	if lastSent != nil {
		seed = q.pacing.NextSendTime(*lastSent, c.DelayBetweenEmails)
	}
	if seed.Before(now) {
		seed = now
	}
	seed, err = q.window.NextEligibleSlot(ctx, c, seed)
	if err != nil {
		return 0, err
	}

	entries := make([]*models.EmailQueueEntry, 0, len(candidates))
	at := seed
	for i, cl := range candidates {
		if i > 0 {
			at = q.pacing.NextSendTime(at, c.DelayBetweenEmails)
		}
		entries = append(entries, &models.EmailQueueEntry{
			CampaignID:     c.ID,
			CampaignLeadID: cl.ID,
			Status:         models.QueueEntryStatusPending,
			ScheduledAt:    utils.TimeToUTC(at),
		})
	}
	if err := q.queueRepo.SaveBatch(ctx, entries); err != nil {
		return 0, fmt.Errorf("failed to build queue for campaign %d: %w", c.ID, err)
	}
	return len(entries), nil
}

// Replenish appends exactly one entry for the next eligible recipient after a
// successful send, chained from the actual send timestamp or the current
// queue tail, whichever is later. Keeps the buffer self-sustaining.
func (q *DispatchQueue) Replenish(ctx context.Context, c *models.Campaign, sentAt time.Time) error {
	live, err := q.queueRepo.CountLive(ctx, c.ID)
	if err != nil {
		return err
	}
	if live >= int64(q.bufferSize) {
		return nil
	}

	candidates, err := q.leadRepo.ListQueueCandidates(ctx, c.ID, 1)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	anchor := sentAt
	tail, err := q.queueRepo.LastScheduledAt(ctx, c.ID)
	if err != nil {
		return err
	}
	if tail != nil && tail.After(anchor) {
		anchor = *tail
	}

	next := q.pacing.NextSendTime(anchor, c.DelayBetweenEmails)
	next, err = q.window.NextEligibleSlot(ctx, c, next)
	if err != nil {
		return err
	}

	entry := &models.EmailQueueEntry{
		CampaignID:     c.ID,
		CampaignLeadID: candidates[0].ID,
		Status:         models.QueueEntryStatusPending,
		ScheduledAt:    utils.TimeToUTC(next),
	}
	if err := q.queueRepo.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to replenish queue for campaign %d: %w", c.ID, err)
	}
	return nil
}
