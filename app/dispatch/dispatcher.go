package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/config"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"gorm.io/gorm"
)

// errNoPoolThisTick rolls back the reservation transaction for the
// structural no-pool condition so it can be logged once per campaign per
// tick without marking anything failed.
var errNoPoolThisTick = errors.New("no identity pool this tick")

// Dispatcher performs one reservation attempt per active campaign per tick.
// Every state transition that decides "did I get the slot" runs inside one
// transaction; the transmission itself is handed to the worker pool outside
// of it.
type Dispatcher struct {
	db           *gorm.DB
	campaignRepo repository.CampaignRepository
	clRepo       repository.CampaignLeadRepository
	leadRepo     repository.LeadRepository
	queueRepo    repository.EmailQueueRepository
	mailboxRepo  repository.MailboxRepository
	logRepo      repository.SendLogRepository
	pool         *IdentityPool
	queue        *DispatchQueue
	pacing       *PacingCalculator
	window       *WindowValidator
	workers      *WorkerPool
	cfg          config.DispatchConfig
	logger       *log.Logger
}

func NewDispatcher(
	db *gorm.DB,
	campaignRepo repository.CampaignRepository,
	clRepo repository.CampaignLeadRepository,
	leadRepo repository.LeadRepository,
	queueRepo repository.EmailQueueRepository,
	mailboxRepo repository.MailboxRepository,
	logRepo repository.SendLogRepository,
	pool *IdentityPool,
	queue *DispatchQueue,
	pacing *PacingCalculator,
	window *WindowValidator,
	workers *WorkerPool,
	cfg config.DispatchConfig,
	logger *log.Logger,
) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		db:           db,
		campaignRepo: campaignRepo,
		clRepo:       clRepo,
		leadRepo:     leadRepo,
		queueRepo:    queueRepo,
		mailboxRepo:  mailboxRepo,
		logRepo:      logRepo,
		pool:         pool,
		queue:        queue,
		pacing:       pacing,
		window:       window,
		workers:      workers,
		cfg:          cfg,
		logger:       logger,
	}
}

// DispatchCampaign runs one dispatch attempt for the campaign. At most one
// send task is produced per call.
func (d *Dispatcher) DispatchCampaign(ctx context.Context, c *models.Campaign, now time.Time) error {
	ok, reason, err := d.window.IsSendableNow(ctx, c, now)
	if err != nil {
		return err
	}
	if !ok {
		// Outside the window no reservation is attempted; push due entries
		// to the next eligible slot so they do not pile up as catch-ups.
		if err := d.deferDueEntries(ctx, c, now, reason); err != nil {
			return err
		}
		return nil
	}

	tolerance, err := d.catchupTolerance(ctx, c, now)
	if err != nil {
		return err
	}

	// Pending entries older than the lookback are invisible to NextDue; put
	// them back on a pacing chain so they do not stall until the window closes.
	if err := d.replanStaleEntries(ctx, c, now, tolerance); err != nil {
		return err
	}

	// Cheap pre-check, and the deferral slot for cap/pool exhaustion is
	// computed here so the holiday calendar is never consulted while the
	// transaction holds row locks.
	due, err := d.queueRepo.NextDue(ctx, c.ID, now.Add(-tolerance), now)
	if err != nil {
		return err
	}
	if due == nil {
		return nil
	}
	nextDay, err := d.window.NextDayWindowStart(ctx, c, now)
	if err != nil {
		return err
	}

	var task *sendTask
	err = repository.WithTransaction(ctx, d.db, func(txCtx context.Context) error {
		task, err = d.reserve(txCtx, c, now, tolerance, nextDay)
		return err
	})
	if errors.Is(err, errNoPoolThisTick) {
		d.logger.Printf("campaign %d: owner has no usable identity pool", c.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reservation failed for campaign %d: %w", c.ID, err)
	}

	if task != nil {
		if err := d.workers.Submit(ctx, task); err != nil {
			// Shutdown race: hand the claim back so the sweeper is not needed
			return d.queueRepo.ReturnToPending(ctx, task.entry.ID)
		}
	}
	return nil
}

// reserve implements the atomic half of a dispatch attempt. Runs inside one
// transaction; any error rolls back every step so losing contenders observe
// zero effect. nextDay is the precomputed next-day window start used for
// cap and pool-exhaustion deferrals.
func (d *Dispatcher) reserve(ctx context.Context, c *models.Campaign, now time.Time, tolerance time.Duration, nextDay time.Time) (*sendTask, error) {
	// Re-read under the transaction, pause/cancel takes effect here
	current, err := d.campaignRepo.ByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if current == nil || !current.IsSending() {
		return nil, nil
	}

	entry, err := d.queueRepo.NextDue(ctx, c.ID, now.Add(-tolerance), now)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	// One in-flight send per campaign at a time
	sending := models.QueueEntryStatusSending
	busy, err := d.queueRepo.Exists(ctx, models.EmailQueueEntryFilter{CampaignID: &c.ID, Status: &sending})
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, nil
	}

	// Campaign-level daily cap, distinct from identity quotas
	dayStart := utils.StartOfDay(now, d.window.Location())
	sentToday, err := d.logRepo.CountSentSince(ctx, c.ID, dayStart)
	if err != nil {
		return nil, err
	}
	if sentToday >= int64(current.MaxEmailsPerDay) {
		if err := d.queueRepo.DeferTo(ctx, entry.ID, nextDay); err != nil {
			return nil, err
		}
		deferralsTotal.WithLabelValues(deferReasonCampaignCap).Inc()
		return nil, nil
	}

	claimed, err := d.queueRepo.ClaimPending(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		reservationConflictsTotal.Inc()
		return nil, nil
	}

	// Catch-up items must still honor the configured minimum delay since the
	// last successful send, otherwise a backlog would burst out at once.
	lastSent, err := d.logRepo.LastSentAt(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if entry.ScheduledAt.Before(now) && lastSent != nil {
		minDelay := time.Duration(current.DelayBetweenEmails) * time.Second
		if now.Sub(*lastSent) < minDelay {
			next := d.pacing.NextSendTime(*lastSent, current.DelayBetweenEmails)
			if err := d.queueRepo.DeferTo(ctx, entry.ID, next); err != nil {
				return nil, err
			}
			deferralsTotal.WithLabelValues(deferReasonCatchUp).Inc()
			return nil, nil
		}
	}

	mailbox, err := d.pool.Reserve(ctx, current.SalespersonID, current.ID)
	if err != nil {
		if errors.Is(err, ErrNoIdentityPool) {
			return nil, errNoPoolThisTick
		}
		return nil, err
	}
	if mailbox == nil {
		// Pool exhausted for today, try again at the next window start
		if err := d.queueRepo.DeferTo(ctx, entry.ID, nextDay); err != nil {
			return nil, err
		}
		deferralsTotal.WithLabelValues(deferReasonNoIdentity).Inc()
		return nil, nil
	}

	if err := d.queueRepo.AssignMailbox(ctx, entry.ID, mailbox.ID); err != nil {
		return nil, err
	}

	cl, err := d.clRepo.ByID(ctx, entry.CampaignLeadID)
	if err != nil {
		return nil, err
	}
	if cl == nil {
		return nil, fmt.Errorf("queue entry %d references missing campaign lead %d", entry.ID, entry.CampaignLeadID)
	}
	lead, err := d.leadRepo.ByID(ctx, cl.LeadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, fmt.Errorf("campaign lead %d references missing lead %d", cl.ID, cl.LeadID)
	}
	if err := d.clRepo.UpdateStatus(ctx, cl.ID, models.CampaignLeadStatusSending); err != nil {
		return nil, err
	}

	return &sendTask{
		campaign:     current,
		entry:        entry,
		campaignLead: cl,
		lead:         lead,
		mailbox:      mailbox,
	}, nil
}

// deferDueEntries moves past-due pending entries of a closed window to the
// next eligible slot.
func (d *Dispatcher) deferDueEntries(ctx context.Context, c *models.Campaign, now time.Time, reason string) error {
	pending := models.QueueEntryStatusPending
	due, err := d.queueRepo.ByFilter(ctx, models.EmailQueueEntryFilter{
		CampaignID:      &c.ID,
		Status:          &pending,
		ScheduledBefore: utils.ToPtr(now),
	}, "scheduled_at ASC", 0, 0)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	slot, err := d.window.NextEligibleSlot(ctx, c, now)
	if err != nil {
		return err
	}
	for _, e := range due {
		if err := d.queueRepo.DeferTo(ctx, e.ID, slot); err != nil {
			return err
		}
		slot = d.pacing.NextSendTime(slot, c.DelayBetweenEmails)
		deferralsTotal.WithLabelValues(deferReasonWindow).Inc()
	}
	d.logger.Printf("campaign %d: deferred %d entries (%s)", c.ID, len(due), reason)
	return nil
}

// replanStaleEntries re-plans pending entries that aged past the eligibility
// lookback while the window is open. The chain is anchored at the pacing
// point after the last successful send, so the minimum delay still holds.
func (d *Dispatcher) replanStaleEntries(ctx context.Context, c *models.Campaign, now time.Time, tolerance time.Duration) error {
	pending := models.QueueEntryStatusPending
	stale, err := d.queueRepo.ByFilter(ctx, models.EmailQueueEntryFilter{
		CampaignID:      &c.ID,
		Status:          &pending,
		ScheduledBefore: utils.ToPtr(now.Add(-tolerance)),
	}, "scheduled_at ASC", 0, 0)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	slot := now
	lastSent, err := d.logRepo.LastSentAt(ctx, c.ID)
	if err != nil {
		return err
	}
	if lastSent != nil {
		if next := d.pacing.NextSendTime(*lastSent, c.DelayBetweenEmails); next.After(slot) {
			slot = next
		}
	}
	for _, e := range stale {
		if err := d.queueRepo.DeferTo(ctx, e.ID, slot); err != nil {
			return err
		}
		slot = d.pacing.NextSendTime(slot, c.DelayBetweenEmails)
		deferralsTotal.WithLabelValues(deferReasonStale).Inc()
	}
	d.logger.Printf("campaign %d: re-planned %d stale entries", c.ID, len(stale))
	return nil
}

// catchupTolerance widens the eligibility lookback when recovery conditions
// are detected: stale in-flight work or a long gap since the last send.
func (d *Dispatcher) catchupTolerance(ctx context.Context, c *models.Campaign, now time.Time) (time.Duration, error) {
	cutoff := now.Add(-d.cfg.StalenessThreshold)
	stuck, err := d.queueRepo.HasStuckSending(ctx, c.ID, cutoff)
	if err != nil {
		return 0, err
	}
	if stuck {
		return d.cfg.RecoveryTolerance, nil
	}

	lastSent, err := d.logRepo.LastSentAt(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	if lastSent != nil && now.Sub(*lastSent) > d.cfg.RecoveryIdle {
		return d.cfg.RecoveryTolerance, nil
	}
	return d.cfg.CatchupTolerance, nil
}
