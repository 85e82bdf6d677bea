package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/config"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryRequest is the fully-resolved unit of work handed to the delivery
// collaborator. The engine does not interpret transport errors beyond
// success/failure.
type DeliveryRequest struct {
	MessageID    uuid.UUID
	To           string
	ToName       string
	FromEmail    string
	FromName     string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	CampaignID   uint
	LeadID       uint
	MailboxID    uint
}

// Deliverer physically transmits one message
type Deliverer interface {
	Deliver(ctx context.Context, req DeliveryRequest) error
}

// sendTask is one reserved send awaiting transmission
type sendTask struct {
	campaign     *models.Campaign
	entry        *models.EmailQueueEntry
	campaignLead *models.CampaignLead
	lead         *models.Lead
	mailbox      *models.Mailbox
}

// WorkerPool transmits reserved sends. A short random handoff delay decouples
// the reservation tick from the transmission instant, and the mandatory
// already-sent re-check before every transmit keeps at-least-once recovery
// close to at-most-once in observable behavior.
type WorkerPool struct {
	db           *gorm.DB
	campaignRepo repository.CampaignRepository
	clRepo       repository.CampaignLeadRepository
	queueRepo    repository.EmailQueueRepository
	mailboxRepo  repository.MailboxRepository
	logRepo      repository.SendLogRepository
	queue        *DispatchQueue
	pacing       *PacingCalculator
	deliverer    Deliverer
	cfg          config.DispatchConfig
	logger       *log.Logger

	tasks chan *sendTask
	wg    sync.WaitGroup
	once  sync.Once
}

func NewWorkerPool(
	db *gorm.DB,
	campaignRepo repository.CampaignRepository,
	clRepo repository.CampaignLeadRepository,
	queueRepo repository.EmailQueueRepository,
	mailboxRepo repository.MailboxRepository,
	logRepo repository.SendLogRepository,
	queue *DispatchQueue,
	pacing *PacingCalculator,
	deliverer Deliverer,
	cfg config.DispatchConfig,
	logger *log.Logger,
) *WorkerPool {
	if logger == nil {
		logger = log.Default()
	}
	size := cfg.WorkerQueueSize
	if size <= 0 {
		size = 64
	}
	return &WorkerPool{
		db:           db,
		campaignRepo: campaignRepo,
		clRepo:       clRepo,
		queueRepo:    queueRepo,
		mailboxRepo:  mailboxRepo,
		logRepo:      logRepo,
		queue:        queue,
		pacing:       pacing,
		deliverer:    deliverer,
		cfg:          cfg,
		logger:       logger,
		tasks:        make(chan *sendTask, size),
	}
}

// Start launches the worker goroutines
func (w *WorkerPool) Start(ctx context.Context) {
	n := w.cfg.WorkerCount
	if n <= 0 {
		n = 4
	}
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
}

// Submit hands a reserved task to the pool. Blocks until a worker slot is
// free or the context is cancelled.
func (w *WorkerPool) Submit(ctx context.Context, t *sendTask) error {
	select {
	case w.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop waits for in-flight tasks to drain
func (w *WorkerPool) Stop() {
	w.once.Do(func() { close(w.tasks) })
	w.wg.Wait()
}

func (w *WorkerPool) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-w.tasks:
			if !ok {
				return
			}
			w.sleepHandoff(ctx)
			if err := w.process(ctx, t); err != nil {
				w.logger.Printf("campaign %d entry %d: %v", t.campaign.ID, t.entry.ID, err)
			}
		}
	}
}

func (w *WorkerPool) sleepHandoff(ctx context.Context) {
	d := w.pacing.HandoffDelay(w.cfg.HandoffJitterMax)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *WorkerPool) process(ctx context.Context, t *sendTask) error {
	// The campaign may have been paused or cancelled between reservation and
	// transmission.
	current, err := w.campaignRepo.ByID(ctx, t.campaign.ID)
	if err != nil {
		return err
	}
	if current == nil || !current.IsSending() {
		return w.releaseSkipped(ctx, t, current)
	}

	// Mandatory duplicate guard: a stale-released entry may have already been
	// delivered by the first attempt.
	already, err := w.logRepo.HasSent(ctx, t.campaign.ID, t.lead.ID)
	if err != nil {
		return err
	}
	if already {
		return repository.WithTransaction(ctx, w.db, func(txCtx context.Context) error {
			if err := w.queueRepo.MarkSent(txCtx, t.entry.ID, utils.UTCNow()); err != nil {
				return err
			}
			return w.clRepo.MarkSent(txCtx, t.campaignLead.ID, utils.UTCNow())
		})
	}

	req := w.buildRequest(t)
	start := utils.UTCNow()
	deliverErr := w.deliverer.Deliver(ctx, req)
	sendDurationSeconds.Observe(time.Since(start).Seconds())

	if deliverErr != nil {
		emailsFailedTotal.Inc()
		return w.recordFailure(ctx, t, req, deliverErr)
	}
	emailsSentTotal.Inc()
	return w.recordSuccess(ctx, t, req)
}

func (w *WorkerPool) buildRequest(t *sendTask) DeliveryRequest {
	toName := ""
	if t.lead.FirstName != nil {
		toName = *t.lead.FirstName
	}
	if t.lead.LastName != nil {
		if toName != "" {
			toName += " "
		}
		toName += *t.lead.LastName
	}
	fromName := t.mailbox.Email
	if t.mailbox.DisplayName != nil {
		fromName = *t.mailbox.DisplayName
	}
	return DeliveryRequest{
		MessageID:    uuid.New(),
		To:           t.lead.Email,
		ToName:       toName,
		FromEmail:    t.mailbox.Email,
		FromName:     fromName,
		SMTPHost:     t.mailbox.SMTPHost,
		SMTPPort:     t.mailbox.SMTPPort,
		SMTPUsername: t.mailbox.SMTPUsername,
		CampaignID:   t.campaign.ID,
		LeadID:       t.lead.ID,
		MailboxID:    t.mailbox.ID,
	}
}

func (w *WorkerPool) recordSuccess(ctx context.Context, t *sendTask, req DeliveryRequest) error {
	sentAt := utils.UTCNow()
	err := repository.WithTransaction(ctx, w.db, func(txCtx context.Context) error {
		logRow := &models.SendLog{
			MessageID:  req.MessageID,
			CampaignID: t.campaign.ID,
			LeadID:     t.lead.ID,
			MailboxID:  t.mailbox.ID,
			Status:     models.SendLogStatusSent,
			CreatedAt:  sentAt,
		}
		if err := w.logRepo.Save(txCtx, logRow); err != nil {
			return err
		}
		if err := w.queueRepo.MarkSent(txCtx, t.entry.ID, sentAt); err != nil {
			return err
		}
		if err := w.clRepo.MarkSent(txCtx, t.campaignLead.ID, sentAt); err != nil {
			return err
		}
		return w.mailboxRepo.MarkUsed(txCtx, t.mailbox.ID, sentAt)
	})
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}

	// Chain the next send from the actual transmission instant
	if err := w.queue.Replenish(ctx, t.campaign, sentAt); err != nil {
		w.logger.Printf("campaign %d: replenish after send failed: %v", t.campaign.ID, err)
	}
	return nil
}

// recordFailure settles a failed attempt. The identity quota slot consumed by
// the reservation is deliberately not refunded so total daily attempts per
// identity stay bounded.
func (w *WorkerPool) recordFailure(ctx context.Context, t *sendTask, req DeliveryRequest, deliverErr error) error {
	msg := deliverErr.Error()
	return repository.WithTransaction(ctx, w.db, func(txCtx context.Context) error {
		logRow := &models.SendLog{
			MessageID:  req.MessageID,
			CampaignID: t.campaign.ID,
			LeadID:     t.lead.ID,
			MailboxID:  t.mailbox.ID,
			Status:     models.SendLogStatusError,
			Error:      &msg,
		}
		if err := w.logRepo.Save(txCtx, logRow); err != nil {
			return err
		}
		if err := w.queueRepo.MarkFailed(txCtx, t.entry.ID, msg); err != nil {
			return err
		}
		// Back to queued, retried by ordinary replenishment
		return w.clRepo.UpdateStatus(txCtx, t.campaignLead.ID, models.CampaignLeadStatusQueued)
	})
}

// releaseSkipped settles a task whose campaign stopped sending before
// transmission: paused campaigns get the entry back, terminal ones cancel it.
func (w *WorkerPool) releaseSkipped(ctx context.Context, t *sendTask, current *models.Campaign) error {
	return repository.WithTransaction(ctx, w.db, func(txCtx context.Context) error {
		if current != nil && current.Status == models.CampaignStatusPaused {
			if err := w.queueRepo.ReturnToPending(txCtx, t.entry.ID); err != nil {
				return err
			}
		} else {
			if err := w.queueRepo.Cancel(txCtx, t.entry.ID); err != nil {
				return err
			}
		}
		return w.clRepo.UpdateStatus(txCtx, t.campaignLead.ID, models.CampaignLeadStatusQueued)
	})
}
