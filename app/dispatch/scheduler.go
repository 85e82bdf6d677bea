package dispatch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/config"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
)

// HolidayRefresher keeps the holiday cache warm for the configured countries
type HolidayRefresher interface {
	Refresh(ctx context.Context) error
}

// DispatchScheduler is the periodic driver: it activates due campaigns, runs
// the sweeper, iterates active campaigns through the dispatcher and performs
// daily maintenance (counter resets, ramp advancement, holiday prefetch,
// estimates).
type DispatchScheduler struct {
	campaignRepo repository.CampaignRepository
	clRepo       repository.CampaignLeadRepository
	queueRepo    repository.EmailQueueRepository
	mailboxRepo  repository.MailboxRepository
	dispatcher   *Dispatcher
	sweeper      *Sweeper
	estimator    *Estimator
	queue        *DispatchQueue
	holidays     HolidayRefresher
	window       *WindowValidator
	cfg          config.DispatchConfig
	logger       *log.Logger
	logFile      *os.File

	lastMaintenance time.Time
}

func NewDispatchScheduler(
	campaignRepo repository.CampaignRepository,
	clRepo repository.CampaignLeadRepository,
	queueRepo repository.EmailQueueRepository,
	mailboxRepo repository.MailboxRepository,
	dispatcher *Dispatcher,
	sweeper *Sweeper,
	estimator *Estimator,
	queue *DispatchQueue,
	holidays HolidayRefresher,
	window *WindowValidator,
	cfg config.DispatchConfig,
) *DispatchScheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}

	s := &DispatchScheduler{
		campaignRepo: campaignRepo,
		clRepo:       clRepo,
		queueRepo:    queueRepo,
		mailboxRepo:  mailboxRepo,
		dispatcher:   dispatcher,
		sweeper:      sweeper,
		estimator:    estimator,
		queue:        queue,
		holidays:     holidays,
		window:       window,
		cfg:          cfg,
	}

	// Initialize scheduler-specific logger (to stdout and persistent file)
	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("dispatch: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *DispatchScheduler) initSchedulerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "dispatch.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
		s.logger = log.New(mw, "dispatch ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create dispatch log file in any candidate directory")
}

// Logger exposes the scheduler's logger so collaborating components share it
func (s *DispatchScheduler) Logger() *log.Logger {
	if s.logger == nil {
		return log.Default()
	}
	return s.logger
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *DispatchScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		if s.logFile != nil {
			_ = s.logFile.Close()
		}
	}
}

func (s *DispatchScheduler) runOnce(ctx context.Context) {
	now := utils.UTCNow()

	s.maybeRunDailyMaintenance(ctx, now)
	s.activateDueCampaigns(ctx, now)

	if err := s.sweeper.Sweep(ctx, now); err != nil {
		s.logger.Printf("sweeper pass failed: %v", err)
	}

	active, err := s.campaignRepo.ListByStatus(ctx, models.CampaignStatusActive)
	if err != nil {
		s.logger.Printf("listing active campaigns failed: %v", err)
		return
	}

	for _, c := range active {
		if ctx.Err() != nil {
			return
		}
		done, err := s.completeIfExhausted(ctx, c, now)
		if err != nil {
			s.logger.Printf("campaign %d: completion check failed: %v", c.ID, err)
			continue
		}
		if done {
			continue
		}
		if err := s.dispatcher.DispatchCampaign(ctx, c, now); err != nil {
			s.logger.Printf("campaign %d: dispatch failed: %v", c.ID, err)
		}
	}
}

// activateDueCampaigns starts scheduled campaigns whose start time has
// arrived and builds their first queue.
func (s *DispatchScheduler) activateDueCampaigns(ctx context.Context, now time.Time) {
	due, err := s.campaignRepo.ListDueScheduled(ctx, now)
	if err != nil {
		s.logger.Printf("listing due campaigns failed: %v", err)
		return
	}
	for _, c := range due {
		moved, err := s.campaignRepo.UpdateStatus(ctx, c.ID, models.CampaignStatusScheduled, models.CampaignStatusActive)
		if err != nil {
			s.logger.Printf("campaign %d: activation failed: %v", c.ID, err)
			continue
		}
		if !moved {
			continue
		}
		if err := s.campaignRepo.SetSendingStarted(ctx, c.ID, now); err != nil {
			s.logger.Printf("campaign %d: recording start failed: %v", c.ID, err)
		}
		n, err := s.queue.Initialize(ctx, c, now)
		if err != nil {
			s.logger.Printf("campaign %d: initial queue build failed: %v", c.ID, err)
			continue
		}
		s.logger.Printf("campaign %d activated with %d queued sends", c.ID, n)
	}
}

// completeIfExhausted transitions a campaign to completed when no leads
// remain to send and no live queue entries exist.
func (s *DispatchScheduler) completeIfExhausted(ctx context.Context, c *models.Campaign, now time.Time) (bool, error) {
	remaining, err := s.clRepo.CountRemaining(ctx, c.ID)
	if err != nil {
		return false, err
	}
	if remaining > 0 {
		return false, nil
	}
	live, err := s.queueRepo.CountLive(ctx, c.ID)
	if err != nil {
		return false, err
	}
	if live > 0 {
		return false, nil
	}

	moved, err := s.campaignRepo.UpdateStatus(ctx, c.ID, models.CampaignStatusActive, models.CampaignStatusCompleted)
	if err != nil {
		return false, err
	}
	if moved {
		if err := s.campaignRepo.SetSendingCompleted(ctx, c.ID, now); err != nil {
			return true, err
		}
		s.logger.Printf("campaign %d completed", c.ID)
	}
	return true, nil
}

// maybeRunDailyMaintenance resets identity counters, advances warm-up state,
// refreshes the holiday cache and recomputes estimates once per local day.
func (s *DispatchScheduler) maybeRunDailyMaintenance(ctx context.Context, now time.Time) {
	loc := s.window.Location()
	if !s.lastMaintenance.IsZero() && utils.SameDay(s.lastMaintenance, now, loc) {
		return
	}
	s.lastMaintenance = now

	dayStart := utils.StartOfDay(now, loc)
	if _, err := s.mailboxRepo.AdvanceRampDays(ctx, dayStart); err != nil {
		s.logger.Printf("ramp advancement failed: %v", err)
	}
	if n, err := s.mailboxRepo.ResetDailyCountersBefore(ctx, dayStart); err != nil {
		s.logger.Printf("daily counter reset failed: %v", err)
	} else if n > 0 {
		s.logger.Printf("reset daily counters on %d mailboxes", n)
	}

	if s.holidays != nil {
		if err := s.holidays.Refresh(ctx); err != nil {
			s.logger.Printf("holiday refresh failed: %v", err)
		}
	}

	s.estimator.UpdateAll(ctx, now)
}
