package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/config"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
)

// Sweeper heals abandoned work before each dispatch pass: stale sending
// entries go back to pending, campaigns that lost their queue are rebuilt,
// and long-settled entries are removed.
type Sweeper struct {
	campaignRepo repository.CampaignRepository
	clRepo       repository.CampaignLeadRepository
	queueRepo    repository.EmailQueueRepository
	queue        *DispatchQueue
	cfg          config.DispatchConfig
	logger       *log.Logger
}

func NewSweeper(
	campaignRepo repository.CampaignRepository,
	clRepo repository.CampaignLeadRepository,
	queueRepo repository.EmailQueueRepository,
	queue *DispatchQueue,
	cfg config.DispatchConfig,
	logger *log.Logger,
) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		campaignRepo: campaignRepo,
		clRepo:       clRepo,
		queueRepo:    queueRepo,
		queue:        queue,
		cfg:          cfg,
		logger:       logger,
	}
}

// Sweep runs once per tick, before dispatch
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) error {
	released, err := s.queueRepo.ReleaseStuckSending(ctx, now.Add(-s.cfg.StalenessThreshold))
	if err != nil {
		return err
	}
	if released > 0 {
		sweeperReleasedTotal.Add(float64(released))
		s.logger.Printf("released %d stale sending entries back to pending", released)
	}

	deleted, err := s.queueRepo.DeleteSettledBefore(ctx, now.Add(-s.cfg.RetentionPeriod))
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Printf("retention sweep removed %d settled entries", deleted)
	}

	return s.rebuildLostQueues(ctx, now)
}

// rebuildLostQueues re-initializes active campaigns that still have eligible
// leads but no live queue. Campaigns under a recovery cool-down are skipped
// so a systemic failure does not spin every tick.
func (s *Sweeper) rebuildLostQueues(ctx context.Context, now time.Time) error {
	active, err := s.campaignRepo.ListByStatus(ctx, models.CampaignStatusActive)
	if err != nil {
		return err
	}

	for _, c := range active {
		live, err := s.queueRepo.CountLive(ctx, c.ID)
		if err != nil {
			return err
		}
		if live > 0 {
			continue
		}
		candidates, err := s.clRepo.ListQueueCandidates(ctx, c.ID, 1)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			continue
		}
		if c.RecoveryCooldownUntil != nil && now.Before(*c.RecoveryCooldownUntil) {
			continue
		}

		n, err := s.queue.Initialize(ctx, c, now)
		if err != nil {
			until := utils.UTCNowAdd(s.cfg.RecoveryCooldown)
			if cdErr := s.campaignRepo.SetRecoveryCooldown(ctx, c.ID, &until); cdErr != nil {
				s.logger.Printf("campaign %d: failed to set recovery cooldown: %v", c.ID, cdErr)
			}
			s.logger.Printf("campaign %d: queue re-init failed, fenced until %s: %v", c.ID, until.Format(time.RFC3339), err)
			continue
		}
		if n > 0 {
			queueReinitsTotal.Inc()
			s.logger.Printf("campaign %d: rebuilt queue with %d entries", c.ID, n)
		}
	}
	return nil
}
