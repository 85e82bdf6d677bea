package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
)

// Estimator projects campaign completion dates from remaining volume and the
// owner pool's daily capacity. Read-only with respect to the queue.
type Estimator struct {
	campaignRepo repository.CampaignRepository
	clRepo       repository.CampaignLeadRepository
	mailboxRepo  repository.MailboxRepository
	pool         *IdentityPool
	window       *WindowValidator
	logger       *log.Logger
}

func NewEstimator(
	campaignRepo repository.CampaignRepository,
	clRepo repository.CampaignLeadRepository,
	mailboxRepo repository.MailboxRepository,
	pool *IdentityPool,
	window *WindowValidator,
	logger *log.Logger,
) *Estimator {
	if logger == nil {
		logger = log.Default()
	}
	return &Estimator{
		campaignRepo: campaignRepo,
		clRepo:       clRepo,
		mailboxRepo:  mailboxRepo,
		pool:         pool,
		window:       window,
		logger:       logger,
	}
}

// UpdateAll recomputes the estimated end date of every scheduled and active
// campaign. Intended to run once per day.
func (e *Estimator) UpdateAll(ctx context.Context, now time.Time) {
	for _, status := range []models.CampaignStatus{models.CampaignStatusScheduled, models.CampaignStatusActive} {
		campaigns, err := e.campaignRepo.ListByStatus(ctx, status)
		if err != nil {
			e.logger.Printf("estimator: listing %s campaigns failed: %v", status, err)
			continue
		}
		for _, c := range campaigns {
			end, err := e.Estimate(ctx, c, now)
			if err != nil {
				e.logger.Printf("estimator: campaign %d: %v", c.ID, err)
				continue
			}
			if err := e.campaignRepo.SetEstimatedEndDate(ctx, c.ID, end); err != nil {
				e.logger.Printf("estimator: campaign %d: persisting estimate failed: %v", c.ID, err)
			}
		}
	}
}

// Estimate walks forward over the campaign's allowed days, draining the
// remaining lead count by the projected per-day throughput. Returns nil when
// nothing remains to send.
func (e *Estimator) Estimate(ctx context.Context, c *models.Campaign, now time.Time) (*time.Time, error) {
	remaining, err := e.clRepo.CountRemaining(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		return nil, nil
	}

	perDay, err := e.dailyThroughput(ctx, c)
	if err != nil {
		return nil, err
	}
	if perDay <= 0 {
		return nil, nil
	}

	loc := e.window.Location()
	day := utils.StartOfDay(now, loc)
	for i := 0; i < 365; i++ {
		if c.AllowsWeekday(utils.WeekdayCode(day.Weekday())) {
			remaining -= int64(perDay)
			if remaining <= 0 {
				end := utils.TimeToUTC(day)
				return &end, nil
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	// Too slow to finish within a year, leave the estimate open
	return nil, nil
}

// dailyThroughput is the per-day send capacity: bounded by the campaign's own
// cap, the summed effective identity caps, and how many paced sends fit into
// the daily window.
func (e *Estimator) dailyThroughput(ctx context.Context, c *models.Campaign) (int, error) {
	perDay := c.MaxEmailsPerDay

	mailboxes, err := e.mailboxRepo.ListActiveByOwner(ctx, c.SalespersonID)
	if err != nil {
		return 0, err
	}
	tiers, coldLimit, err := e.pool.rampLimits(ctx)
	if err != nil {
		return 0, err
	}
	poolCap := 0
	for _, m := range mailboxes {
		poolCap += e.pool.EffectiveDailyCap(m, tiers, coldLimit)
	}
	if poolCap < perDay {
		perDay = poolCap
	}

	if c.DelayBetweenEmails > 0 {
		windowMinutes := (c.WindowEndHour*60 + c.WindowEndMinute) - (c.WindowStartHour*60 + c.WindowStartMinute)
		if windowMinutes > 0 {
			bySpacing := windowMinutes * 60 / c.DelayBetweenEmails
			if bySpacing < perDay {
				perDay = bySpacing
			}
		}
	}
	return perDay, nil
}
