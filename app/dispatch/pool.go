package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
)

// ErrNoIdentityPool signals a campaign whose owner has no configured
// mailboxes. This is a structural condition requiring administrative fixing,
// not a transient shortage.
var ErrNoIdentityPool = errors.New("campaign owner has no identity pool configured")

// IdentityPool selects and reserves sending identities for a campaign owner.
// Quota reservation is a guarded increment, so two concurrent dispatch
// attempts can never both take the last slot of a mailbox.
type IdentityPool struct {
	mailboxRepo  repository.MailboxRepository
	salesRepo    repository.SalespersonRepository
	settingsRepo repository.PlatformSettingsRepository
	queueRepo    repository.EmailQueueRepository
}

func NewIdentityPool(
	mailboxRepo repository.MailboxRepository,
	salesRepo repository.SalespersonRepository,
	settingsRepo repository.PlatformSettingsRepository,
	queueRepo repository.EmailQueueRepository,
) *IdentityPool {
	return &IdentityPool{
		mailboxRepo:  mailboxRepo,
		salesRepo:    salesRepo,
		settingsRepo: settingsRepo,
		queueRepo:    queueRepo,
	}
}

// EffectiveDailyCap derives a mailbox's daily cap from its ramp state:
// cold identities get the fixed platform cap regardless of configuration,
// warming identities are bounded by their ramp limit and the tier for the
// current ramp week, fully active identities by the week-1 tier.
func (p *IdentityPool) EffectiveDailyCap(m *models.Mailbox, tiers models.RampTiers, coldLimit int) int {
	switch m.RampStatus {
	case models.RampStatusCold:
		return coldLimit
	case models.RampStatusWarming:
		limit := m.DailyLimit
		if m.RampDailyLimit > 0 && m.RampDailyLimit < limit {
			limit = m.RampDailyLimit
		}
		if tier := tiers.Tier(m.RampWeek()).CampaignLimit; tier < limit {
			limit = tier
		}
		return limit
	default:
		limit := m.DailyLimit
		if tier := tiers.Tier(1).CampaignLimit; tier < limit {
			limit = tier
		}
		return limit
	}
}

// Reserve picks the next usable identity for the campaign and atomically
// consumes one quota slot. Candidates are walked in priority order with the
// owner's primary mailbox forced first; identities already held by another
// in-flight send of the same campaign are skipped. Returns (nil, nil) when
// every candidate is at capacity.
func (p *IdentityPool) Reserve(ctx context.Context, ownerID, campaignID uint) (*models.Mailbox, error) {
	owner, err := p.salesRepo.ByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign owner %d: %w", ownerID, err)
	}
	if owner == nil {
		return nil, ErrNoIdentityPool
	}

	candidates, err := p.mailboxRepo.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoIdentityPool
	}

	if owner.MainMailboxID != nil {
		candidates = promoteMain(candidates, *owner.MainMailboxID)
	}

	reserved, err := p.queueRepo.ReservedMailboxIDs(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	held := make(map[uint]bool, len(reserved))
	for _, id := range reserved {
		held[id] = true
	}

	tiers, coldLimit, err := p.rampLimits(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range candidates {
		if held[m.ID] {
			continue
		}
		limit := p.EffectiveDailyCap(m, tiers, coldLimit)
		if m.CurrentDailySent >= limit {
			continue
		}
		ok, err := p.mailboxRepo.TryReserveSlot(ctx, m.ID, limit)
		if err != nil {
			return nil, err
		}
		if ok {
			return m, nil
		}
		// Lost the slot to a concurrent reservation, try the next candidate
	}

	return nil, nil
}

func (p *IdentityPool) rampLimits(ctx context.Context) (models.RampTiers, int, error) {
	settings, err := p.settingsRepo.Get(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load platform settings: %w", err)
	}
	if settings == nil {
		return models.DefaultRampTiers(), 10, nil
	}
	tiers := settings.RampTiers
	if tiers == nil {
		tiers = models.DefaultRampTiers()
	}
	coldLimit := settings.ColdMailboxLimit
	if coldLimit <= 0 {
		coldLimit = 10
	}
	return tiers, coldLimit, nil
}

func promoteMain(mailboxes []*models.Mailbox, mainID uint) []*models.Mailbox {
	for i, m := range mailboxes {
		if m.ID == mainID {
			if i == 0 {
				return mailboxes
			}
			out := make([]*models.Mailbox, 0, len(mailboxes))
			out = append(out, m)
			out = append(out, mailboxes[:i]...)
			out = append(out, mailboxes[i+1:]...)
			return out
		}
	}
	return mailboxes
}
