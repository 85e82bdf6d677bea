package dispatch

import (
	"testing"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/stretchr/testify/assert"
)

func TestEffectiveDailyCapCold(t *testing.T) {
	p := NewIdentityPool(nil, nil, nil, nil)
	tiers := models.DefaultRampTiers()

	m := &models.Mailbox{RampStatus: models.RampStatusCold, DailyLimit: 100}
	assert.Equal(t, 10, p.EffectiveDailyCap(m, tiers, 10))

	// The cold cap ignores the configured daily limit entirely
	m.DailyLimit = 3
	assert.Equal(t, 10, p.EffectiveDailyCap(m, tiers, 10))
}

func TestEffectiveDailyCapWarming(t *testing.T) {
	p := NewIdentityPool(nil, nil, nil, nil)
	tiers := models.RampTiers{
		1: {WarmupLimit: 15, CampaignLimit: 10},
		2: {WarmupLimit: 20, CampaignLimit: 25},
		3: {WarmupLimit: 25, CampaignLimit: 30},
		4: {WarmupLimit: 30, CampaignLimit: 35},
		5: {WarmupLimit: 35, CampaignLimit: 40},
	}

	// Week 2, ramp limit is the tightest bound
	m := &models.Mailbox{
		RampStatus:     models.RampStatusWarming,
		DailyLimit:     50,
		RampDailyLimit: 20,
		RampDay:        8,
	}
	assert.Equal(t, 20, p.EffectiveDailyCap(m, tiers, 10))

	// Week 1, the tier limit is the tightest bound
	m.RampDay = 3
	m.RampDailyLimit = 40
	assert.Equal(t, 10, p.EffectiveDailyCap(m, tiers, 10))

	// Zero ramp limit means unset, only daily limit and tier apply
	m.RampDay = 30
	m.RampDailyLimit = 0
	assert.Equal(t, 40, p.EffectiveDailyCap(m, tiers, 10))
}

func TestEffectiveDailyCapActive(t *testing.T) {
	p := NewIdentityPool(nil, nil, nil, nil)
	tiers := models.RampTiers{
		1: {WarmupLimit: 15, CampaignLimit: 30},
	}

	m := &models.Mailbox{RampStatus: models.RampStatusActive, DailyLimit: 50}
	assert.Equal(t, 30, p.EffectiveDailyCap(m, tiers, 10))

	m.DailyLimit = 25
	assert.Equal(t, 25, p.EffectiveDailyCap(m, tiers, 10))
}

func TestRampWeekClamping(t *testing.T) {
	cases := []struct {
		day  int
		week int
	}{
		{0, 1},
		{1, 1},
		{7, 1},
		{8, 2},
		{14, 2},
		{35, 5},
		{90, 5},
	}
	for _, tc := range cases {
		m := &models.Mailbox{RampDay: tc.day}
		assert.Equal(t, tc.week, m.RampWeek(), "ramp day %d", tc.day)
	}
}

func TestPromoteMain(t *testing.T) {
	a := &models.Mailbox{ID: 1}
	b := &models.Mailbox{ID: 2}
	c := &models.Mailbox{ID: 3}

	out := promoteMain([]*models.Mailbox{a, b, c}, 3)
	assert.Equal(t, []*models.Mailbox{c, a, b}, out)

	// Already first, order unchanged
	out = promoteMain([]*models.Mailbox{a, b, c}, 1)
	assert.Equal(t, []*models.Mailbox{a, b, c}, out)

	// Unknown main, order unchanged
	out = promoteMain([]*models.Mailbox{a, b, c}, 9)
	assert.Equal(t, []*models.Mailbox{a, b, c}, out)
}
