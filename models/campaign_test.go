package models

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestCampaignStatusValid(t *testing.T) {
	assert.True(t, CampaignStatusScheduled.Valid())
	assert.True(t, CampaignStatusActive.Valid())
	assert.True(t, CampaignStatusPaused.Valid())
	assert.True(t, CampaignStatusCompleted.Valid())
	assert.True(t, CampaignStatusCancelled.Valid())
	assert.False(t, CampaignStatus("draft").Valid())
	assert.False(t, CampaignStatus("").Valid())
}

func TestCampaignCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    CampaignStatus
		to      CampaignStatus
		allowed bool
	}{
		{CampaignStatusScheduled, CampaignStatusActive, true},
		{CampaignStatusScheduled, CampaignStatusCancelled, true},
		{CampaignStatusScheduled, CampaignStatusPaused, false},
		{CampaignStatusActive, CampaignStatusPaused, true},
		{CampaignStatusActive, CampaignStatusCompleted, true},
		{CampaignStatusActive, CampaignStatusCancelled, true},
		{CampaignStatusActive, CampaignStatusScheduled, false},
		{CampaignStatusPaused, CampaignStatusActive, true},
		{CampaignStatusPaused, CampaignStatusCancelled, true},
		{CampaignStatusPaused, CampaignStatusCompleted, false},
		{CampaignStatusCompleted, CampaignStatusActive, false},
		{CampaignStatusCancelled, CampaignStatusActive, false},
	}
	for _, tc := range cases {
		c := &Campaign{Status: tc.from}
		assert.Equal(t, tc.allowed, c.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCampaignIsTerminal(t *testing.T) {
	assert.True(t, (&Campaign{Status: CampaignStatusCompleted}).IsTerminal())
	assert.True(t, (&Campaign{Status: CampaignStatusCancelled}).IsTerminal())
	assert.False(t, (&Campaign{Status: CampaignStatusActive}).IsTerminal())
	assert.False(t, (&Campaign{Status: CampaignStatusPaused}).IsTerminal())
}

func TestCampaignAllowsWeekday(t *testing.T) {
	c := &Campaign{AllowedWeekdays: pq.StringArray{"MON", "WED", "FRI"}}
	assert.True(t, c.AllowsWeekday("MON"))
	assert.True(t, c.AllowsWeekday("FRI"))
	assert.False(t, c.AllowsWeekday("SUN"))
	assert.False(t, c.AllowsWeekday(""))
}

func TestRampTiersTierClamps(t *testing.T) {
	tiers := RampTiers{
		1: {WarmupLimit: 10, CampaignLimit: 5},
		5: {WarmupLimit: 50, CampaignLimit: 45},
	}

	assert.Equal(t, 5, tiers.Tier(0).CampaignLimit)
	assert.Equal(t, 5, tiers.Tier(1).CampaignLimit)
	assert.Equal(t, 45, tiers.Tier(5).CampaignLimit)
	assert.Equal(t, 45, tiers.Tier(12).CampaignLimit)

	// Missing week falls back to the default tier
	assert.Equal(t, 10, tiers.Tier(3).CampaignLimit)
}

func TestDefaultRampTiers(t *testing.T) {
	tiers := DefaultRampTiers()
	assert.Len(t, tiers, 5)
	for week := 1; week <= 5; week++ {
		assert.Equal(t, 15, tiers[week].WarmupLimit)
		assert.Equal(t, 10, tiers[week].CampaignLimit)
	}
}

func TestQueueEntryStatusIsSettled(t *testing.T) {
	assert.True(t, QueueEntryStatusSent.IsSettled())
	assert.True(t, QueueEntryStatusFailed.IsSettled())
	assert.True(t, QueueEntryStatusCancelled.IsSettled())
	assert.False(t, QueueEntryStatusPending.IsSettled())
	assert.False(t, QueueEntryStatusSending.IsSettled())
}
