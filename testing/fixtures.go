// Package testing provides test utilities and database setup for testing the dispatch engine
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"github.com/lib/pq"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestSalesperson creates a salesperson with a unique email
func (tf *TestFixtures) CreateTestSalesperson() (*models.Salesperson, error) {
	suffix := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	sp := &models.Salesperson{
		FirstName: "Anna",
		LastName:  "Kowalska",
		Email:     fmt.Sprintf("anna.kowalska.%s@example.com", suffix),
		IsActive:  true,
	}
	if err := tf.DB.DB.Create(sp).Error; err != nil {
		return nil, fmt.Errorf("failed to create test salesperson: %w", err)
	}
	return sp, nil
}

// CreateTestMailbox creates an active mailbox for the salesperson
func (tf *TestFixtures) CreateTestMailbox(salespersonID uint, rampStatus models.RampStatus, dailyLimit int) (*models.Mailbox, error) {
	suffix := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	m := &models.Mailbox{
		SalespersonID: salespersonID,
		Email:         fmt.Sprintf("outreach.%s@example.com", suffix),
		SMTPHost:      "smtp.example.com",
		SMTPPort:      587,
		SMTPUsername:  fmt.Sprintf("outreach.%s@example.com", suffix),
		Priority:      100,
		IsActive:      true,
		DailyLimit:    dailyLimit,
		RampStatus:    rampStatus,
	}
	if rampStatus == models.RampStatusWarming {
		m.RampDay = 1
		m.RampDailyLimit = dailyLimit
	}
	if err := tf.DB.DB.Create(m).Error; err != nil {
		return nil, fmt.Errorf("failed to create test mailbox: %w", err)
	}
	return m, nil
}

// CreateTestCampaign creates an active campaign with an always-open window
func (tf *TestFixtures) CreateTestCampaign(salespersonID uint, status models.CampaignStatus) (*models.Campaign, error) {
	c := &models.Campaign{
		SalespersonID:      salespersonID,
		Name:               fmt.Sprintf("Test Campaign %d", rand.Intn(100000)),
		Status:             status,
		AllowedWeekdays:    pq.StringArray{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"},
		WindowStartHour:    0,
		WindowStartMinute:  0,
		WindowEndHour:      23,
		WindowEndMinute:    59,
		RespectHolidays:    false,
		DelayBetweenEmails: 60,
		MaxEmailsPerDay:    50,
		ScheduledAt:        utils.ToPtr(utils.UTCNow().Add(-time.Hour)),
	}
	if status == models.CampaignStatusActive {
		c.SendingStartedAt = utils.ToPtr(utils.UTCNow().Add(-time.Hour))
	}
	if err := tf.DB.DB.Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return c, nil
}

// CreateTestLead creates a lead with a unique email
func (tf *TestFixtures) CreateTestLead() (*models.Lead, error) {
	suffix := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	l := &models.Lead{
		Email:     fmt.Sprintf("lead.%s@example.com", suffix),
		FirstName: utils.ToPtr("Jan"),
		LastName:  utils.ToPtr("Nowak"),
	}
	if err := tf.DB.DB.Create(l).Error; err != nil {
		return nil, fmt.Errorf("failed to create test lead: %w", err)
	}
	return l, nil
}

// CreateTestCampaignLead attaches a lead to a campaign in the given status
func (tf *TestFixtures) CreateTestCampaignLead(campaignID, leadID uint, status models.CampaignLeadStatus) (*models.CampaignLead, error) {
	cl := &models.CampaignLead{
		CampaignID: campaignID,
		LeadID:     leadID,
		Status:     status,
	}
	if err := tf.DB.DB.Create(cl).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign lead: %w", err)
	}
	return cl, nil
}

// CreateQueuedLeads creates n leads attached to the campaign in queued status
func (tf *TestFixtures) CreateQueuedLeads(campaignID uint, n int) ([]*models.CampaignLead, error) {
	out := make([]*models.CampaignLead, 0, n)
	for i := 0; i < n; i++ {
		lead, err := tf.CreateTestLead()
		if err != nil {
			return nil, err
		}
		cl, err := tf.CreateTestCampaignLead(campaignID, lead.ID, models.CampaignLeadStatusQueued)
		if err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	return out, nil
}

// CreateTestQueueEntry creates a queue entry in the given status
func (tf *TestFixtures) CreateTestQueueEntry(campaignID, campaignLeadID uint, status models.QueueEntryStatus, scheduledAt time.Time) (*models.EmailQueueEntry, error) {
	e := &models.EmailQueueEntry{
		CampaignID:     campaignID,
		CampaignLeadID: campaignLeadID,
		Status:         status,
		ScheduledAt:    scheduledAt,
	}
	if err := tf.DB.DB.Create(e).Error; err != nil {
		return nil, fmt.Errorf("failed to create test queue entry: %w", err)
	}
	return e, nil
}

// CreateTestPlatformSettings creates a settings row with the default tiers
func (tf *TestFixtures) CreateTestPlatformSettings() (*models.PlatformSettings, error) {
	ps := &models.PlatformSettings{
		RampTiers:        models.DefaultRampTiers(),
		ColdMailboxLimit: 10,
	}
	if err := tf.DB.DB.Create(ps).Error; err != nil {
		return nil, fmt.Errorf("failed to create test platform settings: %w", err)
	}
	return ps, nil
}
