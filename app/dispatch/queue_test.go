package dispatch

import (
	"testing"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/config"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	testingutil "github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/testing"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*testingutil.TestDB, *testingutil.TestFixtures) {
	t.Helper()
	testDB, err := testingutil.SetupTestDB()
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() {
		if err := testDB.TeardownTestDB(); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	})
	return testDB, testingutil.NewTestFixtures(testDB)
}

func newTestQueue(t *testing.T, testDB *testingutil.TestDB, bufferSize int) *DispatchQueue {
	t.Helper()
	return NewDispatchQueue(
		repository.NewEmailQueueRepository(testDB.DB),
		repository.NewCampaignLeadRepository(testDB.DB),
		repository.NewSendLogRepository(testDB.DB),
		NewPacingCalculator(),
		NewWindowValidator(nil, warsawLocation(t)),
		bufferSize,
	)
}

func TestDispatchQueueInitialize(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	queue := newTestQueue(t, testDB, 20)
	queueRepo := repository.NewEmailQueueRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	_, err = fixtures.CreateQueuedLeads(campaign.ID, 30)
	require.NoError(t, err)

	now := utils.UTCNow()
	n, err := queue.Initialize(ctx, campaign, now)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	rows, err := queueRepo.ByFilter(ctx, models.EmailQueueEntryFilter{CampaignID: &campaign.ID},
		"scheduled_at ASC, id ASC", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 20)

	// Planned slots chain strictly forward and never land in the past
	prev := now.Add(-time.Second)
	for _, row := range rows {
		assert.True(t, row.ScheduledAt.After(prev), "entry %d scheduled at %s, previous %s",
			row.ID, row.ScheduledAt, prev)
		prev = row.ScheduledAt
	}

	t.Run("no-op while live entries exist", func(t *testing.T) {
		n, err := queue.Initialize(ctx, campaign, utils.UTCNow())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestDispatchQueueInitializeSeedsFromLastSend(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	queue := newTestQueue(t, testDB, 5)
	queueRepo := repository.NewEmailQueueRepository(testDB.DB)
	logRepo := repository.NewSendLogRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	mailbox, err := fixtures.CreateTestMailbox(sp.ID, models.RampStatusActive, 50)
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	lead, err := fixtures.CreateTestLead()
	require.NoError(t, err)
	_, err = fixtures.CreateQueuedLeads(campaign.ID, 1)
	require.NoError(t, err)

	now := utils.UTCNow()
	lastSent := now.Add(-10 * time.Second)
	require.NoError(t, logRepo.Save(ctx, &models.SendLog{
		CampaignID: campaign.ID,
		LeadID:     lead.ID,
		MailboxID:  mailbox.ID,
		Status:     models.SendLogStatusSent,
		CreatedAt:  lastSent,
	}))

	n, err := queue.Initialize(ctx, campaign, now)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rows, err := queueRepo.ByFilter(ctx, models.EmailQueueEntryFilter{CampaignID: &campaign.ID}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Delay of 60s jitters to at least 48s after the last send, which is
	// still in the future relative to now.
	assert.True(t, rows[0].ScheduledAt.After(now))
	assert.False(t, rows[0].ScheduledAt.After(lastSent.Add(72*time.Second)))
}

func TestDispatchQueueReplenish(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	queue := newTestQueue(t, testDB, 5)
	queueRepo := repository.NewEmailQueueRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	_, err = fixtures.CreateQueuedLeads(campaign.ID, 4)
	require.NoError(t, err)

	now := utils.UTCNow()
	n, err := queue.Initialize(ctx, campaign, now)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	tail, err := queueRepo.LastScheduledAt(ctx, campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, tail)

	_, err = fixtures.CreateQueuedLeads(campaign.ID, 2)
	require.NoError(t, err)

	require.NoError(t, queue.Replenish(ctx, campaign, now))

	live, err := queueRepo.CountLive(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), live)

	// The appended entry chains past the previous tail
	newTail, err := queueRepo.LastScheduledAt(ctx, campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, newTail)
	assert.True(t, newTail.After(*tail))

	t.Run("full buffer is left alone", func(t *testing.T) {
		require.NoError(t, queue.Replenish(ctx, campaign, utils.UTCNow()))

		live, err := queueRepo.CountLive(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), live)
	})
}

func TestSweeperRebuildsLostQueue(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	campaignRepo := repository.NewCampaignRepository(testDB.DB)
	queueRepo := repository.NewEmailQueueRepository(testDB.DB)

	sweeper := NewSweeper(
		campaignRepo,
		repository.NewCampaignLeadRepository(testDB.DB),
		queueRepo,
		newTestQueue(t, testDB, 10),
		config.DispatchConfig{
			StalenessThreshold: 10 * time.Minute,
			RecoveryCooldown:   15 * time.Minute,
			RetentionPeriod:    30 * 24 * time.Hour,
		},
		nil,
	)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	_, err = fixtures.CreateQueuedLeads(campaign.ID, 3)
	require.NoError(t, err)

	fenced, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	_, err = fixtures.CreateQueuedLeads(fenced.ID, 3)
	require.NoError(t, err)
	until := utils.UTCNow().Add(time.Hour)
	require.NoError(t, campaignRepo.SetRecoveryCooldown(ctx, fenced.ID, &until))

	require.NoError(t, sweeper.Sweep(ctx, utils.UTCNow()))

	live, err := queueRepo.CountLive(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), live)

	// The fenced campaign stays untouched until its cool-down passes
	live, err = queueRepo.CountLive(ctx, fenced.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), live)
}
