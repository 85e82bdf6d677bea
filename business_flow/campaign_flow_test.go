package businessflow

import (
	"testing"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/app/dispatch"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	testingutil "github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/testing"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"github.com/google/uuid"
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

func newTestFlow(t *testing.T, testDB *testingutil.TestDB) CampaignFlow {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	queueRepo := repository.NewEmailQueueRepository(testDB.DB)
	clRepo := repository.NewCampaignLeadRepository(testDB.DB)
	logRepo := repository.NewSendLogRepository(testDB.DB)
	window := dispatch.NewWindowValidator(nil, loc)
	queue := dispatch.NewDispatchQueue(queueRepo, clRepo, logRepo,
		dispatch.NewPacingCalculator(), window, 20)

	return NewCampaignFlow(
		repository.NewCampaignRepository(testDB.DB),
		clRepo, queueRepo, logRepo, queue, window, testDB.DB,
	)
}

func TestStartCampaign(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	flow := newTestFlow(t, testDB)
	campaignRepo := repository.NewCampaignRepository(testDB.DB)
	queueRepo := repository.NewEmailQueueRepository(testDB.DB)

	t.Run("first start builds the queue", func(t *testing.T) {
		sp, err := fixtures.CreateTestSalesperson()
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusScheduled)
		require.NoError(t, err)
		_, err = fixtures.CreateQueuedLeads(campaign.ID, 3)
		require.NoError(t, err)

		resp, err := flow.StartCampaign(ctx, campaign.UUID.String())
		require.NoError(t, err)
		assert.Equal(t, string(models.CampaignStatusActive), resp.Status)

		row, err := campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusActive, row.Status)
		assert.NotNil(t, row.SendingStartedAt)

		live, err := queueRepo.CountLive(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), live)
	})

	t.Run("resume from paused keeps the existing queue", func(t *testing.T) {
		sp, err := fixtures.CreateTestSalesperson()
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusPaused)
		require.NoError(t, err)
		err = testDB.DB.Exec("UPDATE campaigns SET sending_started_at = ? WHERE id = ?",
			utils.UTCNow().Add(-time.Hour), campaign.ID).Error
		require.NoError(t, err)
		_, err = fixtures.CreateQueuedLeads(campaign.ID, 3)
		require.NoError(t, err)

		resp, err := flow.StartCampaign(ctx, campaign.UUID.String())
		require.NoError(t, err)
		assert.Equal(t, string(models.CampaignStatusActive), resp.Status)

		// No rebuild on resume, the sweeper refills if needed
		live, err := queueRepo.CountLive(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), live)
	})

	t.Run("terminal campaign cannot start", func(t *testing.T) {
		sp, err := fixtures.CreateTestSalesperson()
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusCancelled)
		require.NoError(t, err)

		_, err = flow.StartCampaign(ctx, campaign.UUID.String())
		require.Error(t, err)
		assert.True(t, IsCampaignAlreadyTerminal(err))
	})

	t.Run("unknown campaign", func(t *testing.T) {
		_, err := flow.StartCampaign(ctx, uuid.NewString())
		require.Error(t, err)
		assert.True(t, IsCampaignNotFound(err))
	})
}

func TestPauseCampaign(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	flow := newTestFlow(t, testDB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)

	resp, err := flow.PauseCampaign(ctx, campaign.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, string(models.CampaignStatusPaused), resp.Status)

	t.Run("only active campaigns pause", func(t *testing.T) {
		_, err := flow.PauseCampaign(ctx, campaign.UUID.String())
		require.Error(t, err)
		assert.True(t, IsCampaignNotActive(err))
	})
}

func TestCancelCampaign(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	flow := newTestFlow(t, testDB)
	queueRepo := repository.NewEmailQueueRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	leads, err := fixtures.CreateQueuedLeads(campaign.ID, 2)
	require.NoError(t, err)
	for _, cl := range leads {
		_, err = fixtures.CreateTestQueueEntry(campaign.ID, cl.ID, models.QueueEntryStatusPending, utils.UTCNow())
		require.NoError(t, err)
	}

	resp, err := flow.CancelCampaign(ctx, campaign.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, string(models.CampaignStatusCancelled), resp.Status)

	live, err := queueRepo.CountLive(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), live)

	t.Run("cancel twice fails", func(t *testing.T) {
		_, err := flow.CancelCampaign(ctx, campaign.UUID.String())
		require.Error(t, err)
		assert.True(t, IsCampaignAlreadyTerminal(err))
	})
}

func TestReinitializeQueue(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	flow := newTestFlow(t, testDB)
	campaignRepo := repository.NewCampaignRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	leads, err := fixtures.CreateQueuedLeads(campaign.ID, 2)
	require.NoError(t, err)
	for _, cl := range leads {
		_, err = fixtures.CreateTestQueueEntry(campaign.ID, cl.ID, models.QueueEntryStatusPending, utils.UTCNow())
		require.NoError(t, err)
	}
	until := utils.UTCNow().Add(time.Hour)
	require.NoError(t, campaignRepo.SetRecoveryCooldown(ctx, campaign.ID, &until))

	resp, err := flow.ReinitializeQueue(ctx, campaign.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Cancelled)
	assert.Equal(t, 2, resp.Queued)

	// The rebuild lifts the recovery fence
	row, err := campaignRepo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Nil(t, row.RecoveryCooldownUntil)
}

func TestSendingInfo(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	flow := newTestFlow(t, testDB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	mailbox, err := fixtures.CreateTestMailbox(sp.ID, models.RampStatusActive, 50)
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)

	_, err = fixtures.CreateQueuedLeads(campaign.ID, 2)
	require.NoError(t, err)
	sentLead, err := fixtures.CreateTestLead()
	require.NoError(t, err)
	_, err = fixtures.CreateTestCampaignLead(campaign.ID, sentLead.ID, models.CampaignLeadStatusSent)
	require.NoError(t, err)

	logRepo := repository.NewSendLogRepository(testDB.DB)
	require.NoError(t, logRepo.Save(ctx, &models.SendLog{
		CampaignID: campaign.ID,
		LeadID:     sentLead.ID,
		MailboxID:  mailbox.ID,
		Status:     models.SendLogStatusSent,
	}))

	resp, err := flow.SendingInfo(ctx, campaign.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalLeads)
	assert.Equal(t, int64(2), resp.Queued)
	assert.Equal(t, int64(1), resp.Sent)
	assert.Equal(t, int64(1), resp.SentToday)
	assert.NotNil(t, resp.SendingStartedAt)
}

func TestNextSendTime(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	flow := newTestFlow(t, testDB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)

	t.Run("empty queue", func(t *testing.T) {
		resp, err := flow.NextSendTime(ctx, campaign.UUID.String())
		require.NoError(t, err)
		assert.Nil(t, resp.NextSendAt)
		assert.Equal(t, "no pending queue entries", resp.Reason)
	})

	t.Run("earliest pending entry", func(t *testing.T) {
		leads, err := fixtures.CreateQueuedLeads(campaign.ID, 2)
		require.NoError(t, err)
		at := utils.UTCNow().Add(5 * time.Minute)
		_, err = fixtures.CreateTestQueueEntry(campaign.ID, leads[0].ID, models.QueueEntryStatusPending, at.Add(10*time.Minute))
		require.NoError(t, err)
		_, err = fixtures.CreateTestQueueEntry(campaign.ID, leads[1].ID, models.QueueEntryStatusPending, at)
		require.NoError(t, err)

		resp, err := flow.NextSendTime(ctx, campaign.UUID.String())
		require.NoError(t, err)
		require.NotNil(t, resp.NextSendAt)
		assert.Equal(t, at.UTC().Format(time.RFC3339), *resp.NextSendAt)
	})

	t.Run("inactive campaign reports no slot", func(t *testing.T) {
		paused, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusPaused)
		require.NoError(t, err)

		resp, err := flow.NextSendTime(ctx, paused.UUID.String())
		require.NoError(t, err)
		assert.Nil(t, resp.NextSendAt)
		assert.Equal(t, "campaign is not active", resp.Reason)
	})
}
