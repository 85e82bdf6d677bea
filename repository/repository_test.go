package repository_test

import (
	"testing"
	"time"

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

func TestEmailQueueRepository_ClaimPending(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewEmailQueueRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	leads, err := fixtures.CreateQueuedLeads(campaign.ID, 1)
	require.NoError(t, err)
	entry, err := fixtures.CreateTestQueueEntry(campaign.ID, leads[0].ID, models.QueueEntryStatusPending, utils.UTCNow())
	require.NoError(t, err)

	t.Run("first claim wins", func(t *testing.T) {
		claimed, err := repo.ClaimPending(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, claimed)

		row, err := repo.ByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, models.QueueEntryStatusSending, row.Status)
		assert.Equal(t, 1, row.Attempts)
	})

	t.Run("second claim loses", func(t *testing.T) {
		claimed, err := repo.ClaimPending(ctx, entry.ID)
		require.NoError(t, err)
		assert.False(t, claimed)
	})
}

func TestEmailQueueRepository_NextDue(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewEmailQueueRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	leads, err := fixtures.CreateQueuedLeads(campaign.ID, 3)
	require.NoError(t, err)

	now := utils.UTCNow()
	notBefore := now.Add(-time.Hour)

	// Too old for pickup, the sweeper re-plans these
	stale, err := fixtures.CreateTestQueueEntry(campaign.ID, leads[0].ID, models.QueueEntryStatusPending, now.Add(-2*time.Hour))
	require.NoError(t, err)
	due, err := fixtures.CreateTestQueueEntry(campaign.ID, leads[1].ID, models.QueueEntryStatusPending, now.Add(-10*time.Minute))
	require.NoError(t, err)
	_, err = fixtures.CreateTestQueueEntry(campaign.ID, leads[2].ID, models.QueueEntryStatusPending, now.Add(time.Hour))
	require.NoError(t, err)

	got, err := repo.NextDue(ctx, campaign.ID, notBefore, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, due.ID, got.ID)
	assert.NotEqual(t, stale.ID, got.ID)

	t.Run("nothing due returns nil", func(t *testing.T) {
		got, err := repo.NextDue(ctx, campaign.ID, now.Add(-time.Minute), now)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestEmailQueueRepository_CancelLive(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewEmailQueueRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	leads, err := fixtures.CreateQueuedLeads(campaign.ID, 3)
	require.NoError(t, err)

	now := utils.UTCNow()
	_, err = fixtures.CreateTestQueueEntry(campaign.ID, leads[0].ID, models.QueueEntryStatusPending, now)
	require.NoError(t, err)
	_, err = fixtures.CreateTestQueueEntry(campaign.ID, leads[1].ID, models.QueueEntryStatusSending, now)
	require.NoError(t, err)
	sent, err := fixtures.CreateTestQueueEntry(campaign.ID, leads[2].ID, models.QueueEntryStatusSent, now)
	require.NoError(t, err)

	cancelled, err := repo.CancelLive(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cancelled)

	live, err := repo.CountLive(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), live)

	// Settled entries are untouched
	row, err := repo.ByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueEntryStatusSent, row.Status)
}

func TestEmailQueueRepository_ReleaseStuckSending(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewEmailQueueRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	leads, err := fixtures.CreateQueuedLeads(campaign.ID, 2)
	require.NoError(t, err)

	now := utils.UTCNow()
	stuck, err := fixtures.CreateTestQueueEntry(campaign.ID, leads[0].ID, models.QueueEntryStatusSending, now)
	require.NoError(t, err)
	fresh, err := fixtures.CreateTestQueueEntry(campaign.ID, leads[1].ID, models.QueueEntryStatusSending, now)
	require.NoError(t, err)

	// Age one entry past the cutoff
	err = testDB.DB.Exec("UPDATE email_queue_entries SET updated_at = ? WHERE id = ?",
		now.Add(-20*time.Minute), stuck.ID).Error
	require.NoError(t, err)
	err = testDB.DB.Exec("UPDATE email_queue_entries SET updated_at = ? WHERE id = ?",
		now, fresh.ID).Error
	require.NoError(t, err)

	released, err := repo.ReleaseStuckSending(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	row, err := repo.ByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueEntryStatusPending, row.Status)
	assert.Nil(t, row.MailboxID)

	row, err = repo.ByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueEntryStatusSending, row.Status)
}

func TestEmailQueueRepository_DeleteSettledBefore(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewEmailQueueRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	leads, err := fixtures.CreateQueuedLeads(campaign.ID, 2)
	require.NoError(t, err)

	now := utils.UTCNow()
	old, err := fixtures.CreateTestQueueEntry(campaign.ID, leads[0].ID, models.QueueEntryStatusSent, now)
	require.NoError(t, err)
	pending, err := fixtures.CreateTestQueueEntry(campaign.ID, leads[1].ID, models.QueueEntryStatusPending, now)
	require.NoError(t, err)

	err = testDB.DB.Exec("UPDATE email_queue_entries SET updated_at = ?", now.Add(-48*time.Hour)).Error
	require.NoError(t, err)

	deleted, err := repo.DeleteSettledBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// Live entries survive retention no matter how old
	row, err := repo.ByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueEntryStatusPending, row.Status)

	_, err = repo.ByID(ctx, old.ID)
	assert.Error(t, err)
}

func TestMailboxRepository_TryReserveSlot(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewMailboxRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	mailbox, err := fixtures.CreateTestMailbox(sp.ID, models.RampStatusActive, 50)
	require.NoError(t, err)

	// Cap of 2: two reservations succeed, the third loses the race
	ok, err := repo.TryReserveSlot(ctx, mailbox.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.TryReserveSlot(ctx, mailbox.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.TryReserveSlot(ctx, mailbox.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	row, err := repo.ByID(ctx, mailbox.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, row.CurrentDailySent)
}

func TestMailboxRepository_DailyRollover(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewMailboxRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	warming, err := fixtures.CreateTestMailbox(sp.ID, models.RampStatusWarming, 20)
	require.NoError(t, err)
	_, err = fixtures.CreateTestMailbox(sp.ID, models.RampStatusActive, 50)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = repo.TryReserveSlot(ctx, warming.ID, 20)
		require.NoError(t, err)
	}

	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)
	dayStart := utils.StartOfDay(utils.UTCNow(), loc)

	// Ramp advances first, gated on the same last_reset_date stamp that the
	// counter reset writes afterwards.
	advanced, err := repo.AdvanceRampDays(ctx, dayStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), advanced)

	reset, err := repo.ResetDailyCountersBefore(ctx, dayStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reset)

	row, err := repo.ByID(ctx, warming.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, row.CurrentDailySent)
	assert.Equal(t, 2, row.RampDay)

	t.Run("idempotent within the same day", func(t *testing.T) {
		advanced, err := repo.AdvanceRampDays(ctx, dayStart)
		require.NoError(t, err)
		assert.Equal(t, int64(0), advanced)

		reset, err := repo.ResetDailyCountersBefore(ctx, dayStart)
		require.NoError(t, err)
		assert.Equal(t, int64(0), reset)
	})

	t.Run("promotes past week five", func(t *testing.T) {
		err := testDB.DB.Exec("UPDATE mailboxes SET ramp_day = 36 WHERE id = ?", warming.ID).Error
		require.NoError(t, err)

		_, err = repo.AdvanceRampDays(ctx, dayStart.Add(24*time.Hour))
		require.NoError(t, err)

		row, err := repo.ByID(ctx, warming.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RampStatusActive, row.RampStatus)
	})
}

func TestMailboxRepository_ListActiveByOwner(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewMailboxRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	first, err := fixtures.CreateTestMailbox(sp.ID, models.RampStatusActive, 50)
	require.NoError(t, err)
	second, err := fixtures.CreateTestMailbox(sp.ID, models.RampStatusActive, 50)
	require.NoError(t, err)
	inactive, err := fixtures.CreateTestMailbox(sp.ID, models.RampStatusActive, 50)
	require.NoError(t, err)

	err = testDB.DB.Exec("UPDATE mailboxes SET is_active = false WHERE id = ?", inactive.ID).Error
	require.NoError(t, err)
	// Lower priority value ranks first
	err = testDB.DB.Exec("UPDATE mailboxes SET priority = 10 WHERE id = ?", second.ID).Error
	require.NoError(t, err)

	rows, err := repo.ListActiveByOwner(ctx, sp.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].ID)
	assert.Equal(t, first.ID, rows[1].ID)
}

func TestCampaignLeadRepository_ListQueueCandidates(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewCampaignLeadRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)

	queued, err := fixtures.CreateQueuedLeads(campaign.ID, 2)
	require.NoError(t, err)

	// Queued but already buffered: excluded
	buffered, err := fixtures.CreateQueuedLeads(campaign.ID, 1)
	require.NoError(t, err)
	_, err = fixtures.CreateTestQueueEntry(campaign.ID, buffered[0].ID, models.QueueEntryStatusPending, utils.UTCNow())
	require.NoError(t, err)

	// Blocked lead: excluded
	blockedLead, err := fixtures.CreateTestLead()
	require.NoError(t, err)
	err = testDB.DB.Exec("UPDATE leads SET is_blocked = true WHERE id = ?", blockedLead.ID).Error
	require.NoError(t, err)
	_, err = fixtures.CreateTestCampaignLead(campaign.ID, blockedLead.ID, models.CampaignLeadStatusQueued)
	require.NoError(t, err)

	// Planned lead: not yet eligible
	plannedLead, err := fixtures.CreateTestLead()
	require.NoError(t, err)
	_, err = fixtures.CreateTestCampaignLead(campaign.ID, plannedLead.ID, models.CampaignLeadStatusPlanned)
	require.NoError(t, err)

	rows, err := repo.ListQueueCandidates(ctx, campaign.ID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, queued[0].ID, rows[0].ID)
	assert.Equal(t, queued[1].ID, rows[1].ID)

	t.Run("higher priority ranks first", func(t *testing.T) {
		err := testDB.DB.Exec("UPDATE campaign_leads SET priority = 5 WHERE id = ?", queued[1].ID).Error
		require.NoError(t, err)

		rows, err := repo.ListQueueCandidates(ctx, campaign.ID, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, queued[1].ID, rows[0].ID)
	})
}

func TestCampaignRepository_UpdateStatusGuarded(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewCampaignRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)

	ok, err := repo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusActive, models.CampaignStatusPaused)
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale transition loses, the row already moved on
	ok, err = repo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusActive, models.CampaignStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	row, err := repo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusPaused, row.Status)
}

func TestCampaignRepository_RecoveryCooldown(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewCampaignRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)

	until := utils.UTCNow().Add(time.Hour)
	require.NoError(t, repo.SetRecoveryCooldown(ctx, campaign.ID, &until))

	row, err := repo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, row.RecoveryCooldownUntil)

	require.NoError(t, repo.SetRecoveryCooldown(ctx, campaign.ID, nil))

	row, err = repo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Nil(t, row.RecoveryCooldownUntil)
}

func TestSendLogRepository_DuplicateGuard(t *testing.T) {
	testDB, fixtures := setupTestDB(t)
	ctx := testingutil.CreateTestContext()
	repo := repository.NewSendLogRepository(testDB.DB)

	sp, err := fixtures.CreateTestSalesperson()
	require.NoError(t, err)
	mailbox, err := fixtures.CreateTestMailbox(sp.ID, models.RampStatusActive, 50)
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(sp.ID, models.CampaignStatusActive)
	require.NoError(t, err)
	lead, err := fixtures.CreateTestLead()
	require.NoError(t, err)
	other, err := fixtures.CreateTestLead()
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, &models.SendLog{
		CampaignID: campaign.ID,
		LeadID:     lead.ID,
		MailboxID:  mailbox.ID,
		Status:     models.SendLogStatusSent,
	}))
	errMsg := "smtp timeout"
	require.NoError(t, repo.Save(ctx, &models.SendLog{
		CampaignID: campaign.ID,
		LeadID:     other.ID,
		MailboxID:  mailbox.ID,
		Status:     models.SendLogStatusError,
		Error:      &errMsg,
	}))

	sent, err := repo.HasSent(ctx, campaign.ID, lead.ID)
	require.NoError(t, err)
	assert.True(t, sent)

	// A failed attempt does not count as sent
	sent, err = repo.HasSent(ctx, campaign.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, sent)

	count, err := repo.CountSentSince(ctx, campaign.ID, utils.UTCNow().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	last, err := repo.LastSentAt(ctx, campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
}
