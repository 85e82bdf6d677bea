// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Campaign, error)
	ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	UpdateStatus(ctx context.Context, campaignID uint, from, to models.CampaignStatus) (bool, error)
	SetSendingStarted(ctx context.Context, campaignID uint, at time.Time) error
	SetSendingCompleted(ctx context.Context, campaignID uint, at time.Time) error
	SetRecoveryCooldown(ctx context.Context, campaignID uint, until *time.Time) error
	SetEstimatedEndDate(ctx context.Context, campaignID uint, date *time.Time) error
}

// SalespersonRepository defines operations for salespeople
type SalespersonRepository interface {
	Repository[models.Salesperson, models.SalespersonFilter]
	ByEmail(ctx context.Context, email string) (*models.Salesperson, error)
}

// LeadRepository defines operations for leads
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]
	ByEmail(ctx context.Context, email string) (*models.Lead, error)
}

// CampaignLeadRepository defines operations for campaign leads
type CampaignLeadRepository interface {
	Repository[models.CampaignLead, models.CampaignLeadFilter]
	ListQueueCandidates(ctx context.Context, campaignID uint, limit int) ([]*models.CampaignLead, error)
	CountByStatus(ctx context.Context, campaignID uint, status models.CampaignLeadStatus) (int64, error)
	CountRemaining(ctx context.Context, campaignID uint) (int64, error)
	UpdateStatus(ctx context.Context, campaignLeadID uint, status models.CampaignLeadStatus) error
	MarkSent(ctx context.Context, campaignLeadID uint, sentAt time.Time) error
}

// EmailQueueRepository defines operations for dispatch queue entries
type EmailQueueRepository interface {
	Repository[models.EmailQueueEntry, models.EmailQueueEntryFilter]
	NextDue(ctx context.Context, campaignID uint, notBefore, now time.Time) (*models.EmailQueueEntry, error)
	ClaimPending(ctx context.Context, entryID uint) (bool, error)
	AssignMailbox(ctx context.Context, entryID, mailboxID uint) error
	MarkSent(ctx context.Context, entryID uint, sentAt time.Time) error
	MarkFailed(ctx context.Context, entryID uint, sendError string) error
	ReturnToPending(ctx context.Context, entryID uint) error
	Cancel(ctx context.Context, entryID uint) error
	CancelLive(ctx context.Context, campaignID uint) (int64, error)
	DeferTo(ctx context.Context, entryID uint, scheduledAt time.Time) error
	CountLive(ctx context.Context, campaignID uint) (int64, error)
	LastScheduledAt(ctx context.Context, campaignID uint) (*time.Time, error)
	ReservedMailboxIDs(ctx context.Context, campaignID uint) ([]uint, error)
	HasStuckSending(ctx context.Context, campaignID uint, cutoff time.Time) (bool, error)
	ReleaseStuckSending(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MailboxRepository defines operations for mailboxes
type MailboxRepository interface {
	Repository[models.Mailbox, models.MailboxFilter]
	ListActiveByOwner(ctx context.Context, salespersonID uint) ([]*models.Mailbox, error)
	TryReserveSlot(ctx context.Context, mailboxID uint, dailyCap int) (bool, error)
	MarkUsed(ctx context.Context, mailboxID uint, at time.Time) error
	ResetDailyCountersBefore(ctx context.Context, dayStart time.Time) (int64, error)
	AdvanceRampDays(ctx context.Context, dayStart time.Time) (int64, error)
}

// SendLogRepository defines operations for send logs
type SendLogRepository interface {
	Repository[models.SendLog, models.SendLogFilter]
	LastSentAt(ctx context.Context, campaignID uint) (*time.Time, error)
	CountSentSince(ctx context.Context, campaignID uint, since time.Time) (int64, error)
	HasSent(ctx context.Context, campaignID, leadID uint) (bool, error)
}

// HolidayRepository defines operations for cached holidays
type HolidayRepository interface {
	Repository[models.Holiday, models.HolidayFilter]
	ExistsOnDate(ctx context.Context, date time.Time, countryCode string) (bool, error)
	HasYear(ctx context.Context, countryCode string, year int) (bool, error)
	ReplaceYear(ctx context.Context, countryCode string, year int, holidays []*models.Holiday) error
}

// PlatformSettingsRepository defines operations for platform settings
type PlatformSettingsRepository interface {
	Repository[models.PlatformSettings, models.PlatformSettingsFilter]
	Get(ctx context.Context) (*models.PlatformSettings, error)
}
