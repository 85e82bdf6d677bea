package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Successful deliveries recorded by the worker pool
	emailsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_emails_sent_total",
			Help: "Total number of emails delivered successfully",
		},
	)

	// Delivery attempts that ended in a collaborator error
	emailsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_emails_failed_total",
			Help: "Total number of delivery attempts that failed",
		},
	)

	// Deferred queue entries partitioned by reason
	deferralsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_deferrals_total",
			Help: "Total number of queue entries deferred to a later slot",
		},
		[]string{"reason"},
	)

	// Reservation attempts lost to a concurrent dispatcher
	reservationConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_reservation_conflicts_total",
			Help: "Total number of reservation attempts that lost a claim race",
		},
	)

	// Stuck sending entries returned to pending by the sweeper
	sweeperReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_sweeper_released_total",
			Help: "Total number of stale sending entries released back to pending",
		},
	)

	// Queues rebuilt by the sweeper for campaigns that lost theirs
	queueReinitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_queue_reinits_total",
			Help: "Total number of campaign queues re-initialized by the sweeper",
		},
	)

	// Delivery call latency observed by workers
	sendDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_send_duration_seconds",
			Help:    "Delivery collaborator call latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

const (
	deferReasonWindow      = "outside_window"
	deferReasonCatchUp     = "catch_up_pacing"
	deferReasonNoIdentity  = "no_identity"
	deferReasonCampaignCap = "campaign_daily_cap"
	deferReasonStale       = "stale_replan"
)
