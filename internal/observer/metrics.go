package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for message delivery metrics
	messageLabels = []string{"format", "org_id", "outcome"}
	// Labels for quota decisions
	quotaLabels = []string{"format", "org_id"}
	// Labels for schedule state transitions
	transitionLabels = []string{"org_id", "from", "to"}

	// Message submission outcomes, labeled accepted/rejected/error.
	MessagesSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_platform_messages_submitted_total",
			Help: "Total number of message submissions to the provider, labeled by outcome.",
		},
		messageLabels,
	)

	// Quota units reserved at schedule creation or immediate send time.
	QuotaUnitsReservedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_platform_quota_units_reserved_total",
			Help: "Total quota units reserved against per-org daily limits.",
		},
		quotaLabels,
	)
	QuotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_platform_quota_rejections_total",
			Help: "Total number of requests rejected by the daily quota gate.",
		},
		quotaLabels,
	)

	ScheduleTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_platform_schedule_transitions_total",
			Help: "Total number of schedule state transitions.",
		},
		transitionLabels,
	)
)

// Dispatcher worker pool metrics
var (
	dispatcherClaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sms_platform_dispatcher_claimed_total",
		Help: "Total number of due schedules claimed for dispatch.",
	})
	dispatcherQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sms_platform_dispatcher_queue_length",
		Help: "Approximate number of claimed schedules waiting in the dispatch pool.",
	})
	dispatcherProcessingDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sms_platform_dispatcher_processing_duration_seconds",
		Help:    "Histogram of per-schedule dispatch durations.",
		Buckets: prometheus.DefBuckets,
	})
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "org_id", "status"}

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sms_platform_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// Organisation sync consumer metrics
var (
	syncLabels = []string{"event_type", "result"}

	OrgSyncEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_platform_org_sync_events_total",
			Help: "Total number of identity sync events consumed, labeled by result.",
		},
		syncLabels,
	)
)

// InitMetrics toggles metric collection. Call during application startup.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IncMessageSubmitted increments the submission counter for one outcome.
func IncMessageSubmitted(format, orgID, outcome string) {
	if !metricsEnabled {
		return
	}
	MessagesSubmittedTotal.WithLabelValues(format, sanitizeOrg(orgID), outcome).Inc()
}

// AddQuotaUnitsReserved records units charged against an org's daily limit.
func AddQuotaUnitsReserved(format, orgID string, units int) {
	if !metricsEnabled {
		return
	}
	QuotaUnitsReservedTotal.WithLabelValues(format, sanitizeOrg(orgID)).Add(float64(units))
}

// IncQuotaRejection increments the quota rejection counter.
func IncQuotaRejection(format, orgID string) {
	if !metricsEnabled {
		return
	}
	QuotaRejectionsTotal.WithLabelValues(format, sanitizeOrg(orgID)).Inc()
}

// IncScheduleTransition records one schedule state change.
func IncScheduleTransition(orgID, from, to string) {
	if !metricsEnabled {
		return
	}
	ScheduleTransitionsTotal.WithLabelValues(sanitizeOrg(orgID), from, to).Inc()
}

// IncDispatcherClaimed adds to the claimed schedule counter.
func IncDispatcherClaimed(count int) {
	if !metricsEnabled {
		return
	}
	dispatcherClaimedTotal.Add(float64(count))
}

// SetDispatcherQueueLength sets the current dispatch pool backlog.
func SetDispatcherQueueLength(length int) {
	if !metricsEnabled {
		return
	}
	dispatcherQueueLength.Set(float64(length))
}

// ObserveDispatchDuration records how long one schedule took to dispatch.
func ObserveDispatchDuration(duration time.Duration) {
	if !metricsEnabled {
		return
	}
	dispatcherProcessingDurationSeconds.Observe(duration.Seconds())
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity, orgID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, sanitizeOrg(orgID), status).Observe(duration.Seconds())
}

// IncOrgSyncEvent records the outcome of one identity sync event.
func IncOrgSyncEvent(eventType, result string) {
	if !metricsEnabled {
		return
	}
	OrgSyncEventsTotal.WithLabelValues(eventType, result).Inc()
}

// sanitizeOrg ensures the org label is valid or returns a default value.
func sanitizeOrg(orgID string) string {
	if orgID == "" {
		return "unknown"
	}
	return orgID
}

// SanitizeErrorType maps specific errors to a coarse category for labels.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	switch {
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "constraint"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "capacity"), strings.Contains(errStr, "quota"):
		return "capacity"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"), strings.Contains(errStr, "missing field"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "nats"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}
