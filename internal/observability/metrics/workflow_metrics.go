package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

const (
	FailureReasonDeadlineExceeded     = "deadline_exceeded"
	FailureReasonDBLockTimeout        = "db_lock_timeout"
	FailureReasonSerializationFailure = "serialization_failure"
	FailureReasonUniqueViolation      = "unique_violation"
	FailureReasonUnknown              = "unknown"
)

const (
	RollbackSucceeded = "succeeded"
	RollbackFailed    = "failed"
)

const (
	ResourceSubscription = "subscription"
	ResourceTransaction  = "transaction"
)

// WorkflowMetrics captures VIP purchase and settlement health signals.
type WorkflowMetrics struct {
	purchases     *prometheus.CounterVec
	failures      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	rollbacks     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

var (
	workflowMetricsOnce sync.Once
	workflowMetrics     *WorkflowMetrics
)

// Workflow returns the singleton workflow metrics registry.
func Workflow() *WorkflowMetrics {
	return WorkflowWithConfig(Config{})
}

// WorkflowWithConfig returns the singleton workflow metrics registry using config labels.
func WorkflowWithConfig(cfg Config) *WorkflowMetrics {
	workflowMetricsOnce.Do(func() {
		workflowMetrics = newWorkflowMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return workflowMetrics
}

// NewWorkflowMetricsForTest builds an isolated registry-backed instance.
func NewWorkflowMetricsForTest(registerer prometheus.Registerer) *WorkflowMetrics {
	return newWorkflowMetrics(registerer, Config{ServiceName: "pattamap-vip", Environment: "test"})
}

func newWorkflowMetrics(registerer prometheus.Registerer, cfg Config) *WorkflowMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "pattamap-vip"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pattamap_vip_purchases_total",
		Help:        "VIP purchase attempts by type, payment method and outcome.",
		ConstLabels: constLabels,
	}, []string{"subscription_type", "payment_method", "outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pattamap_vip_write_failures_total",
		Help:        "VIP persistence failures by operation and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pattamap_vip_status_transitions_total",
		Help:        "Subscription and transaction status transitions.",
		ConstLabels: constLabels,
	}, []string{"resource", "from", "to"})
	rollbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pattamap_vip_purchase_rollbacks_total",
		Help:        "Compensating subscription deletes after a failed transaction insert.",
		ConstLabels: constLabels,
	}, []string{"result"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pattamap_vip_notifications_total",
		Help:        "Notification deliveries by event kind and outcome.",
		ConstLabels: constLabels,
	}, []string{"event_kind", "outcome"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "pattamap_vip_notification_queue_depth",
		Help:        "Pending notifications waiting for a worker.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		purchases,
		failures,
		transitions,
		rollbacks,
		notifications,
		queueDepth,
	)

	return &WorkflowMetrics{
		purchases:     purchases,
		failures:      failures,
		transitions:   transitions,
		rollbacks:     rollbacks,
		notifications: notifications,
		queueDepth:    queueDepth,
	}
}

// IncPurchase counts one purchase attempt.
func (m *WorkflowMetrics) IncPurchase(subscriptionType, paymentMethod, outcome string) {
	if m == nil || m.purchases == nil {
		return
	}
	m.purchases.WithLabelValues(subscriptionType, paymentMethod, outcome).Inc()
}

// IncWriteFailure counts a persistence failure with classification.
func (m *WorkflowMetrics) IncWriteFailure(operation string, err error) {
	if m == nil || err == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(operation, ClassifyFailureReason(err)).Inc()
}

// IncTransition counts a status change of a subscription or transaction.
func (m *WorkflowMetrics) IncTransition(resource, from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(resource, from, to).Inc()
}

func (m *WorkflowMetrics) IncRollback(result string) {
	if m == nil || m.rollbacks == nil {
		return
	}
	m.rollbacks.WithLabelValues(result).Inc()
}

func (m *WorkflowMetrics) IncNotification(eventKind, outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(eventKind, outcome).Inc()
}

func (m *WorkflowMetrics) SetNotificationQueueDepth(depth int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// ClassifyFailureReason maps persistence errors to low-cardinality reasons.
func ClassifyFailureReason(err error) string {
	if err == nil {
		return FailureReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return FailureReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return FailureReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return FailureReasonUniqueViolation
	}
	return FailureReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
