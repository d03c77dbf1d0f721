package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/pattamap/pattamap-vip/internal/clock"
	"github.com/pattamap/pattamap-vip/internal/config"
	notificationdomain "github.com/pattamap/pattamap-vip/internal/notification/domain"
	obslogger "github.com/pattamap/pattamap-vip/internal/observability/logger"
	"github.com/pattamap/pattamap-vip/internal/observability/metrics"
	"github.com/pattamap/pattamap-vip/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultQueueSize = 256
	defaultWorkers   = 2
	deliveryTimeout  = 5 * time.Second

	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
	outcomeDropped   = "dropped"
)

type job struct {
	carrier correlation.Carrier
	userID  snowflake.ID
	kind    notificationdomain.EventKind
	payload notificationdomain.Payload
}

// Dispatcher persists notifications from a bounded in-process queue.
type Dispatcher struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     notificationdomain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	metrics  *metrics.Metrics
	workflow *metrics.WorkflowMetrics

	workers int
	queue   chan job

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     notificationdomain.Repository
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Metrics  *metrics.Metrics         `optional:"true"`
	Workflow *metrics.WorkflowMetrics `optional:"true"`
}

func NewDispatcher(p Params) *Dispatcher {
	queueSize := p.Config.Notification.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	workers := p.Config.Notification.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Dispatcher{
		db:       p.DB,
		log:      p.Log.Named("notification.dispatcher"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		metrics:  p.Metrics,
		workflow: p.Workflow,
		workers:  workers,
		queue:    make(chan job, queueSize),
	}
}

// Notify enqueues a notification. It never blocks and never reports failure
// to the caller; a full queue drops the event with a warning.
func (d *Dispatcher) Notify(ctx context.Context, userID snowflake.ID, kind notificationdomain.EventKind, payload notificationdomain.Payload) {
	log := obslogger.WithContext(ctx, d.log).With(
		zap.String("event_kind", string(kind)),
		zap.String("user_id", userID.String()),
	)
	if !kind.Valid() {
		log.Warn("notification ignored", zap.Error(notificationdomain.ErrUnknownEventKind))
		return
	}

	j := job{
		carrier: correlation.Detach(ctx),
		userID:  userID,
		kind:    kind,
		payload: payload,
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warn("notification dropped", zap.Error(notificationdomain.ErrDispatcherClosed))
		d.workflow.IncNotification(string(kind), outcomeDropped)
		return
	}

	select {
	case d.queue <- j:
		d.workflow.SetNotificationQueueDepth(len(d.queue))
	default:
		log.Warn("notification dropped", zap.Error(notificationdomain.ErrQueueFull))
		d.workflow.IncNotification(string(kind), outcomeDropped)
		if d.metrics != nil {
			d.metrics.RecordNotificationDropped(ctx, string(kind))
		}
	}
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	d.log.Info("notification dispatcher started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.queue)))
}

// Stop closes the queue and waits for queued notifications to be written.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for j := range d.queue {
		d.workflow.SetNotificationQueueDepth(len(d.queue))
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.carrier.Context(), deliveryTimeout)
	defer cancel()

	log := d.log.With(
		zap.String("event_kind", string(j.kind)),
		zap.String("user_id", j.userID.String()),
		zap.String("correlation_id", j.carrier.CorrelationID),
	)
	log = obslogger.WithActor(log, "user", j.userID.String())

	n, err := d.build(j)
	if err == nil {
		err = d.repo.Insert(ctx, d.db, n)
	}
	if err != nil {
		log.Error("notification delivery failed", zap.Error(err))
		d.workflow.IncNotification(string(j.kind), outcomeFailed)
		return
	}

	log.Debug("notification delivered", zap.String("event_id", n.EventID))
	d.workflow.IncNotification(string(j.kind), outcomeDelivered)
}

func (d *Dispatcher) build(j job) (*notificationdomain.Notification, error) {
	title, message, err := notificationdomain.Render(j.kind, j.payload)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(j.payload)
	if err != nil {
		return nil, err
	}
	payload := datatypes.JSONMap{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	payload["title"] = title
	payload["message"] = message
	payload["correlation_id"] = j.carrier.CorrelationID
	if j.carrier.TraceID != "" {
		payload["trace_id"] = j.carrier.TraceID
	}

	return &notificationdomain.Notification{
		ID:        d.genID.Generate(),
		EventID:   ulid.Make().String(),
		UserID:    j.userID,
		Kind:      j.kind,
		Payload:   payload,
		CreatedAt: d.clock.Now(),
	}, nil
}

var _ notificationdomain.Dispatcher = (*Dispatcher)(nil)
