package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/speechbox/server/internal/logging"
	"github.com/speechbox/server/internal/metrics"
	"github.com/speechbox/server/internal/model"
	"go.uber.org/zap"
)

// Store persists delivery outcomes. repo.DeliveryRepo satisfies it.
type Store interface {
	RecordAttempt(ctx context.Context, token model.ParticipationToken, at time.Time, sendErr error) error
	MarkSent(ctx context.Context, token model.ParticipationToken, at time.Time) error
	Pending(ctx context.Context, createdBefore time.Time, maxAttempts int) ([]model.Delivery, error)
}

// Options configures a Dispatcher.
type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// RetrySchedule is a cron spec for the recovery sweep; empty disables it.
	RetrySchedule string
	// RetryAfter is how old an unsent delivery must be before the sweep picks it up.
	RetryAfter  time.Duration
	SendTimeout time.Duration
}

const (
	defaultWorkers     = 2
	defaultQueueSize   = 100
	defaultMaxAttempts = 5
	defaultSendTimeout = 15 * time.Second
)

// ErrStopped is returned by Stop when called twice.
var ErrStopped = errors.New("dispatcher already stopped")

// Dispatcher sends committed deliveries on a small worker pool. Enqueue never
// blocks; deliveries that do not fit the queue stay in the outbox and are picked
// up by the recovery sweep.
type Dispatcher struct {
	notifier Notifier
	store    Store
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	queue chan model.Delivery
	cron  *cron.Cron
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a Dispatcher. Call Start before use and Stop on shutdown.
func NewDispatcher(notifier Notifier, store Store, opts Options, logger *zap.Logger) (*Dispatcher, error) {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}

	d := &Dispatcher{
		notifier: notifier,
		store:    store,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		queue:    make(chan model.Delivery, opts.QueueSize),
	}

	cl := cronLogger{s: logger.Sugar()}
	d.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if opts.RetrySchedule != "" {
		if _, err := d.cron.AddFunc(opts.RetrySchedule, func() { d.sweep(context.Background()) }); err != nil {
			return nil, fmt.Errorf("invalid retry schedule %q: %w", opts.RetrySchedule, err)
		}
	}
	return d, nil
}

// Start launches the workers and the recovery sweep.
func (d *Dispatcher) Start() {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.cron.Start()
	d.logger.Info("notification dispatcher started",
		zap.Int("workers", d.opts.Workers),
		zap.String("retry_schedule", d.opts.RetrySchedule),
	)
}

// Enqueue hands a delivery to the workers without blocking.
func (d *Dispatcher) Enqueue(del model.Delivery) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(del, "dispatcher stopped")
		return
	}
	select {
	case d.queue <- del:
	default:
		d.drop(del, "queue full")
	}
}

func (d *Dispatcher) drop(del model.Delivery, reason string) {
	metrics.RecordNotification("dropped")
	d.logger.Warn("delivery deferred to recovery sweep",
		zap.String("reason", reason),
		zap.String("token", del.Token.String()),
	)
}

// Stop halts the sweep, drains the queue and waits for in-flight sends or ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrStopped
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	cronDone := d.cron.Stop()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		<-cronDone.Done()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for del := range d.queue {
		d.deliver(del)
	}
}

// deliver makes one attempt and records it. Failures are logged, never returned.
func (d *Dispatcher) deliver(del model.Delivery) {
	sendCtx, cancelSend := context.WithTimeout(context.Background(), d.opts.SendTimeout)
	sendErr := d.notifier.Send(sendCtx, del.Recipient, del.Token)
	cancelSend()
	at := d.now()

	// A send that timed out must still be recorded.
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.SendTimeout)
	defer cancel()

	if err := d.store.RecordAttempt(ctx, del.Token, at, sendErr); err != nil {
		d.logger.Error("failed to record delivery attempt", zap.String("token", del.Token.String()), zap.Error(err))
	}

	if sendErr != nil {
		metrics.RecordNotification("failed")
		d.logger.Warn("token notification failed",
			zap.String("token", del.Token.String()),
			logging.Phone("to", del.Recipient.String()),
			zap.Int("attempt", del.Attempts+1),
			zap.Error(sendErr),
		)
		return
	}

	metrics.RecordNotification("sent")
	if err := d.store.MarkSent(ctx, del.Token, at); err != nil {
		d.logger.Error("failed to mark token sent", zap.String("token", del.Token.String()), zap.Error(err))
	}
}

// sweep re-enqueues deliveries that were never sent and still have attempts left.
func (d *Dispatcher) sweep(ctx context.Context) {
	pending, err := d.store.Pending(ctx, d.now().Add(-d.opts.RetryAfter), d.opts.MaxAttempts)
	if err != nil {
		d.logger.Error("failed to load pending deliveries", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}
	d.logger.Info("re-dispatching pending deliveries", zap.Int("count", len(pending)))
	for _, del := range pending {
		d.Enqueue(del)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
