package notification

import (
	"context"
	"sync"
	"time"

	"shoe-market/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DispatchFunc hands a message off for delivery. It returns immediately and
// never reports the outcome to the caller.
type DispatchFunc func(msg Message)

// BackgroundDispatcher sends messages on detached goroutines, at most
// maxInFlight at a time. Delivery is attempted once. A message that waits
// longer than queueTimeout for a free slot is dropped; a send that has started
// keeps its slot until the mailer returns.
type BackgroundDispatcher struct {
	mailer       Mailer
	sem          *semaphore.Weighted
	queueTimeout time.Duration
	logger       *zap.Logger
	metrics      *metrics.Metrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewBackgroundDispatcher(mailer Mailer, maxInFlight int, queueTimeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *BackgroundDispatcher {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	if queueTimeout <= 0 {
		queueTimeout = 30 * time.Second
	}

	return &BackgroundDispatcher{
		mailer:       mailer,
		sem:          semaphore.NewWeighted(int64(maxInFlight)),
		queueTimeout: queueTimeout,
		logger:       logger.Named("notification"),
		metrics:      m,
	}
}

// Dispatch satisfies DispatchFunc.
func (d *BackgroundDispatcher) Dispatch(msg Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("Dispatcher closed, dropping email", zap.String("to", msg.To))
		d.record("dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go d.send(msg)
}

func (d *BackgroundDispatcher) send(msg Message) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.queueTimeout)
	err := d.sem.Acquire(ctx, 1)
	cancel()
	if err != nil {
		d.logger.Error("Timed out waiting for a send slot", zap.String("to", msg.To), zap.Error(err))
		d.record("dropped")
		return
	}
	defer d.sem.Release(1)

	d.logger.Info("Starting email send", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	if err := d.mailer.Send(context.Background(), msg); err != nil {
		d.logger.Error("Failed to send email", zap.String("to", msg.To), zap.Error(err))
		d.record("failed")
		return
	}

	d.logger.Info("Email sent", zap.String("to", msg.To))
	d.record("sent")
}

func (d *BackgroundDispatcher) record(result string) {
	if d.metrics != nil {
		d.metrics.NotificationsTotal.WithLabelValues(result).Inc()
	}
}

// Close stops accepting messages and waits for in-flight sends or ctx expiry.
func (d *BackgroundDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

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
