// internal/engine/application/notifier.go
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/metrics"
	"trade-match-engine/internal/common/observability"
	"trade-match-engine/internal/models"
)

// Dispatcher delivers a status notification to the candidate.
type Dispatcher interface {
	Notify(ctx context.Context, n models.StatusNotification) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, n models.StatusNotification) error

func (f DispatcherFunc) Notify(ctx context.Context, n models.StatusNotification) error {
	return f(ctx, n)
}

// Notifier runs Dispatcher calls in the background. The caller never waits
// and never sees a delivery error. Notifications queue in arrival order and
// at most `concurrency` workers drain the queue; nothing accepted is dropped.
type Notifier struct {
	dispatcher Dispatcher
	logger     logger.Logger
	obs        *observability.Observability
	timeout    time.Duration
	workers    int

	mu     sync.Mutex
	queue  []models.StatusNotification
	active int
	closed bool
	wg     sync.WaitGroup
}

func NewNotifier(d Dispatcher, log logger.Logger, concurrency int, timeout time.Duration, obs *observability.Observability) *Notifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if concurrency <= 0 {
		concurrency = 16
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		dispatcher: d,
		logger:     log.WithFields(map[string]interface{}{"component": "notifier"}),
		obs:        obs,
		timeout:    timeout,
		workers:    concurrency,
	}
}

// Dispatch queues note and returns immediately. It reports false only after
// Close.
func (n *Notifier) Dispatch(note models.StatusNotification) bool {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.drop(note, "notifier closed")
		return false
	}
	n.queue = append(n.queue, note)
	if n.active < n.workers {
		n.active++
		n.wg.Add(1)
		go n.drain()
	}
	n.mu.Unlock()
	return true
}

// Pending is the number of notifications queued but not yet picked up.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

func (n *Notifier) drain() {
	defer n.wg.Done()
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.active--
			n.mu.Unlock()
			return
		}
		note := n.queue[0]
		n.queue[0] = models.StatusNotification{}
		n.queue = n.queue[1:]
		n.mu.Unlock()

		n.send(note)
	}
}

func (n *Notifier) send(note models.StatusNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	err := n.safeNotify(ctx, note)
	fields := map[string]interface{}{
		"notificationId": note.ID,
		"applicationId":  note.ApplicationID,
		"status":         string(note.Status),
	}
	if err != nil {
		fields["error"] = err
		n.logger.Error("status notification failed", fields)
		metrics.NotificationsTotal.WithLabelValues(models.DeliveryFailed).Inc()
		n.obs.RecordNotification(ctx, string(note.Status), models.DeliveryFailed)
		return
	}
	n.logger.Debug("status notification sent", fields)
	metrics.NotificationsTotal.WithLabelValues(models.DeliverySent).Inc()
	n.obs.RecordNotification(ctx, string(note.Status), models.DeliverySent)
}

// safeNotify turns a dispatcher panic into an error.
func (n *Notifier) safeNotify(ctx context.Context, note models.StatusNotification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panic: %v", r)
		}
	}()
	return n.dispatcher.Notify(ctx, note)
}

func (n *Notifier) drop(note models.StatusNotification, why string) {
	n.logger.Warn("status notification dropped", map[string]interface{}{
		"applicationId": note.ApplicationID,
		"status":        string(note.Status),
		"reason":        why,
	})
	metrics.NotificationsTotal.WithLabelValues(models.DeliveryDropped).Inc()
	n.obs.RecordNotification(context.Background(), string(note.Status), models.DeliveryDropped)
}

// Close stops accepting notifications and waits until the queue is drained.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
