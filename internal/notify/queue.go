package notify

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/timesheet/internal/logger"
)

// ErrQueueFull is returned by Enqueue when the buffer has no room.
var ErrQueueFull = errors.New("notification queue is full")

const drainTimeout = 5 * time.Second

// Queue is a bounded in-process buffer of intents. Producers never block.
type Queue struct {
	ch chan Intent
}

// NewQueue creates a queue holding at most size pending intents.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan Intent, size)}
}

// Enqueue adds an intent without blocking.
func (q *Queue) Enqueue(in Intent) error {
	select {
	case q.ch <- in:
		return nil
	default:
		return ErrQueueFull
	}
}

// NotifyApproval enqueues an approval intent.
func (q *Queue) NotifyApproval(employeeID, entryID, taskID uint, taskTitle string) error {
	return q.Enqueue(Approval(employeeID, entryID, taskID, taskTitle))
}

// NotifyWeekRejection enqueues a consolidated week rejection intent.
func (q *Queue) NotifyWeekRejection(employeeID uint, entryIDs []uint, taskID uint, reason, taskTitle string, week, year int, projectID uint, problematic []ProblematicDay) error {
	return q.Enqueue(WeekRejection(employeeID, entryIDs, taskID, reason, taskTitle, week, year, projectID, problematic))
}

// Len returns the number of pending intents.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Sender delivers one intent.
type Sender interface {
	Send(ctx context.Context, in Intent) error
}

// Dispatcher drains a Queue into a Sender.
type Dispatcher struct {
	queue  *Queue
	sender Sender
}

// NewDispatcher creates a dispatcher for queue.
func NewDispatcher(queue *Queue, sender Sender) *Dispatcher {
	return &Dispatcher{queue: queue, sender: sender}
}

// Run delivers intents until ctx is done, then flushes what is still buffered
// within a short grace period. Delivery failures are logged and dropped.
func (d *Dispatcher) Run(ctx context.Context) {
	ctx = logger.SetComponent(ctx, "notify")
	logger.CtxInfo(ctx, "Notification dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.drain(logger.Detach(ctx))
			logger.CtxInfo(ctx, "Notification dispatcher stopped")
			return
		case in := <-d.queue.ch:
			d.deliver(ctx, in)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	for {
		select {
		case in := <-d.queue.ch:
			d.deliver(ctx, in)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, in Intent) {
	start := time.Now()
	if err := d.sender.Send(ctx, in); err != nil {
		logger.With(logger.Fields{
			"kind":                 in.Kind,
			"employee_id":          in.EmployeeID,
			logger.FieldTaskID:     in.TaskID,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Error(ctx, "Notification delivery failed: %v", err)
		return
	}
	logger.With(logger.Fields{
		"kind":                 in.Kind,
		"employee_id":          in.EmployeeID,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Debug(ctx, "Notification delivered")
}
