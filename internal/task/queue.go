package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Queue names.
const (
	QueueMediaProcessing = "media-processing"
	QueueGitHubBuild     = "github-build"
	QueueAITask          = "ai-task"
)

// QueuePolicy is the static retry and concurrency configuration of a queue.
type QueuePolicy struct {
	Name string
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff is the base of the exponential delay between attempts. Zero
	// retries immediately.
	Backoff time.Duration
	// Timeout bounds a single attempt. Zero means no limit.
	Timeout time.Duration
	Workers int
}

// DefaultPolicies returns the policies of the three built-in queues.
func DefaultPolicies() []QueuePolicy {
	return []QueuePolicy{
		{Name: QueueMediaProcessing, Attempts: 3, Backoff: 2 * time.Second, Workers: 2},
		{Name: QueueGitHubBuild, Attempts: 2, Timeout: 5 * time.Minute, Workers: 1},
		{Name: QueueAITask, Attempts: 3, Backoff: time.Second, Workers: 2},
	}
}

func (p QueuePolicy) validate() error {
	if p.Name == "" {
		return fmt.Errorf("queue policy requires a name")
	}
	if p.Attempts < 1 {
		return fmt.Errorf("queue %s: attempts must be at least 1", p.Name)
	}
	if p.Backoff < 0 || p.Timeout < 0 {
		return fmt.Errorf("queue %s: backoff and timeout cannot be negative", p.Name)
	}
	return nil
}

// backoff builds the delay schedule between attempts.
func (p QueuePolicy) backoff(retries int) retry.Backoff {
	var b retry.Backoff
	if p.Backoff > 0 {
		b = retry.NewExponential(p.Backoff)
	} else {
		b = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b)
}

// Handler executes tasks of one queue. The returned result is stored as JSON
// on the task.
type Handler interface {
	Handle(ctx context.Context, task *Task) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task *Task) (any, error)

// Handle calls f(ctx, task).
func (f HandlerFunc) Handle(ctx context.Context, task *Task) (any, error) {
	return f(ctx, task)
}

// Queue is the in-memory buffer of one named queue.
type Queue struct {
	policy  QueuePolicy
	handler Handler
	tasks   chan *Task
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue with the specified buffer size.
func NewQueue(policy QueuePolicy, handler Handler, size int, logger *slog.Logger) *Queue {
	return &Queue{
		policy:  policy,
		handler: handler,
		tasks:   make(chan *Task, size),
		logger:  logger.With("queue", policy.Name),
	}
}

// Policy returns the queue's policy.
func (q *Queue) Policy() QueuePolicy {
	return q.policy
}

// Enqueue adds a task without blocking.
// Returns ErrQueueFull or ErrQueueClosed.
func (q *Queue) Enqueue(t *Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- t:
		q.logger.Debug("task enqueued",
			"task_id", t.ID,
			"task_type", t.Type,
			"queue_len", len(q.tasks),
			"queue_cap", cap(q.tasks))
		return nil
	default:
		return fmt.Errorf("%w: %s capacity %d reached", ErrQueueFull, q.policy.Name, cap(q.tasks))
	}
}

// EnqueueWait adds a task, blocking until the buffer has room or ctx is done.
func (q *Queue) EnqueueWait(ctx context.Context, t *Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- t:
		q.logger.Debug("task enqueued",
			"task_id", t.ID,
			"task_type", t.Type,
			"queue_len", len(q.tasks),
			"queue_cap", cap(q.tasks))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close prevents further submissions. Callers must cancel any EnqueueWait
// first. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
}

// Tasks returns the receive side of the buffer.
func (q *Queue) Tasks() <-chan *Task {
	return q.tasks
}
