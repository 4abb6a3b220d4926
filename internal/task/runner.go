package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/sethvargo/go-retry"
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// QueueSize is the buffer size of each queue.
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	StuckTaskCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// Runner dispatches persisted tasks to per-queue worker goroutines and
// retries failed attempts according to each queue's policy.
type Runner struct {
	store      TaskStore
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(task *Task, err error)

	mu      sync.RWMutex
	queues  map[string]*Queue
	started bool

	// inflight holds the IDs of tasks a worker is currently running.
	inflightMu sync.Mutex
	inflight   map[uuid.UUID]struct{}

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewRunner creates a runner with no queues registered.
func NewRunner(store TaskStore, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.StuckTaskCheckInterval <= 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.StuckTaskAge <= 0 {
		config.StuckTaskAge = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "task_runner")

	return &Runner{
		store:      store,
		config:     config,
		logger:     logger,
		queues:     make(map[string]*Queue),
		inflight:   make(map[uuid.UUID]struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
		errHandler: func(task *Task, err error) {},
	}
}

// SetErrorHandler installs a callback invoked once a task has failed its
// final attempt.
func (r *Runner) SetErrorHandler(handler func(task *Task, err error)) {
	r.errHandler = handler
}

// Register adds a queue. It must be called before Start.
func (r *Runner) Register(policy QueuePolicy, handler Handler) error {
	if err := policy.validate(); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("queue %s: handler is required", policy.Name)
	}
	if policy.Workers < 1 {
		policy.Workers = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrRunnerStarted
	}
	if _, exists := r.queues[policy.Name]; exists {
		return fmt.Errorf("queue %s already registered", policy.Name)
	}
	r.queues[policy.Name] = NewQueue(policy, handler, r.config.QueueSize, r.logger)
	return nil
}

// Queues returns the registered queue names in sorted order.
func (r *Runner) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Runner) queue(name string) (*Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, name)
	}
	return q, nil
}

// Submit persists a new task and places it on its queue.
func (r *Runner) Submit(ctx context.Context, queueName, taskType string, payload any) (*Task, error) {
	return r.SubmitWithID(ctx, uuid.Nil, queueName, taskType, payload)
}

// SubmitWithID is Submit with a caller-chosen task ID. A nil ID is replaced
// with a fresh one. Tasks submitted before Start are only persisted. A task
// the queue cannot accept is marked failed so it never runs.
func (r *Runner) SubmitWithID(
	ctx context.Context,
	id uuid.UUID,
	queueName, taskType string,
	payload any,
) (*Task, error) {
	q, err := r.queue(queueName)
	if err != nil {
		return nil, err
	}

	t, err := New(id, queueName, taskType, payload, q.policy.Attempts)
	if err != nil {
		return nil, err
	}

	if err := r.store.SaveTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	r.mu.RLock()
	started := r.started
	r.mu.RUnlock()
	if !started {
		// Start recovers every pending task from the store.
		return t, nil
	}

	if err := q.Enqueue(t); err != nil {
		log := logger.FromContextOrDefault(ctx, r.logger)
		log.Warn("task rejected by queue",
			"task_id", t.ID,
			"queue", queueName,
			"error", err)
		if uErr := r.store.UpdateTaskStatus(context.WithoutCancel(ctx), t.ID, StatusFailed, err.Error()); uErr != nil {
			log.Error("failed to mark rejected task failed", "task_id", t.ID, "error", uErr)
		}
		return nil, err
	}
	return t, nil
}

// Start recovers unfinished tasks and starts the workers and the stuck
// task monitor.
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrRunnerStarted
	}
	r.started = true
	queues := make([]*Queue, 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.mu.Unlock()

	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for _, q := range queues {
		for i := 0; i < q.policy.Workers; i++ {
			r.wg.Add(1)
			go r.worker(q, i)
		}
		r.logger.Info("queue started", "queue", q.policy.Name, "workers", q.policy.Workers)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop cancels pending retries, waits for in-flight attempts to finish and
// closes every queue. Tasks left waiting are recovered on the next Start.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, q := range r.queues {
		q.Close()
	}
}

// Recover re-queues pending tasks and resets processing and delayed tasks,
// which were interrupted by a shutdown, back to pending. The tasks are fed
// to their queues in the background as workers make room, so a backlog
// larger than QueueSize is drained completely.
func (r *Runner) Recover() error {
	ctx := context.Background()

	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}
	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}
	delayedTasks, err := r.store.GetDelayedTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get delayed tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks),
		"delayed_count", len(delayedTasks))

	recovered := pendingTasks
	interrupted := append(processingTasks, delayedTasks...)
	for _, t := range interrupted {
		if err := r.store.UpdateTaskStatus(ctx, t.ID, StatusPending, "Reset after recovery"); err != nil {
			r.logger.Error("failed to reset interrupted task status",
				"task_id", t.ID,
				"queue", t.Queue,
				"error", err)
			continue
		}
		t.Status = StatusPending
		recovered = append(recovered, t)
	}

	if len(recovered) > 0 {
		r.wg.Add(1)
		go r.feed(recovered)
	}
	return nil
}

// feed enqueues recovered tasks, waiting for room on full queues.
func (r *Runner) feed(tasks []*Task) {
	defer r.wg.Done()
	for i, t := range tasks {
		if !r.requeue(t) && r.ctx.Err() != nil {
			r.logger.Info("runner stopping, recovered tasks left pending",
				"remaining", len(tasks)-i)
			return
		}
	}
}

// requeue places t on its queue, blocking while the queue is full. It
// reports whether the task was queued.
func (r *Runner) requeue(t *Task) bool {
	q, err := r.queue(t.Queue)
	if err != nil {
		r.logger.Error("cannot requeue task for unregistered queue",
			"task_id", t.ID,
			"queue", t.Queue)
		return false
	}
	if err := q.EnqueueWait(r.ctx, t); err != nil {
		r.logger.Error("failed to requeue task",
			"task_id", t.ID,
			"queue", t.Queue,
			"error", err)
		return false
	}
	return true
}

// claim marks t as running on this process. It fails when another worker
// already holds it.
func (r *Runner) claim(id uuid.UUID) bool {
	r.inflightMu.Lock()
	defer r.inflightMu.Unlock()
	if _, running := r.inflight[id]; running {
		return false
	}
	r.inflight[id] = struct{}{}
	return true
}

func (r *Runner) release(id uuid.UUID) {
	r.inflightMu.Lock()
	delete(r.inflight, id)
	r.inflightMu.Unlock()
}

func (r *Runner) running(id uuid.UUID) bool {
	r.inflightMu.Lock()
	defer r.inflightMu.Unlock()
	_, ok := r.inflight[id]
	return ok
}

func (r *Runner) worker(q *Queue, id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "queue", q.policy.Name, "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "queue", q.policy.Name, "worker_id", id)
			return

		case t, ok := <-q.Tasks():
			if !ok {
				return
			}
			r.processTask(q, t, id)
		}
	}
}

// processTask runs every remaining attempt of t, persisting the delayed
// state while it waits for the next retry.
func (r *Runner) processTask(q *Queue, t *Task, workerID int) {
	log := r.logger.With(
		"task_id", t.ID,
		"queue", q.policy.Name,
		"task_type", t.Type,
		"worker_id", workerID,
	)
	if !r.claim(t.ID) {
		log.Warn("task already running, skipping duplicate delivery")
		return
	}
	defer r.release(t.ID)

	storeCtx := context.WithoutCancel(r.ctx)

	maxAttempts := t.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.policy.Attempts
	}
	if t.Attempts >= maxAttempts {
		r.fail(storeCtx, t, fmt.Errorf("attempts exhausted (%d/%d)", t.Attempts, maxAttempts), log)
		return
	}

	attempt := t.Attempts
	var result any

	err := retry.Do(r.ctx, q.policy.backoff(maxAttempts-attempt-1), func(ctx context.Context) error {
		attempt++
		if err := r.store.MarkProcessing(storeCtx, t.ID, attempt); err != nil {
			return fmt.Errorf("failed to mark task processing: %w", err)
		}
		t.Attempts = attempt
		t.Status = StatusProcessing

		log.Info("processing task", "attempt", attempt, "max_attempts", maxAttempts)

		res, err := r.runHandler(q, t, log)
		if err == nil {
			result = res
			return nil
		}

		if attempt >= maxAttempts {
			return err
		}

		log.Warn("task attempt failed, retrying", "attempt", attempt, "error", err)
		if uErr := r.store.UpdateTaskStatus(storeCtx, t.ID, StatusDelayed, err.Error()); uErr != nil {
			log.Error("failed to mark task delayed", "error", uErr)
		}
		t.Status = StatusDelayed
		return retry.RetryableError(err)
	})

	if err != nil {
		if ctxErr := r.ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			log.Info("runner stopping, task left for recovery", "status", t.Status)
			return
		}
		r.fail(storeCtx, t, err, log)
		return
	}

	var data json.RawMessage
	if result != nil {
		encoded, mErr := json.Marshal(result)
		if mErr != nil {
			log.Error("failed to encode task result", "error", mErr)
		} else {
			data = encoded
		}
	}
	if err := r.store.CompleteTask(storeCtx, t.ID, data); err != nil {
		log.Error("failed to update task status to completed", "error", err)
	}
	t.Status = StatusCompleted
	t.Result = data
	log.Info("task completed", "attempts", attempt)
}

func (r *Runner) fail(ctx context.Context, t *Task, err error, log *slog.Logger) {
	log.Error("task failed", "attempts", t.Attempts, "error", err)
	if uErr := r.store.UpdateTaskStatus(ctx, t.ID, StatusFailed, err.Error()); uErr != nil {
		log.Error("failed to update task status to failed", "error", uErr)
	}
	t.Status = StatusFailed
	t.Error = err.Error()
	r.errHandler(t, err)
}

// runHandler runs one attempt under the queue timeout. A panicking handler
// counts as a failed attempt.
func (r *Runner) runHandler(q *Queue, t *Task, log *slog.Logger) (result any, err error) {
	ctx := logger.WithLogger(context.Background(), log)
	if q.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.policy.Timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task handler panicked: %v", p)
		}
	}()

	result, err = q.handler.Handle(ctx, t)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("task exceeded timeout of %s: %w", q.policy.Timeout, ctx.Err())
	}
	return result, err
}

// Status returns the job view of a task.
func (r *Runner) Status(ctx context.Context, id uuid.UUID) (*JobStatus, error) {
	t, err := r.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	status := &JobStatus{
		ID:         t.ID,
		Queue:      t.Queue,
		Type:       t.Type,
		State:      t.Status.State(),
		Attempts:   t.Attempts,
		Result:     t.Result,
		CreatedAt:  t.CreatedAt,
		FinishedAt: t.FinishedAt,
		UserID:     t.Owner(),
	}
	if t.Status == StatusFailed || t.Status == StatusDelayed {
		status.FailedReason = t.Error
	}
	return status, nil
}

// Stats counts a queue's tasks by state.
func (r *Runner) Stats(ctx context.Context, queueName string) (QueueStats, error) {
	if _, err := r.queue(queueName); err != nil {
		return QueueStats{}, err
	}
	counts, err := r.store.CountByStatus(ctx, queueName)
	if err != nil {
		return QueueStats{}, fmt.Errorf("failed to count tasks: %w", err)
	}
	return QueueStats{
		Queue:     queueName,
		Waiting:   counts[StatusPending],
		Active:    counts[StatusProcessing],
		Completed: counts[StatusCompleted],
		Failed:    counts[StatusFailed],
		Delayed:   counts[StatusDelayed],
	}, nil
}

// stuckTaskMonitor periodically resets tasks that have been processing for
// longer than StuckTaskAge. Tasks still running in this process are left
// alone; only rows orphaned by another process or a crash are reset.
func (r *Runner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()
			stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}
			for _, t := range stuckTasks {
				if r.running(t.ID) {
					continue
				}
				r.logger.Info("resetting stuck task", "task_id", t.ID, "queue", t.Queue)
				if err := r.store.UpdateTaskStatus(ctx, t.ID, StatusPending,
					"Reset after being stuck in processing state"); err != nil {
					r.logger.Error("failed to reset stuck task status", "task_id", t.ID, "error", err)
					continue
				}
				t.Status = StatusPending
				r.requeue(t)
			}
		}
	}
}
