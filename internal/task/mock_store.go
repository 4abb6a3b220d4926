package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockTaskStore is an in-memory TaskStore for tests. It stores copies, so
// callers never share a *Task with the runner.
type MockTaskStore struct {
	mutex           sync.RWMutex
	tasks           map[uuid.UUID]Task
	taskStatusTimes map[uuid.UUID]time.Time
	SaveFn          func(ctx context.Context, task *Task) error
	UpdateStatusFn  func(ctx context.Context, taskID uuid.UUID, status Status, errorMsg string) error
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	store := &MockTaskStore{
		tasks:           make(map[uuid.UUID]Task),
		taskStatusTimes: make(map[uuid.UUID]time.Time),
	}

	store.SaveFn = func(ctx context.Context, task *Task) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		store.tasks[task.ID] = *task
		store.taskStatusTimes[task.ID] = time.Now()
		return nil
	}

	store.UpdateStatusFn = func(ctx context.Context, taskID uuid.UUID, status Status, errorMsg string) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		t, exists := store.tasks[taskID]
		if !exists {
			return ErrTaskNotFound
		}
		t.Status = status
		t.Error = errorMsg
		t.UpdatedAt = time.Now()
		if status == StatusFailed || status == StatusCompleted {
			now := time.Now()
			t.FinishedAt = &now
		}
		store.tasks[taskID] = t
		store.taskStatusTimes[taskID] = time.Now()
		return nil
	}

	return store
}

// SaveTask persists a task to the mock store
func (s *MockTaskStore) SaveTask(ctx context.Context, task *Task) error {
	return s.SaveFn(ctx, task)
}

// GetTask returns a copy of the stored task.
func (s *MockTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &t, nil
}

// MarkProcessing records an attempt.
func (s *MockTaskStore) MarkProcessing(ctx context.Context, id uuid.UUID, attempts int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	now := time.Now()
	t.Status = StatusProcessing
	t.Attempts = attempts
	t.StartedAt = &now
	t.UpdatedAt = now
	s.tasks[id] = t
	s.taskStatusTimes[id] = now
	return nil
}

// UpdateTaskStatus updates the status of a task in the mock store
func (s *MockTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status Status,
	errorMsg string,
) error {
	return s.UpdateStatusFn(ctx, taskID, status, errorMsg)
}

// CompleteTask marks the task completed with result.
func (s *MockTaskStore) CompleteTask(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	now := time.Now()
	t.Status = StatusCompleted
	t.Result = result
	t.Error = ""
	t.FinishedAt = &now
	t.UpdatedAt = now
	s.tasks[id] = t
	s.taskStatusTimes[id] = now
	return nil
}

func (s *MockTaskStore) byStatus(status Status) []*Task {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []*Task
	for _, t := range s.tasks {
		if t.Status == status {
			c := t
			out = append(out, &c)
		}
	}
	return out
}

// GetPendingTasks retrieves all tasks with "pending" status
func (s *MockTaskStore) GetPendingTasks(ctx context.Context) ([]*Task, error) {
	return s.byStatus(StatusPending), nil
}

// GetDelayedTasks retrieves all tasks with "delayed" status
func (s *MockTaskStore) GetDelayedTasks(ctx context.Context) ([]*Task, error) {
	return s.byStatus(StatusDelayed), nil
}

// GetProcessingTasks retrieves tasks with "processing" status
func (s *MockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var processingTasks []*Task
	now := time.Now()

	for id, t := range s.tasks {
		if t.Status != StatusProcessing {
			continue
		}
		// If olderThan is zero, include all processing tasks
		if olderThan == 0 || now.Sub(s.taskStatusTimes[id]) > olderThan {
			c := t
			processingTasks = append(processingTasks, &c)
		}
	}

	return processingTasks, nil
}

// CountByStatus counts stored tasks of queue.
func (s *MockTaskStore) CountByStatus(ctx context.Context, queue string) (map[Status]int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	counts := make(map[Status]int)
	for _, t := range s.tasks {
		if t.Queue == queue {
			counts[t.Status]++
		}
	}
	return counts, nil
}

// Put stores t as-is, bypassing SaveFn.
func (s *MockTaskStore) Put(t *Task, statusTime time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tasks[t.ID] = *t
	s.taskStatusTimes[t.ID] = statusTime
}

// WithTx implements TaskStore.WithTx for the mock store
// In the mock implementation, we just return the same store instance
func (s *MockTaskStore) WithTx(tx *sql.Tx) TaskStore {
	return s
}

var _ TaskStore = (*MockTaskStore)(nil)
