package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
)

const taskColumns = `id, queue, type, payload, status, attempts, max_attempts, result,
	error_message, created_at, updated_at, started_at, finished_at`

// PostgresTaskStore implements the task.TaskStore interface using PostgreSQL
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ task.TaskStore = (*PostgresTaskStore)(nil)

// SaveTask persists a task to the database
func (s *PostgresTaskStore) SaveTask(ctx context.Context, t *task.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	payload := []byte(t.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}

	query := `
		INSERT INTO tasks (id, queue, type, payload, status, attempts, max_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.Queue,
		t.Type,
		payload,
		t.Status,
		t.Attempts,
		t.MaxAttempts,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", t.ID,
			"queue", t.Queue,
			"task_type", t.Type,
			"error", err)
		return fmt.Errorf("failed to save task to database: %w", MapError(err))
	}
	return nil
}

// GetTask returns task.ErrTaskNotFound when no row matches.
func (s *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// MarkProcessing records the start of an attempt.
func (s *PostgresTaskStore) MarkProcessing(ctx context.Context, id uuid.UUID, attempts int) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, attempts = $2, started_at = $3, updated_at = $3
		WHERE id = $4
	`, task.StatusProcessing, attempts, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark task processing: %w", err)
	}
	return CheckRowsAffected(result, task.ErrTaskNotFound)
}

// UpdateTaskStatus updates the status of a task in the database. Terminal
// statuses also set finished_at.
func (s *PostgresTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status task.Status,
	errorMsg string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	var finishedAt sql.NullTime
	if status == task.StatusFailed || status == task.StatusCompleted {
		finishedAt = sql.NullTime{Time: now, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, error_message = $2, updated_at = $3, finished_at = $4
		WHERE id = $5
	`, status, nullString(errorMsg), now, finishedAt, taskID)
	if err != nil {
		log.Error("failed to update task status",
			"task_id", taskID,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return CheckRowsAffected(result, task.ErrTaskNotFound)
}

// CompleteTask stores result and marks the task completed.
func (s *PostgresTaskStore) CompleteTask(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	now := time.Now().UTC()
	var data any
	if len(result) > 0 {
		data = []byte(result)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, result = $2, error_message = NULL, updated_at = $3, finished_at = $3
		WHERE id = $4
	`, task.StatusCompleted, data, now, id)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return CheckRowsAffected(res, task.ErrTaskNotFound)
}

// GetPendingTasks retrieves all tasks with "pending" status
func (s *PostgresTaskStore) GetPendingTasks(ctx context.Context) ([]*task.Task, error) {
	return s.getTasksByStatus(ctx, task.StatusPending, 0)
}

// GetDelayedTasks retrieves all tasks waiting for a retry.
func (s *PostgresTaskStore) GetDelayedTasks(ctx context.Context) ([]*task.Task, error) {
	return s.getTasksByStatus(ctx, task.StatusDelayed, 0)
}

// GetProcessingTasks retrieves tasks with "processing" status
func (s *PostgresTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*task.Task, error) {
	return s.getTasksByStatus(ctx, task.StatusProcessing, olderThan)
}

// CountByStatus counts the tasks of queue grouped by status.
func (s *PostgresTaskStore) CountByStatus(ctx context.Context, queue string) (map[task.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE queue = $1 GROUP BY status`, queue)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[task.Status]int)
	for rows.Next() {
		var status task.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task counts: %w", err)
	}
	return counts, nil
}

// WithTx returns a store that runs its queries in tx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) task.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// getTasksByStatus lists tasks in status, oldest first. A non-zero olderThan
// keeps only tasks whose current attempt started before now-olderThan.
func (s *PostgresTaskStore) getTasksByStatus(
	ctx context.Context,
	status task.Status,
	olderThan time.Duration,
) ([]*task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = $1`
	args := []any{status}
	if olderThan > 0 {
		query += ` AND COALESCE(started_at, updated_at) < $2`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status",
			"status", status,
			"error", err)
		return nil, fmt.Errorf("failed to query tasks by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t                     task.Task
		payload, result       []byte
		errorMessage          sql.NullString
		startedAt, finishedAt sql.NullTime
	)
	err := row.Scan(
		&t.ID,
		&t.Queue,
		&t.Type,
		&payload,
		&t.Status,
		&t.Attempts,
		&t.MaxAttempts,
		&result,
		&errorMessage,
		&t.CreatedAt,
		&t.UpdatedAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Payload = payload
	if len(result) > 0 {
		t.Result = result
	}
	t.Error = errorMessage.String
	t.StartedAt = timePtr(startedAt)
	t.FinishedAt = timePtr(finishedAt)
	return &t, nil
}
