package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskboard/api/internal/models"
)

const taskColumns = `id, user_id, title, description, stage, completed, created_at, updated_at`

type TaskFilter struct {
	Completed *bool
	Column    *string
}

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) List(ctx context.Context, userID int64, filter TaskFilter) ([]models.Task, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}

	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		conditions = append(conditions, "completed = $"+strconv.Itoa(len(args)))
	}
	if filter.Column != nil {
		args = append(args, *filter.Column)
		conditions = append(conditions, "stage = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Get only returns tasks owned by userID; anything else is ErrTaskNotFound.
func (r *TaskRepository) Get(ctx context.Context, userID, id int64) (models.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`

	task, err := scanTask(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task models.Task) (models.Task, error) {
	const query = `
		INSERT INTO tasks (user_id, title, description, stage, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + taskColumns

	created, err := scanTask(r.pool.QueryRow(ctx, query,
		task.UserID,
		task.Title,
		task.Description,
		task.Column,
		task.Completed,
	))
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return created, nil
}

func (r *TaskRepository) Update(ctx context.Context, task models.Task) (models.Task, error) {
	const query = `
		UPDATE tasks
		SET title = $3, description = $4, stage = $5, completed = $6, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + taskColumns

	updated, err := scanTask(r.pool.QueryRow(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Column,
		task.Completed,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

func (r *TaskRepository) Delete(ctx context.Context, userID, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (models.Task, error) {
	var task models.Task
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Column,
		&task.Completed,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	return task, err
}
