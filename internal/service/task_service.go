package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"taskboard/api/internal/apperr"
	"taskboard/api/internal/models"
	"taskboard/api/internal/repository"
)

const maxTitleLength = 255

type TaskService struct {
	store TaskStore
	log   zerolog.Logger
}

func NewTaskService(store TaskStore, log zerolog.Logger) *TaskService {
	return &TaskService{store: store, log: log}
}

type CreateTaskInput struct {
	Title       string
	Description *string
	Column      *string
}

// UpdateTaskInput fields left nil are unchanged.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Column      *string
	Completed   *bool
}

func (s *TaskService) List(ctx context.Context, userID int64, filter repository.TaskFilter) ([]models.Task, error) {
	if filter.Column != nil && !models.ValidColumn(*filter.Column) {
		return nil, invalidColumn()
	}
	tasks, err := s.store.List(ctx, userID, filter)
	if err != nil {
		return nil, s.internal(err, "list tasks")
	}
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, userID, id int64) (models.Task, error) {
	task, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return models.Task{}, s.mapErr(err, "get task")
	}
	return task, nil
}

func (s *TaskService) Create(ctx context.Context, userID int64, input CreateTaskInput) (models.Task, error) {
	title, err := cleanTitle(input.Title)
	if err != nil {
		return models.Task{}, err
	}

	column := models.ColumnTodo
	if input.Column != nil {
		column = *input.Column
		if !models.ValidColumn(column) {
			return models.Task{}, invalidColumn()
		}
	}

	task, err := s.store.Create(ctx, models.Task{
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		Column:      column,
		Completed:   column == models.ColumnDone,
	})
	if err != nil {
		return models.Task{}, s.internal(err, "create task")
	}
	return task, nil
}

// Update applies a partial change. Completed always ends up equal to Column == Done: a
// column change wins, and a bare completed flag moves the task to Done or To Do.
func (s *TaskService) Update(ctx context.Context, userID, id int64, input UpdateTaskInput) (models.Task, error) {
	if input.Title == nil && input.Description == nil && input.Column == nil && input.Completed == nil {
		return models.Task{}, validationError("no fields to update")
	}

	task, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return models.Task{}, s.mapErr(err, "get task")
	}

	if input.Title != nil {
		title, err := cleanTitle(*input.Title)
		if err != nil {
			return models.Task{}, err
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = input.Description
	}
	switch {
	case input.Column != nil:
		if !models.ValidColumn(*input.Column) {
			return models.Task{}, invalidColumn()
		}
		task.Column = *input.Column
	case input.Completed != nil && *input.Completed:
		task.Column = models.ColumnDone
	case input.Completed != nil && task.Column == models.ColumnDone:
		task.Column = models.ColumnTodo
	}
	task.Completed = task.Column == models.ColumnDone

	return s.save(ctx, task)
}

// Toggle flips completion: Done goes back to To Do, anything else goes to Done.
func (s *TaskService) Toggle(ctx context.Context, userID, id int64) (models.Task, error) {
	task, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return models.Task{}, s.mapErr(err, "get task")
	}

	if task.Column == models.ColumnDone {
		task.Column = models.ColumnTodo
	} else {
		task.Column = models.ColumnDone
	}
	task.Completed = task.Column == models.ColumnDone

	return s.save(ctx, task)
}

func (s *TaskService) Move(ctx context.Context, userID, id int64, column string) (models.Task, error) {
	if !models.ValidColumn(column) {
		return models.Task{}, invalidColumn()
	}

	task, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return models.Task{}, s.mapErr(err, "get task")
	}
	task.Column = column
	task.Completed = column == models.ColumnDone

	return s.save(ctx, task)
}

func (s *TaskService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return s.mapErr(err, "delete task")
	}
	return nil
}

func (s *TaskService) save(ctx context.Context, task models.Task) (models.Task, error) {
	updated, err := s.store.Update(ctx, task)
	if err != nil {
		return models.Task{}, s.mapErr(err, "update task")
	}
	return updated, nil
}

func (s *TaskService) mapErr(err error, op string) error {
	if errors.Is(err, repository.ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	return s.internal(err, op)
}

func (s *TaskService) internal(err error, op string) error {
	s.log.Error().Err(err).Str("op", op).Msg("task store failed")
	return apperr.Internal(err, op)
}

func cleanTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", validationError("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", validationError("title must be at most 255 characters")
	}
	return title, nil
}

func invalidColumn() error {
	return validationError("column must be one of: To Do, Doing, Done")
}
