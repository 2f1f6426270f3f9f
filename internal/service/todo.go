package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BuzzLyutic/todo-sync/internal/model"
	"github.com/BuzzLyutic/todo-sync/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
)

type TodoService struct {
	repo repo.TodoRepository
}

func NewTodoService(repo repo.TodoRepository) *TodoService {
	return &TodoService{repo: repo}
}

func (s *TodoService) List(ctx context.Context) ([]model.Todo, error) {
	return s.repo.List(ctx)
}

func (s *TodoService) Create(ctx context.Context, t model.Todo, idempKey string) (model.Todo, error) {
	if err := s.validate(t); err != nil {
		return t, err
	}
	if t.DueDate != nil && t.DueDate.IsZero() {
		t.DueDate = nil
	}

	if idempKey != "" { // повтор с тем же ключом возвращает уже созданную задачу
		if existingID, err := s.repo.GetIdempotencyKey(ctx, idempKey); err == nil {
			return s.repo.Get(ctx, existingID)
		}
	}

	t.ID = 0
	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return created, err
	}

	if idempKey != "" {
		if err := s.repo.SaveIdempotencyKey(ctx, idempKey, created.ID); err != nil {
			return created, fmt.Errorf("save idempotency key: %w", err)
		}
	}
	return created, nil
}

func (s *TodoService) SetCompleted(ctx context.Context, id int64, patch model.TodoPatch) (model.Todo, error) {
	if patch.Completed == nil {
		return model.Todo{}, fmt.Errorf("%w: completed is required", ErrValidation)
	}
	return s.repo.SetCompleted(ctx, id, *patch.Completed)
}

// Replace overwrites the record at id. A non-zero body id must match.
// An omitted due_date keeps the stored one, an empty string clears it.
func (s *TodoService) Replace(ctx context.Context, id int64, t model.Todo) (model.Todo, error) {
	if t.ID != 0 && t.ID != id {
		return t, fmt.Errorf("%w: id %d does not match path id %d", ErrValidation, t.ID, id)
	}
	t.ID = id
	if err := s.validate(t); err != nil {
		return t, err
	}

	switch {
	case t.DueDate == nil:
		existing, err := s.repo.Get(ctx, id)
		if err != nil {
			return t, err
		}
		t.DueDate = existing.DueDate
	case t.DueDate.IsZero():
		t.DueDate = nil
	}
	return s.repo.Replace(ctx, t)
}

func (s *TodoService) DeleteCompleted(ctx context.Context) (int64, error) {
	return s.repo.DeleteCompleted(ctx)
}

func (s *TodoService) GetStats(ctx context.Context) (model.Stats, error) {
	return s.repo.GetStats(ctx)
}

func (s *TodoService) validate(t model.Todo) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, t.Priority)
	}
	return nil
}
