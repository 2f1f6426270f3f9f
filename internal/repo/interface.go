package repo

import (
	"context"

	"github.com/BuzzLyutic/todo-sync/internal/model"
)

// TodoRepository определяет интерфейс хранилища задач
type TodoRepository interface {
	List(ctx context.Context) ([]model.Todo, error)
	Get(ctx context.Context, id int64) (model.Todo, error)
	Create(ctx context.Context, t model.Todo) (model.Todo, error)
	SetCompleted(ctx context.Context, id int64, completed bool) (model.Todo, error)
	Replace(ctx context.Context, t model.Todo) (model.Todo, error)
	DeleteCompleted(ctx context.Context) (int64, error)
	SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error
	GetIdempotencyKey(ctx context.Context, key string) (int64, error)
	GetStats(ctx context.Context) (model.Stats, error)
}
