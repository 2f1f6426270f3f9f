package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/BuzzLyutic/todo-sync/internal/model"
)

// MemoryRepo хранит задачи в памяти процесса. Данные теряются при перезапуске.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	todos  map[int64]model.Todo
	keys   map[string]int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		todos: make(map[int64]model.Todo),
		keys:  make(map[string]int64),
	}
}

func (r *MemoryRepo) List(ctx context.Context) ([]model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todos := make([]model.Todo, 0, len(r.todos))
	for _, t := range r.todos {
		todos = append(todos, t)
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].ID < todos[j].ID })
	return todos, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id int64) (model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.todos[id]
	if !ok {
		return model.Todo{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) Create(ctx context.Context, t model.Todo) (model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// ids are never reused, even after deletes
	r.nextID++
	t.ID = r.nextID
	r.todos[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) SetCompleted(ctx context.Context, id int64, completed bool) (model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.todos[id]
	if !ok {
		return model.Todo{}, ErrNotFound
	}
	t.Completed = completed
	r.todos[id] = t
	return t, nil
}

func (r *MemoryRepo) Replace(ctx context.Context, t model.Todo) (model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.todos[t.ID]; !ok {
		return model.Todo{}, ErrNotFound
	}
	r.todos[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) DeleteCompleted(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := make(map[int64]struct{})
	for id, t := range r.todos {
		if t.Completed {
			delete(r.todos, id)
			deleted[id] = struct{}{}
		}
	}
	if len(deleted) == 0 {
		return 0, nil
	}

	for key, resourceID := range r.keys {
		if _, ok := deleted[resourceID]; ok {
			delete(r.keys, key)
		}
	}
	return int64(len(deleted)), nil
}

func (r *MemoryRepo) SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[key]; !exists {
		r.keys[key] = resourceID
	}
	return nil
}

func (r *MemoryRepo) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.keys[key]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (r *MemoryRepo) GetStats(ctx context.Context) (model.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := model.Stats{ByPriority: map[model.Priority]int{}}
	for _, t := range r.todos {
		stats.Total++
		stats.ByPriority[t.Priority]++
		if t.Completed {
			stats.Completed++
		}
	}
	return stats, nil
}
