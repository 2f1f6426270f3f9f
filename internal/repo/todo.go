package repo

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/todo-sync/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Migrate применяет все *.up.sql миграции по порядку имен
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

type TodoRepo struct { // Репозиторий поверх Postgres
	pool *pgxpool.Pool
}

func NewTodoRepo(pool *pgxpool.Pool) *TodoRepo {
	return &TodoRepo{
		pool: pool,
	}
}

const todoColumns = "id, title, completed, priority, due_date"

func (r *TodoRepo) List(ctx context.Context) ([]model.Todo, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+todoColumns+` FROM todos ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]model.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (r *TodoRepo) Get(ctx context.Context, id int64) (model.Todo, error) {
	t, err := scanTodo(r.pool.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1`, id))
	return t, r.mapError(err)
}

func (r *TodoRepo) Create(ctx context.Context, t model.Todo) (model.Todo, error) {
	created, err := scanTodo(r.pool.QueryRow(ctx, `
		INSERT INTO todos (title, completed, priority, due_date)
		VALUES ($1, $2, $3, $4)
		RETURNING `+todoColumns,
		t.Title, t.Completed, string(t.Priority), dueDateArg(t.DueDate),
	))
	return created, r.mapError(err)
}

func (r *TodoRepo) SetCompleted(ctx context.Context, id int64, completed bool) (model.Todo, error) {
	t, err := scanTodo(r.pool.QueryRow(ctx, `
		UPDATE todos SET completed = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+todoColumns,
		id, completed,
	))
	return t, r.mapError(err)
}

func (r *TodoRepo) Replace(ctx context.Context, t model.Todo) (model.Todo, error) {
	replaced, err := scanTodo(r.pool.QueryRow(ctx, `
		UPDATE todos
		SET title = $2, completed = $3, priority = $4, due_date = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+todoColumns,
		t.ID, t.Title, t.Completed, string(t.Priority), dueDateArg(t.DueDate),
	))
	return replaced, r.mapError(err)
}

func (r *TodoRepo) DeleteCompleted(ctx context.Context) (int64, error) {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM todos WHERE completed")
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *TodoRepo) SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, resource_id) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, resourceID)
	return err
}

func (r *TodoRepo) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT resource_id FROM idempotency_keys WHERE key = $1
	`, key).Scan(&id)
	return id, r.mapError(err)
}

func (r *TodoRepo) GetStats(ctx context.Context) (model.Stats, error) {
	stats := model.Stats{ByPriority: map[model.Priority]int{}}

	rows, err := r.pool.Query(ctx, `
		SELECT priority, COUNT(*), COUNT(*) FILTER (WHERE completed)
		FROM todos
		GROUP BY priority
	`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			priority         string
			total, completed int
		)
		if err := rows.Scan(&priority, &total, &completed); err != nil {
			return stats, err
		}
		stats.ByPriority[model.Priority(priority)] = total
		stats.Total += total
		stats.Completed += completed
	}
	return stats, rows.Err()
}

func scanTodo(row pgx.Row) (model.Todo, error) {
	var (
		t        model.Todo
		priority string
		due      *time.Time
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Completed, &priority, &due); err != nil {
		return t, err
	}
	t.Priority = model.Priority(priority)
	if due != nil {
		t.DueDate = &model.Date{Time: *due}
	}
	return t, nil
}

func dueDateArg(d *model.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func (r *TodoRepo) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrConflict
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}
