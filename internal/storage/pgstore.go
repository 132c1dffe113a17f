package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retodo/internal/todo"
)

// Postgres is a PostgreSQL-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and makes sure the todos table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Postgres{pool: pool}
	if err := s.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS todos (
			id          BIGSERIAL PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			completed   BOOLEAN NOT NULL DEFAULT FALSE,
			priority    TEXT NOT NULL DEFAULT 'medium',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure todos table: %w", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_todos_created ON todos(created_at DESC)`)
	return err
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

const pgColumns = `id, title, description, completed, priority, created_at, updated_at`

func (s *Postgres) List(ctx context.Context, q todo.ListQuery) ([]todo.Task, error) {
	query := `SELECT ` + pgColumns + ` FROM todos`
	var conds []string
	var args []any
	if q.Completed != nil {
		args = append(args, *q.Completed)
		conds = append(conds, fmt.Sprintf("completed = $%d", len(args)))
	}
	if q.Priority != "" {
		args = append(args, string(q.Priority))
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	tasks := []todo.Task{}
	for rows.Next() {
		t, err := scanPgTodo(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

func (s *Postgres) Get(ctx context.Context, id int64) (todo.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM todos WHERE id = $1`, id)
	return pgResult(scanPgTodo(row))
}

func (s *Postgres) Create(ctx context.Context, d todo.Draft) (todo.Task, error) {
	d = d.Normalize()
	now := time.Now().Truncate(time.Microsecond)
	row := s.pool.QueryRow(ctx, `
		INSERT INTO todos (title, description, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+pgColumns,
		d.Title, d.Description, string(d.Priority), now)
	t, err := scanPgTodo(row)
	if err != nil {
		return todo.Task{}, fmt.Errorf("create todo: %w", err)
	}
	return t, nil
}

// Update builds its SET clause from the non-nil patch fields. A patch with
// nothing applicable returns the current row unchanged.
func (s *Postgres) Update(ctx context.Context, id int64, p todo.Patch) (todo.Task, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Title != nil {
		add("title", strings.TrimSpace(*p.Title))
	}
	if p.Description != nil {
		add("description", strings.TrimSpace(*p.Description))
	}
	if p.Completed != nil {
		add("completed", *p.Completed)
	}
	if p.Priority != nil && p.Priority.Valid() {
		add("priority", string(*p.Priority))
	}
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}
	add("updated_at", time.Now().Truncate(time.Microsecond))
	args = append(args, id)
	query := fmt.Sprintf("UPDATE todos SET %s WHERE id = $%d RETURNING %s", strings.Join(sets, ", "), len(args), pgColumns)
	return pgResult(scanPgTodo(s.pool.QueryRow(ctx, query, args...)))
}

func (s *Postgres) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Stats(ctx context.Context) (todo.Stats, error) {
	var st todo.Stats
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE completed) FROM todos`).Scan(&st.Total, &st.Completed)
	if err != nil {
		return st, fmt.Errorf("count todos: %w", err)
	}
	st.Pending = st.Total - st.Completed

	rows, err := s.pool.Query(ctx, `SELECT priority, COUNT(*) FROM todos GROUP BY priority`)
	if err != nil {
		return st, fmt.Errorf("count by priority: %w", err)
	}
	defer rows.Close()
	st.ByPriority = map[todo.Priority]int{}
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return st, err
		}
		st.ByPriority[todo.Priority(p)] = n
	}
	return st, rows.Err()
}

func scanPgTodo(r pgx.Row) (todo.Task, error) {
	var t todo.Task
	var priority string
	err := r.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &priority, &t.CreatedAt, &t.UpdatedAt)
	t.Priority = todo.Priority(priority)
	return t, err
}

func pgResult(t todo.Task, err error) (todo.Task, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return todo.Task{}, ErrNotFound
	}
	if err != nil {
		return todo.Task{}, err
	}
	return t, nil
}
