package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"retodo/internal/todo"
)

// ErrNotFound is returned when no todo has the requested id.
var ErrNotFound = errors.New("todo not found")

// Store is the contract the HTTP backend persists todos through.
type Store interface {
	List(ctx context.Context, q todo.ListQuery) ([]todo.Task, error)
	Get(ctx context.Context, id int64) (todo.Task, error)
	Create(ctx context.Context, d todo.Draft) (todo.Task, error)
	Update(ctx context.Context, id int64, p todo.Patch) (todo.Task, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (todo.Stats, error)
	Close() error
}

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// legacyTimeLayout is SQLite's CURRENT_TIMESTAMP format.
const legacyTimeLayout = "2006-01-02 15:04:05"

type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS todos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	completed INTEGER NOT NULL DEFAULT 0,
	priority TEXT NOT NULL DEFAULT 'medium',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT ''
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.ensureTodoColumns()
}

// ensureTodoColumns upgrades databases created before a column existed.
func (s *SQLite) ensureTodoColumns() error {
	required := map[string]string{
		"updated_at": "ALTER TABLE todos ADD COLUMN updated_at TEXT NOT NULL DEFAULT '';",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(todos);`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return nil
}

// selectTodo reads NULLs as defaults; older todos.db files declare
// description, priority and the timestamps nullable.
const selectTodo = `SELECT id, title, COALESCE(description, ''), COALESCE(completed, 0), COALESCE(priority, 'medium'),
	COALESCE(created_at, ''), COALESCE(updated_at, '') FROM todos`

func (s *SQLite) List(ctx context.Context, q todo.ListQuery) ([]todo.Task, error) {
	query := selectTodo
	var conds []string
	var args []any
	if q.Completed != nil {
		conds = append(conds, "completed = ?")
		args = append(args, boolToInt(*q.Completed))
	}
	if q.Priority != "" {
		conds = append(conds, "COALESCE(priority, 'medium') = ?")
		args = append(args, string(q.Priority))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC;"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	tasks := []todo.Task{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *SQLite) Get(ctx context.Context, id int64) (todo.Task, error) {
	row := s.db.QueryRowContext(ctx, selectTodo+" WHERE id = ?;", id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return todo.Task{}, ErrNotFound
	}
	if err != nil {
		return todo.Task{}, fmt.Errorf("get todo %d: %w", id, err)
	}
	return t, nil
}

func (s *SQLite) Create(ctx context.Context, d todo.Draft) (todo.Task, error) {
	d = d.Normalize()
	now := s.now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (title, description, completed, priority, created_at, updated_at) VALUES (?, ?, 0, ?, ?, ?);`,
		d.Title, d.Description, string(d.Priority), now, now)
	if err != nil {
		return todo.Task{}, fmt.Errorf("create todo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return todo.Task{}, err
	}
	return s.Get(ctx, id)
}

func (s *SQLite) Update(ctx context.Context, id int64, p todo.Patch) (todo.Task, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return todo.Task{}, err
	}

	var sets []string
	var args []any
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*p.Title))
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, strings.TrimSpace(*p.Description))
	}
	if p.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*p.Completed))
	}
	if p.Priority != nil && p.Priority.Valid() {
		sets = append(sets, "priority = ?")
		args = append(args, string(*p.Priority))
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, s.now().UTC().Format(timeLayout), id)
		query := "UPDATE todos SET " + strings.Join(sets, ", ") + " WHERE id = ?;"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return todo.Task{}, fmt.Errorf("update todo %d: %w", id, err)
		}
	}
	return s.Get(ctx, id)
}

func (s *SQLite) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Stats(ctx context.Context) (todo.Stats, error) {
	var st todo.Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM todos;`).Scan(&st.Total, &st.Completed)
	if err != nil {
		return st, fmt.Errorf("count todos: %w", err)
	}
	st.Pending = st.Total - st.Completed

	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(priority, 'medium') AS p, COUNT(*) FROM todos GROUP BY p;`)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(r rowScanner) (todo.Task, error) {
	var t todo.Task
	var completed int
	var priority, createdStr, updatedStr string
	if err := r.Scan(&t.ID, &t.Title, &t.Description, &completed, &priority, &createdStr, &updatedStr); err != nil {
		return todo.Task{}, err
	}
	t.Completed = completed == 1
	t.Priority = todo.Priority(priority)
	t.CreatedAt = parseTime(createdStr)
	t.UpdatedAt = parseTime(updatedStr)
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	return t, nil
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(timeLayout, v); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339, v); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(legacyTimeLayout, v); err == nil {
		return parsed
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteDSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Open returns the Store for driver: "sqlite" (the default) uses dbPath,
// "postgres" uses dsn.
func Open(ctx context.Context, driver, dbPath, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return OpenSQLite(dbPath)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}
