package task

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	owner        TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	due_date     DATETIME NOT NULL,
	priority     TEXT NOT NULL DEFAULT 'Medium',
	status       TEXT NOT NULL DEFAULT 'Not Started',
	category     TEXT NOT NULL DEFAULT 'General',
	activity_log TEXT NOT NULL DEFAULT '[]',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner);
CREATE INDEX IF NOT EXISTS idx_tasks_owner_title ON tasks(owner, title);
`

// SQLiteStore persists tasks in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the tasks table exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create persists a new task, setting its ID, defaults, timestamps, and the
// initial "created" activity entry.
func (s *SQLiteStore) Create(t *Task) (string, error) {
	if t.Owner == "" {
		return "", fmt.Errorf("create task: owner is required")
	}
	if t.Title == "" {
		return "", fmt.Errorf("create task: title is required")
	}
	if t.DueDate.IsZero() {
		return "", fmt.Errorf("create task: due date is required")
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusNotStarted
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}

	t.ID = uuid.NewString()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.ActivityLog = append(t.ActivityLog, ActivityEntry{
		Action:    "created",
		Timestamp: now,
		Actor:     t.Owner,
		Details:   t.snapshot(),
	})

	logJSON, _ := json.Marshal(t.ActivityLog)
	_, err := s.db.Exec(`
		INSERT INTO tasks
			(id, owner, title, description, due_date, priority, status, category,
			 activity_log, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Owner, t.Title, t.Description, t.DueDate,
		string(t.Priority), string(t.Status), t.Category,
		string(logJSON), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

// Get retrieves a task by ID, restricted to the given owner.
func (s *SQLiteStore) Get(owner, id string) (*Task, error) {
	row := s.db.QueryRow(`SELECT * FROM tasks WHERE owner = ? AND id = ?`, owner, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

// FindByTitle returns the owner's oldest task with an exactly matching title.
func (s *SQLiteStore) FindByTitle(owner, title string) (*Task, error) {
	row := s.db.QueryRow(`
		SELECT * FROM tasks WHERE owner = ? AND title = ?
		ORDER BY created_at ASC LIMIT 1`, owner, title)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

// UpdateFields applies the partial update to t, appends the activity entries
// mandated by the audit invariant, and persists the result.
func (s *SQLiteStore) UpdateFields(t *Task, f Fields, actor string) error {
	now := time.Now().UTC()
	t.Apply(f, actor, now)
	t.UpdatedAt = now
	return s.save(t)
}

// Delete appends the terminal "deleted" entry with a snapshot of the final
// field values, persists it, and removes the row.
func (s *SQLiteStore) Delete(t *Task, actor string) error {
	t.ActivityLog = append(t.ActivityLog, ActivityEntry{
		Action:    "deleted",
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Details:   t.snapshot(),
	})
	if err := s.save(t); err != nil {
		return err
	}

	res, err := s.db.Exec(`DELETE FROM tasks WHERE owner = ? AND id = ?`, t.Owner, t.ID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllByOwner removes every task owned by owner.
func (s *SQLiteStore) DeleteAllByOwner(owner string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE owner = ?`, owner)
	if err != nil {
		return 0, fmt.Errorf("delete all tasks: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// List returns tasks matching the filter, ordered by due date ascending.
func (s *SQLiteStore) List(f Filter) ([]*Task, error) {
	where, args := buildWhere(f)
	q := "SELECT * FROM tasks" + where + " ORDER BY due_date ASC, created_at ASC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Count returns the number of tasks matching the filter.
func (s *SQLiteStore) Count(f Filter) (int, error) {
	where, args := buildWhere(f)
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM tasks"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// Categories returns the distinct category labels used by owner.
func (s *SQLiteStore) Categories(owner string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT category FROM tasks WHERE owner = ? ORDER BY category ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// save writes the full task row back, updating UpdatedAt.
func (s *SQLiteStore) save(t *Task) error {
	logJSON, _ := json.Marshal(t.ActivityLog)
	res, err := s.db.Exec(`
		UPDATE tasks SET
			title=?, description=?, due_date=?, priority=?, status=?, category=?,
			activity_log=?, updated_at=?
		WHERE owner=? AND id=?`,
		t.Title, t.Description, t.DueDate,
		string(t.Priority), string(t.Status), t.Category,
		string(logJSON), t.UpdatedAt,
		t.Owner, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func buildWhere(f Filter) (string, []any) {
	q := strings.Builder{}
	q.WriteString(" WHERE 1=1")
	args := []any{}

	if f.Owner != "" {
		q.WriteString(" AND owner=?")
		args = append(args, f.Owner)
	}
	if f.Status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*f.Status))
	}
	if f.NotStatus != nil {
		q.WriteString(" AND status<>?")
		args = append(args, string(*f.NotStatus))
	}
	if f.Priority != nil {
		q.WriteString(" AND priority=?")
		args = append(args, string(*f.Priority))
	}
	if f.Category != "" {
		q.WriteString(" AND category=?")
		args = append(args, f.Category)
	}
	if f.DueBefore != nil {
		q.WriteString(" AND due_date<?")
		args = append(args, *f.DueBefore)
	}
	if f.DueAfter != nil {
		q.WriteString(" AND due_date>=?")
		args = append(args, *f.DueAfter)
	}
	if f.Search != "" {
		q.WriteString(" AND (title LIKE ? OR description LIKE ?)")
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat)
	}
	return q.String(), args
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var priority, status, logJSON string

	err := s.Scan(
		&t.ID, &t.Owner, &t.Title, &t.Description, &t.DueDate,
		&priority, &status, &t.Category,
		&logJSON, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Priority = Priority(priority)
	t.Status = Status(status)
	_ = json.Unmarshal([]byte(logJSON), &t.ActivityLog)
	return &t, nil
}
