// Package task defines the task model and persistence for taskpilot.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no task matches a lookup.
var ErrNotFound = errors.New("task not found")

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Priority represents task urgency.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// DefaultCategory is applied when a task has no category.
const DefaultCategory = "General"

// ActivityEntry is one record in a task's append-only audit trail.
type ActivityEntry struct {
	Action    string         `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Details   map[string]any `json:"details,omitempty"`
}

// Task is a single to-do item owned by exactly one user.
type Task struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DueDate     time.Time       `json:"dueDate"`
	Priority    Priority        `json:"priority"`
	Status      Status          `json:"status"`
	Category    string          `json:"category"`
	ActivityLog []ActivityEntry `json:"activityLog,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Fields is a partial update: nil members leave the task untouched.
type Fields struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *Priority
	Status      *Status
	Category    *string
}

// Apply mutates the task with the non-nil fields and appends one activity
// entry per field whose value actually changed. A write that changes nothing
// appends a single generic "updated" entry. Returns the number of changed
// fields.
func (t *Task) Apply(f Fields, actor string, now time.Time) int {
	changed := 0
	logChange := func(field string, from, to any) {
		t.ActivityLog = append(t.ActivityLog, ActivityEntry{
			Action:    field + "_changed",
			Timestamp: now,
			Actor:     actor,
			Details:   map[string]any{"from": from, "to": to},
		})
		changed++
	}

	if f.Title != nil && *f.Title != t.Title {
		logChange("title", t.Title, *f.Title)
		t.Title = *f.Title
	}
	if f.Description != nil && *f.Description != t.Description {
		logChange("description", t.Description, *f.Description)
		t.Description = *f.Description
	}
	if f.DueDate != nil && !f.DueDate.Equal(t.DueDate) {
		logChange("dueDate", FormatDate(t.DueDate), FormatDate(*f.DueDate))
		t.DueDate = *f.DueDate
	}
	if f.Priority != nil && *f.Priority != t.Priority {
		logChange("priority", string(t.Priority), string(*f.Priority))
		t.Priority = *f.Priority
	}
	if f.Status != nil && *f.Status != t.Status {
		logChange("status", string(t.Status), string(*f.Status))
		t.Status = *f.Status
	}
	if f.Category != nil && *f.Category != t.Category {
		logChange("category", t.Category, *f.Category)
		t.Category = *f.Category
	}

	if changed == 0 {
		t.ActivityLog = append(t.ActivityLog, ActivityEntry{
			Action:    "updated",
			Timestamp: now,
			Actor:     actor,
		})
	}
	return changed
}

// snapshot captures the task's current field values for audit entries.
func (t *Task) snapshot() map[string]any {
	return map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"dueDate":     FormatDate(t.DueDate),
		"priority":    string(t.Priority),
		"status":      string(t.Status),
		"category":    t.Category,
	}
}

// Store persists and retrieves tasks, always scoped to an owning user.
type Store interface {
	// Create persists a new task and returns its assigned ID.
	Create(t *Task) (string, error)

	// Get retrieves a task by ID, restricted to the given owner.
	Get(owner, id string) (*Task, error)

	// FindByTitle returns the owner's oldest task whose title matches
	// exactly (case-sensitive), or ErrNotFound.
	FindByTitle(owner, title string) (*Task, error)

	// UpdateFields applies a partial update and records activity entries.
	UpdateFields(t *Task, f Fields, actor string) error

	// Delete appends a terminal "deleted" activity entry and removes the task.
	Delete(t *Task, actor string) error

	// DeleteAllByOwner removes every task owned by owner, returning the count.
	DeleteAllByOwner(owner string) (int, error)

	// List returns tasks matching the filter, ordered by due date.
	List(f Filter) ([]*Task, error)

	// Count returns the number of tasks matching the filter.
	Count(f Filter) (int, error)

	// Categories returns the distinct category labels used by owner.
	Categories(owner string) ([]string, error)
}

// Filter controls which tasks List and Count consider.
type Filter struct {
	Owner     string
	Status    *Status
	NotStatus *Status
	Priority  *Priority
	Category  string
	DueBefore *time.Time // strictly before
	DueAfter  *time.Time // on or after
	Search    string     // case-insensitive substring on title/description
	Limit     int
}

// ParseDate parses a calendar date in YYYY-MM-DD form, tolerating a full
// RFC 3339 timestamp, and normalizes it to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return Midnight(t), nil
}

// FormatDate renders a date in YYYY-MM-DD form.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// Midnight truncates a timestamp to its UTC calendar date.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParsePriority canonicalizes a priority label case-insensitively. Unknown
// labels fall back to Medium.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// ParseStatus canonicalizes a status label case-insensitively. Unknown labels
// fall back to Not Started.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in progress":
		return StatusInProgress
	case "completed":
		return StatusCompleted
	default:
		return StatusNotStarted
	}
}
