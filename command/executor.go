package command

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/taskpilot/taskpilot/task"
)

// Result messages reported to the caller.
const (
	errTaskNotFound     = "Task not found"
	errUnsupportedQuery = "Unsupported analytics query"
)

// Result reports the outcome of one action. Exactly one Result is produced
// per action; failures never abort the rest of the batch.
type Result struct {
	Kind        Kind   `json:"kind"`
	Title       string `json:"title,omitempty"`
	Query       string `json:"query,omitempty"`
	Instruction string `json:"instruction,omitempty"` // failing sub-instruction, error kind only
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	TaskID      string `json:"taskId,omitempty"`  // add only
	Deleted     int    `json:"deleted,omitempty"` // bulk delete only
	Count       *int   `json:"count,omitempty"`   // analytics only
}

// Mutating reports whether the result represents a successful write to the
// task store (as opposed to a pure analytics read or a failure).
func (r Result) Mutating() bool {
	if !r.Success {
		return false
	}
	switch r.Kind {
	case KindAdd, KindEdit, KindDelete:
		return true
	default:
		return false
	}
}

// bulkDeletePhrases are the delete titles that mean "everything I own".
// Matching is case-insensitive substring containment.
var bulkDeletePhrases = []string{
	"all tasks",
	"every task",
	"all my tasks",
	"everything",
	"all entries",
}

// analyticsQueries pins the substring precedence for analytics matching.
// Earlier entries win; tests depend on this exact order.
var analyticsQueries = []struct {
	substr string
	filter func(owner string, now time.Time) task.Filter
}{
	{"overdue", func(owner string, now time.Time) task.Filter {
		completed := task.StatusCompleted
		return task.Filter{Owner: owner, DueBefore: &now, NotStatus: &completed}
	}},
	{"completed", statusFilter(task.StatusCompleted)},
	{"in progress", statusFilter(task.StatusInProgress)},
	{"not started", statusFilter(task.StatusNotStarted)},
	{"high priority", priorityFilter(task.PriorityHigh)},
	{"medium priority", priorityFilter(task.PriorityMedium)},
	{"low priority", priorityFilter(task.PriorityLow)},
}

func statusFilter(s task.Status) func(string, time.Time) task.Filter {
	return func(owner string, _ time.Time) task.Filter {
		return task.Filter{Owner: owner, Status: &s}
	}
}

func priorityFilter(p task.Priority) func(string, time.Time) task.Filter {
	return func(owner string, _ time.Time) task.Filter {
		return task.Filter{Owner: owner, Priority: &p}
	}
}

// Executor applies parsed actions to the task store. It owns all task
// identification and bulk-operation policy.
type Executor struct {
	store  task.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewExecutor creates an Executor over the given store.
func NewExecutor(store task.Store, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, logger: logger, now: time.Now}
}

// Execute applies one action for the given owner and returns its result.
func (e *Executor) Execute(owner string, a Action) Result {
	switch a.Kind {
	case KindAdd:
		return e.add(owner, a)
	case KindEdit:
		return e.edit(owner, a)
	case KindDelete:
		return e.delete(owner, a)
	case KindAnalytics:
		return e.analytics(owner, a)
	default:
		return Result{Kind: a.Kind, Title: a.Title, Error: "unknown action kind"}
	}
}

func (e *Executor) add(owner string, a Action) Result {
	res := Result{Kind: KindAdd, Title: a.Title}

	if strings.TrimSpace(a.Title) == "" {
		res.Error = "Title is required"
		return res
	}
	if a.DueDate == nil || strings.TrimSpace(*a.DueDate) == "" {
		res.Error = "Due date is required"
		return res
	}
	due, err := task.ParseDate(*a.DueDate)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	t := &task.Task{
		Owner:   owner,
		Title:   a.Title,
		DueDate: due,
	}
	if a.Description != nil {
		t.Description = *a.Description
	}
	if a.Priority != nil {
		t.Priority = *a.Priority
	}
	if a.Status != nil {
		t.Status = *a.Status
	}

	id, err := e.store.Create(t)
	if err != nil {
		e.logger.Error("create task", slog.String("title", a.Title), slog.Any("err", err))
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.TaskID = id
	return res
}

func (e *Executor) edit(owner string, a Action) Result {
	res := Result{Kind: KindEdit, Title: a.Title}

	t, err := e.store.FindByTitle(owner, a.Title)
	if errors.Is(err, task.ErrNotFound) {
		// Never create a task as an edit fallback.
		res.Error = errTaskNotFound
		return res
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}

	f := task.Fields{
		Description: a.Description,
		Priority:    a.Priority,
		Status:      a.Status,
	}
	if a.DueDate != nil {
		due, err := task.ParseDate(*a.DueDate)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		f.DueDate = &due
	}

	if err := e.store.UpdateFields(t, f, owner); err != nil {
		e.logger.Error("edit task", slog.String("title", a.Title), slog.Any("err", err))
		res.Error = err.Error()
		return res
	}
	res.Success = true
	return res
}

func (e *Executor) delete(owner string, a Action) Result {
	res := Result{Kind: KindDelete, Title: a.Title}

	if isBulkDelete(a.Title) {
		n, err := e.store.DeleteAllByOwner(owner)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Success = true
		res.Deleted = n
		return res
	}

	t, err := e.store.FindByTitle(owner, a.Title)
	if errors.Is(err, task.ErrNotFound) {
		res.Error = errTaskNotFound
		return res
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if err := e.store.Delete(t, owner); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Deleted = 1
	return res
}

func (e *Executor) analytics(owner string, a Action) Result {
	res := Result{Kind: KindAnalytics, Query: a.Query}

	q := strings.ToLower(a.Query)
	for _, aq := range analyticsQueries {
		if !strings.Contains(q, aq.substr) {
			continue
		}
		n, err := e.store.Count(aq.filter(owner, e.now().UTC()))
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Success = true
		res.Count = &n
		return res
	}

	res.Error = errUnsupportedQuery
	return res
}

// isBulkDelete reports whether a delete title means "all owned tasks".
func isBulkDelete(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	for _, phrase := range bulkDeletePhrases {
		if strings.Contains(t, phrase) {
			return true
		}
	}
	return false
}
