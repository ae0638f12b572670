package task

import (
	"errors"
	"os"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "taskpilot-task-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	task := &Task{
		Owner:       "user-1",
		Title:       "Buy milk",
		Description: "2 liters",
		DueDate:     date(t, "2026-09-01"),
		Priority:    PriorityHigh,
	}
	id, err := store.Create(task)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty ID")
	}

	got, err := store.Get("user-1", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Buy milk" {
		t.Errorf("Title = %q, want Buy milk", got.Title)
	}
	if got.Status != StatusNotStarted {
		t.Errorf("Status = %q, want default %q", got.Status, StatusNotStarted)
	}
	if got.Category != DefaultCategory {
		t.Errorf("Category = %q, want default %q", got.Category, DefaultCategory)
	}
	if len(got.ActivityLog) != 1 || got.ActivityLog[0].Action != "created" {
		t.Errorf("ActivityLog = %+v, want one created entry", got.ActivityLog)
	}
}

func TestSQLiteStore_Create_RequiresDueDate(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create(&Task{Owner: "user-1", Title: "no due date"})
	if err == nil {
		t.Fatal("expected error creating task without due date")
	}
}

func TestSQLiteStore_Get_OtherOwner(t *testing.T) {
	store := newTestStore(t)
	task := &Task{Owner: "user-1", Title: "mine", DueDate: date(t, "2026-09-01")}
	id, err := store.Create(task)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.Get("user-2", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get as other owner: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_FindByTitle(t *testing.T) {
	store := newTestStore(t)

	first := &Task{Owner: "user-1", Title: "Dup", Description: "first", DueDate: date(t, "2026-09-01")}
	if _, err := store.Create(first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	second := &Task{Owner: "user-1", Title: "Dup", Description: "second", DueDate: date(t, "2026-09-02")}
	if _, err := store.Create(second); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.FindByTitle("user-1", "Dup")
	if err != nil {
		t.Fatalf("FindByTitle: %v", err)
	}
	// Duplicate titles resolve to the oldest task.
	if got.Description != "first" {
		t.Errorf("FindByTitle picked %q, want the first-created task", got.Description)
	}

	// Exact matching is case-sensitive.
	if _, err := store.FindByTitle("user-1", "dup"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByTitle(lowercase): err = %v, want ErrNotFound", err)
	}
	if _, err := store.FindByTitle("user-2", "Dup"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByTitle as other owner: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_UpdateFields_LogsPerChangedField(t *testing.T) {
	store := newTestStore(t)

	task := &Task{Owner: "user-1", Title: "orig", DueDate: date(t, "2026-09-01")}
	if _, err := store.Create(task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	title := "renamed"
	status := StatusInProgress
	if err := store.UpdateFields(task, Fields{Title: &title, Status: &status}, "user-1"); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	got, err := store.Get("user-1", task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "renamed" {
		t.Errorf("Title = %q, want renamed", got.Title)
	}
	if got.Status != StatusInProgress {
		t.Errorf("Status = %q, want %q", got.Status, StatusInProgress)
	}
	// created + title_changed + status_changed
	if len(got.ActivityLog) != 3 {
		t.Fatalf("ActivityLog has %d entries, want 3: %+v", len(got.ActivityLog), got.ActivityLog)
	}
	if got.ActivityLog[1].Action != "title_changed" {
		t.Errorf("entry[1].Action = %q, want title_changed", got.ActivityLog[1].Action)
	}
	if got.ActivityLog[1].Details["from"] != "orig" || got.ActivityLog[1].Details["to"] != "renamed" {
		t.Errorf("title_changed details = %v", got.ActivityLog[1].Details)
	}
	if got.ActivityLog[2].Action != "status_changed" {
		t.Errorf("entry[2].Action = %q, want status_changed", got.ActivityLog[2].Action)
	}
}

func TestSQLiteStore_UpdateFields_NoChangeLogsGenericEntry(t *testing.T) {
	store := newTestStore(t)

	task := &Task{Owner: "user-1", Title: "same", DueDate: date(t, "2026-09-01")}
	if _, err := store.Create(task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	title := "same" // identical value, no field changes
	if err := store.UpdateFields(task, Fields{Title: &title}, "user-1"); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	got, err := store.Get("user-1", task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.ActivityLog) != 2 {
		t.Fatalf("ActivityLog has %d entries, want 2", len(got.ActivityLog))
	}
	if got.ActivityLog[1].Action != "updated" {
		t.Errorf("entry[1].Action = %q, want updated", got.ActivityLog[1].Action)
	}
}

func TestSQLiteStore_UpdateFields_AbsentFieldsUntouched(t *testing.T) {
	store := newTestStore(t)

	task := &Task{
		Owner:       "user-1",
		Title:       "keep",
		Description: "original description",
		DueDate:     date(t, "2026-09-01"),
		Priority:    PriorityHigh,
	}
	if _, err := store.Create(task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	status := StatusCompleted
	if err := store.UpdateFields(task, Fields{Status: &status}, "user-1"); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	got, err := store.Get("user-1", task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != "original description" {
		t.Errorf("Description changed: %q", got.Description)
	}
	if got.Priority != PriorityHigh {
		t.Errorf("Priority changed: %q", got.Priority)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)

	task := &Task{Owner: "user-1", Title: "to delete", DueDate: date(t, "2026-09-01")}
	id, err := store.Create(task)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Delete(task, "user-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get("user-1", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_DeleteAllByOwner(t *testing.T) {
	store := newTestStore(t)

	for _, title := range []string{"a", "b", "c"} {
		if _, err := store.Create(&Task{Owner: "user-1", Title: title, DueDate: date(t, "2026-09-01")}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := store.Create(&Task{Owner: "user-2", Title: "other", DueDate: date(t, "2026-09-01")}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := store.DeleteAllByOwner("user-1")
	if err != nil {
		t.Fatalf("DeleteAllByOwner: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted %d tasks, want 3", n)
	}

	// Other owner's tasks untouched.
	others, err := store.List(Filter{Owner: "user-2"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(others) != 1 {
		t.Errorf("user-2 has %d tasks, want 1", len(others))
	}
}

func TestSQLiteStore_ListAndCount(t *testing.T) {
	store := newTestStore(t)

	seed := []*Task{
		{Owner: "user-1", Title: "t1", DueDate: date(t, "2026-08-01"), Status: StatusCompleted, Category: "Work"},
		{Owner: "user-1", Title: "t2", DueDate: date(t, "2026-08-15"), Status: StatusInProgress, Priority: PriorityHigh},
		{Owner: "user-1", Title: "t3 report", DueDate: date(t, "2026-09-15"), Status: StatusNotStarted},
		{Owner: "user-2", Title: "t4", DueDate: date(t, "2026-08-01"), Status: StatusNotStarted},
	}
	for _, task := range seed {
		if _, err := store.Create(task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := store.List(Filter{Owner: "user-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List: got %d, want 3", len(all))
	}
	// Ordered by due date ascending.
	if all[0].Title != "t1" || all[2].Title != "t3 report" {
		t.Errorf("List order: %q … %q", all[0].Title, all[2].Title)
	}

	completed := StatusCompleted
	n, err := store.Count(Filter{Owner: "user-1", Status: &completed})
	if err != nil {
		t.Fatalf("Count completed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count completed = %d, want 1", n)
	}

	// Overdue shape: due strictly before cutoff and not completed.
	cutoff := date(t, "2026-09-01")
	n, err = store.Count(Filter{Owner: "user-1", DueBefore: &cutoff, NotStatus: &completed})
	if err != nil {
		t.Fatalf("Count overdue: %v", err)
	}
	if n != 1 {
		t.Errorf("Count overdue = %d, want 1 (t2)", n)
	}

	high := PriorityHigh
	n, err = store.Count(Filter{Owner: "user-1", Priority: &high})
	if err != nil {
		t.Fatalf("Count high: %v", err)
	}
	if n != 1 {
		t.Errorf("Count high priority = %d, want 1", n)
	}

	found, err := store.List(Filter{Owner: "user-1", Search: "report"})
	if err != nil {
		t.Fatalf("List search: %v", err)
	}
	if len(found) != 1 || found[0].Title != "t3 report" {
		t.Errorf("Search results = %+v", found)
	}
}

func TestSQLiteStore_Categories(t *testing.T) {
	store := newTestStore(t)

	seed := []*Task{
		{Owner: "user-1", Title: "t1", DueDate: date(t, "2026-08-01"), Category: "Work"},
		{Owner: "user-1", Title: "t2", DueDate: date(t, "2026-08-02"), Category: "Work"},
		{Owner: "user-1", Title: "t3", DueDate: date(t, "2026-08-03")},
	}
	for _, task := range seed {
		if _, err := store.Create(task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	cats, err := store.Categories("user-1")
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 || cats[0] != "General" || cats[1] != "Work" {
		t.Errorf("Categories = %v, want [General Work]", cats)
	}
}
