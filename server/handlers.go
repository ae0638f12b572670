package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/taskpilot/taskpilot/command"
	"github.com/taskpilot/taskpilot/provider"
	"github.com/taskpilot/taskpilot/task"
)

// taskRequest is the body accepted by POST and PATCH on tasks. Absent
// fields are left untouched on PATCH.
type taskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	Category    *string `json:"category"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Title == nil || *req.Title == "" {
		writeJSONError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.DueDate == nil {
		writeJSONError(w, http.StatusBadRequest, "dueDate is required")
		return
	}
	due, err := task.ParseDate(*req.DueDate)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid dueDate: "+err.Error())
		return
	}

	t := &task.Task{
		Owner:   subjectFrom(r.Context()),
		Title:   *req.Title,
		DueDate: due,
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Priority != nil {
		t.Priority = task.ParsePriority(*req.Priority)
	}
	if req.Status != nil {
		t.Status = task.ParseStatus(*req.Status)
	}
	if req.Category != nil {
		t.Category = *req.Category
	}

	if _, err := s.tasks.Create(t); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(subjectFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	owner := subjectFrom(r.Context())
	t, err := s.tasks.Get(owner, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var f task.Fields
	f.Title = req.Title
	f.Description = req.Description
	f.Category = req.Category
	if req.DueDate != nil {
		due, err := task.ParseDate(*req.DueDate)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid dueDate: "+err.Error())
			return
		}
		f.DueDate = &due
	}
	if req.Priority != nil {
		p := task.ParsePriority(*req.Priority)
		f.Priority = &p
	}
	if req.Status != nil {
		st := task.ParseStatus(*req.Status)
		f.Status = &st
	}

	if err := s.tasks.UpdateFields(t, f, owner); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	owner := subjectFrom(r.Context())
	t, err := s.tasks.Get(owner, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.tasks.Delete(t, owner); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := task.Filter{Owner: subjectFrom(r.Context())}

	if v := q.Get("status"); v != "" {
		st := task.ParseStatus(v)
		filter.Status = &st
	}
	if v := q.Get("priority"); v != "" {
		p := task.ParsePriority(v)
		filter.Priority = &p
	}
	if v := q.Get("category"); v != "" {
		filter.Category = v
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	s.writeTaskList(w, filter)
}

func (s *Server) listToday(w http.ResponseWriter, r *http.Request) {
	start := task.Midnight(time.Now().UTC())
	end := start.AddDate(0, 0, 1)
	s.writeTaskList(w, task.Filter{
		Owner:     subjectFrom(r.Context()),
		DueAfter:  &start,
		DueBefore: &end,
	})
}

func (s *Server) listOverdue(w http.ResponseWriter, r *http.Request) {
	// Cut off at the start of today so tasks due today are not yet overdue.
	start := task.Midnight(time.Now().UTC())
	completed := task.StatusCompleted
	s.writeTaskList(w, task.Filter{
		Owner:     subjectFrom(r.Context()),
		DueBefore: &start,
		NotStatus: &completed,
	})
}

func (s *Server) listUpcoming(w http.ResponseWriter, r *http.Request) {
	tomorrow := task.Midnight(time.Now().UTC()).AddDate(0, 0, 1)
	completed := task.StatusCompleted
	s.writeTaskList(w, task.Filter{
		Owner:     subjectFrom(r.Context()),
		DueAfter:  &tomorrow,
		NotStatus: &completed,
	})
}

func (s *Server) listByDate(w http.ResponseWriter, r *http.Request) {
	day, err := task.ParseDate(r.PathValue("date"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid date: "+err.Error())
		return
	}
	end := day.AddDate(0, 0, 1)
	s.writeTaskList(w, task.Filter{
		Owner:     subjectFrom(r.Context()),
		DueAfter:  &day,
		DueBefore: &end,
	})
}

func (s *Server) searchTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	if q == "" {
		q = r.URL.Query().Get("q")
	}
	if q == "" {
		writeJSONError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	s.writeTaskList(w, task.Filter{
		Owner:  subjectFrom(r.Context()),
		Search: q,
	})
}

func (s *Server) listByCategory(w http.ResponseWriter, r *http.Request) {
	s.writeTaskList(w, task.Filter{
		Owner:    subjectFrom(r.Context()),
		Category: r.PathValue("category"),
	})
}

// datesWithTasks returns the distinct due dates that have at least one
// task, for calendar views.
func (s *Server) datesWithTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(task.Filter{Owner: subjectFrom(r.Context())})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dates := []string{}
	seen := map[string]bool{}
	for _, t := range tasks {
		d := task.FormatDate(t.DueDate)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

// taskSummary returns aggregate counts for the dashboard.
func (s *Server) taskSummary(w http.ResponseWriter, r *http.Request) {
	owner := subjectFrom(r.Context())
	start := task.Midnight(time.Now().UTC())
	end := start.AddDate(0, 0, 1)
	completed := task.StatusCompleted
	inProgress := task.StatusInProgress
	notStarted := task.StatusNotStarted
	high := task.PriorityHigh

	counts := map[string]task.Filter{
		"total":        {Owner: owner},
		"completed":    {Owner: owner, Status: &completed},
		"inProgress":   {Owner: owner, Status: &inProgress},
		"notStarted":   {Owner: owner, Status: &notStarted},
		"overdue":      {Owner: owner, DueBefore: &start, NotStatus: &completed},
		"dueToday":     {Owner: owner, DueAfter: &start, DueBefore: &end},
		"highPriority": {Owner: owner, Priority: &high},
	}

	summary := make(map[string]int, len(counts))
	for name, f := range counts {
		n, err := s.tasks.Count(f)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		summary[name] = n
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.tasks.Categories(subjectFrom(r.Context()))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) writeTaskList(w http.ResponseWriter, f task.Filter) {
	tasks, err := s.tasks.List(f)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

// commandRequest is the body accepted by POST /api/ai/command. Prompt is
// an accepted alias for clients that send {"prompt": ...}.
type commandRequest struct {
	Instruction string `json:"instruction"`
	Prompt      string `json:"prompt"`
}

func (r commandRequest) text() string {
	if r.Instruction != "" {
		return r.Instruction
	}
	return r.Prompt
}

// commandResponse reports one result per interpreted action, in input
// order, plus a hint that the task list changed.
type commandResponse struct {
	Results []command.Result `json:"results"`
	Mutated bool             `json:"mutated"`
}

// handleCommand runs a natural-language instruction through the
// interpreter pipeline on behalf of the authenticated user.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	instruction := req.text()
	if instruction == "" {
		writeJSONError(w, http.StatusBadRequest, "instruction is required")
		return
	}

	results, mutated, err := s.interp.Run(r.Context(), subjectFrom(r.Context()), instruction)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrTimeout):
			writeJSONError(w, http.StatusGatewayTimeout, "inference timed out")
		case errors.Is(err, provider.ErrUnavailable):
			writeJSONError(w, http.StatusServiceUnavailable, "inference unavailable")
		default:
			writeJSONError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	s.logger.Info("command interpreted",
		slog.Int("results", len(results)),
		slog.Bool("mutated", mutated))
	writeJSON(w, http.StatusOK, commandResponse{Results: results, Mutated: mutated})
}
