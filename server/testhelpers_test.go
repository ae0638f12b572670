package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskpilot/taskpilot/command"
	"github.com/taskpilot/taskpilot/config"
	"github.com/taskpilot/taskpilot/provider"
	"github.com/taskpilot/taskpilot/task"
	"github.com/taskpilot/taskpilot/user"
)

// newTestServer builds a Server over fresh SQLite stores and the given
// inference client, with routes registered.
func newTestServer(t *testing.T, client provider.Client) *Server {
	t.Helper()

	dir := t.TempDir()
	tasks, err := task.NewSQLiteStore(filepath.Join(dir, "tasks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tasks.Close() })

	users, err := user.NewSQLiteStore(filepath.Join(dir, "users.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { users.Close() })

	cfg := config.Config{
		Server: config.ServerConfig{Addr: ":0"},
		Auth: config.AuthConfig{
			JWTSecret: "test-secret-key-1234567890",
			TokenTTL:  time.Hour,
		},
	}
	s := New(cfg, "test", nil)
	s.SetTaskStore(tasks)
	s.SetUserStore(users)
	if client != nil {
		s.SetInterpreter(command.NewOrchestrator(client, command.NewExecutor(tasks, nil), nil))
	}
	s.registerRoutes()
	return s
}

// doJSON performs a request with an optional bearer token and JSON body.
func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	return rr
}

// registerUser creates an account and returns its token.
func registerUser(t *testing.T, s *Server, username string) string {
	t.Helper()
	rr := doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"firstName": "Test",
		"lastName":  "User",
		"username":  username,
		"email":     username + "@example.com",
		"password":  "hunter2secret",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register failed: %d: %s", rr.Code, rr.Body.String())
	}
	var resp authResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected non-empty token")
	}
	return resp.Token
}

// createTask makes one task through the API and returns it.
func createTask(t *testing.T, s *Server, token, title, dueDate string, extra map[string]string) task.Task {
	t.Helper()
	body := map[string]string{"title": title, "dueDate": dueDate}
	for k, v := range extra {
		body[k] = v
	}
	rr := doJSON(t, s, http.MethodPost, "/api/tasks", token, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create task failed: %d: %s", rr.Code, rr.Body.String())
	}
	var created task.Task
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return created
}

// decodeTaskList unwraps the {"tasks": [...], "count": n} list envelope.
func decodeTaskList(t *testing.T, rr *httptest.ResponseRecorder) []task.Task {
	t.Helper()
	var resp struct {
		Tasks []task.Task `json:"tasks"`
		Count int         `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode task list: %v", err)
	}
	if resp.Count != len(resp.Tasks) {
		t.Errorf("count = %d for %d tasks", resp.Count, len(resp.Tasks))
	}
	return resp.Tasks
}
