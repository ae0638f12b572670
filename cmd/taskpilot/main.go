// Command taskpilot is the TaskPilot CLI client.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/taskpilot/taskpilot/internal/version"
)

const defaultServer = "http://localhost:8735"

func main() {
	var (
		serverURL = flag.String("server", defaultServer, "taskpilot server URL")
		token     = flag.String("token", os.Getenv("TASKPILOT_TOKEN"), "JWT auth token")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		Token:      *token,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "register":
		err = cli.cmdRegister(rest)
	case "login":
		err = cli.cmdLogin(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "summary":
		err = cli.cmdSummary(rest)
	case "do":
		err = cli.cmdDo(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `taskpilot — TaskPilot CLI

Usage:
  taskpilot [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:8735)
  --token   <token>  JWT auth token (or $TASKPILOT_TOKEN)

Commands:
  version                        print version
  status                         show server status
  register <user> <email>        create an account (prompts for password on stdin)
  login <user>                   log in and print a token
  tasks [today|overdue|upcoming] list tasks
  task create <title> <date>     create a task due on <date> (YYYY-MM-DD)
  task done <id>                 mark a task completed
  task rm <id>                   delete a task
  summary                        show task counts
  do <instruction...>            run a natural-language command
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("taskpilot %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func (c *Client) do(method, path string, body io.Reader, v any) error {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func (c *Client) get(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

func (c *Client) post(path string, body any, v any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = strings.NewReader(string(data))
	}
	return c.do(http.MethodPost, path, r, v)
}

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result map[string]string
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Printf("version: %s\n", result["version"])
	fmt.Printf("uptime:  %s\n", result["uptime"])
	return nil
}

// --- auth ---

func (c *Client) cmdRegister(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: taskpilot register <username> <email>")
	}
	password, err := readPassword()
	if err != nil {
		return err
	}
	var result struct {
		Token string `json:"token"`
	}
	err = c.post("/api/auth/register", map[string]string{
		"username": args[0],
		"email":    args[1],
		"password": password,
	}, &result)
	if err != nil {
		return err
	}
	fmt.Printf("registered; export TASKPILOT_TOKEN=%s\n", result.Token)
	return nil
}

func (c *Client) cmdLogin(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskpilot login <username>")
	}
	password, err := readPassword()
	if err != nil {
		return err
	}
	var result struct {
		Token string `json:"token"`
	}
	err = c.post("/api/auth/login", map[string]string{
		"username": args[0],
		"password": password,
	}, &result)
	if err != nil {
		return err
	}
	fmt.Printf("export TASKPILOT_TOKEN=%s\n", result.Token)
	return nil
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	var password string
	if _, err := fmt.Scanln(&password); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}

// --- tasks ---

func (c *Client) cmdTasks(args []string) error {
	path := "/api/tasks"
	if len(args) > 0 {
		switch args[0] {
		case "today", "overdue", "upcoming":
			path += "/" + args[0]
		default:
			return fmt.Errorf("unknown tasks view: %s", args[0])
		}
	}

	var result struct {
		Tasks []map[string]any `json:"tasks"`
	}
	if err := c.get(path, &result); err != nil {
		return err
	}
	if len(result.Tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	fmt.Printf("%-36s %-30s %-12s %-8s %-12s\n", "ID", "TITLE", "DUE", "PRIORITY", "STATUS")
	fmt.Println(strings.Repeat("-", 102))
	for _, t := range result.Tasks {
		due := strVal(t["dueDate"])
		if len(due) > 10 {
			due = due[:10]
		}
		fmt.Printf("%-36s %-30s %-12s %-8s %-12s\n",
			strVal(t["id"]),
			truncate(strVal(t["title"]), 29),
			due,
			strVal(t["priority"]),
			strVal(t["status"]),
		)
	}
	return nil
}

func (c *Client) cmdTask(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskpilot task <create|done|rm> ...")
	}
	switch args[0] {
	case "create":
		if len(args) < 3 {
			return fmt.Errorf("usage: taskpilot task create <title> <YYYY-MM-DD>")
		}
		title := strings.Join(args[1:len(args)-1], " ")
		var result map[string]any
		err := c.post("/api/tasks", map[string]string{
			"title":   title,
			"dueDate": args[len(args)-1],
		}, &result)
		if err != nil {
			return err
		}
		fmt.Printf("created task %s\n", strVal(result["id"]))
	case "done":
		if len(args) < 2 {
			return fmt.Errorf("usage: taskpilot task done <id>")
		}
		body := strings.NewReader(`{"status":"Completed"}`)
		if err := c.do(http.MethodPatch, "/api/tasks/"+args[1], body, nil); err != nil {
			return err
		}
		fmt.Printf("task %s completed\n", args[1])
	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("usage: taskpilot task rm <id>")
		}
		if err := c.do(http.MethodDelete, "/api/tasks/"+args[1], nil, nil); err != nil {
			return err
		}
		fmt.Printf("task %s deleted\n", args[1])
	default:
		return fmt.Errorf("unknown task subcommand: %s", args[0])
	}
	return nil
}

func (c *Client) cmdSummary(_ []string) error {
	var summary map[string]int
	if err := c.get("/api/tasks/summary", &summary); err != nil {
		return err
	}
	for _, k := range []string{"total", "notStarted", "inProgress", "completed", "overdue", "dueToday", "highPriority"} {
		fmt.Printf("%-13s %d\n", k, summary[k])
	}
	return nil
}

// --- natural-language commands ---

func (c *Client) cmdDo(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: taskpilot do <instruction...>")
	}
	instruction := strings.Join(args, " ")

	var result struct {
		Results []struct {
			Kind    string `json:"kind"`
			Title   string `json:"title,omitempty"`
			Query   string `json:"query,omitempty"`
			Success bool   `json:"success"`
			Error   string `json:"error,omitempty"`
			Count   *int   `json:"count,omitempty"`
			Deleted int    `json:"deleted,omitempty"`
		} `json:"results"`
	}
	err := c.post("/api/ai/command", map[string]string{"instruction": instruction}, &result)
	if err != nil {
		return err
	}

	for _, r := range result.Results {
		switch {
		case !r.Success:
			fmt.Printf("✗ %s: %s\n", r.Kind, r.Error)
		case r.Count != nil:
			fmt.Printf("✓ %s %q: %d\n", r.Kind, r.Query, *r.Count)
		case r.Kind == "delete":
			fmt.Printf("✓ deleted %d task(s)\n", r.Deleted)
		default:
			fmt.Printf("✓ %s %q\n", r.Kind, r.Title)
		}
	}
	return nil
}

// --- helpers ---

func strVal(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
