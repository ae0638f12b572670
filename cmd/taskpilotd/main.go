// Command taskpilotd is the TaskPilot server daemon.
// It serves the task REST API and the natural-language command endpoint
// from a YAML config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/taskpilot/taskpilot/command"
	"github.com/taskpilot/taskpilot/config"
	"github.com/taskpilot/taskpilot/internal/version"
	"github.com/taskpilot/taskpilot/provider"
	"github.com/taskpilot/taskpilot/provider/mock"
	"github.com/taskpilot/taskpilot/server"
	"github.com/taskpilot/taskpilot/task"
	"github.com/taskpilot/taskpilot/user"
)

var configPath = flag.String("config", "taskpilot.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	logger.Info("starting taskpilotd",
		"version", version.Version,
		"commit", version.Commit,
	)

	tasks, err := openTaskStore(cfg.Store.TaskDB)
	if err != nil {
		log.Fatalf("Failed to open task store: %v", err)
	}
	defer tasks.Close() //nolint:errcheck

	users, err := openUserStore(cfg.Store.UserDB)
	if err != nil {
		log.Fatalf("Failed to open user store: %v", err)
	}
	defer users.Close() //nolint:errcheck

	client, err := newInferenceClient(cfg.Inference)
	if err != nil {
		log.Fatalf("Failed to configure inference: %v", err)
	}
	logger.Info("inference configured", "provider", client.Name())

	srv := server.New(*cfg, version.Version, logger)
	srv.SetTaskStore(tasks)
	srv.SetUserStore(users)
	srv.SetInterpreter(command.NewOrchestrator(client, command.NewExecutor(tasks, logger), logger))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf("TaskPilot server running on %s\n", cfg.Server.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case <-sigCh:
	}

	fmt.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	fmt.Println("Shutdown complete")
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist so a bare `taskpilotd` works out of the box.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if !os.IsNotExist(errors.Unwrap(err)) {
			return nil, err
		}
		cfg = config.DefaultConfig()
		cfg.Resolve()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openTaskStore(path string) (*task.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return task.NewSQLiteStore(path)
}

func openUserStore(path string) (*user.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return user.NewSQLiteStore(path)
}

// newInferenceClient builds the provider named in the config.
func newInferenceClient(cfg config.InferenceConfig) (provider.Client, error) {
	switch cfg.Provider {
	case "openai":
		return provider.NewOpenAIClient(provider.OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}), nil
	case "anthropic":
		return provider.NewAnthropicClient(provider.AnthropicConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}), nil
	case "mock":
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
