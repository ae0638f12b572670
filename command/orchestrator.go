package command

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/taskpilot/taskpilot/provider"
)

// batchPattern recognizes instructions of the form
// "<Add|Delete|Edit> N tasks: …" that bundle several statements.
var batchPattern = regexp.MustCompile(`(?is)^\s*(add|delete|edit)\s+\d+\s+tasks?\s*:\s*(.+)$`)

// statementSeparators split a batch body into individual statements.
var statementSeparators = regexp.MustCompile(`[;\n]+`)

// Orchestrator drives the full pipeline for one instruction: splitting,
// inference, parsing, and execution. It is the only component exposed to
// the calling service layer.
type Orchestrator struct {
	client provider.Client
	exec   *Executor
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator wires an inference client and an executor together.
func NewOrchestrator(client provider.Client, exec *Executor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{client: client, exec: exec, logger: logger, now: time.Now}
}

// Run interprets a free-form instruction for the given owner and returns one
// result per requested action, in input order. The boolean reports whether
// any action mutated the task store, as a hint for callers that cache views.
//
// Inference for sub-instructions runs concurrently, but parsing and
// execution are strictly sequential so two sub-instructions editing the
// same task by title cannot race.
func (o *Orchestrator) Run(ctx context.Context, owner, instruction string) ([]Result, bool, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, false, fmt.Errorf("empty instruction")
	}

	subs := splitInstruction(instruction)
	today := o.now().UTC()

	// Fan out inference; sub-instructions share no state at this stage.
	responses := make([]string, len(subs))
	inferErrs := make([]error, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub string) {
			defer wg.Done()
			responses[i], inferErrs[i] = o.client.Complete(ctx, provider.Request{
				Prompt:      BuildPrompt(sub, today),
				MaxTokens:   promptMaxTokens,
				Temperature: promptTemperature,
				Stop:        promptStop,
			})
		}(i, sub)
	}
	wg.Wait()

	failed := 0
	for _, err := range inferErrs {
		if err != nil {
			failed++
		}
	}
	if failed == len(subs) {
		return nil, false, fmt.Errorf("inference failed for all %d sub-instructions: %w", len(subs), inferErrs[0])
	}

	var results []Result
	mutated := false
	for i, sub := range subs {
		if err := inferErrs[i]; err != nil {
			o.logger.Warn("inference failed", slog.String("instruction", sub), slog.Any("err", err))
			results = append(results, Result{Kind: KindError, Instruction: sub, Error: err.Error()})
			continue
		}

		parsed, err := Parse(responses[i])
		if err != nil {
			o.logger.Warn("unparseable model output", slog.String("instruction", sub), slog.Any("err", err))
			results = append(results, Result{Kind: KindError, Instruction: sub, Error: err.Error()})
			continue
		}

		for _, tag := range parsed.Unrecognized {
			results = append(results, Result{
				Kind:        KindError,
				Instruction: sub,
				Error:       fmt.Sprintf("unrecognized action %q", tag),
			})
		}
		for _, a := range parsed.Actions {
			r := o.exec.Execute(owner, a)
			if r.Mutating() {
				mutated = true
			}
			results = append(results, r)
		}
	}
	return results, mutated, nil
}

// splitInstruction applies the batch-splitting rule: "<verb> N tasks: a; b"
// becomes ["<verb> a", "<verb> b"]. Instructions without the batch marker
// run whole.
func splitInstruction(instruction string) []string {
	m := batchPattern.FindStringSubmatch(instruction)
	if m == nil {
		return []string{strings.TrimSpace(instruction)}
	}
	verb, body := m[1], m[2]

	var subs []string
	for _, part := range statementSeparators.Split(body, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(part), strings.ToLower(verb)) {
			part = verb + " " + part
		}
		subs = append(subs, part)
	}
	if len(subs) == 0 {
		return []string{strings.TrimSpace(instruction)}
	}
	return subs
}
