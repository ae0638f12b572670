package command

import (
	"encoding/json"
	"strings"

	"github.com/taskpilot/taskpilot/task"
)

// rawAction mirrors one element of the JSON array the model is asked to emit.
type rawAction struct {
	Action      string  `json:"action"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	Query       string  `json:"query"`
}

// ParseResult is the outcome of decoding one model response.
type ParseResult struct {
	// Actions in the order they appeared in the decoded array.
	Actions []Action

	// Unrecognized holds the action tags that were dropped because they are
	// not one of the known kinds. The batch continues without them.
	Unrecognized []string
}

// Parse decodes raw model output into an ordered action list.
//
// It first attempts a structural decode of the whole text as a JSON array.
// If that fails it rescues the first substring bounded by a matching [ … ]
// pair and retries. If both fail it returns a ParseError carrying the raw
// text; the command is never silently dropped.
func Parse(raw string) (*ParseResult, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Raw: raw, Reason: "empty model output"}
	}

	var elems []rawAction
	if err := json.Unmarshal([]byte(trimmed), &elems); err != nil {
		sub, ok := extractArray(trimmed)
		if !ok {
			return nil, &ParseError{Raw: raw, Reason: "no JSON array found in model output"}
		}
		if err := json.Unmarshal([]byte(sub), &elems); err != nil {
			return nil, &ParseError{Raw: raw, Reason: "extracted array is not valid JSON: " + err.Error()}
		}
	}

	res := &ParseResult{}
	for _, el := range elems {
		tag := strings.ToLower(strings.TrimSpace(el.Action))
		switch Kind(tag) {
		case KindAdd:
			res.Actions = append(res.Actions, normalizeAdd(el))
		case KindEdit:
			res.Actions = append(res.Actions, normalizeEdit(el))
		case KindDelete:
			res.Actions = append(res.Actions, Action{Kind: KindDelete, Title: el.Title})
		case KindAnalytics:
			res.Actions = append(res.Actions, Action{Kind: KindAnalytics, Query: el.Query})
		default:
			// Unknown tags are dropped, never guessed at.
			res.Unrecognized = append(res.Unrecognized, el.Action)
		}
	}
	return res, nil
}

// normalizeAdd fills in the documented defaults for add actions: status
// "Not Started", priority "Medium", empty description. The due date passes
// through as the model emitted it; relative dates were already resolved
// against "today" in the prompt.
func normalizeAdd(el rawAction) Action {
	a := Action{Kind: KindAdd, Title: el.Title, DueDate: el.DueDate}

	desc := ""
	if el.Description != nil {
		desc = *el.Description
	}
	a.Description = &desc

	prio := task.PriorityMedium
	if el.Priority != nil {
		prio = task.ParsePriority(*el.Priority)
	}
	a.Priority = &prio

	status := task.StatusNotStarted
	if el.Status != nil {
		status = task.ParseStatus(*el.Status)
	}
	a.Status = &status

	return a
}

// normalizeEdit keeps only the fields the model supplied so the executor can
// perform a partial update.
func normalizeEdit(el rawAction) Action {
	a := Action{Kind: KindEdit, Title: el.Title, Description: el.Description, DueDate: el.DueDate}
	if el.Priority != nil {
		p := task.ParsePriority(*el.Priority)
		a.Priority = &p
	}
	if el.Status != nil {
		s := task.ParseStatus(*el.Status)
		a.Status = &s
	}
	return a
}

// extractArray returns the first substring of s bounded by a matching pair
// of square brackets, tracking quoted strings so brackets inside titles do
// not unbalance the scan.
func extractArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
