package command

import (
	"fmt"
	"strings"
	"time"
)

// Inference knobs for command interpretation. Temperature stays near zero so
// repeated instructions decode to the same actions, and the newline stop
// bounds output to the single-line JSON array the prompt demands.
const (
	promptMaxTokens   = 512
	promptTemperature = 0.1
)

var promptStop = []string{"\n"}

// BuildPrompt renders the instruction into the fixed few-shot prompt the
// interpreter sends to the inference service. Today's date is embedded so
// the model resolves relative dates ("tomorrow", "next Friday") to absolute
// calendar form; the parser never does date arithmetic.
func BuildPrompt(instruction string, today time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Today's date is %s.\n", today.Format("2006-01-02"))
	b.WriteString(`You translate task-management instructions into JSON.
Respond with a single line containing only a JSON array of action objects and nothing else.

Each object has an "action" field: one of "add", "edit", "delete", "analytics".
- add: {"action":"add","title":...,"description":...,"dueDate":"YYYY-MM-DD","priority":"Low|Medium|High","status":"Not Started|In Progress|Completed"}
- edit: same fields as add; "title" names the existing task, include only the fields to change
- delete: {"action":"delete","title":...}; use "all tasks" as the title to delete everything
- analytics: {"action":"analytics","query":...}

Resolve every relative date against today's date before answering.

Instruction: Add a task to buy milk tomorrow, high priority
Response: [{"action":"add","title":"Buy milk","dueDate":"` + today.AddDate(0, 0, 1).Format("2006-01-02") + `","priority":"High"}]

Instruction: Mark the report as completed
Response: [{"action":"edit","title":"Report","status":"Completed"}]

Instruction: Delete all my tasks
Response: [{"action":"delete","title":"all tasks"}]

Instruction: How many tasks are overdue?
Response: [{"action":"analytics","query":"overdue"}]

Instruction: `)
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\nResponse:")
	return b.String()
}
