package taskparser

import (
	"strings"

	"github.com/routa-dev/routa/internal/store"
)

// Render turns a Task back into `@@@task` block text using the same
// grammar ParseTasks consumes, so ParseTasks(Render(t)) reproduces t's
// title, objective, scope, acceptance criteria, and verification
// commands. Used by the plan-preview HTTP endpoint and by the round-trip
// property test.
func Render(task store.Task) string {
	var b strings.Builder

	b.WriteString("@@@task\n")
	b.WriteString("# ")
	b.WriteString(task.Title)
	b.WriteString("\n\n")

	b.WriteString("## Objective\n")
	b.WriteString(task.Objective)
	b.WriteString("\n\n")

	renderList(&b, "## Scope", task.Scope)
	renderList(&b, "## Definition of Done", task.AcceptanceCriteria)
	renderList(&b, "## Verification", task.VerificationCommands)

	b.WriteString("@@@")
	return b.String()
}

func renderList(b *strings.Builder, header string, items []string) {
	b.WriteString(header)
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
