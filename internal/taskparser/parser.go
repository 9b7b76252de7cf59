// Package taskparser extracts Task records from the plan text a ROUTA
// agent produces, and can render Task records back into that same text
// for round-tripping and the HTTP API's plan-preview endpoint.
package taskparser

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/routa-dev/routa/internal/store"
)

var blockRE = regexp.MustCompile(`(?s)@@@task\n(.*?)@@@`)

var sectionHeaders = []string{"## Objective", "## Scope", "## Definition of Done", "## Verification"}

// ParseTasks extracts every `@@@task ... @@@` block from planText and
// returns a fresh Task record per block. It never fails: malformed or
// missing sections simply yield empty fields, and text outside blocks is
// ignored.
func ParseTasks(planText string) []store.Task {
	matches := blockRE.FindAllStringSubmatch(planText, -1)

	var tasks []store.Task
	for _, m := range matches {
		tasks = append(tasks, parseBlock(m[1]))
	}
	return tasks
}

func parseBlock(body string) store.Task {
	now := time.Now()
	task := store.Task{
		ID:        uuid.NewString(),
		Title:     "Untitled Task",
		Status:    store.TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	lines := strings.Split(body, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			title := strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			if title != "" {
				task.Title = title
			}
			break
		}
	}

	task.Objective = extractSection(body, "## Objective")
	task.Scope = extractListSection(body, "## Scope")
	task.AcceptanceCriteria = extractListSection(body, "## Definition of Done")
	task.VerificationCommands = extractListSection(body, "## Verification")

	return task
}

// extractSection returns the free text between header and the next
// "## " section header (or end of body), trimmed.
func extractSection(body, header string) string {
	start := strings.Index(body, header)
	if start == -1 {
		return ""
	}
	rest := body[start+len(header):]
	end := nextHeaderIndex(rest)
	if end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// extractListSection returns the `-`-prefixed lines between header and
// the next section header, each trimmed of its leading marker.
func extractListSection(body, header string) []string {
	text := extractSection(body, header)
	if text == "" {
		return nil
	}

	var items []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "-") {
			continue
		}
		item := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// nextHeaderIndex returns the index of the next "## " header in s, or -1.
func nextHeaderIndex(s string) int {
	best := -1
	for _, h := range sectionHeaders {
		if idx := strings.Index(s, h); idx != -1 && (best == -1 || idx < best) {
			best = idx
		}
	}
	return best
}
