package taskparser

import (
	"strings"
	"testing"

	"github.com/routa-dev/routa/internal/store"
)

const samplePlan = `Some preamble text that should be ignored.

@@@task
# Add input validation

## Objective
Validate all incoming request bodies against the schema.

## Scope
- internal/httpapi/handlers.go
- internal/httpapi/validate.go

## Definition of Done
- Invalid bodies return 400 with a field-level error list.

## Verification
- go test ./internal/httpapi/...
@@@

@@@task
# Wire the websocket stream

## Objective
Forward OrchestratorPhase updates over the websocket endpoint.

## Scope
- internal/wsstream

## Definition of Done
- A connected client observes phase transitions in order.

## Verification
- go test ./internal/wsstream/...
@@@

Trailing text, also ignored.
`

func TestParseTasks_ExtractsAllBlocks(t *testing.T) {
	tasks := ParseTasks(samplePlan)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
}

func TestParseTasks_Title(t *testing.T) {
	tasks := ParseTasks(samplePlan)
	if tasks[0].Title != "Add input validation" {
		t.Errorf("Title = %q, want %q", tasks[0].Title, "Add input validation")
	}
	if tasks[1].Title != "Wire the websocket stream" {
		t.Errorf("Title = %q, want %q", tasks[1].Title, "Wire the websocket stream")
	}
}

func TestParseTasks_Objective(t *testing.T) {
	tasks := ParseTasks(samplePlan)
	want := "Validate all incoming request bodies against the schema."
	if tasks[0].Objective != want {
		t.Errorf("Objective = %q, want %q", tasks[0].Objective, want)
	}
}

func TestParseTasks_ScopeList(t *testing.T) {
	tasks := ParseTasks(samplePlan)
	want := []string{"internal/httpapi/handlers.go", "internal/httpapi/validate.go"}
	if len(tasks[0].Scope) != len(want) {
		t.Fatalf("Scope = %+v, want %+v", tasks[0].Scope, want)
	}
	for i := range want {
		if tasks[0].Scope[i] != want[i] {
			t.Errorf("Scope[%d] = %q, want %q", i, tasks[0].Scope[i], want[i])
		}
	}
}

func TestParseTasks_AcceptanceCriteriaAndVerification(t *testing.T) {
	tasks := ParseTasks(samplePlan)
	if len(tasks[0].AcceptanceCriteria) != 1 {
		t.Fatalf("AcceptanceCriteria = %+v, want 1 item", tasks[0].AcceptanceCriteria)
	}
	if len(tasks[0].VerificationCommands) != 1 || tasks[0].VerificationCommands[0] != "go test ./internal/httpapi/..." {
		t.Fatalf("VerificationCommands = %+v", tasks[0].VerificationCommands)
	}
}

func TestParseTasks_FreshIDsAndPendingStatus(t *testing.T) {
	tasks := ParseTasks(samplePlan)
	if tasks[0].ID == "" || tasks[1].ID == "" || tasks[0].ID == tasks[1].ID {
		t.Fatalf("expected distinct fresh ids, got %q and %q", tasks[0].ID, tasks[1].ID)
	}
	for _, task := range tasks {
		if task.Status != store.TaskPending {
			t.Errorf("Status = %s, want PENDING", task.Status)
		}
		if task.CreatedAt.IsZero() || !task.CreatedAt.Equal(task.UpdatedAt) {
			t.Errorf("expected CreatedAt == UpdatedAt, got %v vs %v", task.CreatedAt, task.UpdatedAt)
		}
	}
}

func TestParseTasks_NoBlocksReturnsEmpty(t *testing.T) {
	tasks := ParseTasks("just some prose, no task blocks here")
	if len(tasks) != 0 {
		t.Errorf("expected no tasks, got %+v", tasks)
	}
}

func TestParseTasks_MalformedInputNeverFails(t *testing.T) {
	malformed := "@@@task\nnot even a title line\n@@@"
	tasks := ParseTasks(malformed)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task even for malformed body, got %d", len(tasks))
	}
	if tasks[0].Title != "Untitled Task" {
		t.Errorf("Title = %q, want default %q", tasks[0].Title, "Untitled Task")
	}
	if tasks[0].Objective != "" {
		t.Errorf("Objective should be empty for missing section, got %q", tasks[0].Objective)
	}
}

func TestParseTasks_WhitespaceOnlyBodyStillProducesDefaultTitle(t *testing.T) {
	blank := "@@@task\n   \n\t\n@@@"
	tasks := ParseTasks(blank)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task for a whitespace-only block, got %d", len(tasks))
	}
	if tasks[0].Title != "Untitled Task" {
		t.Errorf("Title = %q, want default %q", tasks[0].Title, "Untitled Task")
	}
}

func TestParseTasks_IgnoresTextOutsideBlocks(t *testing.T) {
	tasks := ParseTasks(samplePlan)
	for _, task := range tasks {
		if strings.Contains(task.Objective, "preamble") || strings.Contains(task.Objective, "Trailing") {
			t.Errorf("objective leaked text from outside a block: %q", task.Objective)
		}
	}
}

func TestRender_RoundTrips(t *testing.T) {
	original := store.Task{
		Title:                "Round trip this",
		Objective:            "Make sure rendering and parsing agree.",
		Scope:                []string{"a.go", "b.go"},
		AcceptanceCriteria:   []string{"tests pass"},
		VerificationCommands: []string{"go test ./..."},
	}

	rendered := Render(original)
	parsed := ParseTasks(rendered)
	if len(parsed) != 1 {
		t.Fatalf("expected rendered text to parse back into 1 task, got %d", len(parsed))
	}

	got := parsed[0]
	if got.Title != original.Title {
		t.Errorf("Title = %q, want %q", got.Title, original.Title)
	}
	if got.Objective != original.Objective {
		t.Errorf("Objective = %q, want %q", got.Objective, original.Objective)
	}
	if len(got.Scope) != len(original.Scope) || got.Scope[0] != original.Scope[0] {
		t.Errorf("Scope = %+v, want %+v", got.Scope, original.Scope)
	}
	if len(got.AcceptanceCriteria) != 1 || got.AcceptanceCriteria[0] != original.AcceptanceCriteria[0] {
		t.Errorf("AcceptanceCriteria = %+v, want %+v", got.AcceptanceCriteria, original.AcceptanceCriteria)
	}
	if len(got.VerificationCommands) != 1 || got.VerificationCommands[0] != original.VerificationCommands[0] {
		t.Errorf("VerificationCommands = %+v, want %+v", got.VerificationCommands, original.VerificationCommands)
	}
}

func TestRender_MultipleTasksRoundTripIndependently(t *testing.T) {
	tasks := ParseTasks(samplePlan)

	var rendered strings.Builder
	for _, task := range tasks {
		rendered.WriteString(Render(task))
		rendered.WriteString("\n\n")
	}

	reparsed := ParseTasks(rendered.String())
	if len(reparsed) != len(tasks) {
		t.Fatalf("expected %d tasks after round trip, got %d", len(tasks), len(reparsed))
	}
	for i := range tasks {
		if reparsed[i].Title != tasks[i].Title {
			t.Errorf("task %d Title = %q, want %q", i, reparsed[i].Title, tasks[i].Title)
		}
	}
}
