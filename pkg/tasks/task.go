package tasks

import (
	"maps"
	"slices"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// Done is the stage name a Next func returns to end a task successfully.
const Done = "completed"

// Task is the checkpoint record of one job.
type Task struct {
	ID             string                   `json:"id"`
	ConversationID string                   `json:"conversation_id"`
	Params         map[string]any           `json:"params,omitempty"`
	Stage          string                   `json:"stage"`
	Status         domain.TaskStatus        `json:"status"`
	RecoveryPoints []string                 `json:"recovery_points"`
	StageResults   map[string]domain.Signal `json:"stage_results"`
	FailedStage    string                   `json:"failed_stage,omitempty"`
	Err            string                   `json:"error,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// LastCheckpoint returns the most recently completed stage.
func (t *Task) LastCheckpoint() (string, bool) {
	if len(t.RecoveryPoints) == 0 {
		return "", false
	}
	return t.RecoveryPoints[len(t.RecoveryPoints)-1], true
}

func (t *Task) clone() *Task {
	c := *t
	c.Params = maps.Clone(t.Params)
	c.RecoveryPoints = slices.Clone(t.RecoveryPoints)
	c.StageResults = maps.Clone(t.StageResults)
	return &c
}

// Stage is one checkpointed unit of work.
type Stage struct {
	Name string
	// Timeout bounds the engine pass. Zero leaves only the engine's own budget.
	Timeout time.Duration
	// Prepare builds the signal fed to the engine.
	Prepare func(*Task) (domain.Signal, error)
	// Next picks the following stage from the pass result. Empty means the next
	// declared stage; Done ends the task. Nil behaves like returning empty.
	Next func(*Task, domain.Signal) string
}

// Job describes a task to run.
type Job struct {
	ConversationID string
	Params         map[string]any
	Stages         []Stage
	// ResumeFrom restarts a failed task at its failed stage, keeping its id,
	// recovery points and stage results.
	ResumeFrom *Task
}

// Report is what a finished task hands back to its starter.
// Payload is the final response text on success and the error message on failure.
type Report struct {
	TaskID  string            `json:"task_id"`
	Status  domain.TaskStatus `json:"status"`
	Payload any               `json:"payload"`
}
