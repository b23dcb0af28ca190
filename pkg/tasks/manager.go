package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/session"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrNoStages       = errors.New("job has no stages")
	ErrUnknownStage   = errors.New("unknown stage")
	ErrNotResumable   = errors.New("only failed tasks can be resumed")
	ErrStageLoopLimit = errors.New("stage transition limit reached")
)

// DefaultMaxTransitions caps the stage hops of one task, so a Next func cycling
// between stages cannot run forever.
const DefaultMaxTransitions = 64

// Manager runs jobs. Conversation access goes through the session manager, so task
// workers and interactive callers never mutate the same conversation at once.
type Manager struct {
	engine         ports.Processor
	sessions       *session.Manager
	logger         *slog.Logger
	maxTransitions int
	now            func() time.Time

	mu    sync.RWMutex
	tasks map[string]*Task

	workers conc.WaitGroup
}

// Option configures the Manager.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMaxTransitions overrides DefaultMaxTransitions.
func WithMaxTransitions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxTransitions = n
		}
	}
}

// NewManager creates a task manager driving engine over conversations held by sessions.
func NewManager(engine ports.Processor, sessions *session.Manager, opts ...Option) *Manager {
	m := &Manager{
		engine:         engine,
		sessions:       sessions,
		logger:         logging.NewNop(),
		maxTransitions: DefaultMaxTransitions,
		now:            func() time.Time { return time.Now().UTC() },
		tasks:          make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes job on the calling goroutine and returns its report.
// The error is reserved for jobs that cannot start; stage failures are reported
// with status error.
func (m *Manager) Run(ctx context.Context, job Job) (Report, error) {
	task, start, err := m.prepare(job)
	if err != nil {
		return Report{}, err
	}
	return m.execute(ctx, task, job.Stages, start), nil
}

// Start hands job to a background worker. The channel receives exactly one report
// and is then closed. ctx bounds the worker.
func (m *Manager) Start(ctx context.Context, job Job) (string, <-chan Report, error) {
	task, start, err := m.prepare(job)
	if err != nil {
		return "", nil, err
	}

	reports := make(chan Report, 1)
	m.workers.Go(func() {
		defer close(reports)
		reports <- m.execute(ctx, task, job.Stages, start)
	})
	return task.ID, reports, nil
}

// Wait blocks until every started worker has finished.
func (m *Manager) Wait() {
	m.workers.Wait()
}

// Get returns a snapshot of the task.
func (m *Manager) Get(id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return *t.clone(), nil
}

// List returns snapshots of all known tasks, oldest first.
func (m *Manager) List() []Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t.clone())
	}
	slices.SortFunc(out, func(a, b Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Cancel is not supported.
func (m *Manager) Cancel(id string) error {
	return fmt.Errorf("%w: cancel task %s", domain.ErrUnsupported, id)
}

// Pause is not supported.
func (m *Manager) Pause(id string) error {
	return fmt.Errorf("%w: pause task %s", domain.ErrUnsupported, id)
}

// Resume is not supported on running tasks; restart a failed one with Job.ResumeFrom.
func (m *Manager) Resume(id string) error {
	return fmt.Errorf("%w: resume task %s", domain.ErrUnsupported, id)
}

// prepare validates job and registers its task, returning the index of the first stage.
func (m *Manager) prepare(job Job) (*Task, int, error) {
	if len(job.Stages) == 0 {
		return nil, 0, ErrNoStages
	}
	now := m.now()

	if prev := job.ResumeFrom; prev != nil {
		if prev.Status != domain.TaskError {
			return nil, 0, fmt.Errorf("%w: task %s is %s", ErrNotResumable, prev.ID, prev.Status)
		}
		start := stageIndex(job.Stages, prev.FailedStage)
		if start < 0 {
			return nil, 0, fmt.Errorf("%w: %q", ErrUnknownStage, prev.FailedStage)
		}
		task := prev.clone()
		if job.ConversationID != "" {
			task.ConversationID = job.ConversationID
		}
		if job.Params != nil {
			task.Params = job.Params
		}
		task.Status = domain.TaskStarting
		task.FailedStage = ""
		task.Err = ""
		task.UpdatedAt = now
		if task.StageResults == nil {
			task.StageResults = map[string]domain.Signal{}
		}
		m.store(task)
		return task, start, nil
	}

	if job.ConversationID == "" {
		return nil, 0, errors.New("job has no conversation id")
	}
	task := &Task{
		ID:             uuid.NewString(),
		ConversationID: job.ConversationID,
		Params:         job.Params,
		Stage:          job.Stages[0].Name,
		Status:         domain.TaskStarting,
		RecoveryPoints: []string{},
		StageResults:   map[string]domain.Signal{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.store(task)
	return task, 0, nil
}

func (m *Manager) execute(ctx context.Context, task *Task, stages []Stage, idx int) Report {
	logger := m.logger.With("task_id", task.ID, "conversation_id", task.ConversationID)
	logger.Info("task started", "stage", stages[idx].Name)

	if err := m.publish(ctx, task, domain.TaskStarting, stages[idx].Name); err != nil {
		return m.fail(ctx, task, stages[idx].Name, err)
	}

	var last domain.Signal
	for hops := 0; ; hops++ {
		if hops >= m.maxTransitions {
			return m.fail(ctx, task, stages[idx].Name, ErrStageLoopLimit)
		}
		stage := stages[idx]
		m.update(task, func(t *Task) {
			t.Stage = stage.Name
			t.Status = domain.TaskRunning
		})

		result, err := m.runStage(ctx, task, stage)
		if err != nil {
			logger.Warn("stage failed", "stage", stage.Name, "err", err)
			return m.fail(ctx, task, stage.Name, err)
		}
		last = result
		m.update(task, func(t *Task) {
			t.StageResults[stage.Name] = result
			t.RecoveryPoints = append(t.RecoveryPoints, stage.Name)
		})
		logger.Debug("stage completed", "stage", stage.Name)

		next := ""
		if stage.Next != nil {
			next = stage.Next(task.clone(), result)
		}
		switch {
		case next == Done, next == "" && idx == len(stages)-1:
			return m.complete(ctx, task, last)
		case next == "":
			idx++
		default:
			idx = stageIndex(stages, next)
			if idx < 0 {
				return m.fail(ctx, task, stage.Name, fmt.Errorf("%w: %q", ErrUnknownStage, next))
			}
		}
	}
}

// runStage publishes the running status and runs one engine pass, both under the
// conversation lock.
func (m *Manager) runStage(ctx context.Context, task *Task, stage Stage) (domain.Signal, error) {
	var final domain.Signal
	var stageErr error

	_, err := m.sessions.Update(ctx, task.ConversationID, "", func(ctx context.Context, st *conversation.State) error {
		if err := m.apply(ctx, domain.NewTaskStage(task.ID, domain.TaskRunning, stage.Name), st); err != nil {
			return err
		}
		if stage.Prepare == nil {
			stageErr = fmt.Errorf("stage %s has no Prepare func", stage.Name)
			return nil
		}
		sig, err := stage.Prepare(task.clone())
		if err != nil {
			stageErr = fmt.Errorf("prepare %s: %w", stage.Name, err)
			return nil
		}
		sig = sig.WithMeta(domain.MetaTaskID, task.ID)

		passCtx := ctx
		if stage.Timeout > 0 {
			var cancel context.CancelFunc
			passCtx, cancel = context.WithTimeout(ctx, stage.Timeout)
			defer cancel()
		}
		res, err := m.engine.Process(passCtx, sig, st)
		if err != nil {
			return err
		}
		// The conversation keeps whatever the pass recorded, failures included.
		*st = *res.State
		final = res.Signal

		switch {
		case res.Interrupted:
			stageErr = fmt.Errorf("stage %s interrupted: %w", stage.Name, res.Cause)
		case res.Failed():
			stageErr = fmt.Errorf("stage %s failed: %s", stage.Name, res.Signal.Text())
		}
		return nil
	})
	if err != nil {
		return domain.Signal{}, err
	}
	return final, stageErr
}

// publish records a task status in the conversation through the engine.
func (m *Manager) publish(ctx context.Context, task *Task, status domain.TaskStatus, stage string) error {
	_, err := m.sessions.Update(ctx, task.ConversationID, "", func(ctx context.Context, st *conversation.State) error {
		return m.apply(ctx, domain.NewTaskStage(task.ID, status, stage), st)
	})
	return err
}

func (m *Manager) apply(ctx context.Context, sig domain.Signal, st *conversation.State) error {
	res, err := m.engine.Process(ctx, sig, st)
	if err != nil {
		return err
	}
	*st = *res.State
	return nil
}

func (m *Manager) complete(ctx context.Context, task *Task, last domain.Signal) Report {
	m.update(task, func(t *Task) {
		t.Status = domain.TaskCompleted
		t.Stage = Done
	})
	// The status report must land even when ctx ended with the last stage.
	if err := m.publish(context.WithoutCancel(ctx), task, domain.TaskCompleted, Done); err != nil {
		m.logger.Warn("failed to record task completion", "task_id", task.ID, "err", err)
	}
	m.logger.Info("task completed", "task_id", task.ID)
	return Report{TaskID: task.ID, Status: domain.TaskCompleted, Payload: last.Text()}
}

func (m *Manager) fail(ctx context.Context, task *Task, stage string, cause error) Report {
	m.update(task, func(t *Task) {
		t.Status = domain.TaskError
		t.FailedStage = stage
		t.Err = cause.Error()
	})
	if err := m.publish(context.WithoutCancel(ctx), task, domain.TaskError, stage); err != nil {
		m.logger.Warn("failed to record task failure", "task_id", task.ID, "err", err)
	}
	m.logger.Warn("task failed", "task_id", task.ID, "stage", stage, "err", cause)
	return Report{TaskID: task.ID, Status: domain.TaskError, Payload: cause.Error()}
}

func (m *Manager) store(task *Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
}

// update mutates the registered task under the manager lock.
func (m *Manager) update(task *Task, fn func(*Task)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(task)
	task.UpdatedAt = m.now()
}

func stageIndex(stages []Stage, name string) int {
	return slices.IndexFunc(stages, func(s Stage) bool { return s.Name == name })
}
