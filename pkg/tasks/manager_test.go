package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/provider"
	"github.com/aretw0/parley/pkg/session"
	"github.com/aretw0/parley/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, p ports.Provider, opts ...tasks.Option) (*tasks.Manager, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(memory.NewStore())
	engine := runtime.NewEngine(runtime.WithProvider(p))
	return tasks.NewManager(engine, sessions, opts...), sessions
}

func ask(text string) func(*tasks.Task) (domain.Signal, error) {
	return func(*tasks.Task) (domain.Signal, error) {
		return domain.NewUserMessage(text), nil
	}
}

func twoStages() []tasks.Stage {
	return []tasks.Stage{
		{Name: "draft", Prepare: ask("write a draft")},
		{Name: "review", Prepare: ask("review the draft")},
	}
}

func TestManager_RunCompletes(t *testing.T) {
	mgr, sessions := newManager(t, provider.NewScripted(
		provider.Content("draft ready"),
		provider.Content("looks good"),
	))
	ctx := context.Background()

	report, err := mgr.Run(ctx, tasks.Job{ConversationID: "c1", Stages: twoStages()})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, report.Status)
	assert.Equal(t, "looks good", report.Payload)

	task, err := mgr.Get(report.TaskID)
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "review"}, task.RecoveryPoints)
	assert.Equal(t, "draft ready", task.StageResults["draft"].Text())
	assert.Equal(t, tasks.Done, task.Stage)

	state, err := sessions.Load(ctx, "c1")
	require.NoError(t, err)
	rec, ok := state.Task(report.TaskID)
	require.True(t, ok, "the conversation tracks the task")
	assert.Equal(t, domain.TaskCompleted, rec.Status)
	assert.Equal(t, []domain.TaskStatus{domain.TaskStarting, domain.TaskRunning, domain.TaskCompleted}, rec.Transitions)

	var roles []conversation.Role
	for _, m := range state.History {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []conversation.Role{
		conversation.RoleUser, conversation.RoleAssistant,
		conversation.RoleUser, conversation.RoleAssistant,
	}, roles)
}

func TestManager_FailureKeepsRecoveryPointsAndResumes(t *testing.T) {
	mgr, sessions := newManager(t, provider.NewScripted(
		provider.Content("draft ready"),
		provider.Fail(errors.New("provider down")),
		provider.Content("approved"),
	))
	ctx := context.Background()

	report, err := mgr.Run(ctx, tasks.Job{ConversationID: "c1", Stages: twoStages()})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskError, report.Status)

	failed, err := mgr.Get(report.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "review", failed.FailedStage)
	assert.Equal(t, []string{"draft"}, failed.RecoveryPoints)
	assert.NotEmpty(t, failed.Err)
	checkpoint, ok := failed.LastCheckpoint()
	require.True(t, ok)
	assert.Equal(t, "draft", checkpoint)

	state, err := sessions.Load(ctx, "c1")
	require.NoError(t, err)
	rec, _ := state.Task(report.TaskID)
	assert.Equal(t, domain.TaskError, rec.Status)
	assert.Equal(t, "review", rec.Stage)
	assert.NotEmpty(t, state.Errors, "the provider failure is recorded in the conversation")

	resumed, err := mgr.Run(ctx, tasks.Job{Stages: twoStages(), ResumeFrom: &failed})
	require.NoError(t, err)
	assert.Equal(t, report.TaskID, resumed.TaskID)
	assert.Equal(t, domain.TaskCompleted, resumed.Status)
	assert.Equal(t, "approved", resumed.Payload)

	done, err := mgr.Get(report.TaskID)
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "review"}, done.RecoveryPoints)
	assert.Empty(t, done.FailedStage)
}

func TestManager_ResumeRequiresFailedTask(t *testing.T) {
	mgr, _ := newManager(t, provider.NewScripted(provider.Content("a"), provider.Content("b")))

	report, err := mgr.Run(context.Background(), tasks.Job{ConversationID: "c1", Stages: twoStages()})
	require.NoError(t, err)
	task, err := mgr.Get(report.TaskID)
	require.NoError(t, err)

	_, err = mgr.Run(context.Background(), tasks.Job{Stages: twoStages(), ResumeFrom: &task})
	assert.ErrorIs(t, err, tasks.ErrNotResumable)
}

func TestManager_StartReportsOnChannel(t *testing.T) {
	mgr, _ := newManager(t, provider.NewScripted(provider.Content("one"), provider.Content("two")))

	id, reports, err := mgr.Start(context.Background(), tasks.Job{ConversationID: "c1", Stages: twoStages()})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case report := <-reports:
		assert.Equal(t, id, report.TaskID)
		assert.Equal(t, domain.TaskCompleted, report.Status)
		assert.Equal(t, "two", report.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("no report received")
	}

	_, open := <-reports
	assert.False(t, open, "channel is closed after the report")
	mgr.Wait()
}

func TestManager_StageTimeout(t *testing.T) {
	blocking := provider.Func(func(ctx context.Context, _ []conversation.Message, _ []domain.ToolSpec, _ ports.GenerateOptions) (*ports.Reply, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	mgr, _ := newManager(t, blocking)

	report, err := mgr.Run(context.Background(), tasks.Job{
		ConversationID: "c1",
		Stages:         []tasks.Stage{{Name: "slow", Timeout: 20 * time.Millisecond, Prepare: ask("hurry")}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskError, report.Status)

	task, err := mgr.Get(report.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "slow", task.FailedStage)
	assert.Empty(t, task.RecoveryPoints)
}

func TestManager_NextBranches(t *testing.T) {
	mgr, _ := newManager(t, provider.NewScripted(provider.Content("short answer")))

	stages := twoStages()
	stages[0].Next = func(_ *tasks.Task, result domain.Signal) string {
		if result.Text() == "short answer" {
			return tasks.Done
		}
		return ""
	}

	report, err := mgr.Run(context.Background(), tasks.Job{ConversationID: "c1", Stages: stages})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, report.Status)

	task, _ := mgr.Get(report.TaskID)
	assert.Equal(t, []string{"draft"}, task.RecoveryPoints, "review is skipped")
}

func TestManager_UnknownNextStage(t *testing.T) {
	mgr, _ := newManager(t, provider.NewScripted(provider.Content("x")))

	stages := twoStages()
	stages[0].Next = func(*tasks.Task, domain.Signal) string { return "publish" }

	report, err := mgr.Run(context.Background(), tasks.Job{ConversationID: "c1", Stages: stages})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskError, report.Status)
	assert.Contains(t, report.Payload, "publish")
}

func TestManager_TransitionLimit(t *testing.T) {
	mgr, _ := newManager(t, provider.Func(func(context.Context, []conversation.Message, []domain.ToolSpec, ports.GenerateOptions) (*ports.Reply, error) {
		return &ports.Reply{Content: "again"}, nil
	}), tasks.WithMaxTransitions(3))

	stages := []tasks.Stage{{Name: "loop", Prepare: ask("go"), Next: func(*tasks.Task, domain.Signal) string { return "loop" }}}
	report, err := mgr.Run(context.Background(), tasks.Job{ConversationID: "c1", Stages: stages})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskError, report.Status)
	assert.Contains(t, report.Payload, tasks.ErrStageLoopLimit.Error())
}

func TestManager_PrepareError(t *testing.T) {
	mgr, _ := newManager(t, provider.NewScripted())

	stages := []tasks.Stage{{Name: "broken", Prepare: func(*tasks.Task) (domain.Signal, error) {
		return domain.Signal{}, errors.New("missing input")
	}}}
	report, err := mgr.Run(context.Background(), tasks.Job{ConversationID: "c1", Stages: stages})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskError, report.Status)
	assert.Contains(t, report.Payload, "missing input")
}

func TestManager_InvalidJobs(t *testing.T) {
	mgr, _ := newManager(t, provider.NewScripted())

	_, err := mgr.Run(context.Background(), tasks.Job{ConversationID: "c1"})
	assert.ErrorIs(t, err, tasks.ErrNoStages)

	_, _, err = mgr.Start(context.Background(), tasks.Job{Stages: twoStages()})
	assert.Error(t, err, "a conversation id is required")

	_, err = mgr.Get("nope")
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)
}

func TestManager_ControlOperationsUnsupported(t *testing.T) {
	mgr, _ := newManager(t, provider.NewScripted())

	assert.ErrorIs(t, mgr.Cancel("t1"), domain.ErrUnsupported)
	assert.ErrorIs(t, mgr.Pause("t1"), domain.ErrUnsupported)
	assert.ErrorIs(t, mgr.Resume("t1"), domain.ErrUnsupported)
}

func TestManager_List(t *testing.T) {
	mgr, _ := newManager(t, provider.NewScripted(
		provider.Content("a"), provider.Content("b"),
		provider.Content("c"), provider.Content("d"),
	))
	ctx := context.Background()

	first, err := mgr.Run(ctx, tasks.Job{ConversationID: "c1", Stages: twoStages()})
	require.NoError(t, err)
	second, err := mgr.Run(ctx, tasks.Job{ConversationID: "c2", Stages: twoStages()})
	require.NoError(t, err)

	list := mgr.List()
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{first.TaskID, second.TaskID}, ids)
}
