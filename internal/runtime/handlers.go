package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/schema"
	"github.com/aretw0/parley/pkg/tools"
	"github.com/google/uuid"
)

const apologyFallback = "Sorry, something went wrong and I could not finish that request."

// thoughtPrefix marks scratch reasoning replayed to the provider.
const thoughtPrefix = "(thinking) "

func (e *Engine) handleMessage(ctx context.Context, sig domain.Signal, st *conversation.State) Outcome {
	msg, err := domain.DecodePayload[domain.Message](sig)
	if err != nil {
		return Emit(domain.NewError(domain.KindValidation, domain.SourceEngine, err.Error(), nil), st)
	}

	if sig.Type == domain.SignalSystemMessage {
		st.AddMessage(conversation.RoleSystem, msg.Content, "")
		return Skip(st)
	}

	st.AddMessage(conversation.RoleUser, msg.Content, "")
	st.PruneThoughts(0)
	return Emit(e.query(ctx, st), st)
}

func (e *Engine) handleThinking(ctx context.Context, sig domain.Signal, st *conversation.State) Outcome {
	thought, err := domain.DecodePayload[domain.Thought](sig)
	if err != nil {
		return Emit(domain.NewError(domain.KindValidation, domain.SourceLLMCall, err.Error(), nil), st)
	}
	st.AddThought(thought.Content)
	return Emit(e.query(ctx, st), st)
}

func (e *Engine) handleToolCall(ctx context.Context, sig domain.Signal, st *conversation.State) Outcome {
	call, err := domain.DecodePayload[domain.ToolCall](sig)
	if err != nil {
		return Emit(domain.NewError(domain.KindValidation, domain.SourceToolCall, err.Error(), nil), st)
	}
	if call.ID == "" {
		call.ID = uuid.NewString()
	}

	tool, err := e.tools.Lookup(call.Name)
	if err != nil {
		return Emit(domain.NewError(domain.KindNotFound, domain.SourceToolCall,
			fmt.Sprintf("tool %q not found", call.Name),
			map[string]any{"tool": call.Name}), st)
	}

	if err := schema.Validate(call.Args, tool.Parameters); err != nil {
		ctxMap := map[string]any{"tool": call.Name}
		detail := err.Error()
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			ctxMap = verr.Context()
			ctxMap["tool"] = call.Name
			detail = strings.Join(verr.Violations(), "; ")
		}
		return Emit(domain.NewError(domain.KindValidation, domain.SourceToolCall,
			fmt.Sprintf("invalid arguments for %s: %s", call.Name, detail), ctxMap), st)
	}

	if e.interceptor != nil {
		allowed, reason, err := e.interceptor(ctx, call)
		if err != nil {
			return Emit(domain.NewError(domain.KindExecution, domain.SourceToolCall,
				fmt.Sprintf("tool %s policy check failed: %v", call.Name, err),
				map[string]any{"tool": call.Name}), st)
		}
		if !allowed {
			return Emit(domain.NewError(domain.KindExecution, domain.SourceToolCall,
				fmt.Sprintf("tool %s was denied: %s", call.Name, reason),
				map[string]any{"tool": call.Name, "denied": true}), st)
		}
	}

	if e.hooks.OnToolCall != nil {
		e.hooks.OnToolCall(ctx, &domain.ToolEvent{
			EventBase: e.event(domain.EventToolCall, st.ID),
			ToolName:  call.Name,
			Input:     call.Args,
		})
	}

	res := tools.Execute(ctx, tool, call.Args, e.toolTimeout)
	ms := res.Duration.Milliseconds()

	if e.hooks.OnToolReturn != nil {
		e.hooks.OnToolReturn(ctx, &domain.ToolEvent{
			EventBase: e.event(domain.EventToolReturn, st.ID),
			ToolName:  call.Name,
			Output:    res.Output(),
			Duration:  res.Duration,
			IsError:   res.Failed(),
		})
	}

	st.AddToolCall(conversation.ToolCallRecord{
		Name:       call.Name,
		Args:       call.Args,
		Result:     res.Output(),
		DurationMS: ms,
		Timestamp:  res.StartedAt.UTC(),
	})

	if res.Failed() {
		e.logger.Debug("tool failed", "tool", call.Name, "err", res.Err)
		kind := domain.KindExecution
		if ctx.Err() != nil {
			// The run deadline, not the tool, stopped it.
			kind = domain.KindTimeout
		}
		return Emit(domain.NewError(kind, domain.SourceToolCall,
			fmt.Sprintf("tool %s failed: %s", call.Name, res.Err),
			map[string]any{"tool": call.Name, "duration_ms": ms}), st)
	}

	out := domain.NewToolResult(domain.ToolResult{
		ID:       call.ID,
		Name:     call.Name,
		Result:   res.Value,
		Duration: ms,
	}).WithMeta(domain.MetaDurationMS, ms)
	if pending := pendingCalls(sig); len(pending) > 0 {
		out = out.WithMeta(domain.MetaPendingCalls, pending)
	}
	return Emit(out, st)
}

func (e *Engine) handleToolResult(ctx context.Context, sig domain.Signal, st *conversation.State) Outcome {
	res, err := domain.DecodePayload[domain.ToolResult](sig)
	if err != nil {
		return Emit(domain.NewError(domain.KindValidation, domain.SourceToolResult, err.Error(), nil), st)
	}
	st.AddFunctionResult(res.Name, res.Result)

	if pending := pendingCalls(sig); len(pending) > 0 {
		return Emit(toolCallSignal(pending), st)
	}
	return Emit(e.query(ctx, st), st)
}

func (e *Engine) handleTaskState(_ context.Context, sig domain.Signal, st *conversation.State) Outcome {
	ts, err := domain.DecodePayload[domain.TaskState](sig)
	if err != nil || ts.TaskID == "" {
		e.logger.Warn("ignoring malformed task_state signal", "err", err)
		return Skip(st)
	}
	st.UpdateTaskState(ts.TaskID, ts.Status, ts.Stage)
	return Skip(st)
}

func (e *Engine) handleResponse(_ context.Context, sig domain.Signal, st *conversation.State) Outcome {
	content := sig.Text()
	if !sig.MetaBool(domain.MetaRecorded) {
		st.AddMessage(conversation.RoleAssistant, content, "")
	}

	formatted := content
	if e.formatter != nil {
		f, err := e.formatter(content)
		if err != nil {
			e.logger.Warn("response formatter failed", "err", err)
		} else {
			formatted = f
		}
	}

	if e.maxHistory > 0 {
		st.TrimHistory(e.maxHistory)
	}
	if e.maxThoughts > 0 {
		st.PruneThoughts(e.maxThoughts)
	}

	out := sig
	out.Data = domain.Response{Content: formatted}
	return Halt(out.WithMeta(domain.MetaRecorded, true), st)
}

func (e *Engine) handleError(ctx context.Context, sig domain.Signal, st *conversation.State) Outcome {
	info, err := domain.DecodePayload[domain.ErrorInfo](sig)
	if err != nil {
		info = domain.ErrorInfo{Message: sig.Text()}
	}
	if info.Kind == "" {
		info.Kind = domain.KindExecution
	}
	if info.Message == "" {
		info.Message = "unknown error"
	}

	st.AddError(info.Kind, info.Message)
	reply := apology(info)
	st.AddMessage(conversation.RoleAssistant, reply, "")

	if e.hooks.OnError != nil {
		e.hooks.OnError(ctx, &domain.ErrorEvent{
			EventBase: e.event(domain.EventError, st.ID),
			Kind:      info.Kind,
			Source:    info.Source,
			Message:   info.Message,
		})
	}

	return Emit(domain.NewResponse(reply).
		WithMeta(domain.MetaRecorded, true).
		WithMeta(domain.MetaErrorKind, string(info.Kind)), st)
}

// apology turns an error into the message spoken to the user, by error source.
// Timeouts read the same wherever they happened.
func apology(info domain.ErrorInfo) string {
	if info.Kind == domain.KindTimeout {
		return "Sorry, I ran out of time on that request: " + info.Message
	}
	switch info.Source {
	case domain.SourceLLMCall:
		return "Sorry, I couldn't get an answer from the language model: " + info.Message
	case domain.SourceToolCall:
		return "Sorry, there was a tool error: " + info.Message
	case domain.SourceToolResult:
		return "Sorry, I couldn't use the tool result: " + info.Message
	default:
		return "Sorry, something went wrong: " + info.Message
	}
}

// query asks the provider for the next step given the conversation so far.
func (e *Engine) query(ctx context.Context, st *conversation.State) domain.Signal {
	if e.provider == nil {
		return domain.NewError(domain.KindLLM, domain.SourceLLMCall, "no language model provider configured", nil)
	}

	history := st.LLMHistory(e.historyWindow)
	for _, t := range st.Thoughts {
		history = append(history, conversation.Message{Role: conversation.RoleAssistant, Content: thoughtPrefix + t})
	}

	start := time.Now()
	reply, err := e.provider.Generate(ctx, history, e.tools.Specs(), e.genOpts)
	e.logger.Debug("provider replied", "conversation", st.ID, "took", time.Since(start), "err", err)
	return translate(reply, err)
}

// translate maps a provider reply onto exactly one signal.
func translate(reply *ports.Reply, err error) domain.Signal {
	if err != nil {
		kind := domain.KindLLM
		if errors.Is(err, context.DeadlineExceeded) {
			kind = domain.KindTimeout
		}
		return domain.NewError(kind, domain.SourceLLMCall, err.Error(), nil)
	}
	switch {
	case reply == nil:
		return domain.NewError(domain.KindLLM, domain.SourceLLMCall, "provider returned no reply", nil)
	case len(reply.ToolCalls) > 0:
		return toolCallSignal(reply.ToolCalls)
	case strings.TrimSpace(reply.Thought) != "":
		return domain.NewThinking(reply.Thought)
	case reply.Content != "":
		return domain.NewResponse(reply.Content)
	default:
		return domain.NewError(domain.KindLLM, domain.SourceLLMCall, "provider returned an empty reply", nil)
	}
}

// toolCallSignal emits the first call and queues the rest in meta.
func toolCallSignal(calls []domain.ToolCall) domain.Signal {
	sig := domain.NewToolCall(calls[0])
	if len(calls) > 1 {
		sig = sig.WithMeta(domain.MetaPendingCalls, append([]domain.ToolCall(nil), calls[1:]...))
	}
	return sig
}
