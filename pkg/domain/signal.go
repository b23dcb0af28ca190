package domain

import (
	"fmt"
	"maps"

	"github.com/mitchellh/mapstructure"
)

// SignalType tags the payload carried by a Signal.
type SignalType string

const (
	SignalUserMessage   SignalType = "user_message"
	SignalSystemMessage SignalType = "system_message"
	SignalThinking      SignalType = "thinking"
	SignalToolCall      SignalType = "tool_call"
	SignalToolResult    SignalType = "tool_result"
	SignalTaskState     SignalType = "task_state"
	SignalResponse      SignalType = "response"
	SignalError         SignalType = "error"
)

// SignalTypes lists every known signal type in pipeline order.
var SignalTypes = []SignalType{
	SignalUserMessage,
	SignalSystemMessage,
	SignalThinking,
	SignalToolCall,
	SignalToolResult,
	SignalTaskState,
	SignalResponse,
	SignalError,
}

// Valid reports whether t is one of the known signal types.
func (t SignalType) Valid() bool {
	for _, known := range SignalTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Meta keys understood by the engine.
const (
	MetaStep         = "step"
	MetaPendingCalls = "pending_calls"
	MetaRecorded     = "recorded"
	MetaUnhandled    = "unhandled"
	MetaErrorKind    = "error_kind"
	MetaDurationMS   = "duration_ms"
	MetaTaskID       = "task_id"
)

// Signal is the unit of communication inside the flow engine.
// It is a value: derive new signals with WithMeta instead of mutating Meta.
type Signal struct {
	Type SignalType     `json:"type" mapstructure:"type"`
	Data any            `json:"data,omitempty" mapstructure:"data"`
	Meta map[string]any `json:"meta,omitempty" mapstructure:"meta"`
}

// Payload types.

type Message struct {
	Content string `json:"content" mapstructure:"content"`
}

type Thought struct {
	Content string `json:"content" mapstructure:"content"`
}

type ToolResult struct {
	ID       string `json:"id,omitempty" mapstructure:"id"`
	Name     string `json:"name" mapstructure:"name"`
	Result   any    `json:"result,omitempty" mapstructure:"result"`
	Duration int64  `json:"duration_ms,omitempty" mapstructure:"duration_ms"`
}

type TaskState struct {
	TaskID string     `json:"task_id" mapstructure:"task_id"`
	Status TaskStatus `json:"status" mapstructure:"status"`
	Stage  string     `json:"stage,omitempty" mapstructure:"stage"`
}

type Response struct {
	Content string `json:"content" mapstructure:"content"`
}

// ErrorInfo is the payload of an error signal.
type ErrorInfo struct {
	Kind    ErrorKind      `json:"kind" mapstructure:"kind"`
	Source  ErrorSource    `json:"source" mapstructure:"source"`
	Message string         `json:"message" mapstructure:"message"`
	Context map[string]any `json:"context,omitempty" mapstructure:"context"`
}

func NewUserMessage(content string) Signal {
	return Signal{Type: SignalUserMessage, Data: Message{Content: content}}
}

func NewSystemMessage(content string) Signal {
	return Signal{Type: SignalSystemMessage, Data: Message{Content: content}}
}

func NewThinking(content string) Signal {
	return Signal{Type: SignalThinking, Data: Thought{Content: content}}
}

func NewToolCall(call ToolCall) Signal {
	call.Args = maps.Clone(call.Args)
	return Signal{Type: SignalToolCall, Data: call}
}

func NewToolResult(res ToolResult) Signal {
	return Signal{Type: SignalToolResult, Data: res}
}

func NewTaskState(taskID string, status TaskStatus) Signal {
	return Signal{Type: SignalTaskState, Data: TaskState{TaskID: taskID, Status: status}}
}

// NewTaskStage reports a task status together with the stage it concerns.
func NewTaskStage(taskID string, status TaskStatus, stage string) Signal {
	return Signal{Type: SignalTaskState, Data: TaskState{TaskID: taskID, Status: status, Stage: stage}}
}

func NewResponse(content string) Signal {
	return Signal{Type: SignalResponse, Data: Response{Content: content}}
}

func NewError(kind ErrorKind, source ErrorSource, message string, context map[string]any) Signal {
	return Signal{Type: SignalError, Data: ErrorInfo{
		Kind:    kind,
		Source:  source,
		Message: message,
		Context: maps.Clone(context),
	}}
}

// WithMeta returns a copy of s with key set to value.
func (s Signal) WithMeta(key string, value any) Signal {
	meta := make(map[string]any, len(s.Meta)+1)
	maps.Copy(meta, s.Meta)
	meta[key] = value
	s.Meta = meta
	return s
}

// MetaValue returns the meta entry for key, if any.
func (s Signal) MetaValue(key string) (any, bool) {
	v, ok := s.Meta[key]
	return v, ok
}

// MetaInt reads an integer meta entry, tolerating JSON-decoded numbers.
func (s Signal) MetaInt(key string) int {
	switch v := s.Meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// MetaBool reads a boolean meta entry.
func (s Signal) MetaBool(key string) bool {
	v, _ := s.Meta[key].(bool)
	return v
}

// Text returns the human readable content of message, thought and response signals.
func (s Signal) Text() string {
	switch d := s.Data.(type) {
	case Message:
		return d.Content
	case Thought:
		return d.Content
	case Response:
		return d.Content
	case ErrorInfo:
		return d.Message
	case string:
		return d
	case map[string]any:
		if c, ok := d["content"].(string); ok {
			return c
		}
	}
	return ""
}

func (s Signal) String() string {
	return fmt.Sprintf("%s(%v)", s.Type, s.Data)
}

// DecodePayload extracts a typed payload from s.
// Signals built in-process already carry T; signals decoded from JSON carry a map
// that is converted with mapstructure.
func DecodePayload[T any](s Signal) (T, error) {
	var out T
	switch d := s.Data.(type) {
	case T:
		return d, nil
	case *T:
		if d != nil {
			return *d, nil
		}
		return out, fmt.Errorf("%w: nil %s payload", ErrInvalidSignal, s.Type)
	case nil:
		return out, fmt.Errorf("%w: empty %s payload", ErrInvalidSignal, s.Type)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(s.Data); err != nil {
		return out, fmt.Errorf("%w: decode %s payload: %v", ErrInvalidSignal, s.Type, err)
	}
	return out, nil
}
