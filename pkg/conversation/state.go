package conversation

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/google/uuid"
)

// Role identifies the author of a history entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// Message is one transcript entry, in the shape handed to the LLM provider.
type Message struct {
	Role    Role   `json:"role" mapstructure:"role"`
	Content string `json:"content" mapstructure:"content"`
	Name    string `json:"name,omitempty" mapstructure:"name"`
}

// ToolCallRecord is the audit entry of one tool execution.
type ToolCallRecord struct {
	Name       string         `json:"name"`
	Args       map[string]any `json:"args"`
	Result     any            `json:"result"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// TaskRecord tracks the status of a task started on behalf of the conversation.
type TaskRecord struct {
	ID          string              `json:"id"`
	Status      domain.TaskStatus   `json:"status"`
	Stage       string              `json:"stage,omitempty"`
	Transitions []domain.TaskStatus `json:"transitions"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ErrorRecord is the audit entry of one handled failure.
type ErrorRecord struct {
	Kind      domain.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// State is the conversation store: the single record owned by one conversation.
//
// State is not safe for concurrent use. A pipeline run owns it exclusively; callers
// sharing a conversation across goroutines go through session.Manager.
type State struct {
	ID          string           `json:"id"`
	History     []Message        `json:"history"`
	Thoughts    []string         `json:"thoughts"`
	ToolCalls   []ToolCallRecord `json:"tool_calls"`
	Tasks       []TaskRecord     `json:"current_tasks"`
	Preferences map[string]any   `json:"preferences"`
	Errors      []ErrorRecord    `json:"errors"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	// now is swapped in tests.
	now func() time.Time
}

// New creates an empty conversation. An empty id gets a generated one.
func New(id string) *State {
	if id == "" {
		id = uuid.NewString()
	}
	t := time.Now().UTC()
	return &State{
		ID:          id,
		History:     []Message{},
		Thoughts:    []string{},
		ToolCalls:   []ToolCallRecord{},
		Tasks:       []TaskRecord{},
		Preferences: map[string]any{},
		Errors:      []ErrorRecord{},
		CreatedAt:   t,
		UpdatedAt:   t,
	}
}

// NewWithSystemPrompt creates a conversation whose transcript starts with prompt.
func NewWithSystemPrompt(id, prompt string) *State {
	s := New(id)
	if prompt != "" {
		s.AddMessage(RoleSystem, prompt, "")
	}
	return s
}

func (s *State) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

func (s *State) touch() {
	s.UpdatedAt = s.clock()
}

// AddMessage appends an entry to the transcript.
func (s *State) AddMessage(role Role, content, name string) {
	s.History = append(s.History, Message{Role: role, Content: content, Name: name})
	s.touch()
}

// AddFunctionResult appends a function entry holding the JSON form of result.
func (s *State) AddFunctionResult(name string, result any) {
	s.AddMessage(RoleFunction, Serialize(result), name)
}

// AddThought appends a scratch reasoning step.
func (s *State) AddThought(thought string) {
	s.Thoughts = append(s.Thoughts, thought)
	s.touch()
}

// AddToolCall appends an audit record for a tool execution.
func (s *State) AddToolCall(rec ToolCallRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.clock()
	}
	rec.Args = maps.Clone(rec.Args)
	s.ToolCalls = append(s.ToolCalls, rec)
	s.touch()
}

// AddTask registers a task in the starting status. Re-adding a known id is a no-op.
func (s *State) AddTask(id string) {
	if s.taskIndex(id) >= 0 {
		return
	}
	s.Tasks = append(s.Tasks, TaskRecord{
		ID:          id,
		Status:      domain.TaskStarting,
		Transitions: []domain.TaskStatus{domain.TaskStarting},
		UpdatedAt:   s.clock(),
	})
	s.touch()
}

// UpdateTaskState moves task id to status, creating the record when unknown.
// Repeating the current status does not add a transition.
func (s *State) UpdateTaskState(id string, status domain.TaskStatus, stage string) {
	i := s.taskIndex(id)
	if i < 0 {
		s.AddTask(id)
		i = len(s.Tasks) - 1
	}
	rec := &s.Tasks[i]
	if rec.Status != status {
		rec.Transitions = append(rec.Transitions, status)
	}
	rec.Status = status
	if stage != "" {
		rec.Stage = stage
	}
	rec.UpdatedAt = s.clock()
	s.touch()
}

// Task returns the record for id.
func (s *State) Task(id string) (TaskRecord, bool) {
	i := s.taskIndex(id)
	if i < 0 {
		return TaskRecord{}, false
	}
	return s.Tasks[i], true
}

func (s *State) taskIndex(id string) int {
	return slices.IndexFunc(s.Tasks, func(t TaskRecord) bool { return t.ID == id })
}

// SetPreferences merges prefs into the stored preferences. Later writes win.
func (s *State) SetPreferences(prefs map[string]any) {
	if s.Preferences == nil {
		s.Preferences = make(map[string]any, len(prefs))
	}
	maps.Copy(s.Preferences, prefs)
	s.touch()
}

// AddError appends an entry to the error log.
func (s *State) AddError(kind domain.ErrorKind, message string) {
	s.Errors = append(s.Errors, ErrorRecord{Kind: kind, Message: message, Timestamp: s.clock()})
	s.touch()
}

// TrimHistory bounds the transcript to max entries. Every system entry is kept,
// together with the most recent max-|system| other entries in their original order.
func (s *State) TrimHistory(max int) {
	if max < 0 || len(s.History) <= max {
		return
	}
	system := 0
	for _, m := range s.History {
		if m.Role == RoleSystem {
			system++
		}
	}
	keep := max - system
	if keep < 0 {
		keep = 0
	}
	others := len(s.History) - system
	drop := others - keep

	trimmed := make([]Message, 0, system+keep)
	for _, m := range s.History {
		if m.Role != RoleSystem && drop > 0 {
			drop--
			continue
		}
		trimmed = append(trimmed, m)
	}
	s.History = trimmed
	s.touch()
}

// PruneThoughts keeps only the most recent max thoughts.
func (s *State) PruneThoughts(max int) {
	if max < 0 || len(s.Thoughts) <= max {
		return
	}
	s.Thoughts = slices.Clone(s.Thoughts[len(s.Thoughts)-max:])
	s.touch()
}

// LLMHistory returns the most recent max entries verbatim. max <= 0 returns everything.
func (s *State) LLMHistory(max int) []Message {
	h := s.History
	if max > 0 && len(h) > max {
		h = h[len(h)-max:]
	}
	return slices.Clone(h)
}

// LastMessage returns the final transcript entry.
func (s *State) LastMessage() (Message, bool) {
	if len(s.History) == 0 {
		return Message{}, false
	}
	return s.History[len(s.History)-1], true
}

// Clone returns a deep copy; mutations of the copy never reach s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.History = slices.Clone(s.History)
	c.Thoughts = slices.Clone(s.Thoughts)
	c.ToolCalls = make([]ToolCallRecord, len(s.ToolCalls))
	for i, tc := range s.ToolCalls {
		tc.Args = deepCopyMap(tc.Args)
		tc.Result = deepCopyValue(tc.Result)
		c.ToolCalls[i] = tc
	}
	c.Tasks = make([]TaskRecord, len(s.Tasks))
	for i, t := range s.Tasks {
		t.Transitions = slices.Clone(t.Transitions)
		c.Tasks[i] = t
	}
	c.Preferences = deepCopyMap(s.Preferences)
	c.Errors = slices.Clone(s.Errors)
	return &c
}

// Serialize renders a tool result for the transcript. Strings pass through.
func Serialize(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
