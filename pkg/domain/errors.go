package domain

import "errors"

// ErrConversationNotFound is returned when a conversation ID cannot be found in the store.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrStepBudgetExceeded is reported when a pipeline run emits more signals than allowed.
var ErrStepBudgetExceeded = errors.New("step budget exceeded")

// ErrNilState is returned when the engine is asked to process without a conversation.
var ErrNilState = errors.New("nil conversation state")

// ErrInvalidSignal is returned for signals with an unknown type or a malformed payload.
var ErrInvalidSignal = errors.New("invalid signal")

// ErrUnsupported marks capabilities that are deliberately not implemented.
var ErrUnsupported = errors.New("unsupported operation")

// ErrorKind classifies failures surfaced as error signals.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation_error"
	KindExecution  ErrorKind = "execution_error"
	KindLLM        ErrorKind = "llm_error"
	KindTimeout    ErrorKind = "timeout"
)

// ErrorSource names the stage where an error originated.
type ErrorSource string

const (
	SourceLLMCall    ErrorSource = "llm_call"
	SourceToolCall   ErrorSource = "tool_call"
	SourceToolResult ErrorSource = "tool_result"
	SourceEngine     ErrorSource = "engine"
)
