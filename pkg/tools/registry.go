package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/schema"
)

var (
	// ErrToolNotFound is returned when a tool name is not registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolExists is returned when registering a name twice.
	ErrToolExists = errors.New("tool already registered")
	// ErrEmptyToolName is returned when registering a tool without a name.
	ErrEmptyToolName = errors.New("tool name is empty")
	// ErrNilExecute is returned when registering a tool without a callable.
	ErrNilExecute = errors.New("tool has no execute function")
)

// Func defines the signature for a tool implementation.
// It receives a context and a map of arguments, and returns a JSON-like result or error.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Tool is a named capability the LLM provider may invoke.
type Tool struct {
	Name        string
	Description string
	Parameters  *schema.Schema
	Execute     Func
}

// Spec describes the tool to a provider.
func (t Tool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters.ToMap(),
	}
}

// Registry manages the available tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return ErrEmptyToolName
	}
	if t.Execute == nil {
		return fmt.Errorf("%w: %s", ErrNilExecute, t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrToolExists, t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// RegisterFunc registers a callable without description or schema.
func (r *Registry) RegisterFunc(name string, fn Func) error {
	return r.Register(Tool{Name: name, Execute: fn})
}

// MustRegister is Register for static setup code.
func (r *Registry) MustRegister(tools ...Tool) *Registry {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Validate checks args against the schema of the named tool.
func (r *Registry) Validate(name string, args map[string]any) error {
	t, err := r.Lookup(name)
	if err != nil {
		return err
	}
	return schema.Validate(args, t.Parameters)
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Specs describes every registered tool, in registration order.
func (r *Registry) Specs() []domain.ToolSpec {
	list := r.List()
	out := make([]domain.ToolSpec, len(list))
	for i, t := range list {
		out[i] = t.Spec()
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
