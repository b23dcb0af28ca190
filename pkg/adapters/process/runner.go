package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/parley/pkg/schema"
	"github.com/aretw0/parley/pkg/tools"
)

// ArgEnvPrefix prefixes the environment variables carrying scalar arguments.
const ArgEnvPrefix = "PARLEY_ARG_"

// ErrNotRegistered is returned for tools missing from the allow-list.
var ErrNotRegistered = errors.New("process tool not registered")

var envKey = regexp.MustCompile(`[^A-Z0-9_]`)

// Runner executes allow-listed local processes as tools. The full argument object is
// written to stdin as JSON; scalar arguments are also exported as PARLEY_ARG_<NAME>.
// Arguments never become command-line flags.
type Runner struct {
	registry map[string]ProcessConfig
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(configs map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, cfg := range configs {
			cfg.Name = name
			r.registry[name] = cfg
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{registry: make(map[string]ProcessConfig)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name, command string, args ...string) {
	r.registry[name] = ProcessConfig{Name: name, Command: command, Args: args}
}

// Execute runs the named process with args. Output that parses as a JSON object or
// array is returned decoded; anything else is returned as trimmed text.
func (r *Runner) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	timeout, err := proc.ParsedTimeout()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	input, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.Stdin = bytes.NewReader(input)
	cmd.Env = append(cmd.Environ(), environment(proc.Environment, args)...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("process %s: %w", name, ctxErr)
		}
		return nil, fmt.Errorf("execution failed: %v. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return decodeOutput(stdout.String()), nil
}

// Tools exposes every registered process as a tools.Tool, sorted by name.
func (r *Runner) Tools() ([]tools.Tool, error) {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]tools.Tool, 0, len(names))
	for _, name := range names {
		cfg := r.registry[name]
		params, err := schema.FromMap(cfg.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s: invalid parameters: %w", name, err)
		}
		out = append(out, tools.Tool{
			Name:        name,
			Description: cfg.Description,
			Parameters:  params,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return r.Execute(ctx, name, args)
			},
		})
	}
	return out, nil
}

func environment(static map[string]string, args map[string]any) []string {
	env := make([]string, 0, len(static)+len(args))
	for k, v := range static {
		env = append(env, k+"="+v)
	}
	for k, v := range args {
		var val string
		switch t := v.(type) {
		case nil:
		case string, bool, int, int64, float64:
			val = fmt.Sprintf("%v", t)
		default:
			b, err := json.Marshal(t)
			if err != nil {
				val = fmt.Sprintf("%v", t)
			} else {
				val = string(b)
			}
		}
		env = append(env, ArgEnvPrefix+envKey.ReplaceAllString(strings.ToUpper(k), "_")+"="+val)
	}
	return env
}

func decodeOutput(output string) any {
	trimmed := strings.TrimSpace(output)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return trimmed
}
