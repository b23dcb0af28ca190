package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// RendererOption configures NewRenderer.
type RendererOption func(*rendererConfig)

type rendererConfig struct {
	style    string
	wordWrap int
}

// WithStyle selects a glamour standard style ("dark", "light", "notty", ...).
// Without it the style follows the terminal background.
func WithStyle(style string) RendererOption {
	return func(c *rendererConfig) { c.style = style }
}

// WithWordWrap sets the wrap column. Zero keeps glamour's default.
func WithWordWrap(width int) RendererOption {
	return func(c *rendererConfig) { c.wordWrap = width }
}

// NewRenderer returns a function that renders markdown replies for the terminal.
func NewRenderer(opts ...RendererOption) (func(string) (string, error), error) {
	cfg := rendererConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	gopts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if cfg.style != "" {
		gopts = []glamour.TermRendererOption{glamour.WithStandardStyle(cfg.style)}
	}
	if cfg.wordWrap > 0 {
		gopts = append(gopts, glamour.WithWordWrap(cfg.wordWrap))
	}
	r, err := glamour.NewTermRenderer(gopts...)
	if err != nil {
		return nil, err
	}

	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	}, nil
}
