package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/ports"
)

// Mask replaces the value of every masked key.
const Mask = "***"

// DefaultPIIPatterns match the key names most often carrying secrets.
var DefaultPIIPatterns = []string{`(?i)password`, `(?i)secret`, `(?i)token`, `(?i)api_?key`}

type piiMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks values whose key matches one of the patterns before the
// conversation reaches the store. Preferences and tool-call args and results are scanned.
// Loaded conversations keep the mask; masking is one-way.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, id string, state *conversation.State) error {
	// The caller keeps using state, so mask a copy.
	masked := state.Clone()
	maskMap(masked.Preferences, m.patterns)
	for i := range masked.ToolCalls {
		maskMap(masked.ToolCalls[i].Args, m.patterns)
		if result, ok := masked.ToolCalls[i].Result.(map[string]any); ok {
			maskMap(result, m.patterns)
		}
	}
	return m.next.Save(ctx, id, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, id string) (*conversation.State, error) {
	return m.next.Load(ctx, id)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = Mask
			continue
		}
		switch t := v.(type) {
		case map[string]any:
			maskMap(t, patterns)
		case []any:
			for _, e := range t {
				if sub, ok := e.(map[string]any); ok {
					maskMap(sub, patterns)
				}
			}
		}
	}
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
