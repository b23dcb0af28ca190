package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError collects every violation found in one argument map.
type ValidationError struct {
	MissingRequired []string          `json:"missing_required,omitempty"`
	TypeMismatch    map[string]string `json:"type_mismatch,omitempty"`
}

func (e *ValidationError) Error() string {
	return "invalid arguments: " + strings.Join(e.Violations(), "; ")
}

// Violations lists the failures in a stable order, missing fields first.
func (e *ValidationError) Violations() []string {
	out := make([]string, 0, len(e.MissingRequired)+len(e.TypeMismatch))
	for _, f := range e.MissingRequired {
		out = append(out, fmt.Sprintf("missing required field %q", f))
	}
	fields := make([]string, 0, len(e.TypeMismatch))
	for f := range e.TypeMismatch {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		out = append(out, fmt.Sprintf("%s: %s", f, e.TypeMismatch[f]))
	}
	return out
}

// Context renders the error as the structured payload carried by error signals.
func (e *ValidationError) Context() map[string]any {
	ctx := map[string]any{"violations": e.Violations()}
	if len(e.MissingRequired) > 0 {
		ctx["missing_required"] = append([]string(nil), e.MissingRequired...)
	}
	if len(e.TypeMismatch) > 0 {
		mm := make(map[string]any, len(e.TypeMismatch))
		for k, v := range e.TypeMismatch {
			mm[k] = v
		}
		ctx["type_mismatch"] = mm
	}
	return ctx
}
