package schema

import "fmt"

// Validate checks args against s.
//
// Every required field must be present and non-null. Every declared property present
// in args must have a matching runtime type. Extra fields are accepted.
// The returned error, when non-nil, is a *ValidationError.
func Validate(args map[string]any, s *Schema) error {
	if s == nil {
		return nil
	}

	verr := &ValidationError{}
	missing := make(map[string]bool, len(s.Required))
	for _, field := range s.Required {
		if v, ok := args[field]; !ok || v == nil {
			verr.MissingRequired = append(verr.MissingRequired, field)
			missing[field] = true
		}
	}

	for field, prop := range s.Properties {
		v, ok := args[field]
		if !ok || missing[field] {
			continue
		}
		actual := TypeOf(v)
		if !matches(prop.Type, actual) {
			if verr.TypeMismatch == nil {
				verr.TypeMismatch = make(map[string]string)
			}
			verr.TypeMismatch[field] = fmt.Sprintf("expected %s got %s", prop.Type, actual)
		}
	}

	if len(verr.MissingRequired) == 0 && len(verr.TypeMismatch) == 0 {
		return nil
	}
	return verr
}
