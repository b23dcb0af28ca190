// Package schema validates tool arguments against a JSON-Schema-like declaration.
//
// Only two rules are enforced: required fields must be present and non-null, and
// declared property types must match the runtime type of the value. The schema is a
// floor, not a ceiling, so undeclared arguments pass through.
//
//	s := schema.Object(map[string]string{"expression": schema.TypeString}, "expression")
//	if err := schema.Validate(args, s); err != nil {
//	    var verr *schema.ValidationError
//	    errors.As(err, &verr) // verr.MissingRequired, verr.TypeMismatch
//	}
package schema
