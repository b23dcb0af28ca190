package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Runtime type names reported by TypeOf and accepted in Property.Type.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeNull    = "null"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Property declares the expected type of one argument.
type Property struct {
	Type        string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// Schema is the JSON-Schema-like parameter declaration of a tool.
// Only "required" and per-property "type" are enforced.
type Schema struct {
	Type       string              `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Required   []string            `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	Properties map[string]Property `json:"properties,omitempty" yaml:"properties,omitempty" mapstructure:"properties"`
}

// Object builds an object schema from property types, marking required fields.
//
//	schema.Object(map[string]string{"expression": "string"}, "expression")
func Object(types map[string]string, required ...string) *Schema {
	props := make(map[string]Property, len(types))
	for name, typ := range types {
		props[name] = Property{Type: typ}
	}
	return &Schema{Type: TypeObject, Required: required, Properties: props}
}

// FromMap decodes a schema from its JSON-shaped form.
func FromMap(m map[string]any) (*Schema, error) {
	if m == nil {
		return nil, nil
	}
	var s Schema
	if err := mapstructure.Decode(m, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &s, nil
}

// ToMap renders the schema in the JSON-shaped form handed to LLM providers.
func (s *Schema) ToMap() map[string]any {
	if s == nil {
		return nil
	}
	typ := s.Type
	if typ == "" {
		typ = TypeObject
	}
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		entry := map[string]any{}
		if p.Type != "" {
			entry["type"] = p.Type
		}
		if p.Description != "" {
			entry["description"] = p.Description
		}
		props[name] = entry
	}
	out := map[string]any{"type": typ, "properties": props}
	if len(s.Required) > 0 {
		req := append([]string(nil), s.Required...)
		sort.Strings(req)
		out["required"] = req
	}
	return out
}

// TypeOf reports the JSON type of a runtime value.
func TypeOf(v any) string {
	switch t := v.(type) {
	case nil:
		return TypeNull
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32:
		return numberType(float64(t))
	case float64:
		return numberType(t)
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return TypeInteger
		}
		return TypeNumber
	case map[string]any:
		return TypeObject
	case []any:
		return TypeArray
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Struct:
		return TypeObject
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.Pointer:
		rv := reflect.ValueOf(v)
		if rv.IsNil() {
			return TypeNull
		}
		return TypeOf(rv.Elem().Interface())
	default:
		return fmt.Sprintf("%T", v)
	}
}

func numberType(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return TypeInteger
	}
	return TypeNumber
}

// matches reports whether a value of runtime type actual satisfies declared.
// Integers satisfy "number"; unknown declared types are not enforced.
func matches(declared, actual string) bool {
	switch declared {
	case "", "any":
		return true
	case TypeNumber:
		return actual == TypeNumber || actual == TypeInteger
	case TypeString, TypeInteger, TypeBoolean, TypeNull, TypeObject, TypeArray:
		return declared == actual
	default:
		return true
	}
}
