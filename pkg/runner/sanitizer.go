package runner

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxInputSize is the byte limit used when none is configured.
const DefaultMaxInputSize = 4096

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer cleans text before it enters a conversation. Oversized input is rejected,
// never truncated, and control characters other than \n, \t and \r are dropped so
// they cannot reach logs, terminals or the provider.
type Sanitizer struct {
	MaxSize int
}

// NewSanitizer returns a Sanitizer with the given byte limit. Values below 1 select
// DefaultMaxInputSize.
func NewSanitizer(maxSize int) Sanitizer {
	if maxSize < 1 {
		maxSize = DefaultMaxInputSize
	}
	return Sanitizer{MaxSize: maxSize}
}

func (s Sanitizer) limit() int {
	if s.MaxSize < 1 {
		return DefaultMaxInputSize
	}
	return s.MaxSize
}

// Text sanitizes a single user utterance.
func (s Sanitizer) Text(input string) (string, error) {
	if n := len(input); n > s.limit() {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, n, s.limit())
	}
	return stripControls(input)
}

// Value sanitizes every string inside a decoded JSON value, such as a signal payload.
// The limit applies to the sum of the string values, so splitting text across fields
// does not get around it. Keys are cleaned but not counted.
func (s Sanitizer) Value(v any) (any, error) {
	budget := s.limit()
	out, err := s.walk(v, &budget)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s Sanitizer) walk(v any, budget *int) (any, error) {
	switch t := v.(type) {
	case string:
		*budget -= len(t)
		if *budget < 0 {
			return nil, fmt.Errorf("%w: limit=%d", ErrInputTooLarge, s.limit())
		}
		return stripControls(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			key, err := stripControls(k)
			if err != nil {
				return nil, err
			}
			val, err := s.walk(e, budget)
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			val, err := s.walk(e, budget)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	default:
		return v, nil
	}
}

func stripControls(input string) (string, error) {
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(input, unsafeControl) < 0 {
		return input, nil
	}
	return strings.Map(func(r rune) rune {
		if unsafeControl(r) {
			return -1
		}
		return r
	}, input), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
