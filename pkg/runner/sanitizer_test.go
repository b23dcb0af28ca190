package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizer_Text(t *testing.T) {
	s := NewSanitizer(16)

	cases := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain", input: "hello", want: "hello"},
		{name: "keeps layout controls", input: "a\nb\tc\r", want: "a\nb\tc\r"},
		{name: "drops escape and bell", input: "\x1b[1mhi\x07", want: "[1mhi"},
		{name: "drops nul", input: "a\x00b", want: "ab"},
		{name: "at the limit", input: strings.Repeat("x", 16), want: strings.Repeat("x", 16)},
		{name: "over the limit", input: strings.Repeat("x", 17), wantErr: ErrInputTooLarge},
		{name: "invalid utf8", input: "\xbd\xb2=", wantErr: ErrInvalidUTF8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Text(tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSanitizer_DefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultMaxInputSize, NewSanitizer(0).MaxSize)
	assert.Equal(t, DefaultMaxInputSize, NewSanitizer(-3).MaxSize)

	_, err := NewSanitizer(0).Text(strings.Repeat("x", DefaultMaxInputSize))
	assert.NoError(t, err)
	_, err = Sanitizer{}.Text(strings.Repeat("x", DefaultMaxInputSize+1))
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestSanitizer_Value(t *testing.T) {
	s := NewSanitizer(12)

	got, err := s.Value(map[string]any{
		"name": "calc\x1b",
		"args": []any{"1+1", 2.0, map[string]any{"k": "v"}},
		"ok":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name": "calc",
		"args": []any{"1+1", 2.0, map[string]any{"k": "v"}},
		"ok":   true,
	}, got)

	_, err = s.Value(map[string]any{"a": "123456", "b": "1234567"})
	assert.ErrorIs(t, err, ErrInputTooLarge, "the limit covers all strings together")

	_, err = s.Value([]any{"\xff"})
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}
