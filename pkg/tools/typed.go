package tools

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Typed adapts a function taking a decoded argument struct into a Func.
// Arguments are decoded with mapstructure using "mapstructure" tags, with weak typing
// so JSON numbers land in int fields.
func Typed[T any](fn func(ctx context.Context, args T) (any, error)) Func {
	return func(ctx context.Context, raw map[string]any) (any, error) {
		var args T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &args,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(raw); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		return fn(ctx, args)
	}
}
