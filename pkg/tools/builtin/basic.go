package builtin

import (
	"context"
	"time"

	"github.com/aretw0/parley/pkg/schema"
	"github.com/aretw0/parley/pkg/tools"
)

type clockArgs struct {
	Layout   string `mapstructure:"layout"`
	Location string `mapstructure:"location"`
}

// Clock reports the current time. now is injectable for tests; nil means time.Now.
func Clock(now func() time.Time) tools.Tool {
	if now == nil {
		now = time.Now
	}
	return tools.Tool{
		Name:        "clock",
		Description: "Return the current date and time.",
		Parameters: schema.Object(map[string]string{
			"layout":   schema.TypeString,
			"location": schema.TypeString,
		}),
		Execute: tools.Typed(func(_ context.Context, args clockArgs) (any, error) {
			t := now()
			if args.Location != "" {
				loc, err := time.LoadLocation(args.Location)
				if err != nil {
					return nil, err
				}
				t = t.In(loc)
			}
			layout := args.Layout
			if layout == "" {
				layout = time.RFC3339
			}
			return map[string]any{"time": t.Format(layout), "unix": t.Unix()}, nil
		}),
	}
}

// Echo returns its arguments unchanged.
func Echo() tools.Tool {
	return tools.Tool{
		Name:        "echo",
		Description: "Return the given arguments.",
		Execute: func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		},
	}
}

// All returns every built-in tool.
func All() []tools.Tool {
	return []tools.Tool{Calculator(), Clock(nil), Echo()}
}
