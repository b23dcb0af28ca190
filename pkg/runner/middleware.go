package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/tools"
)

// ConfirmationMiddleware asks through handler before every tool call.
// Anything but "y" or "yes" denies the call.
func ConfirmationMiddleware(handler IOHandler) tools.Interceptor {
	return func(ctx context.Context, call domain.ToolCall) (bool, string, error) {
		prompt := fmt.Sprintf("Tool request: %s %v. Allow execution? [y/N]", call.Name, call.Args)
		if err := handler.SystemOutput(ctx, prompt); err != nil {
			return false, "", err
		}

		input, err := handler.Input(ctx)
		if err != nil {
			return false, "", err
		}

		switch strings.ToLower(strings.TrimSpace(input)) {
		case "y", "yes":
			return true, "", nil
		}
		return false, fmt.Sprintf("user denied execution of %s", call.Name), nil
	}
}
