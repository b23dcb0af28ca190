package parley_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/provider"
)

// ExampleEngine_Send runs one turn with the offline provider and the built-in tools.
func ExampleEngine_Send() {
	eng := parley.New(
		parley.WithProvider(provider.NewLocal()),
		parley.WithBuiltinTools(),
	)
	state := conversation.NewWithSystemPrompt("demo", "You are a calculator.")

	res, err := eng.Send(context.Background(), state, "Calculate 40+2")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Signal.Text())
	fmt.Println(len(res.State.ToolCalls), "tool call")
	// Output:
	// The answer is 42.
	// 1 tool call
}

// ExampleEngine_Process shows how a missing tool degrades into an apology.
func ExampleEngine_Process() {
	eng := parley.New()
	state := conversation.New("demo")

	res, err := eng.Process(context.Background(), domain.NewToolCall(domain.ToolCall{Name: "missing_tool"}), state)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Signal.Text())
	fmt.Println(res.State.Errors[0].Kind)
	// Output:
	// Sorry, there was a tool error: tool "missing_tool" not found
	// not_found
}
