package agent

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitCaller is the production ModelCaller: one genkit.Generate call with
// tool requests handed back instead of auto-dispatched, so the loop keeps
// control over dispatch and loop prevention.
type GenkitCaller struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenkitCaller creates a caller for the provider-qualified model name,
// e.g. "googleai/gemini-2.5-flash".
func NewGenkitCaller(g *genkit.Genkit, modelName string) (*GenkitCaller, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &GenkitCaller{g: g, modelName: modelName}, nil
}

// Generate implements ModelCaller.
func (c *GenkitCaller) Generate(ctx context.Context, messages []*ai.Message, tools []ai.ToolRef) (*ai.ModelResponse, error) {
	return genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithMessages(messages...),
		ai.WithTools(tools...),
		ai.WithReturnToolRequests(true),
	)
}

// GenkitDispatcher is the production ToolDispatcher, resolving tools from
// the Genkit registry by name.
type GenkitDispatcher struct {
	g *genkit.Genkit
}

// NewGenkitDispatcher creates a dispatcher backed by g's tool registry.
func NewGenkitDispatcher(g *genkit.Genkit) (*GenkitDispatcher, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	return &GenkitDispatcher{g: g}, nil
}

// Known implements ToolDispatcher.
func (d *GenkitDispatcher) Known(name string) bool {
	return genkit.LookupTool(d.g, name) != nil
}

// Dispatch implements ToolDispatcher.
func (d *GenkitDispatcher) Dispatch(ctx context.Context, name string, input any) (any, error) {
	tool := genkit.LookupTool(d.g, name)
	if tool == nil {
		return nil, fmt.Errorf("tool %q is not registered", name)
	}
	return tool.RunRaw(ctx, input)
}
