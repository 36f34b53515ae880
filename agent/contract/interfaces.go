package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ModelGateway is the rate-limited access point for every language-model
// call: plain completions and single-decision tool-calling completions.
type ModelGateway interface {
	Complete(ctx context.Context, tier ModelTier, system string, history []*schema.Message) (string, error)
	CompleteWithTools(ctx context.Context, tier ModelTier, system string, history []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error)
}

// Router decides the turn's first destination (a specialist or the guardian).
type Router interface {
	Route(ctx context.Context, turn *Turn) error
}

// Specialist handles one intent with at most one tool call per visit.
type Specialist interface {
	Run(ctx context.Context, turn *Turn) error
}

// Gatekeeper authorizes and finalizes the outbound response, and may route
// the turn back into a specialist for multi-intent continuation.
type Gatekeeper interface {
	Finalize(ctx context.Context, turn *Turn) error
}
