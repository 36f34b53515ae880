package engine

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/portsense/portsense/agent/contract"
	statex "github.com/portsense/portsense/agent/state"
)

const (
	nodeOrchestrator = "orchestrator"
	nodeBooking      = "booking"
	nodeCapacity     = "capacity"
	nodeGuardian     = "guardian"

	// Upper bound on node visits per turn. A turn is at most classify, two
	// specialist passes and a guardian pass after each.
	maxTurnSteps = 12
)

func (e *Engine) compileTurnGraph(ctx context.Context) (compose.Runnable[*contract.Turn, *contract.Turn], error) {
	graph := compose.NewGraph[*contract.Turn, *contract.Turn]()

	if err := graph.AddLambdaNode(nodeOrchestrator,
		compose.InvokableLambda(func(ctx context.Context, turn *contract.Turn) (*contract.Turn, error) {
			if err := e.router.Route(ctx, turn); err != nil {
				return nil, err
			}
			return turn, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeOrchestrator, err)
	}

	if err := graph.AddLambdaNode(nodeBooking,
		compose.InvokableLambda(func(ctx context.Context, turn *contract.Turn) (*contract.Turn, error) {
			if err := e.booking.Run(ctx, turn); err != nil {
				return nil, err
			}
			return turn, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeBooking, err)
	}

	if err := graph.AddLambdaNode(nodeCapacity,
		compose.InvokableLambda(func(ctx context.Context, turn *contract.Turn) (*contract.Turn, error) {
			if err := e.capacity.Run(ctx, turn); err != nil {
				return nil, err
			}
			return turn, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeCapacity, err)
	}

	if err := graph.AddLambdaNode(nodeGuardian,
		compose.InvokableLambda(func(ctx context.Context, turn *contract.Turn) (*contract.Turn, error) {
			if err := e.guardian.Finalize(ctx, turn); err != nil {
				return nil, err
			}
			return turn, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeGuardian, err)
	}

	if err := graph.AddEdge(compose.START, nodeOrchestrator); err != nil {
		return nil, fmt.Errorf("add edge %s->%s: %w", compose.START, nodeOrchestrator, err)
	}

	if err := graph.AddBranch(nodeOrchestrator, compose.NewGraphBranch(routeTarget, map[string]bool{
		nodeBooking:  true,
		nodeCapacity: true,
		nodeGuardian: true,
	})); err != nil {
		return nil, fmt.Errorf("add branch after %s: %w", nodeOrchestrator, err)
	}

	for _, specialist := range []string{nodeBooking, nodeCapacity} {
		if err := graph.AddEdge(specialist, nodeGuardian); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", specialist, nodeGuardian, err)
		}
	}

	// The guardian either ends the turn or hands it back to the next queued
	// specialist, which makes the graph cyclic.
	if err := graph.AddBranch(nodeGuardian, compose.NewGraphBranch(continuationTarget, map[string]bool{
		nodeBooking:  true,
		nodeCapacity: true,
		compose.END:  true,
	})); err != nil {
		return nil, fmt.Errorf("add branch after %s: %w", nodeGuardian, err)
	}

	runner, err := graph.Compile(ctx,
		compose.WithGraphName("portsense.turn"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithMaxRunSteps(maxTurnSteps),
	)
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}

func routeTarget(_ context.Context, turn *contract.Turn) (string, error) {
	switch turn.Goto {
	case statex.NodeBooking:
		return nodeBooking, nil
	case statex.NodeCapacity:
		return nodeCapacity, nil
	case statex.NodeGuardian:
		return nodeGuardian, nil
	default:
		return "", fmt.Errorf("orchestrator routed to unknown node %q", turn.Goto)
	}
}

func continuationTarget(_ context.Context, turn *contract.Turn) (string, error) {
	switch turn.Goto {
	case statex.NodeBooking:
		return nodeBooking, nil
	case statex.NodeCapacity:
		return nodeCapacity, nil
	case statex.NodeEnd:
		return compose.END, nil
	default:
		return "", fmt.Errorf("guardian routed to unknown node %q", turn.Goto)
	}
}
