package specialist

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/portsense/portsense/agent/contract"
	"github.com/portsense/portsense/agent/prompt"
	statex "github.com/portsense/portsense/agent/state"
	"github.com/portsense/portsense/agent/tool"
	"github.com/portsense/portsense/pkg/portapi"
)

const historyWindow = 20

// Agent handles one intent (booking or capacity) with at most one tool call
// per visit. The node identity picks the toolset and prompt family.
type Agent struct {
	node    statex.Node
	gateway contract.ModelGateway
	api     portapi.Service
	exec    *tool.Executor
	now     func() time.Time
}

var _ contract.Specialist = (*Agent)(nil)

func NewBooking(gateway contract.ModelGateway, api portapi.Service, exec *tool.Executor) *Agent {
	return newAgent(statex.NodeBooking, gateway, api, exec)
}

func NewCapacity(gateway contract.ModelGateway, api portapi.Service, exec *tool.Executor) *Agent {
	return newAgent(statex.NodeCapacity, gateway, api, exec)
}

func newAgent(node statex.Node, gateway contract.ModelGateway, api portapi.Service, exec *tool.Executor) *Agent {
	return &Agent{node: node, gateway: gateway, api: api, exec: exec, now: time.Now}
}

// WithClock pins the clock for tests.
func (a *Agent) WithClock(now func() time.Time) *Agent {
	a.now = now
	return a
}

// Run executes one specialist visit. It either answers directly, asks a
// clarifying question (locking the route for the next turn), prepares the
// booking form, or fetches data and synthesizes an answer from it.
func (a *Agent) Run(ctx context.Context, turn *contract.Turn) error {
	st := turn.State
	turn.Goto = statex.NodeGuardian
	st.CurrentIntent = a.node.Intent()

	terminals, err := a.api.TerminalsMap(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("terminals map fetch failed, prompt degrades")
		terminals = map[string]string{}
	}

	system := a.buildPrompt(ctx, st, terminals)
	tools := a.toolset(st.Role)
	history := statex.SchemaMessages(st.RecentWindow(historyWindow))

	resp, err := a.gateway.CompleteWithTools(ctx, contract.TierMedium, system, history, tools)
	if err != nil {
		return fmt.Errorf("%s specialist: %w", a.node, err)
	}

	if len(resp.ToolCalls) == 0 {
		st.Draft = resp.Content
		st.AppendAssistant(resp.Content)
		st.RouteLock = ""
		return nil
	}

	// Single-decision rule: only the first tool call counts.
	call := resp.ToolCalls[0]
	if len(resp.ToolCalls) > 1 {
		log.Warn().Str("node", string(a.node)).Int("extra", len(resp.ToolCalls)-1).Msg("dropping extra tool calls")
	}
	st.AppendToolCall(call.ID, call.Function.Name, call.Function.Arguments)

	outcome := a.exec.Execute(ctx, tool.Invocation{
		UserID:     st.UserID,
		Role:       st.Role,
		TerminalID: st.TerminalID,
		CarrierID:  st.CarrierID,
		Terminals:  terminals,
	}, call)

	switch {
	case outcome.UIPayload != nil:
		prefill := outcome.UIPayload.Prefill
		st.Draft = fmt.Sprintf(
			"I've prepared a booking form for you:\n- Date: %s\n- Time: %s\n- Terminal: %s\nPlease review and confirm in the form below.",
			prefill.Date, prefill.Time, prefill.Terminal)
		st.UIPayload = outcome.UIPayload
		st.AppendToolResult(call.ID, call.Function.Name, "booking form prepared")
		st.RouteLock = ""
		return nil

	case outcome.Message != "":
		st.Draft = outcome.Message
		st.AppendToolResult(call.ID, call.Function.Name, outcome.Message)
		if outcome.NeedsFollowup {
			// The next user message must come back here.
			st.RouteLock = a.node
		} else {
			st.RouteLock = ""
		}
		return nil
	}

	st.AppendToolResult(call.ID, call.Function.Name, outcome.Text)

	// Second pass: let the model turn raw tool data into a draft answer.
	synthHistory := statex.SchemaMessages(st.RecentWindow(historyWindow))
	final, err := a.gateway.CompleteWithTools(ctx, contract.TierMedium, system, synthHistory, tools)
	if err != nil {
		return fmt.Errorf("%s specialist synthesis: %w", a.node, err)
	}

	draft := final.Content
	if draft == "" {
		// Model went silent (or tried another tool); fall back to raw data.
		draft = outcome.Text
	}
	st.Draft = draft
	st.AppendAssistant(draft)
	st.RouteLock = ""
	return nil
}

func (a *Agent) toolset(role statex.Role) []*schema.ToolInfo {
	if a.node == statex.NodeBooking {
		return tool.BookingTools(role)
	}
	return tool.CapacityTools(role)
}

func (a *Agent) buildPrompt(ctx context.Context, st *statex.ConversationState, terminals map[string]string) string {
	bc := prompt.BookingContext{Terminals: terminals}

	if st.Role == statex.RoleOperator {
		if st.TerminalID != "" {
			bc.OperatorTerminal = "YOUR_TERMINAL_ID: " + st.TerminalID
		} else {
			bc.OperatorTerminal = "No terminal assigned"
		}
	}

	if a.node == statex.NodeBooking {
		if st.Role == statex.RoleAdmin || st.Role == statex.RoleOperator {
			bc.TodaysData = a.exec.TodaysSchedule(ctx)
		}
		return prompt.Booking(st.Role, a.now(), bc)
	}
	return prompt.Capacity(st.Role, a.now(), bc)
}
