package guardian

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/portsense/portsense/agent/contract"
	"github.com/portsense/portsense/agent/prompt"
	statex "github.com/portsense/portsense/agent/state"
	"github.com/portsense/portsense/pkg/portapi"
)

// Role labels used in denial messages.
var roleLabels = map[statex.Role]string{
	statex.RoleCarrier:  "Truck Carrier",
	statex.RoleOperator: "Terminal Operator",
	statex.RoleAdmin:    "Port Administrator",
}

// allowedIntents is the per-role permission table. Every role currently has
// access to every intent; the deny path stays live for when that changes.
var allowedIntents = map[statex.Role][]statex.Intent{
	statex.RoleCarrier:  {statex.IntentBooking, statex.IntentCapacity, statex.IntentGeneral},
	statex.RoleOperator: {statex.IntentBooking, statex.IntentCapacity, statex.IntentGeneral},
	statex.RoleAdmin:    {statex.IntentBooking, statex.IntentCapacity, statex.IntentGeneral},
}

// Allowed reports whether a role may receive data for an intent. Unknown
// roles get carrier permissions.
func Allowed(role statex.Role, intent statex.Intent) bool {
	intents, ok := allowedIntents[role]
	if !ok {
		intents = allowedIntents[statex.RoleCarrier]
	}
	for _, i := range intents {
		if i == intent {
			return true
		}
	}
	return false
}

// Agent is the final stop of every turn: permission check, response
// polishing and translation, and multi-intent continuation.
type Agent struct {
	gateway contract.ModelGateway
	api     portapi.Service
}

var _ contract.Gatekeeper = (*Agent)(nil)

func New(gateway contract.ModelGateway, api portapi.Service) *Agent {
	return &Agent{gateway: gateway, api: api}
}

func (a *Agent) Finalize(ctx context.Context, turn *contract.Turn) error {
	st := turn.State
	turn.Goto = statex.NodeEnd

	if !Allowed(st.Role, st.CurrentIntent) {
		label, ok := roleLabels[st.Role]
		if !ok {
			label = "User"
		}
		denied := fmt.Sprintf(
			"Access Denied: As a %s, you do not have permission to access %s data. Please contact your terminal operator for assistance.",
			label, st.CurrentIntent)

		log.Warn().Str("role", string(st.Role)).Str("intent", string(st.CurrentIntent)).Msg("permission denied")
		st.AppendAssistant(denied)
		st.Draft = ""
		st.UIPayload = nil
		st.PendingIntents = nil
		return nil
	}

	draft := st.Draft
	if draft == "" {
		log.Warn().Msg("no draft reached the guardian, using fallback")
		draft = prompt.Fallback()
	}

	final, err := a.polish(ctx, st, draft)
	if err != nil {
		return fmt.Errorf("guardian: %w", err)
	}

	st.AppendAssistant(final)
	st.Draft = ""

	// A set route lock means the specialist is waiting on the user; any
	// queued intents are stale at that point.
	if st.RouteLock.IsSpecialist() {
		st.PendingIntents = nil
		return nil
	}

	// Multi-intent continuation: hand the turn back to the next specialist.
	for len(st.PendingIntents) > 0 {
		head := st.PendingIntents[0]
		st.PendingIntents = st.PendingIntents[1:]
		if !head.IsSpecialist() {
			log.Warn().Str("pending", string(head)).Msg("dropping invalid pending intent")
			continue
		}
		st.CurrentIntent = head.Intent()
		turn.Goto = head
		return nil
	}
	return nil
}

func (a *Agent) polish(ctx context.Context, st *statex.ConversationState, draft string) (string, error) {
	var system string
	if st.UIPayload != nil {
		terminals, err := a.api.TerminalsMap(ctx)
		if err != nil {
			terminals = map[string]string{}
		}
		payload, _ := json.Marshal(st.UIPayload)
		system = prompt.GuardianForm(draft, st.Language, st.Role, st.CurrentIntent, terminals, string(payload))
	} else {
		system = prompt.GuardianFormat(draft, st.Language, st.Role, st.CurrentIntent)
	}

	out, err := a.gateway.Complete(ctx, contract.TierMedium, system, nil)
	if err != nil {
		return "", err
	}
	final := strings.TrimSpace(out)
	if final == "" {
		final = draft
	}
	return final, nil
}
