package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"

	"github.com/portsense/portsense/agent/contract"
	"github.com/portsense/portsense/agent/prompt"
	statex "github.com/portsense/portsense/agent/state"
)

const classifierWindow = 5

// Agent classifies the inbound message (intent + language) and picks the
// turn's first destination.
type Agent struct {
	gateway contract.ModelGateway
}

var _ contract.Router = (*Agent)(nil)

func New(gateway contract.ModelGateway) *Agent {
	return &Agent{gateway: gateway}
}

// Route runs classification and sets turn.Goto. An active route lock wins over
// the fresh classification; the classifier still runs so language detection
// stays current.
func (a *Agent) Route(ctx context.Context, turn *contract.Turn) error {
	st := turn.State

	activeRoute := "NONE"
	if st.RouteLock.IsSpecialist() {
		activeRoute = string(st.RouteLock)
	}
	previousIntent := "NONE"
	if st.CurrentIntent != "" {
		previousIntent = strings.ToUpper(string(st.CurrentIntent))
	}

	system := prompt.Classifier(
		statex.HistoryText(st.RecentWindow(classifierWindow)),
		activeRoute,
		previousIntent,
	)

	raw, err := a.gateway.Complete(ctx, contract.TierMedium, system,
		[]*schema.Message{schema.UserMessage(turn.UserMessage)})
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	cls := parseClassification(raw)
	st.Language = cls.Language
	log.Info().Str("intent", string(cls.Intent)).Str("language", cls.Language).Msg("intent classified")

	// A locked route always wins: the specialist asked a question and the
	// user's answer belongs to it.
	if st.RouteLock.IsSpecialist() {
		turn.Goto = st.RouteLock
		st.CurrentIntent = st.RouteLock.Intent()
		return nil
	}

	intent := strings.ToUpper(string(cls.Intent))

	// Multi-intent continuation: a queued specialist is still owed a visit
	// unless the fresh classification starts new specialist work.
	if len(st.PendingIntents) > 0 && !startsNewWork(intent) {
		head := st.PendingIntents[0]
		rest := st.PendingIntents[1:]
		if head.IsSpecialist() {
			st.PendingIntents = rest
			st.CurrentIntent = head.Intent()
			turn.Goto = head
			return nil
		}
		log.Warn().Str("pending", string(head)).Msg("dropping invalid pending intent")
		st.PendingIntents = rest
	}

	switch {
	case strings.Contains(intent, "MULTI"):
		a.routeMulti(turn, cls)

	case strings.Contains(intent, "BOOKING"):
		st.CurrentIntent = statex.IntentBooking
		st.PendingIntents = nil
		turn.Goto = statex.NodeBooking

	case strings.Contains(intent, "CAPACITY"):
		st.CurrentIntent = statex.IntentCapacity
		st.PendingIntents = nil
		turn.Goto = statex.NodeCapacity

	case strings.Contains(intent, "HELP"):
		a.toGuardian(turn, prompt.Help(st.Role))

	case strings.Contains(intent, "OUT_OF_SCOPE"):
		a.toGuardian(turn, prompt.OutOfScope())

	default:
		a.toGuardian(turn, prompt.Greeting())
	}
	return nil
}

func (a *Agent) routeMulti(turn *contract.Turn, cls contract.Classification) {
	st := turn.State

	seen := make(map[statex.Node]bool, len(cls.Intents))
	nodes := make([]statex.Node, 0, len(cls.Intents))
	for _, label := range cls.Intents {
		if node, ok := contract.NormalizeLabel(string(label)).Node(); ok && !seen[node] {
			seen[node] = true
			nodes = append(nodes, node)
		}
	}
	if len(nodes) < 2 {
		nodes = []statex.Node{statex.NodeCapacity, statex.NodeBooking}
	}

	st.CurrentIntent = nodes[0].Intent()
	st.PendingIntents = nodes[1:]
	turn.Goto = nodes[0]
}

func (a *Agent) toGuardian(turn *contract.Turn, draft string) {
	st := turn.State
	st.Draft = draft
	st.CurrentIntent = statex.IntentGeneral
	st.PendingIntents = nil
	turn.Goto = statex.NodeGuardian
}

// startsNewWork reports whether a fresh classification overrides the pending
// queue instead of continuing it.
func startsNewWork(intent string) bool {
	switch {
	case strings.Contains(intent, "MULTI"),
		strings.Contains(intent, "BOOKING"),
		strings.Contains(intent, "CAPACITY"),
		strings.Contains(intent, "CHITCHAT"):
		return true
	}
	return false
}

// parseClassification decodes the classifier JSON, repairing malformed output
// before falling back to treating the raw text as the intent.
func parseClassification(raw string) contract.Classification {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var cls contract.Classification
	if err := json.Unmarshal([]byte(cleaned), &cls); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr != nil || json.Unmarshal([]byte(repaired), &cls) != nil {
			log.Warn().Err(contract.ErrSchemaViolation).Str("raw", raw).Msg("classifier returned unparseable output")
			return contract.Classification{
				Intent:   contract.NormalizeLabel(raw),
				Language: "English",
			}
		}
	}

	cls.Intent = contract.NormalizeLabel(string(cls.Intent))
	if cls.Language == "" {
		cls.Language = "English"
	}
	return cls
}
