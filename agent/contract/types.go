package contract

import (
	"strings"

	statex "github.com/portsense/portsense/agent/state"
)

// Label is the classifier's intent vocabulary. Distinct from statex.Intent:
// labels describe one message, intents describe the thread's current topic.
type Label string

const (
	LabelBooking    Label = "BOOKING"
	LabelCapacity   Label = "CAPACITY"
	LabelChitchat   Label = "CHITCHAT"
	LabelHelp       Label = "HELP"
	LabelOutOfScope Label = "OUT_OF_SCOPE"
	LabelMulti      Label = "MULTI"
)

// Classification is the structured result of one intent+language call.
// Intents is only populated for MULTI.
type Classification struct {
	Intent   Label   `json:"intent"`
	Intents  []Label `json:"intents,omitempty"`
	Language string  `json:"language"`
}

// Node maps a single-intent label to its specialist destination.
func (l Label) Node() (statex.Node, bool) {
	switch l {
	case LabelBooking:
		return statex.NodeBooking, true
	case LabelCapacity:
		return statex.NodeCapacity, true
	default:
		return "", false
	}
}

// NormalizeLabel uppercases and trims raw classifier output.
func NormalizeLabel(s string) Label {
	return Label(strings.ToUpper(strings.TrimSpace(s)))
}

// Turn is the mutable unit of work flowing through the turn graph. Each node
// reads and updates State and sets Goto to name its successor.
type Turn struct {
	State *statex.ConversationState

	// UserMessage is the inbound text for this turn (also the last user
	// entry in State.Messages).
	UserMessage string

	// Goto is the next destination; NodeEnd terminates the turn.
	Goto statex.Node
}

// ModelTier selects a provider model by capability, mirroring the configured
// small/medium/large model names.
type ModelTier string

const (
	TierSmall  ModelTier = "small"
	TierMedium ModelTier = "medium"
	TierLarge  ModelTier = "large"
)
