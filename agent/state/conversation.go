package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// ConversationState is the persistent source-of-truth for one chat thread.
// Messages is the only accretive field: new turns append, never rewrite.
// Every other field is replaced wholesale by the turn that owns it.
type ConversationState struct {
	// Identity
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id,omitempty"`
	Role     Role   `json:"user_role"`

	// Scoping, resolved once per turn context: TerminalID for OPERATOR,
	// CarrierID for CARRIER, both empty for ADMIN.
	TerminalID string `json:"terminal_id,omitempty"`
	CarrierID  string `json:"carrier_id,omitempty"`

	// Conversation history (append-only audit trail)
	Messages []Message `json:"messages,omitempty"`

	// Routing memory
	CurrentIntent  Intent `json:"current_intent,omitempty"`
	Language       string `json:"language_detected,omitempty"`
	RouteLock      Node   `json:"route_lock,omitempty"`
	PendingIntents []Node `json:"pending_intents,omitempty"`

	// Draft is transient: filled by a specialist, consumed by the guardian,
	// always empty between turns.
	Draft string `json:"draft_response,omitempty"`

	// UIPayload is a structured side-channel (e.g. a prefilled booking form).
	// Nil on turns that don't produce one.
	UIPayload *UIPayload `json:"ui_payload,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

type Role string

const (
	RoleCarrier  Role = "CARRIER"
	RoleOperator Role = "OPERATOR"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normalizes free-form role input, defaulting to CARRIER.
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleOperator:
		return RoleOperator
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleCarrier
	}
}

// Intent is the persisted per-thread topic, lowercase by convention.
type Intent string

const (
	IntentBooking  Intent = "booking"
	IntentCapacity Intent = "capacity"
	IntentGeneral  Intent = "general"
)

// Node names the destinations of the turn state machine. RouteLock and
// PendingIntents hold specialist node names only.
type Node string

const (
	NodeOrchestrator Node = "ORCHESTRATOR"
	NodeBooking      Node = "BOOKING"
	NodeCapacity     Node = "CAPACITY"
	NodeGuardian     Node = "GUARDIAN"
	NodeEnd          Node = "END"
)

// IsSpecialist reports whether n names a specialist node.
func (n Node) IsSpecialist() bool {
	return n == NodeBooking || n == NodeCapacity
}

// Intent maps a specialist node to its persisted intent.
func (n Node) Intent() Intent {
	switch n {
	case NodeBooking:
		return IntentBooking
	case NodeCapacity:
		return IntentCapacity
	default:
		return IntentGeneral
	}
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// Message is one durable history entry. Tool-call decisions and their results
// are kept alongside user/assistant text so the log is a full audit trail.
type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	ToolName   string      `json:"tool_name,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolArgs   string      `json:"tool_args,omitempty"`
}

// UIActionOpenBookingForm tells the frontend to open the booking form with
// the prefill values.
const UIActionOpenBookingForm = "OPEN_BOOKING_FORM"

// UIPayload is delivered alongside the text response when a specialist
// prepares a frontend action, currently only the booking form.
type UIPayload struct {
	UIAction string         `json:"ui_action"`
	Prefill  BookingPrefill `json:"prefill"`
}

type BookingPrefill struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	Terminal   string `json:"terminal"`
	TerminalID string `json:"terminal_id"`
}

var (
	ErrNilState        = errors.New("conversation state is nil")
	ErrInvalidThread   = errors.New("thread id is empty")
	ErrInvalidRole     = errors.New("unknown user role")
	ErrInvalidLock     = errors.New("route lock is not a specialist")
	ErrInvalidPending  = errors.New("pending intent is not a specialist")
	ErrEmptyMessageLog = errors.New("message log is empty")
)

func NewConversationState(threadID, userID string, role Role, now time.Time) *ConversationState {
	return &ConversationState{
		ThreadID:  strings.TrimSpace(threadID),
		UserID:    strings.TrimSpace(userID),
		Role:      role,
		UpdatedAt: now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

/* ----------------------------- history helpers ---------------------------- */

func (s *ConversationState) AppendUser(text string) {
	s.Messages = append(s.Messages, Message{Role: MessageRoleUser, Content: text})
}

func (s *ConversationState) AppendAssistant(text string) {
	s.Messages = append(s.Messages, Message{Role: MessageRoleAssistant, Content: text})
}

// AppendToolCall records the assistant's tool-call decision.
func (s *ConversationState) AppendToolCall(callID, tool, args string) {
	s.Messages = append(s.Messages, Message{
		Role:       MessageRoleAssistant,
		ToolName:   tool,
		ToolCallID: callID,
		ToolArgs:   args,
	})
}

// AppendToolResult records the executed tool's output.
func (s *ConversationState) AppendToolResult(callID, tool, result string) {
	s.Messages = append(s.Messages, Message{
		Role:       MessageRoleTool,
		Content:    result,
		ToolName:   tool,
		ToolCallID: callID,
	})
}

// LastUserMessage returns the most recent user entry, or "".
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == MessageRoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// RecentWindow returns the last n history entries. The full log stays durable;
// model calls only ever see this bounded view.
func (s *ConversationState) RecentWindow(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	start := 0
	if len(s.Messages) > n {
		start = len(s.Messages) - n
	}
	// A tool result is only valid directly after its call. When the cut lands
	// between the pair, drop the result rather than open the window on it.
	for start < len(s.Messages) && s.Messages[start].Role == MessageRoleTool {
		start++
	}
	return s.Messages[start:]
}

// HistoryText renders a bounded window as "ROLE: content" lines for prompts.
func HistoryText(msgs []Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		content := m.Content
		if content == "" && m.ToolName != "" {
			content = "[tool call: " + m.ToolName + "]"
		}
		lines = append(lines, strings.ToUpper(string(m.Role))+": "+content)
	}
	return strings.Join(lines, "\n")
}

// SchemaMessages converts durable history entries into eino chat messages.
func SchemaMessages(msgs []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case MessageRoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case MessageRoleTool:
			out = append(out, &schema.Message{
				Role:       schema.Tool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		default:
			msg := &schema.Message{Role: schema.Assistant, Content: m.Content}
			if m.ToolName != "" {
				msg.ToolCalls = []schema.ToolCall{{
					ID: m.ToolCallID,
					Function: schema.FunctionCall{
						Name:      m.ToolName,
						Arguments: m.ToolArgs,
					},
				}}
			}
			out = append(out, msg)
		}
	}
	return out
}

/* -------------------------------- validation ------------------------------ */

func (s *ConversationState) Validate() error {
	if s == nil {
		return ErrNilState
	}
	if strings.TrimSpace(s.ThreadID) == "" {
		return ErrInvalidThread
	}
	switch s.Role {
	case RoleCarrier, RoleOperator, RoleAdmin:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, s.Role)
	}
	if s.RouteLock != "" && !s.RouteLock.IsSpecialist() {
		return fmt.Errorf("%w: %q", ErrInvalidLock, s.RouteLock)
	}
	for _, n := range s.PendingIntents {
		if !n.IsSpecialist() {
			return fmt.Errorf("%w: %q", ErrInvalidPending, n)
		}
	}
	return nil
}
