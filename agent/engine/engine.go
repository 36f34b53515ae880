package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/portsense/portsense/agent/contract"
	statex "github.com/portsense/portsense/agent/state"
	"github.com/portsense/portsense/pkg/portapi"
)

var ErrEmptyMessage = fmt.Errorf("%w: message must not be empty", contract.ErrValidation)

// TurnRequest is one inbound chat message. An empty ThreadID starts a new
// conversation; Role and UserID default to a guest carrier.
type TurnRequest struct {
	ThreadID string
	UserID   string
	Role     string
	Message  string
}

// Block is one renderable piece of the assistant reply.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TurnResponse is what the API returns for one completed turn.
type TurnResponse struct {
	Message       string            `json:"message"`
	Blocks        []Block           `json:"blocks"`
	ThreadID      string            `json:"thread_id"`
	UIPayload     *statex.UIPayload `json:"ui_payload,omitempty"`
	RouteLock     string            `json:"route_lock,omitempty"`
	CurrentIntent string            `json:"current_intent,omitempty"`
	Language      string            `json:"language_detected,omitempty"`
}

// Engine owns the turn lifecycle: load the thread, run the agent graph, save
// the thread. Turns on the same thread are serialized; different threads run
// concurrently.
type Engine struct {
	store    statex.Store
	api      portapi.Service
	router   contract.Router
	booking  contract.Specialist
	capacity contract.Specialist
	guardian contract.Gatekeeper

	runner compose.Runnable[*contract.Turn, *contract.Turn]

	mu      sync.Mutex
	threads map[string]*threadLock

	now func() time.Time
}

func New(
	store statex.Store,
	api portapi.Service,
	router contract.Router,
	booking contract.Specialist,
	capacity contract.Specialist,
	guardian contract.Gatekeeper,
) (*Engine, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if api == nil {
		return nil, errors.New("port api service is required")
	}
	if router == nil {
		return nil, errors.New("router is required")
	}
	if booking == nil || capacity == nil {
		return nil, errors.New("both specialists are required")
	}
	if guardian == nil {
		return nil, errors.New("guardian is required")
	}

	e := &Engine{
		store:    store,
		api:      api,
		router:   router,
		booking:  booking,
		capacity: capacity,
		guardian: guardian,
		threads:  make(map[string]*threadLock),
		now:      time.Now,
	}

	runner, err := e.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	e.runner = runner

	return e, nil
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// HandleTurn runs one full conversational turn. State is saved only after the
// graph completes, so a failed turn leaves the persisted thread untouched.
func (e *Engine) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}

	unlock := e.lockThread(threadID)
	defer unlock()

	st, err := e.loadOrCreate(ctx, threadID, req)
	if err != nil {
		return nil, err
	}

	e.resolveIdentity(ctx, st)

	// Leftovers from the previous turn; the specialist rebuilds both.
	st.Draft = ""
	st.UIPayload = nil

	st.AppendUser(message)
	st.Touch(e.now())

	turn := &contract.Turn{State: st, UserMessage: message}
	if _, err := e.runner.Invoke(ctx, turn); err != nil {
		return nil, fmt.Errorf("run turn: %w", err)
	}

	if err := e.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("save thread %s: %w", threadID, err)
	}

	return buildResponse(st), nil
}

func (e *Engine) loadOrCreate(ctx context.Context, threadID string, req TurnRequest) (*statex.ConversationState, error) {
	st, err := e.store.Load(ctx, threadID)
	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, statex.ErrStateNotFound):
		userID := strings.TrimSpace(req.UserID)
		if userID == "" {
			userID = "guest"
		}
		return statex.NewConversationState(threadID, userID, statex.ParseRole(req.Role), e.now()), nil
	default:
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
}

// resolveIdentity refreshes the backend identifiers the tools scope data by.
// Lookup failures keep the previous value; tools degrade to unscoped or empty
// results rather than failing the turn.
func (e *Engine) resolveIdentity(ctx context.Context, st *statex.ConversationState) {
	switch st.Role {
	case statex.RoleOperator:
		id, err := e.api.ResolveTerminalID(ctx, st.UserID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", st.UserID).Msg("terminal lookup failed")
			return
		}
		st.TerminalID = id
	case statex.RoleCarrier:
		id, err := e.api.ResolveCarrierID(ctx, st.UserID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", st.UserID).Msg("carrier lookup failed")
			return
		}
		st.CarrierID = id
	}
}

// threadLock serializes turns on one thread. The refcount tracks holders and
// waiters so the map entry can be dropped once the last one releases.
type threadLock struct {
	mu   sync.Mutex
	refs int
}

func (e *Engine) lockThread(threadID string) func() {
	e.mu.Lock()
	l, ok := e.threads[threadID]
	if !ok {
		l = &threadLock{}
		e.threads[threadID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.threads, threadID)
		}
		e.mu.Unlock()
	}
}

func buildResponse(st *statex.ConversationState) *TurnResponse {
	resp := &TurnResponse{
		ThreadID:      st.ThreadID,
		UIPayload:     st.UIPayload,
		RouteLock:     string(st.RouteLock),
		CurrentIntent: string(st.CurrentIntent),
		Language:      st.Language,
	}
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].Role == statex.MessageRoleAssistant {
			resp.Message = st.Messages[i].Content
			break
		}
	}
	if resp.Message != "" {
		resp.Blocks = []Block{{Type: "message", Text: resp.Message}}
	}
	return resp
}
