package guardian

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/portsense/portsense/agent/contract"
	statex "github.com/portsense/portsense/agent/state"
	"github.com/portsense/portsense/pkg/portapi"
)

type fakeGateway struct {
	reply   string
	err     error
	systems []string
}

func (f *fakeGateway) Complete(ctx context.Context, tier contract.ModelTier, system string, history []*schema.Message) (string, error) {
	f.systems = append(f.systems, system)
	return f.reply, f.err
}

func (f *fakeGateway) CompleteWithTools(ctx context.Context, tier contract.ModelTier, system string, history []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error) {
	return nil, nil
}

type stubService struct{ portapi.Service }

func (stubService) TerminalsMap(ctx context.Context) (map[string]string, error) {
	return map[string]string{"Terminal A": "term-a"}, nil
}

func newTurn(role statex.Role) *contract.Turn {
	st := statex.NewConversationState("thread-1", "user-1", role, time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC))
	st.AppendUser("hello")
	return &contract.Turn{State: st}
}

func TestFinalizePolishesDraft(t *testing.T) {
	gw := &fakeGateway{reply: "**Polished** response."}
	turn := newTurn(statex.RoleCarrier)
	turn.State.Draft = "raw draft"
	turn.State.CurrentIntent = statex.IntentGeneral

	if err := New(gw, stubService{}).Finalize(context.Background(), turn); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if turn.Goto != statex.NodeEnd {
		t.Fatalf("goto = %s", turn.Goto)
	}
	last := turn.State.Messages[len(turn.State.Messages)-1]
	if last.Role != statex.MessageRoleAssistant || last.Content != "**Polished** response." {
		t.Fatalf("last message = %+v", last)
	}
	if turn.State.Draft != "" {
		t.Fatal("draft must be cleared after finalization")
	}
	if len(gw.systems) != 1 || !strings.Contains(gw.systems[0], "raw draft") {
		t.Fatal("polish prompt must carry the draft")
	}
}

func TestFinalizeEmptyDraftUsesFallback(t *testing.T) {
	gw := &fakeGateway{reply: "fallback polished"}
	turn := newTurn(statex.RoleCarrier)
	turn.State.CurrentIntent = statex.IntentGeneral

	if err := New(gw, stubService{}).Finalize(context.Background(), turn); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !strings.Contains(gw.systems[0], "couldn't process your request") {
		t.Fatal("fallback draft must reach the polish prompt")
	}
}

func TestFinalizeDeniesDisallowedIntent(t *testing.T) {
	saved := allowedIntents[statex.RoleCarrier]
	allowedIntents[statex.RoleCarrier] = []statex.Intent{statex.IntentGeneral}
	defer func() { allowedIntents[statex.RoleCarrier] = saved }()

	gw := &fakeGateway{reply: "should not be called"}
	turn := newTurn(statex.RoleCarrier)
	turn.State.Draft = "sensitive data"
	turn.State.CurrentIntent = statex.IntentBooking
	turn.State.UIPayload = &statex.UIPayload{UIAction: statex.UIActionOpenBookingForm}
	turn.State.PendingIntents = []statex.Node{statex.NodeCapacity}

	if err := New(gw, stubService{}).Finalize(context.Background(), turn); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	last := turn.State.Messages[len(turn.State.Messages)-1]
	if !strings.Contains(last.Content, "Access Denied") || !strings.Contains(last.Content, "Truck Carrier") {
		t.Fatalf("denial message = %q", last.Content)
	}
	if turn.State.Draft != "" || turn.State.UIPayload != nil {
		t.Fatal("denied turns must drop draft and payload")
	}
	if len(turn.State.PendingIntents) != 0 {
		t.Fatal("denied turns must drop queued intents")
	}
	if len(gw.systems) != 0 {
		t.Fatal("no model call on denial")
	}
	if turn.Goto != statex.NodeEnd {
		t.Fatalf("goto = %s", turn.Goto)
	}
}

func TestFinalizeContinuesPendingIntent(t *testing.T) {
	gw := &fakeGateway{reply: "done with capacity"}
	turn := newTurn(statex.RoleCarrier)
	turn.State.Draft = "capacity summary"
	turn.State.CurrentIntent = statex.IntentCapacity
	turn.State.PendingIntents = []statex.Node{statex.NodeBooking}

	if err := New(gw, stubService{}).Finalize(context.Background(), turn); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if turn.Goto != statex.NodeBooking {
		t.Fatalf("goto = %s, want continuation into BOOKING", turn.Goto)
	}
	if turn.State.CurrentIntent != statex.IntentBooking {
		t.Fatalf("intent = %s", turn.State.CurrentIntent)
	}
	if len(turn.State.PendingIntents) != 0 {
		t.Fatalf("pending = %v", turn.State.PendingIntents)
	}
}

func TestFinalizeLockClearsQueue(t *testing.T) {
	gw := &fakeGateway{reply: "which terminal?"}
	turn := newTurn(statex.RoleCarrier)
	turn.State.Draft = "which terminal?"
	turn.State.CurrentIntent = statex.IntentBooking
	turn.State.RouteLock = statex.NodeBooking
	turn.State.PendingIntents = []statex.Node{statex.NodeCapacity}

	if err := New(gw, stubService{}).Finalize(context.Background(), turn); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if turn.Goto != statex.NodeEnd {
		t.Fatalf("goto = %s, a waiting question ends the turn", turn.Goto)
	}
	if len(turn.State.PendingIntents) != 0 {
		t.Fatal("queued intents are stale once a specialist is waiting on the user")
	}
}

func TestFinalizeFormPromptCarriesPayload(t *testing.T) {
	gw := &fakeGateway{reply: "confirm the form"}
	turn := newTurn(statex.RoleCarrier)
	turn.State.Draft = "form ready"
	turn.State.CurrentIntent = statex.IntentBooking
	turn.State.UIPayload = &statex.UIPayload{
		UIAction: statex.UIActionOpenBookingForm,
		Prefill:  statex.BookingPrefill{Date: "2026-02-10", Time: "08:00", Terminal: "Terminal A", TerminalID: "term-a"},
	}

	if err := New(gw, stubService{}).Finalize(context.Background(), turn); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !strings.Contains(gw.systems[0], "OPEN_BOOKING_FORM") {
		t.Fatal("form prompt must embed the UI payload")
	}
	if turn.State.UIPayload == nil {
		t.Fatal("payload must survive finalization for the API response")
	}
}

func TestAllowedDefaultsUnknownRoleToCarrier(t *testing.T) {
	if !Allowed(statex.Role("GUEST"), statex.IntentBooking) {
		t.Fatal("unknown roles fall back to carrier permissions")
	}
}
