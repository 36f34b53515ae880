package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	statex "github.com/portsense/portsense/agent/state"
	"github.com/portsense/portsense/pkg/portapi"
)

type fakeService struct {
	bookings     []portapi.Booking
	lastFilter   portapi.BookingFilter
	bookingsErr  error
	capacity     *portapi.DayCapacity
	summaries    []portapi.TerminalDaySummary
	availability []portapi.DayAvailability
}

func (f *fakeService) Bookings(ctx context.Context, filter portapi.BookingFilter) ([]portapi.Booking, error) {
	f.lastFilter = filter
	return f.bookings, f.bookingsErr
}

func (f *fakeService) TerminalsMap(ctx context.Context) (map[string]string, error) {
	return map[string]string{"Terminal A": "term-a"}, nil
}

func (f *fakeService) CapacityForDate(ctx context.Context, terminalID, date string) (*portapi.DayCapacity, error) {
	if f.capacity == nil {
		return nil, errors.New("no capacity")
	}
	return f.capacity, nil
}

func (f *fakeService) DaySummary(ctx context.Context, terminalID, date string) ([]portapi.TerminalDaySummary, error) {
	return f.summaries, nil
}

func (f *fakeService) Availability(ctx context.Context, terminalID, startDate, endDate string) ([]portapi.DayAvailability, error) {
	return f.availability, nil
}

func (f *fakeService) Overview(ctx context.Context) (*portapi.Overview, error) {
	return &portapi.Overview{}, nil
}

func (f *fakeService) Utilization(ctx context.Context, startDate, endDate string) ([]portapi.TerminalUtilization, error) {
	return nil, nil
}

func (f *fakeService) ResolveTerminalID(ctx context.Context, userID string) (string, error) {
	return "term-a", nil
}

func (f *fakeService) ResolveCarrierID(ctx context.Context, userID string) (string, error) {
	return "carrier-1", nil
}

func fixedClock() time.Time {
	return time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC)
}

func call(name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       "call-1",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}
}

func TestResolveDate(t *testing.T) {
	t.Parallel()

	now := fixedClock()
	cases := map[string]string{
		"TODAY":      "2026-02-07",
		"tomorrow":   "2026-02-08",
		"YESTERDAY":  "2026-02-06",
		"":           "2026-02-07",
		"2026-03-01": "2026-03-01",
	}
	for in, want := range cases {
		if got := ResolveDate(in, now); got != want {
			t.Errorf("ResolveDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCarrierBookingsScopedToOwnCarrier(t *testing.T) {
	t.Parallel()

	svc := &fakeService{bookings: []portapi.Booking{{
		ID: "b1", Status: "CONFIRMED",
		TimeSlot: portapi.TimeSlot{Date: "2026-02-08T00:00:00Z", StartTime: "08:00", EndTime: "09:00"},
		Terminal: portapi.Terminal{Name: "Terminal A"},
	}}}
	e := NewExecutorWithClock(svc, fixedClock)

	inv := Invocation{Role: statex.RoleCarrier, CarrierID: "carrier-1"}
	out := e.Execute(context.Background(), inv, call(ToolGetBookingsByUser, `{"terminal_id":"someone-elses"}`))

	if svc.lastFilter.CarrierID != "carrier-1" {
		t.Fatalf("carrier filter = %q, want carrier-1", svc.lastFilter.CarrierID)
	}
	if svc.lastFilter.StartDate != "2026-02-07" || svc.lastFilter.EndDate != "2026-02-14" {
		t.Fatalf("default window = %s..%s", svc.lastFilter.StartDate, svc.lastFilter.EndDate)
	}
	if !strings.Contains(out.Text, "[CONFIRMED] 2026-02-08 08:00-09:00 | Terminal: Terminal A") {
		t.Fatalf("formatted text = %q", out.Text)
	}
}

func TestAdminAllBookingsDefaultsThreeDayWindow(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	e := NewExecutorWithClock(svc, fixedClock)

	out := e.Execute(context.Background(), Invocation{Role: statex.RoleAdmin}, call(ToolGetAllBookings, `{"status":"pending"}`))

	if svc.lastFilter.StartDate != "2026-02-07" || svc.lastFilter.EndDate != "2026-02-10" {
		t.Fatalf("default window = %s..%s", svc.lastFilter.StartDate, svc.lastFilter.EndDate)
	}
	if svc.lastFilter.Status != "PENDING" {
		t.Fatalf("status = %q, want uppercased", svc.lastFilter.Status)
	}
	if !strings.Contains(out.Text, "No bookings found") {
		t.Fatalf("text = %q", out.Text)
	}
}

func TestOperatorTerminalBookingsFallBackToAssignedTerminal(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	e := NewExecutorWithClock(svc, fixedClock)

	inv := Invocation{Role: statex.RoleOperator, TerminalID: "term-a"}
	e.Execute(context.Background(), inv, call(ToolGetBookingsByTerminal, `{}`))

	if svc.lastFilter.TerminalID != "term-a" {
		t.Fatalf("terminal filter = %q, want assigned terminal", svc.lastFilter.TerminalID)
	}
}

func TestPrepareBookingFormResolvesTerminalName(t *testing.T) {
	t.Parallel()

	e := NewExecutorWithClock(&fakeService{}, fixedClock)
	inv := Invocation{Role: statex.RoleCarrier, Terminals: map[string]string{"Terminal A": "term-a"}}

	out := e.Execute(context.Background(), inv, call(ToolPrepareBookingForm,
		`{"date":"2026-02-10","time":"08:00","terminal":"Terminal A"}`))

	if out.UIPayload == nil {
		t.Fatal("expected UI payload")
	}
	if out.UIPayload.UIAction != statex.UIActionOpenBookingForm {
		t.Fatalf("ui action = %q", out.UIPayload.UIAction)
	}
	if out.UIPayload.Prefill.TerminalID != "term-a" {
		t.Fatalf("terminal id = %q, want term-a", out.UIPayload.Prefill.TerminalID)
	}
}

func TestPrepareBookingFormRejectsMissingFields(t *testing.T) {
	t.Parallel()

	e := NewExecutorWithClock(&fakeService{}, fixedClock)
	out := e.Execute(context.Background(), Invocation{}, call(ToolPrepareBookingForm, `{"date":"2026-02-10"}`))

	if out.UIPayload != nil {
		t.Fatal("incomplete form args must not produce a payload")
	}
	if !strings.Contains(out.Text, "date, time, and terminal") {
		t.Fatalf("text = %q", out.Text)
	}
}

func TestCommunicateWithUser(t *testing.T) {
	t.Parallel()

	e := NewExecutorWithClock(&fakeService{}, fixedClock)
	out := e.Execute(context.Background(), Invocation{}, call(ToolCommunicateWithUser,
		`{"message":"Which terminal?","needs_followup":true,"missing_fields":["terminal"]}`))

	if out.Message != "Which terminal?" || !out.NeedsFollowup {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.MissingFields) != 1 || out.MissingFields[0] != "terminal" {
		t.Fatalf("missing fields = %v", out.MissingFields)
	}
}

func TestUnknownToolReturnsSafeText(t *testing.T) {
	t.Parallel()

	e := NewExecutorWithClock(&fakeService{}, fixedClock)
	out := e.Execute(context.Background(), Invocation{}, call("delete_everything", `{}`))

	if !strings.Contains(out.Text, "not available") {
		t.Fatalf("text = %q", out.Text)
	}
}

func TestCapacityClosedDay(t *testing.T) {
	t.Parallel()

	svc := &fakeService{capacity: &portapi.DayCapacity{IsClosed: true, ClosedReason: "Maintenance"}}
	e := NewExecutorWithClock(svc, fixedClock)

	out := e.Execute(context.Background(), Invocation{}, call(ToolGetCapacityByTerminal,
		`{"terminal_id":"term-a","date":"TOMORROW"}`))

	if !strings.Contains(out.Text, "CLOSED on 2026-02-08") || !strings.Contains(out.Text, "Maintenance") {
		t.Fatalf("text = %q", out.Text)
	}
}

func TestAvailabilityReportMarksFullAndBestSlots(t *testing.T) {
	t.Parallel()

	svc := &fakeService{availability: []portapi.DayAvailability{{
		Date: "2026-02-08",
		Slots: []portapi.AvailabilitySlot{
			{StartTime: "08:00", EndTime: "10:00", IsAvailable: true, AvailableCapacity: 12, Capacity: 30},
			{StartTime: "10:00", EndTime: "12:00", IsAvailable: false, AvailableCapacity: 0, Capacity: 30},
		},
	}}}
	e := NewExecutorWithClock(svc, fixedClock)

	out := e.Execute(context.Background(), Invocation{}, call(ToolCheckAvailability,
		`{"terminal_id":"term-a","start_date":"2026-02-08","end_date":"2026-02-08"}`))

	if !strings.Contains(out.Text, "10:00-12:00 | FULL") {
		t.Fatalf("missing FULL marker: %q", out.Text)
	}
	if !strings.Contains(out.Text, "Best slot: 08:00-10:00 (12 available)") {
		t.Fatalf("missing best slot: %q", out.Text)
	}
}

func TestBookingToolSetsPerRole(t *testing.T) {
	t.Parallel()

	names := func(tools []*schema.ToolInfo) map[string]bool {
		m := make(map[string]bool, len(tools))
		for _, info := range tools {
			m[info.Name] = true
		}
		return m
	}

	admin := names(BookingTools(statex.RoleAdmin))
	if !admin[ToolGetAllBookings] || admin[ToolPrepareBookingForm] {
		t.Fatalf("admin booking tools = %v", admin)
	}

	operator := names(BookingTools(statex.RoleOperator))
	if operator[ToolGetAllBookings] || !operator[ToolGetBookingsByTerminal] {
		t.Fatalf("operator booking tools = %v", operator)
	}

	carrier := names(BookingTools(statex.RoleCarrier))
	if !carrier[ToolPrepareBookingForm] || !carrier[ToolGetBookingsByUser] || carrier[ToolGetAllBookings] {
		t.Fatalf("carrier booking tools = %v", carrier)
	}

	carrierCap := names(CapacityTools(statex.RoleCarrier))
	if carrierCap[ToolGetCapacityByTerminal] {
		t.Fatal("carrier capacity set must not include terminal capacity tool")
	}
	adminCap := names(CapacityTools(statex.RoleAdmin))
	if !adminCap[ToolGetCapacityByTerminal] {
		t.Fatal("admin capacity set must include terminal capacity tool")
	}
}
