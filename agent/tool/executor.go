package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/portsense/portsense/agent/contract"
	statex "github.com/portsense/portsense/agent/state"
	"github.com/portsense/portsense/pkg/portapi"
)

// Invocation carries the server-side identity a tool call runs under. Scoping
// fields come from the thread state, never from model arguments.
type Invocation struct {
	UserID     string
	Role       statex.Role
	TerminalID string
	CarrierID  string
	Terminals  map[string]string
}

// Outcome is the result of one tool execution.
type Outcome struct {
	// Text is the data block to feed back into the model for synthesis.
	Text string

	// Message, when set, goes to the user directly without synthesis.
	Message       string
	NeedsFollowup bool
	MissingFields []string

	// UIPayload is set only by prepare_booking_form.
	UIPayload *statex.UIPayload
}

// Executor runs specialist tool calls against the data service.
type Executor struct {
	api portapi.Service
	now func() time.Time
}

func NewExecutor(api portapi.Service) *Executor {
	return &Executor{api: api, now: time.Now}
}

// NewExecutorWithClock pins the clock for tests.
func NewExecutorWithClock(api portapi.Service, now func() time.Time) *Executor {
	return &Executor{api: api, now: now}
}

type bookingArgs struct {
	Status     string `json:"status"`
	TerminalID string `json:"terminal_id"`
	CarrierID  string `json:"carrier_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

type capacityArgs struct {
	Date       string `json:"date"`
	TerminalID string `json:"terminal_id"`
}

type availabilityArgs struct {
	TerminalID string `json:"terminal_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

type formArgs struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Terminal string `json:"terminal"`
}

type communicateArgs struct {
	Message       string   `json:"message"`
	NeedsFollowup bool     `json:"needs_followup"`
	MissingFields []string `json:"missing_fields"`
}

// Execute runs one tool call. Model mistakes (unknown tool, bad arguments,
// backend failures) come back as user-safe text, never as an error; the
// conversation must keep moving.
func (e *Executor) Execute(ctx context.Context, inv Invocation, call schema.ToolCall) Outcome {
	name := call.Function.Name
	raw := call.Function.Arguments
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}

	log.Debug().Str("tool", name).Str("role", string(inv.Role)).Msg("executing tool call")

	switch name {
	case ToolGetBookingsByUser:
		return e.bookingsByUser(ctx, inv, raw)
	case ToolGetAllBookings:
		return e.allBookings(ctx, raw)
	case ToolGetBookingsByTerminal:
		return e.bookingsByTerminal(ctx, inv, raw)
	case ToolGetCapacityByTerminal:
		return e.capacityByTerminal(ctx, raw)
	case ToolGetTerminalSchedule, ToolGetCapacitySummary, ToolGetTerminalDetails:
		return e.scheduleSummary(ctx, raw)
	case ToolCheckAvailability:
		return e.checkAvailability(ctx, raw)
	case ToolPrepareBookingForm:
		return e.prepareBookingForm(inv, raw)
	case ToolCommunicateWithUser:
		return e.communicate(raw)
	}

	log.Warn().Err(contract.ErrToolUnknown).Str("tool", name).Msg("model requested unknown tool")
	return Outcome{Text: fmt.Sprintf("Tool %q is not available. Please answer with the data you already have.", name)}
}

// TodaysSchedule returns the all-terminal schedule report for today, used to
// prime specialist prompts with current status.
func (e *Executor) TodaysSchedule(ctx context.Context) string {
	return e.scheduleSummary(ctx, `{"date":"TODAY"}`).Text
}

func decodeArgs(raw string, out any) error {
	return json.Unmarshal([]byte(raw), out)
}

func (e *Executor) bookingsByUser(ctx context.Context, inv Invocation, raw string) Outcome {
	var args bookingArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Outcome{Text: "Invalid booking filter arguments. Please try again."}
	}

	start, end := dateRange(args.StartDate, args.EndDate, 7, e.now())
	filter := portapi.BookingFilter{
		Status:    strings.ToUpper(strings.TrimSpace(args.Status)),
		StartDate: start,
		EndDate:   end,
	}
	// Carriers only ever see their own bookings.
	if inv.Role != statex.RoleAdmin {
		filter.CarrierID = inv.CarrierID
	}

	bookings, err := e.api.Bookings(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("get_bookings_by_user failed")
		return Outcome{Text: "Failed to fetch bookings. Please try again."}
	}
	if len(bookings) == 0 {
		return Outcome{Text: "No bookings found matching your filters."}
	}
	return Outcome{Text: formatUserBookings(bookings, 15)}
}

func (e *Executor) allBookings(ctx context.Context, raw string) Outcome {
	var args bookingArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Outcome{Text: "Invalid booking filter arguments. Please try again."}
	}

	start, end := dateRange(args.StartDate, args.EndDate, 3, e.now())
	bookings, err := e.api.Bookings(ctx, portapi.BookingFilter{
		Status:     strings.ToUpper(strings.TrimSpace(args.Status)),
		TerminalID: args.TerminalID,
		CarrierID:  args.CarrierID,
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		log.Error().Err(err).Msg("get_all_bookings failed")
		return Outcome{Text: "Failed to fetch bookings. Please try again."}
	}
	if len(bookings) == 0 {
		return Outcome{Text: fmt.Sprintf("No bookings found (%s to %s).", start, end)}
	}
	return Outcome{Text: formatAllBookings(bookings, 25)}
}

func (e *Executor) bookingsByTerminal(ctx context.Context, inv Invocation, raw string) Outcome {
	var args bookingArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Outcome{Text: "Invalid booking filter arguments. Please try again."}
	}

	terminalID := args.TerminalID
	if terminalID == "" {
		terminalID = inv.TerminalID
	}
	if terminalID == "" {
		return Outcome{Text: "No terminal specified and no assigned terminal found. Please name a terminal."}
	}

	start, end := dateRange(args.StartDate, args.EndDate, 7, e.now())
	bookings, err := e.api.Bookings(ctx, portapi.BookingFilter{
		Status:     strings.ToUpper(strings.TrimSpace(args.Status)),
		TerminalID: terminalID,
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		log.Error().Err(err).Msg("get_bookings_by_terminal_id failed")
		return Outcome{Text: "Failed to fetch bookings for the terminal. Please try again."}
	}
	if len(bookings) == 0 {
		return Outcome{Text: fmt.Sprintf("No bookings found for this terminal (%s to %s).", start, end)}
	}
	return Outcome{Text: formatTerminalBookings(bookings, 20)}
}

func (e *Executor) capacityByTerminal(ctx context.Context, raw string) Outcome {
	var args capacityArgs
	if err := decodeArgs(raw, &args); err != nil || args.TerminalID == "" {
		return Outcome{Text: "A terminal UUID is required to fetch capacity data."}
	}

	date := ResolveDate(args.Date, e.now())
	capacity, err := e.api.CapacityForDate(ctx, args.TerminalID, date)
	if err != nil {
		log.Error().Err(err).Msg("get_capacity_by_terminal_id failed")
		return Outcome{Text: fmt.Sprintf("Failed to fetch capacity data for %s.", date)}
	}
	if capacity.IsClosed {
		reason := capacity.ClosedReason
		if reason == "" {
			reason = "No reason provided"
		}
		return Outcome{Text: fmt.Sprintf("Terminal is CLOSED on %s. Reason: %s", date, reason)}
	}

	// Slot-level analytics is optional enrichment.
	summaries, err := e.api.DaySummary(ctx, args.TerminalID, date)
	if err != nil {
		summaries = nil
	}
	return Outcome{Text: formatCapacityReport(date, capacity, summaries)}
}

func (e *Executor) scheduleSummary(ctx context.Context, raw string) Outcome {
	var args capacityArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Outcome{Text: "Invalid schedule arguments. Please try again."}
	}

	date := ResolveDate(args.Date, e.now())
	terminalID := args.TerminalID
	if terminalID == "" || strings.EqualFold(terminalID, "ALL") {
		terminalID = "all"
	}

	summaries, err := e.api.DaySummary(ctx, terminalID, date)
	if err != nil {
		log.Error().Err(err).Msg("day summary fetch failed")
		return Outcome{Text: fmt.Sprintf("--- SCHEDULE REPORT FOR %s ---\nNo data available.", date)}
	}
	return Outcome{Text: formatScheduleReport(date, summaries)}
}

func (e *Executor) checkAvailability(ctx context.Context, raw string) Outcome {
	var args availabilityArgs
	if err := decodeArgs(raw, &args); err != nil || args.TerminalID == "" {
		return Outcome{Text: "A terminal and date range are required to check availability."}
	}

	now := e.now()
	start := ResolveDate(args.StartDate, now)
	end := ResolveDate(args.EndDate, now)

	days, err := e.api.Availability(ctx, args.TerminalID, start, end)
	if err != nil {
		log.Error().Err(err).Msg("check_availability failed")
		return Outcome{Text: "Failed to check availability. Please try again."}
	}
	if len(days) == 0 {
		return Outcome{Text: "No availability data found for the given dates."}
	}
	return Outcome{Text: formatAvailabilityReport(start, end, days)}
}

func (e *Executor) prepareBookingForm(inv Invocation, raw string) Outcome {
	var args formArgs
	if err := decodeArgs(raw, &args); err != nil || args.Date == "" || args.Time == "" || args.Terminal == "" {
		return Outcome{Text: "The booking form needs date, time, and terminal. Ask the user for the missing details."}
	}

	terminalID := inv.Terminals[args.Terminal]
	if terminalID == "" {
		terminalID = args.Terminal
	}
	return Outcome{
		UIPayload: &statex.UIPayload{
			UIAction: statex.UIActionOpenBookingForm,
			Prefill: statex.BookingPrefill{
				Date:       args.Date,
				Time:       args.Time,
				Terminal:   args.Terminal,
				TerminalID: terminalID,
			},
		},
	}
}

func (e *Executor) communicate(raw string) Outcome {
	var args communicateArgs
	if err := decodeArgs(raw, &args); err != nil || args.Message == "" {
		return Outcome{Text: "Could not read the clarification message. Please try again."}
	}
	return Outcome{
		Message:       args.Message,
		NeedsFollowup: args.NeedsFollowup,
		MissingFields: args.MissingFields,
	}
}
