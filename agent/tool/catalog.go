package tool

import (
	"github.com/cloudwego/eino/schema"

	statex "github.com/portsense/portsense/agent/state"
)

const (
	ToolGetBookingsByUser     = "get_bookings_by_user"
	ToolGetAllBookings        = "get_all_bookings"
	ToolGetBookingsByTerminal = "get_bookings_by_terminal_id"
	ToolGetCapacityByTerminal = "get_capacity_by_terminal_id"
	ToolGetTerminalSchedule   = "get_terminal_schedule"
	ToolGetCapacitySummary    = "get_capacity_summary"
	ToolGetTerminalDetails    = "get_terminal_details"
	ToolCheckAvailability     = "check_availability"
	ToolPrepareBookingForm    = "prepare_booking_form"
	ToolCommunicateWithUser   = "communicate_with_user"
)

var (
	statusParam = &schema.ParameterInfo{
		Type: schema.String,
		Desc: "Filter by status: PENDING, CONFIRMED, CONSUMED, CANCELLED, REJECTED (UPPERCASE).",
	}
	startDateParam = &schema.ParameterInfo{
		Type: schema.String,
		Desc: "Filter from date (YYYY-MM-DD). Defaults to today if omitted.",
	}
	endDateParam = &schema.ParameterInfo{
		Type: schema.String,
		Desc: "Filter to date (YYYY-MM-DD).",
	}
	dateParam = &schema.ParameterInfo{
		Type: schema.String,
		Desc: `Date in YYYY-MM-DD format, or "TODAY" / "TOMORROW".`,
	}
)

func communicateInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolCommunicateWithUser,
		Desc: "Send a message to the user when you need clarification or want to ask a follow-up question.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"message":        {Type: schema.String, Desc: "The message text to show the user.", Required: true},
			"needs_followup": {Type: schema.Boolean, Desc: "True if you need the user to respond before continuing.", Required: true},
			"missing_fields": {
				Type:     schema.Array,
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
				Desc:     `List of field names still needed (e.g. ["date", "terminal"]).`,
			},
		}),
	}
}

func capacityByTerminalInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolGetCapacityByTerminal,
		Desc: "Fetch capacity config and slot-level breakdown for a specific terminal on a given date.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"terminal_id": {Type: schema.String, Desc: "Terminal UUID.", Required: true},
			"date":        dateParam,
		}),
	}
}

func terminalScheduleInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolGetTerminalSchedule,
		Desc: "Returns the schedule/density for a terminal on a date.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"date":        dateParam,
			"terminal_id": {Type: schema.String, Desc: `Terminal UUID, or "ALL".`},
		}),
	}
}

// BookingTools returns the booking specialist toolset for a role.
func BookingTools(role statex.Role) []*schema.ToolInfo {
	switch role {
	case statex.RoleAdmin:
		return []*schema.ToolInfo{
			{
				Name: ToolGetAllBookings,
				Desc: "ADMIN-ONLY: Fetch all bookings system-wide across all terminals and carriers. Use optional filters to narrow results.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"status":      statusParam,
					"terminal_id": {Type: schema.String, Desc: "Filter by a specific terminal UUID. Omit to get all terminals."},
					"carrier_id":  {Type: schema.String, Desc: "Filter by a specific carrier UUID. Omit to get all carriers."},
					"start_date":  startDateParam,
					"end_date":    {Type: schema.String, Desc: "Filter to date (YYYY-MM-DD). Defaults to today + 3 days."},
				}),
			},
			bookingsByTerminalInfo(),
			capacityByTerminalInfo(),
			terminalScheduleInfo(),
			communicateInfo(),
		}
	case statex.RoleOperator:
		return []*schema.ToolInfo{
			bookingsByTerminalInfo(),
			capacityByTerminalInfo(),
			terminalScheduleInfo(),
			communicateInfo(),
		}
	default:
		return []*schema.ToolInfo{
			{
				Name: ToolGetBookingsByUser,
				Desc: "Fetch the carrier's own bookings. Call with no arguments to get everything.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"status":     statusParam,
					"start_date": startDateParam,
					"end_date":   {Type: schema.String, Desc: "Filter to date (YYYY-MM-DD). Defaults to today + 7 days."},
				}),
			},
			{
				Name: ToolPrepareBookingForm,
				Desc: "Generate the booking form payload. Only call when date, time, and terminal are ALL provided.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"date":     {Type: schema.String, Desc: "Booking date in YYYY-MM-DD format.", Required: true},
					"time":     {Type: schema.String, Desc: "Booking start time in HH:mm format.", Required: true},
					"terminal": {Type: schema.String, Desc: "Terminal name exactly as it appears in the Terminals Map.", Required: true},
				}),
			},
			communicateInfo(),
		}
	}
}

func bookingsByTerminalInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolGetBookingsByTerminal,
		Desc: "Fetch bookings for a specific terminal.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"terminal_id": {Type: schema.String, Desc: "Terminal UUID.", Required: true},
			"status":      statusParam,
			"start_date":  startDateParam,
			"end_date":    {Type: schema.String, Desc: "Filter to date (YYYY-MM-DD). Defaults to today + 7 days."},
		}),
	}
}

// CapacityTools returns the capacity specialist toolset for a role.
func CapacityTools(role statex.Role) []*schema.ToolInfo {
	tools := []*schema.ToolInfo{
		{
			Name: ToolGetCapacitySummary,
			Desc: "Fetch the capacity / schedule summary for one or all terminals on a given date. Use for general overview or schedule checks.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"date":        dateParam,
				"terminal_id": {Type: schema.String, Desc: `Terminal UUID, or "ALL" for every terminal.`},
			}),
		},
		{
			Name: ToolGetTerminalDetails,
			Desc: "Fetch detailed slot-level data for a specific terminal on a given date. Prefer this when the user asks about a single terminal in depth.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"date":        dateParam,
				"terminal_id": {Type: schema.String, Desc: "Terminal UUID (required for meaningful results)."},
			}),
		},
		{
			Name: ToolCheckAvailability,
			Desc: "Check slot availability for a terminal over a date range.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"terminal_id": {Type: schema.String, Desc: "Terminal UUID.", Required: true},
				"start_date":  {Type: schema.String, Desc: "Start date in YYYY-MM-DD format.", Required: true},
				"end_date":    {Type: schema.String, Desc: "End date in YYYY-MM-DD format.", Required: true},
			}),
		},
		communicateInfo(),
	}
	if role == statex.RoleAdmin || role == statex.RoleOperator {
		tools = append(tools, capacityByTerminalInfo())
	}
	return tools
}
