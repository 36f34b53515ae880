package prompt

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	statex "github.com/portsense/portsense/agent/state"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/booking_admin.txt
	bookingAdminRaw string

	//go:embed template/booking_operator.txt
	bookingOperatorRaw string

	//go:embed template/booking_carrier.txt
	bookingCarrierRaw string

	//go:embed template/capacity.txt
	capacityRaw string

	//go:embed template/guardian_format.txt
	guardianFormatRaw string

	//go:embed template/guardian_form.txt
	guardianFormRaw string

	//go:embed template/response_format.txt
	responseFormatRaw string

	//go:embed template/suggestions.txt
	suggestionsRaw string
)

// Classifier builds the intent+language routing prompt.
func Classifier(history, activeRoute, previousIntent string) string {
	if activeRoute == "" {
		activeRoute = "NONE"
	}
	if previousIntent == "" {
		previousIntent = "NONE"
	}
	return strings.NewReplacer(
		"{{ACTIVE_ROUTE}}", activeRoute,
		"{{PREVIOUS_INTENT}}", previousIntent,
		"{{HISTORY}}", history,
	).Replace(strings.TrimSpace(classifierRaw))
}

// BookingContext carries the per-turn data injected into specialist prompts.
type BookingContext struct {
	Terminals        map[string]string
	OperatorTerminal string
	TodaysData       string
}

// TerminalsSection renders the name to UUID map the model grounds tool
// arguments on. Sorted so prompts are stable across turns.
func TerminalsSection(terminals map[string]string) string {
	if len(terminals) == 0 {
		return ""
	}
	names := make([]string, 0, len(terminals))
	for name := range terminals {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Terminal Name -> Terminal UUID (use these UUIDs when calling tools):\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %q -> %s\n", name, terminals[name])
	}
	return strings.TrimRight(b.String(), "\n")
}

func dateTokens(now time.Time) *strings.Replacer {
	return strings.NewReplacer(
		"{{NOW}}", now.Format("2006-01-02 15:04:05"),
		"{{TODAY}}", now.Format("2006-01-02"),
		"{{TOMORROW}}", now.AddDate(0, 0, 1).Format("2006-01-02"),
	)
}

// Booking builds the booking specialist prompt for the given role.
func Booking(role statex.Role, now time.Time, bc BookingContext) string {
	var raw string
	switch role {
	case statex.RoleAdmin:
		raw = bookingAdminRaw
	case statex.RoleOperator:
		raw = bookingOperatorRaw
	default:
		raw = bookingCarrierRaw
	}

	out := dateTokens(now).Replace(strings.TrimSpace(raw))
	return strings.NewReplacer(
		"{{TERMINALS_SECTION}}", TerminalsSection(bc.Terminals),
		"{{OPERATOR_TERMINAL}}", bc.OperatorTerminal,
		"{{TODAYS_DATA}}", bc.TodaysData,
	).Replace(out)
}

// Capacity builds the capacity specialist prompt for the given role.
func Capacity(role statex.Role, now time.Time, bc BookingContext) string {
	var roleSection, rolePath string
	switch role {
	case statex.RoleOperator:
		roleSection = "== OPERATOR CONTEXT ==\n" +
			"You are assisting a Terminal Operator. Their assigned terminal:\n" +
			bc.OperatorTerminal + "\n\n" +
			"When the operator asks about \"my terminal\", \"my capacity\", \"how's my terminal doing?\", etc.,\n" +
			"use their terminal ID from above. You can use `get_capacity_by_terminal_id` for their specific terminal.\n" +
			"For general overview across all terminals, still use `get_capacity_summary`."
		rolePath = "\nOPERATOR ASKS ABOUT THEIR OWN TERMINAL (\"my terminal capacity\", \"how busy am I?\", \"my schedule\"):\n" +
			"   -> Call `get_capacity_by_terminal_id` with the operator's terminal_id and date.\n" +
			"   -> STOP. Do not call any other tool.\n"
	case statex.RoleAdmin:
		roleSection = "== ADMIN CONTEXT ==\n" +
			"You are assisting a System Administrator with FULL ACCESS to all terminals.\n" +
			"The admin can query capacity, details, and availability for ANY terminal.\n" +
			"When the admin asks about a specific terminal, use the terminal UUID from the Terminals Map.\n" +
			"When the admin asks for a general overview, use `get_capacity_summary` with terminal_id=\"ALL\".\n" +
			"You can also use `get_capacity_by_terminal_id` for detailed slot-level data on any terminal."
		rolePath = "\nADMIN ASKS ABOUT A SPECIFIC TERMINAL'S CAPACITY (\"capacity for terminal X\", \"how busy is terminal A?\"):\n" +
			"   -> Call `get_capacity_by_terminal_id` with the terminal_id from the Terminals Map and the date.\n" +
			"   -> STOP. Do not call any other tool.\n"
	}

	out := dateTokens(now).Replace(strings.TrimSpace(capacityRaw))
	return strings.NewReplacer(
		"{{TERMINALS_SECTION}}", TerminalsSection(bc.Terminals),
		"{{ROLE_SECTION}}", roleSection,
		"{{ROLE_PATH}}", rolePath,
	).Replace(out)
}

func languageInstruction(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", "en", "english":
		return "Respond in English."
	}
	return fmt.Sprintf(`The user's language is: %[1]s.
You MUST translate the ENTIRE response into %[1]s.
Do NOT respond in English. The user expects a response in their native language.
Translate all text including greetings, explanations, and table headers.
Keep technical terms (e.g., terminal names, booking IDs, status codes) as-is.`, language)
}

// GuardianFormat builds the response-polishing prompt.
func GuardianFormat(draft, language string, role statex.Role, intent statex.Intent) string {
	return strings.NewReplacer(
		"{{LANG_INSTRUCTION}}", languageInstruction(language),
		"{{FORMAT_SPEC}}", strings.TrimSpace(responseFormatRaw),
		"{{ROLE}}", string(role),
		"{{INTENT}}", string(intent),
		"{{DRAFT}}", draft,
	).Replace(strings.TrimSpace(guardianFormatRaw))
}

// GuardianForm builds the polishing prompt used when a booking form payload
// accompanies the response.
func GuardianForm(draft, language string, role statex.Role, intent statex.Intent, terminals map[string]string, uiPayload string) string {
	return strings.NewReplacer(
		"{{TERMINALS_MAP}}", TerminalsSection(terminals),
		"{{UI_PAYLOAD}}", uiPayload,
		"{{LANG_INSTRUCTION}}", languageInstruction(language),
		"{{FORMAT_SPEC}}", strings.TrimSpace(responseFormatRaw),
		"{{ROLE}}", string(role),
		"{{INTENT}}", string(intent),
		"{{DRAFT}}", draft,
	).Replace(strings.TrimSpace(guardianFormRaw))
}

// Suggestions builds the weekly-advisor prompt around a data snapshot.
func Suggestions(snapshot string) string {
	return strings.ReplaceAll(strings.TrimSpace(suggestionsRaw), "{{DATA}}", snapshot)
}

// Help returns the capability summary for a role.
func Help(role statex.Role) string {
	lines := []string{
		"I'm the **Port Logistics Assistant**. Here's what I can help you with:",
		"",
	}
	switch role {
	case statex.RoleAdmin:
		lines = append(lines,
			"- **Bookings** — View all bookings across every terminal, search by carrier, status, or terminal, and manage booking operations.",
			"- **Capacity** — Check real-time capacity, slot availability, and utilization for any terminal on any date.",
			"- **Terminals** — Get an overview of all terminals in the system.",
		)
	case statex.RoleOperator:
		lines = append(lines,
			"- **Bookings** — View and manage bookings for your terminal.",
			"- **Capacity** — Check slot availability and capacity status for your terminal on any date.",
		)
	default:
		lines = append(lines,
			"- **Bookings** — View your bookings, check booking status, or start a new booking.",
			"- **Capacity** — Check available time slots and terminal capacity for any date.",
		)
	}
	lines = append(lines,
		"",
		"Just ask me a question and I'll take care of the rest!",
	)
	return strings.Join(lines, "\n")
}

// OutOfScope is the canned reply for topics outside port logistics.
func OutOfScope() string {
	return "I'm sorry, I can only help with port logistics — bookings, terminal capacity, and scheduling. I can't assist with that topic. Is there anything else I can help you with?"
}

// Greeting is the canned reply for plain social messages.
func Greeting() string {
	return "Hello! I'm the Port Logistics Assistant. I can help you with bookings, terminal capacity, and scheduling. What would you like to know?"
}

// Fallback covers turns that produced no draft at all.
func Fallback() string {
	return "I'm sorry, I couldn't process your request. Could you rephrase that?"
}
