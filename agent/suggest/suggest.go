// Package suggest produces weekly capacity recommendations for port
// administrators. It is a standalone service behind its own endpoint, not a
// stop on the conversational graph, so it talks to the provider through the
// raw completions SDK instead of the turn gateway.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	"github.com/portsense/portsense/agent/prompt"
	"github.com/portsense/portsense/pkg/portapi"
)

var priorityIcons = map[string]string{
	"high":   "🔴",
	"medium": "🟡",
	"low":    "🟢",
}

var priorityOrder = map[string]int{
	"high":   0,
	"medium": 1,
	"low":    2,
}

// Item is one actionable recommendation.
type Item struct {
	Priority   string `json:"priority"`
	Icon       string `json:"icon"`
	Category   string `json:"category"`
	Terminal   string `json:"terminal"`
	Suggestion string `json:"suggestion"`
}

// Report is a full generation run.
type Report struct {
	Suggestions []Item `json:"suggestions"`
	GeneratedAt string `json:"generated_at"`
}

type completeFunc func(ctx context.Context, promptText string) (string, error)

// Service fetches a week of capacity data and asks the model for suggestions.
type Service struct {
	api      portapi.Service
	complete completeFunc
	now      func() time.Time
}

// New builds a Service on the raw OpenRouter SDK client. The small model tier
// is enough for this workload.
func New(client *openaisdk.Client, model string, api portapi.Service) (*Service, error) {
	if client == nil {
		return nil, errors.New("sdk client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("model name is required")
	}
	if api == nil {
		return nil, errors.New("port api service is required")
	}

	complete := func(ctx context.Context, promptText string) (string, error) {
		resp, err := client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
			Model: openaisdk.ChatModel(model),
			Messages: []openaisdk.ChatCompletionMessageParamUnion{
				openaisdk.UserMessage(promptText),
			},
			Temperature: openaisdk.Float(0.3),
		})
		if err != nil {
			return "", fmt.Errorf("suggestions completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("suggestions completion: empty response")
		}
		return resp.Choices[0].Message.Content, nil
	}

	return &Service{api: api, complete: complete, now: time.Now}, nil
}

// NewWithCompleter wires a custom completion function. Test hook.
func NewWithCompleter(complete completeFunc, api portapi.Service) *Service {
	return &Service{api: api, complete: complete, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Generate builds the weekly snapshot, runs the model and returns normalized,
// priority-sorted suggestions.
func (s *Service) Generate(ctx context.Context) (*Report, error) {
	snapshot := s.buildSnapshot(ctx)

	raw, err := s.complete(ctx, prompt.Suggestions(snapshot))
	if err != nil {
		return nil, err
	}

	items := parseItems(raw)
	for i := range items {
		priority := strings.ToLower(strings.TrimSpace(items[i].Priority))
		icon, ok := priorityIcons[priority]
		if !ok {
			priority, icon = "medium", priorityIcons["medium"]
		}
		items[i].Priority = priority
		items[i].Icon = icon
		if items[i].Category == "" {
			items[i].Category = "General"
		}
		if items[i].Terminal == "" {
			items[i].Terminal = "System-wide"
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return priorityOrder[items[i].Priority] < priorityOrder[items[j].Priority]
	})

	return &Report{
		Suggestions: items,
		GeneratedAt: s.now().Format(time.RFC3339),
	}, nil
}

// buildSnapshot gathers overview, weekly utilization and per-day slot
// breakdowns into one text block. Fetch failures degrade to "no data" lines
// so one slow backend call never blocks the whole report.
func (s *Service) buildSnapshot(ctx context.Context) string {
	today := s.now()
	todayStr := today.Format("2006-01-02")
	monday := weekStart(today)
	start := monday.Format("2006-01-02")
	end := monday.AddDate(0, 0, 6).Format("2006-01-02")

	var b strings.Builder
	fmt.Fprintf(&b, "=== SYSTEM OVERVIEW (as of %s) ===\n", todayStr)
	if overview, err := s.api.Overview(ctx); err != nil {
		log.Warn().Err(err).Msg("overview fetch failed")
		b.WriteString("  No overview data available.\n")
	} else {
		fmt.Fprintf(&b, "  totalBookings: %d\n", overview.TotalBookings)
		fmt.Fprintf(&b, "  confirmedBookings: %d\n", overview.ConfirmedBookings)
		fmt.Fprintf(&b, "  pendingBookings: %d\n", overview.PendingBookings)
		fmt.Fprintf(&b, "  cancelledBookings: %d\n", overview.CancelledBookings)
		fmt.Fprintf(&b, "  totalTerminals: %d\n", overview.TotalTerminals)
		fmt.Fprintf(&b, "  totalCarriers: %d\n", overview.TotalCarriers)
		fmt.Fprintf(&b, "  utilizationRate: %.1f\n", overview.UtilizationRate)
	}

	fmt.Fprintf(&b, "\n=== CAPACITY UTILIZATION THIS WEEK (%s -> %s) ===\n", start, end)
	if utilization, err := s.api.Utilization(ctx, start, end); err != nil || len(utilization) == 0 {
		if err != nil {
			log.Warn().Err(err).Msg("utilization fetch failed")
		}
		b.WriteString("  No utilization data available.\n")
	} else {
		for _, item := range utilization {
			fmt.Fprintf(&b, "  %s: %.1f%% utilization | booked %d/%d | %d slots\n",
				item.Name, item.UtilizationRate, item.BookedCapacity, item.TotalCapacity, item.SlotsCount)
		}
	}

	fmt.Fprintf(&b, "\n=== DAILY SLOT BREAKDOWN (week of %s -> %s) ===\n", start, end)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		dayStr := day.Format("2006-01-02")
		dayLabel := day.Format("Monday")
		if dayStr == todayStr {
			dayLabel = "TODAY"
		}

		fmt.Fprintf(&b, "\n  [%s - %s]\n", dayStr, dayLabel)
		summaries, err := s.api.DaySummary(ctx, "", dayStr)
		if err != nil {
			log.Warn().Err(err).Str("date", dayStr).Msg("day summary fetch failed")
		}
		if len(summaries) == 0 {
			b.WriteString("    No data available.\n")
			continue
		}
		for _, summary := range summaries {
			b.WriteString("    " + summaryLine(summary) + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func summaryLine(summary portapi.TerminalDaySummary) string {
	code := summary.Terminal.Code
	if code == "" {
		code = summary.Terminal.Name
	}
	if code == "" {
		code = "?"
	}

	var fullCount, totalBooked, totalCapacity int
	for _, slot := range summary.Slots {
		if !slot.IsAvailable || slot.Available <= 0 {
			fullCount++
		}
		totalBooked += slot.Booked
		totalCapacity += slot.Capacity
	}
	var dayRate float64
	if totalCapacity > 0 {
		dayRate = float64(totalBooked) / float64(totalCapacity) * 100
	}

	return fmt.Sprintf("Terminal %s: %d/%d slots FULL | booked %d/%d (%.1f%%)",
		code, fullCount, len(summary.Slots), totalBooked, totalCapacity, dayRate)
}

// weekStart returns the Monday of the week containing t.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}

// parseItems extracts the JSON array from the model output, repairing
// malformed JSON and finally falling back to the raw text as one suggestion.
func parseItems(raw string) []Item {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var items []Item
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr != nil || json.Unmarshal([]byte(repaired), &items) != nil {
			log.Warn().Str("raw", raw).Msg("suggestions output unparseable, wrapping raw text")
			return []Item{{
				Priority:   "medium",
				Category:   "General",
				Terminal:   "System-wide",
				Suggestion: strings.TrimSpace(raw),
			}}
		}
	}
	return items
}
