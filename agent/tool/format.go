package tool

import (
	"fmt"
	"strings"

	"github.com/portsense/portsense/pkg/portapi"
)

func slotDate(raw string) string {
	// Some backends return ISO datetimes for the slot date.
	if i := strings.Index(raw, "T"); i > 0 {
		return raw[:i]
	}
	return raw
}

func formatUserBookings(bookings []portapi.Booking, maxItems int) string {
	lines := make([]string, 0, len(bookings))
	for _, b := range bookings {
		line := fmt.Sprintf("- [%s] %s %s-%s | Terminal: %s",
			b.Status, slotDate(b.TimeSlot.Date), b.TimeSlot.StartTime, b.TimeSlot.EndTime, terminalName(b.Terminal))
		if b.Carrier.CompanyName != "" {
			line += " | Carrier: " + b.Carrier.CompanyName
		}
		if b.Truck.PlateNumber != "" {
			line += " | Truck: " + b.Truck.PlateNumber
		}
		line += " | ID: " + b.ID
		lines = append(lines, line)
	}
	return truncateLines(lines, maxItems, "")
}

func formatAllBookings(bookings []portapi.Booking, maxItems int) string {
	lines := make([]string, 0, len(bookings))
	for _, b := range bookings {
		lines = append(lines, fmt.Sprintf(
			"- [%s] %s %s-%s | Terminal: %s | Carrier: %s | Truck: %s | Driver: %s | ID: %s",
			b.Status, slotDate(b.TimeSlot.Date), b.TimeSlot.StartTime, b.TimeSlot.EndTime,
			orNA(terminalName(b.Terminal)), orNA(b.Carrier.CompanyName),
			orNA(b.Truck.PlateNumber), orNA(b.Truck.DriverName), b.ID,
		))
	}
	return truncateLines(lines, maxItems, fmt.Sprintf("Total bookings: %d", len(lines)))
}

func formatTerminalBookings(bookings []portapi.Booking, maxItems int) string {
	lines := make([]string, 0, len(bookings))
	for _, b := range bookings {
		company := b.Carrier.CompanyName
		if company == "" {
			company = "Unknown carrier"
		}
		lines = append(lines, fmt.Sprintf(
			"- [%s] %s %s-%s | Carrier: %s | Truck: %s | Driver: %s | ID: %s",
			b.Status, slotDate(b.TimeSlot.Date), b.TimeSlot.StartTime, b.TimeSlot.EndTime,
			company, orNA(b.Truck.PlateNumber), orNA(b.Truck.DriverName), b.ID,
		))
	}
	return truncateLines(lines, maxItems, "")
}

func truncateLines(lines []string, maxItems int, header string) string {
	total := len(lines)
	if total > maxItems {
		lines = lines[:maxItems]
	}
	result := strings.Join(lines, "\n")
	if header != "" {
		result = header + "\n" + result
	}
	if total > maxItems {
		result += fmt.Sprintf("\n...and %d more bookings.", total-maxItems)
	}
	return result
}

func terminalName(t portapi.Terminal) string {
	if t.Name != "" {
		return t.Name
	}
	return t.Code
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatAvailabilityReport(start, end string, days []portapi.DayAvailability) string {
	output := []string{fmt.Sprintf("--- AVAILABILITY REPORT: %s to %s ---", start, end)}

	for _, day := range days {
		if day.IsClosed {
			output = append(output, fmt.Sprintf("\n%s: TERMINAL CLOSED", day.Date))
			continue
		}
		if len(day.Slots) == 0 {
			output = append(output, fmt.Sprintf("\n%s: No slots configured.", day.Date))
			continue
		}

		var totalCapacity, totalAvailable, bestAvail int
		var bestSlot string
		slotLines := make([]string, 0, len(day.Slots))

		for _, slot := range day.Slots {
			totalCapacity += slot.Capacity
			if slot.IsAvailable && slot.AvailableCapacity > 0 {
				totalAvailable += slot.AvailableCapacity
			}

			if !slot.IsAvailable || slot.AvailableCapacity <= 0 {
				slotLines = append(slotLines, fmt.Sprintf("  %s-%s | FULL", slot.StartTime, slot.EndTime))
				continue
			}

			pct := 0.0
			if slot.Capacity > 0 {
				pct = float64(slot.AvailableCapacity) / float64(slot.Capacity) * 100
			}
			tag := "OK"
			if pct < 30 {
				tag = "LOW"
			}
			slotLines = append(slotLines, fmt.Sprintf("  %s-%s | %d/%d slots (%s)",
				slot.StartTime, slot.EndTime, slot.AvailableCapacity, slot.Capacity, tag))

			if slot.AvailableCapacity > bestAvail {
				bestAvail = slot.AvailableCapacity
				bestSlot = slot.StartTime + "-" + slot.EndTime
			}
		}

		saturation := 0.0
		if totalCapacity > 0 {
			saturation = float64(totalCapacity-totalAvailable) / float64(totalCapacity) * 100
		}
		output = append(output, fmt.Sprintf("\n%s | %.0f%% booked | %d/%d free",
			day.Date, saturation, totalAvailable, totalCapacity))
		output = append(output, slotLines...)
		if bestSlot != "" {
			output = append(output, fmt.Sprintf("  Best slot: %s (%d available)", bestSlot, bestAvail))
		}
	}

	return strings.Join(output, "\n")
}

func formatScheduleReport(date string, summaries []portapi.TerminalDaySummary) string {
	if len(summaries) == 0 {
		return fmt.Sprintf("--- SCHEDULE REPORT FOR %s ---\nNo data available.", date)
	}

	output := []string{fmt.Sprintf("--- SCHEDULE REPORT FOR %s ---", date)}
	for _, summary := range summaries {
		code := summary.Terminal.Code
		if code == "" {
			code = summary.Terminal.Name
		}
		if code == "" {
			code = "UNKNOWN"
		}
		output = append(output, fmt.Sprintf("\nTerminal %s:", code))

		if len(summary.Slots) == 0 {
			output = append(output, "  No slots available.")
			continue
		}
		for _, slot := range summary.Slots {
			output = append(output, fmt.Sprintf("  %s - %s | booked: %d | available: %d | max: %d | status: %s",
				slot.StartTime, slot.EndTime, slot.Booked, slot.Available, slot.Capacity, slotStatus(slot)))
		}
	}
	return strings.Join(output, "\n")
}

func slotStatus(slot portapi.SlotSummary) string {
	if !slot.IsAvailable || slot.Available <= 0 {
		return "FULL"
	}
	return "AVAILABLE"
}

func formatCapacityReport(date string, capacity *portapi.DayCapacity, summaries []portapi.TerminalDaySummary) string {
	output := []string{
		fmt.Sprintf("--- CAPACITY FOR %s ---", date),
		"Source: " + orNA(capacity.Source),
		fmt.Sprintf("Operating hours: %s - %s", orNA(capacity.OperatingStart), orNA(capacity.OperatingEnd)),
		fmt.Sprintf("Slot duration: %d min", capacity.SlotDurationMin),
		fmt.Sprintf("Max trucks per slot: %d", capacity.MaxTrucksPerSlot),
	}

	if len(summaries) > 0 && len(summaries[0].Slots) > 0 {
		output = append(output, "\nSlot breakdown:")
		for _, slot := range summaries[0].Slots {
			output = append(output, fmt.Sprintf("  %s - %s | booked: %d | available: %d | max: %d | %s",
				slot.StartTime, slot.EndTime, slot.Booked, slot.Available, slot.Capacity, slotStatus(slot)))
		}
	}
	return strings.Join(output, "\n")
}
