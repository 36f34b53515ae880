package portapi

import (
	"context"
	"fmt"
	"net/url"
)

// Service is the read surface the dialogue tools consume. *Client implements
// it; tests substitute fakes.
type Service interface {
	Bookings(ctx context.Context, f BookingFilter) ([]Booking, error)
	TerminalsMap(ctx context.Context) (map[string]string, error)
	CapacityForDate(ctx context.Context, terminalID, date string) (*DayCapacity, error)
	DaySummary(ctx context.Context, terminalID, date string) ([]TerminalDaySummary, error)
	Availability(ctx context.Context, terminalID, startDate, endDate string) ([]DayAvailability, error)
	Overview(ctx context.Context) (*Overview, error)
	Utilization(ctx context.Context, startDate, endDate string) ([]TerminalUtilization, error)
	ResolveTerminalID(ctx context.Context, userID string) (string, error)
	ResolveCarrierID(ctx context.Context, userID string) (string, error)
}

var _ Service = (*Client)(nil)

// Bookings lists appointments matching the filter.
func (c *Client) Bookings(ctx context.Context, f BookingFilter) ([]Booking, error) {
	q := url.Values{}
	if f.StartDate != "" {
		q.Set("startDate", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("endDate", f.EndDate)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.TerminalID != "" {
		q.Set("terminalId", f.TerminalID)
	}
	if f.CarrierID != "" {
		q.Set("carrierId", f.CarrierID)
	}

	var out struct {
		Bookings []Booking `json:"bookings"`
	}
	if err := c.get(ctx, "/api/bookings", q, &out); err != nil {
		return nil, err
	}
	return out.Bookings, nil
}

// TerminalsMap returns the terminal name to id mapping used to ground
// model output in real identifiers.
func (c *Client) TerminalsMap(ctx context.Context) (map[string]string, error) {
	var out struct {
		Terminals []Terminal `json:"terminals"`
	}
	if err := c.get(ctx, "/api/terminals", nil, &out); err != nil {
		return nil, err
	}
	m := make(map[string]string, len(out.Terminals))
	for _, t := range out.Terminals {
		m[t.Name] = t.ID
	}
	return m, nil
}

// CapacityForDate returns one terminal's operating configuration for a date.
func (c *Client) CapacityForDate(ctx context.Context, terminalID, date string) (*DayCapacity, error) {
	q := url.Values{}
	q.Set("date", date)

	var out DayCapacity
	path := fmt.Sprintf("/api/terminals/%s/capacity-for-date", url.PathEscape(terminalID))
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DaySummary returns per-slot booked/available counts for a date. Passing
// terminalID "all" covers every terminal.
func (c *Client) DaySummary(ctx context.Context, terminalID, date string) ([]TerminalDaySummary, error) {
	if terminalID == "" {
		terminalID = "all"
	}
	q := url.Values{}
	q.Set("date", date)

	var out struct {
		Summaries []TerminalDaySummary `json:"summaries"`
	}
	path := fmt.Sprintf("/api/analytics/terminals/%s/day-summary", url.PathEscape(terminalID))
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return out.Summaries, nil
}

// Availability searches open slots at a terminal over a date range.
func (c *Client) Availability(ctx context.Context, terminalID, startDate, endDate string) ([]DayAvailability, error) {
	q := url.Values{}
	q.Set("terminalId", terminalID)
	q.Set("startDate", startDate)
	q.Set("endDate", endDate)

	var out struct {
		Availability []DayAvailability `json:"availability"`
	}
	if err := c.get(ctx, "/api/slots/available", q, &out); err != nil {
		return nil, err
	}
	return out.Availability, nil
}

// Overview returns the port-wide analytics snapshot.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var out struct {
		Overview Overview `json:"overview"`
	}
	if err := c.get(ctx, "/api/analytics/overview", nil, &out); err != nil {
		return nil, err
	}
	return &out.Overview, nil
}

// Utilization returns per-terminal capacity usage over a date range.
func (c *Client) Utilization(ctx context.Context, startDate, endDate string) ([]TerminalUtilization, error) {
	q := url.Values{}
	q.Set("startDate", startDate)
	q.Set("endDate", endDate)

	var out struct {
		Utilization []TerminalUtilization `json:"utilization"`
	}
	if err := c.get(ctx, "/api/analytics/capacity/utilization", q, &out); err != nil {
		return nil, err
	}
	return out.Utilization, nil
}

// ResolveTerminalID looks up the terminal an operator account is bound to.
func (c *Client) ResolveTerminalID(ctx context.Context, userID string) (string, error) {
	var out struct {
		User struct {
			OperatorTerminal struct {
				Terminal struct {
					ID string `json:"id"`
				} `json:"terminal"`
			} `json:"operatorTerminal"`
		} `json:"user"`
	}
	path := fmt.Sprintf("/api/users/%s", url.PathEscape(userID))
	if err := c.get(ctx, path, nil, &out); err != nil {
		return "", err
	}
	if out.User.OperatorTerminal.Terminal.ID == "" {
		return "", fmt.Errorf("%w: user %s has no terminal assignment", ErrRequest, userID)
	}
	return out.User.OperatorTerminal.Terminal.ID, nil
}

// ResolveCarrierID looks up the carrier a driver account belongs to.
func (c *Client) ResolveCarrierID(ctx context.Context, userID string) (string, error) {
	var out struct {
		User struct {
			Carrier struct {
				ID string `json:"id"`
			} `json:"carrier"`
		} `json:"user"`
	}
	path := fmt.Sprintf("/api/users/%s", url.PathEscape(userID))
	if err := c.get(ctx, path, nil, &out); err != nil {
		return "", err
	}
	if out.User.Carrier.ID == "" {
		return "", fmt.Errorf("%w: user %s has no carrier assignment", ErrRequest, userID)
	}
	return out.User.Carrier.ID, nil
}
