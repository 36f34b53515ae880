package portapi

// Booking is one truck appointment as the backend reports it.
type Booking struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	TimeSlot TimeSlot `json:"timeSlot"`
	Terminal Terminal `json:"terminal"`
	Carrier  Carrier  `json:"carrier"`
	Truck    Truck    `json:"truck"`
}

type TimeSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type Terminal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Carrier struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
}

type Truck struct {
	PlateNumber string `json:"plateNumber"`
	TruckType   string `json:"truckType"`
	DriverName  string `json:"driverName"`
}

// BookingFilter narrows a booking listing. Empty fields are omitted from
// the query string.
type BookingFilter struct {
	Status     string
	TerminalID string
	CarrierID  string
	StartDate  string
	EndDate    string
}

// DayCapacity is a terminal's operating configuration for a single date.
type DayCapacity struct {
	Date            string `json:"date"`
	DayOfWeek       string `json:"dayOfWeek"`
	IsClosed        bool   `json:"isClosed"`
	ClosedReason    string `json:"closedReason,omitempty"`
	OperatingStart  string `json:"operatingStart"`
	OperatingEnd    string `json:"operatingEnd"`
	SlotDurationMin int    `json:"slotDurationMinutes"`
	MaxTrucksPerSlot int   `json:"maxTrucksPerSlot"`
	Source          string `json:"source"`
}

// SlotSummary is one time slot's booked/available counts.
type SlotSummary struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Booked      int    `json:"booked"`
	Capacity    int    `json:"capacity"`
	Available   int    `json:"available"`
	IsAvailable bool   `json:"isAvailable"`
}

// TerminalDaySummary is a terminal's full slot breakdown for one date.
type TerminalDaySummary struct {
	Terminal Terminal      `json:"terminal"`
	Date     string        `json:"date"`
	IsClosed bool          `json:"isClosed"`
	Slots    []SlotSummary `json:"slots"`
}

// AvailabilitySlot is one open-slot candidate from the availability search.
type AvailabilitySlot struct {
	StartTime         string `json:"startTime"`
	EndTime           string `json:"endTime"`
	IsAvailable       bool   `json:"isAvailable"`
	AvailableCapacity int    `json:"availableCapacity"`
	Capacity          int    `json:"capacity"`
}

// DayAvailability groups availability slots under their date.
type DayAvailability struct {
	Date     string             `json:"date"`
	IsClosed bool               `json:"isClosed"`
	Slots    []AvailabilitySlot `json:"slots"`
}

// Overview is the port-wide analytics snapshot.
type Overview struct {
	TotalBookings     int     `json:"totalBookings"`
	ConfirmedBookings int     `json:"confirmedBookings"`
	PendingBookings   int     `json:"pendingBookings"`
	CancelledBookings int     `json:"cancelledBookings"`
	TotalTerminals    int     `json:"totalTerminals"`
	TotalCarriers     int     `json:"totalCarriers"`
	UtilizationRate   float64 `json:"utilizationRate"`
}

// TerminalUtilization is one terminal's share of used capacity over a range.
type TerminalUtilization struct {
	Name            string  `json:"name"`
	UtilizationRate float64 `json:"utilizationRate"`
	BookedCapacity  int     `json:"bookedCapacity"`
	TotalCapacity   int     `json:"totalCapacity"`
	SlotsCount      int     `json:"slotsCount"`
}
