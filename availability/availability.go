package availability

import (
	"strconv"
	"strings"
	"time"

	"freshdeal/models"
)

const (
	// OverlayClosed marks a restaurant outside its working days or hours.
	OverlayClosed = "Currently Closed"
	// OverlayOutOfStock marks an open restaurant with nothing left to sell.
	OverlayOutOfStock = "Out of Stock"
)

// Status is the availability of a restaurant at a given instant.
type Status struct {
	IsOpen         bool
	HasStock       bool
	IsDisabled     bool
	OverlayMessage string
}

// IsRestaurantOpen reports whether a restaurant with the given working days and daily
// window is open at now. Day names are English full names ("Monday"). The window is
// inclusive on both ends and is compared literally, so a window ending before it starts
// never matches. When either bound is missing or unparseable the day check alone decides.
func IsRestaurantOpen(workingDays []string, startTime, endTime string, now time.Time) bool {
	if !containsDay(workingDays, now.Weekday().String()) {
		return false
	}

	start, okStart := parseClock(startTime)
	end, okEnd := parseClock(endTime)
	if !okStart || !okEnd {
		return true
	}

	current := now.Hour()*60 + now.Minute()
	return start <= current && current <= end
}

// Evaluate computes the display status of r at now. Open and in stock are independent;
// the restaurant is disabled unless both hold.
func Evaluate(r models.Restaurant, now time.Time) Status {
	s := Status{
		IsOpen:   IsRestaurantOpen(r.WorkingDays, r.WorkingHoursStart, r.WorkingHoursEnd, now),
		HasStock: r.Listings > 0,
	}
	s.IsDisabled = !s.IsOpen || !s.HasStock

	switch {
	case !s.IsOpen:
		s.OverlayMessage = OverlayClosed
	case !s.HasStock:
		s.OverlayMessage = OverlayOutOfStock
	}
	return s
}

func containsDay(days []string, day string) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// parseClock converts "HH:MM" (seconds, if present, are ignored) to minutes since midnight.
func parseClock(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	parts := strings.Split(v, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, false
	}
	// "24:00" closes at the end of the day.
	return h*60 + m, true
}
