package lifecycle

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/zombor/warrantysafe/internal/record"
)

// ExpiringSoonDays is the inclusive window in which a warranty counts as expiring soon
const ExpiringSoonDays = 30

// Status is the time-based state of a warranty. It is always computed, never stored.
type Status string

const (
	StatusActive       Status = "active"
	StatusExpiringSoon Status = "expiring-soon"
	StatusExpired      Status = "expired"
)

// Assessment is the result of classifying a record at a point in time
type Assessment struct {
	Status        Status      `json:"status"`
	DaysRemaining int         `json:"days_remaining"`
	WarrantyEnd   record.Date `json:"warranty_end"`
}

// Classify assesses rec at now
func Classify(rec record.Record, now time.Time) Assessment {
	return ClassifyEnd(rec.WarrantyEnd(), now)
}

// ClassifyEnd assesses a warranty ending at midnight UTC on end
func ClassifyEnd(end record.Date, now time.Time) Assessment {
	days := int(math.Ceil(end.Time().Sub(now).Hours() / 24))
	return Assessment{
		Status:        statusFor(days),
		DaysRemaining: days,
		WarrantyEnd:   end,
	}
}

func statusFor(days int) Status {
	switch {
	case days < 0:
		return StatusExpired
	case days <= ExpiringSoonDays:
		return StatusExpiringSoon
	default:
		return StatusActive
	}
}

// EnteredExpiringSoon reports whether a reminder is due: the warranty is expiring soon and
// nobody has been told yet
func EnteredExpiringSoon(previouslyNotified bool, a Assessment) bool {
	return !previouslyNotified && a.Status == StatusExpiringSoon
}

// Filter selects warranties by status in listings
type Filter string

const (
	FilterAll      Filter = "all"
	FilterActive   Filter = "active"
	FilterExpiring Filter = "expiring"
	FilterExpired  Filter = "expired"
)

// ParseFilter reads a filter from a query string value. Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterActive, FilterExpiring, FilterExpired:
		return f, nil
	case "expiring-soon":
		return FilterExpiring, nil
	default:
		return "", fmt.Errorf("unknown status filter %q", s)
	}
}

// Matches reports whether a warranty with status s belongs in the filtered list
func (f Filter) Matches(s Status) bool {
	switch f {
	case FilterActive:
		return s == StatusActive
	case FilterExpiring:
		return s == StatusExpiringSoon
	case FilterExpired:
		return s == StatusExpired
	default:
		return true
	}
}
