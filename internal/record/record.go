package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field names a warranty record field that can come from a document or from a fallback
type Field string

const (
	FieldProductName  Field = "product_name"
	FieldBrand        Field = "brand"
	FieldPurchaseDate Field = "purchase_date"
	FieldPrice        Field = "price"
)

// Policy holds the fixed values the normalizer applies
type Policy struct {
	WarrantyPeriodMonths int
	Category             string
	PricePlaceholder     Money
}

// DefaultPolicy is a 12 month warranty in the Electronics category with a $0.00 price placeholder
var DefaultPolicy = Policy{
	WarrantyPeriodMonths: 12,
	Category:             "Electronics",
	PricePlaceholder:     0,
}

// Record is a complete warranty record.
//
// The warranty end date and the support URL are derived; they are methods rather than
// fields so they always agree with PurchaseDate, WarrantyPeriodMonths and Brand.
type Record struct {
	ProductName          string           `json:"product_name"`
	Brand                string           `json:"brand"`
	PurchaseDate         Date             `json:"purchase_date"`
	Price                Money            `json:"price"`
	Category             string           `json:"category"`
	WarrantyPeriodMonths int              `json:"warranty_period_months"`
	Fallbacks            []Field          `json:"fallbacks,omitempty"`
	Sources              map[Field]string `json:"sources,omitempty"`
}

// WarrantyEnd returns PurchaseDate plus WarrantyPeriodMonths
func (r Record) WarrantyEnd() Date {
	return r.PurchaseDate.AddMonths(r.WarrantyPeriodMonths)
}

// SupportURL returns the brand support page, built from the lower-cased brand with spaces removed
func (r Record) SupportURL() string {
	slug := strings.ToLower(strings.Join(strings.Fields(r.Brand), ""))
	return fmt.Sprintf("https://support.%s.com", slug)
}

// IsFallback reports whether f was filled by the fallback policy
func (r Record) IsFallback(f Field) bool {
	for _, fb := range r.Fallbacks {
		if fb == f {
			return true
		}
	}
	return false
}

// Date is a calendar date stored as midnight UTC
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a Date, normalising out-of-range values the way time.Date does
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the UTC calendar date of t
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// AddMonths adds n calendar months
func (d Date) AddMonths(n int) Date {
	return Date{t: d.t.AddDate(0, n, 0)}
}

// Time returns the date as midnight UTC
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether d is unset
func (d Date) IsZero() bool { return d.t.IsZero() }

// Equal reports whether both dates are the same day
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

func (d Date) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Money is an amount in cents
type Money int64

// ParseMoney parses "199.99", "$1,299.00" or "12.5" into cents
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if neg {
		return Money(-(w*100 + f)), nil
	}
	return Money(w*100 + f), nil
}

// Cents returns the amount in cents
func (m Money) Cents() int64 { return int64(m) }

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
