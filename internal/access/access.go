package access

import (
	"github.com/zombor/warrantysafe/internal/lifecycle"
	"github.com/zombor/warrantysafe/internal/record"
)

// Entitlements describes the caller asking for a record
type Entitlements struct {
	Authenticated bool
	Paid          bool
	// Revealed is set when the caller explicitly asked for the concealed fields
	Revealed bool
}

// Denial tells the caller why fields were withheld
type Denial string

const (
	DenialNone         Denial = ""
	DenialAuthenticate Denial = "authenticate"
	DenialUpgrade      Denial = "upgrade"
)

// View is the part of a record a caller may see. Concealed fields are nil or empty and
// omitted from JSON.
type View struct {
	ProductName  string      `json:"product_name"`
	Brand        string      `json:"brand"`
	PurchaseDate record.Date `json:"purchase_date"`

	Full                 bool             `json:"full"`
	WarrantyEnd          *record.Date     `json:"warranty_end,omitempty"`
	Price                *record.Money    `json:"price,omitempty"`
	Category             string           `json:"category,omitempty"`
	WarrantyPeriodMonths int              `json:"warranty_period_months,omitempty"`
	SupportURL           string           `json:"support_url,omitempty"`
	Status               lifecycle.Status `json:"status,omitempty"`
	DaysRemaining        *int             `json:"days_remaining,omitempty"`

	// Fallbacks lists the visible fields that were filled by a fallback rather than read
	// from the document
	Fallbacks []record.Field `json:"fallbacks,omitempty"`

	Denial Denial `json:"denial,omitempty"`
}

var minimalFields = map[record.Field]bool{
	record.FieldProductName:  true,
	record.FieldBrand:        true,
	record.FieldPurchaseDate: true,
}

// Project filters rec for a caller. Unauthenticated callers and unpaid callers only ever see
// product, brand and purchase date.
func Project(rec record.Record, a lifecycle.Assessment, ent Entitlements) View {
	v := View{
		ProductName:  rec.ProductName,
		Brand:        rec.Brand,
		PurchaseDate: rec.PurchaseDate,
	}

	switch {
	case !ent.Authenticated:
		v.Denial = DenialAuthenticate
	case !ent.Paid:
		if ent.Revealed {
			v.Denial = DenialUpgrade
		}
	default:
		end := rec.WarrantyEnd()
		price := rec.Price
		days := a.DaysRemaining
		v.Full = true
		v.WarrantyEnd = &end
		v.Price = &price
		v.Category = rec.Category
		v.WarrantyPeriodMonths = rec.WarrantyPeriodMonths
		v.SupportURL = rec.SupportURL()
		v.Status = a.Status
		v.DaysRemaining = &days
	}

	for _, f := range rec.Fallbacks {
		if v.Full || minimalFields[f] {
			v.Fallbacks = append(v.Fallbacks, f)
		}
	}
	return v
}
