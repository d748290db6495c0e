package extraction

import (
	"path"
	"strings"
	"time"

	"github.com/zombor/warrantysafe/internal/record"
)

// Sentinels used when a field cannot be recovered
const (
	UnknownProduct = "Unknown Product"
	UnknownBrand   = "Unknown Brand"
	GenericBrand   = "Generic Brand"
)

// SourceFallback marks a field filled by Normalize
const SourceFallback = "fallback"

// Normalize completes a partial record. It never fails: missing fields are filled from the
// file name, the current date or the policy, and listed in Record.Fallbacks.
func Normalize(p Partial, fileName string, now time.Time, policy record.Policy) record.Record {
	if policy.WarrantyPeriodMonths <= 0 {
		policy.WarrantyPeriodMonths = record.DefaultPolicy.WarrantyPeriodMonths
	}
	if policy.Category == "" {
		policy.Category = record.DefaultPolicy.Category
	}

	rec := record.Record{
		Category:             policy.Category,
		WarrantyPeriodMonths: policy.WarrantyPeriodMonths,
		Sources:              make(map[record.Field]string, 4),
	}
	for f, src := range p.Sources {
		rec.Sources[f] = src
	}
	fallback := func(f record.Field) {
		rec.Fallbacks = append(rec.Fallbacks, f)
		rec.Sources[f] = SourceFallback
	}

	if p.ProductName != nil {
		rec.ProductName = *p.ProductName
	} else {
		rec.ProductName = ProductFromFileName(fileName)
		fallback(record.FieldProductName)
	}

	switch {
	case p.Brand != nil:
		rec.Brand = *p.Brand
	case p.ProductName == nil:
		rec.Brand = GenericBrand
		fallback(record.FieldBrand)
	default:
		rec.Brand = UnknownBrand
		fallback(record.FieldBrand)
	}

	if p.PurchaseDate != nil && !p.PurchaseDate.IsZero() {
		rec.PurchaseDate = *p.PurchaseDate
	} else {
		rec.PurchaseDate = record.DateOf(now)
		fallback(record.FieldPurchaseDate)
	}

	if p.Price != nil {
		rec.Price = *p.Price
	} else {
		rec.Price = policy.PricePlaceholder
		fallback(record.FieldPrice)
	}

	return rec
}

// ProductFromFileName turns "receipt_store.pdf" into "receipt store"
func ProductFromFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return UnknownProduct
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	if s := strings.Join(strings.Fields(base), " "); s != "" {
		return s
	}
	return UnknownProduct
}
