package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/warrantysafe/internal/record"
)

// Partial holds whatever fields could be found in a document. Nil means not found.
type Partial struct {
	ProductName  *string
	Brand        *string
	Price        *record.Money
	PurchaseDate *record.Date
	Sources      map[record.Field]string
}

// Strategy names recorded in Partial.Sources
const (
	SourceLabel            = "label"
	SourceCapitalizedWords = "capitalized-words"
	SourceAllowList        = "allow-list"
	SourceCurrency         = "currency"
	SourceDate             = "date"
)

// DefaultBrands is the allow-list used when no other list is configured
var DefaultBrands = []string{
	"Apple", "Samsung", "Sony", "LG", "Dell", "HP", "Lenovo", "Asus", "Acer", "Microsoft",
	"Bose", "Canon", "Nikon", "Panasonic", "Philips", "Dyson", "Whirlpool", "Bosch",
	"KitchenAid", "Breville", "Nintendo", "Google", "Garmin", "GoPro", "Logitech", "Xiaomi",
}

// Extractor finds warranty fields with ordered strategy lists
type Extractor struct {
	product []Strategy[string]
	brand   []Strategy[string]
	price   []Strategy[record.Money]
	date    []Strategy[record.Date]
}

// New creates an Extractor whose brand allow-list is brands
func New(brands []string) *Extractor {
	return &Extractor{
		product: []Strategy[string]{
			{Name: SourceLabel, Find: productLabel},
			{Name: SourceCapitalizedWords, Find: capitalizedWords},
		},
		brand: []Strategy[string]{
			{Name: SourceLabel, Find: brandLabel},
			{Name: SourceAllowList, Find: allowList(brands)},
		},
		price: []Strategy[record.Money]{
			{Name: SourceCurrency, Find: currency},
		},
		date: []Strategy[record.Date]{
			{Name: SourceDate, Find: dateToken},
		},
	}
}

var defaultExtractor = New(DefaultBrands)

// Extract runs the default Extractor
func Extract(text string) Partial {
	return defaultExtractor.Extract(text)
}

// Extract returns every field it can find. Within a field the first matching strategy wins.
func (e *Extractor) Extract(text string) Partial {
	p := Partial{Sources: map[record.Field]string{}}
	if v, src, ok := firstMatch(text, e.product); ok {
		p.ProductName = &v
		p.Sources[record.FieldProductName] = src
	}
	if v, src, ok := firstMatch(text, e.brand); ok {
		p.Brand = &v
		p.Sources[record.FieldBrand] = src
	}
	if v, src, ok := firstMatch(text, e.price); ok {
		p.Price = &v
		p.Sources[record.FieldPrice] = src
	}
	if v, src, ok := firstMatch(text, e.date); ok {
		p.PurchaseDate = &v
		p.Sources[record.FieldPurchaseDate] = src
	}
	return p
}

var (
	reProductLabel = regexp.MustCompile(`(?i)\b(?:product(?:[ \t]+name)?|item)[ \t]*:[ \t]*([^\r\n]*)`)
	reBrandLabel   = regexp.MustCompile(`(?i)\b(?:brand|manufacturer)[ \t]*:[ \t]*([^\r\n]*)`)
	reCapitalized  = regexp.MustCompile(`\b[A-Z][A-Za-z0-9]+(?:[ \t]+[A-Z][A-Za-z0-9]+)+\b`)
	rePrice        = regexp.MustCompile(`\$[ \t]*(\d{1,3}(?:,\d{3})+|\d+)\.(\d{1,2})\b`)
	reDate         = regexp.MustCompile(`\b(?:(\d{4})[-/](\d{1,2})[-/](\d{1,2})|(\d{1,2})[-/](\d{1,2})[-/](\d{4}|\d{2}))\b`)
)

func labelValue(re *regexp.Regexp, text string) (string, bool) {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			return v, true
		}
	}
	return "", false
}

func productLabel(text string) (string, bool) { return labelValue(reProductLabel, text) }

func brandLabel(text string) (string, bool) { return labelValue(reBrandLabel, text) }

// capitalizedWords finds the first run of two or more capitalised words on a single line
func capitalizedWords(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		if m := reCapitalized.FindString(line); m != "" {
			return strings.Join(strings.Fields(m), " "), true
		}
	}
	return "", false
}

// allowList matches known brands case-insensitively and returns the canonical spelling of
// the leftmost one
func allowList(brands []string) func(string) (string, bool) {
	if len(brands) == 0 {
		return func(string) (string, bool) { return "", false }
	}
	canonical := make(map[string]string, len(brands))
	quoted := make([]string, 0, len(brands))
	for _, b := range brands {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		canonical[strings.ToLower(b)] = b
		quoted = append(quoted, regexp.QuoteMeta(b))
	}
	re := regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	return func(text string) (string, bool) {
		m := re.FindString(text)
		if m == "" {
			return "", false
		}
		return canonical[strings.ToLower(m)], true
	}
}

func currency(text string) (record.Money, bool) {
	m := rePrice.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := record.ParseMoney(m[1] + "." + m[2])
	if err != nil {
		return 0, false
	}
	return v, true
}

// dateToken returns the first valid date. Slash dates are month-first unless the first part
// cannot be a month.
func dateToken(text string) (record.Date, bool) {
	for _, m := range reDate.FindAllStringSubmatch(text, -1) {
		var y, mo, d int
		if m[1] != "" {
			y, mo, d = atoi(m[1]), atoi(m[2]), atoi(m[3])
		} else {
			mo, d = atoi(m[4]), atoi(m[5])
			if mo > 12 {
				mo, d = d, mo
			}
			y = atoi(m[6])
			if len(m[6]) == 2 {
				y += 2000
			}
		}
		if date, ok := validDate(y, mo, d); ok {
			return date, true
		}
	}
	return record.Date{}, false
}

func validDate(y, m, d int) (record.Date, bool) {
	if y < 1900 || m < 1 || m > 12 || d < 1 {
		return record.Date{}, false
	}
	date := record.NewDate(y, time.Month(m), d)
	// time.Date normalises Feb 30 into March, which means the date did not exist
	if t := date.Time(); t.Day() != d || int(t.Month()) != m {
		return record.Date{}, false
	}
	return date, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
