package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-partyshop/internal/pricing"
)

// Product is a raw catalog row. Several rows may describe the same item
// listed under slightly different titles.
type Product struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Category string        `json:"category,omitempty"`
	Price    pricing.Money `json:"price"`
	ImageURL string        `json:"image_url,omitempty"`
	InStock  bool          `json:"in_stock"`
}

// Listing is the deduplicated view of a product.
type Listing struct {
	Product
	Name string `json:"name"`
	Size string `json:"size,omitempty"`
	// Listings counts the raw rows folded into this one.
	Listings int `json:"listings"`
}

// ParsedTitle splits a title into a display name and a normalised size.
type ParsedTitle struct {
	Name string
	Size string
}

// Key groups titles that name the same product and size.
func (p ParsedTitle) Key() string {
	return strings.ToLower(p.Name) + "|" + p.Size
}

var sizePattern = regexp.MustCompile(`(?i)[\s,(\-–]*(\d+(?:\.\d+)?)\s*(ml|milliliters?|l|liters?|litres?|fl\.?\s?oz|oz|ounces?|pk|packs?|ct|count)\.?\)?\s*$`)

var unitAliases = map[string]string{
	"ml": "ml", "milliliter": "ml", "milliliters": "ml",
	"l": "l", "liter": "l", "liters": "l", "litre": "l", "litres": "l",
	"oz": "oz", "ounce": "oz", "ounces": "oz", "floz": "oz", "fl.oz": "oz",
	"pk": "pk", "pack": "pk", "packs": "pk",
	"ct": "ct", "count": "ct",
}

// ParseTitle extracts the trailing size from a title, so "Tito's Handmade
// Vodka - 750 mL" and "Tito's Handmade Vodka 750ml" share a key.
func ParseTitle(title string) ParsedTitle {
	clean := strings.Join(strings.Fields(title), " ")
	m := sizePattern.FindStringSubmatchIndex(clean)
	if m == nil {
		return ParsedTitle{Name: trimName(clean)}
	}
	amount := clean[m[2]:m[3]]
	unit := strings.ToLower(strings.ReplaceAll(clean[m[4]:m[5]], " ", ""))
	if canon, ok := unitAliases[unit]; ok {
		unit = canon
	}
	if f, err := strconv.ParseFloat(amount, 64); err == nil {
		amount = strconv.FormatFloat(f, 'f', -1, 64)
	}
	name := trimName(clean[:m[0]])
	if name == "" {
		return ParsedTitle{Name: trimName(clean)}
	}
	return ParsedTitle{Name: name, Size: amount + unit}
}

func trimName(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "-–,"))
}

// Dedupe folds products sharing a name and size into one listing, keeping the
// cheapest in-stock row. Output preserves first-seen order.
func Dedupe(products []Product) []Listing {
	out := make([]Listing, 0, len(products))
	index := make(map[string]int, len(products))
	for _, p := range products {
		parsed := ParseTitle(p.Title)
		key := parsed.Key()
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, Listing{Product: p, Name: parsed.Name, Size: parsed.Size, Listings: 1})
			continue
		}
		cur := &out[i]
		cur.Listings++
		if preferred(p, cur.Product) {
			cur.Product = p
		}
	}
	return out
}

func preferred(candidate, current Product) bool {
	if candidate.InStock != current.InStock {
		return candidate.InStock
	}
	return candidate.Price < current.Price
}
