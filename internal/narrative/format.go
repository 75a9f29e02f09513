// Package narrative formats rule values for human-readable text and keeps
// that text free of speculative wording.
package narrative

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol prefixes currency amounts.
const CurrencySymbol = "₹"

// Format selects how a rule value is rendered.
type Format int

const (
	// Integer renders a whole number with digit grouping ("1,250").
	Integer Format = iota
	// Percent renders a ratio as a whole percentage ("98%").
	Percent
	// PercentTenths renders a ratio as a percentage with one decimal ("12.5%").
	PercentTenths
	// Currency renders a grouped whole amount with the currency symbol ("₹8,000").
	Currency
	// Years renders a duration with one decimal ("2.5").
	Years
)

var printer = message.NewPrinter(language.English)

// Value renders v in the given format.
func Value(f Format, v float64) string {
	switch f {
	case Percent:
		return printer.Sprintf("%.0f%%", v*100)
	case PercentTenths:
		return printer.Sprintf("%.1f%%", v*100)
	case Currency:
		return CurrencySymbol + printer.Sprintf("%d", int64(math.Round(v)))
	case Years:
		return printer.Sprintf("%.1f", v)
	default:
		return printer.Sprintf("%d", int64(math.Round(v)))
	}
}

// Render substitutes {name} placeholders in tmpl.
func Render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// speculative matches wording that presents an outcome as uncertain or
// attributes it to a statistical model.
var speculative = regexp.MustCompile(`(?i)\b(could|might|may|maybe|perhaps|probably|probability|likely|likelihood|estimate[sd]?|approximately|model|prediction|predicted|confidence|algorithm|machine learning|artificial intelligence|neural|training)\b`)

// CheckDeterministic returns an error naming the first speculative phrase in text.
func CheckDeterministic(text string) error {
	if m := speculative.FindString(text); m != "" {
		return fmt.Errorf("speculative wording %q", m)
	}
	return nil
}
