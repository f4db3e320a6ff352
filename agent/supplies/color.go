// Package supplies holds the string heuristics shared by every parser: supply
// color classification, model name cleanup and monochrome detection.
package supplies

import (
	"regexp"
	"strings"
)

// Supply channels reported in a level map.
const (
	Black   = "black"
	Cyan    = "cyan"
	Magenta = "magenta"
	Yellow  = "yellow"
)

// Colors lists the channels in positional order (K, C, M, Y).
var Colors = []string{Black, Cyan, Magenta, Yellow}

type colorRule struct {
	color   string
	pattern *regexp.Regexp
}

// colorRules are tried in order; the first match wins. Single-letter tokens
// must stand alone so "Ink" or "Drum" do not read as K or M.
var colorRules = []colorRule{
	{Black, regexp.MustCompile(`(?i)(black|negro|bk|schwarz|noir|\bk\b)`)},
	{Cyan, regexp.MustCompile(`(?i)(cyan|cian|\bc\b)`)},
	{Magenta, regexp.MustCompile(`(?i)(magenta|\bm\b)`)},
	{Yellow, regexp.MustCompile(`(?i)(yellow|amarillo|gelb|jaune|\by\b)`)},
}

// partNumberPattern matches vendor part numbers that end with color codes:
// - Kyocera: TK-8517K, TK-8517C, TK-8517M, TK-8517Y
// - HP: CF410C, CE400K
var partNumberPattern = regexp.MustCompile(`(?i)(tk|tn|ce|cf|w\d|cb|cc|q\d|c\d)[- ]?\d{3,5}([kcmy])\b`)

// monoTonerPattern matches monochrome toner part numbers without color suffix
// (TK-3182, TN-760). These are always black.
var monoTonerPattern = regexp.MustCompile(`(?i)^(tk|tn)[- ]?\d{3,5}$`)

// ClassifySupplyColor maps a supply description to a color channel. It returns
// "" for descriptions that name no color, and for drums, fusers and waste
// containers even when they carry a color word.
func ClassifySupplyColor(desc string) string {
	clean := strings.TrimSpace(desc)
	if clean == "" {
		return ""
	}
	lower := strings.ToLower(clean)

	if isNonTonerUnit(lower) {
		return ""
	}

	for _, rule := range colorRules {
		if rule.pattern.MatchString(clean) {
			return rule.color
		}
	}
	return colorFromPartNumber(clean)
}

func isNonTonerUnit(lower string) bool {
	isToner := containsAny(lower, []string{"toner", "ink", "cartridge", "developer", "supply"})
	if isToner {
		return false
	}
	return containsAny(lower, []string{"drum", "opc", "photoconductor", "imaging unit", "waste", "fuser", "fusing", "belt"})
}

func colorFromPartNumber(desc string) string {
	if m := partNumberPattern.FindStringSubmatch(desc); len(m) >= 3 {
		switch strings.ToLower(m[2]) {
		case "k":
			return Black
		case "c":
			return Cyan
		case "m":
			return Magenta
		case "y":
			return Yellow
		}
	}
	if monoTonerPattern.MatchString(desc) {
		return Black
	}
	return ""
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
