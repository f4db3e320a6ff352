package scanner

import (
	"regexp"
	"strings"

	"printwatch/agent/scanner/vendor"
)

// excludeKeywords identify network gear that answers SNMP but is not a
// printer. They win over printerKeywords.
var excludeKeywords = []string{
	"routeros", "mikrotik", "router", "switch", "ccr", "crs", "rb",
	"cisco", "juniper", "ubiquiti", "unifi", "firewall", "gateway",
}

var printerKeywords = []string{
	"printer", "print", "mfp", "multifunction", "copier", "fax", "scanner",
	"xerox", "ricoh", "brother", "hp", "canon", "epson", "kyocera",
	"toshiba", "lexmark", "samsung", "konica", "sharp", "pantum",
	"m 320", "m320", "aficio", "imagio", "laserjet", "deskjet", "officejet",
}

// Keywords shorter than this only count as whole tokens, so "rb" does not
// match inside arbitrary words and "hp" does not match "php".
const shortKeywordLen = 4

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// brandKeywords is evaluated in order; the first hit wins.
var brandKeywords = []struct {
	brand vendor.Brand
	words []string
}{
	{vendor.BrandBrother, []string{"brother"}},
	{vendor.BrandRicoh, []string{"ricoh"}},
	{vendor.BrandHP, []string{"hp", "hewlett"}},
	{vendor.BrandCanon, []string{"canon"}},
	{vendor.BrandEpson, []string{"epson"}},
	{vendor.BrandXerox, []string{"xerox"}},
	{vendor.BrandKyocera, []string{"kyocera"}},
	{vendor.BrandToshiba, []string{"toshiba"}},
	{vendor.BrandKonica, []string{"konica"}},
	{vendor.BrandSharp, []string{"sharp"}},
	{vendor.BrandSamsung, []string{"samsung"}},
	{vendor.BrandLexmark, []string{"lexmark"}},
	{vendor.BrandPantum, []string{"pantum"}},
}

const unknownModel = "Network Device"

// Classification is the identity guess made from a discovery probe.
type Classification struct {
	Excluded  bool
	IsPrinter bool
	Brand     vendor.Brand
	Model     string
}

// keywordText is the lowercased text plus its token set.
type keywordText struct {
	text   string
	tokens map[string]struct{}
}

func newKeywordText(parts ...string) keywordText {
	text := strings.ToLower(strings.Join(parts, " "))
	tokens := make(map[string]struct{})
	for _, tok := range tokenSplit.Split(text, -1) {
		if tok != "" {
			tokens[tok] = struct{}{}
		}
	}
	return keywordText{text: text, tokens: tokens}
}

func (k keywordText) has(keyword string) bool {
	if len(keyword) < shortKeywordLen {
		_, ok := k.tokens[keyword]
		return ok
	}
	return strings.Contains(k.text, keyword)
}

func (k keywordText) hasAny(keywords []string) bool {
	for _, kw := range keywords {
		if k.has(kw) {
			return true
		}
	}
	return false
}

// Classify decides whether a probed host is a printer and guesses its brand
// and model. extra carries any additional strings read by the extended probe.
func Classify(sysDescr, sysName, hrDeviceDescr string, extra ...string) Classification {
	kt := newKeywordText(append([]string{sysDescr, sysName, hrDeviceDescr}, extra...)...)
	if kt.hasAny(excludeKeywords) {
		return Classification{Excluded: true, Brand: vendor.BrandUnknown}
	}

	c := Classification{
		IsPrinter: kt.hasAny(printerKeywords) || strings.TrimSpace(sysDescr) != "",
		Brand:     detectBrand(kt),
	}
	if c.IsPrinter {
		c.Model = extractModel(hrDeviceDescr, sysDescr, c.Brand)
	}
	return c
}

func detectBrand(kt keywordText) vendor.Brand {
	for _, bk := range brandKeywords {
		if kt.hasAny(bk.words) {
			return bk.brand
		}
	}
	return vendor.BrandUnknown
}

// extractModel prefers hrDeviceDescr, then the first comma-separated field of
// sysDescr with the brand name removed, then a truncated sysDescr.
func extractModel(hrDeviceDescr, sysDescr string, brand vendor.Brand) string {
	if m := strings.TrimSpace(hrDeviceDescr); m != "" {
		return m
	}
	sysDescr = strings.TrimSpace(sysDescr)
	if brand != vendor.BrandUnknown && sysDescr != "" {
		first, _, _ := strings.Cut(sysDescr, ",")
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(string(brand)))
		if m := strings.TrimSpace(re.ReplaceAllString(first, "")); m != "" && !strings.EqualFold(m, string(brand)) {
			return m
		}
	}
	if sysDescr == "" {
		return unknownModel
	}
	if len(sysDescr) > 50 {
		return sysDescr[:50]
	}
	return sysDescr
}
