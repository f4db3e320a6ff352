package supplies

import (
	"regexp"
	"strings"
)

var (
	brotherNCPattern    = regexp.MustCompile(`(?i)NC-\d+h`)
	brotherModelPattern = regexp.MustCompile(`(?i)(HL|MFC|DCP)-[A-Z0-9]+[^\s,]*`)
	ricohModelPattern   = regexp.MustCompile(`(?i)(SP|M|IM|MP)\s+\d+[A-Z]*`)

	versionShortPattern = regexp.MustCompile(`\s+[vV]\d+\.\d+(\.\d+)?(\s|$)`)
	versionVerPattern   = regexp.MustCompile(`(?i)\s+Ver\.\s*\d+\.\d+(\.\d+)?`)
	versionWordPattern  = regexp.MustCompile(`(?i)\s+Version\s+\d+\.\d+(\.\d+)?`)
	vendorPrefixPattern = regexp.MustCompile(`(?i)^(Brother|HP|RICOH|TOSHIBA|PANTUM)\s*`)

	monochromePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)HL-L5`),
		regexp.MustCompile(`(?i)HL-5`),
		regexp.MustCompile(`(?i)DCP-L`),
		regexp.MustCompile(`(?i)MFC-L\d{4}D[WN]`),
	}

	firmwarePatterns = []*regexp.Regexp{
		regexp.MustCompile(`Firmware Ver\.(\d+\.\d+(?:\.\d+)?)`),
		regexp.MustCompile(`Ver\.(\d+\.\d+(?:\.\d+)?)`),
		regexp.MustCompile(`[vV]er[\s:]*(\d+\.\d+(?:\.\d+)?)`),
		regexp.MustCompile(`[vV](\d+\.\d+\.\d+)`),
		regexp.MustCompile(`[vV](\d+\.\d+)`),
	}
)

// IsBrotherNetworkCard reports whether s names a Brother NC-xxxxh print
// server rather than the printer itself.
func IsBrotherNetworkCard(s string) bool {
	return brotherNCPattern.MatchString(s)
}

// BrotherModel returns the first HL/MFC/DCP model token in s.
func BrotherModel(s string) string {
	return brotherModelPattern.FindString(s)
}

// CleanModelName turns a raw identity string into a display model.
// NC-xxxxh descriptors are returned untouched so the Brother decoder can
// resolve the real model.
func CleanModelName(raw, brand string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return brand + " Printer"
	}
	if IsBrotherNetworkCard(raw) {
		return raw
	}

	m := versionShortPattern.ReplaceAllString(raw, " ")
	m = versionVerPattern.ReplaceAllString(m, "")
	m = versionWordPattern.ReplaceAllString(m, "")
	m = strings.TrimSpace(vendorPrefixPattern.ReplaceAllString(strings.TrimSpace(m), ""))

	if bm := BrotherModel(m); bm != "" {
		return "Brother " + bm
	}
	if strings.EqualFold(brand, "RICOH") {
		if rm := ricohModelPattern.FindString(m); rm != "" {
			return "RICOH " + rm
		}
	}

	words := strings.Fields(m)
	if len(words) == 0 {
		return brand + " Printer"
	}
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.TrimSpace(brand + " " + strings.Join(words, " "))
}

// IsMonochromeModel reports whether model is a known black-only device.
func IsMonochromeModel(model string) bool {
	for _, p := range monochromePatterns {
		if p.MatchString(model) {
			return true
		}
	}
	return false
}

// StripToMonochrome drops color channels from levels when model is
// monochrome. black is kept only if it was present.
func StripToMonochrome(model string, levels map[string]int) map[string]int {
	if !IsMonochromeModel(model) {
		return levels
	}
	return BlackOnly(levels)
}

// BlackOnly returns a copy of levels holding at most the black channel.
func BlackOnly(levels map[string]int) map[string]int {
	out := make(map[string]int, 1)
	if v, ok := levels[Black]; ok {
		out[Black] = v
	}
	return out
}

// ExtractFirmwareVersion pulls a version token out of a free-form string such
// as sysDescr and returns it as "V<version>", or "" when none is found.
func ExtractFirmwareVersion(s string) string {
	for _, p := range firmwarePatterns {
		if m := p.FindStringSubmatch(s); len(m) >= 2 {
			return "V" + m[1]
		}
	}
	return ""
}

// ClampPercent bounds v to 0..100.
func ClampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
