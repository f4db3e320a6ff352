package scanner

import (
	"printwatch/agent/scanner/vendor"
	"printwatch/agent/supplies"
	"printwatch/common/logger"
)

// normalize fills identity defaults and the level placeholder so every
// result carries a serial, a firmware string and at least one level.
func normalize(res *QueryResult, brand vendor.Brand) {
	if res.Serial == "" {
		res.Serial = placeholderSerial(res.IP, brand)
		if logger.Global != nil {
			logger.Global.Debug("Serial unavailable, using address-derived identifier", "ip", res.IP, "serial", res.Serial)
		}
	}
	if res.Firmware == "" {
		res.Firmware = defaultFirmware
	}

	res.Levels = supplies.StripToMonochrome(res.Model, res.Levels)
	if len(res.Levels) == 0 {
		res.Levels = map[string]int{supplies.Black: neutralPlaceholder}
		res.LevelsUnavailable = true
		res.Faults = append(res.Faults, faultLevelsMissing)
		if logger.Global != nil {
			logger.Global.Warn("Toner levels unavailable", "ip", res.IP, "brand", res.Brand, "model", res.Model)
		}
	}
}
