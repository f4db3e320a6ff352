package scanner

import (
	"context"
	"fmt"
	"strings"

	"printwatch/agent/supplies"
	"printwatch/common/logger"
	"printwatch/common/snmp"
	"printwatch/common/snmp/oids"

	"github.com/gosnmp/gosnmp"
)

// hrDeviceStatus values (RFC 2790).
const (
	hrDeviceWarning = 3
	hrDeviceDown    = 5
)

const (
	criticalLevel = 10
	lowLevel      = 20

	faultDeviceWarning = "Device in warning state"
	faultDeviceError   = "Device error"
)

// errorBit is one flag of hrPrinterDetectedErrorState.
type errorBit struct {
	octet  int
	mask   byte
	fault  string
	severe bool
}

// detectedErrorBits follows the RFC 2790 bit order (bit 0 is the MSB of the
// first octet).
var detectedErrorBits = []errorBit{
	{0, 0x80, "Low paper", false},
	{0, 0x40, "Out of paper", true},
	{0, 0x20, "Low toner", false},
	{0, 0x10, "Out of toner", true},
	{0, 0x08, "Door open", true},
	{0, 0x04, "Paper jam", true},
	{0, 0x02, "Printer offline", true},
	{0, 0x01, "Service requested", true},
	{1, 0x80, "Preventive maintenance overdue", false},
	{1, 0x40, "Input tray missing", false},
	{1, 0x20, "Output tray missing", false},
	{1, 0x10, "Marker supply missing", true},
	{1, 0x08, "Output tray nearly full", false},
	{1, 0x04, "Output tray full", false},
	{1, 0x02, "Input tray empty", false},
}

// decodeDetectedErrors returns the fault strings for the set bits, in table
// order, and whether any of them is severe.
func decodeDetectedErrors(state []byte) (faults []string, severe bool) {
	for _, b := range detectedErrorBits {
		if b.octet >= len(state) || state[b.octet]&b.mask == 0 {
			continue
		}
		faults = append(faults, b.fault)
		severe = severe || b.severe
	}
	return faults, severe
}

// mergeDeviceStatus reads hrDeviceStatus, hrPrinterDetectedErrorState and the
// first alert description in one request. Failure leaves res untouched.
func (e *Engine) mergeDeviceStatus(ctx context.Context, s *snmp.Session, res *QueryResult) {
	pdus, err := s.Get(ctx, []string{oids.HrDeviceStatus, oids.HrPrinterDetectedErrorState, oids.PrtAlertDescription})
	if err != nil {
		if logger.Global != nil {
			logger.Global.Debug("Device status read failed", "ip", res.IP, "error", err)
		}
		return
	}
	at := func(i int) (gosnmp.SnmpPDU, bool) {
		if i >= len(pdus) || snmp.IsVarbindError(pdus[i]) {
			return gosnmp.SnmpPDU{}, false
		}
		return pdus[i], true
	}

	if v, ok := at(0); ok {
		status, _ := snmp.PDUInt(v)
		switch status {
		case hrDeviceWarning:
			res.Status = StatusWarning
			if alert, ok := at(2); ok {
				if msg := strings.TrimSpace(snmp.PDUString(alert)); msg != "" {
					res.Faults = append(res.Faults, msg)
					if logger.Global != nil {
						logger.Global.Warn("Device alert", "ip", res.IP, "alert", msg)
					}
				}
			}
			if len(res.Faults) == 0 {
				res.Faults = append(res.Faults, faultDeviceWarning)
			}
		case hrDeviceDown:
			res.Status = StatusError
			if len(res.Faults) == 0 {
				res.Faults = append(res.Faults, faultDeviceError)
			}
		}
	}

	if v, ok := at(1); ok {
		state, isBuf := snmp.PDUBytes(v)
		if !isBuf {
			return
		}
		faults, severe := decodeDetectedErrors(state)
		res.Faults = append(res.Faults, faults...)
		switch {
		case severe:
			res.Status = StatusError
		case len(faults) > 0 && res.Status == StatusOnline:
			res.Status = StatusWarning
		}
	}
}

// mergeLevelFaults adds one critical or one low toner fault. Critical colors
// are reported ahead of low ones; a level of 0 is left to the error bits.
func mergeLevelFaults(res *QueryResult) {
	var critical, low []string
	for _, color := range orderedColors(res.Levels) {
		level := res.Levels[color]
		switch {
		case level > 0 && level < criticalLevel:
			critical = append(critical, color)
		case level > 0 && level < lowLevel:
			low = append(low, color)
		}
	}

	switch {
	case len(critical) > 0:
		res.Faults = append([]string{fmt.Sprintf("Toner critical (%s): replace soon", titleJoin(critical))}, res.Faults...)
	case len(low) > 0:
		res.Faults = append(res.Faults, fmt.Sprintf("Toner low (%s): consider replacing", titleJoin(low)))
	default:
		return
	}
	if res.Status == StatusOnline {
		res.Status = StatusWarning
	}
}

// orderedColors lists the colors present in levels in K, C, M, Y order.
func orderedColors(levels map[string]int) []string {
	out := make([]string, 0, len(levels))
	for _, c := range supplies.Colors {
		if _, ok := levels[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func titleJoin(colors []string) string {
	names := make([]string, len(colors))
	for i, c := range colors {
		names[i] = strings.ToUpper(c[:1]) + c[1:]
	}
	return strings.Join(names, ", ")
}
