package storage

import (
	"printwatch/agent/scanner"
	"printwatch/agent/scanner/vendor"
)

// FromQueryResult converts an orchestrator result into a snapshot ready for
// RecordSnapshot. Identity fields (ID, CreatedAt) are assigned by the store.
func FromQueryResult(res *scanner.QueryResult) *Printer {
	if res == nil {
		return nil
	}
	p := &Printer{
		IP:                res.IP,
		Brand:             res.Brand,
		Model:             res.Model,
		Hostname:          res.Hostname,
		Serial:            res.Serial,
		Firmware:          res.Firmware,
		Status:            res.Status,
		Faults:            append([]string(nil), res.Faults...),
		Levels:            make(map[string]int, len(res.Levels)),
		LevelsUnavailable: res.LevelsUnavailable,
		PageCount:         res.PageCount,
		LastStatusUpdate:  res.QueriedAt,
	}
	for color, lvl := range res.Levels {
		p.Levels[color] = lvl
	}
	if len(res.CartridgeInfo) > 0 {
		p.CartridgeInfo = make(map[string]vendor.CartridgeInfo, len(res.CartridgeInfo))
		for idx, info := range res.CartridgeInfo {
			p.CartridgeInfo[idx] = info
		}
	}
	return p
}
