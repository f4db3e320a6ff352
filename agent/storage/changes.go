package storage

import (
	"fmt"
	"sort"
	"strings"

	"printwatch/agent/supplies"

	"github.com/Masterminds/semver/v3"
)

// levelJumpThreshold is the minimum rise in percentage points that counts as
// a refill when no cartridge identity is available.
const levelJumpThreshold = 50

// placeholderFirmware is what the orchestrator reports when the device did
// not expose a firmware string.
const placeholderFirmware = "v1.0"

var trackedColors = []string{"black", "cyan", "magenta", "yellow"}

// DetectChanges compares two snapshots of the same printer and returns the
// maintenance entries implied by the difference. Returned entries carry no
// ID, printer ID or timestamp; the store assigns those.
//
// Cartridge swaps are detected per supply index from the cartridge identity.
// Level jumps are only considered when the current snapshot has no cartridge
// information at all.
func DetectChanges(prev, cur *Printer) []MaintenanceLog {
	if prev == nil || cur == nil {
		return nil
	}
	var logs []MaintenanceLog
	logs = append(logs, cartridgeSwaps(prev, cur)...)
	if len(cur.CartridgeInfo) == 0 {
		logs = append(logs, levelRefills(prev, cur)...)
	}
	if entry, ok := firmwareChange(prev.Firmware, cur.Firmware); ok {
		logs = append(logs, entry)
	}
	return logs
}

func cartridgeSwaps(prev, cur *Printer) []MaintenanceLog {
	if len(prev.CartridgeInfo) == 0 || len(cur.CartridgeInfo) == 0 {
		return nil
	}
	indexes := make([]string, 0, len(cur.CartridgeInfo))
	for idx := range cur.CartridgeInfo {
		indexes = append(indexes, idx)
	}
	sort.Strings(indexes)

	var logs []MaintenanceLog
	for _, idx := range indexes {
		before, ok := prev.CartridgeInfo[idx]
		if !ok {
			continue
		}
		after := cur.CartridgeInfo[idx]
		oldID, newID := before.Identity(), after.Identity()
		if oldID == "" || newID == "" || oldID == newID {
			continue
		}
		name := after.Name
		if name == "" {
			name = "Unknown"
		}
		color := supplies.ClassifySupplyColor(name)
		if color == "" {
			color = "black"
		}
		logs = append(logs, MaintenanceLog{
			Type:        LogTypeTonerReplacement,
			Color:       color,
			Description: fmt.Sprintf("%s cartridge replacement detected via SNMP", color),
			Notes:       fmt.Sprintf("Cartridge identifier changed.\nCartridge: %s\nPrevious ID: %s\nCurrent ID: %s", name, oldID, newID),
			PerformedBy: performedBySystem,
		})
	}
	return logs
}

func levelRefills(prev, cur *Printer) []MaintenanceLog {
	if prev.LevelsUnavailable || cur.LevelsUnavailable {
		return nil
	}
	var logs []MaintenanceLog
	for _, color := range trackedColors {
		before, ok1 := prev.Levels[color]
		after, ok2 := cur.Levels[color]
		if !ok1 || !ok2 || after-before <= levelJumpThreshold {
			continue
		}
		logs = append(logs, MaintenanceLog{
			Type:        LogTypeTonerReplacement,
			Color:       color,
			Description: fmt.Sprintf("%s toner replacement detected (level rose from %d%% to %d%%)", color, before, after),
			Notes:       fmt.Sprintf("Detected from SNMP level readings. Previous level: %d%%, current level: %d%%", before, after),
			PerformedBy: performedBySystem,
		})
	}
	return logs
}

func firmwareChange(prev, cur string) (MaintenanceLog, bool) {
	prev, cur = strings.TrimSpace(prev), strings.TrimSpace(cur)
	if prev == "" || cur == "" || prev == cur || prev == placeholderFirmware || cur == placeholderFirmware {
		return MaintenanceLog{}, false
	}

	verb := "changed"
	pv, perr := semver.NewVersion(prev)
	cv, cerr := semver.NewVersion(cur)
	if perr == nil && cerr == nil {
		switch {
		case cv.GreaterThan(pv):
			verb = "upgraded"
		case cv.LessThan(pv):
			verb = "downgraded"
		default:
			// Same version spelled differently ("v2.1" vs "2.1.0").
			return MaintenanceLog{}, false
		}
	}
	return MaintenanceLog{
		Type:        LogTypeFirmwareUpdate,
		Description: fmt.Sprintf("Firmware %s from %s to %s", verb, prev, cur),
		PerformedBy: performedBySystem,
	}, true
}
