package storage

import (
	"strings"
	"testing"

	"printwatch/agent/scanner/vendor"
)

func TestDetectChangesCartridgeSwap(t *testing.T) {
	t.Parallel()

	prev := &Printer{CartridgeInfo: map[string]vendor.CartridgeInfo{
		"1": {Serial: "CRUM-0001", Name: "Black Toner TN-760"},
		"2": {Name: "Cyan Toner Cartridge", Capacity: "2300"},
	}}
	cur := &Printer{CartridgeInfo: map[string]vendor.CartridgeInfo{
		"1": {Serial: "CRUM-0002", Name: "Black Toner TN-760"},
		"2": {Name: "Cyan Toner Cartridge", Capacity: "2300"},
		"3": {Name: "Magenta Toner Cartridge"},
	}}

	logs := DetectChanges(prev, cur)
	if len(logs) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(logs), logs)
	}
	l := logs[0]
	if l.Type != LogTypeTonerReplacement || l.Color != "black" {
		t.Errorf("entry = %+v", l)
	}
	if !strings.Contains(l.Notes, "CRUM-0001") || !strings.Contains(l.Notes, "CRUM-0002") {
		t.Errorf("notes lack identifiers: %q", l.Notes)
	}
}

func TestDetectChangesUnnamedCartridgeDefaultsToBlack(t *testing.T) {
	t.Parallel()

	prev := &Printer{CartridgeInfo: map[string]vendor.CartridgeInfo{"1": {Capacity: "3000"}}}
	cur := &Printer{CartridgeInfo: map[string]vendor.CartridgeInfo{"1": {Capacity: "6000"}}}

	logs := DetectChanges(prev, cur)
	if len(logs) != 1 || logs[0].Color != "black" || !strings.Contains(logs[0].Notes, "Unknown") {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestDetectChangesLevelJump(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prev   *Printer
		cur    *Printer
		colors []string
	}{
		{
			name:   "refill above threshold",
			prev:   &Printer{Levels: map[string]int{"black": 5, "cyan": 40}},
			cur:    &Printer{Levels: map[string]int{"black": 100, "cyan": 90}},
			colors: []string{"black"},
		},
		{
			name: "exactly fifty points is not a refill",
			prev: &Printer{Levels: map[string]int{"black": 10}},
			cur:  &Printer{Levels: map[string]int{"black": 60}},
		},
		{
			name: "cartridge info present disables level heuristic",
			prev: &Printer{Levels: map[string]int{"black": 5}},
			cur: &Printer{
				Levels:        map[string]int{"black": 100},
				CartridgeInfo: map[string]vendor.CartridgeInfo{"1": {Name: "Black"}},
			},
		},
		{
			name: "placeholder levels ignored",
			prev: &Printer{Levels: map[string]int{"black": 50}, LevelsUnavailable: true},
			cur:  &Printer{Levels: map[string]int{"black": 100}},
		},
		{
			name:   "multiple colors in fixed order",
			prev:   &Printer{Levels: map[string]int{"yellow": 2, "magenta": 3}},
			cur:    &Printer{Levels: map[string]int{"yellow": 99, "magenta": 98}},
			colors: []string{"magenta", "yellow"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logs := DetectChanges(tt.prev, tt.cur)
			if len(logs) != len(tt.colors) {
				t.Fatalf("got %d entries, want %d: %+v", len(logs), len(tt.colors), logs)
			}
			for i, c := range tt.colors {
				if logs[i].Color != c || logs[i].Type != LogTypeTonerReplacement {
					t.Errorf("entry %d = %+v, want color %s", i, logs[i], c)
				}
			}
		})
	}
}

func TestFirmwareChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prev, cur string
		ok        bool
		verb      string
	}{
		{prev: "1.10", cur: "1.20", ok: true, verb: "upgraded"},
		{prev: "2.3.1", cur: "2.2.0", ok: true, verb: "downgraded"},
		{prev: "ZH1904", cur: "ZH2011", ok: true, verb: "changed"},
		{prev: "v2.1", cur: "2.1.0", ok: false},
		{prev: "1.4", cur: "1.4", ok: false},
		{prev: "", cur: "1.4", ok: false},
		{prev: "v1.0", cur: "1.4", ok: false},
	}
	for _, tt := range tests {
		entry, ok := firmwareChange(tt.prev, tt.cur)
		if ok != tt.ok {
			t.Errorf("firmwareChange(%q, %q) ok = %v, want %v", tt.prev, tt.cur, ok, tt.ok)
			continue
		}
		if ok && (entry.Type != LogTypeFirmwareUpdate || !strings.Contains(entry.Description, tt.verb)) {
			t.Errorf("firmwareChange(%q, %q) = %+v, want verb %s", tt.prev, tt.cur, entry, tt.verb)
		}
	}
}

func TestDetectChangesNilSafe(t *testing.T) {
	t.Parallel()

	if logs := DetectChanges(nil, &Printer{}); logs != nil {
		t.Errorf("logs = %v", logs)
	}
}
