package storage

import (
	"context"
	"testing"
	"time"

	"printwatch/agent/scanner/vendor"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), memoryPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// withClock makes s.now return successive seconds from a fixed start.
func withClock(s *Store) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var n int
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func samplePrinter(ip string) *Printer {
	pages := 48211
	return &Printer{
		IP:       ip,
		Brand:    "BROTHER",
		Model:    "Brother HL-L5100DN",
		Hostname: "BRN-FRONTDESK",
		Serial:   "E73456A1B234",
		Firmware: "1.10",
		Status:   "ONLINE",
		Levels:   map[string]int{"black": 8},
		Faults:   []string{"Toner critical (Black): replace soon"},
		CartridgeInfo: map[string]vendor.CartridgeInfo{
			"1": {Serial: "CRUM-0001", Name: "Black Toner TN-850"},
		},
		PageCount: &pages,
	}
}
