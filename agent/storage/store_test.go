package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"printwatch/agent/scanner"
	"printwatch/agent/scanner/vendor"
	"printwatch/common/config"
)

func TestRecordSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	s := newMemoryStore(t)
	withClock(s)
	ctx := context.Background()

	p := samplePrinter("10.0.0.20")
	logs, err := s.RecordSnapshot(ctx, p, "")
	if err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("first snapshot produced %d maintenance entries", len(logs))
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("identity not assigned: %+v", p)
	}

	got, err := s.GetPrinterByIP(ctx, "10.0.0.20")
	if err != nil {
		t.Fatalf("GetPrinterByIP: %v", err)
	}
	if got.ID != p.ID || got.Serial != "E73456A1B234" || got.Status != "ONLINE" {
		t.Errorf("got %+v", got)
	}
	if !reflect.DeepEqual(got.Levels, p.Levels) || !reflect.DeepEqual(got.Faults, p.Faults) {
		t.Errorf("levels/faults = %v / %v", got.Levels, got.Faults)
	}
	if !reflect.DeepEqual(got.CartridgeInfo, p.CartridgeInfo) {
		t.Errorf("cartridge info = %+v", got.CartridgeInfo)
	}
	if got.PageCount == nil || *got.PageCount != 48211 {
		t.Errorf("page count = %v", got.PageCount)
	}
	if got.LastMaintenance != nil {
		t.Errorf("unexpected last maintenance %v", got.LastMaintenance)
	}
}

func TestRecordSnapshotDetectsReplacement(t *testing.T) {
	t.Parallel()

	s := newMemoryStore(t)
	withClock(s)
	ctx := context.Background()

	first := samplePrinter("10.0.0.21")
	if _, err := s.RecordSnapshot(ctx, first, ""); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	second := samplePrinter("10.0.0.21")
	second.Levels = map[string]int{"black": 100}
	second.Faults = nil
	second.Firmware = "1.20"
	second.CartridgeInfo = map[string]vendor.CartridgeInfo{"1": {Serial: "CRUM-0002", Name: "Black Toner TN-850"}}
	logs, err := s.RecordSnapshot(ctx, second, "")
	if err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}
	if len(logs) != 2 || logs[0].Type != LogTypeTonerReplacement || logs[1].Type != LogTypeFirmwareUpdate {
		t.Fatalf("logs = %+v", logs)
	}
	if second.ID != first.ID {
		t.Errorf("second snapshot got a new id")
	}

	stored, err := s.ListMaintenanceLogs(ctx, first.ID, 0)
	if err != nil {
		t.Fatalf("ListMaintenanceLogs: %v", err)
	}
	if len(stored) != 2 || stored[0].PrinterID != first.ID {
		t.Errorf("stored = %+v", stored)
	}

	got, err := s.GetPrinter(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetPrinter: %v", err)
	}
	if got.LastMaintenance == nil || got.Firmware != "1.20" || len(got.Faults) != 0 {
		t.Errorf("printer after replacement = %+v", got)
	}
}

func TestRecordSnapshotFollowsIPChange(t *testing.T) {
	t.Parallel()

	s := newMemoryStore(t)
	withClock(s)
	ctx := context.Background()

	old := samplePrinter("192.168.1.50")
	if _, err := s.RecordSnapshot(ctx, old, ""); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}
	moved := samplePrinter("192.168.1.77")
	if _, err := s.RecordSnapshot(ctx, moved, "192.168.1.50"); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}
	if moved.ID != old.ID {
		t.Fatalf("moved printer got id %s, want %s", moved.ID, old.ID)
	}
	if _, err := s.GetPrinterByIP(ctx, "192.168.1.50"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old ip still resolves: %v", err)
	}
	all, err := s.ListPrinters(ctx)
	if err != nil {
		t.Fatalf("ListPrinters: %v", err)
	}
	if len(all) != 1 || all[0].IP != "192.168.1.77" {
		t.Errorf("printers = %+v", all)
	}
}

func TestUpdateSuppliesAndMarkOffline(t *testing.T) {
	t.Parallel()

	s := newMemoryStore(t)
	withClock(s)
	ctx := context.Background()

	if err := s.UpdateSupplies(ctx, "10.9.9.9", map[string]int{"black": 1}, "WARNING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSupplies on unknown ip: %v", err)
	}
	if err := s.MarkOffline(ctx, "10.9.9.9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkOffline on unknown ip: %v", err)
	}

	p := samplePrinter("10.0.0.22")
	if _, err := s.RecordSnapshot(ctx, p, ""); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}
	if err := s.UpdateSupplies(ctx, "10.0.0.22", map[string]int{"black": 15}, "WARNING"); err != nil {
		t.Fatalf("UpdateSupplies: %v", err)
	}
	got, _ := s.GetPrinterByIP(ctx, "10.0.0.22")
	if got.Levels["black"] != 15 || got.Status != "WARNING" {
		t.Errorf("after supplies update: %+v", got)
	}

	if err := s.MarkOffline(ctx, "10.0.0.22"); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	got, _ = s.GetPrinterByIP(ctx, "10.0.0.22")
	if got.Status != "OFFLINE" || got.Levels["black"] != 15 {
		t.Errorf("after offline: %+v", got)
	}
}

func TestAddMaintenanceLog(t *testing.T) {
	t.Parallel()

	s := newMemoryStore(t)
	withClock(s)
	ctx := context.Background()

	if err := s.AddMaintenanceLog(ctx, &MaintenanceLog{PrinterID: "missing", Type: LogTypeRepair, Description: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	p := samplePrinter("10.0.0.23")
	if _, err := s.RecordSnapshot(ctx, p, ""); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}
	entry := &MaintenanceLog{PrinterID: p.ID, Type: LogTypeRepair, Description: "Replaced fuser", PerformedBy: "tech"}
	if err := s.AddMaintenanceLog(ctx, entry); err != nil {
		t.Fatalf("AddMaintenanceLog: %v", err)
	}
	if entry.ID == "" {
		t.Error("id not assigned")
	}
	logs, err := s.ListMaintenanceLogs(ctx, p.ID, 10)
	if err != nil || len(logs) != 1 || logs[0].Description != "Replaced fuser" {
		t.Fatalf("logs = %+v err=%v", logs, err)
	}
	got, _ := s.GetPrinter(ctx, p.ID)
	if got.LastMaintenance == nil {
		t.Error("last maintenance not updated")
	}
}

func TestFromQueryResult(t *testing.T) {
	t.Parallel()

	pages := 10
	res := &scanner.QueryResult{
		IP:                "10.0.0.5",
		Brand:             "HP",
		Status:            scanner.StatusWarning,
		Faults:            []string{"Low paper"},
		Levels:            map[string]int{"black": 50},
		LevelsUnavailable: true,
		CartridgeInfo:     map[string]vendor.CartridgeInfo{"1": {Name: "Black Cartridge HP 410A"}},
		PageCount:         &pages,
	}
	p := FromQueryResult(res)
	res.Levels["black"] = 1
	res.Faults[0] = "mutated"

	if p.Levels["black"] != 50 || p.Faults[0] != "Low paper" {
		t.Errorf("snapshot shares state with the result: %+v", p)
	}
	if !p.LevelsUnavailable || p.CartridgeInfo["1"].Name != "Black Cartridge HP 410A" || *p.PageCount != 10 {
		t.Errorf("p = %+v", p)
	}
	if FromQueryResult(nil) != nil {
		t.Error("nil result should convert to nil")
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.DatabaseConfig{}, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if s.Path() != filepath.Join(dir, "printwatch.db") || s.Dialect().Name() != "sqlite" {
		t.Errorf("path=%s dialect=%s", s.Path(), s.Dialect().Name())
	}

	if _, err := Open(ctx, config.DatabaseConfig{Driver: "mysql"}, dir); err == nil {
		t.Error("expected error for unsupported driver")
	}
	if _, err := Open(ctx, config.DatabaseConfig{Driver: "postgres"}, dir); err == nil {
		t.Error("expected error for postgres without dsn")
	}
}
