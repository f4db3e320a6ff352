package scanner

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"printwatch/common/snmp"
	"printwatch/common/snmp/oids"
	"printwatch/common/snmp/snmptest"
)

const (
	supplyDesc   = "1.3.6.1.2.1.43.11.1.1.6.1."
	supplyMaxCap = "1.3.6.1.2.1.43.11.1.1.8.1."
	supplyLevel  = "1.3.6.1.2.1.43.11.1.1.9.1."
)

func newBrotherDevice(toner byte) *snmptest.Device {
	return snmptest.NewDevice(map[string]interface{}{
		oids.SysDescr:               "Brother NC-8800h, Firmware Ver.1.02",
		oids.SysName:                "BRN-FRONTDESK",
		oids.HrDeviceDescr:          "Brother HL-L5100DN series",
		oids.HrDeviceStatus:         1,
		oids.PrtGeneralSerialNumber: "E73456A1B234",
		oids.BrotherMaintenance:     brotherBuffer(toner),
	})
}

func newColorDevice(levels map[string]int) *snmptest.Device {
	d := snmptest.NewDevice(map[string]interface{}{
		oids.SysDescr:       "HP ETHERNET MULTI-ENVIRONMENT,ROM none,JETDIRECT,JD153",
		oids.SysName:        "NPI0A1B2C",
		oids.HrDeviceDescr:  "HP Color LaserJet MFP M477fdw",
		oids.HrDeviceStatus: 2,
	})
	descs := map[string]string{"black": "Black Cartridge HP 410A", "cyan": "Cyan Cartridge HP 410A", "magenta": "Magenta Cartridge HP 410A", "yellow": "Yellow Cartridge HP 410A"}
	for i, color := range []string{"black", "cyan", "magenta", "yellow"} {
		lvl, ok := levels[color]
		if !ok {
			continue
		}
		idx := string(rune('1' + i))
		d.Set(supplyDesc+idx, descs[color])
		d.Set(supplyMaxCap+idx, 100)
		d.Set(supplyLevel+idx, lvl)
	}
	return d
}

func newTestEngine(f *fleet) *Engine {
	return NewEngine(EngineConfig{Open: f.open})
}

func TestQueryBrotherHealthyToner(t *testing.T) {
	t.Parallel()

	f := newFleet()
	f.add("10.0.0.20", newBrotherDevice(30))

	res, err := newTestEngine(f).Query(context.Background(), snmp.Target{IP: "10.0.0.20", Brand: "brother"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Status != StatusOnline {
		t.Errorf("Status = %s, want ONLINE (faults %v)", res.Status, res.Faults)
	}
	if !reflect.DeepEqual(res.Levels, map[string]int{"black": 30}) {
		t.Errorf("Levels = %v", res.Levels)
	}
	for _, f := range res.Faults {
		if strings.Contains(f, "Toner") {
			t.Errorf("unexpected toner fault %q", f)
		}
	}
	if res.Hostname != "BRN-FRONTDESK" || res.Serial != "E73456A1B234" || res.Parser != "Brother" {
		t.Errorf("unexpected identity %+v", res)
	}
	if !res.SNMPAvailable || res.LevelsUnavailable {
		t.Errorf("SNMPAvailable=%v LevelsUnavailable=%v", res.SNMPAvailable, res.LevelsUnavailable)
	}
}

func TestQueryBrotherCriticalToner(t *testing.T) {
	t.Parallel()

	f := newFleet()
	f.add("10.0.0.21", newBrotherDevice(8))

	res, err := newTestEngine(f).Query(context.Background(), snmp.Target{IP: "10.0.0.21", Brand: "BROTHER"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Status != StatusWarning {
		t.Errorf("Status = %s, want WARNING", res.Status)
	}
	if len(res.Faults) == 0 || res.Faults[0] != "Toner critical (Black): replace soon" {
		t.Errorf("critical fault not first: %v", res.Faults)
	}
}

func TestQueryOfflinePlaceholder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(f *fleet)
	}{
		{name: "open fails", setup: func(*fleet) {}},
		{name: "timeout", setup: func(f *fleet) {
			d := f.add("192.168.1.50", snmptest.NewDevice(nil))
			d.Unreachable = true
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFleet()
			tt.setup(f)

			res, err := newTestEngine(f).Query(context.Background(), snmp.Target{IP: "192.168.1.50", Brand: "ricoh"})
			if err != nil {
				t.Fatalf("Query returned error for unreachable device: %v", err)
			}
			if !res.IsOffline() {
				t.Fatalf("expected OFFLINE placeholder, got %+v", res)
			}
			if res.Model != "RICOH Printer" || res.Hostname != "PRT-50" || res.Serial != "SN-RICOH-150" || res.Firmware != "v1.0" {
				t.Errorf("unexpected placeholder identity %+v", res)
			}
			if len(res.Faults) == 0 || res.Faults[0] != faultNotResponding {
				t.Errorf("Faults = %v", res.Faults)
			}
		})
	}
}

func TestQuerySilentDuringVendorRead(t *testing.T) {
	t.Parallel()

	f := newFleet()
	d := f.add("10.0.0.40", newColorDevice(map[string]int{"black": 80}))
	// sysDescr and the three identity objects answer, then the agent goes quiet.
	d.SilentAfter = 4

	res, err := newTestEngine(f).Query(context.Background(), snmp.Target{IP: "10.0.0.40", Brand: "hp"})
	if err != nil {
		t.Fatalf("Query returned error for a device that went silent: %v", err)
	}
	if !res.IsOffline() {
		t.Fatalf("expected OFFLINE placeholder, got %+v", res)
	}
	if res.Serial != "SN-HP-040" {
		t.Errorf("Serial = %q, want placeholder", res.Serial)
	}
}

func TestQueryRequiresIP(t *testing.T) {
	t.Parallel()

	_, err := newTestEngine(newFleet()).Query(context.Background(), snmp.Target{IP: " "})
	if !errors.Is(err, ErrIPRequired) {
		t.Fatalf("expected ErrIPRequired, got %v", err)
	}
}

func TestQueryCancelledContext(t *testing.T) {
	t.Parallel()

	f := newFleet()
	f.add("10.0.0.22", newBrotherDevice(30))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(f).Query(ctx, snmp.Target{IP: "10.0.0.22", Brand: "brother"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestQueryColorLevelFaults(t *testing.T) {
	t.Parallel()

	f := newFleet()
	f.add("10.0.0.30", newColorDevice(map[string]int{"black": 15, "cyan": 5, "magenta": 60, "yellow": 80}))

	res, err := newTestEngine(f).Query(context.Background(), snmp.Target{IP: "10.0.0.30", Brand: "HP"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := map[string]int{"black": 15, "cyan": 5, "magenta": 60, "yellow": 80}
	if !reflect.DeepEqual(res.Levels, want) {
		t.Errorf("Levels = %v, want %v", res.Levels, want)
	}
	if res.Status != StatusWarning {
		t.Errorf("Status = %s", res.Status)
	}
	if len(res.Faults) == 0 || res.Faults[0] != "Toner critical (Cyan): replace soon" {
		t.Errorf("Faults = %v", res.Faults)
	}
	for _, f := range res.Faults {
		if strings.HasPrefix(f, "Toner low") {
			t.Errorf("low fault reported alongside critical: %v", res.Faults)
		}
	}
}

func TestQueryDeviceStatusAndErrorBits(t *testing.T) {
	t.Parallel()

	f := newFleet()
	d := f.add("10.0.0.31", newColorDevice(map[string]int{"black": 70, "cyan": 70, "magenta": 70, "yellow": 70}))
	d.Set(oids.HrDeviceStatus, 3)
	d.Set(oids.PrtAlertDescription, "Close front cover")
	d.Set(oids.HrPrinterDetectedErrorState, []byte{0x08, 0x00})

	res, err := newTestEngine(f).Query(context.Background(), snmp.Target{IP: "10.0.0.31", Brand: "hp"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Status != StatusError {
		t.Errorf("Status = %s, want ERROR for door open", res.Status)
	}
	want := []string{"Close front cover", "Door open"}
	if !reflect.DeepEqual(res.Faults, want) {
		t.Errorf("Faults = %v, want %v", res.Faults, want)
	}
}

func TestQueryLevelsPlaceholder(t *testing.T) {
	t.Parallel()

	f := newFleet()
	f.add("10.0.0.40", snmptest.NewDevice(map[string]interface{}{
		oids.SysDescr: "Generic Network Printer",
	}))

	res, err := newTestEngine(f).Query(context.Background(), snmp.Target{IP: "10.0.0.40"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !res.LevelsUnavailable || !reflect.DeepEqual(res.Levels, map[string]int{"black": 50}) {
		t.Errorf("expected placeholder levels, got %v (unavailable=%v)", res.Levels, res.LevelsUnavailable)
	}
	if res.Faults[len(res.Faults)-1] != faultLevelsMissing {
		t.Errorf("Faults = %v", res.Faults)
	}
	if res.Status != StatusOnline {
		t.Errorf("placeholder level must not change status, got %s", res.Status)
	}
	if res.Serial != "SN-UNKNOWN-040" || res.Firmware != "v1.0" || res.Hostname != "PRT-40" {
		t.Errorf("unexpected defaults %+v", res)
	}
	if res.Parser != "Generic" {
		t.Errorf("Parser = %s", res.Parser)
	}
}

func TestSupplies(t *testing.T) {
	t.Parallel()

	f := newFleet()
	f.add("10.0.0.23", newBrotherDevice(12))

	got, err := newTestEngine(f).Supplies(context.Background(), snmp.Target{IP: "10.0.0.23", Brand: "brother"})
	if err != nil {
		t.Fatalf("Supplies: %v", err)
	}
	if got.Levels["black"] != 12 || got.Status != StatusWarning {
		t.Errorf("unexpected supply status %+v", got)
	}
	if len(got.Faults) == 0 || got.Faults[len(got.Faults)-1] != "Toner low (Black): consider replacing" {
		t.Errorf("Faults = %v", got.Faults)
	}
}
