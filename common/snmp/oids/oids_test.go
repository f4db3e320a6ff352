package oids

import (
	"strings"
	"testing"
)

func TestOIDsAreValidFormat(t *testing.T) {
	t.Parallel()

	oids := []struct {
		name string
		oid  string
	}{
		{"SysDescr", SysDescr},
		{"SysName", SysName},
		{"HrDeviceDescr", HrDeviceDescr},
		{"HrDeviceStatus", HrDeviceStatus},
		{"HrPrinterDetectedErrorState", HrPrinterDetectedErrorState},
		{"PrtGeneralPrinterName", PrtGeneralPrinterName},
		{"PrtGeneralSerialNumber", PrtGeneralSerialNumber},
		{"PrtAlertDescription", PrtAlertDescription},
		{"PrtMarkerSuppliesDesc", PrtMarkerSuppliesDesc},
		{"PrtMarkerSuppliesLevel", PrtMarkerSuppliesLevel},
		{"PrtMarkerSuppliesMaxCap", PrtMarkerSuppliesMaxCap},
		{"BrotherMaintenance", BrotherMaintenance},
		{"BrotherNextCare", BrotherNextCare},
		{"RicohTonerRemaining", RicohTonerRemaining},
		{"PantumTonerLevels", PantumTonerLevels},
	}

	for _, tc := range oids {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if strings.HasPrefix(tc.oid, ".") || strings.HasSuffix(tc.oid, ".") {
				t.Errorf("%s = %q has a stray dot", tc.name, tc.oid)
			}
			for _, part := range strings.Split(tc.oid, ".") {
				if part == "" {
					t.Fatalf("%s = %q contains an empty arc", tc.name, tc.oid)
				}
				for _, r := range part {
					if r < '0' || r > '9' {
						t.Fatalf("%s = %q contains non-numeric arc %q", tc.name, tc.oid, part)
					}
				}
			}
		})
	}
}

func TestProbeSets(t *testing.T) {
	t.Parallel()

	if len(BasicProbe) != 3 {
		t.Fatalf("BasicProbe has %d OIDs, want 3", len(BasicProbe))
	}
	if BasicProbe[0] != SysDescr {
		t.Errorf("BasicProbe[0] = %s, want sysDescr first", BasicProbe[0])
	}
	if len(ExtendedProbe) != 4 {
		t.Fatalf("ExtendedProbe has %d OIDs, want 4", len(ExtendedProbe))
	}
}

func TestBrotherSerialPriority(t *testing.T) {
	t.Parallel()

	if BrotherSerialOIDs[0] != PrtGeneralSerialNumber {
		t.Errorf("standard serial must be tried first, got %s", BrotherSerialOIDs[0])
	}
	if BrotherSerialOIDs[len(BrotherSerialOIDs)-1] != BrotherNCDeviceInfo {
		t.Errorf("NC device info must be tried last")
	}
}
