package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"printwatch/common/snmp"
	"printwatch/common/snmp/oids"
	"printwatch/common/snmp/snmptest"

	"github.com/gosnmp/gosnmp"
)

func newTestScanner(t *testing.T, f *fleet, cfg ScanConfig) *Scanner {
	t.Helper()
	cfg.Open = f.open
	if cfg.Resolver == nil {
		cfg.Resolver = staticAddrResolver{}
	}
	return NewScanner(cfg)
}

func discoveryFleet() *fleet {
	f := newFleet()
	f.add("10.1.0.10", newBrotherDevice(40))
	f.add("10.1.0.11", snmptest.NewDevice(map[string]interface{}{
		oids.SysDescr: "RouterOS CCR1009-7G-1C-1S+",
		oids.SysName:  "core-printer-vlan",
	}))
	f.add("10.1.0.12", snmptest.NewDevice(map[string]interface{}{
		oids.SysDescr:       "RICOH Aficio MP 301 1.02 / RICOH Network Printer C model",
		oids.HrDeviceDescr:  "RICOH Aficio MP 301",
		oids.RicohMachineID: "W3019500123",
	}))
	f.community["10.1.0.12"] = "private"
	return f
}

func TestScanFindsPrinters(t *testing.T) {
	t.Parallel()

	f := discoveryFleet()
	s := newTestScanner(t, f, ScanConfig{Resolver: staticAddrResolver{"10.1.0.10": "brn-frontdesk.lan"}})
	sink := &CollectingSink{}

	found, err := s.Scan(context.Background(), []string{"10.1.0.1-20"}, sink)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("found %d printers, want 2: %+v", len(found), found)
	}

	byIP := map[string]DiscoveredPrinter{}
	for _, p := range found {
		byIP[p.IP] = p
	}
	brother := byIP["10.1.0.10"]
	if brother.Brand != "BROTHER" || brother.Model != "Brother HL-L5100DN series" || brother.Hostname != "brn-frontdesk.lan" {
		t.Errorf("unexpected brother entry %+v", brother)
	}
	if brother.Serial != "E73456A1B234" || brother.Community != "public" || brother.Status != "discovered" {
		t.Errorf("unexpected brother entry %+v", brother)
	}
	ricoh := byIP["10.1.0.12"]
	if ricoh.Brand != "RICOH" || ricoh.Community != "private" || ricoh.Hostname != "10.1.0.12" || ricoh.Serial != "W3019500123" {
		t.Errorf("unexpected ricoh entry %+v", ricoh)
	}
	if _, ok := byIP["10.1.0.11"]; ok {
		t.Error("router must be excluded")
	}

	events := sink.Events()
	last := events[len(events)-1]
	if last.Type != EventComplete || last.Count == nil || *last.Count != 2 {
		t.Fatalf("last event = %+v, want complete with count 2", last)
	}
	var progress, foundEvents int
	scanID := events[0].ScanID
	for i, ev := range events {
		if ev.ScanID == "" || ev.ScanID != scanID {
			t.Errorf("event %d has scan id %q, want %q", i, ev.ScanID, scanID)
		}
		switch ev.Type {
		case EventProgress:
			progress++
			if ev.Progress.Total != 20 || ev.Progress.Current != progress {
				t.Errorf("progress event %d = %+v", progress, ev.Progress)
			}
		case EventFound:
			foundEvents++
			next := events[i+1]
			if next.Type != EventProgress || next.CurrentIP != ev.Printer.IP {
				t.Errorf("found event for %s not followed by its progress event", ev.Printer.IP)
			}
		}
	}
	if progress != 20 || foundEvents != 2 {
		t.Errorf("progress=%d found=%d", progress, foundEvents)
	}
}

func TestScanCommunitiesTriedInOrder(t *testing.T) {
	t.Parallel()

	f := discoveryFleet()
	s := newTestScanner(t, f, ScanConfig{DisableExtendedProbe: true})

	if _, err := s.Scan(context.Background(), []string{"10.1.0.12"}, nil); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	// public fails, private answers; the remaining communities are not tried.
	if n := f.openCount("10.1.0.12"); n != 2 {
		t.Errorf("opens = %d, want 2", n)
	}
}

// slowClient never answers; it records how many requests are in flight.
type slowClient struct {
	inflight *int64
	maxSeen  *int64
	delay    time.Duration
}

func (c *slowClient) Connect() error { return nil }
func (c *slowClient) Close() error   { return nil }

func (c *slowClient) Get([]string) (*gosnmp.SnmpPacket, error) {
	n := atomic.AddInt64(c.inflight, 1)
	for {
		m := atomic.LoadInt64(c.maxSeen)
		if n <= m || atomic.CompareAndSwapInt64(c.maxSeen, m, n) {
			break
		}
	}
	time.Sleep(c.delay)
	atomic.AddInt64(c.inflight, -1)
	return nil, snmptest.ErrTimeout
}

func (c *slowClient) Walk(string, gosnmp.WalkFunc) error { return snmptest.ErrTimeout }

func TestScanBatchesBoundConcurrency(t *testing.T) {
	t.Parallel()

	var inflight, maxSeen int64
	s := NewScanner(ScanConfig{
		Communities: []string{"public"},
		Open: func(_ context.Context, tgt snmp.Target) (*snmp.Session, error) {
			return snmp.NewSession(&slowClient{inflight: &inflight, maxSeen: &maxSeen, delay: 2 * time.Millisecond}, tgt), nil
		},
		Resolver: staticAddrResolver{},
	})
	if s.BatchSize() != DefaultBatchSize {
		t.Skipf("batch size clamped to %d by the open file limit", s.BatchSize())
	}
	var mu sync.Mutex
	var batches []int
	s.batchHook = func(n int) {
		mu.Lock()
		batches = append(batches, n)
		mu.Unlock()
	}

	ranges := []string{"10.2.0.1-100", "10.2.1.1-100"}
	found, err := s.Scan(context.Background(), ranges, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("found %d printers on a silent network", len(found))
	}
	if fmt.Sprint(batches) != "[80 80 40]" {
		t.Errorf("batches = %v, want [80 80 40]", batches)
	}
	if m := atomic.LoadInt64(&maxSeen); m > DefaultBatchSize {
		t.Errorf("max in-flight probes = %d, want <= %d", m, DefaultBatchSize)
	}
}

func TestScanStopsSchedulingOnCancel(t *testing.T) {
	t.Parallel()

	f := discoveryFleet()
	s := newTestScanner(t, f, ScanConfig{BatchSize: 5})
	var batches int32
	s.batchHook = func(int) { atomic.AddInt32(&batches, 1) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &CollectingSink{}
	cancelling := EventSinkFunc(func(ev Event) error {
		if ev.Type == EventProgress {
			cancel()
		}
		return sink.Emit(ev)
	})

	_, err := s.Scan(ctx, []string{"10.1.0.1-20"}, cancelling)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := atomic.LoadInt32(&batches); n != 1 {
		t.Errorf("batches started = %d, want 1", n)
	}
	var progress int
	for _, ev := range sink.Events() {
		if ev.Type == EventProgress {
			progress++
		}
	}
	if progress != 5 {
		t.Errorf("in-flight batch reported %d hosts, want all 5", progress)
	}
	events := sink.Events()
	if last := events[len(events)-1]; last.Type != EventError {
		t.Errorf("last event = %s, want error", last.Type)
	}
}

func TestScanStopsOnSinkError(t *testing.T) {
	t.Parallel()

	f := discoveryFleet()
	s := newTestScanner(t, f, ScanConfig{BatchSize: 4})
	var batches int32
	s.batchHook = func(int) { atomic.AddInt32(&batches, 1) }

	errGone := errors.New("client went away")
	var emitted int32
	sink := EventSinkFunc(func(Event) error {
		atomic.AddInt32(&emitted, 1)
		return errGone
	})

	_, err := s.Scan(context.Background(), []string{"10.1.0.1-20"}, sink)
	if !errors.Is(err, errGone) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if atomic.LoadInt32(&batches) != 1 || atomic.LoadInt32(&emitted) != 1 {
		t.Errorf("batches=%d emitted=%d, want 1 and 1", batches, emitted)
	}
}

func TestScanInvalidRange(t *testing.T) {
	t.Parallel()

	sink := &CollectingSink{}
	_, err := newTestScanner(t, newFleet(), ScanConfig{}).Scan(context.Background(), []string{"10.0.0.9-1"}, sink)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	events := sink.Events()
	if len(events) != 1 || events[0].Type != EventError || events[0].Message == "" {
		t.Errorf("events = %+v", events)
	}
}

func TestScanNothingFoundCompletes(t *testing.T) {
	t.Parallel()

	sink := &CollectingSink{}
	found, err := newTestScanner(t, newFleet(), ScanConfig{}).Scan(context.Background(), []string{"10.9.9.1-3"}, sink)
	if err != nil || len(found) != 0 {
		t.Fatalf("found=%v err=%v", found, err)
	}
	events := sink.Events()
	last := events[len(events)-1]
	if last.Type != EventComplete || *last.Count != 0 {
		t.Errorf("last event = %+v", last)
	}
}

func TestScanSeedsFromMDNS(t *testing.T) {
	t.Parallel()

	f := discoveryFleet()
	s := newTestScanner(t, f, ScanConfig{
		MDNSWindow: time.Second,
		Browse: func(context.Context, time.Duration) ([]string, error) {
			return []string{"10.1.0.2", "10.1.0.10"}, nil
		},
	})

	found, err := s.Scan(context.Background(), []string{"10.1.0.1-2"}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(found) != 1 || found[0].IP != "10.1.0.10" {
		t.Errorf("found = %+v", found)
	}
	if n := f.openCount("10.1.0.2"); n != len(DefaultCommunities) {
		t.Errorf("10.1.0.2 probed %d times, want once per community", n)
	}
}

func TestScanBrandFromSysObjectID(t *testing.T) {
	t.Parallel()

	f := newFleet()
	f.add("10.1.2.5", snmptest.NewDevice(map[string]interface{}{
		oids.SysDescr:    "Network Printer",
		oids.SysObjectID: "1.3.6.1.4.1.2435.2.3.9.1",
	}))
	f.add("10.1.2.6", snmptest.NewDevice(map[string]interface{}{
		oids.SysDescr: "Network Printer",
	}))
	s := newTestScanner(t, f, ScanConfig{Communities: []string{"public"}})

	found, err := s.Scan(context.Background(), []string{"10.1.2.5-6"}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	brands := map[string]string{}
	for _, p := range found {
		brands[p.IP] = p.Brand
	}
	if brands["10.1.2.5"] != "BROTHER" {
		t.Errorf("brand from enterprise OID = %q, want BROTHER", brands["10.1.2.5"])
	}
	if brands["10.1.2.6"] != "UNKNOWN" {
		t.Errorf("brand without sysObjectID = %q, want UNKNOWN", brands["10.1.2.6"])
	}
}
