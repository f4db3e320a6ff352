package scanner

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"printwatch/agent/scanner/vendor"
	"printwatch/common/logger"
	"printwatch/common/snmp"
	"printwatch/common/snmp/oids"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Discovery defaults.
const (
	DefaultBatchSize            = 80
	DefaultProbeTimeout         = 6 * time.Second
	DefaultProbeRetries         = 1
	DefaultExtendedProbeTimeout = 3 * time.Second
	reverseLookupTimeout        = 2 * time.Second
)

// DefaultCommunities are tried in order on every host.
var DefaultCommunities = []string{"public", "private", "admin", "password"}

// AddrResolver performs reverse lookups; *net.Resolver satisfies it.
type AddrResolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// BrowseFunc returns candidate IPv4 addresses found by service discovery.
type BrowseFunc func(ctx context.Context, window time.Duration) ([]string, error)

// ScanConfig tunes a discovery scan. Zero fields take the defaults above.
type ScanConfig struct {
	Communities          []string
	BatchSize            int
	ProbeTimeout         time.Duration
	ProbeRetries         int
	ExtendedProbeTimeout time.Duration
	DisableExtendedProbe bool
	DisableReverseLookup bool
	MaxAddresses         int

	// MDNSWindow > 0 browses for printers before probing and adds the
	// addresses found to the candidate list.
	MDNSWindow time.Duration

	Open     OpenFunc
	Resolver AddrResolver
	Browse   BrowseFunc
}

// DiscoveredPrinter is the identity guess for one host.
type DiscoveredPrinter struct {
	IP        string `json:"ip"`
	Hostname  string `json:"hostname"`
	Brand     string `json:"brand"`
	Model     string `json:"model"`
	Serial    string `json:"serial,omitempty"`
	SysDescr  string `json:"sysDescr,omitempty"`
	Community string `json:"community"`
	Status    string `json:"status"`
}

// Scanner discovers printers by probing address ranges in fixed-size batches.
type Scanner struct {
	cfg ScanConfig

	// batchHook observes each batch size before it starts.
	batchHook func(size int)
}

// NewScanner returns a Scanner with defaults applied.
func NewScanner(cfg ScanConfig) *Scanner {
	if len(cfg.Communities) == 0 {
		cfg.Communities = DefaultCommunities
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	cfg.BatchSize = clampBatchToFDLimit(cfg.BatchSize)
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.ProbeRetries <= 0 {
		cfg.ProbeRetries = DefaultProbeRetries
	}
	if cfg.ExtendedProbeTimeout <= 0 {
		cfg.ExtendedProbeTimeout = DefaultExtendedProbeTimeout
	}
	if cfg.Open == nil {
		cfg.Open = snmp.Open
	}
	if cfg.Resolver == nil {
		cfg.Resolver = net.DefaultResolver
	}
	if cfg.Browse == nil {
		cfg.Browse = BrowsePrinters
	}
	return &Scanner{cfg: cfg}
}

// BatchSize returns the effective batch size after fd-limit clamping.
func (s *Scanner) BatchSize() int { return s.cfg.BatchSize }

// Scan expands ranges and probes every address, emitting events to sink as
// hosts complete. It stops scheduling batches when ctx ends or sink fails;
// probes already running finish.
func (s *Scanner) Scan(ctx context.Context, ranges []string, sink EventSink) ([]DiscoveredPrinter, error) {
	scanID := uuid.NewString()
	if sink == nil {
		sink = EventSinkFunc(func(Event) error { return nil })
	}

	ips, err := ExpandRanges(ranges, s.cfg.MaxAddresses)
	if err != nil {
		_ = sink.Emit(Event{Type: EventError, ScanID: scanID, Message: err.Error()})
		return nil, err
	}
	if s.cfg.MDNSWindow > 0 {
		ips = s.seedFromMDNS(ctx, ips)
	}
	return s.scanIPs(ctx, scanID, ips, sink)
}

func (s *Scanner) seedFromMDNS(ctx context.Context, ips []string) []string {
	found, err := s.cfg.Browse(ctx, s.cfg.MDNSWindow)
	if err != nil {
		if logger.Global != nil {
			logger.Global.Warn("mDNS browse failed", "error", err)
		}
		return ips
	}
	seen := make(map[string]bool, len(ips))
	for _, ip := range ips {
		seen[ip] = true
	}
	added := 0
	for _, ip := range found {
		if !seen[ip] {
			seen[ip] = true
			ips = append(ips, ip)
			added++
		}
	}
	if logger.Global != nil && added > 0 {
		logger.Global.Info("mDNS added scan candidates", "count", added)
	}
	return ips
}

// scanState is shared by the probes of one scan.
type scanState struct {
	mu      sync.Mutex
	sink    EventSink
	scanID  string
	total   int
	done    int
	found   []DiscoveredPrinter
	sinkErr error
}

// emit delivers ev unless the sink already failed. Callers hold mu.
func (st *scanState) emit(ev Event) {
	if st.sinkErr != nil {
		return
	}
	ev.ScanID = st.scanID
	if err := st.sink.Emit(ev); err != nil {
		st.sinkErr = err
	}
}

func (st *scanState) hostDone(ip string, p *DiscoveredPrinter) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.done++
	if p != nil {
		st.found = append(st.found, *p)
		st.emit(Event{Type: EventFound, Printer: p})
	}
	st.emit(Event{Type: EventProgress, Progress: &Progress{Current: st.done, Total: st.total}, CurrentIP: ip})
}

func (s *Scanner) scanIPs(ctx context.Context, scanID string, ips []string, sink EventSink) ([]DiscoveredPrinter, error) {
	st := &scanState{sink: sink, scanID: scanID, total: len(ips)}
	started := time.Now()
	if logger.Global != nil {
		logger.Global.Info("Network scan started", "scan_id", scanID, "hosts", len(ips), "batch_size", s.cfg.BatchSize)
	}

	// Probes run on a context that ignores cancellation so a batch in flight
	// completes; ctx is only consulted between batches.
	probeCtx := context.WithoutCancel(ctx)

	var stopErr error
	for start := 0; start < len(ips); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		st.mu.Lock()
		sinkErr := st.sinkErr
		st.mu.Unlock()
		if sinkErr != nil {
			stopErr = fmt.Errorf("event sink: %w", sinkErr)
			break
		}

		end := start + s.cfg.BatchSize
		if end > len(ips) {
			end = len(ips)
		}
		batch := ips[start:end]
		if s.batchHook != nil {
			s.batchHook(len(batch))
		}

		var g errgroup.Group
		g.SetLimit(s.cfg.BatchSize)
		for _, ip := range batch {
			g.Go(func() error {
				p := s.probeHost(probeCtx, ip)
				st.hostDone(ip, p)
				return nil
			})
		}
		_ = g.Wait()
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if stopErr == nil && st.sinkErr != nil {
		stopErr = fmt.Errorf("event sink: %w", st.sinkErr)
	}
	if stopErr != nil {
		st.emit(Event{Type: EventError, Message: "scan stopped: " + stopErr.Error()})
		if logger.Global != nil {
			logger.Global.Warn("Network scan stopped", "scan_id", scanID, "scanned", st.done, "found", len(st.found), "error", stopErr)
		}
		return st.found, stopErr
	}

	count := len(st.found)
	st.emit(Event{Type: EventComplete, Count: &count})
	if logger.Global != nil {
		logger.Global.Info("Network scan complete", "scan_id", scanID, "hosts", len(ips), "found", count, "elapsed", time.Since(started).Round(time.Millisecond))
	}
	return st.found, nil
}

// probeHost tries each community in turn and returns nil for hosts that do
// not answer or are not printers.
func (s *Scanner) probeHost(ctx context.Context, ip string) *DiscoveredPrinter {
	for _, community := range s.cfg.Communities {
		basic, ok := s.basicProbe(ctx, ip, community)
		if !ok {
			continue
		}
		if logger.Global != nil {
			logger.Global.TraceTag("discovery_probe", "SNMP answered", "ip", ip, "community", community)
		}
		var ext extendedInfo
		if !s.cfg.DisableExtendedProbe {
			ext = s.extendedProbe(ctx, ip, community)
		}
		return s.identify(ctx, ip, community, basic, ext)
	}
	return nil
}

type basicInfo struct {
	sysDescr, sysName, hrDeviceDescr string
}

type extendedInfo struct {
	printerName, serial, machineID string
}

// basicProbe succeeds when sysDescr comes back without a varbind error.
func (s *Scanner) basicProbe(ctx context.Context, ip, community string) (basicInfo, bool) {
	vals, err := s.probe(ctx, snmp.Target{IP: ip, Community: community, Timeout: s.cfg.ProbeTimeout, Retries: s.cfg.ProbeRetries}, oids.BasicProbe)
	if err != nil || vals[0] == nil {
		return basicInfo{}, false
	}
	return basicInfo{sysDescr: deref(vals[0]), sysName: deref(vals[1]), hrDeviceDescr: deref(vals[2])}, true
}

// extendedProbe is best-effort; any failure yields empty fields.
func (s *Scanner) extendedProbe(ctx context.Context, ip, community string) extendedInfo {
	vals, err := s.probe(ctx, snmp.Target{IP: ip, Community: community, Timeout: s.cfg.ExtendedProbeTimeout, Retries: s.cfg.ProbeRetries}, oids.ExtendedProbe)
	if err != nil {
		if logger.Global != nil {
			logger.Global.TraceTag("discovery_probe", "Extended probe failed", "ip", ip, "error", err)
		}
		return extendedInfo{}
	}
	return extendedInfo{printerName: deref(vals[0]), serial: deref(vals[1]), machineID: deref(vals[2])}
}

// probe GETs oids in one request and returns one entry per OID; nil marks a
// varbind error.
func (s *Scanner) probe(ctx context.Context, t snmp.Target, list []string) ([]*string, error) {
	sess, err := s.cfg.Open(ctx, t)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	pdus, err := sess.Get(ctx, list)
	if err != nil {
		return nil, err
	}
	out := make([]*string, len(list))
	for i := range out {
		if i < len(pdus) && !snmp.IsVarbindError(pdus[i]) {
			v := strings.TrimSpace(snmp.PDUString(pdus[i]))
			out[i] = &v
		}
	}
	return out, nil
}

func (s *Scanner) identify(ctx context.Context, ip, community string, b basicInfo, ext extendedInfo) *DiscoveredPrinter {
	c := Classify(b.sysDescr, b.sysName, b.hrDeviceDescr, ext.printerName)
	if c.Excluded || !c.IsPrinter {
		if logger.Global != nil {
			logger.Global.TraceTag("discovery_probe", "Host skipped", "ip", ip, "excluded", c.Excluded, "sysDescr", truncate(b.sysDescr, 60))
		}
		return nil
	}

	if c.Brand == vendor.BrandUnknown {
		if brand, ok := s.objectIDBrand(ctx, ip, community); ok {
			c.Brand = brand
			c.Model = extractModel(b.hrDeviceDescr, b.sysDescr, brand)
		}
	}

	serial := ext.serial
	if serial == "" {
		serial = ext.machineID
	}
	p := &DiscoveredPrinter{
		IP:        ip,
		Hostname:  s.reverseLookup(ctx, ip),
		Brand:     string(c.Brand),
		Model:     c.Model,
		Serial:    serial,
		SysDescr:  b.sysDescr,
		Community: community,
		Status:    "discovered",
	}
	if logger.Global != nil {
		logger.Global.Info("Printer discovered", "ip", ip, "brand", p.Brand, "model", p.Model, "community", community)
	}
	return p
}

// objectIDBrand reads sysObjectID when no keyword named the manufacturer and
// maps its enterprise number to a brand. Failures are ignored.
func (s *Scanner) objectIDBrand(ctx context.Context, ip, community string) (vendor.Brand, bool) {
	vals, err := s.probe(ctx, snmp.Target{IP: ip, Community: community, Timeout: s.cfg.ExtendedProbeTimeout, Retries: s.cfg.ProbeRetries}, []string{oids.SysObjectID})
	if err != nil || vals[0] == nil {
		return "", false
	}
	brand, ok := vendor.BrandFromSysObjectID(*vals[0])
	if ok && logger.Global != nil {
		logger.Global.TraceTag("discovery_probe", "Brand from sysObjectID", "ip", ip, "sysObjectID", *vals[0], "brand", brand)
	}
	return brand, ok
}

func (s *Scanner) reverseLookup(ctx context.Context, ip string) string {
	if s.cfg.DisableReverseLookup {
		return ip
	}
	ctx, cancel := context.WithTimeout(ctx, reverseLookupTimeout)
	defer cancel()
	names, err := s.cfg.Resolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ip
	}
	return strings.TrimSuffix(names[0], ".")
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
