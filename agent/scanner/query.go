package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"printwatch/agent/scanner/vendor"
	"printwatch/agent/supplies"
	"printwatch/common/logger"
	"printwatch/common/snmp"
	"printwatch/common/snmp/oids"

	"github.com/gosnmp/gosnmp"
)

// Device status values reported in QueryResult.Status.
const (
	StatusOnline  = "ONLINE"
	StatusWarning = "WARNING"
	StatusError   = "ERROR"
	StatusOffline = "OFFLINE"
)

const (
	defaultFirmware    = "v1.0"
	neutralPlaceholder = 50
	faultNotResponding = "Device not responding to SNMP"
	faultCheckSNMP     = "Check that SNMP is enabled, the community is correct and UDP 161 is not blocked"
	faultLevelsMissing = "Toner levels unavailable via SNMP"
	defaultSyncTimeout = 3 * time.Second
	defaultSyncRetries = 2
)

// OpenFunc opens an SNMP session. Tests substitute an in-memory agent.
type OpenFunc func(ctx context.Context, t snmp.Target) (*snmp.Session, error)

// QueryResult is the normalized hardware record for one printer.
type QueryResult struct {
	IP       string   `json:"ip"`
	Brand    string   `json:"brand"`
	Model    string   `json:"model"`
	Hostname string   `json:"hostname"`
	Serial   string   `json:"serial"`
	Firmware string   `json:"firmware"`
	Status   string   `json:"status"`
	Faults   []string `json:"errors"`

	Levels map[string]int `json:"levels"`
	// LevelsUnavailable is true when Levels holds the black:50 placeholder
	// rather than a device reading.
	LevelsUnavailable bool                            `json:"levelsUnavailable,omitempty"`
	CartridgeInfo     map[string]vendor.CartridgeInfo `json:"cartridgeInfo,omitempty"`

	DrumLife             *int `json:"drumLife,omitempty"`
	FuserLife            *int `json:"fuserLife,omitempty"`
	PaperKitLife         *int `json:"paperKitLife,omitempty"`
	NextMaintenancePages *int `json:"nextMaintenancePages,omitempty"`
	PageCount            *int `json:"pageCount,omitempty"`

	// SNMPAvailable is false for the OFFLINE placeholder.
	SNMPAvailable bool      `json:"snmpAvailable"`
	Parser        string    `json:"parser,omitempty"`
	QueriedAt     time.Time `json:"queriedAt"`
}

// SupplyStatus is the reduced record returned by Engine.Supplies.
type SupplyStatus struct {
	Levels            map[string]int `json:"levels"`
	Status            string         `json:"status"`
	Faults            []string       `json:"errors"`
	LevelsUnavailable bool           `json:"levelsUnavailable,omitempty"`
}

// EngineConfig tunes the query engine.
type EngineConfig struct {
	Timeout time.Duration
	Retries int
	Vendor  vendor.Options
	// Open defaults to snmp.Open.
	Open OpenFunc
	// Resolver is used by Sync for hostname recovery; defaults to
	// net.DefaultResolver.
	Resolver Resolver
	// Diagnose runs a community sweep when a sync cannot reach the device.
	Diagnose bool
}

// Engine runs printer queries against live devices.
type Engine struct {
	cfg      EngineConfig
	registry *vendor.Registry
}

// NewEngine builds an Engine; zero config fields take defaults.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSyncTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultSyncRetries
	}
	if cfg.Open == nil {
		cfg.Open = snmp.Open
	}
	if cfg.Resolver == nil {
		cfg.Resolver = defaultResolver
	}
	return &Engine{cfg: cfg, registry: vendor.NewRegistry(cfg.Vendor)}
}

// target fills engine defaults into t.
func (e *Engine) target(t snmp.Target) snmp.Target {
	if t.Timeout <= 0 {
		t.Timeout = e.cfg.Timeout
	}
	if t.Retries == 0 {
		t.Retries = e.cfg.Retries
	}
	return t
}

// Query reads one printer at t and normalizes the result. A device that does
// not answer, or stops answering before the vendor read completes, yields an
// OFFLINE placeholder and a nil error; the error return is reserved for a
// missing address, context cancellation and non-transport parser failures.
func (e *Engine) Query(ctx context.Context, t snmp.Target) (*QueryResult, error) {
	if strings.TrimSpace(t.IP) == "" {
		return nil, ErrIPRequired
	}
	t = e.target(t)
	brand := vendor.ParseBrand(t.Brand)

	session, err := e.cfg.Open(ctx, t)
	if err != nil {
		if logger.Global != nil {
			logger.Global.Warn("SNMP session open failed", "ip", t.IP, "error", err)
		}
		return offlineResult(t.IP, brand), nil
	}
	defer session.Close()

	descr, ok, err := session.GetOne(ctx, oids.SysDescr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if logger.Global != nil {
			logger.Global.Warn("SNMP not responding", "ip", t.IP, "community", t.Community, "error", err)
		}
		return offlineResult(t.IP, brand), nil
	}

	res := &QueryResult{
		IP:            t.IP,
		Brand:         string(brand),
		Status:        StatusOnline,
		SNMPAvailable: ok,
		QueriedAt:     time.Now().UTC(),
	}

	seed := e.fetchIdentity(ctx, session, t.IP, brand, descr, ok)
	res.Model = seed.Model
	res.Hostname = seed.SysName
	if res.Hostname == "" {
		res.Hostname = placeholderHostname(t.IP)
	}

	parser := e.registry.For(brand)
	res.Parser = parser.Name()
	parsed, err := parser.Parse(ctx, session, seed)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if snmp.IsTransportError(err) {
			if logger.Global != nil {
				logger.Global.Warn("Printer stopped answering during vendor read", "ip", t.IP, "parser", parser.Name(), "error", err)
			}
			return offlineResult(t.IP, brand), nil
		}
		return nil, fmt.Errorf("%s parser on %s: %w", parser.Name(), t.IP, err)
	}
	res.applyParsed(parsed)

	e.mergeDeviceStatus(ctx, session, res)
	mergeLevelFaults(res)

	normalize(res, brand)

	if logger.Global != nil {
		logger.Global.Info("Printer query complete",
			"ip", t.IP, "brand", res.Brand, "model", res.Model, "status", res.Status,
			"levels", res.Levels, "faults", len(res.Faults), "parser", res.Parser)
	}
	return res, nil
}

// Supplies runs a full query and returns only the supply view.
func (e *Engine) Supplies(ctx context.Context, t snmp.Target) (*SupplyStatus, error) {
	res, err := e.Query(ctx, t)
	if err != nil {
		return nil, err
	}
	return &SupplyStatus{
		Levels:            res.Levels,
		Status:            res.Status,
		Faults:            res.Faults,
		LevelsUnavailable: res.LevelsUnavailable,
	}, nil
}

// fetchIdentity reads the identity objects one at a time so a single missing
// object does not hide the others.
func (e *Engine) fetchIdentity(ctx context.Context, s *snmp.Session, ip string, brand vendor.Brand, descr gosnmp.SnmpPDU, haveDescr bool) vendor.Seed {
	seed := vendor.Seed{IP: ip, Brand: string(brand)}
	if haveDescr {
		seed.SysDescr = strings.TrimSpace(snmp.PDUString(descr))
	}

	read := func(oid, name string) string {
		pdu, ok, err := s.GetOne(ctx, oid)
		if err != nil {
			if logger.Global != nil {
				logger.Global.Debug("Identity read failed", "ip", ip, "object", name, "error", err)
			}
			return ""
		}
		if !ok {
			return ""
		}
		return strings.TrimSpace(snmp.PDUString(pdu))
	}
	seed.SysName = read(oids.SysName, "sysName")
	seed.HrDeviceDescr = read(oids.HrDeviceDescr, "hrDeviceDescr")
	seed.PrinterName = read(oids.PrtGeneralPrinterName, "prtGeneralPrinterName")

	raw := seed.HrDeviceDescr
	if raw == "" {
		raw = seed.PrinterName
	}
	if raw == "" {
		raw = seed.SysDescr
	}
	seed.Model = supplies.CleanModelName(raw, string(brand))
	return seed
}

func (r *QueryResult) applyParsed(p *vendor.Result) {
	if p == nil {
		r.Levels = map[string]int{}
		return
	}
	if p.Model != "" {
		r.Model = p.Model
	}
	r.Serial = p.Serial
	r.Firmware = p.Firmware
	r.Levels = p.Levels
	if r.Levels == nil {
		r.Levels = map[string]int{}
	}
	if len(p.CartridgeInfo) > 0 {
		r.CartridgeInfo = p.CartridgeInfo
	}
	r.Faults = append(r.Faults, p.Faults...)
	r.DrumLife = p.DrumLife
	r.FuserLife = p.FuserLife
	r.PaperKitLife = p.PaperKitLife
	r.NextMaintenancePages = p.NextMaintenancePages
	r.PageCount = p.PageCount
}

// offlineResult is the placeholder returned when the device does not answer.
// The serial is derived from the address so repeated polls agree.
func offlineResult(ip string, brand vendor.Brand) *QueryResult {
	return &QueryResult{
		IP:        ip,
		Brand:     string(brand),
		Model:     string(brand) + " Printer",
		Hostname:  placeholderHostname(ip),
		Serial:    placeholderSerial(ip, brand),
		Firmware:  defaultFirmware,
		Status:    StatusOffline,
		Faults:    []string{faultNotResponding, faultCheckSNMP},
		Levels:    map[string]int{},
		QueriedAt: time.Now().UTC(),
	}
}

// IsOffline reports whether r is the unreachable placeholder.
func (r *QueryResult) IsOffline() bool {
	return r != nil && r.Status == StatusOffline && !r.SNMPAvailable
}

func placeholderHostname(ip string) string {
	return "PRT-" + lastOctets(ip, 1)
}

func placeholderSerial(ip string, brand vendor.Brand) string {
	return fmt.Sprintf("SN-%s-%s", brand, lastOctets(ip, 2))
}
