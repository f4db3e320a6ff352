// Package snmptest provides an in-memory SNMP agent for tests.
package snmptest

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"printwatch/common/snmp"

	"github.com/gosnmp/gosnmp"
)

// ErrTimeout is returned by an unreachable Device.
var ErrTimeout = errors.New("request timeout (after 0 retries)")

// Device is a fake agent keyed by OID. It implements snmp.Client.
// Values are []byte, string or int; a string is returned as an OctetString.
type Device struct {
	mu     sync.Mutex
	values map[string]interface{}

	// Unreachable makes every request fail with ErrTimeout.
	Unreachable bool
	// WalkErr, when set, is returned by Walk.
	WalkErr error
	// SilentAfter, when positive, makes every request after the first
	// SilentAfter ones (GETs and walks together) time out.
	SilentAfter int

	gets     int
	requests int
	walks    []string
}

// silent must be called with d.mu held; it counts the request.
func (d *Device) silent() bool {
	d.requests++
	return d.Unreachable || (d.SilentAfter > 0 && d.requests > d.SilentAfter)
}

// NewDevice returns a Device answering with values.
func NewDevice(values map[string]interface{}) *Device {
	d := &Device{values: make(map[string]interface{}, len(values))}
	for k, v := range values {
		d.values[snmp.NormalizeOID(k)] = v
	}
	return d
}

// Set adds or replaces a value.
func (d *Device) Set(oid string, v interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[snmp.NormalizeOID(oid)] = v
}

func (d *Device) Connect() error { return nil }

func (d *Device) Close() error { return nil }

// Get answers every requested OID; unknown ones come back as NoSuchObject.
func (d *Device) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gets++
	if d.silent() {
		return nil, ErrTimeout
	}
	pkt := &gosnmp.SnmpPacket{}
	for _, oid := range oids {
		key := snmp.NormalizeOID(oid)
		v, ok := d.values[key]
		if !ok {
			pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: "." + key, Type: gosnmp.NoSuchObject})
			continue
		}
		pkt.Variables = append(pkt.Variables, toPDU(key, v))
	}
	return pkt, nil
}

// Walk visits every stored OID under root in numeric order.
func (d *Device) Walk(root string, fn gosnmp.WalkFunc) error {
	d.mu.Lock()
	d.walks = append(d.walks, snmp.NormalizeOID(root))
	if d.silent() {
		d.mu.Unlock()
		return ErrTimeout
	}
	if d.WalkErr != nil {
		err := d.WalkErr
		d.mu.Unlock()
		return err
	}
	var keys []string
	for k := range d.values {
		if snmp.HasPrefixOID(k, root) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return lessOID(keys[i], keys[j]) })
	pdus := make([]gosnmp.SnmpPDU, 0, len(keys))
	for _, k := range keys {
		pdus = append(pdus, toPDU(k, d.values[k]))
	}
	d.mu.Unlock()

	for _, pdu := range pdus {
		if err := fn(pdu); err != nil {
			return err
		}
	}
	return nil
}

// Gets returns the number of GET requests served.
func (d *Device) Gets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gets
}

// Walks returns the roots walked so far.
func (d *Device) Walks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.walks...)
}

// Session wraps the device in a snmp.Session for ip.
func (d *Device) Session(ip string) *snmp.Session {
	return snmp.NewSession(d, snmp.Target{IP: ip})
}

func toPDU(oid string, v interface{}) gosnmp.SnmpPDU {
	pdu := gosnmp.SnmpPDU{Name: "." + oid, Value: v}
	switch val := v.(type) {
	case string:
		pdu.Type = gosnmp.OctetString
		pdu.Value = []byte(val)
	case []byte:
		pdu.Type = gosnmp.OctetString
	case int:
		pdu.Type = gosnmp.Integer
	case uint:
		pdu.Type = gosnmp.Gauge32
	}
	return pdu
}

func lessOID(a, b string) bool {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		x, _ := strconv.Atoi(pa[i])
		y, _ := strconv.Atoi(pb[i])
		if x != y {
			return x < y
		}
	}
	return len(pa) < len(pb)
}
