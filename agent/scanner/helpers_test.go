package scanner

import (
	"context"
	"errors"
	"net"
	"sync"

	"printwatch/common/snmp"
	"printwatch/common/snmp/snmptest"
)

var errNoRoute = errors.New("no route to host")

// fleet maps addresses to fake agents and counts session opens.
type fleet struct {
	mu      sync.Mutex
	devices map[string]*snmptest.Device
	// community, when set for an address, is the only one it answers.
	community map[string]string
	opens     map[string]int
}

func newFleet() *fleet {
	return &fleet{
		devices:   make(map[string]*snmptest.Device),
		community: make(map[string]string),
		opens:     make(map[string]int),
	}
}

func (f *fleet) add(ip string, d *snmptest.Device) *snmptest.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[ip] = d
	return d
}

func (f *fleet) open(_ context.Context, t snmp.Target) (*snmp.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens[t.IP]++
	d, ok := f.devices[t.IP]
	if !ok {
		return nil, errNoRoute
	}
	if want, ok := f.community[t.IP]; ok && want != t.Community {
		silent := snmptest.NewDevice(nil)
		silent.Unreachable = true
		return snmp.NewSession(silent, t), nil
	}
	return snmp.NewSession(d, t), nil
}

func (f *fleet) openCount(ip string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[ip]
}

// staticResolver answers LookupIP from a fixed table.
type staticResolver struct {
	mu      sync.Mutex
	hosts   map[string][]net.IP
	err     error
	lookups int
}

func (r *staticResolver) LookupIP(_ context.Context, _, host string) ([]net.IP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.err != nil {
		return nil, r.err
	}
	ips, ok := r.hosts[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return ips, nil
}

// staticAddrResolver answers reverse lookups from a fixed table.
type staticAddrResolver map[string]string

func (r staticAddrResolver) LookupAddr(_ context.Context, addr string) ([]string, error) {
	if name, ok := r[addr]; ok {
		return []string{name + "."}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: addr, IsNotFound: true}
}

// brotherBuffer returns a 60-byte maintenance buffer with toner at offset 41
// and a healthy drum.
func brotherBuffer(toner byte) []byte {
	b := make([]byte, 60)
	b[1] = 20
	b[41] = toner
	return b
}
