// Package snmp wraps gosnmp with the small GET / subtree-walk surface used by
// the printer query engine and the discovery scanner.
package snmp

import (
	"context"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	DefaultPort    = 161
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 2
)

// Target describes one device to query. Brand may be empty at scan time.
type Target struct {
	IP        string
	Community string
	Brand     string
	Timeout   time.Duration
	Retries   int
	Port      uint16
}

func (t Target) withDefaults() Target {
	if t.Community == "" {
		t.Community = "public"
	}
	if t.Timeout <= 0 {
		t.Timeout = DefaultTimeout
	}
	if t.Retries < 0 {
		t.Retries = 0
	}
	if t.Port == 0 {
		t.Port = DefaultPort
	}
	return t
}

// Client defines the raw SNMP operations a Session needs.
type Client interface {
	Connect() error
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Walk(rootOid string, walkFn gosnmp.WalkFunc) error
	Close() error
}

// gosnmpClient wraps gosnmp.GoSNMP to implement Client.
type gosnmpClient struct {
	conn *gosnmp.GoSNMP
}

func (c *gosnmpClient) Connect() error {
	return c.conn.Connect()
}

func (c *gosnmpClient) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	return c.conn.Get(oids)
}

// Walk uses GETBULK for v2c agents.
func (c *gosnmpClient) Walk(rootOid string, walkFn gosnmp.WalkFunc) error {
	if c.conn.Version == gosnmp.Version1 {
		return c.conn.Walk(rootOid, walkFn)
	}
	return c.conn.BulkWalk(rootOid, walkFn)
}

func (c *gosnmpClient) Close() error {
	if c.conn.Conn == nil {
		return nil
	}
	return c.conn.Conn.Close()
}

func newClientImpl(ctx context.Context, t Target) (Client, error) {
	if t.IP == "" {
		return nil, fmt.Errorf("target IP required")
	}

	conn := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    t.IP,
		Port:      t.Port,
		Community: t.Community,
		Version:   gosnmp.Version2c,
		Timeout:   t.Timeout,
		Retries:   t.Retries,
		MaxOids:   gosnmp.MaxOids,
	}

	client := &gosnmpClient{conn: conn}
	if err := client.Connect(); err != nil {
		return nil, err
	}
	return client, nil
}

// NewClientFunc creates the underlying client for a target.
// It can be replaced with a mock for testing.
var NewClientFunc = newClientImpl

// Open connects to t and returns a Session. The UDP socket is created here but
// no packet is sent until the first Get/WalkSubtree.
func Open(ctx context.Context, t Target) (*Session, error) {
	t = t.withDefaults()
	client, err := NewClientFunc(ctx, t)
	if err != nil {
		return nil, &TransportError{Op: "connect", Target: t.IP, Err: err}
	}
	return NewSession(client, t), nil
}
