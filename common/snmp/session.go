package snmp

import (
	"context"
	"errors"
	"fmt"

	"printwatch/common/logger"

	"github.com/gosnmp/gosnmp"
)

// maxWalkPDUs bounds a single subtree walk.
const maxWalkPDUs = 10000

var errWalkLimit = errors.New("walk limit reached")

// TransportError reports a timeout, unreachable host or malformed response.
// Per-varbind "no such object" conditions are not transport errors.
type TransportError struct {
	Op     string
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("snmp %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Session is a live handle on one target. It performs no retries beyond the
// per-packet retries configured on the Target.
type Session struct {
	client Client
	target Target
}

// NewSession wraps an already connected client.
func NewSession(client Client, t Target) *Session {
	return &Session{client: client, target: t.withDefaults()}
}

// Target returns the target this session talks to.
func (s *Session) Target() Target { return s.target }

// Get fetches oids in one request. The returned PDUs keep their per-varbind
// error types; use IsVarbindError to test them.
func (s *Session) Get(ctx context.Context, oids []string) ([]gosnmp.SnmpPDU, error) {
	if len(oids) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "get", Target: s.target.IP, Err: err}
	}

	packet, err := s.client.Get(oids)
	if err != nil {
		return nil, &TransportError{Op: "get", Target: s.target.IP, Err: err}
	}
	if packet == nil {
		return nil, &TransportError{Op: "get", Target: s.target.IP, Err: errors.New("empty response")}
	}

	switch packet.Error {
	case gosnmp.NoError:
	case gosnmp.NoSuchName:
		// v1-style agents flag the offending varbind through ErrorIndex.
		if idx := int(packet.ErrorIndex) - 1; idx >= 0 && idx < len(packet.Variables) {
			packet.Variables[idx].Type = gosnmp.NoSuchObject
		}
	default:
		return nil, &TransportError{Op: "get", Target: s.target.IP, Err: fmt.Errorf("error-status %v", packet.Error)}
	}

	if logger.Global != nil {
		logger.Global.TraceTag("snmp_transport", "GET", "ip", s.target.IP, "oids", len(oids), "varbinds", len(packet.Variables))
	}
	return packet.Variables, nil
}

// GetOne fetches a single OID. ok is false when the device returned a
// per-varbind error or no value.
func (s *Session) GetOne(ctx context.Context, oid string) (gosnmp.SnmpPDU, bool, error) {
	pdus, err := s.Get(ctx, []string{oid})
	if err != nil {
		return gosnmp.SnmpPDU{}, false, err
	}
	if len(pdus) == 0 || IsVarbindError(pdus[0]) {
		return gosnmp.SnmpPDU{}, false, nil
	}
	return pdus[0], true, nil
}

// WalkSubtree returns every varbind below root, skipping per-varbind errors.
func (s *Session) WalkSubtree(ctx context.Context, root string) ([]gosnmp.SnmpPDU, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "walk", Target: s.target.IP, Err: err}
	}

	var out []gosnmp.SnmpPDU
	err := s.client.Walk(root, func(pdu gosnmp.SnmpPDU) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if IsVarbindError(pdu) {
			return nil
		}
		out = append(out, pdu)
		if len(out) >= maxWalkPDUs {
			return errWalkLimit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errWalkLimit) {
		return nil, &TransportError{Op: "walk", Target: s.target.IP, Err: err}
	}
	if errors.Is(err, errWalkLimit) && logger.Global != nil {
		logger.Global.Warn("SNMP walk truncated", "ip", s.target.IP, "root", root, "limit", maxWalkPDUs)
	}

	if logger.Global != nil {
		logger.Global.TraceTag("snmp_transport", "WALK", "ip", s.target.IP, "root", root, "varbinds", len(out))
	}
	return out, nil
}

// Close releases the underlying socket.
func (s *Session) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
