package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"printwatch/common/logger"
	"printwatch/common/snmp"

	"github.com/codeGROOVE-dev/retry"
)

// Resolver resolves hostnames; *net.Resolver satisfies it.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

var defaultResolver Resolver = net.DefaultResolver

const (
	resolveAttempts = 3
	resolveDelay    = 200 * time.Millisecond
	resolveMaxDelay = time.Second
)

// SyncRequest identifies a known printer to refresh.
type SyncRequest struct {
	IP        string `json:"ip"`
	Brand     string `json:"brand"`
	Community string `json:"community,omitempty"`
	// Hostname is the last known name, used to follow a DHCP address change.
	Hostname string `json:"hostname,omitempty"`
}

// SyncResult is a query result plus the address change, if one happened.
type SyncResult struct {
	*QueryResult
	IPUpdated  bool   `json:"ipUpdated"`
	PreviousIP string `json:"previousIP,omitempty"`
}

// Sync queries one known printer. When the device does not answer at req.IP
// and req.Hostname resolves to a different address, the query is repeated
// exactly once against that address. Otherwise an *UnreachableError naming
// the last attempted address is returned.
func (e *Engine) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	if strings.TrimSpace(req.IP) == "" {
		return nil, ErrIPRequired
	}
	target := snmp.Target{IP: req.IP, Community: req.Community, Brand: req.Brand}

	res, err := e.Query(ctx, target)
	if err == nil && !res.IsOffline() {
		return &SyncResult{QueryResult: res}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	// Diagnosis runs only for the address finally reported, after recovery
	// has been ruled out.
	first, firstCause := target, err
	giveUp := func() error { return e.unreachable(ctx, first, firstCause) }

	host := strings.TrimSpace(req.Hostname)
	if host == "" {
		return nil, giveUp()
	}
	newIP, rerr := e.resolveIPv4(ctx, host)
	if rerr != nil {
		if logger.Global != nil {
			logger.Global.Warn("Hostname recovery failed", "ip", req.IP, "hostname", host, "error", rerr)
		}
		return nil, giveUp()
	}
	if newIP == req.IP {
		return nil, giveUp()
	}

	if logger.Global != nil {
		logger.Global.Info("Printer address changed, retrying", "hostname", host, "previous_ip", req.IP, "ip", newIP)
	}
	target.IP = newIP
	res, err = e.Query(ctx, target)
	if err != nil || res.IsOffline() {
		return nil, e.unreachable(ctx, target, err)
	}
	return &SyncResult{QueryResult: res, IPUpdated: true, PreviousIP: req.IP}, nil
}

// unreachable builds the error for a failed attempt, running connectivity
// diagnosis when enabled.
func (e *Engine) unreachable(ctx context.Context, t snmp.Target, cause error) *UnreachableError {
	ue := &UnreachableError{IP: t.IP, Err: cause}
	if e.cfg.Diagnose {
		d := DiagnoseConnectivity(ctx, e.cfg.Open, t.IP, t.Community)
		ue.Diagnosis = &d
	}
	return ue
}

// resolveIPv4 returns the first IPv4 address for host. Temporary resolver
// failures are retried with backoff.
func (e *Engine) resolveIPv4(ctx context.Context, host string) (string, error) {
	ip, err := retry.DoWithData(func() (string, error) {
		addrs, err := e.cfg.Resolver.LookupIP(ctx, "ip4", host)
		if err != nil {
			return "", err
		}
		for _, a := range addrs {
			if v4 := a.To4(); v4 != nil {
				return v4.String(), nil
			}
		}
		return "", fmt.Errorf("no IPv4 address for %s", host)
	},
		retry.Attempts(resolveAttempts),
		retry.Delay(resolveDelay),
		retry.MaxDelay(resolveMaxDelay),
		retry.Context(ctx),
		retry.RetryIf(isTemporaryDNSError),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", host, err)
	}
	return ip, nil
}

func isTemporaryDNSError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	return false
}
