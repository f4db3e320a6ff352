package scanner

import (
	"context"
	"strings"
	"time"

	"printwatch/common/logger"
	"printwatch/common/snmp"
	"printwatch/common/snmp/oids"
)

const (
	diagnoseTimeout = 3 * time.Second
	diagnoseRetries = 1
)

var diagnoseCommunities = []string{"public", "private", "admin"}

// Diagnosis records which community, if any, answered a sysDescr probe.
type Diagnosis struct {
	IP        string   `json:"ip"`
	Reachable bool     `json:"reachable"`
	Community string   `json:"community,omitempty"`
	SysDescr  string   `json:"sysDescr,omitempty"`
	Tried     []string `json:"tried"`
}

// DiagnoseConnectivity tries community first and then the common defaults,
// one at a time, stopping at the first that answers.
func DiagnoseConnectivity(ctx context.Context, open OpenFunc, ip, community string) Diagnosis {
	if open == nil {
		open = snmp.Open
	}
	d := Diagnosis{IP: ip}

	for _, c := range candidateCommunities(community) {
		if ctx.Err() != nil {
			break
		}
		d.Tried = append(d.Tried, c)
		descr, ok := probeSysDescr(ctx, open, snmp.Target{IP: ip, Community: c, Timeout: diagnoseTimeout, Retries: diagnoseRetries})
		if !ok {
			continue
		}
		d.Reachable = true
		d.Community = c
		d.SysDescr = descr
		break
	}

	if logger.Global != nil {
		if d.Reachable {
			logger.Global.Info("SNMP connectivity check passed", "ip", ip, "community", d.Community, "sysDescr", truncate(d.SysDescr, 50))
		} else {
			logger.Global.Warn("SNMP connectivity check failed: SNMP disabled, wrong community, UDP 161 filtered or device off",
				"ip", ip, "tried", strings.Join(d.Tried, ","))
		}
	}
	return d
}

func candidateCommunities(first string) []string {
	out := make([]string, 0, len(diagnoseCommunities)+1)
	seen := make(map[string]bool)
	for _, c := range append([]string{first}, diagnoseCommunities...) {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func probeSysDescr(ctx context.Context, open OpenFunc, t snmp.Target) (string, bool) {
	s, err := open(ctx, t)
	if err != nil {
		return "", false
	}
	defer s.Close()
	pdu, ok, err := s.GetOne(ctx, oids.SysDescr)
	if err != nil || !ok {
		return "", false
	}
	return strings.TrimSpace(snmp.PDUString(pdu)), true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
