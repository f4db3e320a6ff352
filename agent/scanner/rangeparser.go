package scanner

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultMaxAddresses caps a single scan request.
const DefaultMaxAddresses = 65536

// ParseError reports an error parsing one range expression.
type ParseError struct {
	Index int    `json:"index"`
	Expr  string `json:"expr"`
	Msg   string `json:"msg"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("range %d (%q): %s", e.Index+1, e.Expr, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrInvalidRange }

// ExpandRanges turns expressions of the form "a.b.c.d-N" (last octet from d
// to N) or a single "a.b.c.d" into a flat address list, in input order.
// Addresses repeated by overlapping expressions are emitted once.
func ExpandRanges(ranges []string, maxAddrs int) ([]string, error) {
	if maxAddrs <= 0 {
		maxAddrs = DefaultMaxAddresses
	}
	var ips []string
	seen := make(map[string]struct{})

	for i, raw := range ranges {
		expr := strings.TrimSpace(raw)
		if expr == "" {
			continue
		}
		base, end, err := parseLastOctetRange(expr)
		if err != nil {
			return nil, &ParseError{Index: i, Expr: expr, Msg: err.Error()}
		}
		start := ipToUint32(base)
		last := start&^0xff | uint32(end)
		if len(ips)+int(last-start)+1 > maxAddrs {
			return nil, &ParseError{Index: i, Expr: expr, Msg: fmt.Sprintf("expansion exceeds %d addresses", maxAddrs)}
		}
		for n := start; n <= last; n++ {
			ip := uint32ToIP(n).String()
			if _, dup := seen[ip]; dup {
				continue
			}
			seen[ip] = struct{}{}
			ips = append(ips, ip)
		}
	}
	return ips, nil
}

// parseLastOctetRange returns the first address and the final last-octet value.
func parseLastOctetRange(expr string) (net.IP, int, error) {
	left, right, isRange := strings.Cut(expr, "-")
	ip := parseIPv4(strings.TrimSpace(left))
	if ip == nil || strings.Count(left, ".") != 3 {
		return nil, 0, fmt.Errorf("invalid IPv4 address %q", left)
	}
	if !isRange {
		return ip, int(ip[3]), nil
	}

	end, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil || end < 0 || end > 255 {
		return nil, 0, fmt.Errorf("invalid end octet %q", right)
	}
	if end < int(ip[3]) {
		return nil, 0, fmt.Errorf("end octet %d below start %d", end, ip[3])
	}
	return ip, end, nil
}

func parseIPv4(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	return ip.To4()
}

func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uint32ToIP(n uint32) net.IP {
	return net.IPv4(byte(n>>24), byte(n>>16), byte(n>>8), byte(n)).To4()
}

// lastOctets returns the final n dotted octets of ip joined without dots
// ("192.168.1.50", 2 -> "150").
func lastOctets(ip string, n int) string {
	parts := strings.Split(ip, ".")
	if len(parts) < n {
		return strings.Join(parts, "")
	}
	return strings.Join(parts[len(parts)-n:], "")
}
