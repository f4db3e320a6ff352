package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"printwatch/common/logger"

	"github.com/grandcat/zeroconf"
)

// printerServiceTypes are the DNS-SD services printers advertise.
var printerServiceTypes = []string{"_ipp._tcp", "_ipps._tcp", "_printer._tcp"}

// BrowsePrinters browses the local link for printer services for window and
// returns the IPv4 addresses seen, sorted.
func BrowsePrinters(ctx context.Context, window time.Duration) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	var firstErr error

	for _, st := range printerServiceTypes {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, err
		}
		entries := make(chan *zeroconf.ServiceEntry)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case e, ok := <-entries:
					if !ok {
						return
					}
					mu.Lock()
					for _, ip := range e.AddrIPv4 {
						seen[ip.String()] = struct{}{}
					}
					mu.Unlock()
				}
			}
		}()

		if logger.Global != nil {
			logger.Global.Debug("mDNS browse start", "service", st)
		}
		if err := resolver.Browse(ctx, st, "local.", entries); err != nil && firstErr == nil {
			firstErr = err
			if logger.Global != nil {
				logger.Global.Debug("mDNS browse error", "service", st, "error", err)
			}
		}
	}

	<-ctx.Done()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 && firstErr != nil {
		return nil, firstErr
	}
	ips := make([]string, 0, len(seen))
	for ip := range seen {
		ips = append(ips, ip)
	}
	sort.Slice(ips, func(i, j int) bool { return lessIPv4(ips[i], ips[j]) })
	return ips, nil
}

// lessIPv4 orders dotted IPv4 strings numerically; unparsable ones sort last.
func lessIPv4(a, b string) bool {
	return ipOrder(a) < ipOrder(b)
}

func ipOrder(s string) uint64 {
	ip := parseIPv4(s)
	if ip == nil {
		return 1 << 32
	}
	return uint64(ipToUint32(ip))
}
