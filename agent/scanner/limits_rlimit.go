//go:build linux || darwin

package scanner

import (
	"printwatch/common/logger"

	"golang.org/x/sys/unix"
)

// fdReserve is kept back for the HTTP server, database and log files.
const fdReserve = 64

// clampBatchToFDLimit lowers batch so one socket per in-flight probe fits
// under the soft RLIMIT_NOFILE.
func clampBatchToFDLimit(batch int) int {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return batch
	}
	if rl.Cur > uint64(batch+fdReserve) {
		return batch
	}
	allowed := int(rl.Cur) - fdReserve
	if allowed < 1 {
		allowed = 1
	}
	if logger.Global != nil {
		logger.Global.Warn("Scan batch size reduced to fit open file limit", "requested", batch, "batch_size", allowed, "nofile", rl.Cur)
	}
	return allowed
}
