// Package util holds terminal helpers shared by the printwatch commands.
package util

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

var (
	mu         sync.Mutex
	out        io.Writer = os.Stdout
	quietMode  bool
	silentMode bool
)

// SetOutput redirects console output. Tests use it to capture messages.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	out = w
}

// SetQuietMode switches status lines to timestamped log-style output and
// hides the banner.
func SetQuietMode(quiet bool) {
	mu.Lock()
	defer mu.Unlock()
	quietMode = quiet
}

// SetSilentMode suppresses all output including errors. Silent implies quiet.
func SetSilentMode(silent bool) {
	mu.Lock()
	defer mu.Unlock()
	silentMode = silent
	if silent {
		quietMode = true
	}
}

// ShowBanner prints the component name with build and platform details.
func ShowBanner(version, gitCommit, buildTime, component string) {
	mu.Lock()
	defer mu.Unlock()
	if quietMode {
		return
	}
	host, _ := os.Hostname()
	fmt.Fprintf(out, "\n  %sPrintWatch %s%s\n", ColorBold, component, ColorReset)
	fmt.Fprintf(out, "  Version %s%s%s | Build %s%s%s | %s\n",
		ColorGreen, version, ColorReset, ColorYellow, gitCommit, ColorReset, buildTime)
	fmt.Fprintf(out, "  %s%s/%s | %s | %d cores%s\n\n",
		ColorDim, runtime.GOOS, runtime.GOARCH, host, runtime.NumCPU(), ColorReset)
}

func show(level, color, symbol, message string) {
	mu.Lock()
	defer mu.Unlock()
	if silentMode {
		return
	}
	if quietMode {
		fmt.Fprintf(out, "%s%s%s %s[%s]%s %s\n",
			ColorDim, time.Now().Format(time.RFC3339), ColorReset, color, level, ColorReset, message)
		return
	}
	fmt.Fprintf(out, "  %s%s%s %s\n", color, symbol, ColorReset, message)
}

// ShowSuccess displays a success message
func ShowSuccess(message string) { show("INFO", ColorGreen, "✓", message) }

// ShowInfo displays an info message
func ShowInfo(message string) { show("INFO", ColorCyan, "•", message) }

// ShowWarning displays a warning message
func ShowWarning(message string) { show("WARN", ColorYellow, "⚠", message) }

// ShowError displays an error message
func ShowError(message string) { show("ERROR", ColorRed, "✗", message) }
