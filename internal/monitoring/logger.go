package monitoring

import (
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Default warning budget: five per second with bursts of ten.
const (
	DefaultWarnRate  = 5.0
	DefaultWarnBurst = 10
)

var (
	warnMu         sync.Mutex
	warnLimiter    = rate.NewLimiter(rate.Limit(DefaultWarnRate), DefaultWarnBurst)
	warnSuppressed int
)

// SetWarnRate replaces the warning budget. A non-positive perSecond disables
// limiting.
func SetWarnRate(perSecond float64, burst int) {
	warnMu.Lock()
	defer warnMu.Unlock()
	if perSecond <= 0 {
		warnLimiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		warnLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	warnSuppressed = 0
}

// Warnf logs a warning through Logf unless the warning budget is exhausted.
// Suppressed warnings are counted and reported with the next one let through.
func Warnf(format string, v ...interface{}) {
	warnMu.Lock()
	if !warnLimiter.AllowN(time.Now(), 1) {
		warnSuppressed++
		warnMu.Unlock()
		return
	}
	suppressed := warnSuppressed
	warnSuppressed = 0
	warnMu.Unlock()

	if suppressed > 0 {
		Logf("Warning: "+format+" (%d similar warnings suppressed)", append(v, suppressed)...)
		return
	}
	Logf("Warning: "+format, v...)
}

// SuppressedWarnings returns the number of warnings dropped since the last
// one was logged.
func SuppressedWarnings() int {
	warnMu.Lock()
	defer warnMu.Unlock()
	return warnSuppressed
}
