package monitoring

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs redirects Logf for the duration of the test.
func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)
	Logf("tracker %d added", 7)
	require.Len(t, *lines, 1)
	assert.Equal(t, "tracker 7 added", (*lines)[0])

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted") })
	assert.Len(t, *lines, 1)
}

func TestLogf_Default(t *testing.T) {
	assert.NotNil(t, Logf)
}

func TestWarnf_Unlimited(t *testing.T) {
	lines := captureLogs(t)
	SetWarnRate(0, 0)
	t.Cleanup(func() { SetWarnRate(DefaultWarnRate, DefaultWarnBurst) })

	for i := 0; i < 50; i++ {
		Warnf("bad frame %d", i)
	}
	assert.Len(t, *lines, 50)
	assert.Equal(t, "Warning: bad frame 0", (*lines)[0])
}

func TestWarnf_SuppressesBeyondBurst(t *testing.T) {
	lines := captureLogs(t)
	// A tiny refill rate means only the burst gets through within the test.
	SetWarnRate(0.0001, 3)
	t.Cleanup(func() { SetWarnRate(DefaultWarnRate, DefaultWarnBurst) })

	for i := 0; i < 10; i++ {
		Warnf("checksum mismatch from %s", "10.0.0.9")
	}
	assert.Len(t, *lines, 3)
	assert.Equal(t, 7, SuppressedWarnings())

	// Reopen the budget; the next warning reports the suppressed count.
	SetWarnRate(0, 0)
	warnSuppressed = 7
	Warnf("unknown type 0x%02x", 0x7E)
	last := (*lines)[len(*lines)-1]
	assert.True(t, strings.HasSuffix(last, "(7 similar warnings suppressed)"), last)
	assert.Equal(t, 0, SuppressedWarnings())
}
