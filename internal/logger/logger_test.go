package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerHonoursVerbosity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greeks.log")
	Init(Options{File: path})
	t.Cleanup(func() {
		Init(Options{})
		SetVerbosity(int(Info))
	})

	SetVerbosity(int(Info))
	Infof("enriching %s", "DJT")
	Debugf("hidden at info %d", 1)
	Tracef("hidden at info %d", 2)

	SetVerbosity(int(Trace))
	Tracef("visible at trace %d", 3)
	require.NoError(t, Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)

	assert.Contains(t, out, "enriching DJT")
	assert.Contains(t, out, "[TRACE] visible at trace 3")
	assert.NotContains(t, out, "hidden at info")
}

func TestSetVerbosityClamps(t *testing.T) {
	t.Cleanup(func() { SetVerbosity(int(Info)) })

	SetVerbosity(-4)
	assert.Equal(t, Error, Verbosity())

	SetVerbosity(42)
	assert.Equal(t, Trace, Verbosity())
}
