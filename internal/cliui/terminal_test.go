package cliui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_HonorsForceTTYOverride(t *testing.T) {
	t.Setenv("UNITYTOOL_FORCE_TTY", "1")
	assert.True(t, Detect().IsTTY)

	t.Setenv("UNITYTOOL_FORCE_TTY", "0")
	assert.False(t, Detect().IsTTY)
}

func TestDetect_FallsBackToColumnsEnv(t *testing.T) {
	t.Setenv("UNITYTOOL_FORCE_TTY", "0")
	t.Setenv("COLUMNS", "120")
	info := Detect()
	assert.GreaterOrEqual(t, info.Width, 1)
}
