package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Prefix(t *testing.T) {
	var buf bytes.Buffer
	record := func(level string) func(string, ...interface{}) {
		return func(format string, args ...interface{}) {
			fmt.Fprintf(&buf, level+" "+format+"\n", args...)
		}
	}

	logger := NewLogger("module: test , ", LogFuncs{
		Debugf: record("D"),
		Infof:  record("I"),
		Warnf:  record("W"),
		Errorf: record("E"),
	})

	logger.Infof("started pid %d", 42)
	logger.Warnf("stale")
	logger.LogLevelf(LevelError, "boom %s", "now")
	logger.LogLevelf(LevelDebug, "details")

	assert.Equal(t,
		"I module: test , started pid 42\n"+
			"W module: test , stale\n"+
			"E module: test , boom now\n"+
			"D module: test , details\n",
		buf.String())
}

func TestNewLogger_MissingFuncs(t *testing.T) {
	logger := NewLogger("", LogFuncs{})

	assert.NotPanics(t, func() {
		logger.Debugf("x")
		logger.Infof("x")
		logger.Warnf("x")
		logger.Errorf("x")
		logger.LogLevelf(99, "x")
	})
}

func TestNopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNopLogger().Errorf("ignored %d", 1)
	})
}
