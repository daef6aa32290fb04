package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsUpTo(t *testing.T) {
	levels := levelsUpTo(logrus.WarnLevel)
	assert.Contains(t, levels, logrus.ErrorLevel)
	assert.Contains(t, levels, logrus.WarnLevel)
	assert.NotContains(t, levels, logrus.InfoLevel)
}

func TestFileOutput(t *testing.T) {
	cfg := GenerateTestConfig(t)
	cfg.DisableConsole = true
	cfg.FileLevel = logrus.InfoLevel
	SetDefaultConfig(cfg)
	defer SetDefaultConfig(&Config{ConsoleLevel: logrus.InfoLevel})

	logger := NewLogger()
	logger.Debugf("debug-should-not-appear")
	logger.Infof("info-should-appear")

	data, err := os.ReadFile(filepath.Join(cfg.FileDir, logFileName))
	require.Nil(t, err)
	assert.Contains(t, string(data), "info-should-appear")
	assert.NotContains(t, string(data), "debug-should-not-appear")
}

func TestDefaultIsShared(t *testing.T) {
	SetDefaultConfig(GenerateTestConfig(t))
	defer SetDefaultConfig(&Config{ConsoleLevel: logrus.InfoLevel})

	assert.Same(t, Default(), Default())
	assert.NotSame(t, Default(), NewLogger())
	assert.Equal(t, logrus.DebugLevel, Default().GetLevel())
}
