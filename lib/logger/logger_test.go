package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Setup(&Settings{
		Level:   "debug",
		Path:    dir,
		Name:    "test",
		MaxSize: 1,
	}))
	defer Close()

	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	logrus.WithField("conn", "01ABC").Debug("hello from test")

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
	assert.Contains(t, string(data), "conn=01ABC")

	require.NoError(t, Close())
	require.NoError(t, Close())
}

func TestSetupStdout(t *testing.T) {
	require.NoError(t, Setup(&Settings{Level: "warn", Stdout: true}))
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	require.NoError(t, Setup(&Settings{}))
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func TestSetupInvalidLevel(t *testing.T) {
	assert.Error(t, Setup(&Settings{Level: "chatty"}))
}
