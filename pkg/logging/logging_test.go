package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem0.log")

	require.NoError(t, Setup(Config{Level: "debug", Format: "logfmt", File: path}))
	defer func() {
		Close()
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	}()

	log.Info("memory search degraded", "user_id", "u1")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "memory search degraded"))
	assert.True(t, strings.Contains(string(data), "user_id=u1"))
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	err := Setup(Config{Level: "chatty"})
	assert.Error(t, err)
}
