package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&log.JSONFormatter{})

	logFailure(logger, errors.Wrap(errors.New("connection refused"), "reading addresses"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "miload failed", entry["msg"])
	assert.Equal(t, "reading addresses: connection refused", entry["error"])
	assert.Contains(t, entry, "stacktrace")
}

func TestRootCommand_LeavesErrorsToLogger(t *testing.T) {
	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--no-such-flag"})
	defer func() {
		rootCmd.SetErr(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-flag")
	assert.NotContains(t, stderr.String(), "Error:")
}

func TestParseDuration(t *testing.T) {
	rootCmd.Flags().Set("duration", "2.5")
	d, err := parseDuration("duration")
	require.NoError(t, err)
	assert.Equal(t, "2.5s", d.String())

	rootCmd.Flags().Set("duration", "1m30s")
	d, err = parseDuration("duration")
	require.NoError(t, err)
	assert.Equal(t, "1m30s", d.String())

	rootCmd.Flags().Set("duration", "soon")
	_, err = parseDuration("duration")
	assert.Error(t, err)

	rootCmd.Flags().Set("duration", "5")
}
