package logging

import (
	"testing"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureCliLogging(t *testing.T) {
	defer ConfigureCliLogging(false, FormatText)

	require.NoError(t, ConfigureCliLogging(true, FormatJSON))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	require.NoError(t, ConfigureCliLogging(false, "PLAIN"))
	assert.Equal(t, log.InfoLevel, log.GetLevel())

	assert.Error(t, ConfigureCliLogging(false, "xml"))
}

func TestCommandLineFormatter(t *testing.T) {
	out, err := (&CommandLineFormatter{}).Format(&log.Entry{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestExtractStack(t *testing.T) {
	assert.NotNil(t, ExtractStack(errors.New("boom")))
	assert.NotNil(t, ExtractStack(errors.WithMessage(errors.New("boom"), "context")))
	assert.Nil(t, ExtractStack(nil))

	entry := WithStacktrace(log.NewEntry(log.StandardLogger()), errors.New("boom"))
	assert.Contains(t, entry.Data, "stacktrace")
}
