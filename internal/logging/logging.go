package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	// FormatPlain prints the bare message, for output that is read by people.
	FormatPlain = "plain"
)

// CommandLineFormatter prints only the message of an entry.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s\n", entry.Message)), nil
}

// ConfigureCliLogging sends logs to stderr so stdout stays free for reports
// and worker envelopes.
func ConfigureCliLogging(verbose bool, format string) error {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	switch strings.ToLower(format) {
	case "", FormatText:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		log.SetFormatter(&log.JSONFormatter{})
	case FormatPlain:
		log.SetFormatter(&CommandLineFormatter{})
	default:
		return errors.Errorf("unknown log format %q", format)
	}
	return nil
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type causer interface {
	Cause() error
}

// WithStacktrace adds err and, when one is recorded, its stack trace to entry.
func WithStacktrace(entry *log.Entry, err error) *log.Entry {
	entry = entry.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		entry = entry.WithField("stacktrace", fmt.Sprintf("%+v", stack))
	}
	return entry
}

// ExtractStack returns the first stack trace found walking down the causes of err.
func ExtractStack(err error) errors.StackTrace {
	if s, ok := err.(stackTracer); ok {
		return s.StackTrace()
	} else if c, ok := err.(causer); ok {
		return ExtractStack(c.Cause())
	}
	return nil
}
