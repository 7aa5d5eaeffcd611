package config

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// SetLogOutput redirects log output. It must be called before the first Log.
func (c *Config) SetLogOutput(w io.Writer) {
	c.logOut = w
}

// Logger returns the shared logger, creating it on first use.
func (c *Config) Logger() *log.Logger {
	c.logOnce.Do(func() {
		out := c.logOut
		if out == nil {
			out = os.Stderr
		}
		c.logger = NewLogger(out, c.Logging)
	})
	return c.logger
}

// NewLogger builds a logger for the given settings. Verbosity 2 and above
// lowers the level to debug so resolution traces are visible.
func NewLogger(w io.Writer, settings LoggingConfig) *log.Logger {
	level, err := log.ParseLevel(settings.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if settings.Verbosity >= 2 && level > log.DebugLevel {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "vega",
		ReportTimestamp: true,
	})
}

// Log writes a message if level is within the configured verbosity.
// Level 0 is an error, 1 is informational, 2 and above are debug traces.
func (c *Config) Log(level int, format string, args ...interface{}) {
	if c == nil || level > c.Verbosity() {
		return
	}
	logger := c.Logger()
	msg := fmt.Sprintf(format, args...)
	switch {
	case level <= 0:
		logger.Error(msg)
	case level == 1:
		logger.Info(msg)
	default:
		logger.Debug(msg)
	}
}
