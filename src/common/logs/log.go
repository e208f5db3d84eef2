// Package logs provides a common logging facility for Auriga tools.
// Output goes to stderr or to systemd journald depending on configuration;
// interactive installer runs normally want stderr, cron-driven deployments
// want journald.
package logs

import (
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
)

// Output defines the destination for log records
type Output string

const (
	// OutputStderr sends logs to standard error
	OutputStderr Output = "stderr"
	// OutputJournald sends logs to systemd journald
	OutputJournald Output = "journald"
	// OutputAuto selects journald when available, otherwise stderr
	OutputAuto Output = "auto"
)

// Logger wraps the charm log.Logger with output selection
type Logger struct {
	*log.Logger
	output Output
}

// Config holds logger configuration
type Config struct {
	// Output specifies where logs should be sent (stderr, journald, auto)
	Output Output
	// Level sets the minimum log level (debug, info, warn, error)
	Level string
	// Prefix sets a prefix for all log messages, usually the tool name
	Prefix string
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Output: OutputStderr,
		Level:  "info",
		Prefix: "",
	}
}

func journaldAvailable() bool {
	if _, err := exec.LookPath("systemd-cat"); err != nil {
		return false
	}
	if _, err := os.Stat("/run/systemd/journal/socket"); err != nil {
		return false
	}
	return true
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New creates a Logger with the given configuration
func New(cfg Config) *Logger {
	var writer io.Writer
	var output Output

	switch cfg.Output {
	case OutputJournald, OutputAuto:
		if journaldAvailable() {
			writer = newJournaldWriter()
			output = OutputJournald
		} else {
			writer = os.Stderr
			output = OutputStderr
		}
	default:
		writer = os.Stderr
		output = OutputStderr
	}

	logger := log.NewWithOptions(writer, log.Options{
		Level:           parseLevel(cfg.Level),
		Prefix:          cfg.Prefix,
		ReportTimestamp: true,
		ReportCaller:    false,
	})

	return &Logger{
		Logger: logger,
		output: output,
	}
}

// NewDefault creates a Logger with default configuration
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// Output returns the active output destination
func (l *Logger) Output() Output {
	return l.output
}

// journaldWriter sends records to journald via systemd-cat
type journaldWriter struct {
	identifier string
}

func newJournaldWriter() *journaldWriter {
	return &journaldWriter{identifier: "auriga"}
}

// Write implements io.Writer for journald
func (w *journaldWriter) Write(p []byte) (n int, err error) {
	cmd := exec.Command("systemd-cat", "-t", w.identifier)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return os.Stderr.Write(p)
	}

	if err := cmd.Start(); err != nil {
		return os.Stderr.Write(p)
	}

	n, err = stdin.Write(p)
	stdin.Close()
	_ = cmd.Wait()

	return n, err
}
