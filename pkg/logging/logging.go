// Package logging provides the leveled logger used by the resampling engine
// and the command line tool. Messages go to stdout unless a log file is
// configured, in which case the file is rotated by size and age.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/natefinch/lumberjack"
)

// ModeFlag is the minimum severity a message needs to be written
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

// Logger provides a way for the engine to log messages at different severities.
type Logger interface {
	// Debugf formats its arguments analogous to fmt.Printf and records the text
	// as a log message at Debug level.
	Debugf(format string, args ...interface{})

	// Infof is like Debugf, but at Info level.
	Infof(format string, args ...interface{})

	// Warningf is like Debugf, but at Warning level.
	Warningf(format string, args ...interface{})

	// Errorf is like Debugf, but at Error level.
	Errorf(format string, args ...interface{})
}

// Config controls where log messages are written.
type Config struct {
	// Logfile is the path of the rotated log file; empty logs to stdout
	Logfile string `yaml:"logfile" toml:"logfile"`

	// MaxSize is the size in megabytes at which the log file is rotated
	MaxSize int `yaml:"maxSize" toml:"max_log_size"`

	// MaxAge is the number of days rotated files are kept
	MaxAge int `yaml:"maxAge" toml:"max_log_age"`

	// Verbose enables Debug level messages
	Verbose bool `yaml:"verbose" toml:"verbose"`
}

// StdLogger writes prefixed messages through the standard log package.
type StdLogger struct {
	mode    ModeFlag
	out     *log.Logger
	rotator *lumberjack.Logger
}

// New creates a logger from the configuration. A nil configuration logs at
// Info level to stdout.
func New(c *Config) *StdLogger {
	l := &StdLogger{mode: InfoMode}
	var w io.Writer = os.Stdout
	if c != nil {
		if c.Verbose {
			l.mode = DebugMode
		}
		if c.Logfile != "" {
			l.rotator = &lumberjack.Logger{
				Filename: c.Logfile,
				MaxSize:  c.MaxSize, // megabytes
				MaxAge:   c.MaxAge,  // days
			}
			w = l.rotator
		}
	}
	l.out = log.New(w, "", log.LstdFlags)
	return l
}

// NewWithWriter creates a logger writing to w at the given mode.
func NewWithWriter(w io.Writer, mode ModeFlag) *StdLogger {
	return &StdLogger{mode: mode, out: log.New(w, "", 0)}
}

// SetMode sets the severity required for a message to be written.
func (l *StdLogger) SetMode(mode ModeFlag) {
	l.mode = mode
}

func (l *StdLogger) write(mode ModeFlag, tag, format string, args []interface{}) {
	if l.mode > mode {
		return
	}
	l.out.Printf("%s %s", tag, fmt.Sprintf(format, args...))
}

func (l *StdLogger) Debugf(format string, args ...interface{}) {
	l.write(DebugMode, "DEBUG", format, args)
}

func (l *StdLogger) Infof(format string, args ...interface{}) {
	l.write(InfoMode, "INFO", format, args)
}

func (l *StdLogger) Warningf(format string, args ...interface{}) {
	l.write(WarningMode, "WARNING", format, args)
}

func (l *StdLogger) Errorf(format string, args ...interface{}) {
	l.write(ErrorMode, "ERROR", format, args)
}

// Shutdown closes the log file, if any.
func (l *StdLogger) Shutdown() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

type discard struct{}

func (discard) Debugf(string, ...interface{})   {}
func (discard) Infof(string, ...interface{})    {}
func (discard) Warningf(string, ...interface{}) {}
func (discard) Errorf(string, ...interface{})   {}

// Discard is a Logger that drops every message.
var Discard Logger = discard{}
