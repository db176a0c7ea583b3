// Package logging provides the application logger. Entries go to a std
// logger and, when a token is configured, to Rollbar.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/diewo77/training-tracker/internal/config"
)

// Logger is implemented by every logger the services accept.
// expected args: error, map[string]interface{}, Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Person identifies the logged in user on a Rollbar item.
type Person struct {
	ID    string
	Name  string
	Email string
}

type RollbarLogger struct {
	std     *log.Logger
	enabled bool
}

var _ Logger = (*RollbarLogger)(nil)

// New builds the logger described by cfg. The returned closer flushes
// pending Rollbar items and closes the log file.
func New(cfg *config.Config) (*RollbarLogger, io.Closer, error) {
	var out io.Writer = os.Stdout
	var file *os.File
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		file = f
		out = io.MultiWriter(os.Stdout, f)
	}
	std := log.New(out, "", log.LstdFlags)
	l := NewRollbarLogger(std, cfg)
	return l, closerFunc(func() error {
		rollbar.Close()
		if file != nil {
			return file.Close()
		}
		return nil
	}), nil
}

func NewRollbarLogger(std *log.Logger, cfg *config.Config) *RollbarLogger {
	rollbar.SetToken(cfg.Logging.RollbarToken)
	rollbar.SetEnvironment(cfg.App.Env)
	rollbar.SetServerHost(cfg.Server.Host)
	rollbar.SetCodeVersion(cfg.App.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	l := &RollbarLogger{std: std}
	l.Enable(cfg.Logging.RollbarToken != "")
	return l
}

// NewStdLogger returns a logger that never reports to Rollbar.
func NewStdLogger(std *log.Logger) *RollbarLogger {
	if std == nil {
		std = log.New(os.Stdout, "", log.LstdFlags)
	}
	return &RollbarLogger{std: std}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.enabled = enabled
	rollbar.SetEnabled(enabled)
}

// Std exposes the underlying std logger for libraries that want one.
func (l *RollbarLogger) Std() *log.Logger { return l.std }

func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var personSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if p, ok := arg.(Person); ok {
			if !personSet {
				rollbar.SetPerson(p.ID, p.Name, p.Email)
				personSet = true
			}
			continue
		}
		newArgs = append(newArgs, arg)
	}
	if !personSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		if _, ok := arg.(Person); ok {
			continue
		}
		l.std.Printf("  %+v", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Debug(l.prepare(msg, args)...)
	}
	l.print("DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Info(l.prepare(msg, args)...)
	}
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Warning(l.prepare(msg, args)...)
	}
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Error(l.prepare(msg, args)...)
	}
	l.print("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Critical(l.prepare(msg, args)...)
		rollbar.Close()
	}
	l.print("FATAL", msg, args)
	l.std.Fatal(msg)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Discard is a Logger that drops everything. Handy in tests.
var Discard Logger = NewStdLogger(log.New(io.Discard, "", 0))
