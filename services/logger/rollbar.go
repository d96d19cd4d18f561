package logsvc

import (
	"fmt"
	"io"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/rs/zerolog"

	"github.com/trezcool/temario/core"
	"github.com/trezcool/temario/core/user"
)

// RollbarLogger reports to Rollbar (when a token is configured) and writes structured lines locally.
type RollbarLogger struct {
	local zerolog.Logger
	exit  func(code int) // mockable
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewLocalLogger returns the zerolog logger used for local output. Pretty console output in debug mode.
func NewLocalLogger(w io.Writer, conf *core.Config) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if conf.Debug {
		w = zerolog.ConsoleWriter{Out: w}
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", conf.AppName).Logger()
}

func NewRollbarLogger(local zerolog.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{local: local, exit: os.Exit}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := asUser(arg); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func asUser(arg interface{}) (user.User, bool) {
	switch usr := arg.(type) {
	case user.User:
		return usr, true
	case *user.User:
		if usr != nil {
			return *usr, true
		}
	}
	return user.User{}, false
}

func (l *RollbarLogger) write(ev *zerolog.Event, msg string, args []interface{}) {
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			ev = ev.Err(a)
		case map[string]interface{}:
			ev = ev.Fields(a)
		default:
			if usr, ok := asUser(a); ok {
				ev = ev.Str("user_id", usr.ID).Str("username", usr.Username)
			} else {
				ev = ev.Str("extra", fmt.Sprintf("%+v", a))
			}
		}
	}
	ev.Msg(msg)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.write(l.local.Debug(), msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.write(l.local.Info(), msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.write(l.local.Warn(), msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.write(l.local.Error(), msg, args)
}

// Fatal reports, flushes pending Rollbar items and exits.
func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.write(l.local.WithLevel(zerolog.FatalLevel), msg, args)
	rollbar.Wait()
	l.exit(1)
}
