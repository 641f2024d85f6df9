package main

import (
	"fmt"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

// formatLogger adapts a glog.Logger to the format style bookhive.Logger
type formatLogger struct {
	l glog.Logger
}

func newLogger(name string, debug bool) *formatLogger {
	level := glog.Warn
	if debug {
		level = glog.Debug
	}

	base := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithName("bookhive"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	return &formatLogger{l: base.GetLogger(name)}
}

func (f *formatLogger) Debug(format string, args ...any) {
	f.l.Debug(fmt.Sprintf(format, args...))
}

func (f *formatLogger) Info(format string, args ...any) {
	f.l.Info(fmt.Sprintf(format, args...))
}

func (f *formatLogger) Warn(format string, args ...any) {
	f.l.Warn(fmt.Sprintf(format, args...))
}

func (f *formatLogger) Error(format string, args ...any) {
	f.l.Error(fmt.Sprintf(format, args...))
}
