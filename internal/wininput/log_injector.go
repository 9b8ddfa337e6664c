package wininput

import "log/slog"

// LogInjector records input at info level instead of injecting it. The peer uses it for
// dry runs and on hosts without SendInput.
type LogInjector struct {
	log *slog.Logger
}

var _ Injector = (*LogInjector)(nil)

// NewLogInjector returns a LogInjector writing to log, or slog.Default when nil.
func NewLogInjector(log *slog.Logger) *LogInjector {
	if log == nil {
		log = slog.Default()
	}
	return &LogInjector{log: log}
}

// MoveAbs logs a cursor move.
func (l *LogInjector) MoveAbs(x, y int) error {
	l.log.Info("input: move", "x", x, "y", y)
	return nil
}

// LeftDown logs a button press.
func (l *LogInjector) LeftDown() error {
	l.log.Info("input: left down")
	return nil
}

// LeftUp logs a button release.
func (l *LogInjector) LeftUp() error {
	l.log.Info("input: left up")
	return nil
}

// ClickAt logs a click.
func (l *LogInjector) ClickAt(x, y int) error {
	l.log.Info("input: click", "x", x, "y", y)
	return nil
}

// Zoom logs zoom notches.
func (l *LogInjector) Zoom(notches int) error {
	l.log.Info("input: zoom", "notches", notches)
	return nil
}
