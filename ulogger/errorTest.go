package ulogger

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
	Logf(format string, args ...any)
}

type tHelper = interface {
	Helper()
}

// ErrorTestLogger forwards Errorf and Fatalf to the test log and drops everything else.
// When failOnError is set, an error or fatal log fails the test.
type ErrorTestLogger struct {
	t           TestingT
	failOnError atomic.Bool
	shutdown    atomic.Bool // prevents logging after test cleanup
}

func NewErrorTestLogger(t TestingT) *ErrorTestLogger {
	return &ErrorTestLogger{t: t}
}

func (l *ErrorTestLogger) FailOnError(fail bool) {
	l.failOnError.Store(fail)
}

// Shutdown marks the logger as shutdown, preventing further access to testing.T
func (l *ErrorTestLogger) Shutdown() {
	l.shutdown.Store(true)
}

func (l *ErrorTestLogger) LogLevel() int {
	return 0
}

func (l *ErrorTestLogger) SetLogLevel(_ string) {}

func (l *ErrorTestLogger) New(_ string, _ ...Option) Logger {
	return l
}

func (l *ErrorTestLogger) Duplicate(_ ...Option) Logger {
	return l
}

func (l *ErrorTestLogger) Debugf(_ string, _ ...interface{}) {}

func (l *ErrorTestLogger) Infof(_ string, _ ...interface{}) {}

func (l *ErrorTestLogger) Warnf(_ string, _ ...interface{}) {}

func (l *ErrorTestLogger) Errorf(format string, args ...interface{}) {
	l.log("ERR_LEVEL", format, args...)
}

func (l *ErrorTestLogger) Fatalf(format string, args ...interface{}) {
	l.log("FATAL_LEVEL", format, args...)
}

func (l *ErrorTestLogger) log(level string, format string, args ...interface{}) {
	if l.shutdown.Load() {
		return
	}

	if h, ok := l.t.(tHelper); ok {
		h.Helper()
	}

	_, file, line, _ := runtime.Caller(3)

	l.t.Logf(fmt.Sprintf("%s:%d: %s %s", file, line, level, format), args...)

	if l.failOnError.Load() {
		l.t.Errorf("unexpected %s log", level)
	}
}
