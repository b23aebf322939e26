// Package mocklogger provides a ulogger.Logger that records what was logged.
package mocklogger

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bsv-blockchain/utxodump/ulogger"
)

// MockLogger records every call per level together with the formatted message.
// Loggers created through New and Duplicate share the recording.
type MockLogger struct {
	mu       *sync.Mutex
	calls    map[string]int
	messages map[string][]string
}

func NewTestLogger() *MockLogger {
	return &MockLogger{
		mu:       &sync.Mutex{},
		calls:    make(map[string]int),
		messages: make(map[string][]string),
	}
}

func (l *MockLogger) LogLevel() int {
	return 0
}

func (l *MockLogger) SetLogLevel(_ string) {}

func (l *MockLogger) New(_ string, _ ...ulogger.Option) ulogger.Logger {
	return l
}

func (l *MockLogger) Duplicate(_ ...ulogger.Option) ulogger.Logger {
	return l
}

func (l *MockLogger) Debugf(format string, args ...interface{}) {
	l.record("Debugf", format, args...)
}

func (l *MockLogger) Infof(format string, args ...interface{}) {
	l.record("Infof", format, args...)
}

func (l *MockLogger) Warnf(format string, args ...interface{}) {
	l.record("Warnf", format, args...)
}

func (l *MockLogger) Errorf(format string, args ...interface{}) {
	l.record("Errorf", format, args...)
}

func (l *MockLogger) Fatalf(format string, args ...interface{}) {
	l.record("Fatalf", format, args...)
}

func (l *MockLogger) record(methodName string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls[methodName]++
	l.messages[methodName] = append(l.messages[methodName], fmt.Sprintf(format, args...))
}

// AssertNumberOfCalls is a test helper that verifies the expected number of calls to a method.
func (l *MockLogger) AssertNumberOfCalls(t *testing.T, methodName string, expectedCalls int) {
	t.Helper()

	l.mu.Lock()
	defer l.mu.Unlock()

	if actualCalls := l.calls[methodName]; actualCalls != expectedCalls {
		t.Errorf("Expected %v calls to %s, got %v", expectedCalls, methodName, actualCalls)
	}
}

// Calls returns the number of calls made to methodName.
func (l *MockLogger) Calls(methodName string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.calls[methodName]
}

// Messages returns a copy of the formatted messages logged through methodName.
func (l *MockLogger) Messages(methodName string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.messages[methodName]...)
}

// Contains reports whether any message logged through methodName contains substr.
func (l *MockLogger) Contains(methodName string, substr string) bool {
	for _, m := range l.Messages(methodName) {
		if strings.Contains(m, substr) {
			return true
		}
	}

	return false
}

// Reset clears all recorded method calls.
func (l *MockLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = make(map[string]int)
	l.messages = make(map[string][]string)
}
