package internal

import (
	"errors"
	"testing"
)

func TestCheckErrLogPassesErrorThrough(t *testing.T) {
	if err := CheckErrLog(WARN, "Test", "context", nil); err != nil {
		t.Fatalf("nil error should pass through: %v", err)
	}
	want := errors.New("boom")
	if err := CheckErrLog(WARN, "Test", "context", want); err != want {
		t.Fatalf("error should be returned for propagation, got %v", err)
	}
}

func TestShouldLogRespectsLevel(t *testing.T) {
	SetLogLevel(WARN)
	defer SetLogLevel(ERROR)
	if shouldLog(DEBUG) || shouldLog(INFO) {
		t.Error("below-threshold levels should be suppressed")
	}
	if !shouldLog(WARN) || !shouldLog(ERROR) {
		t.Error("at/above-threshold levels should be written")
	}
}
