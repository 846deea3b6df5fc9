package utils

import (
	"testing"
)

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		logger, err := NewLogger(debug)
		if err != nil {
			t.Fatalf("NewLogger(%v) error: %v", debug, err)
		}
		if logger == nil {
			t.Fatalf("NewLogger(%v) returned nil logger", debug)
		}
		if got := logger.Core().Enabled(-1); got != debug {
			t.Errorf("NewLogger(%v): debug level enabled=%v", debug, got)
		}
		_ = logger.Sync()
	}
}
