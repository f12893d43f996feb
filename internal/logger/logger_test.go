package logger

import "testing"

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewLevelSelection(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantDebug bool
	}{
		{name: "default info", opts: Options{}, wantDebug: false},
		{name: "debug flag", opts: Options{Debug: true}, wantDebug: true},
		{name: "explicit level wins", opts: Options{Debug: true, Level: "warn"}, wantDebug: false},
		{name: "json encoding", opts: Options{JSON: true, Level: "debug"}, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := log.Core().Enabled(-1); got != tt.wantDebug {
				t.Fatalf("expected debug enabled=%v, got %v", tt.wantDebug, got)
			}
		})
	}
}
