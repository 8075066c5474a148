package logger

import "testing"

func TestNew_Defaults(t *testing.T) {
	l, err := New(Config{})
	if err != nil {
		t.Fatalf("New with empty config failed: %v", err)
	}
	if l == nil {
		t.Fatal("New returned nil logger")
	}
	l.Debug("dropped at info level")
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "level", cfg: Config{Level: "trace", Encoding: "json"}},
		{name: "encoding", cfg: Config{Level: "info", Encoding: "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected a no-op logger")
	}
	l := Nop()
	if OrNop(l) != l {
		t.Error("expected the given logger to be returned")
	}
	OrNop(nil).Info("discarded")
}
