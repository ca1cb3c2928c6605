package env

import (
	"log/slog"
	"testing"
	"time"
)

func TestGet(t *testing.T) {
	t.Setenv("PYTH_KEEPER_TEST_STR", "value")

	if got := Get("PYTH_KEEPER_TEST_STR", "default"); got != "value" {
		t.Errorf("Get = %q, want value", got)
	}
	if got := Get("PYTH_KEEPER_TEST_UNSET", "default"); got != "default" {
		t.Errorf("Get = %q, want default", got)
	}
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "unset uses default", raw: "", want: 3},
		{name: "parses", raw: "12", want: 12},
		{name: "rejects garbage", raw: "twelve", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PYTH_KEEPER_TEST_INT", tt.raw)
			got, err := GetInt("PYTH_KEEPER_TEST_INT", 3)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("GetInt = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetBoolAndDuration(t *testing.T) {
	t.Setenv("PYTH_KEEPER_TEST_BOOL", "true")
	t.Setenv("PYTH_KEEPER_TEST_DUR", "90s")

	b, err := GetBool("PYTH_KEEPER_TEST_BOOL", false)
	if err != nil || !b {
		t.Errorf("GetBool = %v, %v", b, err)
	}
	d, err := GetDuration("PYTH_KEEPER_TEST_DUR", time.Second)
	if err != nil || d != 90*time.Second {
		t.Errorf("GetDuration = %v, %v", d, err)
	}

	t.Setenv("PYTH_KEEPER_TEST_DUR", "soon")
	if _, err := GetDuration("PYTH_KEEPER_TEST_DUR", time.Second); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want slog.Level
	}{
		{raw: "debug", want: slog.LevelDebug},
		{raw: "WARN", want: slog.LevelWarn},
		{raw: "error", want: slog.LevelError},
		{raw: "", want: slog.LevelInfo},
		{raw: "verbose", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.raw)
			if got := ParseLogLevel(slog.LevelInfo); got != tt.want {
				t.Errorf("ParseLogLevel = %v, want %v", got, tt.want)
			}
		})
	}
}
