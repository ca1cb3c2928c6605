package redis

import (
	"strings"
	"testing"
	"time"
)

// --- Test: NewKVStore ---

func TestNewKVStore_CreatesWithConfig(t *testing.T) {
	cfg := Config{
		Addr:      "localhost:6379",
		Password:  "secret",
		DB:        1,
		TTL:       1 * time.Hour,
		KeyPrefix: "test",
	}

	store, err := NewKVStore(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	if store.ttl != cfg.TTL {
		t.Errorf("expected TTL=%v, got %v", cfg.TTL, store.ttl)
	}
	if store.keyPrefix != cfg.KeyPrefix {
		t.Errorf("expected keyPrefix=%s, got %s", cfg.KeyPrefix, store.keyPrefix)
	}
	if store.client == nil {
		t.Fatal("expected client, got nil")
	}
	if store.logger == nil {
		t.Fatal("expected logger, got nil")
	}
}

func TestNewKVStore_EmptyAddrReturnsError(t *testing.T) {
	_, err := NewKVStore(Config{}, nil)
	if err == nil {
		t.Fatal("expected error for empty addr, got nil")
	}
	if !strings.Contains(err.Error(), "redis address is required") {
		t.Errorf("expected 'redis address is required' error, got %v", err)
	}
}

// --- Test: ConfigDefaults ---

func TestConfigDefaults_ReturnsDefaults(t *testing.T) {
	defaults := ConfigDefaults()

	if defaults.Addr != "localhost:6379" {
		t.Errorf("expected Addr=localhost:6379, got %s", defaults.Addr)
	}
	if defaults.TTL != 0 {
		t.Errorf("expected TTL=0, got %v", defaults.TTL)
	}
	if defaults.KeyPrefix != "pyth-keeper" {
		t.Errorf("expected KeyPrefix=pyth-keeper, got %s", defaults.KeyPrefix)
	}
}

// --- Test: key ---

func TestKey(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{prefix: "pyth-keeper", key: "pythConfig", want: "pyth-keeper:pythConfig"},
		{prefix: "eth", key: "0xaa", want: "eth:0xaa"},
		{prefix: "", key: "lastPrice", want: "lastPrice"},
	}
	for _, tt := range tests {
		s := &KVStore{keyPrefix: tt.prefix}
		if got := s.key(tt.key); got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.key, tt.prefix, got, tt.want)
		}
	}
}
