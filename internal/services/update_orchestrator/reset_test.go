package update_orchestrator

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/memory"
	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/services/config_cache"
)

func (h *harness) reset() ([]string, error) {
	return h.svc.Reset(context.Background(), Invocation{
		Storage: h.store,
		Secrets: memory.Secrets{SecretConfigSource: "gist-id"},
	})
}

func TestReset_DeletesOwnedKeys(t *testing.T) {
	h := newHarness(t, feedAA, feedBB)
	h.setCurrent(feedAA, 100, 1000)
	h.setCurrent(feedBB, 200, 1000)
	if d := h.run(); !d.CanExec {
		t.Fatalf("bootstrap run: %s", d.Message)
	}
	_ = h.store.Set(context.Background(), LegacyLastPriceKey, "{}")
	_ = h.store.Set(context.Background(), "unrelated", "keep")

	deleted, err := h.reset()
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}

	want := []string{feedAA.Hex(), feedBB.Hex(), config_cache.StorageKey, LegacyLastPriceKey}
	if !slices.Equal(deleted, want) {
		t.Errorf("deleted = %v, want %v", deleted, want)
	}
	snap := h.store.Snapshot()
	if len(snap) != 1 || snap["unrelated"] != "keep" {
		t.Errorf("remaining state = %v", snap)
	}

	// The next run bootstraps again.
	if d := h.run(); !d.CanExec {
		t.Errorf("run after reset: %s", d.Message)
	}
}

func TestReset_RecoversFromCorruptConfig(t *testing.T) {
	h := newHarness(t)
	h.store = memory.NewKVStoreFrom(map[string]string{
		config_cache.StorageKey: "{not json",
		feedAA.Hex():            "{}",
	})

	deleted, err := h.reset()
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !slices.Contains(deleted, feedAA.Hex()) {
		t.Errorf("feed key not deleted: %v", deleted)
	}
	if snap := h.store.Snapshot(); len(snap) != 0 {
		t.Errorf("remaining state = %v", snap)
	}
	if got := len(h.source.Calls()); got != 1 {
		t.Errorf("config fetches = %d, want 1", got)
	}
}

func TestReset_Errors(t *testing.T) {
	boom := errors.New("store down")

	t.Run("no storage", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.svc.Reset(context.Background(), Invocation{}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("no config source", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Reset(context.Background(), Invocation{Storage: h.store})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("partial delete failure", func(t *testing.T) {
		h := newHarness(t, feedAA, feedBB)
		h.store.SetDeleteHook(func(key string) error {
			if key == feedBB.Hex() {
				return boom
			}
			return nil
		})

		deleted, err := h.reset()
		var se *entity.StorageError
		if !errors.As(err, &se) || se.Op != "delete" || se.Key != feedBB.Hex() {
			t.Fatalf("expected delete StorageError for feed BB, got %v", err)
		}
		if slices.Contains(deleted, feedBB.Hex()) || !slices.Contains(deleted, feedAA.Hex()) {
			t.Errorf("deleted = %v", deleted)
		}
	})
}
