package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

func TestKVStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewKVStore()

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("Get on empty store = ok %v, err %v", ok, err)
	}
	if err := s.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("Get = %q, %v, %v; want v2", v, ok, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("key should be gone after Delete")
	}
}

func TestKVStore_Hooks(t *testing.T) {
	ctx := context.Background()
	s := NewKVStoreFrom(map[string]string{"a": "1"})
	boom := errors.New("boom")

	s.SetSetHook(func(key, _ string) error {
		if key == "bad" {
			return boom
		}
		return nil
	})
	s.SetGetHook(func(key string) error {
		if key == "a" {
			return boom
		}
		return nil
	})

	if err := s.Set(ctx, "bad", "x"); !errors.Is(err, boom) {
		t.Errorf("Set bad = %v, want boom", err)
	}
	if err := s.Set(ctx, "good", "x"); err != nil {
		t.Errorf("Set good: %v", err)
	}
	if _, _, err := s.Get(ctx, "a"); !errors.Is(err, boom) {
		t.Errorf("Get a = %v, want boom", err)
	}

	snap := s.Snapshot()
	if _, ok := snap["bad"]; ok {
		t.Error("failed Set must not store the value")
	}
	if snap["good"] != "x" {
		t.Errorf("snapshot good = %q", snap["good"])
	}

	gets, sets := s.Counts()
	if gets != 1 || sets != 2 {
		t.Errorf("counts = %d gets, %d sets; want 1, 2", gets, sets)
	}
}

func TestSecrets_Get(t *testing.T) {
	s := Secrets{"GIST_ID": "abc"}
	if v, ok, err := s.Get(context.Background(), "GIST_ID"); err != nil || !ok || v != "abc" {
		t.Errorf("Get = %q, %v, %v", v, ok, err)
	}
	if _, ok, _ := s.Get(context.Background(), "OTHER"); ok {
		t.Error("expected missing secret")
	}
}

func TestDecisionSink_PublishAndClose(t *testing.T) {
	ctx := context.Background()
	sink := NewDecisionSink()

	var seen int
	sink.SetOnPublish(func(outbound.DecisionEvent) error {
		seen++
		return nil
	})

	event := outbound.DecisionEvent{InvocationID: "1", Decision: entity.NoAction("nothing")}
	if err := sink.Publish(ctx, event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := sink.Events(); len(got) != 1 || got[0].InvocationID != "1" {
		t.Errorf("Events = %+v", got)
	}
	if seen != 1 {
		t.Errorf("callback called %d times, want 1", seen)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sink.Publish(ctx, event); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("Publish after Close = %v, want ErrSinkClosed", err)
	}
}
