//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
	"github.com/archon-research/stl/pyth-keeper/internal/testutil"
)

func TestKVStore_RoundTrip(t *testing.T) {
	pool, cleanup := testutil.SetupPostgres(t)
	defer cleanup()
	ctx := context.Background()

	store, err := NewKVStore(pool, "eth-mainnet", testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}

	if _, ok, err := store.Get(ctx, "0xaa"); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "0xaa", "first"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "0xaa", "second"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	value, ok, err := store.Get(ctx, "0xaa")
	if err != nil || !ok || value != "second" {
		t.Fatalf("Get = %q ok=%v err=%v, want second", value, ok, err)
	}

	if err := store.Delete(ctx, "0xaa"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "0xaa"); ok {
		t.Error("key still present after Delete")
	}
	if err := store.Delete(ctx, "0xaa"); err != nil {
		t.Errorf("Delete of absent key: %v", err)
	}
}

func TestKVStore_NamespacesAreIsolated(t *testing.T) {
	pool, cleanup := testutil.SetupPostgres(t)
	defer cleanup()
	ctx := context.Background()

	a, _ := NewKVStore(pool, "a", nil)
	b, _ := NewKVStore(pool, "b", nil)

	if err := a.Set(ctx, "pythConfig", "from-a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "pythConfig"); ok {
		t.Error("namespace b sees namespace a's key")
	}
}

func TestDecisionLog_Publish(t *testing.T) {
	pool, cleanup := testutil.SetupPostgres(t)
	defer cleanup()
	ctx := context.Background()

	log, err := NewDecisionLog(pool, "eth-mainnet", nil)
	if err != nil {
		t.Fatalf("NewDecisionLog: %v", err)
	}
	event := outbound.DecisionEvent{
		InvocationID: "msg-1",
		Decision:     entity.Execute(entity.CallData{}, entity.CallData{}),
		DecidedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
	if err := log.Publish(ctx, event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var canExec bool
	var callCount int
	err = pool.QueryRow(ctx,
		`SELECT can_exec, call_count FROM keeper_decisions WHERE invocation_id = $1`, "msg-1").
		Scan(&canExec, &callCount)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !canExec || callCount != 2 {
		t.Errorf("row = canExec %v callCount %d", canExec, callCount)
	}
}
