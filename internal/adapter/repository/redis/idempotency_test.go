package redis

import (
	"context"
	"testing"
	"time"
)

func TestIdempotencyStore_ReturnsStoredResponse(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := mr.Set(defaultPrefix+"/clientes/1/transacoes:abc", `{"limite":100000,"saldo":-10}`); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	exists, resp, err := store.CheckAndSet(ctx, "/clientes/1/transacoes:abc", nil, time.Minute)
	if err != nil {
		t.Fatalf("CheckAndSet failed: %v", err)
	}
	if !exists || string(resp) != `{"limite":100000,"saldo":-10}` {
		t.Fatalf("expected stored response, got exists=%v resp=%s", exists, resp)
	}
}

func TestIdempotencyStore_ClaimWritesPlaceholder(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	exists, resp, err := store.CheckAndSet(ctx, "k1", nil, time.Minute)
	if err != nil || exists || resp != nil {
		t.Fatalf("unexpected first claim: exists=%v resp=%v err=%v", exists, resp, err)
	}

	val, err := mr.Get(defaultPrefix + "k1")
	if err != nil || val != PendingResponse {
		t.Fatalf("expected placeholder, got val=%s err=%v", val, err)
	}
	if ttl := mr.TTL(defaultPrefix + "k1"); ttl != time.Minute {
		t.Fatalf("expected ttl of one minute, got %v", ttl)
	}

	exists, resp, err = store.CheckAndSet(ctx, "k1", nil, time.Minute)
	if err != nil || !exists || string(resp) != PendingResponse {
		t.Fatalf("expected duplicate to see placeholder, got exists=%v resp=%s err=%v", exists, resp, err)
	}
}

func TestIdempotencyStore_ClaimCanStoreResponseDirectly(t *testing.T) {
	store, mr := newTestStore(t)

	if _, _, err := store.CheckAndSet(context.Background(), "k2", []byte("final"), time.Minute); err != nil {
		t.Fatalf("CheckAndSet failed: %v", err)
	}
	if val, _ := mr.Get(defaultPrefix + "k2"); val != "final" {
		t.Fatalf("expected final response stored, got %q", val)
	}
}

func TestIdempotencyStore_KeysExpire(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, _, err := store.CheckAndSet(ctx, "short", nil, time.Second); err != nil {
		t.Fatalf("CheckAndSet failed: %v", err)
	}

	mr.FastForward(2 * time.Second)

	exists, _, err := store.CheckAndSet(ctx, "short", nil, time.Second)
	if err != nil || exists {
		t.Fatalf("expected expired key to be claimable, got exists=%v err=%v", exists, err)
	}
}

func TestIdempotencyStore_UpdateThenRelease(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, _, err := store.CheckAndSet(ctx, "k3", nil, time.Minute); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.Update(ctx, "k3", []byte("done"), time.Hour); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if val, _ := mr.Get(defaultPrefix + "k3"); val != "done" {
		t.Fatalf("expected updated response, got %q", val)
	}
	if ttl := mr.TTL(defaultPrefix + "k3"); ttl != time.Hour {
		t.Fatalf("expected ttl refreshed to one hour, got %v", ttl)
	}

	if err := store.Release(ctx, "k3"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if mr.Exists(defaultPrefix + "k3") {
		t.Fatal("expected key to be deleted")
	}

	exists, _, err := store.CheckAndSet(ctx, "k3", nil, time.Minute)
	if err != nil || exists {
		t.Fatalf("expected released key to be claimable, got exists=%v err=%v", exists, err)
	}
}

func TestIdempotencyStore_KeyPrefix(t *testing.T) {
	store, mr := newTestStore(t, WithKeyPrefix("ledger-b:"))

	if _, _, err := store.CheckAndSet(context.Background(), "k4", nil, time.Minute); err != nil {
		t.Fatalf("CheckAndSet failed: %v", err)
	}
	if !mr.Exists("ledger-b:k4") {
		t.Fatalf("expected prefixed key, have %v", mr.Keys())
	}
	if mr.Exists(defaultPrefix + "k4") {
		t.Fatal("default prefix should not be used")
	}
}

func TestIdempotencyStore_ReportsConnectionErrors(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	if _, _, err := store.CheckAndSet(context.Background(), "k", nil, time.Minute); err == nil {
		t.Fatal("expected error when redis is down")
	}
}
