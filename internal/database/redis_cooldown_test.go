package database

import (
	"context"
	"testing"
	"time"
)

func TestCooldownStoreDisabled(t *testing.T) {
	store := NewRedisCooldownStore(nil)
	ctx := context.Background()

	started, err := store.StartCooldown(ctx, "acct-1", "revenge_trading", time.Now().Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Disabled store must not error: %v", err)
	}
	if started {
		t.Error("Disabled store must not report a started cooldown")
	}

	state, err := store.GetCooldown(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Disabled store must not error on read: %v", err)
	}
	if state != nil {
		t.Errorf("Disabled store must report no active cooldown, got %+v", state)
	}

	if err := store.ClearCooldown(ctx, "acct-1"); err != nil {
		t.Errorf("Disabled store must not error on clear: %v", err)
	}
}

func TestCooldownStoreNilReceiver(t *testing.T) {
	var store *RedisCooldownStore
	ctx := context.Background()

	if started, err := store.StartCooldown(ctx, "acct-1", "overtrading", time.Now().Add(time.Hour)); err != nil || started {
		t.Errorf("Nil store must be a no-op, got started=%v err=%v", started, err)
	}
	if state, err := store.GetCooldown(ctx, "acct-1"); err != nil || state != nil {
		t.Errorf("Nil store must report no cooldown, got state=%+v err=%v", state, err)
	}
}
