package redis

import (
	"testing"
	"time"

	"github.com/trocado-app/trocado-backend/pkg/config"
)

func TestOptionsFromConfigRequiresURLOrAddress(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error with no url or address")
	}
}

func TestOptionsFromConfigParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:      "redis://:pw@localhost:6380/2",
		PoolSize: 15,
	})
	if err != nil {
		t.Fatalf("optionsFromConfig: %v", err)
	}
	if opts.Addr != "localhost:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.DB != 2 {
		t.Fatalf("unexpected db %d", opts.DB)
	}
	if opts.PoolSize != 15 {
		t.Fatalf("config pool size not applied, got %d", opts.PoolSize)
	}
}

func TestOptionsFromConfigAddressFallback(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		Address:     "cache:6379",
		Password:    "pw",
		DB:          1,
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("optionsFromConfig: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.Password != "pw" || opts.DB != 1 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.DialTimeout != 2*time.Second {
		t.Fatalf("dial timeout not applied")
	}
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}
	if got := c.IdempotencyKey("payments", "evt_1"); got != "trocado:idempotency:payments:evt_1" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := c.LockKey("cron-worker"); got != "trocado:lock:cron-worker" {
		t.Fatalf("unexpected lock key %q", got)
	}
}
