package redisrdb_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	redisrdb "github.com/raniellyferreira/redis-rdb-server"
)

// newClient returns a go-redis client that keeps a single connection, so a
// test sees one consistent per-connection dataset
func newClient(t *testing.T, addr string) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Protocol:    2,
		PoolSize:    1,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestEndToEndWithSnapshot(t *testing.T) {
	dir := writeSnapshot(t, fruitSnapshot)
	metrics := &testMetrics{}
	srv := startServer(t,
		redisrdb.WithLogger(&testLogger{}),
		redisrdb.WithMetrics(metrics),
		redisrdb.WithDir(dir),
		redisrdb.WithDBFilename("dump.rdb"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newClient(t, srv.Addr())

	t.Run("Ping", func(t *testing.T) {
		pong, err := client.Ping(ctx).Result()
		if err != nil || pong != "PONG" {
			t.Errorf("Ping() = %q, %v", pong, err)
		}
	})

	t.Run("Echo", func(t *testing.T) {
		got, err := client.Echo(ctx, "hey").Result()
		if err != nil || got != "hey" {
			t.Errorf("Echo() = %q, %v", got, err)
		}
	})

	t.Run("SnapshotKeys", func(t *testing.T) {
		tests := map[string]string{
			"pear": "strawberry",
			"125":  "Positive 8 bit integer",
		}
		for key, want := range tests {
			got, err := client.Get(ctx, key).Result()
			if err != nil || got != want {
				t.Errorf("Get(%s) = %q, %v, want %q", key, got, err, want)
			}
		}
	})

	t.Run("Keys", func(t *testing.T) {
		keys, err := client.Keys(ctx, "*").Result()
		if err != nil {
			t.Fatal(err)
		}
		sort.Strings(keys)
		if len(keys) != 2 || keys[0] != "125" || keys[1] != "pear" {
			t.Errorf("Keys() = %v, want [125 pear]", keys)
		}
	})

	t.Run("SetAndExpire", func(t *testing.T) {
		if err := client.Set(ctx, "foo", "bar", time.Millisecond).Err(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
		if _, err := client.Get(ctx, "foo").Result(); !errors.Is(err, redis.Nil) {
			t.Errorf("Get(foo) error = %v, want redis.Nil", err)
		}
	})

	t.Run("ConfigGet", func(t *testing.T) {
		cfg, err := client.ConfigGet(ctx, "dbfilename").Result()
		if err != nil {
			t.Fatal(err)
		}
		if cfg["dbfilename"] != "dump.rdb" {
			t.Errorf("ConfigGet(dbfilename) = %v", cfg)
		}

		cfg, err = client.ConfigGet(ctx, "dir").Result()
		if err != nil {
			t.Fatal(err)
		}
		if cfg["dir"] != dir {
			t.Errorf("ConfigGet(dir) = %v, want %s", cfg, dir)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		if metrics.commandCount("PING") < 1 {
			t.Error("expected PING to be recorded")
		}
		if metrics.commandCount("GET") < 2 {
			t.Errorf("GET recorded %d times", metrics.commandCount("GET"))
		}
		if opened, _ := metrics.connections(); opened < 1 {
			t.Error("expected a recorded connection")
		}
		if srv.Stats.GetCommandCount("SET") != 1 {
			t.Errorf("Stats SET count = %d, want 1", srv.Stats.GetCommandCount("SET"))
		}
	})
}

func TestEndToEndConnectionIsolation(t *testing.T) {
	srv := startServer(t,
		redisrdb.WithLogger(&testLogger{}),
		redisrdb.WithDir(writeSnapshot(t, fruitSnapshot)),
		redisrdb.WithDBFilename("dump.rdb"),
	)
	ctx := context.Background()

	first := newClient(t, srv.Addr())
	second := newClient(t, srv.Addr())

	if err := first.Set(ctx, "125", "overwritten", 0).Err(); err != nil {
		t.Fatal(err)
	}
	if err := first.Set(ctx, "fresh", "1", 0).Err(); err != nil {
		t.Fatal(err)
	}

	if got, _ := first.Get(ctx, "125").Result(); got != "overwritten" {
		t.Errorf("first Get(125) = %q, want overwritten", got)
	}
	if got, _ := second.Get(ctx, "125").Result(); got != "Positive 8 bit integer" {
		t.Errorf("second Get(125) = %q, want snapshot value", got)
	}
	if _, err := second.Get(ctx, "fresh").Result(); !errors.Is(err, redis.Nil) {
		t.Errorf("second Get(fresh) error = %v, want redis.Nil", err)
	}
}

func TestEndToEndSharedIsolation(t *testing.T) {
	srv := startServer(t,
		redisrdb.WithLogger(&testLogger{}),
		redisrdb.WithDir(writeSnapshot(t, fruitSnapshot)),
		redisrdb.WithDBFilename("dump.rdb"),
		redisrdb.WithIsolation(redisrdb.IsolationShared),
		redisrdb.WithShardCount(4),
	)
	ctx := context.Background()

	first := newClient(t, srv.Addr())
	second := newClient(t, srv.Addr())

	if err := first.Set(ctx, "pear", "apple", 0).Err(); err != nil {
		t.Fatal(err)
	}
	if got, _ := second.Get(ctx, "pear").Result(); got != "apple" {
		t.Errorf("second Get(pear) = %q, want apple", got)
	}
}

func TestEndToEndEmbeddedStoreDelete(t *testing.T) {
	srv := startServer(t,
		redisrdb.WithLogger(&testLogger{}),
		redisrdb.WithDir(writeSnapshot(t, fruitSnapshot)),
		redisrdb.WithDBFilename("dump.rdb"),
		redisrdb.WithIsolation(redisrdb.IsolationShared),
	)
	ctx := context.Background()
	client := newClient(t, srv.Addr())

	store := srv.Storage()
	if store == nil {
		t.Fatal("Storage() = nil under shared isolation")
	}
	if n := store.Del("pear", "missing"); n != 1 {
		t.Errorf("Del() = %d, want 1", n)
	}
	if _, err := client.Get(ctx, "pear").Result(); !errors.Is(err, redis.Nil) {
		t.Errorf("Get(pear) after Del error = %v, want redis.Nil", err)
	}
	if got, _ := client.Get(ctx, "125").Result(); got == "" {
		t.Error("Get(125) should still return the snapshot value")
	}
}

func TestEndToEndCorruptSnapshotServesEmpty(t *testing.T) {
	srv := startServer(t,
		redisrdb.WithLogger(&testLogger{}),
		redisrdb.WithDir(writeSnapshot(t, []byte("REDIS0003\xfe\x00\x00\xc3\x01\x02"))),
		redisrdb.WithDBFilename("dump.rdb"),
	)
	ctx := context.Background()
	client := newClient(t, srv.Addr())

	keys, err := client.Keys(ctx, "*").Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("Keys() = %v, want empty", keys)
	}
	if err := client.Set(ctx, "k", "v", 0).Err(); err != nil {
		t.Errorf("Set() error = %v", err)
	}
}

func TestEndToEndReadTimeout(t *testing.T) {
	srv := startServer(t,
		redisrdb.WithLogger(&testLogger{}),
		redisrdb.WithReadTimeout(50*time.Millisecond),
	)

	client := newClient(t, srv.Addr())
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.Stats.GetActiveConnections() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("idle connection still open, active = %d", srv.Stats.GetActiveConnections())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
