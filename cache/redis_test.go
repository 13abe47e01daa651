package cache

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCatalogKeyIsStableAndScoped(t *testing.T) {
	a := CatalogKey("/v4/games", []byte(`search "hades";`))
	b := CatalogKey("/v4/games", []byte(`search "hades";`))
	c := CatalogKey("/v4/games", []byte(`search "celeste";`))
	if a != b {
		t.Fatal("same query must give the same key")
	}
	if a == c {
		t.Fatal("different bodies must give different keys")
	}
	if !strings.HasPrefix(a, CatalogCachePrefix) {
		t.Fatalf("missing prefix: %s", a)
	}
}

func TestOperationsDegradeWithoutRedis(t *testing.T) {
	RedisClient = nil
	if IsRedisAvailable() {
		t.Fatal("no client configured")
	}
	if err := Set("k", 1, time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	var v int
	if err := Get("k", &v); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := GetCatalogResponse("/v4/games", []byte("fields name;")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("catalog lookup without redis: expected ErrUnavailable, got %v", err)
	}
	allowed, remaining, err := CheckRateLimit("catalog:1.2.3.4", 5, time.Minute)
	if !allowed || remaining != 5 || err != nil {
		t.Fatalf("rate limit should allow without redis: %v %d %v", allowed, remaining, err)
	}
}

func TestSetCatalogResponseRejectsNonJSON(t *testing.T) {
	if err := SetCatalogResponse("/v4/games", nil, []byte("<html>")); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}
