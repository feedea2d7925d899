package localstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupGormStoreTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:localstore_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrateLocal(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

type selectionHint struct {
	SkuIDs []string `json:"skuIds"`
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	var got selectionHint
	found, err := store.Get(ctx, constants.StorageKeyCartSelection, &got)
	if err != nil || found {
		t.Fatalf("empty store should miss, found=%v err=%v", found, err)
	}

	if err := store.Set(ctx, constants.StorageKeyCartSelection, selectionHint{SkuIDs: []string{"A"}}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Set(ctx, constants.StorageKeyCartSelection, selectionHint{SkuIDs: []string{"A", "B"}}); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	found, err = store.Get(ctx, constants.StorageKeyCartSelection, &got)
	if err != nil || !found {
		t.Fatalf("get after set failed, found=%v err=%v", found, err)
	}
	if len(got.SkuIDs) != 2 || got.SkuIDs[1] != "B" {
		t.Fatalf("unexpected value: %+v", got)
	}

	if err := store.Delete(ctx, constants.StorageKeyCartSelection); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	found, _ = store.Get(ctx, constants.StorageKeyCartSelection, &got)
	if found {
		t.Fatalf("key should be gone after delete")
	}

	if err := store.Set(ctx, "  ", 1); !errors.Is(err, ErrKeyRequired) {
		t.Fatalf("blank key should be rejected, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestGormStore(t *testing.T) {
	exerciseStore(t, NewGormStore(setupGormStoreTest(t), "shopper-1"))
}

func TestGormStoreNamespacesAreIsolated(t *testing.T) {
	db := setupGormStoreTest(t)
	ctx := context.Background()
	alice := NewGormStore(db, "alice")
	bob := alice.WithNamespace("bob")

	addresses := []models.Address{{ID: "local_1", Name: "Alice", IsDefault: true}}
	if err := alice.Set(ctx, constants.StorageKeyUserAddresses, addresses); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var got []models.Address
	found, err := bob.Get(ctx, constants.StorageKeyUserAddresses, &got)
	if err != nil || found {
		t.Fatalf("bob should not see alice's addresses, found=%v err=%v", found, err)
	}
	found, err = alice.Get(ctx, constants.StorageKeyUserAddresses, &got)
	if err != nil || !found || len(got) != 1 || got[0].ID != "local_1" {
		t.Fatalf("alice lost her addresses: found=%v err=%v got=%+v", found, err, got)
	}
}

func TestOpenMemoryDriver(t *testing.T) {
	store, closeFn, err := Open(configFor(constants.StorageDriverMemory, ""))
	if err != nil {
		t.Fatalf("open memory store failed: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected MemoryStore, got %T", store)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, _, err := Open(configFor("etcd", "")); err == nil {
		t.Fatalf("unknown driver should fail")
	}
}

func TestOpenRedisRequiresRedis(t *testing.T) {
	if _, _, err := Open(configFor(constants.StorageDriverRedis, "")); err == nil {
		t.Fatalf("redis driver without redis.enabled should fail")
	}
}

func configFor(driver, dsn string) config.StorageConfig {
	return config.StorageConfig{Driver: driver, DSN: dsn, Namespace: "test"}
}
