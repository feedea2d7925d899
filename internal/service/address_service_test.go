package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/gateway/gatewaytest"
	"github.com/dujiao-next/storefront/internal/localstore"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/notify"

	"github.com/google/go-cmp/cmp"
)

func addr(id, name string, isDefault, local bool) models.Address {
	return models.Address{
		ID:           id,
		Name:         name,
		Mobile:       "13800000000",
		Province:     "浙江省",
		City:         "杭州市",
		District:     "西湖区",
		Address:      name + " 路 1 号",
		IsDefault:    isDefault,
		IsLocalAdded: local,
	}
}

func countDefaults(list []models.Address) int {
	n := 0
	for _, a := range list {
		if a.IsDefault {
			n++
		}
	}
	return n
}

func newAddressService(t *testing.T, token string) (*AddressService, *gatewaytest.Fake, *localstore.MemoryStore) {
	t.Helper()
	fake := gatewaytest.New()
	store := localstore.NewMemoryStore()
	svc := NewAddressService(fake, gateway.NewSession(token), store, notify.NewRecorder(10, nil), logger.Nop())
	return svc, fake, store
}

func TestDedupeIsIdempotent(t *testing.T) {
	dupLocal := addr("local_1", "张三", true, true)
	list := []models.Address{
		dupLocal,
		addr("a1", "张三", false, false),
		addr("a2", "李四", true, false),
		addr("local_2", "王五", false, true),
		addr("a3", "李四", true, false),
	}

	once := Dedupe(list)
	twice := Dedupe(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("dedupe not idempotent (-once +twice):\n%s", diff)
	}
	if len(once) != 3 {
		t.Fatalf("expected 3 unique addresses, got %d", len(once))
	}
	// 远端记录优先于内容相同的本地记录
	if once[0].ID != "a1" {
		t.Fatalf("server record should win, got %s", once[0].ID)
	}
	if n := countDefaults(once); n != 1 {
		t.Fatalf("expected exactly one default, got %d", n)
	}
	if !once[1].IsDefault || once[1].ID != "a2" {
		t.Fatalf("first server default should be kept, got %+v", once[1])
	}
}

func TestEnsureSingleDefaultPrefersServerOrigin(t *testing.T) {
	list := []models.Address{
		addr("local_1", "甲", true, true),
		addr("a1", "乙", true, false),
		addr("a2", "丙", true, false),
	}
	out := EnsureSingleDefault(list)
	if n := countDefaults(out); n != 1 {
		t.Fatalf("expected one default, got %d", n)
	}
	if !out[1].IsDefault {
		t.Fatalf("server-origin default should win: %+v", out)
	}
	if !list[0].IsDefault {
		t.Fatalf("input must not be mutated")
	}
}

func TestMergeAddressesDefaultPriority(t *testing.T) {
	server := []models.Address{addr("a1", "甲", false, false), addr("a2", "乙", false, false)}
	local := []models.Address{
		addr("a1", "甲", false, false),
		addr("local_1", "丙", true, true),
		addr("local_2", "乙", false, true),
		addr("gone", "丁", false, false),
	}

	merged := MergeAddresses(server, local)
	ids := make([]string, 0, len(merged))
	for _, a := range merged {
		ids = append(ids, a.ID)
	}
	if diff := cmp.Diff([]string{"a1", "a2", "local_1"}, ids); diff != "" {
		t.Fatalf("unexpected membership (-want +got):\n%s", diff)
	}
	if !merged[2].IsDefault || countDefaults(merged) != 1 {
		t.Fatalf("local default should be kept when server declares none: %+v", merged)
	}

	server[1].IsDefault = true
	merged = MergeAddresses(server, local)
	if !merged[1].IsDefault || countDefaults(merged) != 1 {
		t.Fatalf("server default should win: %+v", merged)
	}
}

func TestLoadWithTwoDefaultsKeepsOne(t *testing.T) {
	svc, fake, store := newAddressService(t, "token")
	fake.SeedAddresses(addr("a1", "甲", true, false), addr("a2", "乙", true, false))
	ctx := context.Background()
	if err := store.Set(ctx, constants.StorageKeyUserAddresses, []models.Address{addr("local_9", "丙", true, true)}); err != nil {
		t.Fatalf("seed storage: %v", err)
	}

	list, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 addresses, got %d", len(list))
	}
	if n := countDefaults(list); n != 1 {
		t.Fatalf("expected exactly one default, got %d", n)
	}
	def, ok := svc.Default()
	if !ok || def.ID != "a1" {
		t.Fatalf("expected a1 as default, got %+v", def)
	}

	var persisted []models.Address
	if ok, err := store.Get(ctx, constants.StorageKeyUserAddresses, &persisted); err != nil || !ok {
		t.Fatalf("addresses not persisted: %v", err)
	}
	if diff := cmp.Diff(list, persisted); diff != "" {
		t.Fatalf("persisted collection differs:\n%s", diff)
	}
}

func TestLoadWithoutLoginUsesLocal(t *testing.T) {
	svc, fake, store := newAddressService(t, "")
	ctx := context.Background()
	_ = store.Set(ctx, constants.StorageKeyUserAddresses, []models.Address{addr("local_1", "甲", false, true), addr("local_2", "甲", false, true)})

	list, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected deduped local list, got %d", len(list))
	}
	if fake.Calls(gatewaytest.OpListAddresses) != 0 {
		t.Fatalf("remote must not be called without login")
	}
}

func TestAddressMutationsRequireLogin(t *testing.T) {
	svc, _, _ := newAddressService(t, "")
	ctx := context.Background()
	if _, err := svc.Add(ctx, AddressInput{Name: "甲", Mobile: "1", Address: "x"}); !errors.Is(err, gateway.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if err := svc.SetDefault(ctx, "a1"); !errors.Is(err, gateway.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestAddAddressRejectsDuplicate(t *testing.T) {
	svc, fake, _ := newAddressService(t, "token")
	ctx := context.Background()
	in := AddressInput{Name: "甲", Mobile: "138", Province: "浙江省", City: "杭州市", District: "西湖区", Address: "一号", IsDefault: true}

	first, err := svc.Add(ctx, in)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if first.IsLocalAdded || !strings.HasPrefix(first.ID, "addr-") {
		t.Fatalf("expected server-confirmed address, got %+v", first)
	}
	if _, err := svc.Add(ctx, in); !errors.Is(err, ErrAddressDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if fake.Calls(gatewaytest.OpAddAddress) != 1 {
		t.Fatalf("duplicate must not reach remote")
	}
}

func TestAddAddressKeepsLocalOnRemoteFailure(t *testing.T) {
	svc, fake, store := newAddressService(t, "token")
	fake.FailNext(gatewaytest.OpAddAddress, gatewaytest.TransportError())
	ctx := context.Background()

	a, err := svc.Add(ctx, AddressInput{Name: "甲", Mobile: "138", Address: "一号"})
	if err != nil {
		t.Fatalf("offline add should succeed locally: %v", err)
	}
	if !a.IsLocalAdded || !strings.HasPrefix(a.ID, constants.LocalAddressIDPrefix) {
		t.Fatalf("expected local record, got %+v", a)
	}

	var persisted []models.Address
	if ok, _ := store.Get(ctx, constants.StorageKeyUserAddresses, &persisted); !ok || len(persisted) != 1 {
		t.Fatalf("local record must be persisted, got %+v", persisted)
	}
}

func TestUpdateAddress(t *testing.T) {
	svc, fake, _ := newAddressService(t, "token")
	fake.SeedAddresses(addr("a1", "甲", true, false), addr("a2", "乙", false, false))
	ctx := context.Background()
	if _, err := svc.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	dup := AddressInput{Name: "乙", Mobile: "13800000000", Province: "浙江省", City: "杭州市", District: "西湖区", Address: "乙 路 1 号"}
	if _, err := svc.Update(ctx, "a1", dup); !errors.Is(err, ErrAddressDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	fake.FailNext(gatewaytest.OpUpdateAddress, gatewaytest.TransportError())
	updated, err := svc.Update(ctx, "a2", AddressInput{Name: "乙", Mobile: "139", Address: "新地址", IsDefault: true})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !updated.IsLocalAdded {
		t.Fatalf("remote failure should flag the record local")
	}
	def, _ := svc.Default()
	if def.ID != "a2" || countDefaults(svc.List()) != 1 {
		t.Fatalf("a2 should be the only default: %+v", svc.List())
	}
}

func TestRemoveAddressIgnoresRemoteFailure(t *testing.T) {
	svc, fake, _ := newAddressService(t, "token")
	fake.SeedAddresses(addr("a1", "甲", true, false))
	ctx := context.Background()
	if _, err := svc.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	fake.FailNext(gatewaytest.OpDeleteAddress, gatewaytest.Rejected(500, "busy"))

	if err := svc.Remove(ctx, "a1"); err != nil {
		t.Fatalf("remove should succeed locally: %v", err)
	}
	if len(svc.List()) != 0 {
		t.Fatalf("address should be removed locally")
	}
	if err := svc.Remove(ctx, "a1"); !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetDefaultAddress(t *testing.T) {
	svc, fake, _ := newAddressService(t, "token")
	fake.SeedAddresses(addr("a1", "甲", true, false), addr("a2", "乙", false, false))
	ctx := context.Background()
	if _, err := svc.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if err := svc.SetDefault(ctx, "a1"); err != nil {
		t.Fatalf("noop set default failed: %v", err)
	}
	if fake.Calls(gatewaytest.OpSetDefaultAddress) != 0 {
		t.Fatalf("already default must not call remote")
	}

	fake.FailNext(gatewaytest.OpSetDefaultAddress, gatewaytest.TransportError())
	if err := svc.SetDefault(ctx, "a2"); err != nil {
		t.Fatalf("set default failed: %v", err)
	}
	def, _ := svc.Default()
	if def.ID != "a2" || countDefaults(svc.List()) != 1 {
		t.Fatalf("local flip must survive remote failure: %+v", svc.List())
	}
}
