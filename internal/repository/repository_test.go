package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/dujiao-next/storefront/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSandboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:sandbox_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrateSandbox(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func TestAddressRepositoryKeepsSingleDefault(t *testing.T) {
	repo := NewAddressRepository(setupSandboxDB(t))

	for i, isDefault := range []bool{true, false, true} {
		addr := &models.SandboxAddress{
			AddressID: fmt.Sprintf("addr-%d", i+1),
			Name:      "张三",
			Mobile:    "13800000000",
			Address:   fmt.Sprintf("西湖路 %d 号", i+1),
			IsDefault: isDefault,
		}
		if err := repo.Create(addr); err != nil {
			t.Fatalf("create address failed: %v", err)
		}
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 3 || !list[0].IsDefault || list[0].AddressID != "addr-3" {
		t.Fatalf("latest default should be first and unique: %+v", list)
	}
	for _, a := range list[1:] {
		if a.IsDefault {
			t.Fatalf("only one default expected: %+v", list)
		}
	}

	ok, err := repo.SetDefault("addr-2")
	if err != nil || !ok {
		t.Fatalf("set default failed: %v", err)
	}
	ok, err = repo.SetDefault("addr-404")
	if err != nil || ok {
		t.Fatalf("unknown id should report not found, got %v %v", ok, err)
	}
	list, _ = repo.List()
	if list[0].AddressID != "addr-2" || list[1].IsDefault || list[2].IsDefault {
		t.Fatalf("addr-2 should be the only default: %+v", list)
	}
}

func TestOrderRepositoryConditionalStatusUpdate(t *testing.T) {
	repo := NewOrderRepository(setupSandboxDB(t))
	order := &models.SandboxOrder{
		OrderNo:       "ORD1",
		Status:        models.OrderStatusCompleted,
		TotalAmount:   models.NewMoney("10.00"),
		PaymentAmount: models.NewMoney("10.00"),
		Items:         []models.SandboxOrderItem{{SkuID: "A", Price: models.NewMoney("5.00"), Count: 2}},
	}
	if err := repo.Create(order); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	ok, err := repo.UpdateStatus("ORD1",
		[]models.OrderStatus{models.OrderStatusPendingPayment, models.OrderStatusPendingShipment},
		map[string]interface{}{"status": models.OrderStatusCancelled})
	if err != nil || ok {
		t.Fatalf("completed order must not be cancelled, got %v %v", ok, err)
	}

	got, err := repo.GetByOrderNo("ORD1")
	if err != nil || got == nil {
		t.Fatalf("get order failed: %v", err)
	}
	if got.Status != models.OrderStatusCompleted || len(got.Items) != 1 {
		t.Fatalf("unexpected order: %+v", got)
	}
	converted := got.ToOrder()
	if converted.Items[0].Price.String() != "5.00" || converted.CreateTime == nil {
		t.Fatalf("unexpected conversion: %+v", converted)
	}
}

func TestOrderRepositoryListPagination(t *testing.T) {
	repo := NewOrderRepository(setupSandboxDB(t))
	for i := 1; i <= 5; i++ {
		status := models.OrderStatusPendingPayment
		if i%2 == 0 {
			status = models.OrderStatusPendingShipment
		}
		if err := repo.Create(&models.SandboxOrder{OrderNo: fmt.Sprintf("ORD%d", i), Status: status}); err != nil {
			t.Fatalf("create order failed: %v", err)
		}
	}

	orders, total, err := repo.List(OrderListFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 5 || len(orders) != 2 || orders[0].OrderNo != "ORD5" {
		t.Fatalf("unexpected page: total=%d orders=%+v", total, orders)
	}

	orders, total, err = repo.List(OrderListFilter{Page: 1, PageSize: 10, Status: int(models.OrderStatusPendingShipment)})
	if err != nil {
		t.Fatalf("list by status failed: %v", err)
	}
	if total != 2 || len(orders) != 2 {
		t.Fatalf("expected 2 pending shipment orders, got %d", total)
	}
}

func TestSkuRepositoryDecreaseStock(t *testing.T) {
	repo := NewSkuRepository(setupSandboxDB(t))
	if err := repo.Upsert(&models.SandboxSku{SkuID: "A", Title: "耳机", Price: models.NewMoney("99.00"), Stock: 3, Active: true}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	ok, err := repo.DecreaseStock("A", 2)
	if err != nil || !ok {
		t.Fatalf("decrease failed: %v", err)
	}
	ok, err = repo.DecreaseStock("A", 2)
	if err != nil || ok {
		t.Fatalf("insufficient stock should report false, got %v %v", ok, err)
	}
	sku, _ := repo.GetBySkuID("A")
	if sku == nil || sku.Stock != 1 {
		t.Fatalf("stock want 1 got %+v", sku)
	}
}

func TestCartRepositorySpecsRoundTrip(t *testing.T) {
	repo := NewCartRepository(setupSandboxDB(t))
	line := &models.SandboxCartLine{SkuID: "A", Count: 1, Stock: 5, Selected: true, Specs: models.StringMap{"颜色": "黑"}}
	if err := repo.Create(line); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	got, err := repo.GetBySkuID("A")
	if err != nil || got == nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ToCartItem().Specs["颜色"] != "黑" {
		t.Fatalf("specs not persisted: %+v", got.Specs)
	}
	if err := repo.DeleteBySkuIDs([]string{"A"}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got, _ := repo.GetBySkuID("A"); got != nil {
		t.Fatalf("line should be deleted")
	}
}
