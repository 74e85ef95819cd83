package service

import (
	"context"
	"errors"
	"testing"

	"clubpadel/backend/internal/cache"
	"clubpadel/backend/internal/domain"
	"clubpadel/backend/internal/store"
	"clubpadel/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopCatalogCache{}, 500, 300)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "admin",
		Role:     "admin",
	})
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "staff",
		Role:     "staff",
	})
}

func TestOpenAndCloseRegisterWithNoActivity(t *testing.T) {
	svc := newTestService()
	ctx := staffCtx()

	opened, err := svc.OpenRegister(ctx, domain.OpenRegisterRequest{StartingAmountCents: 10000})
	if err != nil {
		t.Fatalf("open register failed: %v", err)
	}
	if opened.ClosedAt != nil {
		t.Fatalf("expected freshly opened register to have no close timestamp")
	}

	closed, err := svc.CloseRegister(ctx, domain.CloseRegisterRequest{CountedCashCents: 10000})
	if err != nil {
		t.Fatalf("close register failed: %v", err)
	}
	if closed.CalculatedAmountCents != 10000 {
		t.Fatalf("expected calculated 10000, got %d", closed.CalculatedAmountCents)
	}
	if closed.DifferenceCents != 0 {
		t.Fatalf("expected zero difference, got %d", closed.DifferenceCents)
	}
	if closed.ClosedAt == nil || closed.ClosedBy != "staff" {
		t.Fatalf("expected close metadata to be recorded")
	}
}

func TestCloseRegisterReconciliation(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.OpenRegister(ctx, domain.OpenRegisterRequest{StartingAmountCents: 10000}); err != nil {
		t.Fatalf("open register failed: %v", err)
	}

	playerA, err := svc.CreatePlayer(ctx, domain.PlayerCreateRequest{Name: "Ana"})
	if err != nil {
		t.Fatalf("create player failed: %v", err)
	}
	playerB, err := svc.CreatePlayer(ctx, domain.PlayerCreateRequest{Name: "Bruno"})
	if err != nil {
		t.Fatalf("create player failed: %v", err)
	}

	// Court rate 2000 plus two default shares of 500 each: booking total 3000.
	booking, err := svc.CreateBooking(ctx, domain.BookingCreateRequest{
		CourtID:   "court-seed-01",
		StartTime: "18:00",
		EndTime:   "19:00",
		Players: []domain.BookingPlayerRequest{
			{PlayerID: playerA.ID},
			{PlayerID: playerB.ID},
		},
	})
	if err != nil {
		t.Fatalf("create booking failed: %v", err)
	}
	if booking.TotalAmountCents != 3000 {
		t.Fatalf("expected booking total 3000, got %d", booking.TotalAmountCents)
	}

	// Two waters at 150 each: sale total 300.
	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItemRequest{{ProductID: "prod-seed-01", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if sale.TotalAmountCents != 300 {
		t.Fatalf("expected sale total 300, got %d", sale.TotalAmountCents)
	}

	if _, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{
		AmountCents: 1000,
		Category:    "maintenance",
		Description: "net repair",
	}); err != nil {
		t.Fatalf("create expense failed: %v", err)
	}

	closed, err := svc.CloseRegister(ctx, domain.CloseRegisterRequest{CountedCashCents: 12300})
	if err != nil {
		t.Fatalf("close register failed: %v", err)
	}
	if closed.CalculatedAmountCents != 12300 {
		t.Fatalf("expected calculated 12300, got %d", closed.CalculatedAmountCents)
	}
	if closed.DifferenceCents != 0 {
		t.Fatalf("expected zero difference, got %d", closed.DifferenceCents)
	}
}

func TestCloseRegisterReportsShortfall(t *testing.T) {
	svc := newTestService()
	ctx := staffCtx()

	if _, err := svc.OpenRegister(ctx, domain.OpenRegisterRequest{StartingAmountCents: 5000}); err != nil {
		t.Fatalf("open register failed: %v", err)
	}

	closed, err := svc.CloseRegister(ctx, domain.CloseRegisterRequest{CountedCashCents: 4800, Notes: "missing coins"})
	if err != nil {
		t.Fatalf("close register failed: %v", err)
	}
	if closed.DifferenceCents != -200 {
		t.Fatalf("expected difference -200, got %d", closed.DifferenceCents)
	}
	if closed.Notes != "missing coins" {
		t.Fatalf("expected notes to be stored, got %q", closed.Notes)
	}
}

func TestCloseRegisterWithoutOpenFails(t *testing.T) {
	svc := newTestService()

	_, err := svc.CloseRegister(staffCtx(), domain.CloseRegisterRequest{CountedCashCents: 1000})
	if !errors.Is(err, store.ErrRegisterClosed) {
		t.Fatalf("expected ErrRegisterClosed, got %v", err)
	}
}

func TestOpenRegisterRejectsNonPositiveFloat(t *testing.T) {
	svc := newTestService()

	_, err := svc.OpenRegister(staffCtx(), domain.OpenRegisterRequest{StartingAmountCents: 0})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOpenRegisterTwiceFails(t *testing.T) {
	svc := newTestService()
	ctx := staffCtx()

	if _, err := svc.OpenRegister(ctx, domain.OpenRegisterRequest{StartingAmountCents: 5000}); err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	_, err := svc.OpenRegister(ctx, domain.OpenRegisterRequest{StartingAmountCents: 5000})
	if !errors.Is(err, store.ErrRegisterOpen) {
		t.Fatalf("expected ErrRegisterOpen, got %v", err)
	}
}

func TestRegisterStatusLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := staffCtx()

	status, err := svc.RegisterStatus(ctx, "")
	if err != nil {
		t.Fatalf("register status failed: %v", err)
	}
	if status.Status != domain.RegisterStatusAbsent {
		t.Fatalf("expected absent status, got %s", status.Status)
	}

	if _, err := svc.OpenRegister(ctx, domain.OpenRegisterRequest{StartingAmountCents: 5000}); err != nil {
		t.Fatalf("open register failed: %v", err)
	}
	status, err = svc.RegisterStatus(ctx, "")
	if err != nil {
		t.Fatalf("register status failed: %v", err)
	}
	if status.Status != domain.RegisterStatusOpen {
		t.Fatalf("expected open status, got %s", status.Status)
	}

	if _, err := svc.CloseRegister(ctx, domain.CloseRegisterRequest{CountedCashCents: 5000}); err != nil {
		t.Fatalf("close register failed: %v", err)
	}
	status, err = svc.RegisterStatus(ctx, "")
	if err != nil {
		t.Fatalf("register status failed: %v", err)
	}
	if status.Status != domain.RegisterStatusClosed {
		t.Fatalf("expected closed status, got %s", status.Status)
	}
}

func TestSaleRejectsInsufficientStockWithoutPartialWrites(t *testing.T) {
	svc := newTestService()
	ctx := staffCtx()

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-seed-02", Qty: 1},
			{ProductID: "prod-seed-01", Qty: 1000},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	products, err := svc.ListProducts(ctx, false)
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	for _, p := range products {
		if p.ID == "prod-seed-01" && p.Stock != 48 {
			t.Fatalf("expected stock of prod-seed-01 untouched at 48, got %d", p.Stock)
		}
		if p.ID == "prod-seed-02" && p.Stock != 36 {
			t.Fatalf("expected stock of prod-seed-02 untouched at 36, got %d", p.Stock)
		}
	}

	sales, err := svc.ListSales(ctx, "")
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sale records after rejected sale, got %d", len(sales))
	}
}

func TestSaleDuplicateLinesCountAgainstStockCumulatively(t *testing.T) {
	svc := newTestService()
	ctx := staffCtx()

	// Court balls start at 20: two lines of 15 must fail together.
	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-seed-04", Qty: 15},
			{ProductID: "prod-seed-04", Qty: 15},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for cumulative lines, got %v", err)
	}
}

func TestSaleDecrementsStockAndSnapshotsPrice(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: "prod-seed-01", Qty: 3}},
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if sale.Items[0].UnitPriceCents != 150 {
		t.Fatalf("expected snapshot unit price 150, got %d", sale.Items[0].UnitPriceCents)
	}

	newPrice := int64(999)
	if _, err := svc.UpdateProduct(ctx, "prod-seed-01", domain.ProductUpdateRequest{PriceCents: &newPrice}); err != nil {
		t.Fatalf("update product failed: %v", err)
	}

	sales, err := svc.ListSales(ctx, "")
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected one sale, got %d", len(sales))
	}
	if sales[0].Items[0].UnitPriceCents != 150 {
		t.Fatalf("expected stored sale to keep snapshot price 150, got %d", sales[0].Items[0].UnitPriceCents)
	}
	if sales[0].TotalAmountCents != 450 {
		t.Fatalf("expected sale total 450, got %d", sales[0].TotalAmountCents)
	}

	products, err := svc.ListProducts(ctx, false)
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	for _, p := range products {
		if p.ID == "prod-seed-01" && p.Stock != 45 {
			t.Fatalf("expected stock 45 after sale, got %d", p.Stock)
		}
	}

	fetched, err := svc.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if fetched.TotalAmountCents != 450 || len(fetched.Items) != 1 {
		t.Fatalf("unexpected fetched sale: %+v", fetched)
	}
	if _, err := svc.GetSale(ctx, "sale-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown sale, got %v", err)
	}
}

func TestAdjustStockClampsAtZero(t *testing.T) {
	svc := newTestService()
	ctx := staffCtx()

	product, err := svc.AdjustStock(ctx, "prod-seed-04", domain.StockAdjustRequest{Qty: 100, Addition: false})
	if err != nil {
		t.Fatalf("adjust stock failed: %v", err)
	}
	if product.Stock != 0 {
		t.Fatalf("expected stock clamped at 0, got %d", product.Stock)
	}

	product, err = svc.AdjustStock(ctx, "prod-seed-04", domain.StockAdjustRequest{Qty: 5, Addition: true})
	if err != nil {
		t.Fatalf("adjust stock failed: %v", err)
	}
	if product.Stock != 5 {
		t.Fatalf("expected stock 5 after addition, got %d", product.Stock)
	}
}

func TestSetStockIsAbsoluteAndAdminOnly(t *testing.T) {
	svc := newTestService()

	_, err := svc.SetStock(staffCtx(), "prod-seed-05", domain.StockSetRequest{Qty: 7})
	if err == nil {
		t.Fatalf("expected staff set stock to be rejected")
	}

	product, err := svc.SetStock(adminCtx(), "prod-seed-05", domain.StockSetRequest{Qty: 7})
	if err != nil {
		t.Fatalf("set stock failed: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("expected stock 7, got %d", product.Stock)
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(staffCtx(), domain.ProductCreateRequest{
		Name:       "Toalla club",
		Category:   "apparel",
		PriceCents: 1200,
		CostCents:  500,
		Stock:      10,
	})
	if err == nil {
		t.Fatalf("expected non-admin create product to fail")
	}
}

func TestProductRoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:       "Muñequera club",
		Category:   "accessories",
		PriceCents: 450,
		CostCents:  200,
		Stock:      12,
		MinStock:   3,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	products, err := svc.ListProducts(ctx, false)
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	var fetched *domain.Product
	for i := range products {
		if products[i].ID == created.ID {
			fetched = &products[i]
			break
		}
	}
	if fetched == nil {
		t.Fatalf("expected created product to be listed")
	}
	if fetched.Name != "Muñequera club" || fetched.Category != "accessories" {
		t.Fatalf("unexpected identity fields: %+v", fetched)
	}
	if fetched.PriceCents != 450 || fetched.CostCents != 200 || fetched.Stock != 12 || fetched.MinStock != 3 {
		t.Fatalf("unexpected numeric fields: %+v", fetched)
	}
	if !fetched.Active {
		t.Fatalf("expected new product to be active")
	}
}

func TestBookingTotalsSharesAndRental(t *testing.T) {
	svc := newTestService()
	ctx := staffCtx()

	special := int64(700)
	playerA, err := svc.CreatePlayer(ctx, domain.PlayerCreateRequest{Name: "Carla", SpecialShareCents: &special})
	if err != nil {
		t.Fatalf("create player failed: %v", err)
	}
	playerB, err := svc.CreatePlayer(ctx, domain.PlayerCreateRequest{Name: "Diego"})
	if err != nil {
		t.Fatalf("create player failed: %v", err)
	}

	// Court 2000 + special share 700 + default share 500 + rental 300 = 3500.
	booking, err := svc.CreateBooking(ctx, domain.BookingCreateRequest{
		CourtID:   "court-seed-01",
		StartTime: "10:00",
		EndTime:   "11:30",
		Type:      "league",
		Players: []domain.BookingPlayerRequest{
			{PlayerID: playerA.ID},
			{PlayerID: playerB.ID, PadelRental: true},
		},
	})
	if err != nil {
		t.Fatalf("create booking failed: %v", err)
	}
	if booking.TotalAmountCents != 3500 {
		t.Fatalf("expected booking total 3500, got %d", booking.TotalAmountCents)
	}
	if booking.Status != domain.BookingStatusConfirmed {
		t.Fatalf("expected confirmed booking, got %s", booking.Status)
	}
	if booking.Type != "league" {
		t.Fatalf("expected league booking, got %s", booking.Type)
	}
}

func TestBookingRejectsInvalidTimeRange(t *testing.T) {
	svc := newTestService()
	ctx := staffCtx()

	player, err := svc.CreatePlayer(ctx, domain.PlayerCreateRequest{Name: "Eva"})
	if err != nil {
		t.Fatalf("create player failed: %v", err)
	}

	_, err = svc.CreateBooking(ctx, domain.BookingCreateRequest{
		CourtID:   "court-seed-01",
		StartTime: "19:00",
		EndTime:   "18:00",
		Players:   []domain.BookingPlayerRequest{{PlayerID: player.ID}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for inverted time range, got %v", err)
	}
}

func TestCancelledBookingExcludedFromClose(t *testing.T) {
	svc := newTestService()
	ctx := staffCtx()

	if _, err := svc.OpenRegister(ctx, domain.OpenRegisterRequest{StartingAmountCents: 10000}); err != nil {
		t.Fatalf("open register failed: %v", err)
	}

	player, err := svc.CreatePlayer(ctx, domain.PlayerCreateRequest{Name: "Fran"})
	if err != nil {
		t.Fatalf("create player failed: %v", err)
	}
	booking, err := svc.CreateBooking(ctx, domain.BookingCreateRequest{
		CourtID:   "court-seed-02",
		StartTime: "09:00",
		EndTime:   "10:00",
		Players:   []domain.BookingPlayerRequest{{PlayerID: player.ID}},
	})
	if err != nil {
		t.Fatalf("create booking failed: %v", err)
	}

	cancelled, err := svc.CancelBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("cancel booking failed: %v", err)
	}
	if cancelled.Status != domain.BookingStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}

	if _, err := svc.CancelBooking(ctx, booking.ID); err == nil {
		t.Fatalf("expected second cancel to fail")
	}

	closed, err := svc.CloseRegister(ctx, domain.CloseRegisterRequest{CountedCashCents: 10000})
	if err != nil {
		t.Fatalf("close register failed: %v", err)
	}
	if closed.CalculatedAmountCents != 10000 {
		t.Fatalf("expected cancelled booking excluded from calculated amount, got %d", closed.CalculatedAmountCents)
	}
}

func TestExpenseRejectsUnknownCategory(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateExpense(staffCtx(), domain.ExpenseCreateRequest{
		AmountCents: 500,
		Category:    "entertainment",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown category, got %v", err)
	}
}

func TestDailyReportAggregates(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if _, err := svc.OpenRegister(ctx, domain.OpenRegisterRequest{StartingAmountCents: 10000}); err != nil {
		t.Fatalf("open register failed: %v", err)
	}

	if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItemRequest{{ProductID: "prod-seed-01", Qty: 2}},
	}); err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: "prod-seed-03", Qty: 1}},
		PaymentMethod: "card",
	}); err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if _, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{
		AmountCents: 400,
		Category:    "supplies",
	}); err != nil {
		t.Fatalf("create expense failed: %v", err)
	}

	report, err := svc.DailyReport(ctx, "")
	if err != nil {
		t.Fatalf("daily report failed: %v", err)
	}
	if report.Sales != 2 {
		t.Fatalf("expected 2 sales, got %d", report.Sales)
	}
	if report.SaleTotalCents != 480 {
		t.Fatalf("expected sale total 480, got %d", report.SaleTotalCents)
	}
	if report.Expenses != 1 || report.ExpenseTotalCents != 400 {
		t.Fatalf("unexpected expense aggregates: %d / %d", report.Expenses, report.ExpenseTotalCents)
	}
	if report.NetCents != 80 {
		t.Fatalf("expected net 80, got %d", report.NetCents)
	}
	if report.Register == nil || report.Register.StartingAmountCents != 10000 {
		t.Fatalf("expected register snapshot in report")
	}

	foundCash, foundCard := false, false
	for _, breakdown := range report.SalesByPayment {
		switch breakdown.PaymentMethod {
		case "cash":
			foundCash = true
			if breakdown.TotalCents != 300 {
				t.Fatalf("expected cash total 300, got %d", breakdown.TotalCents)
			}
		case "card":
			foundCard = true
			if breakdown.TotalCents != 180 {
				t.Fatalf("expected card total 180, got %d", breakdown.TotalCents)
			}
		}
	}
	if !foundCash || !foundCard {
		t.Fatalf("expected payment breakdowns for cash and card")
	}
}

func TestDeactivatedProductHiddenFromDefaultList(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if err := svc.DeactivateProduct(ctx, "prod-seed-06"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	active, err := svc.ListProducts(ctx, false)
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	for _, p := range active {
		if p.ID == "prod-seed-06" {
			t.Fatalf("expected deactivated product to be hidden")
		}
	}

	all, err := svc.ListProducts(ctx, true)
	if err != nil {
		t.Fatalf("list all products failed: %v", err)
	}
	found := false
	for _, p := range all {
		if p.ID == "prod-seed-06" && !p.Active {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected deactivated product in full listing")
	}
}

func TestSaleRejectsDeactivatedProduct(t *testing.T) {
	svc := newTestService()

	if err := svc.DeactivateProduct(adminCtx(), "prod-seed-02"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	_, err := svc.CreateSale(staffCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemRequest{{ProductID: "prod-seed-02", Qty: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deactivated product, got %v", err)
	}
}
