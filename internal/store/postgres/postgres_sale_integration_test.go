package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"clubpadel/backend/internal/domain"
	"clubpadel/backend/internal/store"
)

func TestCreateSaleDecrementsStockAtomically(t *testing.T) {
	databaseURL := os.Getenv("CLUBPADEL_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set CLUBPADEL_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-sale-it-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, cost_cents, stock, min_stock, active, created_at, updated_at)
		VALUES ($1, 'Producto IT', 'drinks', 150, 60, 10, 2, true, now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	created, err := s.CreateSale(ctx, domain.Sale{
		ID:            saleID,
		Items:         []domain.SaleItem{{ProductID: productID, Qty: 4}},
		PaymentMethod: "cash",
		CreatedBy:     "it-test",
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.TotalAmountCents != 600 {
		t.Fatalf("expected total 600, got %d", created.TotalAmountCents)
	}
	if created.Items[0].UnitPriceCents != 150 {
		t.Fatalf("expected snapshot price 150, got %d", created.Items[0].UnitPriceCents)
	}

	fetched, err := s.GetSale(ctx, saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if fetched.TotalAmountCents != 600 || len(fetched.Items) != 1 {
		t.Fatalf("unexpected fetched sale: %+v", fetched)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 6 {
		t.Fatalf("expected stock 6 after sale, got %d", stock)
	}

	// An over-stock sale must leave the row untouched.
	_, err = s.CreateSale(ctx, domain.Sale{
		ID:            saleID + "-over",
		Items:         []domain.SaleItem{{ProductID: productID, Qty: 100}},
		PaymentMethod: "cash",
		CreatedBy:     "it-test",
		CreatedAt:     time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 6 {
		t.Fatalf("expected stock unchanged at 6 after rejected sale, got %d", stock)
	}
}
