package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"clubpadel/backend/internal/domain"
	"clubpadel/backend/internal/store"
	"clubpadel/backend/internal/xid"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, cost_cents, stock, min_stock, active, created_at, updated_at
		FROM products
		WHERE ($1 OR active = true)
		ORDER BY category, name
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.CostCents < 0 || product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt
	product.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, cost_cents, stock, min_stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, product.ID, product.Name, product.Category, product.PriceCents, product.CostCents, product.Stock, product.MinStock, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, cost_cents, stock, min_stock, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.CostCents < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, cost_cents = $5, min_stock = $6, active = $7, updated_at = now()
		WHERE id = $1
		RETURNING id, name, category, price_cents, cost_cents, stock, min_stock, active, created_at, updated_at
	`, product.ID, product.Name, product.Category, product.PriceCents, product.CostCents, product.MinStock, product.Active)
	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeactivateProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET active = false, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustStock(ctx context.Context, productID string, qty int, addition bool) (*domain.Product, error) {
	if productID == "" || qty < 1 {
		return nil, store.ErrInvalidInput
	}

	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, category, price_cents, cost_cents, stock, min_stock, active, created_at, updated_at
	`
	if !addition {
		query = `
			UPDATE products
			SET stock = GREATEST(0, stock - $2), updated_at = now()
			WHERE id = $1
			RETURNING id, name, category, price_cents, cost_cents, stock, min_stock, active, created_at, updated_at
		`
	}

	row := s.db.QueryRowContext(ctx, query, productID, qty)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetStock(ctx context.Context, productID string, qty int) (*domain.Product, error) {
	if productID == "" || qty < 0 {
		return nil, store.ErrInvalidInput
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, category, price_cents, cost_cents, stock, min_stock, active, created_at, updated_at
	`, productID, qty)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, cost_cents, stock, min_stock, active, created_at, updated_at
		FROM products
		WHERE active = true AND min_stock > 0 AND stock <= min_stock
		ORDER BY stock ASC, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateCourt(ctx context.Context, court domain.Court) (*domain.Court, error) {
	if strings.TrimSpace(court.Name) == "" || court.HourlyRateCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if court.ID == "" {
		court.ID = xid.New("court")
	}
	if court.CreatedAt.IsZero() {
		court.CreatedAt = time.Now().UTC()
	}
	court.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courts (id, name, indoor, hourly_rate_cents, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, court.ID, court.Name, court.Indoor, court.HourlyRateCents, court.Active, court.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	created := court
	return &created, nil
}

func (s *Store) ListCourts(ctx context.Context) ([]domain.Court, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, indoor, hourly_rate_cents, active, created_at
		FROM courts
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courts := make([]domain.Court, 0, 8)
	for rows.Next() {
		var c domain.Court
		if err := rows.Scan(&c.ID, &c.Name, &c.Indoor, &c.HourlyRateCents, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		courts = append(courts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return courts, nil
}

func (s *Store) GetCourt(ctx context.Context, id string) (*domain.Court, error) {
	var c domain.Court
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, indoor, hourly_rate_cents, active, created_at
		FROM courts
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Indoor, &c.HourlyRateCents, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreatePlayer(ctx context.Context, player domain.Player) (*domain.Player, error) {
	if strings.TrimSpace(player.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if player.SpecialShareCents != nil && *player.SpecialShareCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if player.ID == "" {
		player.ID = xid.New("player")
	}
	if player.CreatedAt.IsZero() {
		player.CreatedAt = time.Now().UTC()
	}
	player.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (id, name, phone, special_share_cents, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, player.ID, player.Name, player.Phone, nullInt64(player.SpecialShareCents), player.Active, player.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := player
	return &created, nil
}

func (s *Store) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, special_share_cents, active, created_at
		FROM players
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]domain.Player, 0, 64)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}

func (s *Store) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, special_share_cents, active, created_at
		FROM players
		WHERE id = $1
	`, id)
	p, err := scanPlayer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error) {
	if booking.CourtID == "" || len(booking.Players) == 0 {
		return nil, store.ErrInvalidInput
	}
	if booking.ID == "" {
		booking.ID = xid.New("bk")
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	if booking.Status == "" {
		booking.Status = domain.BookingStatusConfirmed
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, court_id, booking_date, start_time, end_time, court_price_cents,
			total_amount_cents, status, booking_type, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, booking.ID, booking.CourtID, booking.Date, booking.StartTime, booking.EndTime, booking.CourtPriceCents,
		booking.TotalAmountCents, booking.Status, booking.Type, booking.CreatedBy, booking.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range booking.Players {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO booking_players (booking_id, player_id, share_cents, padel_rental)
			VALUES ($1,$2,$3,$4)
		`, booking.ID, line.PlayerID, line.ShareCents, line.PadelRental)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := booking
	return &created, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	err := s.db.QueryRowContext(ctx, `
		SELECT id, court_id, booking_date, start_time, end_time, court_price_cents,
			total_amount_cents, status, booking_type, created_by, created_at
		FROM bookings
		WHERE id = $1
	`, id).Scan(&b.ID, &b.CourtID, &b.Date, &b.StartTime, &b.EndTime, &b.CourtPriceCents,
		&b.TotalAmountCents, &b.Status, &b.Type, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	b.Date = dateUTC(b.Date)
	b.CreatedAt = b.CreatedAt.UTC()

	players, err := s.bookingPlayersByBooking(ctx, []string{b.ID})
	if err != nil {
		return nil, err
	}
	b.Players = players[b.ID]
	return &b, nil
}

func (s *Store) ListBookings(ctx context.Context, from time.Time, to time.Time) ([]domain.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, court_id, booking_date, start_time, end_time, court_price_cents,
			total_amount_cents, status, booking_type, created_by, created_at
		FROM bookings
		WHERE booking_date >= $1 AND booking_date < $2
		ORDER BY booking_date, start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.CourtID, &b.Date, &b.StartTime, &b.EndTime, &b.CourtPriceCents,
			&b.TotalAmountCents, &b.Status, &b.Type, &b.CreatedBy, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Date = dateUTC(b.Date)
		b.CreatedAt = b.CreatedAt.UTC()
		bookings = append(bookings, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return bookings, nil
	}

	players, err := s.bookingPlayersByBooking(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i].Players = players[bookings[i].ID]
	}
	return bookings, nil
}

func (s *Store) bookingPlayersByBooking(ctx context.Context, bookingIDs []string) (map[string][]domain.BookingPlayer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT booking_id, player_id, share_cents, padel_rental
		FROM booking_players
		WHERE booking_id = ANY($1)
		ORDER BY id ASC
	`, bookingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]domain.BookingPlayer, len(bookingIDs))
	for rows.Next() {
		var bookingID string
		var line domain.BookingPlayer
		if err := rows.Scan(&bookingID, &line.PlayerID, &line.ShareCents, &line.PadelRental); err != nil {
			return nil, err
		}
		result[bookingID] = append(result[bookingID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CancelBooking(ctx context.Context, id string, at time.Time) (*domain.Booking, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status != domain.BookingStatusConfirmed {
		return nil, store.ErrInvalidInput
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $2
		WHERE id = $1
	`, id, domain.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetBooking(ctx, id)
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	ids := uniqueProductIDs(sale.Items)
	if len(ids) == 0 {
		return nil, store.ErrInvalidInput
	}

	productRows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, price_cents, stock
		FROM products
		WHERE active = true AND id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	type productState struct {
		name       string
		priceCents int64
		stock      int
	}
	productMap := make(map[string]productState, len(ids))
	for productRows.Next() {
		var id string
		var state productState
		if err := productRows.Scan(&id, &state.name, &state.priceCents, &state.stock); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		productMap[id] = state
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	totalCents := int64(0)
	recomputedItems := make([]domain.SaleItem, 0, len(sale.Items))
	needed := make(map[string]int, len(ids))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		product, exists := productMap[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrNotFound)
		}
		needed[item.ProductID] += item.Qty
		if needed[item.ProductID] > product.stock {
			return nil, fmt.Errorf("product %s: %w", product.name, store.ErrInsufficientStock)
		}
		recomputedItems = append(recomputedItems, domain.SaleItem{
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceCents: product.priceCents,
		})
		totalCents += product.priceCents * int64(item.Qty)
	}

	for id, qty := range needed {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2
		`, qty, id)
		if err != nil {
			return nil, err
		}
	}

	sale.Items = recomputedItems
	sale.TotalAmountCents = totalCents

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, total_amount_cents, payment_method, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, sale.ID, sale.TotalAmountCents, sale.PaymentMethod, sale.CreatedBy, sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range sale.Items {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4)
		`, sale.ID, item.ProductID, item.Qty, item.UnitPriceCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_amount_cents, payment_method, created_by, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.TotalAmountCents, &sale.PaymentMethod, &sale.CreatedBy, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	items, err := s.saleItemsBySale(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, total_amount_cents, payment_method, created_by, created_at
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.TotalAmountCents, &sale.PaymentMethod, &sale.CreatedBy, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return sales, nil
	}

	items, err := s.saleItemsBySale(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) saleItemsBySale(ctx context.Context, saleIDs []string) (map[string][]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, qty, unit_price_cents
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id ASC
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]domain.SaleItem, len(saleIDs))
	for rows.Next() {
		var saleID string
		var item domain.SaleItem
		if err := rows.Scan(&saleID, &item.ProductID, &item.Qty, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.AmountCents < 1 || expense.Category == "" {
		return nil, store.ErrInvalidInput
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, amount_cents, category, description, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, expense.ID, expense.AmountCents, expense.Category, expense.Description, expense.CreatedBy, expense.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount_cents, category, description, created_by, created_at
		FROM expenses
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 32)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.AmountCents, &e.Category, &e.Description, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) OpenDailyBalance(ctx context.Context, balance domain.DailyBalance) (*domain.DailyBalance, error) {
	if balance.StartingAmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if balance.ID == "" {
		balance.ID = xid.New("bal")
	}
	if balance.OpenedAt.IsZero() {
		balance.OpenedAt = time.Now().UTC()
	}
	balance.Date = domain.Day(balance.Date)
	balance.CashInRegisterCents = balance.StartingAmountCents
	balance.CalculatedAmountCents = balance.StartingAmountCents
	balance.DifferenceCents = 0
	balance.ClosedBy = ""
	balance.ClosedAt = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_balances (
			id, balance_date, starting_amount_cents, cash_in_register_cents,
			calculated_amount_cents, difference_cents, notes, opened_by, opened_at, closed_by, closed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULL,NULL)
	`, balance.ID, balance.Date, balance.StartingAmountCents, balance.CashInRegisterCents,
		balance.CalculatedAmountCents, balance.DifferenceCents, balance.Notes, balance.OpenedBy, balance.OpenedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrRegisterOpen
		}
		return nil, err
	}
	saved := balance
	return &saved, nil
}

func (s *Store) GetOpenDailyBalance(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, balance_date, starting_amount_cents, cash_in_register_cents,
			calculated_amount_cents, difference_cents, notes, opened_by, opened_at, closed_by, closed_at
		FROM daily_balances
		WHERE balance_date = $1 AND closed_at IS NULL
	`, domain.Day(date))
	balance, err := scanDailyBalance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &balance, nil
}

func (s *Store) GetDailyBalance(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, balance_date, starting_amount_cents, cash_in_register_cents,
			calculated_amount_cents, difference_cents, notes, opened_by, opened_at, closed_by, closed_at
		FROM daily_balances
		WHERE balance_date = $1
		ORDER BY opened_at DESC
		LIMIT 1
	`, domain.Day(date))
	balance, err := scanDailyBalance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &balance, nil
}

func (s *Store) CloseDailyBalance(ctx context.Context, date time.Time, countedCashCents int64, notes string, closedBy string, closedAt time.Time) (*domain.DailyBalance, error) {
	if countedCashCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}
	day := domain.Day(date)
	from, to := domain.DayWindow(day)

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var id string
	var startingCents int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, starting_amount_cents
		FROM daily_balances
		WHERE balance_date = $1 AND closed_at IS NULL
		FOR UPDATE
	`, day).Scan(&id, &startingCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRegisterClosed
		}
		return nil, err
	}

	var bookingCents int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount_cents),0)::bigint
		FROM bookings
		WHERE booking_date = $1 AND status <> $2
	`, day, domain.BookingStatusCancelled).Scan(&bookingCents)
	if err != nil {
		return nil, err
	}

	var saleCents int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount_cents),0)::bigint
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&saleCents)
	if err != nil {
		return nil, err
	}

	var expenseCents int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents),0)::bigint
		FROM expenses
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&expenseCents)
	if err != nil {
		return nil, err
	}

	calculated := startingCents + bookingCents + saleCents - expenseCents
	difference := countedCashCents - calculated

	row := pgTx.QueryRowContext(ctx, `
		UPDATE daily_balances
		SET cash_in_register_cents = $2, calculated_amount_cents = $3, difference_cents = $4,
			notes = $5, closed_by = $6, closed_at = $7
		WHERE id = $1
		RETURNING id, balance_date, starting_amount_cents, cash_in_register_cents,
			calculated_amount_cents, difference_cents, notes, opened_by, opened_at, closed_by, closed_at
	`, id, countedCashCents, calculated, difference, notes, closedBy, closedAt)
	balance, err := scanDailyBalance(row)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &balance, nil
}

func (s *Store) ListDailyBalances(ctx context.Context, from time.Time, to time.Time) ([]domain.DailyBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, balance_date, starting_amount_cents, cash_in_register_cents,
			calculated_amount_cents, difference_cents, notes, opened_by, opened_at, closed_by, closed_at
		FROM daily_balances
		WHERE balance_date >= $1 AND balance_date < $2
		ORDER BY balance_date DESC, opened_at DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make([]domain.DailyBalance, 0, 32)
	for rows.Next() {
		balance, err := scanDailyBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return balances, nil
}

func (s *Store) GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	report := domain.DailyReport{
		Date:               from.Format("2006-01-02"),
		SalesByPayment:     make([]domain.PaymentBreakdown, 0, 4),
		ExpensesByCategory: make([]domain.CategoryBreakdown, 0, 8),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint, COALESCE(SUM(total_amount_cents),0)::bigint
		FROM bookings
		WHERE booking_date >= $1 AND booking_date < $2 AND status <> $3
	`, from, to, domain.BookingStatusCancelled).Scan(&report.Bookings, &report.BookingTotalCents)
	if err != nil {
		return report, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint, COALESCE(SUM(total_amount_cents),0)::bigint
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&report.Sales, &report.SaleTotalCents)
	if err != nil {
		return report, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint, COALESCE(SUM(amount_cents),0)::bigint
		FROM expenses
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&report.Expenses, &report.ExpenseTotalCents)
	if err != nil {
		return report, err
	}

	report.NetCents = report.BookingTotalCents + report.SaleTotalCents - report.ExpenseTotalCents

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*)::bigint, COALESCE(SUM(total_amount_cents),0)::bigint
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY payment_method
		ORDER BY payment_method
	`, from, to)
	if err != nil {
		return report, err
	}
	for paymentRows.Next() {
		var row domain.PaymentBreakdown
		if err := paymentRows.Scan(&row.PaymentMethod, &row.Sales, &row.TotalCents); err != nil {
			_ = paymentRows.Close()
			return report, err
		}
		report.SalesByPayment = append(report.SalesByPayment, row)
	}
	if err := paymentRows.Err(); err != nil {
		_ = paymentRows.Close()
		return report, err
	}
	_ = paymentRows.Close()

	categoryRows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*)::bigint, COALESCE(SUM(amount_cents),0)::bigint
		FROM expenses
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY category
		ORDER BY category
	`, from, to)
	if err != nil {
		return report, err
	}
	for categoryRows.Next() {
		var row domain.CategoryBreakdown
		if err := categoryRows.Scan(&row.Category, &row.Expenses, &row.TotalCents); err != nil {
			_ = categoryRows.Close()
			return report, err
		}
		report.ExpensesByCategory = append(report.ExpensesByCategory, row)
	}
	if err := categoryRows.Err(); err != nil {
		_ = categoryRows.Close()
		return report, err
	}
	_ = categoryRows.Close()

	balance, err := s.GetDailyBalance(ctx, from)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return report, err
	}
	report.Register = balance

	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.CostCents, &p.Stock, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func scanPlayer(row rowScanner) (domain.Player, error) {
	var p domain.Player
	var share sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &share, &p.Active, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	if share.Valid {
		v := share.Int64
		p.SpecialShareCents = &v
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func scanDailyBalance(row rowScanner) (domain.DailyBalance, error) {
	var b domain.DailyBalance
	var closedBy sql.NullString
	var closedAt sql.NullTime
	err := row.Scan(&b.ID, &b.Date, &b.StartingAmountCents, &b.CashInRegisterCents,
		&b.CalculatedAmountCents, &b.DifferenceCents, &b.Notes, &b.OpenedBy, &b.OpenedAt, &closedBy, &closedAt)
	if err != nil {
		return b, err
	}
	b.Date = dateUTC(b.Date)
	b.OpenedAt = b.OpenedAt.UTC()
	if closedBy.Valid {
		b.ClosedBy = closedBy.String
	}
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		b.ClosedAt = &at
	}
	return b, nil
}

func uniqueProductIDs(items []domain.SaleItem) []string {
	if len(items) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		set[item.ProductID] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}
