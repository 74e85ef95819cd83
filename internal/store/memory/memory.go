package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"clubpadel/backend/internal/domain"
	"clubpadel/backend/internal/store"
	"clubpadel/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	courts          map[string]domain.Court
	players         map[string]domain.Player
	bookingsByID    map[string]domain.Booking
	salesByID       map[string]domain.Sale
	expensesByID    map[string]domain.Expense
	balancesByID    map[string]domain.DailyBalance
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prod-seed-01", Name: "Agua 500ml", Category: "drinks", PriceCents: 150, CostCents: 60, Stock: 48, MinStock: 12, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-seed-02", Name: "Isotonica 500ml", Category: "drinks", PriceCents: 250, CostCents: 120, Stock: 36, MinStock: 10, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-seed-03", Name: "Barrita energetica", Category: "snacks", PriceCents: 180, CostCents: 90, Stock: 24, MinStock: 6, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-seed-04", Name: "Tubo pelotas x3", Category: "equipment", PriceCents: 750, CostCents: 450, Stock: 20, MinStock: 4, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-seed-05", Name: "Grip overgrip", Category: "accessories", PriceCents: 300, CostCents: 130, Stock: 30, MinStock: 8, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-seed-06", Name: "Camiseta club", Category: "apparel", PriceCents: 1800, CostCents: 900, Stock: 15, MinStock: 3, Active: true, CreatedAt: now, UpdatedAt: now},
	}

	courts := []domain.Court{
		{ID: "court-seed-01", Name: "Pista 1", Indoor: true, HourlyRateCents: 2000, Active: true, CreatedAt: now},
		{ID: "court-seed-02", Name: "Pista 2", Indoor: true, HourlyRateCents: 2000, Active: true, CreatedAt: now},
		{ID: "court-seed-03", Name: "Pista 3", Indoor: false, HourlyRateCents: 1600, Active: true, CreatedAt: now},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	courtMap := make(map[string]domain.Court, len(courts))
	for _, c := range courts {
		courtMap[c.ID] = c
	}

	return &Store{
		products:        productMap,
		courts:          courtMap,
		players:         make(map[string]domain.Player),
		bookingsByID:    make(map[string]domain.Booking),
		salesByID:       make(map[string]domain.Sale),
		expensesByID:    make(map[string]domain.Expense),
		balancesByID:    make(map[string]domain.DailyBalance),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		courts:          make(map[string]domain.Court),
		players:         make(map[string]domain.Player),
		bookingsByID:    make(map[string]domain.Booking),
		salesByID:       make(map[string]domain.Sale),
		expensesByID:    make(map[string]domain.Expense),
		balancesByID:    make(map[string]domain.DailyBalance),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func (s *Store) ListProducts(_ context.Context, includeInactive bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active && !includeInactive {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.CostCents < 0 || product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt
	product.Active = true

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.CostCents < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	current, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	current.Name = product.Name
	current.Category = product.Category
	current.PriceCents = product.PriceCents
	current.CostCents = product.CostCents
	current.MinStock = product.MinStock
	current.Active = product.Active
	current.UpdatedAt = time.Now().UTC()

	s.products[product.ID] = current
	updated := current
	return &updated, nil
}

func (s *Store) DeactivateProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return store.ErrNotFound
	}
	product.Active = false
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	return nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, qty int, addition bool) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if productID == "" || qty < 1 {
		return nil, store.ErrInvalidInput
	}
	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}

	if addition {
		product.Stock += qty
	} else {
		product.Stock -= qty
		if product.Stock < 0 {
			product.Stock = 0
		}
	}
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	updated := product
	return &updated, nil
}

func (s *Store) SetStock(_ context.Context, productID string, qty int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if productID == "" || qty < 0 {
		return nil, store.ErrInvalidInput
	}
	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}

	product.Stock = qty
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if !p.Active || p.MinStock < 1 || p.Stock > p.MinStock {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Stock == b.Stock {
			return cmpString(a.Name, b.Name)
		}
		return a.Stock - b.Stock
	})

	return products, nil
}

func (s *Store) CreateCourt(_ context.Context, court domain.Court) (*domain.Court, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(court.Name) == "" || court.HourlyRateCents < 0 {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.courts {
		if existing.Name == court.Name {
			return nil, store.ErrInvalidInput
		}
	}
	if court.ID == "" {
		court.ID = xid.New("court")
	}
	if court.CreatedAt.IsZero() {
		court.CreatedAt = time.Now().UTC()
	}
	court.Active = true

	s.courts[court.ID] = court
	created := court
	return &created, nil
}

func (s *Store) ListCourts(_ context.Context) ([]domain.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	courts := make([]domain.Court, 0, len(s.courts))
	for _, c := range s.courts {
		if !c.Active {
			continue
		}
		courts = append(courts, c)
	}
	slices.SortFunc(courts, func(a, b domain.Court) int {
		return cmpString(a.Name, b.Name)
	})
	return courts, nil
}

func (s *Store) GetCourt(_ context.Context, id string) (*domain.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	court, exists := s.courts[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCourt := court
	return &copyCourt, nil
}

func (s *Store) CreatePlayer(_ context.Context, player domain.Player) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	s.players[player.ID] = player
	created := player
	return &created, nil
}

func (s *Store) ListPlayers(_ context.Context) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		if !p.Active {
			continue
		}
		players = append(players, p)
	}
	slices.SortFunc(players, func(a, b domain.Player) int {
		return cmpString(a.Name, b.Name)
	})
	return players, nil
}

func (s *Store) GetPlayer(_ context.Context, id string) (*domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, exists := s.players[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyPlayer := player
	return &copyPlayer, nil
}

func (s *Store) CreateBooking(_ context.Context, booking domain.Booking) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if booking.CourtID == "" || len(booking.Players) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.courts[booking.CourtID]; !exists {
		return nil, store.ErrNotFound
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
	booking.Date = domain.Day(booking.Date)
	booking.Players = slices.Clone(booking.Players)

	s.bookingsByID[booking.ID] = booking
	created := booking
	created.Players = slices.Clone(booking.Players)
	return &created, nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, exists := s.bookingsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyBooking := booking
	copyBooking.Players = slices.Clone(booking.Players)
	return &copyBooking, nil
}

func (s *Store) ListBookings(_ context.Context, from time.Time, to time.Time) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]domain.Booking, 0, 16)
	for _, b := range s.bookingsByID {
		if b.Date.Before(from) || !b.Date.Before(to) {
			continue
		}
		copyBooking := b
		copyBooking.Players = slices.Clone(b.Players)
		bookings = append(bookings, copyBooking)
	}
	slices.SortFunc(bookings, func(a, b domain.Booking) int {
		if a.Date.Equal(b.Date) {
			return cmpString(a.StartTime, b.StartTime)
		}
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	})
	return bookings, nil
}

func (s *Store) CancelBooking(_ context.Context, id string, at time.Time) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, exists := s.bookingsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if booking.Status != domain.BookingStatusConfirmed {
		return nil, store.ErrInvalidInput
	}

	booking.Status = domain.BookingStatusCancelled
	s.bookingsByID[id] = booking
	cancelled := booking
	cancelled.Players = slices.Clone(booking.Players)
	return &cancelled, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	// Validate everything against a scratch copy first so a failing line
	// leaves the product map untouched.
	needed := make(map[string]int, len(sale.Items))
	totalCents := int64(0)
	recomputedItems := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		product, exists := s.products[item.ProductID]
		if !exists || !product.Active {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrNotFound)
		}
		needed[item.ProductID] += item.Qty
		if needed[item.ProductID] > product.Stock {
			return nil, fmt.Errorf("product %s: %w", product.Name, store.ErrInsufficientStock)
		}
		recomputedItems = append(recomputedItems, domain.SaleItem{
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceCents: product.PriceCents,
		})
		totalCents += product.PriceCents * int64(item.Qty)
	}

	now := time.Now().UTC()
	for id, qty := range needed {
		product := s.products[id]
		product.Stock -= qty
		product.UpdatedAt = now
		s.products[id] = product
	}

	sale.Items = recomputedItems
	sale.TotalAmountCents = totalCents
	s.salesByID[sale.ID] = sale
	created := sale
	created.Items = slices.Clone(sale.Items)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := sale
	copySale.Items = slices.Clone(sale.Items)
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 16)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		copySale := sale
		copySale.Items = slices.Clone(sale.Items)
		sales = append(sales, copySale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return sales, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.AmountCents < 1 || expense.Category == "" {
		return nil, store.ErrInvalidInput
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	s.expensesByID[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, 16)
	for _, e := range s.expensesByID {
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		expenses = append(expenses, e)
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return expenses, nil
}

func (s *Store) OpenDailyBalance(_ context.Context, balance domain.DailyBalance) (*domain.DailyBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if balance.StartingAmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	balance.Date = domain.Day(balance.Date)
	for _, existing := range s.balancesByID {
		if existing.ClosedAt == nil && existing.Date.Equal(balance.Date) {
			return nil, store.ErrRegisterOpen
		}
	}
	if balance.ID == "" {
		balance.ID = xid.New("bal")
	}
	if balance.OpenedAt.IsZero() {
		balance.OpenedAt = time.Now().UTC()
	}
	balance.CashInRegisterCents = balance.StartingAmountCents
	balance.CalculatedAmountCents = balance.StartingAmountCents
	balance.DifferenceCents = 0
	balance.ClosedBy = ""
	balance.ClosedAt = nil

	s.balancesByID[balance.ID] = balance
	saved := balance
	return &saved, nil
}

func (s *Store) GetOpenDailyBalance(_ context.Context, date time.Time) (*domain.DailyBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := domain.Day(date)
	for _, balance := range s.balancesByID {
		if balance.ClosedAt == nil && balance.Date.Equal(day) {
			copyBalance := balance
			return &copyBalance, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetDailyBalance(_ context.Context, date time.Time) (*domain.DailyBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := domain.Day(date)
	var latest *domain.DailyBalance
	for _, balance := range s.balancesByID {
		if !balance.Date.Equal(day) {
			continue
		}
		if latest == nil || balance.OpenedAt.After(latest.OpenedAt) {
			copyBalance := balance
			latest = &copyBalance
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (s *Store) CloseDailyBalance(_ context.Context, date time.Time, countedCashCents int64, notes string, closedBy string, closedAt time.Time) (*domain.DailyBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if countedCashCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}
	day := domain.Day(date)
	from, to := domain.DayWindow(day)

	var openID string
	for id, balance := range s.balancesByID {
		if balance.ClosedAt == nil && balance.Date.Equal(day) {
			openID = id
			break
		}
	}
	if openID == "" {
		return nil, store.ErrRegisterClosed
	}

	bookingCents := int64(0)
	for _, b := range s.bookingsByID {
		if b.Status == domain.BookingStatusCancelled {
			continue
		}
		if b.Date.Before(from) || !b.Date.Before(to) {
			continue
		}
		bookingCents += b.TotalAmountCents
	}
	saleCents := int64(0)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		saleCents += sale.TotalAmountCents
	}
	expenseCents := int64(0)
	for _, e := range s.expensesByID {
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		expenseCents += e.AmountCents
	}

	balance := s.balancesByID[openID]
	balance.CalculatedAmountCents = balance.StartingAmountCents + bookingCents + saleCents - expenseCents
	balance.CashInRegisterCents = countedCashCents
	balance.DifferenceCents = countedCashCents - balance.CalculatedAmountCents
	balance.Notes = notes
	balance.ClosedBy = closedBy
	balance.ClosedAt = &closedAt
	s.balancesByID[openID] = balance

	closed := balance
	return &closed, nil
}

func (s *Store) ListDailyBalances(_ context.Context, from time.Time, to time.Time) ([]domain.DailyBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balances := make([]domain.DailyBalance, 0, 16)
	for _, balance := range s.balancesByID {
		if balance.Date.Before(from) || !balance.Date.Before(to) {
			continue
		}
		balances = append(balances, balance)
	}
	slices.SortFunc(balances, func(a, b domain.DailyBalance) int {
		if a.Date.Equal(b.Date) {
			if a.OpenedAt.Equal(b.OpenedAt) {
				return cmpString(b.ID, a.ID)
			}
			if a.OpenedAt.After(b.OpenedAt) {
				return -1
			}
			return 1
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return balances, nil
}

func (s *Store) GetDailyReport(_ context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.DailyReport{
		Date:               from.Format("2006-01-02"),
		SalesByPayment:     make([]domain.PaymentBreakdown, 0, 4),
		ExpensesByCategory: make([]domain.CategoryBreakdown, 0, 8),
	}

	for _, b := range s.bookingsByID {
		if b.Status == domain.BookingStatusCancelled {
			continue
		}
		if b.Date.Before(from) || !b.Date.Before(to) {
			continue
		}
		report.Bookings++
		report.BookingTotalCents += b.TotalAmountCents
	}

	byPayment := make(map[string]*domain.PaymentBreakdown, 4)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		report.Sales++
		report.SaleTotalCents += sale.TotalAmountCents
		row := byPayment[sale.PaymentMethod]
		if row == nil {
			row = &domain.PaymentBreakdown{PaymentMethod: sale.PaymentMethod}
			byPayment[sale.PaymentMethod] = row
		}
		row.Sales++
		row.TotalCents += sale.TotalAmountCents
	}

	byCategory := make(map[string]*domain.CategoryBreakdown, 8)
	for _, e := range s.expensesByID {
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		report.Expenses++
		report.ExpenseTotalCents += e.AmountCents
		row := byCategory[e.Category]
		if row == nil {
			row = &domain.CategoryBreakdown{Category: e.Category}
			byCategory[e.Category] = row
		}
		row.Expenses++
		row.TotalCents += e.AmountCents
	}

	report.NetCents = report.BookingTotalCents + report.SaleTotalCents - report.ExpenseTotalCents

	for _, row := range byPayment {
		report.SalesByPayment = append(report.SalesByPayment, *row)
	}
	slices.SortFunc(report.SalesByPayment, func(a, b domain.PaymentBreakdown) int {
		return cmpString(a.PaymentMethod, b.PaymentMethod)
	})
	for _, row := range byCategory {
		report.ExpensesByCategory = append(report.ExpensesByCategory, *row)
	}
	slices.SortFunc(report.ExpensesByCategory, func(a, b domain.CategoryBreakdown) int {
		return cmpString(a.Category, b.Category)
	})

	day := domain.Day(from)
	var latest *domain.DailyBalance
	for _, balance := range s.balancesByID {
		if !balance.Date.Equal(day) {
			continue
		}
		if latest == nil || balance.OpenedAt.After(latest.OpenedAt) {
			copyBalance := balance
			latest = &copyBalance
		}
	}
	report.Register = latest

	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}

	logs := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a, b string) int {
	return strings.Compare(a, b)
}
