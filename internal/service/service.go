package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"clubpadel/backend/internal/cache"
	"clubpadel/backend/internal/domain"
	"clubpadel/backend/internal/store"
	"clubpadel/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	catalogCacheKey = "catalog:products:v1"
	catalogCacheTTL = 5 * time.Minute
)

type Service struct {
	repo              store.Repository
	catalog           cache.CatalogCache
	defaultShareCents int64
	rentalFeeCents    int64
}

func New(repo store.Repository, catalog cache.CatalogCache, defaultShareCents int64, rentalFeeCents int64) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	if defaultShareCents < 0 {
		defaultShareCents = 0
	}
	if rentalFeeCents < 0 {
		rentalFeeCents = 0
	}

	return &Service{
		repo:              repo,
		catalog:           catalog,
		defaultShareCents: defaultShareCents,
		rentalFeeCents:    rentalFeeCents,
	}
}

func (s *Service) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	if includeInactive {
		return s.repo.ListProducts(ctx, true)
	}

	if cached, hit, err := s.catalog.Get(ctx, catalogCacheKey); err == nil && hit {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: catalog cache read failed: %v", err)
	}

	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Set(ctx, catalogCacheKey, products, catalogCacheTTL); err != nil {
		log.Printf("[service] WARN: catalog cache write failed: %v", err)
	}
	return products, nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx, catalogCacheKey); err != nil {
		log.Printf("[service] WARN: catalog cache invalidation failed: %v", err)
	}
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))

	if req.Name == "" || !domain.IsProductCategory(req.Category) {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.PriceCents < 1 || req.CostCents < 0 || req.Stock < 0 || req.MinStock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	product := domain.Product{
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		CostCents:  req.CostCents,
		Stock:      req.Stock,
		MinStock:   req.MinStock,
		Active:     true,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.Stock))

	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.ToLower(strings.TrimSpace(*req.Category))
		if !domain.IsProductCategory(category) {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Category = category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.CostCents != nil {
		if *req.CostCents < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.CostCents = *req.CostCents
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.MinStock = *req.MinStock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.PriceCents))

	return *saved, nil
}

func (s *Service) DeactivateProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeactivateProduct(ctx, id); err != nil {
		return err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_deactivate", "product", id, "")
	return nil
}

func (s *Service) AdjustStock(ctx context.Context, id string, req domain.StockAdjustRequest) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" || req.Qty < 1 {
		return domain.Product{}, store.ErrInvalidInput
	}

	updated, err := s.repo.AdjustStock(ctx, id, req.Qty, req.Addition)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	direction := "remove"
	if req.Addition {
		direction = "add"
	}
	s.logAudit(ctx, "stock_adjust", "product", id, fmt.Sprintf("op=%s,qty=%d,stock=%d", direction, req.Qty, updated.Stock))

	return *updated, nil
}

func (s *Service) SetStock(ctx context.Context, id string, req domain.StockSetRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" || req.Qty < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	updated, err := s.repo.SetStock(ctx, id, req.Qty)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "stock_set", "product", id, fmt.Sprintf("stock=%d", updated.Stock))

	return *updated, nil
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) CreateCourt(ctx context.Context, req domain.CourtCreateRequest) (domain.Court, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Court{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.HourlyRateCents < 0 {
		return domain.Court{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateCourt(ctx, domain.Court{
		Name:            req.Name,
		Indoor:          req.Indoor,
		HourlyRateCents: req.HourlyRateCents,
		Active:          true,
	})
	if err != nil {
		return domain.Court{}, err
	}

	s.logAudit(ctx, "court_create", "court", created.ID, fmt.Sprintf("name=%s,rate=%d", created.Name, created.HourlyRateCents))
	return *created, nil
}

func (s *Service) ListCourts(ctx context.Context) ([]domain.Court, error) {
	return s.repo.ListCourts(ctx)
}

func (s *Service) CreatePlayer(ctx context.Context, req domain.PlayerCreateRequest) (domain.Player, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Player{}, store.ErrInvalidInput
	}
	if req.SpecialShareCents != nil && *req.SpecialShareCents < 0 {
		return domain.Player{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreatePlayer(ctx, domain.Player{
		Name:              req.Name,
		Phone:             strings.TrimSpace(req.Phone),
		SpecialShareCents: req.SpecialShareCents,
		Active:            true,
	})
	if err != nil {
		return domain.Player{}, err
	}

	s.logAudit(ctx, "player_create", "player", created.ID, created.Name)
	return *created, nil
}

func (s *Service) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	return s.repo.ListPlayers(ctx)
}

func (s *Service) CreateBooking(ctx context.Context, req domain.BookingCreateRequest) (domain.Booking, error) {
	if strings.TrimSpace(req.CourtID) == "" || len(req.Players) == 0 {
		return domain.Booking{}, store.ErrInvalidInput
	}

	day, err := parseDay(req.Date)
	if err != nil {
		return domain.Booking{}, store.ErrInvalidInput
	}
	if !isValidTimeRange(req.StartTime, req.EndTime) {
		return domain.Booking{}, store.ErrInvalidInput
	}
	bookingType := strings.ToLower(strings.TrimSpace(req.Type))
	if bookingType == "" {
		bookingType = domain.BookingTypeFriendly
	}
	if !domain.IsBookingType(bookingType) {
		return domain.Booking{}, store.ErrInvalidInput
	}

	court, err := s.repo.GetCourt(ctx, strings.TrimSpace(req.CourtID))
	if err != nil {
		return domain.Booking{}, err
	}

	courtPrice := court.HourlyRateCents
	if req.CourtPriceCents != nil {
		if *req.CourtPriceCents < 0 {
			return domain.Booking{}, store.ErrInvalidInput
		}
		courtPrice = *req.CourtPriceCents
	}

	lines := make([]domain.BookingPlayer, 0, len(req.Players))
	total := courtPrice
	for _, line := range req.Players {
		playerID := strings.TrimSpace(line.PlayerID)
		if playerID == "" {
			return domain.Booking{}, store.ErrInvalidInput
		}
		player, err := s.repo.GetPlayer(ctx, playerID)
		if err != nil {
			return domain.Booking{}, err
		}

		share := s.defaultShareCents
		if player.SpecialShareCents != nil {
			share = *player.SpecialShareCents
		}
		if line.ShareCents != nil {
			if *line.ShareCents < 0 {
				return domain.Booking{}, store.ErrInvalidInput
			}
			share = *line.ShareCents
		}

		total += share
		if line.PadelRental {
			total += s.rentalFeeCents
		}
		lines = append(lines, domain.BookingPlayer{
			PlayerID:    player.ID,
			ShareCents:  share,
			PadelRental: line.PadelRental,
		})
	}

	actor, _ := ActorFromContext(ctx)
	booking := domain.Booking{
		ID:               xid.New("bk"),
		CourtID:          court.ID,
		Date:             day,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		CourtPriceCents:  courtPrice,
		Players:          lines,
		TotalAmountCents: total,
		Status:           domain.BookingStatusConfirmed,
		Type:             bookingType,
		CreatedBy:        actor.Username,
		CreatedAt:        time.Now().UTC(),
	}

	created, err := s.repo.CreateBooking(ctx, booking)
	if err != nil {
		return domain.Booking{}, err
	}

	s.logAudit(ctx, "booking_create", "booking", created.ID, fmt.Sprintf("court=%s,date=%s,total=%d", created.CourtID, created.Date.Format("2006-01-02"), created.TotalAmountCents))
	return *created, nil
}

func (s *Service) CancelBooking(ctx context.Context, id string) (domain.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Booking{}, store.ErrInvalidInput
	}

	cancelled, err := s.repo.CancelBooking(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.Booking{}, err
	}

	s.logAudit(ctx, "booking_cancel", "booking", id, "")
	return *cancelled, nil
}

func (s *Service) ListBookings(ctx context.Context, date string) ([]domain.Booking, error) {
	day, err := parseDay(date)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	from, to := domain.DayWindow(day)
	return s.repo.ListBookings(ctx, from, to)
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = "cash"
	}
	if !domain.IsPaymentMethod(method) {
		return domain.Sale{}, store.ErrInvalidInput
	}
	if len(req.Items) == 0 {
		return domain.Sale{}, store.ErrInvalidInput
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		if strings.TrimSpace(line.ProductID) == "" || line.Qty < 1 {
			return domain.Sale{}, store.ErrInvalidInput
		}
		items = append(items, domain.SaleItem{ProductID: strings.TrimSpace(line.ProductID), Qty: line.Qty})
	}

	actor, _ := ActorFromContext(ctx)
	sale := domain.Sale{
		ID:            xid.New("sale"),
		Items:         items,
		PaymentMethod: method,
		CreatedBy:     actor.Username,
		CreatedAt:     time.Now().UTC(),
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("method=%s,total=%d,lines=%d", created.PaymentMethod, created.TotalAmountCents, len(created.Items)))
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrInvalidInput
	}
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, date string) ([]domain.Sale, error) {
	day, err := parseDay(date)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	from, to := domain.DayWindow(day)
	return s.repo.ListSales(ctx, from, to)
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if req.AmountCents < 1 || !domain.IsExpenseCategory(category) {
		return domain.Expense{}, store.ErrInvalidInput
	}

	actor, _ := ActorFromContext(ctx)
	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		ID:          xid.New("exp"),
		AmountCents: req.AmountCents,
		Category:    category,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   actor.Username,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.Expense{}, err
	}

	s.logAudit(ctx, "expense_create", "expense", created.ID, fmt.Sprintf("category=%s,amount=%d", created.Category, created.AmountCents))
	return *created, nil
}

func (s *Service) ListExpenses(ctx context.Context, date string) ([]domain.Expense, error) {
	day, err := parseDay(date)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	from, to := domain.DayWindow(day)
	return s.repo.ListExpenses(ctx, from, to)
}

func (s *Service) OpenRegister(ctx context.Context, req domain.OpenRegisterRequest) (domain.DailyBalance, error) {
	if req.StartingAmountCents < 1 {
		return domain.DailyBalance{}, store.ErrInvalidInput
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	opened, err := s.repo.OpenDailyBalance(ctx, domain.DailyBalance{
		ID:                  xid.New("bal"),
		Date:                domain.Day(now),
		StartingAmountCents: req.StartingAmountCents,
		OpenedBy:            actor.Username,
		OpenedAt:            now,
	})
	if err != nil {
		return domain.DailyBalance{}, err
	}

	s.logAudit(ctx, "register_open", "daily_balance", opened.ID, fmt.Sprintf("starting=%d", opened.StartingAmountCents))
	return *opened, nil
}

func (s *Service) CloseRegister(ctx context.Context, req domain.CloseRegisterRequest) (domain.DailyBalance, error) {
	if req.CountedCashCents < 0 {
		return domain.DailyBalance{}, store.ErrInvalidInput
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	closed, err := s.repo.CloseDailyBalance(ctx, now, req.CountedCashCents, strings.TrimSpace(req.Notes), actor.Username, now)
	if err != nil {
		return domain.DailyBalance{}, err
	}

	s.logAudit(ctx, "register_close", "daily_balance", closed.ID, fmt.Sprintf("counted=%d,calculated=%d,difference=%d", closed.CashInRegisterCents, closed.CalculatedAmountCents, closed.DifferenceCents))
	return *closed, nil
}

func (s *Service) RegisterStatus(ctx context.Context, date string) (domain.RegisterStatusResponse, error) {
	day, err := parseDay(date)
	if err != nil {
		return domain.RegisterStatusResponse{}, store.ErrInvalidInput
	}

	resp := domain.RegisterStatusResponse{
		Date:   day.Format("2006-01-02"),
		Status: domain.RegisterStatusAbsent,
	}

	balance, err := s.repo.GetDailyBalance(ctx, day)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return resp, nil
		}
		return domain.RegisterStatusResponse{}, err
	}

	resp.Balance = balance
	if balance.ClosedAt == nil {
		resp.Status = domain.RegisterStatusOpen
	} else {
		resp.Status = domain.RegisterStatusClosed
	}
	return resp, nil
}

func (s *Service) ListDailyBalances(ctx context.Context, fromDate string, toDate string) ([]domain.DailyBalance, error) {
	from, err := parseDay(fromDate)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	to, err := parseDay(toDate)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	// to is inclusive in the API, the store range is half-open.
	return s.repo.ListDailyBalances(ctx, from, to.Add(24*time.Hour))
}

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	day, err := parseDay(date)
	if err != nil {
		return domain.DailyReport{}, store.ErrInvalidInput
	}
	from, to := domain.DayWindow(day)
	return s.repo.GetDailyReport(ctx, from, to)
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	day, err := parseDay(date)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	from, to := domain.DayWindow(day)
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// parseDay accepts a YYYY-MM-DD value, defaulting to today when empty.
func parseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Day(time.Now().UTC()), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return domain.Day(parsed), nil
}

func isValidTimeRange(start string, end string) bool {
	startAt, err := time.Parse("15:04", start)
	if err != nil {
		return false
	}
	endAt, err := time.Parse("15:04", end)
	if err != nil {
		return false
	}
	return endAt.After(startAt)
}
