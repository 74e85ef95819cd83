package store

import (
	"context"
	"errors"
	"time"

	"clubpadel/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrRegisterOpen      = errors.New("register already open")
	ErrRegisterClosed    = errors.New("no open register")
)

type Repository interface {
	ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeactivateProduct(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, productID string, qty int, addition bool) (*domain.Product, error)
	SetStock(ctx context.Context, productID string, qty int) (*domain.Product, error)
	ListLowStock(ctx context.Context) ([]domain.Product, error)

	CreateCourt(ctx context.Context, court domain.Court) (*domain.Court, error)
	ListCourts(ctx context.Context) ([]domain.Court, error)
	GetCourt(ctx context.Context, id string) (*domain.Court, error)

	CreatePlayer(ctx context.Context, player domain.Player) (*domain.Player, error)
	ListPlayers(ctx context.Context) ([]domain.Player, error)
	GetPlayer(ctx context.Context, id string) (*domain.Player, error)

	CreateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ListBookings(ctx context.Context, from time.Time, to time.Time) ([]domain.Booking, error)
	CancelBooking(ctx context.Context, id string, at time.Time) (*domain.Booking, error)

	// CreateSale persists the sale header, its line items, and the matching stock
	// decrements as one atomic write. Stock checks happen inside the same
	// transaction against locked rows.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error)

	OpenDailyBalance(ctx context.Context, balance domain.DailyBalance) (*domain.DailyBalance, error)
	GetOpenDailyBalance(ctx context.Context, date time.Time) (*domain.DailyBalance, error)
	GetDailyBalance(ctx context.Context, date time.Time) (*domain.DailyBalance, error)
	// CloseDailyBalance recomputes the day's booking/sale/expense sums from the
	// tables inside one transaction and stamps the balance closed. Returns
	// ErrRegisterClosed when no open balance exists for the date.
	CloseDailyBalance(ctx context.Context, date time.Time, countedCashCents int64, notes string, closedBy string, closedAt time.Time) (*domain.DailyBalance, error)
	ListDailyBalances(ctx context.Context, from time.Time, to time.Time) ([]domain.DailyBalance, error)

	GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
