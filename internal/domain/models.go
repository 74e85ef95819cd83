package domain

import "time"

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	PriceCents int64     `json:"price_cents"`
	CostCents  int64     `json:"cost_cents"`
	Stock      int       `json:"stock"`
	MinStock   int       `json:"min_stock"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
	Stock      int    `json:"stock"`
	MinStock   int    `json:"min_stock"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	CostCents  *int64  `json:"cost_cents,omitempty"`
	MinStock   *int    `json:"min_stock,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

type StockAdjustRequest struct {
	Qty      int  `json:"qty"`
	Addition bool `json:"addition"`
}

type StockSetRequest struct {
	Qty int `json:"qty"`
}

type Court struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Indoor          bool      `json:"indoor"`
	HourlyRateCents int64     `json:"hourly_rate_cents"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

type CourtCreateRequest struct {
	Name            string `json:"name"`
	Indoor          bool   `json:"indoor"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
}

type Player struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone"`
	SpecialShareCents *int64    `json:"special_share_cents,omitempty"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
}

type PlayerCreateRequest struct {
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	SpecialShareCents *int64 `json:"special_share_cents,omitempty"`
}

type BookingPlayer struct {
	PlayerID    string `json:"player_id"`
	ShareCents  int64  `json:"share_cents"`
	PadelRental bool   `json:"padel_rental"`
}

type BookingPlayerRequest struct {
	PlayerID    string `json:"player_id"`
	ShareCents  *int64 `json:"share_cents,omitempty"`
	PadelRental bool   `json:"padel_rental"`
}

type Booking struct {
	ID               string          `json:"id"`
	CourtID          string          `json:"court_id"`
	Date             time.Time       `json:"date"`
	StartTime        string          `json:"start_time"`
	EndTime          string          `json:"end_time"`
	CourtPriceCents  int64           `json:"court_price_cents"`
	Players          []BookingPlayer `json:"players"`
	TotalAmountCents int64           `json:"total_amount_cents"`
	Status           string          `json:"status"`
	Type             string          `json:"type"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

type BookingCreateRequest struct {
	CourtID         string                 `json:"court_id"`
	Date            string                 `json:"date"`
	StartTime       string                 `json:"start_time"`
	EndTime         string                 `json:"end_time"`
	CourtPriceCents *int64                 `json:"court_price_cents,omitempty"`
	Type            string                 `json:"type"`
	Players         []BookingPlayerRequest `json:"players"`
}

type SaleItem struct {
	ProductID      string `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type SaleItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type Sale struct {
	ID               string     `json:"id"`
	Items            []SaleItem `json:"items"`
	TotalAmountCents int64      `json:"total_amount_cents"`
	PaymentMethod    string     `json:"payment_method"`
	CreatedBy        string     `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
}

type SaleCreateRequest struct {
	PaymentMethod string            `json:"payment_method"`
	Items         []SaleItemRequest `json:"items"`
}

type Expense struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type ExpenseCreateRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// DailyBalance is one cash-register day. ClosedAt doubles as the open/closed
// discriminator: a balance with ClosedAt == nil is the open register for its date.
type DailyBalance struct {
	ID                    string     `json:"id"`
	Date                  time.Time  `json:"date"`
	StartingAmountCents   int64      `json:"starting_amount_cents"`
	CashInRegisterCents   int64      `json:"cash_in_register_cents"`
	CalculatedAmountCents int64      `json:"calculated_amount_cents"`
	DifferenceCents       int64      `json:"difference_cents"`
	Notes                 string     `json:"notes,omitempty"`
	OpenedBy              string     `json:"opened_by"`
	OpenedAt              time.Time  `json:"opened_at"`
	ClosedBy              string     `json:"closed_by,omitempty"`
	ClosedAt              *time.Time `json:"closed_at,omitempty"`
}

type OpenRegisterRequest struct {
	StartingAmountCents int64 `json:"starting_amount_cents"`
}

type CloseRegisterRequest struct {
	CountedCashCents int64  `json:"counted_cash_cents"`
	Notes            string `json:"notes"`
}

type RegisterStatusResponse struct {
	Date    string        `json:"date"`
	Status  string        `json:"status"`
	Balance *DailyBalance `json:"balance,omitempty"`
}

type PaymentBreakdown struct {
	PaymentMethod string `json:"payment_method"`
	Sales         int64  `json:"sales"`
	TotalCents    int64  `json:"total_cents"`
}

type CategoryBreakdown struct {
	Category   string `json:"category"`
	Expenses   int64  `json:"expenses"`
	TotalCents int64  `json:"total_cents"`
}

type DailyReport struct {
	Date               string              `json:"date"`
	Bookings           int64               `json:"bookings"`
	BookingTotalCents  int64               `json:"booking_total_cents"`
	Sales              int64               `json:"sales"`
	SaleTotalCents     int64               `json:"sale_total_cents"`
	Expenses           int64               `json:"expenses"`
	ExpenseTotalCents  int64               `json:"expense_total_cents"`
	NetCents           int64               `json:"net_cents"`
	SalesByPayment     []PaymentBreakdown  `json:"sales_by_payment"`
	ExpensesByCategory []CategoryBreakdown `json:"expenses_by_category"`
	Register           *DailyBalance       `json:"register,omitempty"`
}

type ImportRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type ProductImportResult struct {
	Imported int              `json:"imported"`
	Rejected int              `json:"rejected"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

const (
	BookingTypeFriendly = "friendly"
	BookingTypeLeague   = "league"
	BookingTypeTraining = "training"
)

const (
	RegisterStatusOpen   = "open"
	RegisterStatusClosed = "closed"
	RegisterStatusAbsent = "absent"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

var ProductCategories = []string{"drinks", "snacks", "equipment", "apparel", "accessories", "other"}

var ExpenseCategories = []string{"maintenance", "supplies", "utilities", "wages", "other"}

var PaymentMethods = []string{"cash", "card", "transfer"}

func IsProductCategory(category string) bool {
	return contains(ProductCategories, category)
}

func IsExpenseCategory(category string) bool {
	return contains(ExpenseCategories, category)
}

func IsPaymentMethod(method string) bool {
	return contains(PaymentMethods, method)
}

func IsBookingType(t string) bool {
	return t == BookingTypeFriendly || t == BookingTypeLeague || t == BookingTypeTraining
}

func contains(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayWindow returns the half-open [00:00, 24:00) UTC range of t's calendar day.
// Every "records for day D" query in the system goes through this helper.
func DayWindow(t time.Time) (time.Time, time.Time) {
	from := Day(t)
	return from, from.Add(24 * time.Hour)
}
