package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserAccount struct {
	ID        string
	Username  string
	Name      string
	Password  string
	Role      string
	BranchID  string
	Active    bool
	CreatedAt time.Time
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	BranchID    string `json:"branch_id"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	BranchID string `json:"branch_id"`
}

type CashierUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	BranchID  string    `json:"branch_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor is the authenticated user a request acts on behalf of.
type Actor struct {
	UserID   string
	Username string
	Name     string
	Role     string
	BranchID string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type Shift struct {
	ID             string          `json:"id"`
	BranchID       string          `json:"branch_id"`
	OpenedByUserID string          `json:"opened_by_user_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	OpenedAt       time.Time       `json:"opened_at"`
	ClosedByUserID string          `json:"closed_by_user_id,omitempty"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
	Remark         string          `json:"remark,omitempty"`
	Suspended      bool            `json:"suspended"`
}

func (s Shift) IsOpen() bool {
	return s.ClosedAt == nil
}

// ShiftListing is a shift row joined with the names shown in the shift index.
type ShiftListing struct {
	Shift
	BranchName   string `json:"branch_name"`
	OpenedByName string `json:"opened_by_name"`
	ClosedByName string `json:"closed_by_name,omitempty"`
}

type ShiftPage struct {
	Shifts   []ShiftListing `json:"shifts"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PerPage  int            `json:"per_page"`
	LastPage int            `json:"last_page"`
}

type ClockInView struct {
	User       Actor `json:"-"`
	CanClockIn bool  `json:"can_clock_in"`
}

type SalesSummary struct {
	Cash   decimal.Decimal `json:"cash"`
	Credit decimal.Decimal `json:"credit"`
}

type ClockOutView struct {
	Shift Shift        `json:"shift"`
	Sales SalesSummary `json:"sales"`
}

const (
	PaymentMethodCash       = "cash"
	PaymentMethodCreditCard = "credit_card"
)

type CustomerGroup struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Discount decimal.Decimal `json:"discount"`
}

type Customer struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Group *CustomerGroup `json:"group,omitempty"`
}

type SaleItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
}

type SalePackage struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type SalePayment struct {
	ID            string          `json:"id"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        time.Time       `json:"paid_at"`
}

type Sale struct {
	ID             string          `json:"id"`
	BranchID       string          `json:"branch_id"`
	OpenedByUserID string          `json:"opened_by_user_id"`
	Customer       *Customer       `json:"customer,omitempty"`
	IsDelivery     bool            `json:"is_delivery"`
	SalesDiscount  decimal.Decimal `json:"sales_discount"`
	Items          []SaleItem      `json:"items"`
	Packages       []SalePackage   `json:"packages"`
	Payments       []SalePayment   `json:"payments"`
	OpenedAt       time.Time       `json:"opened_at"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

func (s Sale) IsFinished() bool {
	return s.ClosedAt != nil
}

func (s Sale) IsPaid() bool {
	return s.PaidAt != nil
}

func (s Sale) Type() string {
	if s.IsDelivery {
		return "Delivery"
	}
	return "Walk In"
}

// FirstPaymentMethod is the method of the earliest recorded payment, or "".
func (s Sale) FirstPaymentMethod() string {
	if len(s.Payments) == 0 {
		return ""
	}
	return s.Payments[0].PaymentMethod
}

type Product struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Barcode   string          `json:"barcode,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	IsService bool            `json:"is_service"`
	Active    bool            `json:"active"`
}

type Inventory struct {
	ID        string     `json:"id"`
	BranchID  string     `json:"branch_id"`
	ProductID string     `json:"product_id"`
	Stock     int        `json:"stock"`
	Priority  int        `json:"priority"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsExpired reports whether the lot's expiry date is before now.
func (i Inventory) IsExpired(now time.Time) bool {
	return i.ExpiredAt != nil && i.ExpiredAt.Before(now)
}

const (
	MovementAdd    = "add"
	MovementMove   = "move"
	MovementRemove = "remove"
)

type InventoryMovement struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	ProductID    string    `json:"product_id"`
	InventoryID  string    `json:"inventory_id"`
	FromBranchID string    `json:"from_branch_id,omitempty"`
	ToBranchID   string    `json:"to_branch_id,omitempty"`
	Quantity     int       `json:"quantity"`
	ActorUserID  string    `json:"actor_user_id"`
	Remark       string    `json:"remark,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	// Only used by "add": the lot to create.
	ExpiredAt *time.Time `json:"-"`
	Priority  int        `json:"-"`
}

type ExpiryInfo struct {
	Date  time.Time `json:"date"`
	Stock int       `json:"stock"`
}

type StockSummary struct {
	Stock         int         `json:"stock"`
	Available     int         `json:"available"`
	Expired       int         `json:"expired"`
	ClosestExpiry *ExpiryInfo `json:"closest_expiry,omitempty"`
}

type BranchStock struct {
	Branch      Branch       `json:"branch"`
	Summary     StockSummary `json:"summary"`
	Inventories []Inventory  `json:"inventories"`
}

type MovementView struct {
	Label    string    `json:"label"`
	Quantity int       `json:"quantity"`
	Date     time.Time `json:"date"`
	Actor    string    `json:"actor"`
	Remark   string    `json:"remark,omitempty"`
}

type ProductStockView struct {
	Product   Product        `json:"product"`
	Current   BranchStock    `json:"current"`
	Overall   StockSummary   `json:"overall"`
	Branches  []BranchStock  `json:"branches"`
	Movements []MovementView `json:"movements"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	BranchID      string    `json:"branch_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type ShiftCloseRequest struct {
	ShiftID        string
	ClosingBalance decimal.Decimal
	Remark         string
}

type InventoryAddRequest struct {
	ProductID string
	BranchID  string
	Quantity  int
	ExpiredAt *time.Time
	Priority  int
	Remark    string
}

type InventoryMoveRequest struct {
	ProductID   string
	InventoryID string
	ToBranchID  string
	Quantity    int
	Remark      string
}

type InventoryRemoveRequest struct {
	ProductID   string
	BranchID    string
	InventoryID string
	Quantity    int
	Remark      string
}

// Export is a rendered file download.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}
