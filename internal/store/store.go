package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"kasirinaja/backoffice/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrShiftSuspended    = errors.New("user has a suspended shift")
	ErrShiftAlreadyOpen  = errors.New("shift already open")
	ErrShiftClosed       = errors.New("shift already closed")
)

// ShiftClose carries the fields written when a shift is closed.
type ShiftClose struct {
	ShiftID        string
	ClosedByUserID string
	ClosingBalance decimal.Decimal
	Remark         string
	ClosedAt       time.Time
}

type Repository interface {
	GetBranch(ctx context.Context, id string) (*domain.Branch, error)
	ListBranches(ctx context.Context) ([]domain.Branch, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	// OpenShift inserts an open shift unless the opener has a suspended shift
	// in the branch (ErrShiftSuspended) or already has one open
	// (ErrShiftAlreadyOpen). Both checks and the insert are atomic.
	OpenShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	CloseShift(ctx context.Context, req ShiftClose) (*domain.Shift, error)
	GetShift(ctx context.Context, id string) (*domain.Shift, error)
	FindOpenShift(ctx context.Context, branchID string, userID string) (*domain.Shift, error)
	ListSuspendedShifts(ctx context.Context, branchID string, userID string) ([]domain.Shift, error)
	SetShiftSuspended(ctx context.Context, id string, suspended bool) (*domain.Shift, error)
	ListShifts(ctx context.Context, offset int, limit int) ([]domain.ShiftListing, int64, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListPaidSales(ctx context.Context, openedByUserID string, from time.Time, to time.Time) ([]domain.Sale, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListInventories(ctx context.Context, productID string) ([]domain.Inventory, error)
	// ApplyInventoryMovement adjusts stock for the movement and records it in
	// one unit of work.
	ApplyInventoryMovement(ctx context.Context, movement domain.InventoryMovement) (*domain.InventoryMovement, error)
	ListInventoryMovements(ctx context.Context, productID string, limit int) ([]domain.InventoryMovement, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
