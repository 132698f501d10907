package gormstore

import (
	"time"

	"github.com/shopspring/decimal"

	"kasirinaja/backoffice/internal/domain"
)

type branchRow struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func (branchRow) TableName() string { return "branches" }

type userRow struct {
	ID        string `gorm:"primaryKey"`
	Username  string
	Name      string
	Password  string
	Role      string
	BranchID  string
	Active    bool
	CreatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type shiftRow struct {
	ID             string `gorm:"primaryKey"`
	BranchID       string
	OpenedByUserID string
	OpeningBalance decimal.Decimal
	OpenedAt       time.Time
	ClosedByUserID *string
	ClosingBalance decimal.Decimal
	ClosedAt       *time.Time
	Remark         *string
	Suspended      bool
}

func (shiftRow) TableName() string { return "shifts" }

type shiftListingRow struct {
	Shift        shiftRow `gorm:"embedded"`
	BranchName   *string
	OpenedByName *string
	ClosedByName *string
}

type customerGroupRow struct {
	ID       string `gorm:"primaryKey"`
	Name     string
	Discount decimal.Decimal
}

func (customerGroupRow) TableName() string { return "customer_groups" }

type customerRow struct {
	ID      string `gorm:"primaryKey"`
	Name    string
	GroupID *string
	Group   *customerGroupRow `gorm:"foreignKey:GroupID"`
}

func (customerRow) TableName() string { return "customers" }

type saleRow struct {
	ID             string `gorm:"primaryKey"`
	BranchID       string
	OpenedByUserID string
	CustomerID     *string
	Customer       *customerRow `gorm:"foreignKey:CustomerID"`
	IsDelivery     bool
	SalesDiscount  decimal.Decimal
	OpenedAt       time.Time
	ClosedAt       *time.Time
	CancelledAt    *time.Time
	PaidAt         *time.Time
	Items          []saleItemRow    `gorm:"foreignKey:SaleID"`
	Packages       []salePackageRow `gorm:"foreignKey:SaleID"`
	Payments       []salePaymentRow `gorm:"foreignKey:SaleID"`
}

func (saleRow) TableName() string { return "sales" }

type saleItemRow struct {
	ID        string `gorm:"primaryKey"`
	SaleID    string
	ProductID string
	Price     decimal.Decimal
	Quantity  int
	Discount  decimal.Decimal
}

func (saleItemRow) TableName() string { return "sale_items" }

type salePackageRow struct {
	ID       string `gorm:"primaryKey"`
	SaleID   string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

func (salePackageRow) TableName() string { return "sale_packages" }

type salePaymentRow struct {
	ID            string `gorm:"primaryKey"`
	SaleID        string
	PaymentMethod string
	Amount        decimal.Decimal
	PaidAt        time.Time
}

func (salePaymentRow) TableName() string { return "sale_payments" }

type productRow struct {
	ID        string `gorm:"primaryKey"`
	Code      string
	Barcode   *string
	Name      string
	Price     decimal.Decimal
	IsService bool
	Active    bool
}

func (productRow) TableName() string { return "products" }

type inventoryRow struct {
	ID        string `gorm:"primaryKey"`
	BranchID  string
	ProductID string
	Stock     int
	Priority  int
	ExpiredAt *time.Time
	CreatedAt time.Time
}

func (inventoryRow) TableName() string { return "inventories" }

type movementRow struct {
	ID           string `gorm:"primaryKey"`
	Type         string
	ProductID    string
	InventoryID  string
	FromBranchID *string
	ToBranchID   *string
	Quantity     int
	ActorUserID  string
	Remark       *string
	CreatedAt    time.Time
}

func (movementRow) TableName() string { return "inventory_movements" }

type auditLogRow struct {
	ID            string `gorm:"primaryKey"`
	BranchID      string
	ActorUsername string
	ActorRole     string
	Action        string
	EntityType    string
	EntityID      string
	Detail        string
	CreatedAt     time.Time
}

func (auditLogRow) TableName() string { return "audit_logs" }

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (r shiftRow) toDomain() domain.Shift {
	return domain.Shift{
		ID:             r.ID,
		BranchID:       r.BranchID,
		OpenedByUserID: r.OpenedByUserID,
		OpeningBalance: r.OpeningBalance,
		OpenedAt:       r.OpenedAt.UTC(),
		ClosedByUserID: deref(r.ClosedByUserID),
		ClosingBalance: r.ClosingBalance,
		ClosedAt:       utcPtr(r.ClosedAt),
		Remark:         deref(r.Remark),
		Suspended:      r.Suspended,
	}
}

func shiftFromDomain(s domain.Shift) shiftRow {
	return shiftRow{
		ID:             s.ID,
		BranchID:       s.BranchID,
		OpenedByUserID: s.OpenedByUserID,
		OpeningBalance: s.OpeningBalance,
		OpenedAt:       s.OpenedAt.UTC(),
		ClosedByUserID: nullable(s.ClosedByUserID),
		ClosingBalance: s.ClosingBalance,
		ClosedAt:       utcPtr(s.ClosedAt),
		Remark:         nullable(s.Remark),
		Suspended:      s.Suspended,
	}
}

func (r userRow) toDomain() domain.UserAccount {
	return domain.UserAccount{
		ID:        r.ID,
		Username:  r.Username,
		Name:      r.Name,
		Password:  r.Password,
		Role:      r.Role,
		BranchID:  r.BranchID,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r saleRow) toDomain() domain.Sale {
	sale := domain.Sale{
		ID:             r.ID,
		BranchID:       r.BranchID,
		OpenedByUserID: r.OpenedByUserID,
		IsDelivery:     r.IsDelivery,
		SalesDiscount:  r.SalesDiscount,
		OpenedAt:       r.OpenedAt.UTC(),
		ClosedAt:       utcPtr(r.ClosedAt),
		CancelledAt:    utcPtr(r.CancelledAt),
		PaidAt:         utcPtr(r.PaidAt),
		Items:          make([]domain.SaleItem, 0, len(r.Items)),
		Packages:       make([]domain.SalePackage, 0, len(r.Packages)),
		Payments:       make([]domain.SalePayment, 0, len(r.Payments)),
	}
	if r.Customer != nil {
		customer := &domain.Customer{ID: r.Customer.ID, Name: r.Customer.Name}
		if g := r.Customer.Group; g != nil {
			customer.Group = &domain.CustomerGroup{ID: g.ID, Name: g.Name, Discount: g.Discount}
		}
		sale.Customer = customer
	}
	for _, item := range r.Items {
		sale.Items = append(sale.Items, domain.SaleItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Discount:  item.Discount,
		})
	}
	for _, pkg := range r.Packages {
		sale.Packages = append(sale.Packages, domain.SalePackage{
			ID:       pkg.ID,
			Name:     pkg.Name,
			Price:    pkg.Price,
			Quantity: pkg.Quantity,
		})
	}
	for _, pay := range r.Payments {
		sale.Payments = append(sale.Payments, domain.SalePayment{
			ID:            pay.ID,
			PaymentMethod: pay.PaymentMethod,
			Amount:        pay.Amount,
			PaidAt:        pay.PaidAt.UTC(),
		})
	}
	return sale
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:        r.ID,
		Code:      r.Code,
		Barcode:   deref(r.Barcode),
		Name:      r.Name,
		Price:     r.Price,
		IsService: r.IsService,
		Active:    r.Active,
	}
}

func (r inventoryRow) toDomain() domain.Inventory {
	return domain.Inventory{
		ID:        r.ID,
		BranchID:  r.BranchID,
		ProductID: r.ProductID,
		Stock:     r.Stock,
		Priority:  r.Priority,
		ExpiredAt: utcPtr(r.ExpiredAt),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r movementRow) toDomain() domain.InventoryMovement {
	return domain.InventoryMovement{
		ID:           r.ID,
		Type:         r.Type,
		ProductID:    r.ProductID,
		InventoryID:  r.InventoryID,
		FromBranchID: deref(r.FromBranchID),
		ToBranchID:   deref(r.ToBranchID),
		Quantity:     r.Quantity,
		ActorUserID:  r.ActorUserID,
		Remark:       deref(r.Remark),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func (r auditLogRow) toDomain() domain.AuditLog {
	return domain.AuditLog{
		ID:            r.ID,
		BranchID:      r.BranchID,
		ActorUsername: r.ActorUsername,
		ActorRole:     r.ActorRole,
		Action:        r.Action,
		EntityType:    r.EntityType,
		EntityID:      r.EntityID,
		Detail:        r.Detail,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}
