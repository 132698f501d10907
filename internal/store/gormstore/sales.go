package gormstore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/store"
	"kasirinaja/backoffice/internal/xid"
)

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if strings.TrimSpace(sale.BranchID) == "" {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.OpenedAt.IsZero() {
		sale.OpenedAt = time.Now().UTC()
	}

	row := saleRow{
		ID:             sale.ID,
		BranchID:       sale.BranchID,
		OpenedByUserID: sale.OpenedByUserID,
		IsDelivery:     sale.IsDelivery,
		SalesDiscount:  sale.SalesDiscount,
		OpenedAt:       sale.OpenedAt.UTC(),
		ClosedAt:       utcPtr(sale.ClosedAt),
		CancelledAt:    utcPtr(sale.CancelledAt),
		PaidAt:         utcPtr(sale.PaidAt),
	}
	for _, item := range sale.Items {
		row.Items = append(row.Items, saleItemRow{
			ID:        defaultID(item.ID, "item"),
			SaleID:    sale.ID,
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Discount:  item.Discount,
		})
	}
	for _, pkg := range sale.Packages {
		row.Packages = append(row.Packages, salePackageRow{
			ID:       defaultID(pkg.ID, "pkg"),
			SaleID:   sale.ID,
			Name:     pkg.Name,
			Price:    pkg.Price,
			Quantity: pkg.Quantity,
		})
	}
	for _, pay := range sale.Payments {
		row.Payments = append(row.Payments, salePaymentRow{
			ID:            defaultID(pay.ID, "pay"),
			SaleID:        sale.ID,
			PaymentMethod: pay.PaymentMethod,
			Amount:        pay.Amount,
			PaidAt:        pay.PaidAt.UTC(),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c := sale.Customer; c != nil {
			if g := c.Group; g != nil {
				group := customerGroupRow{ID: g.ID, Name: g.Name, Discount: g.Discount}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&group).Error; err != nil {
					return err
				}
			}
			customer := customerRow{ID: c.ID, Name: c.Name}
			if c.Group != nil {
				customer.GroupID = &c.Group.ID
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&customer).Error; err != nil {
				return err
			}
			row.CustomerID = &c.ID
		}
		return tx.Omit("Customer").Create(&row).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetSale(ctx, sale.ID)
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var row saleRow
	if err := s.loadSales(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapError(err)
	}
	sale := row.toDomain()
	return &sale, nil
}

func (s *Store) ListPaidSales(ctx context.Context, openedByUserID string, from time.Time, to time.Time) ([]domain.Sale, error) {
	var rows []saleRow
	err := s.loadSales(ctx).
		Where("opened_by_user_id = ? AND paid_at IS NOT NULL AND paid_at >= ? AND paid_at < ?", openedByUserID, from.UTC(), to.UTC()).
		Order("paid_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, len(rows))
	for _, row := range rows {
		sales = append(sales, row.toDomain())
	}
	return sales, nil
}

func (s *Store) loadSales(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Packages", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at ASC, id ASC") }).
		Preload("Customer.Group")
}

func defaultID(id string, prefix string) string {
	if id != "" {
		return id
	}
	return xid.New(prefix)
}
