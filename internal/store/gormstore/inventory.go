package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/store"
	"kasirinaja/backoffice/internal/xid"
)

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	row := productRow{
		ID:        defaultID(product.ID, "prod"),
		Code:      product.Code,
		Barcode:   nullable(product.Barcode),
		Name:      product.Name,
		Price:     product.Price,
		IsService: product.IsService,
		Active:    product.Active,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	created := row.toDomain()
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var row productRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapError(err)
	}
	product := row.toDomain()
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toDomain())
	}
	return products, nil
}

func (s *Store) ListInventories(ctx context.Context, productID string) ([]domain.Inventory, error) {
	var rows []inventoryRow
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("branch_id ASC, priority ASC, expired_at IS NULL, expired_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	inventories := make([]domain.Inventory, 0, len(rows))
	for _, row := range rows {
		inventories = append(inventories, row.toDomain())
	}
	return inventories, nil
}

func (s *Store) ApplyInventoryMovement(ctx context.Context, movement domain.InventoryMovement) (*domain.InventoryMovement, error) {
	if movement.Quantity < 1 || strings.TrimSpace(movement.ProductID) == "" {
		return nil, store.ErrInvalidInput
	}
	if movement.ID == "" {
		movement.ID = xid.New("move")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", movement.ProductID).Take(&productRow{}).Error; err != nil {
			return mapError(err)
		}

		switch movement.Type {
		case domain.MovementAdd:
			if err := requireBranch(tx, movement.ToBranchID); err != nil {
				return err
			}
			inv := inventoryRow{
				ID:        xid.New("inv"),
				BranchID:  movement.ToBranchID,
				ProductID: movement.ProductID,
				Stock:     movement.Quantity,
				Priority:  movement.Priority,
				ExpiredAt: utcPtr(movement.ExpiredAt),
				CreatedAt: movement.CreatedAt,
			}
			if err := tx.Create(&inv).Error; err != nil {
				return err
			}
			movement.InventoryID = inv.ID

		case domain.MovementRemove, domain.MovementMove:
			source, err := takeSource(tx, movement)
			if err != nil {
				return err
			}
			movement.FromBranchID = source.BranchID

			res := tx.Model(&inventoryRow{}).
				Where("id = ? AND stock >= ?", source.ID, movement.Quantity).
				Update("stock", gorm.Expr("stock - ?", movement.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return store.ErrInsufficientStock
			}

			if movement.Type == domain.MovementMove {
				if movement.ToBranchID == source.BranchID {
					return store.ErrInvalidInput
				}
				if err := requireBranch(tx, movement.ToBranchID); err != nil {
					return err
				}
				if err := addToMatchingInventory(tx, source, movement); err != nil {
					return err
				}
			}

		default:
			return store.ErrInvalidInput
		}

		row := movementRow{
			ID:           movement.ID,
			Type:         movement.Type,
			ProductID:    movement.ProductID,
			InventoryID:  movement.InventoryID,
			FromBranchID: nullable(movement.FromBranchID),
			ToBranchID:   nullable(movement.ToBranchID),
			Quantity:     movement.Quantity,
			ActorUserID:  movement.ActorUserID,
			Remark:       nullable(strings.TrimSpace(movement.Remark)),
			CreatedAt:    movement.CreatedAt,
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &movement, nil
}

func requireBranch(tx *gorm.DB, branchID string) error {
	if branchID == "" {
		return store.ErrInvalidInput
	}
	return mapError(tx.Where("id = ?", branchID).Take(&branchRow{}).Error)
}

func takeSource(tx *gorm.DB, movement domain.InventoryMovement) (inventoryRow, error) {
	var source inventoryRow
	err := lockForUpdate(tx).Where("id = ? AND product_id = ?", movement.InventoryID, movement.ProductID).Take(&source).Error
	if err != nil {
		return inventoryRow{}, mapError(err)
	}
	if movement.FromBranchID != "" && movement.FromBranchID != source.BranchID {
		return inventoryRow{}, store.ErrNotFound
	}
	if source.Stock < movement.Quantity {
		return inventoryRow{}, store.ErrInsufficientStock
	}
	return source, nil
}

// lockForUpdate holds the selected rows until the transaction ends. SQLite
// serialises writers instead and has no row locks.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// addToMatchingInventory credits the lot in the target branch with the same
// expiry and priority as the source, creating it when none exists.
func addToMatchingInventory(tx *gorm.DB, source inventoryRow, movement domain.InventoryMovement) error {
	query := tx.Where("branch_id = ? AND product_id = ? AND priority = ?", movement.ToBranchID, source.ProductID, source.Priority)
	if source.ExpiredAt == nil {
		query = query.Where("expired_at IS NULL")
	} else {
		query = query.Where("expired_at = ?", source.ExpiredAt.UTC())
	}

	var target inventoryRow
	err := query.Take(&target).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		target = inventoryRow{
			ID:        xid.New("inv"),
			BranchID:  movement.ToBranchID,
			ProductID: source.ProductID,
			Stock:     movement.Quantity,
			Priority:  source.Priority,
			ExpiredAt: utcPtr(source.ExpiredAt),
			CreatedAt: movement.CreatedAt,
		}
		return tx.Create(&target).Error
	case err != nil:
		return err
	}
	return tx.Model(&inventoryRow{}).
		Where("id = ?", target.ID).
		Update("stock", gorm.Expr("stock + ?", movement.Quantity)).Error
}

func (s *Store) ListInventoryMovements(ctx context.Context, productID string, limit int) ([]domain.InventoryMovement, error) {
	query := s.db.WithContext(ctx).Where("product_id = ?", productID).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []movementRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	movements := make([]domain.InventoryMovement, 0, len(rows))
	for _, row := range rows {
		movements = append(movements, row.toDomain())
	}
	return movements, nil
}
