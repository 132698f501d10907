package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/store"
)

const productMovementLimit = 50

// ProductStock builds the product page: stock per branch, the actor's branch,
// the overall summary and the latest movements.
func (s *Service) ProductStock(ctx context.Context, productID string) (domain.ProductStockView, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.ProductStockView{}, err
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.ProductStockView{}, err
	}
	branches, err := s.repo.ListBranches(ctx)
	if err != nil {
		return domain.ProductStockView{}, err
	}
	inventories, err := s.repo.ListInventories(ctx, productID)
	if err != nil {
		return domain.ProductStockView{}, err
	}

	now := s.now()
	byBranch := make(map[string][]domain.Inventory, len(branches))
	for _, inv := range inventories {
		byBranch[inv.BranchID] = append(byBranch[inv.BranchID], inv)
	}

	view := domain.ProductStockView{
		Product:  *product,
		Overall:  summarizeStock(inventories, now),
		Branches: make([]domain.BranchStock, 0, len(branches)),
	}
	branchNames := make(map[string]string, len(branches))
	for _, branch := range branches {
		branchNames[branch.ID] = branch.Name
		entry := domain.BranchStock{
			Branch:      branch,
			Summary:     summarizeStock(byBranch[branch.ID], now),
			Inventories: nonNil(byBranch[branch.ID]),
		}
		view.Branches = append(view.Branches, entry)
		if branch.ID == actor.BranchID {
			view.Current = entry
		}
	}

	movements, err := s.repo.ListInventoryMovements(ctx, productID, productMovementLimit)
	if err != nil {
		return domain.ProductStockView{}, err
	}
	userNames, err := s.userNames(ctx)
	if err != nil {
		return domain.ProductStockView{}, err
	}
	view.Movements = make([]domain.MovementView, 0, len(movements))
	for _, m := range movements {
		view.Movements = append(view.Movements, domain.MovementView{
			Label:    movementLabel(m, branchNames),
			Quantity: m.Quantity,
			Date:     m.CreatedAt,
			Actor:    userNames[m.ActorUserID],
			Remark:   m.Remark,
		})
	}
	return view, nil
}

// summarizeStock totals a set of lots. The closest expiry is the earliest
// lot that has not expired yet and still holds stock.
func summarizeStock(inventories []domain.Inventory, now time.Time) domain.StockSummary {
	var summary domain.StockSummary
	for _, inv := range inventories {
		summary.Stock += inv.Stock
		if inv.IsExpired(now) {
			summary.Expired += inv.Stock
			continue
		}
		if inv.ExpiredAt == nil || inv.Stock <= 0 {
			continue
		}
		switch {
		case summary.ClosestExpiry == nil || inv.ExpiredAt.Before(summary.ClosestExpiry.Date):
			summary.ClosestExpiry = &domain.ExpiryInfo{Date: *inv.ExpiredAt, Stock: inv.Stock}
		case inv.ExpiredAt.Equal(summary.ClosestExpiry.Date):
			summary.ClosestExpiry.Stock += inv.Stock
		}
	}
	summary.Available = summary.Stock - summary.Expired
	return summary
}

func movementLabel(m domain.InventoryMovement, branchNames map[string]string) string {
	name := func(id string) string {
		if n, ok := branchNames[id]; ok {
			return n
		}
		return id
	}
	switch m.Type {
	case domain.MovementAdd:
		return "Added to " + name(m.ToBranchID)
	case domain.MovementMove:
		return fmt.Sprintf("Moved from %s to %s", name(m.FromBranchID), name(m.ToBranchID))
	case domain.MovementRemove:
		return "Removed from " + name(m.FromBranchID)
	default:
		return m.Type
	}
}

func (s *Service) userNames(ctx context.Context) (map[string]string, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		name := u.Name
		if name == "" {
			name = u.Username
		}
		names[u.ID] = name
	}
	return names, nil
}

func (s *Service) AddInventory(ctx context.Context, req domain.InventoryAddRequest) (domain.InventoryMovement, error) {
	actor, err := s.admin(ctx)
	if err != nil {
		return domain.InventoryMovement{}, err
	}
	if req.BranchID == "" {
		req.BranchID = actor.BranchID
	}
	if req.Quantity < 1 {
		return domain.InventoryMovement{}, store.ErrInvalidInput
	}
	if err := s.requireStockedProduct(ctx, req.ProductID); err != nil {
		return domain.InventoryMovement{}, err
	}

	return s.applyMovement(ctx, domain.InventoryMovement{
		Type:        domain.MovementAdd,
		ProductID:   req.ProductID,
		ToBranchID:  req.BranchID,
		Quantity:    req.Quantity,
		ActorUserID: actor.UserID,
		Remark:      strings.TrimSpace(req.Remark),
		ExpiredAt:   req.ExpiredAt,
		Priority:    req.Priority,
	})
}

func (s *Service) MoveInventory(ctx context.Context, req domain.InventoryMoveRequest) (domain.InventoryMovement, error) {
	actor, err := s.admin(ctx)
	if err != nil {
		return domain.InventoryMovement{}, err
	}
	if req.Quantity < 1 || req.InventoryID == "" || req.ToBranchID == "" {
		return domain.InventoryMovement{}, store.ErrInvalidInput
	}
	if err := s.requireStockedProduct(ctx, req.ProductID); err != nil {
		return domain.InventoryMovement{}, err
	}

	return s.applyMovement(ctx, domain.InventoryMovement{
		Type:        domain.MovementMove,
		ProductID:   req.ProductID,
		InventoryID: req.InventoryID,
		ToBranchID:  req.ToBranchID,
		Quantity:    req.Quantity,
		ActorUserID: actor.UserID,
		Remark:      strings.TrimSpace(req.Remark),
	})
}

func (s *Service) RemoveInventory(ctx context.Context, req domain.InventoryRemoveRequest) (domain.InventoryMovement, error) {
	actor, err := s.admin(ctx)
	if err != nil {
		return domain.InventoryMovement{}, err
	}
	if req.Quantity < 1 || req.InventoryID == "" {
		return domain.InventoryMovement{}, store.ErrInvalidInput
	}
	if err := s.requireStockedProduct(ctx, req.ProductID); err != nil {
		return domain.InventoryMovement{}, err
	}

	return s.applyMovement(ctx, domain.InventoryMovement{
		Type:         domain.MovementRemove,
		ProductID:    req.ProductID,
		InventoryID:  req.InventoryID,
		FromBranchID: req.BranchID,
		Quantity:     req.Quantity,
		ActorUserID:  actor.UserID,
		Remark:       strings.TrimSpace(req.Remark),
	})
}

func (s *Service) requireStockedProduct(ctx context.Context, productID string) error {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if product.IsService {
		return fmt.Errorf("%w: service products carry no stock", store.ErrInvalidInput)
	}
	return nil
}

func (s *Service) applyMovement(ctx context.Context, movement domain.InventoryMovement) (domain.InventoryMovement, error) {
	movement.CreatedAt = s.now()
	saved, err := s.repo.ApplyInventoryMovement(ctx, movement)
	s.metrics.InventoryMovement(movement.Type, err)
	if err != nil {
		return domain.InventoryMovement{}, err
	}

	branchID := saved.ToBranchID
	if branchID == "" {
		branchID = saved.FromBranchID
	}
	s.logAudit(ctx, branchID, "inventory_"+saved.Type, "inventory", saved.InventoryID, fmt.Sprintf("product=%s,qty=%d", saved.ProductID, saved.Quantity))
	return *saved, nil
}

func nonNil(inventories []domain.Inventory) []domain.Inventory {
	if inventories == nil {
		return []domain.Inventory{}
	}
	return inventories
}
