package gormstore

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/store"
	"kasirinaja/backoffice/internal/xid"
)

func (s *Store) OpenShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.BranchID) == "" || strings.TrimSpace(shift.OpenedByUserID) == "" {
		return nil, store.ErrInvalidInput
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = time.Now().UTC()
	}
	shift.ClosedAt = nil
	shift.ClosedByUserID = ""
	shift.ClosingBalance = decimal.Zero
	shift.Suspended = false
	row := shiftFromDomain(shift)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var suspended int64
		if err := tx.Model(&shiftRow{}).
			Where("branch_id = ? AND opened_by_user_id = ? AND suspended = ?", shift.BranchID, shift.OpenedByUserID, true).
			Count(&suspended).Error; err != nil {
			return err
		}
		if suspended > 0 {
			return store.ErrShiftSuspended
		}

		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return store.ErrShiftAlreadyOpen
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	created := row.toDomain()
	return &created, nil
}

func (s *Store) CloseShift(ctx context.Context, req store.ShiftClose) (*domain.Shift, error) {
	closedAt := req.ClosedAt.UTC()
	if req.ClosedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	var closed shiftRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current shiftRow
		if err := tx.Where("id = ?", req.ShiftID).Take(&current).Error; err != nil {
			return mapError(err)
		}
		if current.ClosedAt != nil {
			return store.ErrShiftClosed
		}

		res := tx.Model(&shiftRow{}).
			Where("id = ? AND closed_at IS NULL", req.ShiftID).
			Updates(map[string]any{
				"closed_by_user_id": nullable(req.ClosedByUserID),
				"closing_balance":   req.ClosingBalance,
				"closed_at":         closedAt,
				"remark":            nullable(strings.TrimSpace(req.Remark)),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrShiftClosed
		}
		return tx.Where("id = ?", req.ShiftID).Take(&closed).Error
	})
	if err != nil {
		return nil, err
	}

	shift := closed.toDomain()
	return &shift, nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*domain.Shift, error) {
	var row shiftRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapError(err)
	}
	shift := row.toDomain()
	return &shift, nil
}

func (s *Store) FindOpenShift(ctx context.Context, branchID string, userID string) (*domain.Shift, error) {
	var row shiftRow
	err := s.db.WithContext(ctx).
		Where("branch_id = ? AND opened_by_user_id = ? AND closed_at IS NULL", branchID, userID).
		Order("opened_at DESC").
		Take(&row).Error
	if err != nil {
		return nil, mapError(err)
	}
	shift := row.toDomain()
	return &shift, nil
}

func (s *Store) ListSuspendedShifts(ctx context.Context, branchID string, userID string) ([]domain.Shift, error) {
	var rows []shiftRow
	err := s.db.WithContext(ctx).
		Where("branch_id = ? AND opened_by_user_id = ? AND suspended = ?", branchID, userID, true).
		Order("opened_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	shifts := make([]domain.Shift, 0, len(rows))
	for _, row := range rows {
		shifts = append(shifts, row.toDomain())
	}
	return shifts, nil
}

func (s *Store) SetShiftSuspended(ctx context.Context, id string, suspended bool) (*domain.Shift, error) {
	res := s.db.WithContext(ctx).Model(&shiftRow{}).Where("id = ?", id).Update("suspended", suspended)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetShift(ctx, id)
}

func (s *Store) ListShifts(ctx context.Context, offset int, limit int) ([]domain.ShiftListing, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&shiftRow{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).
		Table("shifts").
		Select("shifts.*, branches.name AS branch_name, opener.name AS opened_by_name, closer.name AS closed_by_name").
		Joins("LEFT JOIN branches ON branches.id = shifts.branch_id").
		Joins("LEFT JOIN users AS opener ON opener.id = shifts.opened_by_user_id").
		Joins("LEFT JOIN users AS closer ON closer.id = shifts.closed_by_user_id").
		Order("shifts.opened_at DESC, shifts.id DESC").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []shiftListingRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, 0, err
	}

	listings := make([]domain.ShiftListing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, domain.ShiftListing{
			Shift:        row.Shift.toDomain(),
			BranchName:   deref(row.BranchName),
			OpenedByName: deref(row.OpenedByName),
			ClosedByName: deref(row.ClosedByName),
		})
	}
	return listings, total, nil
}
