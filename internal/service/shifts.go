package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/pagination"
	"kasirinaja/backoffice/internal/pricing"
	"kasirinaja/backoffice/internal/store"
)

// OpenShift clocks the actor in at their branch.
func (s *Service) OpenShift(ctx context.Context, openingBalance decimal.Decimal) (domain.Shift, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Shift{}, err
	}

	saved, err := s.repo.OpenShift(ctx, domain.Shift{
		BranchID:       actor.BranchID,
		OpenedByUserID: actor.UserID,
		OpeningBalance: openingBalance,
		OpenedAt:       s.now(),
	})
	s.metrics.ShiftEvent("open", err)
	if err != nil {
		return domain.Shift{}, err
	}

	s.logAudit(ctx, actor.BranchID, "shift_open", "shift", saved.ID, fmt.Sprintf("opening_balance=%s", saved.OpeningBalance.StringFixed(2)))
	s.log.Info(s.log.WithField(ctx, "shift_id", saved.ID), "shift.opened")
	return *saved, nil
}

// CloseShift clocks a shift out. Cashiers may only close their own shift.
func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.Shift, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Shift{}, err
	}

	current, err := s.repo.GetShift(ctx, req.ShiftID)
	if err != nil {
		s.metrics.ShiftEvent("close", err)
		return domain.Shift{}, err
	}
	if !actor.IsAdmin() && current.OpenedByUserID != actor.UserID {
		s.metrics.ShiftEvent("close", ErrAdminRequired)
		return domain.Shift{}, ErrAdminRequired
	}

	closed, err := s.repo.CloseShift(ctx, store.ShiftClose{
		ShiftID:        req.ShiftID,
		ClosedByUserID: actor.UserID,
		ClosingBalance: req.ClosingBalance,
		Remark:         req.Remark,
		ClosedAt:       s.now(),
	})
	s.metrics.ShiftEvent("close", err)
	if err != nil {
		return domain.Shift{}, err
	}

	s.logAudit(ctx, closed.BranchID, "shift_close", "shift", closed.ID, fmt.Sprintf("closing_balance=%s", closed.ClosingBalance.StringFixed(2)))
	s.log.Info(s.log.WithField(ctx, "shift_id", closed.ID), "shift.closed")
	return *closed, nil
}

// CurrentShift is the actor's open shift, or store.ErrNotFound.
func (s *Service) CurrentShift(ctx context.Context) (domain.Shift, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Shift{}, err
	}
	shift, err := s.repo.FindOpenShift(ctx, actor.BranchID, actor.UserID)
	if err != nil {
		return domain.Shift{}, err
	}
	return *shift, nil
}

// CanClockIn is false while the actor has a suspended shift in their branch.
func (s *Service) CanClockIn(ctx context.Context) (bool, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return false, err
	}
	suspended, err := s.repo.ListSuspendedShifts(ctx, actor.BranchID, actor.UserID)
	if err != nil {
		return false, err
	}
	return len(suspended) == 0, nil
}

// ClockInView returns store.ErrShiftAlreadyOpen when the actor is already
// clocked in.
func (s *Service) ClockInView(ctx context.Context) (domain.ClockInView, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.ClockInView{}, err
	}

	_, err = s.repo.FindOpenShift(ctx, actor.BranchID, actor.UserID)
	switch {
	case err == nil:
		return domain.ClockInView{}, store.ErrShiftAlreadyOpen
	case !errors.Is(err, store.ErrNotFound):
		return domain.ClockInView{}, err
	}

	canClockIn, err := s.CanClockIn(ctx)
	if err != nil {
		return domain.ClockInView{}, err
	}
	return domain.ClockInView{User: actor, CanClockIn: canClockIn}, nil
}

// ClockOutView returns the actor's open shift with today's paid sales split
// by the first payment's method.
func (s *Service) ClockOutView(ctx context.Context) (domain.ClockOutView, error) {
	shift, err := s.CurrentShift(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ClockOutView{}, ErrNotClockedIn
	}
	if err != nil {
		return domain.ClockOutView{}, err
	}

	summary, err := s.todaySales(ctx, shift.OpenedByUserID)
	if err != nil {
		return domain.ClockOutView{}, err
	}
	return domain.ClockOutView{Shift: shift, Sales: summary}, nil
}

func (s *Service) todaySales(ctx context.Context, userID string) (domain.SalesSummary, error) {
	from := startOfDay(s.now())
	sales, err := s.repo.ListPaidSales(ctx, userID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return domain.SalesSummary{}, err
	}

	summary := domain.SalesSummary{Cash: decimal.Zero, Credit: decimal.Zero}
	for _, sale := range sales {
		switch sale.FirstPaymentMethod() {
		case domain.PaymentMethodCash:
			summary.Cash = summary.Cash.Add(pricing.SaleTotal(sale))
		case domain.PaymentMethodCreditCard:
			summary.Credit = summary.Credit.Add(pricing.SaleTotal(sale))
		}
	}
	return summary, nil
}

// ListShifts pages through every shift, newest first. Admin only.
func (s *Service) ListShifts(ctx context.Context, page int) (domain.ShiftPage, error) {
	if _, err := s.admin(ctx); err != nil {
		return domain.ShiftPage{}, err
	}

	p := pagination.New(page, s.shiftsPerPage)
	listings, total, err := s.repo.ListShifts(ctx, p.Offset(), p.Limit())
	if err != nil {
		return domain.ShiftPage{}, err
	}
	return domain.ShiftPage{
		Shifts:   listings,
		Total:    total,
		Page:     p.Number,
		PerPage:  p.PerPage,
		LastPage: p.LastPage(total),
	}, nil
}

func (s *Service) SuspendShift(ctx context.Context, shiftID string) (domain.Shift, error) {
	if _, err := s.admin(ctx); err != nil {
		return domain.Shift{}, err
	}

	shift, err := s.repo.SetShiftSuspended(ctx, shiftID, true)
	s.metrics.ShiftEvent("suspend", err)
	if err != nil {
		return domain.Shift{}, err
	}
	s.logAudit(ctx, shift.BranchID, "shift_suspend", "shift", shift.ID, "")
	return *shift, nil
}

// ClearSuspension lifts a suspension; it needs the manager PIN.
func (s *Service) ClearSuspension(ctx context.Context, shiftID string, managerPIN string) (domain.Shift, error) {
	if _, err := s.admin(ctx); err != nil {
		return domain.Shift{}, err
	}
	if s.pin == nil || !s.pin.ValidateManagerPIN(managerPIN) {
		s.metrics.ShiftEvent("clear_suspension", ErrInvalidManagerPIN)
		return domain.Shift{}, ErrInvalidManagerPIN
	}

	shift, err := s.repo.SetShiftSuspended(ctx, shiftID, false)
	s.metrics.ShiftEvent("clear_suspension", err)
	if err != nil {
		return domain.Shift{}, err
	}
	s.logAudit(ctx, shift.BranchID, "shift_clear_suspension", "shift", shift.ID, "")
	return *shift, nil
}
