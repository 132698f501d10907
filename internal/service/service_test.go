package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/store"
	"kasirinaja/backoffice/internal/store/memory"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type staticPIN string

func (p staticPIN) ValidateManagerPIN(pin string) bool {
	return pin == string(p)
}

var (
	cashier = domain.Actor{UserID: "user-cashier", Username: "cashier", Name: "Front Cashier", Role: domain.RoleCashier, BranchID: "main-branch"}
	admin   = domain.Actor{UserID: "user-admin", Username: "admin", Name: "Store Admin", Role: domain.RoleAdmin, BranchID: "main-branch"}
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	repo.AddBranch(domain.Branch{ID: "main-branch", Name: "Main Branch"})
	repo.AddBranch(domain.Branch{ID: "north-branch", Name: "North Branch"})
	for _, u := range []domain.UserAccount{
		{ID: cashier.UserID, Username: cashier.Username, Name: cashier.Name, Password: "x", Role: cashier.Role, BranchID: cashier.BranchID},
		{ID: admin.UserID, Username: admin.Username, Name: admin.Name, Password: "x", Role: admin.Role, BranchID: admin.BranchID},
	} {
		if err := repo.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	svc := New(repo, Options{
		DefaultBranchID: "main-branch",
		ShiftsPerPage:   2,
		ManagerPIN:      staticPIN("482915"),
		Now:             func() time.Time { return fixedNow },
	})
	return svc, repo
}

func as(actor domain.Actor) context.Context {
	return WithActor(context.Background(), actor)
}

func TestOpenShiftRequiresActor(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.OpenShift(context.Background(), decimal.Zero)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestOpenShiftOncePerUserAndBranch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := as(cashier)

	shift, err := svc.OpenShift(ctx, decimal.RequireFromString("150000"))
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}
	if shift.BranchID != "main-branch" || shift.OpenedByUserID != cashier.UserID {
		t.Fatalf("unexpected shift owner: %+v", shift)
	}
	if !shift.OpenedAt.Equal(fixedNow) {
		t.Fatalf("expected opened_at %s, got %s", fixedNow, shift.OpenedAt)
	}

	_, err = svc.OpenShift(ctx, decimal.Zero)
	if !errors.Is(err, store.ErrShiftAlreadyOpen) {
		t.Fatalf("expected ErrShiftAlreadyOpen, got %v", err)
	}

	current, err := svc.CurrentShift(ctx)
	if err != nil {
		t.Fatalf("current shift: %v", err)
	}
	if current.ID != shift.ID {
		t.Fatalf("expected current shift %s, got %s", shift.ID, current.ID)
	}
}

func TestSuspendedShiftBlocksOpenWithoutWriting(t *testing.T) {
	svc, _ := newTestService(t)

	shift, err := svc.OpenShift(as(cashier), decimal.Zero)
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}
	if _, err := svc.CloseShift(as(cashier), domain.ShiftCloseRequest{ShiftID: shift.ID}); err != nil {
		t.Fatalf("close shift failed: %v", err)
	}
	if _, err := svc.SuspendShift(as(admin), shift.ID); err != nil {
		t.Fatalf("suspend failed: %v", err)
	}

	canClockIn, err := svc.CanClockIn(as(cashier))
	if err != nil || canClockIn {
		t.Fatalf("expected canClockIn=false, got %v err=%v", canClockIn, err)
	}

	_, err = svc.OpenShift(as(cashier), decimal.Zero)
	if !errors.Is(err, store.ErrShiftSuspended) {
		t.Fatalf("expected ErrShiftSuspended, got %v", err)
	}

	page, err := svc.ListShifts(as(admin), 1)
	if err != nil {
		t.Fatalf("list shifts: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected the blocked open to write nothing, got %d shifts", page.Total)
	}
}

func TestClearSuspensionNeedsManagerPIN(t *testing.T) {
	svc, _ := newTestService(t)

	shift, err := svc.OpenShift(as(cashier), decimal.Zero)
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}
	if _, err := svc.SuspendShift(as(admin), shift.ID); err != nil {
		t.Fatalf("suspend failed: %v", err)
	}

	if _, err := svc.SuspendShift(as(cashier), shift.ID); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected cashier suspend to be rejected, got %v", err)
	}
	if _, err := svc.ClearSuspension(as(admin), shift.ID, "000000"); !errors.Is(err, ErrInvalidManagerPIN) {
		t.Fatalf("expected ErrInvalidManagerPIN, got %v", err)
	}

	cleared, err := svc.ClearSuspension(as(admin), shift.ID, "482915")
	if err != nil {
		t.Fatalf("clear suspension failed: %v", err)
	}
	if cleared.Suspended {
		t.Fatalf("expected suspension cleared")
	}
}

func TestCloseUnknownShiftLeavesStateUnchanged(t *testing.T) {
	svc, _ := newTestService(t)

	shift, err := svc.OpenShift(as(cashier), decimal.Zero)
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}

	_, err = svc.CloseShift(as(cashier), domain.ShiftCloseRequest{ShiftID: "shift-missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	current, err := svc.CurrentShift(as(cashier))
	if err != nil {
		t.Fatalf("current shift: %v", err)
	}
	if current.ID != shift.ID || !current.IsOpen() {
		t.Fatalf("expected shift %s to stay open", shift.ID)
	}
}

func TestCloseShiftRecordsCloser(t *testing.T) {
	svc, _ := newTestService(t)

	shift, err := svc.OpenShift(as(cashier), decimal.RequireFromString("100000"))
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}

	other := domain.Actor{UserID: "user-other", Username: "other", Role: domain.RoleCashier, BranchID: "main-branch"}
	if _, err := svc.CloseShift(as(other), domain.ShiftCloseRequest{ShiftID: shift.ID}); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected another cashier to be rejected, got %v", err)
	}

	closed, err := svc.CloseShift(as(admin), domain.ShiftCloseRequest{
		ShiftID:        shift.ID,
		ClosingBalance: decimal.RequireFromString("275000"),
		Remark:         "counted twice",
	})
	if err != nil {
		t.Fatalf("close shift failed: %v", err)
	}
	if closed.ClosedByUserID != admin.UserID || closed.Remark != "counted twice" {
		t.Fatalf("unexpected closed shift: %+v", closed)
	}
	if closed.ClosedAt == nil || !closed.ClosedAt.Equal(fixedNow) {
		t.Fatalf("expected closed_at %s, got %v", fixedNow, closed.ClosedAt)
	}

	if _, err := svc.CloseShift(as(admin), domain.ShiftCloseRequest{ShiftID: shift.ID}); !errors.Is(err, store.ErrShiftClosed) {
		t.Fatalf("expected ErrShiftClosed, got %v", err)
	}
}

func TestClockInViewRejectsWhenAlreadyOpen(t *testing.T) {
	svc, _ := newTestService(t)

	view, err := svc.ClockInView(as(cashier))
	if err != nil {
		t.Fatalf("clock-in view: %v", err)
	}
	if !view.CanClockIn || view.User.UserID != cashier.UserID {
		t.Fatalf("unexpected clock-in view: %+v", view)
	}

	if _, err := svc.OpenShift(as(cashier), decimal.Zero); err != nil {
		t.Fatalf("open shift failed: %v", err)
	}
	if _, err := svc.ClockInView(as(cashier)); !errors.Is(err, store.ErrShiftAlreadyOpen) {
		t.Fatalf("expected ErrShiftAlreadyOpen, got %v", err)
	}
}

func TestClockOutViewWithoutShift(t *testing.T) {
	svc, _ := newTestService(t)

	view, err := svc.ClockOutView(as(cashier))
	if !errors.Is(err, ErrNotClockedIn) {
		t.Fatalf("expected ErrNotClockedIn, got %v", err)
	}
	if view.Shift.ID != "" {
		t.Fatalf("expected no shift, got %s", view.Shift.ID)
	}
}

func TestClockOutViewSumsTodaysSalesByFirstPayment(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	if _, err := svc.OpenShift(as(cashier), decimal.Zero); err != nil {
		t.Fatalf("open shift failed: %v", err)
	}

	member := &domain.Customer{ID: "cust-1", Name: "Rina", Group: &domain.CustomerGroup{ID: "grp-1", Name: "Member", Discount: decimal.RequireFromString("10")}}
	paid := func(at time.Time, customer *domain.Customer, salesDiscount string, methods ...string) {
		sale := domain.Sale{
			BranchID:       "main-branch",
			OpenedByUserID: cashier.UserID,
			Customer:       customer,
			SalesDiscount:  decimal.RequireFromString(salesDiscount),
			Items:          []domain.SaleItem{{ProductID: "prod-a", Price: decimal.RequireFromString("1000"), Quantity: 1}},
			PaidAt:         &at,
		}
		for i, method := range methods {
			sale.Payments = append(sale.Payments, domain.SalePayment{
				PaymentMethod: method,
				Amount:        decimal.RequireFromString("1"),
				PaidAt:        at.Add(time.Duration(i) * time.Minute),
			})
		}
		if _, err := repo.CreateSale(ctx, sale); err != nil {
			t.Fatalf("create sale: %v", err)
		}
	}

	today := fixedNow.Add(-2 * time.Hour)
	paid(today, member, "5", domain.PaymentMethodCash)
	paid(today, nil, "0", domain.PaymentMethodCash, domain.PaymentMethodCreditCard)
	paid(today, nil, "50", domain.PaymentMethodCreditCard, domain.PaymentMethodCash)
	paid(fixedNow.Add(-24*time.Hour), nil, "0", domain.PaymentMethodCash)

	view, err := svc.ClockOutView(as(cashier))
	if err != nil {
		t.Fatalf("clock-out view: %v", err)
	}
	if !view.Sales.Cash.Equal(decimal.RequireFromString("1855")) {
		t.Fatalf("expected cash 1855, got %s", view.Sales.Cash)
	}
	if !view.Sales.Credit.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("expected credit 500, got %s", view.Sales.Credit)
	}
}

func TestListShiftsIsAdminOnlyAndPaged(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ListShifts(as(cashier), 1); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}

	for _, actor := range []domain.Actor{cashier, admin} {
		if _, err := svc.OpenShift(as(actor), decimal.Zero); err != nil {
			t.Fatalf("open shift failed: %v", err)
		}
	}
	north := cashier
	north.BranchID = "north-branch"
	if _, err := svc.OpenShift(as(north), decimal.Zero); err != nil {
		t.Fatalf("open shift in second branch failed: %v", err)
	}

	page, err := svc.ListShifts(as(admin), 2)
	if err != nil {
		t.Fatalf("list shifts: %v", err)
	}
	if page.Total != 3 || page.LastPage != 2 || page.Page != 2 || len(page.Shifts) != 1 {
		t.Fatalf("unexpected page: total=%d last=%d page=%d rows=%d", page.Total, page.LastPage, page.Page, len(page.Shifts))
	}
}

func TestExportShifts(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.OpenShift(as(cashier), decimal.RequireFromString("50000")); err != nil {
		t.Fatalf("open shift failed: %v", err)
	}

	csvExport, err := svc.ExportShifts(as(admin), "csv")
	if err != nil {
		t.Fatalf("csv export: %v", err)
	}
	body := string(csvExport.Body)
	if !strings.HasPrefix(body, "ID,Branch,Opened By") || !strings.Contains(body, "Front Cashier") || !strings.Contains(body, "50000.00") {
		t.Fatalf("unexpected csv export: %q", body)
	}

	xlsxExport, err := svc.ExportShifts(as(admin), "xlsx")
	if err != nil {
		t.Fatalf("xlsx export: %v", err)
	}
	if !bytes.HasPrefix(xlsxExport.Body, []byte("PK")) || !strings.HasSuffix(xlsxExport.Filename, ".xlsx") {
		t.Fatalf("expected a zip-based xlsx file, got %s", xlsxExport.Filename)
	}

	if _, err := svc.ExportShifts(as(admin), "pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func seedProduct(t *testing.T, repo *memory.Store, isService bool) string {
	t.Helper()
	product, err := repo.CreateProduct(context.Background(), domain.Product{
		ID: "prod-test", Code: "TST", Name: "Test Product", Price: decimal.RequireFromString("1000"), IsService: isService, Active: true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product.ID
}

func TestProductStockSummaries(t *testing.T) {
	svc, repo := newTestService(t)
	productID := seedProduct(t, repo, false)
	ctx := as(admin)

	expired := fixedNow.AddDate(0, 0, -3)
	soon := fixedNow.AddDate(0, 0, 10)
	later := fixedNow.AddDate(0, 2, 0)
	for _, req := range []domain.InventoryAddRequest{
		{ProductID: productID, BranchID: "main-branch", Quantity: 4, ExpiredAt: &expired, Priority: 1},
		{ProductID: productID, BranchID: "main-branch", Quantity: 6, ExpiredAt: &soon, Priority: 1},
		{ProductID: productID, BranchID: "main-branch", Quantity: 5, ExpiredAt: &later, Priority: 2},
		{ProductID: productID, BranchID: "north-branch", Quantity: 7, Priority: 1},
	} {
		if _, err := svc.AddInventory(ctx, req); err != nil {
			t.Fatalf("add inventory: %v", err)
		}
	}

	view, err := svc.ProductStock(ctx, productID)
	if err != nil {
		t.Fatalf("product stock: %v", err)
	}

	main := view.Current.Summary
	if view.Current.Branch.ID != "main-branch" || main.Stock != 15 || main.Expired != 4 || main.Available != 11 {
		t.Fatalf("unexpected main-branch summary: %+v", main)
	}
	if main.ClosestExpiry == nil || !main.ClosestExpiry.Date.Equal(soon) || main.ClosestExpiry.Stock != 6 {
		t.Fatalf("unexpected closest expiry: %+v", main.ClosestExpiry)
	}
	if view.Overall.Stock != 22 || view.Overall.Available != 18 {
		t.Fatalf("unexpected overall summary: %+v", view.Overall)
	}
	if len(view.Branches) != 2 || len(view.Movements) != 4 {
		t.Fatalf("expected 2 branches and 4 movements, got %d and %d", len(view.Branches), len(view.Movements))
	}
	if view.Movements[0].Actor != "Store Admin" {
		t.Fatalf("expected movement actor name, got %q", view.Movements[0].Actor)
	}
}

func TestMoveInventoryInsufficientStockKeepsStock(t *testing.T) {
	svc, repo := newTestService(t)
	productID := seedProduct(t, repo, false)
	ctx := as(admin)

	added, err := svc.AddInventory(ctx, domain.InventoryAddRequest{ProductID: productID, BranchID: "main-branch", Quantity: 3})
	if err != nil {
		t.Fatalf("add inventory: %v", err)
	}

	_, err = svc.MoveInventory(ctx, domain.InventoryMoveRequest{
		ProductID: productID, InventoryID: added.InventoryID, ToBranchID: "north-branch", Quantity: 4,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	moved, err := svc.MoveInventory(ctx, domain.InventoryMoveRequest{
		ProductID: productID, InventoryID: added.InventoryID, ToBranchID: "north-branch", Quantity: 2, Remark: "restock north",
	})
	if err != nil {
		t.Fatalf("move inventory: %v", err)
	}
	if moved.FromBranchID != "main-branch" {
		t.Fatalf("expected move from main-branch, got %s", moved.FromBranchID)
	}

	view, err := svc.ProductStock(ctx, productID)
	if err != nil {
		t.Fatalf("product stock: %v", err)
	}
	stock := map[string]int{}
	for _, b := range view.Branches {
		stock[b.Branch.ID] = b.Summary.Stock
	}
	if stock["main-branch"] != 1 || stock["north-branch"] != 2 {
		t.Fatalf("unexpected stock after move: %v", stock)
	}
	if view.Movements[0].Label != "Moved from Main Branch to North Branch" {
		t.Fatalf("unexpected movement label %q", view.Movements[0].Label)
	}
}

func TestInventoryRulesForServicesAndCashiers(t *testing.T) {
	svc, repo := newTestService(t)
	productID := seedProduct(t, repo, true)

	_, err := svc.AddInventory(as(admin), domain.InventoryAddRequest{ProductID: productID, Quantity: 1})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for service product, got %v", err)
	}
	_, err = svc.AddInventory(as(cashier), domain.InventoryAddRequest{ProductID: productID, Quantity: 1})
	if !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
}

func TestRemoveInventoryWritesAudit(t *testing.T) {
	svc, repo := newTestService(t)
	productID := seedProduct(t, repo, false)
	ctx := as(admin)

	added, err := svc.AddInventory(ctx, domain.InventoryAddRequest{ProductID: productID, Quantity: 5})
	if err != nil {
		t.Fatalf("add inventory: %v", err)
	}
	if _, err := svc.RemoveInventory(ctx, domain.InventoryRemoveRequest{
		ProductID: productID, BranchID: "north-branch", InventoryID: added.InventoryID, Quantity: 1,
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected branch mismatch to be ErrNotFound, got %v", err)
	}
	if _, err := svc.RemoveInventory(ctx, domain.InventoryRemoveRequest{
		ProductID: productID, BranchID: "main-branch", InventoryID: added.InventoryID, Quantity: 2, Remark: "damaged",
	}); err != nil {
		t.Fatalf("remove inventory: %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, "main-branch", fixedNow.Format("2006-01-02"), 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	actions := map[string]bool{}
	for _, entry := range logs {
		actions[entry.Action] = true
	}
	if !actions["inventory_add"] || !actions["inventory_remove"] {
		t.Fatalf("expected add and remove audit entries, got %v", actions)
	}
}

func TestSaleTotals(t *testing.T) {
	svc, repo := newTestService(t)

	sale, err := repo.CreateSale(context.Background(), domain.Sale{
		BranchID:       "main-branch",
		OpenedByUserID: cashier.UserID,
		Customer:       &domain.Customer{ID: "c", Name: "C", Group: &domain.CustomerGroup{ID: "g", Discount: decimal.RequireFromString("10")}},
		SalesDiscount:  decimal.RequireFromString("5"),
		Items:          []domain.SaleItem{{ProductID: "p", Price: decimal.RequireFromString("1000"), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	breakdown, err := svc.SaleTotals(as(cashier), sale.ID)
	if err != nil {
		t.Fatalf("sale totals: %v", err)
	}
	if !breakdown.AfterCustomerDiscount.Equal(decimal.RequireFromString("900")) || !breakdown.Total.Equal(decimal.RequireFromString("855")) {
		t.Fatalf("unexpected breakdown: %+v", breakdown)
	}
	if _, err := svc.SaleTotals(as(cashier), "sale-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
