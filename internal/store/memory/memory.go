package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/store"
	"kasirinaja/backoffice/internal/xid"
)

// Store is a mutex-guarded Repository used for dev/demo mode and tests.
type Store struct {
	mu              sync.RWMutex
	branches        map[string]domain.Branch
	usersByUsername map[string]domain.UserAccount
	shiftsByID      map[string]domain.Shift
	openShiftByKey  map[string]string
	salesByID       map[string]domain.Sale
	products        map[string]domain.Product
	inventories     map[string]domain.Inventory
	movements       []domain.InventoryMovement
	auditLogs       []domain.AuditLog
}

func New() *Store {
	return &Store{
		branches:        make(map[string]domain.Branch),
		usersByUsername: make(map[string]domain.UserAccount),
		shiftsByID:      make(map[string]domain.Shift),
		openShiftByKey:  make(map[string]string),
		salesByID:       make(map[string]domain.Sale),
		products:        make(map[string]domain.Product),
		inventories:     make(map[string]domain.Inventory),
		movements:       make([]domain.InventoryMovement, 0, 64),
		auditLogs:       make([]domain.AuditLog, 0, 128),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// when unset the dev defaults are used and a warning is logged.
func seedUsers(branchID string) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Warn().Str("component", "memory-store").Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		id       string
		username string
		name     string
		password string
		role     string
	}{
		{"user-admin", "admin", "Store Admin", adminPwd, domain.RoleAdmin},
		{"user-cashier", "cashier", "Front Cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("component", "memory-store").Str("username", u.username).Msg("hash seed password")
		}
		users[u.username] = domain.UserAccount{
			ID:        u.id,
			Username:  u.username,
			Name:      u.name,
			Password:  string(hash),
			Role:      u.role,
			BranchID:  branchID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with two branches, an admin and a cashier in
// "main-branch", and a handful of stocked products.
func NewSeeded() *Store {
	s := New()
	for _, b := range []domain.Branch{
		{ID: "main-branch", Name: "Main Branch"},
		{ID: "north-branch", Name: "North Branch"},
	} {
		s.branches[b.ID] = b
	}
	s.usersByUsername = seedUsers("main-branch")

	now := time.Now().UTC()
	soon := now.AddDate(0, 1, 0)
	products := []domain.Product{
		{ID: "prod-shampoo", Code: "SHP-01", Barcode: "8991001", Name: "Herbal Shampoo", Price: decimal.RequireFromString("45000"), Active: true},
		{ID: "prod-serum", Code: "SRM-01", Barcode: "8991002", Name: "Hair Serum", Price: decimal.RequireFromString("120000"), Active: true},
		{ID: "prod-cut", Code: "SVC-CUT", Name: "Haircut", Price: decimal.RequireFromString("75000"), IsService: true, Active: true},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	for _, inv := range []domain.Inventory{
		{ID: "inv-shampoo-main", BranchID: "main-branch", ProductID: "prod-shampoo", Stock: 40, Priority: 1, ExpiredAt: &soon, CreatedAt: now},
		{ID: "inv-shampoo-north", BranchID: "north-branch", ProductID: "prod-shampoo", Stock: 12, Priority: 1, CreatedAt: now},
		{ID: "inv-serum-main", BranchID: "main-branch", ProductID: "prod-serum", Stock: 8, Priority: 1, CreatedAt: now},
	} {
		s.inventories[inv.ID] = inv
	}
	return s
}

func (s *Store) AddBranch(branch domain.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[branch.ID] = branch
}

func (s *Store) GetBranch(_ context.Context, id string) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, ok := s.branches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &branch, nil
}

func (s *Store) ListBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		result = append(result, b)
	}
	slices.SortFunc(result, func(a, b domain.Branch) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) OpenShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.BranchID) == "" || strings.TrimSpace(shift.OpenedByUserID) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shiftsByID {
		if existing.Suspended && existing.BranchID == shift.BranchID && existing.OpenedByUserID == shift.OpenedByUserID {
			return nil, store.ErrShiftSuspended
		}
	}
	key := shiftKey(shift.BranchID, shift.OpenedByUserID)
	if _, exists := s.openShiftByKey[key]; exists {
		return nil, store.ErrShiftAlreadyOpen
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

	s.shiftsByID[shift.ID] = shift
	s.openShiftByKey[key] = shift.ID
	copyShift := shift
	return &copyShift, nil
}

func (s *Store) CloseShift(_ context.Context, req store.ShiftClose) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, exists := s.shiftsByID[req.ShiftID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !shift.IsOpen() {
		return nil, store.ErrShiftClosed
	}

	closedAt := req.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}
	shift.ClosedAt = &closedAt
	shift.ClosedByUserID = req.ClosedByUserID
	shift.ClosingBalance = req.ClosingBalance
	shift.Remark = strings.TrimSpace(req.Remark)

	delete(s.openShiftByKey, shiftKey(shift.BranchID, shift.OpenedByUserID))
	s.shiftsByID[shift.ID] = shift
	copyShift := shift
	return &copyShift, nil
}

func (s *Store) GetShift(_ context.Context, id string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, exists := s.shiftsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &shift, nil
}

func (s *Store) FindOpenShift(_ context.Context, branchID string, userID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shiftID, exists := s.openShiftByKey[shiftKey(branchID, userID)]
	if !exists {
		return nil, store.ErrNotFound
	}
	shift, exists := s.shiftsByID[shiftID]
	if !exists || !shift.IsOpen() {
		return nil, store.ErrNotFound
	}
	return &shift, nil
}

func (s *Store) ListSuspendedShifts(_ context.Context, branchID string, userID string) ([]domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Shift, 0)
	for _, shift := range s.shiftsByID {
		if shift.Suspended && shift.BranchID == branchID && shift.OpenedByUserID == userID {
			result = append(result, shift)
		}
	}
	slices.SortFunc(result, compareShiftNewestFirst)
	return result, nil
}

func (s *Store) SetShiftSuspended(_ context.Context, id string, suspended bool) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, exists := s.shiftsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	shift.Suspended = suspended
	s.shiftsByID[id] = shift
	copyShift := shift
	return &copyShift, nil
}

func (s *Store) ListShifts(_ context.Context, offset int, limit int) ([]domain.ShiftListing, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts := make([]domain.Shift, 0, len(s.shiftsByID))
	for _, shift := range s.shiftsByID {
		shifts = append(shifts, shift)
	}
	slices.SortFunc(shifts, compareShiftNewestFirst)

	total := int64(len(shifts))
	if offset >= len(shifts) {
		return []domain.ShiftListing{}, total, nil
	}
	end := len(shifts)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	names := s.userNamesByID()
	result := make([]domain.ShiftListing, 0, end-offset)
	for _, shift := range shifts[offset:end] {
		result = append(result, domain.ShiftListing{
			Shift:        shift,
			BranchName:   s.branches[shift.BranchID].Name,
			OpenedByName: names[shift.OpenedByUserID],
			ClosedByName: names[shift.ClosedByUserID],
		})
	}
	return result, total, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if strings.TrimSpace(sale.BranchID) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.OpenedAt.IsZero() {
		sale.OpenedAt = time.Now().UTC()
	}
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("item")
		}
	}
	for i := range sale.Packages {
		if sale.Packages[i].ID == "" {
			sale.Packages[i].ID = xid.New("pkg")
		}
	}
	for i := range sale.Payments {
		if sale.Payments[i].ID == "" {
			sale.Payments[i].ID = xid.New("pay")
		}
	}
	sale = cloneSale(sale)
	slices.SortStableFunc(sale.Payments, func(a, b domain.SalePayment) int {
		return a.PaidAt.Compare(b.PaidAt)
	})
	s.salesByID[sale.ID] = sale

	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) ListPaidSales(_ context.Context, openedByUserID string, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0)
	for _, sale := range s.salesByID {
		if sale.OpenedByUserID != openedByUserID || sale.PaidAt == nil {
			continue
		}
		if sale.PaidAt.Before(from) || !sale.PaidAt.Before(to) {
			continue
		}
		result = append(result, cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		return a.PaidAt.Compare(*b.PaidAt)
	})
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	s.products[product.ID] = product
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) ListInventories(_ context.Context, productID string) ([]domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Inventory, 0)
	for _, inv := range s.inventories {
		if inv.ProductID == productID {
			result = append(result, cloneInventory(inv))
		}
	}
	slices.SortFunc(result, compareInventory)
	return result, nil
}

func (s *Store) ApplyInventoryMovement(_ context.Context, movement domain.InventoryMovement) (*domain.InventoryMovement, error) {
	if movement.Quantity < 1 || strings.TrimSpace(movement.ProductID) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[movement.ProductID]; !exists {
		return nil, store.ErrNotFound
	}
	if movement.ID == "" {
		movement.ID = xid.New("move")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	switch movement.Type {
	case domain.MovementAdd:
		if _, exists := s.branches[movement.ToBranchID]; !exists {
			return nil, store.ErrNotFound
		}
		inv := domain.Inventory{
			ID:        xid.New("inv"),
			BranchID:  movement.ToBranchID,
			ProductID: movement.ProductID,
			Stock:     movement.Quantity,
			Priority:  movement.Priority,
			ExpiredAt: movement.ExpiredAt,
			CreatedAt: movement.CreatedAt,
		}
		s.inventories[inv.ID] = inv
		movement.InventoryID = inv.ID

	case domain.MovementRemove, domain.MovementMove:
		source, err := s.sourceInventory(movement)
		if err != nil {
			return nil, err
		}
		movement.FromBranchID = source.BranchID

		if movement.Type == domain.MovementMove {
			if _, exists := s.branches[movement.ToBranchID]; !exists {
				return nil, store.ErrNotFound
			}
			if movement.ToBranchID == source.BranchID {
				return nil, store.ErrInvalidInput
			}
			target, found := s.matchingInventory(source, movement.ToBranchID)
			if !found {
				target = domain.Inventory{
					ID:        xid.New("inv"),
					BranchID:  movement.ToBranchID,
					ProductID: source.ProductID,
					Priority:  source.Priority,
					ExpiredAt: source.ExpiredAt,
					CreatedAt: movement.CreatedAt,
				}
			}
			target.Stock += movement.Quantity
			s.inventories[target.ID] = target
		}

		source.Stock -= movement.Quantity
		s.inventories[source.ID] = source

	default:
		return nil, store.ErrInvalidInput
	}

	s.movements = append(s.movements, movement)
	copyMovement := movement
	return &copyMovement, nil
}

func (s *Store) sourceInventory(movement domain.InventoryMovement) (domain.Inventory, error) {
	source, exists := s.inventories[movement.InventoryID]
	if !exists || source.ProductID != movement.ProductID {
		return domain.Inventory{}, store.ErrNotFound
	}
	if movement.FromBranchID != "" && movement.FromBranchID != source.BranchID {
		return domain.Inventory{}, store.ErrNotFound
	}
	if source.Stock < movement.Quantity {
		return domain.Inventory{}, store.ErrInsufficientStock
	}
	return source, nil
}

func (s *Store) matchingInventory(source domain.Inventory, branchID string) (domain.Inventory, bool) {
	for _, inv := range s.inventories {
		if inv.BranchID == branchID && inv.ProductID == source.ProductID &&
			inv.Priority == source.Priority && sameExpiry(inv.ExpiredAt, source.ExpiredAt) {
			return inv, true
		}
	}
	return domain.Inventory{}, false
}

func (s *Store) ListInventoryMovements(_ context.Context, productID string, limit int) ([]domain.InventoryMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryMovement, 0)
	for i := len(s.movements) - 1; i >= 0; i-- {
		if m := s.movements[i]; m.ProductID == productID {
			result = append(result, m)
		}
	}
	slices.SortStableFunc(result, func(a, b domain.InventoryMovement) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) userNamesByID() map[string]string {
	names := make(map[string]string, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		names[u.ID] = u.Name
	}
	return names
}

func shiftKey(branchID string, userID string) string {
	return branchID + "|" + userID
}

func compareShiftNewestFirst(a, b domain.Shift) int {
	if a.OpenedAt.Equal(b.OpenedAt) {
		return strings.Compare(b.ID, a.ID)
	}
	return b.OpenedAt.Compare(a.OpenedAt)
}

func compareInventory(a, b domain.Inventory) int {
	if a.BranchID != b.BranchID {
		return strings.Compare(a.BranchID, b.BranchID)
	}
	if a.Priority != b.Priority {
		return a.Priority - b.Priority
	}
	switch {
	case a.ExpiredAt == nil && b.ExpiredAt != nil:
		return 1
	case a.ExpiredAt != nil && b.ExpiredAt == nil:
		return -1
	case a.ExpiredAt != nil && b.ExpiredAt != nil && !a.ExpiredAt.Equal(*b.ExpiredAt):
		return a.ExpiredAt.Compare(*b.ExpiredAt)
	}
	return strings.Compare(a.ID, b.ID)
}

func sameExpiry(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func cloneInventory(src domain.Inventory) domain.Inventory {
	dst := src
	if src.ExpiredAt != nil {
		expiredAt := *src.ExpiredAt
		dst.ExpiredAt = &expiredAt
	}
	return dst
}

func cloneSale(src domain.Sale) domain.Sale {
	dst := src
	dst.Items = slices.Clone(src.Items)
	dst.Packages = slices.Clone(src.Packages)
	dst.Payments = slices.Clone(src.Payments)
	if src.Customer != nil {
		customer := *src.Customer
		if src.Customer.Group != nil {
			group := *src.Customer.Group
			customer.Group = &group
		}
		dst.Customer = &customer
	}
	return dst
}
