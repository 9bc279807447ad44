package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dapurlima/backend/internal/domain"
	"dapurlima/backend/internal/store"
	"dapurlima/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	itemsByID       map[string]domain.InventoryItem
	productsByID    map[string]domain.Product
	transactions    []domain.Transaction
	purchases       []domain.Purchase
	productions     []domain.ProductionRecord
	expenses        []domain.Expense
	transfersByID   map[string]domain.StockTransfer
	attendanceByID  map[string]domain.Attendance
	closingsByKey   map[string]domain.DailyClosing
	recipesByID     map[string]domain.Recipe
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory staff accounts for dev/demo mode.
// Credentials are read from SEED_OWNER_PASSWORD, SEED_MANAGER_PASSWORD and
// SEED_CASHIER_PASSWORD environment variables. If unset, hardcoded dev
// defaults are used with a warning printed to stdout. These credentials are
// never used in production (the backend uses PostgreSQL when DATABASE_URL
// is set).
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD, SEED_MANAGER_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		staffID  string
		username string
		password string
		role     string
		outletID string
	}{
		{"staff-owner", "owner", ownerPwd, domain.RoleOwner, "outlet-pusat"},
		{"staff-manager", "manager", managerPwd, domain.RoleManager, "outlet-pusat"},
		{"staff-kasir-1", "kasir1", cashierPwd, domain.RoleCashier, "outlet-pusat"},
		{"staff-kasir-2", "kasir2", cashierPwd, domain.RoleCashier, "outlet-cabang"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			StaffID:    u.staffID,
			Username:   u.username,
			Password:   string(hash),
			Role:       u.role,
			OutletID:   u.outletID,
			ShiftStart: "08:00",
			ShiftEnd:   "18:00",
			Active:     true,
			CreatedAt:  now,
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

func NewSeeded() *Store {
	items := []domain.InventoryItem{
		{ID: "item-sirup-pusat", OutletID: "outlet-pusat", Name: "Sirup Gula", Unit: "liter", Quantity: 10, MinStock: 3, CostPerUnit: 15000, Type: domain.ItemTypeWIP, CashierOperated: true},
		{ID: "item-gula-pusat", OutletID: "outlet-pusat", Name: "Gula Pasir", Unit: "kg", Quantity: 25, MinStock: 5, CostPerUnit: 17000, Type: domain.ItemTypeRaw, CashierPurchasable: true},
		{ID: "item-teh-pusat", OutletID: "outlet-pusat", Name: "Teh Tubruk", Unit: "kg", Quantity: 4, MinStock: 1, CostPerUnit: 60000, Type: domain.ItemTypeRaw},
		{ID: "item-ayam-pusat", OutletID: "outlet-pusat", Name: "Ayam Potong", Unit: "kg", Quantity: 18, MinStock: 4, CostPerUnit: 38000, Type: domain.ItemTypeRaw, CashierPurchasable: true},
		{ID: "item-ayam-ungkep-pusat", OutletID: "outlet-pusat", Name: "Ayam Ungkep", Unit: "kg", Quantity: 6, MinStock: 2, CostPerUnit: 52000, Type: domain.ItemTypeWIP, CashierOperated: true},
		{ID: "item-beras-pusat", OutletID: "outlet-pusat", Name: "Beras", Unit: "kg", Quantity: 40, MinStock: 10, CostPerUnit: 13000, Type: domain.ItemTypeRaw, CashierPurchasable: true},
		{ID: "item-bumbu-pusat", OutletID: "outlet-pusat", Name: "Bumbu Kuning", Unit: "kg", Quantity: 5, MinStock: 1, CostPerUnit: 45000, Type: domain.ItemTypeRaw},
		{ID: "item-sirup-cabang", OutletID: "outlet-cabang", Name: "Sirup Gula", Unit: "liter", Quantity: 3, MinStock: 2, CostPerUnit: 15000, Type: domain.ItemTypeWIP, CashierOperated: true},
		{ID: "item-beras-cabang", OutletID: "outlet-cabang", Name: "Beras", Unit: "kg", Quantity: 15, MinStock: 5, CostPerUnit: 13000, Type: domain.ItemTypeRaw, CashierPurchasable: true},
	}

	products := []domain.Product{
		{ID: "prod-es-teh", OutletID: "outlet-pusat", Name: "Es Teh Manis", Price: 5000, BOM: []domain.BOMEntry{
			{ItemID: "item-sirup-pusat", ItemName: "Sirup Gula", Quantity: 0.05},
			{ItemID: "item-teh-pusat", ItemName: "Teh Tubruk", Quantity: 0.01},
		}},
		{ID: "prod-nasi-ayam", OutletID: "outlet-pusat", Name: "Nasi Ayam", Price: 18000, BOM: []domain.BOMEntry{
			{ItemID: "item-beras-pusat", ItemName: "Beras", Quantity: 0.15},
			{ItemID: "item-ayam-ungkep-pusat", ItemName: "Ayam Ungkep", Quantity: 0.2},
		}},
	}

	recipes := []domain.Recipe{
		{ID: "recipe-ayam-ungkep", ResultItemName: "Ayam Ungkep", ReferenceQuantity: 5, Unit: "kg", Components: []domain.ComponentUsage{
			{ItemID: "item-ayam-pusat", ItemName: "Ayam Potong", Quantity: 5.5},
			{ItemID: "item-bumbu-pusat", ItemName: "Bumbu Kuning", Quantity: 0.75},
		}},
		{ID: "recipe-sirup-gula", ResultItemName: "Sirup Gula", ReferenceQuantity: 4, Unit: "liter", Components: []domain.ComponentUsage{
			{ItemID: "item-gula-pusat", ItemName: "Gula Pasir", Quantity: 3},
		}},
	}

	itemMap := make(map[string]domain.InventoryItem, len(items))
	for _, item := range items {
		itemMap[item.ID] = item
	}
	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	recipeMap := make(map[string]domain.Recipe, len(recipes))
	for _, r := range recipes {
		recipeMap[r.ID] = r
	}

	return &Store{
		itemsByID:       itemMap,
		productsByID:    productMap,
		transactions:    make([]domain.Transaction, 0, 128),
		purchases:       make([]domain.Purchase, 0, 64),
		productions:     make([]domain.ProductionRecord, 0, 64),
		expenses:        make([]domain.Expense, 0, 64),
		transfersByID:   make(map[string]domain.StockTransfer),
		attendanceByID:  make(map[string]domain.Attendance),
		closingsByKey:   make(map[string]domain.DailyClosing),
		recipesByID:     recipeMap,
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListInventoryItems(_ context.Context, outletID string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.itemsByID))
	for _, item := range s.itemsByID {
		if outletID != "" && item.OutletID != outletID {
			continue
		}
		items = append(items, item)
	}

	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return items, nil
}

func (s *Store) GetInventoryItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.itemsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) FindInventoryItemByName(_ context.Context, outletID string, name string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.itemsByID {
		if item.OutletID == outletID && strings.EqualFold(strings.TrimSpace(item.Name), strings.TrimSpace(name)) {
			copyItem := item
			return &copyItem, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.OutletID == "" || strings.TrimSpace(item.Name) == "" || item.Unit == "" {
		return nil, store.ErrInvalidInput
	}
	if item.Quantity < 0 || item.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if item.Type == "" {
		item.Type = domain.ItemTypeRaw
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.itemsByID {
		if existing.OutletID == item.OutletID && strings.EqualFold(existing.Name, item.Name) {
			return nil, fmt.Errorf("%w: item %q already exists in outlet", store.ErrInvalidInput, item.Name)
		}
	}

	s.itemsByID[item.ID] = item
	created := item
	return &created, nil
}

// ApplyStockDeltas applies every delta or none. The quantity >= 0 invariant
// is enforced here before any write lands.
func (s *Store) ApplyStockDeltas(_ context.Context, outletID string, deltas []domain.StockDelta) error {
	if len(deltas) == 0 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]domain.InventoryItem, len(deltas))
	for _, delta := range deltas {
		item, exists := staged[delta.ItemID]
		if !exists {
			item, exists = s.itemsByID[delta.ItemID]
			if !exists || item.OutletID != outletID {
				return fmt.Errorf("%w: item %s", store.ErrNotFound, delta.ItemID)
			}
		}
		item.Quantity += delta.Delta
		if item.Quantity < -1e-9 {
			return fmt.Errorf("%w: %s", store.ErrInsufficientStock, item.Name)
		}
		if item.Quantity < 0 {
			item.Quantity = 0
		}
		staged[delta.ItemID] = item
	}

	for id, item := range staged {
		s.itemsByID[id] = item
	}
	return nil
}

func (s *Store) ListProducts(_ context.Context, outletID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if outletID != "" && p.OutletID != outletID {
			continue
		}
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := cloneProduct(product)
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.OutletID == "" || strings.TrimSpace(product.Name) == "" || product.Price < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productsByID[product.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	s.productsByID[product.ID] = cloneProduct(product)
	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) ListTransactions(_ context.Context, outletID string, from time.Time, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if tx.OutletID != outletID || !inWindow(tx.CreatedAt, from, to) {
			continue
		}
		result = append(result, cloneTransaction(tx))
	}
	return result, nil
}

func (s *Store) AppendTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.OutletID == "" || len(tx.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, cloneTransaction(tx))
	created := cloneTransaction(tx)
	return &created, nil
}

func (s *Store) ListPurchases(_ context.Context, outletID string, from time.Time, to time.Time) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		if p.OutletID != outletID || !inWindow(p.CreatedAt, from, to) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) AppendPurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.OutletID == "" || purchase.Quantity <= 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purchases = append(s.purchases, purchase)
	created := purchase
	return &created, nil
}

func (s *Store) ListProductionRecords(_ context.Context, outletID string, from time.Time, to time.Time) ([]domain.ProductionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ProductionRecord, 0, len(s.productions))
	for _, record := range s.productions {
		if record.OutletID != outletID || !inWindow(record.CreatedAt, from, to) {
			continue
		}
		result = append(result, cloneProduction(record))
	}
	return result, nil
}

func (s *Store) AppendProductionRecord(_ context.Context, record domain.ProductionRecord) (*domain.ProductionRecord, error) {
	if record.OutletID == "" || record.ResultQuantity <= 0 || len(record.Components) == 0 {
		return nil, store.ErrInvalidInput
	}
	if record.ID == "" {
		record.ID = xid.New("prodrec")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.productions = append(s.productions, cloneProduction(record))
	created := cloneProduction(record)
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, outletID string, from time.Time, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if e.OutletID != outletID || !inWindow(e.CreatedAt, from, to) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) AppendExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.OutletID == "" || expense.Amount < 1 {
		return nil, store.ErrInvalidInput
	}
	if expense.Source == "" {
		expense.Source = domain.ExpenseSourceManual
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses = append(s.expenses, expense)
	created := expense
	return &created, nil
}

func (s *Store) ListStockTransfers(_ context.Context, outletID string) ([]domain.StockTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockTransfer, 0, len(s.transfersByID))
	for _, transfer := range s.transfersByID {
		if outletID != "" && transfer.FromOutletID != outletID && transfer.ToOutletID != outletID {
			continue
		}
		result = append(result, transfer)
	}

	slices.SortFunc(result, func(a, b domain.StockTransfer) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) GetStockTransfer(_ context.Context, id string) (*domain.StockTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transfer, exists := s.transfersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyTransfer := transfer
	return &copyTransfer, nil
}

func (s *Store) CreateStockTransfer(_ context.Context, transfer domain.StockTransfer) (*domain.StockTransfer, error) {
	if transfer.FromOutletID == "" || transfer.ToOutletID == "" || transfer.ItemName == "" || transfer.Quantity <= 0 {
		return nil, store.ErrInvalidInput
	}
	if transfer.FromOutletID == transfer.ToOutletID {
		return nil, store.ErrInvalidInput
	}
	if transfer.ID == "" {
		transfer.ID = xid.New("trf")
	}
	if transfer.Status == "" {
		transfer.Status = domain.TransferPending
	}
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transfersByID[transfer.ID] = transfer
	created := transfer
	return &created, nil
}

func (s *Store) ResolveStockTransfer(_ context.Context, id string, status string, respondedBy string, at time.Time) (*domain.StockTransfer, error) {
	if status != domain.TransferAccepted && status != domain.TransferRejected {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, exists := s.transfersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if transfer.Status != domain.TransferPending {
		return nil, fmt.Errorf("%w: transfer is %s", store.ErrInvalidState, transfer.Status)
	}

	transfer.Status = status
	transfer.RespondedBy = respondedBy
	respondedAt := at
	transfer.RespondedAt = &respondedAt
	s.transfersByID[id] = transfer

	resolved := transfer
	return &resolved, nil
}

func (s *Store) GetOpenAttendance(_ context.Context, staffID string) (*domain.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Attendance
	for _, att := range s.attendanceByID {
		if att.StaffID != staffID || att.ClockOut != nil {
			continue
		}
		copyAtt := att
		if latest == nil || copyAtt.ClockIn.After(latest.ClockIn) {
			latest = &copyAtt
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (s *Store) LatestAttendance(_ context.Context, staffID string, outletID string) (*domain.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Attendance
	for _, att := range s.attendanceByID {
		if att.StaffID != staffID || att.OutletID != outletID {
			continue
		}
		copyAtt := att
		if latest == nil || copyAtt.ClockIn.After(latest.ClockIn) {
			latest = &copyAtt
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (s *Store) AppendAttendance(_ context.Context, att domain.Attendance) (*domain.Attendance, error) {
	if att.StaffID == "" || att.OutletID == "" || att.ClockIn.IsZero() {
		return nil, store.ErrInvalidInput
	}
	if att.ID == "" {
		att.ID = xid.New("att")
	}
	if att.Date == "" {
		att.Date = att.ClockIn.Format("2006-01-02")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.attendanceByID {
		if existing.StaffID == att.StaffID && existing.ClockOut == nil {
			return nil, fmt.Errorf("%w: staff already clocked in", store.ErrInvalidState)
		}
	}

	s.attendanceByID[att.ID] = att
	created := att
	return &created, nil
}

func (s *Store) CloseAttendance(_ context.Context, id string, at time.Time) (*domain.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	att, exists := s.attendanceByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if att.ClockOut != nil {
		return nil, fmt.Errorf("%w: attendance already closed", store.ErrInvalidState)
	}

	clockOut := at
	att.ClockOut = &clockOut
	s.attendanceByID[id] = att

	closed := att
	return &closed, nil
}

func closingKey(staffID, outletID, date string) string {
	return staffID + "|" + outletID + "|" + date
}

func (s *Store) GetDailyClosing(_ context.Context, staffID string, outletID string, date string) (*domain.DailyClosing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	closing, exists := s.closingsByKey[closingKey(staffID, outletID, date)]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyClosing := closing
	return &copyClosing, nil
}

func (s *Store) ListDailyClosings(_ context.Context, outletID string, date string) ([]domain.DailyClosing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DailyClosing, 0, 8)
	for _, closing := range s.closingsByKey {
		if closing.OutletID != outletID {
			continue
		}
		if date != "" && closing.CreatedAt.Format("2006-01-02") != date {
			continue
		}
		result = append(result, closing)
	}

	slices.SortFunc(result, func(a, b domain.DailyClosing) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateDailyClosing(_ context.Context, closing domain.DailyClosing) (*domain.DailyClosing, error) {
	if closing.StaffID == "" || closing.OutletID == "" || closing.ShiftName == "" {
		return nil, store.ErrInvalidInput
	}
	if closing.ID == "" {
		closing.ID = xid.New("closing")
	}
	if closing.CreatedAt.IsZero() {
		closing.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := closingKey(closing.StaffID, closing.OutletID, closing.CreatedAt.Format("2006-01-02"))
	if _, exists := s.closingsByKey[key]; exists {
		return nil, fmt.Errorf("%w: shift already closed for the day", store.ErrInvalidState)
	}

	s.closingsByKey[key] = closing
	created := closing
	return &created, nil
}

func (s *Store) ListRecipes(_ context.Context) ([]domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipes := make([]domain.Recipe, 0, len(s.recipesByID))
	for _, r := range s.recipesByID {
		recipes = append(recipes, cloneRecipe(r))
	}

	slices.SortFunc(recipes, func(a, b domain.Recipe) int {
		return strings.Compare(a.ResultItemName, b.ResultItemName)
	})
	return recipes, nil
}

func (s *Store) GetRecipe(_ context.Context, id string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipe, exists := s.recipesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyRecipe := cloneRecipe(recipe)
	return &copyRecipe, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidInput
	}
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
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func inWindow(ts time.Time, from time.Time, to time.Time) bool {
	return !ts.Before(from) && !ts.After(to)
}

func cloneProduct(p domain.Product) domain.Product {
	copyProduct := p
	copyProduct.BOM = slices.Clone(p.BOM)
	return copyProduct
}

func cloneTransaction(tx domain.Transaction) domain.Transaction {
	copyTx := tx
	copyTx.Items = slices.Clone(tx.Items)
	return copyTx
}

func cloneProduction(record domain.ProductionRecord) domain.ProductionRecord {
	copyRecord := record
	copyRecord.Components = slices.Clone(record.Components)
	return copyRecord
}

func cloneRecipe(r domain.Recipe) domain.Recipe {
	copyRecipe := r
	copyRecipe.Components = slices.Clone(r.Components)
	return copyRecipe
}
