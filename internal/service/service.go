package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"dapurlima/backend/internal/cache"
	"dapurlima/backend/internal/cloudsync"
	"dapurlima/backend/internal/domain"
	"dapurlima/backend/internal/movement"
	"dapurlima/backend/internal/store"
	"dapurlima/backend/internal/xid"
)

var (
	// ErrApprovalRequired means the close needs a manager/owner credential
	// re-entry that the request did not carry.
	ErrApprovalRequired = errors.New("approval required")
	// ErrAuthorizationFailed covers a bad approval credential, an approver
	// without the manager/owner role, and outlet-scope violations.
	ErrAuthorizationFailed = errors.New("authorization failed")
	// ErrOperationInFlight rejects a second concurrent mutation by the same
	// staff member while the first one is still running.
	ErrOperationInFlight = errors.New("operation already in flight")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// CredentialVerifier re-checks a username/password pair and returns the
// account's actor identity. Used for approval gating on shift closes.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, username string, password string) (domain.Actor, error)
}

type Service struct {
	repo            store.Repository
	movementCache   cache.MovementCache
	syncQueue       *cloudsync.Queue
	verifier        CredentialVerifier
	defaultOutletID string
	movementTTL     time.Duration

	guard *inflightGuard

	// now is swappable in tests; shift naming and early-close detection
	// depend on the wall clock.
	now func() time.Time
}

func New(repo store.Repository, movementCache cache.MovementCache, syncQueue *cloudsync.Queue, verifier CredentialVerifier, defaultOutletID string, movementTTL time.Duration) *Service {
	if defaultOutletID == "" {
		defaultOutletID = "outlet-pusat"
	}
	if movementCache == nil {
		movementCache = cache.NoopMovementCache{}
	}
	if movementTTL < time.Second {
		movementTTL = 20 * time.Second
	}

	return &Service{
		repo:            repo,
		movementCache:   movementCache,
		syncQueue:       syncQueue,
		verifier:        verifier,
		defaultOutletID: defaultOutletID,
		movementTTL:     movementTTL,
		guard:           newInflightGuard(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) enqueueSync(kind string, outletID string, payload any) {
	if s.syncQueue == nil {
		return
	}
	s.syncQueue.Enqueue(kind, outletID, payload)
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.StaffID == "" {
		return domain.Actor{}, ErrAuthorizationFailed
	}
	return actor, nil
}

func (s *Service) resolveOutlet(actor domain.Actor, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		if actor.OutletID != "" {
			return actor.OutletID
		}
		return s.defaultOutletID
	}
	return requested
}

// ---- inventory ----

func (s *Service) ListInventory(ctx context.Context, outletID string) ([]domain.InventoryItem, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInventoryItems(ctx, s.resolveOutlet(actor, outletID))
}

func (s *Service) LowStockItems(ctx context.Context, outletID string) ([]domain.InventoryItem, error) {
	items, err := s.ListInventory(ctx, outletID)
	if err != nil {
		return nil, err
	}

	low := make([]domain.InventoryItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= item.MinStock {
			low = append(low, item)
		}
	}
	return low, nil
}

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.ItemCreateRequest) (domain.InventoryItem, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if actor.Role == domain.RoleCashier {
		return domain.InventoryItem{}, fmt.Errorf("%w: manager or owner role required", ErrAuthorizationFailed)
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.TrimSpace(req.Unit)
	if req.Name == "" || req.Unit == "" || req.Quantity < 0 || req.MinStock < 0 {
		return domain.InventoryItem{}, store.ErrInvalidInput
	}
	if req.Type != "" && req.Type != domain.ItemTypeRaw && req.Type != domain.ItemTypeWIP {
		return domain.InventoryItem{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateInventoryItem(ctx, domain.InventoryItem{
		ID:                 xid.New("item"),
		OutletID:           s.resolveOutlet(actor, req.OutletID),
		Name:               req.Name,
		Unit:               req.Unit,
		Quantity:           round3(req.Quantity),
		MinStock:           req.MinStock,
		CostPerUnit:        req.CostPerUnit,
		Type:               req.Type,
		CashierOperated:    req.CashierOperated,
		CashierPurchasable: req.CashierPurchasable,
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.enqueueSync("inventory_item", created.OutletID, created)
	return *created, nil
}

// ---- stock movement report ----

func (s *Service) MovementReport(ctx context.Context, outletID string, from time.Time, to time.Time) (domain.MovementReport, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.MovementReport{}, err
	}
	outletID = s.resolveOutlet(actor, outletID)

	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = startOfDay(to)
	}
	if to.Before(from) {
		return domain.MovementReport{}, store.ErrInvalidInput
	}

	cacheKey := fmt.Sprintf("movement:%s:%d:%d", outletID, from.Unix(), to.Unix())
	if cached, hit, err := s.movementCache.Get(ctx, cacheKey); err != nil {
		log.Printf("[service] WARN: movement cache get failed outlet=%s: %v", outletID, err)
	} else if hit {
		return *cached, nil
	}

	items, err := s.repo.ListInventoryItems(ctx, outletID)
	if err != nil {
		return domain.MovementReport{}, err
	}
	products, err := s.repo.ListProducts(ctx, outletID)
	if err != nil {
		return domain.MovementReport{}, err
	}
	transactions, err := s.repo.ListTransactions(ctx, outletID, from, to)
	if err != nil {
		return domain.MovementReport{}, err
	}
	purchases, err := s.repo.ListPurchases(ctx, outletID, from, to)
	if err != nil {
		return domain.MovementReport{}, err
	}
	productions, err := s.repo.ListProductionRecords(ctx, outletID, from, to)
	if err != nil {
		return domain.MovementReport{}, err
	}
	transfers, err := s.repo.ListStockTransfers(ctx, outletID)
	if err != nil {
		return domain.MovementReport{}, err
	}

	report := domain.MovementReport{
		OutletID: outletID,
		From:     from,
		To:       to,
		Rows: movement.Compute(items, from, to, movement.Inputs{
			Products:     products,
			Transactions: transactions,
			Purchases:    purchases,
			Productions:  productions,
			Transfers:    transfers,
		}),
		GeneratedAt: s.now().Format(time.RFC3339),
	}

	if err := s.movementCache.Set(ctx, cacheKey, &report, s.movementTTL); err != nil {
		log.Printf("[service] WARN: movement cache set failed outlet=%s: %v", outletID, err)
	}
	return report, nil
}

// ---- production ----

func (s *Service) ExecuteProduction(ctx context.Context, req domain.ProductionRequest) (domain.ProductionResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductionResponse{}, err
	}
	release, err := s.guard.acquire("production:" + actor.StaffID)
	if err != nil {
		return domain.ProductionResponse{}, err
	}
	defer release()

	outletID := s.resolveOutlet(actor, req.OutletID)
	req.ResultItemName = strings.TrimSpace(req.ResultItemName)
	if req.ResultQuantity <= 0 || len(req.Components) == 0 {
		return domain.ProductionResponse{}, store.ErrInvalidInput
	}

	resultItem, err := s.resolveItem(ctx, outletID, req.ResultItemID, req.ResultItemName)
	if err != nil {
		return domain.ProductionResponse{}, fmt.Errorf("result item: %w", err)
	}
	if actor.Role == domain.RoleCashier && !resultItem.CashierOperated {
		return domain.ProductionResponse{}, fmt.Errorf("%w: item %q is not cashier-operated", ErrAuthorizationFailed, resultItem.Name)
	}

	deltas := make([]domain.StockDelta, 0, len(req.Components)+1)
	usages := make([]domain.ComponentUsage, 0, len(req.Components))
	for _, component := range req.Components {
		if component.Quantity <= 0 {
			return domain.ProductionResponse{}, store.ErrInvalidInput
		}
		item, err := s.resolveItem(ctx, outletID, component.ItemID, component.ItemName)
		if err != nil {
			return domain.ProductionResponse{}, fmt.Errorf("component %q: %w", component.ItemName, err)
		}
		qty := round3(component.Quantity)
		if qty > item.Quantity {
			return domain.ProductionResponse{}, fmt.Errorf("%w: %s", store.ErrInsufficientStock, item.Name)
		}
		deltas = append(deltas, domain.StockDelta{ItemID: item.ID, Delta: -qty})
		usages = append(usages, domain.ComponentUsage{ItemID: item.ID, ItemName: item.Name, Quantity: qty})
	}
	deltas = append(deltas, domain.StockDelta{ItemID: resultItem.ID, Delta: round3(req.ResultQuantity)})

	if err := s.repo.ApplyStockDeltas(ctx, outletID, deltas); err != nil {
		return domain.ProductionResponse{}, err
	}

	record, err := s.repo.AppendProductionRecord(ctx, domain.ProductionRecord{
		ID:             xid.New("prodrec"),
		OutletID:       outletID,
		StaffID:        actor.StaffID,
		ResultItemID:   resultItem.ID,
		ResultItemName: resultItem.Name,
		ResultQuantity: round3(req.ResultQuantity),
		CreatedAt:      s.now(),
		Components:     usages,
	})
	if err != nil {
		// The deltas landed but the record did not. Mutated stock with no
		// event would make reconstructed history lie, so hand it back.
		if restoreErr := s.repo.ApplyStockDeltas(ctx, outletID, invertDeltas(deltas)); restoreErr != nil {
			log.Printf("[service] WARN: failed to restore stock after production append failure outlet=%s: %v", outletID, restoreErr)
		}
		return domain.ProductionResponse{}, err
	}

	s.enqueueSync("production", outletID, record)
	return domain.ProductionResponse{Record: *record}, nil
}

func (s *Service) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListRecipes(ctx)
}

// ScaleRecipe is pure arithmetic: component quantities scale linearly with
// the requested result quantity and round to 3 decimals. No stock is read
// or written.
func (s *Service) ScaleRecipe(ctx context.Context, req domain.RecipeScaleRequest) (domain.RecipeScaleResponse, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.RecipeScaleResponse{}, err
	}
	if req.RecipeID == "" || req.ResultQuantity <= 0 {
		return domain.RecipeScaleResponse{}, store.ErrInvalidInput
	}

	recipe, err := s.repo.GetRecipe(ctx, req.RecipeID)
	if err != nil {
		return domain.RecipeScaleResponse{}, err
	}
	if recipe.ReferenceQuantity <= 0 {
		return domain.RecipeScaleResponse{}, store.ErrInvalidInput
	}

	factor := req.ResultQuantity / recipe.ReferenceQuantity
	scaled := make([]domain.ComponentUsage, 0, len(recipe.Components))
	for _, component := range recipe.Components {
		scaled = append(scaled, domain.ComponentUsage{
			ItemID:   component.ItemID,
			ItemName: component.ItemName,
			Quantity: round3(component.Quantity * factor),
		})
	}

	return domain.RecipeScaleResponse{
		RecipeID:       recipe.ID,
		ResultItemName: recipe.ResultItemName,
		ResultQuantity: round3(req.ResultQuantity),
		Components:     scaled,
	}, nil
}

// ---- stock transfers ----

// InitiateTransfer debits the sender immediately and parks the quantity in
// a PENDING transfer. The stock is owned by the transfer until the
// destination responds; it is never in two outlets at once.
func (s *Service) InitiateTransfer(ctx context.Context, req domain.TransferInitiateRequest) (domain.TransferResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.TransferResponse{}, err
	}
	release, err := s.guard.acquire("transfer:" + actor.StaffID)
	if err != nil {
		return domain.TransferResponse{}, err
	}
	defer release()

	fromOutletID := s.resolveOutlet(actor, req.FromOutletID)
	req.ToOutletID = strings.TrimSpace(req.ToOutletID)
	req.ItemName = strings.TrimSpace(req.ItemName)
	if req.ToOutletID == "" || req.ItemName == "" || req.Quantity <= 0 {
		return domain.TransferResponse{}, store.ErrInvalidInput
	}
	if req.ToOutletID == fromOutletID {
		return domain.TransferResponse{}, fmt.Errorf("%w: cannot transfer to the same outlet", store.ErrInvalidInput)
	}
	if actor.OutletID != "" && actor.OutletID != fromOutletID {
		return domain.TransferResponse{}, fmt.Errorf("%w: transfers must originate from your own outlet", ErrAuthorizationFailed)
	}

	item, err := s.repo.FindInventoryItemByName(ctx, fromOutletID, req.ItemName)
	if err != nil {
		return domain.TransferResponse{}, err
	}
	qty := round3(req.Quantity)
	if qty > item.Quantity {
		return domain.TransferResponse{}, fmt.Errorf("%w: %s", store.ErrInsufficientStock, item.Name)
	}

	if err := s.repo.ApplyStockDeltas(ctx, fromOutletID, []domain.StockDelta{{ItemID: item.ID, Delta: -qty}}); err != nil {
		return domain.TransferResponse{}, err
	}

	transfer, err := s.repo.CreateStockTransfer(ctx, domain.StockTransfer{
		ID:           xid.New("trf"),
		FromOutletID: fromOutletID,
		ToOutletID:   req.ToOutletID,
		ItemName:     item.Name,
		Unit:         item.Unit,
		Quantity:     qty,
		Status:       domain.TransferPending,
		CreatedAt:    s.now(),
	})
	if err != nil {
		// The debit landed but the transfer record did not. Credit back so
		// the quantity is not lost.
		if restoreErr := s.repo.ApplyStockDeltas(ctx, fromOutletID, []domain.StockDelta{{ItemID: item.ID, Delta: qty}}); restoreErr != nil {
			log.Printf("[service] WARN: failed to restore stock after transfer create failure item=%s: %v", item.ID, restoreErr)
		}
		return domain.TransferResponse{}, err
	}

	s.enqueueSync("stock_transfer", fromOutletID, transfer)
	return domain.TransferResponse{Transfer: *transfer}, nil
}

// RespondTransfer resolves a PENDING transfer. Accept credits the
// destination (creating the item row there if the outlet has none by that
// name); reject credits the quantity back to the sender. Either way the
// transfer reaches a terminal status exactly once.
func (s *Service) RespondTransfer(ctx context.Context, req domain.TransferRespondRequest) (domain.TransferResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.TransferResponse{}, err
	}
	release, err := s.guard.acquire("transfer:" + actor.StaffID)
	if err != nil {
		return domain.TransferResponse{}, err
	}
	defer release()

	if req.TransferID == "" {
		return domain.TransferResponse{}, store.ErrInvalidInput
	}
	transfer, err := s.repo.GetStockTransfer(ctx, req.TransferID)
	if err != nil {
		return domain.TransferResponse{}, err
	}
	if actor.OutletID != transfer.ToOutletID {
		return domain.TransferResponse{}, fmt.Errorf("%w: only the destination outlet can respond", ErrAuthorizationFailed)
	}

	status := domain.TransferRejected
	if req.Accept {
		status = domain.TransferAccepted
	}

	// Resolve first: the pending check inside the store is the only gate
	// against a double response, so the credit below runs at most once.
	resolved, err := s.repo.ResolveStockTransfer(ctx, transfer.ID, status, actor.StaffID, s.now())
	if err != nil {
		return domain.TransferResponse{}, err
	}

	if req.Accept {
		destItem, err := s.repo.FindInventoryItemByName(ctx, resolved.ToOutletID, resolved.ItemName)
		if errors.Is(err, store.ErrNotFound) {
			destItem, err = s.repo.CreateInventoryItem(ctx, domain.InventoryItem{
				ID:       xid.New("item"),
				OutletID: resolved.ToOutletID,
				Name:     resolved.ItemName,
				Unit:     resolved.Unit,
			})
		}
		if err == nil {
			err = s.repo.ApplyStockDeltas(ctx, resolved.ToOutletID, []domain.StockDelta{{ItemID: destItem.ID, Delta: resolved.Quantity}})
		}
		if err != nil {
			// The transfer is already terminal but the stock never landed.
			// The quantity must not vanish: hand it back to the sender.
			if restoreErr := s.creditSender(ctx, resolved); restoreErr != nil {
				log.Printf("[service] WARN: transfer %s quantity unaccounted after credit failure: %v", resolved.ID, restoreErr)
			}
			return domain.TransferResponse{}, err
		}
	} else {
		if err := s.creditSender(ctx, resolved); err != nil {
			return domain.TransferResponse{}, err
		}
	}

	s.enqueueSync("stock_transfer", resolved.ToOutletID, resolved)
	return domain.TransferResponse{Transfer: *resolved}, nil
}

func (s *Service) ListTransfers(ctx context.Context, outletID string) ([]domain.StockTransfer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListStockTransfers(ctx, s.resolveOutlet(actor, outletID))
}

// ---- sales ----

func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	outletID := s.resolveOutlet(actor, req.OutletID)
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if req.PaymentMethod != domain.PaymentCash && req.PaymentMethod != domain.PaymentQRIS {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}
	if len(req.Items) == 0 {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}

	total := int64(0)
	lines := make([]domain.TransactionLine, 0, len(req.Items))
	deltaByItem := make(map[string]float64)
	for _, line := range req.Items {
		if line.ProductID == "" || line.Qty < 1 {
			return domain.SaleResponse{}, store.ErrInvalidInput
		}
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return domain.SaleResponse{}, err
		}
		if product.OutletID != outletID {
			return domain.SaleResponse{}, fmt.Errorf("%w: product %s belongs to another outlet", store.ErrInvalidInput, product.ID)
		}

		total += int64(line.Qty) * product.Price
		lines = append(lines, domain.TransactionLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Qty:         line.Qty,
			UnitPrice:   product.Price,
		})

		for _, entry := range product.BOM {
			item, err := s.resolveItem(ctx, outletID, entry.ItemID, entry.ItemName)
			if err != nil {
				return domain.SaleResponse{}, fmt.Errorf("component %q: %w", entry.ItemName, err)
			}
			deltaByItem[item.ID] += entry.Quantity * float64(line.Qty)
		}
	}

	deltas := make([]domain.StockDelta, 0, len(deltaByItem))
	for itemID, qty := range deltaByItem {
		deltas = append(deltas, domain.StockDelta{ItemID: itemID, Delta: -round3(qty)})
	}
	if len(deltas) > 0 {
		if err := s.repo.ApplyStockDeltas(ctx, outletID, deltas); err != nil {
			return domain.SaleResponse{}, err
		}
	}

	tx, err := s.repo.AppendTransaction(ctx, domain.Transaction{
		ID:            xid.New("tx"),
		OutletID:      outletID,
		CashierID:     actor.StaffID,
		PaymentMethod: req.PaymentMethod,
		Total:         total,
		Status:        domain.TxStatusClosed,
		CreatedAt:     s.now(),
		Items:         lines,
	})
	if err != nil {
		if len(deltas) > 0 {
			if restoreErr := s.repo.ApplyStockDeltas(ctx, outletID, invertDeltas(deltas)); restoreErr != nil {
				log.Printf("[service] WARN: failed to restore stock after sale append failure outlet=%s: %v", outletID, restoreErr)
			}
		}
		return domain.SaleResponse{}, err
	}

	s.enqueueSync("sale", outletID, tx)
	return domain.SaleResponse{Transaction: *tx}, nil
}

// ---- purchases and expenses ----

// RecordPurchase books inbound stock and generates the matching expense in
// one operation. The expense carries the AUTO_PURCHASE source so shift
// reconciliation counts the cash out without a second manual entry.
func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}

	outletID := s.resolveOutlet(actor, req.OutletID)
	if req.ItemID == "" || req.Quantity <= 0 || req.TotalCost < 1 {
		return domain.PurchaseResponse{}, store.ErrInvalidInput
	}

	item, err := s.repo.GetInventoryItem(ctx, req.ItemID)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}
	if item.OutletID != outletID {
		return domain.PurchaseResponse{}, fmt.Errorf("%w: item belongs to another outlet", store.ErrInvalidInput)
	}
	if actor.Role == domain.RoleCashier && !item.CashierPurchasable {
		return domain.PurchaseResponse{}, fmt.Errorf("%w: item %q is not cashier-purchasable", ErrAuthorizationFailed, item.Name)
	}

	qty := round3(req.Quantity)
	if err := s.repo.ApplyStockDeltas(ctx, outletID, []domain.StockDelta{{ItemID: item.ID, Delta: qty}}); err != nil {
		return domain.PurchaseResponse{}, err
	}

	now := s.now()
	purchase, err := s.repo.AppendPurchase(ctx, domain.Purchase{
		ID:        xid.New("pur"),
		OutletID:  outletID,
		StaffID:   actor.StaffID,
		ItemID:    item.ID,
		ItemName:  item.Name,
		Quantity:  qty,
		TotalCost: req.TotalCost,
		CreatedAt: now,
	})
	if err != nil {
		if restoreErr := s.repo.ApplyStockDeltas(ctx, outletID, []domain.StockDelta{{ItemID: item.ID, Delta: -qty}}); restoreErr != nil {
			log.Printf("[service] WARN: failed to restore stock after purchase append failure item=%s: %v", item.ID, restoreErr)
		}
		return domain.PurchaseResponse{}, err
	}

	if _, err := s.repo.AppendExpense(ctx, domain.Expense{
		ID:        xid.New("exp"),
		OutletID:  outletID,
		StaffID:   actor.StaffID,
		Amount:    req.TotalCost,
		Source:    domain.ExpenseSourceAutoPurchase,
		Note:      "pembelian " + item.Name,
		CreatedAt: now,
	}); err != nil {
		log.Printf("[service] WARN: failed to record auto expense for purchase %s: %v", purchase.ID, err)
	}

	s.enqueueSync("purchase", outletID, purchase)
	return domain.PurchaseResponse{Purchase: *purchase}, nil
}

func (s *Service) RecordExpense(ctx context.Context, req domain.ExpenseRequest) (domain.ExpenseResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ExpenseResponse{}, err
	}
	if req.Amount < 1 {
		return domain.ExpenseResponse{}, store.ErrInvalidInput
	}

	outletID := s.resolveOutlet(actor, req.OutletID)
	expense, err := s.repo.AppendExpense(ctx, domain.Expense{
		ID:        xid.New("exp"),
		OutletID:  outletID,
		StaffID:   actor.StaffID,
		Amount:    req.Amount,
		TypeID:    strings.TrimSpace(req.TypeID),
		Source:    domain.ExpenseSourceManual,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.ExpenseResponse{}, err
	}

	s.enqueueSync("expense", outletID, expense)
	return domain.ExpenseResponse{Expense: *expense}, nil
}

func (s *Service) ListExpenses(ctx context.Context, outletID string, date string) ([]domain.Expense, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	from, to, err := dayWindow(date, s.now())
	if err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx, s.resolveOutlet(actor, outletID), from, to)
}

// ---- attendance ----

func (s *Service) ClockIn(ctx context.Context) (domain.AttendanceResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.AttendanceResponse{}, err
	}

	now := s.now()
	status := domain.AttendanceOnTime
	if isAfterClock(now, actor.ShiftStart) {
		status = domain.AttendanceLate
	}

	att, err := s.repo.AppendAttendance(ctx, domain.Attendance{
		ID:       xid.New("att"),
		StaffID:  actor.StaffID,
		OutletID: actor.OutletID,
		ClockIn:  now,
		Status:   status,
		Date:     now.Format("2006-01-02"),
	})
	if err != nil {
		return domain.AttendanceResponse{}, err
	}

	s.enqueueSync("attendance", actor.OutletID, att)
	return domain.AttendanceResponse{Attendance: *att}, nil
}

func (s *Service) ClockOut(ctx context.Context) (domain.AttendanceResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.AttendanceResponse{}, err
	}

	open, err := s.repo.GetOpenAttendance(ctx, actor.StaffID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AttendanceResponse{}, fmt.Errorf("%w: no open attendance", store.ErrInvalidState)
		}
		return domain.AttendanceResponse{}, err
	}

	closed, err := s.repo.CloseAttendance(ctx, open.ID, s.now())
	if err != nil {
		return domain.AttendanceResponse{}, err
	}

	s.enqueueSync("attendance", actor.OutletID, closed)
	return domain.AttendanceResponse{Attendance: *closed}, nil
}

// ---- shift closing ----

// PreviewShiftClose computes everything a close would record except the
// actual cash count. Read-only: calling it twice changes nothing.
func (s *Service) PreviewShiftClose(ctx context.Context, outletID string) (domain.ShiftSummary, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ShiftSummary{}, err
	}
	return s.buildShiftSummary(ctx, actor, s.resolveOutlet(actor, outletID))
}

func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftCloseResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ShiftCloseResponse{}, err
	}
	release, err := s.guard.acquire("closing:" + actor.StaffID)
	if err != nil {
		return domain.ShiftCloseResponse{}, err
	}
	defer release()

	outletID := s.resolveOutlet(actor, req.OutletID)
	if req.ActualCash < 0 {
		return domain.ShiftCloseResponse{}, store.ErrInvalidInput
	}

	now := s.now()
	date := now.Format("2006-01-02")
	if _, err := s.repo.GetDailyClosing(ctx, actor.StaffID, outletID, date); err == nil {
		return domain.ShiftCloseResponse{}, fmt.Errorf("%w: shift already closed for the day", store.ErrInvalidState)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.ShiftCloseResponse{}, err
	}

	summary, err := s.buildShiftSummary(ctx, actor, outletID)
	if err != nil {
		return domain.ShiftCloseResponse{}, err
	}

	discrepancy := req.ActualCash - summary.ExpectedCash
	needsApproval := summary.ApprovalRequired || (discrepancy != 0 && req.ActualCash > 0)

	notes := strings.TrimSpace(req.Notes)
	if needsApproval {
		if req.Approval == nil {
			return domain.ShiftCloseResponse{}, ErrApprovalRequired
		}
		approver, err := s.verifier.VerifyCredential(ctx, req.Approval.Username, req.Approval.Password)
		if err != nil {
			return domain.ShiftCloseResponse{}, ErrAuthorizationFailed
		}
		if approver.Role != domain.RoleManager && approver.Role != domain.RoleOwner {
			return domain.ShiftCloseResponse{}, fmt.Errorf("%w: approver must be manager or owner", ErrAuthorizationFailed)
		}
		approvalNote := fmt.Sprintf("approved by %s (%s)", approver.Username, approver.Role)
		if notes == "" {
			notes = approvalNote
		} else {
			notes = notes + " | " + approvalNote
		}
	}

	closing, err := s.repo.CreateDailyClosing(ctx, domain.DailyClosing{
		ID:             xid.New("closing"),
		StaffID:        actor.StaffID,
		OutletID:       outletID,
		ShiftName:      summary.ShiftName,
		OpeningBalance: summary.OpeningBalance,
		TotalSalesCash: summary.TotalSalesCash,
		TotalSalesQRIS: summary.TotalSalesQRIS,
		TotalExpenses:  summary.TotalExpenses,
		ActualCash:     req.ActualCash,
		Discrepancy:    discrepancy,
		Notes:          notes,
		CreatedAt:      now,
	})
	if err != nil {
		return domain.ShiftCloseResponse{}, err
	}

	log.Printf("[service] shift closed staff=%s outlet=%s shift=%q discrepancy=%d", actor.StaffID, outletID, closing.ShiftName, closing.Discrepancy)
	s.enqueueSync("daily_closing", outletID, closing)
	return domain.ShiftCloseResponse{Closing: *closing}, nil
}

func (s *Service) ListClosings(ctx context.Context, outletID string, date string) ([]domain.DailyClosing, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, store.ErrInvalidInput
		}
	}
	return s.repo.ListDailyClosings(ctx, s.resolveOutlet(actor, outletID), date)
}

// buildShiftSummary derives the reconciliation window and expected cash for
// the actor's current shift. The window starts at the open attendance's
// clock-in; with no attendance it falls back to the start of the day, so a
// staff member who forgot to clock in can still close.
func (s *Service) buildShiftSummary(ctx context.Context, actor domain.Actor, outletID string) (domain.ShiftSummary, error) {
	now := s.now()
	date := now.Format("2006-01-02")

	windowStart := startOfDay(now)
	if open, err := s.repo.GetOpenAttendance(ctx, actor.StaffID); err == nil {
		windowStart = open.ClockIn
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.ShiftSummary{}, err
	} else if latest, err := s.repo.LatestAttendance(ctx, actor.StaffID, outletID); err == nil && latest.Date == date {
		windowStart = latest.ClockIn
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.ShiftSummary{}, err
	}

	transactions, err := s.repo.ListTransactions(ctx, outletID, windowStart, now)
	if err != nil {
		return domain.ShiftSummary{}, err
	}
	cashSales := int64(0)
	qrisSales := int64(0)
	for _, tx := range transactions {
		if tx.CashierID != actor.StaffID || tx.Status != domain.TxStatusClosed {
			continue
		}
		switch tx.PaymentMethod {
		case domain.PaymentCash:
			cashSales += tx.Total
		case domain.PaymentQRIS:
			qrisSales += tx.Total
		}
	}

	expenses, err := s.repo.ListExpenses(ctx, outletID, windowStart, now)
	if err != nil {
		return domain.ShiftSummary{}, err
	}
	expenseTotal := int64(0)
	for _, expense := range expenses {
		if expense.StaffID != actor.StaffID {
			continue
		}
		expenseTotal += expense.Amount
	}

	shiftName := domain.ShiftMorning
	if now.Hour() >= 15 {
		shiftName = domain.ShiftEvening
	}

	// The evening shift opens with whatever cash the morning shift counted.
	// No morning closing yet means the drawer started empty.
	openingBalance := int64(0)
	if shiftName == domain.ShiftEvening {
		closings, err := s.repo.ListDailyClosings(ctx, outletID, date)
		if err != nil {
			return domain.ShiftSummary{}, err
		}
		for _, closing := range closings {
			if closing.ShiftName == domain.ShiftMorning {
				openingBalance = closing.ActualCash
				break
			}
		}
	}

	earlyClose := actor.Role == domain.RoleCashier && isBeforeClock(now, actor.ShiftEnd)

	return domain.ShiftSummary{
		StaffID:          actor.StaffID,
		OutletID:         outletID,
		ShiftName:        shiftName,
		WindowStart:      windowStart,
		WindowEnd:        now,
		OpeningBalance:   openingBalance,
		TotalSalesCash:   cashSales,
		TotalSalesQRIS:   qrisSales,
		TotalExpenses:    expenseTotal,
		ExpectedCash:     openingBalance + cashSales - expenseTotal,
		ApprovalRequired: earlyClose,
	}, nil
}

// ---- helpers ----

// resolveItem applies the dual-match rule used across production, sales and
// recipes: the canonical id first, then the outlet-local row by name.
func (s *Service) resolveItem(ctx context.Context, outletID string, itemID string, itemName string) (*domain.InventoryItem, error) {
	if itemID != "" {
		item, err := s.repo.GetInventoryItem(ctx, itemID)
		if err == nil && item.OutletID == outletID {
			return item, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if strings.TrimSpace(itemName) == "" {
		return nil, store.ErrNotFound
	}
	return s.repo.FindInventoryItemByName(ctx, outletID, itemName)
}

// creditSender returns a transfer's quantity to the sending outlet. Used
// both for a reject and as compensation when an accepted transfer's credit
// to the destination fails.
func (s *Service) creditSender(ctx context.Context, transfer *domain.StockTransfer) error {
	srcItem, err := s.repo.FindInventoryItemByName(ctx, transfer.FromOutletID, transfer.ItemName)
	if err != nil {
		return err
	}
	return s.repo.ApplyStockDeltas(ctx, transfer.FromOutletID, []domain.StockDelta{{ItemID: srcItem.ID, Delta: transfer.Quantity}})
}

// invertDeltas reverses a delta set so a failed event append can hand the
// stock back.
func invertDeltas(deltas []domain.StockDelta) []domain.StockDelta {
	inverted := make([]domain.StockDelta, 0, len(deltas))
	for _, delta := range deltas {
		inverted = append(inverted, domain.StockDelta{ItemID: delta.ItemID, Delta: -delta.Delta})
	}
	return inverted
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayWindow(date string, now time.Time) (time.Time, time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return startOfDay(now), now, nil
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, time.Time{}, store.ErrInvalidInput
	}
	from := parsed.UTC()
	return from, from.Add(24*time.Hour - time.Nanosecond), nil
}

// isAfterClock reports whether t's time of day is past an "HH:MM" wall
// clock. Malformed or empty clocks never match.
func isAfterClock(t time.Time, clock string) bool {
	parsed, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return false
	}
	return t.Hour()*60+t.Minute() > parsed.Hour()*60+parsed.Minute()
}

// isBeforeClock is the strict counterpart: closing exactly at the shift-end
// minute is not an early close.
func isBeforeClock(t time.Time, clock string) bool {
	parsed, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return false
	}
	return t.Hour()*60+t.Minute() < parsed.Hour()*60+parsed.Minute()
}
