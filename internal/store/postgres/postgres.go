package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dapurlima/backend/internal/domain"
	"dapurlima/backend/internal/store"
	"dapurlima/backend/internal/xid"
)

// Store is the PostgreSQL-backed Repository. Schema is managed by external
// migrations; this package only reads and writes.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListInventoryItems(ctx context.Context, outletID string) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, name, unit, quantity, min_stock, cost_per_unit, item_type, cashier_operated, cashier_purchasable
		FROM inventory_items
		WHERE ($1 = '' OR outlet_id = $1)
		ORDER BY name, id
	`, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 128)
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ID, &item.OutletID, &item.Name, &item.Unit, &item.Quantity, &item.MinStock, &item.CostPerUnit, &item.Type, &item.CashierOperated, &item.CashierPurchasable); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, outlet_id, name, unit, quantity, min_stock, cost_per_unit, item_type, cashier_operated, cashier_purchasable
		FROM inventory_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.OutletID, &item.Name, &item.Unit, &item.Quantity, &item.MinStock, &item.CostPerUnit, &item.Type, &item.CashierOperated, &item.CashierPurchasable)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) FindInventoryItemByName(ctx context.Context, outletID string, name string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, outlet_id, name, unit, quantity, min_stock, cost_per_unit, item_type, cashier_operated, cashier_purchasable
		FROM inventory_items
		WHERE outlet_id = $1 AND lower(trim(name)) = lower(trim($2))
		LIMIT 1
	`, outletID, name).Scan(&item.ID, &item.OutletID, &item.Name, &item.Unit, &item.Quantity, &item.MinStock, &item.CostPerUnit, &item.Type, &item.CashierOperated, &item.CashierPurchasable)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.OutletID == "" || item.Name == "" || item.Unit == "" || item.Quantity < 0 || item.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if item.Type == "" {
		item.Type = domain.ItemTypeRaw
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, outlet_id, name, unit, quantity, min_stock, cost_per_unit, item_type, cashier_operated, cashier_purchasable, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
	`, item.ID, item.OutletID, item.Name, item.Unit, item.Quantity, item.MinStock, item.CostPerUnit, item.Type, item.CashierOperated, item.CashierPurchasable)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: item %q already exists in outlet", store.ErrInvalidInput, item.Name)
		}
		return nil, err
	}

	created := item
	return &created, nil
}

// ApplyStockDeltas locks every touched row, validates the resulting
// quantities, then writes. Serializable isolation plus FOR UPDATE keeps two
// concurrent batches from both passing the same availability check.
func (s *Store) ApplyStockDeltas(ctx context.Context, outletID string, deltas []domain.StockDelta) error {
	if len(deltas) == 0 {
		return store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	staged := make(map[string]float64, len(deltas))
	names := make(map[string]string, len(deltas))
	for _, delta := range deltas {
		if _, seen := staged[delta.ItemID]; !seen {
			var qty float64
			var name string
			err := tx.QueryRowContext(ctx, `
				SELECT quantity, name
				FROM inventory_items
				WHERE id = $1 AND outlet_id = $2
				FOR UPDATE
			`, delta.ItemID, outletID).Scan(&qty, &name)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("%w: item %s", store.ErrNotFound, delta.ItemID)
				}
				return err
			}
			staged[delta.ItemID] = qty
			names[delta.ItemID] = name
		}
		staged[delta.ItemID] += delta.Delta
		if staged[delta.ItemID] < -1e-9 {
			return fmt.Errorf("%w: %s", store.ErrInsufficientStock, names[delta.ItemID])
		}
		if staged[delta.ItemID] < 0 {
			staged[delta.ItemID] = 0
		}
	}

	for itemID, qty := range staged {
		if _, err := tx.ExecContext(ctx, `
			UPDATE inventory_items SET quantity = $2 WHERE id = $1
		`, itemID, qty); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ListProducts(ctx context.Context, outletID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, name, price, bom
		FROM products
		WHERE ($1 = '' OR outlet_id = $1)
		ORDER BY name
	`, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		var bomRaw []byte
		if err := rows.Scan(&p.ID, &p.OutletID, &p.Name, &p.Price, &bomRaw); err != nil {
			return nil, err
		}
		if len(bomRaw) > 0 {
			if err := json.Unmarshal(bomRaw, &p.BOM); err != nil {
				return nil, err
			}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	var bomRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, outlet_id, name, price, bom
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.OutletID, &p.Name, &p.Price, &bomRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(bomRaw) > 0 {
		if err := json.Unmarshal(bomRaw, &p.BOM); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.OutletID == "" || product.Name == "" || product.Price < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	bomRaw, err := json.Marshal(product.BOM)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, outlet_id, name, price, bom, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, product.ID, product.OutletID, product.Name, product.Price, bomRaw)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) ListTransactions(ctx context.Context, outletID string, from time.Time, to time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, cashier_id, payment_method, total, status, created_at, items
		FROM transactions
		WHERE outlet_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at
	`, outletID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 128)
	for rows.Next() {
		var tx domain.Transaction
		var itemsRaw []byte
		if err := rows.Scan(&tx.ID, &tx.OutletID, &tx.CashierID, &tx.PaymentMethod, &tx.Total, &tx.Status, &tx.CreatedAt, &itemsRaw); err != nil {
			return nil, err
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		if len(itemsRaw) > 0 {
			if err := json.Unmarshal(itemsRaw, &tx.Items); err != nil {
				return nil, err
			}
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.OutletID == "" || len(tx.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	itemsRaw, err := json.Marshal(tx.Items)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, outlet_id, cashier_id, payment_method, total, status, created_at, items)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, tx.ID, tx.OutletID, tx.CashierID, tx.PaymentMethod, tx.Total, tx.Status, tx.CreatedAt, itemsRaw)
	if err != nil {
		return nil, err
	}

	created := tx
	return &created, nil
}

func (s *Store) ListPurchases(ctx context.Context, outletID string, from time.Time, to time.Time) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, staff_id, item_id, item_name, quantity, total_cost, created_at
		FROM purchases
		WHERE outlet_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at
	`, outletID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 64)
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.OutletID, &p.StaffID, &p.ItemID, &p.ItemName, &p.Quantity, &p.TotalCost, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) AppendPurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.OutletID == "" || purchase.Quantity <= 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, outlet_id, staff_id, item_id, item_name, quantity, total_cost, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, purchase.ID, purchase.OutletID, purchase.StaffID, purchase.ItemID, purchase.ItemName, purchase.Quantity, purchase.TotalCost, purchase.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := purchase
	return &created, nil
}

func (s *Store) ListProductionRecords(ctx context.Context, outletID string, from time.Time, to time.Time) ([]domain.ProductionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, staff_id, result_item_id, result_item_name, result_quantity, created_at, components
		FROM production_records
		WHERE outlet_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at
	`, outletID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.ProductionRecord, 0, 64)
	for rows.Next() {
		var record domain.ProductionRecord
		var componentsRaw []byte
		if err := rows.Scan(&record.ID, &record.OutletID, &record.StaffID, &record.ResultItemID, &record.ResultItemName, &record.ResultQuantity, &record.CreatedAt, &componentsRaw); err != nil {
			return nil, err
		}
		record.CreatedAt = record.CreatedAt.UTC()
		if len(componentsRaw) > 0 {
			if err := json.Unmarshal(componentsRaw, &record.Components); err != nil {
				return nil, err
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) AppendProductionRecord(ctx context.Context, record domain.ProductionRecord) (*domain.ProductionRecord, error) {
	if record.OutletID == "" || record.ResultQuantity <= 0 || len(record.Components) == 0 {
		return nil, store.ErrInvalidInput
	}
	if record.ID == "" {
		record.ID = xid.New("prodrec")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	componentsRaw, err := json.Marshal(record.Components)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO production_records (id, outlet_id, staff_id, result_item_id, result_item_name, result_quantity, created_at, components)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, record.ID, record.OutletID, record.StaffID, record.ResultItemID, record.ResultItemName, record.ResultQuantity, record.CreatedAt, componentsRaw)
	if err != nil {
		return nil, err
	}

	created := record
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, outletID string, from time.Time, to time.Time) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, staff_id, amount, COALESCE(type_id, ''), source, COALESCE(note, ''), created_at
		FROM expenses
		WHERE outlet_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at
	`, outletID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.OutletID, &e.StaffID, &e.Amount, &e.TypeID, &e.Source, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) AppendExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, outlet_id, staff_id, amount, type_id, source, note, created_at)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,NULLIF($7,''),$8)
	`, expense.ID, expense.OutletID, expense.StaffID, expense.Amount, expense.TypeID, expense.Source, expense.Note, expense.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := expense
	return &created, nil
}

func (s *Store) ListStockTransfers(ctx context.Context, outletID string) ([]domain.StockTransfer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_outlet_id, to_outlet_id, item_name, unit, quantity, status, created_at, responded_at, COALESCE(responded_by, '')
		FROM stock_transfers
		WHERE $1 = '' OR from_outlet_id = $1 OR to_outlet_id = $1
		ORDER BY created_at DESC, id
	`, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := make([]domain.StockTransfer, 0, 32)
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

func (s *Store) GetStockTransfer(ctx context.Context, id string) (*domain.StockTransfer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, from_outlet_id, to_outlet_id, item_name, unit, quantity, status, created_at, responded_at, COALESCE(responded_by, '')
		FROM stock_transfers
		WHERE id = $1
	`, id)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

func (s *Store) CreateStockTransfer(ctx context.Context, transfer domain.StockTransfer) (*domain.StockTransfer, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_transfers (id, from_outlet_id, to_outlet_id, item_name, unit, quantity, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, transfer.ID, transfer.FromOutletID, transfer.ToOutletID, transfer.ItemName, transfer.Unit, transfer.Quantity, transfer.Status, transfer.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := transfer
	return &created, nil
}

// ResolveStockTransfer moves a transfer out of PENDING exactly once. The
// conditional UPDATE is the concurrency gate; a second responder sees zero
// rows affected and gets ErrInvalidState.
func (s *Store) ResolveStockTransfer(ctx context.Context, id string, status string, respondedBy string, at time.Time) (*domain.StockTransfer, error) {
	if status != domain.TransferAccepted && status != domain.TransferRejected {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE stock_transfers
		SET status = $2, responded_by = $3, responded_at = $4
		WHERE id = $1 AND status = $5
	`, id, status, respondedBy, at, domain.TransferPending)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		existing, err := s.GetStockTransfer(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: transfer is %s", store.ErrInvalidState, existing.Status)
	}

	return s.GetStockTransfer(ctx, id)
}

func (s *Store) GetOpenAttendance(ctx context.Context, staffID string) (*domain.Attendance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, staff_id, outlet_id, clock_in, clock_out, status, att_date
		FROM attendance
		WHERE staff_id = $1 AND clock_out IS NULL
		ORDER BY clock_in DESC
		LIMIT 1
	`, staffID)
	return scanAttendance(row)
}

func (s *Store) LatestAttendance(ctx context.Context, staffID string, outletID string) (*domain.Attendance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, staff_id, outlet_id, clock_in, clock_out, status, att_date
		FROM attendance
		WHERE staff_id = $1 AND outlet_id = $2
		ORDER BY clock_in DESC
		LIMIT 1
	`, staffID, outletID)
	return scanAttendance(row)
}

func (s *Store) AppendAttendance(ctx context.Context, att domain.Attendance) (*domain.Attendance, error) {
	if att.StaffID == "" || att.OutletID == "" || att.ClockIn.IsZero() {
		return nil, store.ErrInvalidInput
	}
	if att.ID == "" {
		att.ID = xid.New("att")
	}
	if att.Date == "" {
		att.Date = att.ClockIn.Format("2006-01-02")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var openCount int
	if err := tx.QueryRowContext(ctx, `
		SELECT count(*) FROM attendance WHERE staff_id = $1 AND clock_out IS NULL
	`, att.StaffID).Scan(&openCount); err != nil {
		return nil, err
	}
	if openCount > 0 {
		return nil, fmt.Errorf("%w: staff already clocked in", store.ErrInvalidState)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance (id, staff_id, outlet_id, clock_in, status, att_date)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, att.ID, att.StaffID, att.OutletID, att.ClockIn, att.Status, att.Date); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := att
	return &created, nil
}

func (s *Store) CloseAttendance(ctx context.Context, id string, at time.Time) (*domain.Attendance, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance SET clock_out = $2 WHERE id = $1 AND clock_out IS NULL
	`, id, at)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: attendance already closed", store.ErrInvalidState)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, staff_id, outlet_id, clock_in, clock_out, status, att_date
		FROM attendance
		WHERE id = $1
	`, id)
	return scanAttendance(row)
}

func (s *Store) GetDailyClosing(ctx context.Context, staffID string, outletID string, date string) (*domain.DailyClosing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, staff_id, outlet_id, shift_name, opening_balance, total_sales_cash, total_sales_qris, total_expenses, actual_cash, discrepancy, COALESCE(notes, ''), created_at
		FROM daily_closings
		WHERE staff_id = $1 AND outlet_id = $2 AND closing_date = $3
	`, staffID, outletID, date)
	return scanClosing(row)
}

func (s *Store) ListDailyClosings(ctx context.Context, outletID string, date string) ([]domain.DailyClosing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, staff_id, outlet_id, shift_name, opening_balance, total_sales_cash, total_sales_qris, total_expenses, actual_cash, discrepancy, COALESCE(notes, ''), created_at
		FROM daily_closings
		WHERE outlet_id = $1 AND ($2 = '' OR closing_date = $2)
		ORDER BY created_at, id
	`, outletID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	closings := make([]domain.DailyClosing, 0, 8)
	for rows.Next() {
		closing, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		closings = append(closings, *closing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return closings, nil
}

func (s *Store) CreateDailyClosing(ctx context.Context, closing domain.DailyClosing) (*domain.DailyClosing, error) {
	if closing.StaffID == "" || closing.OutletID == "" || closing.ShiftName == "" {
		return nil, store.ErrInvalidInput
	}
	if closing.ID == "" {
		closing.ID = xid.New("closing")
	}
	if closing.CreatedAt.IsZero() {
		closing.CreatedAt = time.Now().UTC()
	}

	// daily_closings carries a unique index on (staff_id, outlet_id,
	// closing_date); the violation maps to ErrInvalidState.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_closings (id, staff_id, outlet_id, shift_name, opening_balance, total_sales_cash, total_sales_qris, total_expenses, actual_cash, discrepancy, notes, closing_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,$13)
	`, closing.ID, closing.StaffID, closing.OutletID, closing.ShiftName, closing.OpeningBalance, closing.TotalSalesCash, closing.TotalSalesQRIS, closing.TotalExpenses, closing.ActualCash, closing.Discrepancy, closing.Notes, closing.CreatedAt.Format("2006-01-02"), closing.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: shift already closed for the day", store.ErrInvalidState)
		}
		return nil, err
	}

	created := closing
	return &created, nil
}

func (s *Store) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, result_item_name, reference_quantity, unit, components
		FROM recipes
		ORDER BY result_item_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := make([]domain.Recipe, 0, 16)
	for rows.Next() {
		var r domain.Recipe
		var componentsRaw []byte
		if err := rows.Scan(&r.ID, &r.ResultItemName, &r.ReferenceQuantity, &r.Unit, &componentsRaw); err != nil {
			return nil, err
		}
		if len(componentsRaw) > 0 {
			if err := json.Unmarshal(componentsRaw, &r.Components); err != nil {
				return nil, err
			}
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (s *Store) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	var r domain.Recipe
	var componentsRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, result_item_name, reference_quantity, unit, components
		FROM recipes
		WHERE id = $1
	`, id).Scan(&r.ID, &r.ResultItemName, &r.ReferenceQuantity, &r.Unit, &componentsRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(componentsRaw) > 0 {
		if err := json.Unmarshal(componentsRaw, &r.Components); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.StaffID == "" {
		user.StaffID = xid.New("staff")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (staff_id, username, password, role, outlet_id, shift_start, shift_end, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, user.StaffID, user.Username, user.Password, user.Role, user.OutletID, user.ShiftStart, user.ShiftEnd, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT staff_id, username, password, role, COALESCE(outlet_id, ''), COALESCE(shift_start, ''), COALESCE(shift_end, ''), active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.StaffID, &user.Username, &user.Password, &user.Role, &user.OutletID, &user.ShiftStart, &user.ShiftEnd, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (domain.StockTransfer, error) {
	var transfer domain.StockTransfer
	var respondedAt sql.NullTime
	err := row.Scan(&transfer.ID, &transfer.FromOutletID, &transfer.ToOutletID, &transfer.ItemName, &transfer.Unit, &transfer.Quantity, &transfer.Status, &transfer.CreatedAt, &respondedAt, &transfer.RespondedBy)
	if err != nil {
		return domain.StockTransfer{}, err
	}
	transfer.CreatedAt = transfer.CreatedAt.UTC()
	if respondedAt.Valid {
		at := respondedAt.Time.UTC()
		transfer.RespondedAt = &at
	}
	return transfer, nil
}

func scanAttendance(row rowScanner) (*domain.Attendance, error) {
	var att domain.Attendance
	var clockOut sql.NullTime
	err := row.Scan(&att.ID, &att.StaffID, &att.OutletID, &att.ClockIn, &clockOut, &att.Status, &att.Date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	att.ClockIn = att.ClockIn.UTC()
	if clockOut.Valid {
		out := clockOut.Time.UTC()
		att.ClockOut = &out
	}
	return &att, nil
}

func scanClosing(row rowScanner) (*domain.DailyClosing, error) {
	var closing domain.DailyClosing
	err := row.Scan(&closing.ID, &closing.StaffID, &closing.OutletID, &closing.ShiftName, &closing.OpeningBalance, &closing.TotalSalesCash, &closing.TotalSalesQRIS, &closing.TotalExpenses, &closing.ActualCash, &closing.Discrepancy, &closing.Notes, &closing.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	closing.CreatedAt = closing.CreatedAt.UTC()
	return &closing, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
