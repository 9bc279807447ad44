package domain

import "time"

// InventoryItem is the only persisted stock fact. Quantity is always the
// current on-hand amount; historical quantities are derived by the movement
// package, never stored.
type InventoryItem struct {
	ID                 string  `json:"id"`
	OutletID           string  `json:"outlet_id"`
	Name               string  `json:"name"`
	Unit               string  `json:"unit"`
	Quantity           float64 `json:"quantity"`
	MinStock           float64 `json:"min_stock"`
	CostPerUnit        int64   `json:"cost_per_unit"`
	Type               string  `json:"type"`
	CashierOperated    bool    `json:"cashier_operated"`
	CashierPurchasable bool    `json:"cashier_purchasable"`
}

type ItemCreateRequest struct {
	OutletID           string  `json:"outlet_id"`
	Name               string  `json:"name"`
	Unit               string  `json:"unit"`
	Quantity           float64 `json:"quantity"`
	MinStock           float64 `json:"min_stock"`
	CostPerUnit        int64   `json:"cost_per_unit"`
	Type               string  `json:"type"`
	CashierOperated    bool    `json:"cashier_operated"`
	CashierPurchasable bool    `json:"cashier_purchasable"`
}

// StockDelta is one signed adjustment applied to an item's on-hand quantity.
// Batches of deltas are applied atomically: either every delta lands or none.
type StockDelta struct {
	ItemID string
	Delta  float64
}

// BOMEntry is one inventory component consumed per unit of a product sold.
// ItemID points at the canonical item the recipe was templated against;
// ItemName is the fallback used to find the outlet-local row.
type BOMEntry struct {
	ItemID   string  `json:"item_id"`
	ItemName string  `json:"item_name"`
	Quantity float64 `json:"quantity"`
}

type Product struct {
	ID       string     `json:"id"`
	OutletID string     `json:"outlet_id"`
	Name     string     `json:"name"`
	Price    int64      `json:"price"`
	BOM      []BOMEntry `json:"bom,omitempty"`
}

type TransactionLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
	UnitPrice   int64  `json:"unit_price"`
}

type Transaction struct {
	ID            string            `json:"id"`
	OutletID      string            `json:"outlet_id"`
	CashierID     string            `json:"cashier_id"`
	PaymentMethod string            `json:"payment_method"`
	Total         int64             `json:"total"`
	Status        string            `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []TransactionLine `json:"items"`
}

type SaleLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type SaleRequest struct {
	OutletID      string     `json:"outlet_id"`
	PaymentMethod string     `json:"payment_method"`
	Items         []SaleLine `json:"items"`
}

type SaleResponse struct {
	Transaction Transaction `json:"transaction"`
}

// ComponentUsage is one consumed component inside a production record or
// recipe. Carries both the canonical item id and the name fallback, same
// dual-match rule as BOMEntry.
type ComponentUsage struct {
	ItemID   string  `json:"item_id"`
	ItemName string  `json:"item_name"`
	Quantity float64 `json:"quantity"`
}

// ProductionRecord is an immutable receipt of one conversion event:
// N components consumed, one result item emitted.
type ProductionRecord struct {
	ID             string           `json:"id"`
	OutletID       string           `json:"outlet_id"`
	StaffID        string           `json:"staff_id"`
	ResultItemID   string           `json:"result_item_id"`
	ResultItemName string           `json:"result_item_name"`
	ResultQuantity float64          `json:"result_quantity"`
	CreatedAt      time.Time        `json:"created_at"`
	Components     []ComponentUsage `json:"components"`
}

type ProductionRequest struct {
	OutletID       string           `json:"outlet_id"`
	ResultItemID   string           `json:"result_item_id"`
	ResultItemName string           `json:"result_item_name"`
	ResultQuantity float64          `json:"result_quantity"`
	Components     []ComponentUsage `json:"components"`
}

type ProductionResponse struct {
	Record ProductionRecord `json:"record"`
}

// Recipe is the master conversion template. Components are stated per
// ReferenceQuantity of the result item and scaled linearly on request.
type Recipe struct {
	ID                string           `json:"id"`
	ResultItemName    string           `json:"result_item_name"`
	ReferenceQuantity float64          `json:"reference_quantity"`
	Unit              string           `json:"unit"`
	Components        []ComponentUsage `json:"components"`
}

type RecipeScaleRequest struct {
	RecipeID       string  `json:"recipe_id"`
	ResultQuantity float64 `json:"result_quantity"`
}

type RecipeScaleResponse struct {
	RecipeID       string           `json:"recipe_id"`
	ResultItemName string           `json:"result_item_name"`
	ResultQuantity float64          `json:"result_quantity"`
	Components     []ComponentUsage `json:"components"`
}

type StockTransfer struct {
	ID           string     `json:"id"`
	FromOutletID string     `json:"from_outlet_id"`
	ToOutletID   string     `json:"to_outlet_id"`
	ItemName     string     `json:"item_name"`
	Unit         string     `json:"unit"`
	Quantity     float64    `json:"quantity"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
	RespondedBy  string     `json:"responded_by,omitempty"`
}

type TransferInitiateRequest struct {
	FromOutletID string  `json:"from_outlet_id"`
	ToOutletID   string  `json:"to_outlet_id"`
	ItemName     string  `json:"item_name"`
	Quantity     float64 `json:"quantity"`
}

type TransferRespondRequest struct {
	TransferID string `json:"transfer_id"`
	Accept     bool   `json:"accept"`
}

type TransferResponse struct {
	Transfer StockTransfer `json:"transfer"`
}

type Purchase struct {
	ID        string    `json:"id"`
	OutletID  string    `json:"outlet_id"`
	StaffID   string    `json:"staff_id"`
	ItemID    string    `json:"item_id"`
	ItemName  string    `json:"item_name"`
	Quantity  float64   `json:"quantity"`
	TotalCost int64     `json:"total_cost"`
	CreatedAt time.Time `json:"created_at"`
}

type PurchaseRequest struct {
	OutletID  string  `json:"outlet_id"`
	ItemID    string  `json:"item_id"`
	Quantity  float64 `json:"quantity"`
	TotalCost int64   `json:"total_cost"`
}

type PurchaseResponse struct {
	Purchase Purchase `json:"purchase"`
}

// Expense carries an explicit Source discriminator: MANUAL for
// operator-entered expenses, AUTO_PURCHASE for the expense generated
// alongside a cashier purchase.
type Expense struct {
	ID        string    `json:"id"`
	OutletID  string    `json:"outlet_id"`
	StaffID   string    `json:"staff_id"`
	Amount    int64     `json:"amount"`
	TypeID    string    `json:"type_id,omitempty"`
	Source    string    `json:"source"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ExpenseRequest struct {
	OutletID string `json:"outlet_id"`
	Amount   int64  `json:"amount"`
	TypeID   string `json:"type_id"`
	Note     string `json:"note"`
}

type ExpenseResponse struct {
	Expense Expense `json:"expense"`
}

// Attendance bounds a staff shift. One open record (no ClockOut) per staff
// at a time defines the active shift.
type Attendance struct {
	ID       string     `json:"id"`
	StaffID  string     `json:"staff_id"`
	OutletID string     `json:"outlet_id"`
	ClockIn  time.Time  `json:"clock_in"`
	ClockOut *time.Time `json:"clock_out,omitempty"`
	Status   string     `json:"status"`
	Date     string     `json:"date"`
}

type AttendanceResponse struct {
	Attendance Attendance `json:"attendance"`
}

// DailyClosing is the terminal shift reconciliation record. Immutable once
// created; at most one per (staff, outlet, day).
type DailyClosing struct {
	ID             string    `json:"id"`
	StaffID        string    `json:"staff_id"`
	OutletID       string    `json:"outlet_id"`
	ShiftName      string    `json:"shift_name"`
	OpeningBalance int64     `json:"opening_balance"`
	TotalSalesCash int64     `json:"total_sales_cash"`
	TotalSalesQRIS int64     `json:"total_sales_qris"`
	TotalExpenses  int64     `json:"total_expenses"`
	ActualCash     int64     `json:"actual_cash"`
	Discrepancy    int64     `json:"discrepancy"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ApprovalCredential is the manager/owner re-entry used to unlock an early
// close or a discrepant close.
type ApprovalCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ShiftCloseRequest struct {
	OutletID   string              `json:"outlet_id"`
	ActualCash int64               `json:"actual_cash"`
	Notes      string              `json:"notes"`
	Approval   *ApprovalCredential `json:"approval,omitempty"`
}

type ShiftCloseResponse struct {
	Closing DailyClosing `json:"closing"`
}

// ShiftSummary is the pure preview of a close: everything CloseShift would
// compute before the cash count, plus whether closing now needs approval.
type ShiftSummary struct {
	StaffID          string    `json:"staff_id"`
	OutletID         string    `json:"outlet_id"`
	ShiftName        string    `json:"shift_name"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	OpeningBalance   int64     `json:"opening_balance"`
	TotalSalesCash   int64     `json:"total_sales_cash"`
	TotalSalesQRIS   int64     `json:"total_sales_qris"`
	TotalExpenses    int64     `json:"total_expenses"`
	ExpectedCash     int64     `json:"expected_cash"`
	ApprovalRequired bool      `json:"approval_required"`
}

// ItemMovement is one derived stock-movement row. EndQty is the live
// on-hand quantity; StartQty is derived backwards from it.
type ItemMovement struct {
	ItemID   string  `json:"item_id"`
	ItemName string  `json:"item_name"`
	Unit     string  `json:"unit"`
	StartQty float64 `json:"start_qty"`
	Inbound  float64 `json:"inbound"`
	Outbound float64 `json:"outbound"`
	EndQty   float64 `json:"end_qty"`
}

type MovementReport struct {
	OutletID    string         `json:"outlet_id"`
	From        time.Time      `json:"from"`
	To          time.Time      `json:"to"`
	Rows        []ItemMovement `json:"rows"`
	GeneratedAt string         `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	OutletID    string `json:"outlet_id"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the caller context every core operation runs under: identity,
// role, home outlet and the configured shift hours ("HH:MM").
type Actor struct {
	StaffID    string
	Username   string
	Role       string
	OutletID   string
	ShiftStart string
	ShiftEnd   string
}

type StaffCreateRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	OutletID   string `json:"outlet_id"`
	ShiftStart string `json:"shift_start"`
	ShiftEnd   string `json:"shift_end"`
}

type StaffUser struct {
	StaffID    string    `json:"staff_id"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	OutletID   string    `json:"outlet_id"`
	ShiftStart string    `json:"shift_start"`
	ShiftEnd   string    `json:"shift_end"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	StaffID    string
	Username   string
	Password   string
	Role       string
	OutletID   string
	ShiftStart string
	ShiftEnd   string
	Active     bool
	CreatedAt  time.Time
}

const (
	ItemTypeRaw = "raw"
	ItemTypeWIP = "wip"
)

const (
	PaymentCash = "cash"
	PaymentQRIS = "qris"
)

const (
	TxStatusClosed = "closed"
	TxStatusVoided = "voided"
)

const (
	TransferPending  = "pending"
	TransferAccepted = "accepted"
	TransferRejected = "rejected"
)

const (
	ExpenseSourceManual       = "manual"
	ExpenseSourceAutoPurchase = "auto_purchase"
)

const (
	AttendanceOnTime = "on_time"
	AttendanceLate   = "late"
)

const (
	ShiftMorning = "SHIFT PAGI"
	ShiftEvening = "SHIFT SORE/MALAM"
)

const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleCashier = "cashier"
)
