package store

import (
	"context"
	"errors"
	"time"

	"dapurlima/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidInput      = errors.New("invalid input")
)

// Repository is the event store behind the reconciliation engine: current
// inventory quantities plus append-only event collections (transactions,
// purchases, production records, transfers, expenses, attendance, daily
// closings), each filterable by outlet and time window.
type Repository interface {
	ListInventoryItems(ctx context.Context, outletID string) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	FindInventoryItemByName(ctx context.Context, outletID string, name string) (*domain.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	ApplyStockDeltas(ctx context.Context, outletID string, deltas []domain.StockDelta) error

	ListProducts(ctx context.Context, outletID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	ListTransactions(ctx context.Context, outletID string, from time.Time, to time.Time) ([]domain.Transaction, error)
	AppendTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)

	ListPurchases(ctx context.Context, outletID string, from time.Time, to time.Time) ([]domain.Purchase, error)
	AppendPurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)

	ListProductionRecords(ctx context.Context, outletID string, from time.Time, to time.Time) ([]domain.ProductionRecord, error)
	AppendProductionRecord(ctx context.Context, record domain.ProductionRecord) (*domain.ProductionRecord, error)

	ListExpenses(ctx context.Context, outletID string, from time.Time, to time.Time) ([]domain.Expense, error)
	AppendExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)

	ListStockTransfers(ctx context.Context, outletID string) ([]domain.StockTransfer, error)
	GetStockTransfer(ctx context.Context, id string) (*domain.StockTransfer, error)
	CreateStockTransfer(ctx context.Context, transfer domain.StockTransfer) (*domain.StockTransfer, error)
	// ResolveStockTransfer transitions a PENDING transfer to its terminal
	// status. Responding to a non-pending transfer fails with ErrInvalidState.
	ResolveStockTransfer(ctx context.Context, id string, status string, respondedBy string, at time.Time) (*domain.StockTransfer, error)

	GetOpenAttendance(ctx context.Context, staffID string) (*domain.Attendance, error)
	LatestAttendance(ctx context.Context, staffID string, outletID string) (*domain.Attendance, error)
	AppendAttendance(ctx context.Context, att domain.Attendance) (*domain.Attendance, error)
	CloseAttendance(ctx context.Context, id string, at time.Time) (*domain.Attendance, error)

	GetDailyClosing(ctx context.Context, staffID string, outletID string, date string) (*domain.DailyClosing, error)
	ListDailyClosings(ctx context.Context, outletID string, date string) ([]domain.DailyClosing, error)
	// CreateDailyClosing enforces the one-closing-per-staff/outlet/day
	// invariant and fails with ErrInvalidState on a duplicate.
	CreateDailyClosing(ctx context.Context, closing domain.DailyClosing) (*domain.DailyClosing, error)

	ListRecipes(ctx context.Context) ([]domain.Recipe, error)
	GetRecipe(ctx context.Context, id string) (*domain.Recipe, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
