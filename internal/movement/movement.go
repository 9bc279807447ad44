package movement

import (
	"math"
	"slices"
	"strings"
	"time"

	"dapurlima/backend/internal/domain"
)

// Inputs are the already-loaded event collections for one outlet. Compute
// never performs I/O: callers load everything first, so two computations
// over the same snapshot always agree.
type Inputs struct {
	Products     []domain.Product
	Transactions []domain.Transaction
	Purchases    []domain.Purchase
	Productions  []domain.ProductionRecord
	Transfers    []domain.StockTransfer
}

// Compute derives movement rows for every item with in-window activity.
// Items without any inbound or outbound are dropped: an outlet inventory
// list is mostly noise for a movement report.
func Compute(items []domain.InventoryItem, from time.Time, to time.Time, in Inputs) []domain.ItemMovement {
	rows := make([]domain.ItemMovement, 0, len(items))
	for _, item := range items {
		row := ComputeItem(item, from, to, in)
		if row.Inbound == 0 && row.Outbound == 0 {
			continue
		}
		rows = append(rows, row)
	}

	slices.SortFunc(rows, func(a, b domain.ItemMovement) int {
		return strings.Compare(a.ItemName, b.ItemName)
	})
	return rows
}

// ComputeItem reconstructs one item's window. EndQty is the live on-hand
// quantity, read from the item itself; the start balance is derived
// backwards (end − inbound + outbound), never stored. The identity
// startQty + inbound − outbound == endQty therefore holds by construction.
func ComputeItem(item domain.InventoryItem, from time.Time, to time.Time, in Inputs) domain.ItemMovement {
	inWindow := func(ts time.Time) bool {
		return !ts.Before(from) && !ts.After(to)
	}

	inbound := 0.0
	outbound := 0.0

	for _, purchase := range in.Purchases {
		if !inWindow(purchase.CreatedAt) {
			continue
		}
		if matchesItem(item, purchase.ItemID, purchase.ItemName) {
			inbound += purchase.Quantity
		}
	}

	for _, record := range in.Productions {
		if !inWindow(record.CreatedAt) {
			continue
		}
		if matchesItem(item, record.ResultItemID, record.ResultItemName) {
			inbound += record.ResultQuantity
		}
		for _, component := range record.Components {
			if matchesItem(item, component.ItemID, component.ItemName) {
				outbound += component.Quantity
			}
		}
	}

	productsByID := make(map[string]domain.Product, len(in.Products))
	for _, product := range in.Products {
		productsByID[product.ID] = product
	}

	for _, tx := range in.Transactions {
		if tx.Status != domain.TxStatusClosed || !inWindow(tx.CreatedAt) {
			continue
		}
		for _, line := range tx.Items {
			product, ok := productsByID[line.ProductID]
			if !ok {
				continue
			}
			for _, entry := range product.BOM {
				if matchesItem(item, entry.ItemID, entry.ItemName) {
					outbound += entry.Quantity * float64(line.Qty)
				}
			}
		}
	}

	for _, transfer := range in.Transfers {
		if transfer.Status != domain.TransferAccepted || !inWindow(transfer.CreatedAt) {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(transfer.ItemName), strings.TrimSpace(item.Name)) {
			continue
		}
		if transfer.ToOutletID == item.OutletID {
			inbound += transfer.Quantity
		}
		if transfer.FromOutletID == item.OutletID {
			outbound += transfer.Quantity
		}
	}

	inbound = round3(inbound)
	outbound = round3(outbound)

	return domain.ItemMovement{
		ItemID:   item.ID,
		ItemName: item.Name,
		Unit:     item.Unit,
		StartQty: round3(item.Quantity - inbound + outbound),
		Inbound:  inbound,
		Outbound: outbound,
		EndQty:   item.Quantity,
	}
}

// matchesItem applies the dual-match rule: id equality first, then a
// case-insensitive name fallback. A product BOM or recipe may be templated
// against a canonical item while the outlet owns its own row for the same
// name; matching only by id would undercount those outlets.
func matchesItem(item domain.InventoryItem, refID string, refName string) bool {
	if refID != "" && refID == item.ID {
		return true
	}
	return refName != "" && strings.EqualFold(strings.TrimSpace(refName), strings.TrimSpace(item.Name))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
