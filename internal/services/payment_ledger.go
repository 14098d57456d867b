package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
)

var ledgerOpenStatuses = map[OrderStatus]bool{
	domain.OrderStatusPaid:         true,
	domain.OrderStatusCreditActive: true,
}

var debtStatuses = map[OrderStatus]bool{
	domain.OrderStatusCreditActive: true,
	domain.OrderStatusApproved:     true,
	domain.OrderStatusShipped:      true,
}

// Totals derives the order figures from its lines and ledger.
func Totals(order Order) OrderTotals {
	total := decimal.Zero
	for _, line := range order.Lines {
		total = total.Add(line.Subtotal())
	}
	paid := decimal.Zero
	for _, p := range order.Payments {
		paid = paid.Add(p.Amount)
	}
	return OrderTotals{
		TotalAmount:      total,
		TotalPaid:        paid,
		RemainingBalance: total.Sub(paid),
	}
}

// RecordPayment appends payment to the ledger. A CREDIT_ACTIVE order whose balance reaches zero
// moves to PAID. Overpayments are accepted as is.
func RecordPayment(order *Order, payment Payment) error {
	if !payment.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	payment.Reference = strings.TrimSpace(payment.Reference)
	if payment.Reference == "" {
		return fmt.Errorf("%w: payment reference is required", ErrMissingReference)
	}
	if !ledgerOpenStatuses[order.Status] {
		return fmt.Errorf("%w: payments cannot be registered while %s", ErrOrderInvalidState, order.Status)
	}

	order.Payments = append(order.Payments, payment)

	if order.Status == domain.OrderStatusCreditActive && !Totals(*order).RemainingBalance.IsPositive() {
		order.Status = domain.OrderStatusPaid
	}
	return nil
}

// SettleInFull records a single payment for the whole total when the ledger is still empty. It
// reports whether a payment was appended.
func SettleInFull(order *Order, payment Payment) bool {
	if len(order.Payments) > 0 {
		return false
	}
	payment.Amount = Totals(*order).TotalAmount
	order.Payments = append(order.Payments, payment)
	return true
}

// ClientKey groups orders by tax id, falling back to the customer name.
func ClientKey(order Order) string {
	if key := strings.TrimSpace(order.ClientTaxID); key != "" {
		return key
	}
	return strings.TrimSpace(order.CustomerName)
}

// GroupDebtByClient collects open balances of CREDIT_ACTIVE, APPROVED and SHIPPED orders.
func GroupDebtByClient(orders []Order) map[string]ClientDebt {
	result := make(map[string]ClientDebt)
	for _, order := range orders {
		if !debtStatuses[order.Status] {
			continue
		}
		remaining := Totals(order).RemainingBalance
		if !remaining.IsPositive() {
			continue
		}
		key := ClientKey(order)
		entry := result[key]
		entry.ClientKey = key
		entry.TotalDebt = entry.TotalDebt.Add(remaining)
		entry.Orders = append(entry.Orders, order)
		result[key] = entry
	}
	return result
}

// Summarize computes cash collected across all orders and the receivables still open.
func Summarize(orders []Order) FinanceSummary {
	summary := FinanceSummary{Income: decimal.Zero, Receivables: decimal.Zero}
	for _, order := range orders {
		totals := Totals(order)
		summary.Income = summary.Income.Add(totals.TotalPaid)
		if debtStatuses[order.Status] && totals.RemainingBalance.IsPositive() {
			summary.Receivables = summary.Receivables.Add(totals.RemainingBalance)
		}
	}
	return summary
}
