package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/services"
)

type stubOrderService struct {
	quoteFn      func(context.Context, services.RequestQuoteCommand) (services.Order, error)
	saleFn       func(context.Context, services.ManualSaleCommand) (services.Order, error)
	getFn        func(context.Context, string) (services.Order, error)
	listFn       func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	transitionFn func(context.Context, services.TransitionRequest) (services.Order, error)
	paymentFn    func(context.Context, services.RecordPaymentCommand) (services.Order, error)
	debtFn       func(context.Context) ([]services.ClientDebt, error)
	financeFn    func(context.Context) (services.FinanceSummary, error)
}

func (s *stubOrderService) RequestQuote(ctx context.Context, cmd services.RequestQuoteCommand) (services.Order, error) {
	if s.quoteFn != nil {
		return s.quoteFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) CreateManualSale(ctx context.Context, cmd services.ManualSaleCommand) (services.Order, error) {
	if s.saleFn != nil {
		return s.saleFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) Transition(ctx context.Context, req services.TransitionRequest) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, req)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) RecordPayment(ctx context.Context, cmd services.RecordPaymentCommand) (services.Order, error) {
	if s.paymentFn != nil {
		return s.paymentFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) DebtReport(ctx context.Context) ([]services.ClientDebt, error) {
	if s.debtFn != nil {
		return s.debtFn(ctx)
	}
	return nil, nil
}

func (s *stubOrderService) FinanceSummary(ctx context.Context) (services.FinanceSummary, error) {
	if s.financeFn != nil {
		return s.financeFn(ctx)
	}
	return services.FinanceSummary{}, nil
}

type stubRateService struct {
	currentFn func(context.Context) (services.ExchangeRate, error)
	saveFn    func(context.Context, services.SaveManualRateCommand) (services.ExchangeRate, error)
}

func (s *stubRateService) Current(ctx context.Context) (services.ExchangeRate, error) {
	if s.currentFn != nil {
		return s.currentFn(ctx)
	}
	return services.ExchangeRate{}, services.ErrRateUnavailable
}

func (s *stubRateService) SaveManual(ctx context.Context, cmd services.SaveManualRateCommand) (services.ExchangeRate, error) {
	if s.saveFn != nil {
		return s.saveFn(ctx, cmd)
	}
	return services.ExchangeRate{}, errors.New("not implemented")
}

func sampleOrder(status services.OrderStatus) services.Order {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return services.Order{
		ID:           "ord_1",
		Status:       status,
		CustomerName: "Taller Rivas",
		ClientTaxID:  "J-123",
		CreatedAt:    created,
		UpdatedAt:    created,
		Lines: []services.OrderLine{{
			Product: services.ProductSnapshot{
				ID:           "p1",
				Brand:        "Bosch",
				Model:        "F026",
				SKU:          "FLT-1",
				CatalogPrice: decimal.RequireFromString("45"),
			},
			Quantity:       2,
			EffectivePrice: decimal.RequireFromString("42.50"),
		}},
		Payments: []services.Payment{{
			ID:        "pay_1",
			Amount:    decimal.RequireFromString("30"),
			Timestamp: created,
			Reference: "TRX-1",
		}},
	}
}
