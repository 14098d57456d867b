package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/panaven/api/internal/repositories"
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Catalog repositories.CatalogRepository
	// StrictDecrement checks and decrements each line inside a store transaction instead of issuing
	// a blind relative decrement.
	StrictDecrement bool
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	catalog repositories.CatalogRepository
	strict  bool
	logger  func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("inventory service: catalog repository is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		catalog: deps.Catalog,
		strict:  deps.StrictDecrement,
		logger:  logger,
	}, nil
}

func (s *inventoryService) Strict() bool {
	return s.strict
}

func (s *inventoryService) CheckAvailability(requests []StockRequest) error {
	// Several lines may draw on the same product.
	demand := make(map[string]int, len(requests))
	for _, req := range requests {
		if req.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", ErrOrderInvalidInput, req.LineIndex)
		}
		demand[req.ProductID] += req.Quantity
		if available := availableStock(req.LastKnownStock); demand[req.ProductID] > available {
			return &InsufficientStockError{
				LineIndex: req.LineIndex,
				ProductID: req.ProductID,
				SKU:       req.SKU,
				Requested: req.Quantity,
				Available: available,
			}
		}
	}
	return nil
}

func (s *inventoryService) Decrement(ctx context.Context, requests []StockRequest) error {
	if s.strict {
		return s.decrementChecked(ctx, requests)
	}

	var failures []StockDecrementFailure
	for _, req := range requests {
		if err := s.catalog.DecrementStock(ctx, req.ProductID, req.Quantity); err != nil {
			s.logger(ctx, "inventory.decrement.failed", map[string]any{
				"productId": req.ProductID,
				"line":      req.LineIndex,
				"quantity":  req.Quantity,
				"error":     err.Error(),
			})
			failures = append(failures, StockDecrementFailure{
				LineIndex: req.LineIndex,
				ProductID: req.ProductID,
				Quantity:  req.Quantity,
				Err:       err,
			})
		}
	}
	if len(failures) > 0 {
		return &StockDecrementError{Failures: failures}
	}
	return nil
}

// decrementChecked stops at the first refused line and puts back what earlier lines took.
func (s *inventoryService) decrementChecked(ctx context.Context, requests []StockRequest) error {
	for i, req := range requests {
		_, err := s.catalog.DecrementStockChecked(ctx, req.ProductID, req.Quantity)
		if err == nil {
			continue
		}
		restoreErr := s.Restore(ctx, requests[:i])

		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) && stockErr.Code == repositories.StockErrorInsufficient {
			err = &InsufficientStockError{
				LineIndex: req.LineIndex,
				ProductID: req.ProductID,
				SKU:       req.SKU,
				Requested: req.Quantity,
				Available: availableStock(stockErr.Available),
			}
		}
		if restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	return nil
}

func (s *inventoryService) Restore(ctx context.Context, requests []StockRequest) error {
	var errs []error
	for _, req := range requests {
		if err := s.catalog.DecrementStock(ctx, req.ProductID, -req.Quantity); err != nil {
			s.logger(ctx, "inventory.restore.failed", map[string]any{
				"productId": req.ProductID,
				"quantity":  req.Quantity,
				"error":     err.Error(),
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// availableStock hides the negative stock left behind by an oversell; nothing can be sold from it.
func availableStock(stock int) int {
	return max(stock, 0)
}
