package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/platform/textutil"
	"github.com/panaven/api/internal/repositories"
)

const (
	orderEventCreated          = "order.created"
	orderEventStatusChanged    = "order.status.changed"
	orderEventLinesEdited      = "order.lines.edited"
	orderEventPaymentRecorded  = "order.payment.recorded"
	orderEventStockDecremented = "order.stock.decremented"

	paymentIDPrefix = "pay_"

	// DefaultCustomerName labels checkout orders placed without a name.
	DefaultCustomerName = "Cliente Panaven"

	reportPageSize = 200
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Catalog     repositories.CatalogRepository
	Inventory   InventoryService
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	catalog   repositories.CatalogRepository
	inventory InventoryService
	clock     func() time.Time
	newID     func() string
	events    OrderEventPublisher
	logger    func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:    deps.Orders,
		catalog:   deps.Catalog,
		inventory: deps.Inventory,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) RequestQuote(ctx context.Context, cmd RequestQuoteCommand) (Order, error) {
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: cart must contain at least one item", ErrMissingRequiredField)
	}

	ids := make([]string, len(cmd.Items))
	for i, item := range cmd.Items {
		ids[i] = item.ProductID
	}
	products, err := s.loadProducts(ctx, ids)
	if err != nil {
		return Order{}, err
	}

	items := make([]pricedItem, len(cmd.Items))
	for i, item := range cmd.Items {
		items[i] = pricedItem{product: products[i], quantity: item.Quantity}
	}
	lines, err := snapshotLines(items)
	if err != nil {
		return Order{}, err
	}

	name := textutil.PlainText(cmd.CustomerName)
	if name == "" {
		name = DefaultCustomerName
	}

	now := s.now()
	created, err := s.orders.Create(ctx, Order{
		Lines:        lines,
		Status:       domain.OrderStatusQuoteRequested,
		CustomerName: name,
		ClientPhone:  strings.TrimSpace(cmd.ClientPhone),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       created.ID,
		CurrentStatus: string(created.Status),
		OccurredAt:    now,
		Metadata: map[string]any{
			"lines":       len(created.Lines),
			"totalAmount": Totals(created).TotalAmount.String(),
		},
	})

	return created, nil
}

func (s *orderService) CreateManualSale(ctx context.Context, cmd ManualSaleCommand) (Order, error) {
	name := textutil.PlainText(cmd.CustomerName)
	if name == "" {
		return Order{}, fmt.Errorf("%w: customer name is required", ErrMissingRequiredField)
	}
	taxID := strings.ToUpper(strings.TrimSpace(cmd.ClientTaxID))
	if taxID == "" {
		return Order{}, fmt.Errorf("%w: client tax id is required", ErrMissingRequiredField)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: sale must contain at least one item", ErrMissingRequiredField)
	}

	ids := make([]string, len(cmd.Items))
	for i, item := range cmd.Items {
		ids[i] = item.ProductID
	}
	products, err := s.loadProducts(ctx, ids)
	if err != nil {
		return Order{}, err
	}

	items := make([]pricedItem, len(cmd.Items))
	requests := make([]StockRequest, len(cmd.Items))
	for i, item := range cmd.Items {
		items[i] = pricedItem{product: products[i], quantity: item.Quantity, override: item.OverridePrice}
		requests[i] = StockRequest{
			LineIndex:      i,
			ProductID:      products[i].ID,
			SKU:            products[i].SKU,
			Quantity:       item.Quantity,
			LastKnownStock: availableStock(products[i].Stock),
		}
	}
	lines, err := snapshotLines(items)
	if err != nil {
		return Order{}, err
	}

	if err := s.inventory.CheckAvailability(requests); err != nil {
		return Order{}, err
	}

	now := s.now()
	order := Order{
		Lines:              lines,
		Status:             domain.OrderStatusCreditActive,
		CustomerName:       name,
		ClientTaxID:        taxID,
		ClientBusinessName: textutil.PlainText(cmd.ClientBusinessName),
		ClientPhone:        strings.TrimSpace(cmd.ClientPhone),
		CreatedAt:          now,
		UpdatedAt:          now,
		Payments:           []Payment{},
	}

	var created Order
	var decrementErr error
	if s.inventory.Strict() {
		if err := s.inventory.Decrement(ctx, requests); err != nil {
			return Order{}, err
		}
		created, err = s.orders.Create(ctx, order)
		if err != nil {
			if restoreErr := s.inventory.Restore(ctx, requests); restoreErr != nil {
				err = errors.Join(err, restoreErr)
			}
			return Order{}, s.mapRepositoryError(err)
		}
	} else {
		created, err = s.orders.Create(ctx, order)
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
		decrementErr = s.inventory.Decrement(ctx, requests)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       created.ID,
		CurrentStatus: string(created.Status),
		ActorID:       cmd.ActorID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"lines":       len(created.Lines),
			"totalAmount": Totals(created).TotalAmount.String(),
			"clientKey":   ClientKey(created),
		},
	})
	s.publishEvent(ctx, OrderEvent{
		Type:       orderEventStockDecremented,
		OrderID:    created.ID,
		ActorID:    cmd.ActorID,
		OccurredAt: now,
		Metadata:   stockEventMetadata(requests, decrementErr),
	})

	if decrementErr != nil {
		return created, decrementErr
	}
	return created, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) Transition(ctx context.Context, req TransitionRequest) (Order, error) {
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if req.Command == nil {
		return Order{}, fmt.Errorf("%w: command is required", ErrOrderInvalidInput)
	}

	env := transitionEnv{now: s.now(), paymentID: s.nextPaymentID()}
	var previous OrderStatus

	updated, err := s.orders.Mutate(ctx, orderID, func(order *Order) error {
		previous = order.Status
		if req.ExpectedStatus != "" && order.Status != req.ExpectedStatus {
			return fmt.Errorf("%w: expected status %s but was %s", ErrPreconditionFailed, req.ExpectedStatus, order.Status)
		}
		if !slices.Contains(req.Command.from(), order.Status) {
			return fmt.Errorf("%w: %s not allowed from %s", ErrOrderInvalidState, req.Command.Name(), order.Status)
		}
		if err := req.Command.apply(order, env); err != nil {
			return err
		}
		order.UpdatedAt = env.now
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	event := OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(updated.Status),
		ActorID:        req.ActorID,
		OccurredAt:     env.now,
		Metadata:       map[string]any{"command": req.Command.Name()},
	}
	if previous == updated.Status {
		event.Type = orderEventLinesEdited
		event.Metadata["totalAmount"] = Totals(updated).TotalAmount.String()
	}
	s.publishEvent(ctx, event)

	return updated, nil
}

func (s *orderService) RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Amount.IsPositive() {
		return Order{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	reference := strings.TrimSpace(cmd.Reference)
	if reference == "" {
		return Order{}, fmt.Errorf("%w: payment reference is required", ErrMissingReference)
	}

	now := s.now()
	payment := Payment{
		ID:        s.nextPaymentID(),
		Amount:    cmd.Amount,
		Timestamp: now,
		Reference: reference,
		Note:      textutil.PlainText(cmd.Note),
	}

	var previous OrderStatus
	updated, err := s.orders.Mutate(ctx, orderID, func(order *Order) error {
		previous = order.Status
		if err := RecordPayment(order, payment); err != nil {
			return err
		}
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	totals := Totals(updated)
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventPaymentRecorded,
		OrderID:       updated.ID,
		CurrentStatus: string(updated.Status),
		ActorID:       cmd.ActorID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"paymentId":        payment.ID,
			"amount":           payment.Amount.String(),
			"totalPaid":        totals.TotalPaid.String(),
			"remainingBalance": totals.RemainingBalance.String(),
		},
	})
	if previous != updated.Status {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        updated.ID,
			PreviousStatus: string(previous),
			CurrentStatus:  string(updated.Status),
			ActorID:        cmd.ActorID,
			OccurredAt:     now,
			Metadata:       map[string]any{"command": "record_payment"},
		})
	}

	return updated, nil
}

func (s *orderService) DebtReport(ctx context.Context) ([]ClientDebt, error) {
	orders, err := s.listAll(ctx, []OrderStatus{
		domain.OrderStatusCreditActive,
		domain.OrderStatusApproved,
		domain.OrderStatusShipped,
	})
	if err != nil {
		return nil, err
	}
	grouped := GroupDebtByClient(orders)
	debts := slices.Collect(maps.Values(grouped))
	slices.SortFunc(debts, func(a, b ClientDebt) int {
		if c := b.TotalDebt.Cmp(a.TotalDebt); c != 0 {
			return c
		}
		return cmp.Compare(a.ClientKey, b.ClientKey)
	})
	return debts, nil
}

func (s *orderService) FinanceSummary(ctx context.Context) (FinanceSummary, error) {
	orders, err := s.listAll(ctx, nil)
	if err != nil {
		return FinanceSummary{}, err
	}
	return Summarize(orders), nil
}

func (s *orderService) listAll(ctx context.Context, statuses []OrderStatus) ([]Order, error) {
	var all []Order
	filter := OrderListFilter{Statuses: statuses, Pagination: Pagination{PageSize: reportPageSize}}
	for {
		page, err := s.orders.List(ctx, filter)
		if err != nil {
			return nil, s.mapRepositoryError(err)
		}
		all = append(all, page.Items...)
		if page.NextPageToken == "" {
			return all, nil
		}
		filter.Pagination.PageToken = page.NextPageToken
	}
}

// loadProducts returns products aligned with ids. Each id is read once.
func (s *orderService) loadProducts(ctx context.Context, ids []string) ([]Product, error) {
	cache := make(map[string]Product, len(ids))
	products := make([]Product, len(ids))
	for i, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, fmt.Errorf("%w: line %d product id is required", ErrMissingRequiredField, i)
		}
		product, ok := cache[id]
		if !ok {
			var err error
			product, err = s.catalog.FindByID(ctx, id)
			if err != nil {
				var repoErr repositories.RepositoryError
				if errors.As(err, &repoErr) && repoErr.IsNotFound() {
					return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
				}
				return nil, s.mapRepositoryError(err)
			}
			if product.ID == "" {
				product.ID = id
			}
			cache[id] = product
		}
		products[i] = product
	}
	return products, nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrPreconditionFailed, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextPaymentID() string {
	return paymentIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func stockEventMetadata(requests []StockRequest, err error) map[string]any {
	lines := make([]map[string]any, 0, len(requests))
	for _, req := range requests {
		lines = append(lines, map[string]any{
			"productId": req.ProductID,
			"quantity":  req.Quantity,
		})
	}
	metadata := map[string]any{"lines": lines}
	var partial *StockDecrementError
	if errors.As(err, &partial) {
		failed := make([]string, 0, len(partial.Failures))
		for _, f := range partial.Failures {
			failed = append(failed, f.ProductID)
		}
		metadata["failedProducts"] = failed
	}
	return metadata
}

func sanitizeText(value string) string {
	return textutil.PlainText(value)
}
