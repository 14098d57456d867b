package memory

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/platform/pagination"
	"github.com/panaven/api/internal/repositories"
)

// OrderRepository keeps orders in a map guarded by a mutex. Mutate holds the lock for the whole
// read-modify-write, which gives the same serialisation a store transaction would.
type OrderRepository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	seq    atomic.Int64
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs an empty repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]domain.Order)}
}

func (r *OrderRepository) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	order = cloneOrder(order)
	order.ID = "ord_" + strconv.FormatInt(r.seq.Add(1), 10)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return cloneOrder(order), nil
}

func (r *OrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("orders.get", orderID)
	}
	return cloneOrder(order), nil
}

func (r *OrderRepository) Mutate(ctx context.Context, orderID string, fn repositories.OrderMutation) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("orders.mutate", orderID)
	}
	working := cloneOrder(current)
	if err := fn(&working); err != nil {
		if errors.Is(err, repositories.ErrStop) {
			return cloneOrder(current), nil
		}
		return domain.Order{}, err
	}
	working.ID = orderID
	r.orders[orderID] = working
	return cloneOrder(working), nil
}

func (r *OrderRepository) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	size := pagination.Clamp(filter.Pagination.PageSize)

	r.mu.Lock()
	matched := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, order.Status) {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}
	r.mu.Unlock()

	slices.SortFunc(matched, newestFirst)

	start := 0
	if !cursor.IsZero() {
		start = len(matched)
		for i, order := range matched {
			if newestFirst(order, domain.Order{ID: cursor.ID, CreatedAt: cursor.CreatedAt}) > 0 {
				start = i
				break
			}
		}
	}
	matched = matched[start:]

	page := domain.CursorPage[domain.Order]{Items: matched}
	if len(matched) > size {
		page.Items = matched[:size]
		last := page.Items[size-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func newestFirst(a, b domain.Order) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	// Identifiers share a prefix followed by an increasing number.
	if len(a.ID) != len(b.ID) {
		return len(b.ID) - len(a.ID)
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

func cloneOrder(order domain.Order) domain.Order {
	cloned := order
	cloned.Lines = make([]domain.OrderLine, len(order.Lines))
	for i, line := range order.Lines {
		cloned.Lines[i] = line
		cloned.Lines[i].Product.Images = slices.Clone(line.Product.Images)
	}
	if order.Payments != nil {
		cloned.Payments = slices.Clone(order.Payments)
	}
	if order.Rating != nil {
		rating := *order.Rating
		cloned.Rating = &rating
	}
	return cloned
}
