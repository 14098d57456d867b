package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
	pfirestore "github.com/panaven/api/internal/platform/firestore"
	"github.com/panaven/api/internal/platform/pagination"
	"github.com/panaven/api/internal/repositories"
)

const defaultOrdersCollection = "orders"

// OrderRepository stores each order as a single document holding its lines and payment ledger.
// Amounts are persisted as decimal strings.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository binds the repository to collection (defaults to "orders").
func NewOrderRepository(provider *pfirestore.Provider, collection string) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultOrdersCollection
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, collection),
	}, nil
}

func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	coll, err := r.orders.Ref(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	ref := coll.NewDoc()
	if _, err := ref.Create(ctx, newOrderDocument(order)); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.create", err)
	}
	order.ID = ref.ID
	return order, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

func (r *OrderRepository) Mutate(ctx context.Context, orderID string, fn repositories.OrderMutation) (domain.Order, error) {
	ref, err := r.orders.Doc(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	var result domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := r.orders.GetTx(tx, ref)
		if err != nil {
			return err
		}
		order, err := doc.Data.toDomain(doc.ID)
		if err != nil {
			return err
		}
		if err := fn(&order); err != nil {
			if errors.Is(err, repositories.ErrStop) {
				result, _ = doc.Data.toDomain(doc.ID)
				return nil
			}
			return err
		}
		order.ID = doc.ID
		if err := tx.Set(ref, newOrderDocument(order)); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	size := pagination.Clamp(filter.Pagination.PageSize)

	coll, err := r.orders.Ref(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	query := coll.Query
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status", "in", statuses)
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	if !cursor.IsZero() {
		query = query.StartAfter(cursor.CreatedAt, cursor.ID)
	}
	query = query.Limit(size + 1)

	docs, err := r.orders.Query(ctx, query)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, min(len(docs), size))}
	for i, doc := range docs {
		if i == size {
			last := page.Items[size-1]
			token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			if err != nil {
				return domain.CursorPage[domain.Order]{}, err
			}
			page.NextPageToken = token
			break
		}
		order, err := doc.Data.toDomain(doc.ID)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.Items = append(page.Items, order)
	}
	return page, nil
}

type orderDocument struct {
	Lines              []orderLineDocument `firestore:"lines"`
	Status             string              `firestore:"status"`
	CustomerName       string              `firestore:"customerName"`
	ClientTaxID        string              `firestore:"clientTaxId,omitempty"`
	ClientBusinessName string              `firestore:"clientBusinessName,omitempty"`
	ClientPhone        string              `firestore:"clientPhone,omitempty"`
	CreatedAt          time.Time           `firestore:"createdAt"`
	UpdatedAt          time.Time           `firestore:"updatedAt"`
	ShippingAddress    string              `firestore:"shippingAddress,omitempty"`
	PaymentReference   string              `firestore:"paymentReference,omitempty"`
	PaymentProofRef    string              `firestore:"paymentProofRef,omitempty"`
	ShippingReceiptRef string              `firestore:"shippingReceiptRef,omitempty"`
	Payments           []paymentDocument   `firestore:"payments"`
	Rating             *int                `firestore:"rating,omitempty"`
	Review             string              `firestore:"review,omitempty"`
}

type orderLineDocument struct {
	ProductID      string   `firestore:"productId"`
	Brand          string   `firestore:"brand"`
	Model          string   `firestore:"model"`
	SKU            string   `firestore:"sku"`
	Images         []string `firestore:"images,omitempty"`
	CatalogPrice   string   `firestore:"catalogPrice"`
	EffectivePrice string   `firestore:"effectivePrice"`
	Quantity       int      `firestore:"quantity"`
}

type paymentDocument struct {
	ID        string    `firestore:"id"`
	Amount    string    `firestore:"amount"`
	Timestamp time.Time `firestore:"timestamp"`
	Reference string    `firestore:"reference"`
	Note      string    `firestore:"note,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	lines := make([]orderLineDocument, len(order.Lines))
	for i, line := range order.Lines {
		lines[i] = orderLineDocument{
			ProductID:      line.Product.ID,
			Brand:          line.Product.Brand,
			Model:          line.Product.Model,
			SKU:            line.Product.SKU,
			Images:         line.Product.Images,
			CatalogPrice:   line.Product.CatalogPrice.String(),
			EffectivePrice: line.EffectivePrice.String(),
			Quantity:       line.Quantity,
		}
	}
	payments := make([]paymentDocument, len(order.Payments))
	for i, p := range order.Payments {
		payments[i] = paymentDocument{
			ID:        p.ID,
			Amount:    p.Amount.String(),
			Timestamp: p.Timestamp.UTC(),
			Reference: p.Reference,
			Note:      p.Note,
		}
	}
	return orderDocument{
		Lines:              lines,
		Status:             string(order.Status),
		CustomerName:       order.CustomerName,
		ClientTaxID:        order.ClientTaxID,
		ClientBusinessName: order.ClientBusinessName,
		ClientPhone:        order.ClientPhone,
		CreatedAt:          order.CreatedAt.UTC(),
		UpdatedAt:          order.UpdatedAt.UTC(),
		ShippingAddress:    order.ShippingAddress,
		PaymentReference:   order.PaymentReference,
		PaymentProofRef:    order.PaymentProofRef,
		ShippingReceiptRef: order.ShippingReceiptRef,
		Payments:           payments,
		Rating:             order.Rating,
		Review:             order.Review,
	}
}

func (d orderDocument) toDomain(id string) (domain.Order, error) {
	lines := make([]domain.OrderLine, len(d.Lines))
	for i, line := range d.Lines {
		catalog, err := parseAmount(line.CatalogPrice)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s line %d catalog price: %w", id, i, err)
		}
		effective, err := parseAmount(line.EffectivePrice)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s line %d effective price: %w", id, i, err)
		}
		lines[i] = domain.OrderLine{
			Product: domain.ProductSnapshot{
				ID:           line.ProductID,
				Brand:        line.Brand,
				Model:        line.Model,
				SKU:          line.SKU,
				Images:       line.Images,
				CatalogPrice: catalog,
			},
			Quantity:       line.Quantity,
			EffectivePrice: effective,
		}
	}
	payments := make([]domain.Payment, len(d.Payments))
	for i, p := range d.Payments {
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s payment %s amount: %w", id, p.ID, err)
		}
		payments[i] = domain.Payment{
			ID:        p.ID,
			Amount:    amount,
			Timestamp: p.Timestamp,
			Reference: p.Reference,
			Note:      p.Note,
		}
	}
	return domain.Order{
		ID:                 id,
		Lines:              lines,
		Status:             domain.OrderStatus(strings.TrimSpace(d.Status)),
		CustomerName:       d.CustomerName,
		ClientTaxID:        d.ClientTaxID,
		ClientBusinessName: d.ClientBusinessName,
		ClientPhone:        d.ClientPhone,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		ShippingAddress:    d.ShippingAddress,
		PaymentReference:   d.PaymentReference,
		PaymentProofRef:    d.PaymentProofRef,
		ShippingReceiptRef: d.ShippingReceiptRef,
		Payments:           payments,
		Rating:             d.Rating,
		Review:             d.Review,
	}, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
