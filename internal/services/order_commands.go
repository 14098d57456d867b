package services

import (
	"fmt"
	"strings"
	"time"

	domain "github.com/panaven/api/internal/domain"
)

// TransitionCommand is one of the commands below. Each carries exactly the fields its transition
// may change.
type TransitionCommand interface {
	// Name identifies the command in logs and events.
	Name() string
	from() []OrderStatus
	apply(order *Order, env transitionEnv) error
}

// transitionEnv supplies values that must be produced outside a store retry loop.
type transitionEnv struct {
	now       time.Time
	paymentID string
}

var (
	_ TransitionCommand = ApproveQuote{}
	_ TransitionCommand = RejectQuote{}
	_ TransitionCommand = EditLineQuantity{}
	_ TransitionCommand = SubmitPaymentEvidence{}
	_ TransitionCommand = MarkShipped{}
	_ TransitionCommand = ConfirmReceipt{}
)

// ApproveQuote accepts a quote request.
type ApproveQuote struct{}

func (ApproveQuote) Name() string { return "approve" }

func (ApproveQuote) from() []OrderStatus {
	return []OrderStatus{domain.OrderStatusQuoteRequested}
}

func (ApproveQuote) apply(order *Order, _ transitionEnv) error {
	if len(order.Lines) == 0 {
		return fmt.Errorf("%w: order has no lines", ErrMissingRequiredField)
	}
	order.Status = domain.OrderStatusApproved
	return nil
}

// RejectQuote declines a quote request. Nothing was paid or taken from stock at that point.
type RejectQuote struct{}

func (RejectQuote) Name() string { return "reject" }

func (RejectQuote) from() []OrderStatus {
	return []OrderStatus{domain.OrderStatusQuoteRequested}
}

func (RejectQuote) apply(order *Order, _ transitionEnv) error {
	order.Status = domain.OrderStatusRejected
	return nil
}

// EditLineQuantity changes the quantity of the lines holding ProductID. Zero removes them.
type EditLineQuantity struct {
	ProductID string
	Quantity  int
}

func (EditLineQuantity) Name() string { return "edit_line" }

func (EditLineQuantity) from() []OrderStatus {
	return []OrderStatus{domain.OrderStatusQuoteRequested}
}

func (c EditLineQuantity) apply(order *Order, _ transitionEnv) error {
	productID := strings.TrimSpace(c.ProductID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrMissingRequiredField)
	}
	if c.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrOrderInvalidInput)
	}
	// A quote may carry the same product on several lines; all of them follow the edit.
	kept := make([]OrderLine, 0, len(order.Lines))
	matched := false
	for _, line := range order.Lines {
		if line.Product.ID == productID {
			matched = true
			if c.Quantity == 0 {
				continue
			}
			line.Quantity = c.Quantity
		}
		kept = append(kept, line)
	}
	if !matched {
		return fmt.Errorf("%w: order has no line for product %s", ErrOrderInvalidInput, productID)
	}
	order.Lines = kept
	return nil
}

// SubmitPaymentEvidence is the customer's payment report on an approved quote. The order is
// settled in full when nothing was recorded yet.
type SubmitPaymentEvidence struct {
	PaymentReference string
	PaymentProofRef  string
	Delivery         DeliveryMethod
	Address          string
}

func (SubmitPaymentEvidence) Name() string { return "submit_payment" }

func (SubmitPaymentEvidence) from() []OrderStatus {
	return []OrderStatus{domain.OrderStatusApproved}
}

func (c SubmitPaymentEvidence) apply(order *Order, env transitionEnv) error {
	reference := strings.TrimSpace(c.PaymentReference)
	if reference == "" {
		return fmt.Errorf("%w: payment reference is required", ErrMissingReference)
	}

	var address string
	switch c.Delivery {
	case domain.DeliveryPickup:
		address = domain.PickupAddress
	case domain.DeliveryShipping, "":
		address = strings.TrimSpace(c.Address)
		if address == "" {
			return fmt.Errorf("%w: shipping address is required unless picking up", ErrMissingRequiredField)
		}
	default:
		return fmt.Errorf("%w: unknown delivery method %q", ErrOrderInvalidInput, c.Delivery)
	}

	order.PaymentReference = reference
	order.PaymentProofRef = strings.TrimSpace(c.PaymentProofRef)
	order.ShippingAddress = address
	SettleInFull(order, Payment{
		ID:        env.paymentID,
		Timestamp: env.now,
		Reference: reference,
		Note:      domain.EvidencePaymentNote,
	})
	order.Status = domain.OrderStatusPaid
	return nil
}

// MarkShipped records shipping evidence, or readiness for pickup orders.
type MarkShipped struct {
	ShippingReceiptRef string
}

func (MarkShipped) Name() string { return "ship" }

func (MarkShipped) from() []OrderStatus {
	return []OrderStatus{domain.OrderStatusPaid, domain.OrderStatusCreditActive}
}

func (c MarkShipped) apply(order *Order, _ transitionEnv) error {
	if ref := strings.TrimSpace(c.ShippingReceiptRef); ref != "" {
		order.ShippingReceiptRef = ref
	}
	order.Status = domain.OrderStatusShipped
	return nil
}

// ConfirmReceipt closes the order with the customer's rating.
type ConfirmReceipt struct {
	Rating int
	Review string
}

func (ConfirmReceipt) Name() string { return "confirm_receipt" }

func (ConfirmReceipt) from() []OrderStatus {
	return []OrderStatus{domain.OrderStatusShipped}
}

func (c ConfirmReceipt) apply(order *Order, _ transitionEnv) error {
	if c.Rating == 0 {
		return fmt.Errorf("%w: rating is required", ErrMissingRequiredField)
	}
	if c.Rating < 1 || c.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrOrderInvalidInput)
	}
	rating := c.Rating
	order.Rating = &rating
	order.Review = sanitizeText(c.Review)
	order.Status = domain.OrderStatusCompleted
	return nil
}
