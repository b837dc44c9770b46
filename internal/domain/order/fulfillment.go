package order

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/quipushop/checkout/internal/domain/inventory"
	"github.com/quipushop/checkout/internal/payment"
)

// ErrSignatureInvalid is returned when the callback hash does not match the
// recomputed signature. It is fatal for the pipeline: no order is created
// and no inventory is touched.
var ErrSignatureInvalid = errors.New("callback signature mismatch")

// ErrAlreadyExists is returned by Repository.Create when an order with the
// same ID is already persisted. The pipeline treats it as a redelivered
// confirmation, not a failure.
var ErrAlreadyExists = errors.New("order already exists")

// IntentStore is the slice of the pending-intent store the pipeline needs:
// a single atomic consume of the cart snapshot keyed by order ID.
type IntentStore interface {
	Consume(ctx context.Context, orderID string) (lines []LineItem, ok bool, err error)
}

// ConfirmResult is the outward result of processing one gateway callback.
type ConfirmResult struct {
	Paid    bool
	OrderID string
}

// FulfillmentConfig configures the confirmation pipeline.
type FulfillmentConfig struct {
	// HMACKey is the shared secret the gateway signs answers with.
	HMACKey []byte
	// DeliveryLeadTime sets the estimated delivery offset for confirmed
	// orders. Defaults to 72h.
	DeliveryLeadTime time.Duration
	// BloomCapacity sizes the fulfilled-order pre-filter. Defaults to 1M.
	BloomCapacity uint
	// BloomFPR is the pre-filter's target false-positive rate.
	BloomFPR float64
}

// Fulfillment runs the payment-confirmation pipeline: verify the callback
// signature, interpret the outcome, recover the pending cart snapshot,
// persist the order exactly once, then drain inventory per line item.
type Fulfillment struct {
	cfg     FulfillmentConfig
	intents IntentStore
	orders  Repository
	ledger  inventory.Ledger
	now     func() time.Time

	// seen is a best-effort pre-filter over fulfilled order IDs. A negative
	// test skips the repository existence read; a positive test falls
	// through to it. The orders table's primary key remains the
	// authoritative duplicate guard across instances.
	seenMu sync.Mutex
	seen   *bloom.BloomFilter

	tracer            trace.Tracer
	confirmed         metric.Int64Counter
	notPaid           metric.Int64Counter
	rejected          metric.Int64Counter
	persistFailures   metric.Int64Counter
	decrementFailures metric.Int64Counter
}

// NewFulfillment wires the confirmation pipeline.
func NewFulfillment(
	cfg FulfillmentConfig,
	intents IntentStore,
	orders Repository,
	ledger inventory.Ledger,
	meter metric.Meter,
	tracer trace.Tracer,
) (*Fulfillment, error) {
	if len(cfg.HMACKey) == 0 {
		return nil, errors.New("fulfillment: HMAC key is required")
	}
	if cfg.DeliveryLeadTime <= 0 {
		cfg.DeliveryLeadTime = 72 * time.Hour
	}
	if cfg.BloomCapacity == 0 {
		cfg.BloomCapacity = 1_000_000
	}
	if cfg.BloomFPR <= 0 {
		cfg.BloomFPR = 0.001
	}

	f := &Fulfillment{
		cfg:     cfg,
		intents: intents,
		orders:  orders,
		ledger:  ledger,
		now:     time.Now,
		seen:    bloom.NewWithEstimates(cfg.BloomCapacity, cfg.BloomFPR),
		tracer:  tracer,
	}

	var err error
	if f.confirmed, err = meter.Int64Counter("checkout.payments.confirmed"); err != nil {
		return nil, errors.Wrap(err, "confirmed counter")
	}
	if f.notPaid, err = meter.Int64Counter("checkout.payments.not_paid"); err != nil {
		return nil, errors.Wrap(err, "not_paid counter")
	}
	if f.rejected, err = meter.Int64Counter("checkout.payments.rejected"); err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	if f.persistFailures, err = meter.Int64Counter("checkout.orders.persist_failures"); err != nil {
		return nil, errors.Wrap(err, "persist_failures counter")
	}
	if f.decrementFailures, err = meter.Int64Counter("checkout.inventory.decrement_failures"); err != nil {
		return nil, errors.Wrap(err, "decrement_failures counter")
	}

	return f, nil
}

// Confirm processes one gateway callback body.
//
// A signature mismatch returns ErrSignatureInvalid and leaves every store
// untouched. A verified non-paid outcome is a clean negative result, not an
// error. For a paid outcome the order is persisted before any inventory
// moves; a decrement failure on one line item is logged and counted but does
// not undo the order and does not stop the remaining items.
func (f *Fulfillment) Confirm(ctx context.Context, body []byte) (ConfirmResult, error) {
	ctx, span := f.tracer.Start(ctx, "fulfillment.Confirm")
	defer span.End()

	lg := zctx.From(ctx)

	cb, err := payment.ParseCallback(body)
	if err != nil {
		return ConfirmResult{}, err
	}

	signed, err := cb.SignedBytes()
	if err != nil {
		return ConfirmResult{}, err
	}
	if !payment.VerifySignature(signed, cb.Hash, f.cfg.HMACKey) {
		// Possible tampering: the payload did not come from the gateway
		// or was modified in flight.
		lg.Warn("Callback signature mismatch", zap.String("kr_hash", cb.Hash))
		f.rejected.Add(ctx, 1)
		return ConfirmResult{}, ErrSignatureInvalid
	}

	ans, err := cb.DecodeAnswer()
	if err != nil {
		return ConfirmResult{}, err
	}

	if !ans.Paid() {
		lg.Info("Payment not completed", zap.String("order_status", ans.OrderStatus))
		f.notPaid.Add(ctx, 1)
		return ConfirmResult{Paid: false}, nil
	}

	orderID := ans.MerchantOrderID()
	if orderID == "" {
		return ConfirmResult{}, errors.Wrap(payment.ErrMalformedCallback, "paid answer without order id")
	}
	span.SetAttributes(attribute.String("order.id", orderID))

	// Redelivery guard: the gateway may post the same confirmation more
	// than once. Short-circuit without re-persisting or re-decrementing.
	if f.maybeFulfilled(orderID) {
		exists, err := f.orders.Exists(ctx, orderID)
		if err != nil {
			return ConfirmResult{}, errors.Wrap(err, "check existing order")
		}
		if exists {
			lg.Info("Duplicate confirmation, order already fulfilled", zap.String("order_id", orderID))
			return ConfirmResult{Paid: true, OrderID: orderID}, nil
		}
	}

	lines, ok, err := f.intents.Consume(ctx, orderID)
	if err != nil {
		// The payment is real even if the snapshot store is unreachable;
		// record the order without reconstructable lines.
		lg.Warn("Pending intent lookup failed", zap.String("order_id", orderID), zap.Error(err))
		lines = nil
	} else if !ok {
		lg.Warn("No pending intent for paid order", zap.String("order_id", orderID))
	}

	o := f.buildOrder(ctx, orderID, ans, lines)

	if err := f.orders.Create(ctx, o); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			lg.Info("Duplicate confirmation, order already fulfilled", zap.String("order_id", orderID))
			return ConfirmResult{Paid: true, OrderID: orderID}, nil
		}
		// The buyer has paid but no order exists. This must page someone.
		lg.Error("Order persist failed after paid outcome",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		f.persistFailures.Add(ctx, 1)
		return ConfirmResult{}, errors.Wrap(err, "persist order")
	}
	f.markFulfilled(orderID)

	for _, line := range o.Items {
		if err := f.ledger.Decrement(ctx, line.ProductID, line.Size, line.Color, line.Quantity); err != nil {
			// The order is already the authoritative record of the
			// payment; a failed decrement is a reconciliation task,
			// not a rollback. Remaining items are still attempted.
			lg.Error("Inventory decrement failed",
				zap.String("order_id", orderID),
				zap.String("product_id", line.ProductID),
				zap.String("size", line.Size),
				zap.String("color", line.Color),
				zap.Int("quantity", line.Quantity),
				zap.Error(err),
			)
			f.decrementFailures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("product_id", line.ProductID),
			))
		}
	}

	f.confirmed.Add(ctx, 1)
	lg.Info("Order fulfilled",
		zap.String("order_id", orderID),
		zap.Int("items", len(o.Items)),
		zap.String("total", o.Total.String()),
	)
	return ConfirmResult{Paid: true, OrderID: orderID}, nil
}

// buildOrder materializes the durable order from the verified answer and the
// recovered cart snapshot. The gateway-reported total is authoritative; the
// shipping cost is derived so that Total = Subtotal + ShippingCost holds at
// creation.
func (f *Fulfillment) buildOrder(ctx context.Context, orderID string, ans *payment.Answer, lines []LineItem) *Order {
	now := f.now()
	total := payment.MinorToMajor(ans.OrderDetails.OrderTotalAmount.Int64())

	subtotal := total
	shipping := decimal.Zero
	if len(lines) > 0 {
		subtotal = decimal.Zero
		for _, line := range lines {
			subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		shipping = total.Sub(subtotal)
		if shipping.IsNegative() {
			zctx.From(ctx).Warn("Paid total below line subtotal",
				zap.String("order_id", orderID),
				zap.String("total", total.String()),
				zap.String("subtotal", subtotal.String()),
			)
			subtotal = total
			shipping = decimal.Zero
		}
	}

	return &Order{
		ID: orderID,
		Customer: Customer{
			FirstName:      ans.Customer.BillingDetails.FirstName,
			LastName:       ans.Customer.BillingDetails.LastName,
			Email:          ans.Customer.Email,
			Phone:          ans.Customer.BillingDetails.PhoneNumber,
			DocumentType:   ans.Customer.BillingDetails.IdentityType,
			DocumentNumber: ans.Customer.BillingDetails.IdentityCode,
		},
		Shipping: ShippingAddress{
			Address: ans.Customer.ShippingDetails.Address,
			City:    ans.Customer.ShippingDetails.City,
			State:   ans.Customer.ShippingDetails.State,
			ZipCode: ans.Customer.ShippingDetails.ZipCode,
			Country: ans.Customer.ShippingDetails.Country,
		},
		Items:             lines,
		Subtotal:          subtotal,
		ShippingCost:      shipping,
		Total:             total,
		PaymentMethod:     "online",
		PaymentStatus:     "paid",
		Status:            StatusConfirmed,
		EstimatedDelivery: now.Add(f.cfg.DeliveryLeadTime),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (f *Fulfillment) maybeFulfilled(orderID string) bool {
	f.seenMu.Lock()
	defer f.seenMu.Unlock()
	return f.seen.TestString(orderID)
}

func (f *Fulfillment) markFulfilled(orderID string) {
	f.seenMu.Lock()
	defer f.seenMu.Unlock()
	f.seen.AddString(orderID)
}
