package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/angelmondragon/florist-storefront/internal/cart"
	"github.com/angelmondragon/florist-storefront/internal/gateway"
	"github.com/angelmondragon/florist-storefront/internal/ordertotal"
	"github.com/angelmondragon/florist-storefront/internal/payment"
	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	"github.com/angelmondragon/florist-storefront/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	msgEmptyCart      = "Your cart is empty!"
	msgInFlight       = "Your order is already being submitted."
	msgPaymentMissing = "Please fill in all payment information"
	msgExpiryFormat   = "Please enter card expiry in MM/YY format"
	msgTotalFailed    = "Unable to calculate total. Please check zipcode and try again."
	msgTokenFailed    = "Failed to generate payment token. Please check your card information."
	msgPlaceFailed    = "There was an error placing your order. Please check your payment information and try again."
)

// CartSession is the part of the cart manager the orchestrator needs.
type CartSession interface {
	Items() []cart.Item
	DestroySession(ctx context.Context) error
}

// Gateway is the part of the commerce gateway used to pay and place orders.
type Gateway interface {
	PaymentKey(ctx context.Context) (gateway.PaymentKey, error)
	PlaceOrder(ctx context.Context, req gateway.OrderRequest, idempotencyKey string) (string, error)
}

// TotalComputer prices the cart.
type TotalComputer interface {
	Compute(ctx context.Context, in ordertotal.Input) (ordertotal.Result, error)
}

// Confirmation is shown after a successful order.
type Confirmation struct {
	OrderNumber     string          `json:"orderNumber"`
	Message         string          `json:"message"`
	DeliveryDate    string          `json:"deliveryDate"`
	Recipient       string          `json:"recipient"`
	DeliveryAddress string          `json:"deliveryAddress"`
	Total           decimal.Decimal `json:"total"`
}

// Orchestrator runs the submit sequence: price, tokenize, place, tear down.
type Orchestrator struct {
	cart       CartSession
	gw         Gateway
	totals     TotalComputer
	tokenizer  payment.Tokenizer
	apiLoginID string
	limits     Limits
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger

	inFlight atomic.Bool
}

// OrchestratorDeps groups the orchestrator's collaborators.
type OrchestratorDeps struct {
	Cart       CartSession
	Gateway    Gateway
	Totals     TotalComputer
	Tokenizer  payment.Tokenizer
	APILoginID string
	Limits     Limits
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
}

func NewOrchestrator(deps OrchestratorDeps) (*Orchestrator, error) {
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart session required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if deps.Totals == nil {
		return nil, fmt.Errorf("total computer required")
	}
	if deps.Tokenizer == nil {
		return nil, fmt.Errorf("payment tokenizer required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Orchestrator{
		cart:       deps.Cart,
		gw:         deps.Gateway,
		totals:     deps.Totals,
		tokenizer:  deps.Tokenizer,
		apiLoginID: deps.APILoginID,
		limits:     deps.Limits.withDefaults(),
		metrics:    deps.Metrics,
		logg:       deps.Logger,
	}, nil
}

// InFlight reports whether a submission is running.
func (o *Orchestrator) InFlight() bool { return o.inFlight.Load() }

// Submit places the order for the current cart. On any failure the cart,
// its session and d are left untouched and the returned error carries a
// message for the shopper. Concurrent calls are rejected with CONFLICT.
func (o *Orchestrator) Submit(ctx context.Context, d Draft, clientIP string) (Confirmation, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return Confirmation{}, pkgerrors.New(pkgerrors.CodeConflict, msgInFlight)
	}
	defer o.inFlight.Store(false)

	items := o.cart.Items()
	if len(items) == 0 {
		o.metrics.IncPlacement(metrics.OutcomeRejected)
		return Confirmation{}, pkgerrors.New(pkgerrors.CodeValidation, msgEmptyCart)
	}
	if err := validatePayment(d); err != nil {
		o.metrics.IncPlacement(metrics.OutcomeRejected)
		return Confirmation{}, err
	}

	quote, err := o.totals.Compute(ctx, ordertotal.Input{Items: items, PostalCode: d.DeliveryZip, Date: d.DeliveryDate})
	if err != nil || quote.State != ordertotal.StateDetermined {
		o.metrics.IncPlacement(metrics.OutcomeFailed)
		return Confirmation{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgTotalFailed)
	}

	key, err := o.gw.PaymentKey(ctx)
	if err != nil {
		o.logg.Error(ctx, "payment key fetch failed", err)
		o.metrics.IncPlacement(metrics.OutcomeFailed)
		return Confirmation{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgTokenFailed)
	}
	token, err := o.tokenizer.Tokenize(ctx,
		payment.Card{Number: d.CardNumber, Expiry: d.CardExpiry, CVV: d.CardCVV},
		payment.Credentials{ClientKey: key.ClientKey, APILoginID: o.apiLoginID})
	if err != nil || strings.TrimSpace(token) == "" {
		o.logg.Warn(ctx, "card tokenization failed")
		o.metrics.IncPlacement(metrics.OutcomeRejected)
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodePayment {
			return Confirmation{}, err
		}
		return Confirmation{}, pkgerrors.Wrap(pkgerrors.CodePayment, err, msgTokenFailed)
	}

	req, err := BuildOrder(d, items, token, quote.Total.Total, clientIP, o.limits)
	if err != nil {
		o.metrics.IncPlacement(metrics.OutcomeFailed)
		return Confirmation{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, msgPlaceFailed)
	}

	idempotencyKey := uuid.NewString()
	ctx = o.logg.WithField(ctx, "idempotency_key", idempotencyKey)
	orderNo, err := o.gw.PlaceOrder(ctx, req, idempotencyKey)
	if err != nil {
		o.logg.Error(ctx, "place order failed", err)
		o.metrics.IncPlacement(metrics.OutcomeFailed)
		return Confirmation{}, placeFailure(err)
	}
	o.metrics.IncPlacement(metrics.OutcomePlaced)
	o.logg.Info(o.logg.WithField(ctx, "order_number", orderNo), "order placed")

	if err := o.cart.DestroySession(ctx); err != nil {
		o.logg.Error(ctx, "cart teardown after order failed", err)
	}

	return Confirmation{
		OrderNumber:     orderNo,
		Message:         fmt.Sprintf("Your order #%s has been placed successfully! You will receive a confirmation email shortly.", orderNo),
		DeliveryDate:    d.DeliveryDate.ISOString(),
		Recipient:       d.RecipientName,
		DeliveryAddress: fmt.Sprintf("%s, %s, %s %s", d.DeliveryAddress, d.DeliveryCity, d.DeliveryState, d.DeliveryZip),
		Total:           quote.Total.Total,
	}, nil
}

func validatePayment(d Draft) error {
	if strings.TrimSpace(d.CardNumber) == "" || strings.TrimSpace(d.CardExpiry) == "" || strings.TrimSpace(d.CardCVV) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, msgPaymentMissing)
	}
	if !payment.ValidExpiry(d.CardExpiry) {
		return pkgerrors.New(pkgerrors.CodeValidation, msgExpiryFormat).
			WithDetails(map[string]string{FieldCardExpiry: msgExpiryFormat})
	}
	return nil
}

// placeFailure keeps the gateway's message when it sent one.
func placeFailure(err error) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeUpstream && typed.Message() != "" {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgPlaceFailed)
}
