package storefront

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/florist-storefront/internal/cart"
	"github.com/angelmondragon/florist-storefront/internal/checkout"
	"github.com/angelmondragon/florist-storefront/internal/delivery"
	"github.com/angelmondragon/florist-storefront/internal/gateway"
	"github.com/angelmondragon/florist-storefront/internal/ordertotal"
	"github.com/angelmondragon/florist-storefront/internal/payment"
	"github.com/angelmondragon/florist-storefront/internal/session"
	"github.com/angelmondragon/florist-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	"github.com/angelmondragon/florist-storefront/pkg/metrics"
)

const (
	msgEmptyCart      = "Your cart is empty!"
	msgSubmitting     = "Your order is already being submitted."
	msgCheckoutClosed = "Open checkout first."
	msgIncomplete     = "Please complete all checkout steps before placing your order."
)

// Gateway is everything a controller needs from the commerce gateway.
type Gateway interface {
	cart.Remote
	delivery.Remote
	ordertotal.Remote
	checkout.Gateway
}

// Deps are the collaborators of one shopper's controller.
type Deps struct {
	Gateway    Gateway
	Store      session.Store
	Tokenizer  payment.Tokenizer
	Checkout   config.CheckoutConfig
	APILoginID string
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
}

// Controller is one shopper's storefront state. Events are applied one at a
// time; only submission lets other events in while it waits on the network.
type Controller struct {
	gw         Gateway
	cart       *cart.Manager
	resolver   *delivery.Resolver
	recomputer *ordertotal.Recomputer
	orch       *checkout.Orchestrator
	logg       *logger.Logger

	mu           sync.Mutex
	stepper      *checkout.Stepper
	draft        checkout.Draft
	open         bool
	submitting   bool
	dateCheck    delivery.DateCheck
	confirmation *checkout.Confirmation
}

// NewController wires a controller. Call Init before dispatching.
func NewController(deps Deps) (*Controller, error) {
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	minPostal := deps.Checkout.MinPostalLength

	manager, err := cart.NewManager(deps.Gateway, deps.Store, deps.Logger)
	if err != nil {
		return nil, err
	}
	resolver, err := delivery.NewResolver(deps.Gateway, minPostal, deps.Logger)
	if err != nil {
		return nil, err
	}
	calc, err := ordertotal.NewCalculator(deps.Gateway, minPostal, deps.Logger)
	if err != nil {
		return nil, err
	}
	orch, err := checkout.NewOrchestrator(checkout.OrchestratorDeps{
		Cart:       manager,
		Gateway:    deps.Gateway,
		Totals:     calc,
		Tokenizer:  deps.Tokenizer,
		APILoginID: deps.APILoginID,
		Limits: checkout.Limits{
			MessageMaxLen:      deps.Checkout.MessageMaxLen,
			InstructionsMaxLen: deps.Checkout.InstructionsMaxLen,
			Country:            deps.Checkout.Country,
		},
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Controller{
		gw:         deps.Gateway,
		cart:       manager,
		resolver:   resolver,
		recomputer: ordertotal.NewRecomputer(calc, deps.Checkout.TotalDebounce, deps.Metrics),
		orch:       orch,
		logg:       deps.Logger,
		stepper:    checkout.NewStepper(minPostal),
	}, nil
}

// Init restores the shopper's cart session.
func (c *Controller) Init(ctx context.Context) error {
	return c.cart.Init(ctx)
}

// Close stops pending background work.
func (c *Controller) Close() {
	c.recomputer.Stop()
}

// View renders the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked()
}

// Dispatch applies ev and returns the resulting view. The view is returned
// on error too; a failed event leaves the state it did not get to change.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (View, error) {
	if ev.Type == EventSubmit {
		return c.submit(ctx, ev.ClientIP)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting && ev.Type.mutates() {
		return c.renderLocked(), pkgerrors.New(pkgerrors.CodeConflict, msgSubmitting)
	}
	err := c.applyLocked(ctx, ev)
	return c.renderLocked(), err
}

func (c *Controller) applyLocked(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventReloadCart:
		return c.cart.LoadFromRemote(ctx)

	case EventAddItem:
		product, err := c.resolveProduct(ctx, ev)
		if err != nil {
			return err
		}
		if err := c.cart.AddItem(ctx, product); err != nil {
			return err
		}
		c.cartChangedLocked(ctx)
		return nil

	case EventRemoveItem:
		err := c.cart.RemoveItem(ctx, ev.Index)
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			return err
		}
		// The line is gone locally whatever the remote said.
		c.cartChangedLocked(ctx)
		return err

	case EventClearCart:
		if err := c.cart.Clear(ctx); err != nil {
			return err
		}
		c.cartChangedLocked(ctx)
		return nil

	case EventOpenCheckout:
		if c.cart.IsEmpty() {
			return pkgerrors.New(pkgerrors.CodeValidation, msgEmptyCart)
		}
		c.open = true
		c.confirmation = nil
		c.stepper.Open()
		c.recomputer.Reset()
		if c.resolver.ValidPostal(c.draft.DeliveryZip) && c.resolver.State() == delivery.AvailabilityUnchecked {
			c.resolver.SetPostalCode(c.draft.DeliveryZip)
			_, _ = c.resolver.FetchAvailableDates(ctx, c.draft.DeliveryZip)
		}
		return nil

	case EventCloseCheckout:
		c.open = false
		c.stepper.Open()
		c.recomputer.Stop()
		return nil

	case EventCloseConfirmation:
		c.confirmation = nil
		return nil
	}

	if !c.open {
		return pkgerrors.New(pkgerrors.CodeStateConflict, msgCheckoutClosed)
	}

	switch ev.Type {
	case EventSetField:
		switch ev.Field {
		case checkout.FieldDeliveryZip:
			c.postalInputLocked(ctx, ev.Value)
			return nil
		case checkout.FieldDeliveryDate:
			return c.dateChangeLocked(ctx, ev.Value)
		}
		return c.draft.Set(ev.Field, ev.Value)

	case EventNextStep:
		if c.stepper.Next(c.draft) && c.stepper.IsFinal() {
			c.recomputer.Now(ctx, c.inputLocked())
		}
		return nil

	case EventPrevStep:
		c.stepper.Back()
		return nil

	case EventPostalInput:
		c.postalInputLocked(ctx, ev.Value)
		return nil

	case EventPostalBlur:
		postal := strings.TrimSpace(c.draft.DeliveryZip)
		if _, err := c.resolver.FetchAvailableDates(ctx, postal); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "postal_code", postal), "delivery date lookup failed")
		}
		c.recomputer.Now(ctx, c.inputLocked())
		return nil

	case EventDateChange:
		return c.dateChangeLocked(ctx, ev.Value)
	}

	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown event %q", ev.Type))
}

// resolveProduct completes an add event that only names a product code.
func (c *Controller) resolveProduct(ctx context.Context, ev Event) (gateway.Product, error) {
	if ev.Product != nil && strings.TrimSpace(ev.Product.Code) != "" {
		return *ev.Product, nil
	}
	code := strings.TrimSpace(ev.Code)
	if code == "" {
		return gateway.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product code is required")
	}
	product, err := c.gw.GetProduct(ctx, code)
	if err != nil {
		return gateway.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Failed to load product details")
	}
	if product.Code == "" {
		product.Code = code
	}
	return product, nil
}

func (c *Controller) postalInputLocked(ctx context.Context, value string) {
	c.draft.DeliveryZip = value
	c.resolver.SetPostalCode(strings.TrimSpace(value))
	c.dateCheck = delivery.DateUnchecked
	c.recomputer.Trigger(ctx, c.inputLocked())
}

func (c *Controller) dateChangeLocked(ctx context.Context, value string) error {
	if err := c.draft.Set(checkout.FieldDeliveryDate, value); err != nil {
		return err
	}
	c.dateCheck = delivery.DateUnchecked
	if !c.draft.DeliveryDate.IsZero() {
		c.dateCheck = c.resolver.Check(ctx, strings.TrimSpace(c.draft.DeliveryZip), c.draft.DeliveryDate)
	}
	c.recomputer.Now(ctx, c.inputLocked())
	return nil
}

func (c *Controller) cartChangedLocked(ctx context.Context) {
	if c.open {
		c.recomputer.Now(ctx, c.inputLocked())
	}
}

func (c *Controller) inputLocked() ordertotal.Input {
	return ordertotal.Input{
		Items:      c.cart.Items(),
		PostalCode: strings.TrimSpace(c.draft.DeliveryZip),
		Date:       c.draft.DeliveryDate,
	}
}

// submit places the order. The controller lock is released while the
// orchestrator runs; mutating events are refused until it returns.
func (c *Controller) submit(ctx context.Context, clientIP string) (View, error) {
	c.mu.Lock()
	switch {
	case c.submitting:
		defer c.mu.Unlock()
		return c.renderLocked(), pkgerrors.New(pkgerrors.CodeConflict, msgSubmitting)
	case !c.open:
		defer c.mu.Unlock()
		return c.renderLocked(), pkgerrors.New(pkgerrors.CodeStateConflict, msgCheckoutClosed)
	case !c.stepper.IsFinal():
		defer c.mu.Unlock()
		return c.renderLocked(), pkgerrors.New(pkgerrors.CodeValidation, msgIncomplete)
	}
	draft := c.draft
	c.submitting = true
	c.mu.Unlock()

	conf, err := c.orch.Submit(ctx, draft, clientIP)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		return c.renderLocked(), err
	}

	c.confirmation = &conf
	c.open = false
	c.draft = checkout.Draft{}
	c.stepper.Open()
	c.recomputer.Reset()
	c.resolver.SetPostalCode("")
	c.dateCheck = delivery.DateUnchecked
	return c.renderLocked(), nil
}

func (c *Controller) renderLocked() View {
	return View{
		Cart: renderCart(c.cart.Items(), c.cart.Count(), c.cart.LocalTotal()),
		Checkout: CheckoutView{
			Open:       c.open,
			Step:       int(c.stepper.Current()),
			StepLabel:  c.stepper.Current().Label(),
			Steps:      stepLabels(),
			Progress:   c.stepper.Progress(),
			Final:      c.stepper.IsFinal(),
			Submitting: c.submitting,
			Draft:      c.draft,
			Errors:     c.stepper.Errors(),
			Focus:      c.stepper.FirstInvalid(),
			Delivery:   renderDelivery(c.resolver, c.dateCheck),
			Total:      renderTotal(c.recomputer.Latest()),
		},
		Confirmation: c.confirmation,
	}
}
