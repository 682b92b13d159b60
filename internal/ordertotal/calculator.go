package ordertotal

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/florist-storefront/internal/cart"
	"github.com/angelmondragon/florist-storefront/internal/delivery"
	"github.com/angelmondragon/florist-storefront/internal/gateway"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

// Remote prices a set of lines.
type Remote interface {
	OrderTotal(ctx context.Context, lines []gateway.TotalLine) (gateway.TotalQuote, error)
}

// State of a total as shown at checkout.
type State int

const (
	// StateUndetermined hides the total: postal code, date or cart is missing.
	StateUndetermined State = iota
	StateCalculating
	StateDetermined
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCalculating:
		return "calculating"
	case StateDetermined:
		return "determined"
	case StateFailed:
		return "failed"
	default:
		return "undetermined"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Total is the priced breakdown of an order.
type Total struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	DeliveryCharge decimal.Decimal `json:"delivery"`
	Total          decimal.Decimal `json:"total"`
}

// Result is one computation outcome. Seq orders results of the same Recomputer.
type Result struct {
	State State  `json:"state"`
	Total Total  `json:"total"`
	Seq   uint64 `json:"seq"`
	Err   error  `json:"-"`
}

// Message is the placeholder shown instead of the breakdown, if any.
func (r Result) Message() string {
	switch r.State {
	case StateCalculating:
		return "Calculating total..."
	case StateFailed:
		return "Unable to calculate total. Please check zipcode and try again."
	default:
		return ""
	}
}

// Input is a snapshot of everything a total depends on.
type Input struct {
	Items      []cart.Item
	PostalCode string
	Date       delivery.Date
}

// Calculator prices an Input through the gateway.
type Calculator struct {
	remote Remote
	minLen int
	logg   *logger.Logger
}

func NewCalculator(remote Remote, minPostalLength int, logg *logger.Logger) (*Calculator, error) {
	if remote == nil {
		return nil, fmt.Errorf("order total remote required")
	}
	if minPostalLength <= 0 {
		return nil, fmt.Errorf("min postal length must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Calculator{remote: remote, minLen: minPostalLength, logg: logg}, nil
}

// Ready reports whether in can produce a determined total.
func (c *Calculator) Ready(in Input) bool {
	return len(strings.TrimSpace(in.PostalCode)) >= c.minLen && !in.Date.IsZero() && len(in.Items) > 0
}

// Compute returns StateUndetermined without a remote call unless in is Ready.
// A failed or undecodable quote yields StateFailed along with the error.
func (c *Calculator) Compute(ctx context.Context, in Input) (Result, error) {
	if !c.Ready(in) {
		return Result{State: StateUndetermined}, nil
	}
	postal := strings.TrimSpace(in.PostalCode)
	quote, err := c.remote.OrderTotal(ctx, Lines(in.Items, postal))
	if err != nil {
		c.logg.Error(c.logg.WithField(ctx, "zipcode", postal), "order total failed", err)
		return Result{State: StateFailed, Err: err}, err
	}

	subtotal := quote.Subtotal.Decimal
	if !quote.Subtotal.Valid {
		subtotal = decimal.Zero
		for _, item := range in.Items {
			subtotal = subtotal.Add(item.Price)
		}
	}
	return Result{
		State: StateDetermined,
		Total: Total{
			Subtotal:       subtotal,
			Tax:            quote.Tax,
			DeliveryCharge: quote.DeliveryCharge,
			Total:          quote.OrderTotal,
		},
	}, nil
}

// Lines builds the pricing request: one line per cart item, each delivered to postal.
func Lines(items []cart.Item, postal string) []gateway.TotalLine {
	lines := make([]gateway.TotalLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, gateway.TotalLine{
			Code:      item.ID,
			Price:     gateway.Number(item.Price),
			Recipient: gateway.TotalRecipient{ZipCode: postal},
		})
	}
	return lines
}
