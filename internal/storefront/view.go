package storefront

import (
	"github.com/angelmondragon/florist-storefront/internal/cart"
	"github.com/angelmondragon/florist-storefront/internal/checkout"
	"github.com/angelmondragon/florist-storefront/internal/delivery"
	"github.com/angelmondragon/florist-storefront/internal/ordertotal"
	"github.com/shopspring/decimal"
)

// View is everything the browser renders after an event.
type View struct {
	Cart         CartView               `json:"cart"`
	Checkout     CheckoutView           `json:"checkout"`
	Confirmation *checkout.Confirmation `json:"confirmation,omitempty"`
}

type CartView struct {
	Items           []CartLine      `json:"items"`
	Count           int             `json:"count"`
	Total           decimal.Decimal `json:"total"`
	CheckoutEnabled bool            `json:"checkoutEnabled"`
}

// CartLine is a cart item with its position, which remove events refer to.
type CartLine struct {
	Index int `json:"index"`
	cart.Item
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type CheckoutView struct {
	Open       bool                  `json:"open"`
	Step       int                   `json:"step"`
	StepLabel  string                `json:"stepLabel"`
	Steps      []string              `json:"steps"`
	Progress   int                   `json:"progress"`
	Final      bool                  `json:"final"`
	Submitting bool                  `json:"submitting"`
	Draft      checkout.Draft        `json:"draft"`
	Errors     []checkout.FieldError `json:"errors,omitempty"`
	Focus      string                `json:"focus,omitempty"`
	Delivery   DeliveryView          `json:"delivery"`
	Total      TotalView             `json:"total"`
}

type DeliveryView struct {
	State       delivery.Availability `json:"state"`
	Message     string                `json:"message,omitempty"`
	Dates       []DateOption          `json:"dates"`
	Min         string                `json:"min,omitempty"`
	Max         string                `json:"max,omitempty"`
	DateOK      bool                  `json:"dateOk"`
	DateMessage string                `json:"dateMessage,omitempty"`
}

// DateOption is one entry of the available-dates list. Value is ISO.
type DateOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type TotalView struct {
	State     ordertotal.State  `json:"state"`
	Message   string            `json:"message,omitempty"`
	Breakdown *ordertotal.Total `json:"breakdown,omitempty"`
}

func renderCart(items []cart.Item, count int, total decimal.Decimal) CartView {
	lines := make([]CartLine, 0, len(items))
	for i, item := range items {
		lines = append(lines, CartLine{Index: i, Item: item, LineTotal: item.LineTotal()})
	}
	return CartView{
		Items:           lines,
		Count:           count,
		Total:           total,
		CheckoutEnabled: len(items) > 0,
	}
}

func renderDelivery(r *delivery.Resolver, check delivery.DateCheck) DeliveryView {
	dates := r.Dates()
	view := DeliveryView{
		State:       r.State(),
		Message:     r.StatusMessage(),
		Dates:       make([]DateOption, 0, len(dates)),
		DateOK:      check == delivery.DateAvailable,
		DateMessage: check.Message(),
	}
	for _, d := range dates {
		view.Dates = append(view.Dates, DateOption{Value: d.ISOString(), Label: d.Display()})
	}
	if first, last, ok := r.Bounds(); ok {
		view.Min = first.ISOString()
		view.Max = last.ISOString()
	}
	return view
}

func renderTotal(res ordertotal.Result) TotalView {
	view := TotalView{State: res.State, Message: res.Message()}
	if res.State == ordertotal.StateDetermined {
		breakdown := res.Total
		view.Breakdown = &breakdown
	}
	return view
}

func stepLabels() []string {
	labels := make([]string, 0, checkout.StepCount)
	for s := checkout.Step(1); int(s) <= checkout.StepCount; s++ {
		labels = append(labels, s.Label())
	}
	return labels
}
