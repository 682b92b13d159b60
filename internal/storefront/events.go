package storefront

import (
	"github.com/angelmondragon/florist-storefront/internal/gateway"
)

// EventType names a shopper action.
type EventType string

const (
	EventReloadCart        EventType = "reload_cart"
	EventAddItem           EventType = "add_item"
	EventRemoveItem        EventType = "remove_item"
	EventClearCart         EventType = "clear_cart"
	EventOpenCheckout      EventType = "open_checkout"
	EventCloseCheckout     EventType = "close_checkout"
	EventSetField          EventType = "set_field"
	EventNextStep          EventType = "next_step"
	EventPrevStep          EventType = "prev_step"
	EventPostalInput       EventType = "postal_input"
	EventPostalBlur        EventType = "postal_blur"
	EventDateChange        EventType = "date_change"
	EventSubmit            EventType = "submit"
	EventCloseConfirmation EventType = "close_confirmation"
)

// Event is one shopper action. Only the fields its type uses are read.
type Event struct {
	Type    EventType        `json:"type" validate:"required"`
	Product *gateway.Product `json:"product,omitempty"`
	Code    string           `json:"code,omitempty"`
	Index   int              `json:"index"`
	Field   string           `json:"field,omitempty"`
	Value   string           `json:"value,omitempty"`

	ClientIP string `json:"-"`
}

// mutates reports whether the event changes the cart or the form. Such
// events are refused while an order is being submitted.
func (t EventType) mutates() bool {
	switch t {
	case EventReloadCart, EventCloseConfirmation:
		return false
	default:
		return true
	}
}
