package gateway

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry as listed by the gateway.
type Product struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
}

// ProductPage is one page of a product listing. Total is 0 when the gateway
// did not report it.
type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

// ProductQuery filters a product listing. Start is 1-based.
type ProductQuery struct {
	Category string
	Count    int
	Start    int
}

// CartLine is one line of a remote cart.
type CartLine struct {
	Code     string
	Name     string
	Price    decimal.Decimal
	Quantity int
	Image    string
}

// Cart mutation actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionClear  = "clear"
)

// CartUpdate is the body of a cart mutation.
type CartUpdate struct {
	CartID string `json:"cartId"`
	Code   string `json:"code,omitempty"`
	Action string `json:"action,omitempty"`
}

// TotalLine is one entry of the order-total request.
type TotalLine struct {
	Code      string         `json:"CODE"`
	Price     json.Number    `json:"PRICE"`
	Recipient TotalRecipient `json:"RECIPIENT"`
}

type TotalRecipient struct {
	ZipCode string `json:"ZIPCODE"`
}

// TotalQuote is the gateway's answer to an order-total request.
type TotalQuote struct {
	OrderTotal     decimal.Decimal
	Subtotal       decimal.NullDecimal
	Tax            decimal.Decimal
	DeliveryCharge decimal.Decimal
}

// PaymentKey carries the processor's public client key.
type PaymentKey struct {
	ClientKey string `json:"clientKey"`
	ScriptURL string `json:"scriptUrl"`
}

// OrderRequest is the place-order body. Customer, Products and CCInfo are
// JSON documents encoded as strings.
type OrderRequest struct {
	Customer   string      `json:"customer"`
	Products   string      `json:"products"`
	CCInfo     string      `json:"ccinfo"`
	OrderTotal json.Number `json:"ordertotal"`
}

// Number renders d as a bare JSON number.
func Number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
