package checkout

import (
	"encoding/json"
	"strings"

	"github.com/angelmondragon/florist-storefront/internal/cart"
	"github.com/angelmondragon/florist-storefront/internal/gateway"
	"github.com/shopspring/decimal"
)

const phoneDigits = 10

// Limits bounds free-text fields of the order payload.
type Limits struct {
	MessageMaxLen      int
	InstructionsMaxLen int
	Country            string
}

func (l Limits) withDefaults() Limits {
	if l.MessageMaxLen <= 0 {
		l.MessageMaxLen = 200
	}
	if l.InstructionsMaxLen <= 0 {
		l.InstructionsMaxLen = 100
	}
	if strings.TrimSpace(l.Country) == "" {
		l.Country = "US"
	}
	return l
}

type orderCustomer struct {
	Name     string `json:"NAME"`
	Email    string `json:"EMAIL"`
	Phone    string `json:"PHONE"`
	Address1 string `json:"ADDRESS1"`
	Address2 string `json:"ADDRESS2"`
	City     string `json:"CITY"`
	State    string `json:"STATE"`
	Country  string `json:"COUNTRY"`
	ZipCode  string `json:"ZIPCODE"`
	IP       string `json:"IP"`
}

type orderRecipient struct {
	Name        string `json:"NAME"`
	Institution string `json:"INSTITUTION"`
	Address1    string `json:"ADDRESS1"`
	Address2    string `json:"ADDRESS2"`
	City        string `json:"CITY"`
	State       string `json:"STATE"`
	Country     string `json:"COUNTRY"`
	Phone       string `json:"PHONE"`
	ZipCode     string `json:"ZIPCODE"`
}

type orderProduct struct {
	Code                string         `json:"CODE"`
	Price               json.Number    `json:"PRICE"`
	DeliveryDate        string         `json:"DELIVERYDATE"`
	CardMessage         string         `json:"CARDMESSAGE"`
	SpecialInstructions string         `json:"SPECIALINSTRUCTIONS"`
	Recipient           orderRecipient `json:"RECIPIENT"`
}

type orderPayment struct {
	AuthorizeNetToken string `json:"AUTHORIZENET_TOKEN"`
}

// BuildOrder assembles the place-order request. The payment block carries
// only the token.
func BuildOrder(d Draft, items []cart.Item, token string, total decimal.Decimal, clientIP string, limits Limits) (gateway.OrderRequest, error) {
	limits = limits.withDefaults()
	customer := orderCustomer{
		Name:     d.CustomerName,
		Email:    d.CustomerEmail,
		Phone:    digits(d.CustomerPhone, phoneDigits),
		Address1: d.CustomerAddress,
		City:     d.CustomerCity,
		State:    strings.ToUpper(d.CustomerState),
		Country:  limits.Country,
		ZipCode:  d.CustomerZip,
		IP:       clientIP,
	}
	recipient := orderRecipient{
		Name:     d.RecipientName,
		Address1: d.DeliveryAddress,
		City:     d.DeliveryCity,
		State:    strings.ToUpper(d.DeliveryState),
		Country:  limits.Country,
		Phone:    digits(d.RecipientPhone, phoneDigits),
		ZipCode:  d.DeliveryZip,
	}
	products := make([]orderProduct, 0, len(items))
	for _, item := range items {
		products = append(products, orderProduct{
			Code:                item.ID,
			Price:               gateway.Number(item.Price),
			DeliveryDate:        d.DeliveryDate.ISOString(),
			CardMessage:         truncate(d.CardMessage, limits.MessageMaxLen),
			SpecialInstructions: truncate(d.SpecialInstructions, limits.InstructionsMaxLen),
			Recipient:           recipient,
		})
	}

	customerJSON, err := json.Marshal(customer)
	if err != nil {
		return gateway.OrderRequest{}, err
	}
	productsJSON, err := json.Marshal(products)
	if err != nil {
		return gateway.OrderRequest{}, err
	}
	paymentJSON, err := json.Marshal(orderPayment{AuthorizeNetToken: token})
	if err != nil {
		return gateway.OrderRequest{}, err
	}
	return gateway.OrderRequest{
		Customer:   string(customerJSON),
		Products:   string(productsJSON),
		CCInfo:     string(paymentJSON),
		OrderTotal: gateway.Number(total),
	}, nil
}

func digits(s string, max int) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() >= max {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
