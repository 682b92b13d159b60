package checkout

import (
	"strings"

	"github.com/angelmondragon/florist-storefront/internal/delivery"
	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
)

// Draft field keys, as sent by the browser.
const (
	FieldCustomerName        = "customerName"
	FieldCustomerEmail       = "customerEmail"
	FieldCustomerPhone       = "customerPhone"
	FieldCustomerAddress     = "customerAddress"
	FieldCustomerCity        = "customerCity"
	FieldCustomerState       = "customerState"
	FieldCustomerZip         = "customerZip"
	FieldRecipientName       = "recipientName"
	FieldRecipientPhone      = "recipientPhone"
	FieldDeliveryAddress     = "deliveryAddress"
	FieldDeliveryCity        = "deliveryCity"
	FieldDeliveryState       = "deliveryState"
	FieldDeliveryZip         = "deliveryZip"
	FieldDeliveryDate        = "deliveryDate"
	FieldCardMessage         = "cardMessage"
	FieldSpecialInstructions = "specialInstructions"
	FieldCardNumber          = "cardNumber"
	FieldCardExpiry          = "cardExpiry"
	FieldCardCVV             = "cardCVV"
)

// Draft is the checkout form as the shopper has filled it so far. Card
// fields are never serialized.
type Draft struct {
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	CustomerAddress string `json:"customerAddress"`
	CustomerCity    string `json:"customerCity"`
	CustomerState   string `json:"customerState"`
	CustomerZip     string `json:"customerZip"`

	RecipientName  string `json:"recipientName"`
	RecipientPhone string `json:"recipientPhone"`

	DeliveryAddress string        `json:"deliveryAddress"`
	DeliveryCity    string        `json:"deliveryCity"`
	DeliveryState   string        `json:"deliveryState"`
	DeliveryZip     string        `json:"deliveryZip"`
	DeliveryDate    delivery.Date `json:"deliveryDate"`

	CardMessage         string `json:"cardMessage"`
	SpecialInstructions string `json:"specialInstructions"`

	CardNumber string `json:"-"`
	CardExpiry string `json:"-"`
	CardCVV    string `json:"-"`
}

// Set assigns one field by key. The delivery date is parsed from YYYY-MM-DD;
// an empty value clears it.
func (d *Draft) Set(field, value string) error {
	if field == FieldDeliveryDate {
		if strings.TrimSpace(value) == "" {
			d.DeliveryDate = delivery.Date{}
			return nil
		}
		date, err := delivery.ParseISO(value)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Please select a delivery date").
				WithDetails(map[string]string{FieldDeliveryDate: "must be YYYY-MM-DD"})
		}
		d.DeliveryDate = date
		return nil
	}
	ptr := d.fieldPtr(field)
	if ptr == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown checkout field").WithDetails(map[string]string{"field": field})
	}
	*ptr = value
	return nil
}

func (d *Draft) fieldPtr(field string) *string {
	switch field {
	case FieldCustomerName:
		return &d.CustomerName
	case FieldCustomerEmail:
		return &d.CustomerEmail
	case FieldCustomerPhone:
		return &d.CustomerPhone
	case FieldCustomerAddress:
		return &d.CustomerAddress
	case FieldCustomerCity:
		return &d.CustomerCity
	case FieldCustomerState:
		return &d.CustomerState
	case FieldCustomerZip:
		return &d.CustomerZip
	case FieldRecipientName:
		return &d.RecipientName
	case FieldRecipientPhone:
		return &d.RecipientPhone
	case FieldDeliveryAddress:
		return &d.DeliveryAddress
	case FieldDeliveryCity:
		return &d.DeliveryCity
	case FieldDeliveryState:
		return &d.DeliveryState
	case FieldDeliveryZip:
		return &d.DeliveryZip
	case FieldCardMessage:
		return &d.CardMessage
	case FieldSpecialInstructions:
		return &d.SpecialInstructions
	case FieldCardNumber:
		return &d.CardNumber
	case FieldCardExpiry:
		return &d.CardExpiry
	case FieldCardCVV:
		return &d.CardCVV
	}
	return nil
}
