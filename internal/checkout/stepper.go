package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Step is a 1-based checkout step.
type Step int

const (
	StepCustomer Step = iota + 1
	StepRecipient
	StepDelivery
	StepReview
)

// StepCount is the number of checkout steps.
const StepCount = int(StepReview)

func (s Step) Label() string {
	switch s {
	case StepCustomer:
		return "Customer Info"
	case StepRecipient:
		return "Recipient"
	case StepDelivery:
		return "Delivery"
	case StepReview:
		return "Review & Pay"
	}
	return ""
}

const (
	msgInvalidZip  = "Please enter a valid ZIP code (5 digits)"
	msgSelectDate  = "Please select a delivery date"
	msgFieldFormat = "%s is required"
)

var fieldLabels = map[string]string{
	FieldCustomerName:    "Full Name",
	FieldCustomerEmail:   "Email",
	FieldCustomerPhone:   "Phone",
	FieldCustomerAddress: "Address",
	FieldCustomerCity:    "City",
	FieldCustomerState:   "State",
	FieldCustomerZip:     "ZIP Code",
	FieldRecipientName:   "Recipient Name",
	FieldRecipientPhone:  "Recipient Phone",
	FieldDeliveryAddress: "Delivery Address",
	FieldDeliveryCity:    "City",
	FieldDeliveryState:   "State",
	FieldDeliveryZip:     "ZIP Code",
	FieldDeliveryDate:    "Delivery Date",
	FieldCardNumber:      "Card Number",
	FieldCardExpiry:      "Expiry (MM/YY)",
	FieldCardCVV:         "CVV",
}

// Label returns the form label for a field key.
func Label(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return "This field"
}

// FieldError annotates one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Per-step views of the draft. Values are trimmed before validation.
type customerStep struct {
	Name    string `field:"customerName" validate:"required"`
	Email   string `field:"customerEmail" validate:"required"`
	Phone   string `field:"customerPhone" validate:"required"`
	Address string `field:"customerAddress" validate:"required"`
	City    string `field:"customerCity" validate:"required"`
	State   string `field:"customerState" validate:"required"`
	Zip     string `field:"customerZip" validate:"required"`
}

type recipientStep struct {
	Name  string `field:"recipientName" validate:"required"`
	Phone string `field:"recipientPhone" validate:"required"`
}

type deliveryStep struct {
	Address string `field:"deliveryAddress" validate:"required"`
	City    string `field:"deliveryCity" validate:"required"`
	State   string `field:"deliveryState" validate:"required"`
	Zip     string `field:"deliveryZip" validate:"required"`
}

type reviewStep struct {
	CardNumber string `field:"cardNumber" validate:"required"`
	CardExpiry string `field:"cardExpiry" validate:"required"`
	CardCVV    string `field:"cardCVV" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("field"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

func stepView(step Step, d Draft) any {
	t := strings.TrimSpace
	switch step {
	case StepCustomer:
		return &customerStep{t(d.CustomerName), t(d.CustomerEmail), t(d.CustomerPhone), t(d.CustomerAddress), t(d.CustomerCity), t(d.CustomerState), t(d.CustomerZip)}
	case StepRecipient:
		return &recipientStep{t(d.RecipientName), t(d.RecipientPhone)}
	case StepDelivery:
		return &deliveryStep{t(d.DeliveryAddress), t(d.DeliveryCity), t(d.DeliveryState), t(d.DeliveryZip)}
	case StepReview:
		return &reviewStep{t(d.CardNumber), t(d.CardExpiry), t(d.CardCVV)}
	}
	return nil
}

// Stepper tracks the current step and the annotations of the last failed
// validation.
type Stepper struct {
	minPostal int
	current   Step
	errors    []FieldError
}

func NewStepper(minPostalLength int) *Stepper {
	if minPostalLength <= 0 {
		minPostalLength = 5
	}
	return &Stepper{minPostal: minPostalLength, current: StepCustomer}
}

func (s *Stepper) Current() Step { return s.current }

func (s *Stepper) IsFinal() bool { return s.current == StepReview }

// Errors returns the field annotations of the current step.
func (s *Stepper) Errors() []FieldError {
	return append([]FieldError(nil), s.errors...)
}

// FirstInvalid is the field to focus, or "" when the step is valid.
func (s *Stepper) FirstInvalid() string {
	if len(s.errors) == 0 {
		return ""
	}
	return s.errors[0].Field
}

// Progress is the progress bar width in percent.
func (s *Stepper) Progress() int {
	return (int(s.current) - 1) * 100 / (StepCount - 1)
}

// Open resets to the first step with no annotations.
func (s *Stepper) Open() {
	s.current = StepCustomer
	s.errors = nil
}

// Next validates the current step against d and advances when it passes.
// It reports whether the step changed.
func (s *Stepper) Next(d Draft) bool {
	s.errors = s.Validate(s.current, d)
	if len(s.errors) > 0 || s.IsFinal() {
		return false
	}
	s.current++
	return true
}

// Back retreats one step without validation.
func (s *Stepper) Back() {
	s.errors = nil
	if s.current > StepCustomer {
		s.current--
	}
}

// Validate returns the annotations for step in form order. Every required
// field must be non-blank; the delivery step also needs a full postal code
// and a date.
func (s *Stepper) Validate(step Step, d Draft) []FieldError {
	view := stepView(step, d)
	if view == nil {
		return nil
	}
	messages := map[string]string{}
	if err := validate.Struct(view); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				messages[fe.Field()] = fmt.Sprintf(msgFieldFormat, Label(fe.Field()))
			}
		}
	}
	if step == StepDelivery {
		if len(strings.TrimSpace(d.DeliveryZip)) < s.minPostal {
			messages[FieldDeliveryZip] = msgInvalidZip
		}
		if d.DeliveryDate.IsZero() {
			messages[FieldDeliveryDate] = msgSelectDate
		}
	}
	if len(messages) == 0 {
		return nil
	}

	out := make([]FieldError, 0, len(messages))
	for _, field := range stepFields(step) {
		if msg, ok := messages[field]; ok {
			out = append(out, FieldError{Field: field, Message: msg})
		}
	}
	return out
}

func stepFields(step Step) []string {
	var fields []string
	rt := reflect.TypeOf(stepView(step, Draft{})).Elem()
	for i := 0; i < rt.NumField(); i++ {
		fields = append(fields, rt.Field(i).Tag.Get("field"))
	}
	if step == StepDelivery {
		fields = append(fields, FieldDeliveryDate)
	}
	return fields
}
