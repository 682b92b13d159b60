package gateway

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ErrUndecodable marks a response whose shape matched none of the known
// variants. Callers treat it like a missing resource.
var ErrUndecodable = errors.New("unrecognized response shape")

// Rule is an ordered list of gjson paths. The first path holding a truthy
// value wins.
type Rule []string

// Lookup returns the first truthy value reachable through the rule's paths.
func (r Rule) Lookup(doc gjson.Result) (gjson.Result, bool) {
	for _, path := range r {
		if v := doc.Get(path); truthy(v) {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// String returns the first truthy value as a string, or fallback.
func (r Rule) String(doc gjson.Result, fallback string) string {
	if v, ok := r.Lookup(doc); ok {
		return strings.TrimSpace(v.String())
	}
	return fallback
}

// Decimal returns the first truthy value parsed as a decimal.
func (r Rule) Decimal(doc gjson.Result) (decimal.Decimal, bool) {
	v, ok := r.Lookup(doc)
	if !ok {
		return decimal.Zero, false
	}
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ArrayRule is an ordered list of paths expected to hold arrays. "@this"
// matches a bare top-level array.
type ArrayRule []string

// Lookup returns the first path that resolves to an array.
func (r ArrayRule) Lookup(doc gjson.Result) ([]gjson.Result, bool) {
	for _, path := range r {
		if v := doc.Get(path); v.IsArray() {
			return v.Array(), true
		}
	}
	return nil, false
}

// truthy follows the loose truthiness the upstream payloads were designed
// around: missing, null, false, "" and 0 all fall through to the next path.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	default:
		return v.Exists()
	}
}

func toDecimal(v gjson.Result) (decimal.Decimal, error) {
	switch v.Type {
	case gjson.Number:
		return decimal.NewFromString(v.Raw)
	default:
		return decimal.NewFromString(strings.TrimSpace(v.String()))
	}
}

// Extraction tables, one per field of each upstream entity.
var (
	sessionIDRule = Rule{
		"SESSIONID", "sessionid", "sessionId",
		"CARTID", "cartid", "CART_ID",
		"CART.CARTID", "cart.cartid",
		"cartId", "cart_id",
	}

	cartItemsRule = ArrayRule{"products", "ITEMS", "items", "@this"}

	codeRule        = Rule{"CODE", "code", "PRODUCTCODE", "productcode", "productCode", "id"}
	nameRule        = Rule{"NAME", "name", "PRODUCTNAME", "productname", "productName"}
	priceRule       = Rule{"PRICE", "price", "BASEPRICE", "baseprice", "basePrice"}
	quantityRule    = Rule{"QUANTITY", "quantity"}
	imageRule       = Rule{"SMALL", "LARGE", "EXTRALARGE", "small", "large", "extralarge", "image", "imageurl", "imageUrl"}
	descriptionRule = Rule{"DESCRIPTION", "description", "longdescription"}

	productLookupRule = Rule{"PRODUCTS.0", "products.0", "PRODUCT", "product"}
	productListRule   = ArrayRule{"@this", "PRODUCTS", "products", "product"}
	productTotalRule  = Rule{"TOTAL", "total"}

	datesRule         = ArrayRule{"DATES", "dates"}
	dateAvailableRule = Rule{"DATE_AVAILABLE", "date_available"}

	orderTotalRule     = Rule{"ORDERTOTAL"}
	subtotalRule       = Rule{"SUBTOTAL"}
	taxRule            = Rule{"TAXTOTAL", "FLORISTONETAX"}
	deliveryChargeRule = Rule{"DELIVERYCHARGETOTAL", "FLORISTONEDELIVERYCHARGE"}

	paymentKeyRule = Rule{"AUTHORIZENET_KEY"}
	paymentURLRule = Rule{"AUTHORIZENET_URL"}

	orderNumberRule = Rule{"ORDERNO", "orderid", "orderId"}
)

// Defaults applied when a field matches no rule.
const (
	DefaultItemName        = "Product"
	DefaultListingName     = "Beautiful Bouquet"
	DefaultListingPrice    = "49.99"
	DefaultDescription     = "A beautiful arrangement perfect for any occasion."
	DefaultAcceptScriptURL = "https://jstest.authorize.net/v1/Accept.js"
	UnknownOrderNumber     = "unknown"
)

func parse(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, ErrUndecodable
	}
	return gjson.ParseBytes(body), nil
}

// DecodeSessionID extracts the cart-session id of a create-cart response.
func DecodeSessionID(body []byte) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	id := sessionIDRule.String(doc, "")
	if id == "" {
		return "", ErrUndecodable
	}
	return id, nil
}

// DecodeCart normalizes every known cart response shape into CartLines.
func DecodeCart(body []byte) ([]CartLine, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	raw, ok := cartItemsRule.Lookup(doc)
	if !ok {
		return nil, ErrUndecodable
	}
	lines := make([]CartLine, 0, len(raw))
	for _, item := range raw {
		price, _ := priceRule.Decimal(item)
		qty := 1
		if v, ok := quantityRule.Lookup(item); ok {
			if n := int(v.Int()); n >= 1 {
				qty = n
			}
		}
		lines = append(lines, CartLine{
			Code:     codeRule.String(item, ""),
			Name:     nameRule.String(item, DefaultItemName),
			Price:    price,
			Quantity: qty,
			Image:    imageRule.String(item, ""),
		})
	}
	return lines, nil
}

// DecodeProduct extracts the first product of a single-product response.
func DecodeProduct(body []byte) (Product, error) {
	doc, err := parse(body)
	if err != nil {
		return Product{}, err
	}
	item, ok := productLookupRule.Lookup(doc)
	if !ok || !item.IsObject() {
		return Product{}, ErrUndecodable
	}
	return decodeListingProduct(item), nil
}

// DecodeProductPage extracts a product listing and its TOTAL when present.
func DecodeProductPage(body []byte) (ProductPage, error) {
	doc, err := parse(body)
	if err != nil {
		return ProductPage{}, err
	}
	raw, ok := productListRule.Lookup(doc)
	if !ok {
		return ProductPage{}, ErrUndecodable
	}
	page := ProductPage{Products: make([]Product, 0, len(raw))}
	for _, item := range raw {
		page.Products = append(page.Products, decodeListingProduct(item))
	}
	if v, ok := productTotalRule.Lookup(doc); ok {
		page.Total = int(v.Int())
	}
	return page, nil
}

func decodeListingProduct(item gjson.Result) Product {
	price, ok := priceRule.Decimal(item)
	if !ok {
		price = decimal.RequireFromString(DefaultListingPrice)
	}
	return Product{
		Code:        codeRule.String(item, ""),
		Name:        nameRule.String(item, DefaultListingName),
		Price:       price,
		Description: descriptionRule.String(item, DefaultDescription),
		Image:       imageRule.String(item, ""),
	}
}

// DecodeDates returns the gateway-formatted dates of a bulk date response.
// A well-formed object without a DATES array means no dates.
func DecodeDates(body []byte) ([]string, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	if !doc.IsObject() {
		return nil, ErrUndecodable
	}
	raw, _ := datesRule.Lookup(doc)
	dates := make([]string, 0, len(raw))
	for _, v := range raw {
		if s := strings.TrimSpace(v.String()); s != "" {
			dates = append(dates, s)
		}
	}
	return dates, nil
}

// DecodeDateAvailable reads the single-date availability flag.
func DecodeDateAvailable(body []byte) (bool, error) {
	doc, err := parse(body)
	if err != nil {
		return false, err
	}
	if !doc.IsObject() {
		return false, ErrUndecodable
	}
	v, ok := dateAvailableRule.Lookup(doc)
	return ok && v.Bool(), nil
}

// DecodeTotal reads the order-total quote. ORDERTOTAL is required.
func DecodeTotal(body []byte) (TotalQuote, error) {
	doc, err := parse(body)
	if err != nil {
		return TotalQuote{}, err
	}
	total, ok := orderTotalRule.Decimal(doc)
	if !ok {
		return TotalQuote{}, ErrUndecodable
	}
	quote := TotalQuote{OrderTotal: total}
	if v, ok := subtotalRule.Decimal(doc); ok {
		quote.Subtotal = decimal.NullDecimal{Decimal: v, Valid: true}
	}
	quote.Tax, _ = taxRule.Decimal(doc)
	quote.DeliveryCharge, _ = deliveryChargeRule.Decimal(doc)
	return quote, nil
}

// DecodePaymentKey reads the payment processor key; the script URL defaults
// to the processor's sandbox.
func DecodePaymentKey(body []byte) (PaymentKey, error) {
	doc, err := parse(body)
	if err != nil {
		return PaymentKey{}, err
	}
	key := paymentKeyRule.String(doc, "")
	if key == "" {
		return PaymentKey{}, ErrUndecodable
	}
	return PaymentKey{
		ClientKey: key,
		ScriptURL: paymentURLRule.String(doc, DefaultAcceptScriptURL),
	}, nil
}

// DecodeOrderNumber extracts the order number, or UnknownOrderNumber.
func DecodeOrderNumber(body []byte) string {
	doc, err := parse(body)
	if err != nil {
		return UnknownOrderNumber
	}
	return orderNumberRule.String(doc, UnknownOrderNumber)
}
