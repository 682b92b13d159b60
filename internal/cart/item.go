package cart

import (
	"github.com/angelmondragon/florist-storefront/internal/gateway"
	"github.com/shopspring/decimal"
)

// Item is one line of the local cart. At most one Item exists per ID.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image,omitempty"`
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.qty())))
}

func (i Item) qty() int {
	if i.Quantity < 1 {
		return 1
	}
	return i.Quantity
}

func itemFromLine(line gateway.CartLine) Item {
	return Item{
		ID:       line.Code,
		Name:     line.Name,
		Price:    line.Price,
		Quantity: line.Quantity,
		Image:    line.Image,
	}
}
