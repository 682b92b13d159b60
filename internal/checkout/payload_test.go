package checkout

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/angelmondragon/florist-storefront/internal/cart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOrder(t *testing.T) {
	d := completeDraft(t)
	d.CardMessage = strings.Repeat("m", 250)
	d.SpecialInstructions = strings.Repeat("i", 150)
	items := []cart.Item{{ID: "R1", Price: decimal.RequireFromString("59.99"), Quantity: 1}}

	req, err := BuildOrder(d, items, "tok-1", decimal.RequireFromString("75.48"), "203.0.113.9", Limits{})
	require.NoError(t, err)
	assert.Equal(t, "75.48", req.OrderTotal.String())
	assert.JSONEq(t, `{"AUTHORIZENET_TOKEN":"tok-1"}`, req.CCInfo)
	assert.NotContains(t, req.Customer+req.Products+req.CCInfo, "4111")

	var customer map[string]string
	require.NoError(t, json.Unmarshal([]byte(req.Customer), &customer))
	assert.Equal(t, "2125550100", customer["PHONE"])
	assert.Equal(t, "NY", customer["STATE"])
	assert.Equal(t, "US", customer["COUNTRY"])
	assert.Equal(t, "", customer["ADDRESS2"])
	assert.Equal(t, "203.0.113.9", customer["IP"])

	var products []map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Products), &products))
	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "R1", p["CODE"])
	assert.Equal(t, 59.99, p["PRICE"])
	assert.Equal(t, "2024-12-25", p["DELIVERYDATE"])
	assert.Len(t, p["CARDMESSAGE"], 200)
	assert.Len(t, p["SPECIALINSTRUCTIONS"], 100)

	recipient := p["RECIPIENT"].(map[string]any)
	assert.Equal(t, "2125550199", recipient["PHONE"])
	assert.Equal(t, "NY", recipient["STATE"])
	assert.Equal(t, "11201", recipient["ZIPCODE"])
	assert.Equal(t, "", recipient["INSTITUTION"])
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncate("héllo wörld", 5))
	assert.Equal(t, "ok", truncate("ok", 5))
}
