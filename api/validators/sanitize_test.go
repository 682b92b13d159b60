package validators

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "trims", input: "  roses  ", max: 10, want: "roses"},
		{name: "drops control characters", input: "ros\x00es\n", max: 0, want: "roses"},
		{name: "caps by rune", input: "crème brûlée", max: 5, want: "crème"},
		{name: "unbounded", input: "sympathy", max: 0, want: "sympathy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeString(tc.input, tc.max))
		})
	}
}

func TestRequireQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/delivery/checkdates?zipcode=90210&start=%20", nil)

	_, ok := RequireQuery(req, "zipcode", "start")
	assert.False(t, ok)

	values, ok := RequireQuery(req, "zipcode")
	assert.True(t, ok)
	assert.Equal(t, []string{"90210"}, values)
}
