package delivery

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	gatewayLayout = "01/02/2006"
	isoLayout     = "2006-01-02"
	displayLayout = "Mon, Jan 2, 2006"
)

// Date is a calendar day with no time-of-day or zone.
type Date struct {
	t time.Time
}

func newDate(t time.Time) Date {
	return Date{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseGateway parses the MM/DD/YYYY form exchanged with the commerce gateway.
// Single-digit month and day are accepted.
func ParseGateway(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(gatewayLayout, s)
	if err != nil {
		t, err = time.Parse("1/2/2006", s)
		if err != nil {
			return Date{}, fmt.Errorf("parse gateway date %q: %w", s, err)
		}
	}
	return newDate(t), nil
}

// ParseISO parses the YYYY-MM-DD form used by the date input.
func ParseISO(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return newDate(t), nil
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) GatewayString() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(gatewayLayout)
}

func (d Date) ISOString() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(isoLayout)
}

// Display renders the date the way the date picker labels it, e.g. "Wed, Dec 25, 2024".
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(displayLayout)
}

func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

func (d Date) String() string { return d.ISOString() }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.ISOString())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseISO(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
