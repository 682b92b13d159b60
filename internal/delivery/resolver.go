package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/florist-storefront/pkg/logger"
)

// Remote is the subset of the commerce gateway used to resolve delivery dates.
type Remote interface {
	CheckDates(ctx context.Context, zip string) ([]string, error)
	CheckDate(ctx context.Context, zip, date string) (bool, error)
}

// Availability describes the outcome of the last bulk date fetch.
type Availability int

const (
	// AvailabilityUnchecked means no valid postal code has been looked up yet.
	AvailabilityUnchecked Availability = iota
	AvailabilityFound
	AvailabilityNone
	// AvailabilityUndetermined means the lookup failed. It is not the same
	// as "no dates".
	AvailabilityUndetermined
)

func (a Availability) String() string {
	switch a {
	case AvailabilityFound:
		return "available"
	case AvailabilityNone:
		return "none"
	case AvailabilityUndetermined:
		return "undetermined"
	default:
		return "unchecked"
	}
}

func (a Availability) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

const (
	msgNoDates      = "No delivery dates available for this zipcode."
	msgUndetermined = "Unable to check delivery dates. Please try again."
)

// DateCheck is the outcome of checking one date.
type DateCheck int

const (
	DateUnchecked DateCheck = iota
	DateAvailable
	DateUnavailable
	DateUnverified
)

// Message is the status line shown under the date input.
func (c DateCheck) Message() string {
	switch c {
	case DateAvailable:
		return "This date is available for delivery"
	case DateUnavailable:
		return "This date is not available for delivery. Please select an available date."
	case DateUnverified:
		return "Unable to verify date availability."
	default:
		return ""
	}
}

// Resolver keeps the available-date set for the current postal code.
type Resolver struct {
	remote Remote
	minLen int
	logg   *logger.Logger

	mu     sync.RWMutex
	postal string
	dates  []Date
	state  Availability
}

func NewResolver(remote Remote, minPostalLength int, logg *logger.Logger) (*Resolver, error) {
	if remote == nil {
		return nil, fmt.Errorf("delivery remote required")
	}
	if minPostalLength <= 0 {
		return nil, fmt.Errorf("min postal length must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Resolver{remote: remote, minLen: minPostalLength, logg: logg}, nil
}

// ValidPostal reports whether postal is long enough to look up.
func (r *Resolver) ValidPostal(postal string) bool {
	return len(strings.TrimSpace(postal)) >= r.minLen
}

// SetPostalCode drops the cached set when the postal code changes.
func (r *Resolver) SetPostalCode(postal string) {
	postal = strings.TrimSpace(postal)
	r.mu.Lock()
	defer r.mu.Unlock()
	if postal != r.postal {
		r.postal = postal
		r.dates = nil
		r.state = AvailabilityUnchecked
	}
}

// FetchAvailableDates loads the ordered date list for postal. Short postal
// codes clear the set without a remote call. A remote failure leaves the
// resolver in AvailabilityUndetermined and returns the error.
func (r *Resolver) FetchAvailableDates(ctx context.Context, postal string) ([]Date, error) {
	postal = strings.TrimSpace(postal)
	r.SetPostalCode(postal)
	if !r.ValidPostal(postal) {
		return nil, nil
	}
	ctx = r.logg.WithField(ctx, "zipcode", postal)

	raw, err := r.remote.CheckDates(ctx, postal)
	if err != nil {
		r.logg.Error(ctx, "check delivery dates failed", err)
		r.apply(postal, nil, AvailabilityUndetermined)
		return nil, err
	}

	dates := make([]Date, 0, len(raw))
	for _, s := range raw {
		d, err := ParseGateway(s)
		if err != nil {
			r.logg.Warn(r.logg.WithField(ctx, "date", s), "skipping unparseable delivery date")
			continue
		}
		dates = append(dates, d)
	}
	state := AvailabilityFound
	if len(dates) == 0 {
		state = AvailabilityNone
	}
	r.apply(postal, dates, state)
	return append([]Date(nil), dates...), nil
}

// apply stores a fetch result unless the postal code moved on meanwhile.
func (r *Resolver) apply(postal string, dates []Date, state Availability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.postal != postal {
		return
	}
	r.dates = dates
	r.state = state
}

// IsDateAvailable answers from the cached set when it holds date, and asks
// the gateway otherwise.
func (r *Resolver) IsDateAvailable(ctx context.Context, postal string, date Date) (bool, error) {
	postal = strings.TrimSpace(postal)
	if postal == "" || date.IsZero() {
		return false, nil
	}
	if r.cached(postal, date) {
		return true, nil
	}
	ok, err := r.remote.CheckDate(ctx, postal, date.GatewayString())
	if err != nil {
		r.logg.Error(r.logg.WithFields(ctx, map[string]any{"zipcode": postal, "date": date.ISOString()}), "check delivery date failed", err)
		return false, err
	}
	return ok, nil
}

// Check wraps IsDateAvailable into a displayable outcome.
func (r *Resolver) Check(ctx context.Context, postal string, date Date) DateCheck {
	if strings.TrimSpace(postal) == "" || date.IsZero() {
		return DateUnchecked
	}
	ok, err := r.IsDateAvailable(ctx, postal, date)
	switch {
	case err != nil:
		return DateUnverified
	case ok:
		return DateAvailable
	default:
		return DateUnavailable
	}
}

func (r *Resolver) cached(postal string, date Date) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if postal != r.postal {
		return false
	}
	for _, d := range r.dates {
		if d.Equal(date) {
			return true
		}
	}
	return false
}

// Dates returns a copy of the cached set.
func (r *Resolver) Dates() []Date {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Date(nil), r.dates...)
}

func (r *Resolver) State() Availability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Bounds returns the first and last cached dates, used as the date input's
// min and max.
func (r *Resolver) Bounds() (first, last Date, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.dates) == 0 {
		return Date{}, Date{}, false
	}
	return r.dates[0], r.dates[len(r.dates)-1], true
}

// StatusMessage describes the last bulk fetch.
func (r *Resolver) StatusMessage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch r.state {
	case AvailabilityFound:
		return fmt.Sprintf("%d available delivery dates found.", len(r.dates))
	case AvailabilityNone:
		return msgNoDates
	case AvailabilityUndetermined:
		return msgUndetermined
	default:
		return ""
	}
}
