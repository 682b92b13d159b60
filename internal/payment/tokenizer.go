package payment

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var expiryPattern = regexp.MustCompile(`^(\d{2})/(\d{2})$`)

// Card is raw card data as typed at checkout. It never leaves the tokenizer.
type Card struct {
	Number string
	Expiry string // MM/YY
	CVV    string
}

// Credentials authorize a tokenization request.
type Credentials struct {
	ClientKey  string
	APILoginID string
}

// Tokenizer turns card data into a one-time opaque token.
type Tokenizer interface {
	Tokenize(ctx context.Context, card Card, creds Credentials) (string, error)
}

// ValidExpiry reports whether expiry is MM/YY.
func ValidExpiry(expiry string) bool {
	return expiryPattern.MatchString(strings.TrimSpace(expiry))
}

// splitExpiry returns the month and four-digit year of an MM/YY expiry.
func splitExpiry(expiry string) (month, year string, err error) {
	m := expiryPattern.FindStringSubmatch(strings.TrimSpace(expiry))
	if m == nil {
		return "", "", fmt.Errorf("expiry %q is not MM/YY", expiry)
	}
	return m[1], "20" + m[2], nil
}

func cleanCardNumber(number string) string {
	return strings.Join(strings.Fields(number), "")
}
