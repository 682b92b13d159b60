package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
)

const maxQueryValueLen = 2048

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// QueryValue returns the trimmed, length-capped query parameter.
func QueryValue(r *http.Request, key string) string {
	return SanitizeString(r.URL.Query().Get(key), maxQueryValueLen)
}

// RequireQuery returns the values of keys in order, and false when any is
// blank.
func RequireQuery(r *http.Request, keys ...string) ([]string, bool) {
	values := make([]string, len(keys))
	for i, key := range keys {
		values[i] = QueryValue(r, key)
		if values[i] == "" {
			return nil, false
		}
	}
	return values, true
}
