package cart

import (
	"fmt"
	"net/http"

	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
)

const (
	msgCreateFailed   = "Error: Could not add item to cart. Please try again."
	msgMissingCode    = "Error: Product code is missing"
	msgNotFound       = "Product or cart not found. Please refresh and try again."
	msgSessionExpired = "Your cart session expired. A new cart will be started."
	addErrorMaxLen    = 100
)

// addFailure maps a failed remote add to the message shown to the shopper.
func addFailure(err error, productName string) error {
	status := pkgerrors.StatusOf(err)
	switch status {
	case http.StatusInternalServerError:
		msg := fmt.Sprintf("Unable to add %q to cart. The product may not be available for purchase or there was a server error.", productName)
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, msg).WithStatus(status)
	case http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, msgNotFound).WithStatus(status)
	}

	detail := err.Error()
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		detail = typed.Message()
	}
	if runes := []rune(detail); len(runes) > addErrorMaxLen {
		detail = string(runes[:addErrorMaxLen])
	}
	wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Error: "+detail)
	if status > 0 {
		wrapped = pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "Error: "+detail).WithStatus(status)
	}
	return wrapped
}
