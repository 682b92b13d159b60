package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	"github.com/angelmondragon/florist-storefront/pkg/types"
)

// NoDetails is reported by the proxy when the upstream sent nothing to relay.
const NoDetails = "No additional details"

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteRaw relays an upstream JSON document verbatim.
func WriteRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Printf(`{"level":"error","msg":"failed to write response","err":"%v"}`, err)
	}
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeStateConflict,
		pkgerrors.CodeIdempotency,
		pkgerrors.CodeRateLimit,
		pkgerrors.CodeDependency,
		pkgerrors.CodeUpstream,
		pkgerrors.CodePayment:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	logRequestError(ctx, logg, err)
	writeJSON(w, typed.Status(), payload)
}

// WriteProxyError renders the proxy's {error, message, details} envelope.
// The status is the one relayed from upstream, else the code's, else 500.
// withDetails adds the upstream body, or NoDetails when there is none.
func WriteProxyError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, title string, err error, withDetails bool) {
	if err == nil {
		err = errors.New("unknown error")
	}
	status := http.StatusInternalServerError
	message := err.Error()
	var details any
	if typed := pkgerrors.As(err); typed != nil {
		status = typed.Status()
		if m := typed.Message(); m != "" {
			message = m
		}
		details = typed.Details()
	}

	payload := types.ProxyErrorEnvelope{Error: title, Message: message}
	if withDetails {
		if details == nil || details == "" {
			details = NoDetails
		}
		payload.Details = details
	}

	logRequestError(ctx, logg, err)
	writeJSON(w, status, payload)
}

// WriteBadRequest is the proxy's bare 400 for a missing parameter.
func WriteBadRequest(w http.ResponseWriter, title string) {
	writeJSON(w, http.StatusBadRequest, types.ProxyErrorEnvelope{Error: title})
}

func logRequestError(ctx context.Context, logg *logger.Logger, err error) {
	if logg == nil {
		return
	}
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
	}
	if dump.Status > 0 {
		fields["upstream_status"] = dump.Status
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_message"] = dump.PGMessage
		fields["pg_table"] = dump.PGTable
		fields["pg_constraint"] = dump.PGConstraint
	}
	logg.Error(logg.WithFields(ctx, fields), "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
