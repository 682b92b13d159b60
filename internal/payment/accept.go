package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	defaultEndpoint   = "https://apitest.authorize.net/xml/v1/request.api"
	responseReadLimit = 64 << 10
	errorReadLimit    = 1024
)

// AcceptClient tokenizes cards with Authorize.Net's secure payment container,
// the same call Accept.js makes from the browser.
type AcceptClient struct {
	httpClient *http.Client
	endpoint   string
}

type Option func(*AcceptClient)

func WithHTTPClient(client *http.Client) Option {
	return func(c *AcceptClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithEndpoint(endpoint string) Option {
	return func(c *AcceptClient) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			c.endpoint = trimmed
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *AcceptClient) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func NewAcceptClient(opts ...Option) *AcceptClient {
	client := &AcceptClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   defaultEndpoint,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

type containerRequest struct {
	Request struct {
		MerchantAuthentication struct {
			Name      string `json:"name"`
			ClientKey string `json:"clientKey"`
		} `json:"merchantAuthentication"`
		RefID string `json:"refId,omitempty"`
		Data  struct {
			Type  string `json:"type"`
			ID    string `json:"id"`
			Token struct {
				CardNumber     string `json:"cardNumber"`
				ExpirationDate string `json:"expirationDate"`
				CardCode       string `json:"cardCode"`
			} `json:"token"`
		} `json:"data"`
	} `json:"securePaymentContainerRequest"`
}

// Tokenize returns opaqueData.dataValue. Processor rejections become
// PAYMENT_ERROR carrying the processor's messages.
func (c *AcceptClient) Tokenize(ctx context.Context, card Card, creds Credentials) (string, error) {
	if strings.TrimSpace(creds.ClientKey) == "" {
		return "", pkgerrors.New(pkgerrors.CodePayment, "Payment processor key is unavailable. Please try again.")
	}
	month, year, err := splitExpiry(card.Expiry)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Please enter card expiry in MM/YY format")
	}

	var req containerRequest
	req.Request.MerchantAuthentication.Name = creds.APILoginID
	req.Request.MerchantAuthentication.ClientKey = creds.ClientKey
	req.Request.RefID = strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	req.Request.Data.Type = "TOKEN"
	req.Request.Data.ID = uuid.NewString()
	req.Request.Data.Token.CardNumber = cleanCardNumber(card.Number)
	req.Request.Data.Token.ExpirationDate = month + year
	req.Request.Data.Token.CardCode = strings.TrimSpace(card.CVV)

	payload, err := json.Marshal(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal tokenization request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build tokenization request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute tokenization request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "tokenization request failed")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read tokenization response")
	}
	return parseTokenResponse(body)
}

func parseTokenResponse(body []byte) (string, error) {
	// The processor prefixes its JSON with a byte order mark.
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if !gjson.ValidBytes(body) {
		return "", pkgerrors.New(pkgerrors.CodePayment, "Failed to generate payment token. Invalid response from payment processor.")
	}
	doc := gjson.ParseBytes(body)

	if strings.EqualFold(doc.Get("messages.resultCode").String(), "Error") {
		var texts []string
		for _, m := range doc.Get("messages.message").Array() {
			if text := strings.TrimSpace(m.Get("text").String()); text != "" {
				texts = append(texts, text)
			}
		}
		return "", pkgerrors.New(pkgerrors.CodePayment, "Payment processing error: "+strings.Join(texts, ", ")).
			WithDetails(map[string]any{"codes": doc.Get("messages.message.#.code").Value()})
	}
	token := doc.Get("opaqueData.dataValue").String()
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodePayment, "Failed to generate payment token. Invalid response from payment processor.")
	}
	return token, nil
}
