package esewa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/rentaride/rentaride-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://rc-epay.esewa.com.np"
	formPath                   = "/api/epay/main/v2/form"
	statusPath                 = "/api/epay/transaction/status/"
	responseBodyReadLimit      = 1024
	defaultVerifyRetries  uint = 3
)

// Transaction states reported by the gateway status endpoint.
const (
	StatusComplete     = "COMPLETE"
	StatusPending      = "PENDING"
	StatusCanceled     = "CANCELED"
	StatusNotFound     = "NOT_FOUND"
	StatusFullRefund   = "FULL_REFUND"
	StatusAmbiguous    = "AMBIGUOUS"
	StatusServiceFault = "SERVICE_IS_CURRENTLY_UNAVAILABLE"
)

// Client talks to the eSewa ePay v2 gateway: it builds signed redirect
// payloads and performs the authoritative server-to-server status check.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	productCode string
	signer      *Signer
	successURL  string
	failureURL  string
	maxRetries  uint
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the gateway base URL. Useful for the sandbox
// environment and tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithCallbackURLs overrides the redirect targets embedded in payment forms.
func WithCallbackURLs(successURL, failureURL string) Option {
	return func(c *Client) {
		if strings.TrimSpace(successURL) != "" {
			c.successURL = strings.TrimSpace(successURL)
		}
		if strings.TrimSpace(failureURL) != "" {
			c.failureURL = strings.TrimSpace(failureURL)
		}
	}
}

// WithVerifyRetries bounds how many times a transient status-check failure
// is retried before giving up.
func WithVerifyRetries(n uint) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// NewClient builds the gateway client for a merchant product code.
func NewClient(productCode, secretKey string, opts ...Option) (*Client, error) {
	code := strings.TrimSpace(productCode)
	if code == "" {
		return nil, fmt.Errorf("esewa product code is required")
	}
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("esewa secret key is required")
	}

	client := &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     defaultBaseURL,
		productCode: code,
		signer:      NewSigner(secretKey),
		maxRetries:  defaultVerifyRetries,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// ProductCode returns the merchant product code the client signs with.
func (c *Client) ProductCode() string {
	return c.productCode
}

// PaymentForm is the signed payload the browser auto-submits to the gateway.
type PaymentForm struct {
	Action string
	Fields map[string]string
}

// BuildPaymentForm assembles the outbound form for a payment attempt. The
// total amount is signed together with the transaction UUID and product code;
// the remaining fields ride along unsigned per the gateway protocol.
func (c *Client) BuildPaymentForm(transactionUUID string, totalAmount decimal.Decimal) (*PaymentForm, error) {
	uuid := strings.TrimSpace(transactionUUID)
	if uuid == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction uuid is required")
	}
	if !totalAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total amount must be positive")
	}

	amount := formatAmount(totalAmount)
	signature := c.signer.Sign(amount, uuid, c.productCode)

	return &PaymentForm{
		Action: strings.TrimRight(c.baseURL, "/") + formPath,
		Fields: map[string]string{
			"amount":                  amount,
			"tax_amount":              "0",
			"total_amount":            amount,
			"transaction_uuid":        uuid,
			"product_code":            c.productCode,
			"product_service_charge":  "0",
			"product_delivery_charge": "0",
			"success_url":             c.successURL,
			"failure_url":             c.failureURL,
			"signed_field_names":      SignedFieldNames,
			"signature":               signature,
		},
	}, nil
}

// CallbackPayload is the decoded success-redirect body. It identifies a
// transaction to re-check; it is never treated as proof of payment.
type CallbackPayload struct {
	TransactionUUID  string `json:"transaction_uuid"`
	TransactionCode  string `json:"transaction_code"`
	TotalAmount      string `json:"total_amount"`
	Status           string `json:"status"`
	ProductCode      string `json:"product_code"`
	SignedFieldNames string `json:"signed_field_names"`
	Signature        string `json:"signature"`
}

// DecodeCallback parses the base64 JSON blob the gateway appends to the
// success redirect. Both standard and URL-safe encodings are accepted.
func DecodeCallback(data string) (*CallbackPayload, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback data is required")
	}

	raw, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(trimmed)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode callback data")
	}

	var payload CallbackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse callback payload")
	}
	if strings.TrimSpace(payload.TransactionUUID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback payload missing transaction_uuid")
	}

	return &payload, nil
}

// StatusResult is the gateway's authoritative answer for a transaction.
type StatusResult struct {
	ProductCode     string
	TransactionUUID string
	TotalAmount     decimal.Decimal
	Status          string
	RefID           string
}

// Complete reports whether the gateway confirmed the payment.
func (r *StatusResult) Complete() bool {
	return r != nil && r.Status == StatusComplete
}

// VerifyTransaction performs the server-to-server status check for a
// transaction. Transport failures and gateway 5xx responses are retried with
// exponential backoff up to the configured bound; exhausting the retries
// returns a dependency error so callers can distinguish "could not reach the
// gateway" from a confirmed denial, which comes back as a non-COMPLETE
// StatusResult with a nil error.
func (c *Client) VerifyTransaction(ctx context.Context, transactionUUID string, totalAmount decimal.Decimal) (*StatusResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "esewa client not configured")
	}
	uuid := strings.TrimSpace(transactionUUID)
	if uuid == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction uuid is required")
	}

	query := url.Values{}
	query.Set("product_code", c.productCode)
	query.Set("total_amount", formatAmount(totalAmount))
	query.Set("transaction_uuid", uuid)
	endpoint := strings.TrimRight(c.baseURL, "/") + statusPath + "?" + query.Encode()

	var result *StatusResult
	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, attemptErr := c.fetchStatus(ctx, endpoint)
		if attemptErr != nil {
			return attemptErr
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "esewa status check failed")
	}

	return result, nil
}

func (c *Client) fetchStatus(ctx context.Context, endpoint string) (*StatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("execute status request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, retry.RetryableError(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var apiResp struct {
		ProductCode     string      `json:"product_code"`
		TransactionUUID string      `json:"transaction_uuid"`
		TotalAmount     json.Number `json:"total_amount"`
		Status          string      `json:"status"`
		RefID           string      `json:"ref_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	amount, err := parseGatewayAmount(apiResp.TotalAmount.String())
	if err != nil {
		return nil, fmt.Errorf("parse status total_amount: %w", err)
	}

	return &StatusResult{
		ProductCode:     apiResp.ProductCode,
		TransactionUUID: apiResp.TransactionUUID,
		TotalAmount:     amount,
		Status:          apiResp.Status,
		RefID:           apiResp.RefID,
	}, nil
}

// formatAmount renders a decimal the way the gateway signs it: no trailing
// zeros, no thousands separators.
func formatAmount(d decimal.Decimal) string {
	return d.String()
}

// parseGatewayAmount tolerates the comma-grouped amounts the status endpoint
// occasionally returns (e.g. "5,850.0").
func parseGatewayAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(cleaned)
}
