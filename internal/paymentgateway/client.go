package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/care-payments/internal"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a REST processor API with Stripe-like semantics. It backs local sandboxes
// and processors without a Go SDK.
type Client struct {
	apiURL   string
	apiKey   string
	currency string
	timeout  time.Duration
	http     HTTPDoer
	logger   *slog.Logger
}

var _ Gateway = (*Client)(nil)

func NewClient(config Config, logger *slog.Logger) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout + time.Second}
	}
	return &Client{
		apiURL:   strings.TrimRight(config.APIURL, "/"),
		apiKey:   config.APIKey,
		currency: config.Currency,
		timeout:  config.Timeout,
		http:     httpClient,
		logger:   logger,
	}
}

type dataEnvelope struct {
	Data interface{} `json:"data"`
}

func (c *Client) Charge(ctx context.Context, req pgtypes.ChargeRequest) (*pgtypes.ChargeResult, error) {
	if req.Currency == "" {
		req.Currency = c.currency
	}
	if err := req.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	var result pgtypes.ChargeResult
	if err := c.do(ctx, http.MethodPost, "/v1/charges", req.IdempotencyKey, req, &dataEnvelope{Data: &result}); err != nil {
		c.logger.Warn("processor charge failed",
			"error", err,
			"amount_cents", req.Amount.Cents(),
			"idempotency_key", req.IdempotencyKey)
		return nil, err
	}

	if result.Status == pgtypes.ChargeFailed {
		return nil, declinedError(result.FailureCode, result.FailureMsg, fmt.Errorf("charge %s failed", result.ProcessorRef))
	}

	c.logger.Info("processor charge succeeded",
		"processor_ref", result.ProcessorRef,
		"status", result.Status,
		"amount_cents", req.Amount.Cents())
	return &result, nil
}

func (c *Client) Transfer(ctx context.Context, req pgtypes.TransferRequest) (*pgtypes.TransferResult, error) {
	if req.Currency == "" {
		req.Currency = c.currency
	}
	if err := req.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	var result pgtypes.TransferResult
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", req.IdempotencyKey, req, &dataEnvelope{Data: &result}); err != nil {
		return nil, err
	}

	c.logger.Info("processor transfer created",
		"transfer_ref", result.TransferRef,
		"destination", req.DestinationAccount,
		"amount_cents", req.Amount.Cents())
	return &result, nil
}

func (c *Client) Refund(ctx context.Context, req pgtypes.RefundRequest) (*pgtypes.RefundResult, error) {
	var result pgtypes.RefundResult
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", req.IdempotencyKey, req, &dataEnvelope{Data: &result}); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateAccount(ctx context.Context, req pgtypes.CreateAccountRequest) (*pgtypes.Account, error) {
	var account pgtypes.Account
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", "", req, &dataEnvelope{Data: &account}); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) RetrieveAccount(ctx context.Context, accountID string) (*pgtypes.Account, error) {
	var account pgtypes.Account
	path := "/v1/accounts/" + url.PathEscape(accountID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &dataEnvelope{Data: &account}); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) CreateAccountLink(ctx context.Context, req pgtypes.AccountLinkRequest) (*pgtypes.AccountLink, error) {
	var link pgtypes.AccountLink
	if err := c.do(ctx, http.MethodPost, "/v1/account_links", "", req, &dataEnvelope{Data: &link}); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *Client) RetrieveBalance(ctx context.Context) (*pgtypes.Balance, error) {
	var balance pgtypes.Balance
	if err := c.do(ctx, http.MethodGet, "/v1/balance", "", nil, &dataEnvelope{Data: &balance}); err != nil {
		return nil, err
	}
	return &balance, nil
}

func (c *Client) ListPayments(ctx context.Context, req pgtypes.ListPaymentsRequest) (*pgtypes.PaymentList, error) {
	q := url.Values{}
	q.Set("customer", req.CustomerRef)
	setPaging(q, req.Limit, req.StartingAfter)

	var list pgtypes.PaymentList
	if err := c.do(ctx, http.MethodGet, "/v1/payments?"+q.Encode(), "", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) ListTransfers(ctx context.Context, req pgtypes.ListTransfersRequest) (*pgtypes.TransferList, error) {
	q := url.Values{}
	q.Set("destination", req.DestinationAccount)
	setPaging(q, req.Limit, req.StartingAfter)

	var list pgtypes.TransferList
	if err := c.do(ctx, http.MethodGet, "/v1/transfers?"+q.Encode(), "", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func setPaging(q url.Values, limit int, startingAfter string) {
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if startingAfter != "" {
		q.Set("starting_after", startingAfter)
	}
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, out interface{}) error {
	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return internal.NewInternalError("failed to marshal processor request", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return internal.NewInternalError("failed to create processor request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transportError(method+" "+path, ctxErr)
		}
		return transportError(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return unavailableError(fmt.Errorf("decode %s %s response: %w", method, path, err))
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var apiErr pgtypes.APIErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &apiErr)

	cause := fmt.Errorf("processor returned status %d: %s", resp.StatusCode, apiErr.Error.Message)

	switch {
	case resp.StatusCode == http.StatusPaymentRequired || apiErr.Error.Type == "card_error":
		return declinedError(apiErr.Error.Code, apiErr.Error.Message, cause)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return unavailableError(cause)
	default:
		return rejectedError(apiErr.Error.Code, cause)
	}
}
