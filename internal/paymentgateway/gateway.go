package paymentgateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/care-payments/internal"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/google/uuid"
)

// Gateway is the processor boundary. Implementations return *internal.AppError of type
// GATEWAY_ERROR for processor-side failures.
type Gateway interface {
	Charge(ctx context.Context, req pgtypes.ChargeRequest) (*pgtypes.ChargeResult, error)
	Transfer(ctx context.Context, req pgtypes.TransferRequest) (*pgtypes.TransferResult, error)
	Refund(ctx context.Context, req pgtypes.RefundRequest) (*pgtypes.RefundResult, error)
	CreateAccount(ctx context.Context, req pgtypes.CreateAccountRequest) (*pgtypes.Account, error)
	RetrieveAccount(ctx context.Context, accountID string) (*pgtypes.Account, error)
	CreateAccountLink(ctx context.Context, req pgtypes.AccountLinkRequest) (*pgtypes.AccountLink, error)
	RetrieveBalance(ctx context.Context) (*pgtypes.Balance, error)
	ListPayments(ctx context.Context, req pgtypes.ListPaymentsRequest) (*pgtypes.PaymentList, error)
	ListTransfers(ctx context.Context, req pgtypes.ListTransfersRequest) (*pgtypes.TransferList, error)
}

type Config struct {
	Driver     string
	SecretKey  string
	APIURL     string
	APIKey     string
	Currency   string
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

func ConfigFrom(cfg internal.ProcessorConfig) Config {
	return Config{
		Driver:    cfg.Driver,
		SecretKey: cfg.SecretKey,
		APIURL:    cfg.APIURL,
		APIKey:    cfg.APIKey,
		Currency:  cfg.Currency,
		Timeout:   cfg.Timeout,
	}
}

const (
	msgUnavailable = "Payment processor is unavailable, please try again later"
	msgTimeout     = "Payment processor did not respond in time, please try again"
	msgRejected    = "Payment processor rejected the request"
)

func declinedError(code, message string, cause error) *internal.AppError {
	if message == "" {
		message = "Your payment was declined"
	}
	appErr := internal.NewGatewayError(message, internal.ErrCodeGatewayDeclined, false, cause)
	if code != "" {
		appErr.Details = map[string]string{"processor_code": code}
	}
	return appErr
}

func unavailableError(cause error) *internal.AppError {
	return internal.NewGatewayError(msgUnavailable, internal.ErrCodeGatewayUnavailable, true, cause)
}

func rejectedError(code string, cause error) *internal.AppError {
	appErr := internal.NewGatewayError(msgRejected, internal.ErrCodeGatewayRejected, false, cause)
	if code != "" {
		appErr.Details = map[string]string{"processor_code": code}
	}
	return appErr
}

// transportError maps network and deadline failures; timeouts are retryable.
func transportError(op string, err error) *internal.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return internal.NewGatewayError(msgTimeout, internal.ErrCodeGatewayTimeout, true, fmt.Errorf("%s: %w", op, err))
	}
	return unavailableError(fmt.Errorf("%s: %w", op, err))
}

// New builds the configured gateway.
func New(cfg Config, logger *slog.Logger) (Gateway, error) {
	switch cfg.Driver {
	case internal.ProcessorDriverStripe, "":
		return NewStripeGateway(cfg, logger), nil
	case internal.ProcessorDriverHTTP:
		return NewClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown processor driver %q", cfg.Driver)
	}
}

var idempotencyNamespace = uuid.MustParse("6f1b7c1e-3d0a-4a43-9d2c-5a7e2b8c9f10")

// IdempotencyKey derives a stable processor idempotency key from the parts that
// identify one money movement. Retrying the same movement yields the same key.
func IdempotencyKey(scope string, parts ...string) string {
	name := scope + ":" + strings.Join(parts, ":")
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}
