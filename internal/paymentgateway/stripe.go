package paymentgateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/care-payments/internal"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/core/money"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeGateway implements Gateway on Stripe PaymentIntents and Connect.
type StripeGateway struct {
	api      *client.API
	currency string
	timeout  time.Duration
	logger   *slog.Logger
}

var _ Gateway = (*StripeGateway)(nil)

func NewStripeGateway(cfg Config, logger *slog.Logger) *StripeGateway {
	return NewStripeGatewayWithBackends(cfg, nil, logger)
}

// NewStripeGatewayWithBackends lets callers point the SDK at another API host.
func NewStripeGatewayWithBackends(cfg Config, backends *stripe.Backends, logger *slog.Logger) *StripeGateway {
	return &StripeGateway{
		api:      client.New(cfg.SecretKey, backends),
		currency: cfg.Currency,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

func (g *StripeGateway) Charge(ctx context.Context, req pgtypes.ChargeRequest) (*pgtypes.ChargeResult, error) {
	if req.Currency == "" {
		req.Currency = g.currency
	}
	if err := req.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	ctx, cancel := internal.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount.Cents()),
		Currency:      stripe.String(req.Currency),
		PaymentMethod: stripe.String(req.PaymentMethodRef),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.CustomerRef != "" {
		params.Customer = stripe.String(req.CustomerRef)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.logger.Warn("stripe payment intent failed",
			"error", err,
			"amount_cents", req.Amount.Cents(),
			"idempotency_key", req.IdempotencyKey)
		return nil, mapStripeError(ctx, "create payment intent", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return &pgtypes.ChargeResult{ProcessorRef: pi.ID, Status: pgtypes.ChargeSucceeded}, nil
	case stripe.PaymentIntentStatusProcessing:
		return &pgtypes.ChargeResult{ProcessorRef: pi.ID, Status: pgtypes.ChargeProcessing}, nil
	default:
		code, msg := "", ""
		if pi.LastPaymentError != nil {
			code = stripeErrorCode(pi.LastPaymentError)
			msg = pi.LastPaymentError.Msg
		}
		return nil, declinedError(code, msg, fmt.Errorf("payment intent %s ended in status %s", pi.ID, pi.Status))
	}
}

func (g *StripeGateway) Transfer(ctx context.Context, req pgtypes.TransferRequest) (*pgtypes.TransferResult, error) {
	if req.Currency == "" {
		req.Currency = g.currency
	}
	if err := req.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	ctx, cancel := internal.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.Amount.Cents()),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.DestinationAccount),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	t, err := g.api.Transfers.New(params)
	if err != nil {
		return nil, mapStripeError(ctx, "create transfer", err)
	}
	return &pgtypes.TransferResult{TransferRef: t.ID}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, req pgtypes.RefundRequest) (*pgtypes.RefundResult, error) {
	ctx, cancel := internal.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentRef),
	}
	if req.Amount != nil {
		params.Amount = stripe.Int64(req.Amount.Cents())
	}
	if req.Reason != "" {
		params.Reason = stripe.String(req.Reason)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddExpand("charge")
	params.Context = ctx

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, mapStripeError(ctx, "create refund", err)
	}

	return refundResultFrom(r), nil
}

func refundResultFrom(r *stripe.Refund) *pgtypes.RefundResult {
	result := &pgtypes.RefundResult{
		RefundRef: r.ID,
		Status:    string(r.Status),
		Amount:    money.FromCents(r.Amount),
	}
	if r.Charge != nil {
		result.FullyRefunded = r.Charge.Refunded || (r.Charge.Amount > 0 && r.Charge.AmountRefunded >= r.Charge.Amount)
	}
	return result
}

func (g *StripeGateway) CreateAccount(ctx context.Context, req pgtypes.CreateAccountRequest) (*pgtypes.Account, error) {
	ctx, cancel := internal.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(req.Email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	if req.Country != "" {
		params.Country = stripe.String(req.Country)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	acct, err := g.api.Accounts.New(params)
	if err != nil {
		return nil, mapStripeError(ctx, "create account", err)
	}
	return accountFrom(acct), nil
}

func (g *StripeGateway) RetrieveAccount(ctx context.Context, accountID string) (*pgtypes.Account, error) {
	ctx, cancel := internal.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := g.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, mapStripeError(ctx, "retrieve account", err)
	}
	return accountFrom(acct), nil
}

func accountFrom(acct *stripe.Account) *pgtypes.Account {
	return &pgtypes.Account{
		ID:               acct.ID,
		DetailsSubmitted: acct.DetailsSubmitted,
		PayoutsEnabled:   acct.PayoutsEnabled,
		ChargesEnabled:   acct.ChargesEnabled,
	}
}

func (g *StripeGateway) CreateAccountLink(ctx context.Context, req pgtypes.AccountLinkRequest) (*pgtypes.AccountLink, error) {
	ctx, cancel := internal.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.AccountLinkParams{
		Account:    stripe.String(req.AccountID),
		RefreshURL: stripe.String(req.RefreshURL),
		ReturnURL:  stripe.String(req.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		return nil, mapStripeError(ctx, "create account link", err)
	}
	return &pgtypes.AccountLink{URL: link.URL, ExpiresAt: time.Unix(link.ExpiresAt, 0).UTC()}, nil
}

func (g *StripeGateway) RetrieveBalance(ctx context.Context) (*pgtypes.Balance, error) {
	ctx, cancel := internal.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.BalanceParams{}
	params.Context = ctx

	b, err := g.api.Balance.Get(params)
	if err != nil {
		return nil, mapStripeError(ctx, "retrieve balance", err)
	}

	out := &pgtypes.Balance{}
	for _, a := range b.Available {
		out.Available = append(out.Available, pgtypes.BalanceAmount{Amount: money.FromCents(a.Amount), Currency: string(a.Currency)})
	}
	for _, a := range b.Pending {
		out.Pending = append(out.Pending, pgtypes.BalanceAmount{Amount: money.FromCents(a.Amount), Currency: string(a.Currency)})
	}
	return out, nil
}

func (g *StripeGateway) ListPayments(ctx context.Context, req pgtypes.ListPaymentsRequest) (*pgtypes.PaymentList, error) {
	ctx, cancel := internal.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentListParams{Customer: stripe.String(req.CustomerRef)}
	applyListParams(&params.ListParams, req.Limit, req.StartingAfter)
	params.Context = ctx

	out := &pgtypes.PaymentList{}
	it := g.api.PaymentIntents.List(params)
	for it.Next() {
		pi := it.PaymentIntent()
		out.Data = append(out.Data, pgtypes.ProcessorPayment{
			Ref:      pi.ID,
			Amount:   money.FromCents(pi.Amount),
			Currency: string(pi.Currency),
			Status:   string(pi.Status),
			Created:  time.Unix(pi.Created, 0).UTC(),
			Metadata: pi.Metadata,
		})
	}
	if err := it.Err(); err != nil {
		return nil, mapStripeError(ctx, "list payment intents", err)
	}
	if meta := it.Meta(); meta != nil {
		out.HasMore = meta.HasMore
	}
	return out, nil
}

func (g *StripeGateway) ListTransfers(ctx context.Context, req pgtypes.ListTransfersRequest) (*pgtypes.TransferList, error) {
	ctx, cancel := internal.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.TransferListParams{Destination: stripe.String(req.DestinationAccount)}
	applyListParams(&params.ListParams, req.Limit, req.StartingAfter)
	params.Context = ctx

	out := &pgtypes.TransferList{}
	it := g.api.Transfers.List(params)
	for it.Next() {
		t := it.Transfer()
		dest := ""
		if t.Destination != nil {
			dest = t.Destination.ID
		}
		out.Data = append(out.Data, pgtypes.ProcessorTransfer{
			Ref:         t.ID,
			Amount:      money.FromCents(t.Amount),
			Currency:    string(t.Currency),
			Destination: dest,
			Reversed:    t.Reversed,
			Created:     time.Unix(t.Created, 0).UTC(),
			Metadata:    t.Metadata,
		})
	}
	if err := it.Err(); err != nil {
		return nil, mapStripeError(ctx, "list transfers", err)
	}
	if meta := it.Meta(); meta != nil {
		out.HasMore = meta.HasMore
	}
	return out, nil
}

// applyListParams fetches a single page so pagination stays with the caller.
func applyListParams(lp *stripe.ListParams, limit int, startingAfter string) {
	if limit > 0 {
		lp.Limit = stripe.Int64(int64(limit))
	}
	if startingAfter != "" {
		lp.StartingAfter = stripe.String(startingAfter)
	}
	lp.Single = true
}

func stripeErrorCode(se *stripe.Error) string {
	if se.DeclineCode != "" {
		return string(se.DeclineCode)
	}
	return string(se.Code)
}

func mapStripeError(ctx context.Context, op string, err error) *internal.AppError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return transportError(op, ctxErr)
	}

	var se *stripe.Error
	if !errors.As(err, &se) {
		return transportError(op, err)
	}

	cause := fmt.Errorf("%s: %w", op, err)
	switch {
	case se.Type == stripe.ErrorTypeCard:
		return declinedError(stripeErrorCode(se), se.Msg, cause)
	case se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= 500 || se.Type == stripe.ErrorTypeAPI:
		return unavailableError(cause)
	default:
		return rejectedError(string(se.Code), cause)
	}
}
