package paymentgateway

import (
	"context"

	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/frahmantamala/care-payments/internal/paymentgateway"

// TracedGateway wraps a Gateway with one span per processor call.
type TracedGateway struct {
	next   Gateway
	tracer trace.Tracer
}

var _ Gateway = (*TracedGateway)(nil)

func NewTracedGateway(next Gateway, tp trace.TracerProvider) *TracedGateway {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracedGateway{next: next, tracer: tp.Tracer(tracerName)}
}

func (t *TracedGateway) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "processor."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *TracedGateway) Charge(ctx context.Context, req pgtypes.ChargeRequest) (res *pgtypes.ChargeResult, err error) {
	ctx, span := t.start(ctx, "charge", attribute.Int64("amount_cents", req.Amount.Cents()))
	defer func() { finish(span, err) }()
	res, err = t.next.Charge(ctx, req)
	if res != nil {
		span.SetAttributes(attribute.String("processor_ref", res.ProcessorRef))
	}
	return res, err
}

func (t *TracedGateway) Transfer(ctx context.Context, req pgtypes.TransferRequest) (res *pgtypes.TransferResult, err error) {
	ctx, span := t.start(ctx, "transfer",
		attribute.Int64("amount_cents", req.Amount.Cents()),
		attribute.String("destination", req.DestinationAccount))
	defer func() { finish(span, err) }()
	return t.next.Transfer(ctx, req)
}

func (t *TracedGateway) Refund(ctx context.Context, req pgtypes.RefundRequest) (res *pgtypes.RefundResult, err error) {
	ctx, span := t.start(ctx, "refund", attribute.String("payment_ref", req.PaymentRef))
	defer func() { finish(span, err) }()
	return t.next.Refund(ctx, req)
}

func (t *TracedGateway) CreateAccount(ctx context.Context, req pgtypes.CreateAccountRequest) (res *pgtypes.Account, err error) {
	ctx, span := t.start(ctx, "create_account")
	defer func() { finish(span, err) }()
	return t.next.CreateAccount(ctx, req)
}

func (t *TracedGateway) RetrieveAccount(ctx context.Context, accountID string) (res *pgtypes.Account, err error) {
	ctx, span := t.start(ctx, "retrieve_account", attribute.String("account_id", accountID))
	defer func() { finish(span, err) }()
	return t.next.RetrieveAccount(ctx, accountID)
}

func (t *TracedGateway) CreateAccountLink(ctx context.Context, req pgtypes.AccountLinkRequest) (res *pgtypes.AccountLink, err error) {
	ctx, span := t.start(ctx, "create_account_link", attribute.String("account_id", req.AccountID))
	defer func() { finish(span, err) }()
	return t.next.CreateAccountLink(ctx, req)
}

func (t *TracedGateway) RetrieveBalance(ctx context.Context) (res *pgtypes.Balance, err error) {
	ctx, span := t.start(ctx, "retrieve_balance")
	defer func() { finish(span, err) }()
	return t.next.RetrieveBalance(ctx)
}

func (t *TracedGateway) ListPayments(ctx context.Context, req pgtypes.ListPaymentsRequest) (res *pgtypes.PaymentList, err error) {
	ctx, span := t.start(ctx, "list_payments", attribute.Int("limit", req.Limit))
	defer func() { finish(span, err) }()
	return t.next.ListPayments(ctx, req)
}

func (t *TracedGateway) ListTransfers(ctx context.Context, req pgtypes.ListTransfersRequest) (res *pgtypes.TransferList, err error) {
	ctx, span := t.start(ctx, "list_transfers", attribute.String("destination", req.DestinationAccount))
	defer func() { finish(span, err) }()
	return t.next.ListTransfers(ctx, req)
}
