package refund_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/money"
	"github.com/frahmantamala/care-payments/internal/refund"
	"github.com/frahmantamala/care-payments/pkg/logger"
)

type mockRefundService struct {
	receipt *refund.Receipt
	err     error
	lastIn  refund.RefundInput
}

func (m *mockRefundService) Refund(_ context.Context, in refund.RefundInput) (*refund.Receipt, error) {
	m.lastIn = in
	if m.err != nil {
		return nil, m.err
	}
	return m.receipt, nil
}

var _ = Describe("RefundHandler", func() {
	var (
		service  *mockRefundService
		handler  *refund.Handler
		recorder *httptest.ResponseRecorder
	)

	post := func(body, actor string) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", bytes.NewBufferString(body))
		if actor != "" {
			req = req.WithContext(internal.ContextWithActor(req.Context(), actor))
		}
		handler.CreateRefund(recorder, req)
	}

	BeforeEach(func() {
		service = &mockRefundService{receipt: &refund.Receipt{RefundRef: "re_1", PaymentRef: "pi_1", Amount: money.FromCents(5000), Status: "succeeded"}}
		handler = refund.NewHandler(service, logger.Discard())
		recorder = httptest.NewRecorder()
	})

	It("parses an optional dollar amount", func() {
		post(`{"payment_ref": "pi_1", "amount": "50.00", "reason": "duplicate"}`, "admin-1")

		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(*service.lastIn.Amount).To(Equal(money.FromCents(5000)))
		Expect(service.lastIn.Reason).To(Equal("duplicate"))
		Expect(service.lastIn.Actor).To(Equal("admin-1"))
		Expect(recorder.Body.String()).To(ContainSubstring(`"refund_ref":"re_1"`))
	})

	It("leaves the amount nil for a full refund", func() {
		post(`{"payment_ref": "pi_1"}`, "admin-1")
		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(service.lastIn.Amount).To(BeNil())
	})

	It("includes the reconciliation warning in the response", func() {
		service.receipt.Warning = &internal.ReconciliationWarning{Code: refund.WarningUntrackedPayment, Message: "no ledger record", ProcessorRef: "pi_1"}
		post(`{"payment_ref": "pi_1"}`, "admin-1")

		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(recorder.Body.String()).To(ContainSubstring(refund.WarningUntrackedPayment))
	})

	It("requires an actor", func() {
		post(`{"payment_ref": "pi_1"}`, "")
		Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects a malformed amount", func() {
		post(`{"payment_ref": "pi_1", "amount": "ten"}`, "admin-1")
		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
	})

	It("maps a fully refunded payment to 409", func() {
		service.err = internal.ErrPaymentRefunded
		post(`{"payment_ref": "pi_1"}`, "admin-1")
		Expect(recorder.Code).To(Equal(http.StatusConflict))
	})
})
