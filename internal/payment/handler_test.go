package payment_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	"github.com/frahmantamala/care-payments/internal/core/money"
	paymentPkg "github.com/frahmantamala/care-payments/internal/payment"
	"github.com/frahmantamala/care-payments/pkg/logger"
)

func chargeRequest(target string, body []byte, actor string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req = req.WithContext(internal.ContextWithActor(req.Context(), actor))
	}
	return req
}

var _ = Describe("PaymentHandler", func() {
	var (
		service  *mockPaymentService
		router   *chi.Mux
		recorder *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		service = &mockPaymentService{
			receipt: &paymentPkg.Receipt{
				PaymentID:    1,
				BookingID:    42,
				Amount:       money.FromCents(15000),
				ProcessorRef: "pi_1",
				Status:       ledger.PaymentSucceeded,
			},
		}
		handler := paymentPkg.NewHandler(service, logger.Discard())
		router = chi.NewRouter()
		router.Post("/bookings/{id}/charge", handler.ChargeBooking)
		recorder = httptest.NewRecorder()
	})

	Describe("ChargeBooking", func() {
		It("parses dollars and returns the receipt", func() {
			body, _ := json.Marshal(map[string]interface{}{"amount": "150.00", "payment_method_id": "pm_card"})
			router.ServeHTTP(recorder, chargeRequest("/bookings/42/charge", body, "admin-1"))

			Expect(recorder.Code).To(Equal(http.StatusCreated))
			Expect(service.lastIn.BookingID).To(Equal(int64(42)))
			Expect(service.lastIn.Amount).To(Equal(money.FromCents(15000)))
			Expect(service.lastIn.Actor).To(Equal("admin-1"))

			var resp map[string]interface{}
			Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["processor_payment_ref"]).To(Equal("pi_1"))
			Expect(resp["amount_cents"]).To(BeNumerically("==", 15000))
		})

		It("accepts a numeric amount", func() {
			body := []byte(`{"amount": 99.5, "payment_method_id": "pm_card"}`)
			router.ServeHTTP(recorder, chargeRequest("/bookings/42/charge", body, "admin-1"))

			Expect(recorder.Code).To(Equal(http.StatusCreated))
			Expect(service.lastIn.Amount).To(Equal(money.FromCents(9950)))
		})

		It("requires an authenticated actor", func() {
			body := []byte(`{"amount": "150.00", "payment_method_id": "pm_card"}`)
			router.ServeHTTP(recorder, chargeRequest("/bookings/42/charge", body, ""))
			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects a malformed booking id", func() {
			body := []byte(`{"amount": "150.00", "payment_method_id": "pm_card"}`)
			router.ServeHTTP(recorder, chargeRequest("/bookings/abc/charge", body, "admin-1"))
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects amounts with more than two decimals", func() {
			body := []byte(`{"amount": "1.005", "payment_method_id": "pm_card"}`)
			router.ServeHTTP(recorder, chargeRequest("/bookings/42/charge", body, "admin-1"))
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps a conflict to 409", func() {
			service.err = internal.ErrBookingAlreadyPaid
			body := []byte(`{"amount": "150.00", "payment_method_id": "pm_card"}`)
			router.ServeHTTP(recorder, chargeRequest("/bookings/42/charge", body, "admin-1"))

			Expect(recorder.Code).To(Equal(http.StatusConflict))
			Expect(recorder.Body.String()).To(ContainSubstring(string(internal.ErrCodeBookingAlreadyPaid)))
		})

		It("maps processor failures to 502 with the safe message", func() {
			service.err = internal.NewGatewayError("Your card was declined.", internal.ErrCodeGatewayDeclined, false, nil)
			body := []byte(`{"amount": "150.00", "payment_method_id": "pm_card"}`)
			router.ServeHTTP(recorder, chargeRequest("/bookings/42/charge", body, "admin-1"))

			Expect(recorder.Code).To(Equal(http.StatusBadGateway))
			Expect(recorder.Body.String()).To(ContainSubstring("Your card was declined."))
		})
	})
})
