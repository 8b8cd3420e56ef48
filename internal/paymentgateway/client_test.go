package paymentgateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/care-payments/internal"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/core/money"
	"github.com/frahmantamala/care-payments/internal/paymentgateway"
	"github.com/frahmantamala/care-payments/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		client   *paymentgateway.Client
		lastReq  *http.Request
		lastBody map[string]interface{}
	)

	BeforeEach(func() {
		lastReq = nil
		lastBody = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastReq = r
			if r.Body != nil {
				_ = json.NewDecoder(r.Body).Decode(&lastBody)
			}
			handler(w, r)
		}))
		client = paymentgateway.NewClient(paymentgateway.Config{
			APIURL:   server.URL,
			APIKey:   "sk_test",
			Currency: "usd",
			Timeout:  2 * time.Second,
		}, logger.Discard())
	})

	AfterEach(func() {
		server.Close()
	})

	writeJSON := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	Describe("Charge", func() {
		It("sends the charge with idempotency key and returns the processor ref", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"data": map[string]interface{}{"id": "ch_123", "status": "succeeded"},
				})
			}

			res, err := client.Charge(context.Background(), pgtypes.ChargeRequest{
				Amount:           money.Money(15000),
				PaymentMethodRef: "pm_card",
				IdempotencyKey:   "idem-1",
				Metadata:         map[string]string{"booking_id": "42"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ProcessorRef).To(Equal("ch_123"))
			Expect(res.Status).To(Equal(pgtypes.ChargeSucceeded))

			Expect(lastReq.URL.Path).To(Equal("/v1/charges"))
			Expect(lastReq.Header.Get("Idempotency-Key")).To(Equal("idem-1"))
			Expect(lastReq.Header.Get("Authorization")).To(Equal("Bearer sk_test"))
			Expect(lastBody["amount"]).To(BeNumerically("==", 15000))
			Expect(lastBody["currency"]).To(Equal("usd"))
		})

		It("maps a 402 to a non-retryable decline carrying the processor message", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusPaymentRequired, pgtypes.APIErrorResponse{Error: pgtypes.APIError{
					Type: "card_error", Code: "insufficient_funds", Message: "Your card has insufficient funds.",
				}})
			}

			_, err := client.Charge(context.Background(), pgtypes.ChargeRequest{Amount: 15000, PaymentMethodRef: "pm_card"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeGateway))
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayDeclined))
			Expect(appErr.Message).To(Equal("Your card has insufficient funds."))
			Expect(appErr.Retryable).To(BeFalse())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadGateway))
		})

		It("treats a failed status body as a decline", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"data": map[string]interface{}{"id": "ch_9", "status": "failed", "failure_code": "card_declined", "failure_message": "Card declined"},
				})
			}

			_, err := client.Charge(context.Background(), pgtypes.ChargeRequest{Amount: 15000, PaymentMethodRef: "pm_card"})
			Expect(internal.IsType(err, internal.ErrorTypeGateway)).To(BeTrue())
			Expect(err.(*internal.AppError).Message).To(Equal("Card declined"))
		})

		It("hides server errors behind a generic retryable message", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusInternalServerError, pgtypes.APIErrorResponse{Error: pgtypes.APIError{Message: "db exploded"}})
			}

			_, err := client.Charge(context.Background(), pgtypes.ChargeRequest{Amount: 15000, PaymentMethodRef: "pm_card"})
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayUnavailable))
			Expect(appErr.Retryable).To(BeTrue())
			Expect(appErr.Message).NotTo(ContainSubstring("db exploded"))
		})

		It("maps a deadline to a retryable timeout", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(500 * time.Millisecond):
				}
			}
			client = paymentgateway.NewClient(paymentgateway.Config{
				APIURL: server.URL, Currency: "usd", Timeout: 50 * time.Millisecond,
			}, logger.Discard())

			_, err := client.Charge(context.Background(), pgtypes.ChargeRequest{Amount: 15000, PaymentMethodRef: "pm_card"})
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayTimeout))
			Expect(appErr.Retryable).To(BeTrue())
		})

		It("rejects invalid requests before calling the processor", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}
			_, err := client.Charge(context.Background(), pgtypes.ChargeRequest{Amount: 15000})
			Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
			Expect(lastReq).To(BeNil())
		})
	})

	Describe("Refund", func() {
		It("decodes the gateway-reported amount and full-refund flag", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"data": map[string]interface{}{"id": "re_1", "status": "succeeded", "amount": 4000, "fully_refunded": false},
				})
			}
			amount := money.Money(4000)
			res, err := client.Refund(context.Background(), pgtypes.RefundRequest{PaymentRef: "ch_123", Amount: &amount, Reason: "requested_by_customer"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RefundRef).To(Equal("re_1"))
			Expect(res.Amount).To(Equal(money.Money(4000)))
			Expect(res.FullyRefunded).To(BeFalse())
			Expect(lastBody["reason"]).To(Equal("requested_by_customer"))
		})
	})

	Describe("Accounts", func() {
		It("retrieves an account", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"data": map[string]interface{}{"id": "acct_1", "details_submitted": true, "payouts_enabled": false},
				})
			}
			acct, err := client.RetrieveAccount(context.Background(), "acct_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(acct.DetailsSubmitted).To(BeTrue())
			Expect(acct.PayoutsEnabled).To(BeFalse())
			Expect(lastReq.URL.Path).To(Equal("/v1/accounts/acct_1"))
		})

		It("maps other 4xx responses to a rejection", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusNotFound, pgtypes.APIErrorResponse{Error: pgtypes.APIError{Type: "invalid_request_error", Code: "resource_missing"}})
			}
			_, err := client.RetrieveAccount(context.Background(), "acct_missing")
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayRejected))
			Expect(appErr.Retryable).To(BeFalse())
		})
	})

	Describe("Lists", func() {
		It("passes customer and paging to the payments list", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"data": []map[string]interface{}{
						{"id": "pi_2", "amount": 5000, "currency": "usd", "status": "succeeded", "created": "2024-01-02T10:00:00Z"},
					},
					"has_more": true,
				})
			}
			list, err := client.ListPayments(context.Background(), pgtypes.ListPaymentsRequest{CustomerRef: "cus_1", Limit: 10, StartingAfter: "pi_1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(list.HasMore).To(BeTrue())
			Expect(list.Data).To(HaveLen(1))
			Expect(list.Data[0].Amount).To(Equal(money.Money(5000)))

			Expect(lastReq.URL.Query().Get("customer")).To(Equal("cus_1"))
			Expect(lastReq.URL.Query().Get("limit")).To(Equal("10"))
			Expect(lastReq.URL.Query().Get("starting_after")).To(Equal("pi_1"))
		})

		It("filters transfers by destination", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{"data": []interface{}{}, "has_more": false})
			}
			_, err := client.ListTransfers(context.Background(), pgtypes.ListTransfersRequest{DestinationAccount: "acct_7"})
			Expect(err).NotTo(HaveOccurred())
			Expect(lastReq.URL.Path).To(Equal("/v1/transfers"))
			Expect(lastReq.URL.Query().Get("destination")).To(Equal("acct_7"))
		})
	})

	Describe("Balance", func() {
		It("sums available funds per currency", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"data": map[string]interface{}{
						"available": []map[string]interface{}{{"amount": 120000, "currency": "usd"}, {"amount": 500, "currency": "eur"}},
						"pending":   []map[string]interface{}{{"amount": 3000, "currency": "usd"}},
					},
				})
			}
			bal, err := client.RetrieveBalance(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(bal.AvailableIn("usd")).To(Equal(money.Money(120000)))
		})
	})
})

var _ = Describe("New", func() {
	It("selects the implementation by driver", func() {
		gw, err := paymentgateway.New(paymentgateway.Config{Driver: "http", APIURL: "http://localhost"}, logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(gw).To(BeAssignableToTypeOf(&paymentgateway.Client{}))

		gw, err = paymentgateway.New(paymentgateway.Config{Driver: "stripe", SecretKey: "sk_test"}, logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(gw).To(BeAssignableToTypeOf(&paymentgateway.StripeGateway{}))

		_, err = paymentgateway.New(paymentgateway.Config{Driver: "paypal"}, logger.Discard())
		Expect(err).To(HaveOccurred())
	})
})
