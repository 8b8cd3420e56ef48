package payout_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/money"
	"github.com/frahmantamala/care-payments/internal/payout"
	"github.com/frahmantamala/care-payments/pkg/logger"
)

var _ = Describe("PayoutHandler", func() {
	var (
		engine   *mockEngine
		handler  *payout.Handler
		recorder *httptest.ResponseRecorder
	)

	post := func(body string) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/run", strings.NewReader(body))
		req = req.WithContext(internal.ContextWithActor(req.Context(), "admin-1"))
		handler.RunPayouts(recorder, req)
	}

	BeforeEach(func() {
		engine = &mockEngine{}
		handler = payout.NewHandler(engine, time.UTC, logger.Discard())
		recorder = httptest.NewRecorder()
	})

	It("runs last week for everyone when the body is empty", func() {
		post("")

		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(engine.Calls()).To(HaveLen(1))
		Expect(engine.Calls()[0].PeriodEnd.IsZero()).To(BeTrue())
		Expect(engine.Calls()[0].WorkerIDs).To(BeEmpty())
	})

	It("passes the requested week and worker filter through", func() {
		post(`{"week_ending": "2024-01-07", "worker_ids": [3, 5]}`)

		Expect(recorder.Code).To(Equal(http.StatusOK))
		call := engine.Calls()[0]
		Expect(call.PeriodEnd).To(Equal(date(2024, time.January, 7)))
		Expect(call.WorkerIDs).To(Equal([]int64{3, 5}))
	})

	It("returns the report with amounts in cents", func() {
		engine.report = &payout.Report{
			PeriodStart: "2024-01-01",
			PeriodEnd:   "2024-01-07",
			Successes:   []payout.Success{{WorkerID: 3, Amount: money.FromCents(12000), TransferRef: "tr_1", RecordCount: 2}},
			Errors:      []payout.Failure{},
			Skipped:     []payout.Skip{},
		}
		post(`{}`)

		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(recorder.Body.String()).To(ContainSubstring(`"transfer_ref":"tr_1"`))
		Expect(recorder.Body.String()).To(ContainSubstring(`"amount_cents":12000`))
	})

	It("rejects a malformed week_ending", func() {
		post(`{"week_ending": "01/07/2024"}`)

		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		Expect(recorder.Body.String()).To(ContainSubstring(string(internal.ErrCodeInvalidDate)))
		Expect(engine.Calls()).To(BeEmpty())
	})

	It("rejects non-positive worker ids", func() {
		post(`{"worker_ids": [0]}`)
		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		Expect(engine.Calls()).To(BeEmpty())
	})

	It("rejects a body that is not JSON", func() {
		post(`week_ending=2024-01-07`)
		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
	})

	It("maps a concurrent run to 409", func() {
		engine.err = internal.ErrPayoutRunInFlight
		post("")

		Expect(recorder.Code).To(Equal(http.StatusConflict))
		Expect(recorder.Body.String()).To(ContainSubstring(string(internal.ErrCodePayoutRunInProgress)))
	})
})
