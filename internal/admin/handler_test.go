package admin_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/care-payments/internal/admin"
	"github.com/frahmantamala/care-payments/pkg/logger"
)

var _ = Describe("AdminHandler", func() {
	var (
		facade   *mockFacade
		router   *chi.Mux
		recorder *httptest.ResponseRecorder
	)

	get := func(target string) {
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	}

	BeforeEach(func() {
		facade = &mockFacade{}
		handler := admin.NewHandler(facade, time.UTC, logger.Discard())
		router = chi.NewRouter()
		router.Get("/clients/{id}/payments", handler.PaymentHistory)
		router.Get("/workers/{id}/payouts", handler.PayoutHistory)
		router.Get("/admin/stats", handler.DashboardStats)
		recorder = httptest.NewRecorder()
	})

	It("defaults the page size to 20", func() {
		get("/clients/7/payments")
		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(facade.lastPage).To(Equal(admin.Page{Limit: 20}))
	})

	It("accepts an explicit page", func() {
		get("/workers/5/payouts?limit=100&offset=40")
		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(facade.lastPage).To(Equal(admin.Page{Limit: 100, Offset: 40}))
	})

	It("rejects a limit above 100", func() {
		get("/clients/7/payments?limit=101")
		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects a negative offset", func() {
		get("/clients/7/payments?offset=-1")
		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
	})

	It("turns the inclusive to date into an exclusive bound", func() {
		get("/admin/stats?from=2024-03-01&to=2024-03-31")
		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(*facade.lastRange.From).To(Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
		Expect(*facade.lastRange.Until).To(Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
	})

	It("rejects an inverted range", func() {
		get("/admin/stats?from=2024-03-31&to=2024-03-01")
		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects a malformed date", func() {
		get("/admin/stats?from=March")
		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
	})
})
