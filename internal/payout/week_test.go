package payout_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/care-payments/internal/payout"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("WeekEnding", func() {
	var newYork *time.Location

	BeforeEach(func() {
		var err error
		newYork, err = time.LoadLocation("America/New_York")
		Expect(err).NotTo(HaveOccurred())
	})

	It("defaults to the last full Monday..Sunday week", func() {
		now := time.Date(2024, time.January, 10, 15, 0, 0, 0, newYork)
		p := payout.WeekEnding(time.Time{}, now, newYork)
		Expect(p.Start).To(Equal(date(2024, time.January, 1)))
		Expect(p.End).To(Equal(date(2024, time.January, 7)))
	})

	It("treats a Monday run as paying the week that just ended", func() {
		now := time.Date(2024, time.January, 8, 6, 0, 0, 0, newYork)
		p := payout.WeekEnding(time.Time{}, now, newYork)
		Expect(p.End).To(Equal(date(2024, time.January, 7)))
	})

	It("uses the business timezone, not UTC, to find today", func() {
		// 02:00 UTC Monday is still Sunday evening in New York.
		now := time.Date(2024, time.January, 8, 2, 0, 0, 0, time.UTC)
		p := payout.WeekEnding(time.Time{}, now, newYork)
		Expect(p.End).To(Equal(date(2023, time.December, 31)))
	})

	It("ends an explicit period on the given date", func() {
		end := time.Date(2024, time.January, 7, 0, 0, 0, 0, newYork)
		p := payout.WeekEnding(end, time.Now(), newYork)
		Expect(p.Start).To(Equal(date(2024, time.January, 1)))
		Expect(p.End).To(Equal(date(2024, time.January, 7)))
		Expect(p.EndExclusive()).To(Equal(date(2024, time.January, 8)))
	})

	It("starts a mid-week period on that week's Monday", func() {
		end := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)
		p := payout.WeekEnding(end, time.Now(), time.UTC)
		Expect(p.Start).To(Equal(date(2024, time.January, 1)))
		Expect(p.End).To(Equal(date(2024, time.January, 3)))
		Expect(p.String()).To(Equal("2024-01-01..2024-01-03"))
	})
})

var _ = Describe("ParseWeekEnding", func() {
	It("returns zero for an empty value", func() {
		t, err := payout.ParseWeekEnding("", time.UTC)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.IsZero()).To(BeTrue())
	})

	It("rejects other formats", func() {
		_, err := payout.ParseWeekEnding("01/07/2024", time.UTC)
		Expect(err).To(HaveOccurred())
	})
})
