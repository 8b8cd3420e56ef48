package payout

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("runPool", func() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jobsFor := func(n int) []dispatchJob {
		jobs := make([]dispatchJob, n)
		for i := range jobs {
			jobs[i] = dispatchJob{WorkerID: int64(i + 1)}
		}
		return jobs
	}

	ginkgo.It("processes every job exactly once", func() {
		var mu sync.Mutex
		seen := map[int64]int{}
		left := runPool(context.Background(), 3, jobsFor(20), func(j dispatchJob) {
			mu.Lock()
			defer mu.Unlock()
			seen[j.WorkerID]++
		}, logger)

		gomega.Expect(left).To(gomega.BeEmpty())
		gomega.Expect(seen).To(gomega.HaveLen(20))
		for _, n := range seen {
			gomega.Expect(n).To(gomega.Equal(1))
		}
	})

	ginkgo.It("never runs more jobs at once than the pool size", func() {
		var running, peak int32
		runPool(context.Background(), 2, jobsFor(10), func(dispatchJob) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}, logger)

		gomega.Expect(atomic.LoadInt32(&peak)).To(gomega.BeNumerically("<=", 2))
	})

	ginkgo.It("returns the jobs it could not hand out after cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		left := runPool(ctx, 1, jobsFor(5), func(dispatchJob) {}, logger)
		gomega.Expect(left).To(gomega.HaveLen(5))
	})

	ginkgo.It("does nothing for an empty batch", func() {
		gomega.Expect(runPool(context.Background(), 4, nil, func(dispatchJob) { ginkgo.Fail("unexpected job") }, logger)).To(gomega.BeEmpty())
	})
})
