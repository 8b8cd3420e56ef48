package payout

import (
	"context"
	"log/slog"
	"sync"
)

type dispatchJob struct {
	WorkerID int64
}

type poolWorker struct {
	ID         int
	WorkerPool chan chan dispatchJob
	JobChannel chan dispatchJob
	Logger     *slog.Logger
}

func newPoolWorker(id int, workerPool chan chan dispatchJob, logger *slog.Logger) *poolWorker {
	return &poolWorker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan dispatchJob),
		Logger:     logger,
	}
}

func (w *poolWorker) start(quit <-chan struct{}, wg *sync.WaitGroup, process func(dispatchJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-quit:
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("payout worker processing job", "pool_worker", w.ID, "worker_id", job.WorkerID)
				process(job)
			case <-quit:
				w.Logger.Debug("payout worker shutting down", "pool_worker", w.ID)
				return
			}
		}
	}()
}

// runPool hands jobs to at most size concurrent workers and waits for them to finish.
// Jobs not handed out before ctx is done are returned.
func runPool(ctx context.Context, size int, jobs []dispatchJob, process func(dispatchJob), logger *slog.Logger) []dispatchJob {
	if size <= 0 {
		size = 1
	}
	if size > len(jobs) {
		size = len(jobs)
	}
	if size == 0 {
		return nil
	}

	workerPool := make(chan chan dispatchJob, size)
	quit := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < size; i++ {
		newPoolWorker(i, workerPool, logger).start(quit, &wg, process)
	}

	var undispatched []dispatchJob
dispatch:
	for i, job := range jobs {
		if ctx.Err() != nil {
			undispatched = jobs[i:]
			break
		}
		select {
		case jobChannel := <-workerPool:
			jobChannel <- job
		case <-ctx.Done():
			undispatched = jobs[i:]
			break dispatch
		}
	}

	close(quit)
	wg.Wait()
	return undispatched
}
