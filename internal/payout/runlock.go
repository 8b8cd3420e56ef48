package payout

import (
	"context"
	"sync"

	"github.com/frahmantamala/care-payments/internal"
)

// LocalRunLock serializes runs inside one process.
type LocalRunLock struct {
	mu sync.Mutex
}

func NewLocalRunLock() *LocalRunLock {
	return &LocalRunLock{}
}

func (l *LocalRunLock) Acquire(context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, internal.ErrPayoutRunInFlight
	}
	return l.mu.Unlock, nil
}
