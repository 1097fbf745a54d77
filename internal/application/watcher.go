package application

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

const DefaultRefreshInterval = 30 * time.Second

// StatusQuery is the snapshot source polled by a Watcher.
type StatusQuery interface {
	Get(ctx context.Context, account common.Address) (AccountStatus, error)
}

// Watcher re-queries account status on a fixed interval until stopped.
type Watcher struct {
	query    StatusQuery
	interval time.Duration
	logger   log.Logger
}

func NewWatcher(query StatusQuery, interval time.Duration, logger log.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = log.Root()
	}

	return &Watcher{query: query, interval: interval, logger: logger}
}

// WatchHandle is bound to one running watch loop.
type WatchHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the loop and waits for it to exit. No callback runs after
// Stop returns.
func (h *WatchHandle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the loop has exited.
func (h *WatchHandle) Done() <-chan struct{} {
	return h.done
}

// Start queries immediately, then once per interval. onUpdate receives
// either a snapshot or the error of a failed query; the loop keeps running
// after errors.
func (w *Watcher) Start(ctx context.Context, account common.Address, onUpdate func(AccountStatus, error)) *WatchHandle {
	ctx, cancel := context.WithCancel(ctx)
	handle := &WatchHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(handle.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			status, err := w.query.Get(ctx, account)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				w.logger.Debug("Status refresh failed", "account", account, "err", err)
			}
			onUpdate(status, err)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return handle
}
