package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionPruner deletes expired sessions on a fixed interval in the background
type SessionPruner struct {
	sessions *SessionService
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	doneCh chan struct{}
}

func NewSessionPruner(sessions *SessionService, interval time.Duration, logger *zap.Logger) *SessionPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionPruner{sessions: sessions, interval: interval, logger: logger}
}

// Start launches the loop. Calling it twice is a no-op.
func (p *SessionPruner) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doneCh != nil || p.interval <= 0 {
		return
	}

	p.doneCh = make(chan struct{})
	p.wg.Add(1)
	go p.run(p.doneCh)
	p.logger.Info("session pruner started", zap.Duration("interval", p.interval))
}

// Stop halts the loop and waits for an in-flight prune to finish
func (p *SessionPruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doneCh == nil {
		return
	}

	close(p.doneCh)
	p.wg.Wait()
	p.doneCh = nil
	p.logger.Info("session pruner stopped")
}

func (p *SessionPruner) run(done <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.pruneOnce()
		}
	}
}

func (p *SessionPruner) pruneOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	n, err := p.sessions.Prune(ctx)
	if err != nil {
		p.logger.Error("session prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("expired sessions pruned", zap.Int64("deleted", n))
	}
}
