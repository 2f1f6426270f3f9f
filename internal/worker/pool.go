package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("worker pool stopped")

// Action is one user action, e.g. a toggle followed by its reload.
type Action struct {
	ID   uuid.UUID
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs independent actions on a fixed set of goroutines. Actions on
// different workers overlap; nothing orders their completions.
type Pool struct {
	logger *zap.Logger
	count  int
	queue  chan Action
	done   <-chan struct{}
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool(logger *zap.Logger, count, queueSize int) *Pool {
	if count < 1 {
		count = 1
	}
	return &Pool{
		logger: logger,
		count:  count,
		queue:  make(chan Action, queueSize),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Debug("Starting worker pool", zap.Int("workers", p.count))
	p.done = ctx.Done()

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit queues fn and returns the id used to correlate its log lines.
// It blocks while the queue is full, until the pool's context ends.
func (p *Pool) Submit(name string, fn func(ctx context.Context) error) (uuid.UUID, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return uuid.Nil, ErrStopped
	}
	a := Action{ID: uuid.New(), Name: name, Run: fn}
	select {
	case p.queue <- a:
		return a.ID, nil
	case <-p.done:
		return uuid.Nil, ErrStopped
	}
}

// Stop rejects new actions, lets the workers finish what is queued and waits.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.logger.Debug("Stopping worker pool...")
	p.wg.Wait()
	p.logger.Debug("Worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(ctx, id, a)
		}
	}
}

func (p *Pool) run(ctx context.Context, workerID int, a Action) {
	log := p.logger.With(
		zap.Int("worker", workerID),
		zap.String("action_id", a.ID.String()),
		zap.String("action", a.Name),
	)
	log.Debug("Processing action")

	start := time.Now()
	if err := a.Run(ctx); err != nil {
		// the action already reported its failure, this only closes the trace
		log.Debug("Action failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	log.Debug("Action completed", zap.Duration("took", time.Since(start)))
}
