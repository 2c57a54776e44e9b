package core

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// optimizationTick is the cadence at which the pipeline polls every
// registered shard's optimizers for candidate work. It is independent of
// flush_interval_sec, which governs the separate forced-flush timer.
const optimizationTick = 2 * time.Second

type pipelineShard struct {
	key        string
	shard      *Shard
	optimizers []Optimizer
}

// Pipeline is C6: the bounded worker pool that walks every registered
// shard's optimizers in priority order (merge, indexing, vacuum) and
// dispatches at most one rewrite per shard per tick, plus an independent
// flush_interval_sec ticker.
type Pipeline struct {
	log *logrus.Logger
	sem *semaphore.Weighted

	flushInterval time.Duration

	mu     sync.Mutex
	shards map[string]*pipelineShard
	stops  map[string]chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline builds a Pipeline bounded to maxThreads concurrent rewrites.
func NewPipeline(log *logrus.Logger, maxThreads uint64, flushInterval time.Duration) *Pipeline {
	if maxThreads == 0 {
		maxThreads = 1
	}
	return &Pipeline{
		log:           log,
		sem:           semaphore.NewWeighted(int64(maxThreads)),
		flushInterval: flushInterval,
		shards:        make(map[string]*pipelineShard),
		stops:         make(map[string]chan struct{}),
	}
}

// Register adds a shard (keyed uniquely, e.g. "<collection>/<shard-index>")
// to the pipeline's poll set.
func (p *Pipeline) Register(key string, shard *Shard, optimizers []Optimizer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shards[key] = &pipelineShard{key: key, shard: shard, optimizers: optimizers}
}

// Unregister removes a shard, e.g. when its collection is deleted.
func (p *Pipeline) Unregister(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.shards, key)
}

// Start launches the optimization and flush loops. Start is idempotent only
// in the sense that calling it twice without Stop leaks goroutines — callers
// (NewToC) call it exactly once.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(2)
	go p.optimizeLoop(ctx)
	go p.flushLoop(ctx)
}

// Stop cancels both loops and waits for them and for every dispatched
// rewrite goroutine to return, so an already-running Optimize call is
// waited on until it finishes (its context is cancelled, which optimizers
// poll cooperatively).
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pipeline) optimizeLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(optimizationTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Pipeline) flushLoop(ctx context.Context) {
	defer p.wg.Done()
	if p.flushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flushAll()
		}
	}
}

func (p *Pipeline) flushAll() {
	p.mu.Lock()
	targets := make([]*pipelineShard, 0, len(p.shards))
	for _, s := range p.shards {
		targets = append(targets, s)
	}
	p.mu.Unlock()

	for _, s := range targets {
		if err := s.shard.Flush(); err != nil && p.log != nil {
			p.log.WithError(err).WithField("shard", s.key).Warn("forced flush failed")
		}
	}
}

// tick walks every registered shard once, dispatching at most one rewrite
// per shard: the first optimizer (in priority order) that reports a
// candidate wins the tick.
func (p *Pipeline) tick(ctx context.Context) {
	p.mu.Lock()
	targets := make([]*pipelineShard, 0, len(p.shards))
	for _, s := range p.shards {
		targets = append(targets, s)
	}
	p.mu.Unlock()

	for _, s := range targets {
		segments := s.shard.Segments()
		for _, opt := range s.optimizers {
			ids, ok := opt.Candidate(segments)
			if !ok {
				continue
			}
			p.dispatch(ctx, s, opt, ids)
			break
		}
	}
}

func (p *Pipeline) dispatch(ctx context.Context, s *pipelineShard, opt Optimizer, ids []SegmentID) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return
	}

	stop := make(chan struct{})
	p.mu.Lock()
	p.stops[s.key] = stop
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			p.mu.Lock()
			delete(p.stops, s.key)
			p.mu.Unlock()
		}()

		result, err := opt.Optimize(ctx, s.shard, ids, stop)
		if err != nil {
			if p.log != nil {
				p.log.WithError(err).WithFields(logrus.Fields{
					"shard":     s.key,
					"optimizer": opt.Name(),
				}).Warn("optimizer run failed")
			}
			return
		}
		zap.L().Sugar().Infow("segment published",
			"shard", s.key,
			"optimizer", opt.Name(),
			"segment", result.ID,
			"num_vectors", result.NumVectors,
		)
	}()
}

// CancelShard signals the in-flight rewrite (if any) for key to stop.
func (p *Pipeline) CancelShard(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stop, ok := p.stops[key]; ok {
		close(stop)
		delete(p.stops, key)
	}
}
