package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultQueueSize = 1024

type persistJob struct {
	name string
	fn   func(ctx context.Context) error
}

// Persister runs store writes on a single background goroutine so that registry
// mutation and relay dispatch never wait on I/O. Jobs run in FIFO order.
type Persister struct {
	jobs    chan persistJob
	timeout time.Duration
}

func NewPersister(size int) *Persister {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Persister{jobs: make(chan persistJob, size), timeout: 5 * time.Second}
}

// Enqueue never blocks. A full queue drops the job; persistence is best effort.
func (p *Persister) Enqueue(name string, fn func(ctx context.Context) error) bool {
	select {
	case p.jobs <- persistJob{name: name, fn: fn}:
		return true
	default:
		log.Error().Str("module", "app.persist").Str("job", name).Msg("persist queue full, dropping write")
		return false
	}
}

// Flush blocks until every job enqueued before it has run, or ctx is done.
func (p *Persister) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case p.jobs <- persistJob{name: "flush", fn: func(context.Context) error { close(done); return nil }}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is done, then runs what is already buffered.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case j := <-p.jobs:
			p.exec(context.WithoutCancel(ctx), j)
		}
	}
}

func (p *Persister) drain() {
	for {
		select {
		case j := <-p.jobs:
			p.exec(context.Background(), j)
		default:
			return
		}
	}
}

func (p *Persister) exec(parent context.Context, j persistJob) {
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()
	if err := j.fn(ctx); err != nil {
		log.Error().Err(err).Str("module", "app.persist").Str("job", j.name).Msg("persist failed")
	}
}
