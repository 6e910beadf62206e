package stagefetch

import (
	"context"
	"io"
	"sync/atomic"
	"time"
)

// progress counts written bytes.
type progress struct {
	n atomic.Int64
}

func (p *progress) Write(b []byte) (int, error) {
	p.n.Add(int64(len(b)))
	return len(b), nil
}

func (p *progress) Load() int64 { return p.n.Load() }

// countingWriterAt tracks bytes written through an io.WriterAt.
type countingWriterAt struct {
	w io.WriterAt
	p *progress
}

func (c *countingWriterAt) WriteAt(b []byte, off int64) (int, error) {
	n, err := c.w.WriteAt(b, off)
	c.p.n.Add(int64(n))
	return n, err
}

// report logs progress every interval until done is closed or ctx ends.
// onCancel runs when ctx ends first.
func (f *fetcherCore) report(ctx context.Context, done <-chan struct{}, location string, p *progress, total int64, onCancel func()) error {
	var tick <-chan time.Time
	if f.opts.progressInterval > 0 {
		t := time.NewTicker(f.opts.progressInterval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			if onCancel != nil {
				onCancel()
			}
			return ctx.Err()
		case <-tick:
			f.opts.logger.LogProgress(ctx, location, p.Load(), total)
		}
	}
}
