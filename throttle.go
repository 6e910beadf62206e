package stagefetch

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

const minBurst = 32 << 10

func newLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := int(bytesPerSec)
	if burst < minBurst {
		burst = minBurst
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	if c.limiter != nil {
		if b := c.limiter.Burst(); len(p) > b {
			p = p[:b]
		}
	}
	n, err := c.r.Read(p)
	if n > 0 && c.limiter != nil {
		if werr := c.limiter.WaitN(c.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
