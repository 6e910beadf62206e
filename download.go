package stagefetch

import (
	"context"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/stagefetch/source"
)

// fetcherCore holds the parts of a Fetcher that do not depend on the record
// and label types.
type fetcherCore struct {
	baseDir string
	splits  []string
	sources []source.Source
	opts    options
}

// download tries every source in order and returns the first archive that
// was downloaded completely. The caller owns the returned temp file.
func (f *fetcherCore) download(ctx context.Context, log *Logger) (*os.File, source.Source, int64, error) {
	if len(f.sources) == 0 {
		return nil, nil, 0, ErrNoSources
	}

	var lastErr error
	for _, src := range f.sources {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, err
		}
		tmp, n, err := f.downloadFrom(ctx, src, log)
		f.opts.metricsCollector.RecordAttempt(src.Location(), err)
		if err == nil {
			log.LogAttempt(ctx, src.Location(), false, nil)
			return tmp, src, n, nil
		}
		if source.IsUnavailable(err) {
			log.LogAttempt(ctx, src.Location(), true, err)
			lastErr = err
			continue
		}
		log.LogAttempt(ctx, src.Location(), false, err)
		return nil, nil, 0, &SourceError{Location: src.Location(), cause: err}
	}
	return nil, nil, 0, lastErr
}

// downloadFrom streams one source into a new temp file. On failure the temp
// file is closed and removed.
func (f *fetcherCore) downloadFrom(ctx context.Context, src source.Source, log *Logger) (_ *os.File, _ int64, err error) {
	tmp, err := os.CreateTemp(f.opts.tempDir, "stagefetch-*.part")
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	start := time.Now()
	p := &progress{}

	var (
		body  io.ReadCloser
		total int64 = -1
	)
	d, ranged := src.(source.Downloader)
	if !ranged || f.opts.rateLimit > 0 {
		body, total, err = src.Open(ctx)
		if err != nil {
			return nil, 0, err
		}
		defer body.Close()
	}

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		if body == nil {
			_, err := d.Download(gctx, &countingWriterAt{w: tmp, p: p})
			return err
		}
		r := &ctxReader{ctx: gctx, r: body, limiter: newLimiter(f.opts.rateLimit)}
		_, err := io.Copy(io.MultiWriter(tmp, p), r)
		return err
	})
	g.Go(func() error {
		return f.report(gctx, done, src.Location(), p, total, func() {
			if body != nil {
				_ = body.Close()
			}
		})
	})

	err = g.Wait()
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil && total >= 0 && p.Load() != total {
		err = io.ErrUnexpectedEOF
	}
	if err == nil {
		err = tmp.Sync()
	}
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}

	f.opts.metricsCollector.RecordDownload(p.Load(), time.Since(start), err)
	log.LogDownload(ctx, src.Location(), p.Load(), time.Since(start), err)
	if err != nil {
		return nil, 0, err
	}
	return tmp, p.Load(), nil
}
