package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// StatusError is a fatal HTTP response.
type StatusError struct {
	Location   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source %s: unexpected status %d %s", e.Location, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPOptions configures an HTTP source.
type HTTPOptions struct {
	Client *http.Client
	Header http.Header
}

// HTTP streams an archive with a GET request.
type HTTP struct {
	url  string
	opts HTTPOptions
}

// NewHTTP creates an HTTP source for url.
func NewHTTP(url string, optFns ...func(o *HTTPOptions)) *HTTP {
	opts := HTTPOptions{Client: http.DefaultClient}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &HTTP{url: url, opts: opts}
}

// Location implements Source.
func (s *HTTP) Location() string { return s.url }

// Open implements Source. 403 and 404 responses and unreachable hosts are
// reported as unavailable.
func (s *HTTP) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range s.opts.Header {
		req.Header[k] = v
	}

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		if unreachable(err) {
			return nil, 0, Unavailable(s.url, "unreachable", err)
		}
		return nil, 0, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, resp.ContentLength, nil
	case http.StatusNotFound, http.StatusForbidden:
		_ = resp.Body.Close()
		return nil, 0, Unavailable(s.url, resp.Status, nil)
	default:
		_ = resp.Body.Close()
		return nil, 0, &StatusError{Location: s.url, StatusCode: resp.StatusCode}
	}
}

// unreachable reports a name resolution or connect failure.
func unreachable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
