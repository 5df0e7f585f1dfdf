// Package proxy relays byte ranges of upstream media to clients without exposing the upstream URL.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/boxrelay/boxrelay/constant"
	"github.com/boxrelay/boxrelay/log"
	"github.com/boxrelay/boxrelay/metrics"
	"github.com/boxrelay/boxrelay/network"
)

// ErrConnect wraps failures to obtain an upstream response.
var ErrConnect = errors.New("upstream connection failed")

// ErrIdle is reported when the upstream stops sending for longer than the inactivity timeout.
var ErrIdle = errors.New("upstream idle")

// Target is a decoded proxy destination.
type Target struct {
	URL     string
	Referer string
}

// Options configure a Proxy.
type Options struct {
	// Timeout is the inactivity limit. It applies to connecting and to every chunk after that,
	// so it does not bound the length of a transfer.
	Timeout time.Duration
	// ChunkSize is the relay granularity.
	ChunkSize int
	// Network configures throwaway clients used when no session exists.
	Network network.Options
}

// Proxy opens upstream streams.
type Proxy struct {
	session func() *network.Session
	options Options
}

// New creates a proxy. session may return nil, in which case every stream gets its own client.
func New(session func() *network.Session, options Options) *Proxy {
	if options.ChunkSize <= 0 {
		options.ChunkSize = constant.ChunkSize
	}
	if options.Timeout <= 0 {
		options.Timeout = 30 * time.Second
	}
	return &Proxy{session: session, options: options}
}

// Open requests target from upstream, forwarding rangeHeader when it is not empty.
// The returned stream must be closed.
func (p *Proxy) Open(ctx context.Context, target Target, rangeHeader string) (*Stream, error) {
	return p.open(ctx, http.MethodGet, target, rangeHeader)
}

// Head is Open without a body.
func (p *Proxy) Head(ctx context.Context, target Target, rangeHeader string) (*Stream, error) {
	return p.open(ctx, http.MethodHead, target, rangeHeader)
}

func (p *Proxy) open(ctx context.Context, method string, target Target, rangeHeader string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	s := &Stream{
		cancel:  cancel,
		timeout: p.options.Timeout,
		chunk:   p.options.ChunkSize,
	}
	s.timer = time.AfterFunc(s.timeout, func() {
		s.idle.Store(true)
		cancel()
	})

	client, release := p.client()
	s.release = release

	req, err := http.NewRequestWithContext(ctx, method, target.URL, nil)
	if err != nil {
		s.stop()
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	req.Header.Set("User-Agent", constant.DesktopUserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "identity")
	if target.Referer != "" {
		req.Header.Set("Referer", target.Referer)
		if origin := originOf(target.Referer); origin != "" {
			req.Header.Set("Origin", origin)
		}
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		idle := s.idle.Load()
		s.stop()
		if idle {
			return nil, fmt.Errorf("%w: %w", ErrConnect, ErrIdle)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	s.timer.Reset(s.timeout)

	s.Status = resp.StatusCode
	s.Header = responseHeader(resp.Header)
	s.body = resp.Body

	metrics.ActiveStreams.Inc()
	log.Debugf("proxy %s upstream status=%d range=%q length=%s", method, resp.StatusCode, rangeHeader, resp.Header.Get("Content-Length"))

	return s, nil
}

// client returns the client for one stream and the function releasing it. The shared pool and
// cookies are used when a session exists. Neither client has a total timeout.
func (p *Proxy) client() (*http.Client, func()) {
	if p.session != nil {
		if session := p.session(); session != nil {
			return &http.Client{Transport: session.Transport(), Jar: session.Jar()}, func() {}
		}
	}

	opts := p.options.Network
	opts.Timeout = 0
	client := network.Fresh(opts)
	return client, client.CloseIdleConnections
}

func responseHeader(upstream http.Header) http.Header {
	h := http.Header{}
	h.Set("Content-Type", constant.MediaType)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-cache")
	for _, key := range []string{"Content-Length", "Content-Range"} {
		if value := upstream.Get(key); value != "" {
			h.Set(key, value)
		}
	}
	return h
}

func originOf(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// touchReader calls touch after every read that returned data.
type touchReader struct {
	r     io.Reader
	touch func()
}

func (t touchReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.touch()
	}
	return n, err
}

// Stream is an open upstream response. Its body can be consumed once, either through Chunks or WriteTo.
type Stream struct {
	Status int
	Header http.Header

	body    io.ReadCloser
	cancel  context.CancelFunc
	timer   *time.Timer
	timeout time.Duration
	chunk   int
	release func()

	idle     atomic.Bool
	consumed atomic.Bool
	once     sync.Once
	err      error
}

// Chunks yields the body in chunks of the configured size; the last one may be shorter.
// The yielded slice is reused between iterations. The stream is closed when iteration ends.
func (s *Stream) Chunks() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		defer s.Close()

		if s.body == nil || !s.consumed.CompareAndSwap(false, true) {
			return
		}

		body := touchReader{r: s.body, touch: func() { s.timer.Reset(s.timeout) }}
		buf := make([]byte, s.chunk)
		for {
			n, err := io.ReadFull(body, buf)
			if n > 0 {
				if !yield(buf[:n]) {
					return
				}
			}

			switch {
			case err == nil:
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				return
			case s.idle.Load():
				s.err = ErrIdle
				return
			default:
				s.err = err
				return
			}
		}
	}
}

// WriteTo relays the body to w, flushing after every chunk when w supports it.
// A failed write means the client went away and ends the transfer without an error.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	flusher, _ := w.(http.Flusher)

	var (
		total    int64
		writeErr error
	)
	for chunk := range s.Chunks() {
		n, err := w.Write(chunk)
		total += int64(n)
		metrics.BytesRelayed.Add(float64(n))
		if err != nil {
			writeErr = err
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if writeErr != nil {
		log.Debugf("proxy client went away after %d bytes: %s", total, writeErr)
		return total, nil
	}

	if s.err != nil && !clientGone(s.err) {
		return total, s.err
	}

	return total, nil
}

// Err returns the upstream read error that ended Chunks early, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the upstream response. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		if s.body != nil {
			err = s.body.Close()
			metrics.ActiveStreams.Dec()
		}
		s.stop()
	})
	return err
}

func (s *Stream) stop() {
	s.timer.Stop()
	s.cancel()
	if s.release != nil {
		s.release()
	}
}

func clientGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrHandlerTimeout) {
		return true
	}
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, os.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		if errors.Is(opErr.Err, syscall.EPIPE) || errors.Is(opErr.Err, syscall.ECONNRESET) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset")
}
