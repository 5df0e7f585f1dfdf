package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/boxrelay/boxrelay/constant"
	"github.com/boxrelay/boxrelay/log"
	"golang.org/x/net/publicsuffix"
)

// Session is the single authenticated identity shared by every backend call: one cookie jar
// and one pooled transport. It is safe for concurrent use; Warm is expected to run before traffic.
type Session struct {
	host      *url.URL
	jar       http.CookieJar
	transport *http.Transport
	client    *http.Client
}

// NewSession builds a session rooted at the backend host.
func NewSession(host string, opts Options) (*Session, error) {
	u, err := url.Parse(host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend host %q", host)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	transport := NewTransport(opts)

	return &Session{
		host:      u,
		jar:       jar,
		transport: transport,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			Jar:       jar,
		},
	}, nil
}

// Warm visits the backend host so it can assign the cookies later calls depend on.
func (s *Session) Warm(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.host.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", constant.MobileUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("warm session: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("warm session: status %d", resp.StatusCode)
	}

	log.Infof("session warmed with %d cookies", len(s.jar.Cookies(s.host)))
	return nil
}

// Client returns the cookie-carrying API client. Its timeout bounds whole round trips,
// so it must not be used for media streaming.
func (s *Session) Client() *http.Client {
	return s.client
}

// Transport returns the shared connection pool.
func (s *Session) Transport() *http.Transport {
	return s.transport
}

// Jar returns the session cookie jar.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// Host returns the backend host the session is rooted at.
func (s *Session) Host() *url.URL {
	return s.host
}

// Close releases pooled connections.
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
}
