// Package network owns the shared HTTP machinery: a tuned connection-pooled transport and the
// authenticated catalog session reused by every component.
package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
)

// Options tune the transports built by this package.
type Options struct {
	// MaxIdleConns bounds the idle keep-alive pool.
	MaxIdleConns int
	// MaxConnsPerHost bounds concurrent connections to a single upstream.
	MaxConnsPerHost int
	// IdleConnTimeout evicts idle connections from the pool.
	IdleConnTimeout time.Duration
	// Timeout bounds complete API round trips made through Session.Client.
	Timeout time.Duration
	// Fingerprint dials TLS with a Chrome ClientHello instead of Go's.
	Fingerprint bool
	// InsecureSkipVerify disables certificate verification on upstream TLS.
	InsecureSkipVerify bool
}

// DefaultOptions mirrors the production pool sizing.
func DefaultOptions() Options {
	return Options{
		MaxIdleConns:    50,
		MaxConnsPerHost: 200,
		IdleConnTimeout: 30 * time.Second,
		Timeout:         15 * time.Second,
		Fingerprint:     true,
	}
}

const dialTimeout = 30 * time.Second

// NewTransport initializes a tuned http.Transport with pool and timeout parameters taken from opts.
func NewTransport(opts Options) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = opts.MaxIdleConns
	t.MaxIdleConnsPerHost = opts.MaxIdleConns
	t.MaxConnsPerHost = opts.MaxConnsPerHost
	t.IdleConnTimeout = opts.IdleConnTimeout
	t.ResponseHeaderTimeout = 30 * time.Second
	t.ExpectContinueTimeout = time.Second

	if opts.Fingerprint {
		t.ForceAttemptHTTP2 = false
		t.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLS(ctx, network, addr, opts.InsecureSkipVerify)
		}
	} else if opts.InsecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return t
}

// chromeHello returns the Chrome 120 ClientHello with ALPN narrowed to http/1.1. The preset
// ignores Config.NextProtos, and net/http can only speak HTTP/1.1 over a non *tls.Conn.
func chromeHello() (*utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(utls.HelloChrome_120)
	if err != nil {
		return nil, err
	}

	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	return &spec, nil
}

// dialTLS creates a TLS connection mimicking Chrome 120's fingerprint, forcing HTTP/1.1.
func dialTLS(ctx context.Context, network, addr string, insecure bool) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	spec, err := chromeHello()
	if err != nil {
		return nil, fmt.Errorf("client hello: %w", err)
	}

	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	tlsConn := utls.UClient(conn, &utls.Config{
		ServerName:         host,
		InsecureSkipVerify: insecure,
		MinVersion:         tls.VersionTLS12,
	}, utls.HelloCustom)

	if err := tlsConn.ApplyPreset(spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("client hello: %w", err)
	}

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	if proto := tlsConn.ConnectionState().NegotiatedProtocol; proto != "" && proto != "http/1.1" {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: unexpected protocol %q", proto)
	}

	return tlsConn, nil
}

// Fresh returns a throwaway, cookie-less client on its own transport. Callers should
// CloseIdleConnections when done with it.
func Fresh(opts Options) *http.Client {
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: NewTransport(opts),
	}
}
