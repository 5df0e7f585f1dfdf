package resolver

import (
	"context"
	"net/http"

	"github.com/boxrelay/boxrelay/catalog"
	"github.com/boxrelay/boxrelay/constant"
	"github.com/boxrelay/boxrelay/network"
)

// Downloader fetches a title's download listing with a caller-chosen client and headers.
type Downloader interface {
	Downloads(ctx context.Context, client *http.Client, id string, header http.Header) (*catalog.Downloads, error)
}

// Request is one download listing fetch.
type Request struct {
	ID      string
	Host    string
	Referer string
}

// Strategy is one way of fetching a download listing.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*catalog.Downloads, error)
}

// SessionHeader is the header set of the mobile web client for a download call.
func SessionHeader(req Request) http.Header {
	h := http.Header{}
	h.Set("User-Agent", constant.MobileUserAgent)
	h.Set("Referer", req.Referer)
	h.Set("Origin", req.Host)
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Dest", "empty")
	return h
}

// FallbackHeader is the minimal desktop header set used without cookies.
func FallbackHeader(req Request) http.Header {
	h := http.Header{}
	h.Set("User-Agent", constant.DesktopUserAgent)
	h.Set("Referer", req.Referer)
	return h
}

type sessionStrategy struct {
	downloader Downloader
	session    func() *network.Session
}

// WithSession fetches through the shared session: its cookies, its pool, and the full header set.
// session may return nil while no session exists.
func WithSession(downloader Downloader, session func() *network.Session) Strategy {
	return &sessionStrategy{downloader: downloader, session: session}
}

func (s *sessionStrategy) Name() string {
	return "session"
}

func (s *sessionStrategy) Fetch(ctx context.Context, req Request) (*catalog.Downloads, error) {
	var session *network.Session
	if s.session != nil {
		session = s.session()
	}
	if session == nil {
		return nil, ErrNoSession
	}

	return s.downloader.Downloads(ctx, session.Client(), req.ID, SessionHeader(req))
}

type fallbackStrategy struct {
	downloader Downloader
	options    network.Options
}

// Anonymous fetches with a throwaway cookie-less client and a desktop user agent.
func Anonymous(downloader Downloader, options network.Options) Strategy {
	return &fallbackStrategy{downloader: downloader, options: options}
}

func (s *fallbackStrategy) Name() string {
	return "fallback"
}

func (s *fallbackStrategy) Fetch(ctx context.Context, req Request) (*catalog.Downloads, error) {
	client := network.Fresh(s.options)
	defer client.CloseIdleConnections()

	return s.downloader.Downloads(ctx, client, req.ID, FallbackHeader(req))
}
