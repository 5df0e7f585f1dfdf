package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boxrelay/boxrelay/catalog"
	"github.com/boxrelay/boxrelay/internal/cache"
	"github.com/boxrelay/boxrelay/log"
	"github.com/boxrelay/boxrelay/metrics"
	"github.com/boxrelay/boxrelay/token"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/singleflight"
)

// Descriptor is one playable encoding of a title.
type Descriptor struct {
	Quality     int    `json:"quality"`
	SizeBytes   int64  `json:"sizeBytes"`
	UpstreamURL string `json:"-"`
	Token       string `json:"token"`
}

// Title is the minimal input of a stream resolution. DetailPath and Title are optional.
type Title struct {
	ID         string
	DetailPath string
	Title      string
}

// Result is a successful resolution. Elapsed is zero for cache hits.
type Result struct {
	Qualities []Descriptor
	Cached    bool
	Elapsed   time.Duration
}

// Options configure a stream resolver.
type Options struct {
	// Host is the backend origin, used for Referer and Origin headers.
	Host string
	// TTL bounds how long a resolved list is served from cache.
	TTL time.Duration
	// Timeout bounds a shared resolution. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a shared resolution when Options.Timeout is unset.
const DefaultTimeout = time.Minute

// Streams resolves titles to quality-ranked stream descriptors.
type Streams struct {
	paths      *Paths
	store      *cache.Store[Descriptor]
	strategies []Strategy
	options    Options
	group      singleflight.Group
	now        func() time.Time
}

// NewStreams creates a stream resolver. Strategies are tried in order.
func NewStreams(paths *Paths, store *cache.Store[Descriptor], strategies []Strategy, options Options) *Streams {
	return &Streams{
		paths:      paths,
		store:      store,
		strategies: strategies,
		options:    options,
		now:        time.Now,
	}
}

// Referer returns the page address the backend expects for a detail path.
func (s *Streams) Referer(path string) string {
	return strings.TrimSuffix(s.options.Host, "/") + "/movies/" + path
}

// Resolve returns the descriptors of title, highest quality first.
// Failures are returned as *Failure.
func (s *Streams) Resolve(ctx context.Context, title Title) (*Result, error) {
	if title.ID == "" {
		return nil, &Failure{Reason: fmt.Errorf("%w: empty content id", ErrContract)}
	}

	if result, ok := s.cached(title.ID); ok {
		return result, nil
	}

	timeout := lo.Ternary(s.options.Timeout > 0, s.options.Timeout, DefaultTimeout)
	start := s.now()

	// The flight outlives any single caller, so it runs detached from ctx.
	flight := s.group.DoChan(title.ID, func() (any, error) {
		if result, ok := s.cached(title.ID); ok {
			return result, nil
		}

		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return s.fetch(shared, title)
	})

	select {
	case <-ctx.Done():
		return nil, &Failure{Reason: fmt.Errorf("%w: %w", ErrUpstream, ctx.Err()), Elapsed: s.now().Sub(start)}
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debugf("stream resolution of %s shared", title.ID)
		}
		return res.Val.(*Result), nil
	}
}

func (s *Streams) cached(id string) (*Result, bool) {
	entry, ok := s.store.Streams(id).Get()
	if !ok || !entry.Valid(s.options.TTL, s.now()) {
		metrics.Lookup("streams", false)
		return nil, false
	}

	metrics.Lookup("streams", true)
	return &Result{Qualities: entry.Value, Cached: true}, true
}

func (s *Streams) fetch(ctx context.Context, title Title) (*Result, error) {
	start := s.now()
	elapsed := func() time.Duration { return s.now().Sub(start) }

	path := title.DetailPath
	if path == "" {
		path = s.paths.Resolve(ctx, title.ID)
	} else {
		s.paths.Remember(title.ID, path)
	}

	req := Request{
		ID:      title.ID,
		Host:    strings.TrimSuffix(s.options.Host, "/"),
		Referer: s.Referer(path),
	}

	downloads, err := s.attempt(ctx, req)
	if err != nil {
		return nil, &Failure{Reason: err, Elapsed: elapsed()}
	}

	qualities, err := describe(downloads, req.Referer)
	if err != nil {
		return nil, &Failure{Reason: err, Elapsed: elapsed()}
	}

	slices.SortStableFunc(qualities, func(a, b Descriptor) int {
		return b.Quality - a.Quality
	})

	if s.store.SetStreams(title.ID, qualities, start) {
		log.Infof("resolved %d qualities for %s", len(qualities), title.ID)
	} else {
		log.Warnf("no qualities for %s, not caching", title.ID)
	}

	took := elapsed()
	metrics.ResolveDuration.Observe(took.Seconds())

	return &Result{Qualities: qualities, Elapsed: took}, nil
}

// attempt runs the strategies in order. The first success wins; when all fail the first error
// is returned. Contract violations stop the chain.
func (s *Streams) attempt(ctx context.Context, req Request) (*catalog.Downloads, error) {
	if len(s.strategies) == 0 {
		return nil, ErrNoSession
	}

	var first error
	for _, strategy := range s.strategies {
		downloads, err := strategy.Fetch(ctx, req)
		if err == nil {
			metrics.StrategyOutcomes.WithLabelValues(strategy.Name(), "ok").Inc()
			return downloads, nil
		}

		metrics.StrategyOutcomes.WithLabelValues(strategy.Name(), "error").Inc()
		err = classify(err)
		log.WithFields(logrus.Fields{
			"strategy": strategy.Name(),
			"id":       req.ID,
		}).Warnf("download listing failed: %s", err)

		if first == nil {
			first = err
		}
		if errors.Is(err, ErrContract) || ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, first
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrUpstream), errors.Is(err, ErrContract):
		return err
	case errors.Is(err, catalog.ErrShape):
		return fmt.Errorf("%w: %w", ErrContract, err)
	default:
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
}

func describe(downloads *catalog.Downloads, referer string) ([]Descriptor, error) {
	for i, item := range downloads.Items {
		if item.URL == "" || item.Resolution == nil {
			return nil, fmt.Errorf("%w: download %d has no url or resolution", ErrContract, i)
		}
	}

	return lo.Map(downloads.Items, func(item catalog.Download, _ int) Descriptor {
		return Descriptor{
			Quality:     int(*item.Resolution),
			SizeBytes:   int64(item.Size),
			UpstreamURL: item.URL,
			Token:       token.Encode(item.URL, referer),
		}
	}), nil
}
