// Package browse serves the catalog listings shown around the player: the home page, search,
// recommendations, and title details. Every listing teaches the path resolver the detail
// paths it contains.
package browse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boxrelay/boxrelay/catalog"
	"github.com/boxrelay/boxrelay/internal/cache"
	"github.com/boxrelay/boxrelay/log"
	"github.com/boxrelay/boxrelay/metrics"
	"github.com/boxrelay/boxrelay/resolver"
	"golang.org/x/sync/singleflight"
)

// HomeSection is the title of the single home page section.
const HomeSection = "Trending Now"

// HomeTimeout bounds a shared home page fetch.
const HomeTimeout = 30 * time.Second

// Catalog is the part of the catalog client the browse service needs.
type Catalog interface {
	Detail(ctx context.Context, id string) (*catalog.Detail, error)
	Search(ctx context.Context, keyword string, page, perPage int) (*catalog.Listing, error)
	Recommendations(ctx context.Context, id string, page, perPage int) (*catalog.Listing, error)
	Trending(ctx context.Context) (*catalog.Listing, error)
}

// Home is the home page payload.
type Home struct {
	Data      json.RawMessage
	Cached    bool
	Age       time.Duration
	FetchTime time.Duration
}

// Page is a pass-through payload with its fetch time.
type Page struct {
	Data      json.RawMessage
	FetchTime time.Duration
}

// Service answers browse queries.
type Service struct {
	catalog Catalog
	paths   *resolver.Paths
	store   *cache.Store[resolver.Descriptor]
	group   singleflight.Group
	now     func() time.Time
}

// New creates a browse service.
func New(c Catalog, paths *resolver.Paths, store *cache.Store[resolver.Descriptor]) *Service {
	return &Service{catalog: c, paths: paths, store: store, now: time.Now}
}

type homeSection struct {
	Title    string          `json:"title"`
	Subjects json.RawMessage `json:"subjects"`
}

type homeContent struct {
	OperatingList []homeSection `json:"operatingList"`
}

// Home returns the trending listing shaped as home page sections, cached for the home TTL.
func (s *Service) Home(ctx context.Context) (*Home, error) {
	now := s.now()
	if entry, ok := s.store.Home(now).Get(); ok {
		metrics.Lookup("home", true)
		return &Home{Data: entry.Value, Cached: true, Age: entry.Age(now)}, nil
	}
	metrics.Lookup("home", false)

	// The flight outlives any single caller, so it runs detached from ctx.
	flight := s.group.DoChan("home", func() (any, error) {
		start := s.now()

		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), HomeTimeout)
		defer cancel()

		listing, err := s.catalog.Trending(shared)
		if err != nil {
			return nil, fmt.Errorf("trending: %w", err)
		}
		s.seed(listing)

		var data struct {
			SubjectList json.RawMessage `json:"subjectList"`
		}
		if err := json.Unmarshal(listing.Raw, &data); err != nil {
			return nil, fmt.Errorf("trending: %w: %v", catalog.ErrShape, err)
		}
		if len(data.SubjectList) == 0 || string(data.SubjectList) == "null" {
			data.SubjectList = json.RawMessage("[]")
		}

		content, err := json.Marshal(homeContent{
			OperatingList: []homeSection{{Title: HomeSection, Subjects: data.SubjectList}},
		})
		if err != nil {
			return nil, err
		}

		if err := s.store.SetHome(content, start); err != nil {
			log.Warnf("home cache: %s", err)
		}

		return &Home{Data: content, FetchTime: s.now().Sub(start)}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Home), nil
	}
}

// Search runs a keyword search.
func (s *Service) Search(ctx context.Context, query string, page, perPage int) (*Page, error) {
	start := s.now()

	listing, err := s.catalog.Search(ctx, query, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	s.seed(listing)

	return &Page{Data: listing.Raw, FetchTime: s.now().Sub(start)}, nil
}

// Recommendations lists titles related to id.
func (s *Service) Recommendations(ctx context.Context, id string, page, perPage int) (*Page, error) {
	start := s.now()

	listing, err := s.catalog.Recommendations(ctx, id, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("recommendations of %s: %w", id, err)
	}
	s.seed(listing)

	return &Page{Data: listing.Raw, FetchTime: s.now().Sub(start)}, nil
}

// Details returns the metadata record of id and remembers its detail path.
func (s *Service) Details(ctx context.Context, id string) (*Page, error) {
	start := s.now()

	detail, err := s.catalog.Detail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("details of %s: %w", id, err)
	}
	s.paths.Remember(id, detail.Subject.DetailPath)

	return &Page{Data: detail.Raw, FetchTime: s.now().Sub(start)}, nil
}

func (s *Service) seed(listing *catalog.Listing) {
	if n := s.paths.Seed(listing.Items); n > 0 {
		log.Debugf("seeded %d detail paths", n)
	}
}
