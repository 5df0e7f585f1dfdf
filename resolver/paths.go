// Package resolver turns content identifiers into detail paths and ranked stream descriptors.
package resolver

import (
	"context"
	"time"

	"github.com/boxrelay/boxrelay/catalog"
	"github.com/boxrelay/boxrelay/internal/cache"
	"github.com/boxrelay/boxrelay/log"
	"github.com/boxrelay/boxrelay/metrics"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

// UnknownPath is returned when a detail path cannot be resolved. It is never cached.
const UnknownPath = "unknown"

// DetailTimeout bounds a shared detail lookup.
const DetailTimeout = 30 * time.Second

// Detailer fetches title metadata.
type Detailer interface {
	Detail(ctx context.Context, id string) (*catalog.Detail, error)
}

// Paths resolves content identifiers to detail paths. Resolved paths are kept for the process lifetime.
type Paths struct {
	catalog Detailer
	store   *cache.Store[Descriptor]
	group   singleflight.Group
}

// NewPaths creates a path resolver backed by store.
func NewPaths(detailer Detailer, store *cache.Store[Descriptor]) *Paths {
	return &Paths{catalog: detailer, store: store}
}

// Resolve returns the detail path of id, or UnknownPath if the backend could not provide one.
func (p *Paths) Resolve(ctx context.Context, id string) string {
	if path, ok := p.store.Path(id).Get(); ok {
		metrics.Lookup("paths", true)
		return path
	}
	metrics.Lookup("paths", false)

	// The flight outlives any single caller, so it runs detached from ctx.
	flight := p.group.DoChan(id, func() (any, error) {
		if path, ok := p.store.Path(id).Get(); ok {
			return path, nil
		}

		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), DetailTimeout)
		defer cancel()

		detail, err := p.catalog.Detail(shared, id)
		if err != nil {
			log.Warnf("detail path of %s: %s", id, err)
			return UnknownPath, nil
		}

		path := detail.Subject.DetailPath
		if path == "" {
			log.Warnf("detail path of %s: missing in payload", id)
			return UnknownPath, nil
		}

		p.store.SetPath(id, path)
		return path, nil
	})

	select {
	case <-ctx.Done():
		return UnknownPath
	case res := <-flight:
		return res.Val.(string)
	}
}

// Remember stores a path learned elsewhere unless one is already known, and reports whether it
// was stored. Empty and unknown paths are ignored.
func (p *Paths) Remember(id, path string) bool {
	if id == "" || path == "" || path == UnknownPath {
		return false
	}
	return p.store.SeedPath(id, path)
}

// Seed records the paths of listed titles that are not known yet and returns how many were new.
func (p *Paths) Seed(items []catalog.Subject) int {
	return lo.CountBy(items, func(item catalog.Subject) bool {
		if item.SubjectID == "" || item.DetailPath == "" || item.DetailPath == UnknownPath {
			return false
		}
		return p.store.SeedPath(string(item.SubjectID), item.DetailPath)
	})
}
