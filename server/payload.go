package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/boxrelay/boxrelay/resolver"
	"github.com/boxrelay/boxrelay/util"
	"github.com/samber/lo"
)

// Quality is one playable encoding as shown to clients.
type Quality struct {
	Quality  int     `json:"quality" jsonschema:"description=Vertical resolution in pixels."`
	Label    string  `json:"label" jsonschema:"description=Resolution label such as 1080p."`
	SizeMB   float64 `json:"sizeMb" jsonschema:"description=File size in MiB rounded to one decimal. Zero when unknown."`
	ProxyURL string  `json:"proxyUrl" jsonschema:"description=Path of the stream on this server. Supports Range requests."`
}

// StreamResponse answers a quality list query.
type StreamResponse struct {
	Success   bool      `json:"success"`
	Qualities []Quality `json:"qualities" jsonschema:"description=Available encodings. Highest quality first."`
	Cached    bool      `json:"cached" jsonschema:"description=Whether the list was served from cache."`
	TimingMs  int64     `json:"timingMs" jsonschema:"description=Time spent on the backend in milliseconds. Zero for cache hits."`
}

// ErrorResponse is returned by every failing API call.
type ErrorResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error" jsonschema:"description=Human readable reason."`
	TimingMs int64  `json:"timingMs"`
}

// HomeResponse carries the home page sections.
type HomeResponse struct {
	Success         bool            `json:"success"`
	Cached          bool            `json:"cached"`
	CacheAgeSeconds float64         `json:"cacheAgeSeconds,omitempty"`
	FetchTimeMs     float64         `json:"fetchTimeMs,omitempty"`
	Data            json.RawMessage `json:"data"`
}

// PageResponse carries a catalog payload passed through unchanged.
type PageResponse struct {
	Success     bool            `json:"success"`
	FetchTimeMs float64         `json:"fetchTimeMs"`
	Query       string          `json:"query,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// HealthResponse answers liveness probes.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

const mebibyte = 1024 * 1024

// Qualities maps descriptors to their public form. name is used in the proxy file names.
func Qualities(descriptors []resolver.Descriptor, name string) []Quality {
	base := fileBase(name)
	return lo.Map(descriptors, func(d resolver.Descriptor, _ int) Quality {
		return Quality{
			Quality:  d.Quality,
			Label:    fmt.Sprintf("%dp", d.Quality),
			SizeMB:   math.Round(float64(d.SizeBytes)/mebibyte*10) / 10,
			ProxyURL: ProxyPath(d.Token, fmt.Sprintf("%s_%dp.mp4", base, d.Quality)),
		}
	})
}

// ProxyPath is the public address of a stream token.
func ProxyPath(token, filename string) string {
	return "/stream/" + token + "/" + url.PathEscape(filename)
}

func fileBase(name string) string {
	if name = util.SanitizeFilename(name); name == "" {
		return "video"
	}
	return name
}

func millis(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}

func millisFloat(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*10) / 10
}
