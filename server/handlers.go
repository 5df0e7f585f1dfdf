package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boxrelay/boxrelay/constant"
	"github.com/boxrelay/boxrelay/log"
	"github.com/boxrelay/boxrelay/proxy"
	"github.com/boxrelay/boxrelay/resolver"
	"github.com/boxrelay/boxrelay/token"
	"github.com/gorilla/mux"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("write response: %s", err)
	}
}

// publicError renders err without the upstream addresses net/http puts in its messages.
func publicError(err error) string {
	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.URL != "" {
		msg = strings.ReplaceAll(msg, strconv.Quote(urlErr.URL), "upstream")
		msg = strings.ReplaceAll(msg, urlErr.URL, "upstream")
	}
	return msg
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	title := resolver.Title{
		ID:         mux.Vars(r)["id"],
		DetailPath: r.URL.Query().Get("detail_path"),
		Title:      r.URL.Query().Get("title"),
	}

	result, err := s.streams.Resolve(r.Context(), title)
	if err != nil {
		var elapsed time.Duration
		var failure *resolver.Failure
		if errors.As(err, &failure) {
			elapsed = failure.Elapsed
		}

		status := http.StatusBadGateway
		if errors.Is(err, resolver.ErrContract) {
			status = http.StatusUnprocessableEntity
		}

		log.Warnf("streams of %s: %s", title.ID, err)
		writeJSON(w, status, ErrorResponse{Error: publicError(err), TimingMs: millis(elapsed)})
		return
	}

	if result.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	writeJSON(w, http.StatusOK, StreamResponse{
		Success:   true,
		Qualities: Qualities(result.Qualities, title.Title),
		Cached:    result.Cached,
		TimingMs:  millis(result.Elapsed),
	})
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	upstream, referer, err := token.Decode(vars["token"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	target := proxy.Target{URL: upstream, Referer: referer}
	rangeHeader := r.Header.Get("Range")

	var stream *proxy.Stream
	if r.Method == http.MethodHead {
		stream, err = s.relay.Head(r.Context(), target, rangeHeader)
	} else {
		stream, err = s.relay.Open(r.Context(), target, rangeHeader)
	}
	if err != nil {
		log.Warnf("proxy %s: %s", vars["filename"], publicError(err))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "failed to reach upstream"})
		return
	}
	defer stream.Close()

	h := w.Header()
	for key, values := range stream.Header {
		h[key] = values
	}
	if name := vars["filename"]; name != "" {
		h.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	}
	w.WriteHeader(stream.Status)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := stream.WriteTo(w); err != nil {
		log.Warnf("proxy %s: %s", vars["filename"], publicError(err))
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	home, err := s.browse.Home(r.Context())
	if err != nil {
		log.Warnf("home: %s", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: publicError(err)})
		return
	}

	response := HomeResponse{Success: true, Cached: home.Cached, Data: home.Data}
	if home.Cached {
		response.CacheAgeSeconds = float64(home.Age.Round(100*time.Millisecond)) / float64(time.Second)
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("X-Cache-Age", strconv.Itoa(int(home.Age.Seconds())))
	} else {
		response.FetchTimeMs = millisFloat(home.FetchTime)
		w.Header().Set("X-Cache", "MISS")
		w.Header().Set("X-Fetch-Time", strconv.FormatInt(millis(home.FetchTime), 10))
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing query"})
		return
	}

	page, err := s.browse.Search(r.Context(), query, intParam(r, "page", 1), intParam(r, "per_page", 24))
	if err != nil {
		log.Warnf("search: %s", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: publicError(err)})
		return
	}

	w.Header().Set("X-Fetch-Time", strconv.FormatInt(millis(page.FetchTime), 10))
	writeJSON(w, http.StatusOK, PageResponse{
		Success:     true,
		FetchTimeMs: millisFloat(page.FetchTime),
		Query:       query,
		Data:        page.Data,
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing id"})
		return
	}

	page, err := s.browse.Recommendations(r.Context(), id, intParam(r, "page", 1), intParam(r, "per_page", 12))
	if err != nil {
		log.Warnf("recommendations: %s", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: publicError(err)})
		return
	}

	writeJSON(w, http.StatusOK, PageResponse{Success: true, FetchTimeMs: millisFloat(page.FetchTime), Data: page.Data})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	page, err := s.browse.Details(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		log.Warnf("details: %s", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: publicError(err)})
		return
	}

	writeJSON(w, http.StatusOK, PageResponse{Success: true, FetchTimeMs: millisFloat(page.FetchTime), Data: page.Data})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: constant.Version})
}
