package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/boxrelay/boxrelay/browse"
	"github.com/boxrelay/boxrelay/constant"
	"github.com/boxrelay/boxrelay/proxy"
	"github.com/boxrelay/boxrelay/resolver"
	"github.com/boxrelay/boxrelay/token"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStreams struct {
	result *resolver.Result
	err    error
	panics bool
	got    resolver.Title
}

func (f *fakeStreams) Resolve(_ context.Context, title resolver.Title) (*resolver.Result, error) {
	if f.panics {
		panic("boom")
	}
	f.got = title
	return f.result, f.err
}

type fakeBrowser struct {
	err error
}

func (f *fakeBrowser) Home(context.Context) (*browse.Home, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &browse.Home{Data: json.RawMessage(`{"operatingList":[]}`), Cached: true, Age: 90 * time.Second}, nil
}

func (f *fakeBrowser) Search(_ context.Context, query string, page, perPage int) (*browse.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &browse.Page{Data: json.RawMessage(fmt.Sprintf(`{"q":%q,"page":%d,"perPage":%d}`, query, page, perPage))}, nil
}

func (f *fakeBrowser) Recommendations(_ context.Context, id string, _, perPage int) (*browse.Page, error) {
	return &browse.Page{Data: json.RawMessage(fmt.Sprintf(`{"id":%q,"perPage":%d}`, id, perPage))}, nil
}

func (f *fakeBrowser) Details(_ context.Context, id string) (*browse.Page, error) {
	return &browse.Page{Data: json.RawMessage(fmt.Sprintf(`{"id":%q}`, id))}, nil
}

func serve(s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestStreamList(t *testing.T) {
	Convey("Given a server", t, func() {
		streams := &fakeStreams{result: &resolver.Result{
			Qualities: []resolver.Descriptor{
				{Quality: 1080, SizeBytes: 1572864, UpstreamURL: "https://cdn/a", Token: token.Encode("https://cdn/a", "https://ref")},
				{Quality: 480, SizeBytes: 0, UpstreamURL: "https://cdn/b", Token: token.Encode("https://cdn/b", "https://ref")},
			},
			Elapsed: 321 * time.Millisecond,
		}}
		s := New(streams, &fakeBrowser{}, proxy.New(nil, proxy.Options{}))

		Convey("When qualities are requested", func() {
			rec := serve(s, http.MethodGet, "/api/stream/42?detail_path=the-movie&title=The+Movie", nil)

			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)

			Convey("Then the title should reach the resolver", func() {
				So(streams.got.ID, ShouldEqual, "42")
				So(streams.got.DetailPath, ShouldEqual, "the-movie")
				So(streams.got.Title, ShouldEqual, "The Movie")
			})

			Convey("Then the public payload should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("X-Cache"), ShouldEqual, "MISS")
				So(body["success"], ShouldEqual, true)
				So(body["cached"], ShouldEqual, false)
				So(body["timingMs"], ShouldEqual, 321.0)

				qualities := body["qualities"].([]any)
				So(qualities, ShouldHaveLength, 2)
				first := qualities[0].(map[string]any)
				So(first["label"], ShouldEqual, "1080p")
				So(first["sizeMb"], ShouldEqual, 1.5)
				So(first["proxyUrl"], ShouldStartWith, "/stream/")
				So(first["proxyUrl"], ShouldEndWith, "/The_Movie_1080p.mp4")
			})

			Convey("Then upstream URLs should not leak", func() {
				So(rec.Body.String(), ShouldNotContainSubstring, "https://cdn/a")
			})
		})

		Convey("When the backend breaks the contract", func() {
			streams.err = &resolver.Failure{Reason: fmt.Errorf("%w: bad", resolver.ErrContract), Elapsed: 5 * time.Millisecond}
			rec := serve(s, http.MethodGet, "/api/stream/42", nil)

			Convey("Then 422 should be returned with timing", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(rec.Body.String(), ShouldContainSubstring, `"success":false`)
				So(rec.Body.String(), ShouldContainSubstring, `"timingMs":5`)
			})
		})

		Convey("When the backend is unreachable", func() {
			cause := &url.Error{Op: "Get", URL: "https://backend.example/secret?x=1", Err: errors.New("connection refused")}
			streams.err = &resolver.Failure{Reason: fmt.Errorf("%w: %w", resolver.ErrUpstream, cause)}
			rec := serve(s, http.MethodGet, "/api/stream/42", nil)

			Convey("Then 502 should be returned without the upstream address", func() {
				So(rec.Code, ShouldEqual, http.StatusBadGateway)
				So(rec.Body.String(), ShouldContainSubstring, "connection refused")
				So(rec.Body.String(), ShouldNotContainSubstring, "backend.example")
			})
		})

		Convey("When the handler panics", func() {
			streams.panics = true
			rec := serve(s, http.MethodGet, "/api/stream/42", nil)

			Convey("Then a 500 should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestProxyRoute(t *testing.T) {
	Convey("Given an upstream file and a server", t, func() {
		content := bytes.Repeat([]byte("0123456789"), 100)
		var gotReferer string
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotReferer = r.Header.Get("Referer")
			http.ServeContent(w, r, "v.mp4", time.Time{}, bytes.NewReader(content))
		}))
		defer upstream.Close()

		s := New(&fakeStreams{}, &fakeBrowser{}, proxy.New(nil, proxy.Options{Timeout: 5 * time.Second, ChunkSize: 128}))
		path := ProxyPath(token.Encode(upstream.URL+"/v.mp4?a=1&b=2", "https://backend.example/movies/x"), "video_720p.mp4")

		Convey("When a range is requested through a token", func() {
			rec := serve(s, http.MethodGet, path, http.Header{"Range": {"bytes=100-199"}})

			Convey("Then the range should be relayed", func() {
				So(rec.Code, ShouldEqual, http.StatusPartialContent)
				So(rec.Header().Get("Content-Range"), ShouldEqual, "bytes 100-199/1000")
				So(rec.Header().Get("Content-Type"), ShouldEqual, constant.MediaType)
				So(rec.Header().Get("Access-Control-Expose-Headers"), ShouldContainSubstring, "Content-Range")
				So(rec.Body.Bytes(), ShouldResemble, content[100:200])
				So(gotReferer, ShouldEqual, "https://backend.example/movies/x")
			})
		})

		Convey("When only headers are requested", func() {
			rec := serve(s, http.MethodHead, path, nil)

			Convey("Then no body should be sent", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Length"), ShouldEqual, "1000")
				So(rec.Body.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the token is malformed", func() {
			rec := serve(s, http.MethodGet, "/stream/not-a-token/video.mp4", nil)

			Convey("Then 400 should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the upstream is gone", func() {
			dead := httptest.NewServer(http.NotFoundHandler())
			deadPath := ProxyPath(token.Encode(dead.URL+"/v.mp4", ""), "v.mp4")
			dead.Close()
			rec := serve(s, http.MethodGet, deadPath, nil)

			Convey("Then 502 should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadGateway)
				So(rec.Body.String(), ShouldNotContainSubstring, dead.URL)
			})
		})

		Convey("When a browser sends a preflight", func() {
			rec := serve(s, http.MethodOptions, path, nil)

			Convey("Then it should be answered without reaching the upstream", func() {
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
				So(gotReferer, ShouldBeEmpty)
			})
		})
	})
}

func TestBrowseRoutes(t *testing.T) {
	Convey("Given a server", t, func() {
		browser := &fakeBrowser{}
		s := New(&fakeStreams{}, browser, proxy.New(nil, proxy.Options{}))

		Convey("The home page should report its cache age", func() {
			rec := serve(s, http.MethodGet, "/api/home", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("X-Cache"), ShouldEqual, "HIT")
			So(rec.Body.String(), ShouldContainSubstring, `"cacheAgeSeconds":90`)
		})

		Convey("Search should require a query", func() {
			rec := serve(s, http.MethodGet, "/api/search", nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Search should apply paging defaults", func() {
			rec := serve(s, http.MethodGet, "/api/search?q=matrix&per_page=abc", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"query":"matrix"`)
			So(rec.Body.String(), ShouldContainSubstring, `"perPage":24`)
		})

		Convey("Recommendations should default to twelve items", func() {
			rec := serve(s, http.MethodGet, "/api/recommendations?id=7", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"perPage":12`)
		})

		Convey("Details should pass the payload through", func() {
			rec := serve(s, http.MethodGet, "/api/details/7", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"id":"7"`)
		})

		Convey("Backend failures should become 502", func() {
			browser.err = errors.New("down")
			rec := serve(s, http.MethodGet, "/api/home", nil)
			So(rec.Code, ShouldEqual, http.StatusBadGateway)
		})

		Convey("Health and metrics should be served", func() {
			So(serve(s, http.MethodGet, "/healthz", nil).Code, ShouldEqual, http.StatusOK)
			So(serve(s, http.MethodGet, "/metrics", nil).Code, ShouldEqual, http.StatusOK)
		})
	})
}
