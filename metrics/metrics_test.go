package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLookup(t *testing.T) {
	Convey("Given the cache lookup counter", t, func() {
		before := testutil.ToFloat64(CacheLookups.WithLabelValues("test", Hit))

		Convey("When a hit is recorded", func() {
			Lookup("test", true)

			Convey("Then the hit series should grow by one", func() {
				So(testutil.ToFloat64(CacheLookups.WithLabelValues("test", Hit)), ShouldEqual, before+1)
			})
		})
	})
}

func TestHandler(t *testing.T) {
	Convey("Given a recorded request", t, func() {
		Observe("GET", "/healthz", 200, 10*time.Millisecond)

		Convey("When the registry is scraped", func() {
			rec := httptest.NewRecorder()
			Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
			body, _ := io.ReadAll(rec.Body)

			Convey("Then the request series should be exposed", func() {
				So(rec.Code, ShouldEqual, 200)
				So(string(body), ShouldContainSubstring, "boxrelay_http_requests_total")
			})
		})
	})
}
