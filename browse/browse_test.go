package browse

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boxrelay/boxrelay/catalog"
	"github.com/boxrelay/boxrelay/internal/cache"
	"github.com/boxrelay/boxrelay/resolver"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeCatalog struct {
	trending atomic.Int32
	details  atomic.Int32
	err      error
	hot      json.RawMessage
}

func (f *fakeCatalog) Detail(_ context.Context, id string) (*catalog.Detail, error) {
	f.details.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.Detail{
		Subject: catalog.Subject{SubjectID: catalog.ID(id), DetailPath: "detail-" + id},
		Raw:     json.RawMessage(`{"subject":{"subjectId":"` + id + `"}}`),
	}, nil
}

func (f *fakeCatalog) Search(_ context.Context, keyword string, _, _ int) (*catalog.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.Listing{
		Items: []catalog.Subject{{SubjectID: "10", DetailPath: "found-10", Title: keyword}},
		Raw:   json.RawMessage(`{"list":[{"subjectId":"10","detailPath":"found-10"}]}`),
	}, nil
}

func (f *fakeCatalog) Recommendations(_ context.Context, _ string, _, _ int) (*catalog.Listing, error) {
	return &catalog.Listing{
		Items: []catalog.Subject{{SubjectID: "20", DetailPath: "related-20"}},
		Raw:   json.RawMessage(`{"items":[{"subjectId":"20","detailPath":"related-20"}]}`),
	}, nil
}

func (f *fakeCatalog) Trending(_ context.Context) (*catalog.Listing, error) {
	f.trending.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	raw := json.RawMessage(`{"subjectList":[{"subjectId":"30","detailPath":"hot-30"}]}`)
	if f.hot != nil {
		raw = f.hot
	}
	return &catalog.Listing{
		Items: []catalog.Subject{{SubjectID: "30", DetailPath: "hot-30"}},
		Raw:   raw,
	}, nil
}

func newService(c *fakeCatalog) (*Service, *resolver.Paths) {
	store := cache.New[resolver.Descriptor](5 * time.Minute)
	paths := resolver.NewPaths(c, store)
	return New(c, paths, store), paths
}

func TestHome(t *testing.T) {
	Convey("Given a browse service", t, func() {
		c := &fakeCatalog{}
		service, paths := newService(c)
		ctx := context.Background()

		Convey("When the home page is requested twice", func() {
			first, err := service.Home(ctx)
			So(err, ShouldBeNil)
			second, err := service.Home(ctx)
			So(err, ShouldBeNil)

			Convey("Then the second answer should come from cache", func() {
				So(first.Cached, ShouldBeFalse)
				So(second.Cached, ShouldBeTrue)
				So(c.trending.Load(), ShouldEqual, 1)
				So(string(second.Data), ShouldEqual, string(first.Data))
			})

			Convey("Then the trending list should be wrapped in a section", func() {
				var content homeContent
				So(json.Unmarshal(first.Data, &content), ShouldBeNil)
				So(content.OperatingList, ShouldHaveLength, 1)
				So(content.OperatingList[0].Title, ShouldEqual, HomeSection)
				So(string(content.OperatingList[0].Subjects), ShouldContainSubstring, "hot-30")
			})

			Convey("Then listed detail paths should be known", func() {
				So(paths.Resolve(ctx, "30"), ShouldEqual, "hot-30")
				So(c.details.Load(), ShouldEqual, 0)
			})
		})

		Convey("When the home cache expires", func() {
			_, err := service.Home(ctx)
			So(err, ShouldBeNil)
			service.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
			again, err := service.Home(ctx)

			Convey("Then the listing should be fetched again", func() {
				So(err, ShouldBeNil)
				So(again.Cached, ShouldBeFalse)
				So(c.trending.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the trending payload is malformed", func() {
			c.hot = json.RawMessage(`[1,2,3]`)
			_, err := service.Home(ctx)

			Convey("Then a shape error should be reported and nothing cached", func() {
				So(errors.Is(err, catalog.ErrShape), ShouldBeTrue)
				_, err := service.Home(ctx)
				So(err, ShouldNotBeNil)
				So(c.trending.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the trending list is null", func() {
			c.hot = json.RawMessage(`{"subjectList":null}`)
			home, err := service.Home(ctx)

			Convey("Then the section should hold an empty list", func() {
				So(err, ShouldBeNil)
				var content homeContent
				So(json.Unmarshal(home.Data, &content), ShouldBeNil)
				So(string(content.OperatingList[0].Subjects), ShouldEqual, "[]")
			})
		})

		Convey("When the backend fails", func() {
			c.err = errors.New("down")
			_, err := service.Home(ctx)

			Convey("Then the cause should be kept", func() {
				So(errors.Is(err, c.err), ShouldBeTrue)
			})
		})
	})
}

func TestPassThrough(t *testing.T) {
	Convey("Given a browse service", t, func() {
		c := &fakeCatalog{}
		service, paths := newService(c)
		ctx := context.Background()

		Convey("Search should pass the payload through and seed paths", func() {
			page, err := service.Search(ctx, "matrix", 1, 24)
			So(err, ShouldBeNil)
			So(string(page.Data), ShouldContainSubstring, "found-10")
			So(paths.Resolve(ctx, "10"), ShouldEqual, "found-10")
		})

		Convey("Recommendations should seed paths", func() {
			_, err := service.Recommendations(ctx, "10", 1, 12)
			So(err, ShouldBeNil)
			So(paths.Resolve(ctx, "20"), ShouldEqual, "related-20")
		})

		Convey("Details should remember the path of the title", func() {
			page, err := service.Details(ctx, "40")
			So(err, ShouldBeNil)
			So(string(page.Data), ShouldContainSubstring, "40")
			So(paths.Resolve(ctx, "40"), ShouldEqual, "detail-40")
			So(c.details.Load(), ShouldEqual, 1)
		})

		Convey("Details should not replace a known path", func() {
			So(paths.Remember("41", "known-41"), ShouldBeTrue)
			_, err := service.Details(ctx, "41")
			So(err, ShouldBeNil)
			So(paths.Resolve(ctx, "41"), ShouldEqual, "known-41")
		})
	})
}
