package cache

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given an entry stored at noon", t, func() {
		noon := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		entry := Entry[int]{Value: 1, StoredAt: noon}

		Convey("It should be valid before the TTL elapses", func() {
			So(entry.Valid(time.Minute, noon.Add(59*time.Second)), ShouldBeTrue)
		})

		Convey("It should be invalid once the TTL elapses", func() {
			So(entry.Valid(time.Minute, noon.Add(time.Minute)), ShouldBeFalse)
		})

		Convey("It should report its age", func() {
			So(entry.Age(noon.Add(5*time.Second)), ShouldEqual, 5*time.Second)
		})
	})
}

func TestStore(t *testing.T) {
	Convey("Given an empty store", t, func() {
		store := New[string](5 * time.Minute)
		now := time.Now()

		Convey("Paths should be absent", func() {
			So(store.Path("1").IsAbsent(), ShouldBeTrue)
		})

		Convey("When a path is set", func() {
			store.SetPath("1", "movie-1")

			Convey("Then it should be returned", func() {
				So(store.Path("1").MustGet(), ShouldEqual, "movie-1")
			})

			Convey("Then seeding should not overwrite it", func() {
				So(store.SeedPath("1", "other"), ShouldBeFalse)
				So(store.Path("1").MustGet(), ShouldEqual, "movie-1")
			})
		})

		Convey("Seeding an unknown id should store it", func() {
			So(store.SeedPath("2", "movie-2"), ShouldBeTrue)
			So(store.Paths(), ShouldEqual, 1)
		})

		Convey("Empty stream lists should be refused", func() {
			So(store.SetStreams("1", nil, now), ShouldBeFalse)
			So(store.Streams("1").IsAbsent(), ShouldBeTrue)
		})

		Convey("Non-empty stream lists should be kept with their timestamp", func() {
			So(store.SetStreams("1", []string{"a"}, now), ShouldBeTrue)
			entry := store.Streams("1").MustGet()
			So(entry.Value, ShouldResemble, []string{"a"})
			So(entry.StoredAt, ShouldEqual, now)
		})

		Convey("The home slot should be empty", func() {
			So(store.Home(now).IsAbsent(), ShouldBeTrue)
		})

		Convey("When the home slot is set", func() {
			So(store.SetHome(json.RawMessage(`{"a":1}`), now), ShouldBeNil)

			Convey("Then it should be served while fresh", func() {
				entry := store.Home(now.Add(time.Minute)).MustGet()
				So(string(entry.Value), ShouldEqual, `{"a":1}`)
			})

			Convey("Then it should expire after the TTL", func() {
				So(store.Home(now.Add(5*time.Minute)).IsAbsent(), ShouldBeTrue)
			})
		})
	})
}
