package filesystem

import (
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestApi(t *testing.T) {
	Convey("Filesystem API", t, func() {
		Convey("Should default to OsFs", func() {
			SetOsFs()
			fs := API()
			So(fs, ShouldNotBeNil)
			So(fs.Name(), ShouldEqual, "OsFs")
		})

		Convey("Should switch to MemMapFs", func() {
			SetMemMapFs()
			fs := API()
			So(fs, ShouldNotBeNil)
			So(fs.Name(), ShouldEqual, "MemMapFS")
		})

		Convey("Volatile backend is always in memory", func() {
			SetOsFs()
			So(Volatile().Name(), ShouldEqual, "MemMapFS")
		})
	})
}

func TestGacheFs(t *testing.T) {
	Convey("GacheFs writes land on the volatile backend", t, func() {
		var g GacheFs
		So(g.MkdirAll("/slots", os.ModePerm), ShouldBeNil)

		f, err := g.OpenFile("/slots/home.json", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		So(err, ShouldBeNil)
		_, err = f.Write([]byte("{}"))
		So(err, ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		exists, err := Volatile().Exists("/slots/home.json")
		So(err, ShouldBeNil)
		So(exists, ShouldBeTrue)
	})
}
