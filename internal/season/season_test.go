package season_test

import (
	"errors"
	"testing"
	"time"

	"github.com/charleschow/fpl-pipeline/internal/season"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSeasonLabels(t *testing.T) {
	Convey("Given season labels", t, func() {
		Convey("Previous and Next invert each other for every valid label", func() {
			for start := 1990; start <= 2110; start++ {
				s := season.Format(start)
				prev, err := season.Previous(s)
				So(err, ShouldBeNil)
				back, err := season.Next(prev)
				So(err, ShouldBeNil)
				So(back, ShouldEqual, s)

				prevPrev, err := season.Previous(prev)
				So(err, ShouldBeNil)
				forward, _ := season.Next(prevPrev)
				forward, _ = season.Next(forward)
				So(forward, ShouldEqual, s)
			}
		})

		Convey("Century boundaries keep two-digit suffixes", func() {
			prev, err := season.Previous("2000-01")
			So(err, ShouldBeNil)
			So(prev, ShouldEqual, "1999-00")

			next, err := season.Next("2099-00")
			So(err, ShouldBeNil)
			So(next, ShouldEqual, "2100-01")
		})

		Convey("Malformed labels are configuration errors", func() {
			for _, bad := range []string{"2024", "2024-2025", "24-25", "2024-26", "abcd-ef", ""} {
				err := season.Validate(bad)
				So(errors.Is(err, season.ErrInvalidSeason), ShouldBeTrue)
			}
		})

		Convey("FBRef labels use full years", func() {
			s, err := season.FBRefSeason("2024-25")
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "2024-2025")

			s, err = season.FBRefSeason("1999-00")
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "1999-2000")
		})

		Convey("Current rolls over in August", func() {
			So(season.Current(time.Date(2024, time.July, 31, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2023-24")
			So(season.Current(time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2024-25")
		})

		Convey("Before orders by start year", func() {
			before, err := season.Before("2022-23", "2023-24")
			So(err, ShouldBeNil)
			So(before, ShouldBeTrue)
			before, _ = season.Before("2023-24", "2023-24")
			So(before, ShouldBeFalse)
		})
	})
}
