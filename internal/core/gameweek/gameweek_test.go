package gameweek

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	. "github.com/smartystreets/goconvey/convey"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func seedSeason(t *testing.T) string {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "teams.csv"), "id,name\n12,Liverpool\n18,Spurs\n")
	write(t, filepath.Join(dir, "fixtures.csv"), "id,team_h,team_a\n1,12,18\n2,18,12\n")
	write(t, filepath.Join(dir, "players_raw.csv"),
		"element_type,first_name,id,second_name\n3,Mohamed,328,Salah\n4,Heung-Min,351,Son\n")
	write(t, filepath.Join(dir, "players", "Mohamed_Salah_328", "gw.csv"),
		"fixture,round,total_points,was_home\n1,1,12,True\n2,2,2,False\n")
	write(t, filepath.Join(dir, "players", "Heung-Min_Son_351", "gw.csv"),
		"fixture,round,total_points,was_home\n1,1,6,False\n2,2,8,True\n")
	return dir
}

func TestCollect(t *testing.T) {
	Convey("Given player histories for two gameweeks", t, func() {
		dir := seedSeason(t)
		out := filepath.Join(dir, "gws")

		So(CollectAll(dir, out, 2), ShouldBeNil)

		Convey("Each gameweek file has enriched rows for that round only", func() {
			gw1, err := frame.ReadCSV(filepath.Join(out, "gw_1.csv"))
			So(err, ShouldBeNil)
			So(gw1.Header[:4], ShouldResemble, []string{"name", "position", "team", "xP"})
			So(gw1.Len(), ShouldEqual, 2)

			// Directory order: Heung-Min_Son_351 sorts before Mohamed_Salah_328.
			So(gw1.Get(0, "name"), ShouldEqual, "Heung-Min Son")
			So(gw1.Get(0, "team"), ShouldEqual, "Spurs")
			So(gw1.Get(0, "position"), ShouldEqual, "FWD")
			So(gw1.Get(1, "team"), ShouldEqual, "Liverpool")
			So(gw1.Get(1, "total_points"), ShouldEqual, "12")

			gw2, err := frame.ReadCSV(filepath.Join(out, "gw_2.csv"))
			So(err, ShouldBeNil)
			So(gw2.Get(0, "team"), ShouldEqual, "Spurs")
			So(gw2.Get(1, "team"), ShouldEqual, "Liverpool")
		})
	})

	Convey("Given a single gameweek rebuild", t, func() {
		dir := seedSeason(t)
		out := filepath.Join(dir, "gws")
		So(CollectGameweek(dir, out, 2), ShouldBeNil)

		Convey("Only that gameweek file is written", func() {
			gw2, err := frame.ReadCSV(filepath.Join(out, "gw_2.csv"))
			So(err, ShouldBeNil)
			So(gw2.Len(), ShouldEqual, 2)
			So(gw2.Get(1, "total_points"), ShouldEqual, "2")

			_, err = os.Stat(filepath.Join(out, "gw_1.csv"))
			So(os.IsNotExist(err), ShouldBeTrue)
		})
	})

	Convey("Given a season without teams.csv", t, func() {
		dir := seedSeason(t)
		So(os.Remove(filepath.Join(dir, "teams.csv")), ShouldBeNil)

		Convey("Collecting fails for the whole season", func() {
			So(CollectAll(dir, filepath.Join(dir, "gws"), 2), ShouldNotBeNil)
		})
	})
}

func TestMerge(t *testing.T) {
	Convey("Given gameweek files with gameweek 5 missing", t, func() {
		dir := t.TempDir()
		for _, gw := range []string{"1", "2", "3", "4", "6"} {
			write(t, filepath.Join(dir, "gws", "gw_"+gw+".csv"), "name,total_points\nMohamed Salah,"+gw+"\n")
		}

		report, err := Merge(dir, 1, 6, "")

		Convey("The other gameweeks are merged and tagged", func() {
			So(err, ShouldBeNil)
			So(report.Missing, ShouldResemble, []int{5})
			So(report.Merged, ShouldResemble, []int{1, 2, 3, 4, 6})

			tb, err := frame.ReadCSV(filepath.Join(dir, MergedFile))
			So(err, ShouldBeNil)
			So(tb.Len(), ShouldEqual, 5)
			So(tb.Get(4, "GW"), ShouldEqual, "6")
			So(tb.Get(4, "total_points"), ShouldEqual, "6")
		})

		Convey("Merging again rewrites rather than appends", func() {
			_, err := Merge(dir, 1, 6, "")
			So(err, ShouldBeNil)
			tb, err := frame.ReadCSV(filepath.Join(dir, MergedFile))
			So(err, ShouldBeNil)
			So(tb.Len(), ShouldEqual, 5)
		})
	})

	Convey("Given no gameweek files at all", t, func() {
		_, err := Merge(t.TempDir(), 1, 3, "")
		So(errors.Is(err, ErrNoGameweeks), ShouldBeTrue)
	})
}
