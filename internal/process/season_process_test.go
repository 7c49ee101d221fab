package process

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charleschow/fpl-pipeline/internal/config"
	"github.com/charleschow/fpl-pipeline/internal/core/finalize"
	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/core/gameweek"
	"github.com/charleschow/fpl-pipeline/internal/core/identity"
	. "github.com/smartystreets/goconvey/convey"
)

const bootstrapJSON = `{
	"elements": [
		{"id": 1, "first_name": "Mohamed", "second_name": "Salah", "element_type": 3, "team": 1, "total_points": 12},
		{"id": 2, "first_name": "Erling", "second_name": "Haaland", "element_type": 4, "team": 2, "total_points": 6}
	],
	"teams": [{"id": 1, "name": "Liverpool"}, {"id": 2, "name": "Man City"}],
	"events": [{"id": 1, "is_current": true, "finished": true}]
}`

func fplServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bootstrap-static/":
			io.WriteString(w, bootstrapJSON)
		case "/fixtures/":
			io.WriteString(w, `[{"id": 1, "event": 1, "team_h": 1, "team_a": 2}]`)
		case "/element-summary/1/":
			io.WriteString(w, `{"history": [{"element": 1, "fixture": 1, "round": 1, "was_home": true, "total_points": 12, "modified": false}], "history_past": []}`)
		case "/element-summary/2/":
			io.WriteString(w, `{"history": [{"element": 2, "fixture": 1, "round": 1, "was_home": false, "total_points": 6, "modified": false}], "history_past": []}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func matchLogs(rows string) string {
	return `<html><body><table id="matchlogs_all">
<thead><tr><th>Date</th><th>Comp</th><th>Round</th><th>Start</th><th>Gls</th></tr></thead>
<tbody>` + rows + `</tbody></table></body></html>`
}

func fbrefServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		switch {
		case strings.HasPrefix(p, "/en/squads/822bd0ba/"):
			io.WriteString(w, `<a href="/en/players/e342ad68/Mohamed-Salah">Mohamed Salah</a>`)
		case strings.HasPrefix(p, "/en/squads/b8fd03ef/"):
			io.WriteString(w, `<a href="/en/players/1f44ac21/Erling-Haaland">Erling Haaland</a>`)
		case strings.Contains(p, "/matchlogs/") && strings.HasSuffix(p, "Mohamed-Salah-Match-Logs"):
			io.WriteString(w, matchLogs(
				`<tr><th>2024-08-17</th><td>Premier League</td><td>Matchweek 1</td><td>Y*</td><td>1</td></tr>`+
					`<tr><th>2024-09-17</th><td>Champions Lg</td><td>League phase</td><td>Y</td><td>0</td></tr>`))
		case strings.Contains(p, "/matchlogs/") && strings.HasSuffix(p, "Erling-Haaland-Match-Logs"):
			io.WriteString(w, matchLogs(
				`<tr><th>2024-08-17</th><td>Premier League</td><td>Matchweek 1</td><td>Y</td><td>1</td></tr>`))
		default:
			http.NotFound(w, r)
		}
	}))
}

var archiveFiles = map[string]string{
	"fixtures.csv":      "id,event,team_h,team_a\n1,1,1,2\n",
	"player_idlist.csv": "first_name,second_name,id\nMohamed,Salah,1\nErling,Haaland,2\n",
	"teams.csv":         "id,name\n1,Liverpool\n2,Man City\n",
	"gws/merged_gw.csv": "name,element,fixture,round,total_points,was_home,modified,GW\nMohamed Salah,1,1,1,12,True,False,1\n",
	"players_raw.csv":   "element_type,first_name,id,second_name,team,total_points\n3,Mohamed,1,Salah,1,200\n4,Erling,2,Haaland,2,180\n",
}

func archiveServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := archiveFiles[strings.TrimPrefix(r.URL.Path, "/2023-24/")]
		if !ok || !strings.HasPrefix(r.URL.Path, "/2023-24/") {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	}))
}

func newTestRunner(t *testing.T, fplURL, fbrefURL, archiveURL string) *Runner {
	cfg := &config.Config{
		DataDir:        t.TempDir(),
		FPLBaseURL:     fplURL,
		FBRefBaseURL:   fbrefURL,
		ArchiveBaseURL: archiveURL,
		Competition:    "Premier League",
		CallRate:       10,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
		HTTPTimeout:    2 * time.Second,
		FuzzyThreshold: 95,
	}
	r := Build(cfg, strings.NewReader(""), io.Discard)
	r.deps.FBRef.PaceEvery(0)
	r.deps.Clubs = config.ClubLinks{
		"Liverpool": fbrefURL + "/en/squads/822bd0ba/" + config.SeasonPlaceholder + "/Liverpool-Stats",
		"Man City":  fbrefURL + "/en/squads/b8fd03ef/" + config.SeasonPlaceholder + "/Manchester-City-Stats",
	}
	r.now = func() time.Time { return time.Date(2024, time.October, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func read(t *testing.T, path string) *frame.Table {
	t.Helper()
	tb, err := frame.ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

func TestRunSeasonLive(t *testing.T) {
	fpl, fb, arc := fplServer(), fbrefServer(), archiveServer()
	defer fpl.Close()
	defer fb.Close()
	defer arc.Close()

	Convey("Given the live season served by FPL and FBRef", t, func() {
		r := newTestRunner(t, fpl.URL, fb.URL, arc.URL)
		dir := r.SeasonDir("2024-25")
		So(r.IsCurrent("2024-25"), ShouldBeTrue)

		So(r.RunSeason(context.Background(), "2024-25", true), ShouldBeNil)

		Convey("Both players are matched on exact names", func() {
			matches, err := identity.ReadMatches(filepath.Join(dir, identity.MatchesFile))
			So(err, ShouldBeNil)
			So(len(matches), ShouldEqual, 2)
			So(matches[0].IDFBRef, ShouldEqual, "e342ad68")
			So(matches[1].IDFBRef, ShouldEqual, "1f44ac21")
		})

		Convey("Gameweek tables are merged and tagged with the season", func() {
			merged := read(t, filepath.Join(dir, gameweek.MergedFile))
			So(merged.Len(), ShouldEqual, 2)
			So(merged.Has("modified"), ShouldBeFalse)
			So(merged.Get(0, "season"), ShouldEqual, "2024-25")
			// Player directories are read in name order, Erling before Mohamed.
			So(merged.Get(0, "team"), ShouldEqual, "Man City")
			So(merged.Get(1, "team"), ShouldEqual, "Liverpool")
		})

		Convey("Match logs keep league rows with numeric rounds", func() {
			logs := read(t, filepath.Join(dir, finalize.FBRefDataFile))
			So(logs.Len(), ShouldEqual, 2)
			So(logs.Get(0, "name"), ShouldEqual, "Mohamed Salah")
			So(logs.Get(0, "Round"), ShouldEqual, "1")
			So(logs.Get(0, "Captain"), ShouldEqual, "1")
			So(logs.Get(0, "Start"), ShouldEqual, "1")
			So(logs.Get(1, "Captain"), ShouldEqual, "0")
			So(logs.Get(1, "Season"), ShouldEqual, "2024-25")
		})

		Convey("Teams carry their FBRef squad id", func() {
			teams := read(t, filepath.Join(dir, "teams.csv"))
			So(teams.Get(0, "fbref_id"), ShouldEqual, "822bd0ba")
			So(teams.Get(1, "fbref_id"), ShouldEqual, "b8fd03ef")
		})

		Convey("A single gameweek can be rebuilt in range only", func() {
			So(r.Gameweek("2024-25", 1, 1), ShouldBeNil)
			So(read(t, filepath.Join(dir, gameweek.MergedFile)).Len(), ShouldEqual, 2)
			So(r.Gameweek("2024-25", 2, 1), ShouldNotBeNil)
		})

		Convey("The latest gameweek is extracted", func() {
			recent := read(t, filepath.Join(dir, finalize.RecentGameweekFile))
			So(recent.Len(), ShouldEqual, 2)
			_, err := os.Stat(filepath.Join(dir, finalize.FBRefRecentRoundFile))
			So(err, ShouldBeNil)
		})
	})
}

func TestRunSeasons(t *testing.T) {
	fpl, fb, arc := fplServer(), fbrefServer(), archiveServer()
	defer fpl.Close()
	defer fb.Close()
	defer arc.Close()

	Convey("Given one archived season and one the archive does not have", t, func() {
		r := newTestRunner(t, fpl.URL, fb.URL, arc.URL)

		err := r.RunSeasons(context.Background(), []string{"2023-24", "2022-23"}, true)

		Convey("The missing season fails without stopping the other", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "2022-23")
			So(err.Error(), ShouldNotContainSubstring, "2023-24:")

			dir := r.SeasonDir("2023-24")
			clean := read(t, filepath.Join(dir, "players_clean.csv"))
			So(clean.Get(0, "element_type"), ShouldEqual, "MID")
			So(clean.Get(0, "season"), ShouldEqual, "2023-24")

			merged := read(t, filepath.Join(dir, gameweek.MergedFile))
			So(merged.Has("modified"), ShouldBeFalse)

			logs := read(t, filepath.Join(dir, finalize.FBRefDataFile))
			So(logs.Len(), ShouldEqual, 2)

			_, statErr := os.Stat(filepath.Join(dir, finalize.RecentGameweekFile))
			So(os.IsNotExist(statErr), ShouldBeTrue)
		})
	})

	Convey("Given a malformed season label", t, func() {
		r := newTestRunner(t, fpl.URL, fb.URL, arc.URL)
		err := r.RunSeasons(context.Background(), []string{"2023-24", "2023/24"}, true)

		Convey("Nothing runs", func() {
			So(err, ShouldNotBeNil)
			_, statErr := os.Stat(r.SeasonDir("2023-24"))
			So(os.IsNotExist(statErr), ShouldBeTrue)
		})
	})
}
