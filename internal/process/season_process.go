// Package process wires the sources, the reconciler and the file builders
// into the per-season pipeline the CLI drives.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charleschow/fpl-pipeline/internal/adapters/inbound/console"
	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/archive"
	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/discord"
	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/fbref_http"
	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/fpl_http"
	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/httpfetch"
	"github.com/charleschow/fpl-pipeline/internal/config"
	"github.com/charleschow/fpl-pipeline/internal/core/finalize"
	"github.com/charleschow/fpl-pipeline/internal/core/fplcsv"
	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/core/gameweek"
	"github.com/charleschow/fpl-pipeline/internal/core/identity"
	"github.com/charleschow/fpl-pipeline/internal/core/retry"
	"github.com/charleschow/fpl-pipeline/internal/season"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

// Deps are the collaborators a Runner drives. Decide and DecideURL are nil
// when matching runs unattended.
type Deps struct {
	FPL       *fpl_http.Client
	FBRef     *fbref_http.Client
	Archive   *archive.Client
	Clubs     config.ClubLinks
	Notifier  *discord.Notifier
	Decide    identity.Decider
	DecideURL identity.URLDecider
}

type Runner struct {
	cfg  *config.Config
	deps Deps
	now  func() time.Time
}

func New(cfg *config.Config, deps Deps) *Runner {
	if deps.Notifier == nil {
		deps.Notifier = discord.NewNotifier("")
	}
	if deps.Clubs == nil {
		deps.Clubs = config.DefaultClubLinks()
	}
	return &Runner{cfg: cfg, deps: deps, now: time.Now}
}

// Build constructs every client from cfg. Prompts, when enabled, read from
// in and write to out.
func Build(cfg *config.Config, in io.Reader, out io.Writer) *Runner {
	fetchCfg := httpfetch.Config{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.HTTPTimeout,
		Policy:    retry.Policy{MaxAttempts: cfg.MaxRetries, Delay: cfg.RetryDelay},
		MaxWait:   cfg.MaxWait,
	}
	deps := Deps{
		FPL:      fpl_http.NewClient(cfg.FPLBaseURL, httpfetch.New("fpl", fetchCfg)),
		FBRef:    fbref_http.NewClient(cfg.FBRefBaseURL, cfg.Competition, httpfetch.New("fbref", fetchCfg)),
		Archive:  archive.NewClient(cfg.ArchiveBaseURL, httpfetch.New("archive", fetchCfg)),
		Clubs:    config.LoadClubLinks(cfg.ClubsConfigPath),
		Notifier: discord.NewNotifier(cfg.DiscordWebhookURL),
	}
	if cfg.Interactive || cfg.ManualFallback {
		p := console.New(in, out)
		if cfg.Interactive {
			deps.Decide = p.Sift
		}
		if cfg.ManualFallback {
			deps.DecideURL = p.ProfileURL
		}
	}
	return New(cfg, deps)
}

func (r *Runner) SeasonDir(seasonLabel string) string {
	return filepath.Join(r.cfg.DataDir, seasonLabel)
}

// IsCurrent reports whether seasonLabel is live on the FPL API rather than
// finished and archived.
func (r *Runner) IsCurrent(seasonLabel string) bool {
	return seasonLabel == season.Current(r.now())
}

// ScrapeFPL pulls the live season from the FPL API, writes every season
// file and builds the gameweek tables. It returns the current gameweek.
func (r *Runner) ScrapeFPL(ctx context.Context, seasonLabel string) (int, error) {
	dir := r.SeasonDir(seasonLabel)
	b, err := r.deps.FPL.Bootstrap(ctx)
	if err != nil {
		return 0, err
	}
	if err := fplcsv.WritePlayersRaw(dir, b.Elements); err != nil {
		return 0, err
	}
	if err := fplcsv.CleanPlayers(dir); err != nil {
		return 0, err
	}
	fixtures, err := r.deps.FPL.Fixtures(ctx)
	if err != nil {
		return 0, err
	}
	if err := fplcsv.WriteFixtures(dir, fixtures); err != nil {
		return 0, err
	}
	if err := fplcsv.WriteTeams(dir, b.Teams); err != nil {
		return 0, err
	}
	if err := fplcsv.IDPlayers(dir); err != nil {
		return 0, err
	}

	refs, err := fplcsv.PlayerRefs(dir)
	if err != nil {
		return 0, err
	}
	if err := r.playerHistories(ctx, dir, refs); err != nil {
		return 0, err
	}

	current := b.CurrentGameweek()
	return current, r.Gameweeks(seasonLabel, current)
}

// playerHistories fetches one element summary at a time. A player whose
// request fails is logged and skipped; a write failure stops the season.
func (r *Runner) playerHistories(ctx context.Context, dir string, refs []fplcsv.PlayerRef) error {
	playersDir := filepath.Join(dir, fplcsv.PlayersDir)
	for i, ref := range refs {
		s, err := r.deps.FPL.ElementSummary(ctx, ref.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			telemetry.Errorf("fpl: %s (id=%d) skipped: %v", ref.Name, ref.ID, err)
			telemetry.Metrics.EntitiesSkipped.Inc()
			continue
		}
		if err := fplcsv.WritePlayerHistory(playersDir, ref, s.History, s.HistoryPast); err != nil {
			return err
		}
		if (i+1)%100 == 0 {
			telemetry.Infof("fpl: %d/%d player histories written", i+1, len(refs))
		}
	}
	return nil
}

// CurrentGameweek asks the FPL API which gameweek is live.
func (r *Runner) CurrentGameweek(ctx context.Context) (int, error) {
	b, err := r.deps.FPL.Bootstrap(ctx)
	if err != nil {
		return 0, err
	}
	return b.CurrentGameweek(), nil
}

// Gameweeks builds gws/gw_1..current and rewrites merged_gw.csv.
func (r *Runner) Gameweeks(seasonLabel string, current int) error {
	if current < 1 {
		telemetry.Warnf("%s has no finished gameweeks yet", seasonLabel)
		return nil
	}
	dir := r.SeasonDir(seasonLabel)
	if err := gameweek.CollectAll(dir, filepath.Join(dir, fplcsv.GameweeksDir), current); err != nil {
		return err
	}
	rep, err := gameweek.Merge(dir, 1, current, "")
	if err != nil {
		return err
	}
	if len(rep.Missing) > 0 {
		telemetry.Warnf("%s merged without gameweeks %v", seasonLabel, rep.Missing)
	}
	return nil
}

// Gameweek rebuilds the single gameweek file gw, then re-merges 1..current.
func (r *Runner) Gameweek(seasonLabel string, gw, current int) error {
	if gw < 1 || gw > current {
		return fmt.Errorf("gameweek %d outside 1..%d", gw, current)
	}
	dir := r.SeasonDir(seasonLabel)
	if err := gameweek.CollectGameweek(dir, filepath.Join(dir, fplcsv.GameweeksDir), gw); err != nil {
		return err
	}
	rep, err := gameweek.Merge(dir, 1, current, "")
	if err != nil {
		return err
	}
	if len(rep.Missing) > 0 {
		telemetry.Warnf("%s merged without gameweeks %v", seasonLabel, rep.Missing)
	}
	return nil
}

// PullArchive fetches a finished season from the public archive and builds
// players_clean.csv from it.
func (r *Runner) PullArchive(ctx context.Context, seasonLabel string) error {
	dir := r.SeasonDir(seasonLabel)
	if err := r.deps.Archive.DownloadSeason(ctx, seasonLabel, dir); err != nil {
		return err
	}
	return fplcsv.CleanPlayers(dir)
}

func (r *Runner) CollectFPL(ctx context.Context, seasonLabel string) error {
	if !r.IsCurrent(seasonLabel) {
		return r.PullArchive(ctx, seasonLabel)
	}
	_, err := r.ScrapeFPL(ctx, seasonLabel)
	return err
}

// CollectFBRefIDs scrapes every team page of the season's clubs and writes
// fbref_ids.csv.
func (r *Runner) CollectFBRefIDs(ctx context.Context, seasonLabel string) error {
	fbrefSeason, err := season.FBRefSeason(seasonLabel)
	if err != nil {
		return err
	}
	dir := r.SeasonDir(seasonLabel)
	teams, err := frame.ReadCSV(filepath.Join(dir, fplcsv.TeamsFile))
	if err != nil {
		return err
	}
	if err := teams.Require("name"); err != nil {
		return fmt.Errorf("%s: %w", fplcsv.TeamsFile, err)
	}
	names := make([]string, 0, teams.Len())
	for i := range teams.Rows {
		names = append(names, teams.Get(i, "name"))
	}
	players, err := r.deps.FBRef.CollectTeamPlayers(ctx, names, r.deps.Clubs.ForSeason(fbrefSeason), r.cfg.CallRate)
	if err != nil {
		return fmt.Errorf("collect fbref ids for %s: %w", seasonLabel, err)
	}
	return identity.WriteFBRefRoster(filepath.Join(dir, identity.FBRefRosterFile), players)
}

func (r *Runner) reconciler() *identity.Reconciler {
	rec := identity.NewReconciler()
	rec.Threshold = r.cfg.FuzzyThreshold
	rec.Decide = r.deps.Decide
	rec.DecideURL = r.deps.DecideURL
	return rec
}

func (r *Runner) Reconcile(seasonLabel string) (identity.Result, error) {
	res, err := identity.ReconcileSeason(r.cfg.DataDir, seasonLabel, r.reconciler())
	if err != nil {
		return res, err
	}
	stats := res.Stats()
	telemetry.Infof("%s matched exact=%d carry_forward=%d fuzzy=%d sift=%d manual=%d missing=%d",
		seasonLabel, stats[identity.StageExact], stats[identity.StageCarryForward], stats[identity.StageFuzzy],
		stats[identity.StageSift], stats[identity.StageManual], len(res.Missing))
	return res, nil
}

// CollectMatchLogs fetches match logs for every resolved player in the
// season's mapping and writes fbref_merged_gw_data.csv.
func (r *Runner) CollectMatchLogs(ctx context.Context, seasonLabel string) error {
	fbrefSeason, err := season.FBRefSeason(seasonLabel)
	if err != nil {
		return err
	}
	dir := r.SeasonDir(seasonLabel)
	matches, err := identity.ReadMatches(filepath.Join(dir, identity.MatchesFile))
	if err != nil {
		return fmt.Errorf("player mapping for %s: %w", seasonLabel, err)
	}
	t, err := r.deps.FBRef.CollectPlayersData(ctx, matches, fbrefSeason, r.cfg.CallRate)
	if err != nil {
		return err
	}
	return t.WriteCSV(filepath.Join(dir, finalize.FBRefDataFile))
}

// Finalize applies the last CSV edits and, for the live season, extracts
// the latest gameweek.
func (r *Runner) Finalize(seasonLabel string) error {
	fbrefSeason, err := season.FBRefSeason(seasonLabel)
	if err != nil {
		return err
	}
	dir := r.SeasonDir(seasonLabel)
	if err := finalize.Season(dir, seasonLabel, r.deps.Clubs.ForSeason(fbrefSeason)); err != nil {
		return err
	}
	if r.IsCurrent(seasonLabel) {
		return finalize.RecentGameweeks(dir)
	}
	return nil
}

// RunSeason is the full per-season pipeline. With collectIDs false the
// existing fbref_ids.csv and player mapping are reused.
func (r *Runner) RunSeason(ctx context.Context, seasonLabel string, collectIDs bool) (err error) {
	if err := season.Validate(seasonLabel); err != nil {
		return err
	}
	start := r.now()
	var res identity.Result
	defer func() {
		r.notify(ctx, seasonLabel, "run", res, start, err)
	}()

	telemetry.Infof("Starting full data collection pipeline for %s", seasonLabel)
	if err = r.CollectFPL(ctx, seasonLabel); err != nil {
		return err
	}
	if collectIDs {
		if err = r.CollectFBRefIDs(ctx, seasonLabel); err != nil {
			return err
		}
		if res, err = r.Reconcile(seasonLabel); err != nil {
			return err
		}
	} else {
		res = r.loadResult(seasonLabel)
	}
	if err = r.CollectMatchLogs(ctx, seasonLabel); err != nil {
		return err
	}
	if err = r.Finalize(seasonLabel); err != nil {
		return err
	}
	telemetry.Infof("%s pipeline completed", seasonLabel)
	return nil
}

// RunSeasons collects rosters for every season first, reconciles them
// oldest first so each season can carry forward from the one before, then
// runs the rest of the pipeline per season. A failed season does not stop
// the others; all failures are returned together.
func (r *Runner) RunSeasons(ctx context.Context, seasons []string, collectIDs bool) error {
	ordered := append([]string(nil), seasons...)
	for _, s := range ordered {
		if err := season.Validate(s); err != nil {
			return fmt.Errorf("season %q: %w", s, err)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		before, _ := season.Before(ordered[i], ordered[j])
		return before
	})

	var errs []error
	failed := map[string]bool{}
	fail := func(s string, err error) {
		telemetry.Errorf("%s failed: %v", s, err)
		errs = append(errs, fmt.Errorf("%s: %w", s, err))
		failed[s] = true
	}

	if collectIDs {
		for _, s := range ordered {
			if err := r.CollectFPL(ctx, s); err != nil {
				fail(s, err)
				continue
			}
			if err := r.CollectFBRefIDs(ctx, s); err != nil {
				fail(s, err)
			}
		}
		for _, s := range ordered {
			if failed[s] {
				continue
			}
			telemetry.Infof("Merging fpl and fbref ids for %s", s)
			if _, err := r.Reconcile(s); err != nil {
				fail(s, err)
			}
		}
	}

	for _, s := range ordered {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if failed[s] {
			continue
		}
		if err := r.RunSeason(ctx, s, false); err != nil {
			fail(s, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) loadResult(seasonLabel string) identity.Result {
	dir := r.SeasonDir(seasonLabel)
	var res identity.Result
	if matches, err := identity.ReadMatches(filepath.Join(dir, identity.MatchesFile)); err == nil {
		res.Matches = matches
	}
	if missing, err := identity.ReadMissing(filepath.Join(dir, identity.MissingFile)); err == nil {
		res.Missing = missing
	} else if !errors.Is(err, os.ErrNotExist) {
		telemetry.Warnf("%s: %v", seasonLabel, err)
	}
	return res
}

func (r *Runner) notify(ctx context.Context, seasonLabel, stage string, res identity.Result, start time.Time, runErr error) {
	matched := 0
	for _, m := range res.Matches {
		if m.Resolved() {
			matched++
		}
	}
	report := discord.SeasonReport{
		Season:   seasonLabel,
		Stage:    stage,
		Matched:  matched,
		Missing:  res.Missing,
		Skipped:  telemetry.Metrics.EntitiesSkipped.Value(),
		Err:      runErr,
		Duration: r.now().Sub(start),
	}
	// A cancelled run still reports; give the post its own deadline.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.deps.Notifier.SeasonDone(nctx, report); err != nil {
		telemetry.Warnf("discord: %v", err)
	}
}
