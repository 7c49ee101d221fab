package warehouse

import (
	"fmt"
	"strings"
)

// Staging tables hold the season files column for column as text; typing
// happens in the transform layer downstream.
type Staging struct {
	Name    string
	File    string
	Columns []string
}

var StagingTables = []Staging{
	{Name: "raw_team_data", File: "teams.csv", Columns: []string{
		"code", "draw", "form", "id", "loss", "name", "played", "points", "position",
		"short_name", "strength", "team_division", "unavailable", "win",
		"strength_overall_home", "strength_overall_away", "strength_attack_home",
		"strength_attack_away", "strength_defence_home", "strength_defence_away",
		"pulse_id", "season", "fbref_id",
	}},
	{Name: "raw_fixtures", File: "fixtures.csv", Columns: []string{
		"code", "event", "finished", "finished_provisional", "id", "kickoff_time",
		"minutes", "provisional_start_time", "started", "team_a", "team_a_score",
		"team_h", "team_h_score", "stats", "team_h_difficulty", "team_a_difficulty",
		"pulse_id", "season",
	}},
	{Name: "raw_players_clean", File: "players_clean.csv", Columns: []string{
		"first_name", "second_name", "goals_scored", "assists", "total_points",
		"minutes", "goals_conceded", "creativity", "influence", "threat", "bonus",
		"bps", "ict_index", "clean_sheets", "red_cards", "yellow_cards",
		"selected_by_percent", "now_cost", "element_type", "team", "season",
	}},
	{Name: "raw_fpl_performance", File: "merged_gw.csv", Columns: []string{
		"name", "position", "team", "xp", "assists", "bonus", "bps", "clean_sheets",
		"creativity", "element", "expected_assists", "expected_goal_involvements",
		"expected_goals", "expected_goals_conceded", "fixture", "goals_conceded",
		"goals_scored", "ict_index", "influence", "kickoff_time", "minutes",
		"opponent_team", "own_goals", "penalties_missed", "penalties_saved",
		"red_cards", "round", "saves", "selected", "starts", "team_a_score",
		"team_h_score", "threat", "total_points", "transfers_balance",
		"transfers_in", "transfers_out", "value", "was_home", "yellow_cards", "gw",
		"season",
	}},
	{Name: "raw_real_perf", File: "fbref_merged_gw_data.csv", Columns: []string{
		"date", "day", "comp", "round", "venue", "result", "squad", "opponent",
		"start", "pos", "min", "performance_gls", "performance_ast",
		"performance_pk", "performance_pkatt", "performance_sh", "performance_sot",
		"performance_crdy", "performance_crdr", "performance_touches",
		"performance_tkl", "performance_int", "performance_blocks", "expected_xg",
		"expected_npxg", "expected_xag", "sca_sca", "sca_gca", "passes_cmp",
		"passes_att", "passes_cmp_percent", "passes_prgp", "carries_carries",
		"carries_prgc", "take_ons_att", "take_ons_succ", "match_report", "name",
		"performance_sota", "performance_ga", "performance_saves",
		"performance_save_percent", "performance_cs", "performance_psxg",
		"penalty_kicks_pkatt", "penalty_kicks_pka", "penalty_kicks_pksv",
		"penalty_kicks_pkm", "launched_cmp", "launched_att", "launched_cmp_percent",
		"passes_att_gk", "passes_thr", "passes_launch_percent", "passes_avglen",
		"goal_kicks_att", "goal_kicks_launch_percent", "goal_kicks_avglen",
		"crosses_opp", "crosses_stp", "crosses_stp_percent", "sweeper_opa",
		"sweeper_avgdist", "performance_fls", "performance_fld", "performance_off",
		"performance_crs", "performance_tklw", "performance_og",
		"performance_pkwon", "performance_pkcon", "season", "captain",
	}},
	{Name: "raw_player_ids", File: "player_compiled_ids.csv", Columns: []string{
		"first_name_fpl", "second_name_fpl", "id_fpl", "name_fbref", "id_fbref",
		"match_stage", "season",
	}},
}

func StagingByName(name string) (Staging, bool) {
	for _, s := range StagingTables {
		if s.Name == name {
			return s, true
		}
	}
	return Staging{}, false
}

// ColumnName maps a CSV header to its staging column: "Passes Cmp%"
// becomes passes_cmp_percent and "Passes Att (GK)" becomes passes_att_gk.
func ColumnName(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, "%", "_percent")
	var b strings.Builder
	under := false
	for _, r := range h {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			under = false
			continue
		}
		if !under {
			b.WriteByte('_')
			under = true
		}
	}
	return strings.Trim(b.String(), "_")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (s Staging) createSQL() string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = quoteIdent(c) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(s.Name), strings.Join(cols, ", "))
}

const (
	loadRunsTable = "load_runs"

	GoalPredictions   = "goal_predictions"
	AssistPredictions = "assist_predictions"
)

func schema(d dialect) []string {
	stmts := make([]string, 0, len(StagingTables)+3)
	for _, s := range StagingTables {
		stmts = append(stmts, s.createSQL())
	}
	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS load_runs (
			run_id     TEXT    NOT NULL,
			season     TEXT    NOT NULL,
			table_name TEXT    NOT NULL,
			row_count  INTEGER NOT NULL,
			loaded_at  TEXT    NOT NULL
		)`,
	)
	for _, t := range []string{GoalPredictions, AssistPredictions} {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			season    TEXT    NOT NULL,
			gw        INTEGER NOT NULL,
			id_fpl    INTEGER NOT NULL,
			player    TEXT,
			predicted %s NOT NULL
		)`, t, d.floatType))
	}
	return stmts
}
