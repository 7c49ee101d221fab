// Package identity reconciles the FPL roster against the FBRef roster so that
// every FPL player ends up with at most one FBRef identity per season.
package identity

import (
	"errors"
	"fmt"
)

// FPLPlayer is one row of the authoritative roster (player_idlist.csv).
type FPLPlayer struct {
	ID         int
	FirstName  string
	SecondName string
}

func (p FPLPlayer) FullName() string { return p.FirstName + " " + p.SecondName }

// FBRefPlayer is one row of the secondary roster (fbref_ids.csv).
type FBRefPlayer struct {
	Name string
	ID   string
}

// Stage records which step resolved a match.
type Stage string

const (
	StageNone         Stage = ""
	StageExact        Stage = "exact"
	StageCarryForward Stage = "carry_forward"
	StageFuzzy        Stage = "fuzzy"
	StageSift         Stage = "sift"
	StageManual       Stage = "manual"
)

// Match is the reconciliation result for one FPL player. IDFBRef is empty
// while the player is unresolved.
type Match struct {
	FirstNameFPL  string
	SecondNameFPL string
	IDFPL         int
	NameFBRef     string
	IDFBRef       string
	Stage         Stage
}

func (m Match) Resolved() bool { return m.IDFBRef != "" }

func (m Match) FullName() string { return m.FirstNameFPL + " " + m.SecondNameFPL }

// Result is the full season roster plus the display names still unresolved.
type Result struct {
	Matches []Match
	Missing []string
}

// Stats counts resolutions by stage.
func (r Result) Stats() map[Stage]int {
	out := make(map[Stage]int)
	for _, m := range r.Matches {
		out[m.Stage]++
	}
	return out
}

// DataError aborts a season's reconciliation: an input table is missing
// columns or holds rows that cannot be read.
type DataError struct {
	Source string
	Err    error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("identity data error in %s: %v", e.Source, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// ErrInvalidScorer is returned before any matching when the scorer setup is
// unusable.
var ErrInvalidScorer = errors.New("invalid fuzzy scorer configuration")
