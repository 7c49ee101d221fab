package identity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

// DefaultThreshold is the lowest fuzzy score accepted without a human.
const DefaultThreshold = 95

// Reconciler resolves FBRef identities for an FPL roster. Steps run in
// strict precedence: exact join, previous-season carry-forward, fuzzy match,
// interactive sift passes, manual URL fallback. A player resolved by one step
// is never touched by a later one.
type Reconciler struct {
	Scorer    Scorer
	Threshold int

	// SiftPasses run in order when Decide is set.
	SiftPasses []SiftPass
	Decide     Decider

	// DecideURL enables the manual fallback.
	DecideURL URLDecider
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		Scorer:     WeightedRatio,
		Threshold:  DefaultThreshold,
		SiftPasses: DefaultSiftPasses,
	}
}

func (r *Reconciler) validate() error {
	if r.Scorer == nil {
		return fmt.Errorf("%w: scorer is nil", ErrInvalidScorer)
	}
	if r.Threshold < 0 || r.Threshold > 100 {
		return fmt.Errorf("%w: threshold %d outside 0..100", ErrInvalidScorer, r.Threshold)
	}
	seen := make(map[SiftPass]bool)
	for _, p := range r.SiftPasses {
		if err := p.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidScorer, err)
		}
		if seen[p] {
			return fmt.Errorf("%w: sift pass %s listed twice", ErrInvalidScorer, p)
		}
		seen[p] = true
	}
	return nil
}

type nameKey struct{ first, second string }

// rosterIndex is the FBRef roster after (name, id) de-duplication. Lookups
// return the first occurrence.
type rosterIndex struct {
	names    []string
	idByName map[string]string
	nameByID map[string]string
	exact    map[nameKey]FBRefPlayer
}

func indexRoster(players []FBRefPlayer) *rosterIndex {
	idx := &rosterIndex{
		idByName: make(map[string]string),
		nameByID: make(map[string]string),
		exact:    make(map[nameKey]FBRefPlayer),
	}
	for _, p := range DedupeFBRef(players) {
		if _, ok := idx.idByName[p.Name]; !ok {
			idx.idByName[p.Name] = p.ID
			idx.names = append(idx.names, p.Name)
		}
		if _, ok := idx.nameByID[p.ID]; !ok {
			idx.nameByID[p.ID] = p.Name
		}
		first, second := SplitFBRefName(p.Name)
		k := nameKey{first, second}
		if _, ok := idx.exact[k]; !ok {
			idx.exact[k] = p
		}
	}
	return idx
}

// DedupeFBRef drops rows that repeat an earlier (name, id) pair exactly.
func DedupeFBRef(players []FBRefPlayer) []FBRefPlayer {
	seen := make(map[FBRefPlayer]bool, len(players))
	out := make([]FBRefPlayer, 0, len(players))
	for _, p := range players {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Reconcile produces exactly one Match per distinct FPL id, sorted by id.
// prior is the previous season's matches and may be nil.
func (r *Reconciler) Reconcile(fpl []FPLPlayer, fbref []FBRefPlayer, prior []Match) (Result, error) {
	if err := r.validate(); err != nil {
		return Result{}, err
	}
	if err := validatePlayers(fpl); err != nil {
		return Result{}, err
	}

	roster := indexRoster(fbref)
	claims := NewClaims()
	matches := newMatches(fpl)

	exact := 0
	for i := range matches {
		m := &matches[i]
		hit, ok := roster.exact[nameKey{m.FirstNameFPL, m.SecondNameFPL}]
		if !ok {
			continue
		}
		m.NameFBRef, m.IDFBRef, m.Stage = hit.Name, hit.ID, StageExact
		claims.Claim(hit.Name)
		exact++
	}
	telemetry.Infof("identity: direct matches found: %d of %d", exact, len(matches))

	if prior != nil {
		n := carryForward(matches, prior, roster, claims)
		telemetry.Infof("identity: carried forward %d ids from previous season", n)
	}

	fuzzy := 0
	for i := range matches {
		m := &matches[i]
		if m.Resolved() {
			continue
		}
		query := AbbreviatedName(m.FirstNameFPL, m.SecondNameFPL)
		best, ok := Best(query, claims.Unclaimed(roster.names), r.Scorer, r.Threshold)
		if !ok {
			continue
		}
		m.NameFBRef, m.IDFBRef, m.Stage = best.Name, roster.idByName[best.Name], StageFuzzy
		claims.Claim(best.Name)
		fuzzy++
		telemetry.Debugf("identity: fuzzy matched %s -> %s (score %d)", m.FullName(), best.Name, best.Score)
	}
	telemetry.Infof("identity: fuzzy matches found: %d", fuzzy)

	if r.Decide != nil {
		for _, pass := range r.SiftPasses {
			n := sift(pass, matches, roster, claims, r.Scorer, r.Decide)
			telemetry.Infof("identity: sift %s resolved %d players", pass, n)
		}
	}

	if r.DecideURL != nil {
		n := manualFallback(matches, claims, r.DecideURL)
		telemetry.Infof("identity: manual fallback resolved %d players", n)
	}

	return assemble(matches), nil
}

func validatePlayers(fpl []FPLPlayer) error {
	for i, p := range fpl {
		if p.ID <= 0 {
			return &DataError{Source: "fpl roster", Err: fmt.Errorf("row %d (%s) has no valid id", i+1, p.FullName())}
		}
	}
	return nil
}

// newMatches seeds one unresolved Match per FPL id, keeping the first row
// for a repeated id.
func newMatches(fpl []FPLPlayer) []Match {
	seen := make(map[int]bool, len(fpl))
	out := make([]Match, 0, len(fpl))
	for _, p := range fpl {
		if seen[p.ID] {
			telemetry.Warnf("identity: duplicate fpl id %d (%s) dropped", p.ID, p.FullName())
			continue
		}
		seen[p.ID] = true
		out = append(out, Match{FirstNameFPL: p.FirstName, SecondNameFPL: p.SecondName, IDFPL: p.ID})
	}
	return out
}

// carryForward fills unresolved players from last season's mapping, joined on
// the FPL name pair.
func carryForward(matches []Match, prior []Match, roster *rosterIndex, claims *Claims) int {
	prev := make(map[nameKey]Match, len(prior))
	for _, p := range prior {
		if !p.Resolved() {
			continue
		}
		k := nameKey{p.FirstNameFPL, p.SecondNameFPL}
		if _, ok := prev[k]; !ok {
			prev[k] = p
		}
	}

	n := 0
	for i := range matches {
		m := &matches[i]
		if m.Resolved() {
			continue
		}
		p, ok := prev[nameKey{m.FirstNameFPL, m.SecondNameFPL}]
		if !ok {
			continue
		}
		name := p.NameFBRef
		if current, ok := roster.nameByID[p.IDFBRef]; ok {
			name = current
		}
		if claims.Claimed(name) {
			telemetry.Warnf("identity: carry-forward of %s -> %s (%s) skipped, name already claimed", m.FullName(), name, p.IDFBRef)
			continue
		}
		m.NameFBRef, m.IDFBRef, m.Stage = name, p.IDFBRef, StageCarryForward
		claims.Claim(name)
		n++
	}
	return n
}

// assemble de-duplicates on IDFPL (first wins), sorts by IDFPL and lists the
// players still unresolved.
func assemble(matches []Match) Result {
	seen := make(map[int]bool, len(matches))
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if seen[m.IDFPL] {
			continue
		}
		seen[m.IDFPL] = true
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IDFPL < out[j].IDFPL })

	missing := []string{}
	for _, m := range out {
		if !m.Resolved() {
			missing = append(missing, m.FullName())
		}
	}
	return Result{Matches: out, Missing: missing}
}

// IsDataError reports whether err aborts the season as bad input.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}
