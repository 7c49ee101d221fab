package identity

import (
	"fmt"
	"strings"

	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

// Level controls candidate ordering in a sift pass.
type Level string

const (
	// Strict re-ranks candidates by fuzzy score.
	Strict Level = "strict"
	// Loose keeps FBRef roster order.
	Loose Level = "loose"
)

// NamePart picks which half of the FPL name filters candidates.
type NamePart string

const (
	FirstName NamePart = "first"
	LastName  NamePart = "last"
)

type SiftPass struct {
	Level Level
	Name  NamePart
}

func (p SiftPass) String() string { return string(p.Level) + "/" + string(p.Name) }

func (p SiftPass) validate() error {
	if p.Level != Strict && p.Level != Loose {
		return fmt.Errorf("sift level must be %q or %q, got %q", Strict, Loose, p.Level)
	}
	if p.Name != FirstName && p.Name != LastName {
		return fmt.Errorf("sift name must be %q or %q, got %q", FirstName, LastName, p.Name)
	}
	return nil
}

// DefaultSiftPasses narrows by surname first, then sweeps by first name.
var DefaultSiftPasses = []SiftPass{
	{Level: Strict, Name: LastName},
	{Level: Loose, Name: FirstName},
}

// Selection is a 1-based pick from SiftPrompt.Candidates.
type Selection int

// NoSelection means none of the candidates is the player.
const NoSelection Selection = 0

// SiftPrompt is what a Decider is shown for one unresolved player.
type SiftPrompt struct {
	Player     FPLPlayer
	Pass       SiftPass
	Position   int
	Total      int
	Candidates []string
}

// Decider chooses among sift candidates. It must not retain the prompt.
type Decider func(SiftPrompt) Selection

// siftFragment is the diacritic-free name piece used to filter candidates.
func siftFragment(p FPLPlayer, part NamePart) string {
	if part == FirstName {
		return StripDiacritics(strings.TrimSpace(p.FirstName))
	}
	tokens := strings.Fields(p.SecondName)
	if len(tokens) == 0 {
		return ""
	}
	return StripDiacritics(tokens[len(tokens)-1])
}

// siftCandidates lists unclaimed FBRef names containing the fragment,
// case-insensitively, in the order the pass asks for.
func siftCandidates(p FPLPlayer, pass SiftPass, names []string, claims *Claims, score Scorer) []string {
	fragment := Normalize(siftFragment(p, pass.Name))
	if fragment == "" {
		return nil
	}
	var hits []string
	for _, n := range names {
		if strings.Contains(Normalize(n), fragment) {
			hits = append(hits, n)
		}
	}
	hits = claims.Unclaimed(hits)
	if pass.Level == Loose || len(hits) < 2 {
		return hits
	}
	query := p.SecondName
	if pass.Name == FirstName {
		query = p.FirstName
	}
	ranked := Rank(query, hits, score)
	out := make([]string, len(ranked))
	for i, c := range ranked {
		out[i] = c.Name
	}
	return out
}

// sift runs one interactive pass over the unresolved matches.
func sift(pass SiftPass, matches []Match, roster *rosterIndex, claims *Claims, score Scorer, decide Decider) int {
	var pending []int
	for i := range matches {
		if !matches[i].Resolved() {
			pending = append(pending, i)
		}
	}

	resolved := 0
	for pos, i := range pending {
		m := &matches[i]
		player := FPLPlayer{ID: m.IDFPL, FirstName: m.FirstNameFPL, SecondName: m.SecondNameFPL}
		cands := siftCandidates(player, pass, roster.names, claims, score)
		if len(cands) == 0 {
			telemetry.Debugf("identity: sift %s found no candidates for %s (id=%d)", pass, player.FullName(), player.ID)
			continue
		}

		sel := decide(SiftPrompt{
			Player:     player,
			Pass:       pass,
			Position:   pos + 1,
			Total:      len(pending),
			Candidates: cands,
		})
		if sel == NoSelection {
			continue
		}
		if sel < 1 || int(sel) > len(cands) {
			telemetry.Warnf("identity: sift selection %d out of range 1..%d for %s, treating as none", sel, len(cands), player.FullName())
			continue
		}

		name := cands[sel-1]
		m.NameFBRef = name
		m.IDFBRef = roster.idByName[name]
		m.Stage = StageSift
		claims.Claim(name)
		resolved++
		telemetry.Infof("identity: sift %s matched %s -> %s (%s)", pass, player.FullName(), name, m.IDFBRef)
	}
	return resolved
}
