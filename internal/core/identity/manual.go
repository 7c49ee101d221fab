package identity

import (
	"net/url"
	"strings"

	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

// URLPrompt asks for an FBRef profile link for one unresolved player.
type URLPrompt struct {
	Player   FPLPlayer
	Position int
	Total    int
}

// URLDecider returns a raw profile URL, or "" to skip the player.
type URLDecider func(URLPrompt) string

// ParseProfileURL extracts the FBRef id and display name from a profile link
// of the form https://fbref.com/en/players/{id}/{First-Last}. Any other path
// shape is rejected.
func ParseProfileURL(raw string) (id, name string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", false
	}
	segs := strings.Split(u.Path, "/")
	if len(segs) != 5 || segs[3] == "" {
		return "", "", false
	}
	return segs[3], strings.ReplaceAll(segs[4], "-", " "), true
}

func manualFallback(matches []Match, claims *Claims, decide URLDecider) int {
	var pending []int
	for i := range matches {
		if !matches[i].Resolved() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return 0
	}
	telemetry.Infof("identity: manual fallback for %d unmatched players", len(pending))

	resolved := 0
	for pos, i := range pending {
		m := &matches[i]
		player := FPLPlayer{ID: m.IDFPL, FirstName: m.FirstNameFPL, SecondName: m.SecondNameFPL}
		raw := decide(URLPrompt{Player: player, Position: pos + 1, Total: len(pending)})
		if strings.TrimSpace(raw) == "" {
			telemetry.Debugf("identity: manual fallback skipped %s", player.FullName())
			continue
		}
		id, name, ok := ParseProfileURL(raw)
		if !ok {
			telemetry.Warnf("identity: %q is not a player profile link, %s stays unmatched", raw, player.FullName())
			continue
		}
		m.IDFBRef = id
		m.NameFBRef = name
		m.Stage = StageManual
		claims.Claim(name)
		resolved++
	}
	return resolved
}
