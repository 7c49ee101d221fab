package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charleschow/fpl-pipeline/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// SeasonPlaceholder is replaced by the FBRef season label in club links.
const SeasonPlaceholder = "{fbref_season}"

// ClubLinks maps FPL team names to FBRef squad URL templates.
type ClubLinks map[string]string

type clubsFile struct {
	Clubs map[string]string `yaml:"clubs"`
}

var defaultClubLinks = map[string]string{
	"Liverpool":      "https://fbref.com/en/squads/822bd0ba/{fbref_season}/all_comps/Liverpool-Stats-All-Competitions",
	"Man City":       "https://fbref.com/en/squads/b8fd03ef/{fbref_season}/all_comps/Manchester-City-Stats-All-Competitions",
	"Arsenal":        "https://fbref.com/en/squads/18bb7c10/{fbref_season}/all_comps/Arsenal-Stats-All-Competitions",
	"Chelsea":        "https://fbref.com/en/squads/cff3d9bb/{fbref_season}/all_comps/Chelsea-Stats-All-Competitions",
	"Aston Villa":    "https://fbref.com/en/squads/8602292d/{fbref_season}/all_comps/Aston-Villa-Stats-All-Competitions",
	"Brighton":       "https://fbref.com/en/squads/d07537b9/{fbref_season}/all_comps/Brighton-and-Hove-Albion-Stats-All-Competitions",
	"Newcastle":      "https://fbref.com/en/squads/b2b47a98/{fbref_season}/all_comps/Newcastle-United-Stats-All-Competitions",
	"Fulham":         "https://fbref.com/en/squads/fd962109/{fbref_season}/all_comps/Fulham-Stats-All-Competitions",
	"Spurs":          "https://fbref.com/en/squads/361ca564/{fbref_season}/all_comps/Tottenham-Hotspur-Stats-All-Competitions",
	"Nott'm Forest":  "https://fbref.com/en/squads/e4a775cb/{fbref_season}/all_comps/Nottingham-Forest-Stats-All-Competitions",
	"Brentford":      "https://fbref.com/en/squads/cd051869/{fbref_season}/all_comps/Brentford-Stats-All-Competitions",
	"West Ham":       "https://fbref.com/en/squads/7c21e445/{fbref_season}/all_comps/West-Ham-United-Stats-All-Competitions",
	"Bournemouth":    "https://fbref.com/en/squads/4ba7cbea/{fbref_season}/all_comps/Bournemouth-Stats-All-Competitions",
	"Man Utd":        "https://fbref.com/en/squads/19538871/{fbref_season}/all_comps/Manchester-United-Stats-All-Competitions",
	"Leicester":      "https://fbref.com/en/squads/a2d435b3/{fbref_season}/all_comps/Leicester-City-Stats-All-Competitions",
	"Everton":        "https://fbref.com/en/squads/d3fd31cc/{fbref_season}/all_comps/Everton-Stats-All-Competitions",
	"Ipswich":        "https://fbref.com/en/squads/b74092de/{fbref_season}/all_comps/Ipswich-Town-Stats-All-Competitions",
	"Crystal Palace": "https://fbref.com/en/squads/47c64c55/{fbref_season}/all_comps/Crystal-Palace-Stats-All-Competitions",
	"Southampton":    "https://fbref.com/en/squads/33c895d4/{fbref_season}/all_comps/Southampton-Stats-All-Competitions",
	"Wolves":         "https://fbref.com/en/squads/8cec06e1/{fbref_season}/all_comps/Wolverhampton-Wanderers-Stats-All-Competitions",
	"Burnley":        "https://fbref.com/en/squads/943e8050/{fbref_season}/all_comps/Burnley-Stats-All-Competitions",
	"Luton":          "https://fbref.com/en/squads/e297cd13/{fbref_season}/all_comps/Luton-Town-Stats-All-Competitions",
	"Sheffield Utd":  "https://fbref.com/en/squads/1df6b87e/{fbref_season}/all_comps/Sheffield-United-Stats-All-Competitions",
	"Leeds":          "https://fbref.com/en/squads/5bfb9659/{fbref_season}/all_comps/Leeds-United-Stats-All-Competitions",
	"Norwich":        "https://fbref.com/en/squads/1c781004/{fbref_season}/all_comps/Norwich-City-Stats-All-Competitions",
	"Watford":        "https://fbref.com/en/squads/2abfe087/{fbref_season}/all_comps/Watford-Stats-All-Competitions",
	"West Brom":      "https://fbref.com/en/squads/60c6b05f/{fbref_season}/all_comps/West-Bromwich-Albion-Stats-All-Competitions",
}

func DefaultClubLinks() ClubLinks {
	out := make(ClubLinks, len(defaultClubLinks))
	for k, v := range defaultClubLinks {
		out[k] = v
	}
	return out
}

// ParseClubLinks decodes a clubs YAML document.
func ParseClubLinks(data []byte) (ClubLinks, error) {
	var f clubsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse club links: %w", err)
	}
	if len(f.Clubs) == 0 {
		return nil, errors.New("parse club links: no clubs")
	}
	for name, link := range f.Clubs {
		if !strings.Contains(link, "/en/squads/") {
			return nil, fmt.Errorf("parse club links: %s link %q is not a squad page", name, link)
		}
	}
	return ClubLinks(f.Clubs), nil
}

// LoadClubLinks reads the clubs file at path. The built-in table is used
// when path is empty or the file cannot be read or parsed.
func LoadClubLinks(path string) ClubLinks {
	if path == "" {
		return DefaultClubLinks()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		telemetry.Warnf("config: clubs file %s not found, using hardcoded defaults", path)
		return DefaultClubLinks()
	}
	links, err := ParseClubLinks(data)
	if err != nil {
		telemetry.Warnf("config: %v, using hardcoded defaults", err)
		return DefaultClubLinks()
	}
	telemetry.Infof("config: loaded %d club links from %s", len(links), path)
	return links
}

// ForSeason fills in the FBRef season label ("2024-2025").
func (c ClubLinks) ForSeason(fbrefSeason string) map[string]string {
	out := make(map[string]string, len(c))
	for name, link := range c {
		out[name] = strings.ReplaceAll(link, SeasonPlaceholder, fbrefSeason)
	}
	return out
}
