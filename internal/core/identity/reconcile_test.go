package identity

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func fixedScores(scores map[string]int) Scorer {
	return func(_, choice string) int { return scores[choice] }
}

func TestReconcileExactJoin(t *testing.T) {
	Convey("Given a player present in both rosters under the same name", t, func() {
		fpl := []FPLPlayer{{ID: 1, FirstName: "Mohamed", SecondName: "Salah"}}
		fbref := []FBRefPlayer{{Name: "Mohamed Salah", ID: "abc123"}}

		res, err := NewReconciler().Reconcile(fpl, fbref, nil)

		Convey("The exact join resolves it and nothing is missing", func() {
			So(err, ShouldBeNil)
			So(res.Matches, ShouldResemble, []Match{{
				FirstNameFPL:  "Mohamed",
				SecondNameFPL: "Salah",
				IDFPL:         1,
				NameFBRef:     "Mohamed Salah",
				IDFBRef:       "abc123",
				Stage:         StageExact,
			}})
			So(res.Missing, ShouldBeEmpty)
		})

		Convey("Running again on the same inputs gives the same result", func() {
			again, err := NewReconciler().Reconcile(fpl, fbref, nil)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, res)
		})
	})

	Convey("Given duplicated FBRef rows and a repeated FPL id", t, func() {
		fpl := []FPLPlayer{
			{ID: 2, FirstName: "Bukayo", SecondName: "Saka"},
			{ID: 1, FirstName: "Declan", SecondName: "Rice"},
			{ID: 2, FirstName: "Bukayo", SecondName: "Saka"},
		}
		fbref := []FBRefPlayer{
			{Name: "Bukayo Saka", ID: "bc7dc64d"},
			{Name: "Bukayo Saka", ID: "bc7dc64d"},
			{Name: "Declan Rice", ID: "1c7012b8"},
		}
		res, err := NewReconciler().Reconcile(fpl, fbref, nil)
		So(err, ShouldBeNil)

		Convey("Each FPL id appears once, sorted by id", func() {
			So(len(res.Matches), ShouldEqual, 2)
			So(res.Matches[0].IDFPL, ShouldEqual, 1)
			So(res.Matches[1].IDFPL, ShouldEqual, 2)
			So(res.Matches[1].IDFBRef, ShouldEqual, "bc7dc64d")
		})
	})
}

func TestReconcileMissingPlayer(t *testing.T) {
	Convey("Given a player with no candidate above threshold", t, func() {
		fpl := []FPLPlayer{
			{ID: 1, FirstName: "Mohamed", SecondName: "Salah"},
			{ID: 7, FirstName: "Obscure", SecondName: "Youngster"},
		}
		fbref := []FBRefPlayer{{Name: "Mohamed Salah", ID: "abc123"}, {Name: "Someone Else", ID: "zzz"}}

		res, err := NewReconciler().Reconcile(fpl, fbref, nil)
		So(err, ShouldBeNil)

		Convey("It is listed by full name and left unresolved", func() {
			So(res.Missing, ShouldResemble, []string{"Obscure Youngster"})
			So(res.Matches[1].IDFBRef, ShouldBeEmpty)
			So(res.Matches[1].Stage, ShouldEqual, StageNone)
		})
	})
}

func TestReconcileFuzzy(t *testing.T) {
	fpl := []FPLPlayer{{ID: 10, FirstName: "Bruno Miguel", SecondName: "Borges Fernandes"}}

	Convey("Given the default scorer", t, func() {
		Convey("The abbreviated name matches the FBRef display name", func() {
			fbref := []FBRefPlayer{{Name: "Bruno Fernandes", ID: "507c7bdf"}, {Name: "Bruno Guimarães", ID: "7bb7b4ac"}}
			res, err := NewReconciler().Reconcile(fpl, fbref, nil)
			So(err, ShouldBeNil)
			So(res.Matches[0].IDFBRef, ShouldEqual, "507c7bdf")
			So(res.Matches[0].Stage, ShouldEqual, StageFuzzy)
		})

		Convey("Diacritics do not block a match", func() {
			players := []FPLPlayer{{ID: 3, FirstName: "Rúben Santos", SecondName: "Gato Alves Dias"}}
			fbref := []FBRefPlayer{{Name: "Rúben Dias", ID: "31c69ef1"}}
			res, err := NewReconciler().Reconcile(players, fbref, nil)
			So(err, ShouldBeNil)
			So(res.Matches[0].IDFBRef, ShouldEqual, "31c69ef1")
		})
	})

	Convey("Given a scorer pinned to the threshold boundary", t, func() {
		fbref := []FBRefPlayer{{Name: "B. Fernandes", ID: "x1"}}
		r := NewReconciler()

		Convey("A score one below the threshold is rejected", func() {
			r.Scorer = fixedScores(map[string]int{"B. Fernandes": DefaultThreshold - 1})
			res, err := r.Reconcile(fpl, fbref, nil)
			So(err, ShouldBeNil)
			So(res.Matches[0].Resolved(), ShouldBeFalse)
			So(res.Missing, ShouldResemble, []string{"Bruno Miguel Borges Fernandes"})
		})

		Convey("A score equal to the threshold is accepted", func() {
			r.Scorer = fixedScores(map[string]int{"B. Fernandes": DefaultThreshold})
			res, err := r.Reconcile(fpl, fbref, nil)
			So(err, ShouldBeNil)
			So(res.Matches[0].IDFBRef, ShouldEqual, "x1")
		})
	})

	Convey("Given two candidates with the same top score", t, func() {
		r := NewReconciler()
		r.Scorer = fixedScores(map[string]int{"Zak Fernandes": 99, "Abe Fernandes": 99})
		fbref := []FBRefPlayer{{Name: "Zak Fernandes", ID: "z"}, {Name: "Abe Fernandes", ID: "a"}}

		res, err := r.Reconcile(fpl, fbref, nil)

		Convey("The lexicographically smallest name wins", func() {
			So(err, ShouldBeNil)
			So(res.Matches[0].NameFBRef, ShouldEqual, "Abe Fernandes")
		})
	})

	Convey("Given two FPL players that both fuzzy-match one FBRef name", t, func() {
		r := NewReconciler()
		r.Scorer = fixedScores(map[string]int{"Ben White": 100})
		players := []FPLPlayer{
			{ID: 1, FirstName: "Benjamin", SecondName: "White"},
			{ID: 2, FirstName: "Benny", SecondName: "White"},
		}
		res, err := r.Reconcile(players, []FBRefPlayer{{Name: "Ben White", ID: "35e413f1"}}, nil)

		Convey("Only the first claims it", func() {
			So(err, ShouldBeNil)
			So(res.Matches[0].IDFBRef, ShouldEqual, "35e413f1")
			So(res.Matches[1].Resolved(), ShouldBeFalse)
		})
	})

	Convey("Given a claimed top candidate and a runner-up above threshold", t, func() {
		r := NewReconciler()
		r.Scorer = fixedScores(map[string]int{"Ben White": 100, "Ben Whyte": 96})
		players := []FPLPlayer{
			{ID: 1, FirstName: "Ben", SecondName: "White"},
			{ID: 2, FirstName: "Benny", SecondName: "White"},
		}
		fbref := []FBRefPlayer{{Name: "Ben White", ID: "35e413f1"}, {Name: "Ben Whyte", ID: "9c1d2a77"}}
		res, err := r.Reconcile(players, fbref, nil)

		Convey("The best unclaimed name is taken when it clears the threshold", func() {
			So(err, ShouldBeNil)
			So(res.Matches[0].Stage, ShouldEqual, StageExact)
			So(res.Matches[1].Stage, ShouldEqual, StageFuzzy)
			So(res.Matches[1].NameFBRef, ShouldEqual, "Ben Whyte")
			So(res.Matches[1].IDFBRef, ShouldEqual, "9c1d2a77")
		})
	})

	Convey("Given an exactly matched name", t, func() {
		r := NewReconciler()
		r.Scorer = fixedScores(map[string]int{"Bruno Fernandes": 100})
		players := []FPLPlayer{
			{ID: 1, FirstName: "Bruno", SecondName: "Fernandes"},
			{ID: 2, FirstName: "Bruno Miguel", SecondName: "Borges Fernandes"},
		}
		res, err := r.Reconcile(players, []FBRefPlayer{{Name: "Bruno Fernandes", ID: "507c7bdf"}}, nil)

		Convey("Fuzzy matching cannot reassign it", func() {
			So(err, ShouldBeNil)
			So(res.Matches[0].Stage, ShouldEqual, StageExact)
			So(res.Matches[1].Resolved(), ShouldBeFalse)
		})
	})
}

func TestReconcileCarryForward(t *testing.T) {
	Convey("Given a player unresolved this season but mapped last season", t, func() {
		fpl := []FPLPlayer{{ID: 4, FirstName: "Heung-Min", SecondName: "Son"}}
		fbref := []FBRefPlayer{{Name: "Son Heung-min", ID: "92e7e919"}}
		prior := []Match{{FirstNameFPL: "Heung-Min", SecondNameFPL: "Son", IDFPL: 9, NameFBRef: "Son Heung-min (old)", IDFBRef: "92e7e919"}}

		r := NewReconciler()
		r.Scorer = fixedScores(nil)
		res, err := r.Reconcile(fpl, fbref, prior)

		Convey("The previous id is used with the current roster name", func() {
			So(err, ShouldBeNil)
			m := res.Matches[0]
			So(m.IDFBRef, ShouldEqual, "92e7e919")
			So(m.NameFBRef, ShouldEqual, "Son Heung-min")
			So(m.Stage, ShouldEqual, StageCarryForward)
			So(res.Missing, ShouldBeEmpty)
		})
	})

	Convey("Given a prior mapping for a player already matched exactly", t, func() {
		fpl := []FPLPlayer{{ID: 1, FirstName: "Mohamed", SecondName: "Salah"}}
		fbref := []FBRefPlayer{{Name: "Mohamed Salah", ID: "e342ad68"}}
		prior := []Match{{FirstNameFPL: "Mohamed", SecondNameFPL: "Salah", IDFBRef: "stale"}}

		res, err := NewReconciler().Reconcile(fpl, fbref, prior)

		Convey("The exact match is kept", func() {
			So(err, ShouldBeNil)
			So(res.Matches[0].IDFBRef, ShouldEqual, "e342ad68")
			So(res.Matches[0].Stage, ShouldEqual, StageExact)
		})
	})
}

func TestReconcileCarryForwardRespectsClaims(t *testing.T) {
	Convey("Given last season's id for a name this season's exact join already took", t, func() {
		fpl := []FPLPlayer{
			{ID: 1, FirstName: "Mohamed", SecondName: "Salah"},
			{ID: 2, FirstName: "Mo", SecondName: "Salah"},
		}
		fbref := []FBRefPlayer{{Name: "Mohamed Salah", ID: "e342ad68"}}
		prior := []Match{{FirstNameFPL: "Mo", SecondNameFPL: "Salah", IDFPL: 2, NameFBRef: "Mohamed Salah", IDFBRef: "e342ad68"}}

		r := NewReconciler()
		r.Scorer = fixedScores(nil)
		res, err := r.Reconcile(fpl, fbref, prior)

		Convey("The exact match keeps the name and the other player stays unresolved", func() {
			So(err, ShouldBeNil)
			So(res.Matches[0].Stage, ShouldEqual, StageExact)
			So(res.Matches[0].IDFBRef, ShouldEqual, "e342ad68")
			So(res.Matches[1].Resolved(), ShouldBeFalse)
			So(res.Matches[1].Stage, ShouldEqual, StageNone)
			So(res.Missing, ShouldResemble, []string{"Mo Salah"})
		})
	})

	Convey("Given two prior mappings that point at the same FBRef player", t, func() {
		fpl := []FPLPlayer{
			{ID: 3, FirstName: "Emerson Aparecido", SecondName: "Royal"},
			{ID: 4, FirstName: "Emerson", SecondName: "Leite"},
		}
		fbref := []FBRefPlayer{{Name: "Emerson Royal", ID: "a1"}}
		prior := []Match{
			{FirstNameFPL: "Emerson Aparecido", SecondNameFPL: "Royal", IDFBRef: "a1", NameFBRef: "Emerson"},
			{FirstNameFPL: "Emerson", SecondNameFPL: "Leite", IDFBRef: "a1", NameFBRef: "Emerson"},
		}

		r := NewReconciler()
		r.Scorer = fixedScores(nil)
		res, err := r.Reconcile(fpl, fbref, prior)

		Convey("Only the first carried player receives it", func() {
			So(err, ShouldBeNil)
			So(res.Matches[0].Stage, ShouldEqual, StageCarryForward)
			So(res.Matches[0].NameFBRef, ShouldEqual, "Emerson Royal")
			So(res.Matches[1].Resolved(), ShouldBeFalse)
		})
	})
}

func TestReconcileInteractive(t *testing.T) {
	fbref := []FBRefPlayer{
		{Name: "Mohamed Salah", ID: "e342ad68"},
		{Name: "Emerson Royal", ID: "a1"},
		{Name: "Emerson Palmieri", ID: "a2"},
	}
	fpl := []FPLPlayer{
		{ID: 1, FirstName: "Mohamed", SecondName: "Salah"},
		{ID: 2, FirstName: "Emerson", SecondName: "Aparecido Leite de Souza Junior"},
	}

	Convey("Given an injected decider", t, func() {
		r := NewReconciler()
		r.Scorer = fixedScores(map[string]int{"Emerson Royal": 40, "Emerson Palmieri": 60})
		var prompts []SiftPrompt

		Convey("The loose first-name pass offers unclaimed candidates in roster order", func() {
			r.Decide = func(p SiftPrompt) Selection {
				prompts = append(prompts, p)
				if p.Pass.Level == Loose {
					return 1
				}
				return NoSelection
			}
			res, err := r.Reconcile(fpl, fbref, nil)
			So(err, ShouldBeNil)
			So(len(prompts), ShouldEqual, 1)
			So(prompts[0].Player.ID, ShouldEqual, 2)
			So(prompts[0].Candidates, ShouldResemble, []string{"Emerson Royal", "Emerson Palmieri"})
			So(res.Matches[1].IDFBRef, ShouldEqual, "a1")
			So(res.Matches[1].Stage, ShouldEqual, StageSift)
			So(res.Matches[0].Stage, ShouldEqual, StageExact)
		})

		Convey("A strict pass ranks candidates by score", func() {
			r.SiftPasses = []SiftPass{{Level: Strict, Name: FirstName}}
			r.Decide = func(p SiftPrompt) Selection {
				prompts = append(prompts, p)
				return 1
			}
			res, err := r.Reconcile(fpl, fbref, nil)
			So(err, ShouldBeNil)
			So(prompts[0].Candidates, ShouldResemble, []string{"Emerson Palmieri", "Emerson Royal"})
			So(res.Matches[1].IDFBRef, ShouldEqual, "a2")
		})

		Convey("An out of range selection counts as none", func() {
			r.Decide = func(SiftPrompt) Selection { return 9 }
			res, err := r.Reconcile(fpl, fbref, nil)
			So(err, ShouldBeNil)
			So(res.Matches[1].Resolved(), ShouldBeFalse)
			So(res.Missing, ShouldResemble, []string{"Emerson Aparecido Leite de Souza Junior"})
		})

		Convey("The manual fallback accepts a five segment profile path", func() {
			r.Decide = func(SiftPrompt) Selection { return NoSelection }
			r.DecideURL = func(p URLPrompt) string {
				So(p.Player.ID, ShouldEqual, 2)
				return "https://fbref.com/en/players/2b4f9b49/Emerson-Royal"
			}
			res, err := r.Reconcile(fpl, fbref, nil)
			So(err, ShouldBeNil)
			So(res.Matches[1].IDFBRef, ShouldEqual, "2b4f9b49")
			So(res.Matches[1].NameFBRef, ShouldEqual, "Emerson Royal")
			So(res.Matches[1].Stage, ShouldEqual, StageManual)
		})

		Convey("A malformed profile link leaves the player unresolved", func() {
			r.DecideURL = func(URLPrompt) string { return "https://fbref.com/en/players/2b4f9b49/matchlogs/Emerson" }
			res, err := r.Reconcile(fpl, fbref, nil)
			So(err, ShouldBeNil)
			So(res.Matches[1].Resolved(), ShouldBeFalse)
		})
	})
}

func TestReconcileConfiguration(t *testing.T) {
	Convey("Given an unusable scorer setup", t, func() {
		fpl := []FPLPlayer{{ID: 1, FirstName: "A", SecondName: "B"}}

		for _, r := range []*Reconciler{
			{Scorer: nil, Threshold: 95},
			{Scorer: Ratio, Threshold: 101},
			{Scorer: Ratio, Threshold: -1},
			{Scorer: Ratio, Threshold: 95, SiftPasses: []SiftPass{{Level: "fuzzy", Name: FirstName}}},
			{Scorer: Ratio, Threshold: 95, SiftPasses: []SiftPass{{Level: Strict, Name: LastName}, {Level: Strict, Name: LastName}}},
		} {
			_, err := r.Reconcile(fpl, nil, nil)
			So(errors.Is(err, ErrInvalidScorer), ShouldBeTrue)
		}
	})

	Convey("Given a roster row without an id", t, func() {
		_, err := NewReconciler().Reconcile([]FPLPlayer{{FirstName: "No", SecondName: "Id"}}, nil, nil)
		So(IsDataError(err), ShouldBeTrue)
	})
}

func TestScorers(t *testing.T) {
	Convey("Scorers work on processed names", t, func() {
		So(Ratio("Mohamed Salah", "mohamed  SALAH"), ShouldEqual, 100)
		So(Ratio("", "Salah"), ShouldEqual, 0)
		So(TokenSortRatio("Son Heung-min", "Heung-min Son"), ShouldEqual, 100)
		So(WeightedRatio("Son Heung-min", "Heung-min Son"), ShouldEqual, 95)
		So(Ratio("Rúben Dias", "Ruben Dias"), ShouldEqual, 100)
		So(Ratio("abcd", "abcf"), ShouldEqual, 75)
	})

	Convey("Name helpers", t, func() {
		So(AbbreviatedName("Bruno Miguel", "Borges Fernandes"), ShouldEqual, "Bruno Fernandes")
		So(AbbreviatedName("Rodrigo", "Hernández Cascante"), ShouldEqual, "Rodrigo Cascante")
		first, second := SplitFBRefName("Virgil van Dijk")
		So(first, ShouldEqual, "Virgil")
		So(second, ShouldEqual, "van Dijk")
		first, second = SplitFBRefName("Rodri")
		So(first, ShouldEqual, "Rodri")
		So(second, ShouldBeEmpty)
	})

	Convey("Profile links", t, func() {
		id, name, ok := ParseProfileURL("https://fbref.com/en/players/e342ad68/Mohamed-Salah")
		So(ok, ShouldBeTrue)
		So(id, ShouldEqual, "e342ad68")
		So(name, ShouldEqual, "Mohamed Salah")

		_, _, ok = ParseProfileURL("https://fbref.com/en/players/e342ad68/")
		So(ok, ShouldBeTrue)
		_, _, ok = ParseProfileURL("https://fbref.com/en/players/e342ad68")
		So(ok, ShouldBeFalse)
		_, _, ok = ParseProfileURL("not a url at all")
		So(ok, ShouldBeFalse)
	})
}
