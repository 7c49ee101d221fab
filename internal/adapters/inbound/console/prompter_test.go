package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charleschow/fpl-pipeline/internal/core/identity"
)

func TestSiftRepromptsUntilValid(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("abc\n7\n2\n"), &out)

	got := p.Sift(identity.SiftPrompt{
		Player:     identity.FPLPlayer{ID: 1, FirstName: "Heung-Min", SecondName: "Son"},
		Pass:       identity.DefaultSiftPasses[0],
		Position:   1,
		Total:      3,
		Candidates: []string{"Son Heung-min", "Sonny Perkins"},
	})
	if got != 2 {
		t.Fatalf("selection = %d", got)
	}
	if strings.Count(out.String(), "enter a number") != 2 {
		t.Fatalf("output = %q", out.String())
	}
}

func TestSiftEndOfInputIsNone(t *testing.T) {
	p := New(strings.NewReader(""), &bytes.Buffer{})
	if got := p.Sift(identity.SiftPrompt{Candidates: []string{"A"}}); got != identity.NoSelection {
		t.Fatalf("selection = %d", got)
	}
}

func TestProfileURL(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("not a url\nhttps://fbref.com/en/players/e342ad68/Mohamed-Salah\n"), &out)
	got := p.ProfileURL(identity.URLPrompt{Player: identity.FPLPlayer{FirstName: "Mohamed", SecondName: "Salah"}, Position: 1, Total: 1})
	if got != "https://fbref.com/en/players/e342ad68/Mohamed-Salah" {
		t.Fatalf("url = %q", got)
	}

	p = New(strings.NewReader("\n"), &bytes.Buffer{})
	if got := p.ProfileURL(identity.URLPrompt{}); got != "" {
		t.Fatalf("blank line should skip, got %q", got)
	}
}
