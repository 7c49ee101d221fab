package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSeasonDonePostsEmbed(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL).SeasonDone(context.Background(), SeasonReport{
		Season:   "2024-25",
		Stage:    "run",
		Matched:  540,
		Missing:  []string{"New Signing"},
		Duration: 90 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("payload = %+v", got)
	}
	e := got.Embeds[0]
	if e.Title != "2024-25 run" || e.Color != ColorYellow {
		t.Fatalf("embed = %+v", e)
	}
	if e.Fields[len(e.Fields)-1].Value != "New Signing" {
		t.Fatalf("fields = %+v", e.Fields)
	}
}

func TestSeasonDoneFailureIsRed(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	NewNotifier(srv.URL).SeasonDone(context.Background(), SeasonReport{Season: "2024-25", Stage: "run", Err: errors.New("boom")})
	if got.Embeds[0].Color != ColorRed {
		t.Fatalf("color = %x", got.Embeds[0].Color)
	}
}

func TestDisabledNotifierSendsNothing(t *testing.T) {
	if err := NewNotifier("").SeasonDone(context.Background(), SeasonReport{}); err != nil {
		t.Fatal(err)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", 600)
	out := truncate(long, maxFieldLen)
	if len(out) > maxFieldLen || !strings.HasSuffix(out, "...") {
		t.Fatalf("len = %d", len(out))
	}
}
