package match_test

import (
	"testing"

	"github.com/glizzus/cobot/internal/catalog"
	"github.com/glizzus/cobot/internal/match"
	"github.com/google/go-cmp/cmp"
)

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{name: "identical", a: "bandit", b: "bandit", want: 100},
		{name: "substring", a: "fire", b: "checkfire", want: 100},
		{name: "substring reversed", a: "checkfire", b: "fire", want: 100},
		{name: "one typo", a: "bandt", b: "bandit", want: 80},
		{name: "nothing in common", a: "xyz123", b: "bandit", want: 0},
		{name: "empty query", a: "", b: "bandit", want: 0},
		{name: "both empty", a: "", b: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := match.PartialRatio(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("PartialRatio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestPartialRatioBounds(t *testing.T) {
	words := []string{"", "a", "bandit", "banditcall", "checkfire", "xyz123", "fox2", "splashone", "ççç"}
	for _, a := range words {
		for _, b := range words {
			got := match.PartialRatio(a, b)
			if got < 0 || got > 100 {
				t.Errorf("PartialRatio(%q, %q) = %d, out of bounds", a, b, got)
			}
			if again := match.PartialRatio(a, b); again != got {
				t.Errorf("PartialRatio(%q, %q) is not deterministic: %d then %d", a, b, got, again)
			}
			if a != "" && a == b && got != 100 {
				t.Errorf("PartialRatio(%q, %q) = %d, want 100", a, b, got)
			}
		}
	}
}

func TestScore(t *testing.T) {
	c, _ := catalog.New([]string{"Bandit", "Check Fire"})

	got := match.Score("Band-t!", c)
	want := map[string]int{
		"bandit":    80,
		"checkfire": 0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Score mismatch (-want +got):\n%s", diff)
	}

	self := match.Score("Check Fire", c)
	if self["checkfire"] != 100 {
		t.Errorf("expected a query to score 100 against its own key, got %d", self["checkfire"])
	}
}
