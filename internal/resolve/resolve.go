// Package resolve decides which sound, if any, a free-text query refers to.
//
// Two policies are supported. PolicyFuzzy runs the full threshold cascade
// over partial-ratio scores. PolicyExact is the older behaviour used by the
// list-and-autocomplete flow, where a query must normalize to a catalog key
// and anything else is simply not found.
package resolve

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/glizzus/cobot/internal/catalog"
	"github.com/glizzus/cobot/internal/match"
)

type Kind int

const (
	None Kind = iota
	Exact
	SingleClose
	MultiClose
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Exact:
		return "exact"
	case SingleClose:
		return "single_close"
	case MultiClose:
		return "multi_close"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Policy string

const (
	PolicyFuzzy Policy = "fuzzy"
	PolicyExact Policy = "exact"
)

const (
	DefaultMinThreshold  = 50
	DefaultHighThreshold = 70
)

// Candidate is a catalog entry together with its score for a query.
type Candidate struct {
	Entry catalog.Entry
	Score int
}

// Result is the outcome of resolving a query.
//
// Entry is set for Exact and SingleClose. Ranked holds every candidate that
// scored above the minimum threshold, best first; for MultiClose these are
// the suggestions to offer the user.
type Result struct {
	Kind   Kind
	Entry  catalog.Entry
	Ranked []Candidate
}

// Resolver applies a resolution policy. The zero value is not usable; use New.
type Resolver struct {
	policy        Policy
	minThreshold  int
	highThreshold int
}

func New(policy Policy, minThreshold, highThreshold int) *Resolver {
	return &Resolver{
		policy:        policy,
		minThreshold:  minThreshold,
		highThreshold: highThreshold,
	}
}

func (r *Resolver) Policy() Policy {
	return r.policy
}

// Resolve matches query against c.
func (r *Resolver) Resolve(query string, c *catalog.Catalog) Result {
	if e, ok := c.LookupDisplayName(query); ok {
		return Result{Kind: Exact, Entry: e}
	}
	if e, ok := c.Lookup(catalog.Normalize(query)); ok {
		return Result{Kind: Exact, Entry: e}
	}
	if r.policy == PolicyExact {
		return Result{Kind: None}
	}
	return r.Classify(match.Score(query, c), c)
}

// Classify runs the threshold cascade over precomputed scores.
// Keys in scores that are not in c are ignored.
func (r *Resolver) Classify(scores map[string]int, c *catalog.Catalog) Result {
	var above []Candidate
	for key, score := range scores {
		if score <= r.minThreshold {
			continue
		}
		e, ok := c.Lookup(key)
		if !ok {
			continue
		}
		above = append(above, Candidate{Entry: e, Score: score})
	}
	sortCandidates(above)

	switch len(above) {
	case 0:
		return Result{Kind: None}
	case 1:
		return Result{Kind: SingleClose, Entry: above[0].Entry, Ranked: above}
	}

	if above[0].Score > r.highThreshold {
		return Result{Kind: SingleClose, Entry: above[0].Entry, Ranked: above}
	}
	return Result{Kind: MultiClose, Ranked: above}
}

// Rank scores every entry in c against query and returns the best limit
// candidates. It backs autocomplete and never filters by threshold.
func Rank(query string, c *catalog.Catalog, limit int) []Candidate {
	scores := match.Score(query, c)
	ranked := make([]Candidate, 0, len(scores))
	for key, score := range scores {
		e, _ := c.Lookup(key)
		ranked = append(ranked, Candidate{Entry: e, Score: score})
	}
	sortCandidates(ranked)
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// sortCandidates orders by score descending, breaking ties by key ascending.
func sortCandidates(candidates []Candidate) {
	slices.SortFunc(candidates, func(a, b Candidate) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Entry.Key, b.Entry.Key)
	})
}
