// Package match scores free text against the sound catalog.
package match

import (
	"math"

	"github.com/antzucaro/matchr"
	"github.com/glizzus/cobot/internal/catalog"
)

// PartialRatio returns how well the shorter of a and b fits somewhere inside
// the longer one, from 0 (nothing in common) to 100 (a full substring match).
//
// The shorter string is compared against every window of the same length in
// the longer string and the best window wins. A window scores
// 100 * (n - distance) / n, where distance is the Levenshtein distance and n
// is the window length. Comparison is rune-wise and case-sensitive; callers
// are expected to normalize first.
func PartialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	n := len(short)
	if n == 0 {
		return 0
	}

	needle := string(short)
	best := 0
	for start := 0; start+n <= len(long); start++ {
		window := string(long[start : start+n])
		if window == needle {
			return 100
		}
		distance := matchr.Levenshtein(needle, window)
		score := int(math.Round(100 * float64(n-distance) / float64(n)))
		if score > best {
			best = score
		}
	}
	return best
}

// Score normalizes query and scores it against every key in c.
// Nothing is filtered or sorted.
func Score(query string, c *catalog.Catalog) map[string]int {
	q := catalog.Normalize(query)
	keys := c.Keys()
	scores := make(map[string]int, len(keys))
	for _, key := range keys {
		scores[key] = PartialRatio(q, key)
	}
	return scores
}
