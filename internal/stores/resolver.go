// Package stores clusters near-duplicate store descriptions and maintains
// the canonical-name mapping the analytics aggregations group by.
package stores

import (
	"strings"
	"unicode"

	"splitlens/internal/core"
)

// similarityThreshold is the minimum normalized similarity for two store
// descriptions to land in the same cluster.
const similarityThreshold = 0.8

// SplitResult is the outcome of splitting names out of an existing group.
type SplitResult struct {
	Original     core.StoreGrouping `json:"original"`
	NewGroup     core.StoreGrouping `json:"newGroup"`
	Transactions []core.Transaction `json:"-"`
}

// normalize lowercases a description and strips everything that is not a
// letter, digit or whitespace, so "Mayuri's #2" and "mayuris 2" compare
// equal-ish under edit distance.
func normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// occurrenceCounts counts raw descriptions across the transaction list.
func occurrenceCounts(txs []core.Transaction) map[string]int {
	counts := make(map[string]int)
	for _, t := range txs {
		counts[t.Description]++
	}
	return counts
}

// distinctDescriptions returns the distinct raw descriptions in first-seen
// order. The greedy clustering below is order-dependent, so a stable
// iteration order keeps results reproducible for a given upload.
func distinctDescriptions(txs []core.Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	var out []string
	for _, t := range txs {
		if _, ok := seen[t.Description]; ok {
			continue
		}
		seen[t.Description] = struct{}{}
		out = append(out, t.Description)
	}
	return out
}

// AnalyzeSimilarStores clusters the distinct store descriptions of txs by
// string similarity and proposes one grouping per cluster of size >= 2.
// The canonical name of each cluster is the member occurring most often
// in the transaction list (first found wins ties).
//
// Clustering is greedy: once a name is consumed by an earlier cluster it
// is not reconsidered, so membership depends on iteration order. That is
// an accepted approximation, not a global optimum.
func AnalyzeSimilarStores(txs []core.Transaction) []core.StoreGrouping {
	names := distinctDescriptions(txs)
	counts := occurrenceCounts(txs)

	normalized := make([]string, len(names))
	for i, n := range names {
		normalized[i] = normalize(n)
	}

	assigned := make([]bool, len(names))
	var groupings []core.StoreGrouping

	for i := range names {
		if assigned[i] {
			continue
		}
		cluster := []int{i}
		assigned[i] = true
		for j := range names {
			if assigned[j] {
				continue
			}
			if similarity(normalized[i], normalized[j]) > similarityThreshold {
				cluster = append(cluster, j)
				assigned[j] = true
			}
		}
		if len(cluster) < 2 {
			continue // nothing to deduplicate
		}

		canonical := names[cluster[0]]
		for _, idx := range cluster[1:] {
			if counts[names[idx]] > counts[canonical] {
				canonical = names[idx]
			}
		}

		variations := make([]string, 0, len(cluster)-1)
		for _, idx := range cluster {
			if names[idx] != canonical {
				variations = append(variations, names[idx])
			}
		}
		groupings = append(groupings, core.StoreGrouping{
			CanonicalName: canonical,
			Variations:    variations,
		})
	}
	return groupings
}

// ApplyStoreMappings returns a new transaction list with every mapped
// description rewritten to its canonical name. Unmapped descriptions pass
// through unchanged. Applying the same mapping twice is a no-op.
func ApplyStoreMappings(txs []core.Transaction, mapping core.StoreMapping) []core.Transaction {
	idx := mapping.ReverseIndex()
	out := make([]core.Transaction, len(txs))
	for i, t := range txs {
		out[i] = t.Clone()
		if canonical, ok := idx[t.Description]; ok {
			out[i].Description = canonical
		}
	}
	return out
}

// MergeGroups unions two groupings into one. The canonical name is
// re-derived by occurrence count over the combined name pool and all
// matching transaction descriptions are rewritten to it.
func MergeGroups(g1, g2 core.StoreGrouping, txs []core.Transaction) (core.StoreGrouping, []core.Transaction) {
	pool := dedupe(append(append(append(
		[]string{g1.CanonicalName}, g1.Variations...),
		g2.CanonicalName), g2.Variations...))

	counts := occurrenceCounts(txs)
	canonical := pool[0]
	for _, n := range pool[1:] {
		if counts[n] > counts[canonical] {
			canonical = n
		}
	}

	variations := make([]string, 0, len(pool)-1)
	for _, n := range pool {
		if n != canonical {
			variations = append(variations, n)
		}
	}

	merged := core.StoreGrouping{CanonicalName: canonical, Variations: variations}
	return merged, rewrite(txs, pool, canonical)
}

// SplitGroup removes namesToSplit from group and forms a new grouping out
// of them, deriving the new canonical name by occurrence count. Matching
// transaction descriptions are rewritten to the new canonical name. An
// empty namesToSplit yields an empty new group and no changes; the caller
// is expected to guard against that.
func SplitGroup(group core.StoreGrouping, namesToSplit []string, txs []core.Transaction) SplitResult {
	if len(namesToSplit) == 0 {
		return SplitResult{Original: group, Transactions: txs}
	}

	splitSet := make(map[string]struct{}, len(namesToSplit))
	for _, n := range namesToSplit {
		splitSet[n] = struct{}{}
	}

	remaining := make([]string, 0, len(group.Variations))
	for _, v := range group.Variations {
		if _, ok := splitSet[v]; !ok {
			remaining = append(remaining, v)
		}
	}
	original := core.StoreGrouping{CanonicalName: group.CanonicalName, Variations: remaining}

	counts := occurrenceCounts(txs)
	canonical := namesToSplit[0]
	for _, n := range namesToSplit[1:] {
		if counts[n] > counts[canonical] {
			canonical = n
		}
	}
	variations := make([]string, 0, len(namesToSplit)-1)
	for _, n := range namesToSplit {
		if n != canonical {
			variations = append(variations, n)
		}
	}

	return SplitResult{
		Original:     original,
		NewGroup:     core.StoreGrouping{CanonicalName: canonical, Variations: variations},
		Transactions: rewrite(txs, namesToSplit, canonical),
	}
}

// rewrite replaces the description of every transaction whose description
// is in names with canonical, returning a new slice.
func rewrite(txs []core.Transaction, names []string, canonical string) []core.Transaction {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	out := make([]core.Transaction, len(txs))
	for i, t := range txs {
		out[i] = t.Clone()
		if _, ok := set[t.Description]; ok {
			out[i].Description = canonical
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
