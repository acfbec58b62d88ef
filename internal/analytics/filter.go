// Package analytics holds the pure aggregation functions that turn a flat
// transaction list into grouped, normalized and statistically derived
// views. Every function is read-only over its inputs and total over
// degenerate (empty) input: an empty transaction set yields an empty or
// zero-valued result, never a panic.
package analytics

import "splitlens/internal/core"

// Filter returns the subset of txs passing every active constraint in f,
// preserving the original relative order. The same predicate is used by
// all aggregation entry points:
//
//   - date range is inclusive and compared lexically, which is correct
//     because dates are zero-padded ISO strings;
//   - a store filter matches the canonical name of the description via
//     mapping, and a description with no mapping is excluded;
//   - with no store filter active the mapping is irrelevant;
//   - the people filter passes when any share name matches.
func Filter(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping) []core.Transaction {
	if f.IsZero() {
		return txs
	}

	people := toSet(f.People)
	categories := toSet(f.Categories)
	storeFilter := toSet(f.Stores)

	var reverse map[string]string
	if len(storeFilter) > 0 {
		reverse = mapping.ReverseIndex()
	}

	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if f.StartDate != "" && t.Date < f.StartDate {
			continue
		}
		if f.EndDate != "" && t.Date > f.EndDate {
			continue
		}
		if len(categories) > 0 {
			if _, ok := categories[t.Category]; !ok {
				continue
			}
		}
		if len(storeFilter) > 0 {
			canonical, mapped := reverse[t.Description]
			if !mapped {
				continue
			}
			if _, ok := storeFilter[canonical]; !ok {
				continue
			}
		}
		if len(people) > 0 && !anyShareIn(t.Shares, people) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func anyShareIn(shares []core.Share, people map[string]struct{}) bool {
	for _, s := range shares {
		if _, ok := people[s.Name]; ok {
			return true
		}
	}
	return false
}

func toSet(vals []string) map[string]struct{} {
	if len(vals) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	return set
}

// canonicalOrRaw resolves a description through the reverse index,
// falling back to the raw description when unmapped. Store-centric views
// (store analytics, preferred stores, top stores per category) group
// unconfirmed stores under their own name rather than dropping them.
func canonicalOrRaw(desc string, reverse map[string]string) string {
	if canonical, ok := reverse[desc]; ok {
		return canonical
	}
	return desc
}
