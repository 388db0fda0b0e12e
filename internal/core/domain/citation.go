package domain

import (
	"regexp"
	"sort"
	"strconv"
)

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// NumberEvidence orders items and assigns dense citation indices starting at 1.
// Database items come before web items; within a source items are ordered by
// descending score, then by the position of the sub-query that produced them,
// then by their position in the input. The input slice is not modified.
func NumberEvidence(items []EvidenceItem) []EvidenceItem {
	type keyed struct {
		item EvidenceItem
		seen int
	}

	ordered := make([]keyed, len(items))
	for i, item := range items {
		ordered[i] = keyed{item: item, seen: i}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if ra, rb := a.item.SourceKind.rank(), b.item.SourceKind.rank(); ra != rb {
			return ra < rb
		}
		if a.item.Score != b.item.Score {
			return a.item.Score > b.item.Score
		}
		if a.item.SubQueryIndex != b.item.SubQueryIndex {
			return a.item.SubQueryIndex < b.item.SubQueryIndex
		}
		return a.seen < b.seen
	})

	numbered := make([]EvidenceItem, len(ordered))
	for i, k := range ordered {
		k.item.CitationIndex = i + 1
		numbered[i] = k.item
	}
	return numbered
}

// ExtractCitations returns the sorted, distinct [n] markers in text that
// satisfy valid. A nil valid accepts every positive integer.
func ExtractCitations(text string, valid func(int) bool) []int {
	seen := make(map[int]bool)
	var indices []int
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || seen[n] {
			continue
		}
		if valid != nil && !valid(n) {
			continue
		}
		seen[n] = true
		indices = append(indices, n)
	}
	sort.Ints(indices)
	return indices
}
