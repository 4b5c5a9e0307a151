package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// AccountCapacity is the fixed number of slots minted with every account.
const AccountCapacity = 8

// labelPattern matches pool-managed account labels ("1-8", "9-16", ...).
// Operator-created accounts carry free-form labels and never match.
var labelPattern = regexp.MustCompile(`^([0-9]+)-([0-9]+)$`)

// LabelForIndex returns the deterministic label of the account owning batch
// index: the slot range it covers. Index 0 maps to the bootstrap label "1-8".
func LabelForIndex(index int) string {
	lo := index*AccountCapacity + 1
	return fmt.Sprintf("%d-%d", lo, lo+AccountCapacity-1)
}

// IndexForLabel parses a label back into its batch index. The second return
// is false for anything that is not a pool label: wrong pattern, a range not
// aligned to the account capacity, or a range of the wrong width. Pool growth
// must ignore those labels entirely.
func IndexForLabel(label string) (int, bool) {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}

	lo, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	hi, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}

	if lo < 1 || (lo-1)%AccountCapacity != 0 || hi != lo+AccountCapacity-1 {
		return 0, false
	}

	return (lo - 1) / AccountCapacity, true
}

// NextBatchIndex returns the batch index pool growth should create next: one
// past the highest valid index among the given labels, or 0 when none parse.
// Gaps from failed creations are never backfilled.
func NextBatchIndex(labels []string) int {
	next := 0
	for _, label := range labels {
		if index, ok := IndexForLabel(label); ok && index+1 > next {
			next = index + 1
		}
	}
	return next
}

// SortCandidates orders free slots into the total, stable order every
// concurrent caller converges on: pool accounts first by batch index, then
// operator-labeled accounts lexicographically, then position within account.
func SortCandidates(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return lessCandidate(slots[i], slots[j])
	})
}

func lessCandidate(a, b Slot) bool {
	ai, aok := IndexForLabel(a.AccountLabel)
	bi, bok := IndexForLabel(b.AccountLabel)

	switch {
	case aok && bok:
		if ai != bi {
			return ai < bi
		}
	case aok:
		return true
	case bok:
		return false
	default:
		if a.AccountLabel != b.AccountLabel {
			return a.AccountLabel < b.AccountLabel
		}
	}

	return a.Position < b.Position
}
