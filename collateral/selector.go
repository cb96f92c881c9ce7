/*
Package collateral picks combinations of discrete vault balances that
sum exactly to a requested deposit amount.

Enumeration is exponential in the vault count (2^n subsets). That is
acceptable because real accounts hold a handful of vaults, but input
size is capped defensively rather than trusted.
*/
package collateral

import (
	"errors"
	"fmt"
	"sort"
)

// MaxSelectableVaults bounds the subset enumeration. 2^20 sums is the
// most we are willing to walk in one call.
const MaxSelectableVaults = 20

var ErrNoExactCombination = errors.New("no vault combination sums to the target amount")

// EnumerateAchievableSums returns every non-empty subset sum of the
// vault amounts, sorted ascending, deduplicated. Used to render the
// selectable deposit stops.
func EnumerateAchievableSums(vaultAmounts []uint64) ([]uint64, error) {
	if len(vaultAmounts) > MaxSelectableVaults {
		return nil, fmt.Errorf("too many vaults: %d > %d", len(vaultAmounts), MaxSelectableVaults)
	}
	if len(vaultAmounts) == 0 {
		return nil, nil
	}

	sums := make(map[uint64]bool)
	for _, amount := range vaultAmounts {
		// extend every previously achievable sum by this vault
		next := make([]uint64, 0, len(sums)+1)
		for s := range sums {
			next = append(next, s+amount)
		}
		next = append(next, amount)
		for _, s := range next {
			sums[s] = true
		}
	}

	out := make([]uint64, 0, len(sums))
	for s := range sums {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// SelectVaultsForAmount returns indices of vaults whose amounts sum
// exactly to target, or ErrNoExactCombination. Never approximate: a
// greedy pick can strand vaults that only combine correctly another
// way, so this walks the full achievable-sum table with parent
// pointers instead.
func SelectVaultsForAmount(vaultAmounts []uint64, target uint64) ([]int, error) {
	if len(vaultAmounts) > MaxSelectableVaults {
		return nil, fmt.Errorf("too many vaults: %d > %d", len(vaultAmounts), MaxSelectableVaults)
	}
	if target == 0 {
		return nil, ErrNoExactCombination
	}

	// parent[sum] = index of the vault that reached sum from sum-amount
	parent := make(map[uint64]int)
	for i, amount := range vaultAmounts {
		if amount == 0 || amount > target {
			continue
		}
		// snapshot keys first so a vault is not used twice in one pass
		reached := make([]uint64, 0, len(parent))
		for s := range parent {
			reached = append(reached, s)
		}
		for _, s := range reached {
			if s+amount <= target {
				if _, ok := parent[s+amount]; !ok {
					parent[s+amount] = i
				}
			}
		}
		if _, ok := parent[amount]; !ok {
			parent[amount] = i
		}
	}

	if _, ok := parent[target]; !ok {
		return nil, ErrNoExactCombination
	}

	// walk parents back to zero
	var indices []int
	remaining := target
	for remaining > 0 {
		i := parent[remaining]
		indices = append(indices, i)
		remaining -= vaultAmounts[i]
	}
	sort.Ints(indices)
	return indices, nil
}
