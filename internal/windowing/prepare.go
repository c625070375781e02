// Package windowing trims conversation history to an estimated token budget
// before it is sent to a provider, dropping whole exchanges oldest first.
package windowing

import "github.com/petasbytes/rye/memory"

// Stats summarizes the result of window preparation.
//
// Fields:
// - Total: estimated tokens for included groups only.
// - Budget: the input token budget used; 0 means unlimited.
// - IncludedGroups: number of groups included.
// - SkippedGroups: total groups minus IncludedGroups.
// - OverBudgetNewest: true when the newest single group alone exceeds Budget.
type Stats struct {
	Total            int
	Budget           int
	IncludedGroups   int
	SkippedGroups    int
	OverBudgetNewest bool
}

// PrepareSendWindow returns the suffix of msgs (oldest→newest) that fits within
// budget, without splitting exchanges.
//
// Rules:
//   - budget ≤ 0 is unlimited: every message is returned.
//   - Include whole groups scanning newest→oldest while total ≤ budget; stop at
//     the first group that does not fit so the window stays contiguous.
//   - If the newest group alone exceeds budget, return an empty window and set
//     OverBudgetNewest.
func PrepareSendWindow(msgs []memory.Message, budget int, c TokenCounter) ([]memory.Message, Stats) {
	stats := Stats{Budget: max(budget, 0)}
	if len(msgs) == 0 {
		return nil, stats
	}
	groups := GroupExchanges(msgs)

	if budget <= 0 {
		for _, g := range groups {
			stats.Total += c.CountGroup(g, msgs)
		}
		stats.IncludedGroups = len(groups)
		return msgs, stats
	}

	start := len(groups)
	for gi := len(groups) - 1; gi >= 0; gi-- {
		cost := c.CountGroup(groups[gi], msgs)
		if stats.Total+cost > budget {
			if gi == len(groups)-1 {
				vlogf("reason=over_budget_newest_group budget=%d cost=%d", budget, cost)
				stats.OverBudgetNewest = true
			}
			break
		}
		stats.Total += cost
		start = gi
	}

	stats.IncludedGroups = len(groups) - start
	stats.SkippedGroups = start
	if stats.IncludedGroups == 0 {
		return nil, stats
	}
	return msgs[groups[start].Start:], stats
}
