package retrieval

import "sort"

// mmrItem is one candidate for diversity selection.
type mmrItem struct {
	Relevance float64
	Embedding []float32
}

const defaultMMRLambda = 0.70

// selectMMR picks up to k diverse items by maximal marginal relevance:
// score(i) = lambda*relevance(i) - (1-lambda)*max_{s in selected} cos(i, s).
// Items with nil embeddings or non-positive relevance are excluded from the
// greedy walk; if none qualify, it falls back to top-k by relevance. Ties
// break toward the smaller original index. The returned indices are sorted
// ascending.
func selectMMR(items []mmrItem, k int, lambda float64) []int {
	if k <= 0 || len(items) == 0 {
		return nil
	}
	if lambda <= 0 || lambda >= 1 {
		lambda = defaultMMRLambda
	}

	valid := make([]int, 0, len(items))
	for i, item := range items {
		if len(item.Embedding) > 0 && item.Relevance > 0 {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return topKByRelevance(items, k)
	}

	// Seed with the highest-relevance valid item.
	seed := valid[0]
	for _, i := range valid[1:] {
		if items[i].Relevance > items[seed].Relevance {
			seed = i
		}
	}
	selected := []int{seed}
	remaining := make(map[int]bool, len(valid))
	for _, i := range valid {
		remaining[i] = true
	}
	delete(remaining, seed)

	for len(selected) < k && len(remaining) > 0 {
		best := -1
		bestScore := 0.0
		for i := range items {
			if !remaining[i] {
				continue
			}
			maxSim := 0.0
			for _, s := range selected {
				if sim := cosine(items[i].Embedding, items[s].Embedding); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*items[i].Relevance - (1-lambda)*maxSim
			if best == -1 || score > bestScore || (score == bestScore && i < best) {
				best = i
				bestScore = score
			}
		}
		if best == -1 {
			break
		}
		selected = append(selected, best)
		delete(remaining, best)
	}

	sort.Ints(selected)
	return selected
}

// topKByRelevance is the degenerate path when no candidate carries both a
// vector and a positive score.
func topKByRelevance(items []mmrItem, k int) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if items[order[a]].Relevance != items[order[b]].Relevance {
			return items[order[a]].Relevance > items[order[b]].Relevance
		}
		return order[a] < order[b]
	})
	if k > len(order) {
		k = len(order)
	}
	out := append([]int(nil), order[:k]...)
	sort.Ints(out)
	return out
}
