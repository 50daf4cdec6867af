package aidetect

// Aggregator keeps the running length-weighted mean of paragraph scores.
// It is owned by a single run and is not safe for concurrent use.
type Aggregator struct {
	weightedSum float64
	totalWeight float64
}

// Add accumulates one paragraph. Non-positive weights are skipped, so ignored
// paragraphs never move the total.
func (a *Aggregator) Add(score, weight float64) {
	if weight <= 0 {
		return
	}
	a.weightedSum += score * weight
	a.totalWeight += weight
}

func (a *Aggregator) Finalize() float64 {
	if a.totalWeight <= 0 {
		return 0
	}
	return round2(a.weightedSum / a.totalWeight)
}
