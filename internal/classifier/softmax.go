package classifier

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Softmax divides logits by temperature and normalizes them into
// probabilities. Temperatures above 1 flatten the distribution before the
// calibrator sharpens it again. A non-positive temperature is treated as 1.
func Softmax(logits []float64, temperature float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	if temperature <= 0 {
		temperature = 1
	}
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		if l/temperature > maxLogit {
			maxLogit = l / temperature
		}
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, l := range logits {
		out[i] = math.Exp(l/temperature - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

var aiLabelHints = []string{"fake", "ai", "chatgpt", "generated", "1", "label_1"}

const defaultAILabel = 1

// AILabelID picks the class id that stands for machine-generated text from a
// model's id2label table. Ids are scanned in ascending order and the first
// label containing a known hint wins; without a match the id is 1.
func AILabelID(id2label map[string]string) int {
	ids := make([]int, 0, len(id2label))
	labels := make(map[int]string, len(id2label))
	for k, v := range id2label {
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		ids = append(ids, id)
		labels[id] = strings.ToLower(v)
	}
	sort.Ints(ids)
	for _, id := range ids {
		for _, hint := range aiLabelHints {
			if strings.Contains(labels[id], hint) {
				return id
			}
		}
	}
	return defaultAILabel
}
