package aidetect

import "math"

// Calibrate turns the raw probability of the generated class into the
// reported percentage. The steps run in a fixed order: subtract the human
// bonus (never below zero), raise to powerFactor, scale to 0-100 and round to
// two decimals.
//
// raw must already be the softmax of temperature-divided logits. That scaling
// belongs to the classifier boundary (see classifier.Softmax); anything that
// calls a model directly has to apply it before handing the value here.
func Calibrate(raw, bonus, powerFactor float64) float64 {
	adjusted := math.Max(0, clamp01(raw)-bonus)
	sharpened := math.Pow(adjusted, powerFactor)
	return round2(clamp01(sharpened) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
