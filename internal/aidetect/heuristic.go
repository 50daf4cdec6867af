package aidetect

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minSentenceRunes = 3
	minSentences     = 3
	burstCVThreshold = 0.4
	burstBonusSlope  = 0.6
	maxHumanBonus    = 0.3
	cvEpsilon        = 1e-5
)

// Latin and full-width terminators plus line breaks.
var sentenceSplit = regexp.MustCompile(`[.!?;。！？；\r\n]+`)

// HumanBonus scores how bursty the sentence lengths of a paragraph are.
// Human prose varies its sentence length far more than generated prose, so a
// high coefficient of variation earns a discount in [0, 0.3] that is later
// subtracted from the raw AI probability.
func HumanBonus(text string) float64 {
	lengths := sentenceLengths(text)
	if len(lengths) < minSentences {
		return 0
	}
	mean, sd := meanStd(lengths)
	cv := sd / (mean + cvEpsilon)
	if cv <= burstCVThreshold {
		return 0
	}
	return math.Min((cv-burstCVThreshold)*burstBonusSlope, maxHumanBonus)
}

// sentenceLengths returns rune lengths of the fragments that survive the
// short-fragment filter. Lengths are measured on the untrimmed fragment.
func sentenceLengths(text string) []float64 {
	parts := sentenceSplit.Split(text, -1)
	lengths := make([]float64, 0, len(parts))
	for _, s := range parts {
		if utf8.RuneCountInString(strings.TrimSpace(s)) <= minSentenceRunes {
			continue
		}
		lengths = append(lengths, float64(utf8.RuneCountInString(s)))
	}
	return lengths
}

func meanStd(values []float64) (mean, sd float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) == 1 {
		return mean, 0
	}
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
