package aidetect

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	cjkFirst = '\u4e00'
	cjkLast  = '\u9fa5'
)

const (
	LengthPolicyStripped    = "stripped"
	LengthPolicyCJKWeighted = "cjk_weighted"
)

// LengthFunc measures the effective length of a paragraph.
type LengthFunc func(text string) float64

// StrippedLength counts the runes left after removing all whitespace.
func StrippedLength(text string) float64 {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return float64(n)
}

// CJKWeightedLength counts CJK Unified Ideographs in U+4E00..U+9FA5 as 1 and
// ASCII letters and digits as 0.5. Extension blocks, compatibility
// ideographs, punctuation, whitespace and every other rune count for nothing.
func CJKWeightedLength(text string) float64 {
	total := 0.0
	for _, r := range text {
		switch {
		case r >= cjkFirst && r <= cjkLast:
			total += 1.0
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			total += 0.5
		}
	}
	return total
}

// LengthFuncFor resolves a configured policy name.
func LengthFuncFor(policy string) (LengthFunc, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", LengthPolicyStripped:
		return StrippedLength, nil
	case LengthPolicyCJKWeighted:
		return CJKWeightedLength, nil
	default:
		return nil, fmt.Errorf("unknown length policy %q", policy)
	}
}

type Validity struct {
	IsIgnored bool
	Weight    float64
}

// ValidityPolicy decides which paragraphs are long enough to score and how
// much each one weighs in the document total.
type ValidityPolicy struct {
	MinValidChars int
	Length        LengthFunc
}

func NewValidityPolicy(minValidChars int, length LengthFunc) *ValidityPolicy {
	if length == nil {
		length = StrippedLength
	}
	return &ValidityPolicy{MinValidChars: minValidChars, Length: length}
}

func (p *ValidityPolicy) Evaluate(text string) Validity {
	length := p.Length
	if length == nil {
		length = StrippedLength
	}
	n := length(text)
	if n < float64(p.MinValidChars) {
		return Validity{IsIgnored: true, Weight: 0}
	}
	return Validity{IsIgnored: false, Weight: n}
}
