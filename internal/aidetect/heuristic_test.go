package aidetect

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestHumanBonusNeedsThreeSentences(t *testing.T) {
	cases := []string{
		"",
		"One sentence only.",
		"Two sentences here. And a second one.",
		strings.Repeat("x", 400) + ". ab. cd. ef!",
	}
	for _, text := range cases {
		if got := HumanBonus(text); got != 0 {
			t.Fatalf("expected zero bonus for %q, got %v", text, got)
		}
	}
}

func TestHumanBonusUniformSentencesEarnNothing(t *testing.T) {
	text := "The cat sat down. The dog sat down. The cow sat down. The pig sat down."
	if got := HumanBonus(text); got != 0 {
		t.Fatalf("expected zero bonus for uniform sentences, got %v", got)
	}
}

func TestHumanBonusBurstyText(t *testing.T) {
	text := "No. Well then. I walked for hours through the rain, thinking about every wrong turn I had taken since spring. Fine! " +
		"She laughed. Then, without warning and against all of the advice she had ever been given, she sold the house."
	got := HumanBonus(text)
	if got <= 0 {
		t.Fatalf("expected positive bonus for bursty text, got %v", got)
	}
	if got > maxHumanBonus {
		t.Fatalf("bonus %v exceeds cap", got)
	}
}

func TestHumanBonusMatchesFormula(t *testing.T) {
	text := "AI生成的均匀句子。均匀句子。均匀句子。"
	lengths := []float64{9, 4, 4}
	mean, sd := meanStd(lengths)
	want := (sd/(mean+cvEpsilon) - burstCVThreshold) * burstBonusSlope
	got := HumanBonus(text)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected bonus %v, got %v", want, got)
	}
}

func TestHumanBonusCJKTerminators(t *testing.T) {
	got := sentenceLengths("第一句话很短。第二句话稍微长一点点！第三句话？第四句话；\n第五句话")
	if len(got) != 5 {
		t.Fatalf("expected 5 sentences, got %d (%v)", len(got), got)
	}
}

func TestHumanBonusBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	terminators := []string{".", "!", "?", ";", "。", "！", "？", "；", "\n"}
	for i := 0; i < 500; i++ {
		var b strings.Builder
		n := rng.IntN(12)
		for j := 0; j < n; j++ {
			b.WriteString(strings.Repeat("字", rng.IntN(80)))
			b.WriteString(terminators[rng.IntN(len(terminators))])
		}
		got := HumanBonus(b.String())
		if got < 0 || got > maxHumanBonus {
			t.Fatalf("bonus %v out of range for %q", got, b.String())
		}
	}
}

func TestMeanStdPopulation(t *testing.T) {
	mean, sd := meanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 || sd != 2 {
		t.Fatalf("expected mean=5 sd=2, got mean=%v sd=%v", mean, sd)
	}
}
