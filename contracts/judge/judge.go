// Package judge scores how close a guessed prompt is to the secret prompt
// of a case. The score is the Jaccard overlap of the two token sets.
package judge

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Reasoning messages, highest band first
const (
	ReasonEmpty   = "Empty input."
	ReasonStrong  = "Strong match on subject and style."
	ReasonGood    = "Good alignment, missing a few key cues."
	ReasonSome    = "Some overlap, but differs in core details."
	ReasonPartial = "Partial overlap; main tone differs."
	ReasonLow     = "Low similarity."
)

// ScoreResult is the verdict for one guess
type ScoreResult struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
	XPDelta   int    `json:"xpDelta"`
}

// ScoreGuess compares guess with secret. Case and punctuation are ignored,
// repeated words count once. Both arguments play the same role.
func ScoreGuess(guess string, secret string) ScoreResult {
	// cases.Caser keeps state, so each call gets its own
	lower := cases.Lower(language.Und)
	g := strings.TrimFunc(lower.String(guess), isSpace)
	s := strings.TrimFunc(lower.String(secret), isSpace)
	if g == "" || s == "" {
		return ScoreResult{Score: 0, Reasoning: ReasonEmpty, XPDelta: 0}
	}

	a := tokenSet(g)
	b := tokenSet(s)

	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union < 1 {
		union = 1
	}

	// round(100*inter/union), half away from zero
	score := (200*inter + union) / (2 * union)
	score = min(max(score, 0), 100)

	return ScoreResult{Score: score, Reasoning: reasoning(score), XPDelta: score}
}

// isSpace also counts the ASCII separators U+001C..U+001F as white space
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

func tokenSet(text string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return ' '
	}, text)

	set := make(map[string]struct{})
	for _, t := range strings.Fields(cleaned) {
		set[t] = struct{}{}
	}
	return set
}

func reasoning(score int) string {
	switch {
	case score >= 85:
		return ReasonStrong
	case score >= 70:
		return ReasonGood
	case score >= 55:
		return ReasonSome
	case score >= 35:
		return ReasonPartial
	default:
		return ReasonLow
	}
}
