package matching

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	ScoreExact    = 100
	ScoreContains = 90

	fullMatchWeight    = 80.0
	partialMatchWeight = 50.0

	firstTokenBonus     = 20
	surnameFirstBonus   = 15
	surnameMinLength    = 3
	fuzzyMinTokenLength = 2
	fuzzyThreshold      = 0.8
)

// Similarity scores scheduleName against registryName in [0,100].
//
// The score is not symmetric: the first-token bonus looks at the schedule's
// first token only, which favours surname-first schedule conventions.
func Similarity(scheduleName, registryName string) int {
	a := Normalize(scheduleName)
	b := Normalize(registryName)
	if a == "" || b == "" {
		// names with no letters or digits only match their own spelling
		raw := strings.TrimSpace(scheduleName)
		if raw != "" && strings.EqualFold(raw, strings.TrimSpace(registryName)) {
			return ScoreExact
		}
		return 0
	}
	if a == b {
		return ScoreExact
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return ScoreContains
	}

	scheduleTokens := strings.Fields(a)
	registryTokens := strings.Fields(b)
	totalParts := max(len(scheduleTokens), len(registryTokens))
	if totalParts == 0 {
		return 0
	}

	var full, partial int
	for _, token := range scheduleTokens {
		switch {
		case containsToken(registryTokens, token):
			full++
		case hasPartialMatch(registryTokens, token):
			partial++
		}
	}

	base := float64(full)/float64(totalParts)*fullMatchWeight +
		float64(partial)/float64(totalParts)*partialMatchWeight
	score := int(math.Round(base))

	first := scheduleTokens[0]
	switch {
	case first == registryTokens[0]:
		score += firstTokenBonus
	case utf8.RuneCountInString(first) > surnameMinLength && containsToken(registryTokens, first):
		score += surnameFirstBonus
	}

	return clamp(score, 0, ScoreExact)
}

// EditSimilarity returns 1 - levenshtein(a, b)/maxLen, measured in runes.
func EditSimilarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

func containsToken(tokens []string, target string) bool {
	for _, token := range tokens {
		if token == target {
			return true
		}
	}
	return false
}

func hasPartialMatch(tokens []string, target string) bool {
	targetLen := utf8.RuneCountInString(target)
	for _, token := range tokens {
		if strings.Contains(token, target) || strings.Contains(target, token) {
			return true
		}
		if targetLen > fuzzyMinTokenLength && utf8.RuneCountInString(token) > fuzzyMinTokenLength &&
			EditSimilarity(target, token) > fuzzyThreshold {
			return true
		}
	}
	return false
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
