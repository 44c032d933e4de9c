package matching

import (
	"sort"
	"time"

	"refpay/internal/domain/referees"
)

// FindMatch resolves one schedule name against a registry snapshot.
//
// A non-empty registry always yields a matched referee; ambiguity is carried
// by Confidence and Suggestions rather than by withholding the match.
func FindMatch(scheduleName string, registry []referees.Referee, cache Cache) Result {
	result := Result{ScheduleName: scheduleName, Suggestions: []Suggestion{}}
	if len(registry) == 0 {
		return result
	}

	if mapping, ok := cache.Lookup(scheduleName); ok {
		if referee, found := findReferee(registry, mapping.EmployeeNumber); found {
			result.MatchedReferee = &referee
			result.Confidence = ScoreExact
			result.IsFromStorage = true
			return result
		}
	}

	ranked := Rank(scheduleName, registry)
	top := ranked[0]
	matched := top.Referee
	result.MatchedReferee = &matched
	result.Confidence = top.Confidence

	if top.Confidence >= ConfidenceThreshold {
		for _, candidate := range ranked {
			if len(result.Suggestions) == maxConfidentSuggestions {
				break
			}
			if candidate.Confidence >= SuggestionFloor {
				result.Suggestions = append(result.Suggestions, candidate)
			}
		}
		return result
	}

	limit := min(len(ranked), maxOpenSuggestions)
	result.Suggestions = append(result.Suggestions, ranked[:limit]...)
	return result
}

// FindMatches resolves every name in order against the same snapshot.
func FindMatches(scheduleNames []string, registry []referees.Referee, cache Cache) []Result {
	out := make([]Result, 0, len(scheduleNames))
	for _, name := range scheduleNames {
		out = append(out, FindMatch(name, registry, cache))
	}
	return out
}

// Rank scores the name against every registry entry, best first. Ties keep
// registry order.
func Rank(scheduleName string, registry []referees.Referee) []Suggestion {
	ranked := make([]Suggestion, 0, len(registry))
	for _, referee := range registry {
		ranked = append(ranked, Suggestion{Referee: referee, Confidence: Similarity(scheduleName, referee.FullName)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

// Confirm builds the mapping that records referee as the identity behind
// scheduleName. Persisting it is the caller's job.
func Confirm(scheduleName string, referee referees.Referee, isManual bool, dateProcessed, now time.Time) Mapping {
	return Mapping{
		ScheduleName:   Normalize(scheduleName),
		EmployeeNumber: referee.EmployeeNumber,
		ConfirmedAt:    now,
		DateProcessed:  dateProcessed,
		IsManual:       isManual,
	}
}

// Confirmed returns the result as it reads once the mapping is stored: the
// chosen referee at full confidence.
func Confirmed(result Result, referee referees.Referee) Result {
	result.MatchedReferee = &referee
	result.Confidence = ScoreExact
	result.IsFromStorage = true
	result.Suggestions = []Suggestion{}
	return result
}

func findReferee(registry []referees.Referee, employeeNumber string) (referees.Referee, bool) {
	for _, referee := range registry {
		if referee.EmployeeNumber == employeeNumber {
			return referee, true
		}
	}
	return referees.Referee{}, false
}
