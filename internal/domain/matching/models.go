package matching

import (
	"time"

	"refpay/internal/domain/referees"
)

const (
	ConfidenceThreshold = 60
	SuggestionFloor     = 30

	maxConfidentSuggestions = 5
	maxOpenSuggestions      = 8
)

// Mapping is a confirmed schedule-name to referee link, keyed by the
// normalized schedule name.
type Mapping struct {
	ScheduleName   string    `json:"scheduleName"`
	EmployeeNumber string    `json:"employeeNumber"`
	ConfirmedAt    time.Time `json:"confirmedAt"`
	DateProcessed  time.Time `json:"dateProcessed"`
	IsManual       bool      `json:"isManual"`
}

type Suggestion struct {
	Referee    referees.Referee `json:"referee"`
	Confidence int              `json:"confidence"`
}

type Result struct {
	ScheduleName   string            `json:"scheduleName"`
	MatchedReferee *referees.Referee `json:"matchedReferee"`
	Confidence     int               `json:"confidence"`
	IsFromStorage  bool              `json:"isFromStorage"`
	Suggestions    []Suggestion      `json:"suggestions"`
}

// NeedsReview reports whether a human should look at the result before it is
// confirmed.
func (r Result) NeedsReview() bool {
	return r.MatchedReferee == nil || (!r.IsFromStorage && r.Confidence < ConfidenceThreshold)
}

// Cache is a read snapshot of confirmed mappings keyed by normalized name.
type Cache map[string]Mapping

func NewCache(mappings []Mapping) Cache {
	cache := make(Cache, len(mappings))
	for _, mapping := range mappings {
		cache[Normalize(mapping.ScheduleName)] = mapping
	}
	return cache
}

func (c Cache) Lookup(scheduleName string) (Mapping, bool) {
	if c == nil {
		return Mapping{}, false
	}
	mapping, ok := c[Normalize(scheduleName)]
	return mapping, ok
}

// Put overwrites any earlier mapping stored under the same normalized name.
func (c Cache) Put(mapping Mapping) {
	c[Normalize(mapping.ScheduleName)] = mapping
}
