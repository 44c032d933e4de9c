package payroll

import (
	"strings"

	"refpay/internal/domain/matching"
)

// ScheduleEntry is one row produced by schedule parsing: a raw name and how
// many games it worked in a category.
type ScheduleEntry struct {
	ScheduleName string `json:"scheduleName"`
	Category     string `json:"category"`
	Games        int    `json:"games"`
}

// Adjustment carries manual extra pay and fines entered before saving.
type Adjustment struct {
	EmployeeNumber string  `json:"employeeNumber"`
	ExtraPay       float64 `json:"extraPay"`
	Fines          float64 `json:"fines"`
}

// ScheduleNames returns the distinct raw names in first-seen order.
func ScheduleNames(entries []ScheduleEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	var names []string
	for _, entry := range entries {
		name := strings.TrimSpace(entry.ScheduleName)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// TalliesFromEntries attributes each entry to the referee its name resolved
// to. Names that resolved below the confidence threshold without a stored
// confirmation mark the tally low confidence. A name with no match at all
// (empty registry) fails with ErrUnresolvedName.
func TalliesFromEntries(entries []ScheduleEntry, results []matching.Result) ([]Tally, error) {
	byName := make(map[string]matching.Result, len(results))
	for _, result := range results {
		byName[strings.TrimSpace(result.ScheduleName)] = result
	}

	tallies := make([]Tally, 0, len(entries))
	for _, entry := range entries {
		name := strings.TrimSpace(entry.ScheduleName)
		if name == "" || entry.Games <= 0 {
			continue
		}
		result, ok := byName[name]
		if !ok || result.MatchedReferee == nil {
			return nil, ErrUnresolvedName
		}
		tallies = append(tallies, Tally{
			EmployeeNumber: result.MatchedReferee.EmployeeNumber,
			FullName:       result.MatchedReferee.FullName,
			ScheduleNames:  []string{name},
			Categories:     []CategoryCount{{Category: entry.Category, Games: entry.Games}},
			LowConfidence:  !result.IsFromStorage && result.Confidence < matching.ConfidenceThreshold,
		})
	}
	return tallies, nil
}

// ApplyAdjustments sets extra pay and fines on merged tallies. Adjustments
// for referees not in the batch are ignored.
func ApplyAdjustments(tallies []Tally, adjustments []Adjustment) []Tally {
	if len(adjustments) == 0 {
		return tallies
	}
	byNumber := make(map[string]Adjustment, len(adjustments))
	for _, adjustment := range adjustments {
		byNumber[strings.TrimSpace(adjustment.EmployeeNumber)] = adjustment
	}
	for i := range tallies {
		if adjustment, ok := byNumber[tallies[i].EmployeeNumber]; ok {
			tallies[i].ExtraPay = adjustment.ExtraPay
			tallies[i].Fines = adjustment.Fines
		}
	}
	return tallies
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
