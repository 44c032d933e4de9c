package referees

import "strings"

// ExemptionSet lists employee numbers that are not charged the admin fee
// unless their stored settings say otherwise.
type ExemptionSet map[string]struct{}

func NewExemptionSet(employeeNumbers []string) ExemptionSet {
	set := make(ExemptionSet, len(employeeNumbers))
	for _, number := range employeeNumbers {
		number = strings.TrimSpace(number)
		if number != "" {
			set[number] = struct{}{}
		}
	}
	return set
}

func (e ExemptionSet) Contains(employeeNumber string) bool {
	_, ok := e[employeeNumber]
	return ok
}

func DefaultSettings(employeeNumber string, exempt ExemptionSet) Settings {
	return Settings{
		EmployeeNumber: employeeNumber,
		HasAdminFee:    !exempt.Contains(employeeNumber),
	}
}

// SettingsSnapshot resolves effective settings by employee number; stored
// rows win over the exemption-set default.
type SettingsSnapshot struct {
	stored map[string]Settings
	exempt ExemptionSet
}

func NewSettingsSnapshot(stored []Settings, exempt ExemptionSet) SettingsSnapshot {
	byNumber := make(map[string]Settings, len(stored))
	for _, settings := range stored {
		byNumber[settings.EmployeeNumber] = settings
	}
	return SettingsSnapshot{stored: byNumber, exempt: exempt}
}

func (s SettingsSnapshot) For(employeeNumber string) Settings {
	if settings, ok := s.stored[employeeNumber]; ok {
		return settings
	}
	return DefaultSettings(employeeNumber, s.exempt)
}

// FixedRateApplies reports whether gross pay ignores the category rate table.
func (s Settings) FixedRateApplies() bool {
	return s.HasFixedRate && s.FixedRate > 0
}
