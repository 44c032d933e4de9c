package referees

import (
	"context"
	"log/slog"
	"strings"
)

type Service struct {
	store  StoreAPI
	exempt ExemptionSet
}

func NewService(store StoreAPI, exempt ExemptionSet) *Service {
	if exempt == nil {
		exempt = ExemptionSet{}
	}
	return &Service{store: store, exempt: exempt}
}

func (s *Service) ListReferees(ctx context.Context) ([]Referee, error) {
	return s.store.ListReferees(ctx)
}

func (s *Service) GetReferee(ctx context.Context, employeeNumber string) (Referee, error) {
	return s.store.GetReferee(ctx, strings.TrimSpace(employeeNumber))
}

func (s *Service) CreateReferee(ctx context.Context, referee Referee) (Referee, error) {
	referee, err := clean(referee)
	if err != nil {
		return Referee{}, err
	}
	created, err := s.store.CreateReferee(ctx, referee)
	if err != nil {
		return Referee{}, err
	}
	slog.Info("referee created", "employeeNumber", created.EmployeeNumber)
	return created, nil
}

// UpdateReferee fails with ErrDuplicateKey when the new employee number
// belongs to another referee and with ErrNotFound when the old one is unknown.
func (s *Service) UpdateReferee(ctx context.Context, employeeNumber string, referee Referee) (Referee, error) {
	referee, err := clean(referee)
	if err != nil {
		return Referee{}, err
	}
	updated, err := s.store.UpdateReferee(ctx, strings.TrimSpace(employeeNumber), referee)
	if err != nil {
		return Referee{}, err
	}
	slog.Info("referee updated", "employeeNumber", employeeNumber, "newEmployeeNumber", updated.EmployeeNumber)
	return updated, nil
}

func (s *Service) DeleteReferee(ctx context.Context, employeeNumber string) error {
	if err := s.store.DeleteReferee(ctx, strings.TrimSpace(employeeNumber)); err != nil {
		return err
	}
	slog.Info("referee deleted", "employeeNumber", employeeNumber)
	return nil
}

// Settings returns the stored settings or, when none exist, the default
// derived from the exemption set.
func (s *Service) Settings(ctx context.Context, employeeNumber string) (Settings, error) {
	employeeNumber = strings.TrimSpace(employeeNumber)
	if _, err := s.store.GetReferee(ctx, employeeNumber); err != nil {
		return Settings{}, err
	}
	settings, ok, err := s.store.GetSettings(ctx, employeeNumber)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		return DefaultSettings(employeeNumber, s.exempt), nil
	}
	return settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, settings Settings) (Settings, error) {
	settings.EmployeeNumber = strings.TrimSpace(settings.EmployeeNumber)
	if settings.FixedRate < 0 {
		return Settings{}, ErrInvalidRate
	}
	if _, err := s.store.GetReferee(ctx, settings.EmployeeNumber); err != nil {
		return Settings{}, err
	}
	return s.store.UpsertSettings(ctx, settings)
}

// ResetSettings drops stored overrides so the default applies again.
func (s *Service) ResetSettings(ctx context.Context, employeeNumber string) (Settings, error) {
	employeeNumber = strings.TrimSpace(employeeNumber)
	if _, err := s.store.GetReferee(ctx, employeeNumber); err != nil {
		return Settings{}, err
	}
	if err := s.store.DeleteSettings(ctx, employeeNumber); err != nil {
		return Settings{}, err
	}
	return DefaultSettings(employeeNumber, s.exempt), nil
}

func (s *Service) SettingsSnapshot(ctx context.Context) (SettingsSnapshot, error) {
	stored, err := s.store.ListSettings(ctx)
	if err != nil {
		return SettingsSnapshot{}, err
	}
	return NewSettingsSnapshot(stored, s.exempt), nil
}

func clean(referee Referee) (Referee, error) {
	referee.EmployeeNumber = strings.TrimSpace(referee.EmployeeNumber)
	referee.FullName = strings.Join(strings.Fields(referee.FullName), " ")
	if referee.EmployeeNumber == "" || referee.FullName == "" {
		return Referee{}, ErrInvalidReferee
	}
	return referee, nil
}
