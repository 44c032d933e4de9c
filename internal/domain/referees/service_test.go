package referees

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	referees []Referee
	settings map[string]Settings
}

func newMemStore() *memStore {
	return &memStore{settings: map[string]Settings{}}
}

func (m *memStore) index(employeeNumber string) int {
	for i, referee := range m.referees {
		if referee.EmployeeNumber == employeeNumber {
			return i
		}
	}
	return -1
}

func (m *memStore) ListReferees(context.Context) ([]Referee, error) {
	return append([]Referee(nil), m.referees...), nil
}

func (m *memStore) GetReferee(_ context.Context, employeeNumber string) (Referee, error) {
	i := m.index(employeeNumber)
	if i < 0 {
		return Referee{}, ErrNotFound
	}
	return m.referees[i], nil
}

func (m *memStore) CreateReferee(_ context.Context, referee Referee) (Referee, error) {
	if m.index(referee.EmployeeNumber) >= 0 {
		return Referee{}, ErrDuplicateKey
	}
	m.referees = append(m.referees, referee)
	return referee, nil
}

func (m *memStore) UpdateReferee(_ context.Context, employeeNumber string, referee Referee) (Referee, error) {
	i := m.index(employeeNumber)
	if i < 0 {
		return Referee{}, ErrNotFound
	}
	if j := m.index(referee.EmployeeNumber); j >= 0 && j != i {
		return Referee{}, ErrDuplicateKey
	}
	m.referees[i] = referee
	if settings, ok := m.settings[employeeNumber]; ok && employeeNumber != referee.EmployeeNumber {
		delete(m.settings, employeeNumber)
		settings.EmployeeNumber = referee.EmployeeNumber
		m.settings[referee.EmployeeNumber] = settings
	}
	return referee, nil
}

func (m *memStore) DeleteReferee(_ context.Context, employeeNumber string) error {
	i := m.index(employeeNumber)
	if i < 0 {
		return ErrNotFound
	}
	m.referees = append(m.referees[:i], m.referees[i+1:]...)
	delete(m.settings, employeeNumber)
	return nil
}

func (m *memStore) ListSettings(context.Context) ([]Settings, error) {
	out := make([]Settings, 0, len(m.settings))
	for _, settings := range m.settings {
		out = append(out, settings)
	}
	return out, nil
}

func (m *memStore) GetSettings(_ context.Context, employeeNumber string) (Settings, bool, error) {
	settings, ok := m.settings[employeeNumber]
	return settings, ok, nil
}

func (m *memStore) UpsertSettings(_ context.Context, settings Settings) (Settings, error) {
	m.settings[settings.EmployeeNumber] = settings
	return settings, nil
}

func (m *memStore) DeleteSettings(_ context.Context, employeeNumber string) error {
	delete(m.settings, employeeNumber)
	return nil
}

func TestCreateRefereeCleansInput(t *testing.T) {
	svc := NewService(newMemStore(), nil)

	created, err := svc.CreateReferee(context.Background(), Referee{EmployeeNumber: " 001 ", FullName: "  John   Smith "})
	require.NoError(t, err)
	assert.Equal(t, "001", created.EmployeeNumber)
	assert.Equal(t, "John Smith", created.FullName)
}

func TestCreateRefereeRejectsBlankFields(t *testing.T) {
	svc := NewService(newMemStore(), nil)

	_, err := svc.CreateReferee(context.Background(), Referee{EmployeeNumber: "001", FullName: "   "})
	assert.ErrorIs(t, err, ErrInvalidReferee)
	_, err = svc.CreateReferee(context.Background(), Referee{FullName: "Ana"})
	assert.ErrorIs(t, err, ErrInvalidReferee)
}

func TestDuplicateEmployeeNumber(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, nil)
	_, err := svc.CreateReferee(ctx, Referee{EmployeeNumber: "001", FullName: "John Smith"})
	require.NoError(t, err)
	_, err = svc.CreateReferee(ctx, Referee{EmployeeNumber: "002", FullName: "Ana Lopez"})
	require.NoError(t, err)

	_, err = svc.CreateReferee(ctx, Referee{EmployeeNumber: "001", FullName: "Other"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = svc.UpdateReferee(ctx, "002", Referee{EmployeeNumber: "001", FullName: "Ana Lopez"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	got, err := svc.GetReferee(ctx, "002")
	require.NoError(t, err)
	assert.Equal(t, "Ana Lopez", got.FullName, "failed update leaves the record untouched")
	assert.Len(t, store.referees, 2)
}

func TestUpdateAndDeleteMissingReferee(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore(), nil)

	_, err := svc.UpdateReferee(ctx, "404", Referee{EmployeeNumber: "404", FullName: "Nobody"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteReferee(ctx, "404"), ErrNotFound)
}

func TestRenumberCarriesSettings(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore(), nil)
	_, err := svc.CreateReferee(ctx, Referee{EmployeeNumber: "001", FullName: "John Smith"})
	require.NoError(t, err)
	_, err = svc.UpdateSettings(ctx, Settings{EmployeeNumber: "001", HasFixedRate: true, FixedRate: 12})
	require.NoError(t, err)

	_, err = svc.UpdateReferee(ctx, "001", Referee{EmployeeNumber: "100", FullName: "John Smith"})
	require.NoError(t, err)

	settings, err := svc.Settings(ctx, "100")
	require.NoError(t, err)
	assert.True(t, settings.FixedRateApplies())
	assert.Equal(t, 12.0, settings.FixedRate)
}

func TestSettingsDefaultFromExemptionSet(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore(), NewExemptionSet([]string{"002", " "}))
	for _, number := range []string{"001", "002"} {
		_, err := svc.CreateReferee(ctx, Referee{EmployeeNumber: number, FullName: "Ref " + number})
		require.NoError(t, err)
	}

	charged, err := svc.Settings(ctx, "001")
	require.NoError(t, err)
	assert.True(t, charged.HasAdminFee)

	exempt, err := svc.Settings(ctx, "002")
	require.NoError(t, err)
	assert.False(t, exempt.HasAdminFee)

	// an explicit setting beats the exemption list
	_, err = svc.UpdateSettings(ctx, Settings{EmployeeNumber: "002", HasAdminFee: true})
	require.NoError(t, err)
	snapshot, err := svc.SettingsSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.For("002").HasAdminFee)
	assert.True(t, snapshot.For("003").HasAdminFee)

	reset, err := svc.ResetSettings(ctx, "002")
	require.NoError(t, err)
	assert.False(t, reset.HasAdminFee)
}

func TestUpdateSettingsValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore(), nil)

	_, err := svc.UpdateSettings(ctx, Settings{EmployeeNumber: "001", FixedRate: -1})
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = svc.UpdateSettings(ctx, Settings{EmployeeNumber: "001", FixedRate: 5})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFixedRateApplies(t *testing.T) {
	assert.False(t, Settings{HasFixedRate: true, FixedRate: 0}.FixedRateApplies())
	assert.False(t, Settings{HasFixedRate: false, FixedRate: 10}.FixedRateApplies())
	assert.True(t, Settings{HasFixedRate: true, FixedRate: 10}.FixedRateApplies())
}
