package referees

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ListReferees(ctx context.Context) ([]Referee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_number, full_name, created_at, updated_at
    FROM referees
    ORDER BY id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Referee
	for rows.Next() {
		var referee Referee
		if err := rows.Scan(&referee.EmployeeNumber, &referee.FullName, &referee.CreatedAt, &referee.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, referee)
	}
	return out, rows.Err()
}

func (s *Store) GetReferee(ctx context.Context, employeeNumber string) (Referee, error) {
	var referee Referee
	err := s.DB.QueryRow(ctx, `
    SELECT employee_number, full_name, created_at, updated_at
    FROM referees
    WHERE employee_number = $1
  `, employeeNumber).Scan(&referee.EmployeeNumber, &referee.FullName, &referee.CreatedAt, &referee.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Referee{}, ErrNotFound
	}
	return referee, err
}

func (s *Store) CreateReferee(ctx context.Context, referee Referee) (Referee, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO referees (employee_number, full_name)
    VALUES ($1,$2)
    RETURNING created_at, updated_at
  `, referee.EmployeeNumber, referee.FullName).Scan(&referee.CreatedAt, &referee.UpdatedAt)
	if err != nil {
		return Referee{}, translate(err)
	}
	return referee, nil
}

// UpdateReferee rewrites the record and carries confirmed mappings over to a
// new employee number in the same transaction. Settings follow through the
// foreign key.
func (s *Store) UpdateReferee(ctx context.Context, employeeNumber string, referee Referee) (Referee, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Referee{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
    UPDATE referees
    SET employee_number = $1, full_name = $2, updated_at = now()
    WHERE employee_number = $3
    RETURNING created_at, updated_at
  `, referee.EmployeeNumber, referee.FullName, employeeNumber).Scan(&referee.CreatedAt, &referee.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Referee{}, ErrNotFound
	}
	if err != nil {
		return Referee{}, translate(err)
	}

	if referee.EmployeeNumber != employeeNumber {
		if _, err := tx.Exec(ctx, "UPDATE match_mappings SET employee_number = $1 WHERE employee_number = $2", referee.EmployeeNumber, employeeNumber); err != nil {
			return Referee{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Referee{}, err
	}
	return referee, nil
}

func (s *Store) DeleteReferee(ctx context.Context, employeeNumber string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM referees WHERE employee_number = $1", employeeNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListSettings(ctx context.Context) ([]Settings, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_number, has_fixed_rate, fixed_rate, has_admin_fee, updated_at
    FROM referee_settings
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Settings
	for rows.Next() {
		var settings Settings
		if err := rows.Scan(&settings.EmployeeNumber, &settings.HasFixedRate, &settings.FixedRate, &settings.HasAdminFee, &settings.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, settings)
	}
	return out, rows.Err()
}

func (s *Store) GetSettings(ctx context.Context, employeeNumber string) (Settings, bool, error) {
	var settings Settings
	err := s.DB.QueryRow(ctx, `
    SELECT employee_number, has_fixed_rate, fixed_rate, has_admin_fee, updated_at
    FROM referee_settings
    WHERE employee_number = $1
  `, employeeNumber).Scan(&settings.EmployeeNumber, &settings.HasFixedRate, &settings.FixedRate, &settings.HasAdminFee, &settings.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, err
	}
	return settings, true, nil
}

func (s *Store) UpsertSettings(ctx context.Context, settings Settings) (Settings, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO referee_settings (employee_number, has_fixed_rate, fixed_rate, has_admin_fee)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (employee_number)
    DO UPDATE SET has_fixed_rate = EXCLUDED.has_fixed_rate,
                  fixed_rate = EXCLUDED.fixed_rate,
                  has_admin_fee = EXCLUDED.has_admin_fee,
                  updated_at = now()
    RETURNING updated_at
  `, settings.EmployeeNumber, settings.HasFixedRate, settings.FixedRate, settings.HasAdminFee).Scan(&settings.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return Settings{}, ErrNotFound
		}
		return Settings{}, err
	}
	return settings, nil
}

func (s *Store) DeleteSettings(ctx context.Context, employeeNumber string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM referee_settings WHERE employee_number = $1", employeeNumber)
	return err
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	return err
}
