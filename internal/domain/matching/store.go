package matching

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ListMappings(ctx context.Context) ([]Mapping, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT schedule_name, employee_number, confirmed_at, date_processed, is_manual
    FROM match_mappings
    ORDER BY schedule_name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		var mapping Mapping
		if err := rows.Scan(&mapping.ScheduleName, &mapping.EmployeeNumber, &mapping.ConfirmedAt, &mapping.DateProcessed, &mapping.IsManual); err != nil {
			return nil, err
		}
		out = append(out, mapping)
	}
	return out, rows.Err()
}

func (s *Store) GetMapping(ctx context.Context, key string) (Mapping, error) {
	var mapping Mapping
	err := s.DB.QueryRow(ctx, `
    SELECT schedule_name, employee_number, confirmed_at, date_processed, is_manual
    FROM match_mappings
    WHERE schedule_name = $1
  `, key).Scan(&mapping.ScheduleName, &mapping.EmployeeNumber, &mapping.ConfirmedAt, &mapping.DateProcessed, &mapping.IsManual)
	if errors.Is(err, pgx.ErrNoRows) {
		return Mapping{}, ErrMappingNotFound
	}
	return mapping, err
}

func (s *Store) UpsertMapping(ctx context.Context, mapping Mapping) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO match_mappings (schedule_name, employee_number, confirmed_at, date_processed, is_manual)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (schedule_name)
    DO UPDATE SET employee_number = EXCLUDED.employee_number,
                  confirmed_at = EXCLUDED.confirmed_at,
                  date_processed = EXCLUDED.date_processed,
                  is_manual = EXCLUDED.is_manual
  `, mapping.ScheduleName, mapping.EmployeeNumber, mapping.ConfirmedAt, mapping.DateProcessed, mapping.IsManual)
	return err
}

func (s *Store) DeleteMapping(ctx context.Context, key string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM match_mappings WHERE schedule_name = $1", key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMappingNotFound
	}
	return nil
}

// DeleteOrphanMappings removes mappings whose referee left the registry.
func (s *Store) DeleteOrphanMappings(ctx context.Context) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM match_mappings m
    WHERE NOT EXISTS (SELECT 1 FROM referees r WHERE r.employee_number = m.employee_number)
  `)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
