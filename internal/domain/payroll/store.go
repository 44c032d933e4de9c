package payroll

import (
	"context"
	"encoding/json"
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

func (s *Store) GetGlobals(ctx context.Context) (GlobalSettings, bool, error) {
	var settings GlobalSettings
	err := s.DB.QueryRow(ctx, `
    SELECT hacienda_tax_rate, deposit_fee, admin_fee_per_game, updated_at
    FROM payroll_settings
    WHERE id = 1
  `).Scan(&settings.HaciendaTaxRate, &settings.DepositFee, &settings.AdminFeePerGame, &settings.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return GlobalSettings{}, false, nil
	}
	if err != nil {
		return GlobalSettings{}, false, err
	}
	return settings, true, nil
}

func (s *Store) UpsertGlobals(ctx context.Context, settings GlobalSettings) (GlobalSettings, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_settings (id, hacienda_tax_rate, deposit_fee, admin_fee_per_game)
    VALUES (1,$1,$2,$3)
    ON CONFLICT (id) DO UPDATE
    SET hacienda_tax_rate = EXCLUDED.hacienda_tax_rate,
        deposit_fee = EXCLUDED.deposit_fee,
        admin_fee_per_game = EXCLUDED.admin_fee_per_game,
        updated_at = now()
    RETURNING updated_at
  `, settings.HaciendaTaxRate, settings.DepositFee, settings.AdminFeePerGame).Scan(&settings.UpdatedAt)
	if err != nil {
		return GlobalSettings{}, err
	}
	return settings, nil
}

func (s *Store) ListRates(ctx context.Context) ([]CategoryRate, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT category, rate, updated_at
    FROM category_rates
    ORDER BY category_key
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []CategoryRate
	for rows.Next() {
		var rate CategoryRate
		if err := rows.Scan(&rate.Category, &rate.Rate, &rate.UpdatedAt); err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

func (s *Store) UpsertRate(ctx context.Context, rate CategoryRate) (CategoryRate, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO category_rates (category_key, category, rate)
    VALUES ($1,$2,$3)
    ON CONFLICT (category_key) DO UPDATE
    SET category = EXCLUDED.category,
        rate = EXCLUDED.rate,
        updated_at = now()
    RETURNING updated_at
  `, CategoryKey(rate.Category), rate.Category, rate.Rate).Scan(&rate.UpdatedAt)
	if err != nil {
		return CategoryRate{}, err
	}
	return rate, nil
}

func (s *Store) DeleteRate(ctx context.Context, category string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM category_rates WHERE category_key = $1`, CategoryKey(category))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRateNotFound
	}
	return nil
}

// Ledger sums gross plus extra pay per referee over every saved batch except
// excludeBatchID.
func (s *Store) Ledger(ctx context.Context, excludeBatchID string) (Ledger, error) {
	return readLedger(ctx, s.DB, excludeBatchID)
}

// Earnings follows the referee across renumbering: records are matched on
// the registry row they were saved against, falling back to the stored
// number for referees that were never registered or have been deleted.
func (s *Store) Earnings(ctx context.Context, employeeNumber string) (float64, int, error) {
	var total float64
	var batches int
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(SUM(p.gross_pay + p.extra_pay), 0), COUNT(DISTINCT p.batch_id)
    FROM payroll_referee_records p
    LEFT JOIN referees r ON r.id = p.referee_id
    WHERE COALESCE(r.employee_number, p.employee_number) = $1
  `, employeeNumber).Scan(&total, &batches)
	return total, batches, err
}

// SaveBatch serializes saves with a table lock, reads the ledger inside the
// transaction and persists whatever build returns against it.
func (s *Store) SaveBatch(ctx context.Context, build func(Ledger) (Batch, error)) (Batch, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Batch{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `LOCK TABLE payroll_batches IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return Batch{}, err
	}
	ledger, err := readLedger(ctx, tx, "")
	if err != nil {
		return Batch{}, err
	}
	batch, err := build(ledger)
	if err != nil {
		return Batch{}, err
	}

	totalsJSON, err := json.Marshal(batch.Totals)
	if err != nil {
		return Batch{}, err
	}
	if err := tx.QueryRow(ctx, `
    INSERT INTO payroll_batches (id, name, start_date, end_date, hacienda_tax_rate, deposit_fee, admin_fee_per_game, totals)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING created_at
  `, batch.ID, batch.Name, batch.DateRange.Start, batch.DateRange.End,
		batch.Settings.HaciendaTaxRate, batch.Settings.DepositFee, batch.Settings.AdminFeePerGame, totalsJSON).Scan(&batch.CreatedAt); err != nil {
		return Batch{}, err
	}

	for position, result := range batch.Results {
		categoriesJSON, err := json.Marshal(result.Categories)
		if err != nil {
			return Batch{}, err
		}
		warningsJSON, err := json.Marshal(result.Warnings)
		if err != nil {
			return Batch{}, err
		}
		if _, err := tx.Exec(ctx, `
      INSERT INTO payroll_referee_records (
        batch_id, position, employee_number, full_name, games, has_fixed_rate, fixed_rate,
        gross_pay, extra_pay, total_earnings, admin_fee, fines, lifetime_before,
        remaining_exemption, taxable_income, hacienda_tax, deposit_fee, net_pay, categories, warnings,
        referee_id
      )
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
        (SELECT id FROM referees WHERE employee_number = $3))
    `, batch.ID, position, result.EmployeeNumber, result.FullName, result.Games, result.HasFixedRate, result.FixedRate,
			result.GrossPay, result.ExtraPay, result.TotalEarnings, result.AdminFee, result.Fines, result.LifetimeEarningsBefore,
			result.RemainingExemption, result.TaxableIncome, result.HaciendaTax, result.DepositFee, result.NetPay,
			categoriesJSON, warningsJSON); err != nil {
			return Batch{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

func (s *Store) CountBatches(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(1) FROM payroll_batches`).Scan(&count)
	return count, err
}

func (s *Store) ListBatches(ctx context.Context, limit, offset int) ([]BatchSummary, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, name, created_at, start_date, end_date, totals
    FROM payroll_batches
    ORDER BY created_at DESC, id
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		var summary BatchSummary
		var totalsJSON []byte
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.CreatedAt, &summary.DateRange.Start, &summary.DateRange.End, &totalsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(totalsJSON, &summary.Totals); err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (s *Store) GetBatch(ctx context.Context, id string) (Batch, error) {
	var batch Batch
	var totalsJSON []byte
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, name, created_at, start_date, end_date,
           hacienda_tax_rate, deposit_fee, admin_fee_per_game, totals
    FROM payroll_batches
    WHERE id = $1
  `, id).Scan(&batch.ID, &batch.Name, &batch.CreatedAt, &batch.DateRange.Start, &batch.DateRange.End,
		&batch.Settings.HaciendaTaxRate, &batch.Settings.DepositFee, &batch.Settings.AdminFeePerGame, &totalsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrBatchNotFound
	}
	if err != nil {
		return Batch{}, err
	}
	if err := json.Unmarshal(totalsJSON, &batch.Totals); err != nil {
		return Batch{}, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT employee_number, full_name, games, has_fixed_rate, fixed_rate,
           gross_pay, extra_pay, total_earnings, admin_fee, fines, lifetime_before,
           remaining_exemption, taxable_income, hacienda_tax, deposit_fee, net_pay, categories, warnings
    FROM payroll_referee_records
    WHERE batch_id = $1
    ORDER BY position
  `, id)
	if err != nil {
		return Batch{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var r Result
		var categoriesJSON, warningsJSON []byte
		if err := rows.Scan(&r.EmployeeNumber, &r.FullName, &r.Games, &r.HasFixedRate, &r.FixedRate,
			&r.GrossPay, &r.ExtraPay, &r.TotalEarnings, &r.AdminFee, &r.Fines, &r.LifetimeEarningsBefore,
			&r.RemainingExemption, &r.TaxableIncome, &r.HaciendaTax, &r.DepositFee, &r.NetPay,
			&categoriesJSON, &warningsJSON); err != nil {
			return Batch{}, err
		}
		if err := json.Unmarshal(categoriesJSON, &r.Categories); err != nil {
			r.Categories = []CategoryLine{}
		}
		if err := json.Unmarshal(warningsJSON, &r.Warnings); err != nil {
			r.Warnings = []string{}
		}
		batch.Results = append(batch.Results, r)
	}
	return batch, rows.Err()
}

func (s *Store) RenameBatch(ctx context.Context, id, name string) (BatchSummary, error) {
	var summary BatchSummary
	var totalsJSON []byte
	err := s.DB.QueryRow(ctx, `
    UPDATE payroll_batches
    SET name = $2
    WHERE id = $1
    RETURNING id::text, name, created_at, start_date, end_date, totals
  `, id, name).Scan(&summary.ID, &summary.Name, &summary.CreatedAt, &summary.DateRange.Start, &summary.DateRange.End, &totalsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return BatchSummary{}, ErrBatchNotFound
	}
	if err != nil {
		return BatchSummary{}, err
	}
	if err := json.Unmarshal(totalsJSON, &summary.Totals); err != nil {
		return BatchSummary{}, err
	}
	return summary, nil
}

// DeleteBatch removes the batch and, through the foreign key, its referee
// records, which also releases their earnings from the ledger.
func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM payroll_batches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// readLedger groups by the referee's current number so earnings saved under
// an older number still count against the same exemption.
func readLedger(ctx context.Context, q querier, excludeBatchID string) (Ledger, error) {
	rows, err := q.Query(ctx, `
    SELECT COALESCE(r.employee_number, p.employee_number), COALESCE(SUM(p.gross_pay + p.extra_pay), 0)
    FROM payroll_referee_records p
    LEFT JOIN referees r ON r.id = p.referee_id
    WHERE $1 = '' OR p.batch_id::text <> $1
    GROUP BY 1
  `, excludeBatchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ledger := Ledger{}
	for rows.Next() {
		var employeeNumber string
		var total float64
		if err := rows.Scan(&employeeNumber, &total); err != nil {
			return nil, err
		}
		ledger[employeeNumber] = total
	}
	return ledger, rows.Err()
}
