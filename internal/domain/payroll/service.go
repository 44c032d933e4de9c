package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"refpay/internal/domain/matching"
	"refpay/internal/domain/referees"
)

type RefereeSource interface {
	ListReferees(ctx context.Context) ([]referees.Referee, error)
	GetReferee(ctx context.Context, employeeNumber string) (referees.Referee, error)
	SettingsSnapshot(ctx context.Context) (referees.SettingsSnapshot, error)
}

type NameResolver interface {
	Resolve(ctx context.Context, scheduleNames []string) ([]matching.Result, error)
}

// Archiver keeps a copy of exported reports and returns where it landed.
type Archiver interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type Service struct {
	store    StoreAPI
	referees RefereeSource
	resolver NameResolver
	defaults GlobalSettings
	archive  Archiver
	now      func() time.Time
}

func NewService(store StoreAPI, refs RefereeSource, resolver NameResolver, defaults GlobalSettings) *Service {
	return &Service{store: store, referees: refs, resolver: resolver, defaults: defaults, now: time.Now}
}

// WithArchive makes every export also land in the archive.
func (s *Service) WithArchive(archive Archiver) *Service {
	s.archive = archive
	return s
}

// BatchRequest describes a batch to price. Entries are raw schedule rows
// resolved through the matcher; Tallies are already attributed to referees.
// Both may be given and are merged per referee.
type BatchRequest struct {
	Name        string          `json:"name"`
	DateRange   DateRange       `json:"dateRange"`
	Entries     []ScheduleEntry `json:"entries"`
	Tallies     []Tally         `json:"tallies"`
	Adjustments []Adjustment    `json:"adjustments"`
}

type snapshot struct {
	tallies  []Tally
	settings referees.SettingsSnapshot
	rates    RateTable
	global   GlobalSettings
}

// Preview prices the request against the current ledger without writing anything.
func (s *Service) Preview(ctx context.Context, req BatchRequest) (Batch, error) {
	snap, err := s.prepare(ctx, req)
	if err != nil {
		return Batch{}, err
	}
	ledger, err := s.store.Ledger(ctx, "")
	if err != nil {
		return Batch{}, fmt.Errorf("load ledger: %w", err)
	}
	return s.build(req, snap, ledger, ""), nil
}

// Save prices the request again against the ledger read inside the save
// transaction and persists the batch with its referee records.
func (s *Service) Save(ctx context.Context, req BatchRequest) (Batch, error) {
	snap, err := s.prepare(ctx, req)
	if err != nil {
		return Batch{}, err
	}
	batch, err := s.store.SaveBatch(ctx, func(ledger Ledger) (Batch, error) {
		return s.build(req, snap, ledger, uuid.NewString()), nil
	})
	if err != nil {
		return Batch{}, fmt.Errorf("save batch: %w", err)
	}
	slog.Info("payroll batch saved", "batchID", batch.ID, "referees", batch.Totals.Referees, "netPay", batch.Totals.NetPay)
	return batch, nil
}

func (s *Service) ListBatches(ctx context.Context, limit, offset int) ([]BatchSummary, int, error) {
	total, err := s.store.CountBatches(ctx)
	if err != nil {
		return nil, 0, err
	}
	batches, err := s.store.ListBatches(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

func (s *Service) GetBatch(ctx context.Context, id string) (Batch, error) {
	if !validID(id) {
		return Batch{}, ErrBatchNotFound
	}
	return s.store.GetBatch(ctx, id)
}

func (s *Service) RenameBatch(ctx context.Context, id, name string) (BatchSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return BatchSummary{}, ErrInvalidBatchName
	}
	if !validID(id) {
		return BatchSummary{}, ErrBatchNotFound
	}
	return s.store.RenameBatch(ctx, id, name)
}

func (s *Service) DeleteBatch(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrBatchNotFound
	}
	if err := s.store.DeleteBatch(ctx, id); err != nil {
		return err
	}
	slog.Info("payroll batch deleted", "batchID", id)
	return nil
}

// Globals returns stored global settings, or the configured defaults when
// none were saved yet.
func (s *Service) Globals(ctx context.Context) (GlobalSettings, error) {
	settings, ok, err := s.store.GetGlobals(ctx)
	if err != nil {
		return GlobalSettings{}, err
	}
	if !ok {
		return s.defaults, nil
	}
	return settings, nil
}

func (s *Service) UpdateGlobals(ctx context.Context, settings GlobalSettings) (GlobalSettings, error) {
	if err := ValidateGlobals(settings); err != nil {
		return GlobalSettings{}, err
	}
	return s.store.UpsertGlobals(ctx, settings)
}

func (s *Service) ListRates(ctx context.Context) ([]CategoryRate, error) {
	return s.store.ListRates(ctx)
}

func (s *Service) UpsertRate(ctx context.Context, rate CategoryRate) (CategoryRate, error) {
	rate.Category = strings.Join(strings.Fields(rate.Category), " ")
	if rate.Category == "" || rate.Rate < 0 {
		return CategoryRate{}, ErrInvalidRate
	}
	return s.store.UpsertRate(ctx, rate)
}

func (s *Service) DeleteRate(ctx context.Context, category string) error {
	return s.store.DeleteRate(ctx, category)
}

// Earnings reports how much of the lifetime exemption a referee has used.
func (s *Service) Earnings(ctx context.Context, employeeNumber string) (EarningsStatus, error) {
	employeeNumber = strings.TrimSpace(employeeNumber)
	if _, err := s.referees.GetReferee(ctx, employeeNumber); err != nil {
		return EarningsStatus{}, err
	}
	total, batches, err := s.store.Earnings(ctx, employeeNumber)
	if err != nil {
		return EarningsStatus{}, err
	}
	remaining := maxZero(amount(LifetimeTaxExemption).Sub(amount(total)))
	return EarningsStatus{
		EmployeeNumber:     employeeNumber,
		LifetimeEarnings:   roundCents(total),
		RemainingExemption: cents(remaining),
		Batches:            batches,
	}, nil
}

// Export renders a saved batch. When an archive is configured the report is
// stored there as well and Location says where.
func (s *Service) Export(ctx context.Context, id, format string) (Report, error) {
	batch, err := s.GetBatch(ctx, id)
	if err != nil {
		return Report{}, err
	}
	report, err := Render(batch, format)
	if err != nil {
		return Report{}, err
	}
	if s.archive != nil {
		location, err := s.archive.Save(ctx, "reports/"+report.FileName, report.ContentType, report.Data)
		if err != nil {
			slog.Warn("report archive failed", "batchID", batch.ID, "err", err)
		} else {
			report.Location = location
		}
	}
	return report, nil
}

func ValidateGlobals(settings GlobalSettings) error {
	if settings.HaciendaTaxRate < 0 || settings.HaciendaTaxRate > 1 {
		return ErrInvalidSettings
	}
	if settings.DepositFee < 0 || settings.AdminFeePerGame < 0 {
		return ErrInvalidSettings
	}
	return nil
}

func (s *Service) prepare(ctx context.Context, req BatchRequest) (snapshot, error) {
	if !req.DateRange.Start.IsZero() && !req.DateRange.End.IsZero() && req.DateRange.End.Before(req.DateRange.Start) {
		return snapshot{}, ErrInvalidDateRange
	}
	for _, adjustment := range req.Adjustments {
		if adjustment.ExtraPay < 0 || adjustment.Fines < 0 {
			return snapshot{}, ErrInvalidAdjustment
		}
	}
	for _, entry := range req.Entries {
		if entry.Games < 0 {
			return snapshot{}, fmt.Errorf("%w: %s", ErrInvalidTally, entry.ScheduleName)
		}
	}
	for _, tally := range req.Tallies {
		for _, count := range tally.Categories {
			if count.Games < 0 {
				return snapshot{}, fmt.Errorf("%w: %s", ErrInvalidTally, tally.EmployeeNumber)
			}
		}
	}

	tallies := append([]Tally(nil), req.Tallies...)
	if len(req.Entries) > 0 {
		results, err := s.resolver.Resolve(ctx, ScheduleNames(req.Entries))
		if err != nil {
			return snapshot{}, fmt.Errorf("resolve schedule names: %w", err)
		}
		resolved, err := TalliesFromEntries(req.Entries, results)
		if err != nil {
			return snapshot{}, err
		}
		tallies = append(tallies, resolved...)
	}
	tallies = ApplyAdjustments(MergeTallies(tallies), req.Adjustments)
	if len(tallies) == 0 {
		return snapshot{}, ErrEmptyBatch
	}

	registry, err := s.referees.ListReferees(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("load registry: %w", err)
	}
	names := make(map[string]string, len(registry))
	for _, referee := range registry {
		names[referee.EmployeeNumber] = referee.FullName
	}
	for i := range tallies {
		if tallies[i].ExtraPay < 0 || tallies[i].Fines < 0 {
			return snapshot{}, ErrInvalidAdjustment
		}
		name, ok := names[tallies[i].EmployeeNumber]
		if !ok {
			return snapshot{}, fmt.Errorf("%w: %s", ErrUnknownReferee, tallies[i].EmployeeNumber)
		}
		tallies[i].FullName = name
	}

	settings, err := s.referees.SettingsSnapshot(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("load referee settings: %w", err)
	}
	rates, err := s.store.ListRates(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("load rates: %w", err)
	}
	global, err := s.Globals(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("load global settings: %w", err)
	}
	return snapshot{tallies: tallies, settings: settings, rates: NewRateTable(rates), global: global}, nil
}

func (s *Service) build(req BatchRequest, snap snapshot, ledger Ledger, id string) Batch {
	results, totals := CalculateBatch(snap.tallies, snap.settings, snap.rates, snap.global, ledger)
	now := s.now().UTC()

	dateRange := req.DateRange
	if dateRange.Start.IsZero() {
		dateRange.Start = now.Truncate(24 * time.Hour)
	}
	if dateRange.End.IsZero() {
		dateRange.End = dateRange.Start
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = fmt.Sprintf("Payroll %s to %s", dateRange.Start.Format("2006-01-02"), dateRange.End.Format("2006-01-02"))
	}
	return Batch{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		DateRange: dateRange,
		Settings:  snap.global,
		Results:   results,
		Totals:    totals,
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
