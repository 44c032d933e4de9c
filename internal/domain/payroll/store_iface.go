package payroll

import "context"

type StoreAPI interface {
	GetGlobals(ctx context.Context) (GlobalSettings, bool, error)
	UpsertGlobals(ctx context.Context, settings GlobalSettings) (GlobalSettings, error)
	ListRates(ctx context.Context) ([]CategoryRate, error)
	UpsertRate(ctx context.Context, rate CategoryRate) (CategoryRate, error)
	DeleteRate(ctx context.Context, category string) error
	Ledger(ctx context.Context, excludeBatchID string) (Ledger, error)
	Earnings(ctx context.Context, employeeNumber string) (float64, int, error)
	SaveBatch(ctx context.Context, build func(Ledger) (Batch, error)) (Batch, error)
	CountBatches(ctx context.Context) (int, error)
	ListBatches(ctx context.Context, limit, offset int) ([]BatchSummary, error)
	GetBatch(ctx context.Context, id string) (Batch, error)
	RenameBatch(ctx context.Context, id, name string) (BatchSummary, error)
	DeleteBatch(ctx context.Context, id string) error
}
