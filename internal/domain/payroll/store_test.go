package payroll

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refpay/internal/domain/referees"
	"refpay/internal/platform/db/dbtest"
)

type storeFixture struct {
	store    *Store
	registry *referees.Store
	batches  []string
	numbers  []string
}

func newStoreFixture(t *testing.T) *storeFixture {
	pool := dbtest.Open(t)
	f := &storeFixture{store: NewStore(pool), registry: referees.NewStore(pool)}
	t.Cleanup(func() { f.cleanup(pool) })
	return f
}

func (f *storeFixture) cleanup(pool *pgxpool.Pool) {
	ctx := context.Background()
	for _, id := range f.batches {
		_, _ = pool.Exec(ctx, "DELETE FROM payroll_batches WHERE id = $1", id)
	}
	for _, number := range f.numbers {
		_, _ = pool.Exec(ctx, "DELETE FROM referees WHERE employee_number = $1", number)
	}
}

func (f *storeFixture) referee(t *testing.T, name string) string {
	number := dbtest.Unique("ref")
	_, err := f.registry.CreateReferee(context.Background(), referees.Referee{EmployeeNumber: number, FullName: name})
	require.NoError(t, err)
	f.numbers = append(f.numbers, number)
	return number
}

// save stores a one-referee batch paying gross and records the ledger total
// the build callback saw for that referee.
func (f *storeFixture) save(t *testing.T, number string, gross float64) (Batch, float64) {
	var before float64
	batch, err := f.store.SaveBatch(context.Background(), func(ledger Ledger) (Batch, error) {
		before = ledger.Before(number)
		return Batch{
			ID:        uuid.NewString(),
			Name:      "Week",
			DateRange: DateRange{Start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)},
			Settings:  GlobalSettings{HaciendaTaxRate: 0.1, DepositFee: 0.5, AdminFeePerGame: 1},
			Results: []Result{{
				EmployeeNumber:         number,
				FullName:               "Referee " + number,
				Games:                  3,
				GrossPay:               gross,
				TotalEarnings:          gross,
				LifetimeEarningsBefore: before,
				NetPay:                 gross,
			}},
			Totals: Totals{Referees: 1, Games: 3, GrossPay: gross},
		}, nil
	})
	require.NoError(t, err)
	f.batches = append(f.batches, batch.ID)
	return batch, before
}

func TestStoreSaveBatchReadsLedgerInsideTransaction(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	number := f.referee(t, "John Smith")

	first, before := f.save(t, number, 300)
	assert.Zero(t, before)
	_, before = f.save(t, number, 250)
	assert.InDelta(t, 300, before, 0.001)

	total, batches, err := f.store.Earnings(ctx, number)
	require.NoError(t, err)
	assert.InDelta(t, 550, total, 0.001)
	assert.Equal(t, 2, batches)

	ledger, err := f.store.Ledger(ctx, "")
	require.NoError(t, err)
	assert.InDelta(t, 550, ledger.Before(number), 0.001)

	ledger, err = f.store.Ledger(ctx, first.ID)
	require.NoError(t, err)
	assert.InDelta(t, 250, ledger.Before(number), 0.001)

	stored, err := f.store.GetBatch(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, stored.Results, 1)
	assert.Equal(t, number, stored.Results[0].EmployeeNumber)
	assert.InDelta(t, 300, stored.Results[0].GrossPay, 0.001)
}

func TestStoreConcurrentSavesSeeEachOther(t *testing.T) {
	f := newStoreFixture(t)
	number := f.referee(t, "Ana Lopez")

	var mu sync.Mutex
	var wg sync.WaitGroup
	var seen []float64
	var ids []string
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var before float64
			batch, err := f.store.SaveBatch(context.Background(), func(ledger Ledger) (Batch, error) {
				before = ledger.Before(number)
				return Batch{
					ID:        uuid.NewString(),
					Name:      "Concurrent",
					DateRange: DateRange{Start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
					Results:   []Result{{EmployeeNumber: number, FullName: "Ana Lopez", Games: 1, GrossPay: 400}},
				}, nil
			})
			assert.NoError(t, err)
			mu.Lock()
			seen = append(seen, before)
			ids = append(ids, batch.ID)
			mu.Unlock()
		}()
	}
	wg.Wait()
	f.batches = append(f.batches, ids...)

	assert.ElementsMatch(t, []float64{0, 400}, seen)
}

func TestStoreDeleteBatchReleasesLedger(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	number := f.referee(t, "Mary Jones")

	batch, _ := f.save(t, number, 450)
	require.NoError(t, f.store.DeleteBatch(ctx, batch.ID))

	total, batches, err := f.store.Earnings(ctx, number)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, batches)

	_, err = f.store.GetBatch(ctx, batch.ID)
	assert.ErrorIs(t, err, ErrBatchNotFound)
	assert.ErrorIs(t, f.store.DeleteBatch(ctx, batch.ID), ErrBatchNotFound)

	_, before := f.save(t, number, 100)
	assert.Zero(t, before)
}

func TestStoreLedgerFollowsRenumberedReferee(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	number := f.referee(t, "Peter Brown")

	batch, _ := f.save(t, number, 600)

	renumbered := dbtest.Unique("ref")
	f.numbers = append(f.numbers, renumbered)
	_, err := f.registry.UpdateReferee(ctx, number, referees.Referee{EmployeeNumber: renumbered, FullName: "Peter Brown"})
	require.NoError(t, err)

	total, batches, err := f.store.Earnings(ctx, renumbered)
	require.NoError(t, err)
	assert.InDelta(t, 600, total, 0.001)
	assert.Equal(t, 1, batches)

	total, _, err = f.store.Earnings(ctx, number)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, before := f.save(t, renumbered, 50)
	assert.InDelta(t, 600, before, 0.001)

	stored, err := f.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, number, stored.Results[0].EmployeeNumber)
}

func TestStoreUnregisteredRefereeKeepsStoredNumber(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	number := dbtest.Unique("walk-in")

	f.save(t, number, 120)

	total, batches, err := f.store.Earnings(ctx, number)
	require.NoError(t, err)
	assert.InDelta(t, 120, total, 0.001)
	assert.Equal(t, 1, batches)
}

func TestStoreRenameBatch(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	batch, _ := f.save(t, f.referee(t, "Luis Mora"), 80)

	summary, err := f.store.RenameBatch(ctx, batch.ID, "Week 23")
	require.NoError(t, err)
	assert.Equal(t, "Week 23", summary.Name)
	assert.Equal(t, 1, summary.Totals.Referees)

	_, err = f.store.RenameBatch(ctx, uuid.NewString(), "missing")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}
