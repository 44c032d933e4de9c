package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refpay/internal/platform/db/dbtest"
)

func TestServiceRecordListCount(t *testing.T) {
	service := New(dbtest.Open(t))
	ctx := context.Background()
	operator := dbtest.Unique("ops") + "@example.com"
	t.Cleanup(func() {
		_, _ = service.DB.Exec(context.Background(), "DELETE FROM audit_events WHERE operator = $1", operator)
	})

	require.NoError(t, service.Record(ctx, Entry{Operator: operator, Action: ActionBatchSave, EntityType: "payroll_batch", EntityID: "b1", Details: map[string]int{"referees": 3}}))
	require.NoError(t, service.Record(ctx, Entry{Operator: operator, Action: ActionBatchDelete, EntityType: "payroll_batch", EntityID: "b1", RequestID: "req-2", IP: "192.0.2.4"}))
	require.NoError(t, service.Record(ctx, Entry{Operator: operator, Action: ActionRefereeImport, EntityType: "referee"}))

	total, err := service.Count(ctx, Filter{Operator: operator})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	total, err = service.Count(ctx, Filter{Operator: operator, EntityType: "payroll_batch"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	events, err := service.List(ctx, Filter{Operator: operator}, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, ActionRefereeImport, events[0].Action)
	assert.Empty(t, events[0].Details)

	page, err := service.List(ctx, Filter{Operator: operator}, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ActionBatchDelete, page[0].Action)
	assert.Equal(t, "req-2", page[0].RequestID)
	assert.Equal(t, "192.0.2.4", page[0].IP)

	saves, err := service.List(ctx, Filter{Operator: operator, Action: ActionBatchSave}, 10, 0)
	require.NoError(t, err)
	require.Len(t, saves, 1)
	assert.JSONEq(t, `{"referees":3}`, string(saves[0].Details))
}
