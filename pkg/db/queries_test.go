package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Indemos/Terminal-sub003/internal/events"
	"github.com/Indemos/Terminal-sub003/internal/instrument"
	"github.com/Indemos/Terminal-sub003/internal/order"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestSaveOrderRoundTrip(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	o := order.New()
	o.Descriptor = "combo-1"
	o.Side = order.SideLong
	o.Type = order.TypeLimit
	o.TimeSpan = order.SpanGtc
	o.Price = order.Prices(101.5)
	o.Amount = order.Amounts(2)
	o.Operation.Status = order.StatusPlaced
	o.Operation.Instrument = instrument.New("SPY")

	require.NoError(t, j.SaveOrder(ctx, o))

	rows, err := j.ListOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, o.ID, rows[0].ID)
	assert.Equal(t, "SPY", rows[0].Symbol)
	assert.Equal(t, "LIMIT", rows[0].Type)
	require.True(t, rows[0].Price.Valid)
	assert.Equal(t, 101.5, rows[0].Price.Float64)

	// A second save updates the status in place.
	o.Operation.Status = order.StatusFilled
	require.NoError(t, j.SaveOrder(ctx, o))
	rows, err = j.ListOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "FILLED", rows[0].Status)
}

func TestSaveFillReportsDuplicates(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	ev := events.OrderEvent{
		ID:         "fill-1",
		Descriptor: "combo-1",
		Status:     order.StatusTransaction,
		Balance:    12.5,
		Time:       time.Now(),
	}

	fresh, err := j.SaveFill(ctx, ev)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = j.SaveFill(ctx, ev)
	require.NoError(t, err)
	assert.False(t, fresh, "a redelivered fill must be reported as duplicate")

	fills, err := j.ListFills(ctx, 10)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, 12.5, fills[0].Balance)
}

func TestListFillsOrderedOldestFirst(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	base := time.Now()

	for i, delta := range []float64{10, -3, 7} {
		_, err := j.SaveFill(ctx, events.OrderEvent{
			ID:      string(rune('a' + i)),
			Balance: delta,
			Time:    base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	fills, err := j.ListFills(ctx, 10)
	require.NoError(t, err)
	require.Len(t, fills, 3)
	assert.Equal(t, 10.0, fills[0].Balance)
	assert.Equal(t, 7.0, fills[2].Balance)
}
