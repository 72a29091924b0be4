package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-ledger/internal/forecast"
	"github.com/i474232898/forecast-ledger/internal/store"
)

func TestMemoryStore_AppendAndState(t *testing.T) {
	s := store.NewMemoryStore(record(t, "2024-01-01T08:00", 0))
	ctx := context.Background()

	n, err := s.Append(ctx, []forecast.Record{record(t, "2024-01-01T10:00", 1), record(t, "2024-01-01T09:00", 2)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err := s.ReadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, 3, st.Keys.Len())
	require.NotNil(t, st.Last)
	assert.Equal(t, "2024-01-01T10:00", st.Last.String())

	recs := s.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, 2.0, recs[2].TemperatureC)
}

func TestMemoryStore_FailAppendAfter(t *testing.T) {
	s := store.NewMemoryStore()
	s.FailAppendAfter(1)

	n, err := s.Append(context.Background(), []forecast.Record{record(t, "2024-01-01T10:00", 1), record(t, "2024-01-01T11:00", 2)})

	var pe *forecast.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Zero(t, n)
	assert.Len(t, s.Records(), 1)
}
