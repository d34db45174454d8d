package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguimbarda/riskstream/ingest"
	"github.com/lguimbarda/riskstream/ingest/record"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveBatchAndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.SaveBatch(ctx, "run-1", []record.Patient{
		{"patient_id": float64(1), "name": "Ada", "risk_level": "low", "risk_score": float64(12)},
		{"patient_id": float64(2), "name": "Grace", "risk_level": "high", "risk_score": float64(88), "heat_wave_risk": true},
	})
	require.NoError(t, err)

	err = s.SaveBatch(ctx, "run-1", []record.Patient{
		{"patient_id": float64(3), "name": "Joan", "risk_level": "low", "risk_score": float64(4)},
	})
	require.NoError(t, err)

	n, err := s.PatientCount(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Rows are scoped by run.
	n, err = s.PatientCount(ctx, "run-2")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDistribution(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.SaveBatch(ctx, "run-1", []record.Patient{
		{"patient_id": float64(1), "risk_level": "low"},
		{"patient_id": float64(2), "risk_level": "low"},
		{"patient_id": float64(3), "risk_level": "medium"},
		{"patient_id": float64(4), "risk_level": "high"},
	})
	require.NoError(t, err)

	dist, err := s.Distribution(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, record.Distribution{Low: 2, Medium: 1, High: 1}, dist)
}

func TestSummaryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, found, err := s.Summary(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, found)

	want := record.Summary{
		TotalProcessed:   7,
		RiskDistribution: record.Distribution{Low: 3, Medium: 2, High: 2},
	}
	require.NoError(t, s.SaveSummary(ctx, "run-1", want))

	got, found, err := s.Summary(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	// Re-saving replaces rather than duplicating.
	want.TotalProcessed = 8
	require.NoError(t, s.SaveSummary(ctx, "run-1", want))
	got, _, err = s.Summary(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 8, got.TotalProcessed)
}

func TestRecorderPersistsAndForwards(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := NewRecorder(ctx, s)
	assert.NotEmpty(t, rec.RunID())

	var forwardedBatches int
	var forwardedSummary *record.Summary
	handlers := rec.Handlers(ingest.Handlers{
		OnBatch: func(items []record.Patient, processed, total int) {
			forwardedBatches++
		},
		OnSummary: func(sum record.Summary) {
			forwardedSummary = &sum
		},
	})

	handlers.OnBatch([]record.Patient{
		{"patient_id": float64(1), "risk_level": "medium"},
	}, 1, 2)
	handlers.OnBatch([]record.Patient{
		{"patient_id": float64(2), "risk_level": "high"},
	}, 2, 2)
	handlers.OnSummary(record.Summary{
		TotalProcessed:   2,
		RiskDistribution: record.Distribution{Medium: 1, High: 1},
	})

	assert.Equal(t, 2, forwardedBatches)
	require.NotNil(t, forwardedSummary)

	n, err := s.PatientCount(ctx, rec.RunID())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored, found, err := s.Summary(ctx, rec.RunID())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, *forwardedSummary, stored)
}

func TestRecorderDistinctRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := NewRecorder(ctx, s)
	b := NewRecorder(ctx, s)
	assert.NotEqual(t, a.RunID(), b.RunID())

	a.Handlers(ingest.Handlers{}).OnBatch([]record.Patient{{"patient_id": float64(1)}}, 1, 1)

	n, err := s.PatientCount(ctx, b.RunID())
	require.NoError(t, err)
	assert.Zero(t, n, "runs do not see each other's rows")
}
