package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TargetSentinel/internal/model"
)

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	content := `
signals:
  - company_id: acme-bio
    signal_type: clinical
    factor_category: clinical_pipeline
    raw_value: 85
    timestamp: 2025-03-01T00:00:00Z
    confidence: 0.9
    source_reliability: 0.95
targets:
  - company_id: acme-bio
    therapeutic_areas: [oncology]
    lead_stage: phase3
    enterprise_value: 2000000000
outcomes:
  acme-bio: true
evaluation_dates:
  - 2025-06-01T00:00:00Z
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := LoadDataset(path)
	require.NoError(t, err)

	require.Len(t, ds.Signals, 1)
	assert.Equal(t, model.SignalClinical, ds.Signals[0].Type)
	assert.Equal(t, model.FactorClinicalPipeline, ds.Signals[0].Factor)
	assert.Equal(t, 85.0, ds.Signals[0].RawValue)
	require.Len(t, ds.Targets, 1)
	assert.Equal(t, model.StagePhase3, ds.Targets[0].LeadStage)
	assert.True(t, ds.Outcomes["acme-bio"])
	require.Len(t, ds.EvaluationDates, 1)

	_, err = LoadDataset(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
