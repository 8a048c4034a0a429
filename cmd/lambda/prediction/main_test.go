package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrityos/pipeline-hub/internal/integrity"
)

func TestHandler(t *testing.T) {
	res, err := Handler(context.Background(), integrity.PredictionInput{
		PipeSize: 24, InitialThickness: 12.7, MinThickness: 8, CorrosionImpact: 50, MaterialLoss: 50,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, 5.0, res.Prediction.ThicknessLoss)
	assert.Equal(t, integrity.RiskHigh, res.Prediction.RiskLevel)

	res, err = Handler(context.Background(), integrity.PredictionInput{InitialThickness: 0})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Error)
}
