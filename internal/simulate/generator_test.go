package simulate

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGenerator() *Generator {
	return New(nil, WithRand(rand.New(rand.NewSource(7))), WithClock(func() time.Time { return fixedNow }))
}

func TestReadingStaysInBand(t *testing.T) {
	g := newTestGenerator()
	for i := 0; i < 200; i++ {
		a, err := g.Reading("a")
		require.NoError(t, err)
		assert.Equal(t, "A", a.PipelineID)
		assert.InDelta(t, 42, a.Temperature, 3.05)
		assert.InDelta(t, 875, a.Pressure, 25.5)
		assert.InDelta(t, 1.73, a.ThicknessLoss, 0.155)
		assert.Equal(t, fixedNow, a.Timestamp)

		b, err := g.Reading("B")
		require.NoError(t, err)
		assert.InDelta(t, 38, b.Temperature, 3.05)
		assert.InDelta(t, 920, b.Pressure, 25.5)
		assert.InDelta(t, 1.45, b.ThicknessLoss, 0.155)
	}
}

func TestReadingUnknownPipeline(t *testing.T) {
	g := newTestGenerator()
	_, err := g.Reading("Z")
	assert.ErrorIs(t, err, domain.ErrUnknownPipeline)

	_, err = g.History("Z", 24)
	assert.ErrorIs(t, err, domain.ErrUnknownPipeline)
}

func TestHistoryShape(t *testing.T) {
	g := newTestGenerator()
	h, err := g.History("b", 24)
	require.NoError(t, err)

	assert.Equal(t, "B", h.PipelineID)
	require.Len(t, h.Data, 24*6+1)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), h.Data[0].Timestamp)
	assert.Equal(t, fixedNow, h.Data[len(h.Data)-1].Timestamp)
	for i := 1; i < len(h.Data); i++ {
		assert.Equal(t, 10*time.Minute, h.Data[i].Timestamp.Sub(h.Data[i-1].Timestamp))
	}
	for _, p := range h.Data {
		assert.InDelta(t, 38, p.Temperature, 4.05)
		assert.InDelta(t, 920, p.Pressure, 28)
	}
}

func TestHistoryHoursClamped(t *testing.T) {
	g := newTestGenerator()

	h, err := g.History("A", 0)
	require.NoError(t, err)
	assert.Len(t, h.Data, DefaultHistoryHours*6+1)

	h, err = g.History("A", 10_000)
	require.NoError(t, err)
	assert.Len(t, h.Data, MaxHistoryHours*6+1)

	h, err = g.History("A", 1)
	require.NoError(t, err)
	assert.Len(t, h.Data, 7)
}

func TestNewNormalizesPipelines(t *testing.T) {
	g := New([]string{" a", "A", "c", ""})
	assert.Equal(t, []string{"A", "C"}, g.Pipelines())
	assert.True(t, g.Known("c"))
	assert.False(t, g.Known("B"))
}

func TestDeviceTelemetry(t *testing.T) {
	g := newTestGenerator()
	for i := 0; i < 50; i++ {
		temp, pressure := g.DeviceTelemetry()
		assert.GreaterOrEqual(t, temp, 65.0)
		assert.LessOrEqual(t, temp, 75.0)
		assert.GreaterOrEqual(t, pressure, 850.0)
		assert.LessOrEqual(t, pressure, 900.0)
	}
}
