package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, "integrityos/sensors/A", Topic(" a"))

	id, ok := PipelineFromTopic("integrityos/sensors/b")
	assert.True(t, ok)
	assert.Equal(t, "B", id)

	for _, topic := range []string{"integrityos/sensors/", "energy/readings", "integrityos/sensors/a/b"} {
		_, ok := PipelineFromTopic(topic)
		assert.False(t, ok, topic)
	}
}

func TestEncodeDecode(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	in := domain.SensorReading{PipelineID: "A", DeviceID: "ESP32-01", Temperature: 42.1, Pressure: 876, ThicknessLoss: 1.74, Timestamp: ts}
	payload, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(Topic("A"), payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeTopicWins(t *testing.T) {
	r, err := Decode("integrityos/sensors/c", []byte(`{"temperature":40,"pressure":900,"thickness_loss_mm":1.5}`))
	require.NoError(t, err)
	assert.Equal(t, "C", r.PipelineID)

	r, err = Decode("integrityos/sensors/D", []byte(`{"pipeline_id":"A","temperature":40}`))
	require.NoError(t, err)
	assert.Equal(t, "D", r.PipelineID)

	r, err = Decode("other/topic", []byte(`{"pipeline_id":"b"}`))
	require.NoError(t, err)
	assert.Equal(t, "B", r.PipelineID)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(Topic("A"), []byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Decode("other/topic", []byte(`{"temperature":40}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
