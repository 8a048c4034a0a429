package cloud

import (
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

func TestReadingFromStreamImage(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	r, err := ReadingFromStreamImage(map[string]events.DynamoDBAttributeValue{
		"pipelineId":    events.NewStringAttribute("B"),
		"deviceId":      events.NewStringAttribute("ESP32-03"),
		"timestamp":     events.NewNumberAttribute("1740817800000"),
		"temperature":   events.NewNumberAttribute("46.5"),
		"pressure":      events.NewNumberAttribute("910"),
		"thicknessLoss": events.NewNumberAttribute("1.62"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SensorReading{
		PipelineID:    "B",
		DeviceID:      "ESP32-03",
		Temperature:   46.5,
		Pressure:      910,
		ThicknessLoss: 1.62,
		Timestamp:     at,
	}, r)

	_, err = ReadingFromStreamImage(map[string]events.DynamoDBAttributeValue{"temperature": events.NewNumberAttribute("40")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ReadingFromStreamImage(map[string]events.DynamoDBAttributeValue{
		"pipelineId":  events.NewStringAttribute("A"),
		"temperature": events.NewNumberAttribute("hot"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
