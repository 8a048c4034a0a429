package cloud

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

// ReadingFromStreamImage decodes a readings table stream image.
func ReadingFromStreamImage(image map[string]events.DynamoDBAttributeValue) (domain.SensorReading, error) {
	var it readingItem
	v, ok := image["pipelineId"]
	if !ok || v.DataType() != events.DataTypeString {
		return domain.SensorReading{}, fmt.Errorf("%w: stream image has no pipelineId", domain.ErrInvalidInput)
	}
	it.PipelineID = v.String()
	if v, ok := image["deviceId"]; ok && v.DataType() == events.DataTypeString {
		it.DeviceID = v.String()
	}

	var err error
	if it.Timestamp, err = streamInt(image, "timestamp"); err != nil {
		return domain.SensorReading{}, err
	}
	if it.Temperature, err = streamFloat(image, "temperature"); err != nil {
		return domain.SensorReading{}, err
	}
	if it.Pressure, err = streamFloat(image, "pressure"); err != nil {
		return domain.SensorReading{}, err
	}
	if it.ThicknessLoss, err = streamFloat(image, "thicknessLoss"); err != nil {
		return domain.SensorReading{}, err
	}
	return it.reading(), nil
}

func streamFloat(image map[string]events.DynamoDBAttributeValue, key string) (float64, error) {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeNumber {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v.Number(), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}
	return f, nil
}

func streamInt(image map[string]events.DynamoDBAttributeValue, key string) (int64, error) {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeNumber {
		return time.Now().UnixMilli(), nil
	}
	n, err := strconv.ParseInt(v.Number(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}
	return n, nil
}
