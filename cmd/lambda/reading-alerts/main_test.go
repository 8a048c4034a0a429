package main

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
	"github.com/integrityos/pipeline-hub/internal/service"
)

type memStore struct {
	readings []domain.SensorReading
	alerts   []domain.Alert
}

func (m *memStore) ReadingsBetween(_ context.Context, id string, from, to time.Time) ([]domain.SensorReading, error) {
	var out []domain.SensorReading
	for _, r := range m.readings {
		if r.PipelineID == id && !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) PutAlert(_ context.Context, a domain.Alert) error {
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *memStore) ListAlerts(context.Context, domain.Status) ([]domain.Alert, error) { return m.alerts, nil }

func (m *memStore) AcknowledgeAlert(context.Context, string, time.Time) error { return nil }

type countingNotifier struct{ sent int }

func (c *countingNotifier) NotifyAlert(context.Context, domain.Alert) error {
	c.sent++
	return nil
}

func insert(r domain.SensorReading) events.DynamoDBEventRecord {
	num := func(v float64) events.DynamoDBAttributeValue {
		return events.NewNumberAttribute(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return events.DynamoDBEventRecord{
		EventName: string(events.DynamoDBOperationTypeInsert),
		Change: events.DynamoDBStreamRecord{NewImage: map[string]events.DynamoDBAttributeValue{
			"pipelineId":    events.NewStringAttribute(r.PipelineID),
			"timestamp":     events.NewNumberAttribute(strconv.FormatInt(r.Timestamp.UnixMilli(), 10)),
			"temperature":   num(r.Temperature),
			"pressure":      num(r.Pressure),
			"thicknessLoss": num(r.ThicknessLoss),
		}},
	}
}

func newHandler(st *memStore, n service.Notifier) *handler {
	th := integrity.DefaultThresholds()
	return &handler{readings: st, alerts: service.NewAlertService(st, n, th, time.Now), thresholds: th}
}

func TestHandleRaisesOnTransition(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	st := &memStore{}
	n := &countingNotifier{}
	h := newHandler(st, n)

	temps := []float64{40, 46, 47, 52}
	var batch events.DynamoDBEvent
	for i, temp := range temps {
		r := domain.SensorReading{PipelineID: "A", Temperature: temp, Pressure: 850, ThicknessLoss: 1, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		st.readings = append(st.readings, r)
		batch.Records = append(batch.Records, insert(r))
	}
	batch.Records = append(batch.Records, events.DynamoDBEventRecord{EventName: string(events.DynamoDBOperationTypeRemove)})

	require.NoError(t, h.Handle(context.Background(), batch))
	require.Len(t, st.alerts, 2)
	assert.Equal(t, domain.StatusWarning, st.alerts[0].Severity)
	assert.Equal(t, domain.StatusCritical, st.alerts[1].Severity)
	assert.Equal(t, "Pipeline A changed from warning to critical: temperature 52.0 °C above 50", st.alerts[1].Message)
	assert.Equal(t, 1, n.sent)
}

func TestHandleSkipsBadImages(t *testing.T) {
	st := &memStore{}
	h := newHandler(st, nil)
	err := h.Handle(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventName: string(events.DynamoDBOperationTypeInsert),
		Change:    events.DynamoDBStreamRecord{NewImage: map[string]events.DynamoDBAttributeValue{}},
	}}})
	require.NoError(t, err)
	assert.Empty(t, st.alerts)
}
