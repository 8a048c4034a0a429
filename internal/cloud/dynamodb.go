package cloud

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoDBClient stores alerts and archives sensor readings.
type DynamoDBClient struct {
	svc           dynamoAPI
	alertsTable   string
	readingsTable string
}

func NewDynamoDBClient(region, alertsTable, readingsTable string) (*DynamoDBClient, error) {
	cfg, err := loadConfig(region)
	if err != nil {
		return nil, err
	}
	return &DynamoDBClient{
		svc:           dynamodb.NewFromConfig(cfg),
		alertsTable:   alertsTable,
		readingsTable: readingsTable,
	}, nil
}

// readingItem is keyed by pipelineId (hash) and timestamp (range, unix millis).
type readingItem struct {
	PipelineID    string  `dynamodbav:"pipelineId"`
	Timestamp     int64   `dynamodbav:"timestamp"`
	DeviceID      string  `dynamodbav:"deviceId,omitempty"`
	Temperature   float64 `dynamodbav:"temperature"`
	Pressure      float64 `dynamodbav:"pressure"`
	ThicknessLoss float64 `dynamodbav:"thicknessLoss"`
}

func toReadingItem(r domain.SensorReading) readingItem {
	return readingItem{
		PipelineID:    r.PipelineID,
		Timestamp:     r.Timestamp.UnixMilli(),
		DeviceID:      r.DeviceID,
		Temperature:   r.Temperature,
		Pressure:      r.Pressure,
		ThicknessLoss: r.ThicknessLoss,
	}
}

func (it readingItem) reading() domain.SensorReading {
	return domain.SensorReading{
		PipelineID:    it.PipelineID,
		DeviceID:      it.DeviceID,
		Temperature:   it.Temperature,
		Pressure:      it.Pressure,
		ThicknessLoss: it.ThicknessLoss,
		Timestamp:     time.UnixMilli(it.Timestamp).UTC(),
	}
}

func (c *DynamoDBClient) PutReading(ctx context.Context, r domain.SensorReading) error {
	item, err := attributevalue.MarshalMap(toReadingItem(r))
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	_, err = c.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.readingsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put reading in DynamoDB: %w", err)
	}
	return nil
}

// BatchPutReadings writes readings in chunks of the DynamoDB batch limit.
func (c *DynamoDBClient) BatchPutReadings(ctx context.Context, readings []domain.SensorReading) error {
	const batchSize = 25

	for i := 0; i < len(readings); i += batchSize {
		end := min(i+batchSize, len(readings))
		reqs := make([]types.WriteRequest, 0, end-i)
		for _, r := range readings[i:end] {
			item, err := attributevalue.MarshalMap(toReadingItem(r))
			if err != nil {
				return fmt.Errorf("failed to marshal reading: %w", err)
			}
			reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}
		_, err := c.svc.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{c.readingsTable: reqs},
		})
		if err != nil {
			return fmt.Errorf("failed to batch write readings: %w", err)
		}
	}
	return nil
}

// ReadingsBetween returns a pipeline's archived readings in [from, to), oldest first.
func (c *DynamoDBClient) ReadingsBetween(ctx context.Context, pipelineID string, from, to time.Time) ([]domain.SensorReading, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.readingsTable),
		KeyConditionExpression: aws.String("pipelineId = :pid AND #ts BETWEEN :start AND :end"),
		ExpressionAttributeNames: map[string]string{
			"#ts": "timestamp",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid":   &types.AttributeValueMemberS{Value: pipelineID},
			":start": &types.AttributeValueMemberN{Value: strconv.FormatInt(from.UnixMilli(), 10)},
			":end":   &types.AttributeValueMemberN{Value: strconv.FormatInt(to.UnixMilli()-1, 10)},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var out []domain.SensorReading
	for {
		res, err := c.svc.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to query readings: %w", err)
		}
		var items []readingItem
		if err := attributevalue.UnmarshalListOfMaps(res.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal readings: %w", err)
		}
		for _, it := range items {
			out = append(out, it.reading())
		}
		if len(res.LastEvaluatedKey) == 0 {
			return out, nil
		}
		in.ExclusiveStartKey = res.LastEvaluatedKey
	}
}

type alertItem struct {
	AlertID        string  `dynamodbav:"alertId"`
	PipelineID     string  `dynamodbav:"pipelineId"`
	DeviceID       string  `dynamodbav:"deviceId,omitempty"`
	Severity       string  `dynamodbav:"severity"`
	Message        string  `dynamodbav:"message"`
	Temperature    float64 `dynamodbav:"temperature"`
	Pressure       float64 `dynamodbav:"pressure"`
	ThicknessLoss  float64 `dynamodbav:"thicknessLoss"`
	CreatedAt      int64   `dynamodbav:"createdAt"`
	Acknowledged   bool    `dynamodbav:"acknowledged"`
	AcknowledgedAt int64   `dynamodbav:"acknowledgedAt,omitempty"`
}

func toAlertItem(a domain.Alert) alertItem {
	it := alertItem{
		AlertID:       a.ID,
		PipelineID:    a.PipelineID,
		DeviceID:      a.DeviceID,
		Severity:      string(a.Severity),
		Message:       a.Message,
		Temperature:   a.Temperature,
		Pressure:      a.Pressure,
		ThicknessLoss: a.ThicknessLoss,
		CreatedAt:     a.CreatedAt.Unix(),
		Acknowledged:  a.Acknowledged,
	}
	if a.AcknowledgedAt != nil {
		it.AcknowledgedAt = a.AcknowledgedAt.Unix()
	}
	return it
}

func (it alertItem) alert() domain.Alert {
	a := domain.Alert{
		ID:            it.AlertID,
		PipelineID:    it.PipelineID,
		DeviceID:      it.DeviceID,
		Severity:      domain.Status(it.Severity),
		Message:       it.Message,
		Temperature:   it.Temperature,
		Pressure:      it.Pressure,
		ThicknessLoss: it.ThicknessLoss,
		CreatedAt:     time.Unix(it.CreatedAt, 0).UTC(),
		Acknowledged:  it.Acknowledged,
	}
	if it.AcknowledgedAt != 0 {
		at := time.Unix(it.AcknowledgedAt, 0).UTC()
		a.AcknowledgedAt = &at
	}
	return a
}

func (c *DynamoDBClient) PutAlert(ctx context.Context, a domain.Alert) error {
	item, err := attributevalue.MarshalMap(toAlertItem(a))
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	_, err = c.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.alertsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// ListAlerts scans the alerts table, optionally filtered by severity, newest first.
func (c *DynamoDBClient) ListAlerts(ctx context.Context, severity domain.Status) ([]domain.Alert, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(c.alertsTable)}
	if severity != "" {
		in.FilterExpression = aws.String("severity = :sev")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":sev": &types.AttributeValueMemberS{Value: string(severity)},
		}
	}

	var alerts []domain.Alert
	for {
		res, err := c.svc.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alerts: %w", err)
		}
		var items []alertItem
		if err := attributevalue.UnmarshalListOfMaps(res.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alerts: %w", err)
		}
		for _, it := range items {
			alerts = append(alerts, it.alert())
		}
		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = res.LastEvaluatedKey
	}
	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].CreatedAt.After(alerts[j].CreatedAt) })
	return alerts, nil
}

func (c *DynamoDBClient) AcknowledgeAlert(ctx context.Context, id string, at time.Time) error {
	_, err := c.svc.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.alertsTable),
		Key: map[string]types.AttributeValue{
			"alertId": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(alertId)"),
		UpdateExpression:    aws.String("SET acknowledged = :ack, acknowledgedAt = :time"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ack":  &types.AttributeValueMemberBOOL{Value: true},
			":time": &types.AttributeValueMemberN{Value: strconv.FormatInt(at.Unix(), 10)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("alert %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return nil
}
