package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

type fakeDynamo struct {
	puts    []*dynamodb.PutItemInput
	batches []*dynamodb.BatchWriteItemInput
	updates []*dynamodb.UpdateItemInput
	items   []map[string]ddbtypes.AttributeValue
	err     error
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, f.err
}

func (f *fakeDynamo) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return &dynamodb.QueryOutput{Items: f.items}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{Items: f.items}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batches = append(f.batches, in)
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func TestDynamoAlertsRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeDynamo{}
	c := &DynamoDBClient{svc: fake, alertsTable: "Alerts", readingsTable: "Readings"}

	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.PutAlert(ctx, domain.Alert{ID: "old", PipelineID: "A", Severity: domain.StatusWarning, CreatedAt: t0}))
	require.NoError(t, c.PutAlert(ctx, domain.Alert{ID: "new", PipelineID: "B", Severity: domain.StatusCritical, Temperature: 51, CreatedAt: t0.Add(time.Minute)}))
	assert.Equal(t, "Alerts", aws.ToString(fake.puts[0].TableName))

	alerts, err := c.ListAlerts(ctx, "")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "new", alerts[0].ID)
	assert.Equal(t, domain.StatusCritical, alerts[0].Severity)
	assert.Equal(t, 51.0, alerts[0].Temperature)
	assert.True(t, t0.Add(time.Minute).Equal(alerts[0].CreatedAt))
	assert.Nil(t, alerts[0].AcknowledgedAt)
}

func TestDynamoAcknowledgeMissing(t *testing.T) {
	fake := &fakeDynamo{err: &ddbtypes.ConditionalCheckFailedException{Message: aws.String("nope")}}
	c := &DynamoDBClient{svc: fake, alertsTable: "Alerts"}
	err := c.AcknowledgeAlert(context.Background(), "x", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	fake.err = errors.New("boom")
	err = c.AcknowledgeAlert(context.Background(), "x", time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestDynamoReadings(t *testing.T) {
	ctx := context.Background()
	fake := &fakeDynamo{}
	c := &DynamoDBClient{svc: fake, readingsTable: "Readings"}

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	readings := make([]domain.SensorReading, 60)
	for i := range readings {
		readings[i] = domain.SensorReading{PipelineID: "A", Temperature: float64(i), Timestamp: t0.Add(time.Duration(i) * time.Minute)}
	}
	require.NoError(t, c.BatchPutReadings(ctx, readings))
	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0].RequestItems["Readings"], 25)
	assert.Len(t, fake.batches[2].RequestItems["Readings"], 10)

	require.NoError(t, c.PutReading(ctx, readings[7]))
	got, err := c.ReadingsBetween(ctx, "A", t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 7.0, got[0].Temperature)
	assert.True(t, readings[7].Timestamp.Equal(got[0].Timestamp))
}

type fakeSNS struct{ in *sns.PublishInput }

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestNotifyAlert(t *testing.T) {
	fake := &fakeSNS{}
	c := &SNSClient{svc: fake, topicArn: "arn:aws:sns:us-east-1:1:alerts"}

	a := domain.Alert{PipelineID: "A", DeviceID: "ESP32-01", Severity: domain.StatusCritical, Temperature: 52.3, Pressure: 960, ThicknessLoss: 2.1, Message: "critical", CreatedAt: time.Now()}
	require.NoError(t, c.NotifyAlert(context.Background(), a))

	assert.Equal(t, "arn:aws:sns:us-east-1:1:alerts", aws.ToString(fake.in.TopicArn))
	assert.Equal(t, "IntegrityOS CRITICAL: pipeline A", aws.ToString(fake.in.Subject))
	msg := aws.ToString(fake.in.Message)
	assert.Contains(t, msg, "Device: ESP32-01")
	assert.Contains(t, msg, "Temperature: 52.3 °C")
	assert.Contains(t, msg, "Pressure: 960 PSI")
}

type fakeLambda struct {
	in  *lambda.InvokeInput
	out *lambda.InvokeOutput
}

func (f *fakeLambda) Invoke(_ context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.in = in
	return f.out, nil
}

func TestLambdaPredict(t *testing.T) {
	want := integrity.Prediction{ThicknessLoss: 3.11, CurrentThickness: 9.59, RemainingLife: 5.3, RiskLevel: integrity.RiskMedium}
	body, err := json.Marshal(PredictionResponse{Prediction: want})
	require.NoError(t, err)

	fake := &fakeLambda{out: &lambda.InvokeOutput{Payload: body}}
	c := &LambdaClient{svc: fake, predictionFunction: "pipeline-prediction"}

	got, err := c.Predict(context.Background(), integrity.PredictionInput{InitialThickness: 12.7, MinThickness: 8})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "pipeline-prediction", aws.ToString(fake.in.FunctionName))

	fake.out = &lambda.InvokeOutput{FunctionError: aws.String("Unhandled"), Payload: []byte(`{}`)}
	_, err = c.Predict(context.Background(), integrity.PredictionInput{})
	assert.Error(t, err)

	fake.out = &lambda.InvokeOutput{Payload: []byte(`{"error":"invalid input"}`)}
	_, err = c.Predict(context.Background(), integrity.PredictionInput{})
	assert.ErrorContains(t, err, "invalid input")
}

func TestTriggerDailyReport(t *testing.T) {
	fake := &fakeLambda{out: &lambda.InvokeOutput{StatusCode: 202}}
	c := &LambdaClient{svc: fake}
	require.NoError(t, c.TriggerDailyReport(context.Background(), "daily-report", DailyReportEvent{PipelineID: "A", Date: "2025-03-01"}))
	assert.Equal(t, "Event", string(fake.in.InvocationType))
	assert.JSONEq(t, `{"pipeline_id":"A","date":"2025-03-01"}`, string(fake.in.Payload))
}

type fakeS3 struct{ objects map[string][]byte }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

// ListObjectsV2 serves one key per page.
func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}, nil
	}
	out := &s3.ListObjectsV2Output{
		Contents:    []s3types.Object{{Key: aws.String(keys[0])}},
		IsTruncated: aws.Bool(len(keys) > 1),
	}
	if len(keys) > 1 {
		out.NextContinuationToken = aws.String(keys[0])
	}
	return out, nil
}

func TestS3Reports(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	c := &S3Client{svc: fake, bucket: "reports", presign: func(_ context.Context, bucket, key string) (string, error) {
		return "https://" + bucket + ".example.test/" + key, nil
	}}

	url, err := c.UploadReport(ctx, "reports/A/r1.docx", []byte("one"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "https://reports.example.test/reports/A/r1.docx", url)
	_, err = c.UploadReport(ctx, "reports/A/r2.pdf", []byte("two"), "application/pdf")
	require.NoError(t, err)
	_, err = c.UploadReport(ctx, "reports/B/r1.txt", []byte("three"), "text/plain")
	require.NoError(t, err)

	keys, err := c.ListReports(ctx, "reports/A/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/A/r1.docx", "reports/A/r2.pdf"}, keys)

	all, err := c.ListReports(ctx, "reports/")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	body, err := c.DownloadFile(ctx, "reports/A/r2.pdf")
	require.NoError(t, err)
	assert.Equal(t, "two", string(body))

	_, err = c.DownloadFile(ctx, "reports/C/none.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
