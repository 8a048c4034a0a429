package cloud

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/integrityos/pipeline-hub/internal/integrity"
)

type lambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaClient invokes the prediction and daily report functions.
type LambdaClient struct {
	svc                lambdaAPI
	predictionFunction string
}

func NewLambdaClient(region, predictionFunction string) (*LambdaClient, error) {
	cfg, err := loadConfig(region)
	if err != nil {
		return nil, err
	}
	return &LambdaClient{svc: lambda.NewFromConfig(cfg), predictionFunction: predictionFunction}, nil
}

// PredictionResponse is the payload returned by the prediction function.
type PredictionResponse struct {
	Prediction integrity.Prediction `json:"prediction"`
	Error      string               `json:"error,omitempty"`
}

// DailyReportEvent triggers the daily report function.
type DailyReportEvent struct {
	PipelineID string `json:"pipeline_id"`
	Date       string `json:"date"`
}

func (c *LambdaClient) invoke(ctx context.Context, function string, typ types.InvocationType, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	res, err := c.svc.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		Payload:        body,
		InvocationType: typ,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Lambda %s: %w", function, err)
	}
	if res.FunctionError != nil {
		return nil, fmt.Errorf("Lambda function error: %s: %s", aws.ToString(res.FunctionError), res.Payload)
	}
	return res.Payload, nil
}

// Predict runs the prediction formula remotely.
func (c *LambdaClient) Predict(ctx context.Context, in integrity.PredictionInput) (integrity.Prediction, error) {
	payload, err := c.invoke(ctx, c.predictionFunction, types.InvocationTypeRequestResponse, in)
	if err != nil {
		return integrity.Prediction{}, err
	}
	var res PredictionResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return integrity.Prediction{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if res.Error != "" {
		return integrity.Prediction{}, fmt.Errorf("prediction function: %s", res.Error)
	}
	return res.Prediction, nil
}

// TriggerDailyReport queues the daily report function without waiting.
func (c *LambdaClient) TriggerDailyReport(ctx context.Context, function string, ev DailyReportEvent) error {
	_, err := c.invoke(ctx, function, types.InvocationTypeEvent, ev)
	return err
}
