package cloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes alert notifications to a topic.
type SNSClient struct {
	svc      snsAPI
	topicArn string
}

func NewSNSClient(region, topicArn string) (*SNSClient, error) {
	cfg, err := loadConfig(region)
	if err != nil {
		return nil, err
	}
	return &SNSClient{svc: sns.NewFromConfig(cfg), topicArn: topicArn}, nil
}

func (c *SNSClient) SendAlert(ctx context.Context, subject, message string) error {
	res, err := c.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	log.Info().Str("message_id", aws.ToString(res.MessageId)).Str("subject", subject).Msg("alert sent")
	return nil
}

// NotifyAlert formats a pipeline alert for operators.
func (c *SNSClient) NotifyAlert(ctx context.Context, a domain.Alert) error {
	return c.SendAlert(ctx, alertSubject(a), alertMessage(a))
}

func alertSubject(a domain.Alert) string {
	return fmt.Sprintf("IntegrityOS %s: pipeline %s", strings.ToUpper(string(a.Severity)), a.PipelineID)
}

func alertMessage(a domain.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline Integrity Alert\n\n")
	fmt.Fprintf(&b, "Pipeline: %s\n", a.PipelineID)
	if a.DeviceID != "" {
		fmt.Fprintf(&b, "Device: %s\n", a.DeviceID)
	}
	fmt.Fprintf(&b, "Severity: %s\n", a.Severity)
	fmt.Fprintf(&b, "Temperature: %.1f °C\n", a.Temperature)
	fmt.Fprintf(&b, "Pressure: %.0f PSI\n", a.Pressure)
	fmt.Fprintf(&b, "Thickness loss: %.2f mm\n", a.ThicknessLoss)
	fmt.Fprintf(&b, "Time: %s\n\n", a.CreatedAt.UTC().Format(time.RFC3339))
	b.WriteString(a.Message)
	return b.String()
}
