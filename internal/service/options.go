package service

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/cloud"
	"github.com/integrityos/pipeline-hub/internal/config"
	"github.com/integrityos/pipeline-hub/internal/simulate"
)

// OptionsFromConfig builds Options from the loaded configuration. AWS
// clients are created only when USE_CLOUD_SERVICES is set.
func OptionsFromConfig() (Options, error) {
	opts := Options{
		Generator:      simulate.New(config.SimPipelines()),
		Thresholds:     config.StatusThresholds(),
		SensorMaxAge:   config.SensorMaxAge(),
		ReportFunction: config.ReportLambda(),
	}
	if !config.UseCloudServices() {
		log.Info().Msg("cloud services disabled; using local storage only")
		return opts, nil
	}

	region := config.AWSRegion()
	dynamo, err := cloud.NewDynamoDBClient(region, config.AlertsTable(), config.ReadingsTable())
	if err != nil {
		return opts, fmt.Errorf("dynamodb: %w", err)
	}
	opts.Alerts = dynamo
	opts.Archive = dynamo
	opts.StreamAlerts = config.StreamAlerts()

	s3c, err := cloud.NewS3Client(region, config.S3Bucket())
	if err != nil {
		return opts, fmt.Errorf("s3: %w", err)
	}
	opts.Reports = s3c

	if arn := config.SNSTopicArn(); arn != "" {
		sns, err := cloud.NewSNSClient(region, arn)
		if err != nil {
			return opts, fmt.Errorf("sns: %w", err)
		}
		opts.Notifier = sns
	}

	lc, err := cloud.NewLambdaClient(region, config.PredictionLambda())
	if err != nil {
		return opts, fmt.Errorf("lambda: %w", err)
	}
	opts.Trigger = lc
	if config.UseLambdaPredictions() {
		opts.Predictor = lc
	}

	log.Info().
		Str("region", region).
		Str("bucket", s3c.Bucket()).
		Bool("sns", opts.Notifier != nil).
		Bool("stream_alerts", opts.StreamAlerts).
		Bool("lambda_predictions", opts.Predictor != nil).
		Msg("cloud services enabled")
	return opts, nil
}
