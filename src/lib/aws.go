package lib

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"tablebook/src/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

var (
	awsCfg     *aws.Config
	awsCfgErr  error
	awsCfgOnce sync.Once
)

// AWSConfig loads the default credential chain. When AWS_IAM_ROLE_ARN is set the
// role is assumed once and its temporary credentials are used instead.
func AWSConfig(ctx context.Context) (*aws.Config, error) {
	awsCfgOnce.Do(func() {
		awsCfg, awsCfgErr = loadAWSConfig(ctx)
	})
	return awsCfg, awsCfgErr
}

func loadAWSConfig(ctx context.Context) (*aws.Config, error) {
	log := logger.Get()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error loading default aws config")
		return nil, err
	}
	iamRole := os.Getenv("AWS_IAM_ROLE_ARN")
	if iamRole == "" {
		return &cfg, nil
	}
	stsClient := sts.NewFromConfig(cfg)
	output, err := stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(iamRole),
		RoleSessionName: aws.String("tablebook-api"),
	})
	if err != nil {
		log.Error().Err(err).Str("role", iamRole).Msg("error assuming iam role")
		return nil, err
	}
	creds := output.Credentials
	cfg, err = config.LoadDefaultConfig(ctx, config.WithCredentialsProvider(
		credentials.NewStaticCredentialsProvider(*creds.AccessKeyId, *creds.SecretAccessKey, *creds.SessionToken),
	))
	if err != nil {
		log.Error().Err(err).Msg("error loading assumed-role aws config")
		return nil, err
	}
	return &cfg, nil
}

func AWSGetSQSClient() (*sqs.Client, error) {
	cfg, err := AWSConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("initializing sqs client: %w", err)
	}
	return sqs.NewFromConfig(*cfg), nil
}

func AWSGetSNSClient() (*sns.Client, error) {
	cfg, err := AWSConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("initializing sns client: %w", err)
	}
	return sns.NewFromConfig(*cfg), nil
}

func AWSGetSESClient() (*ses.Client, error) {
	cfg, err := AWSConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("initializing ses client: %w", err)
	}
	return ses.NewFromConfig(*cfg), nil
}

// GetTopicArn expands a topic name using AWS_REGION and AWS_ACCOUNT_ID. Values
// that already look like ARNs are returned unchanged.
func GetTopicArn(topic string) string {
	if strings.HasPrefix(topic, "arn:aws:") {
		return topic
	}
	return fmt.Sprintf("arn:aws:sns:%s:%s:%s", os.Getenv("AWS_REGION"), os.Getenv("AWS_ACCOUNT_ID"), topic)
}

// SQSProduceMessage sends body to the named queue and returns the SQS message id.
func SQSProduceMessage(ctx context.Context, client *sqs.Client, queue string, body string) (string, error) {
	qurl, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queue),
	})
	if err != nil {
		return "", fmt.Errorf("resolving queue %s: %w", queue, err)
	}
	out, err := client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    qurl.QueueUrl,
		MessageBody: aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("sending to queue %s: %w", queue, err)
	}
	return aws.ToString(out.MessageId), nil
}
