package aws

import (
	"context"
	"fmt"

	"tablebook/src/lib"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSAlerter publishes staff alerts to an SNS topic.
type SNSAlerter struct {
	client   SNSAPI
	topicArn string
}

func NewSNSAlerter(client SNSAPI, topic string) *SNSAlerter {
	return &SNSAlerter{client: client, topicArn: lib.GetTopicArn(topic)}
}

func (a *SNSAlerter) Alert(ctx context.Context, subject, body string) error {
	_, err := a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", a.topicArn, err)
	}
	return nil
}
