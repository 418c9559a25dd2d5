package aws

import (
	"context"
	"strings"

	"tablebook/src/logger"
	"tablebook/src/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the part of the SQS client the consumer uses.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSConsumer struct {
	Name    string
	client  SQSAPI
	handler types.Handler
}

func NewSQSConsumer(client SQSAPI, queue string, handler types.Handler) *SQSConsumer {
	return &SQSConsumer{
		Name:    queue,
		client:  client,
		handler: handler,
	}
}

// Listen long-polls the queue in the background until ctx is done. A message
// is deleted once its handler returns.
func (s *SQSConsumer) Listen(ctx context.Context) {
	go func() {
		log := logger.Get().With().Str("queue", s.Name).Logger()
		qurl, err := s.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
			QueueName: aws.String(s.Name),
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to retrieve queue url")
			return
		}
		log.Info().Msg("listening for messages")
		for ctx.Err() == nil {
			if err := s.poll(ctx, qurl.QueueUrl); err != nil {
				log.Error().Err(err).Msg("error receiving messages")
				return
			}
		}
	}()
}

func (s *SQSConsumer) poll(ctx context.Context, qurl *string) error {
	output, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            qurl,
		WaitTimeSeconds:     20,
		MaxNumberOfMessages: 10,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	for _, m := range output.Messages {
		s.handler(strings.Clone(aws.ToString(m.Body)))
		s.delete(ctx, qurl, m)
	}
	return nil
}

func (s *SQSConsumer) delete(ctx context.Context, qurl *string, msg sqstypes.Message) {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      qurl,
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		logger.Get().Warn().Err(err).Str("message_id", aws.ToString(msg.MessageId)).Msg("error deleting message from queue")
	}
}
