// Package mailer moves outbound email through a queue so request handlers never
// wait on SMTP. The queue consumer performs the actual send.
package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"tablebook/src/lib"
	"tablebook/src/logger"
	"tablebook/src/utils"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/tidwall/gjson"
)

// Producer hands a serialized email to a transport and returns its message id.
type Producer func(ctx context.Context, queue string, body []byte) (string, error)

// SQSProducer sends to an SQS queue.
func SQSProducer(client *sqs.Client) Producer {
	return func(ctx context.Context, queue string, body []byte) (string, error) {
		return lib.SQSProduceMessage(ctx, client, queue, string(body))
	}
}

// KafkaProducer sends to a Kafka topic named after the queue. Used locally.
func KafkaProducer() Producer {
	return func(ctx context.Context, queue string, body []byte) (string, error) {
		return lib.KafkaProduceMessage("emails", queue, json.RawMessage(body))
	}
}

type QueueSender struct {
	queue   string
	produce Producer
}

func NewQueueSender(queue string, produce Producer) *QueueSender {
	return &QueueSender{queue: utils.WithSuffix(queue), produce: produce}
}

func (q *QueueSender) Send(ctx context.Context, input *lib.SendMailInput) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	id, err := q.produce(ctx, q.queue, body)
	if err != nil {
		return "", fmt.Errorf("error sending message to queue: %w", err)
	}
	return id, nil
}

func (q *QueueSender) Queue() string {
	return q.queue
}

// DecodeMessage parses a queued email body.
func DecodeMessage(payload string) (*lib.SendMailInput, error) {
	if !gjson.Valid(payload) {
		return nil, fmt.Errorf("invalid json body")
	}
	input := &lib.SendMailInput{
		From:     gjson.Get(payload, "from").String(),
		FromName: gjson.Get(payload, "from-name").String(),
		ReplyTo:  gjson.Get(payload, "reply-to").String(),
		Subject:  gjson.Get(payload, "subject").String(),
		Body:     gjson.Get(payload, "body").String(),
		Html:     gjson.Get(payload, "html").Bool(),
	}
	for _, item := range gjson.Get(payload, "to").Array() {
		input.To = append(input.To, item.String())
	}
	for _, item := range gjson.Get(payload, "cc").Array() {
		input.Cc = append(input.Cc, item.String())
	}
	for _, item := range gjson.Get(payload, "bcc").Array() {
		input.Bcc = append(input.Bcc, item.String())
	}
	if len(input.To) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}
	return input, nil
}

type sender interface {
	Send(ctx context.Context, input *lib.SendMailInput) (string, error)
}

// EmailHandler returns the queue consumer callback that delivers each message
// with s.
func EmailHandler(s sender) func(payload string) {
	return func(payload string) {
		log := logger.Get()
		input, err := DecodeMessage(payload)
		if err != nil {
			log.Error().Err(err).Msg("[MAILER] dropping queued email")
			return
		}
		id, err := s.Send(context.Background(), input)
		if err != nil {
			log.Error().Err(err).Strs("to", input.To).Msg("[MAILER] error sending email")
			return
		}
		log.Info().Strs("to", input.To).Str("message_id", id).Msg("[MAILER] email sent")
	}
}
