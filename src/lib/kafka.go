package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"tablebook/src/logger"
	"tablebook/src/types"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

var (
	producers   = map[string]*kafka.Producer{}
	producersMu sync.Mutex
)

func GetKafkaProducerConfig(clientId string) *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"client.id":         clientId,
		"acks":              "all",
	}
}

func GetKafkaConsumerConfig(groupId string) *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"group.id":          groupId,
		"auto.offset.reset": "smallest",
		"retry.backoff.ms":  100,
	}
}

func getKafkaProducer(clientId string) (*kafka.Producer, error) {
	producersMu.Lock()
	defer producersMu.Unlock()
	if p, ok := producers[clientId]; ok {
		return p, nil
	}
	p, err := kafka.NewProducer(GetKafkaProducerConfig(clientId))
	if err != nil {
		return nil, err
	}
	producers[clientId] = p
	return p, nil
}

// KafkaProduceMessage publishes payload as JSON and waits for the broker ack.
// It returns "topic/partition/offset" as the message id.
func KafkaProduceMessage(clientId string, topic string, payload any) (string, error) {
	p, err := getKafkaProducer(clientId)
	if err != nil {
		return "", fmt.Errorf("creating kafka producer: %w", err)
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	delivery := make(chan kafka.Event, 1)
	err = p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, delivery)
	if err != nil {
		return "", fmt.Errorf("producing to %s: %w", topic, err)
	}
	select {
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return "", fmt.Errorf("unexpected kafka delivery event %v", e)
		}
		if m.TopicPartition.Error != nil {
			return "", m.TopicPartition.Error
		}
		return fmt.Sprintf("%s/%d/%s", topic, m.TopicPartition.Partition, m.TopicPartition.Offset), nil
	case <-time.After(10 * time.Second):
		return "", fmt.Errorf("timed out waiting for delivery to %s", topic)
	}
}

// KafkaConsumer polls topics in the background and hands every message body to
// handler until ctx is done.
func KafkaConsumer(ctx context.Context, groupId string, topics []string, handler types.Handler) error {
	log := logger.Get()
	c, err := kafka.NewConsumer(GetKafkaConsumerConfig(groupId))
	if err != nil {
		return err
	}
	if err := c.SubscribeTopics(topics, nil); err != nil {
		c.Close()
		return err
	}
	go func() {
		defer c.Close()
		log.Info().Strs("topics", topics).Msg("kafka consumer waiting for messages")
		for ctx.Err() == nil {
			switch e := c.Poll(100).(type) {
			case *kafka.Message:
				handler(string(e.Value))
			case kafka.Error:
				log.Error().Err(e).Msg("kafka consumer error")
				if e.IsFatal() {
					return
				}
			}
		}
	}()
	return nil
}

func KafkaCreateTopics(ctx context.Context, topics ...string) ([]kafka.TopicResult, error) {
	a, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
	})
	if err != nil {
		return nil, err
	}
	defer a.Close()
	topicsDef := []kafka.TopicSpecification{}
	for _, topic := range topics {
		topicsDef = append(topicsDef, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}
	return a.CreateTopics(ctx, topicsDef)
}

func KafkaClose() {
	producersMu.Lock()
	defer producersMu.Unlock()
	for id, p := range producers {
		p.Flush(5000)
		p.Close()
		delete(producers, id)
	}
}
