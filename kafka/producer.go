package kafka

import (
	"encoding/json"
	"log"

	"github.com/IBM/sarama"

	"paygate/models"
)

const stateChangedTopic = "payment.state.changed"

type Producer struct {
	producer sarama.SyncProducer
}

// NewProducer connects a sync producer, or returns nil when no brokers are
// configured or the cluster is unreachable. Event publication is an
// optional side channel; the service runs without it.
func NewProducer(brokers []string) *Producer {
	if len(brokers) == 0 {
		return nil
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		log.Printf("Kafka unreachable, event publication disabled: %v", err)
		return nil
	}

	log.Println("Kafka producer initialized")
	return &Producer{producer: producer}
}

func (p *Producer) PublishStateChange(payment *models.Payment) {
	if p == nil {
		return
	}

	data, err := json.Marshal(payment)
	if err != nil {
		log.Printf("Failed to marshal state change event: %v", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: stateChangedTopic,
		Key:   sarama.StringEncoder(payment.ReferenceID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Printf("Failed to send state change event for %s: %v", payment.ReferenceID, err)
	}
}
