/*
Copyright 2025 The Meridian Authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package kafka publishes checkout lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dapr/kit/logger"

	"github.com/meridianerp/finance-core/events"
	"github.com/meridianerp/finance-core/metadata"
)

const (
	defaultTopic        = "checkout-events"
	defaultWriteTimeout = 10 * time.Second
)

type kafkaMetadata struct {
	Brokers      string        `json:"brokers" mapstructure:"brokers"`
	Topic        string        `json:"topic" mapstructure:"topic"`
	WriteTimeout time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`

	brokerList []string
}

func (m *kafkaMetadata) InitWithMetadata(meta metadata.Base) error {
	m.Brokers = ""
	m.Topic = defaultTopic
	m.WriteTimeout = defaultWriteTimeout

	err := metadata.DecodeMetadata(meta.Properties, &m)
	if err != nil {
		return err
	}

	if m.Brokers == "" {
		return errors.New("missing brokers")
	}
	m.brokerList = strings.Split(m.Brokers, ",")
	for i := range m.brokerList {
		m.brokerList[i] = strings.TrimSpace(m.brokerList[i])
	}
	return nil
}

// Publisher writes checkout events to Kafka, keyed by run ID so all
// events of one run land in the same partition.
type Publisher struct {
	logger   logger.Logger
	metadata kafkaMetadata
	writer   *kafka.Writer
}

// NewPublisher returns an uninitialized Kafka publisher.
func NewPublisher(logger logger.Logger) *Publisher {
	return &Publisher{
		logger: logger,
	}
}

// Init configures the writer. Recognized properties: brokers (comma
// separated, required), topic, writeTimeout.
func (p *Publisher) Init(_ context.Context, meta metadata.Base) error {
	err := p.metadata.InitWithMetadata(meta)
	if err != nil {
		return err
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(p.metadata.brokerList...),
		Topic:        p.metadata.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: p.metadata.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	p.logger.Infof("Kafka checkout event publisher ready (topic=%s)", p.metadata.Topic)
	return nil
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, event *events.CheckoutEvent) error {
	if p.writer == nil {
		return errors.New("publisher not initialized")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RunID),
		Value: value,
		Time:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event for run %s: %w", event.Type, event.RunID, err)
	}
	return nil
}

// Close implements events.Publisher.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
