// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package events publishes change events to kafka. Consumers receive one
// message per successful mutation, keyed by resource and identifier so a
// partition preserves per-record ordering.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/kontor/core"
	"github.com/relabs-tech/kontor/core/logger"
)

// Event is the wire format of a change event
type Event struct {
	Resource  string         `json:"resource"`
	Operation core.Operation `json:"operation"`
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher writes change events to a kafka topic
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a publisher for the given brokers and topic
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Notify publishes a change event. Publishing failures are logged, they do
// not fail the request that triggered them.
func (p *Publisher) Notify(ctx context.Context, resource string, operation core.Operation, id int64, data map[string]any) {
	value, err := json.Marshal(Event{
		Resource:  resource,
		Operation: operation,
		ID:        id,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("Error 4301: cannot marshal change event")
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(resource + "/" + strconv.FormatInt(id, 10)),
		Value: value,
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("Error 4302: cannot publish change event")
	}
}

// Close closes the underlying writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}
