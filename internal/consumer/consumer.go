// Package consumer reads conversion requests from the message queue and
// dispatches each one to the pipeline on its own goroutine.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one raw queue message. Implemented by
// pipeline.Pipeline.
type Handler interface {
	Handle(ctx context.Context, body []byte)
}

type Consumer struct {
	url       string
	queueName string
	handler   Handler
	maxJobs   int
}

// New builds a consumer. maxJobs caps the number of messages processed in
// parallel; 0 means no cap.
func New(url, queueName string, handler Handler, maxJobs int) *Consumer {
	return &Consumer{
		url:       url,
		queueName: queueName,
		handler:   handler,
		maxJobs:   maxJobs,
	}
}

// Run consumes the queue until the context is cancelled or the broker
// closes the channel. Messages are acknowledged on receipt; a failed job
// is recorded in the tracking table, not redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	logger := zap.S().Named("consumer")

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer channel.Close()

	queue, err := channel.QueueDeclare(c.queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declaring queue %s: %w", c.queueName, err)
	}

	deliveries, err := channel.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming queue %s: %w", c.queueName, err)
	}

	var sem chan struct{}
	if c.maxJobs > 0 {
		sem = make(chan struct{}, c.maxJobs)
	}

	logger.Infof("Consuming queue %s...", queue.Name)

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			logger.Infof("Shutdown signal received: %s", ctx.Err())
			wg.Wait()
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				wg.Wait()
				return errors.New("broker closed the delivery channel")
			}
			if sem != nil {
				sem <- struct{}{}
			}
			wg.Add(1)
			go func(body []byte) {
				defer wg.Done()
				if sem != nil {
					defer func() { <-sem }()
				}
				defer func() {
					if r := recover(); r != nil {
						logger.Errorw("job handler panicked", "panic", r)
					}
				}()
				c.handler.Handle(ctx, body)
			}(delivery.Body)
		}
	}
}
