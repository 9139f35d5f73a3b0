package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/logger"
)

const (
	defaultPollTimeout = 5 * time.Second
	drainTimeout       = time.Second
)

// Stats counts dispatcher deliveries.
type Stats struct {
	Delivered int
	Failed    int
}

// Dispatcher drains a Queue into a Sender. Failed deliveries are logged and dropped.
type Dispatcher struct {
	queue       Queue
	sender      Sender
	logger      *zap.Logger
	pollTimeout time.Duration
}

func NewDispatcher(queue Queue, sender Sender, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:       queue,
		sender:      sender,
		logger:      logger.WithFields(log),
		pollTimeout: defaultPollTimeout,
	}
}

// Run delivers messages until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	for {
		if ctx.Err() != nil {
			return stats, nil
		}

		msg, ok, err := d.queue.Dequeue(ctx, d.pollTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return stats, nil
			}
			return stats, err
		}
		if !ok {
			continue
		}

		if d.deliver(ctx, msg) {
			stats.Delivered++
		} else {
			stats.Failed++
		}
	}
}

// Drain delivers queued messages until the queue is empty.
func (d *Dispatcher) Drain(ctx context.Context) (Stats, error) {
	var stats Stats
	for {
		msg, ok, err := d.queue.Dequeue(ctx, drainTimeout)
		if err != nil {
			return stats, err
		}
		if !ok {
			return stats, nil
		}
		if d.deliver(ctx, msg) {
			stats.Delivered++
		} else {
			stats.Failed++
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) bool {
	log := logger.ForMatch(d.logger, msg.JobID, msg.CandidateID).With(zap.String("message_id", msg.ID))

	if err := d.sender.Send(ctx, msg); err != nil {
		log.Warn("notification delivery failed", zap.Error(err))
		return false
	}

	log.Info("notification delivered")
	return true
}
