package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/internal/notification"
	"github.com/medsched/agenda-api/internal/repository"
	"github.com/medsched/agenda-api/pkg/logger"
	"github.com/medsched/agenda-api/pkg/messaging"
	"github.com/medsched/agenda-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// OutboxProcessor drains pending appointment events: each one is
// published to the broker and handed to the notifier. Events are written
// by the appointment service in the same request that mutated the row,
// so delivery lags bookings by at most one poll interval.
type OutboxProcessor struct {
	repo     repository.OutboxRepository
	broker   messaging.Broker
	notifier notification.Notifier
	config   OutboxProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	notifier notification.Notifier,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}

	return &OutboxProcessor{
		repo:     repo,
		broker:   broker,
		notifier: notifier,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "failed to process outbox events")
			}
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	events, err := p.repo.FetchPending(ctx, p.config.BatchSize)
	if err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.OutboxQueueSize.Set(float64(len(events)))
	}

	for _, event := range events {
		if err := p.handleEvent(ctx, event); err != nil {
			p.logger.Error(err, "failed to handle outbox event", "event_id", event.ID)
			if markErr := p.repo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				p.logger.Error(markErr, "failed to mark outbox event failed", "event_id", event.ID)
			}
			if p.metrics != nil {
				p.metrics.OutboxEventsFailed.Inc()
			}
			continue
		}

		if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
			p.logger.Error(err, "failed to mark outbox event processed", "event_id", event.ID)
			continue
		}
		if p.metrics != nil {
			p.metrics.OutboxEventsProcessed.Inc()
		}
	}

	return nil
}

func (p *OutboxProcessor) handleEvent(ctx context.Context, event *model.OutboxEvent) error {
	message := map[string]interface{}{
		"type":    event.EventType,
		"payload": json.RawMessage(event.Payload),
	}
	if err := p.broker.Publish(ctx, messaging.ChannelAppointments, message); err != nil {
		return err
	}

	var payload model.AppointmentEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	return p.notifier.NotifyAppointmentEvent(ctx, event.EventType, &payload)
}
