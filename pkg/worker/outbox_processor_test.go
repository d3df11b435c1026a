package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/pkg/logger"
	"github.com/medsched/agenda-api/pkg/messaging"
)

type fakeOutboxRepo struct {
	pending   []*model.OutboxEvent
	processed []uuid.UUID
	failed    map[uuid.UUID]string
}

func newFakeOutboxRepo(events ...*model.OutboxEvent) *fakeOutboxRepo {
	return &fakeOutboxRepo{pending: events, failed: make(map[uuid.UUID]string)}
}

func (f *fakeOutboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	f.pending = append(f.pending, e)
	return nil
}

func (f *fakeOutboxRepo) FetchPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

type publishedMessage struct {
	topic   string
	message interface{}
}

type fakeBroker struct {
	published []publishedMessage
	err       error
}

func (f *fakeBroker) Publish(_ context.Context, topic string, message interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMessage{topic: topic, message: message})
	return nil
}

func (f *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeBroker) Close() error { return nil }

type fakeNotifier struct {
	notified []string
	err      error
}

func (f *fakeNotifier) NotifyAppointmentEvent(_ context.Context, eventType string, _ *model.AppointmentEventPayload) error {
	if f.err != nil {
		return f.err
	}
	f.notified = append(f.notified, eventType)
	return nil
}

func outboxEvent(t *testing.T, eventType string) *model.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(model.AppointmentEventPayload{
		AppointmentID: uuid.New(),
		PhysicianID:   uuid.New(),
		PatientID:     uuid.New(),
		Status:        model.AppointmentStatusScheduled,
	})
	require.NoError(t, err)
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    model.OutboxStatusPending,
	}
}

func newProcessor(repo *fakeOutboxRepo, broker *fakeBroker, notifier *fakeNotifier) *OutboxProcessor {
	return NewOutboxProcessor(repo, broker, notifier, OutboxProcessorConfig{}, logger.NewLogger(nil), nil)
}

func TestProcessEventsPublishesAndMarksProcessed(t *testing.T) {
	event := outboxEvent(t, model.EventAppointmentCreated)
	repo := newFakeOutboxRepo(event)
	broker := &fakeBroker{}
	notifier := &fakeNotifier{}

	p := newProcessor(repo, broker, notifier)
	require.NoError(t, p.processEvents(context.Background()))

	require.Len(t, broker.published, 1)
	assert.Equal(t, messaging.ChannelAppointments, broker.published[0].topic)
	assert.Equal(t, []string{model.EventAppointmentCreated}, notifier.notified)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.processed)
	assert.Empty(t, repo.failed)
}

func TestProcessEventsMarksFailedOnPublishError(t *testing.T) {
	event := outboxEvent(t, model.EventAppointmentCancelled)
	repo := newFakeOutboxRepo(event)
	broker := &fakeBroker{err: errors.New("redis gone")}
	notifier := &fakeNotifier{}

	p := newProcessor(repo, broker, notifier)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Empty(t, repo.processed)
	assert.Contains(t, repo.failed[event.ID], "redis gone")
	assert.Empty(t, notifier.notified)
}

func TestProcessEventsContinuesPastFailures(t *testing.T) {
	bad := outboxEvent(t, model.EventAppointmentCreated)
	bad.Payload = json.RawMessage(`{broken`)
	good := outboxEvent(t, model.EventAppointmentUpdated)
	repo := newFakeOutboxRepo(bad, good)
	broker := &fakeBroker{}
	notifier := &fakeNotifier{}

	p := newProcessor(repo, broker, notifier)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Contains(t, repo.failed, bad.ID)
	assert.Equal(t, []uuid.UUID{good.ID}, repo.processed)
}

func TestProcessEventsRespectsBatchSize(t *testing.T) {
	repo := newFakeOutboxRepo(
		outboxEvent(t, model.EventAppointmentCreated),
		outboxEvent(t, model.EventAppointmentCreated),
		outboxEvent(t, model.EventAppointmentCreated),
	)
	broker := &fakeBroker{}
	notifier := &fakeNotifier{}

	p := NewOutboxProcessor(repo, broker, notifier, OutboxProcessorConfig{BatchSize: 2}, logger.NewLogger(nil), nil)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Len(t, repo.processed, 2)
}
