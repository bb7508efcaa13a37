package alert

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-alert-service/internal/domain"
)

type recordingNotifier struct {
	sent []string
}

func (n *recordingNotifier) Send(_ context.Context, _ uuid.UUID, message string) {
	n.sent = append(n.sent, message)
}

func pendingAlert(fs *fakeStore, t *testing.T, message string) domain.AlertEvent {
	t.Helper()
	event := domain.AlertEvent{
		SubscriptionID: uuid.New(),
		SnapshotID:     uuid.New(),
		Status:         domain.AlertPending,
		Message:        message,
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, fs.CreateAlert(context.Background(), &event))
	return event
}

func TestDispatchMarksSentThenNotifies(t *testing.T) {
	fs := newFakeStore()
	notifier := &recordingNotifier{}
	d := NewDispatcher(fs, notifier, 50)
	sentAt := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return sentAt }

	a := pendingAlert(fs, t, "first")
	b := pendingAlert(fs, t, "second")

	count, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, []string{"first", "second"}, notifier.sent)
	require.Equal(t, sentAt, fs.sent[a.ID])
	require.Equal(t, sentAt, fs.sent[b.ID])

	// Nothing pending on the next tick.
	count, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
	require.Len(t, notifier.sent, 2)
}

func TestDispatchRespectsBatchBound(t *testing.T) {
	fs := newFakeStore()
	notifier := &recordingNotifier{}
	d := NewDispatcher(fs, notifier, 2)

	for i := 0; i < 5; i++ {
		pendingAlert(fs, t, "m")
	}

	count, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDispatchEmptyQueueIsNoOp(t *testing.T) {
	fs := newFakeStore()
	notifier := &recordingNotifier{}
	d := NewDispatcher(fs, notifier, 50)

	count, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, notifier.sent)
}
