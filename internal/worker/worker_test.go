package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository/memory"
	"github.com/jwalitptl/clinic-sync/internal/state"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
	"github.com/jwalitptl/clinic-sync/pkg/messaging"
	"github.com/jwalitptl/clinic-sync/pkg/metrics"
	"github.com/jwalitptl/clinic-sync/pkg/worker"
)

type flakyHandler struct {
	failures int32
	calls    atomic.Int32
	seen     atomic.Int32
}

func (f *flakyHandler) Handle(_ context.Context, _ model.StateEvent) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("temporary failure")
	}
	f.seen.Add(1)
	return nil
}

func fastRetry() worker.RetryConfig {
	return worker.RetryConfig{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestConsumerArchivesAndRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := messaging.NewMemoryBroker(10)
	m := metrics.New("test", prometheus.NewRegistry())
	archive := memory.NewRequestArchiveRepository()
	flaky := &flakyHandler{failures: 1}

	c := NewConsumer(messaging.NewBrokerAdapter(broker, nil), fastRetry(), logger.Nop())
	c.Register("archive", NewArchiver(archive, m))
	c.Register("flaky", flaky)
	require.NoError(t, c.Start(ctx))

	slot := "09:00"
	ev := model.StateEvent{
		ID:   "ev-1",
		Type: model.EventRequestConfirmed,
		Request: &model.AppointmentRequest{
			ID: 1718010000000, PatientName: "Mensah Alain", Symptoms: "fever 2 days",
			Service: model.ServiceGeneral, Status: model.StatusConfirmed, Doctor: "Dr. Kossi", Time: &slot,
		},
		Timestamp: time.Now(),
	}
	require.NoError(t, broker.Publish(ctx, messaging.ChannelStateEvents, ev))

	assert.Eventually(t, func() bool {
		history, err := archive.History(ctx, 1718010000000)
		return err == nil && len(history) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return flaky.seen.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), flaky.calls.Load())

	history, err := archive.History(ctx, 1718010000000)
	require.NoError(t, err)
	assert.Equal(t, model.EventRequestConfirmed, history[0].EventType)
	assert.Equal(t, "09:00", *history[0].Slot)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArchivedEvents.WithLabelValues(string(model.EventRequestConfirmed), "ok")))
}

func TestArchiverSkipsEventsWithoutRequest(t *testing.T) {
	archive := memory.NewRequestArchiveRepository()
	a := NewArchiver(archive, nil)

	require.NoError(t, a.Handle(context.Background(), model.StateEvent{Type: model.EventEmergencyCleared}))
	_, err := archive.History(context.Background(), 0)
	assert.Error(t, err)
}

func TestCleanupPurgesConfirmedRequests(t *testing.T) {
	ctx := context.Background()
	m := metrics.New("test", prometheus.NewRegistry())
	hub := state.NewHub(state.NewStore(memory.NewKVStore(0), nil, m), state.Options{
		Slots: []string{"09:00", "10:30"},
	}, nil, m)

	confirmedEv, err := hub.Dispatch(ctx, state.Submit{Service: model.ServiceGeneral, Symptoms: "fever", PatientName: "A"})
	require.NoError(t, err)
	_, err = hub.Dispatch(ctx, state.Confirm{ID: confirmedEv.Request.ID, Time: "09:00"})
	require.NoError(t, err)
	_, err = hub.Dispatch(ctx, state.Submit{Service: model.ServiceCardiology, Symptoms: "palpitations", PatientName: "B"})
	require.NoError(t, err)

	archive := memory.NewRequestArchiveRepository()
	require.NoError(t, archive.Append(ctx, &model.ArchivedRequest{RequestID: confirmedEv.Request.ID, RecordedAt: time.Now()}))

	w := NewCleanupWorker(hub, archive, CleanupConfig{
		Retention:        24 * time.Hour,
		ArchiveRetention: time.Hour,
		Interval:         time.Minute,
	}, logger.Nop(), m)
	w.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	require.NoError(t, w.cleanup(ctx))

	remaining := hub.Requests(ctx)
	require.Len(t, remaining, 1)
	assert.Equal(t, model.StatusPending, remaining[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PurgedRequests))

	_, err = archive.History(ctx, confirmedEv.Request.ID)
	assert.Error(t, err)
}

func TestCleanupKeepsRecentRequests(t *testing.T) {
	ctx := context.Background()
	hub := state.NewHub(state.NewStore(memory.NewKVStore(0), nil, nil), state.Options{Slots: []string{"09:00"}}, nil, nil)

	ev, err := hub.Dispatch(ctx, state.Submit{Service: model.ServiceGeneral, Symptoms: "fever", PatientName: "A"})
	require.NoError(t, err)
	_, err = hub.Dispatch(ctx, state.Confirm{ID: ev.Request.ID, Time: "09:00"})
	require.NoError(t, err)

	w := NewCleanupWorker(hub, nil, CleanupConfig{Retention: 24 * time.Hour, Interval: time.Minute}, logger.Nop(), nil)
	require.NoError(t, w.cleanup(ctx))

	assert.Len(t, hub.Requests(ctx), 1)
}
