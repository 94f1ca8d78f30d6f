package state

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
	"github.com/jwalitptl/clinic-sync/internal/repository/memory"
	"github.com/jwalitptl/clinic-sync/pkg/messaging"
	"github.com/jwalitptl/clinic-sync/pkg/metrics"
)

var testSlots = []string{"08:00", "09:00", "09:30", "10:00", "10:30", "11:00", "14:00", "15:00", "15:30", "16:00"}

func newTestHub(t *testing.T, opts Options) (*Hub, repository.KVStore, *metrics.Metrics) {
	t.Helper()
	kv := memory.NewKVStore(0)
	return newHubOn(t, kv, opts)
}

func newHubOn(t *testing.T, kv repository.KVStore, opts Options) (*Hub, repository.KVStore, *metrics.Metrics) {
	t.Helper()
	if opts.Slots == nil {
		opts.Slots = testSlots
	}
	m := metrics.New("test", prometheus.NewRegistry())
	h := NewHub(NewStore(kv, nil, m), opts, nil, m)
	fixed := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }
	return h, kv, m
}

// recorder collects events delivered to a subscriber.
type recorder struct {
	mu     sync.Mutex
	events []model.StateEvent
}

func (r *recorder) add(ev model.StateEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) last() (model.StateEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return model.StateEvent{}, false
	}
	return r.events[len(r.events)-1], true
}

func (r *recorder) has(fn func(model.StateEvent) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if fn(ev) {
			return true
		}
	}
	return false
}

func TestSubmitKeyedCollection(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHub(t, Options{LegacyMirror: true})

	first, err := h.Dispatch(ctx, Submit{Service: model.ServiceGeneral, Symptoms: " fever 2 days ", PatientName: "Mensah Alain"})
	require.NoError(t, err)
	second, err := h.Dispatch(ctx, Submit{Service: model.ServiceCardiology, Symptoms: "palpitations", PatientName: "Ama"})
	require.NoError(t, err)

	assert.Equal(t, model.EventRequestSubmitted, first.Type)
	assert.Equal(t, "fever 2 days", first.Request.Symptoms)
	assert.Equal(t, "10/06/2024", first.Request.RequestDate)
	assert.Equal(t, model.UnassignedDoctor, first.Request.Doctor)
	assert.Nil(t, first.Request.Time)
	assert.Greater(t, second.Request.ID, first.Request.ID)

	reqs := h.Requests(ctx)
	require.Len(t, reqs, 2)

	legacy, ok := h.store.LegacyRequest(ctx)
	require.True(t, ok)
	assert.Equal(t, second.Request.ID, legacy.ID)
}

func TestSubmitSingleSlotKeepsLastRequest(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHub(t, Options{SingleSlot: true})

	for _, symptoms := range []string{"a", "b", "c"} {
		_, err := h.Dispatch(ctx, Submit{Service: model.ServiceGeneral, Symptoms: symptoms})
		require.NoError(t, err)
	}

	reqs := h.Requests(ctx)
	require.Len(t, reqs, 1)
	assert.Equal(t, "c", reqs[0].Symptoms)

	legacy, ok := h.store.LegacyRequest(ctx)
	require.True(t, ok)
	assert.Equal(t, "c", legacy.Symptoms)
}

func TestSubmitSingleSlotEventCarriesSnapshot(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHub(t, Options{SingleSlot: true})

	first, err := h.Dispatch(ctx, Submit{Service: model.ServiceGeneral, Symptoms: "a", PatientName: "Ama"})
	require.NoError(t, err)
	require.NotNil(t, first.Snapshot)

	second, err := h.Dispatch(ctx, Submit{Service: model.ServiceCardiology, Symptoms: "b", PatientName: "Kofi"})
	require.NoError(t, err)
	require.NotNil(t, second.Snapshot)
	require.Len(t, second.Snapshot.Requests, 1)
	assert.Equal(t, second.Request.ID, second.Snapshot.Requests[0].ID)

	_, found := second.Snapshot.Find(first.Request.ID)
	assert.False(t, found)
}

func TestSubmitKeyedModeEventHasNoSnapshot(t *testing.T) {
	h, _, _ := newTestHub(t, Options{})
	ev, err := h.Dispatch(context.Background(), Submit{Service: model.ServiceGeneral, Symptoms: "a"})
	require.NoError(t, err)
	assert.Nil(t, ev.Snapshot)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	h, kv, _ := newTestHub(t, Options{})

	_, err := h.Dispatch(ctx, Submit{Service: model.ServiceGeneral, Symptoms: "   "})
	assert.ErrorIs(t, err, ErrEmptySymptoms)

	_, err = h.Dispatch(ctx, Submit{Service: "Dentiste", Symptoms: "dent"})
	assert.ErrorIs(t, err, ErrUnknownService)

	items, err := kv.List(ctx, KeyRequestPrefix)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEmergencySubmitRaisesFlag(t *testing.T) {
	ctx := context.Background()
	h, kv, m := newTestHub(t, Options{})

	ev, err := h.Dispatch(ctx, Submit{Service: model.ServiceEmergency, Symptoms: "chest pain", PatientName: "Kofi"})
	require.NoError(t, err)
	assert.Equal(t, model.EventEmergencyRaised, ev.Type)
	assert.True(t, ev.Emergency.Active)
	assert.Equal(t, "Kofi", ev.Emergency.PatientName)

	raw, ok, err := kv.Get(ctx, KeyEmergencyActive)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "true", string(raw))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EmergencyActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PendingRequests))
}

func TestCancelKeepsUnrelatedEmergency(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHub(t, Options{})

	emergency, err := h.Dispatch(ctx, Submit{Service: model.ServiceEmergency, Symptoms: "bleeding", PatientName: "Kofi"})
	require.NoError(t, err)
	routine, err := h.Dispatch(ctx, Submit{Service: model.ServiceGeneral, Symptoms: "cough", PatientName: "Ama"})
	require.NoError(t, err)

	ev, err := h.Dispatch(ctx, Cancel{ID: routine.Request.ID})
	require.NoError(t, err)
	assert.Equal(t, model.EventRequestCancelled, ev.Type)
	assert.True(t, h.Emergency(ctx).Active)

	_, err = h.Dispatch(ctx, Cancel{ID: emergency.Request.ID})
	require.NoError(t, err)
	assert.False(t, h.Emergency(ctx).Active)
	assert.Empty(t, h.Requests(ctx))
}

func TestCancelMatchesEmergencyByRequest(t *testing.T) {
	ctx := context.Background()
	h, kv, _ := newTestHub(t, Options{})

	older, err := h.Dispatch(ctx, Submit{Service: model.ServiceEmergency, Symptoms: "bleeding", PatientName: "Kofi"})
	require.NoError(t, err)
	latest, err := h.Dispatch(ctx, Submit{Service: model.ServiceEmergency, Symptoms: "fainted", PatientName: "Kofi"})
	require.NoError(t, err)

	raw, ok, err := kv.Get(ctx, KeyEmergencyRequest)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(latest.Request.ID, 10), string(raw))

	_, err = h.Dispatch(ctx, Cancel{ID: older.Request.ID})
	require.NoError(t, err)
	assert.True(t, h.Emergency(ctx).Active)

	_, err = h.Dispatch(ctx, Cancel{ID: latest.Request.ID})
	require.NoError(t, err)
	assert.False(t, h.Emergency(ctx).Active)

	_, ok, err = kv.Get(ctx, KeyEmergencyRequest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelFallsBackToPatientNameWithoutRequestKey(t *testing.T) {
	ctx := context.Background()
	h, kv, _ := newTestHub(t, Options{})

	ev, err := h.Dispatch(ctx, Submit{Service: model.ServiceEmergency, Symptoms: "bleeding", PatientName: "Kofi"})
	require.NoError(t, err)
	require.NoError(t, kv.Remove(ctx, KeyEmergencyRequest))

	_, err = h.Dispatch(ctx, Cancel{ID: ev.Request.ID})
	require.NoError(t, err)
	assert.False(t, h.Emergency(ctx).Active)
}

func TestLegacyCancelClearsAnyEmergency(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHub(t, Options{LegacyCancelClearsEmergency: true})

	_, err := h.Dispatch(ctx, Submit{Service: model.ServiceEmergency, Symptoms: "bleeding", PatientName: "Kofi"})
	require.NoError(t, err)
	routine, err := h.Dispatch(ctx, Submit{Service: model.ServiceGeneral, Symptoms: "cough", PatientName: "Ama"})
	require.NoError(t, err)

	_, err = h.Dispatch(ctx, Cancel{ID: routine.Request.ID})
	require.NoError(t, err)
	assert.False(t, h.Emergency(ctx).Active)
}

func TestCancelUnknownRequest(t *testing.T) {
	h, _, _ := newTestHub(t, Options{})
	_, err := h.Dispatch(context.Background(), Cancel{ID: 42})
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHub(t, Options{LegacyMirror: true})

	submitted, err := h.Dispatch(ctx, Submit{Service: model.ServiceGeneral, Symptoms: "fever 2 days", PatientName: "Mensah Alain"})
	require.NoError(t, err)
	id := submitted.Request.ID

	_, err = h.Dispatch(ctx, Confirm{ID: id, Time: "12:00"})
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = h.Dispatch(ctx, Confirm{ID: id, Time: ""})
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = h.Dispatch(ctx, Confirm{ID: id + 99, Time: "09:00"})
	assert.ErrorIs(t, err, ErrRequestNotFound)

	ev, err := h.Dispatch(ctx, Confirm{ID: id, Time: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, model.EventRequestConfirmed, ev.Type)

	got, ok := h.Request(ctx, id)
	require.True(t, ok)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, "09:00", got.Slot())
	assert.Equal(t, "Dr. Kossi", got.Doctor)
	assert.Equal(t, "fever 2 days", got.Symptoms)
	assert.Equal(t, submitted.Request.RequestDate, got.RequestDate)

	legacy, ok := h.store.LegacyRequest(ctx)
	require.True(t, ok)
	assert.Equal(t, model.StatusConfirmed, legacy.Status)

	_, err = h.Dispatch(ctx, Confirm{ID: id, Time: "15:30", Doctor: "Dr. Afi"})
	require.NoError(t, err)
	got, _ = h.Request(ctx, id)
	assert.Equal(t, "15:30", got.Slot())
	assert.Equal(t, "Dr. Afi", got.Doctor)
}

func TestStopAlarmAndReset(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHub(t, Options{})

	_, err := h.Dispatch(ctx, Submit{Service: model.ServiceEmergency, Symptoms: "x", PatientName: "Kofi"})
	require.NoError(t, err)

	ev, err := h.Dispatch(ctx, StopAlarm{})
	require.NoError(t, err)
	assert.Equal(t, model.EventEmergencyCleared, ev.Type)
	assert.False(t, ev.Emergency.Active)
	assert.Len(t, h.Requests(ctx), 1)

	_, err = h.Dispatch(ctx, Submit{Service: model.ServiceEmergency, Symptoms: "y", PatientName: "Ama"})
	require.NoError(t, err)
	ev, err = h.Dispatch(ctx, Reset{})
	require.NoError(t, err)
	assert.Equal(t, model.EventStateReset, ev.Type)
	assert.Empty(t, h.Requests(ctx))
	assert.False(t, h.Emergency(ctx).Active)
}

func TestSubscribeReceivesSnapshotThenEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, _, m := newTestHub(t, Options{})

	rec := &recorder{}
	h.Subscribe(ctx, rec.add)

	_, err := h.Dispatch(context.Background(), Submit{Service: model.ServiceGeneral, Symptoms: "x"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ev, ok := rec.last()
		return ok && ev.Type == model.EventRequestSubmitted
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	assert.Equal(t, model.EventSnapshot, rec.events[0].Type)
	rec.mu.Unlock()

	cancel()
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Subscribers) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSlowSubscriberResyncsFromSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, _, m := newTestHub(t, Options{SubscriberBuffer: 1})

	release := make(chan struct{})
	rec := &recorder{}
	first := true
	h.Subscribe(ctx, func(ev model.StateEvent) {
		if first {
			first = false
			<-release
		}
		rec.add(ev)
	})

	for i := 0; i < 5; i++ {
		_, err := h.Dispatch(context.Background(), Submit{Service: model.ServiceGeneral, Symptoms: "x"})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.EventsDropped), float64(1))
	close(release)

	require.Eventually(t, func() bool {
		ev, ok := rec.last()
		return ok && ev.Type == model.EventSnapshot && ev.Snapshot != nil && len(ev.Snapshot.Requests) == 5
	}, time.Second, 5*time.Millisecond)
}

func TestRelayAcrossInstances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := messaging.NewMemoryBroker(16)
	kv := memory.NewKVStore(0)
	a, _, _ := newHubOn(t, kv, Options{Broker: broker, InstanceID: "a"})
	b, _, _ := newHubOn(t, kv, Options{Broker: broker, InstanceID: "b"})
	go a.Run(ctx)
	go b.Run(ctx)

	rec := &recorder{}
	b.Subscribe(ctx, rec.add)

	require.Eventually(t, func() bool {
		if _, err := a.Dispatch(ctx, StopAlarm{}); err != nil {
			return false
		}
		return rec.has(func(ev model.StateEvent) bool {
			return ev.Origin == "a" && ev.Type == model.EventEmergencyCleared
		})
	}, 2*time.Second, 20*time.Millisecond)

	assert.False(t, rec.has(func(ev model.StateEvent) bool {
		return ev.Origin == "b" && ev.Type != model.EventSnapshot
	}))
}

func TestPurgeRemovesOldConfirmedOnly(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHub(t, Options{})

	old, err := h.Dispatch(ctx, Submit{Service: model.ServiceGeneral, Symptoms: "old"})
	require.NoError(t, err)
	pending, err := h.Dispatch(ctx, Submit{Service: model.ServiceGeneral, Symptoms: "pending"})
	require.NoError(t, err)
	_, err = h.Dispatch(ctx, Confirm{ID: old.Request.ID, Time: "08:00"})
	require.NoError(t, err)

	ev, err := h.Dispatch(ctx, Purge{Before: h.now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, model.EventRequestsPurged, ev.Type)
	assert.Equal(t, 1, ev.Purged)

	reqs := h.Requests(ctx)
	require.Len(t, reqs, 1)
	assert.Equal(t, pending.Request.ID, reqs[0].ID)
}
