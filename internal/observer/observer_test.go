package observer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository/memory"
	"github.com/jwalitptl/clinic-sync/internal/state"
)

const waitFor = time.Second

type fakeAlarm struct {
	mu      sync.Mutex
	running bool
	patient string
	starts  int
}

func (a *fakeAlarm) Start(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = true
	a.patient = name
	a.starts++
}

func (a *fakeAlarm) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
}

func (a *fakeAlarm) isRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func newHub() *state.Hub {
	slots := []string{"09:00", "10:30"}
	return state.NewHub(state.NewStore(memory.NewKVStore(0), nil, nil), state.Options{Slots: slots, DoctorName: "Dr. Kossi"}, nil, nil)
}

func TestEmergencyReachesObserver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := newHub()

	alarm := &fakeAlarm{}
	doctor := New("doctor", hub, alarm, nil)
	var alerted atomic.Value
	doctor.OnAlert = func(name string) { alerted.Store(name) }
	doctor.Watch(ctx)

	_, err := hub.Dispatch(ctx, state.Submit{Service: model.ServiceEmergency, Symptoms: "malaise", PatientName: "Kofi"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return doctor.Phase() == EmergencyActive }, waitFor, 5*time.Millisecond)
	name, active := doctor.Emergency()
	assert.True(t, active)
	assert.Equal(t, "Kofi", name)
	assert.True(t, alarm.isRunning())
	assert.Equal(t, "Kofi", alerted.Load())
}

func TestEmergencyWithoutNameReadsUnknown(t *testing.T) {
	doctor := New("doctor", newHub(), nil, nil)
	doctor.Apply(model.Snapshot{Emergency: model.EmergencyFlag{Active: true}})

	name, active := doctor.Emergency()
	assert.True(t, active)
	assert.Equal(t, model.UnknownPatient, name)
}

func TestStopAlarmResetsEveryObserver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := newHub()

	doctorAlarm, adminAlarm := &fakeAlarm{}, &fakeAlarm{}
	doctor := New("doctor", hub, doctorAlarm, nil)
	admin := New("admin", hub, adminAlarm, nil)
	doctor.Watch(ctx)
	go admin.Poll(ctx, 10*time.Millisecond)

	_, err := hub.Dispatch(ctx, state.Submit{Service: model.ServiceEmergency, Symptoms: "x", PatientName: "Kofi"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return doctor.Phase() == EmergencyActive && admin.Phase() == EmergencyActive
	}, waitFor, 5*time.Millisecond)

	require.NoError(t, doctor.StopAlarm(ctx))

	// the emergency request itself is still pending
	require.Eventually(t, func() bool {
		return doctor.Phase() == PendingSeen && admin.Phase() == PendingSeen
	}, waitFor, 5*time.Millisecond)
	assert.False(t, doctorAlarm.isRunning())
	assert.False(t, adminAlarm.isRunning())
	assert.Equal(t, 1, doctorAlarm.starts)
}

func TestPendingThenConfirmed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := newHub()

	doctor := New("doctor", hub, nil, nil)
	doctor.Watch(ctx)

	ev, err := hub.Dispatch(ctx, state.Submit{Service: model.ServiceGeneral, Symptoms: "fever 2 days"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return doctor.Phase() == PendingSeen }, waitFor, 5*time.Millisecond)
	assert.Len(t, doctor.Pending(), 1)

	_, err = hub.Dispatch(ctx, state.Confirm{ID: ev.Request.ID, Time: "09:00"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return doctor.Phase() == Idle }, waitFor, 5*time.Millisecond)
	assert.Empty(t, doctor.Pending())
}

func TestSingleSlotReplacementReachesViews(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := state.NewHub(state.NewStore(memory.NewKVStore(0), nil, nil), state.Options{
		SingleSlot: true,
		Slots:      []string{"09:00", "10:30"},
		DoctorName: "Dr. Kossi",
	}, nil, nil)

	first, err := hub.Dispatch(ctx, state.Submit{Service: model.ServiceGeneral, Symptoms: "fever", PatientName: "Ama"})
	require.NoError(t, err)

	doctor := New("doctor", hub, nil, nil)
	doctor.Watch(ctx)
	tracker := NewTracker(hub, first.Request.ID)
	tracker.Watch(ctx)
	require.Eventually(t, func() bool {
		status, _, _ := tracker.Status()
		return status == TrackPending && len(doctor.Pending()) == 1
	}, waitFor, 5*time.Millisecond)

	second, err := hub.Dispatch(ctx, state.Submit{Service: model.ServiceCardiology, Symptoms: "palpitations", PatientName: "Kofi"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		pending := doctor.Pending()
		return len(pending) == 1 && pending[0].ID == second.Request.ID
	}, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		status, _, _ := tracker.Status()
		return status == TrackIdle
	}, waitFor, 5*time.Millisecond)

	_, err = hub.Dispatch(ctx, state.Confirm{ID: doctor.Pending()[0].ID, Time: "09:00"})
	require.NoError(t, err)
}

func TestWatchStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := newHub()

	doctor := New("doctor", hub, nil, nil)
	doctor.Watch(ctx)
	cancel()
	time.Sleep(20 * time.Millisecond)

	_, err := hub.Dispatch(context.Background(), state.Submit{Service: model.ServiceEmergency, Symptoms: "x"})
	require.NoError(t, err)
	assert.Never(t, func() bool { return doctor.Phase() == EmergencyActive }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestTrackerReportsConfirmation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := newHub()

	ev, err := hub.Dispatch(ctx, state.Submit{Service: model.ServiceGeneral, Symptoms: "x", PatientName: "Mensah Alain"})
	require.NoError(t, err)

	tracker := NewTracker(hub, ev.Request.ID)
	changes := make(chan TrackerStatus, 8)
	tracker.OnChange = func(status TrackerStatus, _ model.AppointmentRequest) { changes <- status }
	tracker.Watch(ctx)

	require.Equal(t, TrackPending, <-changes)

	_, err = hub.Dispatch(ctx, state.Confirm{ID: ev.Request.ID, Time: "10:30"})
	require.NoError(t, err)

	select {
	case status := <-changes:
		assert.Equal(t, TrackConfirmed, status)
	case <-time.After(waitFor):
		t.Fatal("tracker did not see the confirmation")
	}
	status, slot, doctor := tracker.Status()
	assert.Equal(t, TrackConfirmed, status)
	assert.Equal(t, "10:30", slot)
	assert.Equal(t, "Dr. Kossi", doctor)

	_, err = hub.Dispatch(ctx, state.Cancel{ID: ev.Request.ID})
	require.NoError(t, err)
	select {
	case status := <-changes:
		assert.Equal(t, TrackIdle, status)
	case <-time.After(waitFor):
		t.Fatal("tracker did not see the cancellation")
	}
}

func TestTrackerPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := newHub()

	ev, err := hub.Dispatch(ctx, state.Submit{Service: model.ServiceGeneral, Symptoms: "x"})
	require.NoError(t, err)

	tracker := NewTracker(hub, ev.Request.ID)
	go tracker.Poll(ctx, 10*time.Millisecond)

	_, err = hub.Dispatch(ctx, state.Confirm{ID: ev.Request.ID, Time: "09:00"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		status, slot, _ := tracker.Status()
		return status == TrackConfirmed && slot == "09:00"
	}, waitFor, 5*time.Millisecond)
}

func TestLoopingAlarm(t *testing.T) {
	var rings atomic.Int32
	alarm := NewLoopingAlarm(5*time.Millisecond, func(string) { rings.Add(1) })

	alarm.Start("Kofi")
	alarm.Start("Kofi")
	require.Eventually(t, func() bool { return rings.Load() >= 3 }, waitFor, time.Millisecond)
	assert.True(t, alarm.Running())

	alarm.Stop()
	assert.False(t, alarm.Running())
	after := rings.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, rings.Load(), after+1)
}
