package observer

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/state"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
	"github.com/jwalitptl/clinic-sync/pkg/worker"
)

type Phase string

const (
	Idle            Phase = "idle"
	PendingSeen     Phase = "pending_seen"
	EmergencyActive Phase = "emergency_active"
)

// Source is the shared state an observer watches.
type Source interface {
	Subscribe(ctx context.Context, fn func(model.StateEvent))
	Snapshot(ctx context.Context) model.Snapshot
	Dispatch(ctx context.Context, action state.Action) (model.StateEvent, error)
}

// Observer mirrors the shared state for one staff dashboard.
type Observer struct {
	name   string
	source Source
	alarm  Alarm
	logger *logger.Logger

	// OnAlert is called once per emergency with the patient display name.
	// It must not call back into the observer.
	OnAlert func(patientName string)

	mu        sync.Mutex
	phase     Phase
	emergency bool
	patient   string
	pending   map[int64]model.AppointmentRequest
}

func New(name string, source Source, alarm Alarm, log *logger.Logger) *Observer {
	if log == nil {
		log = logger.Nop()
	}
	return &Observer{
		name:    name,
		source:  source,
		alarm:   alarm,
		logger:  log.With("observer", name),
		phase:   Idle,
		pending: make(map[int64]model.AppointmentRequest),
	}
}

// Watch applies pushed events until ctx is done. It returns immediately.
func (o *Observer) Watch(ctx context.Context) {
	o.source.Subscribe(ctx, o.Handle)
}

// Poll reads a snapshot every interval until ctx is done. It blocks.
func (o *Observer) Poll(ctx context.Context, interval time.Duration) {
	worker.Every(ctx, interval, func(ctx context.Context) error {
		o.Apply(o.source.Snapshot(ctx))
		return nil
	}, nil)
}

// StopAlarm clears the shared flag. Every observer, this one included, goes
// back to idle when it sees the change.
func (o *Observer) StopAlarm(ctx context.Context) error {
	_, err := o.source.Dispatch(ctx, state.StopAlarm{})
	return err
}

// Apply replaces the local view with a full snapshot.
func (o *Observer) Apply(snap model.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = make(map[int64]model.AppointmentRequest)
	for _, r := range snap.Pending() {
		o.pending[r.ID] = r
	}
	o.transition(snap.Emergency)
}

// Handle applies one event.
func (o *Observer) Handle(ev model.StateEvent) {
	if ev.Snapshot != nil {
		o.Apply(*ev.Snapshot)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if r := ev.Request; r != nil {
		switch ev.Type {
		case model.EventRequestSubmitted, model.EventEmergencyRaised:
			o.pending[r.ID] = *r
		case model.EventRequestCancelled, model.EventRequestConfirmed:
			delete(o.pending, r.ID)
		}
	}
	o.transition(ev.Emergency)
}

// transition runs with mu held.
func (o *Observer) transition(flag model.EmergencyFlag) {
	switch {
	case flag.Active && !o.emergency:
		o.emergency = true
		o.patient = flag.DisplayName()
		o.logger.Warn("emergency alert", "patient", o.patient)
		if o.alarm != nil {
			o.alarm.Start(o.patient)
		}
		if o.OnAlert != nil {
			o.OnAlert(o.patient)
		}
	case !flag.Active && o.emergency:
		o.emergency = false
		o.patient = ""
		if o.alarm != nil {
			o.alarm.Stop()
		}
		o.logger.Info("emergency cleared")
	}

	switch {
	case o.emergency:
		o.phase = EmergencyActive
	case len(o.pending) > 0:
		o.phase = PendingSeen
	default:
		o.phase = Idle
	}
}

func (o *Observer) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Emergency returns the patient of the active emergency.
func (o *Observer) Emergency() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.patient, o.emergency
}

func (o *Observer) Pending() []model.AppointmentRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.AppointmentRequest, 0, len(o.pending))
	for _, r := range o.pending {
		out = append(out, r)
	}
	return out
}
