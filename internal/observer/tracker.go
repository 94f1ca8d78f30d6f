package observer

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/pkg/worker"
)

type TrackerStatus string

const (
	TrackIdle      TrackerStatus = "idle"
	TrackPending   TrackerStatus = "pending"
	TrackConfirmed TrackerStatus = "confirmed"
)

// Tracker follows one request for the patient view.
type Tracker struct {
	id     int64
	source Source

	// OnChange receives the request each time its status changes. It gets a
	// zero request when the request disappears.
	OnChange func(status TrackerStatus, req model.AppointmentRequest)

	mu     sync.Mutex
	status TrackerStatus
	req    model.AppointmentRequest
}

func NewTracker(source Source, requestID int64) *Tracker {
	return &Tracker{id: requestID, source: source, status: TrackIdle}
}

func (t *Tracker) Watch(ctx context.Context) {
	t.source.Subscribe(ctx, t.Handle)
}

func (t *Tracker) Poll(ctx context.Context, interval time.Duration) {
	worker.Every(ctx, interval, func(ctx context.Context) error {
		t.apply(t.source.Snapshot(ctx))
		return nil
	}, nil)
}

func (t *Tracker) Handle(ev model.StateEvent) {
	if ev.Snapshot != nil {
		t.apply(*ev.Snapshot)
		return
	}
	if ev.Request == nil || ev.Request.ID != t.id {
		return
	}
	if ev.Type == model.EventRequestCancelled {
		t.set(model.AppointmentRequest{}, false)
		return
	}
	t.set(*ev.Request, true)
}

func (t *Tracker) apply(snap model.Snapshot) {
	req, ok := snap.Find(t.id)
	t.set(req, ok)
}

func (t *Tracker) set(req model.AppointmentRequest, present bool) {
	status := TrackIdle
	if present {
		status = TrackPending
		if req.Status == model.StatusConfirmed {
			status = TrackConfirmed
		}
	}

	t.mu.Lock()
	changed := status != t.status || req.Slot() != t.req.Slot() || req.Doctor != t.req.Doctor
	t.status = status
	t.req = req
	onChange := t.OnChange
	t.mu.Unlock()

	if changed && onChange != nil {
		onChange(status, req)
	}
}

// Status returns the tracked status with the confirmed slot and doctor.
func (t *Tracker) Status() (status TrackerStatus, slot, doctor string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TrackConfirmed {
		return t.status, "", ""
	}
	return t.status, t.req.Slot(), t.req.Doctor
}
