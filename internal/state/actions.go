package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-sync/internal/model"
)

var (
	ErrEmptySymptoms   = errors.New("symptoms must not be empty")
	ErrUnknownService  = errors.New("unknown service")
	ErrRequestNotFound = errors.New("request not found")
	ErrInvalidSlot     = errors.New("time slot not offered")
)

// Action is one change applied by Hub.Dispatch.
type Action interface {
	Name() string
	apply(ctx context.Context, h *Hub) (model.StateEvent, error)
}

// Submit creates a pending request. An emergency service also raises the flag.
type Submit struct {
	Service     model.ServiceType
	Symptoms    string
	PatientName string
}

func (Submit) Name() string { return "submit" }

func (a Submit) apply(ctx context.Context, h *Hub) (model.StateEvent, error) {
	symptoms := strings.TrimSpace(a.Symptoms)
	if symptoms == "" {
		return model.StateEvent{}, ErrEmptySymptoms
	}
	if !a.Service.Valid() {
		return model.StateEvent{}, fmt.Errorf("%w: %q", ErrUnknownService, a.Service)
	}

	now := h.now()
	req := model.AppointmentRequest{
		ID:          h.nextID(now),
		PatientName: strings.TrimSpace(a.PatientName),
		Symptoms:    symptoms,
		Service:     a.Service,
		Status:      model.StatusPending,
		RequestDate: now.Format(model.DateLayout),
		Doctor:      model.UnassignedDoctor,
	}

	if h.opts.SingleSlot {
		if err := h.store.DeleteAllRequests(ctx); err != nil {
			return model.StateEvent{}, fmt.Errorf("failed to clear previous requests: %w", err)
		}
	}
	if err := h.store.PutRequest(ctx, req, h.opts.LegacyMirror || h.opts.SingleSlot); err != nil {
		return model.StateEvent{}, fmt.Errorf("failed to store request: %w", err)
	}

	eventType := model.EventRequestSubmitted
	if req.IsEmergency() {
		if err := h.store.SetEmergency(ctx, req.PatientName, req.ID); err != nil {
			return model.StateEvent{}, fmt.Errorf("failed to raise emergency: %w", err)
		}
		eventType = model.EventEmergencyRaised
	}

	ev := h.event(ctx, eventType, &req)
	if h.opts.SingleSlot {
		// replaced requests are gone; subscribers rebuild from the snapshot
		snap := h.store.Snapshot(ctx)
		ev.Snapshot = &snap
	}
	return ev, nil
}

// Cancel removes a request. The emergency flag is cleared only when it was
// raised by this request, unless LegacyCancelClearsEmergency is set.
type Cancel struct {
	ID int64
}

func (Cancel) Name() string { return "cancel" }

func (a Cancel) apply(ctx context.Context, h *Hub) (model.StateEvent, error) {
	req, ok := h.store.Request(ctx, a.ID)
	if !ok {
		return model.StateEvent{}, ErrRequestNotFound
	}
	if err := h.store.DeleteRequest(ctx, a.ID); err != nil {
		return model.StateEvent{}, fmt.Errorf("failed to remove request: %w", err)
	}

	clearFlag := h.opts.LegacyCancelClearsEmergency
	if !clearFlag && req.IsEmergency() {
		flag := h.store.Emergency(ctx)
		if raisedBy, ok := h.store.EmergencyRequestID(ctx); ok {
			clearFlag = flag.Active && raisedBy == req.ID
		} else {
			// flag written without a request id
			clearFlag = flag.Active && flag.PatientName == req.PatientName
		}
	}
	if clearFlag {
		if err := h.store.ClearEmergency(ctx); err != nil {
			return model.StateEvent{}, fmt.Errorf("failed to clear emergency: %w", err)
		}
	}

	return h.event(ctx, model.EventRequestCancelled, &req), nil
}

// Confirm books a slot. Confirming a confirmed request reschedules it.
type Confirm struct {
	ID     int64
	Time   string
	Doctor string
}

func (Confirm) Name() string { return "confirm" }

func (a Confirm) apply(ctx context.Context, h *Hub) (model.StateEvent, error) {
	slot := strings.TrimSpace(a.Time)
	if !h.SlotOffered(slot) {
		return model.StateEvent{}, fmt.Errorf("%w: %q", ErrInvalidSlot, a.Time)
	}

	req, ok := h.store.Request(ctx, a.ID)
	if !ok {
		return model.StateEvent{}, ErrRequestNotFound
	}

	doctor := strings.TrimSpace(a.Doctor)
	if doctor == "" {
		doctor = h.opts.DoctorName
	}
	req.Status = model.StatusConfirmed
	req.Time = &slot
	req.Doctor = doctor

	mirror := h.opts.SingleSlot
	if !mirror && h.opts.LegacyMirror {
		legacy, ok := h.store.LegacyRequest(ctx)
		mirror = ok && legacy.ID == req.ID
	}
	if err := h.store.PutRequest(ctx, req, mirror); err != nil {
		return model.StateEvent{}, fmt.Errorf("failed to store confirmation: %w", err)
	}

	return h.event(ctx, model.EventRequestConfirmed, &req), nil
}

// StopAlarm clears the emergency flag for every observer.
type StopAlarm struct{}

func (StopAlarm) Name() string { return "stop_alarm" }

func (StopAlarm) apply(ctx context.Context, h *Hub) (model.StateEvent, error) {
	if err := h.store.ClearEmergency(ctx); err != nil {
		return model.StateEvent{}, fmt.Errorf("failed to clear emergency: %w", err)
	}
	return h.event(ctx, model.EventEmergencyCleared, nil), nil
}

// Reset removes every request and the emergency flag.
type Reset struct{}

func (Reset) Name() string { return "reset" }

func (Reset) apply(ctx context.Context, h *Hub) (model.StateEvent, error) {
	if err := h.store.Reset(ctx); err != nil {
		return model.StateEvent{}, fmt.Errorf("failed to reset state: %w", err)
	}
	ev := h.event(ctx, model.EventStateReset, nil)
	ev.Snapshot = &model.Snapshot{Requests: []model.AppointmentRequest{}}
	return ev, nil
}

// Purge removes confirmed requests created before Before. Pending requests
// are never purged.
type Purge struct {
	Before time.Time
}

func (Purge) Name() string { return "purge" }

func (a Purge) apply(ctx context.Context, h *Hub) (model.StateEvent, error) {
	cutoff := a.Before.UnixMilli()
	var removed int
	for _, req := range h.store.Requests(ctx) {
		if req.Status != model.StatusConfirmed || req.ID >= cutoff {
			continue
		}
		if err := h.store.DeleteRequest(ctx, req.ID); err != nil {
			return model.StateEvent{}, fmt.Errorf("failed to purge request %d: %w", req.ID, err)
		}
		removed++
	}

	ev := h.event(ctx, model.EventRequestsPurged, nil)
	snap := h.store.Snapshot(ctx)
	ev.Snapshot = &snap
	ev.Purged = removed
	return ev, nil
}
