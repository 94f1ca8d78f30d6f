package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-sync/internal/config"
	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
	"github.com/jwalitptl/clinic-sync/pkg/messaging"
	"github.com/jwalitptl/clinic-sync/pkg/metrics"
	"github.com/jwalitptl/clinic-sync/pkg/worker"
)

const relayBuffer = 256

type Options struct {
	SingleSlot                  bool
	LegacyMirror                bool
	LegacyCancelClearsEmergency bool
	DoctorName                  string
	Slots                       []string
	SubscriberBuffer            int
	// InstanceID tags relayed events so an instance ignores its own echo.
	InstanceID string
	// Broker relays events to other instances. Nil keeps the hub process-local.
	Broker messaging.Broker
}

func OptionsFromConfig(cfg config.StateConfig) Options {
	return Options{
		SingleSlot:                  cfg.SingleSlot,
		LegacyMirror:                cfg.LegacyMirror,
		LegacyCancelClearsEmergency: cfg.LegacyCancelClearsEmergency,
		DoctorName:                  cfg.DoctorName,
		Slots:                       cfg.Slots,
		SubscriberBuffer:            cfg.SubscriberBuffer,
	}
}

type subscriber struct {
	ch     chan model.StateEvent
	resync chan struct{}
}

// Hub owns the shared state. Dispatch applies actions one at a time and
// fans the resulting events out to subscribers and the broker.
type Hub struct {
	store   *Store
	opts    Options
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.Mutex
	lastID int64

	subMu sync.RWMutex
	subs  map[*subscriber]struct{}

	relay chan model.StateEvent
}

func NewHub(store *Store, opts Options, log *logger.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 64
	}
	if opts.InstanceID == "" {
		opts.InstanceID = uuid.NewString()
	}
	if opts.DoctorName == "" {
		opts.DoctorName = "Dr. Kossi"
	}

	h := &Hub{
		store:   store,
		opts:    opts,
		logger:  log.With("component", "state_hub"),
		metrics: m,
		now:     time.Now,
		subs:    make(map[*subscriber]struct{}),
	}
	if opts.Broker != nil {
		h.relay = make(chan model.StateEvent, relayBuffer)
	}
	return h
}

func (h *Hub) InstanceID() string { return h.opts.InstanceID }

func (h *Hub) DoctorName() string { return h.opts.DoctorName }

// Slots returns the bookable time slots.
func (h *Hub) Slots() []string {
	out := make([]string, len(h.opts.Slots))
	copy(out, h.opts.Slots)
	return out
}

func (h *Hub) SlotOffered(slot string) bool {
	for _, s := range h.opts.Slots {
		if s == slot {
			return true
		}
	}
	return false
}

func (h *Hub) Ping(ctx context.Context) error {
	return h.store.Ping(ctx)
}

func (h *Hub) Request(ctx context.Context, id int64) (model.AppointmentRequest, bool) {
	return h.store.Request(ctx, id)
}

func (h *Hub) Requests(ctx context.Context) []model.AppointmentRequest {
	return h.store.Requests(ctx)
}

func (h *Hub) Emergency(ctx context.Context) model.EmergencyFlag {
	return h.store.Emergency(ctx)
}

// Snapshot reads the full state between two dispatches.
func (h *Hub) Snapshot(ctx context.Context) model.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Snapshot(ctx)
}

// Dispatch applies action and publishes the resulting event.
func (h *Hub) Dispatch(ctx context.Context, action Action) (model.StateEvent, error) {
	start := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	ev, err := action.apply(ctx, h)
	h.observe(ctx, action.Name(), start, err)
	if err != nil {
		return model.StateEvent{}, err
	}

	h.logger.Debug("state action applied", "action", action.Name(), "event", ev.Type)
	h.deliver(ev)
	h.enqueueRelay(ev)
	return ev, nil
}

func (h *Hub) observe(ctx context.Context, action string, start time.Time, err error) {
	if h.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	h.metrics.ActionsDispatched.WithLabelValues(action, status).Inc()
	h.metrics.DispatchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return
	}

	snap := h.store.Snapshot(ctx)
	h.metrics.PendingRequests.Set(float64(len(snap.Pending())))
	if snap.Emergency.Active {
		h.metrics.EmergencyActive.Set(1)
	} else {
		h.metrics.EmergencyActive.Set(0)
	}
}

// nextID returns a millisecond timestamp, bumped so ids strictly increase.
func (h *Hub) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= h.lastID {
		id = h.lastID + 1
	}
	h.lastID = id
	return id
}

func (h *Hub) event(ctx context.Context, t model.EventType, req *model.AppointmentRequest) model.StateEvent {
	return model.StateEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Request:   req,
		Emergency: h.store.Emergency(ctx),
		Origin:    h.opts.InstanceID,
		Timestamp: h.now(),
	}
}

func (h *Hub) snapshotEvent(ctx context.Context) model.StateEvent {
	snap := h.Snapshot(ctx)
	return model.StateEvent{
		ID:        uuid.NewString(),
		Type:      model.EventSnapshot,
		Emergency: snap.Emergency,
		Snapshot:  &snap,
		Origin:    h.opts.InstanceID,
		Timestamp: h.now(),
	}
}

// Subscribe calls fn with a snapshot and then with every event until ctx is
// done. fn runs on its own goroutine; a subscriber that falls behind loses
// the queued events and receives a fresh snapshot instead.
func (h *Hub) Subscribe(ctx context.Context, fn func(model.StateEvent)) {
	sub := &subscriber{
		ch:     make(chan model.StateEvent, h.opts.SubscriberBuffer),
		resync: make(chan struct{}, 1),
	}

	h.subMu.Lock()
	h.subs[sub] = struct{}{}
	h.subMu.Unlock()
	if h.metrics != nil {
		h.metrics.Subscribers.Inc()
	}

	go func() {
		defer h.unsubscribe(sub)

		fn(h.snapshotEvent(ctx))
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-sub.ch:
				fn(ev)
			case <-sub.resync:
				drain(sub.ch)
				if ctx.Err() != nil {
					return
				}
				fn(h.snapshotEvent(ctx))
			}
		}
	}()
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.subMu.Lock()
	delete(h.subs, sub)
	h.subMu.Unlock()
	if h.metrics != nil {
		h.metrics.Subscribers.Dec()
	}
}

func drain(ch chan model.StateEvent) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// deliver never blocks on a slow subscriber.
func (h *Hub) deliver(ev model.StateEvent) {
	h.subMu.RLock()
	defer h.subMu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			if h.metrics != nil {
				h.metrics.EventsDropped.Inc()
			}
			select {
			case sub.resync <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Hub) enqueueRelay(ev model.StateEvent) {
	if h.relay == nil {
		return
	}
	select {
	case h.relay <- ev:
	default:
		if h.metrics != nil {
			h.metrics.BrokerPublishErr.Inc()
		}
		h.logger.Warn("relay queue full, event not forwarded", "event_id", ev.ID)
	}
}

// Run relays local events to the broker and applies events published by
// other instances until ctx is done. Without a broker it only waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.opts.Broker == nil {
		<-ctx.Done()
		return nil
	}

	msgs, err := h.opts.Broker.Subscribe(ctx, messaging.ChannelStateEvents)
	if err != nil {
		return fmt.Errorf("failed to subscribe to state events: %w", err)
	}

	retry := worker.RetryConfig{Attempts: 3, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-h.relay:
			err := worker.Retry(ctx, retry, func() error {
				return h.opts.Broker.Publish(ctx, messaging.ChannelStateEvents, ev)
			})
			if err != nil {
				if h.metrics != nil {
					h.metrics.BrokerPublishErr.Inc()
				}
				h.logger.Error(err, "failed to relay state event", "event_id", ev.ID)
			}
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			h.applyRemote(raw)
		}
	}
}

func (h *Hub) applyRemote(raw []byte) {
	var ev model.StateEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		h.logger.Error(err, "dropping undecodable state event")
		return
	}
	if ev.Origin == h.opts.InstanceID {
		return
	}
	h.deliver(ev)
}
