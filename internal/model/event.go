package model

import "time"

type EventType string

const (
	EventRequestSubmitted EventType = "request.submitted"
	EventRequestCancelled EventType = "request.cancelled"
	EventRequestConfirmed EventType = "request.confirmed"
	EventEmergencyRaised  EventType = "emergency.raised"
	EventEmergencyCleared EventType = "emergency.cleared"
	EventStateReset       EventType = "state.reset"
	EventRequestsPurged   EventType = "requests.purged"
	// EventSnapshot is sent to a subscriber on connect and after it fell behind.
	EventSnapshot EventType = "state.snapshot"
)

// StateEvent describes one applied change to the shared state.
type StateEvent struct {
	ID        string              `json:"id"`
	Type      EventType           `json:"type"`
	Request   *AppointmentRequest `json:"request,omitempty"`
	Emergency EmergencyFlag       `json:"emergency"`
	Snapshot  *Snapshot           `json:"snapshot,omitempty"`
	Purged    int                 `json:"purged,omitempty"`
	Origin    string              `json:"origin"`
	Timestamp time.Time           `json:"timestamp"`
}
