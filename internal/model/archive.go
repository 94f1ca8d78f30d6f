package model

import "time"

// ArchivedRequest is one state event persisted by the worker. Symptoms are
// stored sealed.
type ArchivedRequest struct {
	ID          int64     `json:"id" db:"id"`
	RequestID   int64     `json:"requestId" db:"request_id"`
	EventType   EventType `json:"eventType" db:"event_type"`
	PatientName string    `json:"patientName" db:"patient_name"`
	Symptoms    string    `json:"symptoms" db:"symptoms"`
	Service     string    `json:"service" db:"service"`
	Status      string    `json:"status" db:"status"`
	Doctor      string    `json:"doctor" db:"doctor"`
	Slot        *string   `json:"time" db:"slot"`
	RecordedAt  time.Time `json:"recordedAt" db:"recorded_at"`
}
