package model

import (
	"strings"
)

// DateLayout is the display format of request dates.
const DateLayout = "02/01/2006"

// ServiceType is the clinical service an appointment request targets.
type ServiceType string

const (
	ServiceGeneral       ServiceType = "Generaliste"
	ServiceCardiology    ServiceType = "Cardiologie"
	ServicePediatrics    ServiceType = "Pediatrie"
	ServiceEmergency     ServiceType = "Urgence"
	ServiceOphthalmology ServiceType = "Ophtalmologie"
	ServiceGynecology    ServiceType = "Gynecologie"
)

var serviceLabels = map[ServiceType]string{
	ServiceGeneral:       "Généraliste",
	ServiceCardiology:    "Cardiologie",
	ServicePediatrics:    "Pédiatrie",
	ServiceEmergency:     "Urgence",
	ServiceOphthalmology: "Ophtalmologie",
	ServiceGynecology:    "Gynécologie",
}

// Services lists every service in display order.
func Services() []ServiceType {
	return []ServiceType{
		ServiceGeneral,
		ServiceCardiology,
		ServicePediatrics,
		ServiceEmergency,
		ServiceOphthalmology,
		ServiceGynecology,
	}
}

func (s ServiceType) Valid() bool {
	_, ok := serviceLabels[s]
	return ok
}

// Label returns the display label, "Général" for unknown services.
func (s ServiceType) Label() string {
	if l, ok := serviceLabels[s]; ok {
		return l
	}
	return "Général"
}

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusConfirmed RequestStatus = "confirmed"
)

func (s RequestStatus) Valid() bool {
	return s == StatusPending || s == StatusConfirmed
}

const (
	UnassignedDoctor = "Non assigné"
	UnknownPatient   = "Inconnu"
)

// AppointmentRequest is the record shared between patient and staff views.
// The JSON shape is read by existing dashboards and must not change.
type AppointmentRequest struct {
	ID          int64         `json:"id"`
	PatientName string        `json:"patientName"`
	Symptoms    string        `json:"symptoms"`
	Service     ServiceType   `json:"service"`
	Status      RequestStatus `json:"status"`
	RequestDate string        `json:"requestDate"`
	Doctor      string        `json:"doctor"`
	Time        *string       `json:"time"`
}

func (r *AppointmentRequest) IsEmergency() bool {
	return r.Service == ServiceEmergency
}

func (r *AppointmentRequest) IsPending() bool {
	return r.Status == StatusPending
}

// Slot returns the confirmed time or "".
func (r *AppointmentRequest) Slot() string {
	if r.Time == nil {
		return ""
	}
	return *r.Time
}

// EmergencyFlag raises the alarm on every staff dashboard.
type EmergencyFlag struct {
	Active      bool   `json:"active"`
	PatientName string `json:"patientName"`
}

// DisplayName falls back to "Inconnu" when the flag carries no name.
func (f EmergencyFlag) DisplayName() string {
	if strings.TrimSpace(f.PatientName) == "" {
		return UnknownPatient
	}
	return f.PatientName
}

// Snapshot is the full shared state at one point in time.
type Snapshot struct {
	Requests  []AppointmentRequest `json:"requests"`
	Emergency EmergencyFlag        `json:"emergency"`
}

// Pending returns the pending requests of the snapshot.
func (s Snapshot) Pending() []AppointmentRequest {
	out := make([]AppointmentRequest, 0, len(s.Requests))
	for _, r := range s.Requests {
		if r.IsPending() {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the request with id, if present.
func (s Snapshot) Find(id int64) (AppointmentRequest, bool) {
	for _, r := range s.Requests {
		if r.ID == id {
			return r, true
		}
	}
	return AppointmentRequest{}, false
}

type SubmitRequestInput struct {
	Service     ServiceType `json:"service" binding:"required,clinic_service"`
	Symptoms    string      `json:"symptoms" binding:"required"`
	PatientName string      `json:"patientName"`
}

type ConfirmRequestInput struct {
	Time   string `json:"time" binding:"required,clinic_slot"`
	Doctor string `json:"doctor"`
}
