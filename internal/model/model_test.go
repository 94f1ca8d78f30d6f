package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentRequestJSONShape(t *testing.T) {
	req := AppointmentRequest{
		ID:          1700000000000,
		PatientName: "Mensah Alain",
		Symptoms:    "fever 2 days",
		Service:     ServiceGeneral,
		Status:      StatusPending,
		RequestDate: "14/11/2023",
		Doctor:      UnassignedDoctor,
	}

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 1700000000000,
		"patientName": "Mensah Alain",
		"symptoms": "fever 2 days",
		"service": "Generaliste",
		"status": "pending",
		"requestDate": "14/11/2023",
		"doctor": "Non assigné",
		"time": null
	}`, string(raw))

	var decoded AppointmentRequest
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, req, decoded)
}

func TestServiceLabels(t *testing.T) {
	assert.True(t, ServiceEmergency.Valid())
	assert.False(t, ServiceType("Dentiste").Valid())
	assert.Equal(t, "Pédiatrie", ServicePediatrics.Label())
	assert.Equal(t, "Général", ServiceType("").Label())
	assert.Len(t, Services(), 6)
}

func TestEmergencyFlagDisplayName(t *testing.T) {
	assert.Equal(t, UnknownPatient, EmergencyFlag{Active: true}.DisplayName())
	assert.Equal(t, "Mensah Alain", EmergencyFlag{Active: true, PatientName: "Mensah Alain"}.DisplayName())
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("lab_tech")
	assert.True(t, ok)
	assert.Equal(t, RoleLabTech, r)

	_, ok = ParseRole("nurse")
	assert.False(t, ok)

	assert.False(t, RolePatient.IsStaff())
	assert.True(t, RolePharmacist.IsStaff())
}

func TestSnapshotHelpers(t *testing.T) {
	slot := "09:00"
	s := Snapshot{Requests: []AppointmentRequest{
		{ID: 1, Status: StatusPending},
		{ID: 2, Status: StatusConfirmed, Time: &slot},
	}}

	assert.Len(t, s.Pending(), 1)
	found, ok := s.Find(2)
	assert.True(t, ok)
	assert.Equal(t, "09:00", found.Slot())
	_, ok = s.Find(3)
	assert.False(t, ok)
}
