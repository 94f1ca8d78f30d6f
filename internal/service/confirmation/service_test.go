package confirmation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository/memory"
	"github.com/jwalitptl/clinic-sync/internal/service/request"
	"github.com/jwalitptl/clinic-sync/internal/state"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
)

var slots = []string{"08:00", "09:00", "09:30", "10:00", "10:30", "11:00", "14:00", "15:00", "15:30", "16:00"}

func setup() (*Service, *request.Service) {
	hub := state.NewHub(state.NewStore(memory.NewKVStore(0), nil, nil), state.Options{Slots: slots, DoctorName: "Dr. Kossi"}, nil, nil)
	return NewService(hub, logger.Nop()), request.NewService(hub, logger.Nop())
}

func TestGeneralistRequestConfirmedByActingDoctor(t *testing.T) {
	ctx := context.Background()
	doctor, patient := setup()

	req, err := patient.Submit(ctx, model.SubmitRequestInput{Service: model.ServiceGeneral, Symptoms: "fever 2 days", PatientName: "Mensah Alain"})
	require.NoError(t, err)

	inbox := doctor.Inbox(ctx)
	require.Len(t, inbox.Pending, 1)
	assert.Equal(t, slots, inbox.Slots)
	assert.Equal(t, "Dr. Kossi", inbox.Doctor)

	confirmed, err := doctor.Confirm(ctx, req.ID, "09:00", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	assert.Equal(t, "09:00", confirmed.Slot())
	assert.Equal(t, "Dr. Kossi", confirmed.Doctor)

	seen, err := patient.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", seen.Slot())
	assert.Empty(t, doctor.Inbox(ctx).Pending)
}

func TestConfirmErrors(t *testing.T) {
	ctx := context.Background()
	doctor, patient := setup()

	_, err := doctor.Confirm(ctx, 1, "09:00", "")
	assert.Equal(t, 404, apperrors.HTTPStatus(err))

	req, err := patient.Submit(ctx, model.SubmitRequestInput{Service: model.ServiceGeneral, Symptoms: "x"})
	require.NoError(t, err)
	_, err = doctor.Confirm(ctx, req.ID, "13:00", "")
	assert.Equal(t, 400, apperrors.HTTPStatus(err))
}

func TestStopAlarm(t *testing.T) {
	ctx := context.Background()
	doctor, patient := setup()

	_, err := patient.Submit(ctx, model.SubmitRequestInput{Service: model.ServiceEmergency, Symptoms: "x", PatientName: "Kofi"})
	require.NoError(t, err)
	assert.Equal(t, "Kofi", doctor.Emergency(ctx).DisplayName())

	require.NoError(t, doctor.StopAlarm(ctx))
	assert.False(t, doctor.Emergency(ctx).Active)
}

func TestNilLogger(t *testing.T) {
	ctx := context.Background()
	hub := state.NewHub(state.NewStore(memory.NewKVStore(0), nil, nil), state.Options{Slots: slots, DoctorName: "Dr. Kossi"}, nil, nil)
	doctor := NewService(hub, nil)
	patient := request.NewService(hub, nil)

	req, err := patient.Submit(ctx, model.SubmitRequestInput{Service: model.ServiceGeneral, Symptoms: "toux", PatientName: "Ama"})
	require.NoError(t, err)

	require.NotPanics(t, func() {
		_, err := doctor.Confirm(ctx, req.ID, "09:00", "")
		require.NoError(t, err)
		require.NoError(t, doctor.StopAlarm(ctx))
	})
}
