package confirmation

import (
	"context"
	"errors"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/state"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
)

// Inbox is what a doctor dashboard renders.
type Inbox struct {
	Pending   []model.AppointmentRequest `json:"pending"`
	Emergency model.EmergencyFlag        `json:"emergency"`
	Slots     []string                   `json:"slots"`
	Doctor    string                     `json:"doctor"`
}

// Service is the doctor side of the appointment flow.
type Service struct {
	hub    *state.Hub
	logger *logger.Logger
}

func NewService(hub *state.Hub, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{hub: hub, logger: log}
}

// Confirm books time for request id. An empty doctor means the acting doctor.
func (s *Service) Confirm(ctx context.Context, id int64, slot, doctor string) (*model.AppointmentRequest, error) {
	ev, err := s.hub.Dispatch(ctx, state.Confirm{ID: id, Time: slot, Doctor: doctor})
	if err != nil {
		switch {
		case errors.Is(err, state.ErrRequestNotFound):
			return nil, apperrors.NotFound("request", err)
		case errors.Is(err, state.ErrInvalidSlot):
			return nil, apperrors.BadRequest("Créneau horaire invalide", err)
		default:
			return nil, apperrors.Internal(err)
		}
	}

	s.logger.Info("request confirmed", "request_id", id, "time", ev.Request.Slot(), "doctor", ev.Request.Doctor)
	return ev.Request, nil
}

func (s *Service) Slots() []string {
	return s.hub.Slots()
}

func (s *Service) Inbox(ctx context.Context) Inbox {
	snap := s.hub.Snapshot(ctx)
	return Inbox{
		Pending:   snap.Pending(),
		Emergency: snap.Emergency,
		Slots:     s.hub.Slots(),
		Doctor:    s.hub.DoctorName(),
	}
}

func (s *Service) Emergency(ctx context.Context) model.EmergencyFlag {
	return s.hub.Emergency(ctx)
}

// StopAlarm clears the emergency flag on every dashboard.
func (s *Service) StopAlarm(ctx context.Context) error {
	if _, err := s.hub.Dispatch(ctx, state.StopAlarm{}); err != nil {
		return apperrors.Internal(err)
	}
	s.logger.Info("emergency alarm stopped")
	return nil
}
