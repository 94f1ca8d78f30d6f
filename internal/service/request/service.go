package request

import (
	"context"
	"errors"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/state"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
)

// Service is the patient side of the appointment flow.
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

func (s *Service) Submit(ctx context.Context, in model.SubmitRequestInput) (*model.AppointmentRequest, error) {
	ev, err := s.hub.Dispatch(ctx, state.Submit{
		Service:     in.Service,
		Symptoms:    in.Symptoms,
		PatientName: in.PatientName,
	})
	if err != nil {
		return nil, translate(err)
	}

	if ev.Request.IsEmergency() {
		s.logger.Warn("emergency request submitted", "request_id", ev.Request.ID, "patient", ev.Emergency.DisplayName())
	} else {
		s.logger.Info("request submitted", "request_id", ev.Request.ID, "service", ev.Request.Service)
	}
	return ev.Request, nil
}

func (s *Service) Cancel(ctx context.Context, id int64) error {
	if _, err := s.hub.Dispatch(ctx, state.Cancel{ID: id}); err != nil {
		return translate(err)
	}
	s.logger.Info("request cancelled", "request_id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.AppointmentRequest, error) {
	req, ok := s.hub.Request(ctx, id)
	if !ok {
		return nil, apperrors.NotFound("request", state.ErrRequestNotFound)
	}
	return &req, nil
}

// List returns the stored requests, filtered by status when one is given.
func (s *Service) List(ctx context.Context, status model.RequestStatus) []model.AppointmentRequest {
	all := s.hub.Requests(ctx)
	if status == "" {
		return all
	}
	out := make([]model.AppointmentRequest, 0, len(all))
	for _, r := range all {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// ResetDemo wipes every request and the emergency flag.
func (s *Service) ResetDemo(ctx context.Context) error {
	if _, err := s.hub.Dispatch(ctx, state.Reset{}); err != nil {
		return apperrors.Internal(err)
	}
	s.logger.Info("demo state reset")
	return nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, state.ErrEmptySymptoms):
		return apperrors.BadRequest("Veuillez décrire vos symptômes", err)
	case errors.Is(err, state.ErrUnknownService):
		return apperrors.BadRequest("Service inconnu", err)
	case errors.Is(err, state.ErrInvalidSlot):
		return apperrors.BadRequest("Créneau horaire invalide", err)
	case errors.Is(err, state.ErrRequestNotFound):
		return apperrors.NotFound("request", err)
	default:
		return apperrors.Internal(err)
	}
}
