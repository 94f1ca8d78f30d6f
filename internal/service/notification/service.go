package notification

import (
	"context"
	"fmt"

	"github.com/jwalitptl/clinic-sync/internal/email"
	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
	"github.com/jwalitptl/clinic-sync/pkg/messaging"
)

const (
	TypeEmergency    = "emergency"
	TypeConfirmation = "confirmation"
)

// Notice is published on the notifications channel for in-app banners.
type Notice struct {
	RequestID   int64  `json:"requestId,omitempty"`
	PatientName string `json:"patientName"`
	Text        string `json:"text"`
}

type Service interface {
	// Handle notifies staff about one state event. Events that need no
	// notification are ignored.
	Handle(ctx context.Context, ev model.StateEvent) error
}

type service struct {
	emailSvc   email.Service
	broker     messaging.Broker
	recipients []string
	logger     *logger.Logger
}

// NewService sends emails to recipients and publishes notices on broker.
// broker may be nil.
func NewService(emailSvc email.Service, broker messaging.Broker, recipients []string, log *logger.Logger) Service {
	return &service{
		emailSvc:   emailSvc,
		broker:     broker,
		recipients: recipients,
		logger:     log,
	}
}

func (s *service) Handle(ctx context.Context, ev model.StateEvent) error {
	if ev.Request == nil {
		return nil
	}

	var (
		kind    string
		subject string
		notice  Notice
	)
	switch ev.Type {
	case model.EventEmergencyRaised:
		name := ev.Emergency.DisplayName()
		kind = TypeEmergency
		subject = fmt.Sprintf("URGENCE: %s", name)
		notice = Notice{
			RequestID:   ev.Request.ID,
			PatientName: name,
			Text:        fmt.Sprintf("Urgence signalée pour %s: %s", name, ev.Request.Symptoms),
		}
	case model.EventRequestConfirmed:
		name := ev.Request.PatientName
		if name == "" {
			name = model.UnknownPatient
		}
		kind = TypeConfirmation
		subject = fmt.Sprintf("Rendez-vous confirmé: %s", name)
		notice = Notice{
			RequestID:   ev.Request.ID,
			PatientName: name,
			Text: fmt.Sprintf("Rendez-vous %s confirmé à %s avec %s",
				ev.Request.Service.Label(), ev.Request.Slot(), ev.Request.Doctor),
		}
	default:
		return nil
	}

	if s.broker != nil {
		msg := messaging.Message{Type: kind, Payload: notice}
		if err := s.broker.Publish(ctx, messaging.ChannelNotifications, msg); err != nil {
			s.logger.Error(err, "failed to publish notice", "type", kind, "request_id", notice.RequestID)
		}
	}

	if len(s.recipients) == 0 {
		return nil
	}
	err := s.emailSvc.Send(ctx, email.Message{
		To:      s.recipients,
		Subject: subject,
		Body:    notice.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to email %s notice: %w", kind, err)
	}
	return nil
}
