package worker

import (
	"context"
	"fmt"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
	"github.com/jwalitptl/clinic-sync/pkg/metrics"
)

// Archiver appends every request-level event to the request archive.
type Archiver struct {
	repo    repository.RequestArchiveRepository
	metrics *metrics.Metrics
}

func NewArchiver(repo repository.RequestArchiveRepository, m *metrics.Metrics) *Archiver {
	return &Archiver{repo: repo, metrics: m}
}

func (a *Archiver) Handle(ctx context.Context, ev model.StateEvent) error {
	if ev.Request == nil {
		return nil
	}
	req := ev.Request

	rec := &model.ArchivedRequest{
		RequestID:   req.ID,
		EventType:   ev.Type,
		PatientName: req.PatientName,
		Symptoms:    req.Symptoms,
		Service:     string(req.Service),
		Status:      string(req.Status),
		Doctor:      req.Doctor,
		Slot:        req.Time,
		RecordedAt:  ev.Timestamp,
	}
	if err := a.repo.Append(ctx, rec); err != nil {
		a.record(ev.Type, "error")
		return fmt.Errorf("failed to archive request %d: %w", req.ID, err)
	}
	a.record(ev.Type, "ok")
	return nil
}

func (a *Archiver) record(t model.EventType, status string) {
	if a.metrics != nil {
		a.metrics.ArchivedEvents.WithLabelValues(string(t), status).Inc()
	}
}
