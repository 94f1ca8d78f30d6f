package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
)

type requestArchiveRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records []*model.ArchivedRequest
}

// NewRequestArchiveRepository keeps the archive in process memory. It is
// used when no database is configured.
func NewRequestArchiveRepository() repository.RequestArchiveRepository {
	return &requestArchiveRepository{}
}

func (r *requestArchiveRepository) Append(_ context.Context, rec *model.ArchivedRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	rec.ID = r.nextID
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *requestArchiveRepository) History(_ context.Context, requestID int64) ([]*model.ArchivedRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.ArchivedRequest
	for _, rec := range r.records {
		if rec.RequestID == requestID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	if len(out) == 0 {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *requestArchiveRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[:0]
	var removed int64
	for _, rec := range r.records {
		if rec.RecordedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return removed, nil
}
