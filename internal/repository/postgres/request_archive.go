package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
	"github.com/jwalitptl/clinic-sync/pkg/security"
)

const archiveColumns = `id, request_id, event_type, patient_name, symptoms, service, status, doctor, slot, recorded_at`

type requestArchiveRepository struct {
	BaseRepository
	sealer security.Encryptor
}

// NewRequestArchiveRepository seals symptoms with sealer before insert and
// opens them on read.
func NewRequestArchiveRepository(base BaseRepository, sealer security.Encryptor) repository.RequestArchiveRepository {
	return &requestArchiveRepository{BaseRepository: base, sealer: sealer}
}

func (r *requestArchiveRepository) Append(ctx context.Context, rec *model.ArchivedRequest) error {
	query := `
		INSERT INTO request_archive (
			request_id, event_type, patient_name, symptoms,
			service, status, doctor, slot, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	sealed, err := r.sealer.EncryptString(rec.Symptoms)
	if err != nil {
		return fmt.Errorf("failed to seal symptoms: %w", err)
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}

	err = r.db.QueryRowxContext(ctx, query,
		rec.RequestID,
		rec.EventType,
		rec.PatientName,
		sealed,
		rec.Service,
		rec.Status,
		rec.Doctor,
		rec.Slot,
		rec.RecordedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to archive request %d: %w", rec.RequestID, err)
	}
	return nil
}

func (r *requestArchiveRepository) History(ctx context.Context, requestID int64) ([]*model.ArchivedRequest, error) {
	query := `
		SELECT ` + archiveColumns + `
		FROM request_archive
		WHERE request_id = $1
		ORDER BY recorded_at, id
	`

	var out []*model.ArchivedRequest
	if err := r.db.SelectContext(ctx, &out, query, requestID); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(out) == 0 {
		return nil, repository.ErrNotFound
	}

	for _, rec := range out {
		plain, err := r.sealer.DecryptString(rec.Symptoms)
		if err != nil {
			return nil, fmt.Errorf("failed to open symptoms of record %d: %w", rec.ID, err)
		}
		rec.Symptoms = plain
	}
	return out, nil
}

func (r *requestArchiveRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM request_archive WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete archive rows: %w", err)
	}
	return res.RowsAffected()
}
