package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
)

const medicineColumns = `id, name, stock, category, price, expiry_date, updated_at`

type medicineRepository struct {
	BaseRepository
}

func NewMedicineRepository(base BaseRepository) repository.MedicineRepository {
	return &medicineRepository{base}
}

func (r *medicineRepository) List(ctx context.Context) ([]*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines ORDER BY updated_at, id`

	var out []*model.Medicine
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}
	return out, nil
}

func (r *medicineRepository) Get(ctx context.Context, id string) (*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = $1`

	var m model.Medicine
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		return nil, fmt.Errorf("failed to get medicine: %w", translate(err))
	}
	return &m, nil
}

func (r *medicineRepository) Create(ctx context.Context, m *model.Medicine) error {
	query := `
		INSERT INTO medicines (` + medicineColumns + `)
		VALUES (:id, :name, :stock, :category, :price, :expiry_date, :updated_at)
	`

	if m.ID == "" {
		m.ID = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	m.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to create medicine: %w", translate(err))
	}
	return nil
}

func (r *medicineRepository) AdjustStock(ctx context.Context, id string, delta int) (*model.Medicine, error) {
	query := `
		UPDATE medicines
		SET stock = GREATEST(stock + $2, 0), updated_at = $3
		WHERE id = $1
		RETURNING ` + medicineColumns

	var m model.Medicine
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &m, query, id, delta, time.Now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to adjust stock: %w", translate(err))
	}
	return &m, nil
}
