package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
	"github.com/jwalitptl/clinic-sync/pkg/security"
)

func setupTestDB(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewBaseRepository(sqlx.NewDb(db, "postgres")), mock
}

// captured records the value passed for one placeholder.
type captured struct{ value string }

func (c *captured) Match(v driver.Value) bool {
	s, ok := v.(string)
	c.value = s
	return ok
}

func TestMigrate(t *testing.T) {
	base, mock := setupTestDB(t)
	for range migrations {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), base.GetDB()))
}

func TestMigrateStopsOnError(t *testing.T) {
	base, mock := setupTestDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(errors.New("permission denied"))

	err := Migrate(context.Background(), base.GetDB())
	assert.ErrorContains(t, err, "migration 1")
}

func TestUserRepository_Create(t *testing.T) {
	base, mock := setupTestDB(t)
	repo := NewUserRepository(base)

	user := &model.User{Name: "Mensah Alain", Email: "Alain@Example.com", PasswordHash: "hash", Role: model.RolePatient}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "Mensah Alain", "Alain@Example.com", "hash", sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	base, mock := setupTestDB(t)
	repo := NewUserRepository(base)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &model.User{Email: "a@b.c"})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	base, mock := setupTestDB(t)
	repo := NewUserRepository(base)
	id := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "phone", "created_at", "updated_at"}).
		AddRow(id.String(), "Dr. Kossi", "kossi@clinique.tg", "hash", "DOCTOR", "", now, now)
	mock.ExpectQuery("SELECT .* FROM users WHERE email").WithArgs("KOSSI@clinique.tg").WillReturnRows(rows)

	u, err := repo.GetByEmail(context.Background(), "KOSSI@clinique.tg")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, model.RoleDoctor, u.Role)
}

func TestUserRepository_GetNotFound(t *testing.T) {
	base, mock := setupTestDB(t)
	repo := NewUserRepository(base)

	mock.ExpectQuery("SELECT .* FROM users WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMedicineRepository_AdjustStock(t *testing.T) {
	base, mock := setupTestDB(t)
	repo := NewMedicineRepository(base)

	rows := sqlmock.NewRows([]string{"id", "name", "stock", "category", "price", "expiry_date", "updated_at"}).
		AddRow("3", "Metformine 850mg", 22, "Antidiabétique", 4500, "2024-05-20", time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE medicines").
		WithArgs("3", int64(model.RestockQuantity), sqlmock.AnyArg()).
		WillReturnRows(rows)
	mock.ExpectCommit()

	m, err := repo.AdjustStock(context.Background(), "3", model.RestockQuantity)
	require.NoError(t, err)
	assert.Equal(t, 22, m.Stock)
}

func TestMedicineRepository_AdjustStockMissing(t *testing.T) {
	base, mock := setupTestDB(t)
	repo := NewMedicineRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE medicines").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.AdjustStock(context.Background(), "404", 10)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMedicineRepository_Create(t *testing.T) {
	base, mock := setupTestDB(t)
	repo := NewMedicineRepository(base)

	mock.ExpectExec("INSERT INTO medicines").WillReturnResult(sqlmock.NewResult(1, 1))

	m := &model.Medicine{Name: "Quinine", Price: 1500, Category: model.DefaultMedicineCategory, ExpiryDate: "2026-01-01"}
	require.NoError(t, repo.Create(context.Background(), m))
	assert.NotEmpty(t, m.ID)
}

func TestRequestArchiveRepository_SealsSymptoms(t *testing.T) {
	base, mock := setupTestDB(t)
	sealer, err := security.NewAESEncryptorFromSecret("archive-secret")
	require.NoError(t, err)
	repo := NewRequestArchiveRepository(base, sealer)

	sealed := &captured{}
	slot := "09:30"
	mock.ExpectQuery("INSERT INTO request_archive").
		WithArgs(int64(42), sqlmock.AnyArg(), "Mensah Alain", sealed, "Cardiologie", "confirmed", "Dr. Kossi", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	rec := &model.ArchivedRequest{
		RequestID:   42,
		EventType:   model.EventRequestConfirmed,
		PatientName: "Mensah Alain",
		Symptoms:    "douleur thoracique",
		Service:     "Cardiologie",
		Status:      "confirmed",
		Doctor:      "Dr. Kossi",
		Slot:        &slot,
	}
	require.NoError(t, repo.Append(context.Background(), rec))
	assert.Equal(t, int64(7), rec.ID)
	require.NotEmpty(t, sealed.value)
	assert.NotContains(t, sealed.value, "douleur")

	rows := sqlmock.NewRows([]string{"id", "request_id", "event_type", "patient_name", "symptoms", "service", "status", "doctor", "slot", "recorded_at"}).
		AddRow(7, 42, "request.confirmed", "Mensah Alain", sealed.value, "Cardiologie", "confirmed", "Dr. Kossi", slot, time.Now())
	mock.ExpectQuery("SELECT .* FROM request_archive").WithArgs(int64(42)).WillReturnRows(rows)

	history, err := repo.History(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "douleur thoracique", history[0].Symptoms)
	require.NotNil(t, history[0].Slot)
	assert.Equal(t, "09:30", *history[0].Slot)
}

func TestRequestArchiveRepository_DeleteBefore(t *testing.T) {
	base, mock := setupTestDB(t)
	sealer, err := security.NewAESEncryptorFromSecret("archive-secret")
	require.NoError(t, err)
	repo := NewRequestArchiveRepository(base, sealer)

	mock.ExpectExec("DELETE FROM request_archive").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteBefore(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
