package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-sync/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// KVStore is the shared key-value surface every view reads and writes.
// Get reports absence with ok=false and a nil error.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, keys ...string) error
	// List returns every key/value whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	Ping(ctx context.Context) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type MedicineRepository interface {
	List(ctx context.Context) ([]*model.Medicine, error)
	Get(ctx context.Context, id string) (*model.Medicine, error)
	Create(ctx context.Context, m *model.Medicine) error
	// AdjustStock adds delta to the stock and returns the updated medicine.
	AdjustStock(ctx context.Context, id string, delta int) (*model.Medicine, error)
}

type RequestArchiveRepository interface {
	Append(ctx context.Context, rec *model.ArchivedRequest) error
	History(ctx context.Context, requestID int64) ([]*model.ArchivedRequest, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
