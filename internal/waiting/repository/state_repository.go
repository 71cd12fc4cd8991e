package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"waiting-backend/internal/waiting/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateStore reads and writes string blobs under fixed keys
type StateStore interface {
	// Get returns ok=false when nothing is stored under key
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// stateRepository implements StateStore on a single gorm table
type stateRepository struct {
	db *gorm.DB
}

// NewStateRepository creates a gorm-backed StateStore
func NewStateRepository(db *gorm.DB) StateStore {
	return &stateRepository{
		db: db,
	}
}

func (r *stateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var blob domain.StateBlob
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&blob).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return blob.Value, true, nil
}

// Set upserts the blob (INSERT ... ON CONFLICT (key) DO UPDATE)
func (r *stateRepository) Set(ctx context.Context, key, value string) error {
	now := time.Now()
	blob := &domain.StateBlob{
		ID:        uuid.New().String(),
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(blob).Error
}

// memoryStateStore keeps blobs in process memory
type memoryStateStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStateStore creates a StateStore that lives as long as the process
func NewMemoryStateStore() StateStore {
	return &memoryStateStore{values: make(map[string]string)}
}

func (m *memoryStateStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryStateStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}
