package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"waiting-backend/internal/waiting/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository stores push notification registrations
type DeviceTokenRepository interface {
	SaveToken(ctx context.Context, userID, token, deviceInfo string) error
	GetTokensByUserID(ctx context.Context, userID string) ([]domain.DeviceToken, error)
	ListTokens(ctx context.Context) ([]domain.DeviceToken, error)
	DeleteToken(ctx context.Context, token string) error
}

type deviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository creates a new instance of deviceTokenRepository
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{
		db: db,
	}
}

// SaveToken registers or re-assigns a token (atomic upsert on token)
func (r *deviceTokenRepository) SaveToken(ctx context.Context, userID, token, deviceInfo string) error {
	now := time.Now()
	dt := &domain.DeviceToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_info", "updated_at"}),
	}).Create(dt).Error
}

func (r *deviceTokenRepository) GetTokensByUserID(ctx context.Context, userID string) ([]domain.DeviceToken, error) {
	var tokens []domain.DeviceToken
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *deviceTokenRepository) ListTokens(ctx context.Context) ([]domain.DeviceToken, error) {
	var tokens []domain.DeviceToken
	if err := r.db.WithContext(ctx).Order("updated_at desc").Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *deviceTokenRepository) DeleteToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.DeviceToken{}).Error
}

// memoryDeviceTokenRepository keeps registrations in process memory, keyed by token
type memoryDeviceTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]domain.DeviceToken
	now    func() time.Time
}

// NewMemoryDeviceTokenRepository creates a DeviceTokenRepository that lives as long as the process
func NewMemoryDeviceTokenRepository() DeviceTokenRepository {
	return &memoryDeviceTokenRepository{tokens: make(map[string]domain.DeviceToken), now: time.Now}
}

func (r *memoryDeviceTokenRepository) SaveToken(_ context.Context, userID, token, deviceInfo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	dt, ok := r.tokens[token]
	if !ok {
		dt = domain.DeviceToken{ID: uuid.New().String(), Token: token, CreatedAt: now}
	}
	dt.UserID = userID
	dt.DeviceInfo = deviceInfo
	dt.UpdatedAt = now
	r.tokens[token] = dt
	return nil
}

func (r *memoryDeviceTokenRepository) GetTokensByUserID(_ context.Context, userID string) ([]domain.DeviceToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.DeviceToken
	for _, dt := range r.tokens {
		if dt.UserID == userID {
			out = append(out, dt)
		}
	}
	sortByUpdated(out)
	return out, nil
}

func (r *memoryDeviceTokenRepository) ListTokens(_ context.Context) ([]domain.DeviceToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.DeviceToken, 0, len(r.tokens))
	for _, dt := range r.tokens {
		out = append(out, dt)
	}
	sortByUpdated(out)
	return out, nil
}

func (r *memoryDeviceTokenRepository) DeleteToken(_ context.Context, token string) error {
	r.mu.Lock()
	delete(r.tokens, token)
	r.mu.Unlock()
	return nil
}

func sortByUpdated(tokens []domain.DeviceToken) {
	sort.Slice(tokens, func(i, j int) bool {
		if !tokens[i].UpdatedAt.Equal(tokens[j].UpdatedAt) {
			return tokens[i].UpdatedAt.After(tokens[j].UpdatedAt)
		}
		return tokens[i].Token < tokens[j].Token
	})
}
