package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hackit-taiwan/database-service/src/internal/domain/entity"
)

// MockUserStore is an in-memory UserStore used by tests and local tooling.
// It also counts lookups so cache tests can assert on store traffic.
type MockUserStore struct {
	mu    sync.Mutex
	users map[string]*entity.User

	// GetByIDCalls counts GetByID invocations.
	GetByIDCalls int
	// FailWith, when set, is returned by every method.
	FailWith error
}

// NewMockUserStore creates an empty mock store.
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[string]*entity.User)}
}

// Seed inserts a user directly, assigning an ID when absent.
func (m *MockUserStore) Seed(user *entity.User) *entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now().UTC()
	}
	m.users[user.ID.Hex()] = user
	return user
}

// Create implements UserStore.
func (m *MockUserStore) Create(_ context.Context, user *entity.User) (*entity.User, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.UserID == user.UserID && u.GuildID == user.GuildID {
			return nil, ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.IsActive = true
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now().UTC()
	}
	m.users[user.ID.Hex()] = user
	return user, nil
}

// GetByID implements UserStore.
func (m *MockUserStore) GetByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetByIDCalls++
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

// GetByEmail implements UserStore.
func (m *MockUserStore) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

// GetByDiscordID implements UserStore.
func (m *MockUserStore) GetByDiscordID(_ context.Context, userID, guildID int64) (*entity.User, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.UserID == userID && u.GuildID == guildID {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

// Update implements UserStore.
func (m *MockUserStore) Update(_ context.Context, id string, upd *entity.UserUpdate) (*entity.User, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.RealName != nil {
		u.RealName = *upd.RealName
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Source != nil {
		u.Source = *upd.Source
	}
	if upd.EducationStage != nil {
		u.EducationStage = *upd.EducationStage
	}
	if upd.AvatarBase64 != nil {
		u.AvatarBase64 = *upd.AvatarBase64
	}
	if upd.Tags != nil {
		u.Tags = *upd.Tags
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if upd.EmailVerified != nil {
		u.EmailVerified = *upd.EmailVerified
	}
	now := time.Now().UTC()
	u.LastUpdated = &now
	return u, nil
}

// Delete implements UserStore.
func (m *MockUserStore) Delete(_ context.Context, id string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// Query implements UserStore.
func (m *MockUserStore) Query(_ context.Context, q entity.UserQuery) ([]*entity.User, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	q.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*entity.User, 0)
	for _, u := range m.users {
		if q.Email != "" && u.Email != q.Email {
			continue
		}
		if q.UserID != 0 && u.UserID != q.UserID {
			continue
		}
		if q.GuildID != 0 && u.GuildID != q.GuildID {
			continue
		}
		if q.Tag != "" && !hasTag(u, q.Tag) {
			continue
		}
		matched = append(matched, u)
	}

	if q.Offset >= int64(len(matched)) {
		return []*entity.User{}, nil
	}
	matched = matched[q.Offset:]
	if int64(len(matched)) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Count implements UserStore.
func (m *MockUserStore) Count(context.Context) (int64, error) {
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

// AddTag implements UserStore.
func (m *MockUserStore) AddTag(_ context.Context, id, tag string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if !hasTag(u, tag) {
		u.Tags = append(u.Tags, tag)
	}
	return nil
}

// RemoveTag implements UserStore.
func (m *MockUserStore) RemoveTag(_ context.Context, id, tag string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	kept := u.Tags[:0]
	for _, t := range u.Tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	u.Tags = kept
	return nil
}

// GetByTag implements UserStore.
func (m *MockUserStore) GetByTag(_ context.Context, tag string) ([]*entity.User, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]*entity.User, 0)
	for _, u := range m.users {
		if hasTag(u, tag) {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

// SearchByName implements UserStore.
func (m *MockUserStore) SearchByName(_ context.Context, name string) ([]*entity.User, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]*entity.User, 0)
	needle := strings.ToLower(name)
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.RealName), needle) {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

// SetActive implements UserStore.
func (m *MockUserStore) SetActive(_ context.Context, id string, active bool) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	return nil
}

// RecordLogin implements UserStore.
func (m *MockUserStore) RecordLogin(_ context.Context, id string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	u.LastLogin = &now
	u.LoginCount++
	return nil
}

// Stats implements UserStore.
func (m *MockUserStore) Stats(context.Context) (*entity.UserStats, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &entity.UserStats{TotalUsers: int64(len(m.users))}
	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	for _, u := range m.users {
		if u.IsActive {
			stats.ActiveUsers++
		}
		if u.EmailVerified {
			stats.VerifiedUsers++
		}
		if u.RegisteredAt.After(cutoff) {
			stats.RecentRegistrations30d++
		}
	}
	if stats.TotalUsers > 0 {
		stats.VerificationRate = float64(stats.VerifiedUsers) / float64(stats.TotalUsers) * 100
	}
	return stats, nil
}

func hasTag(u *entity.User, tag string) bool {
	for _, t := range u.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
