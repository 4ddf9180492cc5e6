// Package memory implements the development backend's repositories on top of
// the cache service. Nothing survives a restart.
package memory

import (
	"context"
	"strings"
	"sync"

	"storefront-client/internal/domain"
	"storefront-client/pkg/cache"
)

type userRepository struct {
	cache cache.CacheService
	// mu makes the email check and insert in Create atomic.
	mu sync.Mutex
}

func NewUserRepository(c cache.CacheService) domain.UserRepository {
	return &userRepository{cache: c}
}

func userKey(id string) string { return "user:" + id }

func emailKey(email string) string {
	return "email:" + strings.ToLower(strings.TrimSpace(email))
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cache.Get(emailKey(user.Email)); exists {
		return domain.ErrEmailTaken
	}
	stored := *user
	r.cache.Set(userKey(user.ID), &stored, cache.NoExpiration)
	r.cache.Set(emailKey(user.Email), user.ID, cache.NoExpiration)
	return nil
}

// GetByEmail returns nil without error when no account uses email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, ok := r.cache.Get(emailKey(email))
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id.(string))
}

// GetByID returns nil without error when the account does not exist.
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	v, ok := r.cache.Get(userKey(id))
	if !ok {
		return nil, nil
	}
	u := *v.(*domain.User)
	return &u, nil
}
