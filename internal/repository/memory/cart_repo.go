package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"storefront-client/internal/domain"
	"storefront-client/pkg/cache"
)

const cartPrefix = "cart:"

// CartRepository implements domain.CartRepository.
type CartRepository struct {
	cache cache.CacheService
	ttl   time.Duration
}

// NewCartRepository keeps each saved cart for ttl after its last save. A ttl
// of zero keeps carts until restart.
func NewCartRepository(c cache.CacheService, ttl time.Duration) *CartRepository {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &CartRepository{cache: c, ttl: ttl}
}

// GetCart returns nil when the account has never saved a cart.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	v, ok := r.cache.Get(cartPrefix + userID)
	if !ok {
		return nil, nil
	}
	return v.(domain.Cart).Clone(), nil
}

func (r *CartRepository) SaveCart(ctx context.Context, userID string, cart domain.Cart) error {
	r.cache.Set(cartPrefix+userID, cart.Clone(), r.ttl)
	return nil
}

func (r *CartRepository) ListCartOwners(ctx context.Context) ([]string, error) {
	owners := []string{}
	for _, k := range r.cache.Keys() {
		if id, ok := strings.CutPrefix(k, cartPrefix); ok {
			owners = append(owners, id)
		}
	}
	sort.Strings(owners)
	return owners, nil
}
