package usecase

import (
	"context"
	"fmt"
	"strconv"

	"storefront-client/internal/domain"
	"storefront-client/pkg/logger"
	"storefront-client/pkg/utils"
)

type CartUsecase struct {
	cartRepo        domain.CartRepository
	maxCartQuantity int
}

func NewCartUsecase(cartRepo domain.CartRepository, maxCartQuantity int) *CartUsecase {
	return &CartUsecase{
		cartRepo:        cartRepo,
		maxCartQuantity: maxCartQuantity,
	}
}

// GetCart returns the account's saved cart, empty when none was saved.
func (u *CartUsecase) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := u.cartRepo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return domain.Cart{}, nil
	}
	return cart, nil
}

// SaveCart replaces the saved cart wholesale. Invalid carts are rejected, not repaired.
func (u *CartUsecase) SaveCart(ctx context.Context, userID string, cart domain.Cart) (domain.Cart, error) {
	if err := ValidateCart(cart, u.maxCartQuantity); err != nil {
		return nil, err
	}
	if cart == nil {
		cart = domain.Cart{}
	}
	if err := u.cartRepo.SaveCart(ctx, userID, cart); err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Debug().
		Str("user_id", userID).
		Int("lines", len(cart)).
		Int("items", cart.ItemCount()).
		Msg("Cart saved")
	return cart, nil
}

func (u *CartUsecase) ListCartOwners(ctx context.Context) ([]string, error) {
	return u.cartRepo.ListCartOwners(ctx)
}

// ValidateCart checks the invariants every saved cart must hold. A
// maxQuantity of zero disables the upper bound.
func ValidateCart(cart domain.Cart, maxQuantity int) error {
	for i, line := range cart {
		if err := utils.ValidateStruct(line); err != nil {
			return fmt.Errorf("%w: line %d: %s", domain.ErrInvalidCart, i, err)
		}
		if maxQuantity > 0 {
			if err := utils.ValidateVar(line.Quantity, "max="+strconv.Itoa(maxQuantity)); err != nil {
				return fmt.Errorf("%w: quantity for %s exceeds %d", domain.ErrInvalidCart, line.ID, maxQuantity)
			}
		}
	}
	if err := utils.ValidateVar(cart, "unique=ID"); err != nil {
		return fmt.Errorf("%w: duplicate product ids", domain.ErrInvalidCart)
	}
	return nil
}
