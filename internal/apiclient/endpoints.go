package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"storefront-client/internal/domain"
)

// GetCart fetches the signed-in account's saved cart. A response without a
// cart field means no saved cart and yields an empty slice.
func (c *Client) GetCart(ctx context.Context) ([]domain.CartLine, error) {
	var resp domain.CartResponse
	if err := c.Do(ctx, http.MethodGet, "/auth/cart", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, unsuccessful("get cart", resp.Message)
	}
	if resp.Cart == nil {
		return []domain.CartLine{}, nil
	}
	return resp.Cart, nil
}

// SaveCart replaces the account's saved cart with lines.
func (c *Client) SaveCart(ctx context.Context, lines []domain.CartLine) error {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	var resp domain.Response
	if err := c.Do(ctx, http.MethodPost, "/auth/cart", domain.SaveCartRequest{Cart: lines}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return unsuccessful("save cart", resp.Message)
	}
	return nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", domain.LoginRequest{Email: email, Password: password})
}

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	if err := c.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Token == "" {
		return nil, unsuccessful(path, resp.Message)
	}
	return &resp, nil
}

var ErrUnsuccessful = errors.New("request unsuccessful")

func unsuccessful(op, message string) error {
	if message == "" {
		return fmt.Errorf("%s: %w", op, ErrUnsuccessful)
	}
	return fmt.Errorf("%s: %w: %s", op, ErrUnsuccessful, message)
}
