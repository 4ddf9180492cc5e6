package domain

// --- Wire Envelopes ---

// Response standardizes API responses.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// CartResponse is the body of GET /auth/cart. Cart is nil when the field is absent.
type CartResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Cart    []CartLine `json:"cart"`
}

// SaveCartRequest is the body of POST /auth/cart.
type SaveCartRequest struct {
	Cart []CartLine `json:"cart"`
}

// AuthResponse is returned by /auth/login and /auth/register.
type AuthResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Token   string   `json:"token,omitempty"`
	User    *Session `json:"user,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=buyer seller admin"`
}
