package v1

import (
	"net/http"

	"storefront-client/internal/delivery/http/middleware"
	"storefront-client/internal/domain"
	"storefront-client/internal/usecase"
	"storefront-client/pkg/utils"
)

type AuthHandler struct {
	authUC *usecase.AuthUsecase
}

func NewAuthHandler(authUC *usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{authUC: authUC}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token, user, err := h.authUC.Register(r.Context(), req)
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	session := user.Session()
	utils.WriteJSON(w, http.StatusCreated, domain.AuthResponse{
		Success: true,
		Message: "Registration successful",
		Token:   token,
		User:    &session,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		utils.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.authUC.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	session := user.Session()
	utils.WriteJSON(w, http.StatusOK, domain.AuthResponse{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User:    &session,
	})
}

// Me returns the caller's session as stored, not as claimed by the token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := h.authUC.GetUserByID(r.Context(), caller.ID)
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	session := user.Session()
	utils.WriteJSON(w, http.StatusOK, domain.AuthResponse{Success: true, User: &session})
}
