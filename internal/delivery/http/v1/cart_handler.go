package v1

import (
	"net/http"

	"storefront-client/internal/delivery/http/middleware"
	"storefront-client/internal/domain"
	"storefront-client/internal/usecase"
	"storefront-client/pkg/utils"
)

type CartHandler struct {
	cartUC *usecase.CartUsecase
}

func NewCartHandler(cartUC *usecase.CartUsecase) *CartHandler {
	return &CartHandler{cartUC: cartUC}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	cart, err := h.cartUC.GetCart(r.Context(), user.ID)
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, domain.CartResponse{Success: true, Cart: cart})
}

// SaveCart replaces the caller's saved cart with the body's cart.
func (h *CartHandler) SaveCart(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req domain.SaveCartRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.cartUC.SaveCart(r.Context(), user.ID, req.Cart)
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, domain.CartResponse{Success: true, Message: "Cart saved", Cart: cart})
}

// ListSavedCarts reports which accounts have a saved cart. Admin only.
func (h *CartHandler) ListSavedCarts(w http.ResponseWriter, r *http.Request) {
	owners, err := h.cartUC.ListCartOwners(r.Context())
	if err != nil {
		writeUsecaseError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, domain.Response{
		Success: true,
		Data: map[string]any{
			"owners": owners,
			"count":  len(owners),
		},
	})
}
