package v1

import (
	"errors"
	"net/http"

	"storefront-client/internal/domain"
	"storefront-client/pkg/logger"
	"storefront-client/pkg/utils"
)

const maxBodyBytes = 1 << 20

// writeUsecaseError maps domain errors onto status codes. Anything unknown is
// logged and reported as a 500 without details.
func writeUsecaseError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidCart):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		utils.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		utils.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &tooLarge):
		utils.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
	default:
		logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := utils.DecodeJSON(r, v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeUsecaseError(w, r, err)
			return false
		}
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
