package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/go-user-registry/internal/app/service"
	"github.com/atinyakov/go-user-registry/internal/models"
)

type DeleteHandler struct {
	service service.UserServiceIface
	logger  *zap.Logger
}

func NewDelete(s service.UserServiceIface, l *zap.Logger) *DeleteHandler {
	return &DeleteHandler{
		service: s,
		logger:  l,
	}
}

func (h *DeleteHandler) Delete(res http.ResponseWriter, req *http.Request) {
	id, ok := userID(req)
	if !ok {
		writeServiceError(res, h.logger, service.ErrNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		writeServiceError(res, h.logger, err)
		return
	}

	writeJSON(res, http.StatusOK, models.MessageResponse{Message: "User deleted successfully"})
}
