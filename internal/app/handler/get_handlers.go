package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/go-user-registry/internal/app/service"
	"github.com/atinyakov/go-user-registry/internal/models"
)

type GetHandler struct {
	service service.UserServiceIface
	logger  *zap.Logger
}

func NewGet(s service.UserServiceIface, l *zap.Logger) *GetHandler {
	return &GetHandler{
		service: s,
		logger:  l,
	}
}

// Users returns every registered user in registration order.
func (h *GetHandler) Users(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, http.StatusOK, h.service.List(req.Context()))
}

func (h *GetHandler) Ping(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()
	if err := h.service.PingContext(ctx); err != nil {
		h.logger.Warn("storage ping failed", zap.Error(err))
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.WriteHeader(http.StatusOK)
}

func (h *GetHandler) Stats(res http.ResponseWriter, req *http.Request) {
	st := h.service.Stats(req.Context())
	writeJSON(res, http.StatusOK, models.StatsResponse{Users: st.Users, Images: st.Images})
}
