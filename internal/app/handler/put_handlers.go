package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/go-user-registry/internal/app/service"
	"github.com/atinyakov/go-user-registry/internal/models"
)

type PutHandler struct {
	service service.UserServiceIface
	logger  *zap.Logger
}

func NewPut(s service.UserServiceIface, l *zap.Logger) *PutHandler {
	return &PutHandler{
		service: s,
		logger:  l,
	}
}

// Update patches the user named by the {id} route parameter. Empty fields
// are left unchanged; a new "image" part replaces the profile picture.
func (h *PutHandler) Update(res http.ResponseWriter, req *http.Request) {
	id, ok := userID(req)
	if !ok {
		writeServiceError(res, h.logger, service.ErrNotFound)
		return
	}

	form, image, closer, err := decodeUserForm(res, req)
	if err != nil {
		writeRequestError(res, h.logger, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, cancel := context.WithTimeout(req.Context(), 10*time.Second)
	defer cancel()

	user, err := h.service.Update(ctx, id, form.patch(), image)
	if err != nil {
		writeServiceError(res, h.logger, err)
		return
	}

	writeJSON(res, http.StatusOK, models.UserResponse{Message: "User updated successfully", User: user})
}
