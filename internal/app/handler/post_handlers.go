package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/go-user-registry/internal/app/service"
	"github.com/atinyakov/go-user-registry/internal/models"
)

type PostHandler struct {
	service service.UserServiceIface
	logger  *zap.Logger
}

func NewPost(s service.UserServiceIface, l *zap.Logger) *PostHandler {
	return &PostHandler{
		service: s,
		logger:  l,
	}
}

// Signup registers a user from a JSON, form or multipart body. A multipart
// body may carry the profile picture in its "image" part.
func (h *PostHandler) Signup(res http.ResponseWriter, req *http.Request) {
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

	user, err := h.service.Create(ctx, form.newUser(), image)
	if err != nil {
		h.logger.Info("signup rejected", zap.String("username", form.Username), zap.Error(err))
		writeServiceError(res, h.logger, err)
		return
	}

	writeJSON(res, http.StatusCreated, models.UserResponse{Message: "User registered successfully", User: user})
}

// Login checks the submitted credentials.
func (h *PostHandler) Login(res http.ResponseWriter, req *http.Request) {
	var request models.LoginRequest

	if err := decodeJSONBody(res, req, &request); err != nil {
		writeRequestError(res, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	user, err := h.service.Authenticate(ctx, request.Username, request.Password)
	if err != nil {
		writeServiceError(res, h.logger, err)
		return
	}

	writeJSON(res, http.StatusOK, models.UserResponse{Message: "Login successful", User: user})
}

// Logout only acknowledges the request: there is no server side session.
func (h *PostHandler) Logout(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, http.StatusOK, models.MessageResponse{Message: "Logout successful"})
}
