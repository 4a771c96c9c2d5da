// Package models defines the request and response bodies exchanged
// between clients and the user registry over HTTP.
package models

import "github.com/atinyakov/go-user-registry/internal/storage"

// LoginRequest carries the credentials to check.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// MessageResponse is returned by endpoints that only report an outcome,
// including every error.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse reports an outcome together with the affected user.
type UserResponse struct {
	Message string              `json:"message"`
	User    *storage.UserRecord `json:"user"`
}

// StatsResponse holds registry totals for internal monitoring.
type StatsResponse struct {
	Users  int `json:"users"`
	Images int `json:"images"`
}
