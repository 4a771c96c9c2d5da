// Package service implements the user registry: a collection of uniquely
// keyed user records held in memory and written through to durable storage
// after every change, plus the lifecycle of each record's profile image.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/go-user-registry/internal/asset"
	"github.com/atinyakov/go-user-registry/internal/storage"
	"github.com/atinyakov/go-user-registry/internal/worker"
)

// cleanupQueueSize is the number of pending asset removals buffered
// before Delete falls back to removing inline.
const cleanupQueueSize = 64

// NewUser holds the registration input. Gender and Destination are optional.
type NewUser struct {
	Username    string
	Password    string
	Email       string
	Mobile      string
	Gender      string
	Destination string
}

// UserPatch holds the fields to change on Update. Nil or empty fields keep
// their current value.
type UserPatch struct {
	Username    *string
	Password    *string
	Email       *string
	Mobile      *string
	Gender      *string
	Destination *string
}

// Stats summarizes the registry.
type Stats struct {
	Users  int `json:"users"`
	Images int `json:"images"`
}

// UserService owns the users collection. Mutations hold the write lock for
// the whole read-modify-write cycle, reads share the read lock.
type UserService struct {
	mu  sync.RWMutex
	doc *storage.Document

	repository Storage
	assets     asset.Manager
	cleanup    *worker.AssetCleanupWorker
	logger     *zap.Logger
}

// NewUserService loads the users document and starts the asset cleanup
// worker, which runs until ctx is cancelled. A missing, unreadable or
// malformed document leaves the registry empty.
func NewUserService(ctx context.Context, repo Storage, assets asset.Manager, logger *zap.Logger) *UserService {
	cleanup := worker.NewAssetCleanupWorker(logger, assets, cleanupQueueSize)

	s := &UserService{
		doc:        load(ctx, repo, logger),
		repository: repo,
		assets:     assets,
		cleanup:    cleanup,
		logger:     logger,
	}

	go cleanup.Run(ctx)

	return s
}

func load(ctx context.Context, repo Storage, logger *zap.Logger) *storage.Document {
	doc, err := repo.Load(ctx)
	switch {
	case err == nil:
		logger.Info("users loaded", zap.Int("count", len(doc.Users)), zap.Int64("last_id", doc.LastID))
		return doc
	case errors.Is(err, storage.ErrNoDocument):
		doc = &storage.Document{Users: []storage.UserRecord{}}
		if err := repo.Save(ctx, doc); err != nil {
			logger.Warn("unable to initialize users document", zap.Error(err))
		}
		return doc
	default:
		logger.Warn("users document unusable, starting empty", zap.Error(err))
		return &storage.Document{Users: []storage.UserRecord{}}
	}
}

// Done is closed once pending asset removals have been processed after
// the service context is cancelled.
func (s *UserService) Done() <-chan struct{} {
	return s.cleanup.Done()
}

// commit runs one read-modify-write cycle: fn edits a copy of the
// collection, which is persisted and only then becomes current.
func (s *UserService) commit(ctx context.Context, fn func(doc *storage.Document) (*storage.UserRecord, error)) (*storage.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.Clone()
	rec, err := fn(next)
	if err != nil {
		return nil, err
	}

	if err := s.repository.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save users: %w", err)
	}
	s.doc = next

	return rec, nil
}

// Create registers a new user. The image, if any, is stored first and
// removed again when the registration is rejected.
func (s *UserService) Create(ctx context.Context, u NewUser, image *asset.Upload) (*storage.UserRecord, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	err := checkUnique(s.doc.Users, u.Username, u.Email, 0)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	imageName, err := s.storeImage(ctx, image)
	if err != nil {
		return nil, err
	}

	rec, err := s.commit(ctx, func(doc *storage.Document) (*storage.UserRecord, error) {
		if err := checkUnique(doc.Users, u.Username, u.Email, 0); err != nil {
			return nil, err
		}

		doc.LastID++
		rec := storage.UserRecord{
			ID:          doc.LastID,
			Username:    u.Username,
			Password:    u.Password,
			Email:       u.Email,
			Mobile:      u.Mobile,
			Gender:      optional(u.Gender),
			Destination: optional(u.Destination),
			Image:       imageName,
		}
		doc.Users = append(doc.Users, rec)

		out := rec.Clone()
		return &out, nil
	})
	if err != nil {
		s.discardImage(imageName)
		return nil, err
	}

	s.logger.Info("user registered", zap.Int64("id", rec.ID), zap.String("username", rec.Username))
	return rec, nil
}

// Authenticate returns the user whose username and password both match.
// Unknown users and wrong passwords fail the same way.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*storage.UserRecord, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrMissingField)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.doc.Users {
		if u.Username == username && u.Password == password {
			out := u.Clone()
			return &out, nil
		}
	}

	return nil, ErrInvalidCredentials
}

// Update applies p to the user with the given id. A new image replaces the
// previous one, which is removed after the change is saved.
func (s *UserService) Update(ctx context.Context, id int64, p UserPatch, image *asset.Upload) (*storage.UserRecord, error) {
	if image != nil {
		s.mu.RLock()
		idx := indexOf(s.doc.Users, id)
		s.mu.RUnlock()
		if idx == -1 {
			return nil, ErrNotFound
		}
	}

	imageName, err := s.storeImage(ctx, image)
	if err != nil {
		return nil, err
	}

	var previous *string
	rec, err := s.commit(ctx, func(doc *storage.Document) (*storage.UserRecord, error) {
		idx := indexOf(doc.Users, id)
		if idx == -1 {
			return nil, ErrNotFound
		}
		u := &doc.Users[idx]

		if v := present(p.Username); v != "" {
			if err := checkUnique(doc.Users, v, "", id); err != nil {
				return nil, err
			}
			u.Username = v
		}

		if v := present(p.Email); v != "" {
			if err := validateEmail(v); err != nil {
				return nil, err
			}
			if err := checkUnique(doc.Users, "", v, id); err != nil {
				return nil, err
			}
			u.Email = v
		}

		if v := present(p.Password); v != "" {
			u.Password = v
		}

		if v := present(p.Mobile); v != "" {
			if err := validateMobile(v); err != nil {
				return nil, err
			}
			u.Mobile = v
		}

		if v := present(p.Gender); v != "" {
			u.Gender = optional(v)
		}

		if v := present(p.Destination); v != "" {
			u.Destination = optional(v)
		}

		if imageName != nil {
			previous = u.Image
			u.Image = imageName
		}

		out := u.Clone()
		return &out, nil
	})
	if err != nil {
		s.discardImage(imageName)
		return nil, err
	}

	if previous != nil && *previous != *imageName {
		s.cleanup.Enqueue(*previous)
	}

	s.logger.Info("user updated", zap.Int64("id", id))
	return rec, nil
}

// List returns a copy of all users in registration order.
func (s *UserService) List(ctx context.Context) []storage.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]storage.UserRecord, len(s.doc.Users))
	for i, u := range s.doc.Users {
		users[i] = u.Clone()
	}
	return users
}

// Delete removes the user with the given id. Its image is removed in the
// background once the change is saved; a failed removal is only logged.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	rec, err := s.commit(ctx, func(doc *storage.Document) (*storage.UserRecord, error) {
		idx := indexOf(doc.Users, id)
		if idx == -1 {
			return nil, ErrNotFound
		}

		removed := doc.Users[idx]
		doc.Users = append(doc.Users[:idx], doc.Users[idx+1:]...)
		return &removed, nil
	})
	if err != nil {
		return err
	}

	if rec.Image != nil {
		s.cleanup.Enqueue(*rec.Image)
	}

	s.logger.Info("user deleted", zap.Int64("id", id))
	return nil
}

func (s *UserService) Stats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Users: len(s.doc.Users)}
	for _, u := range s.doc.Users {
		if u.Image != nil {
			st.Images++
		}
	}
	return st
}

func (s *UserService) PingContext(ctx context.Context) error {
	return s.repository.PingContext(ctx)
}

func (s *UserService) storeImage(ctx context.Context, image *asset.Upload) (*string, error) {
	if image == nil {
		return nil, nil
	}

	name, err := s.assets.Store(ctx, image.Data, image.Ext)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	return &name, nil
}

// discardImage drops an image stored for a change that was not saved.
func (s *UserService) discardImage(name *string) {
	if name != nil {
		s.cleanup.Enqueue(*name)
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func present(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
