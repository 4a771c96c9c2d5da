package service

//go:generate mockgen -source=interface.go -destination=../../mocks/service_mock.go -package=mocks

import (
	"context"

	"github.com/atinyakov/go-user-registry/internal/asset"
	"github.com/atinyakov/go-user-registry/internal/storage"
)

// Storage persists the users document.
type Storage interface {
	Load(context.Context) (*storage.Document, error)
	Save(context.Context, *storage.Document) error
	PingContext(context.Context) error
}

// UserServiceIface is what the transport layer needs from the registry.
type UserServiceIface interface {
	Create(ctx context.Context, u NewUser, image *asset.Upload) (*storage.UserRecord, error)
	Authenticate(ctx context.Context, username, password string) (*storage.UserRecord, error)
	Update(ctx context.Context, id int64, p UserPatch, image *asset.Upload) (*storage.UserRecord, error)
	List(ctx context.Context) []storage.UserRecord
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) Stats
	PingContext(ctx context.Context) error
}
