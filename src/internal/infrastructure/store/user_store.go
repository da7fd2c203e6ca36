// Package store provides persistence for user documents.
package store

import (
	"context"
	"errors"

	"github.com/hackit-taiwan/database-service/src/internal/domain/entity"
)

// Store errors surfaced to handlers.
var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate indicates a user with the same user_id/guild_id pair
	// already exists.
	ErrDuplicate = errors.New("user already exists")
)

// UserStore is the document-store surface the service depends on.
type UserStore interface {
	Create(ctx context.Context, user *entity.User) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByDiscordID(ctx context.Context, userID, guildID int64) (*entity.User, error)
	Update(ctx context.Context, id string, upd *entity.UserUpdate) (*entity.User, error)
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, q entity.UserQuery) ([]*entity.User, error)
	Count(ctx context.Context) (int64, error)
	AddTag(ctx context.Context, id, tag string) error
	RemoveTag(ctx context.Context, id, tag string) error
	GetByTag(ctx context.Context, tag string) ([]*entity.User, error)
	SearchByName(ctx context.Context, name string) ([]*entity.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	RecordLogin(ctx context.Context, id string) error
	Stats(ctx context.Context) (*entity.UserStats, error)
}
