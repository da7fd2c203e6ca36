// Package entity defines the domain types for the database service.
package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a registered user document. Avatars are stored inline as a
// base64 payload, the way the registration flow submits them.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         int64              `bson:"user_id" json:"user_id"`
	GuildID        int64              `bson:"guild_id" json:"guild_id"`
	RealName       string             `bson:"real_name" json:"real_name"`
	Email          string             `bson:"email" json:"email"`
	Source         string             `bson:"source,omitempty" json:"source,omitempty"`
	EducationStage string             `bson:"education_stage,omitempty" json:"education_stage,omitempty"`
	AvatarBase64   string             `bson:"avatar_base64,omitempty" json:"avatar_base64,omitempty"`
	Tags           []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	IsActive       bool               `bson:"is_active" json:"is_active"`
	EmailVerified  bool               `bson:"email_verified" json:"email_verified"`
	RegisteredAt   time.Time          `bson:"registered_at" json:"registered_at"`
	LastUpdated    *time.Time         `bson:"last_updated,omitempty" json:"last_updated,omitempty"`
	LastLogin      *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	LoginCount     int64              `bson:"login_count" json:"login_count"`
}

// AvatarModTime returns the instant avatar cache validators should be
// derived from: last update, else registration, else now.
func (u *User) AvatarModTime(now time.Time) time.Time {
	if u.LastUpdated != nil && !u.LastUpdated.IsZero() {
		return *u.LastUpdated
	}
	if !u.RegisteredAt.IsZero() {
		return u.RegisteredAt
	}
	return now
}

// UserQuery filters and paginates user listings. A zero filter field is
// not applied.
type UserQuery struct {
	Email   string `json:"email,omitempty"`
	UserID  int64  `json:"user_id,omitempty"`
	GuildID int64  `json:"guild_id,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Limit   int64  `json:"limit"`
	Offset  int64  `json:"offset"`
}

// Normalize clamps pagination to sane bounds (limit 1..100, default 10).
func (q *UserQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// UserUpdate carries a partial update; nil fields are left untouched.
type UserUpdate struct {
	RealName       *string   `json:"real_name,omitempty"`
	Email          *string   `json:"email,omitempty"`
	Source         *string   `json:"source,omitempty"`
	EducationStage *string   `json:"education_stage,omitempty"`
	AvatarBase64   *string   `json:"avatar_base64,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
	IsActive       *bool     `json:"is_active,omitempty"`
	EmailVerified  *bool     `json:"email_verified,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u *UserUpdate) IsEmpty() bool {
	return u.RealName == nil && u.Email == nil && u.Source == nil &&
		u.EducationStage == nil && u.AvatarBase64 == nil && u.Tags == nil &&
		u.IsActive == nil && u.EmailVerified == nil
}

// UserStats summarizes the collection for the analytics endpoint.
type UserStats struct {
	TotalUsers             int64   `json:"total_users"`
	ActiveUsers            int64   `json:"active_users"`
	VerifiedUsers          int64   `json:"verified_users"`
	RecentRegistrations30d int64   `json:"recent_registrations_30d"`
	VerificationRate       float64 `json:"verification_rate"`
}
