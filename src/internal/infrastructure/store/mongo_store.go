package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hackit-taiwan/database-service/src/internal/domain/entity"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
)

const usersCollection = "registered_users"

// MongoStore is the MongoDB-backed UserStore.
type MongoStore struct {
	users *mongo.Collection
}

// Connect opens a MongoDB connection and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// NewMongoStore creates a store over the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{users: db.Collection(usersCollection)}
}

// EnsureIndexes creates the collection's indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "guild_id", Value: 1}}},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create inserts a new user. The user_id/guild_id pair must be unique.
func (s *MongoStore) Create(ctx context.Context, user *entity.User) (*entity.User, error) {
	count, err := s.users.CountDocuments(ctx, bson.M{"user_id": user.UserID, "guild_id": user.GuildID})
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicate
	}

	user.ID = primitive.NewObjectID()
	user.IsActive = true
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now().UTC()
	}

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	logger.WithField("email", user.Email).Info("Created user")
	return user, nil
}

// GetByID fetches a user by its ObjectId hex string.
func (s *MongoStore) GetByID(ctx context.Context, id string) (*entity.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// GetByEmail fetches a user by email address.
func (s *MongoStore) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// GetByDiscordID fetches a user by its Discord user/guild pair.
func (s *MongoStore) GetByDiscordID(ctx context.Context, userID, guildID int64) (*entity.User, error) {
	return s.findOne(ctx, bson.M{"user_id": userID, "guild_id": guildID})
}

// Update applies a partial update and returns the updated document.
func (s *MongoStore) Update(ctx context.Context, id string, upd *entity.UserUpdate) (*entity.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{"last_updated": time.Now().UTC()}
	if upd.RealName != nil {
		set["real_name"] = *upd.RealName
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Source != nil {
		set["source"] = *upd.Source
	}
	if upd.EducationStage != nil {
		set["education_stage"] = *upd.EducationStage
	}
	if upd.AvatarBase64 != nil {
		set["avatar_base64"] = *upd.AvatarBase64
	}
	if upd.Tags != nil {
		set["tags"] = *upd.Tags
	}
	if upd.IsActive != nil {
		set["is_active"] = *upd.IsActive
	}
	if upd.EmailVerified != nil {
		set["email_verified"] = *upd.EmailVerified
	}

	var user entity.User
	err = s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	logger.WithField("email", user.Email).Info("Updated user")
	return &user, nil
}

// Delete removes a user document.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	logger.WithField("id", id).Info("Deleted user")
	return nil
}

// Query lists users matching the given filters, paginated.
func (s *MongoStore) Query(ctx context.Context, q entity.UserQuery) ([]*entity.User, error) {
	q.Normalize()

	filter := bson.M{}
	if q.Email != "" {
		filter["email"] = q.Email
	}
	if q.UserID != 0 {
		filter["user_id"] = q.UserID
	}
	if q.GuildID != 0 {
		filter["guild_id"] = q.GuildID
	}
	if q.Tag != "" {
		filter["tags"] = q.Tag
	}

	opts := options.Find().SetSkip(q.Offset).SetLimit(q.Limit)
	return s.findMany(ctx, filter, opts)
}

// Count returns the total number of users.
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	count, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// AddTag attaches a tag to a user, ignoring duplicates.
func (s *MongoStore) AddTag(ctx context.Context, id, tag string) error {
	return s.updateByID(ctx, id, bson.M{"$addToSet": bson.M{"tags": tag}})
}

// RemoveTag detaches a tag from a user.
func (s *MongoStore) RemoveTag(ctx context.Context, id, tag string) error {
	return s.updateByID(ctx, id, bson.M{"$pull": bson.M{"tags": tag}})
}

// GetByTag lists users carrying the given tag.
func (s *MongoStore) GetByTag(ctx context.Context, tag string) ([]*entity.User, error) {
	return s.findMany(ctx, bson.M{"tags": tag}, options.Find())
}

// SearchByName lists users whose real name contains the given fragment,
// case-insensitively.
func (s *MongoStore) SearchByName(ctx context.Context, name string) ([]*entity.User, error) {
	filter := bson.M{"real_name": primitive.Regex{Pattern: regexp.QuoteMeta(name), Options: "i"}}
	return s.findMany(ctx, filter, options.Find())
}

// SetActive flips the user's active flag.
func (s *MongoStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.updateByID(ctx, id, bson.M{"$set": bson.M{"is_active": active, "last_updated": time.Now().UTC()}})
}

// RecordLogin stamps the user's last login and bumps the login counter.
func (s *MongoStore) RecordLogin(ctx context.Context, id string) error {
	return s.updateByID(ctx, id, bson.M{
		"$set": bson.M{"last_login": time.Now().UTC()},
		"$inc": bson.M{"login_count": 1},
	})
}

// Stats summarizes the collection for the analytics endpoint.
func (s *MongoStore) Stats(ctx context.Context) (*entity.UserStats, error) {
	total, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	active, err := s.users.CountDocuments(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}
	verified, err := s.users.CountDocuments(ctx, bson.M{"email_verified": true})
	if err != nil {
		return nil, fmt.Errorf("failed to count verified users: %w", err)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	recent, err := s.users.CountDocuments(ctx, bson.M{"registered_at": bson.M{"$gte": cutoff}})
	if err != nil {
		return nil, fmt.Errorf("failed to count recent registrations: %w", err)
	}

	stats := &entity.UserStats{
		TotalUsers:             total,
		ActiveUsers:            active,
		VerifiedUsers:          verified,
		RecentRegistrations30d: recent,
	}
	if total > 0 {
		stats.VerificationRate = float64(verified) / float64(total) * 100
	}
	return stats, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*entity.User, error) {
	var user entity.User
	err := s.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

func (s *MongoStore) findMany(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*entity.User, error) {
	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer cur.Close(ctx)

	users := make([]*entity.User, 0)
	for cur.Next(ctx) {
		var user entity.User
		if err := cur.Decode(&user); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		users = append(users, &user)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (s *MongoStore) updateByID(ctx context.Context, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
