// Package service implements the domain services of the database
// service, most notably avatar retrieval with HTTP conditional-caching
// semantics.
package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hackit-taiwan/database-service/src/internal/domain/entity"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/store"
)

// Avatar retrieval errors. The handler maps them to distinct 4xx codes
// rather than collapsing them into a generic failure.
var (
	// ErrAvatarTooLarge indicates the decoded avatar exceeds the
	// configured size limit.
	ErrAvatarTooLarge = errors.New("avatar file size exceeds limit")
	// ErrAvatarUndecodable indicates the stored payload is not valid
	// base64.
	ErrAvatarUndecodable = errors.New("invalid avatar data")
)

// UserFetcher is the document-store lookup the cache depends on.
type UserFetcher interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// Avatar is the outcome of an avatar lookup. A nil *Avatar means the
// user or their avatar does not exist. NotModified signals that the
// caller's conditional headers still match and no body should be sent.
type Avatar struct {
	Data         []byte
	ETag         string
	LastModified time.Time
	ContentType  string
	NotModified  bool
}

// AvatarCacheConfig holds avatar cache configuration.
type AvatarCacheConfig struct {
	// Enabled toggles caching; when false every lookup goes to the store.
	Enabled bool
	// TTL is how long a cached entry stays valid.
	TTL time.Duration
	// MaxBytes bounds the decoded avatar size.
	MaxBytes int
	// MaxEntries bounds the cache; 0 means unbounded (the original
	// behavior). When full, the entry cached longest ago is evicted.
	MaxEntries int
}

type avatarEntry struct {
	data         []byte
	etag         string
	lastModified time.Time
	cachedAt     time.Time
}

// AvatarCache serves avatar bytes with ETag/Last-Modified semantics,
// backed by an in-memory per-user cache. Expired entries are evicted
// lazily on access; no background sweeper runs.
type AvatarCache struct {
	users UserFetcher
	cfg   AvatarCacheConfig

	mu      sync.RWMutex
	entries map[string]*avatarEntry

	now func() time.Time
}

// NewAvatarCache creates an avatar cache over the given user store.
func NewAvatarCache(users UserFetcher, cfg AvatarCacheConfig) *AvatarCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 300 * time.Second
	}
	return &AvatarCache{
		users:   users,
		cfg:     cfg,
		entries: make(map[string]*avatarEntry),
		now:     time.Now,
	}
}

// TTL returns the configured time-to-live.
func (c *AvatarCache) TTL() time.Duration { return c.cfg.TTL }

// Enabled reports whether caching is on.
func (c *AvatarCache) Enabled() bool { return c.cfg.Enabled }

// Get resolves a user's avatar, honoring If-None-Match / If-Modified-Since.
// A cache hit is served without touching the store; a miss fetches the
// user document, decodes the stored payload, re-checks the conditional
// headers against the freshly computed validators, and only then inserts
// into the cache. Returns (nil, nil) when the user or avatar is absent.
func (c *AvatarCache) Get(ctx context.Context, userID, ifNoneMatch, ifModifiedSince string) (*Avatar, error) {
	if entry := c.lookup(userID); entry != nil {
		if notModified(entry.etag, entry.lastModified, ifNoneMatch, ifModifiedSince) {
			logger.WithField("user", userID).Debug("Avatar conditional hit, not modified")
			return &Avatar{ETag: entry.etag, LastModified: entry.lastModified, NotModified: true}, nil
		}
		return &Avatar{
			Data:         entry.data,
			ETag:         entry.etag,
			LastModified: entry.lastModified,
			ContentType:  DetectImageFormat(entry.data),
		}, nil
	}

	logger.WithField("user", userID).Debug("Avatar cache miss, fetching from store")
	user, err := c.users.GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if user.AvatarBase64 == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(user.AvatarBase64)
	if err != nil {
		logger.WithField("user", userID).Warn("Stored avatar is not valid base64")
		return nil, ErrAvatarUndecodable
	}
	if c.cfg.MaxBytes > 0 && len(data) > c.cfg.MaxBytes {
		logger.WithField("user", userID).Warn("Avatar exceeds size limit")
		return nil, ErrAvatarTooLarge
	}

	// The digest covers the encoded payload, not the decoded bytes;
	// existing clients hold validators computed this way.
	sum := md5.Sum([]byte(user.AvatarBase64))
	etag := hex.EncodeToString(sum[:])
	lastModified := user.AvatarModTime(c.now())

	if notModified(etag, lastModified, ifNoneMatch, ifModifiedSince) {
		return &Avatar{ETag: etag, LastModified: lastModified, NotModified: true}, nil
	}

	c.insert(userID, data, etag, lastModified)

	return &Avatar{
		Data:         data,
		ETag:         etag,
		LastModified: lastModified,
		ContentType:  DetectImageFormat(data),
	}, nil
}

// Invalidate removes a single user's cached avatar.
func (c *AvatarCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Clear empties the whole cache.
func (c *AvatarCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*avatarEntry)
	logger.Info("Cleared avatar cache")
}

// Stats reports entry counts and configuration. Expired entries that
// have not been touched since expiry are counted, not removed; eviction
// only happens on Get.
func (c *AvatarCache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	valid := 0
	for _, e := range c.entries {
		if c.cfg.Enabled && now.Before(e.cachedAt.Add(c.cfg.TTL)) {
			valid++
		}
	}
	return map[string]interface{}{
		"total_entries":     len(c.entries),
		"valid_entries":     valid,
		"expired_entries":   len(c.entries) - valid,
		"cache_enabled":     c.cfg.Enabled,
		"cache_ttl_seconds": int(c.cfg.TTL.Seconds()),
	}
}

// lookup returns a valid cache entry or nil, lazily evicting an expired
// one.
func (c *AvatarCache) lookup(userID string) *avatarEntry {
	if !c.cfg.Enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID]
	if !ok {
		return nil
	}
	if !c.now().Before(entry.cachedAt.Add(c.cfg.TTL)) {
		delete(c.entries, userID)
		logger.WithField("user", userID).Debug("Evicted expired avatar cache entry")
		return nil
	}
	return entry
}

func (c *AvatarCache) insert(userID string, data []byte, etag string, lastModified time.Time) {
	if !c.cfg.Enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MaxEntries > 0 && len(c.entries) >= c.cfg.MaxEntries {
		if _, exists := c.entries[userID]; !exists {
			c.evictOldest()
		}
	}
	c.entries[userID] = &avatarEntry{
		data:         data,
		etag:         etag,
		lastModified: lastModified,
		cachedAt:     c.now(),
	}
}

// evictOldest removes the entry cached longest ago. Caller holds the lock.
func (c *AvatarCache) evictOldest() {
	var oldestID string
	var oldest time.Time
	first := true
	for id, e := range c.entries {
		if first || e.cachedAt.Before(oldest) {
			oldestID = id
			oldest = e.cachedAt
			first = false
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
	}
}

// notModified evaluates the conditional request headers against the
// entry's validators. ETag comparison uses the unquoted values; a
// malformed If-Modified-Since is logged and ignored.
func notModified(etag string, lastModified time.Time, ifNoneMatch, ifModifiedSince string) bool {
	if ifNoneMatch != "" && strings.Trim(ifNoneMatch, `"`) == etag {
		return true
	}
	if ifModifiedSince != "" {
		t, err := time.Parse(http.TimeFormat, ifModifiedSince)
		if err != nil {
			logger.WithField("value", ifModifiedSince).Warn("Invalid If-Modified-Since header")
			return false
		}
		if !lastModified.Truncate(time.Second).After(t) {
			return true
		}
	}
	return false
}

// DetectImageFormat sniffs an image MIME type from its leading bytes,
// defaulting to JPEG for unrecognized content.
func DetectImageFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case bytes.HasPrefix(data, []byte{0x00, 0x00, 0x01, 0x00}) || bytes.HasPrefix(data, []byte{0x00, 0x00, 0x02, 0x00}):
		return "image/x-icon"
	case bytes.HasPrefix(data, []byte("RIFF")) && len(data) >= 12 && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
