package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sautihub/core-api/internal/access"
	"github.com/sautihub/core-api/internal/content/entity"
	"github.com/sautihub/core-api/pkg/identifier"
	"github.com/sautihub/core-api/pkg/objstore"
)

type Config struct {
	// PriceCents is the fixed unlock price applied to every upload.
	PriceCents     int64
	RetentionDays  int
	MaxUploadBytes int64
	PresignTTL     time.Duration
}

// ConfigFromEnv reads content config from env vars. Defaults: KSH 5.00
// unlock price, 14-day retention, 500 MB upload cap.
func ConfigFromEnv() Config {
	cfg := Config{
		PriceCents:     500,
		RetentionDays:  14,
		MaxUploadBytes: 500 << 20,
		PresignTTL:     15 * time.Minute,
	}
	if v := os.Getenv("CONTENT_PRICE_CENTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.PriceCents = n
		}
	}
	if v := os.Getenv("CONTENT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionDays = n
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("PRESIGN_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PresignTTL = time.Duration(n) * time.Minute
		}
	}
	return cfg
}

// allowedMIME maps accepted upload types to their media kind.
var allowedMIME = map[string]string{
	"audio/mpeg":      entity.KindAudio,
	"audio/wav":       entity.KindAudio,
	"audio/ogg":       entity.KindAudio,
	"video/mp4":       entity.KindVideo,
	"video/quicktime": entity.KindVideo,
	"video/x-msvideo": entity.KindVideo,
	"video/webm":      entity.KindVideo,
}

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("content not found")
	ErrExpired         = errors.New("content expired")
	ErrNotCreator      = errors.New("creator account required")
	ErrNoAccess        = errors.New("content not unlocked")
	ErrUnsupportedType = errors.New("unsupported media type")
)

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, c *entity.Content) error
	GetByID(ctx context.Context, id string) (*entity.Content, error)
	ListActive(ctx context.Context, skip, limit int) ([]entity.ListItem, error)
	IncrementViews(ctx context.Context, id string) error
}

// ContentService orchestrates uploads, the public catalogue and media
// delivery.
type ContentService struct {
	repo    Repository
	objects objstore.Store
	grants  access.Store
	cfg     Config
	logger  *zap.SugaredLogger
}

func NewContentService(repo Repository, objects objstore.Store, grants access.Store, cfg Config, logger *zap.SugaredLogger) *ContentService {
	return &ContentService{repo: repo, objects: objects, grants: grants, cfg: cfg, logger: logger}
}

// Upload stores the media object and inserts the catalogue row. Only creator
// accounts may upload.
func (s *ContentService) Upload(ctx context.Context, creatorID int64, isCreator bool, title, description, filename, contentType string, size int64, file io.Reader) (*entity.Content, error) {
	if !isCreator {
		return nil, ErrNotCreator
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if size <= 0 || size > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: file size must be between 1 byte and %d bytes", ErrValidation, s.cfg.MaxUploadBytes)
	}
	mediaType := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}
	kind, ok := allowedMIME[mediaType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
	}

	key := identifier.NewObjectKey(filename)
	if err := s.objects.Put(ctx, key, mediaType, file); err != nil {
		return nil, fmt.Errorf("store media: %w", err)
	}

	now := time.Now()
	c := &entity.Content{
		ID:          identifier.NewContentID(),
		CreatorID:   creatorID,
		Title:       title,
		Description: strings.TrimSpace(description),
		ObjectKey:   key,
		MediaKind:   kind,
		FileSize:    size,
		PriceCents:  s.cfg.PriceCents,
		Active:      true,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(s.cfg.RetentionDays) * 24 * time.Hour),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.Warnw("orphan object cleanup failed", "key", key, "err", delErr)
		}
		return nil, err
	}
	return c, nil
}

// List returns a catalogue page of active, unexpired items.
func (s *ContentService) List(ctx context.Context, skip, limit int) ([]entity.ListItem, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListActive(ctx, skip, limit)
}

// Get returns an item that is still active. Expired items surface as
// ErrExpired so callers can distinguish "gone" from "never existed".
func (s *ContentService) Get(ctx context.Context, id string) (*entity.Content, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !c.Active {
		return nil, ErrNotFound
	}
	if c.Expired(time.Now()) {
		return nil, ErrExpired
	}
	return c, nil
}

// PlayURL returns a presigned media URL for a caller with access and counts
// the view. Creators always play their own uploads.
func (s *ContentService) PlayURL(ctx context.Context, userID int64, contentID string) (string, error) {
	c, err := s.Get(ctx, contentID)
	if err != nil {
		return "", err
	}
	if c.CreatorID != userID {
		ok, err := s.grants.HasAccess(ctx, userID, c.ID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrNoAccess
		}
	}
	if err := s.repo.IncrementViews(ctx, c.ID); err != nil {
		// playback should not fail on a counter
		s.logger.Warnw("view counter increment failed", "content_id", c.ID, "err", err)
	}
	return s.objects.PresignGet(c.ObjectKey, s.cfg.PresignTTL)
}
