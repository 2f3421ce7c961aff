package storage

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"swipeshop/internal/domain"
)

const (
	defaultSlotTTL   = 15 * time.Minute
	defaultMaxUpload = 10 << 20
)

var allowedContentTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Slot is a one-shot upload target. Clients PUT bytes to UploadURL and then
// refer to the image by PublicURL.
type Slot struct {
	Token       string    `json:"token"`
	Key         string    `json:"path"`
	ContentType string    `json:"content_type"`
	UploadURL   string    `json:"upload_url"`
	PublicURL   string    `json:"public_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UploadOptions configures Uploads.
type UploadOptions struct {
	// UploadBaseURL is where slot tokens are PUT, e.g. http://host/v1/uploads.
	UploadBaseURL string
	MaxBytes      int64
	SlotTTL       time.Duration
	Ledger        domain.AssetLedger
	Logger        *zerolog.Logger
	Now           func() time.Time
}

// Uploads issues upload slots on top of a FileStore.
type Uploads struct {
	store     *FileStore
	uploadURL string
	maxBytes  int64
	ttl       time.Duration
	ledger    domain.AssetLedger
	logger    zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	slots map[string]Slot
}

// NewUploads wires slot issuing to a store.
func NewUploads(store *FileStore, opts UploadOptions) *Uploads {
	u := &Uploads{
		store:     store,
		uploadURL: strings.TrimRight(opts.UploadBaseURL, "/"),
		maxBytes:  opts.MaxBytes,
		ttl:       opts.SlotTTL,
		ledger:    opts.Ledger,
		logger:    zerolog.Nop(),
		now:       opts.Now,
		slots:     make(map[string]Slot),
	}
	if u.maxBytes <= 0 {
		u.maxBytes = defaultMaxUpload
	}
	if u.ttl <= 0 {
		u.ttl = defaultSlotTTL
	}
	if opts.Logger != nil {
		u.logger = *opts.Logger
	}
	if u.now == nil {
		u.now = time.Now
	}
	return u
}

// MaxBytes is the largest accepted payload.
func (u *Uploads) MaxBytes() int64 { return u.maxBytes }

// RequestSlot reserves a unique key for a file.
func (u *Uploads) RequestSlot(filename, contentType string) (Slot, error) {
	filename = strings.TrimSpace(filename)
	contentType = normalizeContentType(contentType)
	if filename == "" || contentType == "" {
		return Slot{}, fmt.Errorf("%w: filename and content type are required", domain.ErrInvalidInput)
	}
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return Slot{}, fmt.Errorf("%w: unsupported content type %q", domain.ErrInvalidInput, contentType)
	}
	if fileExt := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), "."); fileExt != "" && len(fileExt) <= 5 {
		ext = fileExt
	}
	now := u.now()
	token := uuid.NewString()
	key := fmt.Sprintf("uploads/%d-%s.%s", now.UnixMilli(), strings.ReplaceAll(token, "-", "")[:7], ext)
	slot := Slot{
		Token:       token,
		Key:         key,
		ContentType: contentType,
		UploadURL:   u.uploadURL + "/" + token,
		PublicURL:   u.store.PublicURL(key),
		ExpiresAt:   now.Add(u.ttl),
	}
	u.mu.Lock()
	u.pruneLocked(now)
	u.slots[token] = slot
	u.mu.Unlock()
	return slot, nil
}

// Put stores bytes for a previously issued slot. A slot can be used once.
func (u *Uploads) Put(ctx context.Context, token string, data []byte) (Slot, error) {
	u.mu.Lock()
	slot, ok := u.slots[token]
	if ok {
		delete(u.slots, token)
	}
	u.mu.Unlock()
	if !ok || u.now().After(slot.ExpiresAt) {
		return Slot{}, fmt.Errorf("%w: unknown or expired upload slot", domain.ErrUploadFailed)
	}
	if len(data) == 0 {
		return Slot{}, fmt.Errorf("%w: empty payload", domain.ErrUploadFailed)
	}
	if int64(len(data)) > u.maxBytes {
		return Slot{}, fmt.Errorf("%w: payload exceeds %d bytes", domain.ErrUploadFailed, u.maxBytes)
	}
	if sniffed := http.DetectContentType(data); !strings.HasPrefix(sniffed, "image/") {
		return Slot{}, fmt.Errorf("%w: payload is %s, not an image", domain.ErrUploadFailed, sniffed)
	}
	if _, err := u.store.Write(ctx, slot.Key, data); err != nil {
		return Slot{}, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	u.record(ctx, slot, int64(len(data)))
	return slot, nil
}

// Upload requests a slot and fills it in one step.
func (u *Uploads) Upload(ctx context.Context, filename, contentType string, data []byte) (Slot, error) {
	slot, err := u.RequestSlot(filename, contentType)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	return u.Put(ctx, slot.Token, data)
}

func (u *Uploads) record(ctx context.Context, slot Slot, size int64) {
	if u.ledger == nil {
		return
	}
	err := u.ledger.Record(ctx, domain.Asset{
		ID:          slot.Token,
		Kind:        domain.AssetKindUpload,
		StorageKey:  slot.Key,
		PublicURL:   slot.PublicURL,
		ContentType: slot.ContentType,
		Bytes:       size,
		CreatedAt:   u.now().UTC(),
	})
	if err != nil {
		u.logger.Warn().Err(err).Str("key", slot.Key).Msg("storage: failed to record upload")
	}
}

func (u *Uploads) pruneLocked(now time.Time) {
	for token, slot := range u.slots {
		if now.After(slot.ExpiresAt) {
			delete(u.slots, token)
		}
	}
}

func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}
