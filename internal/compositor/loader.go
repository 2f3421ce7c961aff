package compositor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
)

const defaultMaxImageBytes = 20 << 20

// BlobReader reads blobs from the service's own storage by public URL.
type BlobReader interface {
	KeyFromURL(ref string) (string, bool)
	Read(ctx context.Context, key string) ([]byte, error)
}

// SourceLoader resolves data: URLs, references into the local store and
// http(s) URLs on allowlisted hosts. Formats: PNG, JPEG, GIF, WebP.
type SourceLoader struct {
	store        BlobReader
	client       *http.Client
	allowedHosts map[string]struct{}
	maxBytes     int64
}

// NewSourceLoader builds a loader. store may be nil. A nil client gets a
// 20 second timeout.
func NewSourceLoader(store BlobReader, client *http.Client, allowedHosts []string) *SourceLoader {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	hosts := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts[h] = struct{}{}
		}
	}
	return &SourceLoader{store: store, client: client, allowedHosts: hosts, maxBytes: defaultMaxImageBytes}
}

// Load fetches and decodes ref.
func (l *SourceLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	data, err := l.fetch(ctx, strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func (l *SourceLoader) fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, errors.New("empty image reference")
	}
	if strings.HasPrefix(ref, "data:") {
		return decodeDataURL(ref)
	}
	if l.store != nil {
		if key, ok := l.store.KeyFromURL(ref); ok {
			return l.store.Read(ctx, key)
		}
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse reference: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if _, ok := l.allowedHosts[strings.ToLower(u.Hostname())]; !ok {
		return nil, fmt.Errorf("host %q is not allowed", u.Hostname())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", l.maxBytes)
	}
	return data, nil
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>.
func decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data url")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data url: %w", err)
		}
		return data, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data url: %w", err)
	}
	return []byte(data), nil
}
