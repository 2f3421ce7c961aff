package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"swipeshop/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body any) *http.Response {
	data, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestSyntheticBackgrounds(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if !client.Synthetic() {
		t.Fatal("client without key should be synthetic")
	}
	req := BackgroundRequest{ProductImageRef: "https://cdn.test/p.png", ProductName: "Mug", Count: 10, RequestID: "r1"}
	first, err := client.GenerateBackgrounds(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateBackgrounds: %v", err)
	}
	if len(first) != 10 {
		t.Fatalf("got %d backgrounds, want 10", len(first))
	}
	for i, bg := range first {
		if !strings.Contains(bg.Style, "gradient(") {
			t.Fatalf("background %d style %q is not a gradient", i, bg.Style)
		}
		img, err := png.Decode(bytes.NewReader(bg.Data))
		if err != nil {
			t.Fatalf("background %d is not a png: %v", i, err)
		}
		if img.Bounds().Dx() != 512 || img.Bounds().Dy() != 640 {
			t.Fatalf("background %d size = %v", i, img.Bounds())
		}
	}
	// the first len(palette) variants are distinct
	seen := map[string]bool{}
	for _, bg := range first[:len(palette)] {
		if seen[bg.Style] {
			t.Fatalf("duplicate style %q", bg.Style)
		}
		seen[bg.Style] = true
	}

	again, _ := client.GenerateBackgrounds(context.Background(), req)
	for i := range first {
		if first[i].Style != again[i].Style {
			t.Fatalf("synthetic output not deterministic at %d", i)
		}
	}
}

func TestGenerateBackgroundsRejectsZeroCount(t *testing.T) {
	client, _ := NewClient(Options{})
	if _, err := client.GenerateBackgrounds(context.Background(), BackgroundRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRemoteBackgroundsDecodeInlineImages(t *testing.T) {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 6, 4))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString(pngBuf.Bytes())

	var calls atomic.Int32
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("missing api key")
		}
		if !strings.HasSuffix(r.URL.Path, "/models/img-model:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload geminiGenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if got := payload.Contents[0].Parts[1].FileData.FileURI; got != "https://cdn.test/p.png" {
			t.Errorf("file uri = %q", got)
		}
		return jsonResponse(http.StatusOK, map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]any{
					{"text": "here you go"},
					{"inlineData": map[string]any{"mimeType": "image/png", "data": encoded}},
				}},
			}},
		}), nil
	})}

	client, _ := NewClient(Options{APIKey: "secret", BaseURL: "https://gemini.test/v1beta", Model: "img-model", HTTPClient: httpClient})
	out, err := client.GenerateBackgrounds(context.Background(), BackgroundRequest{ProductImageRef: "https://cdn.test/p.png", Count: 3})
	if err != nil {
		t.Fatalf("GenerateBackgrounds: %v", err)
	}
	if len(out) != 3 || calls.Load() != 3 {
		t.Fatalf("got %d backgrounds with %d calls", len(out), calls.Load())
	}
	if out[0].Width != 6 || out[0].Height != 4 || out[0].Format != "image/png" {
		t.Fatalf("unexpected asset %+v", out[0])
	}
}

func TestRemoteBackgroundsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
	}{
		{name: "quota", status: http.StatusTooManyRequests, body: map[string]any{"error": map[string]any{"message": "quota"}}, want: domain.ErrRateLimited},
		{name: "server", status: http.StatusInternalServerError, body: map[string]any{"error": map[string]any{"message": "boom"}}, want: domain.ErrGenerationFailed},
		{name: "no image", status: http.StatusOK, body: map[string]any{"candidates": []any{}}, want: domain.ErrGenerationFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			httpClient := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			})}
			client, _ := NewClient(Options{APIKey: "k", HTTPClient: httpClient})
			out, err := client.GenerateBackgrounds(context.Background(), BackgroundRequest{ProductImageRef: "https://cdn.test/p.png", Count: 2})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if out != nil {
				t.Fatal("no partial output on failure")
			}
		})
	}
}

func TestGradientInterpolation(t *testing.T) {
	g := palette[7]
	if got := g.at(0); got != g.Stops[0] {
		t.Fatalf("at(0) = %v", got)
	}
	if got := g.at(1); got != g.Stops[len(g.Stops)-1] {
		t.Fatalf("at(1) = %v", got)
	}
	mid := palette[0].at(0.5)
	if mid.R < 0xfc || mid.R > 0xff {
		t.Fatalf("unexpected midpoint %v", mid)
	}
}
