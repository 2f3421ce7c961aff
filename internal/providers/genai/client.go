package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"swipeshop/internal/domain"
	"swipeshop/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPClient  *http.Client
	Logger      *infra.Logger
	Parallelism int
}

// Client generates background variants for a product image. Without an API
// key it renders deterministic gradient backgrounds locally so the rest of the
// pipeline keeps working in development and CI.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	logger      *infra.Logger
	parallelism int
}

// BackgroundRequest describes one variant batch.
type BackgroundRequest struct {
	ProductImageRef string
	ProductName     string
	StylePrompt     string
	Count           int
	AspectRatio     string
	RequestID       string
}

// Background is a single generated variant. Style is a CSS descriptor that
// approximates the background and is always set; Data holds the rendered
// bitmap when one is available.
type Background struct {
	Style  string
	Format string
	Width  int
	Height int
	Data   []byte
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		model:       model,
		httpClient:  client,
		logger:      logger,
		parallelism: parallelism,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether the client renders backgrounds locally.
func (c *Client) Synthetic() bool {
	return c.apiKey == ""
}

// GenerateBackgrounds returns exactly req.Count variants or an error. Remote
// failures are reported, never silently replaced by synthetic output.
func (c *Client) GenerateBackgrounds(ctx context.Context, req BackgroundRequest) ([]Background, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Count <= 0 {
		return nil, fmt.Errorf("%w: variant count must be positive", domain.ErrInvalidInput)
	}

	if c.Synthetic() {
		return c.syntheticBackgrounds(req)
	}

	backgrounds, err := c.remoteGenerateBackgrounds(ctx, req)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("request_id", req.RequestID).
			Str("model", c.model).
			Msg("genai: remote background generation failed")
		return nil, err
	}
	return backgrounds, nil
}

func (c *Client) syntheticBackgrounds(req BackgroundRequest) ([]Background, error) {
	width, height := normalizeAspect(req.AspectRatio)
	width, height = width/syntheticDownscale, height/syntheticDownscale

	seed := deterministicSeed(req.RequestID, req.ProductImageRef, req.ProductName, req.StylePrompt)
	order := shuffledPalette(seed)
	backgrounds := make([]Background, req.Count)
	for i := 0; i < req.Count; i++ {
		g := palette[order[i%len(order)]]
		data, err := renderGradient(width, height, g)
		if err != nil {
			return nil, fmt.Errorf("%w: render background: %v", domain.ErrGenerationFailed, err)
		}
		backgrounds[i] = Background{
			Style:  g.CSS,
			Format: "image/png",
			Width:  width,
			Height: height,
			Data:   data,
		}
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Int("quantity", req.Count).
		Msg("genai: generated synthetic backgrounds")

	return backgrounds, nil
}

func (c *Client) remoteGenerateBackgrounds(ctx context.Context, req BackgroundRequest) ([]Background, error) {
	seed := deterministicSeed(req.RequestID, req.ProductImageRef, req.ProductName)
	order := shuffledPalette(seed)
	backgrounds := make([]Background, req.Count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i := 0; i < req.Count; i++ {
		g.Go(func() error {
			tone := palette[order[i%len(order)]]
			payload := geminiGenerateContentRequest{
				Contents: []geminiContent{{
					Role: "user",
					Parts: []geminiPart{
						{Text: buildBackgroundPrompt(req, tone, i)},
						{FileData: &geminiFileData{MimeType: mimeFromRef(req.ProductImageRef), FileURI: req.ProductImageRef}},
					},
				}},
				GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
			}

			var response geminiGenerateContentResponse
			if err := c.invokeGemini(gctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
				return err
			}
			asset, ok := c.firstImage(gctx, response)
			if !ok {
				return fmt.Errorf("%w: variant %d: no image content returned", domain.ErrGenerationFailed, i)
			}
			w, h := decodeImageDimensions(asset.Data)
			backgrounds[i] = Background{
				Style:  tone.CSS,
				Format: firstNonEmpty(asset.Format, "image/png"),
				Width:  w,
				Height: h,
				Data:   asset.Data,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Int("quantity", len(backgrounds)).
		Msg("genai: generated remote backgrounds")

	return backgrounds, nil
}

func (c *Client) firstImage(ctx context.Context, response geminiGenerateContentResponse) (inlineAsset, bool) {
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			asset, err := c.decodeInlineAsset(ctx, part)
			if err != nil || len(asset.Data) == 0 {
				continue
			}
			return asset, true
		}
	}
	return inlineAsset{}, false
}

type inlineAsset struct {
	Data   []byte
	Format string
	URL    string
}

// StatusError is a non-2xx answer from the Gemini API.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.Status)
	}
	return fmt.Sprintf("gemini status %d: %s", e.Status, e.Message)
}

// Unwrap lets callers match quota responses with errors.Is.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	return domain.ErrGenerationFailed
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: invoke gemini: %v", domain.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &StatusError{Status: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return &StatusError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode gemini response: %v", domain.ErrGenerationFailed, err)
	}
	return nil
}

func (c *Client) decodeInlineAsset(ctx context.Context, part geminiPart) (inlineAsset, error) {
	if part.InlineData != nil && part.InlineData.Data != "" {
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return inlineAsset{}, fmt.Errorf("decode inline data: %w", err)
		}
		return inlineAsset{Data: data, Format: part.InlineData.MimeType}, nil
	}

	if part.FileData != nil && part.FileData.FileURI != "" {
		data, mimeType, err := c.downloadFile(ctx, part.FileData.FileURI)
		if err != nil {
			return inlineAsset{}, err
		}
		return inlineAsset{Data: data, Format: firstNonEmpty(part.FileData.MimeType, mimeType), URL: part.FileData.FileURI}, nil
	}

	return inlineAsset{}, nil
}

func (c *Client) downloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("download file status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func buildBackgroundPrompt(req BackgroundRequest, tone gradient, index int) string {
	var b strings.Builder
	b.WriteString("Place the product from the attached photo on a new studio background for an e-commerce detail page. ")
	b.WriteString("Keep the product unchanged and centered. ")
	if name := strings.TrimSpace(req.ProductName); name != "" {
		fmt.Fprintf(&b, "Product: %s. ", name)
	}
	if style := strings.TrimSpace(req.StylePrompt); style != "" {
		fmt.Fprintf(&b, "Visual direction: %s. ", style)
	}
	fmt.Fprintf(&b, "Background mood: %s (variation %d). ", tone.Mood, index+1)
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		fmt.Fprintf(&b, "Aspect ratio: %s.", aspect)
	}
	return strings.TrimSpace(b.String())
}

func mimeFromRef(ref string) string {
	if u, err := url.Parse(ref); err == nil {
		if t := mime.TypeByExtension(strings.ToLower(path.Ext(u.Path))); t != "" {
			return t
		}
	}
	return "image/jpeg"
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

