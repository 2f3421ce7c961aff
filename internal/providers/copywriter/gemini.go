package copywriter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"swipeshop/internal/domain"
	"swipeshop/internal/infra"
)

const (
	geminiDefaultTimeout = 20 * time.Second
	defaultGeminiModel   = "gemini-2.5-flash"
)

type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Gemini writes copy through the Gemini API with a JSON array response schema.
type Gemini struct {
	client *genai.Client
	model  string
	logger *infra.Logger
}

func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: geminiDefaultTimeout}
	}
	cfg := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(opts.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := sdkBaseURL(opts.BaseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Gemini{
		client: client,
		model:  coalesce(opts.Model, defaultGeminiModel),
		logger: logger,
	}, nil
}

func (g *Gemini) Name() string { return GeminiProviderName }

func (g *Gemini) GenerateCopy(ctx context.Context, req CopyRequest) ([]string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.9),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	}
	text, err := g.generate(ctx, buildCopyPrompt(req), cfg)
	if err != nil {
		return nil, err
	}
	return parseCopyList(text, req.count())
}

func (g *Gemini) Refine(ctx context.Context, req RefineRequest) (string, error) {
	text, err := g.generate(ctx, buildRefinePrompt(req), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
	})
	if err != nil {
		return "", err
	}
	return parseRefined(text)
}

func (g *Gemini) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		g.logger.Warn().Err(err).Str("model", g.model).Dur("elapsed", time.Since(start)).Msg("copywriter: gemini request failed")
		return "", classifyGeminiError(err)
	}
	g.logger.Debug().Str("model", g.model).Dur("elapsed", time.Since(start)).Msg("copywriter: gemini request completed")
	return resp.Text(), nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: gemini: %s", domain.ErrRateLimited, apiErr.Message)
	}
	return fmt.Errorf("%w: gemini: %v", domain.ErrGenerationFailed, err)
}

// sdkBaseURL strips the API version suffix the REST clients carry; the SDK
// appends its own.
func sdkBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	base = strings.TrimSuffix(base, "/v1beta")
	base = strings.TrimSuffix(base, "/v1")
	if base == "" {
		return ""
	}
	return base + "/"
}

var _ Copywriter = (*Gemini)(nil)
