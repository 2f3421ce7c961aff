// Package copywriter produces marketing copy for cards. Remote providers call
// Gemini or OpenAI; the static provider is deterministic and needs no key.
package copywriter

import (
	"context"
	"fmt"
	"strings"

	"swipeshop/internal/domain"
	"swipeshop/internal/infra"
)

const (
	StaticProviderName = "static"
	GeminiProviderName = "gemini"
	OpenAIProviderName = "openai"

	defaultCopyCount = 3
)

// CopyRequest asks for Count short copy lines. Sections and Defaults, when
// set, describe each slot and its template text.
type CopyRequest struct {
	ProductName string
	Purpose     string
	Style       string
	Description string
	Locale      string
	Count       int
	Sections    []string
	Defaults    []string
}

// RefineRequest asks for a better version of one line.
type RefineRequest struct {
	Copy    string
	Section string
	Style   string
	Locale  string
}

// Copywriter is implemented by every provider.
type Copywriter interface {
	Name() string
	GenerateCopy(ctx context.Context, req CopyRequest) ([]string, error)
	Refine(ctx context.Context, req RefineRequest) (string, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIOrg     string
	Logger        *infra.Logger
}

// New builds the configured provider. A remote provider without a key
// degrades to the static one so local development works offline.
func New(ctx context.Context, opts Options) (Copywriter, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	warn := func(reason string) {
		if opts.Logger != nil {
			opts.Logger.Warn().Str("provider", provider).Str("reason", reason).Msg("copywriter: using static provider")
		}
	}
	switch provider {
	case "", GeminiProviderName:
		if strings.TrimSpace(opts.GeminiAPIKey) == "" {
			warn("missing_api_key")
			return NewStatic(), nil
		}
		return NewGemini(ctx, GeminiOptions{
			APIKey:  opts.GeminiAPIKey,
			Model:   opts.GeminiModel,
			BaseURL: opts.GeminiBaseURL,
			Logger:  opts.Logger,
		})
	case OpenAIProviderName:
		if strings.TrimSpace(opts.OpenAIAPIKey) == "" {
			warn("missing_api_key")
			return NewStatic(), nil
		}
		return NewOpenAI(OpenAIOptions{
			APIKey:       opts.OpenAIAPIKey,
			Model:        opts.OpenAIModel,
			BaseURL:      opts.OpenAIBaseURL,
			Organization: opts.OpenAIOrg,
			Logger:       opts.Logger,
			OnWarning: func(reason, detail string) {
				if opts.Logger != nil {
					opts.Logger.Warn().Str("reason", reason).Str("detail", detail).Msg("copywriter: openai model adjusted")
				}
			},
		})
	case StaticProviderName:
		return NewStatic(), nil
	default:
		return nil, fmt.Errorf("%w: unknown copy provider %q", domain.ErrInvalidInput, opts.Provider)
	}
}

func (r CopyRequest) count() int {
	switch {
	case r.Count > 0:
		return r.Count
	case len(r.Defaults) > 0:
		return len(r.Defaults)
	default:
		return defaultCopyCount
	}
}
