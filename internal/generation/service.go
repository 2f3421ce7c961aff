// Package generation turns user inputs into candidate cards by combining the
// catalog, the copywriter and the background generator.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"swipeshop/internal/catalog"
	"swipeshop/internal/domain"
	"swipeshop/internal/providers/copywriter"
	"swipeshop/internal/providers/genai"
)

const (
	DefaultVariantCount = 10
	MaxVariantCount     = 20
	fallbackCopy        = "Discover perfection."
	defaultTimeout      = 60 * time.Second
)

// Backgrounds renders background variants for a product.
type Backgrounds interface {
	GenerateBackgrounds(ctx context.Context, req genai.BackgroundRequest) ([]genai.Background, error)
}

// BlobWriter persists generated bitmaps.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	PublicURL(key string) string
}

// Options wires the service.
type Options struct {
	Catalog      *catalog.Catalog
	Copywriter   copywriter.Copywriter
	Backgrounds  Backgrounds
	Store        BlobWriter
	Ledger       domain.AssetLedger
	Logger       *zerolog.Logger
	Timeout      time.Duration
	VariantCount int
}

// Service generates candidate cards. It holds no per-session state.
type Service struct {
	catalog      *catalog.Catalog
	copy         copywriter.Copywriter
	backgrounds  Backgrounds
	store        BlobWriter
	ledger       domain.AssetLedger
	logger       zerolog.Logger
	timeout      time.Duration
	variantCount int
}

func NewService(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		return nil, errors.New("generation: catalog is required")
	}
	if opts.Copywriter == nil {
		return nil, errors.New("generation: copywriter is required")
	}
	s := &Service{
		catalog:      opts.Catalog,
		copy:         opts.Copywriter,
		backgrounds:  opts.Backgrounds,
		store:        opts.Store,
		ledger:       opts.Ledger,
		logger:       zerolog.Nop(),
		timeout:      opts.Timeout,
		variantCount: opts.VariantCount,
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.variantCount <= 0 {
		s.variantCount = DefaultVariantCount
	}
	return s, nil
}

// VariantRequest asks for background variants of one product photo.
type VariantRequest struct {
	ImageRef    string
	ProductName string
	StylePrompt string
	Count       int
	SessionID   string
	RequestID   string
}

// VariantResult is a finished variant batch.
type VariantResult struct {
	Cards          []domain.Card `json:"cards"`
	ProcessedImage string        `json:"processed_image"`
}

// CheckFetchable rejects references the AI provider cannot download.
func CheckFetchable(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("%w: image reference is required", domain.ErrInvalidInput)
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") {
		return fmt.Errorf("%w: upload the image first", domain.ErrTransientReference)
	}
	return nil
}

// Variants runs background generation and copywriting concurrently and pairs
// them up. Either failing fails the whole batch.
func (s *Service) Variants(ctx context.Context, req VariantRequest) (*VariantResult, error) {
	if err := CheckFetchable(req.ImageRef); err != nil {
		return nil, err
	}
	if s.backgrounds == nil {
		return nil, fmt.Errorf("%w: no background generator configured", domain.ErrGenerationFailed)
	}
	count := req.Count
	if count <= 0 {
		count = s.variantCount
	}
	if count > MaxVariantCount {
		count = MaxVariantCount
	}
	productName := coalesce(req.ProductName, "Product")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		backgrounds []genai.Background
		lines       []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.backgrounds.GenerateBackgrounds(gctx, genai.BackgroundRequest{
			ProductImageRef: req.ImageRef,
			ProductName:     productName,
			StylePrompt:     req.StylePrompt,
			Count:           count,
			RequestID:       req.RequestID,
		})
		if err != nil {
			return wrapGeneration("backgrounds", err)
		}
		backgrounds = out
		return nil
	})
	g.Go(func() error {
		out, err := s.copy.GenerateCopy(gctx, copywriter.CopyRequest{
			ProductName: productName,
			Style:       req.StylePrompt,
			Count:       3,
		})
		if err != nil {
			return wrapGeneration("copy", err)
		}
		lines = out
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn().Err(err).Str("request_id", req.RequestID).Msg("generation: variants failed")
		return nil, err
	}
	if len(backgrounds) == 0 {
		return nil, fmt.Errorf("%w: no backgrounds returned", domain.ErrGenerationFailed)
	}

	cards := make([]domain.Card, len(backgrounds))
	for i, bg := range backgrounds {
		visual, err := s.persistBackground(ctx, req.SessionID, bg)
		if err != nil {
			return nil, err
		}
		text := ""
		if len(lines) > 0 {
			text = strings.TrimSpace(lines[i%len(lines)])
		}
		if text == "" {
			text = fallbackCopy
		}
		cards[i] = domain.Card{
			ID:      domain.NewCardID("card"),
			Visual:  visual,
			Section: "Variant",
			Copy:    text,
			Variant: domain.VariantOverlay,
			Kind:    domain.KindProduct,
		}
	}

	if err := validateCards(cards); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_id", req.RequestID).
		Str("session_id", req.SessionID).
		Int("cards", len(cards)).
		Str("copywriter", s.copy.Name()).
		Msg("generation: variants ready")

	return &VariantResult{Cards: cards, ProcessedImage: req.ImageRef}, nil
}

// persistBackground stores a generated bitmap and returns an image source, or
// falls back to the style descriptor when no store is configured.
func (s *Service) persistBackground(ctx context.Context, sessionID string, bg genai.Background) (domain.VisualSource, error) {
	if s.store == nil || len(bg.Data) == 0 {
		return domain.StyleSource(bg.Style), nil
	}
	key := fmt.Sprintf("generated/%s.%s", strings.ToLower(domain.NewULID().String()), extensionFor(bg.Format))
	stored, err := s.store.Write(ctx, key, bg.Data)
	if err != nil {
		return domain.VisualSource{}, fmt.Errorf("%w: store background: %v", domain.ErrGenerationFailed, err)
	}
	url := s.store.PublicURL(stored)
	if s.ledger != nil {
		err := s.ledger.Record(ctx, domain.Asset{
			ID:          strings.ToLower(domain.NewULID().String()),
			SessionID:   sessionID,
			Kind:        domain.AssetKindGenerated,
			StorageKey:  stored,
			PublicURL:   url,
			ContentType: bg.Format,
			Width:       bg.Width,
			Height:      bg.Height,
			Bytes:       int64(len(bg.Data)),
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("key", stored).Msg("generation: failed to record background")
		}
	}
	return domain.ImageSource(url), nil
}

// PlanRequest asks for the wizard's candidate set.
type PlanRequest struct {
	Inputs    domain.ProjectInputs
	Locale    string
	RequestID string
}

// Plan builds one card per template section of the selected purpose. Copy
// comes from the copywriter with the template text as the fallback for each
// slot; review quotes always keep their template text.
func (s *Service) Plan(ctx context.Context, req PlanRequest) ([]domain.Card, error) {
	inputs := req.Inputs
	if inputs.Style == nil {
		return nil, fmt.Errorf("%w: style is required", domain.ErrInvalidInput)
	}
	if !inputs.HasContent() {
		return nil, fmt.Errorf("%w: an image or a description is required", domain.ErrInvalidInput)
	}
	sections := s.catalog.Template(inputs.Purpose.ID)
	description := strings.TrimSpace(inputs.Description)

	defaults := make([]string, len(sections))
	names := make([]string, len(sections))
	for i, sec := range sections {
		defaults[i] = sec.Copy
		if sec.UseDescription && description != "" {
			defaults[i] = description
		}
		names[i] = sec.Section
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	lines, err := s.copy.GenerateCopy(ctx, copywriter.CopyRequest{
		ProductName: firstLine(description),
		Purpose:     inputs.Purpose.Name,
		Style:       inputs.Style.Prompt,
		Description: description,
		Locale:      req.Locale,
		Count:       len(sections),
		Sections:    names,
		Defaults:    defaults,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", req.RequestID).Str("purpose", inputs.Purpose.ID).Msg("generation: plan copy failed")
		return nil, wrapGeneration("copy", err)
	}

	cards := make([]domain.Card, len(sections))
	for i, sec := range sections {
		variant, err := domain.ParseVariant(sec.Variant)
		if err != nil {
			return nil, err
		}
		kind, err := domain.ParseKind(sec.Kind)
		if err != nil {
			return nil, err
		}
		text := defaults[i]
		if sec.Author == "" && i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			text = strings.TrimSpace(lines[i])
		}
		card := domain.Card{
			ID:      domain.NewCardID(sec.ID),
			Section: sec.Section,
			Copy:    text,
			Variant: variant,
			Kind:    kind,
			Author:  sec.Author,
			Rating:  sec.Rating,
		}
		if kind == domain.KindProduct {
			card.Visual = domain.ImageSource(s.imageAt(inputs.Images, sec.Image))
		}
		cards[i] = card
	}
	if err := validateCards(cards); err != nil {
		s.logger.Error().Err(err).Str("purpose", inputs.Purpose.ID).Msg("generation: template produced an invalid card")
		return nil, err
	}

	s.logger.Info().
		Str("request_id", req.RequestID).
		Str("purpose", inputs.Purpose.ID).
		Str("style", inputs.Style.ID).
		Int("cards", len(cards)).
		Str("copywriter", s.copy.Name()).
		Msg("generation: plan ready")

	return cards, nil
}

// CustomBlock builds a user-authored card.
func (s *Service) CustomBlock(prompt string, images []string) (domain.Card, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.Card{}, fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}
	card := domain.Card{
		ID:      domain.NewCardID("custom"),
		Visual:  domain.ImageSource(s.imageAt(images, 0)),
		Section: "Custom",
		Copy:    prompt,
		Variant: domain.VariantOverlay,
		Kind:    domain.KindProduct,
	}
	if err := card.Validate(); err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// validateCards rejects a batch holding any card outside the closed variant
// and kind sets.
func validateCards(cards []domain.Card) error {
	for _, c := range cards {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("card %s: %w", c.ID, err)
		}
	}
	return nil
}

// Refine asks the copywriter for a better line.
func (s *Service) Refine(ctx context.Context, card domain.Card, style *domain.Style, locale string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req := copywriter.RefineRequest{Copy: card.Copy, Section: card.Section, Locale: locale}
	if style != nil {
		req.Style = style.Prompt
	}
	text, err := s.copy.Refine(ctx, req)
	if err != nil {
		return "", wrapGeneration("refine", err)
	}
	return text, nil
}

// imageAt cycles through the user's images, falling back to stock photos.
func (s *Service) imageAt(images []string, idx int) string {
	if len(images) > 0 {
		return images[idx%len(images)]
	}
	if fb := s.catalog.FallbackImages; len(fb) > 0 {
		return fb[idx%len(fb)]
	}
	return ""
}

// wrapGeneration keeps rate-limit and generation sentinels intact and marks
// anything else as a generation failure.
func wrapGeneration(stage string, err error) error {
	switch {
	case errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrGenerationFailed),
		errors.Is(err, domain.ErrInvalidInput):
		return fmt.Errorf("%s: %w", stage, err)
	default:
		return fmt.Errorf("%w: %s: %v", domain.ErrGenerationFailed, stage, err)
	}
}

func extensionFor(format string) string {
	switch strings.ToLower(format) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 60 {
		s = string(r[:60])
	}
	return s
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
