package compositor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"swipeshop/internal/domain"
)

const (
	DefaultQuality = 90
	ContentType    = "image/jpeg"
)

// Loader resolves an image reference to a decoded bitmap.
type Loader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// Options configures a Compositor.
type Options struct {
	Width   int
	Quality int
	// MaxConcurrentLoads bounds parallel fetches; zero means unbounded.
	MaxConcurrentLoads int
	Logger             *zerolog.Logger
	Now                func() time.Time
}

// Export is an encoded composition ready for download.
type Export struct {
	Filename    string   `json:"filename"`
	ContentType string   `json:"content_type"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	CardIDs     []string `json:"card_ids"`
	Plan        Plan     `json:"plan"`
	Data        []byte   `json:"-"`
}

// Compositor renders kept sequences.
type Compositor struct {
	loader   Loader
	width    int
	quality  int
	parallel int
	logger   zerolog.Logger
	now      func() time.Time
}

// New builds a Compositor around a loader.
func New(loader Loader, opts Options) *Compositor {
	c := &Compositor{
		loader:   loader,
		width:    opts.Width,
		quality:  opts.Quality,
		parallel: opts.MaxConcurrentLoads,
		logger:   zerolog.Nop(),
		now:      opts.Now,
	}
	if c.width <= 0 {
		c.width = DefaultWidth
	}
	if c.quality <= 0 || c.quality > 100 {
		c.quality = DefaultQuality
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Contributing returns the cards that add pixels to an export, in order.
// Text cards and cards without an image reference are skipped.
func Contributing(cards []domain.Card) ([]domain.Card, error) {
	out := make([]domain.Card, 0, len(cards))
	for _, card := range cards {
		switch card.Kind {
		case domain.KindProduct:
			if card.Visual.Kind() == domain.VisualImage {
				out = append(out, card)
			}
		case domain.KindText:
		default:
			return nil, fmt.Errorf("%w: card %s has kind %q", domain.ErrUnknownKind, card.ID, card.Kind)
		}
	}
	return out, nil
}

// Compose loads every contributing bitmap, stacks them at the configured
// width and encodes the result. Any load failure aborts the whole export.
func (c *Compositor) Compose(ctx context.Context, cards []domain.Card) (*Export, error) {
	selected, err := Contributing(cards)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no image cards in the kept sequence", domain.ErrNothingToExport)
	}

	bitmaps, err := c.loadAll(ctx, selected)
	if err != nil {
		return nil, err
	}

	sizes := make([]image.Point, len(bitmaps))
	for i, b := range bitmaps {
		sizes[i] = b.Bounds().Size()
	}
	plan, err := Layout(sizes, c.width)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, plan.Width, plan.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for i, b := range bitmaps {
		p := plan.Placements[i]
		dst := image.Rect(0, p.Y, plan.Width, p.Y+p.Height)
		draw.CatmullRom.Scale(canvas, dst, b, b.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, fmt.Errorf("compositor: encode: %w", err)
	}

	ids := domain.CardIDs(selected)
	c.logger.Debug().
		Int("cards", len(ids)).
		Int("width", plan.Width).
		Int("height", plan.Height).
		Int("bytes", buf.Len()).
		Msg("compositor: export rendered")

	return &Export{
		Filename:    fmt.Sprintf("swipeshop-detail-%d.jpg", c.now().UnixMilli()),
		ContentType: ContentType,
		Width:       plan.Width,
		Height:      plan.Height,
		CardIDs:     ids,
		Plan:        plan,
		Data:        buf.Bytes(),
	}, nil
}

// loadAll fetches bitmaps concurrently. Results are indexed by position so
// completion order never affects drawing order.
func (c *Compositor) loadAll(ctx context.Context, cards []domain.Card) ([]image.Image, error) {
	bitmaps := make([]image.Image, len(cards))
	g, gctx := errgroup.WithContext(ctx)
	if c.parallel > 0 {
		g.SetLimit(c.parallel)
	}
	for i, card := range cards {
		g.Go(func() error {
			img, err := c.loader.Load(gctx, card.Visual.ImageRef)
			if err != nil {
				return fmt.Errorf("%w: card %s: %v", domain.ErrAssetDecodeFailed, card.ID, err)
			}
			if img.Bounds().Empty() {
				return fmt.Errorf("%w: card %s: empty image", domain.ErrAssetDecodeFailed, card.ID)
			}
			bitmaps[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bitmaps, nil
}
