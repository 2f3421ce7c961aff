// Package compositor stacks the kept cards' images into one tall export image.
package compositor

import (
	"fmt"
	"image"

	"swipeshop/internal/domain"
)

const (
	// DefaultWidth is the canonical export width in pixels.
	DefaultWidth = 860
	// MaxDimension is the largest side a baseline JPEG can encode.
	MaxDimension = 65535
)

// Placement is where one bitmap lands on the output raster.
type Placement struct {
	Y      int `json:"y"`
	Height int `json:"height"`
}

// Plan is the computed layout for a set of bitmaps.
type Plan struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Placements []Placement `json:"placements"`
}

// ScaledHeight returns round(width * h / w) using integer arithmetic.
func ScaledHeight(natural image.Point, width int) int {
	if natural.X <= 0 {
		return 0
	}
	return (2*width*natural.Y + natural.X) / (2 * natural.X)
}

// Layout places bitmaps of the given natural sizes top to bottom at a fixed
// width with no gaps between them.
func Layout(sizes []image.Point, width int) (Plan, error) {
	if width <= 0 {
		return Plan{}, fmt.Errorf("%w: export width must be positive", domain.ErrInvalidInput)
	}
	plan := Plan{Width: width, Placements: make([]Placement, len(sizes))}
	for i, size := range sizes {
		if size.X <= 0 || size.Y <= 0 {
			return Plan{}, fmt.Errorf("%w: bitmap %d has empty bounds %v", domain.ErrAssetDecodeFailed, i, size)
		}
		h := ScaledHeight(size, width)
		plan.Placements[i] = Placement{Y: plan.Height, Height: h}
		plan.Height += h
	}
	if plan.Height > MaxDimension || width > MaxDimension {
		return Plan{}, fmt.Errorf("%w: %dx%d exceeds %d", domain.ErrExportTooLarge, width, plan.Height, MaxDimension)
	}
	return plan, nil
}
