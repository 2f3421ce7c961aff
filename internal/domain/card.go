package domain

import (
	"fmt"
	"strings"
)

// Variant controls how a card is presented.
type Variant string

const (
	VariantOverlay    Variant = "overlay"
	VariantSplit      Variant = "split"
	VariantReviewCard Variant = "review-card"
	VariantTextBlock  Variant = "text-block"
)

// ParseVariant maps a free-form tag onto the closed variant set.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantOverlay, VariantSplit, VariantReviewCard, VariantTextBlock:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// RequiresImage reports whether the variant renders on top of an image.
func (v Variant) RequiresImage() (bool, error) {
	switch v {
	case VariantOverlay, VariantSplit:
		return true, nil
	case VariantReviewCard, VariantTextBlock:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownVariant, string(v))
	}
}

// Kind separates image-backed cards from text-only cards.
type Kind string

const (
	KindProduct Kind = "product"
	KindText    Kind = "text"
)

// ParseKind maps a free-form tag onto the closed kind set.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindProduct, KindText:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// VisualKind describes what a VisualSource holds.
type VisualKind int

const (
	VisualNone VisualKind = iota
	VisualImage
	VisualStyle
)

// VisualSource is either an image reference, an inline style descriptor
// (for example a CSS gradient) or empty.
type VisualSource struct {
	ImageRef string `json:"image_ref,omitempty"`
	Style    string `json:"style,omitempty"`
}

// ImageSource builds a VisualSource pointing at an image.
func ImageSource(ref string) VisualSource { return VisualSource{ImageRef: strings.TrimSpace(ref)} }

// StyleSource builds a VisualSource carrying an inline style descriptor.
func StyleSource(style string) VisualSource { return VisualSource{Style: strings.TrimSpace(style)} }

func (v VisualSource) Kind() VisualKind {
	switch {
	case v.ImageRef != "":
		return VisualImage
	case v.Style != "":
		return VisualStyle
	default:
		return VisualNone
	}
}

// Card is a unit of generated content subject to accept/reject/toggle decisions.
type Card struct {
	ID      string       `json:"id"`
	Visual  VisualSource `json:"visual"`
	Section string       `json:"section"`
	Copy    string       `json:"copy"`
	Variant Variant      `json:"variant"`
	Kind    Kind         `json:"kind"`
	Author  string       `json:"author,omitempty"`
	Rating  int          `json:"rating,omitempty"`
}

// Validate checks the closed enumerations and the optional rating range.
func (c Card) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: card id is required", ErrInvalidInput)
	}
	if _, err := ParseVariant(string(c.Variant)); err != nil {
		return err
	}
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	if c.Rating != 0 && (c.Rating < 1 || c.Rating > 5) {
		return fmt.Errorf("%w: rating %d out of range 1..5", ErrInvalidInput, c.Rating)
	}
	if c.Visual.ImageRef != "" && c.Visual.Style != "" {
		return fmt.Errorf("%w: card %s has both image and style", ErrInvalidInput, c.ID)
	}
	return nil
}

// IndexOf returns the position of the card with the given id, or -1.
func IndexOf(cards []Card, id string) int {
	for i := range cards {
		if cards[i].ID == id {
			return i
		}
	}
	return -1
}

// CardIDs lists the ids of cards in order.
func CardIDs(cards []Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}
